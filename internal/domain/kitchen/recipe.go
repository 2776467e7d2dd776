// Package kitchen holds the per-session state of the recipe finder: the
// identified ingredients, the generated recipes, the selected recipe and its
// ingredient images, the recipe-name search and the pending notifications.
package kitchen

import (
	"github.com/google/uuid"
)

const (
	// PlaceholderRecipeImage is shown for every generated recipe.
	PlaceholderRecipeImage = "https://placehold.co/600x400.png"
	// ErrorImageSentinel replaces an ingredient image that failed to generate.
	ErrorImageSentinel = "https://placehold.co/100x100.png?text=Error"
)

// IngredientList is the result of one photo analysis. Two analyses yielding
// the same names are still different lists.
type IngredientList struct {
	ID    uuid.UUID `json:"id"`
	Items []string  `json:"items"`
}

// NewIngredientList creates a list with a fresh identity.
func NewIngredientList(items []string) IngredientList {
	return IngredientList{ID: uuid.New(), Items: append([]string(nil), items...)}
}

// IsZero reports whether no analysis has produced this list.
func (l IngredientList) IsZero() bool { return l.ID == uuid.Nil }

// IngredientImage is one entry of a recipe's ingredient gallery. A nil
// ImageURL means the image has not been fetched yet.
type IngredientImage struct {
	Name     string  `json:"name"`
	ImageURL *string `json:"image_url"`
}

// Pending reports whether the image is still being generated.
func (i IngredientImage) Pending() bool { return i.ImageURL == nil }

// Failed reports whether generation failed for this ingredient.
func (i IngredientImage) Failed() bool {
	return i.ImageURL != nil && *i.ImageURL == ErrorImageSentinel
}

// URL returns the image URL or "" while pending.
func (i IngredientImage) URL() string {
	if i.ImageURL == nil {
		return ""
	}
	return *i.ImageURL
}

// ResolvedImage returns an entry with the given URL.
func ResolvedImage(name, url string) IngredientImage {
	return IngredientImage{Name: name, ImageURL: &url}
}

// FailedImage returns an entry carrying the error sentinel.
func FailedImage(name string) IngredientImage {
	return ResolvedImage(name, ErrorImageSentinel)
}

// RecipeDraft is a generated recipe before it joins the board.
type RecipeDraft struct {
	Name        string
	Description string
}

// Recipe is a generated recipe. IngredientImages, once present, has one
// entry per SourceIngredients element in the same order.
type Recipe struct {
	ID                uuid.UUID         `json:"id"`
	Name              string            `json:"name"`
	Description       string            `json:"description"`
	ImageURL          string            `json:"image_url,omitempty"`
	SourceIngredients []string          `json:"source_ingredients,omitempty"`
	IngredientImages  []IngredientImage `json:"ingredient_images,omitempty"`
}

// HasIngredientImages reports whether the gallery has been populated.
func (r Recipe) HasIngredientImages() bool { return len(r.IngredientImages) > 0 }

// PendingImages returns one unfetched entry per source ingredient.
func (r Recipe) PendingImages() []IngredientImage {
	images := make([]IngredientImage, len(r.SourceIngredients))
	for i, name := range r.SourceIngredients {
		images[i] = IngredientImage{Name: name}
	}
	return images
}

// Clone returns a deep copy.
func (r Recipe) Clone() Recipe {
	c := r
	c.SourceIngredients = append([]string(nil), r.SourceIngredients...)
	c.IngredientImages = cloneImages(r.IngredientImages)
	return c
}

func cloneImages(images []IngredientImage) []IngredientImage {
	if images == nil {
		return nil
	}
	out := make([]IngredientImage, len(images))
	for i, img := range images {
		out[i] = IngredientImage{Name: img.Name}
		if img.ImageURL != nil {
			url := *img.ImageURL
			out[i].ImageURL = &url
		}
	}
	return out
}

// FunIngredient is an ingredient with a playful remark, produced by the
// recipe-name search.
type FunIngredient struct {
	Name    string `json:"name"`
	Comment string `json:"comment"`
}

// FunSearch is the state of the recipe-name search.
type FunSearch struct {
	Query       string          `json:"query,omitempty"`
	Loading     bool            `json:"loading,omitempty"`
	Ingredients []FunIngredient `json:"ingredients,omitempty"`
}
