// Package testutils provides test data factories for consistent test data generation
package testutils

import (
	"bytes"
	"fmt"

	"github.com/alchemorsel/pantrylens/internal/domain/kitchen"
	"github.com/alchemorsel/pantrylens/internal/domain/schema"
	"github.com/alchemorsel/pantrylens/internal/ports/inbound"
	"github.com/brianvoe/gofakeit/v6"
)

// pngSignature makes http.DetectContentType report image/png
var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// KitchenFactory provides methods to create test ingredients, recipes and
// photos
type KitchenFactory struct {
	faker *gofakeit.Faker
}

// NewKitchenFactory creates a new kitchen factory with seeded faker
func NewKitchenFactory(seed int64) *KitchenFactory {
	return &KitchenFactory{
		faker: gofakeit.New(seed),
	}
}

// Ingredients returns n distinct ingredient names
func (f *KitchenFactory) Ingredients(n int) []string {
	seen := make(map[string]bool, n)
	items := make([]string, 0, n)
	for len(items) < n {
		var name string
		if len(items)%2 == 0 {
			name = f.faker.Vegetable()
		} else {
			name = f.faker.Fruit()
		}
		if seen[name] {
			name = fmt.Sprintf("%s %d", name, len(items))
		}
		seen[name] = true
		items = append(items, name)
	}
	return items
}

// RecipeSuggestions returns n generated recipe suggestions
func (f *KitchenFactory) RecipeSuggestions(n int) []schema.RecipeSuggestion {
	out := make([]schema.RecipeSuggestion, n)
	for i := range out {
		out[i] = schema.RecipeSuggestion{
			Name:        fmt.Sprintf("%s #%d", f.faker.Dinner(), i+1),
			Description: f.faker.Sentence(10),
		}
	}
	return out
}

// RecipeDrafts converts suggestions into board drafts
func RecipeDrafts(suggestions []schema.RecipeSuggestion) []kitchen.RecipeDraft {
	drafts := make([]kitchen.RecipeDraft, len(suggestions))
	for i, s := range suggestions {
		drafts[i] = kitchen.RecipeDraft{Name: s.Name, Description: s.Description}
	}
	return drafts
}

// FunIngredients returns n ingredients with playful comments
func (f *KitchenFactory) FunIngredients(n int) []schema.FunIngredient {
	out := make([]schema.FunIngredient, n)
	for i, name := range f.Ingredients(n) {
		out[i] = schema.FunIngredient{Name: name, Comment: f.faker.Sentence(6)}
	}
	return out
}

// RecipeName returns a plausible recipe name
func (f *KitchenFactory) RecipeName() string {
	return f.faker.Lunch()
}

// Photo returns a PNG upload of exactly size bytes
func (f *KitchenFactory) Photo(size int) inbound.Photo {
	if size < len(pngSignature) {
		size = len(pngSignature)
	}
	data := make([]byte, size)
	copy(data, pngSignature)
	return inbound.Photo{
		Filename:    f.faker.Word() + ".png",
		ContentType: "image/png",
		Data:        data,
	}
}

// TextFile returns an upload that is not an image
func (f *KitchenFactory) TextFile() inbound.Photo {
	return inbound.Photo{
		Filename:    f.faker.Word() + ".txt",
		ContentType: "text/plain",
		Data:        bytes.Repeat([]byte("plain text "), 16),
	}
}

// ImageDataURI returns a small generated image as a data URI
func (f *KitchenFactory) ImageDataURI() string {
	return schema.EncodeDataURI("image/png", append(pngSignature, []byte(f.faker.Word())...))
}
