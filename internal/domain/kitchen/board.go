package kitchen

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Phase is the stage of recipe generation for the current ingredient list.
// Photo analysis is tracked separately so a new upload never disturbs it.
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseRecipesLoading Phase = "recipes-loading"
	PhaseRecipesReady   Phase = "recipes-ready"
)

const maxNotifications = 5

// StaleAfter bounds how long analysis or an image fan-out may stay marked as
// running. Older marks were left behind by a process that stopped.
const StaleAfter = 5 * time.Minute

// Variant selects how a notification is rendered.
type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Notification is a transient, dismissible message for the user.
type Notification struct {
	ID          uuid.UUID `json:"id"`
	Variant     Variant   `json:"variant"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ImageFetch is an unfinished image fan-out.
type ImageFetch struct {
	RecipeID  uuid.UUID `json:"recipe_id"`
	StartedAt time.Time `json:"started_at"`
}

// Board is the complete state of one browser session.
//
// AnalyzingSince is set while a photo is analyzed. RecipesFor records the
// ingredient list recipe generation was last started for, so a list triggers
// generation at most once. ImagesLoading marks the single recipe shown as
// loading images; InFlight lists every recipe with an unfinished image
// fan-out.
type Board struct {
	SessionID      string         `json:"session_id"`
	Phase          Phase          `json:"phase"`
	AnalyzingSince time.Time      `json:"analyzing_since"`
	Ingredients    IngredientList `json:"ingredients"`
	RecipesFor     uuid.UUID      `json:"recipes_for"`
	Recipes        []Recipe       `json:"recipes,omitempty"`
	Selected       *Recipe        `json:"selected,omitempty"`
	ImagesLoading  uuid.UUID      `json:"images_loading"`
	InFlight       []ImageFetch   `json:"in_flight,omitempty"`
	Search         FunSearch      `json:"search"`
	Notifications  []Notification `json:"notifications,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// NewBoard returns an idle board.
func NewBoard(sessionID string) *Board {
	return &Board{SessionID: sessionID, Phase: PhaseIdle, UpdatedAt: time.Now()}
}

// Touch records a modification.
func (b *Board) Touch(now time.Time) { b.UpdatedAt = now }

// Analyzing reports whether a photo is being analyzed.
func (b *Board) Analyzing() bool { return !b.AnalyzingSince.IsZero() }

// BeginAnalysis marks a photo analysis as started at now.
func (b *Board) BeginAnalysis(now time.Time) error {
	if b.Analyzing() {
		return ErrAnalysisInProgress
	}
	b.AnalyzingSince = now
	return nil
}

// FailAnalysis ends the analysis. Recipes and their generation are untouched.
func (b *Board) FailAnalysis() {
	b.AnalyzingSince = time.Time{}
}

// CompleteAnalysis ends the analysis, replaces the ingredient list wholesale
// and clears the recipes derived from the previous one.
func (b *Board) CompleteAnalysis(items []string) IngredientList {
	b.AnalyzingSince = time.Time{}
	b.Ingredients = NewIngredientList(items)
	b.Recipes = nil
	if len(items) == 0 {
		b.Phase = PhaseIdle
	} else {
		b.Phase = PhaseRecipesLoading
	}
	return b.Ingredients
}

// ClaimRecipeGeneration reports whether recipe generation should start for
// list. It returns true at most once per list and only while list is the
// current one. Displayed recipes are cleared when it does.
func (b *Board) ClaimRecipeGeneration(list IngredientList) bool {
	if list.IsZero() || len(list.Items) == 0 {
		return false
	}
	if list.ID != b.Ingredients.ID || b.RecipesFor == list.ID {
		return false
	}
	b.RecipesFor = list.ID
	b.Recipes = nil
	b.Phase = PhaseRecipesLoading
	return true
}

// CompleteRecipeGeneration installs the recipes generated for list. Results
// for a list that has since been replaced are discarded and false is
// returned.
func (b *Board) CompleteRecipeGeneration(list IngredientList, drafts []RecipeDraft) bool {
	if list.ID != b.Ingredients.ID {
		return false
	}

	recipes := make([]Recipe, 0, len(drafts))
	for _, d := range drafts {
		recipes = append(recipes, Recipe{
			ID:                uuid.New(),
			Name:              d.Name,
			Description:       d.Description,
			ImageURL:          PlaceholderRecipeImage,
			SourceIngredients: append([]string(nil), list.Items...),
		})
	}
	b.Recipes = recipes
	b.Phase = PhaseRecipesReady
	return true
}

// FailRecipeGeneration returns to idle with no recipes, unless list has been
// superseded.
func (b *Board) FailRecipeGeneration(list IngredientList) bool {
	if list.ID != b.Ingredients.ID {
		return false
	}
	b.Recipes = nil
	b.Phase = PhaseIdle
	return true
}

// Recipe looks a recipe up by ID.
func (b *Board) Recipe(id uuid.UUID) (Recipe, bool) {
	for _, r := range b.Recipes {
		if r.ID == id {
			return r, true
		}
	}
	return Recipe{}, false
}

// SelectRecipe shows the recipe and reports whether its ingredient images
// must be fetched. A fetch is requested only for a recipe with source
// ingredients, no images yet and no fan-out already running; the shown copy
// then carries one pending entry per ingredient and the recipe becomes the
// images-loading target. The fetch is recorded as started at now.
func (b *Board) SelectRecipe(id uuid.UUID, now time.Time) (Recipe, bool, error) {
	r, ok := b.Recipe(id)
	if !ok {
		return Recipe{}, false, ErrRecipeNotFound
	}

	shown := r.Clone()
	b.Selected = &shown
	if len(r.SourceIngredients) == 0 || r.HasIngredientImages() {
		return shown.Clone(), false, nil
	}

	shown.IngredientImages = r.PendingImages()
	b.ImagesLoading = id
	if b.IsFetching(id) {
		return shown.Clone(), false, nil
	}
	b.InFlight = append(b.InFlight, ImageFetch{RecipeID: id, StartedAt: now})
	return shown.Clone(), true, nil
}

// IsFetching reports whether an image fan-out for the recipe is running.
func (b *Board) IsFetching(id uuid.UUID) bool {
	return slices.ContainsFunc(b.InFlight, func(f ImageFetch) bool { return f.RecipeID == id })
}

// IsLoadingImages reports whether the recipe is the images-loading target.
func (b *Board) IsLoadingImages(id uuid.UUID) bool {
	return id != uuid.Nil && b.ImagesLoading == id
}

// CompleteImageFetch stores the resolved gallery of a recipe, in source
// order, and mirrors it into the shown copy when that recipe is still
// selected. The loading marker is cleared only if it still points at the
// recipe. It returns false if the recipe is no longer on the board.
func (b *Board) CompleteImageFetch(id uuid.UUID, images []IngredientImage) bool {
	b.forgetFetch(id)

	idx := slices.IndexFunc(b.Recipes, func(r Recipe) bool { return r.ID == id })
	if idx < 0 {
		return false
	}
	b.Recipes[idx].IngredientImages = cloneImages(images)

	if b.Selected != nil && b.Selected.ID == id {
		b.Selected.IngredientImages = cloneImages(images)
	}
	return true
}

// AbortImageFetch forgets a fan-out that will never complete. The recipe
// keeps no images, so selecting it again starts a new fetch.
func (b *Board) AbortImageFetch(id uuid.UUID) {
	b.forgetFetch(id)
	if b.Selected != nil && b.Selected.ID == id && slices.ContainsFunc(b.Selected.IngredientImages, IngredientImage.Pending) {
		b.Selected.IngredientImages = nil
	}
}

// ReclaimStale ends analysis and image fan-outs marked as running for
// longer than StaleAfter. It reports whether the board changed.
func (b *Board) ReclaimStale(now time.Time) bool {
	changed := false
	if b.Analyzing() && now.Sub(b.AnalyzingSince) > StaleAfter {
		b.FailAnalysis()
		changed = true
	}
	for _, f := range slices.Clone(b.InFlight) {
		if now.Sub(f.StartedAt) > StaleAfter {
			b.AbortImageFetch(f.RecipeID)
			changed = true
		}
	}
	return changed
}

func (b *Board) forgetFetch(id uuid.UUID) {
	b.InFlight = slices.DeleteFunc(b.InFlight, func(f ImageFetch) bool { return f.RecipeID == id })
	if b.ImagesLoading == id {
		b.ImagesLoading = uuid.Nil
	}
}

// CloseRecipe hides the selected recipe.
func (b *Board) CloseRecipe() {
	b.Selected = nil
}

// BeginSearch clears the previous search result and starts a new one.
func (b *Board) BeginSearch(query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", ErrEmptyRecipeName
	}
	if b.Search.Loading {
		return "", ErrSearchInProgress
	}
	b.Search = FunSearch{Query: query, Loading: true}
	return query, nil
}

// CompleteSearch stores the ingredients found for query.
func (b *Board) CompleteSearch(query string, ingredients []FunIngredient) bool {
	if !b.Search.Loading || b.Search.Query != query {
		return false
	}
	b.Search.Loading = false
	b.Search.Ingredients = append([]FunIngredient(nil), ingredients...)
	return true
}

// FailSearch ends a search without results.
func (b *Board) FailSearch(query string) bool {
	if !b.Search.Loading || b.Search.Query != query {
		return false
	}
	b.Search.Loading = false
	b.Search.Ingredients = nil
	return true
}

// Notify queues a notification, keeping only the most recent ones.
func (b *Board) Notify(variant Variant, title, description string) Notification {
	n := Notification{
		ID:          uuid.New(),
		Variant:     variant,
		Title:       title,
		Description: description,
		CreatedAt:   time.Now(),
	}
	b.Notifications = append(b.Notifications, n)
	if over := len(b.Notifications) - maxNotifications; over > 0 {
		b.Notifications = slices.Delete(b.Notifications, 0, over)
	}
	return n
}

// Dismiss removes a notification. It reports whether one was removed.
func (b *Board) Dismiss(id uuid.UUID) bool {
	before := len(b.Notifications)
	b.Notifications = slices.DeleteFunc(b.Notifications, func(n Notification) bool { return n.ID == id })
	return len(b.Notifications) != before
}
