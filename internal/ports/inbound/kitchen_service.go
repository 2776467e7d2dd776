// Package inbound defines the interfaces for inbound ports (primary/driving adapters)
// These are the interfaces that the application exposes to the outside world
package inbound

import (
	"context"

	"github.com/alchemorsel/pantrylens/internal/domain/kitchen"
	"github.com/alchemorsel/pantrylens/internal/domain/schema"
	"github.com/google/uuid"
)

// RecipeActions exposes the AI tasks to callers. Every error it returns is an
// *errors.AppError whose message can be shown to a user.
type RecipeActions interface {
	AnalyzeImage(ctx context.Context, in schema.AnalyzeImageInput) (schema.AnalyzeImageOutput, error)
	GenerateRecipes(ctx context.Context, in schema.GenerateRecipesInput) (schema.GenerateRecipesOutput, error)
	GenerateIngredientImage(ctx context.Context, in schema.IngredientImageInput) (schema.IngredientImageOutput, error)
	GenerateIngredientsForRecipe(ctx context.Context, in schema.RecipeIngredientsInput) (schema.RecipeIngredientsOutput, error)
}

// KitchenService drives the photo → recipes → ingredient images flow of one
// browser session.
type KitchenService interface {
	// Commands
	SubmitPhoto(ctx context.Context, sessionID string, photo Photo) (*PhotoResult, error)
	SelectRecipe(ctx context.Context, sessionID string, recipeID uuid.UUID) (*Selection, error)
	CloseRecipe(ctx context.Context, sessionID string) error
	SearchRecipeIngredients(ctx context.Context, sessionID, recipeName string) (*kitchen.FunSearch, error)
	DismissNotification(ctx context.Context, sessionID string, notificationID uuid.UUID) error

	// Queries
	State(ctx context.Context, sessionID string) (*kitchen.Board, error)
}

// Photo is an uploaded image.
type Photo struct {
	Filename    string
	ContentType string
	Data        []byte
	// Size is the upload size reported by the transport. It may exceed
	// len(Data) when the body was cut short.
	Size int64
}

// PhotoResult is the outcome of a successful analysis. Recipes is closed
// once recipe generation for Ingredients has finished; it is already closed
// when no generation was started.
type PhotoResult struct {
	Ingredients kitchen.IngredientList
	Recipes     <-chan struct{}
}

// Selection is the recipe shown after a selection. Images is closed when the
// ingredient-image fan-out has finished; it is already closed when no
// fan-out was started.
type Selection struct {
	Recipe  kitchen.Recipe
	Fetched bool
	Images  <-chan struct{}
}
