package outbound

import (
	"context"

	"github.com/alchemorsel/pantrylens/internal/domain/schema"
)

// RecipeAI performs one model round trip per call. Implementations never
// retry and impose no deadline of their own.
type RecipeAI interface {
	AnalyzeImage(ctx context.Context, in schema.AnalyzeImageInput) (schema.AnalyzeImageOutput, error)
	GenerateRecipes(ctx context.Context, in schema.GenerateRecipesInput) (schema.GenerateRecipesOutput, error)
	GenerateIngredientImage(ctx context.Context, in schema.IngredientImageInput) (schema.IngredientImageOutput, error)
	GenerateIngredientsForRecipe(ctx context.Context, in schema.RecipeIngredientsInput) (schema.RecipeIngredientsOutput, error)
}
