// Package schema defines the request and response contracts of the four AI
// tasks and the functions that decode and validate them.
package schema

// Task identifies one AI task. It doubles as a metrics and log label.
type Task string

const (
	TaskAnalyzeImage      Task = "analyze_image"
	TaskGenerateRecipes   Task = "generate_recipes"
	TaskIngredientImage   Task = "ingredient_image"
	TaskRecipeIngredients Task = "recipe_ingredients"
)

// Tasks lists every task in a stable order.
var Tasks = []Task{TaskAnalyzeImage, TaskGenerateRecipes, TaskIngredientImage, TaskRecipeIngredients}

// AnalyzeImageInput carries the photo to analyze as a data URI
// ("data:<mimetype>;base64,<encoded_data>").
type AnalyzeImageInput struct {
	PhotoDataURI string `json:"photoDataUri" validate:"required,datauri"`
}

// AnalyzeImageOutput lists the identified ingredients.
type AnalyzeImageOutput struct {
	Ingredients []string `json:"ingredients" validate:"required,dive,required"`
}

// GenerateRecipesInput lists the ingredients to cook with.
type GenerateRecipesInput struct {
	Ingredients []string `json:"ingredients" validate:"required,min=1,dive,required"`
}

// RecipeSuggestion is one generated recipe.
type RecipeSuggestion struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// GenerateRecipesOutput lists the generated recipes.
type GenerateRecipesOutput struct {
	Recipes []RecipeSuggestion `json:"recipes" validate:"required,dive"`
}

// IngredientImageInput names the ingredient to illustrate.
type IngredientImageInput struct {
	IngredientName string `json:"ingredientName" validate:"required"`
}

// IngredientImageOutput holds the generated image, usually as a data URI.
type IngredientImageOutput struct {
	ImageURL string `json:"imageUrl" validate:"required,datauri|url"`
}

// RecipeIngredientsInput names the recipe to look up.
type RecipeIngredientsInput struct {
	RecipeName string `json:"recipeName" validate:"required"`
}

// FunIngredient is an ingredient with a playful remark.
type FunIngredient struct {
	Name    string `json:"name" validate:"required"`
	Comment string `json:"comment"`
}

// RecipeIngredientsOutput lists the ingredients of a named recipe.
type RecipeIngredientsOutput struct {
	Ingredients []FunIngredient `json:"ingredients" validate:"required,dive"`
}
