package kitchen

import "fmt"

// Notification titles
const (
	titleError                   = "Error"
	titleAnalysisComplete        = "Analysis Complete"
	titleAnalysisFailed          = "Analysis Failed"
	titleRecipesGenerated        = "Recipes Generated!"
	titleNoRecipes               = "No Recipes Found"
	titleRecipeGenerationFailed  = "Recipe Generation Failed"
	titleFetchingImages          = "Fetching Ingredient Images"
	titleImagesReady             = "Ingredient Images Ready"
	titleImageGenerationFailed   = "Ingredient Image Generation Failed"
	titleEmptySearch             = "Empty Search"
	titleIngredientsGenerated    = "Ingredients Generated!"
	titleNoIngredients           = "No Ingredients Found"
	titleIngredientGenerationErr = "Ingredient Generation Failed"
)

const (
	descNoRecipes          = "We couldn't find any recipes with the identified ingredients. Try another photo!"
	descImagesInterrupted  = "An unexpected error occurred while loading ingredient images."
	msgSelectImage         = "Please select an image file."
	msgEmptyRecipeName     = "Please enter a recipe name to generate its ingredients."
	msgImageFailedFallback = "Could not generate image."
)

func plural(n int, noun string) string {
	return fmt.Sprintf("%d %s(s)", n, noun)
}

func descIngredientsFound(n int) string {
	return fmt.Sprintf("Found %s.", plural(n, "ingredient"))
}

func descRecipesFound(n int) string {
	return fmt.Sprintf("Found %s for you.", plural(n, "recipe"))
}

func descFetchingImages(recipe string) string {
	return fmt.Sprintf("Generating images for %s's ingredients. This may take a moment...", recipe)
}

func descImagesReady(recipe string) string {
	return fmt.Sprintf("Images for %s are loaded.", recipe)
}

func descFunIngredientsFound(n int, recipe string) string {
	return fmt.Sprintf("Found %s for %s with a fun twist!", plural(n, "ingredient"), recipe)
}

func descNoFunIngredients(recipe string) string {
	return fmt.Sprintf("Could not find common ingredients for %s. Try a different recipe name.", recipe)
}
