package gemini

import (
	"strings"
	"text/template"
)

// The photo is sent as an inline part between the two analysis texts.
const (
	analyzeImagePrompt = `You are an expert chef and botanist.

You will use this information to identify the ingredients in the photo.

Identify the ingredients from the photo.

Photo:`

	analyzeImageInstruction = `Return the ingredients as a list of strings.`
)

var (
	generateRecipesPrompt = template.Must(template.New("generate_recipes").Funcs(template.FuncMap{"join": strings.Join}).Parse(
		`You are a recipe expert. Given a list of ingredients, you will generate a list of possible recipes that can be made using those ingredients.

Ingredients: {{join .Ingredients ", "}}

Recipes:`))

	ingredientImagePrompt = template.Must(template.New("ingredient_image").Parse(
		`Generate a photorealistic image of a single ripe {{.IngredientName}} on a clean, plain white background. The ingredient should be clearly visible and well-lit. Focus solely on the ingredient itself.`))

	recipeIngredientsPrompt = template.Must(template.New("recipe_ingredients").Parse(
		`You are an expert chef with a playful personality. Given the name of a recipe, list the common ingredients needed to make it.
For each ingredient, provide its name and a very short, fun, and quirky comment about it.

Recipe Name: {{.RecipeName}}

Return the ingredients as a list of objects, where each object has a "name" field (string) for the ingredient and a "comment" field (string) for your fun remark.
Example for "Pancakes":
[
  { "name": "Flour", "comment": "The fluffy foundation!" },
  { "name": "Eggs", "comment": "Don't be chicken to use 'em!" },
  { "name": "Milk", "comment": "Got milk? You'll need it!" }
]`))
)

func render(t *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}
