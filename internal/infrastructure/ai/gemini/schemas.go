package gemini

import "google.golang.org/genai"

var ingredientListSchema = &genai.Schema{
	Type: "object",
	Properties: map[string]*genai.Schema{
		"ingredients": {
			Type:        "array",
			Description: "Ingredients identified in the photo.",
			Items:       &genai.Schema{Type: "string"},
		},
	},
	Required: []string{"ingredients"},
}

var recipeListSchema = &genai.Schema{
	Type: "object",
	Properties: map[string]*genai.Schema{
		"recipes": {
			Type:        "array",
			Description: "Recipes that can be made with the ingredients.",
			Items: &genai.Schema{
				Type: "object",
				Properties: map[string]*genai.Schema{
					"name":        {Type: "string", Description: "The name of the recipe."},
					"description": {Type: "string", Description: "A short description of the recipe."},
				},
				Required: []string{"name", "description"},
			},
		},
	},
	Required: []string{"recipes"},
}

var funIngredientListSchema = &genai.Schema{
	Type: "object",
	Properties: map[string]*genai.Schema{
		"ingredients": {
			Type:        "array",
			Description: "Ingredients of the recipe.",
			Items: &genai.Schema{
				Type: "object",
				Properties: map[string]*genai.Schema{
					"name":    {Type: "string", Description: "The ingredient."},
					"comment": {Type: "string", Description: "A short, fun remark about the ingredient."},
				},
				Required: []string{"name", "comment"},
			},
		},
	},
	Required: []string{"ingredients"},
}
