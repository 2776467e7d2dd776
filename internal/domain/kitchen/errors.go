package kitchen

import "errors"

var (
	ErrRecipeNotFound     = errors.New("recipe not found")
	ErrAnalysisInProgress = errors.New("a photo is already being analyzed")
	ErrSearchInProgress   = errors.New("a recipe search is already running")
	ErrEmptyRecipeName    = errors.New("recipe name is empty")
)
