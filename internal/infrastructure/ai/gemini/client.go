// Package gemini implements the recipe AI port on top of Google's Gemini
// models through the google.golang.org/genai SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alchemorsel/pantrylens/internal/domain/schema"
	"github.com/alchemorsel/pantrylens/internal/ports/outbound"
	apperrors "github.com/alchemorsel/pantrylens/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// ErrMissingAPIKey is returned by NewClient without a credential.
var ErrMissingAPIKey = errors.New("gemini: API key is not configured")

// ErrNoImage is returned when the image model answers without inline image
// data.
var ErrNoImage = errors.New("gemini: image generation failed or no image was returned")

// Config is the read-only configuration of a Client.
type Config struct {
	APIKey      string
	VisionModel string
	TextModel   string
	ImageModel  string
}

// generator is the subset of *genai.Models the client calls.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client performs exactly one GenerateContent call per task invocation.
type Client struct {
	cfg    Config
	models generator
	logger *zap.Logger
}

var _ outbound.RecipeAI = (*Client)(nil)

// NewClient creates a Gemini-backed client. No request is sent until a task
// is invoked.
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	sdk, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	logger.Info("Gemini client initialized",
		zap.String("vision_model", cfg.VisionModel),
		zap.String("text_model", cfg.TextModel),
		zap.String("image_model", cfg.ImageModel),
	)

	return newClient(cfg, sdk.Models, logger), nil
}

func newClient(cfg Config, models generator, logger *zap.Logger) *Client {
	return &Client{cfg: cfg, models: models, logger: logger.Named("gemini")}
}

// AnalyzeImage lists the ingredients visible in a photo.
func (c *Client) AnalyzeImage(ctx context.Context, in schema.AnalyzeImageInput) (schema.AnalyzeImageOutput, error) {
	if err := schema.ValidateInput(schema.TaskAnalyzeImage, in); err != nil {
		return schema.AnalyzeImageOutput{}, err
	}

	photo, err := schema.ParseDataURI(in.PhotoDataURI)
	if err != nil {
		return schema.AnalyzeImageOutput{}, &schema.InputError{
			Task:       schema.TaskAnalyzeImage,
			Violations: apperrors.ValidationErrors{{Field: "photoDataUri", Tag: "datauri", Message: err.Error()}},
			Err:        err,
		}
	}

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{Text: analyzeImagePrompt},
			{InlineData: &genai.Blob{MIMEType: photo.MIMEType, Data: photo.Data}},
			{Text: analyzeImageInstruction},
		},
	}}

	resp, err := c.generate(ctx, schema.TaskAnalyzeImage, c.cfg.VisionModel, contents, jsonConfig(ingredientListSchema))
	if err != nil {
		return schema.AnalyzeImageOutput{}, err
	}

	return schema.DecodeAnalyzeImageOutput([]byte(responseText(resp)))
}

// GenerateRecipes suggests recipes for a list of ingredients.
func (c *Client) GenerateRecipes(ctx context.Context, in schema.GenerateRecipesInput) (schema.GenerateRecipesOutput, error) {
	if err := schema.ValidateInput(schema.TaskGenerateRecipes, in); err != nil {
		return schema.GenerateRecipesOutput{}, err
	}

	prompt, err := render(generateRecipesPrompt, in)
	if err != nil {
		return schema.GenerateRecipesOutput{}, fmt.Errorf("render prompt: %w", err)
	}

	resp, err := c.generate(ctx, schema.TaskGenerateRecipes, c.cfg.TextModel, genai.Text(prompt), jsonConfig(recipeListSchema))
	if err != nil {
		return schema.GenerateRecipesOutput{}, err
	}

	return schema.DecodeGenerateRecipesOutput([]byte(responseText(resp)))
}

// GenerateIngredientImage renders one photorealistic ingredient image and
// returns it as a data URI.
func (c *Client) GenerateIngredientImage(ctx context.Context, in schema.IngredientImageInput) (schema.IngredientImageOutput, error) {
	if err := schema.ValidateInput(schema.TaskIngredientImage, in); err != nil {
		return schema.IngredientImageOutput{}, err
	}

	prompt, err := render(ingredientImagePrompt, in)
	if err != nil {
		return schema.IngredientImageOutput{}, fmt.Errorf("render prompt: %w", err)
	}

	// The image model rejects IMAGE-only modalities.
	config := &genai.GenerateContentConfig{ResponseModalities: []string{"TEXT", "IMAGE"}}

	resp, err := c.generate(ctx, schema.TaskIngredientImage, c.cfg.ImageModel, genai.Text(prompt), config)
	if err != nil {
		return schema.IngredientImageOutput{}, err
	}

	blob := firstImage(resp)
	if blob == nil {
		return schema.IngredientImageOutput{}, ErrNoImage
	}

	out := schema.IngredientImageOutput{ImageURL: schema.EncodeDataURI(blob.MIMEType, blob.Data)}
	if err := schema.ValidateIngredientImageOutput(out); err != nil {
		return schema.IngredientImageOutput{}, err
	}
	return out, nil
}

// GenerateIngredientsForRecipe lists the ingredients of a named recipe, each
// with a playful comment.
func (c *Client) GenerateIngredientsForRecipe(ctx context.Context, in schema.RecipeIngredientsInput) (schema.RecipeIngredientsOutput, error) {
	if err := schema.ValidateInput(schema.TaskRecipeIngredients, in); err != nil {
		return schema.RecipeIngredientsOutput{}, err
	}

	prompt, err := render(recipeIngredientsPrompt, in)
	if err != nil {
		return schema.RecipeIngredientsOutput{}, fmt.Errorf("render prompt: %w", err)
	}

	resp, err := c.generate(ctx, schema.TaskRecipeIngredients, c.cfg.TextModel, genai.Text(prompt), jsonConfig(funIngredientListSchema))
	if err != nil {
		return schema.RecipeIngredientsOutput{}, err
	}

	return schema.DecodeRecipeIngredientsOutput([]byte(responseText(resp)))
}

func (c *Client) generate(ctx context.Context, task schema.Task, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	start := time.Now()
	resp, err := c.models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		c.logger.Debug("GenerateContent failed",
			zap.String("task", string(task)),
			zap.String("model", model),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%s: generate content with %s: %w", task, model, err)
	}

	c.logger.Debug("GenerateContent completed",
		zap.String("task", string(task)),
		zap.String("model", model),
		zap.Duration("duration", time.Since(start)),
	)
	return resp, nil
}

func jsonConfig(s *genai.Schema) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   s,
	}
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// firstImage returns the first inline image of any candidate.
func firstImage(resp *genai.GenerateContentResponse) *genai.Blob {
	if resp == nil {
		return nil
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			if strings.HasPrefix(part.InlineData.MIMEType, "image/") {
				return part.InlineData
			}
		}
	}
	return nil
}
