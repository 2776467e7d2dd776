// Package actions exposes the four AI tasks to the rest of the application.
// It refuses to run without a configured credential and turns every failure
// into an error whose message is safe to show to a user.
package actions

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/alchemorsel/pantrylens/internal/domain/schema"
	"github.com/alchemorsel/pantrylens/internal/infrastructure/monitoring"
	"github.com/alchemorsel/pantrylens/internal/ports/inbound"
	"github.com/alchemorsel/pantrylens/internal/ports/outbound"
	"github.com/alchemorsel/pantrylens/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// MissingCredentialMessage is returned by every action while no API key is
// configured.
const MissingCredentialMessage = "The Google AI API key is not configured. Please set the GOOGLE_API_KEY environment variable."

// Invalid-input messages per task
var invalidInputMessages = map[schema.Task]string{
	schema.TaskAnalyzeImage:      "Please select an image file.",
	schema.TaskGenerateRecipes:   "Please provide at least one ingredient.",
	schema.TaskIngredientImage:   "Please provide an ingredient name.",
	schema.TaskRecipeIngredients: "Please enter a recipe name to generate its ingredients.",
}

// Service implements inbound.RecipeActions on top of an outbound.RecipeAI.
type Service struct {
	ai            outbound.RecipeAI
	hasCredential bool
	metrics       *monitoring.MetricsCollector
	tracer        *monitoring.TracingProvider
	logger        *zap.Logger
}

var _ inbound.RecipeActions = (*Service)(nil)

// NewService creates the action layer. client may be nil when hasCredential
// is false.
func NewService(
	client outbound.RecipeAI,
	hasCredential bool,
	metrics *monitoring.MetricsCollector,
	tracer *monitoring.TracingProvider,
	logger *zap.Logger,
) *Service {
	return &Service{
		ai:            client,
		hasCredential: hasCredential && client != nil,
		metrics:       metrics,
		tracer:        tracer,
		logger:        logger.Named("actions"),
	}
}

// AnalyzeImage lists the ingredients visible in a photo
func (s *Service) AnalyzeImage(ctx context.Context, in schema.AnalyzeImageInput) (schema.AnalyzeImageOutput, error) {
	return invoke(ctx, s, schema.TaskAnalyzeImage, in, outbound.RecipeAI.AnalyzeImage,
		"Failed to analyze image. Please try again.")
}

// GenerateRecipes suggests recipes for the given ingredients
func (s *Service) GenerateRecipes(ctx context.Context, in schema.GenerateRecipesInput) (schema.GenerateRecipesOutput, error) {
	return invoke(ctx, s, schema.TaskGenerateRecipes, in, outbound.RecipeAI.GenerateRecipes,
		"Failed to generate recipes. Please try again.",
		attribute.Int("ai.ingredients", len(in.Ingredients)))
}

// GenerateIngredientImage renders one ingredient
func (s *Service) GenerateIngredientImage(ctx context.Context, in schema.IngredientImageInput) (schema.IngredientImageOutput, error) {
	return invoke(ctx, s, schema.TaskIngredientImage, in, outbound.RecipeAI.GenerateIngredientImage,
		fmt.Sprintf("Failed to generate image for %s. Please try again.", in.IngredientName),
		attribute.String("ai.ingredient", in.IngredientName))
}

// GenerateIngredientsForRecipe lists the ingredients of a named recipe
func (s *Service) GenerateIngredientsForRecipe(ctx context.Context, in schema.RecipeIngredientsInput) (schema.RecipeIngredientsOutput, error) {
	return invoke(ctx, s, schema.TaskRecipeIngredients, in, outbound.RecipeAI.GenerateIngredientsForRecipe,
		fmt.Sprintf("Failed to generate ingredients for %s. Please try again.", in.RecipeName),
		attribute.String("ai.recipe", in.RecipeName))
}

func invoke[I, O any](
	ctx context.Context,
	s *Service,
	task schema.Task,
	in I,
	call func(outbound.RecipeAI, context.Context, I) (O, error),
	failure string,
	attrs ...attribute.KeyValue,
) (O, error) {
	var zero O

	if !s.hasCredential {
		s.metrics.AIRequest(string(task), monitoring.OutcomeConfigError, 0)
		return zero, errors.NewConfigurationError(MissingCredentialMessage)
	}

	ctx, span := s.tracer.StartAISpan(ctx, string(task), attrs...)
	defer span.End()

	start := time.Now()
	out, err := call(s.ai, ctx, in)
	duration := time.Since(start)

	if err == nil {
		s.metrics.AIRequest(string(task), monitoring.OutcomeSuccess, duration)
		return out, nil
	}

	s.tracer.RecordError(ctx, err)

	var inErr *schema.InputError
	if stderrors.As(err, &inErr) {
		s.metrics.AIRequest(string(task), monitoring.OutcomeInvalidInput, duration)
		s.logger.Info("Rejected invalid AI input",
			zap.String("task", string(task)),
			zap.Strings("fields", inErr.Violations.Fields()),
		)
		return zero, errors.NewValidationErrors(invalidInputMessages[task], inErr.Violations).WithCause(err)
	}

	s.metrics.AIRequest(string(task), monitoring.OutcomeServiceError, duration)
	s.logger.Error("AI task failed",
		zap.String("task", string(task)),
		zap.Duration("duration", duration),
		zap.Error(err),
	)
	return zero, errors.NewServiceError(failure, err)
}
