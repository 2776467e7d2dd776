package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/alchemorsel/pantrylens/internal/ports/inbound"
	"github.com/alchemorsel/pantrylens/pkg/errors"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// maxAPIBody bounds JSON request bodies. Photos travel base64 encoded.
const maxAPIBody = 16 << 20

// APIHandlers exposes the AI actions as a stateless JSON API
type APIHandlers struct {
	actions inbound.RecipeActions
	logger  *zap.Logger
}

// NewAPIHandlers creates a new API handlers instance
func NewAPIHandlers(actions inbound.RecipeActions, logger *zap.Logger) *APIHandlers {
	return &APIHandlers{
		actions: actions,
		logger:  logger.Named("api"),
	}
}

// APIResponse is the body of a successful API request. Failures are
// written as errors.ErrorResponse.
type APIResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

// Routes mounts the API routes under /ai
func (h *APIHandlers) Routes(r chi.Router) {
	r.Route("/ai", func(r chi.Router) {
		r.Post("/analyze-image", h.AnalyzeImage)
		r.Post("/recipes", h.GenerateRecipes)
		r.Post("/ingredient-image", h.GenerateIngredientImage)
		r.Post("/recipe-ingredients", h.GenerateIngredientsForRecipe)
	})
}

// AnalyzeImage handles POST /api/v1/ai/analyze-image
func (h *APIHandlers) AnalyzeImage(w http.ResponseWriter, r *http.Request) {
	handle(h, w, r, h.actions.AnalyzeImage)
}

// GenerateRecipes handles POST /api/v1/ai/recipes
func (h *APIHandlers) GenerateRecipes(w http.ResponseWriter, r *http.Request) {
	handle(h, w, r, h.actions.GenerateRecipes)
}

// GenerateIngredientImage handles POST /api/v1/ai/ingredient-image
func (h *APIHandlers) GenerateIngredientImage(w http.ResponseWriter, r *http.Request) {
	handle(h, w, r, h.actions.GenerateIngredientImage)
}

// GenerateIngredientsForRecipe handles POST /api/v1/ai/recipe-ingredients
func (h *APIHandlers) GenerateIngredientsForRecipe(w http.ResponseWriter, r *http.Request) {
	handle(h, w, r, h.actions.GenerateIngredientsForRecipe)
}

// RateLimited answers an API request rejected by the rate limiter
func (h *APIHandlers) RateLimited(w http.ResponseWriter, r *http.Request, route string) {
	h.logger.Warn("Rate limit exceeded", zap.String("route", route), zap.String("remote_addr", r.RemoteAddr))
	h.writeError(w, r, errors.NewTooManyRequestsError())
}

func handle[I, O any](h *APIHandlers, w http.ResponseWriter, r *http.Request, action func(context.Context, I) (O, error)) {
	var in I
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAPIBody))
	if err := dec.Decode(&in); err != nil {
		h.writeError(w, r, errors.NewBadRequestError("Request body must be a valid JSON object.").WithCause(err))
		return
	}

	out, err := action(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: out})
}

func (h *APIHandlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.GetHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Warn("API request failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}

	h.writeJSON(w, status, errors.ToErrorResponse(err, chimiddleware.GetReqID(r.Context())))
}

// writeJSON writes a JSON response
func (h *APIHandlers) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}
