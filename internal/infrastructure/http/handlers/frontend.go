// Package handlers provides HTTP handlers for the HTMX frontend and the JSON
// API
package handlers

import (
	"embed"
	stderrors "errors"
	"html/template"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/alchemorsel/pantrylens/internal/domain/kitchen"
	"github.com/alchemorsel/pantrylens/internal/infrastructure/http/middleware"
	"github.com/alchemorsel/pantrylens/internal/ports/inbound"
	"github.com/alchemorsel/pantrylens/pkg/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

// multipartOverhead is the slack allowed on top of the photo for the form
// envelope
const multipartOverhead = 1 << 20

// ParseTemplates parses the embedded page and partial templates
func ParseTemplates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"safeURL": safeURL,
	}).ParseFS(templateFS, "templates/*.html")
}

// safeURL lets generated data URIs through html/template's URL filter.
// Anything else is left to the default escaping.
func safeURL(u string) any {
	if strings.HasPrefix(u, "data:image/") {
		return template.URL(u)
	}
	return u
}

// FrontendHandlers handles frontend HTMX requests
type FrontendHandlers struct {
	templates     *template.Template
	kitchen       inbound.KitchenService
	maxPhotoBytes int64
	logger        *zap.Logger
}

// NewFrontendHandlers creates a new frontend handlers instance
func NewFrontendHandlers(
	templates *template.Template,
	kitchen inbound.KitchenService,
	maxPhotoBytes int64,
	logger *zap.Logger,
) *FrontendHandlers {
	return &FrontendHandlers{
		templates:     templates,
		kitchen:       kitchen,
		maxPhotoBytes: maxPhotoBytes,
		logger:        logger.Named("frontend"),
	}
}

// view is the data every template receives. OOB marks a partial rendered
// as an out-of-band swap.
type view struct {
	Board      *kitchen.Board
	OOB        bool
	MaxPhotoMB int64
}

// Routes mounts the browser routes. limit wraps the routes that trigger AI
// calls.
func (h *FrontendHandlers) Routes(r chi.Router, limit func(http.Handler) http.Handler) {
	r.Get("/", h.HandleHome)
	r.Get("/recipes", h.HandleRecipes)
	r.Get("/recipes/{id}", h.HandleRecipeDetail)
	r.Post("/recipes/close", h.HandleCloseRecipe)
	r.Get("/notifications", h.HandleNotifications)
	r.Post("/notifications/{id}/dismiss", h.HandleDismissNotification)

	r.Group(func(r chi.Router) {
		r.Use(limit)
		r.Post("/photo", h.HandlePhoto)
		r.Post("/recipes/{id}/select", h.HandleSelectRecipe)
		r.Post("/search", h.HandleSearch)
	})
}

// HandleHome renders the full page for the session board
func (h *FrontendHandlers) HandleHome(w http.ResponseWriter, r *http.Request) {
	h.renderState(w, r, "page")
}

// HandleRecipes renders the recipe list, polled while recipes load
func (h *FrontendHandlers) HandleRecipes(w http.ResponseWriter, r *http.Request) {
	h.renderState(w, r, "recipes")
}

// HandleRecipeDetail renders the selected recipe, polled while its images
// load
func (h *FrontendHandlers) HandleRecipeDetail(w http.ResponseWriter, r *http.Request) {
	h.renderState(w, r, "detail")
}

// HandleNotifications renders the pending notifications
func (h *FrontendHandlers) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	h.renderState(w, r, "notifications")
}

// HandlePhoto accepts the multipart field "photo" and analyzes it
func (h *FrontendHandlers) HandlePhoto(w http.ResponseWriter, r *http.Request) {
	photo, err := h.readPhoto(w, r)
	if err != nil {
		h.respond(w, r, err, "ingredients")
		return
	}

	_, err = h.kitchen.SubmitPhoto(r.Context(), middleware.SessionID(r.Context()), photo)
	h.respond(w, r, err, "ingredients", "recipes", "detail")
}

// HandleSelectRecipe shows a recipe and starts its ingredient images
func (h *FrontendHandlers) HandleSelectRecipe(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.respond(w, r, errors.NewNotFoundError("recipe"), "detail")
		return
	}

	_, err = h.kitchen.SelectRecipe(r.Context(), middleware.SessionID(r.Context()), id)
	h.respond(w, r, err, "detail")
}

// HandleCloseRecipe hides the selected recipe
func (h *FrontendHandlers) HandleCloseRecipe(w http.ResponseWriter, r *http.Request) {
	err := h.kitchen.CloseRecipe(r.Context(), middleware.SessionID(r.Context()))
	h.respond(w, r, err, "detail")
}

// HandleSearch generates the ingredients of a named recipe
func (h *FrontendHandlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	_, err := h.kitchen.SearchRecipeIngredients(r.Context(), middleware.SessionID(r.Context()), r.FormValue("recipe_name"))
	h.respond(w, r, err, "search")
}

// HandleDismissNotification removes a notification
func (h *FrontendHandlers) HandleDismissNotification(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err == nil {
		err = h.kitchen.DismissNotification(r.Context(), middleware.SessionID(r.Context()), id)
	}
	if err != nil {
		// Already gone; the re-render drops it either way.
		h.logger.Debug("Dismiss ignored", zap.String("notification_id", chi.URLParam(r, "id")), zap.Error(err))
	}
	h.respond(w, r, nil, "notifications")
}

// readPhoto reads at most one byte over the limit so oversized uploads are
// still reported with their size.
func (h *FrontendHandlers) readPhoto(w http.ResponseWriter, r *http.Request) (inbound.Photo, error) {
	r.Body = http.MaxBytesReader(w, r.Body, 2*h.maxPhotoBytes+multipartOverhead)

	file, header, err := r.FormFile("photo")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return inbound.Photo{Size: tooLarge.Limit}, nil
		}
		if stderrors.Is(err, http.ErrMissingFile) || stderrors.Is(err, http.ErrNotMultipart) {
			return inbound.Photo{}, nil
		}
		return inbound.Photo{}, errors.NewBadRequestError("Could not read the uploaded form.").WithCause(err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxPhotoBytes+1))
	if err != nil {
		return inbound.Photo{}, errors.NewBadRequestError("Could not read the uploaded photo.").WithCause(err)
	}

	return inbound.Photo{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
		Size:        header.Size,
	}, nil
}

// respond finishes a command. Plain form posts are redirected to the page.
// HTMX requests get the named partials, the first one as the swap target
// and the rest plus the notifications out of band. Failures the board
// records as notifications are rendered the same way; the rest are sent
// with their status.
func (h *FrontendHandlers) respond(w http.ResponseWriter, r *http.Request, err error, partials ...string) {
	if err != nil {
		h.logCommandError(r, err)
	}

	if err != nil && !recorded(err) {
		http.Error(w, errors.UserMessage(err), errors.GetHTTPStatus(err))
		return
	}

	if !middleware.IsHTMX(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if !slices.Contains(partials, "notifications") {
		partials = append(partials, "notifications")
	}
	h.renderState(w, r, partials...)
}

// RateLimited answers a request rejected by the rate limiter
func (h *FrontendHandlers) RateLimited(w http.ResponseWriter, r *http.Request, route string) {
	h.logger.Warn("Rate limit exceeded", zap.String("route", route), zap.String("remote_addr", r.RemoteAddr))
	err := errors.NewTooManyRequestsError()
	http.Error(w, errors.UserMessage(err), errors.GetHTTPStatus(err))
}

// recorded reports whether the kitchen service left a notification for err
func recorded(err error) bool {
	switch errors.GetCode(err) {
	case errors.CodeValidationFailed, errors.CodeConfiguration, errors.CodeExternalServiceError:
		return true
	}
	return false
}

func (h *FrontendHandlers) logCommandError(r *http.Request, err error) {
	fields := []zap.Field{
		zap.String("path", r.URL.Path),
		zap.String("code", string(errors.GetCode(err))),
		zap.Error(err),
	}
	if errors.GetHTTPStatus(err) >= http.StatusInternalServerError {
		h.logger.Warn("Command failed", fields...)
		return
	}
	h.logger.Debug("Command rejected", fields...)
}

// renderState loads the board and renders the named templates
func (h *FrontendHandlers) renderState(w http.ResponseWriter, r *http.Request, names ...string) {
	board, err := h.kitchen.State(r.Context(), middleware.SessionID(r.Context()))
	if err != nil {
		h.logger.Error("Failed to load session", zap.Error(err))
		http.Error(w, errors.UserMessage(err), errors.GetHTTPStatus(err))
		return
	}

	var sb strings.Builder
	for i, name := range names {
		data := view{Board: board, OOB: i > 0, MaxPhotoMB: h.maxPhotoBytes >> 20}
		if err := h.templates.ExecuteTemplate(&sb, name, data); err != nil {
			h.logger.Error("Failed to render template",
				zap.String("template", name),
				zap.Error(err),
			)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		sb.WriteByte('\n')
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, sb.String())
}
