// Package kitchen provides the application layer for the photo to recipes
// flow. It implements the use cases defined in the inbound ports.
package kitchen

import (
	"context"
	stderrors "errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/alchemorsel/pantrylens/internal/domain/kitchen"
	"github.com/alchemorsel/pantrylens/internal/domain/schema"
	"github.com/alchemorsel/pantrylens/internal/infrastructure/monitoring"
	"github.com/alchemorsel/pantrylens/internal/ports/inbound"
	"github.com/alchemorsel/pantrylens/internal/ports/outbound"
	"github.com/alchemorsel/pantrylens/pkg/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const lockStripes = 64

// ErrShuttingDown is returned when background work is refused during
// shutdown.
var ErrShuttingDown = stderrors.New("kitchen service is shutting down")

// Config holds the orchestration settings
type Config struct {
	// MaxPhotoBytes is the largest accepted upload
	MaxPhotoBytes int64
	// ImageConcurrency bounds image calls per fan-out; 0 means unbounded
	ImageConcurrency int
}

// Service implements inbound.KitchenService
type Service struct {
	actions  inbound.RecipeActions
	sessions outbound.SessionRepository
	metrics  *monitoring.MetricsCollector
	logger   *zap.Logger
	config   Config

	locks [lockStripes]sync.Mutex

	bgMu    sync.Mutex
	bg      sync.WaitGroup
	closing bool
}

var _ inbound.KitchenService = (*Service)(nil)

// NewService creates a new kitchen service
func NewService(
	actions inbound.RecipeActions,
	sessions outbound.SessionRepository,
	metrics *monitoring.MetricsCollector,
	config Config,
	logger *zap.Logger,
) *Service {
	return &Service{
		actions:  actions,
		sessions: sessions,
		metrics:  metrics,
		config:   config,
		logger:   logger.Named("kitchen-service"),
	}
}

// SubmitPhoto analyzes a photo and, when ingredients are found, starts
// recipe generation in the background.
func (s *Service) SubmitPhoto(ctx context.Context, sessionID string, photo inbound.Photo) (*inbound.PhotoResult, error) {
	mimeType, verr := s.validatePhoto(photo)
	if verr != nil {
		s.notify(ctx, sessionID, titleError, verr)
		return nil, verr
	}

	if _, err := s.update(ctx, sessionID, func(b *kitchen.Board) error {
		if err := b.BeginAnalysis(time.Now()); err != nil {
			return errors.NewBadRequestError("A photo is already being analyzed. Please wait.").WithCause(err)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	s.logger.Info("Analyzing photo",
		zap.String("session_id", sessionID),
		zap.String("filename", photo.Filename),
		zap.String("mime_type", mimeType),
		zap.Int("bytes", len(photo.Data)),
	)

	// The call outlives the request: a closed tab must not abort it.
	bg := context.WithoutCancel(ctx)

	// Until an outcome is stored the board still reads as analyzing. This
	// also runs when the call panics.
	settled := false
	defer func() {
		if settled {
			return
		}
		if _, err := s.update(bg, sessionID, func(b *kitchen.Board) error {
			b.FailAnalysis()
			return nil
		}); err != nil {
			s.logger.Error("Failed to reset analysis", zap.String("session_id", sessionID), zap.Error(err))
		}
	}()

	out, err := s.actions.AnalyzeImage(bg, schema.AnalyzeImageInput{
		PhotoDataURI: schema.EncodeDataURI(mimeType, photo.Data),
	})
	if err != nil {
		if _, uerr := s.update(bg, sessionID, func(b *kitchen.Board) error {
			b.FailAnalysis()
			b.Notify(kitchen.VariantDestructive, titleAnalysisFailed, errors.UserMessage(err))
			return nil
		}); uerr != nil {
			s.logger.Error("Failed to record analysis failure", zap.String("session_id", sessionID), zap.Error(uerr))
		} else {
			settled = true
		}
		return nil, err
	}

	var (
		list    kitchen.IngredientList
		claimed bool
	)
	if _, err := s.update(bg, sessionID, func(b *kitchen.Board) error {
		list = b.CompleteAnalysis(out.Ingredients)
		b.Notify(kitchen.VariantDefault, titleAnalysisComplete, descIngredientsFound(len(list.Items)))
		claimed = b.ClaimRecipeGeneration(list)
		return nil
	}); err != nil {
		return nil, err
	}
	settled = true

	done := make(chan struct{})
	if !claimed || !s.goBackground(func() { s.generateRecipes(bg, sessionID, list, done) }) {
		close(done)
	}

	return &inbound.PhotoResult{Ingredients: list, Recipes: done}, nil
}

// generateRecipes runs once per ingredient list and closes done when the
// board has been updated.
func (s *Service) generateRecipes(ctx context.Context, sessionID string, list kitchen.IngredientList, done chan<- struct{}) {
	defer close(done)

	out, genErr := s.actions.GenerateRecipes(ctx, schema.GenerateRecipesInput{Ingredients: list.Items})

	_, err := s.update(ctx, sessionID, func(b *kitchen.Board) error {
		if genErr != nil {
			if b.FailRecipeGeneration(list) {
				b.Notify(kitchen.VariantDestructive, titleRecipeGenerationFailed, errors.UserMessage(genErr))
			}
			return nil
		}

		drafts := make([]kitchen.RecipeDraft, len(out.Recipes))
		for i, r := range out.Recipes {
			drafts[i] = kitchen.RecipeDraft{Name: r.Name, Description: r.Description}
		}
		if !b.CompleteRecipeGeneration(list, drafts) {
			s.logger.Debug("Discarded recipes for a replaced ingredient list",
				zap.String("session_id", sessionID),
				zap.String("list_id", list.ID.String()),
			)
			return nil
		}
		if len(drafts) == 0 {
			b.Notify(kitchen.VariantDefault, titleNoRecipes, descNoRecipes)
		} else {
			b.Notify(kitchen.VariantDefault, titleRecipesGenerated, descRecipesFound(len(drafts)))
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to store generated recipes", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// SelectRecipe shows a recipe and, the first time, fetches an image for each
// of its source ingredients in the background.
func (s *Service) SelectRecipe(ctx context.Context, sessionID string, recipeID uuid.UUID) (*inbound.Selection, error) {
	var (
		shown kitchen.Recipe
		fetch bool
	)
	if _, err := s.update(ctx, sessionID, func(b *kitchen.Board) error {
		var err error
		shown, fetch, err = b.SelectRecipe(recipeID, time.Now())
		if stderrors.Is(err, kitchen.ErrRecipeNotFound) {
			return errors.NewNotFoundError("recipe").WithCause(err)
		}
		if fetch {
			b.Notify(kitchen.VariantDefault, titleFetchingImages, descFetchingImages(shown.Name))
		}
		return err
	}); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	started := false
	if fetch {
		bg := context.WithoutCancel(ctx)
		recipe := shown.Clone()
		started = s.goBackground(func() { s.fetchImages(bg, sessionID, recipe, done) })
	}
	if !started {
		close(done)
	}
	if fetch && !started {
		s.abortImageFetch(ctx, sessionID, shown.ID)
		shown.IngredientImages = nil
	}

	return &inbound.Selection{Recipe: shown, Fetched: started, Images: done}, nil
}

// fetchImages generates every ingredient image of a recipe concurrently.
// A failed image becomes the error sentinel; it never fails the recipe.
func (s *Service) fetchImages(ctx context.Context, sessionID string, recipe kitchen.Recipe, done chan<- struct{}) {
	defer close(done)

	start := time.Now()
	s.metrics.ImageFanoutStarted()

	results := s.fanoutImages(ctx, sessionID, recipe.SourceIngredients)

	images := make([]kitchen.IngredientImage, len(results))
	failed := 0
	for i, r := range results {
		name := recipe.SourceIngredients[i]
		if r.Err != nil {
			failed++
			images[i] = kitchen.FailedImage(name)
			continue
		}
		images[i] = kitchen.ResolvedImage(name, r.Value)
	}
	s.metrics.ImageFanoutFinished(len(results)-failed, failed, time.Since(start))

	_, err := s.update(ctx, sessionID, func(b *kitchen.Board) error {
		if !b.CompleteImageFetch(recipe.ID, images) {
			return nil
		}
		b.Notify(kitchen.VariantDefault, titleImagesReady, descImagesReady(recipe.Name))
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to store ingredient images",
			zap.String("session_id", sessionID),
			zap.String("recipe_id", recipe.ID.String()),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("Ingredient images resolved",
		zap.String("session_id", sessionID),
		zap.String("recipe_id", recipe.ID.String()),
		zap.Int("images", len(images)),
		zap.Int("failed", failed),
		zap.Duration("duration", time.Since(start)),
	)
}

// abortImageFetch rolls back the fetch marks of a fan-out that never started
func (s *Service) abortImageFetch(ctx context.Context, sessionID string, recipeID uuid.UUID) {
	if _, err := s.update(ctx, sessionID, func(b *kitchen.Board) error {
		b.AbortImageFetch(recipeID)
		b.Notify(kitchen.VariantDestructive, titleImageGenerationFailed, descImagesInterrupted)
		return nil
	}); err != nil {
		s.logger.Error("Failed to roll back image fetch",
			zap.String("session_id", sessionID),
			zap.String("recipe_id", recipeID.String()),
			zap.Error(err),
		)
	}
}

// CloseRecipe hides the selected recipe
func (s *Service) CloseRecipe(ctx context.Context, sessionID string) error {
	_, err := s.update(ctx, sessionID, func(b *kitchen.Board) error {
		b.CloseRecipe()
		return nil
	})
	return err
}

// SearchRecipeIngredients looks up the ingredients of a named recipe
func (s *Service) SearchRecipeIngredients(ctx context.Context, sessionID, recipeName string) (*kitchen.FunSearch, error) {
	var query string
	if _, err := s.update(ctx, sessionID, func(b *kitchen.Board) error {
		var err error
		query, err = b.BeginSearch(recipeName)
		switch {
		case stderrors.Is(err, kitchen.ErrEmptyRecipeName):
			return errors.NewValidationError(msgEmptyRecipeName).WithCause(err)
		case stderrors.Is(err, kitchen.ErrSearchInProgress):
			return errors.NewBadRequestError("A recipe search is already running. Please wait.").WithCause(err)
		}
		return err
	}); err != nil {
		if errors.Is(err, errors.CodeValidationFailed) {
			s.notify(ctx, sessionID, titleEmptySearch, err)
		}
		return nil, err
	}

	bg := context.WithoutCancel(ctx)
	out, genErr := s.actions.GenerateIngredientsForRecipe(bg, schema.RecipeIngredientsInput{RecipeName: query})

	var result kitchen.FunSearch
	if _, err := s.update(bg, sessionID, func(b *kitchen.Board) error {
		if genErr != nil {
			if b.FailSearch(query) {
				b.Notify(kitchen.VariantDestructive, titleIngredientGenerationErr, errors.UserMessage(genErr))
			}
			return nil
		}

		found := make([]kitchen.FunIngredient, len(out.Ingredients))
		for i, in := range out.Ingredients {
			found[i] = kitchen.FunIngredient{Name: in.Name, Comment: in.Comment}
		}
		switch {
		case !b.CompleteSearch(query, found):
		case len(found) == 0:
			b.Notify(kitchen.VariantDefault, titleNoIngredients, descNoFunIngredients(query))
		default:
			b.Notify(kitchen.VariantDefault, titleIngredientsGenerated, descFunIngredientsFound(len(found), query))
		}
		result = b.Search
		return nil
	}); err != nil {
		return nil, err
	}
	if genErr != nil {
		return nil, genErr
	}

	result.Ingredients = append([]kitchen.FunIngredient(nil), result.Ingredients...)
	return &result, nil
}

// DismissNotification removes a notification from the board
func (s *Service) DismissNotification(ctx context.Context, sessionID string, notificationID uuid.UUID) error {
	_, err := s.update(ctx, sessionID, func(b *kitchen.Board) error {
		if !b.Dismiss(notificationID) {
			return errors.NewNotFoundError("notification")
		}
		return nil
	})
	return err
}

// State returns the board of a session
func (s *Service) State(ctx context.Context, sessionID string) (*kitchen.Board, error) {
	unlock := s.lock(sessionID)
	defer unlock()

	board, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to load session")
	}
	board.ReclaimStale(time.Now())
	return board, nil
}

// Shutdown refuses new background work and waits for the running jobs or
// the context deadline.
func (s *Service) Shutdown(ctx context.Context) error {
	s.bgMu.Lock()
	s.closing = true
	s.bgMu.Unlock()

	idle := make(chan struct{})
	go func() {
		s.bg.Wait()
		close(idle)
	}()

	select {
	case <-idle:
		s.logger.Info("Background work drained")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Shutdown deadline reached with background work running")
		return ctx.Err()
	}
}

// update loads the board, applies fn and saves it while holding the lock of
// the session. Nothing is saved when fn fails.
func (s *Service) update(ctx context.Context, sessionID string, fn func(*kitchen.Board) error) (*kitchen.Board, error) {
	unlock := s.lock(sessionID)
	defer unlock()

	board, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to load session")
	}
	board.ReclaimStale(time.Now())
	if err := fn(board); err != nil {
		return nil, err
	}
	board.Touch(time.Now())
	if err := s.sessions.Save(ctx, board); err != nil {
		return nil, errors.Wrap(err, "Failed to save session")
	}
	return board, nil
}

func (s *Service) lock(sessionID string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	mu := &s.locks[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// goBackground runs fn detached from any request unless shutdown started
func (s *Service) goBackground(fn func()) bool {
	s.bgMu.Lock()
	defer s.bgMu.Unlock()
	if s.closing {
		s.logger.Warn("Background work refused", zap.Error(ErrShuttingDown))
		return false
	}

	s.bg.Add(1)
	s.metrics.BackgroundJobStarted()
	go func() {
		defer s.bg.Done()
		defer s.metrics.BackgroundJobFinished()
		fn()
	}()
	return true
}

// validatePhoto returns the MIME type to encode the photo with
func (s *Service) validatePhoto(photo inbound.Photo) (string, error) {
	size := max(photo.Size, int64(len(photo.Data)))
	if size == 0 {
		return "", errors.NewValidationError(msgSelectImage)
	}
	if s.config.MaxPhotoBytes > 0 && size > s.config.MaxPhotoBytes {
		return "", errors.NewValidationError(
			fmt.Sprintf("Image size should not exceed %dMB.", s.config.MaxPhotoBytes>>20))
	}
	if len(photo.Data) == 0 {
		return "", errors.NewValidationError(msgSelectImage)
	}

	sniffed := http.DetectContentType(photo.Data)
	if strings.HasPrefix(sniffed, "image/") {
		return sniffed, nil
	}
	declared := strings.TrimSpace(strings.Split(photo.ContentType, ";")[0])
	if strings.HasPrefix(declared, "image/") {
		return declared, nil
	}
	return "", errors.NewValidationError(msgSelectImage)
}

// notify records a destructive notification for a rejected request
func (s *Service) notify(ctx context.Context, sessionID, title string, cause error) {
	if _, err := s.update(ctx, sessionID, func(b *kitchen.Board) error {
		b.Notify(kitchen.VariantDestructive, title, errors.UserMessage(cause))
		return nil
	}); err != nil {
		s.logger.Error("Failed to record notification", zap.String("session_id", sessionID), zap.Error(err))
	}
}
