package kitchen

import (
	"context"
	stderrors "errors"

	"github.com/alchemorsel/pantrylens/internal/domain/kitchen"
	"github.com/alchemorsel/pantrylens/internal/domain/schema"
	"github.com/alchemorsel/pantrylens/pkg/errors"
	"github.com/alchemorsel/pantrylens/pkg/fanout"
	"go.uber.org/zap"
)

// fanoutImages requests one image per ingredient. Each failure is logged
// and announced as soon as it happens.
func (s *Service) fanoutImages(ctx context.Context, sessionID string, ingredients []string) []fanout.Result[string] {
	return fanout.Map(ctx, ingredients, s.config.ImageConcurrency,
		func(ctx context.Context, i int, name string) (string, error) {
			out, err := s.actions.GenerateIngredientImage(ctx, schema.IngredientImageInput{IngredientName: name})
			if err != nil {
				s.imageFailed(ctx, sessionID, name, err)
				return "", err
			}
			return out.ImageURL, nil
		})
}

func (s *Service) imageFailed(ctx context.Context, sessionID, ingredient string, cause error) {
	s.logger.Warn("Ingredient image failed",
		zap.String("session_id", sessionID),
		zap.Error(errors.NewPartialItemError(ingredient, cause)),
	)

	desc := msgImageFailedFallback
	var appErr *errors.AppError
	if stderrors.As(cause, &appErr) {
		desc = appErr.Message
	}

	if _, err := s.update(ctx, sessionID, func(b *kitchen.Board) error {
		b.Notify(kitchen.VariantDestructive, "Image Gen Failed for "+ingredient, desc)
		return nil
	}); err != nil {
		s.logger.Error("Failed to record image failure", zap.String("session_id", sessionID), zap.Error(err))
	}
}
