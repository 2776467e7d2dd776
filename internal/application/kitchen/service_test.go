package kitchen

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alchemorsel/pantrylens/internal/domain/kitchen"
	"github.com/alchemorsel/pantrylens/internal/domain/schema"
	"github.com/alchemorsel/pantrylens/internal/infrastructure/monitoring"
	"github.com/alchemorsel/pantrylens/internal/infrastructure/session"
	"github.com/alchemorsel/pantrylens/internal/ports/inbound"
	"github.com/alchemorsel/pantrylens/pkg/errors"
	"github.com/alchemorsel/pantrylens/test/testutils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"
)

const waitTimeout = 5 * time.Second

type KitchenServiceTestSuite struct {
	suite.Suite
	actions *testutils.MockRecipeActions
	factory *testutils.KitchenFactory
	cache   *testutils.MockCacheRepository
	store   *session.Store
	service *Service
	ctx     context.Context
	sid     string
}

func (s *KitchenServiceTestSuite) SetupTest() {
	logger := zaptest.NewLogger(s.T())
	s.actions = &testutils.MockRecipeActions{}
	s.factory = testutils.NewKitchenFactory(7)
	s.ctx = context.Background()
	s.sid = uuid.NewString()

	s.cache = testutils.NewMockCacheRepository()
	s.store = session.NewStore(s.cache, time.Hour, logger)
	s.service = s.newService()
}

func (s *KitchenServiceTestSuite) newService() *Service {
	logger := zaptest.NewLogger(s.T())
	return NewService(s.actions, s.store, monitoring.NewMetricsCollector(logger), Config{
		MaxPhotoBytes: 4 << 20,
	}, logger)
}

func (s *KitchenServiceTestSuite) TearDownTest() {
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	s.NoError(s.service.Shutdown(ctx))
}

func TestKitchenServiceTestSuite(t *testing.T) {
	suite.Run(t, new(KitchenServiceTestSuite))
}

func (s *KitchenServiceTestSuite) waitClosed(ch <-chan struct{}) {
	s.T().Helper()
	select {
	case <-ch:
	case <-time.After(waitTimeout):
		s.FailNow("timed out waiting for background work")
	}
}

func (s *KitchenServiceTestSuite) board() *kitchen.Board {
	board, err := s.service.State(s.ctx, s.sid)
	s.Require().NoError(err)
	return board
}

func (s *KitchenServiceTestSuite) titles() []string {
	var titles []string
	for _, n := range s.board().Notifications {
		titles = append(titles, n.Title)
	}
	return titles
}

func (s *KitchenServiceTestSuite) expectAnalysis(ingredients []string) {
	s.actions.On("AnalyzeImage", mock.Anything, mock.Anything).
		Return(schema.AnalyzeImageOutput{Ingredients: ingredients}, nil).Once()
}

func (s *KitchenServiceTestSuite) expectRecipes(ingredients []string, recipes []schema.RecipeSuggestion) {
	s.actions.On("GenerateRecipes", mock.Anything, schema.GenerateRecipesInput{Ingredients: ingredients}).
		Return(schema.GenerateRecipesOutput{Recipes: recipes}, nil).Once()
}

// readyBoard drives a session to recipes-ready
func (s *KitchenServiceTestSuite) readyBoard(ingredients, recipes int) ([]string, []kitchen.Recipe) {
	items := s.factory.Ingredients(ingredients)
	s.expectAnalysis(items)
	s.expectRecipes(items, s.factory.RecipeSuggestions(recipes))

	result, err := s.service.SubmitPhoto(s.ctx, s.sid, s.factory.Photo(1024))
	s.Require().NoError(err)
	s.waitClosed(result.Recipes)

	board := s.board()
	s.Require().Equal(kitchen.PhaseRecipesReady, board.Phase)
	return items, board.Recipes
}

func (s *KitchenServiceTestSuite) TestSubmitPhoto_Validation() {
	tests := []struct {
		name    string
		photo   inbound.Photo
		message string
	}{
		{"oversized", s.factory.Photo(5 << 20), "Image size should not exceed 4MB."},
		{"not an image", s.factory.TextFile(), "Please select an image file."},
		{"empty", inbound.Photo{Filename: "empty.png", ContentType: "image/png"}, "Please select an image file."},
		{"truncated oversized body", inbound.Photo{Filename: "big.png", ContentType: "image/png", Size: 9 << 20}, "Image size should not exceed 4MB."},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			// Act
			result, err := s.service.SubmitPhoto(s.ctx, s.sid, tt.photo)

			// Assert
			s.Nil(result)
			s.True(errors.Is(err, errors.CodeValidationFailed))
			s.Equal(tt.message, errors.UserMessage(err))
			s.actions.AssertNotCalled(s.T(), "AnalyzeImage", mock.Anything, mock.Anything)
			s.Equal(kitchen.PhaseIdle, s.board().Phase)
		})
	}

	notifications := s.board().Notifications
	s.Require().Len(notifications, 4)
	s.Equal(kitchen.VariantDestructive, notifications[0].Variant)
	s.Equal("Image size should not exceed 4MB.", notifications[0].Description)
}

func (s *KitchenServiceTestSuite) TestSubmitPhoto_AnalyzesThenGeneratesRecipes() {
	// Arrange
	items := s.factory.Ingredients(3)
	suggestions := s.factory.RecipeSuggestions(2)
	s.actions.On("AnalyzeImage", mock.Anything, mock.MatchedBy(func(in schema.AnalyzeImageInput) bool {
		return strings.HasPrefix(in.PhotoDataURI, "data:image/png;base64,")
	})).Return(schema.AnalyzeImageOutput{Ingredients: items}, nil).Once()
	s.expectRecipes(items, suggestions)

	// Act
	result, err := s.service.SubmitPhoto(s.ctx, s.sid, s.factory.Photo(2048))
	s.Require().NoError(err)
	s.waitClosed(result.Recipes)

	// Assert
	s.Equal(items, result.Ingredients.Items)
	board := s.board()
	s.Equal(kitchen.PhaseRecipesReady, board.Phase)
	s.Equal(result.Ingredients.ID, board.Ingredients.ID)
	s.Require().Len(board.Recipes, 2)
	for i, r := range board.Recipes {
		s.Equal(suggestions[i].Name, r.Name)
		s.Equal(kitchen.PlaceholderRecipeImage, r.ImageURL)
		s.Equal(items, r.SourceIngredients)
	}
	s.Equal([]string{"Analysis Complete", "Recipes Generated!"}, s.titles())
	s.Equal("Found 2 recipe(s) for you.", board.Notifications[1].Description)
	s.actions.AssertExpectations(s.T())
}

func (s *KitchenServiceTestSuite) TestSubmitPhoto_AnalysisFailureKeepsRecipes() {
	// Arrange
	_, recipes := s.readyBoard(2, 2)
	failure := errors.NewServiceError("Failed to analyze image. Please try again.", stderrors.New("quota"))
	s.actions.On("AnalyzeImage", mock.Anything, mock.Anything).Return(nil, failure).Once()

	// Act
	result, err := s.service.SubmitPhoto(s.ctx, s.sid, s.factory.Photo(1024))

	// Assert
	s.Nil(result)
	s.Equal("Failed to analyze image. Please try again.", errors.UserMessage(err))
	board := s.board()
	s.False(board.Analyzing())
	s.Equal(kitchen.PhaseRecipesReady, board.Phase)
	s.Equal(recipes, board.Recipes)
	last := board.Notifications[len(board.Notifications)-1]
	s.Equal(kitchen.VariantDestructive, last.Variant)
	s.Equal("Analysis Failed", last.Title)
	s.Equal("Failed to analyze image. Please try again.", last.Description)
}

func (s *KitchenServiceTestSuite) TestSubmitPhoto_EmptyAnalysisGeneratesNothing() {
	s.expectAnalysis([]string{})

	result, err := s.service.SubmitPhoto(s.ctx, s.sid, s.factory.Photo(1024))

	s.Require().NoError(err)
	s.waitClosed(result.Recipes)
	s.Equal(kitchen.PhaseIdle, s.board().Phase)
	s.actions.AssertNotCalled(s.T(), "GenerateRecipes", mock.Anything, mock.Anything)
}

func (s *KitchenServiceTestSuite) TestSubmitPhoto_NoRecipesFound() {
	items := s.factory.Ingredients(1)
	s.expectAnalysis(items)
	s.expectRecipes(items, nil)

	result, err := s.service.SubmitPhoto(s.ctx, s.sid, s.factory.Photo(1024))
	s.Require().NoError(err)
	s.waitClosed(result.Recipes)

	s.Equal(kitchen.PhaseRecipesReady, s.board().Phase)
	s.Empty(s.board().Recipes)
	s.Contains(s.titles(), "No Recipes Found")
}

func (s *KitchenServiceTestSuite) TestSubmitPhoto_RecipeGenerationFailure() {
	items := s.factory.Ingredients(2)
	s.expectAnalysis(items)
	s.actions.On("GenerateRecipes", mock.Anything, mock.Anything).
		Return(nil, errors.NewServiceError("Failed to generate recipes. Please try again.", stderrors.New("boom"))).Once()

	result, err := s.service.SubmitPhoto(s.ctx, s.sid, s.factory.Photo(1024))
	s.Require().NoError(err)
	s.waitClosed(result.Recipes)

	board := s.board()
	s.Equal(kitchen.PhaseIdle, board.Phase)
	s.Empty(board.Recipes)
	last := board.Notifications[len(board.Notifications)-1]
	s.Equal("Recipe Generation Failed", last.Title)
	s.Equal("Failed to generate recipes. Please try again.", last.Description)
}

func (s *KitchenServiceTestSuite) TestSubmitPhoto_RejectsConcurrentAnalysis() {
	// Arrange
	release := make(chan struct{})
	started := make(chan struct{})
	s.actions.On("AnalyzeImage", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { close(started); <-release }).
		Return(schema.AnalyzeImageOutput{Ingredients: []string{}}, nil).Once()

	firstErr := make(chan error, 1)
	go func() {
		_, err := s.service.SubmitPhoto(s.ctx, s.sid, s.factory.Photo(1024))
		firstErr <- err
	}()
	s.waitClosed(started)

	// Act
	_, err := s.service.SubmitPhoto(s.ctx, s.sid, s.factory.Photo(1024))

	// Assert
	s.True(errors.Is(err, errors.CodeBadRequest))
	close(release)
	s.NoError(<-firstErr)
	s.actions.AssertNumberOfCalls(s.T(), "AnalyzeImage", 1)
}

func (s *KitchenServiceTestSuite) TestSubmitPhoto_UploadWhileRecipesLoad() {
	// Arrange: recipes for the first list finish during the second analysis
	first := s.factory.Ingredients(2)
	s.expectAnalysis(first)
	recipesStarted := make(chan struct{})
	releaseRecipes := make(chan struct{})
	s.actions.On("GenerateRecipes", mock.Anything, schema.GenerateRecipesInput{Ingredients: first}).
		Run(func(mock.Arguments) { close(recipesStarted); <-releaseRecipes }).
		Return(schema.GenerateRecipesOutput{Recipes: s.factory.RecipeSuggestions(1)}, nil).Once()

	firstResult, err := s.service.SubmitPhoto(s.ctx, s.sid, s.factory.Photo(1024))
	s.Require().NoError(err)
	s.waitClosed(recipesStarted)

	analysisStarted := make(chan struct{})
	releaseAnalysis := make(chan struct{})
	s.actions.On("AnalyzeImage", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { close(analysisStarted); <-releaseAnalysis }).
		Return(schema.AnalyzeImageOutput{Ingredients: []string{}}, nil).Once()
	secondErr := make(chan error, 1)
	go func() {
		_, err := s.service.SubmitPhoto(s.ctx, s.sid, s.factory.Photo(1024))
		secondErr <- err
	}()
	s.waitClosed(analysisStarted)

	// Act
	close(releaseRecipes)
	s.waitClosed(firstResult.Recipes)
	_, thirdErr := s.service.SubmitPhoto(s.ctx, s.sid, s.factory.Photo(1024))

	// Assert
	board := s.board()
	s.True(board.Analyzing(), "recipe results must not end the running analysis")
	s.Equal(kitchen.PhaseRecipesReady, board.Phase)
	s.True(errors.Is(thirdErr, errors.CodeBadRequest))
	close(releaseAnalysis)
	s.NoError(<-secondErr)
	s.False(s.board().Analyzing())
	s.actions.AssertNumberOfCalls(s.T(), "AnalyzeImage", 2)
}

func (s *KitchenServiceTestSuite) TestSubmitPhoto_SaveFailureEndsAnalysis() {
	// Arrange: the save that stores the analysis result fails
	s.expectAnalysis(s.factory.Ingredients(2))
	s.cache.FailSetOn = 2

	// Act
	result, err := s.service.SubmitPhoto(s.ctx, s.sid, s.factory.Photo(1024))

	// Assert
	s.Nil(result)
	s.ErrorIs(err, testutils.ErrInjectedSet)
	board := s.board()
	s.False(board.Analyzing())
	s.True(board.Ingredients.IsZero())
	s.actions.AssertNotCalled(s.T(), "GenerateRecipes", mock.Anything, mock.Anything)
}

func (s *KitchenServiceTestSuite) TestSubmitPhoto_PanicEndsAnalysis() {
	s.actions.On("AnalyzeImage", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { panic("boom") }).
		Return(schema.AnalyzeImageOutput{}, nil).Once()

	s.Panics(func() {
		_, _ = s.service.SubmitPhoto(s.ctx, s.sid, s.factory.Photo(1024))
	})

	s.False(s.board().Analyzing())
}

func (s *KitchenServiceTestSuite) TestSubmitPhoto_StaleRecipesDiscarded() {
	// Arrange: the first list's recipes arrive after a second analysis
	first := []string{"old-a", "old-b"}
	second := []string{"new-a"}
	release := make(chan struct{})

	s.expectAnalysis(first)
	s.actions.On("GenerateRecipes", mock.Anything, schema.GenerateRecipesInput{Ingredients: first}).
		Run(func(mock.Arguments) { <-release }).
		Return(schema.GenerateRecipesOutput{Recipes: []schema.RecipeSuggestion{{Name: "Stale"}}}, nil).Once()
	s.expectAnalysis(second)
	s.expectRecipes(second, []schema.RecipeSuggestion{{Name: "Fresh"}})

	// Act
	r1, err := s.service.SubmitPhoto(s.ctx, s.sid, s.factory.Photo(1024))
	s.Require().NoError(err)
	r2, err := s.service.SubmitPhoto(s.ctx, s.sid, s.factory.Photo(1024))
	s.Require().NoError(err)
	s.waitClosed(r2.Recipes)
	close(release)
	s.waitClosed(r1.Recipes)

	// Assert
	board := s.board()
	s.Require().Len(board.Recipes, 1)
	s.Equal("Fresh", board.Recipes[0].Name)
	s.Equal(r2.Ingredients.ID, board.Ingredients.ID)
}

func (s *KitchenServiceTestSuite) TestSelectRecipe_PartialImageFailure() {
	// Arrange
	items, recipes := s.readyBoard(3, 1)
	recipe := recipes[0]
	urls := map[string]string{}
	for i, name := range items {
		if i == 1 {
			s.actions.On("GenerateIngredientImage", mock.Anything, schema.IngredientImageInput{IngredientName: name}).
				Return(nil, errors.NewServiceError(fmt.Sprintf("Failed to generate image for %s. Please try again.", name), stderrors.New("safety"))).Once()
			continue
		}
		urls[name] = s.factory.ImageDataURI()
		s.actions.On("GenerateIngredientImage", mock.Anything, schema.IngredientImageInput{IngredientName: name}).
			Return(schema.IngredientImageOutput{ImageURL: urls[name]}, nil).Once()
	}

	// Act
	selection, err := s.service.SelectRecipe(s.ctx, s.sid, recipe.ID)
	s.Require().NoError(err)
	s.True(selection.Fetched)
	s.Len(selection.Recipe.IngredientImages, 3)
	for _, img := range selection.Recipe.IngredientImages {
		s.True(img.Pending())
	}
	s.waitClosed(selection.Images)

	// Assert
	board := s.board()
	stored, ok := board.Recipe(recipe.ID)
	s.Require().True(ok)
	s.Require().Len(stored.IngredientImages, 3)
	for i, img := range stored.IngredientImages {
		s.Equal(items[i], img.Name, "images keep source order")
		if i == 1 {
			s.Equal(kitchen.ErrorImageSentinel, img.URL())
			continue
		}
		s.Equal(urls[items[i]], img.URL())
	}
	s.Equal(stored.IngredientImages, board.Selected.IngredientImages)
	s.False(board.IsLoadingImages(recipe.ID))
	s.Contains(s.titles(), "Image Gen Failed for "+items[1])
	last := board.Notifications[len(board.Notifications)-1]
	s.Equal("Ingredient Images Ready", last.Title)
	s.Equal(fmt.Sprintf("Images for %s are loaded.", recipe.Name), last.Description)
}

func (s *KitchenServiceTestSuite) TestSelectRecipe_FetchesOnce() {
	items, recipes := s.readyBoard(2, 1)
	s.actions.On("GenerateIngredientImage", mock.Anything, mock.Anything).
		Return(schema.IngredientImageOutput{ImageURL: s.factory.ImageDataURI()}, nil)

	first, err := s.service.SelectRecipe(s.ctx, s.sid, recipes[0].ID)
	s.Require().NoError(err)
	s.waitClosed(first.Images)

	second, err := s.service.SelectRecipe(s.ctx, s.sid, recipes[0].ID)
	s.Require().NoError(err)

	s.False(second.Fetched)
	s.waitClosed(second.Images)
	s.Len(second.Recipe.IngredientImages, len(items))
	s.actions.AssertNumberOfCalls(s.T(), "GenerateIngredientImage", len(items))
}

func (s *KitchenServiceTestSuite) TestSelectRecipe_ImagesRequestedConcurrently() {
	// Every call waits for all of its siblings to start
	items, recipes := s.readyBoard(4, 1)
	var started sync.WaitGroup
	started.Add(len(items))
	allStarted := make(chan struct{})
	go func() { started.Wait(); close(allStarted) }()

	s.actions.On("GenerateIngredientImage", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			started.Done()
			<-allStarted
		}).
		Return(schema.IngredientImageOutput{ImageURL: s.factory.ImageDataURI()}, nil)

	selection, err := s.service.SelectRecipe(s.ctx, s.sid, recipes[0].ID)
	s.Require().NoError(err)

	s.waitClosed(selection.Images)
	s.actions.AssertNumberOfCalls(s.T(), "GenerateIngredientImage", len(items))
}

func (s *KitchenServiceTestSuite) TestSelectRecipe_ReselectDuringFetchDoesNotRefetch() {
	// Arrange
	_, recipes := s.readyBoard(1, 2)
	a, b := recipes[0], recipes[1]
	releaseA := make(chan struct{})
	var calls atomic.Int32
	s.actions.On("GenerateIngredientImage", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			if calls.Add(1) == 1 {
				<-releaseA
			}
		}).
		Return(schema.IngredientImageOutput{ImageURL: s.factory.ImageDataURI()}, nil)

	selA, err := s.service.SelectRecipe(s.ctx, s.sid, a.ID)
	s.Require().NoError(err)
	s.Eventually(func() bool { return calls.Load() == 1 }, waitTimeout, 5*time.Millisecond)

	// Act: B is selected and resolved while A is still fetching
	selB, err := s.service.SelectRecipe(s.ctx, s.sid, b.ID)
	s.Require().NoError(err)
	s.waitClosed(selB.Images)
	s.False(s.board().IsLoadingImages(b.ID))

	reselectA, err := s.service.SelectRecipe(s.ctx, s.sid, a.ID)
	s.Require().NoError(err)
	s.False(reselectA.Fetched, "a running fan-out is never restarted")

	close(releaseA)
	s.waitClosed(selA.Images)

	// Assert
	board := s.board()
	s.False(board.IsLoadingImages(a.ID))
	stored, _ := board.Recipe(a.ID)
	s.True(stored.HasIngredientImages())
	s.Equal(a.ID, board.Selected.ID)
	s.False(board.Selected.IngredientImages[0].Pending())
	s.actions.AssertNumberOfCalls(s.T(), "GenerateIngredientImage", 2)
}

func (s *KitchenServiceTestSuite) TestSelectRecipe_UnknownRecipe() {
	_, err := s.service.SelectRecipe(s.ctx, s.sid, uuid.New())

	s.True(errors.Is(err, errors.CodeNotFound))
}

func (s *KitchenServiceTestSuite) TestCloseRecipe() {
	_, recipes := s.readyBoard(1, 1)
	s.actions.On("GenerateIngredientImage", mock.Anything, mock.Anything).
		Return(schema.IngredientImageOutput{ImageURL: s.factory.ImageDataURI()}, nil)
	selection, err := s.service.SelectRecipe(s.ctx, s.sid, recipes[0].ID)
	s.Require().NoError(err)
	s.waitClosed(selection.Images)

	s.Require().NoError(s.service.CloseRecipe(s.ctx, s.sid))

	s.Nil(s.board().Selected)
}

func (s *KitchenServiceTestSuite) TestSearchRecipeIngredients() {
	s.Run("blank name", func() {
		_, err := s.service.SearchRecipeIngredients(s.ctx, s.sid, "   ")

		s.True(errors.Is(err, errors.CodeValidationFailed))
		s.Equal("Please enter a recipe name to generate its ingredients.", errors.UserMessage(err))
		s.Contains(s.titles(), "Empty Search")
		s.actions.AssertNotCalled(s.T(), "GenerateIngredientsForRecipe", mock.Anything, mock.Anything)
	})

	s.Run("success", func() {
		name := s.factory.RecipeName()
		found := s.factory.FunIngredients(3)
		s.actions.On("GenerateIngredientsForRecipe", mock.Anything, schema.RecipeIngredientsInput{RecipeName: name}).
			Return(schema.RecipeIngredientsOutput{Ingredients: found}, nil).Once()

		result, err := s.service.SearchRecipeIngredients(s.ctx, s.sid, "  "+name+" ")

		s.Require().NoError(err)
		s.False(result.Loading)
		s.Equal(name, result.Query)
		s.Require().Len(result.Ingredients, 3)
		s.Equal(found[0].Name, result.Ingredients[0].Name)
		s.Equal(found[0].Comment, result.Ingredients[0].Comment)
		s.Contains(s.titles(), "Ingredients Generated!")
	})

	s.Run("nothing found", func() {
		s.actions.On("GenerateIngredientsForRecipe", mock.Anything, schema.RecipeIngredientsInput{RecipeName: "Air"}).
			Return(schema.RecipeIngredientsOutput{}, nil).Once()

		result, err := s.service.SearchRecipeIngredients(s.ctx, s.sid, "Air")

		s.Require().NoError(err)
		s.Empty(result.Ingredients)
		last := s.board().Notifications[len(s.board().Notifications)-1]
		s.Equal("No Ingredients Found", last.Title)
		s.Equal("Could not find common ingredients for Air. Try a different recipe name.", last.Description)
	})

	s.Run("failure", func() {
		s.actions.On("GenerateIngredientsForRecipe", mock.Anything, schema.RecipeIngredientsInput{RecipeName: "Mystery"}).
			Return(nil, errors.NewServiceError("Failed to generate ingredients for Mystery. Please try again.", stderrors.New("x"))).Once()

		_, err := s.service.SearchRecipeIngredients(s.ctx, s.sid, "Mystery")

		s.Equal("Failed to generate ingredients for Mystery. Please try again.", errors.UserMessage(err))
		board := s.board()
		s.False(board.Search.Loading)
		s.Empty(board.Search.Ingredients, "previous result is cleared")
	})
}

func (s *KitchenServiceTestSuite) TestDismissNotification() {
	_, _ = s.service.SubmitPhoto(s.ctx, s.sid, s.factory.TextFile())
	notification := s.board().Notifications[0]

	s.Require().NoError(s.service.DismissNotification(s.ctx, s.sid, notification.ID))

	s.Empty(s.board().Notifications)
	err := s.service.DismissNotification(s.ctx, s.sid, notification.ID)
	s.True(errors.Is(err, errors.CodeNotFound))
}

func (s *KitchenServiceTestSuite) TestSessionsAreIsolated() {
	s.readyBoard(2, 1)

	other, err := s.service.State(s.ctx, uuid.NewString())

	s.Require().NoError(err)
	s.Equal(kitchen.PhaseIdle, other.Phase)
	s.Empty(other.Recipes)
}

func (s *KitchenServiceTestSuite) TestMarksLeftByStoppedProcessAreReclaimed() {
	// Arrange: a board saved mid-analysis and mid-fetch an hour ago
	_, recipes := s.readyBoard(1, 1)
	id := recipes[0].ID
	board := s.board()
	longAgo := time.Now().Add(-time.Hour)
	s.Require().NoError(board.BeginAnalysis(longAgo))
	_, fetch, err := board.SelectRecipe(id, longAgo)
	s.Require().NoError(err)
	s.Require().True(fetch)
	s.Require().NoError(s.store.Save(s.ctx, board))

	// Act
	reloaded := s.board()

	// Assert
	s.False(reloaded.Analyzing())
	s.False(reloaded.IsFetching(id))
	s.False(reloaded.IsLoadingImages(id))

	s.actions.On("GenerateIngredientImage", mock.Anything, mock.Anything).
		Return(schema.IngredientImageOutput{ImageURL: s.factory.ImageDataURI()}, nil).Once()
	selection, err := s.service.SelectRecipe(s.ctx, s.sid, id)
	s.Require().NoError(err)
	s.True(selection.Fetched)
	s.waitClosed(selection.Images)

	items := s.factory.Ingredients(2)
	s.expectAnalysis(items)
	s.expectRecipes(items, s.factory.RecipeSuggestions(1))
	result, err := s.service.SubmitPhoto(s.ctx, s.sid, s.factory.Photo(512))
	s.Require().NoError(err)
	s.waitClosed(result.Recipes)
}

func (s *KitchenServiceTestSuite) TestShutdownWaitsForBackgroundWork() {
	// Arrange
	items := s.factory.Ingredients(1)
	release := make(chan struct{})
	s.expectAnalysis(items)
	s.actions.On("GenerateRecipes", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(schema.GenerateRecipesOutput{}, nil).Once()

	result, err := s.service.SubmitPhoto(s.ctx, s.sid, s.factory.Photo(1024))
	s.Require().NoError(err)

	// Act
	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	shortErr := s.service.Shutdown(short)
	close(release)

	// Assert
	s.ErrorIs(shortErr, context.DeadlineExceeded)
	s.waitClosed(result.Recipes)
	s.NoError(s.service.Shutdown(context.Background()))
}

func (s *KitchenServiceTestSuite) TestShutdownRefusesNewWork() {
	// Arrange
	_, recipes := s.readyBoard(1, 1)
	id := recipes[0].ID
	s.Require().NoError(s.service.Shutdown(s.ctx))

	// Act
	selection, err := s.service.SelectRecipe(s.ctx, s.sid, id)

	// Assert: the refused fetch leaves no loading marks behind
	s.Require().NoError(err)
	s.False(selection.Fetched)
	s.Empty(selection.Recipe.IngredientImages)
	s.waitClosed(selection.Images)
	s.actions.AssertNotCalled(s.T(), "GenerateIngredientImage", mock.Anything, mock.Anything)
	board := s.board()
	s.False(board.IsFetching(id))
	s.False(board.IsLoadingImages(id))
	s.Empty(board.Selected.IngredientImages)
	s.Equal("Ingredient Image Generation Failed", board.Notifications[len(board.Notifications)-1].Title)

	// A service started on the same store can fetch the images
	s.actions.On("GenerateIngredientImage", mock.Anything, mock.Anything).
		Return(schema.IngredientImageOutput{ImageURL: s.factory.ImageDataURI()}, nil).Once()
	restarted := s.newService()
	defer func() { s.NoError(restarted.Shutdown(context.Background())) }()

	retry, err := restarted.SelectRecipe(s.ctx, s.sid, id)
	s.Require().NoError(err)
	s.True(retry.Fetched)
	s.waitClosed(retry.Images)
	stored, _ := s.board().Recipe(id)
	s.True(stored.HasIngredientImages())
}
