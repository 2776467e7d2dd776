// Package testutils provides mock implementations for testing
package testutils

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alchemorsel/pantrylens/internal/domain/schema"
	"github.com/alchemorsel/pantrylens/internal/ports/inbound"
	"github.com/alchemorsel/pantrylens/internal/ports/outbound"
	"github.com/stretchr/testify/mock"
)

var (
	_ outbound.RecipeAI        = (*MockRecipeAI)(nil)
	_ inbound.RecipeActions    = (*MockRecipeActions)(nil)
	_ outbound.CacheRepository = (*MockCacheRepository)(nil)
)

// MockRecipeAI provides a mock implementation of outbound.RecipeAI
type MockRecipeAI struct {
	mock.Mock
}

// AnalyzeImage mocks photo analysis
func (m *MockRecipeAI) AnalyzeImage(ctx context.Context, in schema.AnalyzeImageInput) (schema.AnalyzeImageOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(schema.AnalyzeImageOutput)
	return out, args.Error(1)
}

// GenerateRecipes mocks recipe generation
func (m *MockRecipeAI) GenerateRecipes(ctx context.Context, in schema.GenerateRecipesInput) (schema.GenerateRecipesOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(schema.GenerateRecipesOutput)
	return out, args.Error(1)
}

// GenerateIngredientImage mocks ingredient image generation
func (m *MockRecipeAI) GenerateIngredientImage(ctx context.Context, in schema.IngredientImageInput) (schema.IngredientImageOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(schema.IngredientImageOutput)
	return out, args.Error(1)
}

// GenerateIngredientsForRecipe mocks the recipe-name lookup
func (m *MockRecipeAI) GenerateIngredientsForRecipe(ctx context.Context, in schema.RecipeIngredientsInput) (schema.RecipeIngredientsOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(schema.RecipeIngredientsOutput)
	return out, args.Error(1)
}

// MockRecipeActions provides a mock implementation of inbound.RecipeActions
type MockRecipeActions struct {
	mock.Mock
}

// AnalyzeImage mocks photo analysis
func (m *MockRecipeActions) AnalyzeImage(ctx context.Context, in schema.AnalyzeImageInput) (schema.AnalyzeImageOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(schema.AnalyzeImageOutput)
	return out, args.Error(1)
}

// GenerateRecipes mocks recipe generation
func (m *MockRecipeActions) GenerateRecipes(ctx context.Context, in schema.GenerateRecipesInput) (schema.GenerateRecipesOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(schema.GenerateRecipesOutput)
	return out, args.Error(1)
}

// GenerateIngredientImage mocks ingredient image generation
func (m *MockRecipeActions) GenerateIngredientImage(ctx context.Context, in schema.IngredientImageInput) (schema.IngredientImageOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(schema.IngredientImageOutput)
	return out, args.Error(1)
}

// GenerateIngredientsForRecipe mocks the recipe-name lookup
func (m *MockRecipeActions) GenerateIngredientsForRecipe(ctx context.Context, in schema.RecipeIngredientsInput) (schema.RecipeIngredientsOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(schema.RecipeIngredientsOutput)
	return out, args.Error(1)
}

// MockCacheRepository is a map-backed cache without expiry
type MockCacheRepository struct {
	mu    sync.RWMutex
	items map[string][]byte
	// FailWith makes every call return this error when set
	FailWith error
	// FailSetOn makes only the n-th Set call fail, counting from 1
	FailSetOn int
	sets      int
}

// ErrInjectedSet is returned by the Set call selected with FailSetOn
var ErrInjectedSet = errors.New("injected set failure")

// NewMockCacheRepository creates a new mock cache repository
func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{items: make(map[string][]byte)}
}

// Get retrieves a value
func (m *MockCacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	if !ok {
		return nil, outbound.ErrCacheMiss
	}
	return append([]byte(nil), v...), nil
}

// Set stores a value
func (m *MockCacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.FailWith != nil {
		return m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.sets == m.FailSetOn {
		return ErrInjectedSet
	}
	m.items[key] = append([]byte(nil), value...)
	return nil
}

// Delete removes a value
func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	if m.FailWith != nil {
		return m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// Exists reports whether a key is stored
func (m *MockCacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	if m.FailWith != nil {
		return false, m.FailWith
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.items[key]
	return ok, nil
}

// Len returns the number of stored keys
func (m *MockCacheRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
