package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mealweek/api/internal/model"
)

type Meals interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Meal, error)
	// FindByKey looks up a meal by its dedup key.
	FindByKey(ctx context.Context, userID string, mealType model.MealType, nameNormalized string) (*model.Meal, error)
	// Create inserts a meal. The unique index on (user_id, meal_type,
	// name_normalized) is the cross-run dedup source of truth: a concurrent
	// writer losing the race gets ErrDuplicateKey and must fall back to
	// FindByKey + IncrementTimesUsed.
	Create(ctx context.Context, meal *model.Meal) error
	IncrementTimesUsed(ctx context.Context, id uuid.UUID, by int) error
}

type MealStore struct {
	db *gorm.DB
}

var _ Meals = (*MealStore)(nil)

func NewMealStore(db *gorm.DB) Meals {
	return &MealStore{db: db}
}

func (s *MealStore) Get(ctx context.Context, id uuid.UUID) (*model.Meal, error) {
	var meal model.Meal
	result := s.getDB(ctx).First(&meal, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying meal: %w", result.Error)
	}
	return &meal, nil
}

func (s *MealStore) FindByKey(ctx context.Context, userID string, mealType model.MealType, nameNormalized string) (*model.Meal, error) {
	var meal model.Meal
	result := s.getDB(ctx).First(&meal,
		"user_id = ? AND meal_type = ? AND name_normalized = ?",
		userID, mealType, nameNormalized)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying meal by key: %w", result.Error)
	}
	return &meal, nil
}

func (s *MealStore) Create(ctx context.Context, meal *model.Meal) error {
	if err := s.getDB(ctx).Create(meal).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("creating meal: %w", err)
	}
	return nil
}

func (s *MealStore) IncrementTimesUsed(ctx context.Context, id uuid.UUID, by int) error {
	result := s.getDB(ctx).Model(&model.Meal{}).Where("id = ?", id).
		Update("times_used", gorm.Expr("times_used + ?", by))
	if result.Error != nil {
		return fmt.Errorf("incrementing times_used: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *MealStore) getDB(ctx context.Context) *gorm.DB {
	if tx := FromContext(ctx); tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}
