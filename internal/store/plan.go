package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mealweek/api/internal/model"
)

type Plans interface {
	Create(ctx context.Context, plan *model.MealPlan) error
	CreateSlots(ctx context.Context, slots []model.PlanSlot) error
	Get(ctx context.Context, id uuid.UUID) (*model.MealPlan, error)
	// GetForUser loads a plan with slots and meals, scoped to its owner.
	GetForUser(ctx context.Context, userID string, id uuid.UUID) (*model.MealPlan, error)
	SetFavorite(ctx context.Context, id uuid.UUID, favorite bool) error
	SetBatchPrepStatus(ctx context.Context, id uuid.UUID, status model.BatchPrepStatus) error
	// RecentMealNames returns the meal names referenced by the user's most
	// recent plans, newest first, for generation-context dedup hints.
	RecentMealNames(ctx context.Context, userID string, planLimit int) ([]string, error)
	// SlotCountForMeal counts plan-slot references to one meal.
	SlotCountForMeal(ctx context.Context, mealID uuid.UUID) (int64, error)
}

type PlanStore struct {
	db *gorm.DB
}

var _ Plans = (*PlanStore)(nil)

func NewPlanStore(db *gorm.DB) Plans {
	return &PlanStore{db: db}
}

func (s *PlanStore) Create(ctx context.Context, plan *model.MealPlan) error {
	if err := s.getDB(ctx).Create(plan).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("creating meal plan: %w", err)
	}
	return nil
}

func (s *PlanStore) CreateSlots(ctx context.Context, slots []model.PlanSlot) error {
	if len(slots) == 0 {
		return nil
	}
	if err := s.getDB(ctx).Create(&slots).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("creating plan slots: %w", err)
	}
	return nil
}

func (s *PlanStore) Get(ctx context.Context, id uuid.UUID) (*model.MealPlan, error) {
	var plan model.MealPlan
	result := s.getDB(ctx).Preload("Slots").Preload("Slots.Meal").First(&plan, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying meal plan: %w", result.Error)
	}
	return &plan, nil
}

func (s *PlanStore) GetForUser(ctx context.Context, userID string, id uuid.UUID) (*model.MealPlan, error) {
	var plan model.MealPlan
	result := s.getDB(ctx).Preload("Slots").Preload("Slots.Meal").
		First(&plan, "id = ? AND user_id = ?", id, userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying meal plan: %w", result.Error)
	}
	return &plan, nil
}

func (s *PlanStore) SetFavorite(ctx context.Context, id uuid.UUID, favorite bool) error {
	result := s.getDB(ctx).Model(&model.MealPlan{}).Where("id = ?", id).
		Update("is_favorite", favorite)
	if result.Error != nil {
		return fmt.Errorf("updating favorite: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *PlanStore) SetBatchPrepStatus(ctx context.Context, id uuid.UUID, status model.BatchPrepStatus) error {
	result := s.getDB(ctx).Model(&model.MealPlan{}).Where("id = ?", id).
		Update("batch_prep_status", status)
	if result.Error != nil {
		return fmt.Errorf("updating batch prep status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *PlanStore) RecentMealNames(ctx context.Context, userID string, planLimit int) ([]string, error) {
	var planIDs []uuid.UUID
	err := s.getDB(ctx).Model(&model.MealPlan{}).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(planLimit).
		Pluck("id", &planIDs).Error
	if err != nil {
		return nil, fmt.Errorf("querying recent plans: %w", err)
	}
	if len(planIDs) == 0 {
		return nil, nil
	}

	var names []string
	err = s.getDB(ctx).Model(&model.PlanSlot{}).
		Distinct("meals.name").
		Joins("JOIN meals ON meals.id = plan_slots.meal_id").
		Where("plan_slots.plan_id IN ?", planIDs).
		Pluck("meals.name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("querying recent meal names: %w", err)
	}
	return names, nil
}

func (s *PlanStore) SlotCountForMeal(ctx context.Context, mealID uuid.UUID) (int64, error) {
	var count int64
	err := s.getDB(ctx).Model(&model.PlanSlot{}).Where("meal_id = ?", mealID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("counting slots: %w", err)
	}
	return count, nil
}

func (s *PlanStore) getDB(ctx context.Context) *gorm.DB {
	if tx := FromContext(ctx); tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}
