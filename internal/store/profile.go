package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mealweek/api/internal/model"
)

type Profiles interface {
	Get(ctx context.Context, userID string) (*model.UserProfile, error)
	Upsert(ctx context.Context, profile *model.UserProfile) error
}

type ProfileStore struct {
	db *gorm.DB
}

var _ Profiles = (*ProfileStore)(nil)

func NewProfileStore(db *gorm.DB) Profiles {
	return &ProfileStore{db: db}
}

func (s *ProfileStore) Get(ctx context.Context, userID string) (*model.UserProfile, error) {
	var profile model.UserProfile
	result := s.getDB(ctx).First(&profile, "user_id = ?", userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying user profile: %w", result.Error)
	}
	return &profile, nil
}

func (s *ProfileStore) Upsert(ctx context.Context, profile *model.UserProfile) error {
	err := s.getDB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(profile).Error
	if err != nil {
		return fmt.Errorf("upserting user profile: %w", err)
	}
	return nil
}

func (s *ProfileStore) getDB(ctx context.Context) *gorm.DB {
	if tx := FromContext(ctx); tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}
