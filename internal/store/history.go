package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/mealweek/api/internal/model"
)

type History interface {
	Record(ctx context.Context, entry *model.ThemeHistory) error
	// RecentThemeIDs returns the theme ids used by the user's last n plans,
	// newest first. Theme-less plans are skipped.
	RecentThemeIDs(ctx context.Context, userID string, n int) ([]string, error)
}

type HistoryStore struct {
	db *gorm.DB
}

var _ History = (*HistoryStore)(nil)

func NewHistoryStore(db *gorm.DB) History {
	return &HistoryStore{db: db}
}

func (s *HistoryStore) Record(ctx context.Context, entry *model.ThemeHistory) error {
	if err := s.getDB(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("recording theme history: %w", err)
	}
	return nil
}

func (s *HistoryStore) RecentThemeIDs(ctx context.Context, userID string, n int) ([]string, error) {
	var ids []string
	err := s.getDB(ctx).Model(&model.ThemeHistory{}).
		Where("user_id = ? AND theme_id IS NOT NULL", userID).
		Order("created_at DESC").
		Limit(n).
		Pluck("theme_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("querying recent themes: %w", err)
	}
	return ids, nil
}

func (s *HistoryStore) getDB(ctx context.Context) *gorm.DB {
	if tx := FromContext(ctx); tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}
