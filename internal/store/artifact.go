package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mealweek/api/internal/model"
)

type Artifacts interface {
	Upsert(ctx context.Context, artifact *model.PrepArtifact) error
	Get(ctx context.Context, planID uuid.UUID, kind model.ArtifactKind) (*model.PrepArtifact, error)
	ListForPlan(ctx context.Context, planID uuid.UUID) ([]model.PrepArtifact, error)
	SetStatus(ctx context.Context, planID uuid.UUID, kind model.ArtifactKind, status model.BatchPrepStatus) error
}

type ArtifactStore struct {
	db *gorm.DB
}

var _ Artifacts = (*ArtifactStore)(nil)

func NewArtifactStore(db *gorm.DB) Artifacts {
	return &ArtifactStore{db: db}
}

func (s *ArtifactStore) Upsert(ctx context.Context, artifact *model.PrepArtifact) error {
	err := s.getDB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "plan_id"}, {Name: "kind"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "sessions", "assembly_guide", "updated_at"}),
	}).Create(artifact).Error
	if err != nil {
		return fmt.Errorf("upserting prep artifact: %w", err)
	}
	return nil
}

func (s *ArtifactStore) Get(ctx context.Context, planID uuid.UUID, kind model.ArtifactKind) (*model.PrepArtifact, error) {
	var artifact model.PrepArtifact
	result := s.getDB(ctx).First(&artifact, "plan_id = ? AND kind = ?", planID, kind)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying prep artifact: %w", result.Error)
	}
	return &artifact, nil
}

func (s *ArtifactStore) ListForPlan(ctx context.Context, planID uuid.UUID) ([]model.PrepArtifact, error) {
	var artifacts []model.PrepArtifact
	if err := s.getDB(ctx).Where("plan_id = ?", planID).Find(&artifacts).Error; err != nil {
		return nil, fmt.Errorf("listing prep artifacts: %w", err)
	}
	return artifacts, nil
}

func (s *ArtifactStore) SetStatus(ctx context.Context, planID uuid.UUID, kind model.ArtifactKind, status model.BatchPrepStatus) error {
	result := s.getDB(ctx).Model(&model.PrepArtifact{}).
		Where("plan_id = ? AND kind = ?", planID, kind).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("updating artifact status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *ArtifactStore) getDB(ctx context.Context) *gorm.DB {
	if tx := FromContext(ctx); tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}
