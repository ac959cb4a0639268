package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/mealweek/api/internal/model"
)

type Store interface {
	Jobs() Jobs
	Steps() Steps
	Plans() Plans
	Meals() Meals
	Themes() Themes
	Profiles() Profiles
	History() History
	Artifacts() Artifacts

	// Transaction runs fn with a transaction bound to the context; every
	// store call made through that context joins the same transaction.
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error

	Migrate() error
	Seed(ctx context.Context) error
	Close() error
}

type DataStore struct {
	db        *gorm.DB
	jobs      Jobs
	steps     Steps
	plans     Plans
	meals     Meals
	themes    Themes
	profiles  Profiles
	history   History
	artifacts Artifacts
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		db:        db,
		jobs:      NewJobStore(db),
		steps:     NewStepStore(db),
		plans:     NewPlanStore(db),
		meals:     NewMealStore(db),
		themes:    NewThemeStore(db),
		profiles:  NewProfileStore(db),
		history:   NewHistoryStore(db),
		artifacts: NewArtifactStore(db),
	}
}

func (s *DataStore) Jobs() Jobs           { return s.jobs }
func (s *DataStore) Steps() Steps         { return s.steps }
func (s *DataStore) Plans() Plans         { return s.plans }
func (s *DataStore) Meals() Meals         { return s.meals }
func (s *DataStore) Themes() Themes       { return s.themes }
func (s *DataStore) Profiles() Profiles   { return s.profiles }
func (s *DataStore) History() History     { return s.history }
func (s *DataStore) Artifacts() Artifacts { return s.artifacts }

type contextKey int

const transactionKey contextKey = iota

// FromContext returns the transaction bound to ctx, or nil.
func FromContext(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(transactionKey).(*gorm.DB); ok {
		return tx
	}
	return nil
}

func (s *DataStore) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if FromContext(ctx) != nil {
		// already inside a transaction; join it
		return fn(ctx)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, transactionKey, tx))
	})
}

func (s *DataStore) Migrate() error {
	return s.db.AutoMigrate(
		&model.GenerationJob{},
		&model.PipelineStep{},
		&model.MealPlan{},
		&model.Meal{},
		&model.PlanSlot{},
		&model.Theme{},
		&model.PrepArtifact{},
		&model.UserProfile{},
		&model.ThemeHistory{},
	)
}

// Seed upserts the theme catalog.
func (s *DataStore) Seed(ctx context.Context) error {
	return seedThemes(ctx, s.db)
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
