package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mealweek/api/internal/model"
)

type Themes interface {
	List(ctx context.Context) ([]model.Theme, error)
	Get(ctx context.Context, id string) (*model.Theme, error)
}

type ThemeStore struct {
	db *gorm.DB
}

var _ Themes = (*ThemeStore)(nil)

func NewThemeStore(db *gorm.DB) Themes {
	return &ThemeStore{db: db}
}

func (s *ThemeStore) List(ctx context.Context) ([]model.Theme, error) {
	var themes []model.Theme
	if err := s.getDB(ctx).Order("id").Find(&themes).Error; err != nil {
		return nil, fmt.Errorf("listing themes: %w", err)
	}
	return themes, nil
}

func (s *ThemeStore) Get(ctx context.Context, id string) (*model.Theme, error) {
	var theme model.Theme
	result := s.getDB(ctx).First(&theme, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying theme: %w", result.Error)
	}
	return &theme, nil
}

func (s *ThemeStore) getDB(ctx context.Context) *gorm.DB {
	if tx := FromContext(ctx); tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}

type seedTheme struct {
	id, name, display, description string
	compatible, incompatible       []string
	peakMonths                     []int
}

var defaultThemes = []seedTheme{
	{"mediterranean", "Mediterranean", "Mediterranean Week", "Olive oil, fresh vegetables, fish and legumes from the Mediterranean coast", []string{"vegetarian", "pescatarian"}, nil, []int{5, 6, 7, 8}},
	{"mexican", "Mexican", "Mexican Fiesta", "Tacos, fajitas and bowls with beans, corn and fresh salsa", []string{"vegetarian", "vegan"}, nil, []int{5, 6, 7}},
	{"italian", "Italian", "Italian Classics", "Pasta, risotto and hearty Italian comfort food", []string{"vegetarian"}, nil, []int{9, 10, 11}},
	{"asian-fusion", "Asian Fusion", "Asian Fusion", "Stir-fries, noodle bowls and rice dishes across East and Southeast Asia", []string{"vegetarian", "vegan", "pescatarian"}, nil, []int{1, 2, 3}},
	{"comfort-classics", "Comfort Classics", "Cozy Comfort Food", "Slow-cooked stews, casseroles and roasts", nil, []string{"vegan"}, []int{11, 12, 1, 2}},
	{"summer-grill", "Summer Grill", "Fired Up Grill Week", "Grilled proteins and vegetables with bright summer sides", nil, []string{"vegan"}, []int{6, 7, 8}},
	{"plant-forward", "Plant Forward", "Plant-Forward Week", "Vegetable-centric plates with whole grains and legumes", []string{"vegetarian", "vegan", "pescatarian"}, nil, []int{3, 4, 5}},
	{"harvest-season", "Harvest Season", "Autumn Harvest", "Squash, root vegetables and orchard fruit at their peak", []string{"vegetarian", "vegan"}, nil, []int{9, 10, 11}},
}

func seedThemes(ctx context.Context, db *gorm.DB) error {
	for _, t := range defaultThemes {
		compatible, _ := json.Marshal(t.compatible)
		incompatible, _ := json.Marshal(t.incompatible)
		peak, _ := json.Marshal(t.peakMonths)

		theme := model.Theme{
			ID:                t.id,
			Name:              t.name,
			DisplayName:       t.display,
			Description:       t.description,
			CompatibleDiets:   compatible,
			IncompatibleDiets: incompatible,
			PeakMonths:        peak,
		}
		err := db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "display_name", "description", "compatible_diets", "incompatible_diets", "peak_months"}),
		}).Create(&theme).Error
		if err != nil {
			return fmt.Errorf("seeding theme %s: %w", t.id, err)
		}
	}
	return nil
}
