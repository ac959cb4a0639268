package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/mealweek/api/internal/gateway"
	"github.com/mealweek/api/internal/model"
	"github.com/mealweek/api/internal/store"
)

// NormalizeMealName builds the dedup key for a meal name: lowercase, strip
// punctuation, collapse whitespace. "Grilled  Chicken Bowl!" and "grilled
// chicken bowl" map to the same key.
func NormalizeMealName(name string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// mealResolver maps generated meals onto canonical Meal rows for one user.
// Reused meals keep their original content; only times_used moves. The local
// cache is scoped to a single pipeline run, so the same lunch appearing
// three times in one week touches the datastore once for lookup and creates
// at most one row. Across runs the unique index on (user_id, meal_type,
// name_normalized) is the source of truth.
type mealResolver struct {
	store store.Store
	cache map[string]uuid.UUID
}

func newMealResolver(st store.Store) *mealResolver {
	return &mealResolver{
		store: st,
		cache: make(map[string]uuid.UUID),
	}
}

// Resolve returns the canonical meal id for one generated meal occurrence
// and counts the occurrence in times_used.
func (r *mealResolver) Resolve(ctx context.Context, userID string, planID uuid.UUID, gen *gateway.GeneratedMeal) (uuid.UUID, error) {
	normalized := NormalizeMealName(gen.Name)
	cacheKey := string(gen.MealType) + "|" + normalized

	if id, ok := r.cache[cacheKey]; ok {
		if err := r.store.Meals().IncrementTimesUsed(ctx, id, 1); err != nil {
			return uuid.Nil, err
		}
		return id, nil
	}

	existing, err := r.store.Meals().FindByKey(ctx, userID, gen.MealType, normalized)
	if err == nil {
		if err := r.store.Meals().IncrementTimesUsed(ctx, existing.ID, 1); err != nil {
			return uuid.Nil, err
		}
		r.cache[cacheKey] = existing.ID
		return existing.ID, nil
	}
	if !errors.Is(err, store.ErrRecordNotFound) {
		return uuid.Nil, err
	}

	meal, err := buildMealRow(userID, planID, normalized, gen)
	if err != nil {
		return uuid.Nil, err
	}

	err = r.store.Meals().Create(ctx, meal)
	if errors.Is(err, store.ErrDuplicateKey) {
		// lost a race against a concurrent job for the same user; the
		// constraint decides, we fall back to reuse
		winner, findErr := r.store.Meals().FindByKey(ctx, userID, gen.MealType, normalized)
		if findErr != nil {
			return uuid.Nil, findErr
		}
		if err := r.store.Meals().IncrementTimesUsed(ctx, winner.ID, 1); err != nil {
			return uuid.Nil, err
		}
		r.cache[cacheKey] = winner.ID
		return winner.ID, nil
	}
	if err != nil {
		return uuid.Nil, err
	}

	r.cache[cacheKey] = meal.ID
	return meal.ID, nil
}

func buildMealRow(userID string, planID uuid.UUID, normalized string, gen *gateway.GeneratedMeal) (*model.Meal, error) {
	ingredients, err := json.Marshal(gen.Ingredients)
	if err != nil {
		return nil, fmt.Errorf("marshalling ingredients: %w", err)
	}
	instructions, err := json.Marshal(gen.Instructions)
	if err != nil {
		return nil, fmt.Errorf("marshalling instructions: %w", err)
	}
	macros, err := json.Marshal(gen.Macros)
	if err != nil {
		return nil, fmt.Errorf("marshalling macros: %w", err)
	}

	sourcePlan := planID
	return &model.Meal{
		ID:              uuid.New(),
		UserID:          userID,
		MealType:        gen.MealType,
		NameNormalized:  normalized,
		Name:            gen.Name,
		Ingredients:     ingredients,
		Instructions:    instructions,
		Macros:          macros,
		PrepTimeMinutes: gen.PrepTimeMinutes,
		TimesUsed:       1,
		SourceType:      model.SourceTypeGenerated,
		SourcePlanID:    &sourcePlan,
	}, nil
}
