package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealweek/api/internal/model"
)

func mealRow(userID, normalized string, mealType model.MealType) *model.Meal {
	return &model.Meal{
		ID:             uuid.New(),
		UserID:         userID,
		MealType:       mealType,
		NameNormalized: normalized,
		Name:           "Grilled Chicken Bowl",
		TimesUsed:      1,
	}
}

func TestMealCreateDuplicateKey(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	require.NoError(t, st.Meals().Create(ctx, mealRow("user-1", "grilled chicken bowl", model.MealTypeLunch)))

	err := st.Meals().Create(ctx, mealRow("user-1", "grilled chicken bowl", model.MealTypeLunch))
	assert.ErrorIs(t, err, ErrDuplicateKey)

	// same key under a different meal type or user is a different meal
	require.NoError(t, st.Meals().Create(ctx, mealRow("user-1", "grilled chicken bowl", model.MealTypeBreakfast)))
	require.NoError(t, st.Meals().Create(ctx, mealRow("user-2", "grilled chicken bowl", model.MealTypeLunch)))
}

func TestMealFindByKeyAndIncrement(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	meal := mealRow("user-1", "lentil curry", model.MealTypeDinner)
	require.NoError(t, st.Meals().Create(ctx, meal))

	found, err := st.Meals().FindByKey(ctx, "user-1", model.MealTypeDinner, "lentil curry")
	require.NoError(t, err)
	assert.Equal(t, meal.ID, found.ID)

	require.NoError(t, st.Meals().IncrementTimesUsed(ctx, meal.ID, 2))
	found, err = st.Meals().Get(ctx, meal.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, found.TimesUsed)

	_, err = st.Meals().FindByKey(ctx, "user-1", model.MealTypeDinner, "no such meal")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestThemeSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	require.NoError(t, st.Seed(ctx))
	themes, err := st.Themes().List(ctx)
	require.NoError(t, err)
	first := len(themes)
	assert.NotZero(t, first)

	require.NoError(t, st.Seed(ctx))
	themes, err = st.Themes().List(ctx)
	require.NoError(t, err)
	assert.Len(t, themes, first)
}
