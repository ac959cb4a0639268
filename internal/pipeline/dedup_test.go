package pipeline

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealweek/api/internal/gateway"
	"github.com/mealweek/api/internal/model"
)

func TestNormalizeMealName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Grilled Chicken Bowl", "grilled chicken bowl"},
		{"  Grilled   Chicken  Bowl!  ", "grilled chicken bowl"},
		{"Mac & Cheese", "mac cheese"},
		{"Chef's Special #2", "chefs special 2"},
		{"", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, NormalizeMealName(c.in), "input %q", c.in)
	}
}

func generated(name string, mealType model.MealType) *gateway.GeneratedMeal {
	return &gateway.GeneratedMeal{
		Name:         name,
		MealType:     mealType,
		Ingredients:  []gateway.IngredientLine{{Name: "chicken", Amount: 1, Unit: "lb", Category: "proteins"}},
		Instructions: []string{"Grill"},
	}
}

func TestResolveReusesExistingMeal(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	planID := uuid.New()

	r1 := newMealResolver(st)
	first, err := r1.Resolve(ctx, "user-1", planID, generated("Grilled Chicken Bowl", model.MealTypeLunch))
	require.NoError(t, err)

	// a later run with a fresh resolver and differently-cased name
	r2 := newMealResolver(st)
	second, err := r2.Resolve(ctx, "user-1", planID, generated("grilled  chicken bowl", model.MealTypeLunch))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	meal, err := st.Meals().Get(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, 2, meal.TimesUsed)
	assert.Equal(t, "Grilled Chicken Bowl", meal.Name, "first generation owns the content")
}

func TestResolveKeyIsMealTypeScoped(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	planID := uuid.New()
	r := newMealResolver(st)

	breakfast, err := r.Resolve(ctx, "user-1", planID, generated("Grilled Chicken Bowl", model.MealTypeBreakfast))
	require.NoError(t, err)
	lunch, err := r.Resolve(ctx, "user-1", planID, generated("Grilled Chicken Bowl", model.MealTypeLunch))
	require.NoError(t, err)

	assert.NotEqual(t, breakfast, lunch)
}

func TestResolveCachesWithinRun(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	planID := uuid.New()
	r := newMealResolver(st)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		id, err := r.Resolve(ctx, "user-1", planID, generated("Quinoa Power Bowl", model.MealTypeLunch))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	assert.Equal(t, ids[0], ids[1])
	assert.Equal(t, ids[1], ids[2])

	meal, err := st.Meals().Get(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, 3, meal.TimesUsed)
}

func TestResolveScopedPerUser(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	planID := uuid.New()

	// resolvers are scoped to one run for one user
	a, err := newMealResolver(st).Resolve(ctx, "user-a", planID, generated("Lentil Curry", model.MealTypeDinner))
	require.NoError(t, err)
	b, err := newMealResolver(st).Resolve(ctx, "user-b", planID, generated("Lentil Curry", model.MealTypeDinner))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}
