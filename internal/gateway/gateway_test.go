package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealweek/api/internal/model"
)

type stubGenerator struct {
	response string
	err      error
}

func (s *stubGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	return s.response, s.err
}

func TestGenerateCoreIngredients(t *testing.T) {
	g := New(&stubGenerator{response: `{"core_ingredients": {"proteins": ["chicken", "tofu"], "vegetables": ["spinach"]}}`})

	out, err := g.GenerateCoreIngredients(context.Background(), &IngredientsInput{})
	require.NoError(t, err)
	assert.Equal(t, []string{"chicken", "tofu"}, out["proteins"])
	assert.Equal(t, []string{"spinach"}, out["vegetables"])
}

func TestGenerateCoreIngredientsStripsCodeFence(t *testing.T) {
	g := New(&stubGenerator{response: "```json\n{\"core_ingredients\": {\"proteins\": [\"chicken\"]}}\n```"})

	out, err := g.GenerateCoreIngredients(context.Background(), &IngredientsInput{})
	require.NoError(t, err)
	assert.Len(t, out["proteins"], 1)
}

func TestGenerateCoreIngredientsEmptyCategory(t *testing.T) {
	g := New(&stubGenerator{response: `{"core_ingredients": {"proteins": []}}`})

	_, err := g.GenerateCoreIngredients(context.Background(), &IngredientsInput{})
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageIngredients, stageErr.Stage)
	assert.NotEmpty(t, stageErr.Raw)
}

func TestGenerateMeals(t *testing.T) {
	g := New(&stubGenerator{response: `{
		"title": "Mediterranean Week",
		"days": [{
			"day": "monday",
			"meals": [{
				"name": "Greek Salad Bowl",
				"meal_type": "lunch",
				"ingredients": [{"name": "cucumber", "amount": 1, "unit": "whole", "category": "vegetables"}],
				"instructions": ["Chop", "Toss"],
				"macros": {"calories": 420, "protein": 18, "carbs": 35, "fat": 22},
				"prep_time_minutes": 15
			}]
		}]
	}`})

	out, err := g.GenerateMeals(context.Background(), &MealsInput{})
	require.NoError(t, err)
	assert.Equal(t, "Mediterranean Week", out.Title)
	require.Len(t, out.Days, 1)
	assert.Equal(t, model.DayMonday, out.Days[0].Day)
	assert.Equal(t, model.MealTypeLunch, out.Days[0].Meals[0].MealType)
}

func TestGenerateMealsInvalidMealType(t *testing.T) {
	g := New(&stubGenerator{response: `{
		"days": [{"day": "monday", "meals": [{"name": "Mystery", "meal_type": "brunch", "ingredients": [{"name": "x"}]}]}]
	}`})

	_, err := g.GenerateMeals(context.Background(), &MealsInput{})
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageMeals, stageErr.Stage)
	assert.Contains(t, stageErr.Message, "meal_type")
}

func TestGenerateMealsNotJSON(t *testing.T) {
	g := New(&stubGenerator{response: "Here is your meal plan! Monday: pancakes..."})

	_, err := g.GenerateMeals(context.Background(), &MealsInput{})
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Contains(t, stageErr.Raw, "pancakes")
}

func TestGeneratePrepSessionsReturnsRawOnFailure(t *testing.T) {
	raw := `{"sessions": []}`
	g := New(&stubGenerator{response: raw})

	_, gotRaw, err := g.GeneratePrepSessions(context.Background(), &PrepInput{})
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StagePrep, stageErr.Stage)
	assert.Equal(t, raw, gotRaw)
}

func TestGeneratePrepSessions(t *testing.T) {
	g := New(&stubGenerator{response: `{
		"sessions": [{"name": "Sunday prep", "day": "sunday", "duration_minutes": 90, "tasks": ["Roast vegetables"]}],
		"assembly_guide": [{"day": "monday", "steps": ["Reheat and plate"]}]
	}`})

	out, raw, err := g.GeneratePrepSessions(context.Background(), &PrepInput{})
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
	require.Len(t, out.Sessions, 1)
	assert.Equal(t, 90, out.Sessions[0].DurationMinutes)
	require.Len(t, out.AssemblyGuide, 1)
}

func TestGeneratorErrorBecomesStageError(t *testing.T) {
	g := New(&stubGenerator{err: errors.New("connection refused")})

	_, err := g.GenerateCoreIngredients(context.Background(), &IngredientsInput{})
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Contains(t, stageErr.Message, "connection refused")
}
