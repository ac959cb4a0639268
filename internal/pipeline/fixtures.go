package pipeline

import (
	"context"
	"fmt"

	"github.com/mealweek/api/internal/gateway"
	"github.com/mealweek/api/internal/model"
)

// FixtureGenerator replaces the paid generation stages with canned content
// when pipeline.test_mode is set. Everything downstream of generation,
// persistence and dedup included, runs the identical code path.
type FixtureGenerator struct{}

var _ ContentGenerator = (*FixtureGenerator)(nil)

var fixtureBreakfasts = []string{"Overnight Oats", "Veggie Scramble", "Greek Yogurt Parfait"}
var fixtureLunches = []string{"Quinoa Power Bowl", "Chickpea Wrap"}
var fixtureDinners = []string{"Sheet Pan Salmon", "Lentil Curry", "Stuffed Peppers", "Miso Glazed Tofu"}

func (f *FixtureGenerator) GenerateCoreIngredients(ctx context.Context, in *gateway.IngredientsInput) (gateway.CoreIngredients, error) {
	return gateway.CoreIngredients{
		"proteins":   {"salmon", "chickpeas", "tofu", "lentils"},
		"vegetables": {"bell pepper", "spinach", "carrots"},
		"grains":     {"quinoa", "oats", "rice"},
		"pantry":     {"olive oil", "miso paste", "yogurt"},
	}, nil
}

// GenerateMeals builds a deterministic seven-day week. Lunch names repeat
// across days on purpose, so the dedup path gets exercised end to end.
func (f *FixtureGenerator) GenerateMeals(ctx context.Context, in *gateway.MealsInput) (*gateway.WeeklyMeals, error) {
	var days []gateway.GeneratedDay
	for i, day := range model.WeekDays {
		meals := []gateway.GeneratedMeal{
			fixtureMeal(fixtureBreakfasts[i%len(fixtureBreakfasts)], model.MealTypeBreakfast, 10),
			fixtureMeal(fixtureLunches[i%len(fixtureLunches)], model.MealTypeLunch, 15),
			fixtureMeal(fixtureDinners[i%len(fixtureDinners)], model.MealTypeDinner, 30),
		}
		for s := 0; s < in.SnacksPerDay; s++ {
			meals = append(meals, fixtureMeal(fmt.Sprintf("Trail Mix %d", s+1), model.MealTypeSnack, 0))
		}
		days = append(days, gateway.GeneratedDay{Day: day, Meals: meals})
	}
	return &gateway.WeeklyMeals{Title: "Fixture Week", Days: days}, nil
}

func (f *FixtureGenerator) GeneratePrepSessions(ctx context.Context, in *gateway.PrepInput) (*gateway.PrepSchedule, string, error) {
	return fixtureSchedule(), "", nil
}

func (f *FixtureGenerator) GenerateBatchPrep(ctx context.Context, in *gateway.BatchPrepInput) (*gateway.PrepSchedule, string, error) {
	return fixtureSchedule(), "", nil
}

func fixtureMeal(name string, mealType model.MealType, prepMinutes int) gateway.GeneratedMeal {
	return gateway.GeneratedMeal{
		Name:     name,
		MealType: mealType,
		Ingredients: []gateway.IngredientLine{
			{Name: "quinoa", Amount: 1, Unit: "cup", Category: "grains"},
			{Name: "spinach", Amount: 2, Unit: "cup", Category: "vegetables"},
		},
		Instructions:    []string{"Combine ingredients", "Season and serve"},
		Macros:          gateway.Macros{Calories: 450, Protein: 20, Carbs: 50, Fat: 15},
		PrepTimeMinutes: prepMinutes,
	}
}

func fixtureSchedule() *gateway.PrepSchedule {
	return &gateway.PrepSchedule{
		Sessions: []gateway.PrepSession{
			{Name: "Sunday prep", Day: "sunday", DurationMinutes: 60, Tasks: []string{"Cook quinoa", "Wash and chop vegetables"}},
		},
		AssemblyGuide: []gateway.DayAssembly{
			{Day: "monday", Steps: []string{"Assemble bowls from prepped components"}},
		},
	}
}
