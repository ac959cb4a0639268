package themes

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/mealweek/api/internal/model"
)

// pickFirst makes the top-candidates pick deterministic.
func pickFirst(n int) int { return 0 }

func theme(id string, incompatible []string, peakMonths []int) model.Theme {
	t := model.Theme{ID: id, Name: id, Description: id + " cooking"}
	if incompatible != nil {
		t.IncompatibleDiets = mustJSON(incompatible)
	}
	if peakMonths != nil {
		t.PeakMonths = mustJSON(peakMonths)
	}
	return t
}

func mustJSON(v interface{}) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return datatypes.JSON(data)
}

func TestSelectNone(t *testing.T) {
	sel := Select(&Input{
		Catalog:        []model.Theme{theme("italian", nil, nil)},
		ExplicitChoice: model.ThemeSelectionNone,
	})
	assert.Nil(t, sel.Theme)
}

func TestSelectExplicitID(t *testing.T) {
	catalog := []model.Theme{
		theme("italian", nil, nil),
		theme("mexican", nil, nil),
	}
	sel := Select(&Input{
		Catalog: catalog,
		// blocked and recent do not matter for an explicit pick
		BlockedIDs:     []string{"mexican"},
		RecentThemeIDs: []string{"mexican"},
		ExplicitChoice: "mexican",
	})
	require.NotNil(t, sel.Theme)
	assert.Equal(t, "mexican", sel.Theme.ID)
	assert.Equal(t, ReasonUserSelected, sel.Reason)
}

func TestSelectExplicitIDNotInCatalog(t *testing.T) {
	sel := Select(&Input{
		Catalog:        []model.Theme{theme("italian", nil, nil)},
		ExplicitChoice: "nonexistent",
	})
	assert.Nil(t, sel.Theme)
}

func TestDietIncompatibilityNeverRelaxed(t *testing.T) {
	catalog := []model.Theme{
		theme("comfort-classics", []string{"vegan"}, nil),
		theme("summer-grill", []string{"vegan"}, nil),
	}
	sel := SelectWithRand(&Input{
		Catalog:      catalog,
		DietaryPrefs: []string{"vegan"},
		Month:        time.June,
	}, pickFirst)
	assert.Nil(t, sel.Theme)
}

func TestRecentRepeatExcludedWithSeasonalReason(t *testing.T) {
	catalog := []model.Theme{
		theme("A", nil, []int{6}),
		theme("B", nil, []int{1}),
	}
	sel := SelectWithRand(&Input{
		Catalog:        catalog,
		DietaryPrefs:   []string{"vegetarian"},
		RecentThemeIDs: []string{"A"},
		Month:          time.January,
	}, pickFirst)
	require.NotNil(t, sel.Theme)
	assert.Equal(t, "B", sel.Theme.ID)
	assert.Contains(t, sel.Reason, "perfect for this time of year")
}

func TestRelaxationOrder(t *testing.T) {
	catalog := []model.Theme{
		theme("blocked-one", nil, nil),
		theme("recent-one", nil, nil),
	}
	// everything filtered: blocked drops first, so only recent-one remains
	sel := SelectWithRand(&Input{
		Catalog:        catalog,
		BlockedIDs:     []string{"blocked-one", "recent-one"},
		RecentThemeIDs: []string{"recent-one"},
	}, pickFirst)
	require.NotNil(t, sel.Theme)
	assert.Equal(t, "blocked-one", sel.Theme.ID)
}

func TestRelaxationFallsBackToRecent(t *testing.T) {
	catalog := []model.Theme{theme("only", nil, nil)}
	sel := SelectWithRand(&Input{
		Catalog:        catalog,
		BlockedIDs:     []string{"only"},
		RecentThemeIDs: []string{"only"},
	}, pickFirst)
	require.NotNil(t, sel.Theme)
	assert.Equal(t, "only", sel.Theme.ID)
}

func TestPreferredThemeScoresHigher(t *testing.T) {
	catalog := []model.Theme{
		theme("plain", nil, nil),
		theme("favorite", nil, nil),
		theme("other", nil, nil),
		theme("another", nil, nil),
	}
	sel := SelectWithRand(&Input{
		Catalog:      catalog,
		PreferredIDs: []string{"favorite"},
	}, pickFirst)
	require.NotNil(t, sel.Theme)
	assert.Equal(t, "favorite", sel.Theme.ID)
	assert.Contains(t, sel.Reason, "favorite")
}

func TestDislikedCuisinePenalty(t *testing.T) {
	catalog := []model.Theme{
		{ID: "mexican", Name: "Mexican Fiesta", Description: "tacos and salsa"},
		{ID: "plain", Name: "Plain", Description: "simple meals"},
	}
	sel := SelectWithRand(&Input{
		Catalog:       catalog,
		DislikedMeals: []string{"Beef Tacos", "Chicken Quesadilla"},
	}, pickFirst)
	require.NotNil(t, sel.Theme)
	assert.Equal(t, "plain", sel.Theme.ID)
}

func TestSingleDislikedMealDoesNotPenalize(t *testing.T) {
	cuisines := dislikedCuisines([]string{"Beef Tacos"})
	assert.Empty(t, cuisines)

	cuisines = dislikedCuisines([]string{"Beef Tacos", "Chicken Quesadilla"})
	assert.Equal(t, []string{"mexican"}, cuisines)
}

func TestEmptyCatalog(t *testing.T) {
	sel := Select(&Input{})
	assert.Nil(t, sel.Theme)
}
