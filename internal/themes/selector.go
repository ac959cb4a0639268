package themes

import (
	"encoding/json"
	"math/rand"
	"sort"
	"time"

	"github.com/mealweek/api/internal/model"
)

// ReasonUserSelected annotates a theme the user picked explicitly.
const ReasonUserSelected = "user selected"

const (
	scoreBase      = 50
	scorePreferred = 30
	scoreSeasonal  = 20
	scoreDisliked  = -15
	topCandidates  = 3
)

// Input carries everything theme selection depends on. Selection is pure
// apart from the random pick among the top candidates.
type Input struct {
	Catalog        []model.Theme
	DietaryPrefs   []string
	RecentThemeIDs []string
	PreferredIDs   []string
	BlockedIDs     []string
	DislikedMeals  []string
	Month          time.Month
	// ExplicitChoice is "surprise" (or empty) for scored selection, "none"
	// for a theme-less plan, or a concrete catalog id.
	ExplicitChoice string
}

// Selection is a chosen theme plus a human-readable reason. A nil Theme
// means a classic, theme-less plan.
type Selection struct {
	Theme  *model.Theme
	Reason string
}

// candidate is a catalog entry with its JSON attributes decoded once.
type candidate struct {
	theme        model.Theme
	incompatible []string
	compatible   []string
	peakMonths   []int
}

// Select picks a theme for a new plan. See SelectWithRand for semantics;
// this variant uses the global random source.
func Select(in *Input) *Selection {
	return SelectWithRand(in, rand.Intn)
}

// SelectWithRand picks a theme for a new plan.
//
// An explicit "none" yields no theme. An explicit catalog id bypasses
// scoring. Otherwise candidates are filtered for eligibility, scored, and
// one of the top three is picked at random. Diet incompatibility is never
// relaxed; if filtering leaves nothing, the blocked and then the
// recent-repeat filters are dropped. No eligible theme after full
// relaxation yields a theme-less plan.
func SelectWithRand(in *Input, intn func(n int) int) *Selection {
	if in.ExplicitChoice == model.ThemeSelectionNone {
		return &Selection{}
	}
	if in.ExplicitChoice != "" && in.ExplicitChoice != model.ThemeSelectionSurprise {
		for i := range in.Catalog {
			if in.Catalog[i].ID == in.ExplicitChoice {
				return &Selection{Theme: &in.Catalog[i], Reason: ReasonUserSelected}
			}
		}
		return &Selection{}
	}

	candidates := decodeCatalog(in.Catalog)
	dietOK := filterDietCompatible(candidates, in.DietaryPrefs)

	eligible := filterOut(dietOK, in.BlockedIDs, in.RecentThemeIDs)
	if len(eligible) == 0 {
		// relax blocked first, then recent repeats
		eligible = filterOut(dietOK, nil, in.RecentThemeIDs)
	}
	if len(eligible) == 0 {
		eligible = dietOK
	}
	if len(eligible) == 0 {
		return &Selection{}
	}

	disliked := dislikedCuisines(in.DislikedMeals)
	scored := make([]scoredCandidate, 0, len(eligible))
	for _, c := range eligible {
		scored = append(scored, scoreCandidate(c, in, disliked))
	}
	sortByScoreDesc(scored)

	top := topCandidates
	if len(scored) < top {
		top = len(scored)
	}
	picked := scored[intn(top)]

	return &Selection{
		Theme:  &picked.candidate.theme,
		Reason: buildReason(picked),
	}
}

type scoredCandidate struct {
	candidate candidate
	score     int
	preferred bool
	seasonal  bool
}

func scoreCandidate(c candidate, in *Input, dislikedCuisines []string) scoredCandidate {
	sc := scoredCandidate{candidate: c, score: scoreBase}
	if containsString(in.PreferredIDs, c.theme.ID) {
		sc.score += scorePreferred
		sc.preferred = true
	}
	if containsInt(c.peakMonths, int(in.Month)) {
		sc.score += scoreSeasonal
		sc.seasonal = true
	}
	text := c.theme.Name + " " + c.theme.Description
	for _, cuisine := range dislikedCuisines {
		if cuisineMatchesText(cuisine, text) {
			sc.score += scoreDisliked
		}
	}
	return sc
}

func buildReason(sc scoredCandidate) string {
	switch {
	case sc.preferred && sc.seasonal:
		return "one of your favorites, and perfect for this time of year"
	case sc.preferred:
		return "one of your favorite themes"
	case sc.seasonal:
		return "perfect for this time of year"
	default:
		return "selected for variety"
	}
}

func decodeCatalog(catalog []model.Theme) []candidate {
	candidates := make([]candidate, 0, len(catalog))
	for _, theme := range catalog {
		c := candidate{theme: theme}
		unmarshalList(theme.IncompatibleDiets, &c.incompatible)
		unmarshalList(theme.CompatibleDiets, &c.compatible)
		unmarshalList(theme.PeakMonths, &c.peakMonths)
		candidates = append(candidates, c)
	}
	return candidates
}

// filterDietCompatible rejects any theme whose incompatible list intersects
// the user's diets. The incompatible list wins over the compatible list.
func filterDietCompatible(candidates []candidate, diets []string) []candidate {
	var out []candidate
	for _, c := range candidates {
		incompatible := false
		for _, diet := range diets {
			if containsString(c.incompatible, diet) {
				incompatible = true
				break
			}
		}
		if !incompatible {
			out = append(out, c)
		}
	}
	return out
}

func filterOut(candidates []candidate, blockedIDs, recentIDs []string) []candidate {
	var out []candidate
	for _, c := range candidates {
		if containsString(blockedIDs, c.theme.ID) || containsString(recentIDs, c.theme.ID) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// ties keep catalog order
func sortByScoreDesc(scored []scoredCandidate) {
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
}

func unmarshalList(data []byte, v interface{}) {
	if len(data) == 0 {
		return
	}
	// seeded catalog data; a corrupt column reads as an empty list
	_ = json.Unmarshal(data, v)
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func containsInt(list []int, n int) bool {
	for _, item := range list {
		if item == n {
			return true
		}
	}
	return false
}
