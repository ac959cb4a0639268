package themes

import "strings"

// cuisineKeywords maps a cuisine pattern to the words that mark a meal name
// (or a theme's name/description) as belonging to it.
var cuisineKeywords = map[string][]string{
	"mexican":       {"taco", "burrito", "quesadilla", "enchilada", "salsa", "fajita", "mexican"},
	"italian":       {"pasta", "pizza", "risotto", "lasagna", "gnocchi", "parmesan", "italian"},
	"asian":         {"stir-fry", "stir fry", "teriyaki", "ramen", "pho", "curry", "pad thai", "dumpling", "asian"},
	"mediterranean": {"hummus", "falafel", "tzatziki", "gyro", "greek", "mediterranean"},
	"indian":        {"tikka", "masala", "tandoori", "dal", "naan", "indian"},
	"american":      {"burger", "bbq", "barbecue", "mac and cheese", "meatloaf", "grill"},
}

// dislikedCuisines derives cuisine patterns from the user's disliked meal
// names. A cuisine counts only once at least two distinct disliked names
// match its keyword set, so one bad taco night does not write off a cuisine.
func dislikedCuisines(dislikedMealNames []string) []string {
	matches := make(map[string]map[string]struct{})
	for _, name := range dislikedMealNames {
		lower := strings.ToLower(name)
		for cuisine, keywords := range cuisineKeywords {
			for _, keyword := range keywords {
				if strings.Contains(lower, keyword) {
					if matches[cuisine] == nil {
						matches[cuisine] = make(map[string]struct{})
					}
					matches[cuisine][lower] = struct{}{}
					break
				}
			}
		}
	}

	var cuisines []string
	for cuisine, names := range matches {
		if len(names) >= 2 {
			cuisines = append(cuisines, cuisine)
		}
	}
	return cuisines
}

// cuisineMatchesText reports whether any of the cuisine's keywords appear in
// the given theme text.
func cuisineMatchesText(cuisine, text string) bool {
	lower := strings.ToLower(text)
	for _, keyword := range cuisineKeywords[cuisine] {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
