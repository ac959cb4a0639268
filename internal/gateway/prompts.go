package gateway

import (
	"fmt"
	"strings"
)

const ingredientsSystemPrompt = `You are a meal planning assistant. You select a compact set of core ingredients for one week of home cooking, organized by category, so that most meals of the week can be built from them. Respond with JSON only, no prose, in the shape:
{"core_ingredients": {"proteins": ["..."], "vegetables": ["..."], "grains": ["..."], "pantry": ["..."]}}`

const mealsSystemPrompt = `You are a meal planning assistant. You author a full week of meals from a given set of core ingredients. Respond with JSON only, no prose, in the shape:
{"title": "...", "days": [{"day": "monday", "meals": [{"name": "...", "meal_type": "breakfast|lunch|dinner|snack", "ingredients": [{"name": "...", "amount": 1, "unit": "...", "category": "..."}], "instructions": ["..."], "macros": {"calories": 0, "protein": 0, "carbs": 0, "fat": 0}, "prep_time_minutes": 0}]}]}
Day names are lowercase monday through sunday. Every meal must have at least one ingredient and an accurate meal_type.`

const prepSystemPrompt = `You are a meal prep assistant. Given a week of meals, produce day-of prep sessions and a daily assembly guide. Respond with JSON only, no prose, in the shape:
{"sessions": [{"name": "...", "day": "monday", "duration_minutes": 0, "tasks": ["..."]}], "assembly_guide": [{"day": "monday", "steps": ["..."]}]}`

const batchPrepSystemPrompt = `You are a meal prep assistant. Given a week of meals and its day-of prep schedule, consolidate the prep work into a small number of batch sessions (typically one or two, on sunday and wednesday) that front-load shared work, plus an updated daily assembly guide. Respond with JSON only, no prose, in the same shape as the input schedule.`

func buildIngredientsPrompt(in *IngredientsInput) string {
	var b strings.Builder
	b.WriteString("Select core ingredients for one week of meals.\n")
	writeList(&b, "Dietary restrictions", in.DietaryPrefs)
	writeList(&b, "Allergies (never include these)", in.Allergies)
	writeList(&b, "Meals the user liked", in.LikedMeals)
	writeList(&b, "Meals the user disliked", in.DislikedMeals)
	writeList(&b, "Recently served meals (prefer variety from these)", in.RecentMealNames)
	if in.HouseholdSize > 0 {
		fmt.Fprintf(&b, "Household size: %d\n", in.HouseholdSize)
	}
	writeTheme(&b, in.ThemeName, in.ThemeDesc)
	if in.ProteinFocus != nil {
		fmt.Fprintf(&b, "Protein focus: feature %s for %s meals.\n", in.ProteinFocus.Protein, in.ProteinFocus.MealType)
	}
	return b.String()
}

func buildMealsPrompt(in *MealsInput) string {
	var b strings.Builder
	b.WriteString("Author a full week of meals, monday through sunday, with breakfast, lunch and dinner every day")
	if in.SnacksPerDay > 0 {
		fmt.Fprintf(&b, " plus %d snack(s) per day", in.SnacksPerDay)
	}
	b.WriteString(".\n")
	writeList(&b, "Dietary restrictions", in.DietaryPrefs)
	writeList(&b, "Allergies (never include these)", in.Allergies)
	if in.HouseholdSize > 0 {
		fmt.Fprintf(&b, "Household size: %d\n", in.HouseholdSize)
	}
	writeTheme(&b, in.ThemeName, in.ThemeDesc)
	if in.ProteinFocus != nil {
		fmt.Fprintf(&b, "Protein focus: feature %s for %s meals.\n", in.ProteinFocus.Protein, in.ProteinFocus.MealType)
	}
	b.WriteString("Build the meals from these core ingredients:\n")
	writeIngredients(&b, in.CoreIngredients)
	return b.String()
}

func buildPrepPrompt(in *PrepInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Produce a prep schedule for this week of meals (prep style: %s).\n", in.PrepStyle)
	writeList(&b, "Dietary restrictions", in.DietaryPrefs)
	b.WriteString("Core ingredients:\n")
	writeIngredients(&b, in.CoreIngredients)
	b.WriteString("The week:\n")
	writeDays(&b, in.Days)
	return b.String()
}

func buildBatchPrepPrompt(in *BatchPrepInput) string {
	var b strings.Builder
	b.WriteString("Consolidate this day-of prep schedule into batch sessions.\n")
	b.WriteString("Core ingredients:\n")
	writeIngredients(&b, in.CoreIngredients)
	b.WriteString("The week:\n")
	writeDays(&b, in.Days)
	if in.DayOf != nil {
		b.WriteString("Current day-of sessions:\n")
		for _, session := range in.DayOf.Sessions {
			fmt.Fprintf(&b, "- %s (%s, %d min): %s\n", session.Name, session.Day, session.DurationMinutes, strings.Join(session.Tasks, "; "))
		}
	}
	return b.String()
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, strings.Join(items, ", "))
}

func writeTheme(b *strings.Builder, name, desc string) {
	if name == "" {
		return
	}
	fmt.Fprintf(b, "Theme for the week: %s", name)
	if desc != "" {
		fmt.Fprintf(b, " (%s)", desc)
	}
	b.WriteString("\n")
}

func writeIngredients(b *strings.Builder, ingredients CoreIngredients) {
	for category, items := range ingredients {
		fmt.Fprintf(b, "- %s: %s\n", category, strings.Join(items, ", "))
	}
}

func writeDays(b *strings.Builder, days []GeneratedDay) {
	for _, day := range days {
		fmt.Fprintf(b, "%s:\n", day.Day)
		for _, meal := range day.Meals {
			fmt.Fprintf(b, "- %s (%s, %d min): %s\n", meal.Name, meal.MealType, meal.PrepTimeMinutes, summarizeIngredients(meal.Ingredients))
		}
	}
}

func summarizeIngredients(lines []IngredientLine) string {
	names := make([]string, 0, len(lines))
	for _, line := range lines {
		names = append(names, line.Name)
	}
	return strings.Join(names, ", ")
}
