package model

// Job status is the state machine a polling client observes. Transitions are
// monotonic per job; completed and failed are terminal.
type JobStatus string

const (
	JobStatusPending               JobStatus = "pending"
	JobStatusFetchingInputs        JobStatus = "fetching_inputs"
	JobStatusGeneratingIngredients JobStatus = "generating_ingredients"
	JobStatusGeneratingMeals       JobStatus = "generating_meals"
	JobStatusGeneratingPrep        JobStatus = "generating_prep"
	JobStatusSaving                JobStatus = "saving"
	JobStatusCompleted             JobStatus = "completed"
	JobStatusFailed                JobStatus = "failed"
)

// jobStatusRank orders statuses for the monotonicity check. Failed shares the
// top rank with completed so a job can fail from any non-terminal state.
var jobStatusRank = map[JobStatus]int{
	JobStatusPending:               0,
	JobStatusFetchingInputs:        1,
	JobStatusGeneratingIngredients: 2,
	JobStatusGeneratingMeals:       3,
	JobStatusGeneratingPrep:        4,
	JobStatusSaving:                5,
	JobStatusCompleted:             6,
	JobStatusFailed:                6,
}

// Rank returns the position of the status in the pipeline ordering.
func (s JobStatus) Rank() int {
	return jobStatusRank[s]
}

// Terminal reports whether no further writes are allowed for this status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Meal types
type MealType string

const (
	MealTypeBreakfast MealType = "breakfast"
	MealTypeLunch     MealType = "lunch"
	MealTypeDinner    MealType = "dinner"
	MealTypeSnack     MealType = "snack"
)

var ValidMealTypes = []MealType{
	MealTypeBreakfast, MealTypeLunch, MealTypeDinner, MealTypeSnack,
}

func (m MealType) Valid() bool {
	for _, t := range ValidMealTypes {
		if m == t {
			return true
		}
	}
	return false
}

// Days of the week
type Day string

const (
	DayMonday    Day = "monday"
	DayTuesday   Day = "tuesday"
	DayWednesday Day = "wednesday"
	DayThursday  Day = "thursday"
	DayFriday    Day = "friday"
	DaySaturday  Day = "saturday"
	DaySunday    Day = "sunday"
)

var WeekDays = []Day{
	DayMonday, DayTuesday, DayWednesday, DayThursday,
	DayFriday, DaySaturday, DaySunday,
}

func (d Day) Valid() bool {
	for _, wd := range WeekDays {
		if d == wd {
			return true
		}
	}
	return false
}

// Prep styles
type PrepStyle string

const (
	PrepStyleDayOf PrepStyle = "day_of"
	PrepStyleBatch PrepStyle = "batch"
)

// Theme selection modes accepted on job submission. Anything else is treated
// as a concrete theme id from the catalog.
const (
	ThemeSelectionSurprise = "surprise"
	ThemeSelectionNone     = "none"
)

// Prep artifact kinds
type ArtifactKind string

const (
	ArtifactKindDayOf ArtifactKind = "day_of"
	ArtifactKindBatch ArtifactKind = "batch"
)

// Batch prep status tracks the lifecycle of the secondary pipeline's artifact.
type BatchPrepStatus string

const (
	BatchPrepPending    BatchPrepStatus = "pending"
	BatchPrepGenerating BatchPrepStatus = "generating"
	BatchPrepCompleted  BatchPrepStatus = "completed"
	BatchPrepFailed     BatchPrepStatus = "failed"
)

// Meal provenance
type SourceType string

const (
	SourceTypeGenerated SourceType = "generated"
	SourceTypeUser      SourceType = "user_created"
)
