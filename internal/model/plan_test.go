package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextMonday(t *testing.T) {
	// Monday 2026-01-05 stays put
	monday := time.Date(2026, 1, 5, 14, 30, 0, 0, time.UTC)
	got := NextMonday(monday)
	assert.Equal(t, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), got)

	// Wednesday advances to the following Monday
	wednesday := time.Date(2026, 1, 7, 9, 0, 0, 0, time.UTC)
	got = NextMonday(wednesday)
	assert.Equal(t, time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC), got)

	// Sunday advances one day
	sunday := time.Date(2026, 1, 11, 23, 59, 0, 0, time.UTC)
	got = NextMonday(sunday)
	assert.Equal(t, time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC), got)
}

func TestNormalizedEnumsValid(t *testing.T) {
	assert.True(t, MealTypeBreakfast.Valid())
	assert.True(t, DayMonday.Valid())
	assert.False(t, MealType("brunch").Valid())
	assert.False(t, Day("someday").Valid())
}
