// Package schedule computes concrete reminder clock times from a
// medication's timing configuration and a patient's meal times.
package schedule

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gmsas95/medremind/internal/errors"
)

// Time periods
const (
	PeriodMorning   = "morning"
	PeriodAfternoon = "afternoon"
	PeriodEvening   = "evening"
	PeriodNight     = "night"
)

// Meal relations
const (
	BeforeMeals        = "before_meals"
	WithMeals          = "with_meals"
	AfterMeals         = "after_meals"
	IndependentOfMeals = "independent_of_meals"
)

// Periods lists all valid time periods in day order
var Periods = []string{PeriodMorning, PeriodAfternoon, PeriodEvening, PeriodNight}

// MealTimes holds a patient's meal schedule as "HH:MM" strings
type MealTimes struct {
	Breakfast string `json:"breakfast"`
	Lunch     string `json:"lunch"`
	Dinner    string `json:"dinner"`
	Night     string `json:"night"`
}

// DefaultMealTimes returns the standard meal schedule
func DefaultMealTimes() MealTimes {
	return MealTimes{
		Breakfast: "08:00",
		Lunch:     "13:00",
		Dinner:    "19:00",
		Night:     "22:00",
	}
}

// Reminder is a concrete (period, clock time) pair
type Reminder struct {
	Period string `json:"period"`
	Time   string `json:"time"`
}

// Fixed times used when the medication is independent of meals
var independentTimes = map[string]string{
	PeriodMorning:   "08:00",
	PeriodAfternoon: "14:00",
	PeriodEvening:   "18:00",
	PeriodNight:     "22:00",
}

// Offsets in minutes relative to the mapped meal
var mealOffsets = map[string]int{
	BeforeMeals: -30,
	WithMeals:   0,
	AfterMeals:  30,
}

// ValidPeriod reports whether p is a known time period
func ValidPeriod(p string) bool {
	_, ok := independentTimes[p]
	return ok
}

// ValidMealRelation reports whether r is a known meal relation
func ValidMealRelation(r string) bool {
	if r == IndependentOfMeals {
		return true
	}
	_, ok := mealOffsets[r]
	return ok
}

// mealFor maps a time period to the meal it anchors on
func (mt MealTimes) mealFor(period string) string {
	switch period {
	case PeriodMorning:
		return mt.Breakfast
	case PeriodAfternoon:
		return mt.Lunch
	case PeriodEvening:
		return mt.Dinner
	case PeriodNight:
		return mt.Night
	}
	return ""
}

// ComputeTime maps (period, meal relation, meal times) to an "HH:MM"
// reminder time. Independent-of-meals medications ignore meal times and
// use a fixed table. Offsets wrap across midnight.
func ComputeTime(period, mealRelation string, mealTimes MealTimes) (string, error) {
	if !ValidPeriod(period) {
		return "", errors.Wrap(fmt.Errorf("period %q", period), errors.ErrInvalidTimePeriod.Code, errors.ErrInvalidTimePeriod.Message)
	}
	if !ValidMealRelation(mealRelation) {
		return "", errors.Wrap(fmt.Errorf("meal relation %q", mealRelation), errors.ErrInvalidMealRelation.Code, errors.ErrInvalidMealRelation.Message)
	}

	if mealRelation == IndependentOfMeals {
		return independentTimes[period], nil
	}

	base := mealTimes.mealFor(period)
	if base == "" {
		base = DefaultMealTimes().mealFor(period)
	}

	minutes, err := parseMinutes(base)
	if err != nil {
		return "", err
	}

	minutes = (minutes + mealOffsets[mealRelation] + 24*60) % (24 * 60)
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60), nil
}

// ComputeReminders builds one reminder per time period. The periods keep
// their input order; duplicates collapse to a single entry.
func ComputeReminders(timePeriods []string, mealRelation string, mealTimes MealTimes) ([]Reminder, error) {
	if len(timePeriods) == 0 {
		return nil, errors.ErrMissingFields
	}

	seen := make(map[string]bool, len(timePeriods))
	reminders := make([]Reminder, 0, len(timePeriods))
	for _, period := range timePeriods {
		if seen[period] {
			continue
		}
		t, err := ComputeTime(period, mealRelation, mealTimes)
		if err != nil {
			return nil, err
		}
		seen[period] = true
		reminders = append(reminders, Reminder{Period: period, Time: t})
	}

	return reminders, nil
}

// FormatMinute renders the minute bucket used for due matching
func FormatMinute(hour, minute int) string {
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

func parseMinutes(clock string) (int, error) {
	parts := strings.SplitN(clock, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock time %q", clock)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", clock)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", clock)
	}
	return h*60 + m, nil
}
