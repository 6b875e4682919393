package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTimeIndependentOfMeals(t *testing.T) {
	// Meal times must be ignored entirely
	weird := MealTimes{Breakfast: "03:15", Lunch: "11:11", Dinner: "23:59", Night: "00:01"}

	tests := []struct {
		period string
		want   string
	}{
		{PeriodMorning, "08:00"},
		{PeriodAfternoon, "14:00"},
		{PeriodEvening, "18:00"},
		{PeriodNight, "22:00"},
	}

	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			got, err := ComputeTime(tt.period, IndependentOfMeals, weird)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeTimeMealOffsets(t *testing.T) {
	mt := MealTimes{Breakfast: "08:00", Lunch: "13:00", Dinner: "19:00", Night: "22:00"}

	tests := []struct {
		period   string
		relation string
		want     string
	}{
		{PeriodMorning, BeforeMeals, "07:30"},
		{PeriodMorning, WithMeals, "08:00"},
		{PeriodMorning, AfterMeals, "08:30"},
		{PeriodAfternoon, BeforeMeals, "12:30"},
		{PeriodEvening, AfterMeals, "19:30"},
		{PeriodNight, WithMeals, "22:00"},
	}

	for _, tt := range tests {
		t.Run(tt.period+"_"+tt.relation, func(t *testing.T) {
			got, err := ComputeTime(tt.period, tt.relation, mt)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeTimeMidnightWrap(t *testing.T) {
	mt := MealTimes{Night: "23:50"}
	got, err := ComputeTime(PeriodNight, AfterMeals, mt)
	require.NoError(t, err)
	assert.Equal(t, "00:20", got)

	mt = MealTimes{Breakfast: "00:10"}
	got, err = ComputeTime(PeriodMorning, BeforeMeals, mt)
	require.NoError(t, err)
	assert.Equal(t, "23:40", got)
}

func TestComputeTimeMissingMealFallsBackToDefault(t *testing.T) {
	got, err := ComputeTime(PeriodMorning, BeforeMeals, MealTimes{})
	require.NoError(t, err)
	assert.Equal(t, "07:30", got) // default breakfast 08:00 − 30m
}

func TestComputeTimeRejectsInvalidInput(t *testing.T) {
	_, err := ComputeTime("noon", WithMeals, DefaultMealTimes())
	assert.Error(t, err)

	_, err = ComputeTime(PeriodMorning, "sometimes", DefaultMealTimes())
	assert.Error(t, err)

	_, err = ComputeTime(PeriodMorning, WithMeals, MealTimes{Breakfast: "8am"})
	assert.Error(t, err)
}

func TestComputeReminders(t *testing.T) {
	mt := MealTimes{Breakfast: "08:00", Lunch: "13:00", Dinner: "19:00", Night: "22:00"}

	reminders, err := ComputeReminders([]string{PeriodMorning, PeriodEvening}, AfterMeals, mt)
	require.NoError(t, err)
	require.Len(t, reminders, 2)
	assert.Equal(t, Reminder{Period: PeriodMorning, Time: "08:30"}, reminders[0])
	assert.Equal(t, Reminder{Period: PeriodEvening, Time: "19:30"}, reminders[1])
}

func TestComputeRemindersOnePerPeriod(t *testing.T) {
	reminders, err := ComputeReminders(
		[]string{PeriodMorning, PeriodMorning, PeriodNight},
		IndependentOfMeals,
		DefaultMealTimes(),
	)
	require.NoError(t, err)
	assert.Len(t, reminders, 2)
}

func TestComputeRemindersEmptyPeriods(t *testing.T) {
	_, err := ComputeReminders(nil, WithMeals, DefaultMealTimes())
	assert.Error(t, err)
}

func TestFormatMinute(t *testing.T) {
	assert.Equal(t, "08:05", FormatMinute(8, 5))
	assert.Equal(t, "00:00", FormatMinute(0, 0))
	assert.Equal(t, "23:59", FormatMinute(23, 59))
}
