package service

import (
	"college_orbit_backend/internal/model"
	"college_orbit_backend/internal/util"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDate(s string) time.Time {
	t, err := time.Parse(util.DateFormat, s)
	if err != nil {
		panic(err)
	}
	return t
}

func keys(dates []time.Time) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = util.DateKey(d)
	}
	return out
}

func assertDates(t *testing.T, got []time.Time, want ...string) {
	t.Helper()
	assert.Equal(t, want, keys(got))
}

func expand(t *testing.T, rule Rule, from, to time.Time) []time.Time {
	t.Helper()
	got, err := ExpandOccurrences(rule, from, to)
	require.NoError(t, err)
	return got
}

func intPtr(v int) *int { return &v }

func TestExpandWeeklyMondayWednesday(t *testing.T) {
	rule := Rule{
		Type:       model.RecurrenceWeekly,
		DaysOfWeek: []int{1, 3},
		StartDate:  mustDate("2026-01-05"),
	}
	got := expand(t, rule, mustDate("2026-01-05"), mustDate("2026-01-05").AddDate(0, 0, 14))
	assertDates(t, got, "2026-01-05", "2026-01-07", "2026-01-12", "2026-01-14")
}

func TestExpandMonthlySkipsMissingDays(t *testing.T) {
	rule := Rule{
		Type:        model.RecurrenceMonthly,
		DaysOfMonth: []int{31},
		StartDate:   mustDate("2026-01-01"),
	}
	got := expand(t, rule, mustDate("2026-01-01"), mustDate("2026-05-01"))
	assertDates(t, got, "2026-01-31", "2026-03-31")
}

func TestExpandMonthlyMultipleDaysSorted(t *testing.T) {
	rule := Rule{
		Type:        model.RecurrenceMonthly,
		DaysOfMonth: []int{15, 1, 15, 40},
		StartDate:   mustDate("2026-01-10"),
	}
	got := expand(t, rule, mustDate("2026-01-01"), mustDate("2026-03-01"))
	assertDates(t, got, "2026-01-15", "2026-02-01", "2026-02-15")
}

func TestExpandDailyInterval(t *testing.T) {
	rule := Rule{
		Type:         model.RecurrenceCustom,
		IntervalDays: 3,
		StartDate:    mustDate("2026-02-01"),
	}
	got := expand(t, rule, mustDate("2026-02-01"), mustDate("2026-02-11"))
	assertDates(t, got, "2026-02-01", "2026-02-04", "2026-02-07", "2026-02-10")
}

func TestExpandDailyDefaultsToEveryDay(t *testing.T) {
	rule := Rule{Type: model.RecurrenceDaily, StartDate: mustDate("2026-02-27")}
	got := expand(t, rule, mustDate("2026-02-27"), mustDate("2026-03-02"))
	assertDates(t, got, "2026-02-27", "2026-02-28", "2026-03-01")
}

func TestExpandStopsAtEndDate(t *testing.T) {
	end := mustDate("2026-01-03")
	rule := Rule{Type: model.RecurrenceDaily, StartDate: mustDate("2026-01-01"), EndDate: &end}
	got := expand(t, rule, mustDate("2026-01-01"), mustDate("2026-02-01"))
	assertDates(t, got, "2026-01-01", "2026-01-02", "2026-01-03")
}

func TestExpandOccurrenceCountIncludesDatesBeforeWindow(t *testing.T) {
	rule := Rule{
		Type:            model.RecurrenceDaily,
		StartDate:       mustDate("2026-01-01"),
		OccurrenceCount: intPtr(5),
	}
	got := expand(t, rule, mustDate("2026-01-04"), mustDate("2026-02-01"))
	assertDates(t, got, "2026-01-04", "2026-01-05")

	got = expand(t, rule, mustDate("2026-01-10"), mustDate("2026-02-01"))
	assert.Empty(t, got, "count exhausted before the window")
}

func TestExpandNeverPrecedesStartDate(t *testing.T) {
	rule := Rule{
		Type:       model.RecurrenceWeekly,
		DaysOfWeek: []int{0, 1, 2, 3, 4, 5, 6},
		StartDate:  mustDate("2026-03-10"),
	}
	got := expand(t, rule, mustDate("2026-03-01"), mustDate("2026-03-12"))
	assertDates(t, got, "2026-03-10", "2026-03-11")
}

func TestExpandHardCap(t *testing.T) {
	rule := Rule{Type: model.RecurrenceDaily, StartDate: mustDate("2026-01-01")}
	got := expand(t, rule, mustDate("2026-01-01"), mustDate("2028-01-01"))
	require.Len(t, got, MaxOccurrencesPerExpansion)
	for i := 1; i < len(got); i++ {
		require.True(t, got[i].After(got[i-1]), "dates not strictly ascending at %d", i)
	}
}

func TestExpandEmptyWindow(t *testing.T) {
	rule := Rule{Type: model.RecurrenceDaily, StartDate: mustDate("2026-01-01")}
	assert.Empty(t, expand(t, rule, mustDate("2026-01-05"), mustDate("2026-01-05")))

	rule.OccurrenceCount = intPtr(0)
	assert.Empty(t, expand(t, rule, mustDate("2026-01-01"), mustDate("2026-02-01")))
}

func TestExpandWeeklyCountOnlyCountsMatchingDays(t *testing.T) {
	// 2026-01-06 是周二，不在 BYDAY 中，不占用名额
	rule := Rule{
		Type:            model.RecurrenceWeekly,
		DaysOfWeek:      []int{5, 5, 9},
		StartDate:       mustDate("2026-01-06"),
		OccurrenceCount: intPtr(3),
	}
	got := expand(t, rule, mustDate("2026-01-01"), mustDate("2026-03-01"))
	assertDates(t, got, "2026-01-09", "2026-01-16", "2026-01-23")
}

func TestExpandMonthlyDefaultsToStartDay(t *testing.T) {
	rule := Rule{Type: model.RecurrenceMonthly, StartDate: mustDate("2026-01-30")}
	got := expand(t, rule, mustDate("2026-01-01"), mustDate("2026-04-01"))
	assertDates(t, got, "2026-01-30", "2026-03-30")
}

func TestExpandRejectsUnknownType(t *testing.T) {
	_, err := ExpandOccurrences(Rule{Type: "yearly", StartDate: mustDate("2026-01-01")}, mustDate("2026-01-01"), mustDate("2026-02-01"))
	assert.ErrorIs(t, err, util.ErrValidation)
}
