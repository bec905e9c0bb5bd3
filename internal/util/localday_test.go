package util

import (
	"errors"
	"testing"
	"time"
)

func TestLocalDay(t *testing.T) {
	cases := []struct {
		name   string
		now    time.Time
		offset int
		want   string
	}{
		{"utc", time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC), 0, "2026-03-10"},
		{"new york evening rolls back", time.Date(2026, 3, 11, 2, 0, 0, 0, time.UTC), 300, "2026-03-10"},
		{"tokyo morning rolls forward", time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC), -540, "2026-03-11"},
		{"non-utc input location", time.Date(2026, 3, 10, 12, 0, 0, 0, time.FixedZone("x", 3600)), 0, "2026-03-10"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := LocalDay(tc.now, tc.offset)
			if DateKey(got) != tc.want {
				t.Fatalf("LocalDay = %s, want %s", DateKey(got), tc.want)
			}
			if got.Hour() != 0 || got.Location().String() != "UTC" {
				t.Fatalf("expected UTC midnight, got %v", got)
			}
		})
	}
}

func TestLocalToUTC(t *testing.T) {
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	got, err := LocalToUTC(day, "23:59", 300)
	if err != nil {
		t.Fatalf("LocalToUTC: %v", err)
	}
	want := time.Date(2026, 1, 6, 4, 59, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("LocalToUTC = %v, want %v", got, want)
	}
	if !LocalDay(got, 300).Equal(day) {
		t.Fatalf("round trip lost the local day")
	}

	if _, err := LocalToUTC(day, "25:00", 0); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAddMonthsClampsToMonthEnd(t *testing.T) {
	got := AddMonths(time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC), 1)
	if DateKey(got) != "2026-02-28" {
		t.Fatalf("AddMonths = %s", DateKey(got))
	}
	got = AddMonths(time.Date(2026, 11, 15, 0, 0, 0, 0, time.UTC), 6)
	if DateKey(got) != "2027-05-15" {
		t.Fatalf("AddMonths = %s", DateKey(got))
	}
}

func TestParseTimezoneOffset(t *testing.T) {
	if v, err := ParseTimezoneOffset("", 120); err != nil || v != 120 {
		t.Fatalf("fallback = %d, %v", v, err)
	}
	if v, err := ParseTimezoneOffset("-330", 0); err != nil || v != -330 {
		t.Fatalf("parse = %d, %v", v, err)
	}
	for _, bad := range []string{"abc", "1000", "-1000"} {
		if _, err := ParseTimezoneOffset(bad, 0); !errors.Is(err, ErrValidation) {
			t.Fatalf("%q: expected validation error, got %v", bad, err)
		}
	}
}

func TestFormatOffset(t *testing.T) {
	if got := FormatOffset(300); got != "UTC-05:00" {
		t.Fatalf("FormatOffset(300) = %s", got)
	}
	if got := FormatOffset(-330); got != "UTC+05:30" {
		t.Fatalf("FormatOffset(-330) = %s", got)
	}
}
