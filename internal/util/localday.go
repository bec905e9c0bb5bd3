package util

import (
	"fmt"
	"time"
)

// LocalDay 返回 nowUTC 在偏移 offsetMinutes (UTC - 本地) 下的本地日期，以 UTC 零点表示
func LocalDay(now time.Time, offsetMinutes int) time.Time {
	local := now.UTC().Add(-time.Duration(offsetMinutes) * time.Minute)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// LocalToUTC 本地日期 + "HH:MM" 转为绝对时间
func LocalToUTC(day time.Time, clock string, offsetMinutes int) (time.Time, error) {
	hour, minute, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	d := DateOnly(day)
	local := time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, time.UTC)
	return local.Add(time.Duration(offsetMinutes) * time.Minute), nil
}

// ParseClock 解析 "HH:MM"
func ParseClock(clock string) (int, int, error) {
	t, err := time.Parse(ClockFormat, clock)
	if err != nil {
		return 0, 0, Invalid("invalid time of day %q, expected HH:MM", clock)
	}
	return t.Hour(), t.Minute(), nil
}

// DateOnly 截断到 UTC 日期
func DateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func DateKey(day time.Time) string {
	return DateOnly(day).Format(DateFormat)
}

func MonthKey(day time.Time) string {
	return DateOnly(day).Format(MonthFormat)
}

// ParseDateKey 解析 "YYYY-MM-DD"
func ParseDateKey(s string) (time.Time, error) {
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return time.Time{}, Invalid("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// ParseMonthKey 解析 "YYYY-MM"
func ParseMonthKey(s string) (string, error) {
	t, err := time.Parse(MonthFormat, s)
	if err != nil {
		return "", Invalid("invalid month %q, expected YYYY-MM", s)
	}
	return t.Format(MonthFormat), nil
}

// AddMonths 按日历月推进，月末溢出时截到该月最后一天
func AddMonths(day time.Time, months int) time.Time {
	d := DateOnly(day)
	first := time.Date(d.Year(), d.Month()+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	last := DaysIn(first.Year(), first.Month())
	dom := d.Day()
	if dom > last {
		dom = last
	}
	return time.Date(first.Year(), first.Month(), dom, 0, 0, 0, 0, time.UTC)
}

func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// FormatOffset 偏移量展示，如 300 -> "UTC-05:00"
func FormatOffset(offsetMinutes int) string {
	sign := "-"
	m := offsetMinutes
	if m < 0 {
		sign = "+"
		m = -m
	}
	return fmt.Sprintf("UTC%s%02d:%02d", sign, m/60, m%60)
}
