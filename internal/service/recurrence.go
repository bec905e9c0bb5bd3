package service

import (
	"college_orbit_backend/internal/model"
	"college_orbit_backend/internal/util"
	"sort"
	"time"

	"github.com/teambition/rrule-go"
)

// MaxOccurrencesPerExpansion 单次展开的硬上限
const MaxOccurrencesPerExpansion = 366

// rrule 的星期常量，下标为 time.Weekday
var rruleWeekdays = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// Rule 重复规则中参与日期计算的部分
type Rule struct {
	Type            model.RecurrenceType
	IntervalDays    int
	DaysOfWeek      []int
	DaysOfMonth     []int
	StartDate       time.Time
	EndDate         *time.Time
	OccurrenceCount *int
}

func RuleFromPattern(p *model.RecurringPattern) Rule {
	return Rule{
		Type:            p.RecurrenceType,
		IntervalDays:    p.IntervalDays,
		DaysOfWeek:      []int(p.DaysOfWeek),
		DaysOfMonth:     []int(p.DaysOfMonth),
		StartDate:       p.StartDate,
		EndDate:         p.EndDate,
		OccurrenceCount: p.OccurrenceCount,
	}
}

// toRRule 转为 RFC 5545 规则，DTSTART 为 startDate 的 UTC 零点
func (r Rule) toRRule() (*rrule.RRule, error) {
	opt := rrule.ROption{
		Dtstart:  util.DateOnly(r.StartDate),
		Interval: 1,
	}
	if r.EndDate != nil {
		opt.Until = util.DateOnly(*r.EndDate)
	}
	if r.OccurrenceCount != nil {
		opt.Count = *r.OccurrenceCount
	}

	switch r.Type {
	case model.RecurrenceDaily, model.RecurrenceCustom:
		opt.Freq = rrule.DAILY
		if r.IntervalDays > 1 {
			opt.Interval = r.IntervalDays
		}
	case model.RecurrenceWeekly:
		opt.Freq = rrule.WEEKLY
		for _, wd := range uniqueInts(r.DaysOfWeek) {
			if wd >= 0 && wd <= 6 {
				opt.Byweekday = append(opt.Byweekday, rruleWeekdays[wd])
			}
		}
	case model.RecurrenceMonthly:
		// BYMONTHDAY 在当月不存在时按 RFC 5545 忽略，不回退到月末
		opt.Freq = rrule.MONTHLY
		opt.Bymonthday = normalizeDaysOfMonth(r.DaysOfMonth)
	default:
		return nil, util.Invalid("unknown recurrence type %q", r.Type)
	}

	rr, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, util.Invalid("recurrence rule: %v", err)
	}
	return rr, nil
}

// ExpandOccurrences 返回 [windowStart, windowEnd) 内规则命中的本地日期（UTC 零点），升序且不重复。
// occurrenceCount 从 startDate 起计数，窗口之前的命中也占用名额。
func ExpandOccurrences(rule Rule, windowStart, windowEnd time.Time) ([]time.Time, error) {
	if rule.OccurrenceCount != nil && *rule.OccurrenceCount <= 0 {
		return nil, nil
	}
	from := util.DateOnly(windowStart)
	if start := util.DateOnly(rule.StartDate); from.Before(start) {
		from = start
	}
	end := util.DateOnly(windowEnd)
	if !from.Before(end) {
		return nil, nil
	}

	rr, err := rule.toRRule()
	if err != nil {
		return nil, err
	}

	var out []time.Time
	next := rr.Iterator()
	for d, ok := next(); ok && d.Before(end); d, ok = next() {
		if d.Before(from) {
			continue
		}
		out = append(out, d)
		if len(out) >= MaxOccurrencesPerExpansion {
			break
		}
	}
	return out, nil
}

func normalizeDaysOfMonth(in []int) []int {
	seen := make(map[int]bool, len(in))
	out := make([]int, 0, len(in))
	for _, d := range in {
		if d < 1 || d > 31 || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Ints(out)
	return out
}
