package roadmap

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// TaskDateRangeDays is the default reach of date navigation around today.
const TaskDateRangeDays = 30

const dateKeyLayout = "2006-01-02"

var dateKeyPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// FallbackReason explains why a requested date was replaced by today.
type FallbackReason string

const (
	FallbackNone       FallbackReason = ""
	FallbackInvalid    FallbackReason = "invalid"
	FallbackOutOfRange FallbackReason = "out_of_range"
)

// NormalizeDate truncates t to midnight of its calendar day in t's location.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func FormatDateKey(t time.Time) string {
	return t.Format(dateKeyLayout)
}

// ParseDateKey strictly parses YYYY-MM-DD in loc. Overflowing dates such as
// 2024-02-30 are rejected.
func ParseDateKey(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if !dateKeyPattern.MatchString(s) {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(dateKeyLayout, s, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func ShiftDate(t time.Time, days int) time.Time {
	return NormalizeDate(t).AddDate(0, 0, days)
}

// TaskDateRange returns the inclusive [today-rangeDays, today+rangeDays] window.
func TaskDateRange(today time.Time, rangeDays int) (time.Time, time.Time) {
	if rangeDays <= 0 {
		rangeDays = TaskDateRangeDays
	}
	base := NormalizeDate(today)
	return base.AddDate(0, 0, -rangeDays), base.AddDate(0, 0, rangeDays)
}

func IsTaskDateInRange(date, today time.Time, rangeDays int) bool {
	min, max := TaskDateRange(today, rangeDays)
	d := NormalizeDate(date)
	return !d.Before(min) && !d.After(max)
}

// CanShiftTaskDate reports whether moving date by offset days stays in range.
func CanShiftTaskDate(date time.Time, offset int, today time.Time, rangeDays int) bool {
	return IsTaskDateInRange(ShiftDate(date, offset), today, rangeDays)
}

// ResolveTaskQueryDate turns a query string into the date to show. Empty input
// means today; unparsable or out-of-range input falls back to today with a reason.
func ResolveTaskQueryDate(raw string, today time.Time, rangeDays int) (time.Time, FallbackReason) {
	base := NormalizeDate(today)
	if strings.TrimSpace(raw) == "" {
		return base, FallbackNone
	}
	parsed, ok := ParseDateKey(raw, today.Location())
	if !ok {
		return base, FallbackInvalid
	}
	if !IsTaskDateInRange(parsed, base, rangeDays) {
		return base, FallbackOutOfRange
	}
	return parsed, FallbackNone
}

// ToRouteTaskDate maps a (week, day) slot onto the UTC calendar, whatever
// location routeCreatedAt carries. day <= 0 means the first day of the week.
func ToRouteTaskDate(week, day int, routeCreatedAt time.Time) time.Time {
	if week < 1 {
		week = 1
	}
	if day < 1 {
		day = 1
	}
	return NormalizeDate(routeCreatedAt.UTC()).AddDate(0, 0, (week-1)*7+(day-1))
}

func ToRouteTaskDateKey(week, day int, routeCreatedAt time.Time) string {
	return FormatDateKey(ToRouteTaskDate(week, day, routeCreatedAt))
}

// Date is the calendar date of t for a route created at routeCreatedAt.
func (t Task) Date(routeCreatedAt time.Time) time.Time {
	return ToRouteTaskDate(t.Week, t.DayOrZero(), routeCreatedAt)
}

// WeekSlot is anything that occupies a (week, day) slot.
type WeekSlot interface {
	SlotWeek() int
	SlotDay() int
	SetSlotDay(day int)
}

// NormalizeTaskDaysByWeek renumbers days 1..n within each week. Tasks are
// ordered by their current day with missing days last; ties keep input order.
func NormalizeTaskDaysByWeek[T WeekSlot](tasks []T) {
	byWeek := map[int][]int{}
	var weeks []int
	for i, t := range tasks {
		w := t.SlotWeek()
		if _, ok := byWeek[w]; !ok {
			weeks = append(weeks, w)
		}
		byWeek[w] = append(byWeek[w], i)
	}
	for _, w := range weeks {
		idx := byWeek[w]
		sort.SliceStable(idx, func(a, b int) bool {
			return sortDay(tasks[idx[a]].SlotDay()) < sortDay(tasks[idx[b]].SlotDay())
		})
		for n, i := range idx {
			tasks[i].SetSlotDay(n + 1)
		}
	}
}

func sortDay(d int) int {
	if d <= 0 {
		return int(^uint(0) >> 1)
	}
	return d
}

func (t *Task) SlotWeek() int      { return t.Week }
func (t *Task) SlotDay() int       { return t.DayOrZero() }
func (t *Task) SetSlotDay(day int) { t.Day = &day }
