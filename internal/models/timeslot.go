package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const timeOfDayLayout = "15:04:05"

// TimeOfDay is a clock time without a date component, stored as seconds
// since midnight. The zero value is midnight.
type TimeOfDay int

// ParseTimeOfDay parses a "HH:MM:SS" string into a TimeOfDay.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	parsed, err := time.Parse(timeOfDayLayout, raw)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: expected HH:MM:SS", raw)
	}
	return TimeOfDay(parsed.Hour()*3600 + parsed.Minute()*60 + parsed.Second()), nil
}

// String renders the canonical "HH:MM:SS" form.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", int(t)/3600, int(t)%3600/60, int(t)%60)
}

// Before reports whether t is strictly earlier than other.
func (t TimeOfDay) Before(other TimeOfDay) bool {
	return t < other
}

// MarshalJSON encodes the time as a "HH:MM:SS" string.
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes a "HH:MM:SS" string.
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Value stores the time as its canonical string so lexicographic column
// comparisons match chronological order.
func (t TimeOfDay) Value() (driver.Value, error) {
	return t.String(), nil
}

// Scan reads the time back from a string, byte slice, or time.Time column.
func (t *TimeOfDay) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*t = 0
		return nil
	case string:
		parsed, err := ParseTimeOfDay(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	case []byte:
		parsed, err := ParseTimeOfDay(strings.TrimSpace(string(v)))
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	case time.Time:
		*t = TimeOfDay(v.Hour()*3600 + v.Minute()*60 + v.Second())
		return nil
	default:
		return fmt.Errorf("cannot scan %T into TimeOfDay", src)
	}
}

// Overlaps reports whether the half-open windows [aStart, aEnd) and
// [bStart, bEnd) intersect. Back-to-back windows do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd TimeOfDay) bool {
	return aStart < bEnd && bStart < aEnd
}

// Weekday is a day-of-week label as used across the scheduling API.
type Weekday string

const (
	Monday    Weekday = "MONDAY"
	Tuesday   Weekday = "TUESDAY"
	Wednesday Weekday = "WEDNESDAY"
	Thursday  Weekday = "THURSDAY"
	Friday    Weekday = "FRIDAY"
	Saturday  Weekday = "SATURDAY"
	Sunday    Weekday = "SUNDAY"
)

// weekdayOrder fixes the canonical Monday-first serialization order.
var weekdayOrder = [...]Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// ParseWeekday validates a single weekday label.
func ParseWeekday(raw string) (Weekday, error) {
	candidate := Weekday(strings.ToUpper(strings.TrimSpace(raw)))
	for _, day := range weekdayOrder {
		if candidate == day {
			return day, nil
		}
	}
	return "", fmt.Errorf("invalid weekday %q", raw)
}

// WeekdaySet is a set of weekdays. Membership is all that matters; input
// order and duplicates are irrelevant.
type WeekdaySet map[Weekday]struct{}

// NewWeekdaySet builds a set from the given days.
func NewWeekdaySet(days ...Weekday) WeekdaySet {
	set := make(WeekdaySet, len(days))
	for _, day := range days {
		set[day] = struct{}{}
	}
	return set
}

// ParseWeekdaySet validates and collects weekday labels into a set.
func ParseWeekdaySet(labels []string) (WeekdaySet, error) {
	set := make(WeekdaySet, len(labels))
	for _, label := range labels {
		day, err := ParseWeekday(label)
		if err != nil {
			return nil, err
		}
		set[day] = struct{}{}
	}
	return set, nil
}

// Contains reports set membership.
func (s WeekdaySet) Contains(day Weekday) bool {
	_, ok := s[day]
	return ok
}

// Intersects reports whether the two sets share at least one day.
func (s WeekdaySet) Intersects(other WeekdaySet) bool {
	for day := range s {
		if other.Contains(day) {
			return true
		}
	}
	return false
}

// Len returns the number of days in the set.
func (s WeekdaySet) Len() int {
	return len(s)
}

// Labels returns the member days in canonical Monday-first order.
func (s WeekdaySet) Labels() []string {
	labels := make([]string, 0, len(s))
	for _, day := range weekdayOrder {
		if s.Contains(day) {
			labels = append(labels, string(day))
		}
	}
	return labels
}

// String renders the canonical comma-delimited form.
func (s WeekdaySet) String() string {
	return strings.Join(s.Labels(), ",")
}

// MarshalJSON encodes the set as an ordered array of labels.
func (s WeekdaySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Labels())
}

// UnmarshalJSON decodes an array of weekday labels.
func (s *WeekdaySet) UnmarshalJSON(data []byte) error {
	var labels []string
	if err := json.Unmarshal(data, &labels); err != nil {
		return err
	}
	set, err := ParseWeekdaySet(labels)
	if err != nil {
		return err
	}
	*s = set
	return nil
}

// Value stores the set as its canonical comma-delimited string.
func (s WeekdaySet) Value() (driver.Value, error) {
	return s.String(), nil
}

// Scan reads the set back from a delimited string column.
func (s *WeekdaySet) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*s = WeekdaySet{}
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into WeekdaySet", src)
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		*s = WeekdaySet{}
		return nil
	}
	set, err := ParseWeekdaySet(strings.Split(raw, ","))
	if err != nil {
		return err
	}
	*s = set
	return nil
}
