package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTime(t *testing.T, raw string) TimeOfDay {
	t.Helper()
	parsed, err := ParseTimeOfDay(raw)
	require.NoError(t, err)
	return parsed
}

func TestParseTimeOfDay(t *testing.T) {
	parsed, err := ParseTimeOfDay("08:30:00")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay(8*3600+30*60), parsed)
	assert.Equal(t, "08:30:00", parsed.String())

	for _, raw := range []string{"", "8:30", "25:00:00", "08:61:00", "morning"} {
		_, err := ParseTimeOfDay(raw)
		assert.Error(t, err, raw)
	}
}

func TestTimeOfDayStringIsZeroPadded(t *testing.T) {
	assert.Equal(t, "00:00:00", TimeOfDay(0).String())
	assert.Equal(t, "07:05:09", mustTime(t, "07:05:09").String())
	// Lexicographic order must match chronological order.
	assert.Less(t, mustTime(t, "09:00:00").String(), mustTime(t, "10:00:00").String())
}

func TestOverlapsHalfOpen(t *testing.T) {
	eight := mustTime(t, "08:00:00")
	nine := mustTime(t, "09:00:00")
	ten := mustTime(t, "10:00:00")
	eleven := mustTime(t, "11:00:00")

	// Back-to-back windows share a boundary but never a minute.
	assert.False(t, Overlaps(eight, nine, nine, ten))
	assert.False(t, Overlaps(nine, ten, eight, nine))

	// Partial and full containment.
	assert.True(t, Overlaps(eight, ten, nine, eleven))
	assert.True(t, Overlaps(eight, eleven, nine, ten))
	assert.True(t, Overlaps(nine, ten, eight, eleven))

	// Disjoint.
	assert.False(t, Overlaps(eight, nine, ten, eleven))

	// Symmetry over a sample of windows.
	windows := [][2]TimeOfDay{{eight, nine}, {eight, ten}, {nine, eleven}, {ten, eleven}}
	for _, a := range windows {
		for _, b := range windows {
			assert.Equal(t, Overlaps(a[0], a[1], b[0], b[1]), Overlaps(b[0], b[1], a[0], a[1]))
		}
	}
}

func TestTimeOfDayScanValue(t *testing.T) {
	start := mustTime(t, "13:45:00")

	value, err := start.Value()
	require.NoError(t, err)
	assert.Equal(t, "13:45:00", value)

	var fromString TimeOfDay
	require.NoError(t, fromString.Scan("13:45:00"))
	assert.Equal(t, start, fromString)

	var fromBytes TimeOfDay
	require.NoError(t, fromBytes.Scan([]byte("13:45:00")))
	assert.Equal(t, start, fromBytes)

	var bad TimeOfDay
	assert.Error(t, bad.Scan(42))
}

func TestParseWeekdaySet(t *testing.T) {
	set, err := ParseWeekdaySet([]string{"monday", " FRIDAY ", "Monday"})
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
	assert.True(t, set.Contains(Monday))
	assert.True(t, set.Contains(Friday))

	_, err = ParseWeekdaySet([]string{"MONDAY", "FUNDAY"})
	assert.Error(t, err)
}

func TestWeekdaySetIntersects(t *testing.T) {
	mwf := NewWeekdaySet(Monday, Wednesday, Friday)
	tth := NewWeekdaySet(Tuesday, Thursday)
	wed := NewWeekdaySet(Wednesday)

	assert.False(t, mwf.Intersects(tth))
	assert.True(t, mwf.Intersects(wed))
	assert.False(t, mwf.Intersects(NewWeekdaySet()))

	// Commutativity.
	sets := []WeekdaySet{mwf, tth, wed, NewWeekdaySet(Sunday)}
	for _, a := range sets {
		for _, b := range sets {
			assert.Equal(t, a.Intersects(b), b.Intersects(a))
		}
	}
}

func TestWeekdaySetCanonicalOrder(t *testing.T) {
	set, err := ParseWeekdaySet([]string{"SUNDAY", "WEDNESDAY", "MONDAY"})
	require.NoError(t, err)
	assert.Equal(t, []string{"MONDAY", "WEDNESDAY", "SUNDAY"}, set.Labels())
	assert.Equal(t, "MONDAY,WEDNESDAY,SUNDAY", set.String())
}

func TestWeekdaySetScanValueRoundTrip(t *testing.T) {
	set := NewWeekdaySet(Tuesday, Thursday)

	value, err := set.Value()
	require.NoError(t, err)
	assert.Equal(t, "TUESDAY,THURSDAY", value)

	var scanned WeekdaySet
	require.NoError(t, scanned.Scan("TUESDAY,THURSDAY"))
	assert.Equal(t, set, scanned)

	var empty WeekdaySet
	require.NoError(t, empty.Scan(""))
	assert.Equal(t, 0, empty.Len())
}

func TestWeekdaySetJSON(t *testing.T) {
	set := NewWeekdaySet(Friday, Monday)
	encoded, err := json.Marshal(set)
	require.NoError(t, err)
	assert.JSONEq(t, `["MONDAY","FRIDAY"]`, string(encoded))

	var decoded WeekdaySet
	require.NoError(t, json.Unmarshal([]byte(`["friday","MONDAY"]`), &decoded))
	assert.Equal(t, set, decoded)

	assert.Error(t, json.Unmarshal([]byte(`["NODAY"]`), &decoded))
}
