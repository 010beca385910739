package slot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDefaultCalendar(t *testing.T) {
	slots := Generate(6*time.Hour, time.Hour, 10*time.Minute, 24)

	// 06:00 plus 70 minute strides stops before wrapping midnight.
	require.Len(t, slots, 15)

	assert.Equal(t, Slot{ID: 1, Label: "06:00 - 07:00", Start: 6 * time.Hour, End: 7 * time.Hour}, slots[0])
	assert.Equal(t, "07:10 - 08:10", slots[1].Label)
	assert.Equal(t, "22:20 - 23:20", slots[14].Label)

	for i, s := range slots {
		assert.Equal(t, i+1, s.ID)
		assert.Equal(t, time.Hour, s.Duration())
		assert.LessOrEqual(t, s.End, 24*time.Hour)
	}
}

func TestGenerateRespectsMax(t *testing.T) {
	slots := Generate(0, 30*time.Minute, 0, 4)
	require.Len(t, slots, 4)
	assert.Equal(t, 2*time.Hour, slots[3].End)
}

func TestGenerateAllowsSlotEndingAtMidnight(t *testing.T) {
	slots := Generate(22*time.Hour, time.Hour, 0, 5)
	require.Len(t, slots, 2)
	assert.Equal(t, 24*time.Hour, slots[1].End)
	assert.Equal(t, "23:00 - 24:00", slots[1].Label)
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "06:00", want: 6 * time.Hour},
		{in: "07:10:00", want: 7*time.Hour + 10*time.Minute},
		{in: "24:00:00", want: 24 * time.Hour},
		{in: "23:59:59", want: 24*time.Hour - time.Second},
		{in: "25:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "noon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSlotHoursAndOn(t *testing.T) {
	s := Slot{ID: 3, Start: 8*time.Hour + 20*time.Minute, End: 9*time.Hour + 50*time.Minute}
	assert.Equal(t, "1.5", s.Hours().String())

	loc := time.FixedZone("LK", 5*3600+1800)
	date := time.Date(2026, 3, 14, 0, 0, 0, 0, loc)
	start, end := s.On(date)
	assert.Equal(t, time.Date(2026, 3, 14, 8, 20, 0, 0, loc), start)
	assert.Equal(t, time.Date(2026, 3, 14, 9, 50, 0, 0, loc), end)
}

func TestCalendarNavigation(t *testing.T) {
	cal := NewCalendar(Generate(6*time.Hour, time.Hour, 10*time.Minute, 24))

	s, ok := cal.EndingAt(11*time.Hour + 40*time.Minute)
	require.True(t, ok)
	assert.Equal(t, 5, s.ID)

	_, ok = cal.EndingAt(11 * time.Hour)
	assert.False(t, ok)

	next, ok := cal.Next(5, 2)
	require.True(t, ok)
	assert.Equal(t, []int{6, 7}, []int{next[0].ID, next[1].ID})

	_, ok = cal.Next(14, 2)
	assert.False(t, ok, "calendar ends at slot 15")

	assert.Len(t, cal.After(13), 2)

	_, err := cal.Lookup([]int{1, 99})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConsecutive(t *testing.T) {
	sorted, ok := Consecutive([]int{11, 9, 10})
	assert.True(t, ok)
	assert.Equal(t, []int{9, 10, 11}, sorted)

	_, ok = Consecutive([]int{9, 11})
	assert.False(t, ok, "gap")

	_, ok = Consecutive([]int{9, 9})
	assert.False(t, ok, "duplicate")

	_, ok = Consecutive(nil)
	assert.False(t, ok)
}

func TestRuns(t *testing.T) {
	assert.Equal(t, [][]int{{1, 2, 3}, {5}, {7, 8}}, Runs([]int{8, 1, 3, 2, 5, 7}))
	assert.Nil(t, Runs(nil))
}
