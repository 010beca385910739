package slot

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/nekogravitycat/locker-booking-backend/internal/pkg/apperror"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound      = apperror.New(http.StatusNotFound, "slot not found")
	ErrEmptyCalendar = apperror.New(http.StatusServiceUnavailable, "slot calendar is not seeded")
)

// Slot is one entry of the shared daily calendar. Start and End are offsets
// from midnight.
type Slot struct {
	ID    int
	Label string
	Start time.Duration
	End   time.Duration
}

func (s Slot) Duration() time.Duration {
	return s.End - s.Start
}

// Hours returns the slot length in hours, rounded to two places.
func (s Slot) Hours() decimal.Decimal {
	return decimal.NewFromInt(int64(s.Duration() / time.Minute)).
		Div(decimal.NewFromInt(60)).
		Round(2)
}

// On composes the slot with a calendar date.
func (s Slot) On(date time.Time) (start, end time.Time) {
	y, m, d := date.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, date.Location())
	return midnight.Add(s.Start), midnight.Add(s.End)
}

// Generate builds the daily calendar: max slots of length separated by gap,
// starting at first. Slots never wrap past midnight, so fewer than max may
// be returned.
func Generate(first, length, gap time.Duration, max int) []Slot {
	slots := make([]Slot, 0, max)
	start := first
	for i := 1; i <= max; i++ {
		end := start + length
		if end > 24*time.Hour {
			break
		}
		slots = append(slots, Slot{
			ID:    i,
			Label: fmt.Sprintf("%s - %s", FormatClock(start), FormatClock(end)),
			Start: start,
			End:   end,
		})
		start = end + gap
	}
	return slots
}

// FormatClock renders an offset from midnight as HH:MM.
func FormatClock(d time.Duration) string {
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%02d:%02d", h, m)
}

// ParseClock parses HH:MM or HH:MM:SS (including 24:00:00) into an offset
// from midnight.
func ParseClock(s string) (time.Duration, error) {
	var h, m, sec int
	n, err := fmt.Sscanf(s, "%d:%d:%d", &h, &m, &sec)
	if err != nil && n < 2 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || sec < 0 || sec > 59 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second
	if d > 24*time.Hour {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	return d, nil
}

// Calendar is an immutable, id-ordered view of the slots.
type Calendar struct {
	slots []Slot
	byID  map[int]Slot
}

func NewCalendar(slots []Slot) *Calendar {
	sorted := make([]Slot, len(slots))
	copy(sorted, slots)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	byID := make(map[int]Slot, len(sorted))
	for _, s := range sorted {
		byID[s.ID] = s
	}
	return &Calendar{slots: sorted, byID: byID}
}

func (c *Calendar) All() []Slot {
	out := make([]Slot, len(c.slots))
	copy(out, c.slots)
	return out
}

func (c *Calendar) Len() int {
	return len(c.slots)
}

func (c *Calendar) Get(id int) (Slot, bool) {
	s, ok := c.byID[id]
	return s, ok
}

// Lookup resolves ids in order, failing on the first unknown id.
func (c *Calendar) Lookup(ids []int) ([]Slot, error) {
	out := make([]Slot, 0, len(ids))
	for _, id := range ids {
		s, ok := c.byID[id]
		if !ok {
			return nil, ErrNotFound.WithErr(fmt.Errorf("slot %d", id))
		}
		out = append(out, s)
	}
	return out, nil
}

// EndingAt returns the slot whose end offset equals end.
func (c *Calendar) EndingAt(end time.Duration) (Slot, bool) {
	for _, s := range c.slots {
		if s.End == end {
			return s, true
		}
	}
	return Slot{}, false
}

// Next returns the n slots immediately following id. ok is false when the
// calendar runs out first.
func (c *Calendar) Next(id, n int) ([]Slot, bool) {
	out := make([]Slot, 0, n)
	for i := 1; i <= n; i++ {
		s, ok := c.byID[id+i]
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// After returns every slot with an id greater than id.
func (c *Calendar) After(id int) []Slot {
	var out []Slot
	for _, s := range c.slots {
		if s.ID > id {
			out = append(out, s)
		}
	}
	return out
}

// Consecutive sorts ids and reports whether they are distinct and form an
// unbroken run.
func Consecutive(ids []int) ([]int, bool) {
	if len(ids) == 0 {
		return nil, false
	}
	sorted := make([]int, len(ids))
	copy(sorted, ids)
	sort.Ints(sorted)
	for i := 1; i < len(sorted); i++ {
		if sorted[i] != sorted[i-1]+1 {
			return sorted, false
		}
	}
	return sorted, true
}

// Runs splits ascending ids into maximal consecutive runs.
func Runs(ids []int) [][]int {
	if len(ids) == 0 {
		return nil
	}
	sorted := make([]int, len(ids))
	copy(sorted, ids)
	sort.Ints(sorted)

	var runs [][]int
	cur := []int{sorted[0]}
	for _, id := range sorted[1:] {
		if id == cur[len(cur)-1]+1 {
			cur = append(cur, id)
			continue
		}
		runs = append(runs, cur)
		cur = []int{id}
	}
	return append(runs, cur)
}
