package model

import (
	"sort"
	"time"
)

// Table is an ordered set of bars keyed by timestamp.
// Bars are kept in strictly ascending timestamp order with no duplicates.
type Table struct {
	bars []Bar
}

// NewTable builds a Table from bars in any order. When a timestamp occurs more
// than once the last occurrence wins.
func NewTable(bars []Bar) Table {
	return Table{bars: dedupLast(bars)}
}

// Merge concatenates existing and incoming and resolves duplicate timestamps
// in favor of incoming. The result is sorted ascending.
func Merge(existing, incoming Table) Table {
	combined := make([]Bar, 0, len(existing.bars)+len(incoming.bars))
	combined = append(combined, existing.bars...)
	combined = append(combined, incoming.bars...)
	return Table{bars: dedupLast(combined)}
}

// dedupLast keeps the last bar for every timestamp and sorts the result.
func dedupLast(bars []Bar) []Bar {
	index := make(map[int64]int, len(bars))
	out := make([]Bar, 0, len(bars))
	for _, b := range bars {
		b.Timestamp = b.Timestamp.UTC()
		key := b.Timestamp.UnixNano()
		if i, ok := index[key]; ok {
			out[i] = b
			continue
		}
		index[key] = len(out)
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// Len returns the number of bars.
func (t Table) Len() int { return len(t.bars) }

// Empty reports whether the table has no bars.
func (t Table) Empty() bool { return len(t.bars) == 0 }

// Bars returns a copy of the bars in ascending order.
func (t Table) Bars() []Bar {
	out := make([]Bar, len(t.bars))
	copy(out, t.bars)
	return out
}

// At returns the bar at position i.
func (t Table) At(i int) Bar { return t.bars[i] }

// Lookup returns the bar stored for ts, if any.
func (t Table) Lookup(ts time.Time) (Bar, bool) {
	i := sort.Search(len(t.bars), func(i int) bool {
		return !t.bars[i].Timestamp.Before(ts)
	})
	if i < len(t.bars) && t.bars[i].Timestamp.Equal(ts) {
		return t.bars[i], true
	}
	return Bar{}, false
}

// Span returns the first and last timestamps. ok is false for an empty table.
func (t Table) Span() (first, last time.Time, ok bool) {
	if len(t.bars) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return t.bars[0].Timestamp, t.bars[len(t.bars)-1].Timestamp, true
}

// Equal reports whether both tables hold the same bars.
func (t Table) Equal(other Table) bool {
	if len(t.bars) != len(other.bars) {
		return false
	}
	for i := range t.bars {
		a, b := t.bars[i], other.bars[i]
		if !a.Timestamp.Equal(b.Timestamp) ||
			a.Open != b.Open || a.High != b.High || a.Low != b.Low ||
			a.Close != b.Close || a.Volume != b.Volume {
			return false
		}
	}
	return true
}

// SplitByMonth groups the bars by calendar month ("2006-01"), each group ascending.
func (t Table) SplitByMonth() map[string][]Bar {
	groups := make(map[string][]Bar)
	for _, b := range t.bars {
		yearMonth := b.Timestamp.Format("2006-01")
		groups[yearMonth] = append(groups[yearMonth], b)
	}
	return groups
}
