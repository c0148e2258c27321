package loans

import (
	"sync"
	"time"
)

// Span is a time range. Start is never after End.
type Span struct {
	Start time.Time
	End   time.Time
}

// NewSpan orders the two bounds.
func NewSpan(a, b time.Time) Span {
	if b.Before(a) {
		a, b = b, a
	}
	return Span{Start: a, End: b}
}

func (s Span) Duration() time.Duration { return s.End.Sub(s.Start) }

// Overlaps reports whether the spans share any instant other than a single
// touching bound. Spans that start together always overlap.
func (s Span) Overlaps(o Span) bool {
	if s.Start.Equal(o.Start) {
		return true
	}
	return s.Start.Before(o.End) && o.Start.Before(s.End)
}

// Days returns the UTC midnights from the day of Start through the day of End.
func (s Span) Days() []time.Time {
	var days []time.Time
	last := startOfDay(s.End)
	for d := startOfDay(s.Start); !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// keyedMutex hands out one mutex per key. Loans of the same product are
// assigned under that product's lock.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

// Lock locks key and returns the matching unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		if m.refs--; m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
