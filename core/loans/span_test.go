package loans

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(day, hour int) time.Time {
	return time.Date(2030, time.March, day, hour, 0, 0, 0, time.UTC)
}

func TestSpanOverlaps(t *testing.T) {
	base := Span{Start: at(10, 12), End: at(12, 12)}
	tests := []struct {
		name  string
		other Span
		want  bool
	}{
		{"inside", Span{at(11, 0), at(11, 6)}, true},
		{"covers", Span{at(9, 0), at(13, 0)}, true},
		{"tail", Span{at(12, 0), at(14, 0)}, true},
		{"touching end", Span{at(12, 12), at(14, 0)}, false},
		{"touching start", Span{at(8, 0), at(10, 12)}, false},
		{"before", Span{at(1, 0), at(2, 0)}, false},
		{"same start", Span{at(10, 12), at(10, 12)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, base.Overlaps(tt.other))
			assert.Equal(t, tt.want, tt.other.Overlaps(base))
		})
	}
}

func TestSpanDays(t *testing.T) {
	s := NewSpan(at(12, 1), at(10, 23))
	assert.Equal(t, at(10, 23), s.Start)
	assert.Equal(t, []time.Time{at(10, 0), at(11, 0), at(12, 0)}, s.Days())
	assert.Equal(t, 26*time.Hour, s.Duration())

	week := NewSpan(at(3, 6), at(10, 18))
	assert.Equal(t, 7*24*time.Hour+12*time.Hour, week.Duration())
	assert.Len(t, week.Days(), 8)

	assert.Len(t, Span{Start: at(5, 3), End: at(5, 4)}.Days(), 1)
}

func TestKeyedMutex(t *testing.T) {
	var k keyedMutex
	var inside, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("drill")
			n := inside.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, peak.Load())
	assert.Empty(t, k.locks)

	// Different keys do not block each other.
	a := k.Lock("a")
	b := k.Lock("b")
	b()
	a()
}
