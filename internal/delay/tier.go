package delay

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

const (
	minutesPerHour = 60
	minutesPerDay  = 24 * 60
)

// Rand is the random source used for jitter. Implementations must be safe
// for concurrent use when shared between goroutines.
type Rand interface {
	// Float64 returns a pseudo-random number in [0.0, 1.0).
	Float64() float64
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

// NewRand returns a goroutine-safe PCG source. A zero seed seeds from the
// wall clock.
func NewRand(seed uint64) Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Tier is a named delay bucket. Bounds are in minutes; MaxExclusive marks a
// half-open range.
type Tier struct {
	Name         string
	MinMinutes   float64
	MaxMinutes   float64
	MaxExclusive bool
}

func hoursTier(name string, min, max float64) Tier {
	return Tier{Name: name, MinMinutes: min * minutesPerHour, MaxMinutes: max * minutesPerHour}
}

func daysTier(name string, min, max float64) Tier {
	return Tier{Name: name, MinMinutes: min * minutesPerDay, MaxMinutes: max * minutesPerDay}
}

// Bounds returns the inclusive integer-minute range a draw can produce.
func (t Tier) Bounds() (lo, hi int) {
	lo = int(math.Ceil(t.MinMinutes))
	hi = int(math.Floor(t.MaxMinutes))
	if t.MaxExclusive && float64(hi) == t.MaxMinutes {
		hi--
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// Draw samples uniformly within the tier and rounds to the nearest minute.
func (t Tier) Draw(r Rand) int {
	lo, hi := t.Bounds()
	if lo == hi {
		return lo
	}

	v := t.MinMinutes + r.Float64()*(t.MaxMinutes-t.MinMinutes)
	m := int(math.Round(v))
	switch {
	case m < lo:
		return lo
	case m > hi:
		return hi
	}
	return m
}
