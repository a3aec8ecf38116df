// Package randutil centralises how the server derives its random sources so
// that shuffles are reproducible under a fixed seed.
package randutil

import (
	rand "math/rand/v2"
	"sync"
	"time"
)

const (
	goldenRatio64 = 0x9e3779b97f4a7c15
)

// Source is the subset of *rand.Rand the deck needs for shuffling.
type Source interface {
	IntN(n int) int
}

// New returns a *rand.Rand seeded deterministically from the provided int64.
func New(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))
}

// Seed returns the configured seed, or a time-derived one when seed is nil.
func Seed(seed *int64) int64 {
	if seed != nil {
		return *seed
	}
	return time.Now().UnixNano()
}

// Locked wraps a *rand.Rand so it can be shared between concurrent requests.
type Locked struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewLocked returns a goroutine-safe source seeded from seed.
func NewLocked(seed int64) *Locked {
	return &Locked{rng: New(seed)}
}

// IntN implements Source.
func (l *Locked) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.IntN(n)
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
