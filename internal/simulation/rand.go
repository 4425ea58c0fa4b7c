package simulation

import (
	"math/rand"
	"sync"
	"time"
)

// Rand is the random source the engine draws from. Tests substitute a
// deterministic sequence to make trigger probabilities reproducible.
type Rand interface {
	// Float64 returns a uniform draw from [0, 1)
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

// defaultRand returns a time-seeded source safe for concurrent use
func defaultRand() Rand {
	return &lockedRand{r: rand.New(rand.NewSource(time.Now().UnixNano()))}
}
