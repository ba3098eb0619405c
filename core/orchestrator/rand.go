package orchestrator

import (
	"math/rand"
	"sync"
)

// lockedSource makes a math/rand.Source safe for concurrent use by every
// goroutine sharing the Orchestrator's single *rand.Rand (the broker's
// processing goroutine calling schedule, and every in-flight generation
// goroutine calling strategy.Select/respqueue.Delay/strategy.AddMention).
type lockedSource struct {
	mu  sync.Mutex
	src rand.Source
}

func (s *lockedSource) Int63() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Int63()
}

func (s *lockedSource) Seed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src.Seed(seed)
}
