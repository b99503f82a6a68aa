package monitoring

import (
	"runtime"
	"sync"
	"time"
)

// RuntimeSample is one observation of the process.
type RuntimeSample struct {
	MemoryPercent float64
	HeapAlloc     uint64
	HeapSys       uint64
	Goroutines    int
	GCs           uint32
	Uptime        time.Duration
	Timestamp     time.Time
}

// Sampler reads runtime statistics on demand and remembers the latest
// observation for the ops API.
type Sampler struct {
	startedAt time.Time

	mu   sync.RWMutex
	last RuntimeSample
}

func NewSampler() *Sampler {
	return &Sampler{startedAt: time.Now()}
}

// Sample takes a fresh runtime reading. Memory percent is heap-alloc over
// heap-sys, which tracks the pressure inside the Go heap rather than RSS.
func (s *Sampler) Sample() RuntimeSample {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	percent := 0.0
	if stats.HeapSys > 0 {
		percent = float64(stats.HeapAlloc) / float64(stats.HeapSys) * 100
	}

	sample := RuntimeSample{
		MemoryPercent: percent,
		HeapAlloc:     stats.HeapAlloc,
		HeapSys:       stats.HeapSys,
		Goroutines:    runtime.NumGoroutine(),
		GCs:           stats.NumGC,
		Uptime:        time.Since(s.startedAt),
		Timestamp:     time.Now(),
	}

	s.mu.Lock()
	s.last = sample
	s.mu.Unlock()

	return sample
}

// Last returns the most recent sample without taking a new reading.
func (s *Sampler) Last() RuntimeSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}
