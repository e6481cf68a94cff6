package mock

import (
	"sync"
	"time"
)

// RecordingStatter keeps the totals of every count and the number of timings
// recorded under each name. It is safe for concurrent use.
type RecordingStatter struct {
	mu      sync.Mutex
	counts  map[string]int64
	timings map[string]int
	gauges  map[string]float64
}

func (r *RecordingStatter) Count(name string, value int64, rate float64, tags ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = make(map[string]int64)
	}
	r.counts[name] += value
}

func (r *RecordingStatter) Gauge(name string, value float64, rate float64, tags ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gauges == nil {
		r.gauges = make(map[string]float64)
	}
	r.gauges[name] = value
}

func (r *RecordingStatter) Histogram(name string, value float64, rate float64, tags ...string) {}

func (r *RecordingStatter) Set(name string, value string, rate float64, tags ...string) {}

func (r *RecordingStatter) Timing(name string, value time.Duration, rate float64, tags ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timings == nil {
		r.timings = make(map[string]int)
	}
	r.timings[name]++
}

// Counted returns the total of all counts recorded under name.
func (r *RecordingStatter) Counted(name string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[name]
}

// Timings returns how many timings were recorded under name.
func (r *RecordingStatter) Timings(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timings[name]
}

// Gauged returns the last value of the named gauge.
func (r *RecordingStatter) Gauged(name string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gauges[name]
}
