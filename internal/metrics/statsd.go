// Package metrics wraps github.com/cactus/go-statsd-client/statsd as
// the paxos.Stats collaborator, plus an in-memory Recorder for tests —
// grounded on the teacher's src/consensus/testing_mocks.go mockStatter
// (same counters/timers map shape) and the real statsd.Statter
// interface it stands in for.
package metrics

import (
	"sync"

	"github.com/cactus/go-statsd-client/statsd"
)

// Statsd adapts a statsd.Statter to paxos.Stats.
type Statsd struct {
	client statsd.Statter
}

func NewStatsd(addr, prefix string) (*Statsd, error) {
	client, err := statsd.NewClient(addr, prefix)
	if err != nil {
		return nil, err
	}
	return &Statsd{client: client}, nil
}

func (s *Statsd) Inc(stat string, value int64, rate float32) error {
	return s.client.Inc(stat, value, rate)
}

func (s *Statsd) Timing(stat string, delta int64, rate float32) error {
	return s.client.Timing(stat, delta, rate)
}

func (s *Statsd) Close() error {
	return s.client.Close()
}

// Recorder is an in-memory paxos.Stats for tests, mirroring the
// teacher's mockStatter.
type Recorder struct {
	mu       sync.RWMutex
	counters map[string]int64
	timers   map[string]int64
}

func NewRecorder() *Recorder {
	return &Recorder{counters: make(map[string]int64), timers: make(map[string]int64)}
}

func (r *Recorder) Inc(stat string, value int64, rate float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[stat] += value
	return nil
}

func (r *Recorder) Timing(stat string, delta int64, rate float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timers[stat] = delta
	return nil
}

func (r *Recorder) Counter(stat string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counters[stat]
}
