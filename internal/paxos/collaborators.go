package paxos

import "context"

// Journal is the durable collaborator from spec §6: a single Progress
// record plus a per-slot Accept store. Every write must be durable
// before it returns — the core treats a returned nil error as "this is
// on disk" and relies on that to uphold the durable-before-send rule
// in §5. Owned exclusively by one Node; never shared.
type Journal interface {
	Load(ctx context.Context) (Progress, error)
	Save(ctx context.Context, p Progress) error
	Accept(ctx context.Context, a Accept) error
	Accepted(ctx context.Context, logIndex int64) (Accept, bool, error)
	// Bounds returns the lowest and highest slot with a stored Accept.
	// If the journal is empty, ok is false.
	Bounds(ctx context.Context) (min, max int64, ok bool, err error)
}

// Stats is the subset of github.com/cactus/go-statsd-client/statsd's
// Statter the core instruments phases with — mirrors the teacher's
// Manager.statsInc/statsTiming helper calls exactly.
type Stats interface {
	Inc(stat string, value int64, rate float32) error
	Timing(stat string, delta int64, rate float32) error
}

type noopStats struct{}

func (noopStats) Inc(string, int64, float32) error    { return nil }
func (noopStats) Timing(string, int64, float32) error { return nil }
