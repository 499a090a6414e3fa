package broadcast

import "sync/atomic"

// Stats collects lightweight fan-out counters.
type Stats struct {
	ticks          uint64
	delivered      uint64
	skipped        uint64
	silent         uint64
	sinkErrors     uint64
	lastGeneration uint64
}

// StatsSnapshot is a point-in-time view of Stats.
type StatsSnapshot struct {
	Ticks          uint64 `json:"ticks"`
	Delivered      uint64 `json:"delivered"`
	Skipped        uint64 `json:"skipped"` // transport could not accept the update
	Silent         uint64 `json:"silent"`  // nothing subscribed, nothing sent
	SinkErrors     uint64 `json:"sink_errors"`
	LastGeneration uint64 `json:"last_generation"`
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Ticks:          atomic.LoadUint64(&s.ticks),
		Delivered:      atomic.LoadUint64(&s.delivered),
		Skipped:        atomic.LoadUint64(&s.skipped),
		Silent:         atomic.LoadUint64(&s.silent),
		SinkErrors:     atomic.LoadUint64(&s.sinkErrors),
		LastGeneration: atomic.LoadUint64(&s.lastGeneration),
	}
}
