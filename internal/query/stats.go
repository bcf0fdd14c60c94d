package query

import (
	"sync/atomic"

	"github.com/rasterq/rasterq/internal/sample"
)

// Stats accumulates production-tile outcomes across every query a
// QueriesHandler serves, for progress reporting on a long-running
// iter_data consumption (supplements spec.md §7's fire-and-forget
// iterator with the counters a "stats" CLI subcommand or /metrics
// endpoint can poll). Safe for concurrent use; every field is updated
// with atomic ops rather than a mutex since increments never need to be
// observed together.
type Stats struct {
	tilesEmitted  atomic.Int64
	tilesFailed   atomic.Int64
	bytesProduced atomic.Int64
}

// NewStats returns a zero-valued Stats.
func NewStats() *Stats { return &Stats{} }

func (s *Stats) recordEmission(e *Emission) {
	if s == nil {
		return
	}
	if e.Err != nil {
		s.tilesFailed.Add(1)
		return
	}
	s.tilesEmitted.Add(1)
	if arr, ok := e.Array.(*sample.Array); ok {
		s.bytesProduced.Add(int64(len(arr.Data)) * 8)
	}
}

// Snapshot is a point-in-time copy of a Stats' counters.
type Snapshot struct {
	TilesEmitted  int64
	TilesFailed   int64
	BytesProduced int64
}

// Snapshot reads every counter. Safe to call concurrently with ongoing
// queries; the three fields are not read atomically with each other.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		TilesEmitted:  s.tilesEmitted.Load(),
		TilesFailed:   s.tilesFailed.Load(),
		BytesProduced: s.bytesProduced.Load(),
	}
}
