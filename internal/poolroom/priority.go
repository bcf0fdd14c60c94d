// Package poolroom implements the WaitingRoom/WorkingRoom admission-control
// pair in front of a shared worker pool (spec.md §4.2), plus the two pool
// kinds consumed through it: a same-address-space ThreadPool and a
// cross-address-space ProcessPool. Grounded in the teacher's
// internal/tile.Generate job-channel/worker-pool loop and
// MeKo-Christian-WaterColorMap's internal/worker.Pool.
package poolroom

// PriorityKey orders waiting jobs so that earlier queries and earlier
// output tiles are served first, with deterministic tie-breaking
// (spec.md §3 "Pool job").
type PriorityKey struct {
	RasterUID        string
	QueryCreationIdx uint64
	ProdIdx          int
	FootprintTie     int
}

// Less reports whether a should be served before b.
func (a PriorityKey) Less(b PriorityKey) bool {
	if a.RasterUID != b.RasterUID {
		return a.RasterUID < b.RasterUID
	}
	if a.QueryCreationIdx != b.QueryCreationIdx {
		return a.QueryCreationIdx < b.QueryCreationIdx
	}
	if a.ProdIdx != b.ProdIdx {
		return a.ProdIdx < b.ProdIdx
	}
	return a.FootprintTie < b.FootprintTie
}
