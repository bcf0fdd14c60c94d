// Package query implements the Query (`qi`) plan and per-production
// mutable state (spec.md §3 "Query (qi)" / "Production state (_ProdArray)")
// plus the QueriesHandler actor (spec.md §4.10) admitting, pacing,
// cancelling and emitting a raster's queries. Grounded in
// original_source/buzzard/_actors/cached/producer.py's `_ProdArray` and
// spec.md §4.10 verbatim.
package query

import (
	"sort"

	"github.com/rasterq/rasterq/internal/footprint"
	"github.com/rasterq/rasterq/internal/resample"
	"github.com/rasterq/rasterq/internal/sample"
)

// ProdInfo is the derived per-production-tile plan (spec.md §3).
type ProdInfo struct {
	Fp footprint.Footprint

	CacheFps               []footprint.Footprint
	SampleFp               footprint.Footprint
	ResampleFps            []footprint.Footprint
	ResampleCacheDepsFps   map[footprint.Footprint][]footprint.Footprint
	ResampleSampleDepFp    map[footprint.Footprint]*footprint.Footprint
	ShareArea, SameGrid    bool
}

// Query (`qi`) is the immutable plan for one user call (spec.md §3).
type Query struct {
	CreationIdx uint64

	Prod           []ProdInfo
	BandIDs        []int
	UniqueBandIDs  []int
	DstDType       sample.DType
	DstNoData      float64
	Interpolation  resample.Interpolation
}

// BandIndexMap returns, for each entry of BandIDs, its index within
// UniqueBandIDs — the reorder Resampler applies before emitting.
func (q *Query) BandIndexMap() []int {
	pos := make(map[int]int, len(q.UniqueBandIDs))
	for i, id := range q.UniqueBandIDs {
		pos[id] = i
	}
	out := make([]int, len(q.BandIDs))
	for i, id := range q.BandIDs {
		out[i] = pos[id]
	}
	return out
}

// uniqueSorted canonicalizes a band-id list: deduplicated, ascending.
func uniqueSorted(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	var out []int
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Ints(out)
	return out
}

// NewQuery plans a Query against a raster's cache-tile grid: for each
// requested production footprint, it computes the overlap with
// raster_fp, the set of cache tiles it depends on, and whether
// interpolation is required. One resample_fp is planned per production
// tile (a valid, if non-subdivided, instance of the "set of sub-footprints"
// spec.md §3 describes — sub-tiling resample work is a scheduling
// optimization, not a correctness requirement).
func NewQuery(creationIdx uint64, rasterFp footprint.Footprint, cacheTiles []footprint.Footprint, prodFps []footprint.Footprint, bandIDs []int, dstDType sample.DType, dstNoData float64, interp resample.Interpolation) *Query {
	q := &Query{
		CreationIdx:   creationIdx,
		BandIDs:       bandIDs,
		UniqueBandIDs: uniqueSorted(bandIDs),
		DstDType:      dstDType,
		DstNoData:     dstNoData,
		Interpolation: interp,
	}
	for _, fp := range prodFps {
		q.Prod = append(q.Prod, planProduction(rasterFp, cacheTiles, fp))
	}
	return q
}

func planProduction(rasterFp footprint.Footprint, cacheTiles []footprint.Footprint, fp footprint.Footprint) ProdInfo {
	pi := ProdInfo{
		Fp:                   fp,
		ResampleCacheDepsFps: map[footprint.Footprint][]footprint.Footprint{},
		ResampleSampleDepFp:  map[footprint.Footprint]*footprint.Footprint{},
	}

	overlap, ok := rasterFp.Intersection(fp)
	pi.ShareArea = ok
	if !ok {
		pi.ResampleFps = []footprint.Footprint{fp}
		pi.ResampleCacheDepsFps[fp] = nil
		pi.ResampleSampleDepFp[fp] = nil
		return pi
	}

	pi.SameGrid = fp.SameGrid(rasterFp)
	pi.SampleFp = overlap
	for _, tile := range cacheTiles {
		if tile.ShareArea(overlap) {
			pi.CacheFps = append(pi.CacheFps, tile)
		}
	}

	pi.ResampleFps = []footprint.Footprint{fp}
	deps := make([]footprint.Footprint, len(pi.CacheFps))
	copy(deps, pi.CacheFps)
	pi.ResampleCacheDepsFps[fp] = deps
	sampleFp := overlap
	pi.ResampleSampleDepFp[fp] = &sampleFp
	return pi
}

// ProdArray (`_ProdArray`) is the mutable per-(qi,prod_idx) state living in
// Producer: the combined sample array and the still-missing cache-tile
// dependency set for each resample_fp (spec.md §3). Its lifecycle is
// owned entirely by the Producer actor.
type ProdArray struct {
	PI           *ProdInfo
	ResampleNeeds map[footprint.Footprint]map[footprint.Footprint]bool
	SampleArray  *sample.Array
}

// NewProdArray seeds ResampleNeeds from pi.ResampleCacheDepsFps.
func NewProdArray(pi *ProdInfo) *ProdArray {
	pa := &ProdArray{PI: pi, ResampleNeeds: map[footprint.Footprint]map[footprint.Footprint]bool{}}
	for resampleFp, deps := range pi.ResampleCacheDepsFps {
		set := make(map[footprint.Footprint]bool, len(deps))
		for _, d := range deps {
			set[d] = true
		}
		pa.ResampleNeeds[resampleFp] = set
	}
	return pa
}
