package actors

import (
	"testing"

	"github.com/rasterq/rasterq/internal/actor"
	"github.com/rasterq/rasterq/internal/addr"
	"github.com/rasterq/rasterq/internal/footprint"
	"github.com/rasterq/rasterq/internal/poolroom"
	"github.com/rasterq/rasterq/internal/query"
	"github.com/rasterq/rasterq/internal/raster"
	"github.com/rasterq/rasterq/internal/sample"
	"github.com/rs/zerolog"
)

type noopPool struct{}

func (noopPool) Submit(fn poolroom.JobFunc) <-chan poolroom.Result {
	panic("noopPool should never be driven directly in these tests")
}
func (noopPool) Workers() int           { return 1 }
func (noopPool) SameAddressSpace() bool { return false }
func (noopPool) Close()                 {}

func TestResamplerNilSubArrayFillsNodataInline(t *testing.T) {
	rasterFp := footprint.New(0, 0, 1, -1, 10, 10)
	r := &raster.Raster{UID: "r1", ChannelCount: 1, Footprint: rasterFp}
	sched := actor.New(zerolog.Nop())
	a := NewResampler(r, sched)

	q := query.NewQuery(1, rasterFp, nil, []footprint.Footprint{rasterFp}, []int{0}, sample.DTypeUint8, 9, 0)
	pi := q.Prod[0]

	msgs := a.Receive(KindResampleAndAccumulate, []any{q, 0, pi.SampleFp, rasterFp, nil})
	if len(msgs) != 1 || msgs[0].To != addr.Raster("r1", "Producer") || msgs[0].Kind != query.KindMadeThisArray {
		t.Fatalf("expected a single made_this_array to Producer, got %+v", msgs)
	}
	arr := msgs[0].Args[2].(*sample.Array)
	rows, cols := rasterFp.Shape()
	if arr.Rows != rows || arr.Cols != cols {
		t.Fatalf("expected a (%d,%d) fill, got (%d,%d)", rows, cols, arr.Rows, arr.Cols)
	}
	if arr.At(0, 0, 0) != 9 {
		t.Fatalf("expected every pixel set to dst_nodata 9, got %v", arr.At(0, 0, 0))
	}
}

func TestResamplerNeverPoolDispatchesANilSubArray(t *testing.T) {
	rasterFp := footprint.New(0, 0, 1, -1, 10, 10)
	queryFp := footprint.New(0, 0, 2, -2, 5, 5) // overlaps, coarser grid: interpolation would be needed
	r := &raster.Raster{UID: "r1", ChannelCount: 1, Footprint: rasterFp, ResamplePool: noopPool{}}
	sched := actor.New(zerolog.Nop())
	a := NewResampler(r, sched)

	q := query.NewQuery(1, rasterFp, nil, []footprint.Footprint{queryFp}, []int{0}, sample.DTypeUint8, 0, 0)
	pi := q.Prod[0]
	if !pi.ShareArea || pi.SameGrid {
		t.Fatalf("test fixture assumption broken: ShareArea=%v SameGrid=%v", pi.ShareArea, pi.SameGrid)
	}

	msgs := a.Receive(KindResampleAndAccumulate, []any{q, 0, pi.SampleFp, queryFp, nil})
	if len(msgs) != 1 || msgs[0].To != addr.Raster("r1", "Producer") {
		t.Fatalf("expected the nil subArray to take the inline path straight to Producer, got %+v", msgs)
	}
	if len(a.waiting) != 0 {
		t.Fatalf("expected no pool job to have been scheduled, got %d waiting", len(a.waiting))
	}
}
