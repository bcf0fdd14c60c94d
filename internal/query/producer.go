package query

import (
	"github.com/rasterq/rasterq/internal/actor"
	"github.com/rasterq/rasterq/internal/addr"
	"github.com/rasterq/rasterq/internal/footprint"
	"github.com/rasterq/rasterq/internal/sample"
)

// Message kinds Producer exchanges with CacheExtractor and Resampler
// (spec.md §4.9), named after the original_source handler methods they
// port (cached/producer.py).
const (
	KindSampleThoseCacheFilesToAnArray = "sample_those_cache_files_to_an_array"
	KindSampledACacheFileToTheArray    = "sampled_a_cache_file_to_the_array"
	KindResampleAndAccumulate          = "resample_and_accumulate"
)

// Producer is the actor that starts building one production array and
// waits for its cache reads and resamplings to complete (spec.md §4.9).
// Grounded verbatim on original_source cached/producer.py's
// receive_make_this_array / receive_sampled_a_cache_file_to_the_array /
// receive_made_this_array, rewritten as typed Go methods over ProdArray
// instead of Python dict mutation.
type Producer struct {
	uid string

	produce map[*Query]map[int]*ProdArray
}

// NewProducer returns a Producer for the raster identified by uid.
func NewProducer(uid string) *Producer {
	return &Producer{uid: uid, produce: map[*Query]map[int]*ProdArray{}}
}

func (a *Producer) Address() string { return addr.Raster(a.uid, "Producer") }

func (a *Producer) Receive(kind string, args []any) []actor.Message {
	switch kind {
	case KindMakeThisArray:
		q := args[0].(*Query)
		prodIdx := args[1].(int)
		return a.receiveMakeThisArray(q, prodIdx)

	case KindSampledACacheFileToTheArray:
		q := args[0].(*Query)
		prodIdx := args[1].(int)
		cacheFp := args[2].(footprint.Footprint)
		arr, _ := args[3].(*sample.Array)
		return a.receiveSampledACacheFileToTheArray(q, prodIdx, cacheFp, arr)

	case KindMadeThisArray:
		// [*Query, prodIdx int, array any, err error] — forwarded to
		// QueriesHandler verbatim once this production is complete.
		q := args[0].(*Query)
		prodIdx := args[1].(int)
		a.forget(q, prodIdx)
		return []actor.Message{{To: addr.Raster(a.uid, "QueriesHandler"), Kind: KindMadeThisArray, Args: args}}

	case KindCancelThisQuery:
		q := args[0].(*Query)
		delete(a.produce, q)
		return nil

	case "die":
		a.produce = map[*Query]map[int]*ProdArray{}
		return nil
	}
	return nil
}

func (a *Producer) receiveMakeThisArray(q *Query, prodIdx int) []actor.Message {
	pi := &q.Prod[prodIdx]
	pr := NewProdArray(pi)

	byProd, ok := a.produce[q]
	if !ok {
		byProd = map[int]*ProdArray{}
		a.produce[q] = byProd
	}
	byProd[prodIdx] = pr

	var out []actor.Message
	if len(pi.CacheFps) != 0 {
		out = append(out, actor.Message{
			To: addr.Raster(a.uid, "CacheExtractor"), Kind: KindSampleThoseCacheFilesToAnArray,
			Args: []any{q, prodIdx},
		})
	}

	for resampleFp, deps := range pr.ResampleNeeds {
		if len(deps) != 0 {
			continue
		}
		sampleFp := pi.ResampleSampleDepFp[resampleFp]
		out = append(out, actor.Message{
			To: addr.Raster(a.uid, "Resampler"), Kind: KindResampleAndAccumulate,
			Args: []any{q, prodIdx, zeroFootprint(sampleFp), resampleFp, (*sample.Array)(nil)},
		})
	}
	return out
}

func (a *Producer) receiveSampledACacheFileToTheArray(q *Query, prodIdx int, cacheFp footprint.Footprint, arr *sample.Array) []actor.Message {
	byProd, ok := a.produce[q]
	if !ok {
		return nil
	}
	pr, ok := byProd[prodIdx]
	if !ok {
		return nil
	}
	if arr != nil {
		if pr.SampleArray == nil {
			rows, cols := pr.PI.SampleFp.Shape()
			pr.SampleArray = sample.NewArray(rows, cols, arr.Bands, arr.DType)
		}
		inter, _ := cacheFp.Intersection(pr.PI.SampleFp)
		tr, tc, ok1 := inter.SliceIn(cacheFp)
		sr, sc, ok2 := inter.SliceIn(pr.PI.SampleFp)
		if ok1 && ok2 {
			arr.Slice(tr.Start, tr.Stop, tc.Start, tc.Stop).WriteInto(pr.SampleArray, sr.Start, sc.Start)
		}
	}
	pi := pr.PI

	var ready []footprint.Footprint
	for resampleFp, deps := range pr.ResampleNeeds {
		if deps[cacheFp] {
			delete(deps, cacheFp)
		}
		if len(deps) == 0 {
			ready = append(ready, resampleFp)
		}
	}

	var out []actor.Message
	for _, resampleFp := range ready {
		sampleFpPtr := pi.ResampleSampleDepFp[resampleFp]
		var subArray *sample.Array
		if sampleFpPtr != nil {
			rows, cols, ok := sampleFpPtr.SliceIn(pi.SampleFp)
			if ok && pr.SampleArray != nil {
				subArray = pr.SampleArray.Slice(rows.Start, rows.Stop, cols.Start, cols.Stop)
			}
		}
		out = append(out, actor.Message{
			To: addr.Raster(a.uid, "Resampler"), Kind: KindResampleAndAccumulate,
			Args: []any{q, prodIdx, zeroFootprint(sampleFpPtr), resampleFp, subArray},
		})
	}
	return out
}

func (a *Producer) forget(q *Query, prodIdx int) {
	byProd, ok := a.produce[q]
	if !ok {
		return
	}
	delete(byProd, prodIdx)
	if len(byProd) == 0 {
		delete(a.produce, q)
	}
}

// zeroFootprint dereferences a possibly-nil *Footprint into its zero value
// so Resampler's message contract can always carry a plain Footprint.
func zeroFootprint(fp *footprint.Footprint) footprint.Footprint {
	if fp == nil {
		return footprint.Footprint{}
	}
	return *fp
}
