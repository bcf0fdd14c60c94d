package query

import (
	"sync"

	"github.com/rasterq/rasterq/internal/actor"
	"github.com/rasterq/rasterq/internal/addr"
)

// Message kinds the QueriesHandler exchanges with Producer and the raster's
// other actors (spec.md §4.10).
const (
	KindMakeThisArray   = "make_this_array"
	KindMadeThisArray   = "made_this_array"
	KindCancelThisQuery = "cancel_this_query"
)

// cancelBroadcastTargets are the raster-scoped actors that must each drop
// their own in-flight state for a cancelled query (spec.md §4.10).
var cancelBroadcastTargets = []string{"Producer", "Resampler", "CacheExtractor", "Reader", "Computer", "Merger"}

type queryState struct {
	q            *Query
	maxQueueSize int
	out          chan Emission

	nextAdmitIdx int
	nextEmitIdx  int
	inFlight     map[int]bool
	ready        map[int]*Emission
	cancelled    bool
}

// Emission is one completed production tile delivered to the user-facing
// iterator, in request order (spec.md §4.10).
type Emission struct {
	ProdIdx int
	Array   interface{}
	Err     error
}

// QueriesHandler holds per-query admission/backpressure state for one
// raster and emits completed tiles in request order (spec.md §4.10).
type QueriesHandler struct {
	uid   string
	stats *Stats

	mu      sync.Mutex
	queries map[*Query]*queryState
}

// NewQueriesHandler returns a QueriesHandler for the raster identified by
// uid.
func NewQueriesHandler(uid string) *QueriesHandler {
	return &QueriesHandler{uid: uid, queries: map[*Query]*queryState{}}
}

// SetStats wires a Stats this QueriesHandler reports every emitted or
// failed production tile to. Optional: a nil Stats (the default) disables
// reporting.
func (h *QueriesHandler) SetStats(s *Stats) { h.stats = s }

func (h *QueriesHandler) Address() string { return addr.Raster(h.uid, "QueriesHandler") }

// Start registers q and returns the channel its completed production tiles
// will arrive on, in strict prod_idx order, bounded by maxQueueSize. The
// returned messages kick off initial admission and must be delivered
// through the scheduler.
func (h *QueriesHandler) Start(q *Query, maxQueueSize int) (<-chan Emission, []actor.Message) {
	if maxQueueSize <= 0 {
		maxQueueSize = 1
	}
	if len(q.Prod) == 0 {
		out := make(chan Emission)
		close(out)
		return out, nil
	}
	// out is sized to maxQueueSize, the hard cap on ready-but-unread arrays
	// (spec.md §4.10, §8 "Backpressure bound"): a completed tile only leaves
	// st.ready once it actually fits in this buffer, so len(st.ready)+len(st.out)
	// is never more than maxQueueSize behind admission. Sends into out are
	// non-blocking (see tryEmitAndAdmitLocked) so a Receive handler never
	// risks blocking the scheduler goroutine on a full buffer.
	st := &queryState{
		q:            q,
		maxQueueSize: maxQueueSize,
		out:          make(chan Emission, maxQueueSize),
		inFlight:     map[int]bool{},
		ready:        map[int]*Emission{},
	}
	h.mu.Lock()
	h.queries[q] = st
	msgs := h.admitLocked(st)
	h.mu.Unlock()
	return st.out, msgs
}

// Cancel returns the broadcast messages cancelling q across every
// raster-scoped actor and removes its local state. The out channel is
// closed so the user-facing iterator terminates.
func (h *QueriesHandler) Cancel(q *Query) []actor.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := h.queries[q]
	if !ok {
		return nil
	}
	st.cancelled = true
	close(st.out)
	delete(h.queries, q)

	out := make([]actor.Message, 0, len(cancelBroadcastTargets))
	for _, name := range cancelBroadcastTargets {
		out = append(out, actor.Message{To: addr.Raster(h.uid, name), Kind: KindCancelThisQuery, Args: []any{q}})
	}
	return out
}

func (h *QueriesHandler) Receive(kind string, args []any) []actor.Message {
	switch kind {
	case KindMadeThisArray:
		// Args: [*Query, prodIdx int, array any, err error] — Producer
		// always sends all four, err nil on success.
		q := args[0].(*Query)
		prodIdx := args[1].(int)
		value := args[2]
		var err error
		if args[3] != nil {
			err = args[3].(error)
		}
		return h.onMadeThisArray(q, prodIdx, value, err)
	case "die":
		h.mu.Lock()
		for _, st := range h.queries {
			if !st.cancelled {
				st.cancelled = true
				close(st.out)
			}
		}
		h.queries = map[*Query]*queryState{}
		h.mu.Unlock()
		return nil
	}
	return nil
}

func (h *QueriesHandler) onMadeThisArray(q *Query, prodIdx int, value any, err error) []actor.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := h.queries[q]
	if !ok || st.cancelled {
		return nil
	}
	delete(st.inFlight, prodIdx)
	st.ready[prodIdx] = &Emission{ProdIdx: prodIdx, Array: value, Err: err}
	return h.tryEmitAndAdmitLocked(q, st)
}

// Consumed reports that the user-facing iterator has pulled one Emission off
// q's out channel, freeing a slot in the ready queue. It re-evaluates
// emission (a head-of-line tile may now fit) and admission (spec.md §4.10)
// and returns the resulting messages for the caller to dispatch. Called
// directly by Iterator.Next, outside the scheduler goroutine, the same way
// Cancel is.
func (h *QueriesHandler) Consumed(q *Query) []actor.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := h.queries[q]
	if !ok || st.cancelled {
		return nil
	}
	return h.tryEmitAndAdmitLocked(q, st)
}

// tryEmitAndAdmitLocked pushes as many in-order ready tiles into st.out as
// currently fit, then admits new production for the room that frees up.
// Caller must hold h.mu.
func (h *QueriesHandler) tryEmitAndAdmitLocked(q *Query, st *queryState) []actor.Message {
	for {
		e, ok := st.ready[st.nextEmitIdx]
		if !ok {
			break
		}
		select {
		case st.out <- *e:
		default:
			// out is at maxQueueSize capacity: e stays in st.ready until
			// Consumed frees a slot. Stop trying to emit further tiles —
			// order must still be preserved — but admission below may
			// still be blocked on this same cap, so fall through anyway.
			return h.admitLocked(st)
		}
		h.stats.recordEmission(e)
		delete(st.ready, st.nextEmitIdx)
		st.nextEmitIdx++
		if st.nextEmitIdx == len(st.q.Prod) {
			close(st.out)
			delete(h.queries, q)
			return nil
		}
	}
	return h.admitLocked(st)
}

// admitLocked kicks off make_this_array for as many not-yet-started
// production indices as backpressure allows: in_flight + ready_queue <
// max_queue_size (spec.md §4.10), where ready_queue counts both tiles
// still held in st.ready and tiles already buffered in st.out — len(st.out)
// is exactly the count of completed-but-unread arrays at any instant.
// Caller must hold h.mu.
func (h *QueriesHandler) admitLocked(st *queryState) []actor.Message {
	var out []actor.Message
	for st.nextAdmitIdx < len(st.q.Prod) && len(st.inFlight)+len(st.ready)+len(st.out) < st.maxQueueSize {
		idx := st.nextAdmitIdx
		st.inFlight[idx] = true
		st.nextAdmitIdx++
		out = append(out, actor.Message{To: addr.Raster(h.uid, "Producer"), Kind: KindMakeThisArray, Args: []any{st.q, idx}})
	}
	return out
}
