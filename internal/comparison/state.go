package comparison

import (
	"sync"

	"github.com/aristath/lookout/internal/domain"
)

// FacetState is the UI-visible state of one facet: a loading flag and an
// error slot. Idle -> Loading -> {Success, Failure} -> Idle; success clears
// the error slot, failure fills it.
type FacetState struct {
	Loading bool                    `json:"loading"`
	Err     *domain.ClassifiedError `json:"error,omitempty"`
}

// stateRegistry tracks per-facet state and the submission sequence used
// for supersession. The orchestrator is its only owner; all mutation goes
// through the lifecycle transitions below.
type stateRegistry struct {
	mu       sync.Mutex
	inFlight map[domain.Facet]int
	errSlot  map[domain.Facet]*domain.ClassifiedError
	// seq is the sequence number of the most recently submitted request
	// per latest-wins facet; doneSeq is the newest sequence that has
	// resolved. A resolution applies only if it still holds the newest
	// sequence, and the facet reads as loading while the newest sequence
	// is unresolved. Older in-flight requests do not count: their state
	// is already discarded.
	seq     map[domain.Facet]uint64
	doneSeq map[domain.Facet]uint64
}

func newStateRegistry() *stateRegistry {
	return &stateRegistry{
		inFlight: make(map[domain.Facet]int),
		errSlot:  make(map[domain.Facet]*domain.ClassifiedError),
		seq:      make(map[domain.Facet]uint64),
		doneSeq:  make(map[domain.Facet]uint64),
	}
}

// beginLoading marks a request in flight and returns the sequence number
// assigned to it. For independent facets the sequence is unused.
func (r *stateRegistry) beginLoading(facet domain.Facet) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFlight[facet]++
	if facet.Supersession() == domain.PolicyLatest {
		r.seq[facet]++
	}
	return r.seq[facet]
}

// endLoading marks a request resolved and reports whether its state
// transition may apply. Superseded resolutions return false: the request
// ran to completion but a newer submission owns the facet's visible state.
func (r *stateRegistry) endLoading(facet domain.Facet, seq uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inFlight[facet] > 0 {
		r.inFlight[facet]--
	}
	if facet.Supersession() == domain.PolicyLatest {
		if seq > r.doneSeq[facet] {
			r.doneSeq[facet] = seq
		}
		return r.seq[facet] == seq
	}
	return true
}

// markNewestResolved registers a submission that resolved without ever
// going in flight (a cache hit). For latest-wins facets it claims the
// newest sequence, so any older request still in flight comes back
// superseded. No-op for independent facets.
func (r *stateRegistry) markNewestResolved(facet domain.Facet) {
	if facet.Supersession() != domain.PolicyLatest {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq[facet]++
	r.doneSeq[facet] = r.seq[facet]
}

// setSuccess clears the facet's error slot.
func (r *stateRegistry) setSuccess(facet domain.Facet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errSlot[facet] = nil
}

// setFailure fills the facet's error slot.
func (r *stateRegistry) setFailure(facet domain.Facet, err *domain.ClassifiedError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errSlot[facet] = err
}

// loading reports whether the facet is visibly loading. Callers must hold
// the mutex.
func (r *stateRegistry) loading(facet domain.Facet) bool {
	if facet.Supersession() == domain.PolicyLatest {
		return r.seq[facet] > r.doneSeq[facet]
	}
	return r.inFlight[facet] > 0
}

// state returns the facet's current state.
func (r *stateRegistry) state(facet domain.Facet) FacetState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return FacetState{
		Loading: r.loading(facet),
		Err:     r.errSlot[facet],
	}
}

// snapshot returns the state of every facet.
func (r *stateRegistry) snapshot() map[domain.Facet]FacetState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[domain.Facet]FacetState, len(domain.AllFacets))
	for _, facet := range domain.AllFacets {
		out[facet] = FacetState{
			Loading: r.loading(facet),
			Err:     r.errSlot[facet],
		}
	}
	return out
}
