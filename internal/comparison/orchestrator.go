package comparison

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/lookout/internal/cache"
	"github.com/aristath/lookout/internal/domain"
	"github.com/aristath/lookout/internal/events"
	"github.com/aristath/lookout/internal/insights"
)

// AnalysisClient is the external comparison collaborator: one RPC-like
// call per facet. Implemented by clients/analysis.Client and by mocks.
type AnalysisClient interface {
	FacetCall(ctx context.Context, facet domain.Facet, payload domain.Payload) (json.RawMessage, error)
}

// Orchestrator is the single entry point for comparison requests. Every
// caller (HTTP handlers, batch scheduler, refresh supervisor) funnels
// through Submit, guaranteeing one cache and concurrency policy.
type Orchestrator struct {
	validator *Validator
	cache     *cache.Store
	client    AnalysisClient
	insights  *insights.Engine
	bus       *events.Bus
	states    *stateRegistry
	log       zerolog.Logger
}

// NewOrchestrator creates a request orchestrator. bus may be nil in tests.
func NewOrchestrator(validator *Validator, store *cache.Store, client AnalysisClient, engine *insights.Engine, bus *events.Bus, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		validator: validator,
		cache:     store,
		client:    client,
		insights:  engine,
		bus:       bus,
		states:    newStateRegistry(),
		log:       log.With().Str("component", "orchestrator").Logger(),
	}
}

// Submit resolves one comparison request: validate, consult the cache,
// and only then call the analysis service. Blocks until resolution; run
// it in a goroutine for fire-and-forget semantics.
//
// The returned result's Superseded flag is set when a newer request for a
// latest-wins facet was submitted while this one was in flight. Superseded
// resolutions still write the cache (last writer by resolution order) but
// leave facet state, events, and insights untouched.
func (o *Orchestrator) Submit(ctx context.Context, req domain.ComparisonRequest) (*domain.FacetResult, error) {
	warnings, err := o.validator.Validate(req)
	if err != nil {
		verr := domain.NewValidationError(err)
		o.states.setFailure(req.Facet, verr)
		o.publishFailure(req, verr)
		o.log.Warn().
			Str("facet", string(req.Facet)).
			Str("comparison_id", req.ComparisonID).
			Err(err).
			Msg("Request rejected by validation")
		return nil, verr
	}
	for _, w := range warnings {
		o.log.Warn().
			Str("facet", string(req.Facet)).
			Str("comparison_id", req.ComparisonID).
			Msg(w)
	}

	// Cache has absolute priority: a fresh entry short-circuits the
	// network entirely. Read errors degrade to misses.
	entry, err := o.cache.Get(req.Facet, req.ComparisonID)
	if err != nil {
		o.log.Warn().Err(err).
			Str("facet", string(req.Facet)).
			Str("comparison_id", req.ComparisonID).
			Msg("Cache read failed, treating as miss")
	}
	if entry != nil {
		// A cache hit is still the newest submission: for latest-wins
		// facets it supersedes anything older left in flight.
		o.states.markNewestResolved(req.Facet)
		o.states.setSuccess(req.Facet)
		o.publishResolved(req, true)
		o.log.Debug().
			Str("facet", string(req.Facet)).
			Str("comparison_id", req.ComparisonID).
			Msg("Cache hit")
		return &domain.FacetResult{
			Facet:        req.Facet,
			ComparisonID: req.ComparisonID,
			Data:         entry.Data,
			FromCache:    true,
			ResolvedAt:   time.Now(),
		}, nil
	}

	seq := o.states.beginLoading(req.Facet)

	data, err := o.client.FacetCall(ctx, req.Facet, req.Payload)
	if err != nil {
		ce := domain.AsClassified(err)
		applied := o.states.endLoading(req.Facet, seq)

		logEvent := o.log.Warn()
		if ce.Kind == domain.KindServer {
			// 5xx from the analysis service is critical, but subsequent
			// unrelated requests keep flowing; there is no circuit breaker.
			logEvent = o.log.Error()
		}
		logEvent.
			Str("facet", string(req.Facet)).
			Str("comparison_id", req.ComparisonID).
			Str("kind", string(ce.Kind)).
			Bool("superseded", !applied).
			Err(ce).
			Msg("Comparison request failed")

		if applied {
			o.states.setFailure(req.Facet, ce)
			o.publishFailure(req, ce)
		}
		return nil, ce
	}

	// Successful completion is the only path that writes the cache, and
	// the write happens whether or not this request was superseded.
	if err := o.cache.Put(req.Facet, req.ComparisonID, data); err != nil {
		o.log.Warn().Err(err).
			Str("facet", string(req.Facet)).
			Str("comparison_id", req.ComparisonID).
			Msg("Failed to write cache entry")
	}

	result := &domain.FacetResult{
		Facet:        req.Facet,
		ComparisonID: req.ComparisonID,
		Data:         data,
		ResolvedAt:   time.Now(),
	}

	if !o.states.endLoading(req.Facet, seq) {
		result.Superseded = true
		o.log.Debug().
			Str("facet", string(req.Facet)).
			Str("comparison_id", req.ComparisonID).
			Msg("Resolution superseded by a newer request")
		return result, nil
	}

	o.states.setSuccess(req.Facet)
	o.publishResolved(req, false)

	if req.Facet == domain.FacetComparison {
		go o.deriveInsights(req.ComparisonID, data)
	}

	return result, nil
}

// GetFacetState returns the current state of one facet.
func (o *Orchestrator) GetFacetState(facet domain.Facet) FacetState {
	return o.states.state(facet)
}

// StatesSnapshot returns the state of every facet.
func (o *Orchestrator) StatesSnapshot() map[domain.Facet]FacetState {
	return o.states.snapshot()
}

// GetCachedResult exposes raw cache lookups to the API surface. A nil
// entry means absent or expired; callers treat both as a miss.
func (o *Orchestrator) GetCachedResult(facet domain.Facet, comparisonID string) (*cache.Entry, error) {
	return o.cache.Get(facet, comparisonID)
}

// deriveInsights decodes a comparison result and hands it to the insight
// engine. Runs asynchronously on success of the comparison facet only;
// decode failures are logged and dropped, never surfaced to the caller.
func (o *Orchestrator) deriveInsights(comparisonID string, data json.RawMessage) {
	var res domain.ComparisonResult
	if err := json.Unmarshal(data, &res); err != nil {
		o.log.Debug().Err(err).
			Str("comparison_id", comparisonID).
			Msg("Comparison result not decodable for insights")
		return
	}

	insight := o.insights.Derive(res)

	if o.bus != nil {
		winner := ""
		if insight.Winner != nil {
			winner = *insight.Winner
		}
		o.bus.Publish(&events.InsightsReadyData{
			ComparisonID: comparisonID,
			Winner:       winner,
			Confidence:   insight.Confidence,
		})
	}
}

func (o *Orchestrator) publishResolved(req domain.ComparisonRequest, fromCache bool) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(&events.FacetResolvedData{
		Facet:        string(req.Facet),
		ComparisonID: req.ComparisonID,
		FromCache:    fromCache,
	})
}

func (o *Orchestrator) publishFailure(req domain.ComparisonRequest, ce *domain.ClassifiedError) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(&events.FacetFailedData{
		Facet:        string(req.Facet),
		ComparisonID: req.ComparisonID,
		Kind:         string(ce.Kind),
		Message:      ce.Message,
		Transient:    ce.Transient,
	})
}
