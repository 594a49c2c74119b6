package comparison

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/aristath/lookout/internal/domain"
	"github.com/aristath/lookout/internal/events"
	"github.com/aristath/lookout/internal/settings"
)

// defaultPairSpacing is the fixed delay between successive pairs. It bounds
// the request rate against the analysis service.
const defaultPairSpacing = 250 * time.Millisecond

// defaultLookback is the date range used for batch-generated requests.
const defaultLookback = -1 // years

// BatchScheduler expands an N-portfolio selection into pairwise comparison
// requests, capped by the max-comparisons setting and spaced to bound the
// request rate.
type BatchScheduler struct {
	orch     *Orchestrator
	settings *settings.Service
	bus      *events.Bus
	spacing  time.Duration
	log      zerolog.Logger
}

// NewBatchScheduler creates a batch scheduler. bus may be nil in tests.
func NewBatchScheduler(orch *Orchestrator, svc *settings.Service, bus *events.Bus, log zerolog.Logger) *BatchScheduler {
	return &BatchScheduler{
		orch:     orch,
		settings: svc,
		bus:      bus,
		spacing:  defaultPairSpacing,
		log:      log.With().Str("component", "batch_scheduler").Logger(),
	}
}

// RunBatch issues pairwise comparisons for the selection, fire-and-forget.
// If includeAll is set, each pair also gets a performance and a risk
// request; those do not count against the pair cap.
func (b *BatchScheduler) RunBatch(ctx context.Context, portfolios []string, includeAll bool) {
	go func() {
		pairs, requests := b.runBatch(ctx, portfolios, includeAll)
		if b.bus != nil && pairs > 0 {
			b.bus.Publish(&events.BatchCompletedData{Pairs: pairs, Requests: requests})
		}
	}()
}

// runBatch is the synchronous core. Pairs are enumerated (i,j) with i<j,
// outer index ascending then inner, which fixes a deterministic,
// reproducible ordering.
func (b *BatchScheduler) runBatch(ctx context.Context, portfolios []string, includeAll bool) (pairs, requests int) {
	if len(portfolios) < 2 {
		b.log.Debug().Int("count", len(portfolios)).Msg("Batch needs at least two portfolios, skipping")
		return 0, 0
	}

	maxPairs := b.settings.MaxComparisons()
	limiter := rate.NewLimiter(rate.Every(b.spacing), 1)

	now := time.Now()
	endDate := now.Format(dateLayout)
	startDate := now.AddDate(defaultLookback, 0, 0).Format(dateLayout)

	b.log.Info().
		Int("portfolios", len(portfolios)).
		Int("max_pairs", maxPairs).
		Bool("include_all", includeAll).
		Msg("Starting pairwise batch")

	for i := 0; i < len(portfolios) && pairs < maxPairs; i++ {
		for j := i + 1; j < len(portfolios) && pairs < maxPairs; j++ {
			if err := limiter.Wait(ctx); err != nil {
				b.log.Warn().Err(err).Msg("Batch cancelled")
				return pairs, requests
			}

			a, bID := portfolios[i], portfolios[j]
			pair := domain.PairSelection{
				PortfolioA: a,
				PortfolioB: bID,
				StartDate:  startDate,
				EndDate:    endDate,
			}
			comparisonID := pairComparisonID(a, bID)

			b.submit(ctx, domain.ComparisonRequest{
				Facet:        domain.FacetComparison,
				ComparisonID: comparisonID,
				Payload:      domain.ComparisonPayload{PairSelection: pair},
			})
			requests++

			if includeAll {
				b.submit(ctx, domain.ComparisonRequest{
					Facet:        domain.FacetPerformance,
					ComparisonID: comparisonID,
					Payload:      domain.PerformancePayload{PairSelection: pair},
				})
				b.submit(ctx, domain.ComparisonRequest{
					Facet:        domain.FacetRisk,
					ComparisonID: comparisonID,
					Payload:      domain.RiskPayload{PairSelection: pair, ConfidenceLevel: 0.95},
				})
				requests += 2
			}

			pairs++
		}
	}

	b.log.Info().
		Int("pairs", pairs).
		Int("requests", requests).
		Msg("Pairwise batch completed")
	return pairs, requests
}

// submit issues one request through the shared orchestrator path. Batch
// failures are logged per request and never abort the batch.
func (b *BatchScheduler) submit(ctx context.Context, req domain.ComparisonRequest) {
	if _, err := b.orch.Submit(ctx, req); err != nil {
		b.log.Warn().
			Str("facet", string(req.Facet)).
			Str("comparison_id", req.ComparisonID).
			Err(err).
			Msg("Batch request failed")
	}
}

// pairComparisonID derives the stable logical comparison ID for a pair,
// so repeated batches over the same selection hit the cache.
func pairComparisonID(a, b string) string {
	return a + "-vs-" + b
}
