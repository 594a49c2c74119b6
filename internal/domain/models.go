package domain

import (
	"encoding/json"
	"time"
)

// ComparisonRequest is the unit of work submitted to the orchestrator.
// ComparisonID is caller-assigned and must be unique per logical comparison;
// resubmitting the same ID is how callers (and the refresh supervisor)
// re-run a comparison through the cache.
type ComparisonRequest struct {
	Facet        Facet
	ComparisonID string
	Payload      Payload
}

// FacetResult is the outcome of a resolved request: the raw facet data as
// returned by the analysis service (or the cache), plus provenance.
type FacetResult struct {
	Facet        Facet           `json:"facet"`
	ComparisonID string          `json:"comparison_id"`
	Data         json.RawMessage `json:"data"`
	FromCache    bool            `json:"from_cache"`
	// Superseded marks a resolution whose state transition was discarded
	// because a newer request for a latest-wins facet was submitted while
	// this one was in flight.
	Superseded bool      `json:"superseded,omitempty"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// PortfolioStats holds the per-portfolio figures of a comparison result
// that the insight engine consumes. The analysis service computes these;
// the engine only reads them.
type PortfolioStats struct {
	ID           string    `json:"id"`
	TotalReturn  float64   `json:"total_return"`
	SharpeRatio  float64   `json:"sharpe_ratio"`
	Volatility   float64   `json:"volatility"`
	MaxDrawdown  float64   `json:"max_drawdown"`
	DailyReturns []float64 `json:"daily_returns,omitempty"`
}

// ComparisonResult is the decoded payload of a comparison-facet response.
// Correlation is optional: when the analysis service omits it, the insight
// engine derives it from the daily return series if both are present.
type ComparisonResult struct {
	PortfolioA  PortfolioStats `json:"portfolio_a"`
	PortfolioB  PortfolioStats `json:"portfolio_b"`
	Correlation *float64       `json:"correlation,omitempty"`
}
