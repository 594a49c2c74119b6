// Package comparison implements the comparison orchestration engine:
// request validation, cache-first submission, pairwise batching, and the
// auto-refresh loop.
package comparison

import (
	"fmt"
	"time"

	"github.com/aristath/lookout/internal/domain"
)

// dateLayout is the ISO 8601 date format accepted in payloads.
const dateLayout = "2006-01-02"

// Heuristic thresholds for non-fatal warnings. These are constants of the
// engine, not settings.
const (
	shortRangeWarning  = 30 * 24 * time.Hour
	longRangeWarning   = 10 * 365 * 24 * time.Hour
	portfolioCountWarn = 10
)

// Validator performs synchronous pre-flight checks on comparison requests.
// Validate is a pure function of its input: no side effects, same result
// on every call.
type Validator struct{}

// NewValidator creates a new request validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks the request, returning non-fatal warnings and a fatal
// error. A non-nil error means the request must not proceed to the cache
// or the network.
func (v *Validator) Validate(req domain.ComparisonRequest) ([]string, error) {
	if req.Payload == nil {
		return nil, fmt.Errorf("%w: missing payload", domain.ErrInsufficientSelection)
	}
	if req.Payload.Facet() != req.Facet {
		return nil, fmt.Errorf("payload facet %s does not match request facet %s",
			req.Payload.Facet(), req.Facet)
	}

	ids := req.Payload.PortfolioIDs()

	distinct := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			distinct = append(distinct, id)
		}
	}
	if len(distinct) < 2 {
		return nil, fmt.Errorf("%w: got %d", domain.ErrInsufficientSelection, len(distinct))
	}

	seen := make(map[string]bool, len(distinct))
	for _, id := range distinct {
		if seen[id] {
			return nil, fmt.Errorf("%w: %q appears more than once", domain.ErrDuplicatePortfolio, id)
		}
		seen[id] = true
	}

	var warnings []string

	if start, end, ok := req.Payload.DateRange(); ok {
		startT, err := time.Parse(dateLayout, start)
		if err != nil {
			return nil, fmt.Errorf("%w: unparseable start date %q", domain.ErrInvalidDateRange, start)
		}
		endT, err := time.Parse(dateLayout, end)
		if err != nil {
			return nil, fmt.Errorf("%w: unparseable end date %q", domain.ErrInvalidDateRange, end)
		}
		if !startT.Before(endT) {
			return nil, fmt.Errorf("%w: start %s >= end %s", domain.ErrInvalidDateRange, start, end)
		}

		span := endT.Sub(startT)
		if span < shortRangeWarning {
			warnings = append(warnings, fmt.Sprintf("date range under 30 days (%s to %s); results may be noisy", start, end))
		}
		if span > longRangeWarning {
			warnings = append(warnings, fmt.Sprintf("date range over 10 years (%s to %s); older data may be unreliable", start, end))
		}
	}

	if len(distinct) > portfolioCountWarn {
		warnings = append(warnings, fmt.Sprintf("comparing %d portfolios; consider narrowing the selection", len(distinct)))
	}

	return warnings, nil
}
