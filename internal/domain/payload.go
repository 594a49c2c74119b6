package domain

import (
	"encoding/json"
	"fmt"
)

// Payload is the facet-specific body of a comparison request. It is a
// closed union: one concrete type per facet, matched exhaustively by the
// validator and the analysis client adapter.
type Payload interface {
	// Facet returns the facet this payload belongs to.
	Facet() Facet
	// PortfolioIDs returns the portfolio identifiers referenced by the
	// payload, in declaration order.
	PortfolioIDs() []string
	// DateRange returns the requested date range and whether the payload
	// carries one. Facets without a time dimension return ok=false.
	DateRange() (start, end string, ok bool)
}

// PairSelection is the common shape of payloads comparing two portfolios
// over a date range. Dates are ISO 8601 (YYYY-MM-DD).
type PairSelection struct {
	PortfolioA string `json:"portfolio_a"`
	PortfolioB string `json:"portfolio_b"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
}

// PortfolioIDs returns both portfolio identifiers.
func (p PairSelection) PortfolioIDs() []string {
	return []string{p.PortfolioA, p.PortfolioB}
}

// DateRange returns the selection's date range.
func (p PairSelection) DateRange() (string, string, bool) {
	return p.StartDate, p.EndDate, true
}

// ComparisonPayload requests the overall pairwise comparison.
type ComparisonPayload struct {
	PairSelection
}

func (ComparisonPayload) Facet() Facet { return FacetComparison }

// CompositionPayload requests a holdings composition comparison.
// Composition is a point-in-time view, so it carries no date range.
type CompositionPayload struct {
	PortfolioA string `json:"portfolio_a"`
	PortfolioB string `json:"portfolio_b"`
}

func (CompositionPayload) Facet() Facet { return FacetComposition }

func (p CompositionPayload) PortfolioIDs() []string {
	return []string{p.PortfolioA, p.PortfolioB}
}

func (CompositionPayload) DateRange() (string, string, bool) { return "", "", false }

// PerformancePayload requests a performance comparison.
type PerformancePayload struct {
	PairSelection
}

func (PerformancePayload) Facet() Facet { return FacetPerformance }

// RiskPayload requests a risk metrics comparison at a confidence level
// (VaR/CVaR quantile, e.g. 0.95).
type RiskPayload struct {
	PairSelection
	ConfidenceLevel float64 `json:"confidence_level"`
}

func (RiskPayload) Facet() Facet { return FacetRisk }

// SectorPayload requests a sector allocation comparison. Like composition,
// it is a point-in-time view.
type SectorPayload struct {
	PortfolioA string `json:"portfolio_a"`
	PortfolioB string `json:"portfolio_b"`
}

func (SectorPayload) Facet() Facet { return FacetSector }

func (p SectorPayload) PortfolioIDs() []string {
	return []string{p.PortfolioA, p.PortfolioB}
}

func (SectorPayload) DateRange() (string, string, bool) { return "", "", false }

// ScenarioPayload requests a stress-test comparison under a named scenario
// (e.g. "2008_crisis", "rate_shock_200bp").
type ScenarioPayload struct {
	PairSelection
	Scenario string `json:"scenario"`
}

func (ScenarioPayload) Facet() Facet { return FacetScenario }

// DifferentialPayload requests differential (spread) returns between the
// two portfolios, bucketed by window ("daily", "weekly", "monthly").
type DifferentialPayload struct {
	PairSelection
	Window string `json:"window"`
}

func (DifferentialPayload) Facet() Facet { return FacetDifferential }

// DecodePayload unmarshals raw JSON into the payload type for the facet.
// The switch is exhaustive over the facet enumeration.
func DecodePayload(facet Facet, raw json.RawMessage) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch facet {
	case FacetComparison:
		var v ComparisonPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case FacetComposition:
		var v CompositionPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case FacetPerformance:
		var v PerformancePayload
		err = json.Unmarshal(raw, &v)
		p = v
	case FacetRisk:
		var v RiskPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case FacetSector:
		var v SectorPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case FacetScenario:
		var v ScenarioPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case FacetDifferential:
		var v DifferentialPayload
		err = json.Unmarshal(raw, &v)
		p = v
	default:
		return nil, fmt.Errorf("unknown facet: %q", facet)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", facet, err)
	}
	return p, nil
}
