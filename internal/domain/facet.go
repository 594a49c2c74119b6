// Package domain contains the core types of the comparison engine.
// The domain layer is pure: no infrastructure dependencies.
package domain

import "fmt"

// Facet identifies one analytical dimension of a portfolio comparison.
// Each facet has its own cache namespace, loading flag, and error slot.
type Facet string

const (
	FacetComparison   Facet = "comparison"
	FacetComposition  Facet = "composition"
	FacetPerformance  Facet = "performance"
	FacetRisk         Facet = "risk"
	FacetSector       Facet = "sector"
	FacetScenario     Facet = "scenario"
	FacetDifferential Facet = "differential"
)

// AllFacets lists every facet, in a fixed order, for iteration
// (cache sweeping, state snapshots).
var AllFacets = []Facet{
	FacetComparison,
	FacetComposition,
	FacetPerformance,
	FacetRisk,
	FacetSector,
	FacetScenario,
	FacetDifferential,
}

// ParseFacet converts a string into a Facet, rejecting unknown values.
func ParseFacet(s string) (Facet, error) {
	f := Facet(s)
	for _, known := range AllFacets {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown facet: %q", s)
}

// SupersessionPolicy controls how concurrently in-flight requests for the
// same facet interact.
type SupersessionPolicy int

const (
	// PolicyIndependent lets in-flight requests resolve independently;
	// each applies its own state transition.
	PolicyIndependent SupersessionPolicy = iota
	// PolicyLatest makes the most recently submitted request the only one
	// whose resolution may transition facet state. Older in-flight requests
	// run to completion but their state effect is discarded.
	PolicyLatest
)

// supersessionPolicies is the per-facet policy table consulted by the
// orchestrator. Only the primary comparison facet uses latest-wins; every
// other facet processes requests independently.
var supersessionPolicies = map[Facet]SupersessionPolicy{
	FacetComparison:   PolicyLatest,
	FacetComposition:  PolicyIndependent,
	FacetPerformance:  PolicyIndependent,
	FacetRisk:         PolicyIndependent,
	FacetSector:       PolicyIndependent,
	FacetScenario:     PolicyIndependent,
	FacetDifferential: PolicyIndependent,
}

// Supersession returns the supersession policy for the facet.
func (f Facet) Supersession() SupersessionPolicy {
	if p, ok := supersessionPolicies[f]; ok {
		return p
	}
	return PolicyIndependent
}

// String implements fmt.Stringer.
func (f Facet) String() string {
	return string(f)
}
