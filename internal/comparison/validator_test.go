package comparison

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/lookout/internal/domain"
)

func pairRequest(a, b, start, end string) domain.ComparisonRequest {
	return domain.ComparisonRequest{
		Facet:        domain.FacetComparison,
		ComparisonID: "test",
		Payload: domain.ComparisonPayload{
			PairSelection: domain.PairSelection{
				PortfolioA: a,
				PortfolioB: b,
				StartDate:  start,
				EndDate:    end,
			},
		},
	}
}

func TestValidate_ValidRequest(t *testing.T) {
	v := NewValidator()

	warnings, err := v.Validate(pairRequest("A", "B", "2024-01-01", "2025-01-01"))
	require.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestValidate_DuplicatePortfolio(t *testing.T) {
	v := NewValidator()

	_, err := v.Validate(pairRequest("A", "A", "2024-01-01", "2025-01-01"))
	assert.True(t, errors.Is(err, domain.ErrDuplicatePortfolio))
}

func TestValidate_InsufficientSelection(t *testing.T) {
	v := NewValidator()

	_, err := v.Validate(pairRequest("A", "", "2024-01-01", "2025-01-01"))
	assert.True(t, errors.Is(err, domain.ErrInsufficientSelection))

	_, err = v.Validate(domain.ComparisonRequest{
		Facet:        domain.FacetComparison,
		ComparisonID: "test",
	})
	assert.True(t, errors.Is(err, domain.ErrInsufficientSelection))
}

func TestValidate_InvalidDateRange(t *testing.T) {
	v := NewValidator()

	// Start after end
	_, err := v.Validate(pairRequest("A", "B", "2025-01-01", "2024-01-01"))
	assert.True(t, errors.Is(err, domain.ErrInvalidDateRange))

	// Start equal to end
	_, err = v.Validate(pairRequest("A", "B", "2024-01-01", "2024-01-01"))
	assert.True(t, errors.Is(err, domain.ErrInvalidDateRange))

	// Unparseable dates
	_, err = v.Validate(pairRequest("A", "B", "not-a-date", "2025-01-01"))
	assert.True(t, errors.Is(err, domain.ErrInvalidDateRange))
	_, err = v.Validate(pairRequest("A", "B", "2024-01-01", "01/01/2025"))
	assert.True(t, errors.Is(err, domain.ErrInvalidDateRange))
}

func TestValidate_FacetMismatch(t *testing.T) {
	v := NewValidator()

	_, err := v.Validate(domain.ComparisonRequest{
		Facet:        domain.FacetRisk,
		ComparisonID: "test",
		Payload: domain.ComparisonPayload{
			PairSelection: domain.PairSelection{
				PortfolioA: "A", PortfolioB: "B",
				StartDate: "2024-01-01", EndDate: "2025-01-01",
			},
		},
	})
	assert.Error(t, err)
}

func TestValidate_Warnings(t *testing.T) {
	v := NewValidator()

	// Short range warns but does not block
	warnings, err := v.Validate(pairRequest("A", "B", "2024-01-01", "2024-01-15"))
	require.NoError(t, err)
	assert.Len(t, warnings, 1)

	// Long range warns but does not block
	warnings, err = v.Validate(pairRequest("A", "B", "2010-01-01", "2025-01-01"))
	require.NoError(t, err)
	assert.Len(t, warnings, 1)
}

func TestValidate_PointInTimeFacetsSkipDateChecks(t *testing.T) {
	v := NewValidator()

	warnings, err := v.Validate(domain.ComparisonRequest{
		Facet:        domain.FacetComposition,
		ComparisonID: "test",
		Payload:      domain.CompositionPayload{PortfolioA: "A", PortfolioB: "B"},
	})
	require.NoError(t, err)
	assert.Empty(t, warnings)
}

// Validate is a pure function: repeated calls on the same request must
// yield identical results.
func TestValidate_Idempotent(t *testing.T) {
	v := NewValidator()
	req := pairRequest("A", "A", "2024-01-01", "2025-01-01")

	_, err1 := v.Validate(req)
	_, err2 := v.Validate(req)

	require.Error(t, err1)
	require.Error(t, err2)
	assert.Equal(t, err1.Error(), err2.Error())

	warnReq := pairRequest("A", "B", "2024-01-01", "2024-01-10")
	w1, err1 := v.Validate(warnReq)
	w2, err2 := v.Validate(warnReq)
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, w1, w2)
}
