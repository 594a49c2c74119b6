package insights

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/lookout/internal/domain"
)

func result(a, b domain.PortfolioStats) domain.ComparisonResult {
	return domain.ComparisonResult{PortfolioA: a, PortfolioB: b}
}

func TestDerive_PicksHigherCompositeScore(t *testing.T) {
	engine := NewEngine(zerolog.Nop())

	insight := engine.Derive(result(
		domain.PortfolioStats{ID: "growth", TotalReturn: 0.20, SharpeRatio: 1.5},
		domain.PortfolioStats{ID: "value", TotalReturn: 0.08, SharpeRatio: 0.9},
	))

	require.NotNil(t, insight.Winner)
	assert.Equal(t, "growth", *insight.Winner)
	assert.InDelta(t, 0.36, insight.Confidence, 1e-9)
	assert.NotEmpty(t, insight.KeyDifferences)
}

func TestDerive_HighSharpeCanBeatHigherReturn(t *testing.T) {
	engine := NewEngine(zerolog.Nop())

	// B's risk-adjusted return outweighs A's raw return edge.
	insight := engine.Derive(result(
		domain.PortfolioStats{ID: "A", TotalReturn: 0.15, SharpeRatio: 0.5},
		domain.PortfolioStats{ID: "B", TotalReturn: 0.10, SharpeRatio: 1.2},
	))

	require.NotNil(t, insight.Winner)
	assert.Equal(t, "B", *insight.Winner)
}

func TestDerive_TieHasNoWinner(t *testing.T) {
	engine := NewEngine(zerolog.Nop())

	insight := engine.Derive(result(
		domain.PortfolioStats{ID: "A", TotalReturn: 0.10, SharpeRatio: 1.0},
		domain.PortfolioStats{ID: "B", TotalReturn: 0.10, SharpeRatio: 1.0},
	))

	assert.Nil(t, insight.Winner)
	assert.Zero(t, insight.Confidence)
	assert.Empty(t, insight.Recommendations)
}

func TestDerive_DivergenceRecommendation(t *testing.T) {
	engine := NewEngine(zerolog.Nop())

	insight := engine.Derive(result(
		domain.PortfolioStats{ID: "A", TotalReturn: 0.30, SharpeRatio: 1.0},
		domain.PortfolioStats{ID: "B", TotalReturn: 0.10, SharpeRatio: 1.0},
	))

	require.NotNil(t, insight.Winner)
	require.Len(t, insight.Recommendations, 1)
	assert.Contains(t, insight.Recommendations[0], "B underperforms A")
}

func TestDerive_SmallGapGetsNoDivergenceRecommendation(t *testing.T) {
	engine := NewEngine(zerolog.Nop())

	// 5% relative gap, under the 10% divergence threshold.
	insight := engine.Derive(result(
		domain.PortfolioStats{ID: "A", TotalReturn: 0.210, SharpeRatio: 1.0},
		domain.PortfolioStats{ID: "B", TotalReturn: 0.200, SharpeRatio: 1.0},
	))

	require.NotNil(t, insight.Winner)
	assert.Empty(t, insight.Recommendations)
}

func TestDerive_ZeroLoserReturnFallsBackToAbsoluteGap(t *testing.T) {
	engine := NewEngine(zerolog.Nop())

	insight := engine.Derive(result(
		domain.PortfolioStats{ID: "A", TotalReturn: 0.15, SharpeRatio: 1.0},
		domain.PortfolioStats{ID: "B", TotalReturn: 0.0, SharpeRatio: 1.0},
	))

	require.NotNil(t, insight.Winner)
	require.Len(t, insight.Recommendations, 1)
	assert.Contains(t, insight.Recommendations[0], "underperforms")
}

func TestDerive_ExplicitCorrelationRecommendation(t *testing.T) {
	engine := NewEngine(zerolog.Nop())

	corr := 0.95
	res := result(
		domain.PortfolioStats{ID: "A", TotalReturn: 0.12, SharpeRatio: 1.1},
		domain.PortfolioStats{ID: "B", TotalReturn: 0.11, SharpeRatio: 1.0},
	)
	res.Correlation = &corr

	insight := engine.Derive(res)
	require.NotEmpty(t, insight.Recommendations)
	assert.Contains(t, insight.Recommendations[len(insight.Recommendations)-1], "highly correlated (0.95)")
}

func TestDerive_CorrelationComputedFromDailyReturns(t *testing.T) {
	engine := NewEngine(zerolog.Nop())

	// Identical series correlate perfectly.
	returns := []float64{0.01, -0.02, 0.015, 0.003, -0.007}
	insight := engine.Derive(result(
		domain.PortfolioStats{ID: "A", TotalReturn: 0.12, SharpeRatio: 1.1, DailyReturns: returns},
		domain.PortfolioStats{ID: "B", TotalReturn: 0.11, SharpeRatio: 1.0, DailyReturns: returns},
	))

	require.NotEmpty(t, insight.Recommendations)
	assert.Contains(t, insight.Recommendations[len(insight.Recommendations)-1], "highly correlated")
}

func TestDerive_MismatchedSeriesSkipCorrelation(t *testing.T) {
	engine := NewEngine(zerolog.Nop())

	insight := engine.Derive(result(
		domain.PortfolioStats{ID: "A", TotalReturn: 0.12, SharpeRatio: 1.1, DailyReturns: []float64{0.01, 0.02, 0.03}},
		domain.PortfolioStats{ID: "B", TotalReturn: 0.11, SharpeRatio: 1.0, DailyReturns: []float64{0.01, 0.02}},
	))

	for _, rec := range insight.Recommendations {
		assert.NotContains(t, rec, "correlated")
	}
}

func TestDerive_IsIdempotent(t *testing.T) {
	engine := NewEngine(zerolog.Nop())

	res := result(
		domain.PortfolioStats{ID: "A", TotalReturn: 0.20, SharpeRatio: 1.5, Volatility: 0.12, MaxDrawdown: 0.08},
		domain.PortfolioStats{ID: "B", TotalReturn: 0.05, SharpeRatio: 0.8, Volatility: 0.18, MaxDrawdown: 0.22},
	)

	first := engine.Derive(res)
	second := engine.Derive(res)
	assert.Equal(t, first, second)
}
