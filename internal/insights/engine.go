// Package insights derives higher-level conclusions from completed
// comparison results: winner selection, confidence, divergence and
// correlation classification, and textual recommendations.
package insights

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/lookout/internal/domain"
)

// Classification thresholds.
const (
	// divergenceThreshold - winner leading the loser's return by more than
	// 10% (relative) flags the losing allocation for review.
	divergenceThreshold = 0.10
	// correlationThreshold - returns correlation above this means the two
	// portfolios move together closely enough that holding both adds
	// little diversification.
	correlationThreshold = 0.90
)

// Insight is derived, read-only output. It is recomputed from a
// comparison result and never persisted independently of its source.
type Insight struct {
	Winner          *string  `json:"winner"`
	Confidence      float64  `json:"confidence"`
	KeyDifferences  []string `json:"key_differences"`
	Recommendations []string `json:"recommendations"`
}

// Engine derives insights. Derive is pure and idempotent: the same result
// always yields the same insight.
type Engine struct {
	log zerolog.Logger
}

// NewEngine creates an insight engine.
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{log: log.With().Str("component", "insight_engine").Logger()}
}

// Derive computes insights from a completed comparison result.
func (e *Engine) Derive(res domain.ComparisonResult) Insight {
	a, b := res.PortfolioA, res.PortfolioB

	scoreA := composite(a)
	scoreB := composite(b)

	insight := Insight{
		KeyDifferences:  keyDifferences(a, b),
		Recommendations: []string{},
	}

	var winner, loser *domain.PortfolioStats
	switch {
	case scoreA > scoreB:
		winner, loser = &a, &b
	case scoreB > scoreA:
		winner, loser = &b, &a
	default:
		// Equal scores: no winner, zero confidence.
	}

	if winner != nil {
		id := winner.ID
		insight.Winner = &id
		insight.Confidence = math.Abs(scoreA - scoreB)

		if divergesRelatively(winner.TotalReturn, loser.TotalReturn) {
			insight.Recommendations = append(insight.Recommendations,
				fmt.Sprintf("%s underperforms %s by a wide margin; investigate its allocation", loser.ID, winner.ID))
		}
	}

	if corr, ok := correlation(res); ok && corr > correlationThreshold {
		insight.Recommendations = append(insight.Recommendations,
			fmt.Sprintf("returns are highly correlated (%.2f); holding both adds little diversification", corr))
	}

	e.log.Debug().
		Str("portfolio_a", a.ID).
		Str("portfolio_b", b.ID).
		Float64("confidence", insight.Confidence).
		Msg("Insights derived")

	return insight
}

// composite is the winner-selection score: an even blend of total return
// and risk-adjusted return.
func composite(p domain.PortfolioStats) float64 {
	return 0.5*p.TotalReturn + 0.5*p.SharpeRatio
}

// divergesRelatively reports whether the winner's return exceeds the
// loser's by more than the threshold, relative to the loser. When the
// loser's return is zero the relative measure is undefined; fall back to
// the absolute gap.
func divergesRelatively(winnerReturn, loserReturn float64) bool {
	gap := winnerReturn - loserReturn
	if loserReturn == 0 {
		return gap > divergenceThreshold
	}
	return gap/math.Abs(loserReturn) > divergenceThreshold
}

// correlation returns the portfolios' returns correlation: the analysis
// service's figure when present, otherwise computed from the daily return
// series when both are usable.
func correlation(res domain.ComparisonResult) (float64, bool) {
	if res.Correlation != nil {
		return *res.Correlation, true
	}
	a, b := res.PortfolioA.DailyReturns, res.PortfolioB.DailyReturns
	if len(a) < 2 || len(a) != len(b) {
		return 0, false
	}
	return stat.Correlation(a, b, nil), true
}

// keyDifferences summarizes the metric gaps between the two portfolios.
func keyDifferences(a, b domain.PortfolioStats) []string {
	diffs := []string{
		fmt.Sprintf("total return: %s %.2f%% vs %s %.2f%% (gap %.2f%%)",
			a.ID, a.TotalReturn*100, b.ID, b.TotalReturn*100, math.Abs(a.TotalReturn-b.TotalReturn)*100),
		fmt.Sprintf("sharpe ratio: %s %.2f vs %s %.2f",
			a.ID, a.SharpeRatio, b.ID, b.SharpeRatio),
	}
	if a.Volatility != 0 || b.Volatility != 0 {
		diffs = append(diffs, fmt.Sprintf("volatility: %s %.2f%% vs %s %.2f%%",
			a.ID, a.Volatility*100, b.ID, b.Volatility*100))
	}
	if a.MaxDrawdown != 0 || b.MaxDrawdown != 0 {
		diffs = append(diffs, fmt.Sprintf("max drawdown: %s %.2f%% vs %s %.2f%%",
			a.ID, a.MaxDrawdown*100, b.ID, b.MaxDrawdown*100))
	}
	return diffs
}
