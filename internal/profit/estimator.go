// Package profit bounds the value extractable from a mispriced outcome set.
//
// The current price vector, normalized to sum to 1, is treated as a
// distribution θ; the target distribution μ is uniform unless the caller
// supplies one. The KL divergence D(μ‖θ) measures available mispricing, the
// Frank-Wolfe gap bounds how much convergence toward μ remains, and
// D − gap is a lower bound on profit still extractable.
package profit

import (
	"errors"
	"math"

	"github.com/polytrage/polytrage/internal/domain"
)

const (
	// MinDivergenceThreshold is the smallest divergence considered
	// economically meaningful: five cents of mispricing per dollar wagered.
	MinDivergenceThreshold = 0.05

	// DefaultAlpha is the fraction of available mispricing to capture before
	// standing down.
	DefaultAlpha = 0.9

	// DefaultFeeRate is the venue fee charged on winnings.
	DefaultFeeRate = 0.02
)

// ErrLengthMismatch is returned when the two distributions differ in length.
var ErrLengthMismatch = errors.New("profit: distributions must have the same length")

// Divergence computes D(μ‖θ) = Σ μ_i·ln(μ_i/θ_i).
//
// Terms with μ_i ≤ 0 contribute 0 by convention. A θ_i ≤ 0 paired with
// μ_i > 0 makes the divergence +Inf: the arbitrage bound is undefined when
// the market prices an outcome at zero that the target weights. The measure
// is not symmetric; argument order matters.
func Divergence(mu, theta []float64) (float64, error) {
	if len(mu) != len(theta) {
		return 0, ErrLengthMismatch
	}

	var d float64
	for i, m := range mu {
		if m <= 0 {
			continue
		}
		if theta[i] <= 0 {
			return math.Inf(1), nil
		}
		d += m * math.Log(m/theta[i])
	}
	return d, nil
}

// FrankWolfeGap approximates g(μ) = max_v ⟨∇D(μ‖θ), μ − v⟩ over the
// vertices of the feasible simplex. The gradient is ln(μ_i/θ_i)+1, taken as
// 0 wherever either input is non-positive. When vertices is nil the standard
// simplex vertices (unit vectors, one per outcome) are used. The gap is
// clamped to be non-negative.
func FrankWolfeGap(mu, theta []float64, vertices [][]float64) float64 {
	n := len(mu)
	if len(theta) < n {
		n = len(theta)
	}

	if vertices == nil {
		vertices = make([][]float64, n)
		for i := range vertices {
			v := make([]float64, n)
			v[i] = 1.0
			vertices[i] = v
		}
	}

	grad := make([]float64, n)
	for i := 0; i < n; i++ {
		if mu[i] > 0 && theta[i] > 0 {
			grad[i] = math.Log(mu[i]/theta[i]) + 1.0
		}
	}

	maxGap := math.Inf(-1)
	for _, v := range vertices {
		var inner float64
		for i := 0; i < n && i < len(v); i++ {
			inner += grad[i] * (mu[i] - v[i])
		}
		if inner > maxGap {
			maxGap = inner
		}
	}

	return math.Max(0.0, maxGap)
}

// GuaranteedProfit is the lower bound max(0, D − gap) on extractable value.
// The true figure may exceed it, never undercut it.
func GuaranteedProfit(divergence, gap float64) float64 {
	return math.Max(0.0, divergence-gap)
}

// NetProfit applies the fee charged on winnings. Non-positive gross yields 0.
func NetProfit(gross, feeRate float64) float64 {
	if gross <= 0 {
		return 0
	}
	return gross * (1.0 - feeRate)
}

// AlphaExtractionMet reports whether at least an α fraction of the available
// mispricing has been captured, the signal to stop trading. It holds
// trivially when the divergence is non-positive (nothing to extract).
func AlphaExtractionMet(divergence, gap, alpha float64) bool {
	if divergence <= 0 {
		return true
	}
	return gap <= (1.0-alpha)*divergence
}

// ExtractionPct is the captured fraction 1 − gap/D, clamped to [0,1] and
// defined as 1.0 when D ≤ 0.
func ExtractionPct(divergence, gap float64) float64 {
	if divergence <= 0 {
		return 1.0
	}
	return math.Max(0.0, math.Min(1.0, 1.0-gap/divergence))
}

// ShouldTrade combines the two stand-down conditions: the divergence must
// reach minThreshold and the extraction target must not yet be met. Failing
// either means do not trade.
func ShouldTrade(divergence, gap, alpha, minThreshold float64) bool {
	if divergence < minThreshold {
		return false
	}
	if AlphaExtractionMet(divergence, gap, alpha) {
		return false
	}
	return true
}

// Params tunes Evaluate.
type Params struct {
	Alpha         float64
	MinDivergence float64
	FeeRate       float64
}

// DefaultParams returns the standard α, divergence floor and fee rate.
func DefaultParams() Params {
	return Params{
		Alpha:         DefaultAlpha,
		MinDivergence: MinDivergenceThreshold,
		FeeRate:       DefaultFeeRate,
	}
}

// Evaluate runs the full estimator over a current price vector and an
// optional target distribution. The target defaults to uniform when nil,
// when its length does not match, or when it sums to zero or less.
// Current prices summing to zero or less
// produce the zero-value guarantee: nothing there, nothing to extract.
// Rounding to 6 decimals (extraction to 4) happens only here, at the
// reporting boundary.
func Evaluate(current, target []float64, p Params) domain.ProfitGuarantee {
	n := len(current)

	var total float64
	for _, v := range current {
		total += v
	}
	if total <= 0 {
		return domain.ProfitGuarantee{ExtractionPct: 1.0}
	}

	theta := make([]float64, n)
	for i, v := range current {
		theta[i] = v / total
	}

	mu := uniform(n)
	if len(target) == n {
		var tTotal float64
		for _, v := range target {
			tTotal += v
		}
		if tTotal > 0 {
			for i, v := range target {
				mu[i] = v / tTotal
			}
		}
	}

	d, _ := Divergence(mu, theta) // lengths match by construction
	gap := FrankWolfeGap(mu, theta, nil)
	net := NetProfit(GuaranteedProfit(d, gap), p.FeeRate)

	return domain.ProfitGuarantee{
		KLDivergence:     round6(d),
		FWGap:            round6(gap),
		GuaranteedProfit: round6(net),
		ExtractionPct:    round4(ExtractionPct(d, gap)),
		ShouldTrade:      ShouldTrade(d, gap, p.Alpha, p.MinDivergence),
	}
}

func uniform(n int) []float64 {
	mu := make([]float64, n)
	for i := range mu {
		mu[i] = 1.0 / float64(n)
	}
	return mu
}

func round6(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return v
	}
	return math.Round(v*1e6) / 1e6
}

func round4(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return v
	}
	return math.Round(v*1e4) / 1e4
}
