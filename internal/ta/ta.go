// Package ta computes indicators locally from a fetched price series. Used
// as a degraded-mode fallback when the upstream indicator fetch fails.
package ta

import "math"

func RSI(closes []float64, period int) float64 {
	if len(closes) < period+1 || period <= 0 {
		return math.NaN()
	}
	gain, loss := 0.0, 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	if loss == 0 {
		return 100.0
	}
	rs := (gain / float64(period)) / (loss / float64(period))
	return 100.0 - (100.0 / (1.0 + rs))
}

// ChangePct is the percentage move from the first to the last close.
func ChangePct(closes []float64) float64 {
	if len(closes) < 2 || closes[0] == 0 {
		return math.NaN()
	}
	return (closes[len(closes)-1] - closes[0]) / closes[0] * 100
}
