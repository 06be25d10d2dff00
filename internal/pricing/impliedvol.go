package pricing

import (
	"math"

	"github.com/alejandrodnm/volbot/internal/domain"
)

// Bounded volatility domain for the root search. Prices outside what this
// bracket can produce are declared unsolvable, never coerced.
const (
	ivLow     = 0.001
	ivHigh    = 5.0
	ivTol     = 1e-6
	ivMaxIter = 200
)

// ImpliedVol resolves an observed market price to the volatility that
// reproduces it under the model, via bisection over [ivLow, ivHigh].
//
// It fails with domain.ErrUnsolvable when the observed price sits at or
// below intrinsic value (no extrinsic value to solve for) or beyond the
// price attainable at the upper volatility bound. The zero-DTE limit is
// intrinsic-valued and bypasses the solver entirely.
func ImpliedVol(in Input, observed domain.Points) (float64, error) {
	t := TimeToExpiry(in.AsOf, in.Expiry)
	if observed <= 0 || t <= 0 {
		return 0, domain.ErrUnsolvable
	}

	if observed <= Intrinsic(in.Right, in.Spot, in.Strike) {
		return 0, domain.ErrUnsolvable
	}

	price := func(vol float64) float64 {
		in.Vol = vol
		p, _ := Price(in)
		return float64(p)
	}

	target := float64(observed)
	lo, hi := ivLow, ivHigh
	fLo := price(lo) - target
	fHi := price(hi) - target

	// Price is monotonic in vol; a bracket with no sign change means the
	// observed price violates the model's no-arbitrage bounds.
	if fLo > 0 || fHi < 0 {
		return 0, domain.ErrUnsolvable
	}

	for i := 0; i < ivMaxIter; i++ {
		mid := (lo + hi) / 2
		fMid := price(mid) - target
		if math.Abs(fMid) < ivTol {
			return mid, nil
		}
		if fMid < 0 {
			lo = mid
		} else {
			hi = mid
		}
	}

	return (lo + hi) / 2, nil
}
