// Package pricing implementa la valoración analítica de opciones europeas
// (Black-Scholes-Merton con dividend yield continuo) y el solver de
// volatilidad implícita. Todo es determinista: mismas entradas, mismos bits.
package pricing

import (
	"math"
	"time"

	"github.com/alejandrodnm/volbot/internal/domain"
)

// Greeks are the first-order sensitivities of an option price.
// Theta is per calendar day; Vega and Rho are per 1% move.
type Greeks struct {
	Delta float64
	Gamma float64
	Theta float64
	Vega  float64
	Rho   float64
}

// Input are the parameters for one valuation. Rate and DividendYield come
// from configuration; the dividend yield is per-underlying and never
// assumed zero. AsOf anchors the time to expiry — no wall clock.
type Input struct {
	Right         domain.OptionRight
	Spot          domain.Points
	Strike        domain.Points
	AsOf          time.Time
	Expiry        time.Time
	Rate          float64
	DividendYield float64
	Vol           float64
}

// TimeToExpiry returns the year fraction between asOf and expiry using
// calendar days over 365. Negative spans clamp to zero.
func TimeToExpiry(asOf, expiry time.Time) float64 {
	days := expiry.Sub(asOf).Hours() / 24
	if days <= 0 {
		return 0
	}
	return days / 365.0
}

// Intrinsic is the exercise value of the option at the given spot.
func Intrinsic(right domain.OptionRight, spot, strike domain.Points) domain.Points {
	if right == domain.Call {
		return max(spot-strike, 0)
	}
	return max(strike-spot, 0)
}

// Price returns the theoretical price and greeks. Zero time to expiry is
// the deterministic intrinsic-value limit: price = intrinsic, delta ±1 or
// 0, remaining greeks zero.
func Price(in Input) (domain.Points, Greeks) {
	t := TimeToExpiry(in.AsOf, in.Expiry)
	s, k := float64(in.Spot), float64(in.Strike)

	if t <= 0 {
		intrinsic := Intrinsic(in.Right, in.Spot, in.Strike)
		var delta float64
		if intrinsic > 0 {
			if in.Right == domain.Call {
				delta = 1
			} else {
				delta = -1
			}
		}
		return intrinsic, Greeks{Delta: delta}
	}

	v := in.Vol
	if v <= 0 {
		v = 1e-4
	}

	sqrtT := math.Sqrt(t)
	d1 := (math.Log(s/k) + (in.Rate-in.DividendYield+0.5*v*v)*t) / (v * sqrtT)
	d2 := d1 - v*sqrtT

	disc := math.Exp(-in.Rate * t)
	divDisc := math.Exp(-in.DividendYield * t)

	var price, delta, rho float64
	if in.Right == domain.Call {
		price = s*divDisc*normCDF(d1) - k*disc*normCDF(d2)
		delta = divDisc * normCDF(d1)
		rho = k * t * disc * normCDF(d2) / 100
	} else {
		price = k*disc*normCDF(-d2) - s*divDisc*normCDF(-d1)
		delta = divDisc * (normCDF(d1) - 1)
		rho = -k * t * disc * normCDF(-d2) / 100
	}

	gamma := divDisc * normPDF(d1) / (s * v * sqrtT)

	term1 := -(s * divDisc * normPDF(d1) * v) / (2 * sqrtT)
	var term2, term3 float64
	if in.Right == domain.Call {
		term2 = -in.Rate * k * disc * normCDF(d2)
		term3 = in.DividendYield * s * divDisc * normCDF(d1)
	} else {
		term2 = in.Rate * k * disc * normCDF(-d2)
		term3 = -in.DividendYield * s * divDisc * normCDF(-d1)
	}
	theta := (term1 + term2 + term3) / 365

	vega := s * divDisc * normPDF(d1) * sqrtT / 100

	return domain.Points(max(price, 0)), Greeks{
		Delta: delta,
		Gamma: gamma,
		Theta: theta,
		Vega:  vega,
		Rho:   rho,
	}
}

func normCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
}
