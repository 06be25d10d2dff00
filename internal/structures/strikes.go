package structures

import (
	"math"
	"time"

	"github.com/alejandrodnm/volbot/internal/domain"
)

// RoundToIncrement redondea un anchor al múltiplo del incremento de strike
// configurado para el subyacente. Empates a mitad de camino van hacia
// arriba (round half up), para que la selección sea reproducible.
func RoundToIncrement(anchor domain.Points, increment float64) domain.Points {
	if increment <= 0 {
		return anchor
	}
	return domain.Points(math.Floor(float64(anchor)/increment+0.5) * increment)
}

// NearestListedStrike picks the strike closest to target from the strikes
// actually enumerated in the snapshot. Exact midpoint ties resolve to the
// higher strike. Strikes are never matched by float equality against a
// computed value; the returned strike is one of the listed values.
func NearestListedStrike(listed []domain.Points, target domain.Points) (domain.Points, bool) {
	if len(listed) == 0 {
		return 0, false
	}
	best := listed[0]
	bestDiff := math.Abs(float64(listed[0] - target))
	for _, s := range listed[1:] {
		diff := math.Abs(float64(s - target))
		switch {
		case diff < bestDiff:
			best, bestDiff = s, diff
		case diff == bestDiff && s > best:
			best = s
		}
	}
	return best, true
}

// bestExpiry busca la expiración listada más cercana al DTE objetivo dentro
// de [minDTE, maxDTE]. Devuelve false si ninguna califica.
func bestExpiry(snap domain.ChainSnapshot, asOf time.Time, minDTE, maxDTE, targetDTE int) (time.Time, bool) {
	var best time.Time
	bestDiff := math.MaxFloat64
	found := false

	for _, exp := range snap.Expiries() {
		dte := int(exp.Sub(asOf).Hours() / 24)
		if dte < minDTE || dte > maxDTE {
			continue
		}
		diff := math.Abs(float64(dte - targetDTE))
		if diff < bestDiff {
			bestDiff = diff
			best = exp
			found = true
		}
	}
	return best, found
}
