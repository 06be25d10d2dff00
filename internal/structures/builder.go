// Package structures convierte señales + snapshots de cadena en estructuras
// multi-leg de riesgo definido, con economía analítica en puntos. Nada aquí
// muestrea payoffs en grilla: crédito, pérdida máxima y breakevens salen en
// forma cerrada de los precios de las legs y el ancho elegido.
package structures

import (
	"fmt"
	"time"

	"github.com/alejandrodnm/volbot/internal/domain"
	"github.com/alejandrodnm/volbot/internal/pricing"
)

// Config controla la selección de strikes/expiraciones y el etiquetado de
// candidatos. Los incrementos de strike y dividend yields son por símbolo.
type Config struct {
	StrikeIncrements map[string]float64
	DividendYields   map[string]float64
	RiskFreeRate     float64

	WidthPoints  float64 // ancho del spread en puntos de strike
	OTMOffsetPct float64 // distancia del anchor al spot (fracción)

	MinDTE    int
	MaxDTE    int
	TargetDTE int

	// Regímenes en los que un short-vol abre iron condor en vez de spread.
	CondorRegime string

	// Umbrales de strength para la recomendación.
	TradeStrength  float64
	ReviewStrength float64
}

// DefaultConfig returns the builder defaults; thresholds are configuration,
// not engine invariants.
func DefaultConfig() Config {
	return Config{
		StrikeIncrements: map[string]float64{},
		DividendYields:   map[string]float64{},
		RiskFreeRate:     0.045,
		WidthPoints:      5,
		OTMOffsetPct:     0.03,
		MinDTE:           7,
		MaxDTE:           60,
		TargetDTE:        30,
		CondorRegime:     "range_bound",
		TradeStrength:    1.0,
		ReviewStrength:   0.5,
	}
}

// Builder turns a signal plus a dated chain snapshot into a fully priced
// TradeCandidate. It owns no state; every call is anchored to the supplied
// as-of date.
type Builder struct {
	cfg Config
}

// NewBuilder crea un builder con la configuración dada.
func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg}
}

func (b *Builder) increment(symbol string) float64 {
	if inc, ok := b.cfg.StrikeIncrements[symbol]; ok && inc > 0 {
		return inc
	}
	return 1
}

func (b *Builder) dividendYield(symbol string) float64 {
	return b.cfg.DividendYields[symbol]
}

// Build constructs and prices a candidate for the signal. It fails with
// domain.ErrNoViableStructure when the snapshot offers no eligible strikes
// or expiries, and returns a candidate with Valid=false (wrapped reasons)
// when a leg cannot be valued.
func (b *Builder) Build(sig domain.Signal, snap domain.ChainSnapshot, asOf time.Time) (domain.TradeCandidate, error) {
	expiry, ok := bestExpiry(snap, asOf, b.cfg.MinDTE, b.cfg.MaxDTE, b.cfg.TargetDTE)
	if !ok {
		return domain.TradeCandidate{}, fmt.Errorf("structures.Build %s: no expiry in [%d,%d] DTE: %w",
			sig.Symbol, b.cfg.MinDTE, b.cfg.MaxDTE, domain.ErrNoViableStructure)
	}

	var (
		st  domain.Structure
		err error
	)
	switch {
	case sig.Direction == domain.ShortVol && sig.Regime == b.cfg.CondorRegime:
		st, err = b.buildIronCondor(snap, expiry, asOf)
	case sig.Direction == domain.ShortVol:
		st, err = b.buildCreditPutSpread(snap, expiry, asOf)
	default:
		st, err = b.buildDebitCallSpread(snap, expiry, asOf)
	}
	if err != nil {
		return domain.TradeCandidate{}, err
	}

	cand := domain.TradeCandidate{
		ID:             fmt.Sprintf("%s_%s_%s", asOf.Format("2006-01-02"), sig.Symbol, st.Type),
		Signal:         sig,
		Structure:      st,
		AsOf:           asOf,
		Valid:          true,
		Recommendation: b.recommend(sig.Strength),
	}

	// Delta por leg vía IV del mid usado. Una leg sin IV resoluble
	// invalida el candidato, nunca se sustituye por griegas en cero.
	delta, derr := b.structureDelta(st, snap.Spot, asOf)
	if derr != nil {
		cand.Valid = false
		cand.Recommendation = domain.RecommendPass
		cand.Reasons = append(cand.Reasons, derr.Error())
	} else {
		cand.Structure.Delta = delta
	}

	return cand, nil
}

func (b *Builder) recommend(strength float64) domain.Recommendation {
	switch {
	case strength >= b.cfg.TradeStrength:
		return domain.RecommendTrade
	case strength >= b.cfg.ReviewStrength:
		return domain.RecommendReview
	default:
		return domain.RecommendPass
	}
}

// legMid resuelve el mid usable de un contrato. Quote inválida → reprice
// teórico desde el último mid válido (IV resuelta en su fecha de
// observación, re-precio al as-of actual); sin fallback → falla la leg.
func (b *Builder) legMid(c domain.OptionContract, spot domain.Points, asOf time.Time) (domain.Points, error) {
	if mid, ok := c.Quote.Mid(); ok {
		return mid, nil
	}

	if c.LastValidMid <= 0 || c.LastValidSpot <= 0 {
		return 0, fmt.Errorf("structures.legMid %s %s %.2f: invalid quote, no last valid mid: %w",
			c.Symbol, c.Right, float64(c.Strike), domain.ErrUnsolvable)
	}

	in := pricing.Input{
		Right:         c.Right,
		Spot:          c.LastValidSpot,
		Strike:        c.Strike,
		AsOf:          c.LastValidAsOf,
		Expiry:        c.Expiry,
		Rate:          b.cfg.RiskFreeRate,
		DividendYield: b.dividendYield(c.Symbol),
	}
	iv, err := pricing.ImpliedVol(in, c.LastValidMid)
	if err != nil {
		return 0, fmt.Errorf("structures.legMid %s %s %.2f: reprice from last mid: %w",
			c.Symbol, c.Right, float64(c.Strike), err)
	}

	in.Spot = spot
	in.AsOf = asOf
	in.Vol = iv
	price, _ := pricing.Price(in)
	return price, nil
}

func (b *Builder) buildCreditPutSpread(snap domain.ChainSnapshot, expiry time.Time, asOf time.Time) (domain.Structure, error) {
	inc := b.increment(snap.Symbol)
	anchor := RoundToIncrement(snap.Spot*domain.Points(1-b.cfg.OTMOffsetPct), inc)

	listed := snap.Strikes(expiry, domain.Put)
	shortStrike, ok := NearestListedStrike(listed, anchor)
	if !ok {
		return domain.Structure{}, fmt.Errorf("structures: no put strikes listed: %w", domain.ErrNoViableStructure)
	}
	longStrike, ok := NearestListedStrike(listed, shortStrike-domain.Points(b.cfg.WidthPoints))
	if !ok || longStrike >= shortStrike {
		return domain.Structure{}, fmt.Errorf("structures: no long wing below %.2f: %w", float64(shortStrike), domain.ErrNoViableStructure)
	}

	shortC, ok1 := snap.Contract(expiry, shortStrike, domain.Put)
	longC, ok2 := snap.Contract(expiry, longStrike, domain.Put)
	if !ok1 || !ok2 {
		return domain.Structure{}, fmt.Errorf("structures: listed strike without contract: %w", domain.ErrNoViableStructure)
	}

	shortMid, err := b.legMid(shortC, snap.Spot, asOf)
	if err != nil {
		return domain.Structure{}, err
	}
	longMid, err := b.legMid(longC, snap.Spot, asOf)
	if err != nil {
		return domain.Structure{}, err
	}

	credit := shortMid - longMid
	width := shortStrike - longStrike
	if credit <= 0 || width-credit <= 0 {
		return domain.Structure{}, fmt.Errorf("structures: credit %.2f on width %.2f not viable: %w",
			float64(credit), float64(width), domain.ErrNoViableStructure)
	}

	return domain.Structure{
		Type:   domain.CreditSpread,
		Kind:   domain.Credit,
		Symbol: snap.Symbol,
		Expiry: expiry,
		Legs: []domain.Leg{
			{Contract: shortC, Side: domain.Short, Ratio: 1},
			{Contract: longC, Side: domain.Long, Ratio: 1},
		},
		EntryPrice: credit,
		Width:      width,
		MaxLoss:    width - credit,
		MaxProfit:  credit,
		Breakevens: []domain.Points{shortStrike - credit},
	}, nil
}

func (b *Builder) buildDebitCallSpread(snap domain.ChainSnapshot, expiry time.Time, asOf time.Time) (domain.Structure, error) {
	inc := b.increment(snap.Symbol)
	anchor := RoundToIncrement(snap.Spot, inc)

	listed := snap.Strikes(expiry, domain.Call)
	longStrike, ok := NearestListedStrike(listed, anchor)
	if !ok {
		return domain.Structure{}, fmt.Errorf("structures: no call strikes listed: %w", domain.ErrNoViableStructure)
	}
	shortStrike, ok := NearestListedStrike(listed, longStrike+domain.Points(b.cfg.WidthPoints))
	if !ok || shortStrike <= longStrike {
		return domain.Structure{}, fmt.Errorf("structures: no short wing above %.2f: %w", float64(longStrike), domain.ErrNoViableStructure)
	}

	longC, ok1 := snap.Contract(expiry, longStrike, domain.Call)
	shortC, ok2 := snap.Contract(expiry, shortStrike, domain.Call)
	if !ok1 || !ok2 {
		return domain.Structure{}, fmt.Errorf("structures: listed strike without contract: %w", domain.ErrNoViableStructure)
	}

	longMid, err := b.legMid(longC, snap.Spot, asOf)
	if err != nil {
		return domain.Structure{}, err
	}
	shortMid, err := b.legMid(shortC, snap.Spot, asOf)
	if err != nil {
		return domain.Structure{}, err
	}

	debit := longMid - shortMid
	width := shortStrike - longStrike
	if debit <= 0 || width-debit <= 0 {
		return domain.Structure{}, fmt.Errorf("structures: debit %.2f on width %.2f not viable: %w",
			float64(debit), float64(width), domain.ErrNoViableStructure)
	}

	return domain.Structure{
		Type:   domain.DebitSpread,
		Kind:   domain.Debit,
		Symbol: snap.Symbol,
		Expiry: expiry,
		Legs: []domain.Leg{
			{Contract: longC, Side: domain.Long, Ratio: 1},
			{Contract: shortC, Side: domain.Short, Ratio: 1},
		},
		EntryPrice: debit,
		Width:      width,
		MaxLoss:    debit,
		MaxProfit:  width - debit,
		Breakevens: []domain.Points{longStrike + debit},
	}, nil
}

func (b *Builder) buildIronCondor(snap domain.ChainSnapshot, expiry time.Time, asOf time.Time) (domain.Structure, error) {
	inc := b.increment(snap.Symbol)
	putAnchor := RoundToIncrement(snap.Spot*domain.Points(1-b.cfg.OTMOffsetPct), inc)
	callAnchor := RoundToIncrement(snap.Spot*domain.Points(1+b.cfg.OTMOffsetPct), inc)

	puts := snap.Strikes(expiry, domain.Put)
	calls := snap.Strikes(expiry, domain.Call)

	putShort, ok1 := NearestListedStrike(puts, putAnchor)
	callShort, ok2 := NearestListedStrike(calls, callAnchor)
	if !ok1 || !ok2 {
		return domain.Structure{}, fmt.Errorf("structures: condor shorts unavailable: %w", domain.ErrNoViableStructure)
	}
	putLong, ok3 := NearestListedStrike(puts, putShort-domain.Points(b.cfg.WidthPoints))
	callLong, ok4 := NearestListedStrike(calls, callShort+domain.Points(b.cfg.WidthPoints))
	if !ok3 || !ok4 || putLong >= putShort || callLong <= callShort {
		return domain.Structure{}, fmt.Errorf("structures: condor wings unavailable: %w", domain.ErrNoViableStructure)
	}

	type legSpec struct {
		strike domain.Points
		right  domain.OptionRight
		side   domain.LegSide
	}
	specs := []legSpec{
		{putLong, domain.Put, domain.Long},
		{putShort, domain.Put, domain.Short},
		{callShort, domain.Call, domain.Short},
		{callLong, domain.Call, domain.Long},
	}

	legs := make([]domain.Leg, 0, len(specs))
	var credit domain.Points
	for _, sp := range specs {
		c, ok := snap.Contract(expiry, sp.strike, sp.right)
		if !ok {
			return domain.Structure{}, fmt.Errorf("structures: listed strike without contract: %w", domain.ErrNoViableStructure)
		}
		mid, err := b.legMid(c, snap.Spot, asOf)
		if err != nil {
			return domain.Structure{}, err
		}
		if sp.side == domain.Short {
			credit += mid
		} else {
			credit -= mid
		}
		legs = append(legs, domain.Leg{Contract: c, Side: sp.side, Ratio: 1})
	}

	maxWing := max(putShort-putLong, callLong-callShort)
	if credit <= 0 || maxWing-credit <= 0 {
		return domain.Structure{}, fmt.Errorf("structures: condor credit %.2f on wing %.2f not viable: %w",
			float64(credit), float64(maxWing), domain.ErrNoViableStructure)
	}

	return domain.Structure{
		Type:       domain.IronCondor,
		Kind:       domain.Credit,
		Symbol:     snap.Symbol,
		Expiry:     expiry,
		Legs:       legs,
		EntryPrice: credit,
		Width:      maxWing,
		MaxLoss:    maxWing - credit,
		MaxProfit:  credit,
		Breakevens: []domain.Points{putShort - credit, callShort + credit},
	}, nil
}

// structureDelta suma la delta firmada de cada leg, con IV resuelta del mid
// usado para esa leg.
func (b *Builder) structureDelta(st domain.Structure, spot domain.Points, asOf time.Time) (float64, error) {
	var total float64
	for _, leg := range st.Legs {
		mid, err := b.legMid(leg.Contract, spot, asOf)
		if err != nil {
			return 0, err
		}
		in := pricing.Input{
			Right:         leg.Contract.Right,
			Spot:          spot,
			Strike:        leg.Contract.Strike,
			AsOf:          asOf,
			Expiry:        leg.Contract.Expiry,
			Rate:          b.cfg.RiskFreeRate,
			DividendYield: b.dividendYield(leg.Contract.Symbol),
		}
		iv, err := pricing.ImpliedVol(in, mid)
		if err != nil {
			return 0, fmt.Errorf("structures.structureDelta %s %.2f: %w", leg.Contract.Right, float64(leg.Contract.Strike), err)
		}
		in.Vol = iv
		_, greeks := pricing.Price(in)

		sign := float64(leg.Ratio)
		if leg.Side == domain.Short {
			sign = -sign
		}
		total += sign * greeks.Delta
	}
	return total, nil
}
