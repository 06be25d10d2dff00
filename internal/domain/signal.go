package domain

import "time"

// Direction is the volatility stance of a signal: short premium opens
// credit structures, long premium opens debit structures.
type Direction string

const (
	ShortVol Direction = "short_vol"
	LongVol  Direction = "long_vol"
)

// Signal is a volatility-market signal produced by an external detector.
// The engine treats it as given; AsOf anchors every downstream decision.
type Signal struct {
	Symbol    string
	AsOf      time.Time
	Direction Direction
	Strength  float64 // z-score-like magnitude, ≥ 0
	Regime    string
}

// Recommendation is the builder's stance on a candidate. It is advisory:
// an optimistic label alone never authorizes execution.
type Recommendation string

const (
	RecommendTrade  Recommendation = "TRADE"
	RecommendReview Recommendation = "REVIEW"
	RecommendPass   Recommendation = "PASS"
)

// TradeCandidate is a priced, not-yet-sized candidate trade. It exists for
// exactly one (signal, as-of) evaluation and is discarded afterwards.
// Risk fields are zero until sizing runs, and stay zero for PASS/REVIEW
// candidates.
type TradeCandidate struct {
	ID        string
	Signal    Signal
	Structure Structure
	AsOf      time.Time

	Contracts       int
	RiskPerContract Dollars // ≥ 0
	TotalRisk       Dollars // ≥ 0

	Recommendation Recommendation
	Valid          bool
	Reasons        []string // validation messages when Valid is false
}
