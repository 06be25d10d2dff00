package domain

import "time"

// EquityPoint is one sample of the account equity curve.
type EquityPoint struct {
	AsOf   time.Time
	Equity Dollars
}

// RunSummary is the full output of a backtest run, handed to reporting
// collaborators. The engine does no formatting; presentation is entirely
// external.
type RunSummary struct {
	Start time.Time
	End   time.Time

	Closed   []ClosedPosition
	Rejected []RejectedCandidate

	EquityCurve   []EquityPoint
	InitialEquity Dollars
	FinalEquity   Dollars
	PeakEquity    Dollars
	Drawdown      float64

	// Final open exposure.
	OpenPositions int
	TotalRisk     Dollars
	Delta         float64

	Admitted        int
	RejectionCounts map[RejectReason]int

	// Snapshot coverage over signal dates, in [0, 1].
	Coverage float64
}
