package domain

import "time"

// PositionStatus is the lifecycle state of a position.
type PositionStatus string

const (
	StatusOpen   PositionStatus = "OPEN"
	StatusClosed PositionStatus = "CLOSED"
)

// Position is an admitted, realized trade. It is created only by the risk
// engine on admission and mutated only by the simulator on close.
type Position struct {
	ID        string
	Symbol    string
	Cluster   string // empty when the symbol belongs to no cluster
	Structure Structure
	Contracts int

	// EntryCashflow is signed: credit structures enter positive (cash
	// received), debit structures negative (cash paid).
	EntryCashflow Dollars
	EntryDate     time.Time
	Status        PositionStatus
}

// MaxLossDollars is the position's defined-risk bound.
func (p Position) MaxLossDollars() Dollars {
	return p.Structure.MaxLossDollars(p.Contracts)
}

// DeltaExposure is the share-equivalent delta of the whole position.
func (p Position) DeltaExposure() float64 {
	return p.Structure.Delta * ContractMultiplier * float64(p.Contracts)
}

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitTakeProfit ExitReason = "take_profit"
	ExitTimeStop   ExitReason = "time_stop"
	ExitHardStop   ExitReason = "hard_stop"
)

// ClosedPosition is the ledger record of a completed trade.
// PnL is always EntryCashflow + ExitCashflow; the two cashflows are of
// opposite cash-direction kind by construction.
type ClosedPosition struct {
	Position
	ExitDate     time.Time
	ExitCashflow Dollars
	PnL          Dollars
	Reason       ExitReason
	HoldDays     int
}
