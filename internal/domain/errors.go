package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnsolvable signals that an observed price cannot be resolved to a
// volatility (outside no-arbitrage bounds or solver bracket). Callers must
// propagate it; substituting zero greeks for it is a bug.
var ErrUnsolvable = errors.New("implied volatility unsolvable")

// ErrNoViableStructure signals that a chain snapshot offers no eligible
// strikes or expiries for a signal.
var ErrNoViableStructure = errors.New("no viable structure")

// ErrNoData signals that a provider has no snapshot for a (symbol, date).
// It is not fatal by itself; coverage accounting decides whether the run
// can be trusted.
var ErrNoData = errors.New("no data for date")

// DataIntegrityError is fatal: the historical inputs themselves are not
// trustworthy (malformed snapshot, coverage below threshold) and the run
// must abort rather than produce PnL from bad data.
type DataIntegrityError struct {
	Check  string
	Detail string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("data integrity: %s: %s", e.Check, e.Detail)
}

// RejectReason is a machine-readable rejection code. Every rejected
// candidate carries exactly one, so rejection distributions stay auditable.
type RejectReason string

const (
	ReasonBelowMinimumSize    RejectReason = "below_minimum_size"
	ReasonSameDayDedup        RejectReason = "same_day_dedup"
	ReasonMaxOpenPositions    RejectReason = "max_open_positions"
	ReasonMaxClusterPositions RejectReason = "max_cluster_positions"
	ReasonMaxTotalRisk        RejectReason = "max_total_risk_pct"
	ReasonDrawdownKillSwitch  RejectReason = "drawdown_kill_switch"
	ReasonNotRecommended      RejectReason = "not_recommended"
	ReasonInvalidCandidate    RejectReason = "invalid_candidate"
)

// RejectedCandidate is the ledger record of a rejection.
type RejectedCandidate struct {
	CandidateID string
	Symbol      string
	Cluster     string
	AsOf        time.Time
	Reason      RejectReason
	Detail      string
}
