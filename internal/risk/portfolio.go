// Package risk contiene el estado de cartera y el control de admisión:
// sizing por presupuesto de riesgo y gates ordenados con una única razón
// de rechazo registrada por candidato.
package risk

import (
	"sort"
	"time"

	"github.com/alejandrodnm/volbot/internal/domain"
)

// Portfolio is the authoritative record of open positions and aggregate
// exposure. It has exactly one writer (the simulator loop, via the risk
// engine on admission); readers get values, never internal references.
//
// Aggregates are recomputed from the open-position set on every mutation,
// so the incrementally observed values can never drift from a from-scratch
// recomputation.
type Portfolio struct {
	initialEquity domain.Dollars
	equity        domain.Dollars
	peak          domain.Dollars

	open         map[string]domain.Position
	totalRisk    domain.Dollars
	delta        float64
	clusterCount map[string]int

	curve  []domain.EquityPoint
	closed []domain.ClosedPosition
}

// NewPortfolio starts a portfolio at the given account equity.
func NewPortfolio(equity domain.Dollars) *Portfolio {
	return &Portfolio{
		initialEquity: equity,
		equity:        equity,
		peak:          equity,
		open:          make(map[string]domain.Position),
		clusterCount:  make(map[string]int),
	}
}

// Equity is the current account equity (initial + realized PnL).
func (p *Portfolio) Equity() domain.Dollars { return p.equity }

// InitialEquity is the starting account equity.
func (p *Portfolio) InitialEquity() domain.Dollars { return p.initialEquity }

// PeakEquity is the high-water mark of the equity curve.
func (p *Portfolio) PeakEquity() domain.Dollars { return p.peak }

// DrawdownFromPeak is 1 − equity/peak, in [0, 1] while equity stays
// positive.
func (p *Portfolio) DrawdownFromPeak() float64 {
	if p.peak <= 0 {
		return 0
	}
	return 1 - float64(p.equity)/float64(p.peak)
}

// OpenCount is the number of open positions.
func (p *Portfolio) OpenCount() int { return len(p.open) }

// TotalRisk is the sum of open-position max-loss dollars.
func (p *Portfolio) TotalRisk() domain.Dollars { return p.totalRisk }

// Delta is the aggregate share-equivalent delta exposure. It is a distinct
// quantity from dollar risk and is never folded into it.
func (p *Portfolio) Delta() float64 { return p.delta }

// ClusterCount is the number of open positions tagged with the cluster.
func (p *Portfolio) ClusterCount(cluster string) int { return p.clusterCount[cluster] }

// OpenPositions returns the open positions ordered by entry date then ID,
// so iteration over them is deterministic.
func (p *Portfolio) OpenPositions() []domain.Position {
	out := make([]domain.Position, 0, len(p.open))
	for _, pos := range p.open {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EntryDate.Equal(out[j].EntryDate) {
			return out[i].EntryDate.Before(out[j].EntryDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Closed returns the closed ledger in close order.
func (p *Portfolio) Closed() []domain.ClosedPosition { return p.closed }

// EquityCurve returns the recorded equity samples in order.
func (p *Portfolio) EquityCurve() []domain.EquityPoint { return p.curve }

// OnAdmit registers an admitted position and recomputes aggregates.
func (p *Portfolio) OnAdmit(pos domain.Position) {
	p.open[pos.ID] = pos
	p.recompute()
	p.curve = append(p.curve, domain.EquityPoint{AsOf: pos.EntryDate, Equity: p.equity})
}

// OnClose realizes a position: pnl = entry cashflow + exit cashflow, the
// one accounting rule for every structure kind. The position moves to the
// closed ledger and aggregates are recomputed.
func (p *Portfolio) OnClose(positionID string, exitCashflow domain.Dollars, asOf time.Time, reason domain.ExitReason) (domain.ClosedPosition, bool) {
	pos, ok := p.open[positionID]
	if !ok {
		return domain.ClosedPosition{}, false
	}
	delete(p.open, positionID)

	pnl := pos.EntryCashflow + exitCashflow
	p.equity += pnl
	if p.equity > p.peak {
		p.peak = p.equity
	}

	pos.Status = domain.StatusClosed
	closed := domain.ClosedPosition{
		Position:     pos,
		ExitDate:     asOf,
		ExitCashflow: exitCashflow,
		PnL:          pnl,
		Reason:       reason,
		HoldDays:     int(asOf.Sub(pos.EntryDate).Hours() / 24),
	}
	p.closed = append(p.closed, closed)

	p.recompute()
	p.curve = append(p.curve, domain.EquityPoint{AsOf: asOf, Equity: p.equity})
	return closed, true
}

func (p *Portfolio) recompute() {
	p.totalRisk = 0
	p.delta = 0
	p.clusterCount = make(map[string]int)
	for _, pos := range p.open {
		p.totalRisk += pos.MaxLossDollars()
		p.delta += pos.DeltaExposure()
		if pos.Cluster != "" {
			p.clusterCount[pos.Cluster]++
		}
	}
}
