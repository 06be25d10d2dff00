package risk

import (
	"testing"
	"time"

	"github.com/alejandrodnm/volbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openPos(id, symbol, cluster string, maxLoss domain.Points, contracts int, entry domain.Dollars, day time.Time) domain.Position {
	return domain.Position{
		ID:      id,
		Symbol:  symbol,
		Cluster: cluster,
		Structure: domain.Structure{
			Kind:    domain.Credit,
			MaxLoss: maxLoss,
			Delta:   0.20,
		},
		Contracts:     contracts,
		EntryCashflow: entry,
		EntryDate:     day,
		Status:        domain.StatusOpen,
	}
}

func TestPortfolio_AggregatesRecomputedOnEveryMutation(t *testing.T) {
	pf := NewPortfolio(25000)
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	pf.OnAdmit(openPos("a", "AAA", "tech", 0.75, 6, 750, day))
	pf.OnAdmit(openPos("b", "BBB", "tech", 1.50, 3, 400, day))

	assert.Equal(t, 2, pf.OpenCount())
	assert.Equal(t, domain.Dollars(450+450), pf.TotalRisk())
	assert.Equal(t, 2, pf.ClusterCount("tech"))
	// delta = 0.20 × 100 × (6+3)
	assert.InDelta(t, 180, pf.Delta(), 1e-9)

	_, ok := pf.OnClose("a", -350, day.AddDate(0, 0, 5), domain.ExitTakeProfit)
	require.True(t, ok)

	assert.Equal(t, 1, pf.OpenCount())
	assert.Equal(t, domain.Dollars(450), pf.TotalRisk())
	assert.Equal(t, 1, pf.ClusterCount("tech"))
	assert.InDelta(t, 60, pf.Delta(), 1e-9)
}

func TestPortfolio_CashflowLawOnClose(t *testing.T) {
	pf := NewPortfolio(25000)
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	// Crédito: entra $125, se recompra por $60 → pnl $65.
	pf.OnAdmit(openPos("a", "AAA", "", 3.75, 1, 125, day))
	closed, ok := pf.OnClose("a", -60, day.AddDate(0, 0, 7), domain.ExitTakeProfit)
	require.True(t, ok)

	assert.Equal(t, domain.Dollars(65), closed.PnL)
	assert.Equal(t, domain.Dollars(-60), closed.ExitCashflow)
	assert.Equal(t, 7, closed.HoldDays)
	assert.Equal(t, domain.StatusClosed, closed.Status)
	assert.Equal(t, domain.Dollars(25065), pf.Equity())
	assert.Equal(t, domain.Dollars(25065), pf.PeakEquity())
}

func TestPortfolio_DrawdownFromPeak(t *testing.T) {
	pf := NewPortfolio(10000)
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	assert.Zero(t, pf.DrawdownFromPeak())

	pf.OnAdmit(openPos("w", "AAA", "", 1, 5, 500, day))
	pf.OnClose("w", -100, day.AddDate(0, 0, 1), domain.ExitTakeProfit) // +400 → peak 10400

	pf.OnAdmit(openPos("l", "AAA", "", 1, 5, 500, day.AddDate(0, 0, 2)))
	pf.OnClose("l", -1940, day.AddDate(0, 0, 3), domain.ExitHardStop) // −1440 → equity 8960

	assert.InDelta(t, 1-8960.0/10400.0, pf.DrawdownFromPeak(), 1e-9)
	assert.Equal(t, domain.Dollars(10400), pf.PeakEquity())
}

func TestPortfolio_OnCloseUnknownID(t *testing.T) {
	pf := NewPortfolio(10000)
	_, ok := pf.OnClose("missing", 0, time.Now(), domain.ExitTimeStop)
	assert.False(t, ok)
}

func TestPortfolio_OpenPositionsSorted(t *testing.T) {
	pf := NewPortfolio(10000)
	d1 := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)

	pf.OnAdmit(openPos("z", "ZZZ", "", 1, 1, 100, d2))
	pf.OnAdmit(openPos("b", "BBB", "", 1, 1, 100, d1))
	pf.OnAdmit(openPos("a", "AAA", "", 1, 1, 100, d1))

	got := pf.OpenPositions()
	require.Len(t, got, 3)
	// Orden por fecha de entrada, ID como desempate.
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, "z", got[2].ID)
}

func TestPortfolio_EquityCurveRecordsMutations(t *testing.T) {
	pf := NewPortfolio(10000)
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	pf.OnAdmit(openPos("a", "AAA", "", 1, 1, 100, day))
	pf.OnClose("a", -40, day.AddDate(0, 0, 2), domain.ExitTakeProfit)

	curve := pf.EquityCurve()
	require.Len(t, curve, 2)
	assert.Equal(t, domain.Dollars(10000), curve[0].Equity)
	assert.Equal(t, domain.Dollars(10060), curve[1].Equity)
}
