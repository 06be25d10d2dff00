package storage_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/alejandrodnm/volbot/internal/adapters/storage"
	"github.com/alejandrodnm/volbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openLedger(t *testing.T) *storage.SQLiteLedger {
	t.Helper()
	led, err := storage.NewSQLiteLedger(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { led.Close() })
	return led
}

func closedFixture(id string, pnl domain.Dollars) domain.ClosedPosition {
	entry := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	return domain.ClosedPosition{
		Position: domain.Position{
			ID:      id,
			Symbol:  "XYZ",
			Cluster: "tech",
			Structure: domain.Structure{
				Type: domain.CreditSpread,
				Kind: domain.Credit,
			},
			Contracts:     2,
			EntryCashflow: 250,
			EntryDate:     entry,
			Status:        domain.StatusClosed,
		},
		ExitDate:     entry.AddDate(0, 0, 6),
		ExitCashflow: pnl - 250,
		PnL:          pnl,
		Reason:       domain.ExitTakeProfit,
		HoldDays:     6,
	}
}

func TestSQLiteLedger_CloseRoundTrip(t *testing.T) {
	led := openLedger(t)

	require.NoError(t, led.RecordClose("run-1", closedFixture("pos-a", 130)))
	require.NoError(t, led.RecordClose("run-1", closedFixture("pos-b", -90)))
	require.NoError(t, led.RecordClose("run-2", closedFixture("pos-a", 10)))

	got, err := led.ClosedTrades("run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "pos-a", got[0].ID)
	assert.Equal(t, "XYZ", got[0].Symbol)
	assert.Equal(t, "tech", got[0].Cluster)
	assert.Equal(t, domain.CreditSpread, got[0].Structure.Type)
	assert.Equal(t, 2, got[0].Contracts)
	assert.Equal(t, domain.Dollars(130), got[0].PnL)
	assert.Equal(t, domain.ExitTakeProfit, got[0].Reason)
	assert.Equal(t, 6, got[0].HoldDays)
}

func TestSQLiteLedger_RecordCloseIdempotent(t *testing.T) {
	led := openLedger(t)

	require.NoError(t, led.RecordClose("run-1", closedFixture("pos-a", 130)))
	require.NoError(t, led.RecordClose("run-1", closedFixture("pos-a", 130)))

	got, err := led.ClosedTrades("run-1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSQLiteLedger_RejectionsAndEquity(t *testing.T) {
	led := openLedger(t)
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	require.NoError(t, led.RecordRejection("run-1", domain.RejectedCandidate{
		CandidateID: "2025-06-02_XYZ_credit_spread",
		Symbol:      "XYZ",
		Cluster:     "tech",
		AsOf:        day,
		Reason:      domain.ReasonSameDayDedup,
		Detail:      "tech@2025-06-02",
	}))
	require.NoError(t, led.RecordEquity("run-1", domain.EquityPoint{AsOf: day, Equity: 25000}))

	// Sin cierres, la consulta devuelve vacío sin error.
	got, err := led.ClosedTrades("run-1")
	require.NoError(t, err)
	assert.Empty(t, got)
}
