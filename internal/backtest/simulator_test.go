package backtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alejandrodnm/volbot/internal/domain"
	"github.com/alejandrodnm/volbot/internal/pricing"
	"github.com/alejandrodnm/volbot/internal/risk"
	"github.com/alejandrodnm/volbot/internal/structures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sStart  = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	sExpiry = sStart.AddDate(0, 0, 30)
)

// stubChains sirve snapshots de un mapa fecha→snapshot; las fechas
// ausentes devuelven ErrNoData. failures simula fallos transitorios
// antes de la primera respuesta.
type stubChains struct {
	snaps    map[string]domain.ChainSnapshot
	failures int
	calls    int
}

func (s *stubChains) Snapshot(_ context.Context, _ string, asOf time.Time) (domain.ChainSnapshot, error) {
	s.calls++
	if s.failures > 0 {
		s.failures--
		return domain.ChainSnapshot{}, errors.New("connection reset")
	}
	snap, ok := s.snaps[asOf.Format("2006-01-02")]
	if !ok {
		return domain.ChainSnapshot{}, domain.ErrNoData
	}
	return snap, nil
}

type stubSignals struct {
	sigs []domain.Signal
}

func (s *stubSignals) Signals(_ context.Context, _, _ time.Time) ([]domain.Signal, error) {
	return s.sigs, nil
}

// chainAt genera una cadena sintética de puts y calls con quotes
// proporcionales alrededor del teórico a la vol dada.
func chainAt(asOf time.Time, spot domain.Points, vol float64) domain.ChainSnapshot {
	snap := domain.ChainSnapshot{Symbol: "XYZ", AsOf: asOf, Spot: spot}
	for _, right := range []domain.OptionRight{domain.Call, domain.Put} {
		for strike := domain.Points(85); strike <= 115; strike += 5 {
			px, _ := pricing.Price(pricing.Input{
				Right: right, Spot: spot, Strike: strike,
				AsOf: asOf, Expiry: sExpiry, Rate: 0.045, Vol: vol,
			})
			snap.Contracts = append(snap.Contracts, domain.OptionContract{
				Symbol: "XYZ", Strike: strike, Expiry: sExpiry, Right: right,
				Quote: domain.Quote{Bid: px * 0.95, Ask: px * 1.05},
			})
		}
	}
	return snap
}

// cheapPuts es un snapshot donde el spread de puts vale casi nada.
func cheapPuts(asOf time.Time) domain.ChainSnapshot {
	return domain.ChainSnapshot{
		Symbol: "XYZ", AsOf: asOf, Spot: 108,
		Contracts: []domain.OptionContract{
			{Symbol: "XYZ", Strike: 95, Expiry: sExpiry, Right: domain.Put,
				Quote: domain.Quote{Bid: 0.01, Ask: 0.03}},
			{Symbol: "XYZ", Strike: 90, Expiry: sExpiry, Right: domain.Put,
				Quote: domain.Quote{Bid: 0.01, Ask: 0.02}},
		},
	}
}

// flatPuts es un snapshot donde el spread vale aproximadamente lo mismo
// que a la entrada: ni take profit ni stop.
func flatPuts(asOf time.Time) domain.ChainSnapshot {
	return domain.ChainSnapshot{
		Symbol: "XYZ", AsOf: asOf, Spot: 100,
		Contracts: []domain.OptionContract{
			{Symbol: "XYZ", Strike: 95, Expiry: sExpiry, Right: domain.Put,
				Quote: domain.Quote{Bid: 0.60, Ask: 0.70}},
			{Symbol: "XYZ", Strike: 90, Expiry: sExpiry, Right: domain.Put,
				Quote: domain.Quote{Bid: 0.15, Ask: 0.25}},
		},
	}
}

// richPuts es un snapshot donde el short put se ha ido muy en contra.
func richPuts(asOf time.Time) domain.ChainSnapshot {
	return domain.ChainSnapshot{
		Symbol: "XYZ", AsOf: asOf, Spot: 91,
		Contracts: []domain.OptionContract{
			{Symbol: "XYZ", Strike: 95, Expiry: sExpiry, Right: domain.Put,
				Quote: domain.Quote{Bid: 4.40, Ask: 4.60}},
			{Symbol: "XYZ", Strike: 90, Expiry: sExpiry, Right: domain.Put,
				Quote: domain.Quote{Bid: 1.30, Ask: 1.50}},
		},
	}
}

func newSim(chains *stubChains, sigs []domain.Signal, end time.Time) (*Simulator, *risk.Portfolio) {
	bcfg := structures.DefaultConfig()
	bcfg.StrikeIncrements = map[string]float64{"XYZ": 5}
	builder := structures.NewBuilder(bcfg)

	pf := risk.NewPortfolio(25000)
	engine := risk.NewEngine(risk.Config{
		RiskPerTradePct:   0.02,
		MaxTotalRiskPct:   0.10,
		MaxOpenPositions:  5,
		DefaultClusterCap: 2,
		DrawdownKillPct:   0.15,
	}, pf)

	sim := New(chains, &stubSignals{sigs: sigs}, builder, engine, pf,
		FillModel{Policy: FillConservative, SlippagePerLeg: 0.01},
		nil,
		Config{Start: sStart, End: end},
		"test-run")
	return sim, pf
}

func shortVolSignal(day time.Time) domain.Signal {
	return domain.Signal{
		Symbol: "XYZ", AsOf: day, Direction: domain.ShortVol,
		Strength: 1.2, Regime: "trending",
	}
}

func TestRun_TakeProfitExit(t *testing.T) {
	tpDay := sStart.AddDate(0, 0, 5)
	chains := &stubChains{snaps: map[string]domain.ChainSnapshot{
		sStart.Format("2006-01-02"): chainAt(sStart, 100, 0.25),
		tpDay.Format("2006-01-02"):  cheapPuts(tpDay),
	}}

	sim, pf := newSim(chains, []domain.Signal{shortVolSignal(sStart)}, sStart.AddDate(0, 0, 10))
	summary, err := sim.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Closed, 1)
	closed := summary.Closed[0]
	assert.Equal(t, domain.ExitTakeProfit, closed.Reason)
	assert.Equal(t, 5, closed.HoldDays)
	assert.Greater(t, float64(closed.PnL), 0.0)
	assert.Equal(t, 1, summary.Admitted)
	assert.Zero(t, summary.OpenPositions)
	assert.Equal(t, float64(1), summary.Coverage)
	assert.Equal(t, pf.Equity(), summary.FinalEquity)
	assert.Greater(t, float64(summary.FinalEquity), 25000.0)
}

func TestRun_HardStopExit(t *testing.T) {
	slDay := sStart.AddDate(0, 0, 4)
	chains := &stubChains{snaps: map[string]domain.ChainSnapshot{
		sStart.Format("2006-01-02"): chainAt(sStart, 100, 0.25),
		slDay.Format("2006-01-02"):  richPuts(slDay),
	}}

	sim, _ := newSim(chains, []domain.Signal{shortVolSignal(sStart)}, sStart.AddDate(0, 0, 10))
	summary, err := sim.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Closed, 1)
	closed := summary.Closed[0]
	assert.Equal(t, domain.ExitHardStop, closed.Reason)
	assert.Less(t, float64(closed.PnL), 0.0)
	assert.Less(t, float64(summary.FinalEquity), 25000.0)
}

func TestRun_TimeStopBeforeExpiry(t *testing.T) {
	// Día con DTE=2: mismo nivel de precios que la entrada, ni TP ni stop.
	tsDay := sExpiry.AddDate(0, 0, -2)
	chains := &stubChains{snaps: map[string]domain.ChainSnapshot{
		sStart.Format("2006-01-02"): chainAt(sStart, 100, 0.25),
		tsDay.Format("2006-01-02"):  flatPuts(tsDay),
	}}

	sim, _ := newSim(chains, []domain.Signal{shortVolSignal(sStart)}, sExpiry)
	summary, err := sim.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Closed, 1)
	assert.Equal(t, domain.ExitTimeStop, summary.Closed[0].Reason)
	assert.Zero(t, summary.OpenPositions)
}

func TestRun_CoverageGateAborts(t *testing.T) {
	chains := &stubChains{snaps: map[string]domain.ChainSnapshot{}}
	sim, _ := newSim(chains, []domain.Signal{
		shortVolSignal(sStart),
		shortVolSignal(sStart.AddDate(0, 0, 1)),
	}, sStart.AddDate(0, 0, 5))

	_, err := sim.Run(context.Background())
	require.Error(t, err)

	var die *domain.DataIntegrityError
	assert.ErrorAs(t, err, &die)
	assert.Equal(t, "snapshot_coverage", die.Check)
}

func TestRun_TransientErrorsRetried(t *testing.T) {
	chains := &stubChains{
		snaps: map[string]domain.ChainSnapshot{
			sStart.Format("2006-01-02"): chainAt(sStart, 100, 0.25),
		},
		failures: 2, // dos fallos, el tercer intento responde
	}

	sim, _ := newSim(chains, []domain.Signal{shortVolSignal(sStart)}, sStart.AddDate(0, 0, 1))
	summary, err := sim.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Admitted)
	assert.Equal(t, float64(1), summary.Coverage)
}

func TestRun_Deterministic(t *testing.T) {
	mk := func() (domain.RunSummary, error) {
		tpDay := sStart.AddDate(0, 0, 5)
		chains := &stubChains{snaps: map[string]domain.ChainSnapshot{
			sStart.Format("2006-01-02"): chainAt(sStart, 100, 0.25),
			tpDay.Format("2006-01-02"):  cheapPuts(tpDay),
		}}
		sim, _ := newSim(chains, []domain.Signal{shortVolSignal(sStart)}, sStart.AddDate(0, 0, 10))
		return sim.Run(context.Background())
	}

	a, err := mk()
	require.NoError(t, err)
	b, err := mk()
	require.NoError(t, err)

	assert.Equal(t, a.FinalEquity, b.FinalEquity)
	assert.Equal(t, a.Admitted, b.Admitted)
	assert.Equal(t, a.RejectionCounts, b.RejectionCounts)
	require.Len(t, b.Closed, len(a.Closed))
	for i := range a.Closed {
		assert.Equal(t, a.Closed[i].PnL, b.Closed[i].PnL)
		assert.Equal(t, a.Closed[i].Reason, b.Closed[i].Reason)
		assert.Equal(t, a.Closed[i].Contracts, b.Closed[i].Contracts)
	}
}

func TestRun_RejectionRecorded(t *testing.T) {
	chains := &stubChains{snaps: map[string]domain.ChainSnapshot{
		sStart.Format("2006-01-02"): chainAt(sStart, 100, 0.25),
	}}

	// Strength bajo → REVIEW → rechazado por not_recommended.
	sig := shortVolSignal(sStart)
	sig.Strength = 0.7

	sim, _ := newSim(chains, []domain.Signal{sig}, sStart.AddDate(0, 0, 2))
	summary, err := sim.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, summary.Admitted)
	require.Len(t, summary.Rejected, 1)
	assert.Equal(t, domain.ReasonNotRecommended, summary.Rejected[0].Reason)
	assert.Equal(t, 1, summary.RejectionCounts[domain.ReasonNotRecommended])
}
