// Package backtest ejecuta el replay determinista día a día: señales →
// construcción → admisión → gestión de salidas, todo sobre snapshots
// históricos. Nunca consulta el reloj de pared.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alejandrodnm/volbot/internal/domain"
	"github.com/alejandrodnm/volbot/internal/ports"
	"github.com/alejandrodnm/volbot/internal/risk"
	"github.com/alejandrodnm/volbot/internal/structures"
)

const (
	defaultTakeProfitPct = 0.50
	defaultStopLossMult  = 2.0
	defaultStopLossPct   = 0.50
	defaultTimeStopDTE   = 2
	defaultMinCoverage   = 0.90
	snapshotRetries      = 3
)

// Config son los parámetros de la simulación. Los umbrales de salida son
// fracciones del máximo beneficio / pérdida de cada estructura.
type Config struct {
	Start time.Time
	End   time.Time

	TakeProfitPct float64 // fracción del max profit que dispara el cierre
	StopLossMult  float64 // múltiplo del crédito cobrado (estructuras de crédito)
	StopLossPct   float64 // fracción del débito pagado (estructuras de débito)
	TimeStopDTE   int     // DTE mínimo antes del cierre por tiempo

	MinCoveragePct float64 // cobertura mínima de snapshots sobre fechas con señal
}

func (c *Config) setDefaults() {
	if c.TakeProfitPct <= 0 {
		c.TakeProfitPct = defaultTakeProfitPct
	}
	if c.StopLossMult <= 0 {
		c.StopLossMult = defaultStopLossMult
	}
	if c.StopLossPct <= 0 {
		c.StopLossPct = defaultStopLossPct
	}
	if c.TimeStopDTE <= 0 {
		c.TimeStopDTE = defaultTimeStopDTE
	}
	if c.MinCoveragePct <= 0 {
		c.MinCoveragePct = defaultMinCoverage
	}
}

// Simulator orquesta un run completo. Cada día procesa primero las
// salidas de posiciones abiertas y después las señales nuevas, de modo
// que el capital liberado en la sesión queda disponible para admitir.
type Simulator struct {
	chains  ports.ChainProvider
	signals ports.SignalSource
	builder *structures.Builder
	engine  *risk.Engine
	pf      *risk.Portfolio
	fills   FillModel
	ledger  ports.Ledger
	cfg     Config
	runID   string

	rejected []domain.RejectedCandidate

	// Cobertura: peticiones de snapshot en fechas con señal.
	snapRequested int
	snapServed    int
}

// New crea un simulador. El ledger puede ser nil cuando no se persiste.
func New(
	chains ports.ChainProvider,
	signals ports.SignalSource,
	builder *structures.Builder,
	engine *risk.Engine,
	pf *risk.Portfolio,
	fills FillModel,
	ledger ports.Ledger,
	cfg Config,
	runID string,
) *Simulator {
	cfg.setDefaults()
	return &Simulator{
		chains:  chains,
		signals: signals,
		builder: builder,
		engine:  engine,
		pf:      pf,
		fills:   fills,
		ledger:  ledger,
		cfg:     cfg,
		runID:   runID,
	}
}

// Run ejecuta el replay completo y devuelve el resumen. Un run con la
// misma configuración y los mismos datos produce el mismo resultado.
func (s *Simulator) Run(ctx context.Context) (domain.RunSummary, error) {
	sigs, err := s.signals.Signals(ctx, s.cfg.Start, s.cfg.End)
	if err != nil {
		return domain.RunSummary{}, fmt.Errorf("backtest.Run: señales: %w", err)
	}

	byDate := make(map[string][]domain.Signal)
	for _, sig := range sigs {
		k := sig.AsOf.Format("2006-01-02")
		byDate[k] = append(byDate[k], sig)
	}

	for day := s.cfg.Start; !day.After(s.cfg.End); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return domain.RunSummary{}, fmt.Errorf("backtest.Run: %w", err)
		}

		if err := s.manageExits(ctx, day); err != nil {
			return domain.RunSummary{}, err
		}

		daySigs := byDate[day.Format("2006-01-02")]
		sort.Slice(daySigs, func(i, j int) bool {
			return daySigs[i].Symbol < daySigs[j].Symbol
		})
		for _, sig := range daySigs {
			if err := s.processSignal(ctx, sig, day); err != nil {
				return domain.RunSummary{}, err
			}
		}
	}

	coverage := 1.0
	if s.snapRequested > 0 {
		coverage = float64(s.snapServed) / float64(s.snapRequested)
	}
	if coverage < s.cfg.MinCoveragePct {
		return domain.RunSummary{}, &domain.DataIntegrityError{
			Check: "snapshot_coverage",
			Detail: fmt.Sprintf("cobertura %.1f%% por debajo del mínimo %.1f%% (%d/%d)",
				coverage*100, s.cfg.MinCoveragePct*100, s.snapServed, s.snapRequested),
		}
	}

	counts := make(map[domain.RejectReason]int, len(s.rejected))
	for _, rej := range s.rejected {
		counts[rej.Reason]++
	}

	summary := domain.RunSummary{
		Start:           s.cfg.Start,
		End:             s.cfg.End,
		Closed:          s.pf.Closed(),
		Rejected:        s.rejected,
		EquityCurve:     s.pf.EquityCurve(),
		InitialEquity:   s.pf.InitialEquity(),
		FinalEquity:     s.pf.Equity(),
		PeakEquity:      s.pf.PeakEquity(),
		Drawdown:        s.pf.DrawdownFromPeak(),
		OpenPositions:   s.pf.OpenCount(),
		TotalRisk:       s.pf.TotalRisk(),
		Delta:           s.pf.Delta(),
		Admitted:        s.engine.Admitted(),
		RejectionCounts: counts,
		Coverage:        coverage,
	}

	if s.ledger != nil {
		for _, pt := range summary.EquityCurve {
			if err := s.ledger.RecordEquity(s.runID, pt); err != nil {
				slog.Warn("backtest: error persistiendo equity", "err", err)
			}
		}
	}
	return summary, nil
}

// processSignal construye el candidato de la señal y lo somete a la
// admisión. Un fallo de construcción no aborta el run: la señal se
// descarta y se registra el motivo.
func (s *Simulator) processSignal(ctx context.Context, sig domain.Signal, day time.Time) error {
	snap, err := s.snapshotWithRetry(ctx, sig.Symbol, day, true)
	if err != nil {
		if errors.Is(err, domain.ErrNoData) {
			slog.Debug("backtest: sin snapshot para señal",
				"symbol", sig.Symbol, "date", day.Format("2006-01-02"))
			return nil
		}
		return fmt.Errorf("backtest.processSignal: snapshot %s: %w", sig.Symbol, err)
	}

	cand, err := s.builder.Build(sig, snap, day)
	if err != nil {
		if errors.Is(err, domain.ErrNoViableStructure) || errors.Is(err, domain.ErrUnsolvable) {
			slog.Debug("backtest: señal sin estructura viable",
				"symbol", sig.Symbol, "err", err)
			return nil
		}
		return fmt.Errorf("backtest.processSignal: build %s: %w", sig.Symbol, err)
	}

	entry, err := s.fills.EntryFill(cand.Structure)
	if err != nil {
		s.recordRejection(cand, domain.ReasonInvalidCandidate, err.Error(), day)
		return nil
	}
	if entry <= 0 {
		s.recordRejection(cand, domain.ReasonInvalidCandidate,
			fmt.Sprintf("fill de entrada no positivo: %.2f", entry), day)
		return nil
	}

	dec := s.engine.Evaluate(cand, entry, day)
	if !dec.Admitted {
		s.recordRejection(cand, dec.Reason, dec.Detail, day)
		return nil
	}

	slog.Info("backtest: posición admitida",
		"symbol", cand.Signal.Symbol,
		"type", string(cand.Structure.Type),
		"contracts", dec.Position.Contracts,
		"entry", fmt.Sprintf("$%.2f", float64(dec.Position.EntryCashflow)),
	)
	return nil
}

// manageExits evalúa cada posición abierta contra el snapshot del día.
// Prioridad: take profit, stop loss, cierre por tiempo. Un día sin
// snapshot no cierra nada; el time stop garantiza que la posición no
// llega a vencimiento mientras haya datos.
func (s *Simulator) manageExits(ctx context.Context, day time.Time) error {
	for _, pos := range s.pf.OpenPositions() {
		snap, err := s.snapshotWithRetry(ctx, pos.Symbol, day, false)
		if err != nil {
			if errors.Is(err, domain.ErrNoData) {
				continue
			}
			return fmt.Errorf("backtest.manageExits: snapshot %s: %w", pos.Symbol, err)
		}

		exit, err := s.fills.ExitFill(pos.Structure, snap)
		if err != nil {
			slog.Debug("backtest: sin precio de salida",
				"position", pos.ID, "err", err)
			continue
		}

		exitCash := ExitCashflow(pos.Structure, exit, pos.Contracts)
		pnl := pos.EntryCashflow + exitCash

		reason, ok := s.exitReason(pos, pnl, day)
		if !ok {
			continue
		}

		closed, found := s.pf.OnClose(pos.ID, exitCash, day, reason)
		if !found {
			continue
		}
		slog.Info("backtest: posición cerrada",
			"symbol", closed.Symbol,
			"reason", string(reason),
			"pnl", fmt.Sprintf("$%.2f", float64(closed.PnL)),
			"hold_days", closed.HoldDays,
		)
		if s.ledger != nil {
			if err := s.ledger.RecordClose(s.runID, closed); err != nil {
				slog.Warn("backtest: error persistiendo cierre", "err", err)
			}
		}
	}
	return nil
}

// exitReason decide si la posición se cierra hoy y por qué motivo.
func (s *Simulator) exitReason(pos domain.Position, pnl domain.Dollars, day time.Time) (domain.ExitReason, bool) {
	st := pos.Structure
	maxProfit := st.MaxProfit.Dollars(pos.Contracts)
	if maxProfit > 0 && pnl >= domain.Dollars(s.cfg.TakeProfitPct)*maxProfit {
		return domain.ExitTakeProfit, true
	}

	if pnl < 0 {
		loss := -pnl
		if st.Kind == domain.Credit {
			credit := st.EntryPrice.Dollars(pos.Contracts)
			if loss >= domain.Dollars(s.cfg.StopLossMult)*credit {
				return domain.ExitHardStop, true
			}
		} else {
			debit := st.EntryPrice.Dollars(pos.Contracts)
			if loss >= domain.Dollars(s.cfg.StopLossPct)*debit {
				return domain.ExitHardStop, true
			}
		}
	}

	if st.DTE(day) <= s.cfg.TimeStopDTE {
		return domain.ExitTimeStop, true
	}
	return "", false
}

// snapshotWithRetry pide un snapshot con reintentos acotados para fallos
// transitorios. ErrNoData no se reintenta: la ausencia de datos es un
// hecho del dataset, no un fallo. Solo las peticiones en fecha de señal
// cuentan para la cobertura.
func (s *Simulator) snapshotWithRetry(ctx context.Context, symbol string, asOf time.Time, forSignal bool) (domain.ChainSnapshot, error) {
	if forSignal {
		s.snapRequested++
	}
	var lastErr error
	for attempt := 0; attempt < snapshotRetries; attempt++ {
		snap, err := s.chains.Snapshot(ctx, symbol, asOf)
		if err == nil {
			if forSignal {
				s.snapServed++
			}
			return snap, nil
		}
		if errors.Is(err, domain.ErrNoData) {
			return domain.ChainSnapshot{}, err
		}
		lastErr = err
		slog.Warn("backtest: fallo transitorio pidiendo snapshot",
			"symbol", symbol, "attempt", attempt+1, "err", err)
	}
	return domain.ChainSnapshot{}, fmt.Errorf("backtest.snapshotWithRetry: %d intentos agotados: %w", snapshotRetries, lastErr)
}

func (s *Simulator) recordRejection(cand domain.TradeCandidate, reason domain.RejectReason, detail string, day time.Time) {
	rej := domain.RejectedCandidate{
		CandidateID: cand.ID,
		Symbol:      cand.Signal.Symbol,
		Cluster:     s.engine.ClusterOf(cand.Signal.Symbol),
		AsOf:        day,
		Reason:      reason,
		Detail:      detail,
	}
	s.rejected = append(s.rejected, rej)
	if s.ledger != nil {
		if err := s.ledger.RecordRejection(s.runID, rej); err != nil {
			slog.Warn("backtest: error persistiendo rechazo", "err", err)
		}
	}
	slog.Debug("backtest: candidato rechazado",
		"candidate", cand.ID, "reason", string(reason), "detail", detail)
}
