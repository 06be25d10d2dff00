package storage

// sqlite.go — ledger persistente de ejecuciones de backtest.
//
// Estrategia:
//   - `closed_trades`: una fila por posición cerrada, con PnL y motivo.
//   - `rejections`: una fila por candidato rechazado, con su único motivo.
//   - `equity_curve`: un punto por mutación de cartera.
//   Todas las tablas llevan run_id para poder comparar ejecuciones.

import (
	"database/sql"
	"fmt"

	"github.com/alejandrodnm/volbot/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
-- Una fila por posición cerrada
CREATE TABLE IF NOT EXISTS closed_trades (
    id             TEXT NOT NULL,
    run_id         TEXT NOT NULL,
    symbol         TEXT NOT NULL,
    cluster        TEXT,
    structure_type TEXT NOT NULL,
    contracts      INTEGER NOT NULL,
    entry_date     DATETIME NOT NULL,
    exit_date      DATETIME NOT NULL,
    entry_cashflow REAL NOT NULL,
    exit_cashflow  REAL NOT NULL,
    pnl            REAL NOT NULL,
    exit_reason    TEXT NOT NULL,
    hold_days      INTEGER NOT NULL,
    PRIMARY KEY (run_id, id)
);

-- Una fila por candidato rechazado
CREATE TABLE IF NOT EXISTS rejections (
    run_id       TEXT NOT NULL,
    candidate_id TEXT NOT NULL,
    symbol       TEXT NOT NULL,
    cluster      TEXT,
    as_of        DATETIME NOT NULL,
    reason       TEXT NOT NULL,
    detail       TEXT
);

-- Curva de equity, un punto por mutación
CREATE TABLE IF NOT EXISTS equity_curve (
    run_id TEXT NOT NULL,
    as_of  DATETIME NOT NULL,
    equity REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_run  ON closed_trades(run_id);
CREATE INDEX IF NOT EXISTS idx_rej_run     ON rejections(run_id);
CREATE INDEX IF NOT EXISTS idx_rej_reason  ON rejections(run_id, reason);
CREATE INDEX IF NOT EXISTS idx_equity_run  ON equity_curve(run_id, as_of);
`

// SQLiteLedger implementa ports.Ledger usando SQLite (pure Go, sin CGo).
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger abre (o crea) la base de datos en la ruta dada y
// aplica el schema.
func NewSQLiteLedger(path string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteLedger: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteLedger: apply schema: %w", err)
	}
	return &SQLiteLedger{db: db}, nil
}

// RecordClose guarda una posición cerrada.
func (s *SQLiteLedger) RecordClose(runID string, pos domain.ClosedPosition) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO closed_trades
		(id, run_id, symbol, cluster, structure_type, contracts,
		 entry_date, exit_date, entry_cashflow, exit_cashflow, pnl, exit_reason, hold_days)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pos.ID, runID, pos.Symbol, pos.Cluster, string(pos.Structure.Type), pos.Contracts,
		pos.EntryDate, pos.ExitDate,
		float64(pos.EntryCashflow), float64(pos.ExitCashflow), float64(pos.PnL),
		string(pos.Reason), pos.HoldDays,
	)
	if err != nil {
		return fmt.Errorf("storage.RecordClose: %w", err)
	}
	return nil
}

// RecordRejection guarda un candidato rechazado.
func (s *SQLiteLedger) RecordRejection(runID string, rej domain.RejectedCandidate) error {
	_, err := s.db.Exec(`
		INSERT INTO rejections
		(run_id, candidate_id, symbol, cluster, as_of, reason, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, rej.CandidateID, rej.Symbol, rej.Cluster, rej.AsOf,
		string(rej.Reason), rej.Detail,
	)
	if err != nil {
		return fmt.Errorf("storage.RecordRejection: %w", err)
	}
	return nil
}

// RecordEquity guarda un punto de la curva de equity.
func (s *SQLiteLedger) RecordEquity(runID string, pt domain.EquityPoint) error {
	_, err := s.db.Exec(`
		INSERT INTO equity_curve (run_id, as_of, equity) VALUES (?, ?, ?)`,
		runID, pt.AsOf, float64(pt.Equity),
	)
	if err != nil {
		return fmt.Errorf("storage.RecordEquity: %w", err)
	}
	return nil
}

// ClosedTrades devuelve los cierres persistidos de un run, en orden de
// fecha de salida.
func (s *SQLiteLedger) ClosedTrades(runID string) ([]domain.ClosedPosition, error) {
	rows, err := s.db.Query(`
		SELECT id, symbol, cluster, structure_type, contracts,
		       entry_date, exit_date, entry_cashflow, exit_cashflow, pnl, exit_reason, hold_days
		FROM closed_trades WHERE run_id = ? ORDER BY exit_date, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("storage.ClosedTrades: %w", err)
	}
	defer rows.Close()

	var out []domain.ClosedPosition
	for rows.Next() {
		var cp domain.ClosedPosition
		var stype, reason string
		var entryCash, exitCash, pnl float64
		if err := rows.Scan(&cp.ID, &cp.Symbol, &cp.Cluster, &stype, &cp.Contracts,
			&cp.EntryDate, &cp.ExitDate, &entryCash, &exitCash, &pnl,
			&reason, &cp.HoldDays); err != nil {
			return nil, fmt.Errorf("storage.ClosedTrades: scan: %w", err)
		}
		cp.Structure.Type = domain.StructureType(stype)
		cp.EntryCashflow = domain.Dollars(entryCash)
		cp.ExitCashflow = domain.Dollars(exitCash)
		cp.PnL = domain.Dollars(pnl)
		cp.Reason = domain.ExitReason(reason)
		out = append(out, cp)
	}
	return out, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteLedger) Close() error {
	return s.db.Close()
}
