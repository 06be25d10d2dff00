package ports

import "github.com/alejandrodnm/volbot/internal/domain"

// Ledger persiste el resultado de una ejecución de backtest.
type Ledger interface {
	// RecordClose guarda una posición cerrada con su PnL y motivo de salida.
	RecordClose(runID string, pos domain.ClosedPosition) error

	// RecordRejection guarda un candidato rechazado con su único motivo.
	RecordRejection(runID string, rej domain.RejectedCandidate) error

	// RecordEquity guarda un punto de la curva de equity.
	RecordEquity(runID string, pt domain.EquityPoint) error

	// Close libera los recursos del ledger.
	Close() error
}
