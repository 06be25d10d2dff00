package storage

import "github.com/alejandrodnm/volbot/internal/domain"

// NopLedger descarta todo. Es el ledger por defecto cuando no se
// configura un DSN; los runs exploratorios no dejan rastro en disco.
type NopLedger struct{}

func (NopLedger) RecordClose(string, domain.ClosedPosition) error        { return nil }
func (NopLedger) RecordRejection(string, domain.RejectedCandidate) error { return nil }
func (NopLedger) RecordEquity(string, domain.EquityPoint) error          { return nil }
func (NopLedger) Close() error                                           { return nil }
