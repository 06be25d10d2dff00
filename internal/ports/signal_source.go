package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/volbot/internal/domain"
)

// SignalSource entrega las señales de volatilidad del rango de fechas.
type SignalSource interface {
	// Signals devuelve las señales con as-of dentro de [from, to],
	// ordenadas por fecha y luego por símbolo.
	Signals(ctx context.Context, from, to time.Time) ([]domain.Signal, error)
}
