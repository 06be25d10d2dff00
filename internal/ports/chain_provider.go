package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/volbot/internal/domain"
)

// ChainProvider entrega snapshots históricos de cadena de opciones.
// Los snapshots son inmutables: el core nunca los modifica in place.
type ChainProvider interface {
	// Snapshot devuelve la cadena del símbolo en la fecha as-of dada.
	// Devuelve domain.ErrNoData (envuelto) si no hay snapshot para esa
	// fecha; cualquier otro error se considera transitorio y reintentable.
	Snapshot(ctx context.Context, symbol string, asOf time.Time) (domain.ChainSnapshot, error)
}
