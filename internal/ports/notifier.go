package ports

import (
	"context"

	"github.com/alejandrodnm/volbot/internal/domain"
)

// Notifier presenta el resumen de una ejecución al usuario.
type Notifier interface {
	// Report muestra el resumen final del backtest.
	// En la implementación de consola, imprime tablas formateadas.
	Report(ctx context.Context, summary domain.RunSummary) error
}
