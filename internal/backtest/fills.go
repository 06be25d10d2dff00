package backtest

import (
	"fmt"

	"github.com/alejandrodnm/volbot/internal/domain"
)

// FillPolicy determina a qué lado del book se cruza cada pata.
type FillPolicy string

const (
	// FillConservative vende al bid y compra al ask.
	FillConservative FillPolicy = "conservative"
	// FillMid cruza todas las patas al mid.
	FillMid FillPolicy = "mid"
)

// FillModel calcula precios de entrada y salida de una estructura
// aplicando la política de fill y el slippage por pata. El slippage es
// siempre adverso: reduce el crédito cobrado y aumenta el débito pagado.
type FillModel struct {
	Policy         FillPolicy
	SlippagePerLeg domain.Points
}

// legFillPrice devuelve el precio crudo de una pata según la política.
// sell indica si la pata se vende (true) o se compra (false) en esta
// transacción concreta, no el lado de la estructura.
func (m FillModel) legFillPrice(leg domain.Leg, sell bool) (domain.Points, error) {
	q := leg.Contract.Quote
	switch m.Policy {
	case FillMid:
		mid, ok := q.Mid()
		if !ok {
			if leg.Contract.LastValidMid > 0 {
				return leg.Contract.LastValidMid, nil
			}
			return 0, fmt.Errorf("backtest.legFillPrice: %s sin quote válida ni mid previo", leg.Contract.Symbol)
		}
		return mid, nil
	default:
		if !q.Valid() {
			return 0, fmt.Errorf("backtest.legFillPrice: %s sin quote válida", leg.Contract.Symbol)
		}
		if sell {
			return q.Bid, nil
		}
		return q.Ask, nil
	}
}

// EntryFill calcula el precio neto de entrada de la estructura en puntos.
// Para un crédito devuelve el crédito neto cobrado; para un débito, el
// débito neto pagado. En ambos casos el slippage por pata lo empeora.
func (m FillModel) EntryFill(st domain.Structure) (domain.Points, error) {
	var net domain.Points
	for _, leg := range st.Legs {
		sell := leg.Side == domain.Short
		px, err := m.legFillPrice(leg, sell)
		if err != nil {
			return 0, fmt.Errorf("backtest.EntryFill: %w", err)
		}
		for i := 0; i < leg.Ratio; i++ {
			if sell {
				net += px - m.SlippagePerLeg
			} else {
				net -= px + m.SlippagePerLeg
			}
		}
	}
	if st.Kind == domain.Debit {
		// Convención: el débito se expresa en positivo.
		net = -net
	}
	return net, nil
}

// ExitFill calcula el precio neto de salida: cada pata se cruza en el
// sentido opuesto a la entrada. Para un crédito devuelve el coste de
// recompra (positivo); para un débito, el valor de venta (positivo).
func (m FillModel) ExitFill(st domain.Structure, snap domain.ChainSnapshot) (domain.Points, error) {
	var net domain.Points
	for _, leg := range st.Legs {
		c, ok := snap.Contract(leg.Contract.Expiry, leg.Contract.Strike, leg.Contract.Right)
		if !ok {
			return 0, fmt.Errorf("backtest.ExitFill: contrato %s ausente del snapshot", leg.Contract.Symbol)
		}
		cur := leg
		cur.Contract = c
		// Las patas cortas se recompran, las largas se venden.
		sell := leg.Side == domain.Long
		px, err := m.legFillPrice(cur, sell)
		if err != nil {
			return 0, fmt.Errorf("backtest.ExitFill: %w", err)
		}
		for i := 0; i < leg.Ratio; i++ {
			if sell {
				net += px - m.SlippagePerLeg
			} else {
				net -= px + m.SlippagePerLeg
			}
		}
	}
	if st.Kind == domain.Credit {
		// Recomprar un crédito cuesta dinero: se expresa en positivo.
		net = -net
	}
	return net, nil
}

// ExitCashflow convierte el precio de salida en el cashflow en dólares
// con el signo de la ley de caja: cerrar un crédito paga (negativo),
// cerrar un débito cobra (positivo).
func ExitCashflow(st domain.Structure, exit domain.Points, contracts int) domain.Dollars {
	d := exit.Dollars(contracts)
	if st.Kind == domain.Credit {
		return -d
	}
	return d
}
