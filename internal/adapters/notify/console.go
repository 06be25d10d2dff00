package notify

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/alejandrodnm/volbot/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.Notifier: imprime el resumen de un run en
// tablas legibles. No calcula nada que no venga del RunSummary salvo
// los agregados de presentación (win rate, profit factor, expectancy).
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// Report imprime el resumen en el modo configurado.
func (c *Console) Report(_ context.Context, s domain.RunSummary) error {
	fmt.Fprintf(c.out, "\nBacktest %s → %s\n",
		s.Start.Format("2006-01-02"), s.End.Format("2006-01-02"))

	if c.table {
		c.printTrades(s.Closed)
		c.printRejections(s.RejectionCounts)
	}
	c.printSummary(s)
	return nil
}

// printTrades imprime el ledger de cierres, en orden de fecha de salida.
func (c *Console) printTrades(closed []domain.ClosedPosition) {
	if len(closed) == 0 {
		fmt.Fprintln(c.out, "  sin posiciones cerradas")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Symbol", "Type", "Cts", "Entry", "Exit", "PnL", "Reason", "Days")

	for i, cp := range closed {
		table.Append(
			fmt.Sprintf("%d", i+1),
			cp.Symbol,
			string(cp.Structure.Type),
			fmt.Sprintf("%d", cp.Contracts),
			cp.EntryDate.Format("2006-01-02"),
			cp.ExitDate.Format("2006-01-02"),
			fmt.Sprintf("$%.2f", float64(cp.PnL)),
			string(cp.Reason),
			fmt.Sprintf("%d", cp.HoldDays),
		)
	}
	table.Render()
}

// printRejections imprime el desglose de rechazos por motivo, ordenado
// por frecuencia descendente y motivo como desempate.
func (c *Console) printRejections(counts map[domain.RejectReason]int) {
	if len(counts) == 0 {
		return
	}

	type rc struct {
		reason domain.RejectReason
		n      int
	}
	rcs := make([]rc, 0, len(counts))
	for r, n := range counts {
		rcs = append(rcs, rc{r, n})
	}
	sort.Slice(rcs, func(i, j int) bool {
		if rcs[i].n != rcs[j].n {
			return rcs[i].n > rcs[j].n
		}
		return rcs[i].reason < rcs[j].reason
	})

	table := tablewriter.NewWriter(c.out)
	table.Header("Reject reason", "Count")
	for _, r := range rcs {
		table.Append(string(r.reason), fmt.Sprintf("%d", r.n))
	}
	table.Render()
}

// printSummary imprime las métricas agregadas del run.
func (c *Console) printSummary(s domain.RunSummary) {
	winRate, profitFactor, expectancy, avgHold := tradeStats(s.Closed)

	fmt.Fprintf(c.out, "  equity   $%.2f → $%.2f (peak $%.2f, drawdown %.1f%%)\n",
		float64(s.InitialEquity), float64(s.FinalEquity),
		float64(s.PeakEquity), s.Drawdown*100)
	fmt.Fprintf(c.out, "  trades   %d admitted, %d closed, %d still open\n",
		s.Admitted, len(s.Closed), s.OpenPositions)
	if len(s.Closed) > 0 {
		pf := fmt.Sprintf("%.2f", profitFactor)
		if math.IsInf(profitFactor, 1) {
			pf = "INF"
		}
		fmt.Fprintf(c.out, "  stats    win rate %.0f%% | profit factor %s | expectancy $%.2f | avg hold %.1fd\n",
			winRate*100, pf, expectancy, avgHold)
	}
	fmt.Fprintf(c.out, "  risk     open $%.2f | delta %+.1f\n",
		float64(s.TotalRisk), s.Delta)
	fmt.Fprintf(c.out, "  coverage %.1f%% of signal dates had snapshots\n", s.Coverage*100)
}

// tradeStats calcula win rate, profit factor, expectancy y media de días
// en cartera sobre los cierres. Profit factor es +Inf sin pérdidas.
func tradeStats(closed []domain.ClosedPosition) (winRate, profitFactor, expectancy, avgHold float64) {
	if len(closed) == 0 {
		return 0, 0, 0, 0
	}
	var wins int
	var grossWin, grossLoss, total float64
	var holdDays int
	for _, cp := range closed {
		pnl := float64(cp.PnL)
		total += pnl
		holdDays += cp.HoldDays
		if pnl > 0 {
			wins++
			grossWin += pnl
		} else {
			grossLoss += -pnl
		}
	}
	winRate = float64(wins) / float64(len(closed))
	if grossLoss > 0 {
		profitFactor = grossWin / grossLoss
	} else {
		profitFactor = math.Inf(1)
	}
	expectancy = total / float64(len(closed))
	avgHold = float64(holdDays) / float64(len(closed))
	return winRate, profitFactor, expectancy, avgHold
}
