package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/alejandrodnm/volbot/internal/domain"
	"github.com/google/uuid"
)

// Config son los límites de admisión. Todos son configuración externa;
// el engine no fija ningún umbral por su cuenta.
type Config struct {
	RiskPerTradePct  float64 // fracción de equity arriesgada por trade
	MaxTotalRiskPct  float64 // fracción de equity en riesgo agregado
	MaxOpenPositions int

	Clusters          map[string][]string // cluster → símbolos
	ClusterCaps       map[string]int      // cap específico por cluster
	DefaultClusterCap int

	DrawdownKillPct float64 // drawdown desde pico que bloquea admisiones
}

// Decision is the outcome of evaluating one candidate: admitted with a
// realized Position, or rejected with exactly one reason code.
type Decision struct {
	Admitted bool
	Position domain.Position
	Reason   domain.RejectReason
	Detail   string
}

// Engine sizes candidates and runs them through the admission gates in a
// fixed order. The first failing gate is the sole recorded reason.
//
// Gate order: same_day_dedup, max_open_positions, max_cluster_positions,
// max_total_risk_pct, drawdown_kill_switch.
type Engine struct {
	cfg Config
	pf  *Portfolio

	// dedupKey(symbol/cluster)+date de candidatos ya vistos.
	seen map[string]bool

	// Distribución de resultados, para auditoría.
	admitted int
	rejected map[domain.RejectReason]int
}

// NewEngine crea un engine sobre la cartera dada. El engine es el único
// mutador de la cartera en la admisión.
func NewEngine(cfg Config, pf *Portfolio) *Engine {
	return &Engine{
		cfg:      cfg,
		pf:       pf,
		seen:     make(map[string]bool),
		rejected: make(map[domain.RejectReason]int),
	}
}

// ClusterOf returns the risk cluster a symbol belongs to, or "".
func (e *Engine) ClusterOf(symbol string) string {
	for name, symbols := range e.cfg.Clusters {
		for _, s := range symbols {
			if s == symbol {
				return name
			}
		}
	}
	return ""
}

func (e *Engine) clusterCap(cluster string) int {
	if c, ok := e.cfg.ClusterCaps[cluster]; ok {
		return c
	}
	return e.cfg.DefaultClusterCap
}

// Admitted returns the count of admitted candidates.
func (e *Engine) Admitted() int { return e.admitted }

// RejectionCounts returns a copy of the rejection distribution by reason.
func (e *Engine) RejectionCounts() map[domain.RejectReason]int {
	out := make(map[domain.RejectReason]int, len(e.rejected))
	for k, v := range e.rejected {
		out[k] = v
	}
	return out
}

// Size computes the contract count for a candidate from the current equity
// and the per-trade risk budget:
//
//	contracts = floor(budget / (maxLoss × 100))
//
// A result below one contract is a sizing rejection; contracts are never
// rounded up to one, because that would silently exceed the per-trade cap.
func (e *Engine) Size(cand *domain.TradeCandidate) (domain.RejectReason, string) {
	perContract := cand.Structure.MaxLoss.Dollars(1)
	if perContract <= 0 {
		return domain.ReasonInvalidCandidate, "max loss undefined"
	}

	budget := domain.Dollars(float64(e.pf.Equity()) * e.cfg.RiskPerTradePct)
	contracts := int(math.Floor(float64(budget) / float64(perContract)))
	if contracts < 1 {
		return domain.ReasonBelowMinimumSize,
			fmt.Sprintf("per-contract risk $%.2f exceeds budget $%.2f", float64(perContract), float64(budget))
	}

	cand.Contracts = contracts
	cand.RiskPerContract = perContract
	cand.TotalRisk = perContract * domain.Dollars(contracts)
	return "", ""
}

// Evaluate runs the candidate through sizing and the ordered gates.
// entryFill is the policy-priced entry in points (positive); on admission
// it becomes the signed entry cashflow, the single source of truth for all
// later PnL arithmetic.
func (e *Engine) Evaluate(cand domain.TradeCandidate, entryFill domain.Points, asOf time.Time) Decision {
	if !cand.Valid {
		return e.reject(domain.ReasonInvalidCandidate, fmt.Sprintf("%v", cand.Reasons))
	}
	if cand.Recommendation != domain.RecommendTrade {
		return e.reject(domain.ReasonNotRecommended, string(cand.Recommendation))
	}

	if reason, detail := e.Size(&cand); reason != "" {
		return e.reject(reason, detail)
	}

	cluster := e.ClusterOf(cand.Signal.Symbol)

	// Gate 1: un solo candidato por símbolo/cluster por fecha as-of.
	key := cluster
	if key == "" {
		key = cand.Signal.Symbol
	}
	key += "@" + asOf.Format("2006-01-02")
	if e.seen[key] {
		return e.reject(domain.ReasonSameDayDedup, key)
	}
	e.seen[key] = true

	// Gate 2: cap global de posiciones abiertas.
	if e.pf.OpenCount() >= e.cfg.MaxOpenPositions {
		return e.reject(domain.ReasonMaxOpenPositions, fmt.Sprintf("at cap %d", e.cfg.MaxOpenPositions))
	}

	// Gate 3: cap de concentración por cluster.
	if cluster != "" && e.pf.ClusterCount(cluster) >= e.clusterCap(cluster) {
		return e.reject(domain.ReasonMaxClusterPositions,
			fmt.Sprintf("cluster %s at cap %d", cluster, e.clusterCap(cluster)))
	}

	// Gate 4: riesgo agregado contra equity actual.
	maxTotal := domain.Dollars(float64(e.pf.Equity()) * e.cfg.MaxTotalRiskPct)
	if e.pf.TotalRisk()+cand.TotalRisk > maxTotal {
		return e.reject(domain.ReasonMaxTotalRisk,
			fmt.Sprintf("$%.2f + $%.2f > $%.2f", float64(e.pf.TotalRisk()), float64(cand.TotalRisk), float64(maxTotal)))
	}

	// Gate 5: kill switch por drawdown — bloquea solo admisiones nuevas,
	// las posiciones existentes se siguen gestionando hasta su salida.
	if dd := e.pf.DrawdownFromPeak(); dd >= e.cfg.DrawdownKillPct {
		return e.reject(domain.ReasonDrawdownKillSwitch, fmt.Sprintf("drawdown %.1f%%", dd*100))
	}

	entryCashflow := entryFill.Dollars(cand.Contracts)
	if cand.Structure.Kind == domain.Debit {
		entryCashflow = -entryCashflow
	}

	pos := domain.Position{
		ID:            uuid.New().String(),
		Symbol:        cand.Signal.Symbol,
		Cluster:       cluster,
		Structure:     cand.Structure,
		Contracts:     cand.Contracts,
		EntryCashflow: entryCashflow,
		EntryDate:     asOf,
		Status:        domain.StatusOpen,
	}
	e.pf.OnAdmit(pos)
	e.admitted++

	return Decision{Admitted: true, Position: pos}
}

func (e *Engine) reject(reason domain.RejectReason, detail string) Decision {
	e.rejected[reason]++
	return Decision{Reason: reason, Detail: detail}
}
