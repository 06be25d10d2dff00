package main

import (
	"github.com/alejandrodnm/volbot/config"
	"github.com/alejandrodnm/volbot/internal/domain"
	"github.com/alejandrodnm/volbot/internal/risk"
	"github.com/alejandrodnm/volbot/internal/structures"
)

func toDollars(v float64) domain.Dollars { return domain.Dollars(v) }

func toPoints(v float64) domain.Points { return domain.Points(v) }

// builderConfig traduce la sección market del YAML a la configuración
// del builder de estructuras.
func builderConfig(cfg *config.Config) structures.Config {
	bc := structures.DefaultConfig()
	if len(cfg.Market.StrikeIncrements) > 0 {
		bc.StrikeIncrements = cfg.Market.StrikeIncrements
	}
	if len(cfg.Market.DividendYields) > 0 {
		bc.DividendYields = cfg.Market.DividendYields
	}
	bc.RiskFreeRate = cfg.Market.RiskFreeRate
	bc.WidthPoints = cfg.Market.WidthPoints
	bc.OTMOffsetPct = cfg.Market.OTMOffsetPct
	bc.MinDTE = cfg.Market.MinDTE
	bc.MaxDTE = cfg.Market.MaxDTE
	bc.TargetDTE = cfg.Market.TargetDTE
	bc.CondorRegime = cfg.Market.CondorRegime
	bc.TradeStrength = cfg.Market.TradeStrength
	bc.ReviewStrength = cfg.Market.ReviewStrength
	return bc
}

// riskConfig traduce la sección risk del YAML a la configuración del
// engine de admisión.
func riskConfig(cfg *config.Config) risk.Config {
	return risk.Config{
		RiskPerTradePct:   cfg.Risk.RiskPerTradePct,
		MaxTotalRiskPct:   cfg.Risk.MaxTotalRiskPct,
		MaxOpenPositions:  cfg.Risk.MaxOpenPositions,
		Clusters:          cfg.Risk.Clusters,
		ClusterCaps:       cfg.Risk.ClusterCaps,
		DefaultClusterCap: cfg.Risk.DefaultClusterCap,
		DrawdownKillPct:   cfg.Risk.DrawdownKillPct,
	}
}
