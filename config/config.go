package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del backtest. Todos los umbrales
// de riesgo y salida viven aquí: el core no fija ninguno por su cuenta.
type Config struct {
	Account  AccountConfig  `yaml:"account"`
	Market   MarketConfig   `yaml:"market"`
	Risk     RiskConfig     `yaml:"risk"`
	Exits    ExitsConfig    `yaml:"exits"`
	Fills    FillsConfig    `yaml:"fills"`
	Backtest BacktestConfig `yaml:"backtest"`
	Data     DataConfig     `yaml:"data"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
}

// AccountConfig define la cuenta simulada.
type AccountConfig struct {
	InitialEquity float64 `yaml:"initial_equity"`
}

// MarketConfig controla la construcción de estructuras.
type MarketConfig struct {
	StrikeIncrements map[string]float64 `yaml:"strike_increments"` // símbolo → incremento de strike
	DividendYields   map[string]float64 `yaml:"dividend_yields"`   // símbolo → yield continuo
	RiskFreeRate     float64            `yaml:"risk_free_rate"`
	WidthPoints      float64            `yaml:"width_points"`
	OTMOffsetPct     float64            `yaml:"otm_offset_pct"`
	MinDTE           int                `yaml:"min_dte"`
	MaxDTE           int                `yaml:"max_dte"`
	TargetDTE        int                `yaml:"target_dte"`
	CondorRegime     string             `yaml:"condor_regime"`
	TradeStrength    float64            `yaml:"trade_strength"`
	ReviewStrength   float64            `yaml:"review_strength"`
}

// RiskConfig son los límites de admisión.
type RiskConfig struct {
	RiskPerTradePct   float64             `yaml:"risk_per_trade_pct"`
	MaxTotalRiskPct   float64             `yaml:"max_total_risk_pct"`
	MaxOpenPositions  int                 `yaml:"max_open_positions"`
	Clusters          map[string][]string `yaml:"clusters"` // cluster → símbolos
	ClusterCaps       map[string]int      `yaml:"cluster_caps"`
	DefaultClusterCap int                 `yaml:"default_cluster_cap"`
	DrawdownKillPct   float64             `yaml:"drawdown_kill_pct"`
}

// ExitsConfig controla las reglas de cierre.
type ExitsConfig struct {
	TakeProfitPct float64 `yaml:"take_profit_pct"`
	StopLossMult  float64 `yaml:"stop_loss_mult"` // múltiplo del crédito (estructuras de crédito)
	StopLossPct   float64 `yaml:"stop_loss_pct"`  // fracción del débito (estructuras de débito)
	TimeStopDTE   int     `yaml:"time_stop_dte"`
}

// FillsConfig controla el modelo de ejecución.
type FillsConfig struct {
	Policy         string  `yaml:"policy"` // conservative | mid
	SlippagePerLeg float64 `yaml:"slippage_per_leg"`
}

// BacktestConfig define el rango del replay y la integridad del dataset.
type BacktestConfig struct {
	Start          string  `yaml:"start"` // YYYY-MM-DD
	End            string  `yaml:"end"`
	MinCoveragePct float64 `yaml:"min_coverage_pct"`
}

// DataConfig controla de dónde salen los snapshots y señales.
type DataConfig struct {
	Source  string `yaml:"source"` // files | http
	Root    string `yaml:"root"`   // directorio para source=files
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// StorageConfig controla dónde se persiste el ledger de runs.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o "" para no persistir
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// Range devuelve el rango del backtest como fechas ya parseadas.
func (c *Config) Range() (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02", c.Backtest.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("config.Range: start %q: %w", c.Backtest.Start, err)
	}
	end, err := time.Parse("2006-01-02", c.Backtest.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("config.Range: end %q: %w", c.Backtest.End, err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("config.Range: end %s anterior a start %s",
			c.Backtest.End, c.Backtest.Start)
	}
	return start, end, nil
}

// Validate rechaza configuraciones incoherentes antes de arrancar.
func (c *Config) Validate() error {
	if c.Account.InitialEquity <= 0 {
		return fmt.Errorf("account.initial_equity debe ser positivo")
	}
	if c.Risk.RiskPerTradePct <= 0 || c.Risk.RiskPerTradePct > 1 {
		return fmt.Errorf("risk.risk_per_trade_pct fuera de (0, 1]: %.3f", c.Risk.RiskPerTradePct)
	}
	if c.Risk.MaxTotalRiskPct <= 0 || c.Risk.MaxTotalRiskPct > 1 {
		return fmt.Errorf("risk.max_total_risk_pct fuera de (0, 1]: %.3f", c.Risk.MaxTotalRiskPct)
	}
	if c.Exits.TakeProfitPct <= 0 || c.Exits.TakeProfitPct > 1 {
		return fmt.Errorf("exits.take_profit_pct fuera de (0, 1]: %.3f", c.Exits.TakeProfitPct)
	}
	if c.Fills.Policy != "conservative" && c.Fills.Policy != "mid" {
		return fmt.Errorf("fills.policy desconocida: %q", c.Fills.Policy)
	}
	if c.Data.Source != "files" && c.Data.Source != "http" {
		return fmt.Errorf("data.source desconocido: %q", c.Data.Source)
	}
	if c.Data.Source == "http" && c.Data.BaseURL == "" {
		return fmt.Errorf("data.base_url requerido con source=http")
	}
	if _, _, err := c.Range(); err != nil {
		return err
	}
	return nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("VOLBOT_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("VOLBOT_DATA_ROOT"); v != "" {
		cfg.Data.Root = v
	}
	if v := os.Getenv("VOLBOT_API_KEY"); v != "" {
		cfg.Data.APIKey = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Account.InitialEquity <= 0 {
		cfg.Account.InitialEquity = 25000
	}
	if cfg.Market.RiskFreeRate == 0 {
		cfg.Market.RiskFreeRate = 0.045
	}
	if cfg.Market.WidthPoints <= 0 {
		cfg.Market.WidthPoints = 5
	}
	if cfg.Market.OTMOffsetPct <= 0 {
		cfg.Market.OTMOffsetPct = 0.03
	}
	if cfg.Market.MinDTE <= 0 {
		cfg.Market.MinDTE = 7
	}
	if cfg.Market.MaxDTE <= 0 {
		cfg.Market.MaxDTE = 60
	}
	if cfg.Market.TargetDTE <= 0 {
		cfg.Market.TargetDTE = 30
	}
	if cfg.Market.CondorRegime == "" {
		cfg.Market.CondorRegime = "range_bound"
	}
	if cfg.Market.TradeStrength <= 0 {
		cfg.Market.TradeStrength = 1.0
	}
	if cfg.Market.ReviewStrength <= 0 {
		cfg.Market.ReviewStrength = 0.5
	}
	if cfg.Risk.RiskPerTradePct <= 0 {
		cfg.Risk.RiskPerTradePct = 0.02
	}
	if cfg.Risk.MaxTotalRiskPct <= 0 {
		cfg.Risk.MaxTotalRiskPct = 0.10
	}
	if cfg.Risk.MaxOpenPositions <= 0 {
		cfg.Risk.MaxOpenPositions = 5
	}
	if cfg.Risk.DefaultClusterCap <= 0 {
		cfg.Risk.DefaultClusterCap = 2
	}
	if cfg.Risk.DrawdownKillPct <= 0 {
		cfg.Risk.DrawdownKillPct = 0.15
	}
	if cfg.Exits.TakeProfitPct <= 0 {
		cfg.Exits.TakeProfitPct = 0.50
	}
	if cfg.Exits.StopLossMult <= 0 {
		cfg.Exits.StopLossMult = 2.0
	}
	if cfg.Exits.StopLossPct <= 0 {
		cfg.Exits.StopLossPct = 0.50
	}
	if cfg.Exits.TimeStopDTE <= 0 {
		cfg.Exits.TimeStopDTE = 2
	}
	if cfg.Fills.Policy == "" {
		cfg.Fills.Policy = "conservative"
	}
	if cfg.Backtest.MinCoveragePct <= 0 {
		cfg.Backtest.MinCoveragePct = 0.90
	}
	if cfg.Data.Source == "" {
		cfg.Data.Source = "files"
	}
	if cfg.Data.Root == "" {
		cfg.Data.Root = "data"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
