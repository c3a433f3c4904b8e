package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del bot de señales.
type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	API       APIConfig       `yaml:"api"`
	Estimator EstimatorConfig `yaml:"estimator"`
	Storage   StorageConfig   `yaml:"storage"`
	Log       LogConfig       `yaml:"log"`
}

// EngineConfig controla el ciclo de análisis.
type EngineConfig struct {
	IntervalSeconds  int     `yaml:"interval_seconds"`
	Workers          int     `yaml:"workers"`            // 0 = NumCPU*2
	BreakerThreshold int     `yaml:"breaker_threshold"`  // fallos consecutivos antes de abrir
	BreakerCooldownS int     `yaml:"breaker_cooldown_s"` // segundos con el breaker abierto
	HistoryCap       int     `yaml:"history_cap"`        // ciclos retenidos en memoria
	PollSeconds      int     `yaml:"poll_seconds"`       // polling de order books
	FreshnessSeconds int     `yaml:"freshness_seconds"`  // edad máxima de una quote cacheada
	AnalysisTTLMin   int     `yaml:"analysis_ttl_min"`   // TTL del cache de análisis
	MaxPriceDelta    float64 `yaml:"max_price_delta"`    // % de movimiento que invalida el análisis
	Slippage         float64 `yaml:"slippage"`
}

// APIConfig contiene los base URLs de las APIs de Polymarket.
type APIConfig struct {
	CLOBBase  string `yaml:"clob_base"`
	GammaBase string `yaml:"gamma_base"`
}

// EstimatorConfig apunta al servicio externo de estimación de probabilidad.
type EstimatorConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
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

	return &cfg, nil
}

// CycleInterval devuelve el intervalo entre ciclos como time.Duration.
func (c *Config) CycleInterval() time.Duration {
	return time.Duration(c.Engine.IntervalSeconds) * time.Second
}

// BreakerCooldown devuelve el cooldown del circuit breaker.
func (c *Config) BreakerCooldown() time.Duration {
	return time.Duration(c.Engine.BreakerCooldownS) * time.Second
}

// PollInterval devuelve el intervalo de polling de order books.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Engine.PollSeconds) * time.Second
}

// QuoteFreshness devuelve la edad máxima de una quote cacheada.
func (c *Config) QuoteFreshness() time.Duration {
	return time.Duration(c.Engine.FreshnessSeconds) * time.Second
}

// AnalysisTTL devuelve el TTL del cache de análisis.
func (c *Config) AnalysisTTL() time.Duration {
	return time.Duration(c.Engine.AnalysisTTLMin) * time.Minute
}

// EstimatorTimeout devuelve el timeout por llamada al estimador.
func (c *Config) EstimatorTimeout() time.Duration {
	return time.Duration(c.Estimator.TimeoutSeconds) * time.Second
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("ESTIMATOR_URL"); v != "" {
		cfg.Estimator.BaseURL = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Engine.IntervalSeconds <= 0 {
		cfg.Engine.IntervalSeconds = 120
	}
	if cfg.Engine.BreakerThreshold <= 0 {
		cfg.Engine.BreakerThreshold = 3
	}
	if cfg.Engine.BreakerCooldownS <= 0 {
		cfg.Engine.BreakerCooldownS = 120
	}
	if cfg.Engine.HistoryCap <= 0 {
		cfg.Engine.HistoryCap = 200
	}
	if cfg.Engine.PollSeconds <= 0 {
		cfg.Engine.PollSeconds = 4
	}
	if cfg.Engine.FreshnessSeconds <= 0 {
		cfg.Engine.FreshnessSeconds = 12
	}
	if cfg.Engine.AnalysisTTLMin <= 0 {
		cfg.Engine.AnalysisTTLMin = 30
	}
	if cfg.Engine.MaxPriceDelta <= 0 {
		cfg.Engine.MaxPriceDelta = 0.05
	}
	if cfg.Engine.Slippage <= 0 {
		cfg.Engine.Slippage = 0.005
	}
	if cfg.API.CLOBBase == "" {
		cfg.API.CLOBBase = "https://clob.polymarket.com"
	}
	if cfg.API.GammaBase == "" {
		cfg.API.GammaBase = "https://gamma-api.polymarket.com"
	}
	if cfg.Estimator.TimeoutSeconds <= 0 {
		cfg.Estimator.TimeoutSeconds = 25
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "edgebot.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
