package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"main/internal/chaos"
	"main/internal/engine"
	"main/internal/exchange"
	"main/internal/mdg"
	"main/internal/replay"
	"main/internal/schema"
	"main/internal/store"
	"main/internal/strategy"
)

// Source kinds selectable in the config file.
const (
	SourceReplay    = "replay"
	SourceSynthetic = "synthetic"
	SourceWAL       = "wal"
	SourceLive      = "live"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Symbols    []SymbolConfig    `json:"symbols"`
	Engine     EngineConfig      `json:"engine"`
	Exchange   exchange.Config   `json:"exchange"`
	Strategies []strategy.Config `json:"strategies"`
	Source     SourceConfig      `json:"source"`
	Recorder   RecorderConfig    `json:"recorder"`
	Store      StoreConfig       `json:"store"`
	Live       LiveConfig        `json:"live"`
}

// SymbolConfig describes a symbol entry.
type SymbolConfig struct {
	Name       string           `json:"name"`
	BaseAsset  string           `json:"baseAsset"`
	QuoteAsset string           `json:"quoteAsset"`
	FeeRateBps int64            `json:"feeRateBps"`
	Scale      schema.ScaleSpec `json:"scale"`
}

// EngineConfig selects the failure policy and tap sizing.
type EngineConfig struct {
	Policy      string `json:"policy"`
	TapCapacity int    `json:"tapCapacity"`
}

// SourceConfig selects and parameterizes the input stream.
type SourceConfig struct {
	Kind      string          `json:"kind"`
	Replay    replay.Config   `json:"replay"`
	Synthetic mdg.Config      `json:"synthetic"`
	WAL       WALSourceConfig `json:"wal"`
	Chaos     ChaosConfig     `json:"chaos"`
}

// ChaosConfig optionally wraps the source with fault injection.
type ChaosConfig struct {
	Enabled bool `json:"enabled"`
	chaos.Config
}

// WALSourceConfig points a run at a previously recorded one.
type WALSourceConfig struct {
	Dir        string `json:"dir"`
	FilePrefix string `json:"filePrefix"`
}

// RecorderConfig controls WAL recording of delivered messages.
type RecorderConfig struct {
	Enabled            bool          `json:"enabled"`
	Dir                string        `json:"dir"`
	FilePrefix         string        `json:"filePrefix"`
	SegmentMaxBytes    int64         `json:"segmentMaxBytes"`
	SegmentMaxDuration time.Duration `json:"segmentMaxDuration"`
	FlushInterval      time.Duration `json:"flushInterval"`
	SyncInterval       time.Duration `json:"syncInterval"`
}

// StoreConfig controls fill and summary persistence.
type StoreConfig struct {
	Enabled bool `json:"enabled"`
	store.Config
}

// LiveConfig parameterizes the live feed adapter.
type LiveConfig struct {
	Endpoint  string `json:"endpoint"`
	Symbol    string `json:"symbol"`
	QueueSize int    `json:"queueSize"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Registry   *schema.Registry
	Engine     engine.Config
	Tap        int
	Exchange   exchange.Config
	Strategies []strategy.Config
	Source     SourceConfig
	Recorder   RecorderConfig
	Store      StoreConfig
	Live       LiveConfig
}

// Load reads a JSON config file, builds the registry and resolves every
// symbol reference.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}
	return Resolve(cfg)
}

// Resolve validates a parsed config and binds symbol names to IDs.
func Resolve(cfg FileConfig) (Loaded, error) {
	registry, err := buildRegistry(cfg.Symbols)
	if err != nil {
		return Loaded{}, err
	}

	engineCfg, err := resolveEngine(cfg.Engine)
	if err != nil {
		return Loaded{}, err
	}

	if err := cfg.Exchange.Validate(); err != nil {
		return Loaded{}, err
	}

	strategies := make([]strategy.Config, 0, len(cfg.Strategies))
	for i, sc := range cfg.Strategies {
		if err := sc.Validate(); err != nil {
			return Loaded{}, fmt.Errorf("strategy %d: %w", i, err)
		}
		id, ok := registry.SymbolIDByName(sc.Symbol)
		if !ok {
			return Loaded{}, fmt.Errorf("strategy %d: symbol not found: %s", i, sc.Symbol)
		}
		sc.SymbolID = id
		strategies = append(strategies, sc)
	}

	if err := validateSource(cfg.Source, cfg.Live); err != nil {
		return Loaded{}, err
	}

	tap := cfg.Engine.TapCapacity
	if tap <= 0 {
		tap = 4096
	}

	return Loaded{
		Registry:   registry,
		Engine:     engineCfg,
		Tap:        tap,
		Exchange:   cfg.Exchange,
		Strategies: strategies,
		Source:     cfg.Source,
		Recorder:   cfg.Recorder,
		Store:      cfg.Store,
		Live:       cfg.Live,
	}, nil
}

func buildRegistry(symbols []SymbolConfig) (*schema.Registry, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols configured")
	}
	reg := schema.NewRegistry()
	for _, sym := range symbols {
		if err := validateScale(sym.Scale); err != nil {
			return nil, fmt.Errorf("invalid scale for %s: %w", sym.Name, err)
		}
		if _, err := reg.AddSymbol(sym.Name, sym.BaseAsset, sym.QuoteAsset, sym.FeeRateBps, sym.Scale); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func validateScale(scale schema.ScaleSpec) error {
	if scale.PriceScale < 0 || scale.QuantityScale < 0 {
		return fmt.Errorf("scale must be >= 0")
	}
	return nil
}

func resolveEngine(cfg EngineConfig) (engine.Config, error) {
	switch cfg.Policy {
	case "", "fail_fast":
		return engine.Config{Policy: engine.FailFast}, nil
	case "best_effort":
		return engine.Config{Policy: engine.BestEffort}, nil
	default:
		return engine.Config{}, fmt.Errorf("unknown engine policy: %s", cfg.Policy)
	}
}

func validateSource(cfg SourceConfig, live LiveConfig) error {
	switch cfg.Kind {
	case SourceReplay:
		if cfg.Replay.Symbol == "" || len(cfg.Replay.Files) == 0 {
			return fmt.Errorf("replay source needs a symbol and files")
		}
	case SourceSynthetic:
		if cfg.Synthetic.BasePrice <= 0 || cfg.Synthetic.Count <= 0 {
			return fmt.Errorf("synthetic source needs basePrice and count")
		}
	case SourceWAL:
		if cfg.WAL.Dir == "" {
			return fmt.Errorf("wal source needs a dir")
		}
	case SourceLive:
		if live.Endpoint == "" || live.Symbol == "" {
			return fmt.Errorf("live source needs an endpoint and symbol")
		}
	case "":
		return fmt.Errorf("source kind is empty")
	default:
		return fmt.Errorf("unknown source kind: %s", cfg.Kind)
	}
	if cfg.Chaos.Enabled {
		if cfg.Kind == SourceLive {
			return fmt.Errorf("chaos injection only applies to offline sources")
		}
		if err := cfg.Chaos.Config.Validate(); err != nil {
			return fmt.Errorf("chaos: %w", err)
		}
	}
	return nil
}
