package ops

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"main/internal/engine"
)

const sampleConfig = `{
  "symbols": [
    {
      "name": "BTCUSDT",
      "baseAsset": "BTC",
      "quoteAsset": "USDT",
      "feeRateBps": 10,
      "scale": {"priceScale": 2, "quantityScale": 3}
    }
  ],
  "engine": {"policy": "best_effort", "tapCapacity": 128},
  "exchange": {
    "ackLatency": 1000000,
    "fillLatency": 2000000,
    "slippageBps": 5,
    "allocation": "pro_rata",
    "initialBalances": {"USDT": 1000000}
  },
  "strategies": [
    {
      "symbol": "BTCUSDT",
      "strategyId": 1,
      "spreadBps": 20,
      "quoteQty": 100,
      "requoteInterval": 1000000,
      "maxOrderAge": 10000000
    }
  ],
  "source": {
    "kind": "synthetic",
    "synthetic": {"basePrice": 10000, "count": 100}
  },
  "recorder": {"enabled": true, "dir": "/tmp/wal"}
}`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadResolvesSymbols(t *testing.T) {
	loaded, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if loaded.Registry.SymbolCount() != 1 {
		t.Fatalf("symbol count %d", loaded.Registry.SymbolCount())
	}
	if loaded.Engine.Policy != engine.BestEffort {
		t.Fatalf("policy %v", loaded.Engine.Policy)
	}
	if loaded.Tap != 128 {
		t.Fatalf("tap %d", loaded.Tap)
	}
	if len(loaded.Strategies) != 1 || loaded.Strategies[0].SymbolID != 1 {
		t.Fatalf("strategies %+v", loaded.Strategies)
	}
	if loaded.Exchange.SlippageBps != 5 || loaded.Exchange.Allocation != "pro_rata" {
		t.Fatalf("exchange %+v", loaded.Exchange)
	}
	if !loaded.Recorder.Enabled || loaded.Recorder.Dir != "/tmp/wal" {
		t.Fatalf("recorder %+v", loaded.Recorder)
	}
}

func TestResolveRejections(t *testing.T) {
	base := func() FileConfig {
		var cfg FileConfig
		if err := json.Unmarshal([]byte(sampleConfig), &cfg); err != nil {
			t.Fatalf("parse: %v", err)
		}
		return cfg
	}

	for _, tc := range []struct {
		name   string
		mutate func(*FileConfig)
	}{
		{"no symbols", func(c *FileConfig) { c.Symbols = nil }},
		{"unknown policy", func(c *FileConfig) { c.Engine.Policy = "retry" }},
		{"unknown strategy symbol", func(c *FileConfig) { c.Strategies[0].Symbol = "ETHUSDT" }},
		{"empty source kind", func(c *FileConfig) { c.Source.Kind = "" }},
		{"unknown source kind", func(c *FileConfig) { c.Source.Kind = "random" }},
		{"live without endpoint", func(c *FileConfig) { c.Source.Kind = SourceLive }},
		{"replay without files", func(c *FileConfig) { c.Source.Kind = SourceReplay }},
		{"negative scale", func(c *FileConfig) { c.Symbols[0].Scale.PriceScale = -1 }},
		{"chaos out of range", func(c *FileConfig) {
			c.Source.Chaos.Enabled = true
			c.Source.Chaos.DropRate = 1.5
		}},
		{"chaos on live source", func(c *FileConfig) {
			c.Source.Kind = SourceLive
			c.Live = LiveConfig{Endpoint: "wss://example", Symbol: "BTCUSDT"}
			c.Source.Chaos.Enabled = true
		}},
	} {
		cfg := base()
		tc.mutate(&cfg)
		if _, err := Resolve(cfg); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
