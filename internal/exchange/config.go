package exchange

import (
	"fmt"
	"time"

	"main/internal/risk"
	"main/internal/schema"
)

// AllocationPolicy controls how liquidity is split between resting orders
// at the same price level.
type AllocationPolicy uint8

const (
	_alloc_beg AllocationPolicy = iota
	AllocPriceTime
	AllocProRata
	_alloc_end
)

func (p AllocationPolicy) IsAvailable() bool {
	return p > _alloc_beg && p < _alloc_end
}

func (p AllocationPolicy) String() string {
	switch p {
	case AllocPriceTime:
		return "price_time"
	case AllocProRata:
		return "pro_rata"
	default:
		return "unknown"
	}
}

// ParseAllocationPolicy parses the config value for the allocation policy.
// An empty string selects price-time priority.
func ParseAllocationPolicy(s string) (AllocationPolicy, error) {
	switch s {
	case "", "price_time":
		return AllocPriceTime, nil
	case "pro_rata":
		return AllocProRata, nil
	default:
		return 0, fmt.Errorf("unknown allocation policy: %s", s)
	}
}

// Config holds the simulation parameters for the execution venue.
type Config struct {
	AckLatency      time.Duration              `json:"ackLatency"`
	FillLatency     time.Duration              `json:"fillLatency"`
	SlippageBps     int64                      `json:"slippageBps"`
	Allocation      string                     `json:"allocation"`
	InitialBalances map[string]schema.Quantity `json:"initialBalances"`
	Risk            risk.Config                `json:"risk"`
}

// Validate rejects parameters the simulator cannot honor. Both latencies
// must be positive because every output of the venue is a delayed
// publication.
func (c Config) Validate() error {
	if c.AckLatency <= 0 {
		return fmt.Errorf("ack latency must be > 0, got %s", c.AckLatency)
	}
	if c.FillLatency <= 0 {
		return fmt.Errorf("fill latency must be > 0, got %s", c.FillLatency)
	}
	if c.SlippageBps < 0 {
		return fmt.Errorf("slippage must be >= 0, got %d bps", c.SlippageBps)
	}
	if _, err := ParseAllocationPolicy(c.Allocation); err != nil {
		return err
	}
	for asset, balance := range c.InitialBalances {
		if balance < 0 {
			return fmt.Errorf("initial balance for %s must be >= 0, got %d", asset, balance)
		}
	}
	return nil
}
