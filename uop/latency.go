package uop

import (
	"encoding/json"
	"fmt"
	"os"
)

// LatencyConfig holds per-FU execution latencies. Values are deliberately
// conservative defaults for an "aggressive modern implementation" per
// spec §1; callers of the library may override them without touching the
// fixed port/FU wiring.
type LatencyConfig struct {
	// ALU is the latency of single-cycle ALU operations.
	ALU uint64 `json:"alu_latency"`
	// Branch is the resolution latency of a branch FU, excluding any
	// misprediction-recovery flush cost (which is a fixed flush, not a
	// latency — spec models misprediction as a flush at commit, §4.8).
	Branch uint64 `json:"branch_latency"`
	// Load is the latency added on top of the memory manager's own
	// LD_LATENCY (spec §4.2); this is the FU's own issue-to-ready delay.
	Load uint64 `json:"load_latency"`
	// Store is the FU's issue-to-ready delay for the store AGU/ST pipe.
	Store uint64 `json:"store_latency"`
	// Multiply is the latency of the integer multiply FU.
	Multiply uint64 `json:"multiply_latency"`
	// DivideMin/DivideMax bound the data-dependent divide latency; the
	// table currently always charges DivideMax (data-dependent early-out
	// is not modeled, see DESIGN.md).
	DivideMin uint64 `json:"divide_latency_min"`
	DivideMax uint64 `json:"divide_latency_max"`
}

// DefaultLatencyConfig returns the baseline latency table.
func DefaultLatencyConfig() LatencyConfig {
	return LatencyConfig{
		ALU:       1,
		Branch:    1,
		Load:      4,
		Store:     1,
		Multiply:  3,
		DivideMin: 10,
		DivideMax: 15,
	}
}

// LoadLatencyConfig reads a LatencyConfig from a JSON file, starting from
// DefaultLatencyConfig so omitted fields keep their defaults.
func LoadLatencyConfig(path string) (*LatencyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read latency config: %w", err)
	}
	cfg := DefaultLatencyConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse latency config: %w", err)
	}
	return &cfg, nil
}

// Validate checks that all latencies are sane (nonzero, min <= max).
func (c *LatencyConfig) Validate() error {
	if c.ALU == 0 || c.Branch == 0 || c.Load == 0 || c.Store == 0 {
		return fmt.Errorf("latency config: ALU/Branch/Load/Store must be > 0")
	}
	if c.DivideMin > c.DivideMax {
		return fmt.Errorf("latency config: divide_latency_min must be <= divide_latency_max")
	}
	return nil
}
