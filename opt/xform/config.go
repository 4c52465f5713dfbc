package xform

import (
	"io"
	"math"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

const (
	// OptimizeNone disables exploration: only the implementation of the
	// input tree is costed.
	OptimizeNone = 0

	// OptimizeAll runs exploration to a fixed point.
	OptimizeAll = math.MaxInt32
)

// CostConfig holds the per-row constants of the default coster.
type CostConfig struct {
	ScanRowCost      float64 `yaml:"scan_row_cost"`
	FilterRowCost    float64 `yaml:"filter_row_cost"`
	RenderRowCost    float64 `yaml:"render_row_cost"`
	HashBuildRowCost float64 `yaml:"hash_build_row_cost"`
	HashProbeRowCost float64 `yaml:"hash_probe_row_cost"`
	MergeRowCost     float64 `yaml:"merge_row_cost"`
	OutputRowCost    float64 `yaml:"output_row_cost"`
	GroupByRowCost   float64 `yaml:"group_by_row_cost"`
	SortRowCost      float64 `yaml:"sort_row_cost"`
	ExchangeRowCost  float64 `yaml:"exchange_row_cost"`
}

// Config controls plan search.
type Config struct {
	// MaxExploreTasks bounds the number of exploration tasks. OptimizeNone
	// skips exploration and OptimizeAll never truncates it.
	MaxExploreTasks int `yaml:"max_explore_tasks"`

	// ExploreTimeout truncates exploration once it has run this long. Zero
	// means no deadline.
	ExploreTimeout time.Duration `yaml:"explore_timeout"`

	// DisabledRules names rules that are never applied.
	DisabledRules []string `yaml:"disabled_rules"`

	// RequireStats makes costing fail for expressions without statistics.
	RequireStats bool `yaml:"require_stats"`

	Cost CostConfig `yaml:"cost"`
}

// DefaultCostConfig returns the default coster constants.
func DefaultCostConfig() CostConfig {
	return CostConfig{
		ScanRowCost:      1,
		FilterRowCost:    0.1,
		RenderRowCost:    0.1,
		HashBuildRowCost: 2,
		HashProbeRowCost: 1,
		MergeRowCost:     0.5,
		OutputRowCost:    0.1,
		GroupByRowCost:   1.5,
		SortRowCost:      0.25,
		ExchangeRowCost:  0.5,
	}
}

// DefaultConfig returns a configuration that explores exhaustively.
func DefaultConfig() Config {
	return Config{
		MaxExploreTasks: OptimizeAll,
		Cost:            DefaultCostConfig(),
	}
}

// LoadConfig reads a YAML configuration. Settings missing from the input
// keep their default values.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, errors.Wrap(err, "parsing optimizer config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate returns an error for settings that are out of range.
func (c *Config) Validate() error {
	if c.MaxExploreTasks < 0 {
		return errors.Newf("max_explore_tasks must not be negative: %d", c.MaxExploreTasks)
	}
	if c.ExploreTimeout < 0 {
		return errors.Newf("explore_timeout must not be negative: %s", c.ExploreTimeout)
	}
	for _, v := range []float64{
		c.Cost.ScanRowCost, c.Cost.FilterRowCost, c.Cost.RenderRowCost,
		c.Cost.HashBuildRowCost, c.Cost.HashProbeRowCost, c.Cost.MergeRowCost,
		c.Cost.OutputRowCost, c.Cost.GroupByRowCost, c.Cost.SortRowCost,
		c.Cost.ExchangeRowCost,
	} {
		if v < 0 || math.IsNaN(v) {
			return errors.Newf("cost constants must not be negative: %v", v)
		}
	}
	return nil
}
