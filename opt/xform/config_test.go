package xform

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader(""))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)

	cfg, err = LoadConfig(strings.NewReader(`
max_explore_tasks: 500
explore_timeout: 100ms
disabled_rules: [JoinAssociativity]
cost:
  sort_row_cost: 1.5
`))
	require.NoError(t, err)
	require.Equal(t, 500, cfg.MaxExploreTasks)
	require.Equal(t, 100*time.Millisecond, cfg.ExploreTimeout)
	require.Equal(t, []string{"JoinAssociativity"}, cfg.DisabledRules)
	require.Equal(t, 1.5, cfg.Cost.SortRowCost)

	// Unset cost constants keep their defaults.
	require.Equal(t, DefaultCostConfig().HashBuildRowCost, cfg.Cost.HashBuildRowCost)
}

func TestLoadConfigErrors(t *testing.T) {
	testCases := []struct {
		input string
		err   string
	}{
		{"max_explore_task: 5", "field max_explore_task not found"},
		{"max_explore_tasks: -1", "max_explore_tasks must not be negative"},
		{"explore_timeout: -1s", "explore_timeout must not be negative"},
		{"cost: {scan_row_cost: -2}", "cost constants must not be negative"},
	}
	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			_, err := LoadConfig(strings.NewReader(tc.input))
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.err)
		})
	}
}

func TestNewOptimizerValidatesConfig(t *testing.T) {
	md, _ := joinQuery(t, 1, false)
	cfg := DefaultConfig()
	cfg.MaxExploreTasks = -1
	_, err := NewOptimizer(md, nil, cfg)
	require.Error(t, err)
}
