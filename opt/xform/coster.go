package xform

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/petermattis/cascades/opt"
)

// ErrNoStats is the mark carried by costing errors for expressions without
// statistics when statistics are required.
var ErrNoStats = errors.New("statistics unavailable")

// CostInput describes one candidate to the coster: a physical memo
// expression or an enforcer, the properties it must provide, and the
// estimates of its inputs. An enforcer has a single input, its own group.
type CostInput struct {
	Op       opt.Operator
	Private  interface{}
	Group    opt.GroupID
	Required *opt.PhysicalProps

	// Stats are the statistics of the candidate's group.
	Stats opt.Statistics

	// ChildStats and ChildCosts describe the winners chosen for each input.
	ChildStats []opt.Statistics
	ChildCosts []opt.Cost
}

// Coster estimates the cost of an operator. The returned cost covers the
// operator's own work; the optimizer adds the cost of its inputs.
type Coster interface {
	ComputeCost(e *CostInput) (opt.Cost, error)
}

// coster is the default row-count based cost model.
type coster struct {
	cfg          CostConfig
	requireStats bool
}

var _ Coster = &coster{}

// NewCoster returns the default cost model: every operator pays a constant
// per row it reads or produces.
func NewCoster(cfg CostConfig, requireStats bool) Coster {
	return &coster{cfg: cfg, requireStats: requireStats}
}

func (c *coster) ComputeCost(e *CostInput) (opt.Cost, error) {
	if c.requireStats && !e.Stats.Available {
		return 0, errors.Mark(
			errors.Newf("no statistics to cost %s in group %d", e.Op, e.Group), ErrNoStats,
		)
	}

	rows := e.Stats.RowCount
	switch e.Op {
	case opt.TableScanOp:
		return opt.Cost(rows * c.cfg.ScanRowCost), nil

	case opt.FilterOp:
		return opt.Cost(e.ChildStats[0].RowCount * c.cfg.FilterRowCost), nil

	case opt.RenderOp:
		return opt.Cost(rows * c.cfg.RenderRowCost), nil

	case opt.HashJoinOp:
		// The right input is the build side.
		left, right := e.ChildStats[0].RowCount, e.ChildStats[1].RowCount
		return opt.Cost(
			left*c.cfg.HashProbeRowCost + right*c.cfg.HashBuildRowCost + rows*c.cfg.OutputRowCost,
		), nil

	case opt.MergeJoinOp:
		left, right := e.ChildStats[0].RowCount, e.ChildStats[1].RowCount
		return opt.Cost((left+right)*c.cfg.MergeRowCost + rows*c.cfg.OutputRowCost), nil

	case opt.HashGroupByOp:
		return opt.Cost(e.ChildStats[0].RowCount * c.cfg.GroupByRowCost), nil

	case opt.LimitExecOp:
		return opt.Cost(rows * c.cfg.OutputRowCost), nil

	case opt.SortOp:
		return opt.Cost(rows * math.Log2(math.Max(rows, 2)) * c.cfg.SortRowCost), nil

	case opt.ExchangeOp:
		return opt.Cost(rows * c.cfg.ExchangeRowCost), nil
	}
	return 0, errors.AssertionFailedf("cannot cost %s", e.Op)
}
