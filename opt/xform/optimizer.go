package xform

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/redact"
	"github.com/petermattis/cascades/opt"
	"github.com/petermattis/cascades/opt/rules"
	"github.com/petermattis/cascades/util"
	"github.com/sirupsen/logrus"
)

// ErrNoPlan is the mark carried by errors for queries that have no physical
// implementation satisfying the required properties, typically because an
// implementation rule was disabled.
var ErrNoPlan = errors.New("no physical plan")

// compilations numbers Optimize calls for log tags.
var compilations int64

type phase uint8

const (
	// implementPhase applies the implementation rules to the input tree.
	implementPhase phase = iota
	// explorePhase applies transformation rules in rounds until the memo
	// stops changing or the budget runs out.
	explorePhase
	// completePhase implements the groups that exploration created but did
	// not get to implement before it was truncated.
	completePhase
	// costPhase finds the lowest cost plan for the required properties.
	costPhase
)

var phaseNames = [...]string{
	implementPhase: "implement",
	explorePhase:   "explore",
	completePhase:  "complete",
	costPhase:      "cost",
}

func (p phase) String() string {
	return phaseNames[p]
}

// groupState identifies the optimization of a group for a set of required
// properties.
type groupState struct {
	group    opt.GroupID
	required opt.PhysicalPropsID
}

// Optimizer searches the space of equivalent plans for a logical tree and
// returns the lowest cost physical plan. Plan search is driven by an explicit
// stack of tasks rather than by recursion, so that exploration can be bounded
// and cancelled between any two steps. An Optimizer is used for a single
// compilation and is not safe for concurrent use.
type Optimizer struct {
	md      *opt.Metadata
	mem     *opt.Memo
	rules   *opt.RuleSet
	cfg     Config
	coster  Coster
	log     logrus.FieldLogger
	metrics *Metrics
	ruleCtx opt.RuleContext

	ctx   context.Context
	stack []task
	phase phase
	root  opt.GroupID
	used  bool

	// explored is the set of groups explored in the current round.
	explored util.FastIntSet

	exploreTasks int
	deadline     time.Time
	truncated    bool

	// inProgress holds the (group, required) states that have an
	// optimizeGroupTask below the top of the stack.
	inProgress map[groupState]struct{}
}

// NewOptimizer creates an optimizer over the metadata of one query. A nil
// rule set uses rules.Default(). The rules named in cfg.DisabledRules are
// turned off in a copy of the rule set.
func NewOptimizer(md *opt.Metadata, rs *opt.RuleSet, cfg Config) (*Optimizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rs == nil {
		rs = rules.Default()
	}
	if len(cfg.DisabledRules) > 0 {
		var err error
		if rs, err = rs.WithDisabled(cfg.DisabledRules...); err != nil {
			return nil, err
		}
	}

	o := &Optimizer{
		md:         md,
		mem:        opt.NewMemo(md),
		rules:      rs,
		cfg:        cfg,
		coster:     NewCoster(cfg.Cost, cfg.RequireStats),
		log:        logrus.StandardLogger(),
		inProgress: make(map[groupState]struct{}),
	}
	o.ruleCtx.Memo = o.mem
	o.mem.SetMergeHook(o.onMerge)
	return o, nil
}

// SetCoster replaces the default cost model.
func (o *Optimizer) SetCoster(c Coster) {
	o.coster = c
}

func (o *Optimizer) SetLogger(log logrus.FieldLogger) {
	o.log = log
}

func (o *Optimizer) SetMetrics(m *Metrics) {
	o.metrics = m
}

// Memo returns the memo of the compilation, for inspection after Optimize.
func (o *Optimizer) Memo() *opt.Memo {
	return o.mem
}

// Root returns the group of the root of the input tree.
func (o *Optimizer) Root() opt.GroupID {
	return o.mem.Resolve(o.root)
}

// Truncated returns true if exploration was cut short by the task budget or
// the deadline.
func (o *Optimizer) Truncated() bool {
	return o.truncated
}

// Optimize returns the lowest cost plan for the tree that provides the
// required properties. A nil required means no requirements. Truncated
// exploration is not an error: the best plan of the explored space is
// returned.
func (o *Optimizer) Optimize(
	ctx context.Context, tree *opt.Tree, required *opt.PhysicalProps,
) (_ *Plan, err error) {
	if o.used {
		return nil, errors.New("optimizer cannot be reused")
	}
	o.used = true

	start := time.Now()
	o.ctx = logtags.AddTag(ctx, "opt", atomic.AddInt64(&compilations, 1))
	o.log = o.log.WithFields(tagFields(o.ctx))
	defer func() {
		if r := recover(); r != nil {
			err = opt.CatchOptimizerError(r)
		}
		o.metrics.observeDuration(time.Since(start).Seconds())
	}()

	if required == nil {
		required = &opt.PhysicalProps{}
	}
	if o.root, err = o.mem.MemoizeTree(tree); err != nil {
		return nil, err
	}
	if err := o.checkRequired(required); err != nil {
		return nil, err
	}
	requiredID := o.mem.InternPhysicalProps(required)

	groups := o.mem.Groups()
	for i := len(groups) - 1; i >= 0; i-- {
		o.push(&implementGroupTask{group: groups[i]})
	}
	if err := o.run(implementPhase); err != nil {
		return nil, err
	}
	if err := o.explore(); err != nil {
		return nil, err
	}
	if err := o.complete(); err != nil {
		return nil, err
	}

	root := o.Root()
	o.push(&optimizeGroupTask{group: root, required: requiredID})
	if err := o.run(costPhase); err != nil {
		return nil, err
	}
	if w := o.mem.Winner(root, requiredID); w == nil || !w.Found() {
		return nil, errors.Wrapf(ErrNoPlan, "group %d with required properties %s",
			root, redact.Safe(o.md.FormatPhysicalProps(required)))
	}

	plan := &Plan{Root: o.extractPlan(root, requiredID), md: o.md}
	plan.Cost = plan.Root.Cost
	s := o.mem.Stats()
	o.log.WithFields(logrus.Fields{
		"groups":   s.Groups,
		"logical":  s.LogicalExprs,
		"physical": s.PhysicalExprs,
		"cost":     float64(plan.Cost),
	}).Debug("optimized")
	return plan, nil
}

// checkRequired returns an error if the required properties reference
// columns the query does not produce.
func (o *Optimizer) checkRequired(required *opt.PhysicalProps) error {
	cols := required.Ordering.ColSet().Union(required.Distribution.Cols)
	output := o.mem.GroupLogicalProps(o.root).OutputCols
	if missing := cols.Difference(output); !missing.Empty() {
		return errors.Mark(
			errors.Newf("required properties reference unknown column(s) %s", redact.Safe(missing.String())),
			opt.ErrUnresolvedColumn,
		)
	}
	return nil
}

// explore runs exploration rounds from the root until a round leaves the
// memo unchanged.
func (o *Optimizer) explore() error {
	if o.cfg.MaxExploreTasks == OptimizeNone {
		o.log.Debug("exploration disabled")
		return nil
	}
	if o.cfg.ExploreTimeout > 0 {
		o.deadline = time.Now().Add(o.cfg.ExploreTimeout)
	}
	for round := 1; ; round++ {
		version := o.mem.Version()
		o.explored = util.FastIntSet{}
		o.push(&exploreGroupTask{group: o.Root()})
		if err := o.run(explorePhase); err != nil {
			return err
		}
		if o.truncated {
			return nil
		}
		if o.mem.Version() == version {
			o.log.Debugf("exploration complete after %d rounds", round)
			return nil
		}
	}
}

// complete implements every group that has no physical member yet.
func (o *Optimizer) complete() error {
	groups := o.mem.Groups()
	for i := len(groups) - 1; i >= 0; i-- {
		if !o.hasPhysical(groups[i]) {
			o.push(&implementGroupTask{group: groups[i]})
		}
	}
	return o.run(completePhase)
}

func (o *Optimizer) hasPhysical(g opt.GroupID) bool {
	for _, id := range o.mem.GroupExprs(g) {
		if o.mem.ExprOp(id).IsPhysical() {
			return true
		}
	}
	return false
}

// run pops and performs tasks until the stack is empty. Exploration stops
// early when its budget or deadline is exhausted.
func (o *Optimizer) run(p phase) error {
	o.phase = p
	o.log.Debugf("%s phase", p)
	for len(o.stack) > 0 {
		if err := o.ctx.Err(); err != nil {
			return errors.Wrapf(err, "%s phase", redact.Safe(p.String()))
		}
		if p == explorePhase && o.exploreExhausted() {
			o.truncate()
			return nil
		}

		t := o.stack[len(o.stack)-1]
		o.stack = o.stack[:len(o.stack)-1]
		if p == explorePhase {
			o.exploreTasks++
		}
		o.metrics.taskExecuted(p)
		t.perform(o)
	}
	return nil
}

func (o *Optimizer) exploreExhausted() bool {
	if o.exploreTasks >= o.cfg.MaxExploreTasks {
		return true
	}
	return !o.deadline.IsZero() && !time.Now().Before(o.deadline)
}

func (o *Optimizer) truncate() {
	o.stack = o.stack[:0]
	o.truncated = true
	o.metrics.truncated()
	o.log.WithField("tasks", o.exploreTasks).Info("exploration truncated")
}

func (o *Optimizer) push(t task) {
	o.stack = append(o.stack, t)
}

func (o *Optimizer) onMerge(survivor, victim opt.GroupID) {
	o.metrics.groupMerged()
	o.log.Debugf("merged group %d into group %d", victim, survivor)
}

// computeCost returns the cost of the candidate's own work. Coster errors
// abort the compilation.
func (o *Optimizer) computeCost(in *CostInput) opt.Cost {
	cost, err := o.coster.ComputeCost(in)
	if err != nil {
		panic(errors.Wrapf(err, "costing %s", in.Op))
	}
	return cost
}

func tagFields(ctx context.Context) logrus.Fields {
	fields := logrus.Fields{}
	if tags := logtags.FromContext(ctx); tags != nil {
		for _, tag := range tags.Get() {
			fields[tag.Key()] = tag.ValueStr()
		}
	}
	return fields
}
