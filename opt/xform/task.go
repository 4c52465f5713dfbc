package xform

import (
	"github.com/petermattis/cascades/opt"
	"github.com/sirupsen/logrus"
)

// task is one unit of plan search work. Tasks are pushed onto the
// optimizer's stack and popped in LIFO order, so a task that must run after
// its dependencies pushes itself back before pushing them.
type task interface {
	perform(o *Optimizer)
}

// pushRules schedules the given rules against an expression so that they run
// in registration order.
func (o *Optimizer) pushRules(id opt.ExprID, rules []int) {
	for i := len(rules) - 1; i >= 0; i-- {
		o.push(&applyRuleTask{expr: id, rule: rules[i]})
	}
}

// logicalMembers returns a copy of the logical members of a group, so that
// insertions made while the tasks run do not disturb the iteration.
func (o *Optimizer) logicalMembers(g opt.GroupID) []opt.ExprID {
	var res []opt.ExprID
	for _, id := range o.mem.GroupExprs(g) {
		if o.mem.ExprOp(id).IsLogical() {
			res = append(res, id)
		}
	}
	return res
}

// implementGroupTask applies the implementation rules to every logical
// member of a group.
type implementGroupTask struct {
	group opt.GroupID
}

func (t *implementGroupTask) perform(o *Optimizer) {
	members := o.logicalMembers(t.group)
	for i := len(members) - 1; i >= 0; i-- {
		o.pushRules(members[i], o.rules.ImplementationRules(o.mem.ExprOp(members[i])))
	}
}

// exploreGroupTask optimizes every logical member of a group, once per
// exploration round.
type exploreGroupTask struct {
	group opt.GroupID
}

func (t *exploreGroupTask) perform(o *Optimizer) {
	g := o.mem.Resolve(t.group)
	if o.explored.Contains(int(g)) {
		return
	}
	o.explored.Add(int(g))

	members := o.logicalMembers(g)
	for i := len(members) - 1; i >= 0; i-- {
		o.push(&optimizeExprTask{expr: members[i]})
	}
}

// optimizeExprTask explores the child groups of a logical expression, then
// applies the transformation rules and then the implementation rules that
// match it.
type optimizeExprTask struct {
	expr opt.ExprID
}

func (t *optimizeExprTask) perform(o *Optimizer) {
	if o.mem.IsAbsorbed(t.expr) {
		return
	}
	e := o.mem.Expr(t.expr)
	o.pushRules(t.expr, o.rules.ImplementationRules(e.Op))
	o.pushRules(t.expr, o.rules.TransformationRules(e.Op))
	for i := len(e.Children) - 1; i >= 0; i-- {
		o.push(&exploreGroupTask{group: e.Children[i]})
	}
}

// applyRuleTask binds a rule's pattern to an expression and inserts the
// expressions the rule produces into the expression's group.
type applyRuleTask struct {
	expr opt.ExprID
	rule int
}

func (t *applyRuleTask) perform(o *Optimizer) {
	if o.mem.IsAbsorbed(t.expr) {
		return
	}
	r := o.rules.Rule(t.rule)

	// A leaf-only pattern binds an expression exactly once, so it never has
	// to be applied again until a merge rewrites the expression's children.
	leafOnly := r.Pattern.LeafOnly()
	if leafOnly {
		if o.mem.RuleApplied(t.expr, t.rule) {
			return
		}
		o.mem.MarkRuleApplied(t.expr, t.rule)
	}

	for _, b := range o.mem.Bind(t.expr, r.Pattern) {
		if r.Check != nil && !r.Check(&o.ruleCtx, b) {
			continue
		}
		shapes := r.Apply(&o.ruleCtx, b)
		o.metrics.ruleApplied(r.Name)
		for i := range shapes {
			s := &shapes[i]
			if err := r.ValidateShape(s); err != nil {
				panic(err)
			}
			id, added := o.mem.InsertInto(b.Group, s.Op, s.Private, s.Children...)
			if !added {
				continue
			}
			o.log.WithFields(logrus.Fields{
				"rule":  r.Name,
				"group": o.mem.ExprGroup(id),
			}).Debugf("added %s", o.mem.FormatExpr(id))
			if s.Op.IsLogical() && o.phase == explorePhase {
				o.push(&optimizeExprTask{expr: id})
			}
		}
	}
}

// optimizeGroupTask costs every physical member of a group and the enforcers
// that can provide the required properties, and records the cheapest as the
// group's winner.
type optimizeGroupTask struct {
	group    opt.GroupID
	required opt.PhysicalPropsID
}

func (t *optimizeGroupTask) perform(o *Optimizer) {
	state := groupState{group: o.mem.Resolve(t.group), required: t.required}
	if w := o.mem.Winner(state.group, state.required); w != nil && w.Optimized {
		return
	}
	if _, ok := o.inProgress[state]; ok {
		return
	}
	o.inProgress[state] = struct{}{}
	o.mem.EnsureWinner(state.group, state.required)

	o.push(&finishGroupTask{state: state})
	o.push(&enforceTask{group: state.group, required: state.required})
	exprs := o.mem.GroupExprs(state.group)
	for i := len(exprs) - 1; i >= 0; i-- {
		if o.mem.ExprOp(exprs[i]).IsPhysical() {
			o.push(&optimizeInputsTask{expr: exprs[i], required: state.required})
		}
	}
}

// finishGroupTask marks a group as optimized for the required properties
// once all of its candidates have been costed.
type finishGroupTask struct {
	state groupState
}

func (t *finishGroupTask) perform(o *Optimizer) {
	w := o.mem.EnsureWinner(t.state.group, t.state.required)
	w.Optimized = true
	delete(o.inProgress, t.state)

	if w.Found() {
		o.log.WithField("group", t.state.group).Debugf("winner for %s: cost %.2f",
			o.md.FormatPhysicalProps(o.mem.LookupPhysicalProps(t.state.required)), w.Cost)
	}
}

// isInProgress returns true if the group is being optimized for the
// required properties further down the stack. Such a state is unavailable
// to nested requests.
func (o *Optimizer) isInProgress(g opt.GroupID, required opt.PhysicalPropsID) bool {
	_, ok := o.inProgress[groupState{group: o.mem.Resolve(g), required: required}]
	return ok
}

// awaitWinner returns the winner of a group for the required properties if
// the group has been optimized for them. Otherwise it schedules t to run
// again after the group is optimized, and returns nil. A task that already
// waited once, or whose dependency is in progress, gets nil and must give
// up.
func (o *Optimizer) awaitWinner(
	t task, waiting *bool, g opt.GroupID, required opt.PhysicalPropsID,
) (w *opt.Winner, retry bool) {
	if cur := o.mem.Winner(g, required); cur != nil && cur.Optimized {
		*waiting = false
		return cur, false
	}
	if *waiting || o.isInProgress(g, required) {
		return nil, false
	}
	*waiting = true
	o.push(t)
	o.push(&optimizeGroupTask{group: g, required: required})
	return nil, true
}

// optimizeInputsTask costs a physical expression for the required
// properties: it optimizes each child group for the properties the
// expression requires of it, then ratchets the expression's total cost into
// the group's winner.
type optimizeInputsTask struct {
	expr     opt.ExprID
	required opt.PhysicalPropsID

	// childProps holds the properties required of each child. It is nil
	// until the task first runs.
	childProps []opt.PhysicalPropsID
	child      int
	waiting    bool
}

func (t *optimizeInputsTask) perform(o *Optimizer) {
	e := o.mem.Expr(t.expr)
	required := o.mem.LookupPhysicalProps(t.required)
	if t.childProps == nil {
		if !canProvide(o.md, &e, required) {
			return
		}
		t.childProps = make([]opt.PhysicalPropsID, len(e.Children))
		for i := range e.Children {
			props := childRequired(&e, required, i)
			t.childProps[i] = o.mem.InternPhysicalProps(&props)
		}
	}

	for ; t.child < len(e.Children); t.child++ {
		w, retry := o.awaitWinner(t, &t.waiting, e.Children[t.child], t.childProps[t.child])
		if retry || w == nil || !w.Found() {
			return
		}
	}

	g := o.mem.Resolve(e.Group)
	in := CostInput{
		Op:       e.Op,
		Private:  e.Private,
		Group:    g,
		Required: required,
		Stats:    o.mem.GroupLogicalProps(g).Stats,
	}
	var inputCost opt.Cost
	for i, c := range e.Children {
		w := o.mem.Winner(c, t.childProps[i])
		in.ChildStats = append(in.ChildStats, o.mem.GroupLogicalProps(c).Stats)
		in.ChildCosts = append(in.ChildCosts, w.Cost)
		inputCost += w.Cost
	}

	candidate := opt.Winner{
		Expr:       t.expr,
		ChildProps: t.childProps,
		Cost:       o.computeCost(&in) + inputCost,
	}
	o.mem.RatchetWinner(g, t.required, &candidate)
}

// enforceTask costs an enforcer for the required properties: the group is
// optimized for the required properties minus the one the enforcer adds, and
// the enforcer is wrapped around that winner.
type enforceTask struct {
	group    opt.GroupID
	required opt.PhysicalPropsID
	waiting  bool
}

func (t *enforceTask) perform(o *Optimizer) {
	required := o.mem.LookupPhysicalProps(t.required)
	op, input := enforcerFor(required)
	if op == opt.UnknownOp {
		return
	}
	inputID := o.mem.InternPhysicalProps(&input)

	w, retry := o.awaitWinner(t, &t.waiting, t.group, inputID)
	if retry || w == nil || !w.Found() {
		return
	}
	inputCost := w.Cost

	stats := o.mem.GroupLogicalProps(t.group).Stats
	in := CostInput{
		Op:         op,
		Group:      t.group,
		Required:   required,
		Stats:      stats,
		ChildStats: []opt.Statistics{stats},
		ChildCosts: []opt.Cost{inputCost},
	}
	candidate := opt.Winner{
		Enforcer:   op,
		ChildProps: []opt.PhysicalPropsID{inputID},
		Cost:       o.computeCost(&in) + inputCost,
	}
	o.mem.RatchetWinner(t.group, t.required, &candidate)
}
