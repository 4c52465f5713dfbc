package xform

import (
	"bytes"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"github.com/petermattis/cascades/opt"
	"github.com/petermattis/cascades/util/treeprinter"
)

// Plan is the lowest cost physical plan found for a query.
type Plan struct {
	Root *PlanNode
	Cost opt.Cost

	md *opt.Metadata
}

// PlanNode is one operator of a plan. Enforcers appear as nodes whose input
// computes the same group.
type PlanNode struct {
	Op       opt.Operator
	Private  interface{}
	Group    opt.GroupID
	Required opt.PhysicalProps
	Provided opt.PhysicalProps

	// Cost is the cost of the subtree rooted at the node.
	Cost     opt.Cost
	RowCount float64
	Children []*PlanNode
}

// extractPlan builds the plan rooted at the winner of the group for the
// required properties.
func (o *Optimizer) extractPlan(g opt.GroupID, required opt.PhysicalPropsID) *PlanNode {
	w := o.mem.Winner(g, required)
	if w == nil || !w.Found() {
		panic(errors.AssertionFailedf("no winner for group %d with props %d", g, required))
	}

	n := &PlanNode{
		Group:    o.mem.Resolve(g),
		Required: *o.mem.LookupPhysicalProps(required),
		Cost:     w.Cost,
		RowCount: o.mem.GroupLogicalProps(g).Stats.RowCount,
	}
	if w.IsEnforcer() {
		n.Op = w.Enforcer
		n.Children = []*PlanNode{o.extractPlan(g, w.ChildProps[0])}
	} else {
		e := o.mem.Expr(w.Expr)
		n.Op = e.Op
		n.Private = e.Private
		n.Children = make([]*PlanNode, len(e.Children))
		for i, c := range e.Children {
			n.Children[i] = o.extractPlan(c, w.ChildProps[i])
		}
	}
	n.Provided = providedProps(o.md, n.Op, n.Private, &n.Required, n.Children)
	return n
}

// CheckPlan returns an assertion failure if a node of the plan does not
// deliver the properties required of it.
func CheckPlan(p *Plan) error {
	var check func(n *PlanNode) error
	check = func(n *PlanNode) error {
		if !n.Provided.Provides(&n.Required) {
			return errors.AssertionFailedf(
				"%s in group %d provides %s, but %s is required",
				n.Op, n.Group, redact.Safe(n.Provided.String()), redact.Safe(n.Required.String()),
			)
		}
		if n.Op.Arity() != len(n.Children) {
			return errors.AssertionFailedf("%s has %d children", n.Op, len(n.Children))
		}
		for _, c := range n.Children {
			if err := check(c); err != nil {
				return err
			}
		}
		return nil
	}
	return check(p.Root)
}

// Walk calls fn for every node of the plan in pre-order.
func (p *Plan) Walk(fn func(n *PlanNode)) {
	var walk func(n *PlanNode)
	walk = func(n *PlanNode) {
		fn(n)
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(p.Root)
}

// String formats the plan as a tree:
//
//	hash-join t1.k = t2.k [] cost=475.00 rows=200.00
//	 ├── table-scan t1 [] cost=100.00 rows=100.00
//	 └── table-scan t2 [] cost=200.00 rows=200.00
func (p *Plan) String() string {
	tp := treeprinter.New()
	p.format(tp, p.Root)
	return tp.String()
}

func (p *Plan) format(tp *treeprinter.Printer, n *PlanNode) {
	var buf bytes.Buffer
	buf.WriteString(n.Op.String())
	if s := p.md.FormatPrivate(n.Private); s != "" {
		buf.WriteString(" ")
		buf.WriteString(s)
	}
	fmt.Fprintf(&buf, " %s cost=%.2f rows=%.2f", p.md.FormatPhysicalProps(&n.Required), n.Cost, n.RowCount)
	tp.Add(buf.String())
	if len(n.Children) == 0 {
		return
	}
	tp.Enter()
	for _, c := range n.Children {
		p.format(tp, c)
	}
	tp.Exit()
}
