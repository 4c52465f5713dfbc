package opt

import (
	"bytes"
	"fmt"

	"github.com/emicklei/dot"
	"github.com/petermattis/cascades/util/treeprinter"
)

// FormatPrivate formats an operator private using table aliases and column
// labels. Empty privates format as "".
func (md *Metadata) FormatPrivate(private interface{}) string {
	switch t := private.(type) {
	case nil:
		return ""
	case *ScanPrivate:
		return md.TableAlias(t.Table)
	case Filters:
		if len(t) == 0 {
			return ""
		}
		return md.FormatScalar(t)
	case *ProjectPrivate:
		var buf bytes.Buffer
		buf.WriteString(md.FormatColSet(t.Passthrough))
		for _, item := range t.Items {
			fmt.Fprintf(&buf, " %s:=%s", md.ColumnLabel(item.Col), md.FormatScalar(item.Expr))
		}
		return buf.String()
	case *GroupByPrivate:
		var buf bytes.Buffer
		buf.WriteString(md.FormatColSet(t.GroupingCols))
		for _, agg := range t.Aggs {
			if agg.Arg == 0 {
				fmt.Fprintf(&buf, " %s:=%s()", md.ColumnLabel(agg.Col), agg.Func)
			} else {
				fmt.Fprintf(&buf, " %s:=%s(%s)", md.ColumnLabel(agg.Col), agg.Func, md.ColumnLabel(agg.Arg))
			}
		}
		return buf.String()
	case *LimitPrivate:
		if len(t.Ordering) == 0 {
			return fmt.Sprintf("%d", t.Count)
		}
		return fmt.Sprintf("%d %s", t.Count, md.FormatOrdering(t.Ordering))
	case *MergeJoinPrivate:
		var buf bytes.Buffer
		for i := range t.LeftEq {
			if i > 0 {
				buf.WriteString(",")
			}
			fmt.Fprintf(&buf, "%s=%s", md.ColumnLabel(t.LeftEq[i]), md.ColumnLabel(t.RightEq[i]))
		}
		if len(t.Filters) > 0 {
			fmt.Fprintf(&buf, " [%s]", md.FormatScalar(t.Filters))
		}
		return buf.String()
	}
	return fmt.Sprint(private)
}

// FormatOrdering formats an ordering using column labels, e.g. +a.x,-a.y.
func (md *Metadata) FormatOrdering(o Ordering) string {
	var buf bytes.Buffer
	for i, col := range o {
		if i > 0 {
			buf.WriteString(",")
		}
		if col.Descending() {
			buf.WriteString("-")
		} else {
			buf.WriteString("+")
		}
		buf.WriteString(md.ColumnLabel(col.ID()))
	}
	return buf.String()
}

// FormatPhysicalProps formats physical properties using column labels.
func (md *Metadata) FormatPhysicalProps(p *PhysicalProps) string {
	if !p.Defined() {
		return "[]"
	}
	var buf bytes.Buffer
	buf.WriteString("[")
	if p.Ordering.Defined() {
		fmt.Fprintf(&buf, "ordering: %s", md.FormatOrdering(p.Ordering))
	}
	if p.Distribution.Defined() {
		if p.Ordering.Defined() {
			buf.WriteString(" ")
		}
		buf.WriteString("distribution: ")
		if p.Distribution.Kind == HashDistribution {
			fmt.Fprintf(&buf, "hash%s", md.FormatColSet(p.Distribution.Cols))
		} else {
			buf.WriteString(p.Distribution.String())
		}
	}
	buf.WriteString("]")
	return buf.String()
}

// FormatExpr formats a memo expression as (op G1 G2 private).
func (m *Memo) FormatExpr(id ExprID) string {
	e := &m.exprs[id]
	var buf bytes.Buffer
	buf.WriteString("(")
	buf.WriteString(e.op.String())
	for _, c := range e.children {
		fmt.Fprintf(&buf, " G%d", c)
	}
	if p := m.metadata.FormatPrivate(m.privates[e.private]); p != "" {
		buf.WriteString(" ")
		buf.WriteString(p)
	}
	buf.WriteString(")")
	return buf.String()
}

func (m *Memo) formatWinner(g GroupID, w *Winner) string {
	if !w.Found() {
		return "none"
	}
	if w.IsEnforcer() {
		props := m.LookupPhysicalProps(w.ChildProps[0])
		return fmt.Sprintf("(%s G%d%s) cost=%.2f", w.Enforcer, g, m.formatInputProps(props), w.Cost)
	}
	return fmt.Sprintf("%s cost=%.2f", m.FormatExpr(w.Expr), w.Cost)
}

func (m *Memo) formatInputProps(p *PhysicalProps) string {
	if !p.Defined() {
		return ""
	}
	return " " + m.metadata.FormatPhysicalProps(p)
}

// String prints every live group with its members and winners:
//
//	memo (groups: 3, logical: 4, physical: 4)
//	 ├── G3: (inner-join G1 G2) (inner-join G2 G1) ...
//	 │    └── [] (hash-join G1 G2) cost=2001.00
//	 ...
func (m *Memo) String() string {
	s := m.Stats()
	tp := treeprinter.New()
	tp.Addf("memo (groups: %d, logical: %d, physical: %d)", s.Groups, s.LogicalExprs, s.PhysicalExprs)
	tp.Enter()
	groups := m.Groups()
	for i := len(groups) - 1; i >= 0; i-- {
		g := groups[i]
		mgrp := &m.groups[g]
		var buf bytes.Buffer
		fmt.Fprintf(&buf, "G%d:", g)
		for _, id := range mgrp.exprs {
			buf.WriteString(" ")
			buf.WriteString(m.FormatExpr(id))
		}
		tp.Add(buf.String())
		if len(mgrp.winners) == 0 {
			continue
		}
		tp.Enter()
		for _, required := range m.WinnerProps(g) {
			w := m.Winner(g, required)
			tp.Addf("%s %s", m.metadata.FormatPhysicalProps(m.LookupPhysicalProps(required)), m.formatWinner(g, w))
		}
		tp.Exit()
	}
	tp.Exit()
	return tp.String()
}

// Dot exports the memo as a Graphviz graph. Each group is a cluster holding a
// node per member expression, with an edge from each expression to its child
// groups.
func (m *Memo) Dot() string {
	g := dot.NewGraph(dot.Directed)

	nodes := make(map[ExprID]dot.Node)
	anchors := make(map[GroupID]dot.Node)
	for _, id := range m.Groups() {
		sub := g.Subgraph(fmt.Sprintf("G%d", id), dot.ClusterOption{})
		for i, e := range m.groups[id].exprs {
			n := sub.Node(fmt.Sprintf("e%d", e)).Label(m.FormatExpr(e)).Attr("shape", "box")
			if m.exprs[e].op.IsPhysical() {
				n.Attr("style", "rounded")
			}
			nodes[e] = n
			if i == 0 {
				anchors[id] = n
			}
		}
	}

	for _, id := range m.Groups() {
		for _, e := range m.groups[id].exprs {
			for _, c := range m.exprs[e].children {
				if to, ok := anchors[c]; ok {
					g.Edge(nodes[e], to)
				}
			}
		}
	}
	return g.String()
}
