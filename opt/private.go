package opt

import (
	"bytes"
	"fmt"
)

// ScanPrivate is the private of ScanOp and TableScanOp.
type ScanPrivate struct {
	Table TableID
}

func (p *ScanPrivate) String() string {
	return fmt.Sprintf("t%d", p.Table)
}

// ProjectionItem computes one synthesized column.
type ProjectionItem struct {
	Col  ColumnID
	Expr ScalarExpr
}

// ProjectPrivate is the private of ProjectOp and RenderOp. Passthrough columns
// are copied from the input unchanged.
type ProjectPrivate struct {
	Passthrough ColSet
	Items       []ProjectionItem
}

// Cols returns the set of columns the projection outputs.
func (p *ProjectPrivate) Cols() ColSet {
	cols := p.Passthrough.Copy()
	for _, item := range p.Items {
		cols.Add(int(item.Col))
	}
	return cols
}

func (p *ProjectPrivate) String() string {
	var buf bytes.Buffer
	buf.WriteString(p.Passthrough.String())
	for _, item := range p.Items {
		fmt.Fprintf(&buf, " @%d:=%s", item.Col, item.Expr)
	}
	return buf.String()
}

type AggFunc uint8

const (
	CountRowsAgg AggFunc = iota
	CountAgg
	SumAgg
	MinAgg
	MaxAgg
)

var aggFuncNames = [...]string{
	CountRowsAgg: "count_rows",
	CountAgg:     "count",
	SumAgg:       "sum",
	MinAgg:       "min",
	MaxAgg:       "max",
}

func (f AggFunc) String() string { return aggFuncNames[f] }

// Aggregation computes Col as Func over Arg. Arg is 0 for count_rows.
type Aggregation struct {
	Func AggFunc
	Arg  ColumnID
	Col  ColumnID
}

// GroupByPrivate is the private of GroupByOp and HashGroupByOp.
type GroupByPrivate struct {
	GroupingCols ColSet
	Aggs         []Aggregation
}

func (p *GroupByPrivate) String() string {
	var buf bytes.Buffer
	buf.WriteString(p.GroupingCols.String())
	for _, agg := range p.Aggs {
		if agg.Arg == 0 {
			fmt.Fprintf(&buf, " @%d:=%s()", agg.Col, agg.Func)
		} else {
			fmt.Fprintf(&buf, " @%d:=%s(@%d)", agg.Col, agg.Func, agg.Arg)
		}
	}
	return buf.String()
}

// LimitPrivate is the private of LimitOp and LimitExecOp. The rows returned
// are the first Count rows in Ordering.
type LimitPrivate struct {
	Count    int64
	Ordering Ordering
}

func (p *LimitPrivate) String() string {
	if len(p.Ordering) == 0 {
		return fmt.Sprintf("%d", p.Count)
	}
	return fmt.Sprintf("%d %s", p.Count, p.Ordering)
}

// MergeJoinPrivate is the private of MergeJoinOp. LeftEq[i] = RightEq[i] are
// the equality columns the inputs are sorted on; Filters holds all of the
// join conditions, including the equalities.
type MergeJoinPrivate struct {
	Filters Filters
	LeftEq  []ColumnID
	RightEq []ColumnID
}

func (p *MergeJoinPrivate) String() string {
	var buf bytes.Buffer
	for i := range p.LeftEq {
		if i > 0 {
			buf.WriteString(",")
		}
		fmt.Fprintf(&buf, "@%d=@%d", p.LeftEq[i], p.RightEq[i])
	}
	fmt.Fprintf(&buf, " [%s]", p.Filters)
	return buf.String()
}
