package opt

import (
	"github.com/petermattis/cascades/util/treeprinter"
)

// Tree is a logical plan tree as produced by semantic analysis. It is the
// input to plan search and is copied into the memo by Memo.MemoizeTree.
type Tree struct {
	Op      Operator
	Private interface{}
	Inputs  []*Tree
}

func Scan(table TableID) *Tree {
	return &Tree{Op: ScanOp, Private: &ScanPrivate{Table: table}}
}

func Select(input *Tree, filters ...ScalarExpr) *Tree {
	return &Tree{Op: SelectOp, Private: MakeFilters(filters...), Inputs: []*Tree{input}}
}

func Project(input *Tree, passthrough ColSet, items ...ProjectionItem) *Tree {
	return &Tree{
		Op:      ProjectOp,
		Private: &ProjectPrivate{Passthrough: passthrough, Items: items},
		Inputs:  []*Tree{input},
	}
}

func InnerJoin(left, right *Tree, filters ...ScalarExpr) *Tree {
	return &Tree{Op: InnerJoinOp, Private: MakeFilters(filters...), Inputs: []*Tree{left, right}}
}

func GroupBy(input *Tree, groupingCols ColSet, aggs ...Aggregation) *Tree {
	return &Tree{
		Op:      GroupByOp,
		Private: &GroupByPrivate{GroupingCols: groupingCols, Aggs: aggs},
		Inputs:  []*Tree{input},
	}
}

func Limit(input *Tree, count int64, ordering Ordering) *Tree {
	return &Tree{
		Op:      LimitOp,
		Private: &LimitPrivate{Count: count, Ordering: ordering},
		Inputs:  []*Tree{input},
	}
}

// JoinTree builds a left-deep inner join over a scan of each table. Filters
// that reference a single table are applied to its scan; the rest are
// attached to the lowest join that covers them.
func JoinTree(md *Metadata, tables []TableID, filters ...ScalarExpr) *Tree {
	if len(tables) == 0 {
		return nil
	}
	pool := MakeFilters(filters...)
	inputs := make([]*Tree, len(tables))
	for i, tab := range tables {
		var bound Filters
		bound, pool = pool.Split(md.TableColumns(tab))
		inputs[i] = Scan(tab)
		if len(bound) > 0 {
			inputs[i] = Select(inputs[i], bound...)
		}
	}

	t := inputs[0]
	cols := md.TableColumns(tables[0])
	for i, tab := range tables[1:] {
		cols = cols.Union(md.TableColumns(tab))
		var bound Filters
		bound, pool = pool.Split(cols)
		t = InnerJoin(t, inputs[i+1], bound...)
	}
	if len(pool) > 0 {
		t = Select(t, pool...)
	}
	return t
}

func (t *Tree) String() string {
	tp := treeprinter.New()
	t.format(tp)
	return tp.String()
}

func (t *Tree) format(tp *treeprinter.Printer) {
	if t.Private != nil {
		tp.Addf("%s %v", t.Op, t.Private)
	} else {
		tp.Add(t.Op.String())
	}
	if len(t.Inputs) == 0 {
		return
	}
	tp.Enter()
	for _, in := range t.Inputs {
		in.format(tp)
	}
	tp.Exit()
}
