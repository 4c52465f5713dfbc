package opt

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/petermattis/cascades/opt/testutils/testcat"
	"github.com/stretchr/testify/require"
)

const propsSchema = `
tables:
  - name: a
    columns:
      - {name: x, type: int}
      - {name: y, type: int}
    primary_key: [x]
    stats:
      rows: 1000
      columns:
        x: {distinct: 1000}
        y: {distinct: 10}
  - name: b
    columns:
      - {name: x, type: int}
      - {name: z, type: int}
`

func newPropsMemo(t *testing.T) (*Memo, TableID, TableID) {
	md := NewMetadata(testcat.New(propsSchema))
	a, err := md.AddTableByName("a", "")
	require.NoError(t, err)
	b, err := md.AddTableByName("b", "")
	require.NoError(t, err)
	return NewMemo(md), a, b
}

func TestScanProps(t *testing.T) {
	m, a, b := newPropsMemo(t)
	ga := m.Memoize(ScanOp, &ScanPrivate{Table: a})
	gb := m.Memoize(ScanOp, &ScanPrivate{Table: b})

	pa := m.GroupLogicalProps(ga)
	require.Equal(t, "(1,2)", pa.OutputCols.String())
	require.Equal(t, "(1)", pa.NotNullCols.String())
	require.Equal(t, Statistics{RowCount: 1000, Available: true}, pa.Stats)

	pb := m.GroupLogicalProps(gb)
	require.Equal(t, "(3,4)", pb.OutputCols.String())
	require.Equal(t, Statistics{RowCount: unknownRowCount}, pb.Stats)
}

func TestSelectProps(t *testing.T) {
	m, a, _ := newPropsMemo(t)
	x, y := ColumnID(1), ColumnID(2)
	ga := m.Memoize(ScanOp, &ScanPrivate{Table: a})

	testCases := []struct {
		filters Filters
		rows    float64
	}{
		{MakeFilters(Cmp(EqOp, Col(y), Int(3))), 100},
		{MakeFilters(Cmp(EqOp, Int(3), Col(x))), 1},
		{MakeFilters(Cmp(NeOp, Col(y), Int(3))), 900},
		{MakeFilters(Cmp(GtOp, Col(y), Int(3)), Cmp(EqOp, Col(y), Int(3))), 1000.0 / 3 / 10},
		{MakeFilters(Eq(x, y)), 1},
	}
	for _, tc := range testCases {
		t.Run(tc.filters.String(), func(t *testing.T) {
			g := m.Memoize(SelectOp, tc.filters, ga)
			props := m.GroupLogicalProps(g)
			require.InDelta(t, tc.rows, props.Stats.RowCount, 1e-9)
			require.True(t, props.Stats.Available)
			require.Equal(t, "(1,2)", props.OutputCols.String())
		})
	}

	g := m.Memoize(SelectOp, MakeFilters(Eq(x, y)), ga)
	props := m.GroupLogicalProps(g)
	require.True(t, props.IsEquiv(x, y))
	require.Equal(t, "(1,2)", props.NotNullCols.String())
}

func TestJoinProps(t *testing.T) {
	m, a, b := newPropsMemo(t)
	ga := m.Memoize(ScanOp, &ScanPrivate{Table: a})
	gb := m.Memoize(ScanOp, &ScanPrivate{Table: b})

	// No stats on b.x, so the equality uses a.x.
	j := m.Memoize(InnerJoinOp, MakeFilters(Eq(1, 3)), ga, gb)
	props := m.GroupLogicalProps(j)
	require.Equal(t, "(1-4)", props.OutputCols.String())
	require.Equal(t, "(1,3)", props.NotNullCols.String())
	require.Equal(t, "(1,2)", props.Relations.String())
	require.InDelta(t, 1000.0, props.Stats.RowCount, 1e-9)
	require.False(t, props.Stats.Available)
	require.True(t, props.IsEquiv(3, 1))

	// Cross products multiply.
	cross := m.Memoize(InnerJoinOp, nil, ga, gb)
	require.InDelta(t, 1e6, m.GroupLogicalProps(cross).Stats.RowCount, 1e-9)
}

func TestProjectGroupByLimitProps(t *testing.T) {
	m, a, _ := newPropsMemo(t)
	md := m.Metadata()
	x, y := ColumnID(1), ColumnID(2)
	ga := m.Memoize(ScanOp, &ScanPrivate{Table: a})

	sum := md.AddColumn("sum")
	proj := m.Memoize(ProjectOp, &ProjectPrivate{
		Passthrough: MakeColSet(x),
		Items:       []ProjectionItem{{Col: sum, Expr: Col(y)}},
	}, ga)
	require.Equal(t, "(1,5)", m.GroupLogicalProps(proj).OutputCols.String())
	require.Equal(t, "(1)", m.GroupLogicalProps(proj).NotNullCols.String())

	cnt := md.AddColumn("cnt")
	gby := m.Memoize(GroupByOp, &GroupByPrivate{
		GroupingCols: MakeColSet(y),
		Aggs:         []Aggregation{{Func: CountRowsAgg, Col: cnt}},
	}, ga)
	props := m.GroupLogicalProps(gby)
	require.Equal(t, "(2,6)", props.OutputCols.String())
	require.InDelta(t, 10, props.Stats.RowCount, 1e-9)

	scalar := m.Memoize(GroupByOp, &GroupByPrivate{
		Aggs: []Aggregation{{Func: SumAgg, Arg: x, Col: sum}},
	}, ga)
	require.InDelta(t, 1, m.GroupLogicalProps(scalar).Stats.RowCount, 1e-9)

	lim := m.Memoize(LimitOp, &LimitPrivate{Count: 5, Ordering: Ordering{MakeOrderingColumn(y, true)}}, ga)
	require.InDelta(t, 5, m.GroupLogicalProps(lim).Stats.RowCount, 1e-9)

	_, err := m.MemoizeTree(Limit(Scan(a), 5, Ordering{MakeOrderingColumn(cnt, false)}))
	require.True(t, errors.Is(err, ErrUnresolvedColumn), "%+v", err)
}

func TestEquivColumns(t *testing.T) {
	var p LogicalProps
	p.addEquivColumns(MakeColSet(1, 2))
	p.addEquivColumns(MakeColSet(3, 4))
	require.Len(t, p.EquivCols, 2)

	// Joining the two classes merges them.
	p.addEquivColumns(MakeColSet(2, 3))
	require.Len(t, p.EquivCols, 1)
	require.Equal(t, "(1-4)", p.EquivCols[0].String())
	require.True(t, p.IsEquiv(1, 4))

	p.restrictEquivColumns(MakeColSet(1, 4, 7))
	require.Equal(t, "(1,4)", p.EquivCols[0].String())
	p.restrictEquivColumns(MakeColSet(1))
	require.Empty(t, p.EquivCols)
}
