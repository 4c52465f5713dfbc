package rules

import (
	"fmt"
	"testing"

	"github.com/petermattis/cascades/cat"
	"github.com/petermattis/cascades/opt"
	"github.com/petermattis/cascades/opt/testutils/testcat"
	"github.com/stretchr/testify/require"
)

func newJoinMemo(t *testing.T, n int) (*opt.Memo, []opt.TableID) {
	md := opt.NewMetadata(testcat.JoinCatalog(n, true))
	tables := make([]opt.TableID, n)
	for i := range tables {
		tab, err := md.AddTableByName(cat.TableName(fmt.Sprintf("t%d", i+1)), "")
		require.NoError(t, err)
		tables[i] = tab
	}
	return opt.NewMemo(md), tables
}

func kCol(i int) opt.ColumnID { return opt.ColumnID(2*i - 1) }
func vCol(i int) opt.ColumnID { return opt.ColumnID(2 * i) }

// applyRule applies a rule to an expression and inserts the results into
// the expression's group.
func applyRule(t *testing.T, m *opt.Memo, r *opt.Rule, id opt.ExprID) {
	ctx := &opt.RuleContext{Memo: m}
	for _, b := range m.Bind(id, r.Pattern) {
		if r.Check != nil && !r.Check(ctx, b) {
			continue
		}
		for _, s := range r.Apply(ctx, b) {
			require.NoError(t, r.ValidateShape(&s))
			m.InsertInto(b.Group, s.Op, s.Private, s.Children...)
		}
	}
}

// exploreAll applies every enabled rule to every logical expression until
// the memo stops changing.
func exploreAll(t *testing.T, m *opt.Memo, rs *opt.RuleSet) {
	for {
		version := m.Version()
		for _, g := range m.Groups() {
			exprs := append([]opt.ExprID(nil), m.GroupExprs(g)...)
			for _, id := range exprs {
				op := m.ExprOp(id)
				if m.IsAbsorbed(id) || !op.IsLogical() {
					continue
				}
				for _, i := range rs.TransformationRules(op) {
					applyRule(t, m, rs.Rule(i), id)
				}
				for _, i := range rs.ImplementationRules(op) {
					applyRule(t, m, rs.Rule(i), id)
				}
			}
		}
		if m.Version() == version {
			return
		}
	}
}

func TestJoinSpace(t *testing.T) {
	for n := 1; n <= 5; n++ {
		for _, withFilters := range []bool{false, true} {
			t.Run(fmt.Sprintf("n=%d/filters=%t", n, withFilters), func(t *testing.T) {
				m, tables := newJoinMemo(t, n)
				var filters []opt.ScalarExpr
				if withFilters {
					for i := 1; i < n; i++ {
						filters = append(filters, opt.Eq(kCol(i), vCol(i+1)))
					}
				}
				root, err := m.MemoizeTree(opt.JoinTree(m.Metadata(), tables, filters...))
				require.NoError(t, err)

				exploreAll(t, m, Default())
				var cols opt.ColSet
				cols.AddRange(1, 2*n)
				require.NoError(t, opt.CheckJoinSpace(m, root, n, cols))
				require.NoError(t, m.CheckInvariants())
			})
		}
	}
}

func TestJoinCommutativity(t *testing.T) {
	m, tables := newJoinMemo(t, 2)
	filters := opt.MakeFilters(opt.Eq(kCol(1), kCol(2)))
	a := m.Memoize(opt.ScanOp, &opt.ScanPrivate{Table: tables[0]})
	b := m.Memoize(opt.ScanOp, &opt.ScanPrivate{Table: tables[1]})
	ab := m.Memoize(opt.InnerJoinOp, filters, a, b)

	r := JoinCommutativity()
	applyRule(t, m, r, m.GroupExprs(ab)[0])
	require.Len(t, m.GroupExprs(ab), 2)
	e := m.Expr(m.GroupExprs(ab)[1])
	require.Equal(t, []opt.GroupID{b, a}, e.Children)
	require.Equal(t, filters.String(), e.Private.(opt.Filters).String())

	// Commuting the commuted join yields the original.
	applyRule(t, m, r, e.ID)
	require.Len(t, m.GroupExprs(ab), 2)
}

func TestJoinAssociativity(t *testing.T) {
	testCases := []struct {
		filters []opt.ScalarExpr
		inner   string
		top     string
	}{
		{
			filters: []opt.ScalarExpr{opt.Eq(kCol(1), kCol(2)), opt.Eq(kCol(2), kCol(3))},
			inner:   "@3 = @5",
			top:     "@1 = @3",
		},
		{
			// Neither condition connects t2 and t3, so the new inner join is a
			// cross product.
			filters: []opt.ScalarExpr{opt.Eq(kCol(1), kCol(2)), opt.Eq(kCol(1), kCol(3))},
			inner:   "true",
			top:     "@1 = @3 AND @1 = @5",
		},
		{
			filters: nil,
			inner:   "true",
			top:     "true",
		},
	}
	for _, tc := range testCases {
		t.Run(opt.MakeFilters(tc.filters...).String(), func(t *testing.T) {
			m, tables := newJoinMemo(t, 3)
			root, err := m.MemoizeTree(opt.JoinTree(m.Metadata(), tables, tc.filters...))
			require.NoError(t, err)
			require.Equal(t, 5, m.Stats().Groups)

			applyRule(t, m, JoinAssociativity(), m.GroupExprs(root)[0])
			require.Equal(t, 6, m.Stats().Groups)
			require.Len(t, m.GroupExprs(root), 2)

			top := m.Expr(m.GroupExprs(root)[1])
			require.Equal(t, tc.top, opt.MakeFilters(filtersOf(top.Private)...).String())
			require.Equal(t, "(3-6)", m.GroupLogicalProps(top.Children[1]).OutputCols.String())

			inner := m.Expr(m.GroupExprs(top.Children[1])[0])
			require.Equal(t, tc.inner, opt.MakeFilters(filtersOf(inner.Private)...).String())
			require.NoError(t, m.CheckInvariants())
		})
	}
}

func filtersOf(private interface{}) opt.Filters {
	if private == nil {
		return nil
	}
	return private.(opt.Filters)
}

func TestImplementMergeJoin(t *testing.T) {
	m, tables := newJoinMemo(t, 2)
	a := m.Memoize(opt.ScanOp, &opt.ScanPrivate{Table: tables[0]})
	b := m.Memoize(opt.ScanOp, &opt.ScanPrivate{Table: tables[1]})

	// The equality is written right-to-left; the merge join orients it.
	ab := m.Memoize(opt.InnerJoinOp, opt.MakeFilters(opt.Eq(vCol(2), kCol(1))), a, b)
	applyRule(t, m, ImplementMergeJoin(), m.GroupExprs(ab)[0])
	require.Len(t, m.GroupExprs(ab), 2)
	e := m.Expr(m.GroupExprs(ab)[1])
	require.Equal(t, opt.MergeJoinOp, e.Op)
	p := e.Private.(*opt.MergeJoinPrivate)
	require.Equal(t, []opt.ColumnID{kCol(1)}, p.LeftEq)
	require.Equal(t, []opt.ColumnID{vCol(2)}, p.RightEq)

	// A cross product has no equality to merge on.
	cross := m.Memoize(opt.InnerJoinOp, nil, b, a)
	applyRule(t, m, ImplementMergeJoin(), m.GroupExprs(cross)[0])
	require.Len(t, m.GroupExprs(cross), 1)
}

func TestCatalogs(t *testing.T) {
	def := Default()
	_, ok := def.Lookup(ImplementMergeJoinName)
	require.False(t, ok)
	require.Len(t, def.TransformationRules(opt.InnerJoinOp), 2)
	require.Len(t, def.ImplementationRules(opt.InnerJoinOp), 1)

	all := All()
	require.Equal(t, def.Len()+1, all.Len())
	require.Len(t, all.ImplementationRules(opt.InnerJoinOp), 2)

	// Every logical operator has exactly one default implementation.
	for op := opt.Operator(1); op < opt.NumOperators; op++ {
		if op.IsLogical() {
			require.Len(t, def.ImplementationRules(op), 1, "%s", op)
		}
	}
}
