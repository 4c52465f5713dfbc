package optbuilder

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/petermattis/cascades/opt"
	"github.com/petermattis/cascades/opt/testutils/testcat"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, input string) (*opt.Metadata, *opt.Tree, *opt.PhysicalProps, error) {
	q, err := ParseQuery(strings.NewReader(input))
	require.NoError(t, err)
	md := opt.NewMetadata(testcat.JoinCatalog(3, true))
	tree, required, err := Build(md, q)
	return md, tree, required, err
}

func TestBuildJoin(t *testing.T) {
	md, tree, required, err := build(t, `
from: [t1, t2 AS b]
where: [t1.k = b.k, b.v > 5]
`)
	require.NoError(t, err)
	require.False(t, required.Defined())
	require.Equal(t, "b", md.TableAlias(2))

	// The single-table condition is applied to the scan of b.
	require.Equal(t, opt.InnerJoinOp, tree.Op)
	require.Equal(t, "t1.k = b.k", md.FormatScalar(tree.Private.(opt.Filters)))
	require.Equal(t, opt.ScanOp, tree.Inputs[0].Op)
	require.Equal(t, opt.SelectOp, tree.Inputs[1].Op)
	require.Equal(t, "b.v > 5", md.FormatScalar(tree.Inputs[1].Private.(opt.Filters)))
}

func TestBuildGroupBy(t *testing.T) {
	md, tree, required, err := build(t, `
from: [t1]
group_by: {columns: [v], aggregates: [count_rows() AS n, max(k) AS m]}
select: [v, n]
limit: {count: 5, order_by: [-n]}
order_by: [+v]
distribution: singleton
`)
	require.NoError(t, err)
	require.Equal(t, opt.LimitOp, tree.Op)
	limit := tree.Private.(*opt.LimitPrivate)
	require.EqualValues(t, 5, limit.Count)
	require.Equal(t, "-n", md.FormatOrdering(limit.Ordering))

	project := tree.Inputs[0]
	require.Equal(t, opt.ProjectOp, project.Op)
	require.Equal(t, "(t1.v,n)", md.FormatColSet(project.Private.(*opt.ProjectPrivate).Passthrough))

	groupBy := project.Inputs[0]
	require.Equal(t, opt.GroupByOp, groupBy.Op)
	require.Equal(t, "(t1.v) n:=count_rows() m:=max(t1.k)", md.FormatPrivate(groupBy.Private))

	require.Equal(t, "[ordering: +t1.v distribution: singleton]", md.FormatPhysicalProps(required))
}

func TestBuildDistribution(t *testing.T) {
	testCases := []struct {
		dist     string
		expected string
	}{
		{"any", "[]"},
		{"singleton", "[distribution: singleton]"},
		{"hash(t1.k)", "[distribution: hash(t1.k)]"},
		{"hash(k, t1.v)", "[distribution: hash(t1.k,t1.v)]"},
	}
	for _, tc := range testCases {
		t.Run(tc.dist, func(t *testing.T) {
			md, _, required, err := build(t, "from: [t1]\ndistribution: "+tc.dist+"\n")
			require.NoError(t, err)
			require.Equal(t, tc.expected, md.FormatPhysicalProps(required))
		})
	}
}

func TestBuildErrors(t *testing.T) {
	testCases := []struct {
		input string
		err   string
	}{
		{"from: [t1, t2]\nwhere: [k = 1]", `column reference "k" is ambiguous`},
		{"from: [t1]\nwhere: [t1.k ~ 1]", `unknown comparison "~"`},
		{"from: [t1]\nwhere: [t1.k =]", `cannot parse condition`},
		{"from: [t1]\ngroup_by: {aggregates: [avg(k) AS a]}", `unknown aggregate function "avg"`},
		{"from: [t1]\ngroup_by: {aggregates: [count_rows()]}", `cannot parse aggregate`},
		{"from: [t1]\ndistribution: range(k)", `unknown distribution "range(k)"`},
		{"from: [t9]", `t9`},
	}
	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			_, _, _, err := build(t, tc.input)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.err)
		})
	}

	_, _, _, err := build(t, "from: [t1]\nselect: [t2.k]")
	require.True(t, errors.Is(err, opt.ErrUnresolvedColumn), "%+v", err)
}

func TestParseQuery(t *testing.T) {
	_, err := ParseQuery(strings.NewReader("where: [k = 1]"))
	require.EqualError(t, err, "query has no tables")

	_, err = ParseQuery(strings.NewReader("from: [t1]\nfilter: [k = 1]"))
	require.Error(t, err)
}
