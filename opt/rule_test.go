package opt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var assocPattern = &Pattern{
	Op: InnerJoinOp,
	Children: []*Pattern{
		LeafPattern(InnerJoinOp),
		PatternLeaf,
	},
}

func TestPatternLeafOnly(t *testing.T) {
	require.True(t, PatternLeaf.IsLeaf())
	require.True(t, LeafPattern(InnerJoinOp).LeafOnly())
	require.True(t, LeafPattern(ScanOp).LeafOnly())
	require.False(t, assocPattern.LeafOnly())
}

func TestBind(t *testing.T) {
	m := newJoinMemo(t, 3)
	a := m.Memoize(ScanOp, &ScanPrivate{Table: 1})
	b := m.Memoize(ScanOp, &ScanPrivate{Table: 2})
	c := m.Memoize(ScanOp, &ScanPrivate{Table: 3})
	ab := m.Memoize(InnerJoinOp, nil, a, b)
	abc := m.Memoize(InnerJoinOp, nil, ab, c)
	top := m.GroupExprs(abc)[0]

	// A leaf pattern binds exactly once.
	bindings := m.Bind(top, LeafPattern(InnerJoinOp))
	require.Len(t, bindings, 1)
	require.Equal(t, []GroupID{ab, c}, bindings[0].Children)
	require.Nil(t, bindings[0].Input(0))

	// The nested pattern binds once per logical join in the left group, and
	// ignores physical members.
	m.InsertInto(ab, InnerJoinOp, nil, b, a)
	m.InsertInto(ab, HashJoinOp, nil, a, b)
	bindings = m.Bind(top, assocPattern)
	require.Len(t, bindings, 2)
	require.Equal(t, []GroupID{a, b}, bindings[0].Input(0).Children)
	require.Equal(t, []GroupID{b, a}, bindings[1].Input(0).Children)
	require.Nil(t, bindings[0].Input(1))
	require.Equal(t, abc, bindings[1].Group)

	// No binding when the nested pattern cannot match.
	cab := m.Memoize(InnerJoinOp, nil, c, ab)
	require.Empty(t, m.Bind(m.GroupExprs(cab)[0], assocPattern))

	// Scans never match a join pattern.
	require.Empty(t, m.Bind(m.GroupExprs(a)[0], assocPattern))
}

func noopApply(ctx *RuleContext, b *Binding) []Shape { return nil }

func TestRuleSet(t *testing.T) {
	commute := &Rule{Name: "Commute", Kind: TransformationRule, Pattern: LeafPattern(InnerJoinOp), Apply: noopApply}
	hash := &Rule{Name: "HashJoin", Kind: ImplementationRule, Pattern: LeafPattern(InnerJoinOp), Apply: noopApply}
	scan := &Rule{Name: "Scan", Kind: ImplementationRule, Pattern: LeafPattern(ScanOp), Apply: noopApply}

	rs, err := NewRuleSet(commute, hash, scan)
	require.NoError(t, err)
	require.Equal(t, 3, rs.Len())
	require.Equal(t, []int{0}, rs.TransformationRules(InnerJoinOp))
	require.Equal(t, []int{1}, rs.ImplementationRules(InnerJoinOp))
	require.Equal(t, []int{2}, rs.ImplementationRules(ScanOp))
	require.Empty(t, rs.TransformationRules(ScanOp))

	disabled, err := rs.WithDisabled("HashJoin")
	require.NoError(t, err)
	require.Empty(t, disabled.ImplementationRules(InnerJoinOp))
	require.False(t, disabled.Enabled(1))
	require.Equal(t, []int{1}, rs.ImplementationRules(InnerJoinOp))
	require.True(t, rs.Enabled(1))

	require.Error(t, rs.Disable("Missing"))

	_, err = NewRuleSet(commute, commute)
	require.Error(t, err)
	_, err = NewRuleSet(&Rule{Name: "Bad", Kind: ImplementationRule, Pattern: LeafPattern(HashJoinOp), Apply: noopApply})
	require.Error(t, err)
	_, err = NewRuleSet(&Rule{Name: "NoApply", Kind: ImplementationRule, Pattern: LeafPattern(ScanOp)})
	require.Error(t, err)
}

func TestValidateShape(t *testing.T) {
	commute := &Rule{Name: "Commute", Kind: TransformationRule, Pattern: LeafPattern(InnerJoinOp), Apply: noopApply}
	hash := &Rule{Name: "HashJoin", Kind: ImplementationRule, Pattern: LeafPattern(InnerJoinOp), Apply: noopApply}

	require.NoError(t, commute.ValidateShape(&Shape{Op: InnerJoinOp, Children: []GroupID{1, 2}}))
	require.Error(t, commute.ValidateShape(&Shape{Op: HashJoinOp, Children: []GroupID{1, 2}}))
	require.NoError(t, hash.ValidateShape(&Shape{Op: HashJoinOp, Children: []GroupID{1, 2}}))
	require.Error(t, hash.ValidateShape(&Shape{Op: InnerJoinOp, Children: []GroupID{1, 2}}))
	require.Error(t, hash.ValidateShape(&Shape{Op: SortOp, Children: []GroupID{1}}))
	require.Error(t, hash.ValidateShape(&Shape{Op: HashJoinOp, Children: []GroupID{1}}))
}
