package opt

import (
	"fmt"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"github.com/petermattis/cascades/util"
)

// ExprID identifies a memo expression. Expressions have numbers greater than
// 0; an ExprID of 0 indicates an unknown expression (or an enforcer, which is
// never stored in the memo).
type ExprID uint32

// PrivateID identifies custom private data used by a memo expression and
// stored by the memo. Privates have numbers greater than 0; a PrivateID of 0
// indicates no private.
type PrivateID uint32

var _ redact.SafeValue = ExprID(0)

// SafeValue implements the redact.SafeValue interface.
func (ExprID) SafeValue() {}

// memoExpr is one operator instance plus an ordered list of child groups. Two
// memo expressions are equal if their fingerprints are equal, which allows
// deduplication without comparing group contents.
type memoExpr struct {
	op       Operator
	group    GroupID
	private  PrivateID
	children []GroupID

	// fp is the fingerprint under which the expression is stored in the
	// memo's exprMap.
	fp string

	// absorbed is set when a group merge turned the expression into a
	// duplicate of another expression. Absorbed expressions belong to no
	// group and are skipped everywhere.
	absorbed bool

	// applied is the set of rules (by rule set index) with leaf-only
	// patterns that have already been applied to the expression. It is reset
	// when a merge rewrites the expression's children.
	applied util.FastIntSet
}

// Memo is a data structure for efficiently storing a forest of expression
// trees. Conceptually, the memo is composed of a numbered set of equivalency
// classes called groups where each group contains a set of logically
// equivalent expressions. The different expressions in a single group are
// called memo expressions. A memo expression has a list of child groups as
// its children rather than a list of individual expressions. The forest is
// composed of every possible combination of parent expression with its
// children, recursively applied.
//
// Memo expressions can be relational (e.g. join) or physical (e.g. hash
// join). A group's logical expressions are all equivalent; its physical
// expressions implement one of its logical expressions.
//
// Groups and expressions are stored in arenas and referenced by ID, so that
// merging two groups is a rewrite of IDs rather than of pointers. A Memo is
// used by a single compilation and is not safe for concurrent use.
type Memo struct {
	metadata *Metadata

	// builder derives logical properties for new logical expressions.
	builder LogicalPropsBuilder

	// exprs is indexed by ExprID. Index 0 is reserved.
	exprs []memoExpr

	// exprMap maps from expression fingerprint to the expression.
	exprMap map[string]ExprID

	// groups is indexed by GroupID. Index 0 is reserved.
	groups []memoGroup

	// Optional private data attached to a memoExpr. Identical privates are
	// interned, keyed by their type and string form. PrivateID 0 is reserved.
	privates    []interface{}
	privatesMap map[string]PrivateID

	// Intern the set of unique physical properties used by expressions in the
	// memo, since there are so many duplicates.
	physPropsMap map[string]PhysicalPropsID
	physProps    []PhysicalProps

	// version is incremented on every structural change: a new group, a new
	// expression or a merge.
	version uint64

	mergeHook func(survivor, victim GroupID)
}

// NewMemo creates an empty memo for one compilation over the given metadata.
func NewMemo(md *Metadata) *Memo {
	// NB: group 0 is reserved so that the 0 group index can indicate that we
	// don't know the group for an expression. Similarly, index 0 for
	// expressions, privates and physical properties is reserved.
	m := &Memo{
		metadata:     md,
		exprs:        make([]memoExpr, 1),
		exprMap:      make(map[string]ExprID),
		groups:       make([]memoGroup, 1),
		privates:     make([]interface{}, 1),
		privatesMap:  make(map[string]PrivateID),
		physPropsMap: make(map[string]PhysicalPropsID),
		physProps:    make([]PhysicalProps, 1, 2),
	}
	m.builder.init(md)

	// Intern the empty required properties.
	m.InternPhysicalProps(&PhysicalProps{})
	return m
}

func (m *Memo) Metadata() *Metadata {
	return m.metadata
}

// Version returns a counter that changes whenever groups or expressions are
// added or merged.
func (m *Memo) Version() uint64 {
	return m.version
}

// SetMergeHook registers a function called after each pairwise group merge.
func (m *Memo) SetMergeHook(fn func(survivor, victim GroupID)) {
	m.mergeHook = fn
}

// NumExprs returns the size of the expression arena, including absorbed
// expressions. Valid ExprIDs are in [1, NumExprs()].
func (m *Memo) NumExprs() int {
	return len(m.exprs) - 1
}

// NumGroups returns the size of the group arena, including merged groups.
// Valid GroupIDs are in [1, NumGroups()].
func (m *Memo) NumGroups() int {
	return len(m.groups) - 1
}

// Groups returns the IDs of all groups that have not been merged away, in
// ascending order.
func (m *Memo) Groups() []GroupID {
	res := make([]GroupID, 0, len(m.groups))
	for i := 1; i < len(m.groups); i++ {
		if m.groups[i].mergedInto == 0 {
			res = append(res, GroupID(i))
		}
	}
	return res
}

// Resolve follows merge forwarding and returns the group that g was absorbed
// into, or g itself.
func (m *Memo) Resolve(g GroupID) GroupID {
	for m.groups[g].mergedInto != 0 {
		g = m.groups[g].mergedInto
	}
	return g
}

func (m *Memo) GroupLogicalProps(g GroupID) *LogicalProps {
	return m.groups[m.Resolve(g)].logical
}

// GroupExprs returns the members of a group in insertion order. The slice
// must not be modified, and is invalidated by the next insertion into the
// group.
func (m *Memo) GroupExprs(g GroupID) []ExprID {
	return m.groups[m.Resolve(g)].exprs
}

// GroupExpr is a read-only view of a memo expression.
type GroupExpr struct {
	ID       ExprID
	Group    GroupID
	Op       Operator
	Private  interface{}
	Children []GroupID
}

func (e *GroupExpr) ChildCount() int {
	return len(e.Children)
}

func (e *GroupExpr) Child(i int) GroupID {
	return e.Children[i]
}

// Expr returns a view of the given expression. The Children slice must not be
// modified.
func (m *Memo) Expr(id ExprID) GroupExpr {
	e := &m.exprs[id]
	return GroupExpr{
		ID:       id,
		Group:    e.group,
		Op:       e.op,
		Private:  m.privates[e.private],
		Children: e.children,
	}
}

func (m *Memo) ExprOp(id ExprID) Operator {
	return m.exprs[id].op
}

func (m *Memo) ExprGroup(id ExprID) GroupID {
	return m.exprs[id].group
}

// IsAbsorbed returns true if a group merge turned the expression into a
// duplicate and removed it from its group.
func (m *Memo) IsAbsorbed(id ExprID) bool {
	return m.exprs[id].absorbed
}

// RuleApplied returns true if MarkRuleApplied was called for the rule since
// the expression was created or last rewritten by a merge.
func (m *Memo) RuleApplied(id ExprID, rule int) bool {
	return m.exprs[id].applied.Contains(rule)
}

func (m *Memo) MarkRuleApplied(id ExprID, rule int) {
	m.exprs[id].applied.Add(rule)
}

// MemoizeTree copies a logical plan tree into the memo and returns the group
// of its root. Errors raised while deriving logical properties, such as a
// reference to an unresolved column, are returned.
func (m *Memo) MemoizeTree(tree *Tree) (_ GroupID, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = CatchOptimizerError(r)
		}
	}()
	return m.memoizeTree(tree), nil
}

func (m *Memo) memoizeTree(t *Tree) GroupID {
	children := make([]GroupID, len(t.Inputs))
	for i, in := range t.Inputs {
		children[i] = m.memoizeTree(in)
	}
	return m.Memoize(t.Op, t.Private, children...)
}

// Memoize adds a logical expression to the memo if an identical expression is
// not already present, and returns the group of the expression. A new
// expression always starts a new group. Memoize panics if property
// derivation fails; the memo is left unchanged in that case.
func (m *Memo) Memoize(op Operator, private interface{}, children ...GroupID) GroupID {
	if !op.IsLogical() {
		panic(errors.AssertionFailedf("%s expression must be inserted into a group", op))
	}
	m.checkArity(op, children)
	children = m.resolveChildren(children)
	pid := m.internPrivate(private)
	fp := makeFingerprint(op, pid, children)
	if id, ok := m.exprMap[fp]; ok {
		return m.exprs[id].group
	}

	props := m.buildProps(op, pid, children)
	g := m.newGroup(props)
	m.addExpr(g, op, pid, children, fp)
	return g
}

// InsertInto adds an expression as a member of the target group. If the
// expression is already present in the target group, the existing expression
// is returned. If it is present in another group, the two groups are proven
// equivalent and are merged. The boolean result is true if a new expression
// was added.
func (m *Memo) InsertInto(
	target GroupID, op Operator, private interface{}, children ...GroupID,
) (ExprID, bool) {
	if op.IsEnforcer() {
		panic(errors.AssertionFailedf("enforcer %s cannot be stored in the memo", op))
	}
	m.checkArity(op, children)
	target = m.Resolve(target)
	children = m.resolveChildren(children)
	for _, c := range children {
		if c == target {
			panic(errors.AssertionFailedf("%s expression in group %d references its own group", op, target))
		}
	}

	pid := m.internPrivate(private)
	fp := makeFingerprint(op, pid, children)
	if id, ok := m.exprMap[fp]; ok {
		if g := m.exprs[id].group; g != target {
			m.MergeGroups(g, target)
		}
		return id, false
	}

	if op.IsLogical() {
		props := m.buildProps(op, pid, children)
		if existing := m.groups[target].logical; !props.OutputCols.Equals(existing.OutputCols) {
			panic(errors.AssertionFailedf(
				"%s expression produces columns %s, but group %d produces %s",
				op, redact.Safe(props.OutputCols.String()), target, redact.Safe(existing.OutputCols.String()),
			))
		}
	}
	return m.addExpr(target, op, pid, children, fp), true
}

func (m *Memo) checkArity(op Operator, children []GroupID) {
	if len(children) != op.Arity() {
		panic(errors.AssertionFailedf("%s expects %d children, got %d", op, op.Arity(), len(children)))
	}
}

func (m *Memo) resolveChildren(children []GroupID) []GroupID {
	res := make([]GroupID, len(children))
	for i, c := range children {
		if c == 0 || int(c) >= len(m.groups) {
			panic(errors.AssertionFailedf("invalid child group %d", c))
		}
		res[i] = m.Resolve(c)
	}
	return res
}

func (m *Memo) buildProps(op Operator, pid PrivateID, children []GroupID) *LogicalProps {
	inputs := make([]*LogicalProps, len(children))
	for i, c := range children {
		inputs[i] = m.groups[c].logical
	}
	return m.builder.Build(op, m.privates[pid], inputs)
}

func (m *Memo) newGroup(props *LogicalProps) GroupID {
	id := GroupID(len(m.groups))
	m.groups = append(m.groups, memoGroup{id: id, logical: props})
	m.version++
	return id
}

func (m *Memo) addExpr(
	g GroupID, op Operator, pid PrivateID, children []GroupID, fp string,
) ExprID {
	id := ExprID(len(m.exprs))
	m.exprs = append(m.exprs, memoExpr{
		op:       op,
		group:    g,
		private:  pid,
		children: children,
		fp:       fp,
	})
	m.exprMap[fp] = id
	m.groups[g].addExpr(id)
	m.version++
	return id
}

func (m *Memo) internPrivate(private interface{}) PrivateID {
	if private == nil {
		return 0
	}
	if f, ok := private.(Filters); ok && len(f) == 0 {
		return 0
	}

	key := fmt.Sprintf("%T:%v", private, private)
	id, ok := m.privatesMap[key]
	if !ok {
		id = PrivateID(len(m.privates))
		m.privates = append(m.privates, private)
		m.privatesMap[key] = id
	}
	return id
}

func (m *Memo) LookupPrivate(id PrivateID) interface{} {
	return m.privates[id]
}

// InternPhysicalProps returns the ID of the given set of physical properties,
// adding it to the memo if this is the first time it is seen.
func (m *Memo) InternPhysicalProps(props *PhysicalProps) PhysicalPropsID {
	fingerprint := props.fingerprint()
	id, ok := m.physPropsMap[fingerprint]
	if !ok {
		id = PhysicalPropsID(len(m.physProps))
		m.physProps = append(m.physProps, *props)
		m.physPropsMap[fingerprint] = id
	}
	return id
}

func (m *Memo) LookupPhysicalProps(id PhysicalPropsID) *PhysicalProps {
	return &m.physProps[id]
}

func makeFingerprint(op Operator, private PrivateID, children []GroupID) string {
	buf := make([]byte, 0, 16)
	buf = strconv.AppendUint(buf, uint64(op), 10)
	buf = append(buf, ':')
	buf = strconv.AppendUint(buf, uint64(private), 10)
	for _, c := range children {
		buf = append(buf, ',')
		buf = strconv.AppendUint(buf, uint64(c), 10)
	}
	return string(buf)
}
