package opt

// Pattern describes the shape of the expressions a rule applies to. The root
// of a pattern must be a concrete logical operator. A child pattern is either
// PatternLeaf, which matches any child group without looking inside it, or a
// nested pattern, which is matched against every logical member of the child
// group. For example, join commutativity only wants to reorder the inputs of
// a join:
//
//	&Pattern{Op: InnerJoinOp, Children: []*Pattern{PatternLeaf, PatternLeaf}}
//
// Join associativity wants a join whose left input is also a join:
//
//	&Pattern{Op: InnerJoinOp, Children: []*Pattern{
//		{Op: InnerJoinOp, Children: []*Pattern{PatternLeaf, PatternLeaf}},
//		PatternLeaf,
//	}}
type Pattern struct {
	Op       Operator
	Children []*Pattern
}

// PatternLeaf matches any group.
var PatternLeaf = &Pattern{}

// LeafPattern returns a pattern that matches op with leaf children.
func LeafPattern(op Operator) *Pattern {
	p := &Pattern{Op: op, Children: make([]*Pattern, op.Arity())}
	for i := range p.Children {
		p.Children[i] = PatternLeaf
	}
	return p
}

func (p *Pattern) IsLeaf() bool {
	return p.Op == UnknownOp
}

// LeafOnly returns true if all the children of the pattern are leaves. A
// leaf-only pattern binds to an expression in exactly one way, so applying
// the rule to the same expression twice can never produce anything new.
func (p *Pattern) LeafOnly() bool {
	for _, c := range p.Children {
		if !c.IsLeaf() {
			return false
		}
	}
	return true
}

// Binding is one way of matching a pattern against a memo expression.
type Binding struct {
	Expr     ExprID
	Op       Operator
	Private  interface{}
	Group    GroupID
	Children []GroupID

	// Inputs holds the bindings of nested child patterns. Inputs[i] is nil
	// for a leaf child pattern.
	Inputs []*Binding
}

// Input returns the binding of the i'th child, or nil for a leaf.
func (b *Binding) Input(i int) *Binding {
	return b.Inputs[i]
}

// Bind matches the pattern against a memo expression and returns every
// binding. A nested child pattern is tried against each logical member of the
// child group, so an expression can bind several times: once per combination
// of matching members (the cartesian product over children).
func (m *Memo) Bind(id ExprID, pattern *Pattern) []*Binding {
	e := &m.exprs[id]
	if e.absorbed || e.op != pattern.Op || !e.op.IsLogical() {
		return nil
	}

	base := Binding{
		Expr:     id,
		Op:       e.op,
		Private:  m.privates[e.private],
		Group:    e.group,
		Children: append([]GroupID(nil), e.children...),
	}
	results := []*Binding{&base}
	for i, cp := range pattern.Children {
		if cp.IsLeaf() {
			continue
		}
		var options []*Binding
		for _, child := range m.GroupExprs(e.children[i]) {
			options = append(options, m.Bind(child, cp)...)
		}
		if len(options) == 0 {
			return nil
		}

		next := make([]*Binding, 0, len(results)*len(options))
		for _, r := range results {
			for _, o := range options {
				b := *r
				b.Inputs = make([]*Binding, len(pattern.Children))
				if r.Inputs != nil {
					copy(b.Inputs, r.Inputs)
				}
				b.Inputs[i] = o
				next = append(next, &b)
			}
		}
		results = next
	}
	for _, r := range results {
		if r.Inputs == nil {
			r.Inputs = make([]*Binding, len(pattern.Children))
		}
	}
	return results
}

// Filters returns the conditions of a bound select or join.
func (b *Binding) Filters() Filters {
	return filtersOf(b.Private)
}
