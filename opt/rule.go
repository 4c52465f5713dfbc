package opt

import (
	"github.com/cockroachdb/errors"
	"github.com/petermattis/cascades/util"
)

// RuleKind categorizes rules as either transformation or implementation.
// Transformation rules create new logical expressions. Implementation rules
// create physical expressions (e.g. merge join, hash join).
type RuleKind uint8

const (
	TransformationRule RuleKind = iota + 1
	ImplementationRule
)

func (k RuleKind) String() string {
	switch k {
	case TransformationRule:
		return "transformation"
	case ImplementationRule:
		return "implementation"
	}
	return "unknown"
}

// Shape is an expression produced by a rule, to be inserted into the group of
// the expression the rule fired on. Its children are groups; nested
// expressions are added to the memo with RuleContext.Memoize first.
type Shape struct {
	Op       Operator
	Private  interface{}
	Children []GroupID
}

// RuleContext gives rules access to the memo while they are applied.
type RuleContext struct {
	Memo *Memo
}

func (c *RuleContext) Metadata() *Metadata {
	return c.Memo.Metadata()
}

// Props returns the logical properties of a group.
func (c *RuleContext) Props(g GroupID) *LogicalProps {
	return c.Memo.GroupLogicalProps(g)
}

// Memoize adds a logical sub-expression to the memo and returns its group.
func (c *RuleContext) Memoize(op Operator, private interface{}, children ...GroupID) GroupID {
	return c.Memo.Memoize(op, private, children...)
}

// Rule is a rewrite rule expressed as data. Check is optional; when present,
// Apply is only called for bindings Check accepts. Rules must be
// deterministic and must only affect the memo through RuleContext.Memoize and
// the shapes they return.
type Rule struct {
	Name    string
	Kind    RuleKind
	Pattern *Pattern
	Check   func(ctx *RuleContext, b *Binding) bool
	Apply   func(ctx *RuleContext, b *Binding) []Shape
}

// ValidateShape returns an assertion failure if the rule produced a shape of
// the wrong kind: transformation rules produce logical expressions and
// implementation rules produce physical ones.
func (r *Rule) ValidateShape(s *Shape) error {
	switch {
	case s.Op.IsEnforcer():
		return errors.AssertionFailedf("rule %s produced enforcer %s", errors.Safe(r.Name), s.Op)
	case r.Kind == TransformationRule && !s.Op.IsLogical():
		return errors.AssertionFailedf("transformation rule %s produced %s", errors.Safe(r.Name), s.Op)
	case r.Kind == ImplementationRule && !s.Op.IsPhysical():
		return errors.AssertionFailedf("implementation rule %s produced %s", errors.Safe(r.Name), s.Op)
	case len(s.Children) != s.Op.Arity():
		return errors.AssertionFailedf("rule %s produced %s with %d children", errors.Safe(r.Name), s.Op, len(s.Children))
	}
	return nil
}

// RuleSet is an ordered table of rules, indexed by the operator at the root
// of their patterns. A rule is identified by its position in the set.
type RuleSet struct {
	rules    []*Rule
	byName   map[string]int
	disabled util.FastIntSet

	// transformations and implementations list the enabled rules per
	// operator, in registration order.
	transformations [NumOperators][]int
	implementations [NumOperators][]int
}

// NewRuleSet builds a rule set. It is an error to register two rules with the
// same name, or a rule whose pattern root is not a logical operator.
func NewRuleSet(rules ...*Rule) (*RuleSet, error) {
	rs := &RuleSet{byName: make(map[string]int, len(rules))}
	for _, r := range rules {
		if _, ok := rs.byName[r.Name]; ok {
			return nil, errors.Newf("duplicate rule %q", r.Name)
		}
		if r.Pattern == nil || !r.Pattern.Op.IsLogical() {
			return nil, errors.Newf("rule %q must match a logical operator", r.Name)
		}
		if r.Kind != TransformationRule && r.Kind != ImplementationRule {
			return nil, errors.Newf("rule %q has no kind", r.Name)
		}
		if r.Apply == nil {
			return nil, errors.Newf("rule %q has no apply function", r.Name)
		}
		rs.byName[r.Name] = len(rs.rules)
		rs.rules = append(rs.rules, r)
	}
	rs.reindex()
	return rs, nil
}

func (rs *RuleSet) reindex() {
	for op := range rs.transformations {
		rs.transformations[op] = nil
		rs.implementations[op] = nil
	}
	for i, r := range rs.rules {
		if rs.disabled.Contains(i) {
			continue
		}
		op := r.Pattern.Op
		if r.Kind == TransformationRule {
			rs.transformations[op] = append(rs.transformations[op], i)
		} else {
			rs.implementations[op] = append(rs.implementations[op], i)
		}
	}
}

func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

func (rs *RuleSet) Rule(i int) *Rule {
	return rs.rules[i]
}

// Lookup returns the index of the named rule.
func (rs *RuleSet) Lookup(name string) (int, bool) {
	i, ok := rs.byName[name]
	return i, ok
}

// Disable turns off the named rules. Unknown names are an error.
func (rs *RuleSet) Disable(names ...string) error {
	for _, name := range names {
		i, ok := rs.byName[name]
		if !ok {
			return errors.Newf("unknown rule %q", name)
		}
		rs.disabled.Add(i)
	}
	rs.reindex()
	return nil
}

// WithDisabled returns a copy of the rule set with the named rules turned
// off.
func (rs *RuleSet) WithDisabled(names ...string) (*RuleSet, error) {
	c := &RuleSet{rules: rs.rules, byName: rs.byName, disabled: rs.disabled.Copy()}
	if err := c.Disable(names...); err != nil {
		return nil, err
	}
	return c, nil
}

func (rs *RuleSet) Enabled(i int) bool {
	return !rs.disabled.Contains(i)
}

// TransformationRules returns the enabled transformation rules that match op.
func (rs *RuleSet) TransformationRules(op Operator) []int {
	return rs.transformations[op]
}

// ImplementationRules returns the enabled implementation rules that match op.
func (rs *RuleSet) ImplementationRules(op Operator) []int {
	return rs.implementations[op]
}
