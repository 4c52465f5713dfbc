package opt

import (
	"fmt"
	"sort"
	"strings"
)

// ScalarExpr is a scalar expression attached to a relational operator as
// private data, such as a filter condition or a projection. Scalars are not
// memoized; two scalars are equal iff their String forms are equal.
type ScalarExpr interface {
	// OuterCols returns the set of columns the expression references.
	OuterCols() ColSet

	String() string
}

// Variable is a reference to a column.
type Variable struct {
	Col ColumnID
}

func (v *Variable) OuterCols() ColSet { return MakeColSet(v.Col) }
func (v *Variable) String() string    { return fmt.Sprintf("@%d", v.Col) }

// Const is an integer constant.
type Const struct {
	Value int64
}

func (c *Const) OuterCols() ColSet { return ColSet{} }
func (c *Const) String() string    { return fmt.Sprintf("%d", c.Value) }

type CmpOp uint8

const (
	EqOp CmpOp = iota
	NeOp
	LtOp
	LeOp
	GtOp
	GeOp
)

var cmpOpNames = [...]string{EqOp: "=", NeOp: "!=", LtOp: "<", LeOp: "<=", GtOp: ">", GeOp: ">="}

func (op CmpOp) String() string { return cmpOpNames[op] }

// Comparison compares two scalar expressions.
type Comparison struct {
	Op          CmpOp
	Left, Right ScalarExpr
}

func (c *Comparison) OuterCols() ColSet {
	return c.Left.OuterCols().Union(c.Right.OuterCols())
}

func (c *Comparison) String() string {
	return fmt.Sprintf("%s %s %s", c.Left, c.Op, c.Right)
}

// EquivCols returns the two columns of a column equality such as @1 = @2.
func (c *Comparison) EquivCols() (left, right ColumnID, ok bool) {
	if c.Op != EqOp {
		return 0, 0, false
	}
	l, lok := c.Left.(*Variable)
	r, rok := c.Right.(*Variable)
	if !lok || !rok {
		return 0, 0, false
	}
	return l.Col, r.Col, true
}

// Col returns a reference to a column.
func Col(id ColumnID) *Variable { return &Variable{Col: id} }

// Int returns an integer constant.
func Int(v int64) *Const { return &Const{Value: v} }

// Cmp returns a comparison.
func Cmp(op CmpOp, left, right ScalarExpr) *Comparison {
	return &Comparison{Op: op, Left: left, Right: right}
}

// Eq returns an equality comparison between two columns.
func Eq(left, right ColumnID) *Comparison {
	return Cmp(EqOp, Col(left), Col(right))
}

// Filters is a conjunction of conditions. Filters are kept in a canonical
// order (sorted and deduplicated) so that the same set of conditions always
// produces the same private, whatever order rules combined them in.
type Filters []ScalarExpr

// MakeFilters returns the canonical form of a set of conditions.
func MakeFilters(conds ...ScalarExpr) Filters {
	if len(conds) == 0 {
		return nil
	}
	res := make(Filters, len(conds))
	copy(res, conds)
	sort.SliceStable(res, func(i, j int) bool { return res[i].String() < res[j].String() })
	out := res[:1]
	for _, c := range res[1:] {
		if c.String() != out[len(out)-1].String() {
			out = append(out, c)
		}
	}
	return out
}

func (f Filters) OuterCols() ColSet {
	var s ColSet
	for _, c := range f {
		s.UnionWith(c.OuterCols())
	}
	return s
}

// Split partitions the conditions into those that only reference columns in
// cols and the rest. Both results are canonical.
func (f Filters) Split(cols ColSet) (bound, rest Filters) {
	var b, r []ScalarExpr
	for _, c := range f {
		if c.OuterCols().SubsetOf(cols) {
			b = append(b, c)
		} else {
			r = append(r, c)
		}
	}
	return MakeFilters(b...), MakeFilters(r...)
}

func (f Filters) String() string {
	if len(f) == 0 {
		return "true"
	}
	parts := make([]string, len(f))
	for i, c := range f {
		parts[i] = c.String()
	}
	return strings.Join(parts, " AND ")
}

// FormatScalar formats a scalar expression with column labels in place of
// column IDs.
func (md *Metadata) FormatScalar(e ScalarExpr) string {
	switch t := e.(type) {
	case *Variable:
		return md.ColumnLabel(t.Col)
	case *Comparison:
		return fmt.Sprintf("%s %s %s", md.FormatScalar(t.Left), t.Op, md.FormatScalar(t.Right))
	case Filters:
		if len(t) == 0 {
			return "true"
		}
		parts := make([]string, len(t))
		for i, c := range t {
			parts[i] = md.FormatScalar(c)
		}
		return strings.Join(parts, " AND ")
	default:
		return e.String()
	}
}
