package rules

import (
	"github.com/petermattis/cascades/opt"
)

// JoinCommutativity swaps the inputs of an inner join.
//
//	A ⋈ B => B ⋈ A
func JoinCommutativity() *opt.Rule {
	return &opt.Rule{
		Name:    JoinCommutativityName,
		Kind:    opt.TransformationRule,
		Pattern: opt.LeafPattern(opt.InnerJoinOp),
		Apply: func(ctx *opt.RuleContext, b *opt.Binding) []opt.Shape {
			return []opt.Shape{{
				Op:       opt.InnerJoinOp,
				Private:  b.Filters(),
				Children: []opt.GroupID{b.Children[1], b.Children[0]},
			}}
		},
	}
}

var associativityPattern = &opt.Pattern{
	Op: opt.InnerJoinOp,
	Children: []*opt.Pattern{
		opt.LeafPattern(opt.InnerJoinOp),
		opt.PatternLeaf,
	},
}

// JoinAssociativity re-associates a left-deep pair of inner joins.
//
//	(A ⋈ B) ⋈ C => A ⋈ (B ⋈ C)
//
// The conditions of both joins are pooled and split again: the new inner
// join gets the conditions that only reference B and C, and the rest stay on
// top. When no condition connects B and C the new inner join is a cross
// product.
func JoinAssociativity() *opt.Rule {
	return &opt.Rule{
		Name:    JoinAssociativityName,
		Kind:    opt.TransformationRule,
		Pattern: associativityPattern,
		Apply: func(ctx *opt.RuleContext, b *opt.Binding) []opt.Shape {
			inner := b.Input(0)
			left, middle, right := inner.Children[0], inner.Children[1], b.Children[1]

			pool := opt.MakeFilters(append(inner.Filters(), b.Filters()...)...)
			cols := ctx.Props(middle).OutputCols.Union(ctx.Props(right).OutputCols)
			lower, upper := pool.Split(cols)

			newInner := ctx.Memoize(opt.InnerJoinOp, lower, middle, right)
			return []opt.Shape{{
				Op:       opt.InnerJoinOp,
				Private:  upper,
				Children: []opt.GroupID{left, newInner},
			}}
		},
	}
}
