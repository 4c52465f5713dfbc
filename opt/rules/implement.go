package rules

import (
	"github.com/petermattis/cascades/opt"
)

// implement returns a rule that implements a logical operator with a
// physical operator taking the same private and children.
func implement(name string, logical, physical opt.Operator) *opt.Rule {
	return &opt.Rule{
		Name:    name,
		Kind:    opt.ImplementationRule,
		Pattern: opt.LeafPattern(logical),
		Apply: func(ctx *opt.RuleContext, b *opt.Binding) []opt.Shape {
			return []opt.Shape{{Op: physical, Private: b.Private, Children: b.Children}}
		},
	}
}

func ImplementScan() *opt.Rule {
	return implement(ImplementScanName, opt.ScanOp, opt.TableScanOp)
}

func ImplementSelect() *opt.Rule {
	return implement(ImplementSelectName, opt.SelectOp, opt.FilterOp)
}

func ImplementProject() *opt.Rule {
	return implement(ImplementProjectName, opt.ProjectOp, opt.RenderOp)
}

// ImplementHashJoin implements every inner join, including cross products,
// as a hash join.
func ImplementHashJoin() *opt.Rule {
	return implement(ImplementHashJoinName, opt.InnerJoinOp, opt.HashJoinOp)
}

func ImplementGroupBy() *opt.Rule {
	return implement(ImplementGroupByName, opt.GroupByOp, opt.HashGroupByOp)
}

func ImplementLimit() *opt.Rule {
	return implement(ImplementLimitName, opt.LimitOp, opt.LimitExecOp)
}

// ImplementMergeJoin implements an inner join with at least one equality
// between a left and a right column as a merge join over inputs sorted on
// the equality columns.
func ImplementMergeJoin() *opt.Rule {
	return &opt.Rule{
		Name:    ImplementMergeJoinName,
		Kind:    opt.ImplementationRule,
		Pattern: opt.LeafPattern(opt.InnerJoinOp),
		Check: func(ctx *opt.RuleContext, b *opt.Binding) bool {
			return mergeJoinPrivate(ctx, b) != nil
		},
		Apply: func(ctx *opt.RuleContext, b *opt.Binding) []opt.Shape {
			return []opt.Shape{{
				Op:       opt.MergeJoinOp,
				Private:  mergeJoinPrivate(ctx, b),
				Children: b.Children,
			}}
		},
	}
}

// mergeJoinPrivate returns the merge join equality columns of a join, in
// the canonical order of its conditions, or nil if there are none.
func mergeJoinPrivate(ctx *opt.RuleContext, b *opt.Binding) *opt.MergeJoinPrivate {
	leftCols := ctx.Props(b.Children[0]).OutputCols
	rightCols := ctx.Props(b.Children[1]).OutputCols

	filters := b.Filters()
	p := &opt.MergeJoinPrivate{Filters: filters}
	var seen opt.ColSet
	for _, cond := range filters {
		cmp, ok := cond.(*opt.Comparison)
		if !ok {
			continue
		}
		l, r, ok := cmp.EquivCols()
		if !ok {
			continue
		}
		if rightCols.Contains(int(l)) && leftCols.Contains(int(r)) {
			l, r = r, l
		}
		if !leftCols.Contains(int(l)) || !rightCols.Contains(int(r)) || seen.Contains(int(l)) {
			continue
		}
		seen.Add(int(l))
		p.LeftEq = append(p.LeftEq, l)
		p.RightEq = append(p.RightEq, r)
	}
	if len(p.LeftEq) == 0 {
		return nil
	}
	return p
}
