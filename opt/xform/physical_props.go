package xform

import (
	"github.com/petermattis/cascades/opt"
)

// scanProps returns the properties a scan of the table naturally provides:
// primary key order, and the table's distribution.
func scanProps(md *opt.Metadata, p *opt.ScanPrivate) opt.PhysicalProps {
	tbl := md.Table(p.Table)
	var props opt.PhysicalProps
	for _, ord := range tbl.PrimaryKey().Columns {
		props.Ordering = append(props.Ordering, opt.MakeOrderingColumn(md.TableColumn(p.Table, ord), false))
	}
	if len(tbl.DistributedBy) == 0 {
		props.Distribution.Kind = opt.SingletonDistribution
	} else {
		props.Distribution.Kind = opt.HashDistribution
		for _, ord := range tbl.DistributedBy {
			props.Distribution.Cols.Add(int(md.TableColumn(p.Table, ord)))
		}
	}
	return props
}

// mergeOrdering returns the ascending ordering on one side's equality
// columns of a merge join.
func mergeOrdering(cols []opt.ColumnID) opt.Ordering {
	o := make(opt.Ordering, len(cols))
	for i, c := range cols {
		o[i] = opt.MakeOrderingColumn(c, false)
	}
	return o
}

// nonHashed returns true for distributions an operator that combines rows
// from anywhere can pass down to its inputs.
func nonHashed(d opt.Distribution) bool {
	return d.Kind != opt.HashDistribution
}

// canProvide returns true if the physical expression can deliver the
// required properties, given suitable inputs. Enforcers are not handled here.
func canProvide(md *opt.Metadata, e *opt.GroupExpr, required *opt.PhysicalProps) bool {
	switch e.Op {
	case opt.TableScanOp:
		props := scanProps(md, e.Private.(*opt.ScanPrivate))
		return props.Provides(required)

	case opt.FilterOp:
		return true

	case opt.RenderOp:
		passthrough := e.Private.(*opt.ProjectPrivate).Passthrough
		return required.Ordering.ColSet().SubsetOf(passthrough) &&
			required.Distribution.Cols.SubsetOf(passthrough)

	case opt.HashJoinOp, opt.HashGroupByOp:
		return !required.Ordering.Defined() && nonHashed(required.Distribution)

	case opt.MergeJoinOp:
		p := e.Private.(*opt.MergeJoinPrivate)
		return mergeOrdering(p.LeftEq).Provides(required.Ordering) && nonHashed(required.Distribution)

	case opt.LimitExecOp:
		p := e.Private.(*opt.LimitPrivate)
		return p.Ordering.Provides(required.Ordering) && nonHashed(required.Distribution)
	}
	return false
}

// childRequired returns the properties the expression requires of its
// child'th input in order to provide the required properties.
func childRequired(e *opt.GroupExpr, required *opt.PhysicalProps, child int) opt.PhysicalProps {
	switch e.Op {
	case opt.FilterOp, opt.RenderOp:
		return *required

	case opt.HashJoinOp, opt.HashGroupByOp:
		return opt.PhysicalProps{Distribution: required.Distribution}

	case opt.MergeJoinOp:
		p := e.Private.(*opt.MergeJoinPrivate)
		cols := p.LeftEq
		if child == 1 {
			cols = p.RightEq
		}
		return opt.PhysicalProps{Ordering: mergeOrdering(cols), Distribution: required.Distribution}

	case opt.LimitExecOp:
		p := e.Private.(*opt.LimitPrivate)
		return opt.PhysicalProps{
			Ordering:     p.Ordering,
			Distribution: opt.Distribution{Kind: opt.SingletonDistribution},
		}

	case opt.SortOp:
		return opt.PhysicalProps{Distribution: required.Distribution}

	case opt.ExchangeOp:
		return opt.PhysicalProps{}
	}
	return opt.PhysicalProps{}
}

// enforcerFor returns the enforcer that adds the next property missing from
// the stripped set, and the properties it requires of its input. Ordering is
// stripped first, then distribution.
func enforcerFor(required *opt.PhysicalProps) (opt.Operator, opt.PhysicalProps) {
	switch {
	case required.Ordering.Defined():
		return opt.SortOp, opt.PhysicalProps{Distribution: required.Distribution}
	case required.Distribution.Defined():
		return opt.ExchangeOp, opt.PhysicalProps{}
	}
	return opt.UnknownOp, opt.PhysicalProps{}
}

// providedProps returns the properties a plan node delivers, given the
// properties delivered by its children.
func providedProps(
	md *opt.Metadata, op opt.Operator, private interface{}, required *opt.PhysicalProps, children []*PlanNode,
) opt.PhysicalProps {
	switch op {
	case opt.TableScanOp:
		return scanProps(md, private.(*opt.ScanPrivate))

	case opt.FilterOp:
		return children[0].Provided

	case opt.RenderOp:
		passthrough := private.(*opt.ProjectPrivate).Passthrough
		in := children[0].Provided
		var props opt.PhysicalProps
		for _, c := range in.Ordering {
			if !passthrough.Contains(int(c.ID())) {
				break
			}
			props.Ordering = append(props.Ordering, c)
		}
		if in.Distribution.Cols.SubsetOf(passthrough) {
			props.Distribution = in.Distribution
		}
		return props

	case opt.HashJoinOp, opt.MergeJoinOp:
		var props opt.PhysicalProps
		if op == opt.MergeJoinOp {
			props.Ordering = mergeOrdering(private.(*opt.MergeJoinPrivate).LeftEq)
		}
		if singleton(children[0]) && singleton(children[1]) {
			props.Distribution.Kind = opt.SingletonDistribution
		}
		return props

	case opt.HashGroupByOp:
		var props opt.PhysicalProps
		if singleton(children[0]) {
			props.Distribution.Kind = opt.SingletonDistribution
		}
		return props

	case opt.LimitExecOp:
		return opt.PhysicalProps{
			Ordering:     private.(*opt.LimitPrivate).Ordering,
			Distribution: opt.Distribution{Kind: opt.SingletonDistribution},
		}

	case opt.SortOp:
		return opt.PhysicalProps{Ordering: required.Ordering, Distribution: children[0].Provided.Distribution}

	case opt.ExchangeOp:
		return opt.PhysicalProps{Distribution: required.Distribution}
	}
	return opt.PhysicalProps{}
}

func singleton(n *PlanNode) bool {
	return n.Provided.Distribution.Kind == opt.SingletonDistribution
}
