package opt

import (
	"math"

	"github.com/cockroachdb/errors"
)

// ErrUnresolvedColumn is the mark carried by errors for expressions that
// reference a column none of their inputs produce.
var ErrUnresolvedColumn = errors.New("unresolved column")

const (
	// unknownRowCount is the row count assumed for tables without stats.
	unknownRowCount = 1000

	unknownSelectivity      = 0.1
	unknownRangeSelectivity = 1.0 / 3
	notEqualSelectivity     = 0.9
)

// LogicalPropsBuilder derives the logical properties of an expression from
// its operator, its private and the logical properties of its inputs. It is a
// pure function of those arguments and of the read-only metadata, so the
// result does not depend on the order in which expressions were explored.
type LogicalPropsBuilder struct {
	md *Metadata
}

func (b *LogicalPropsBuilder) init(md *Metadata) {
	b.md = md
}

// Build panics with an error marked ErrUnresolvedColumn if the expression
// references a column that is not produced by its inputs.
func (b *LogicalPropsBuilder) Build(
	op Operator, private interface{}, inputs []*LogicalProps,
) *LogicalProps {
	switch op {
	case ScanOp:
		return b.buildScanProps(private.(*ScanPrivate))
	case SelectOp:
		return b.buildSelectProps(private, inputs[0])
	case ProjectOp:
		return b.buildProjectProps(private.(*ProjectPrivate), inputs[0])
	case InnerJoinOp:
		return b.buildJoinProps(private, inputs[0], inputs[1])
	case GroupByOp:
		return b.buildGroupByProps(private.(*GroupByPrivate), inputs[0])
	case LimitOp:
		return b.buildLimitProps(private.(*LimitPrivate), inputs[0])
	}
	panic(errors.AssertionFailedf("cannot derive logical props for %s", op))
}

func (b *LogicalPropsBuilder) buildScanProps(def *ScanPrivate) *LogicalProps {
	props := &LogicalProps{}
	props.OutputCols = b.md.TableColumns(def.Table)
	props.Relations.Add(int(def.Table))
	props.OutputCols.ForEach(func(i int) {
		if b.md.ColumnNotNull(ColumnID(i)) {
			props.NotNullCols.Add(i)
		}
	})

	tbl := b.md.Table(def.Table)
	if tbl.Stats != nil {
		props.Stats = Statistics{RowCount: tbl.Stats.RowCount, Available: true}
	} else {
		props.Stats = Statistics{RowCount: unknownRowCount}
	}
	return props
}

func (b *LogicalPropsBuilder) buildSelectProps(private interface{}, input *LogicalProps) *LogicalProps {
	filters := filtersOf(private)
	b.checkResolved(SelectOp, filters.OuterCols(), input.OutputCols)

	props := &LogicalProps{
		OutputCols:  input.OutputCols,
		NotNullCols: input.NotNullCols.Union(filters.OuterCols()),
		Relations:   input.Relations,
	}
	props.addEquivColumnSets(input.EquivCols)
	b.addFilterEquivs(props, filters)

	props.Stats = input.Stats
	props.Stats.RowCount *= b.selectivity(filters)
	return props
}

func (b *LogicalPropsBuilder) buildProjectProps(def *ProjectPrivate, input *LogicalProps) *LogicalProps {
	b.checkResolved(ProjectOp, def.Passthrough, input.OutputCols)
	for _, item := range def.Items {
		b.checkResolved(ProjectOp, item.Expr.OuterCols(), input.OutputCols)
	}

	props := &LogicalProps{
		OutputCols:  def.Cols(),
		NotNullCols: input.NotNullCols.Intersection(def.Passthrough),
		Relations:   input.Relations,
		Stats:       input.Stats,
	}
	props.addEquivColumnSets(input.EquivCols)
	props.restrictEquivColumns(def.Passthrough)
	return props
}

func (b *LogicalPropsBuilder) buildJoinProps(private interface{}, left, right *LogicalProps) *LogicalProps {
	filters := filtersOf(private)
	props := &LogicalProps{
		OutputCols: left.OutputCols.Union(right.OutputCols),
		Relations:  left.Relations.Union(right.Relations),
	}
	b.checkResolved(InnerJoinOp, filters.OuterCols(), props.OutputCols)

	// Inner join filters are NULL-intolerant, so any column they reference
	// cannot be NULL in the output.
	props.NotNullCols = left.NotNullCols.Union(right.NotNullCols)
	props.NotNullCols.UnionWith(filters.OuterCols())

	props.addEquivColumnSets(left.EquivCols)
	props.addEquivColumnSets(right.EquivCols)
	b.addFilterEquivs(props, filters)

	props.Stats = Statistics{
		RowCount:  left.Stats.RowCount * right.Stats.RowCount * b.selectivity(filters),
		Available: left.Stats.Available && right.Stats.Available,
	}
	return props
}

func (b *LogicalPropsBuilder) buildGroupByProps(def *GroupByPrivate, input *LogicalProps) *LogicalProps {
	b.checkResolved(GroupByOp, def.GroupingCols, input.OutputCols)
	props := &LogicalProps{
		OutputCols: def.GroupingCols.Copy(),
		Relations:  input.Relations,
	}
	for _, agg := range def.Aggs {
		if agg.Arg != 0 {
			b.checkResolved(GroupByOp, MakeColSet(agg.Arg), input.OutputCols)
		}
		props.OutputCols.Add(int(agg.Col))
	}
	props.NotNullCols = input.NotNullCols.Intersection(def.GroupingCols)
	props.addEquivColumnSets(input.EquivCols)
	props.restrictEquivColumns(def.GroupingCols)

	props.Stats.Available = input.Stats.Available
	if def.GroupingCols.Empty() {
		props.Stats.RowCount = 1
		return props
	}

	// Assume grouping columns are independent, so the number of groups is the
	// product of their distinct counts, capped by the input size.
	rows := 1.0
	known := true
	def.GroupingCols.ForEach(func(i int) {
		d := b.distinctCount(ColumnID(i))
		if d == 0 {
			known = false
			return
		}
		rows *= d
	})
	if !known {
		rows = input.Stats.RowCount / 10
	}
	props.Stats.RowCount = math.Max(1, math.Min(rows, input.Stats.RowCount))
	return props
}

func (b *LogicalPropsBuilder) buildLimitProps(def *LimitPrivate, input *LogicalProps) *LogicalProps {
	b.checkResolved(LimitOp, def.Ordering.ColSet(), input.OutputCols)
	props := &LogicalProps{
		OutputCols:  input.OutputCols,
		NotNullCols: input.NotNullCols,
		Relations:   input.Relations,
		Stats:       input.Stats,
	}
	props.addEquivColumnSets(input.EquivCols)
	props.Stats.RowCount = math.Min(input.Stats.RowCount, float64(def.Count))
	return props
}

func (b *LogicalPropsBuilder) addFilterEquivs(props *LogicalProps, filters Filters) {
	for _, cond := range filters {
		if cmp, ok := cond.(*Comparison); ok {
			if l, r, ok := cmp.EquivCols(); ok {
				props.addEquivColumns(MakeColSet(l, r))
			}
		}
	}
}

func (b *LogicalPropsBuilder) checkResolved(op Operator, cols, available ColSet) {
	if cols.SubsetOf(available) {
		return
	}
	missing := cols.Difference(available)
	panic(errors.Mark(
		errors.Newf("%s references unknown column(s) %s", op, b.md.FormatColSet(missing)),
		ErrUnresolvedColumn,
	))
}

// selectivity estimates the fraction of rows that pass all of the filters,
// assuming the conditions are independent.
func (b *LogicalPropsBuilder) selectivity(filters Filters) float64 {
	sel := 1.0
	for _, cond := range filters {
		sel *= b.condSelectivity(cond)
	}
	return sel
}

func (b *LogicalPropsBuilder) condSelectivity(cond ScalarExpr) float64 {
	cmp, ok := cond.(*Comparison)
	if !ok {
		return unknownSelectivity
	}
	switch cmp.Op {
	case EqOp:
		if l, r, ok := cmp.EquivCols(); ok {
			d := math.Max(b.distinctCount(l), b.distinctCount(r))
			if d == 0 {
				return unknownSelectivity
			}
			return 1 / d
		}
		if v, ok := cmp.Left.(*Variable); ok {
			if d := b.distinctCount(v.Col); d != 0 {
				return 1 / d
			}
		}
		if v, ok := cmp.Right.(*Variable); ok {
			if d := b.distinctCount(v.Col); d != 0 {
				return 1 / d
			}
		}
		return unknownSelectivity
	case NeOp:
		return notEqualSelectivity
	default:
		return unknownRangeSelectivity
	}
}

// distinctCount returns the number of distinct values in a column, or 0 if
// unknown.
func (b *LogicalPropsBuilder) distinctCount(col ColumnID) float64 {
	if s := b.md.ColumnStats(col); s != nil && s.DistinctCount > 0 {
		return s.DistinctCount
	}
	return 0
}

func filtersOf(private interface{}) Filters {
	if private == nil {
		return nil
	}
	return private.(Filters)
}
