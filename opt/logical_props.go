package opt

import (
	"bytes"
	"fmt"
)

// ColSets is a list of column sets.
type ColSets []ColSet

// LogicalProps are properties shared by every expression in a group. They are
// derived from the group's first logical expression and never change.
type LogicalProps struct {
	// OutputCols is the set of columns the relation produces. Every logical
	// expression in a group must produce the same OutputCols.
	OutputCols ColSet

	// NotNullCols is the subset of output columns which cannot be NULL. The
	// NULL-ability of columns flows from the inputs and can also be derived
	// from filters that are NULL-intolerant.
	NotNullCols ColSet

	// EquivCols are the column sets which form equivalency groups. Each set
	// contains at least 2 columns that will always have the same value in the
	// result set. No column may appear in more than one entry.
	EquivCols ColSets

	// Relations is the set of table references the relation ranges over.
	Relations RelSet

	Stats Statistics
}

// Statistics estimates the size of a relation.
type Statistics struct {
	RowCount float64

	// Available is false if any table the estimate depends on had no
	// statistics, in which case defaults were used.
	Available bool
}

func (s Statistics) String() string {
	if !s.Available {
		return fmt.Sprintf("rows=%.0f (no stats)", s.RowCount)
	}
	return fmt.Sprintf("rows=%.0f", s.RowCount)
}

func (p *LogicalProps) addEquivColumns(cols ColSet) {
	for i, equiv := range p.EquivCols {
		if equiv.Intersects(cols) {
			p.EquivCols[i] = equiv.Union(cols)
			p.mergeEquivColumns(i)
			return
		}
	}
	p.EquivCols = append(p.EquivCols, cols.Copy())
}

// mergeEquivColumns folds any set that now intersects EquivCols[i] into it.
func (p *LogicalProps) mergeEquivColumns(i int) {
	for j := 0; j < len(p.EquivCols); j++ {
		if j == i || !p.EquivCols[j].Intersects(p.EquivCols[i]) {
			continue
		}
		p.EquivCols[i] = p.EquivCols[i].Union(p.EquivCols[j])
		p.EquivCols = append(p.EquivCols[:j:j], p.EquivCols[j+1:]...)
		if j < i {
			i--
		}
		j = -1
	}
}

func (p *LogicalProps) addEquivColumnSets(colsets ColSets) {
	for _, equiv := range colsets {
		p.addEquivColumns(equiv)
	}
}

// restrictEquivColumns drops columns that are not in cols from the
// equivalency groups.
func (p *LogicalProps) restrictEquivColumns(cols ColSet) {
	var res ColSets
	for _, equiv := range p.EquivCols {
		equiv = equiv.Intersection(cols)
		if equiv.Len() >= 2 {
			res = append(res, equiv)
		}
	}
	p.EquivCols = res
}

// IsEquiv returns true if the two columns always have the same value.
func (p *LogicalProps) IsEquiv(a, b ColumnID) bool {
	if a == b {
		return true
	}
	for _, equiv := range p.EquivCols {
		if equiv.Contains(int(a)) {
			return equiv.Contains(int(b))
		}
	}
	return false
}

func (p *LogicalProps) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "columns: %s", p.OutputCols)
	if !p.NotNullCols.Empty() {
		fmt.Fprintf(&buf, " not-null: %s", p.NotNullCols)
	}
	for i, equiv := range p.EquivCols {
		if i == 0 {
			buf.WriteString(" equiv:")
		}
		fmt.Fprintf(&buf, " %s", equiv)
	}
	fmt.Fprintf(&buf, " %s", p.Stats)
	return buf.String()
}
