package cat

import (
	"bytes"
	"fmt"
	"sort"
)

// TableStats is a snapshot of the statistics collected for a table. The
// optimizer treats it as immutable for the duration of a compilation.
type TableStats struct {
	// The total number of rows in the table.
	RowCount float64

	// Columns holds per-column statistics. Columns without an entry have
	// unknown distribution.
	Columns map[ColumnName]*ColumnStats
}

type ColumnStats struct {
	// The estimated cardinality (distinct values) for the column.
	DistinctCount float64

	// The number of NULL values for the column.
	NullCount float64
}

// ColumnStats returns the statistics for the named column, or nil.
func (s *TableStats) ColumnStats(name ColumnName) *ColumnStats {
	if s == nil {
		return nil
	}
	return s.Columns[name]
}

func (s *TableStats) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "rows: %g\n", s.RowCount)
	names := make([]string, 0, len(s.Columns))
	for name := range s.Columns {
		names = append(names, string(name))
	}
	sort.Strings(names)
	for _, name := range names {
		cs := s.Columns[ColumnName(name)]
		fmt.Fprintf(&buf, "  %s: distinct=%g nulls=%g\n", name, cs.DistinctCount, cs.NullCount)
	}
	return buf.String()
}

func (s *TableStats) clone() *TableStats {
	if s == nil {
		return nil
	}
	res := &TableStats{RowCount: s.RowCount}
	if s.Columns != nil {
		res.Columns = make(map[ColumnName]*ColumnStats, len(s.Columns))
		for name, cs := range s.Columns {
			c := *cs
			res.Columns[name] = &c
		}
	}
	return res
}
