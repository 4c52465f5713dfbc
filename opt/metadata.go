package opt

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"github.com/petermattis/cascades/cat"
	"github.com/petermattis/cascades/util"
)

// ColumnID uniquely identifies a column within a query. IDs are greater than
// zero; 0 means "unknown column".
type ColumnID int32

// TableID uniquely identifies a table reference within a query. The same
// catalog table referenced twice gets two TableIDs.
type TableID int32

// ColSet efficiently stores an unordered set of column IDs.
type ColSet = util.FastIntSet

// RelSet stores the set of table references an expression ranges over.
type RelSet = util.FastIntSet

// MakeColSet returns a set containing the given columns.
func MakeColSet(cols ...ColumnID) ColSet {
	var s ColSet
	for _, c := range cols {
		s.Add(int(c))
	}
	return s
}

var _ redact.SafeValue = ColumnID(0)
var _ redact.SafeValue = TableID(0)

// SafeValue implements the redact.SafeValue interface.
func (ColumnID) SafeValue() {}

// SafeValue implements the redact.SafeValue interface.
func (TableID) SafeValue() {}

type columnMeta struct {
	label string
	table TableID
	ord   cat.ColumnOrdinal
}

type tableMeta struct {
	table    *cat.Table
	alias    string
	firstCol ColumnID
}

// Metadata assigns IDs to the tables and columns referenced by a query. It is
// built before plan search starts and is read-only afterwards.
type Metadata struct {
	catalog *cat.Catalog

	// cols and tables are indexed by ID; index 0 is reserved.
	cols   []columnMeta
	tables []tableMeta
}

// NewMetadata creates query metadata over a snapshot of the catalog, so that
// DDL running concurrently with the compilation is not observed. The catalog
// may be nil if tables are added directly.
func NewMetadata(catalog *cat.Catalog) *Metadata {
	if catalog != nil {
		catalog = catalog.Snapshot()
	}
	return &Metadata{
		catalog: catalog,
		cols:    make([]columnMeta, 1),
		tables:  make([]tableMeta, 1),
	}
}

func (md *Metadata) Catalog() *cat.Catalog {
	return md.catalog
}

// AddColumn adds a column that isn't backed by a table, such as a projection
// or aggregate result.
func (md *Metadata) AddColumn(label string) ColumnID {
	md.cols = append(md.cols, columnMeta{label: label})
	return ColumnID(len(md.cols) - 1)
}

// AddTable adds a reference to a table. Every reference to a table gets a new
// set of column IDs. Consider the query:
//
//	SELECT * FROM a AS l JOIN a AS r ON (l.x = r.y)
//
// In this query `l.x` is not equivalent to `r.x`, so these columns need
// different IDs. An empty alias uses the table name. The table must not be
// modified while the compilation runs.
func (md *Metadata) AddTable(tbl *cat.Table, alias string) TableID {
	if alias == "" {
		alias = string(tbl.Name)
	}
	id := TableID(len(md.tables))
	first := ColumnID(len(md.cols))
	for i := range tbl.Columns {
		md.cols = append(md.cols, columnMeta{
			label: fmt.Sprintf("%s.%s", alias, tbl.Columns[i].Name),
			table: id,
			ord:   cat.ColumnOrdinal(i),
		})
	}
	md.tables = append(md.tables, tableMeta{table: tbl, alias: alias, firstCol: first})
	return id
}

// AddTableByName looks up a table in the catalog and adds a reference to it.
func (md *Metadata) AddTableByName(name cat.TableName, alias string) (TableID, error) {
	if md.catalog == nil {
		return 0, errors.AssertionFailedf("metadata has no catalog")
	}
	tbl, err := md.catalog.Table(name)
	if err != nil {
		return 0, err
	}
	return md.AddTable(tbl, alias), nil
}

func (md *Metadata) NumTables() int {
	return len(md.tables) - 1
}

func (md *Metadata) NumColumns() int {
	return len(md.cols) - 1
}

func (md *Metadata) Table(id TableID) *cat.Table {
	return md.tables[id].table
}

func (md *Metadata) TableAlias(id TableID) string {
	return md.tables[id].alias
}

// TableColumn returns the ID of the column at the given ordinal of a table
// reference.
func (md *Metadata) TableColumn(id TableID, ord cat.ColumnOrdinal) ColumnID {
	return md.tables[id].firstCol + ColumnID(ord)
}

// TableColumns returns the set of all columns of a table reference.
func (md *Metadata) TableColumns(id TableID) ColSet {
	var s ColSet
	tm := &md.tables[id]
	for i := range tm.table.Columns {
		s.Add(int(tm.firstCol) + i)
	}
	return s
}

// ColumnByName finds the column of a table reference with the given name.
func (md *Metadata) ColumnByName(id TableID, name cat.ColumnName) (ColumnID, error) {
	ord, err := md.tables[id].table.ColumnOrdinal(name)
	if err != nil {
		return 0, err
	}
	return md.TableColumn(id, ord), nil
}

func (md *Metadata) ColumnLabel(col ColumnID) string {
	if col <= 0 || int(col) >= len(md.cols) {
		return fmt.Sprintf("@%d", col)
	}
	return md.cols[col].label
}

// ColumnTable returns the table reference a column belongs to, or 0 for
// synthesized columns.
func (md *Metadata) ColumnTable(col ColumnID) TableID {
	return md.cols[col].table
}

// ColumnNotNull returns true if the catalog declares the column NOT NULL.
func (md *Metadata) ColumnNotNull(col ColumnID) bool {
	cm := &md.cols[col]
	if cm.table == 0 {
		return false
	}
	return md.tables[cm.table].table.Columns[cm.ord].NotNull
}

// ColumnStats returns the catalog statistics of a table column, or nil.
func (md *Metadata) ColumnStats(col ColumnID) *cat.ColumnStats {
	if col <= 0 || int(col) >= len(md.cols) {
		return nil
	}
	cm := &md.cols[col]
	if cm.table == 0 {
		return nil
	}
	tbl := md.tables[cm.table].table
	return tbl.Stats.ColumnStats(tbl.Columns[cm.ord].Name)
}

// FormatColSet formats a set of columns using their labels.
func (md *Metadata) FormatColSet(cols ColSet) string {
	buf := make([]byte, 0, 16)
	buf = append(buf, '(')
	first := true
	cols.ForEach(func(i int) {
		if !first {
			buf = append(buf, ',')
		}
		first = false
		buf = append(buf, md.ColumnLabel(ColumnID(i))...)
	})
	buf = append(buf, ')')
	return string(buf)
}
