package cat

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func newTestTable(t *testing.T, name string, cols ...string) *Table {
	tbl := &Table{Name: TableName(name)}
	for _, c := range cols {
		_, err := tbl.AddColumn(&Column{Name: ColumnName(c), Type: "int"})
		require.NoError(t, err)
	}
	return tbl
}

func TestCatalog(t *testing.T) {
	c := NewCatalog()
	a := newTestTable(t, "a", "x", "y")
	require.NoError(t, c.AddTable(a))
	require.NoError(t, c.AddTable(newTestTable(t, "b", "z")))
	require.Equal(t, TableID(1), a.ID)

	err := c.AddTable(newTestTable(t, "a"))
	require.True(t, errors.Is(err, ErrTableExists), "%v", err)

	_, err = c.Table("missing")
	require.True(t, errors.Is(err, ErrTableNotFound), "%v", err)

	tbl, err := c.Table("a")
	require.NoError(t, err)
	ord, err := tbl.ColumnOrdinal("y")
	require.NoError(t, err)
	require.Equal(t, ColumnOrdinal(1), ord)
	_, err = tbl.ColumnOrdinal("q")
	require.Error(t, err)

	names := []TableName{}
	for _, tbl := range c.Tables() {
		names = append(names, tbl.Name)
	}
	require.Equal(t, []TableName{"a", "b"}, names)
}

func TestTableDuplicates(t *testing.T) {
	tbl := newTestTable(t, "a", "x")
	_, err := tbl.AddColumn(&Column{Name: "x"})
	require.Error(t, err)

	_, err = tbl.AddKey(&TableKey{Name: "primary", Primary: true, Columns: []ColumnOrdinal{0}})
	require.NoError(t, err)
	_, err = tbl.AddKey(&TableKey{Name: "primary"})
	require.Error(t, err)
	require.Equal(t, []ColumnOrdinal{0}, tbl.PrimaryKey().Columns)
}

func TestCatalogSnapshot(t *testing.T) {
	c := NewCatalog()
	tbl := newTestTable(t, "a", "x")
	tbl.PartitionType = RangePartitioned
	tbl.Partitions = []*Partition{{Name: "p1", RowCount: 10}, {Name: "p2", RowCount: 5}}
	tbl.Stats = &TableStats{RowCount: 15}
	require.NoError(t, c.AddTable(tbl))

	snap := c.Snapshot()
	require.NoError(t, c.DropPartition(ctxForTest(), "a", "p1", false, false))

	live, err := c.Table("a")
	require.NoError(t, err)
	require.Len(t, live.Partitions, 1)
	require.Equal(t, 5.0, live.Stats.RowCount)

	old, err := snap.Table("a")
	require.NoError(t, err)
	require.Len(t, old.Partitions, 2)
	require.Equal(t, 15.0, old.Stats.RowCount)
}

func TestTableString(t *testing.T) {
	tbl := newTestTable(t, "a", "x", "y")
	tbl.Columns[0].NotNull = true
	_, err := tbl.AddKey(&TableKey{Name: "primary", Primary: true, Unique: true, NotNull: true, Columns: []ColumnOrdinal{0}})
	require.NoError(t, err)
	tbl.DistributedBy = []ColumnOrdinal{0}

	exp := `
table a
  x int NOT NULL
  y int NULL
  (x) PRIMARY KEY
  DISTRIBUTED BY HASH(x)
`
	require.Equal(t, strings.TrimLeft(exp, "\n"), tbl.String())
}
