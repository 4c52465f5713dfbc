package opt

import (
	"context"
	"testing"

	"github.com/petermattis/cascades/opt/testutils/testcat"
	"github.com/stretchr/testify/require"
)

const partitionedSchema = `
tables:
  - name: t
    columns:
      - {name: k, type: int}
      - {name: v, type: int}
    primary_key: [k]
    partition_by: range
    partitions:
      - {name: p1, rows: 100}
      - {name: p2, rows: 50}
    stats:
      rows: 150
`

func TestMetadataCatalogSnapshot(t *testing.T) {
	c := testcat.New(partitionedSchema)
	md := NewMetadata(c)

	// DDL after the compilation started is not visible to it.
	require.NoError(t, c.DropPartition(context.Background(), "t", "p1", false, false))
	tab, err := md.AddTableByName("t", "")
	require.NoError(t, err)
	require.Equal(t, 150.0, md.Table(tab).Stats.RowCount)
	require.NotNil(t, md.Table(tab).Partition("p1"))

	m := NewMemo(md)
	g := m.Memoize(ScanOp, &ScanPrivate{Table: tab})
	require.Equal(t, 150.0, m.GroupLogicalProps(g).Stats.RowCount)

	live, err := c.Table("t")
	require.NoError(t, err)
	require.Equal(t, 50.0, live.Stats.RowCount)

	// A new compilation sees the drop.
	md = NewMetadata(c)
	tab, err = md.AddTableByName("t", "")
	require.NoError(t, err)
	require.Equal(t, 50.0, md.Table(tab).Stats.RowCount)
}
