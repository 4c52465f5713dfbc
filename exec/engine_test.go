package exec

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/petermattis/cascades/cat"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func newTestEngine() *Engine {
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	return NewEngine(cat.NewCatalog(), log)
}

// TestEngine runs DDL scripts from testdata. Supported commands:
//
//   - exec: create the tables defined by the YAML input.
//   - show table=<name>: print a table.
//   - drop-partition table=<name> partition=<name> [force] [reserve]
//   - recover-partition table=<name> partition=<name>
//   - recycle-bin: list recycled partitions.
func TestEngine(t *testing.T) {
	datadriven.Walk(t, "testdata", func(t *testing.T, path string) {
		e := newTestEngine()
		ctx := context.Background()

		datadriven.RunTest(t, path, func(t *testing.T, d *datadriven.TestData) string {
			var table, partition string
			if d.HasArg("table") {
				d.ScanArgs(t, "table", &table)
			}
			if d.HasArg("partition") {
				d.ScanArgs(t, "partition", &partition)
			}

			switch d.Cmd {
			case "exec":
				tables, err := e.LoadSchema(strings.NewReader(d.Input))
				if err != nil {
					return fmt.Sprintf("error: %v\n", err)
				}
				var buf bytes.Buffer
				for _, tbl := range tables {
					buf.WriteString(tbl.String())
				}
				return buf.String()

			case "show":
				tbl, err := e.Catalog().Table(cat.TableName(table))
				if err != nil {
					return fmt.Sprintf("error: %v\n", err)
				}
				return tbl.String()

			case "drop-partition":
				err := e.DropPartition(ctx, cat.TableName(table), partition, d.HasArg("force"), d.HasArg("reserve"))
				if err != nil {
					return fmt.Sprintf("error: %v\n", err)
				}
				return "ok\n"

			case "recover-partition":
				if err := e.RecoverPartition(cat.TableName(table), partition); err != nil {
					return fmt.Sprintf("error: %v\n", err)
				}
				return "ok\n"

			case "recycle-bin":
				var buf bytes.Buffer
				for _, entry := range e.Catalog().RecycleBin().Entries() {
					fmt.Fprintf(&buf, "%s.%s\n", entry.Table, entry.Partition.Name)
				}
				if buf.Len() == 0 {
					return "empty\n"
				}
				return buf.String()

			default:
				d.Fatalf(t, "unsupported command: %s", d.Cmd)
				return ""
			}
		})
	})
}

func TestCreateTableForeignKey(t *testing.T) {
	e := newTestEngine()
	_, err := e.LoadSchema(strings.NewReader(`
tables:
  - name: customers
    columns:
      - {name: id, type: int}
    primary_key: [id]
  - name: orders
    columns:
      - {name: id, type: int}
      - {name: cust, type: int}
    primary_key: [id]
    foreign_keys:
      - {columns: [cust], references: customers}
`))
	require.NoError(t, err)

	orders, err := e.Catalog().Table("orders")
	require.NoError(t, err)
	require.Len(t, orders.Keys, 2)
	fk := orders.Keys[1].Fkey
	require.NotNil(t, fk)
	require.Equal(t, cat.TableName("customers"), fk.Referenced.Name)
	require.Equal(t, []cat.ColumnOrdinal{0}, fk.Columns)

	_, err = e.LoadSchema(strings.NewReader(`
tables:
  - name: bad
    columns:
      - {name: c, type: int}
    foreign_keys:
      - {columns: [c], references: nowhere}
`))
	require.Error(t, err)
}

func TestCreateTableLike(t *testing.T) {
	e := newTestEngine()
	_, err := e.LoadSchema(strings.NewReader(`
tables:
  - name: a
    columns:
      - {name: k, type: int}
      - {name: v, type: string}
    primary_key: [k]
    partition_by: range
    partitions:
      - {name: p1, rows: 10}
    stats:
      rows: 10
`))
	require.NoError(t, err)

	tbl, err := e.CreateTableLike("b", "a")
	require.NoError(t, err)
	require.Len(t, tbl.Columns, 2)
	require.True(t, tbl.Columns[0].NotNull)
	require.Equal(t, cat.RangePartitioned, tbl.PartitionType)
	require.Len(t, tbl.Partitions, 1)
	require.Zero(t, tbl.Partitions[0].RowCount)
	require.Nil(t, tbl.Stats)

	_, err = e.CreateTableLike("c", "missing")
	require.Error(t, err)
	_, err = e.CreateTableLike("b", "a")
	require.Error(t, err)
}
