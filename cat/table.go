package cat

import (
	"bytes"
	"fmt"

	"github.com/cockroachdb/errors"
)

var implicitPrimaryKey = &TableKey{Name: "primary", Primary: true}

type TableName string

type Table struct {
	ID      TableID
	Name    TableName
	Columns []Column
	Keys    []TableKey

	// DistributedBy lists the columns rows are hash-distributed on. An empty
	// list means the table lives on a single node.
	DistributedBy []ColumnOrdinal

	PartitionType PartitionType
	Partitions    []*Partition

	// Stats is nil when no statistics have been collected.
	Stats *TableStats

	// colMap indexes all columns by mapping their name to their ordinal
	// position in the table.
	colMap map[ColumnName]ColumnOrdinal
}

func (t *Table) AddColumn(col *Column) (ColumnOrdinal, error) {
	if t.colMap == nil {
		t.colMap = make(map[ColumnName]ColumnOrdinal)
	}

	if _, ok := t.colMap[col.Name]; ok {
		return 0, errors.Newf("table '%s' already has column '%s'", t.Name, col.Name)
	}

	ord := ColumnOrdinal(len(t.Columns))
	t.Columns = append(t.Columns, *col)
	t.colMap[col.Name] = ord
	return ord, nil
}

func (t *Table) AddKey(key *TableKey) (*TableKey, error) {
	for i := range t.Keys {
		if t.Keys[i].Name == key.Name {
			return nil, errors.Newf("table '%s' already has key '%s'", t.Name, key.Name)
		}
	}

	t.Keys = append(t.Keys, *key)
	return &t.Keys[len(t.Keys)-1], nil
}

func (t *Table) Column(name ColumnName) (*Column, error) {
	ord, err := t.ColumnOrdinal(name)
	if err != nil {
		return nil, err
	}
	return &t.Columns[ord], nil
}

func (t *Table) ColumnOrdinal(name ColumnName) (ColumnOrdinal, error) {
	if t.colMap != nil {
		if ord, ok := t.colMap[name]; ok {
			return ord, nil
		}
	}
	return 0, errors.Newf("column name '%s' not found in table '%s'", name, t.Name)
}

func (t *Table) PrimaryKey() *TableKey {
	for i := range t.Keys {
		if k := &t.Keys[i]; k.Primary {
			return k
		}
	}
	return implicitPrimaryKey
}

// Partition returns the live partition with the given name, or nil.
func (t *Table) Partition(name string) *Partition {
	for _, p := range t.Partitions {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func (t *Table) removePartition(id PartitionID) {
	for i, p := range t.Partitions {
		if p.ID == id {
			t.Partitions = append(t.Partitions[:i:i], t.Partitions[i+1:]...)
			return
		}
	}
}

// clone makes a copy of the table that shares nothing mutable with t.
func (t *Table) clone() *Table {
	res := *t
	res.Columns = append([]Column(nil), t.Columns...)
	res.Keys = make([]TableKey, len(t.Keys))
	for i := range t.Keys {
		res.Keys[i] = t.Keys[i]
		res.Keys[i].Columns = append([]ColumnOrdinal(nil), t.Keys[i].Columns...)
	}
	res.DistributedBy = append([]ColumnOrdinal(nil), t.DistributedBy...)
	res.Partitions = make([]*Partition, len(t.Partitions))
	for i, p := range t.Partitions {
		c := *p
		res.Partitions[i] = &c
	}
	res.Stats = t.Stats.clone()
	res.colMap = make(map[ColumnName]ColumnOrdinal, len(t.colMap))
	for k, v := range t.colMap {
		res.colMap[k] = v
	}
	return &res
}

func (t *Table) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "table %s\n", t.Name)
	for _, col := range t.Columns {
		fmt.Fprintf(&buf, "  %s", col.Name)
		if col.Type != "" {
			fmt.Fprintf(&buf, " %s", col.Type)
		}
		if col.NotNull {
			buf.WriteString(" NOT NULL")
		} else {
			buf.WriteString(" NULL")
		}
		buf.WriteString("\n")
	}

	for _, key := range t.Keys {
		buf.WriteString("  ")
		t.formatColumns(&buf, key.Columns)
		if fkey := key.Fkey; fkey != nil {
			fmt.Fprintf(&buf, " -> %s", fkey.Referenced.Name)
			fkey.Referenced.formatColumns(&buf, fkey.Columns)
		}
		switch {
		case key.Primary:
			buf.WriteString(" PRIMARY KEY")
		case key.Unique && key.NotNull:
			buf.WriteString(" KEY")
		case key.Unique:
			buf.WriteString(" WEAK KEY")
		}
		buf.WriteString("\n")
	}

	if len(t.DistributedBy) > 0 {
		buf.WriteString("  DISTRIBUTED BY HASH")
		t.formatColumns(&buf, t.DistributedBy)
		buf.WriteString("\n")
	}

	if t.PartitionType != Unpartitioned {
		fmt.Fprintf(&buf, "  PARTITION BY %s", t.PartitionType)
		for i, p := range t.Partitions {
			if i == 0 {
				buf.WriteString(" ")
			} else {
				buf.WriteString(",")
			}
			buf.WriteString(p.Name)
		}
		buf.WriteString("\n")
	}

	return buf.String()
}

func (t *Table) formatColumns(buf *bytes.Buffer, cols []ColumnOrdinal) {
	buf.WriteString("(")
	for i, colIdx := range cols {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString(string(t.Columns[colIdx].Name))
	}
	buf.WriteString(")")
}

type TableKey struct {
	Name    string
	Primary bool
	Unique  bool
	NotNull bool
	Columns []ColumnOrdinal
	Fkey    *ForeignKey
}

func (k *TableKey) EqualColumns(other *TableKey) bool {
	if len(k.Columns) != len(other.Columns) {
		return false
	}
	for i := range k.Columns {
		if k.Columns[i] != other.Columns[i] {
			return false
		}
	}
	return true
}

type ForeignKey struct {
	Referenced *Table
	Columns    []ColumnOrdinal
}
