package cat

import (
	"io"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// TableDef is the declarative form of a table, as read from a schema file.
//
//	tables:
//	  - name: orders
//	    columns:
//	      - {name: id, type: int, not_null: true}
//	      - {name: customer, type: int}
//	    primary_key: [id]
//	    distributed_by: [id]
//	    partition_by: range
//	    partitions:
//	      - {name: p2023, rows: 400}
//	    stats:
//	      rows: 1000
//	      columns:
//	        customer: {distinct: 100}
type TableDef struct {
	Name          string          `yaml:"name"`
	Like          string          `yaml:"like,omitempty"`
	Columns       []ColumnDef     `yaml:"columns,omitempty"`
	PrimaryKey    []string        `yaml:"primary_key,omitempty"`
	Unique        [][]string      `yaml:"unique,omitempty"`
	ForeignKeys   []ForeignKeyDef `yaml:"foreign_keys,omitempty"`
	DistributedBy []string        `yaml:"distributed_by,omitempty"`
	PartitionBy   string          `yaml:"partition_by,omitempty"`
	Partitions    []PartitionDef  `yaml:"partitions,omitempty"`
	Stats         *StatsDef       `yaml:"stats,omitempty"`
}

type ColumnDef struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	NotNull bool   `yaml:"not_null,omitempty"`
}

type ForeignKeyDef struct {
	Columns    []string `yaml:"columns"`
	References string   `yaml:"references"`
	RefColumns []string `yaml:"ref_columns,omitempty"`
}

type PartitionDef struct {
	Name string  `yaml:"name"`
	Rows float64 `yaml:"rows,omitempty"`
}

type StatsDef struct {
	Rows    float64                   `yaml:"rows"`
	Columns map[string]ColumnStatsDef `yaml:"columns,omitempty"`
}

type ColumnStatsDef struct {
	Distinct float64 `yaml:"distinct"`
	Nulls    float64 `yaml:"nulls,omitempty"`
}

type schemaFile struct {
	Tables []TableDef `yaml:"tables"`
}

// ParseSchema reads table definitions from a YAML document.
func ParseSchema(r io.Reader) ([]TableDef, error) {
	var f schemaFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "parsing schema")
	}
	for i := range f.Tables {
		if f.Tables[i].Name == "" {
			return nil, errors.Newf("table definition %d has no name", i+1)
		}
	}
	return f.Tables, nil
}

// PartitionTypeFromString parses the partition_by attribute of a TableDef.
func PartitionTypeFromString(s string) (PartitionType, error) {
	switch s {
	case "":
		return Unpartitioned, nil
	case "range":
		return RangePartitioned, nil
	case "list":
		return ListPartitioned, nil
	}
	return Unpartitioned, errors.Newf("unknown partition type %q", s)
}

// BuildStats converts a StatsDef into table statistics.
func (d *StatsDef) BuildStats() *TableStats {
	if d == nil {
		return nil
	}
	s := &TableStats{RowCount: d.Rows}
	if len(d.Columns) > 0 {
		s.Columns = make(map[ColumnName]*ColumnStats, len(d.Columns))
		for name, cs := range d.Columns {
			s.Columns[ColumnName(name)] = &ColumnStats{DistinctCount: cs.Distinct, NullCount: cs.Nulls}
		}
	}
	return s
}
