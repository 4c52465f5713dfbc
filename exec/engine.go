package exec

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/petermattis/cascades/cat"
	"github.com/sirupsen/logrus"
)

// Engine executes DDL against a catalog. It is the only writer of the catalog;
// query compilation reads from catalog snapshots.
type Engine struct {
	catalog *cat.Catalog
	log     logrus.FieldLogger
}

func NewEngine(catalog *cat.Catalog, log logrus.FieldLogger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{catalog: catalog, log: log}
}

func (e *Engine) Catalog() *cat.Catalog {
	return e.catalog
}

// CreateTable creates a table from its definition. Definitions with Like set
// are delegated to CreateTableLike.
func (e *Engine) CreateTable(def *cat.TableDef) (*cat.Table, error) {
	if def.Like != "" {
		if len(def.Columns) > 0 {
			return nil, errors.Newf("table '%s' cannot both copy '%s' and declare columns", def.Name, def.Like)
		}
		return e.CreateTableLike(cat.TableName(def.Name), cat.TableName(def.Like))
	}
	ct := createTable{catalog: e.catalog}
	tbl, err := ct.execute(def)
	if err != nil {
		return nil, errors.Wrapf(err, "creating table %s", def.Name)
	}
	e.log.WithField("table", tbl.Name).Debug("created table")
	return tbl, nil
}

// CreateTableLike creates an empty table with the same columns, keys,
// distribution and partitioning as an existing one. Statistics and foreign
// keys are not copied.
func (e *Engine) CreateTableLike(name, like cat.TableName) (*cat.Table, error) {
	src, err := e.catalog.Table(like)
	if err != nil {
		return nil, err
	}

	tbl := &cat.Table{
		Name:          name,
		DistributedBy: append([]cat.ColumnOrdinal(nil), src.DistributedBy...),
		PartitionType: src.PartitionType,
	}
	for i := range src.Columns {
		if _, err := tbl.AddColumn(&src.Columns[i]); err != nil {
			return nil, err
		}
	}
	for _, key := range src.Keys {
		if key.Fkey != nil && !key.Unique {
			continue
		}
		key.Fkey = nil
		key.Columns = append([]cat.ColumnOrdinal(nil), key.Columns...)
		if _, err := tbl.AddKey(&key); err != nil {
			return nil, err
		}
	}
	for _, p := range src.Partitions {
		tbl.Partitions = append(tbl.Partitions, &cat.Partition{Name: p.Name})
	}

	if err := e.catalog.AddTable(tbl); err != nil {
		return nil, err
	}
	e.log.WithFields(logrus.Fields{"table": name, "like": like}).Debug("created table")
	return tbl, nil
}

// LoadSchema creates every table defined in a YAML schema, in order.
func (e *Engine) LoadSchema(r io.Reader) ([]*cat.Table, error) {
	defs, err := cat.ParseSchema(r)
	if err != nil {
		return nil, err
	}
	res := make([]*cat.Table, 0, len(defs))
	for i := range defs {
		tbl, err := e.CreateTable(&defs[i])
		if err != nil {
			return nil, err
		}
		res = append(res, tbl)
	}
	return res, nil
}

// DropPartition executes ALTER TABLE ... DROP PARTITION [FORCE].
func (e *Engine) DropPartition(
	ctx context.Context, table cat.TableName, partition string, force, reserveTablets bool,
) error {
	if err := e.catalog.DropPartition(ctx, table, partition, force, reserveTablets); err != nil {
		return err
	}
	e.log.WithFields(logrus.Fields{
		"table": table, "partition": partition, "force": force,
	}).Info("dropped partition")
	return nil
}

// RecoverPartition executes RECOVER PARTITION.
func (e *Engine) RecoverPartition(table cat.TableName, partition string) error {
	if err := e.catalog.RecoverPartition(table, partition); err != nil {
		return err
	}
	e.log.WithFields(logrus.Fields{"table": table, "partition": partition}).Info("recovered partition")
	return nil
}
