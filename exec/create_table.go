package exec

import (
	"github.com/cockroachdb/errors"
	"github.com/petermattis/cascades/cat"
)

type createTable struct {
	catalog *cat.Catalog
	tbl     *cat.Table
}

func (ct *createTable) execute(def *cat.TableDef) (*cat.Table, error) {
	ct.tbl = &cat.Table{Name: cat.TableName(def.Name)}

	for i := range def.Columns {
		if err := ct.addColumn(&def.Columns[i]); err != nil {
			return nil, err
		}
	}
	if len(ct.tbl.Columns) == 0 {
		return nil, errors.Newf("table '%s' must have at least one column", def.Name)
	}

	if len(def.PrimaryKey) > 0 {
		cols, err := ct.extractNames(ct.tbl, def.PrimaryKey)
		if err != nil {
			return nil, err
		}
		for _, i := range cols {
			ct.tbl.Columns[i].NotNull = true
		}
		key, err := ct.addKey(&cat.TableKey{Primary: true, Unique: true, Columns: cols})
		if err != nil {
			return nil, err
		}
		if key.Name == "" {
			key.Name = "primary"
		}
	}

	for _, names := range def.Unique {
		cols, err := ct.extractNames(ct.tbl, names)
		if err != nil {
			return nil, err
		}
		key, err := ct.addKey(&cat.TableKey{Unique: true, Columns: cols})
		if err != nil {
			return nil, err
		}
		if key.Name == "" {
			key.Name = names[0] + "_idx"
		}
	}

	for i := range def.ForeignKeys {
		if err := ct.addTableForeignKey(&def.ForeignKeys[i]); err != nil {
			return nil, err
		}
	}

	dist, err := ct.extractNames(ct.tbl, def.DistributedBy)
	if err != nil {
		return nil, err
	}
	ct.tbl.DistributedBy = dist

	if err := ct.addPartitions(def); err != nil {
		return nil, err
	}
	ct.tbl.Stats = def.Stats.BuildStats()

	// Add the new table to the catalog.
	if err := ct.catalog.AddTable(ct.tbl); err != nil {
		return nil, err
	}
	return ct.tbl, nil
}

func (ct *createTable) addColumn(def *cat.ColumnDef) error {
	col := cat.Column{Name: cat.ColumnName(def.Name), Type: cat.ColumnType(def.Type), NotNull: def.NotNull}
	_, err := ct.tbl.AddColumn(&col)
	return err
}

func (ct *createTable) addPartitions(def *cat.TableDef) error {
	typ, err := cat.PartitionTypeFromString(def.PartitionBy)
	if err != nil {
		return err
	}
	if typ == cat.Unpartitioned && len(def.Partitions) > 0 {
		return errors.Newf("table '%s' lists partitions but has no partition_by", def.Name)
	}
	ct.tbl.PartitionType = typ
	for _, p := range def.Partitions {
		if ct.tbl.Partition(p.Name) != nil {
			return errors.Newf("duplicate partition '%s' in table '%s'", p.Name, def.Name)
		}
		ct.tbl.Partitions = append(ct.tbl.Partitions, &cat.Partition{Name: p.Name, RowCount: p.Rows})
	}
	return nil
}

func (ct *createTable) addTableForeignKey(def *cat.ForeignKeyDef) error {
	ref, err := ct.catalog.Table(cat.TableName(def.References))
	if err != nil {
		return err
	}

	var toCols []cat.ColumnOrdinal
	if len(def.RefColumns) == 0 {
		for _, key := range ref.Keys {
			if key.Primary {
				toCols = key.Columns
				break
			}
		}
		if toCols == nil {
			return errors.Newf("%s does not contain a primary key", ref.Name)
		}
	} else if toCols, err = ct.extractNames(ref, def.RefColumns); err != nil {
		return err
	}

	fromCols, err := ct.extractNames(ct.tbl, def.Columns)
	if err != nil {
		return err
	}
	if len(fromCols) != len(toCols) {
		return errors.Newf("invalid foreign key specification: %s(%v) -> %s(%v)",
			ct.tbl.Name, def.Columns, ref.Name, def.RefColumns)
	}

	return ct.addForeignKey(ref, fromCols, toCols)
}

func (ct *createTable) addKey(key *cat.TableKey) (*cat.TableKey, error) {
	if existing := ct.getKey(key); existing != nil {
		existing.Primary = existing.Primary || key.Primary
		existing.Unique = existing.Unique || key.Unique
		existing.NotNull = existing.NotNull || key.NotNull
		return existing, nil
	}

	key.NotNull = true
	for _, i := range key.Columns {
		key.NotNull = key.NotNull && ct.tbl.Columns[i].NotNull
	}

	return ct.tbl.AddKey(key)
}

func (ct *createTable) getKey(key *cat.TableKey) *cat.TableKey {
	for i := range ct.tbl.Keys {
		existing := &ct.tbl.Keys[i]
		if existing.EqualColumns(key) {
			return existing
		}
	}
	return nil
}

func (ct *createTable) addForeignKey(dest *cat.Table, srcColumns, destColumns []cat.ColumnOrdinal) error {
	srcKey, err := ct.addKey(&cat.TableKey{Columns: srcColumns})
	if err != nil {
		return err
	}
	if srcKey.Fkey != nil {
		return errors.Newf("foreign key already defined for %v", srcColumns)
	}
	if srcKey.Name == "" {
		srcKey.Name = "fk_" + string(dest.Name)
	}

	srcKey.Fkey = &cat.ForeignKey{
		Referenced: dest,
		Columns:    destColumns,
	}
	return nil
}

func (ct *createTable) extractNames(tbl *cat.Table, names []string) ([]cat.ColumnOrdinal, error) {
	if len(names) == 0 {
		return nil, nil
	}
	res := make([]cat.ColumnOrdinal, len(names))
	for i, name := range names {
		ord, err := tbl.ColumnOrdinal(cat.ColumnName(name))
		if err != nil {
			return nil, err
		}
		res[i] = ord
	}
	return res, nil
}
