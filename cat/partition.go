package cat

import (
	"context"

	"github.com/cockroachdb/errors"
)

type PartitionID uint64

type PartitionType int

const (
	Unpartitioned PartitionType = iota
	RangePartitioned
	ListPartitioned
)

func (t PartitionType) String() string {
	switch t {
	case RangePartitioned:
		return "RANGE"
	case ListPartitioned:
		return "LIST"
	default:
		return "NONE"
	}
}

type Partition struct {
	ID       PartitionID
	Name     string
	RowCount float64
}

// ErrListPartitionNeedsForce is returned when dropping a list partition
// without FORCE. Dropped list partitions can't be recovered.
var ErrListPartitionNeedsForce = errors.New("list partitions can only be dropped with FORCE")

// DropPartition removes a partition from a table. A range partition is moved
// to the recycle bin unless force is set, in which case it is erased
// immediately. List partitions must be force-dropped. When reserveTablets is
// set, a force-dropped partition is detached but its data is not erased. A
// partition whose erasure fails is recycled as already expired, so that the
// next cleaner pass erases it.
func (c *Catalog) DropPartition(
	ctx context.Context, table TableName, partition string, force, reserveTablets bool,
) error {
	var dropped *Partition
	var typ PartitionType
	err := c.withTable(table, func(tbl *Table) error {
		p := tbl.Partition(partition)
		if p == nil {
			return errors.Newf("partition '%s' not found in table '%s'", partition, table)
		}
		if tbl.PartitionType == ListPartitioned && !force {
			return errors.Wrapf(ErrListPartitionNeedsForce,
				"cannot drop partition '%s' of '%s'", partition, table)
		}
		tbl.removePartition(p.ID)
		if tbl.Stats != nil {
			tbl.Stats.RowCount -= p.RowCount
			if tbl.Stats.RowCount < 0 {
				tbl.Stats.RowCount = 0
			}
		}
		dropped, typ = p, tbl.PartitionType
		return nil
	})
	if err != nil {
		return err
	}

	switch {
	case typ == RangePartitioned && !force:
		c.recycleBin.recycle(table, dropped)
	case !reserveTablets:
		if err := c.recycleBin.erase(ctx, table, dropped); err != nil {
			// The partition is already detached. Leave it to the cleaner.
			c.recycleBin.recycleExpired(table, dropped)
			return errors.Wrap(err, "partition moved to the recycle bin")
		}
	}
	return nil
}

// RecoverPartition moves a recycled partition back into its table.
func (c *Catalog) RecoverPartition(table TableName, partition string) error {
	entry, err := c.recycleBin.take(table, partition)
	if err != nil {
		return err
	}
	err = c.withTable(table, func(tbl *Table) error {
		if tbl.Partition(partition) != nil {
			return errors.Newf("table '%s' already has partition '%s'", table, partition)
		}
		tbl.Partitions = append(tbl.Partitions, entry.Partition)
		if tbl.Stats != nil {
			tbl.Stats.RowCount += entry.Partition.RowCount
		}
		return nil
	})
	if err != nil {
		// Put it back so that the partition isn't lost.
		c.recycleBin.restore(entry)
	}
	return err
}
