package cat

import (
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
)

var (
	ErrTableNotFound = errors.New("table not found")
	ErrTableExists   = errors.New("table already exists")
)

// TableID uniquely identifies a table within a catalog. IDs are never reused.
type TableID uint32

// Catalog holds table metadata and statistics. It is safe for concurrent use:
// DDL mutates it under a write lock, and each query compilation works from a
// Snapshot so that plan search never observes concurrent changes.
type Catalog struct {
	mu sync.RWMutex

	// tables maps from name to table metadata.
	tables map[TableName]*Table

	nextTableID     TableID
	nextPartitionID PartitionID

	recycleBin *RecycleBin
}

func NewCatalog() *Catalog {
	c := &Catalog{tables: make(map[TableName]*Table)}
	c.recycleBin = newRecycleBin(c)
	return c
}

// RecycleBin returns the holding area for dropped partitions.
func (c *Catalog) RecycleBin() *RecycleBin {
	return c.recycleBin
}

func (c *Catalog) Table(name TableName) (*Table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tbl, ok := c.tables[name]
	if !ok {
		return nil, errors.Mark(errors.Newf("table %q not found", name), ErrTableNotFound)
	}
	return tbl, nil
}

// AddTable assigns the table an ID and adds it to the catalog. Partitions
// without an ID are assigned one as well.
func (c *Catalog) AddTable(tbl *Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tables[tbl.Name]; ok {
		return errors.Mark(errors.Newf("table %q already exists", tbl.Name), ErrTableExists)
	}

	c.nextTableID++
	tbl.ID = c.nextTableID
	for _, p := range tbl.Partitions {
		if p.ID == 0 {
			c.nextPartitionID++
			p.ID = c.nextPartitionID
		}
	}
	c.tables[tbl.Name] = tbl
	return nil
}

// NewPartitionID allocates an ID for a partition added after table creation.
func (c *Catalog) NewPartitionID() PartitionID {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextPartitionID++
	return c.nextPartitionID
}

// Tables returns all tables, sorted by ID.
func (c *Catalog) Tables() []*Table {
	c.mu.RLock()
	defer c.mu.RUnlock()
	res := make([]*Table, 0, len(c.tables))
	for _, tbl := range c.tables {
		res = append(res, tbl)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// Snapshot returns a read-only copy of the catalog. Later DDL on the original
// catalog does not affect the snapshot.
func (c *Catalog) Snapshot() *Catalog {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := &Catalog{
		tables:          make(map[TableName]*Table, len(c.tables)),
		nextTableID:     c.nextTableID,
		nextPartitionID: c.nextPartitionID,
	}
	snap.recycleBin = newRecycleBin(snap)
	for name, tbl := range c.tables {
		snap.tables[name] = tbl.clone()
	}
	return snap
}

// withTable runs fn with the named table under the catalog write lock.
func (c *Catalog) withTable(name TableName, fn func(tbl *Table) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	tbl, ok := c.tables[name]
	if !ok {
		return errors.Mark(errors.Newf("table %q not found", name), ErrTableNotFound)
	}
	return fn(tbl)
}
