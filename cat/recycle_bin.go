package cat

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

// DefaultRecycleExpiry is how long a dropped partition stays recoverable.
const DefaultRecycleExpiry = 24 * time.Hour

// PartitionCleaner permanently erases the data of a dropped partition.
type PartitionCleaner interface {
	// SupportRetry reports whether a failed erasure should be attempted again
	// on the next cleaner pass. Otherwise the entry is discarded.
	SupportRetry() bool
	CleanPartition(ctx context.Context, table TableName, p *Partition) error
}

// EraseCleaner is a PartitionCleaner backed by a function.
type EraseCleaner struct {
	Erase func(ctx context.Context, table TableName, p *Partition) error
	Retry bool
}

func (c EraseCleaner) SupportRetry() bool { return c.Retry }

func (c EraseCleaner) CleanPartition(ctx context.Context, table TableName, p *Partition) error {
	if c.Erase == nil {
		return nil
	}
	return c.Erase(ctx, table, p)
}

// RecycledPartition is a dropped partition waiting to be erased.
type RecycledPartition struct {
	Table      TableName
	Partition  *Partition
	RecycledAt time.Time
	Attempts   int
}

// RecycleBin holds dropped range partitions until they expire. A background
// cleaner (RunCleaner) erases expired entries.
type RecycleBin struct {
	catalog *Catalog

	mu      sync.Mutex
	entries map[PartitionID]*RecycledPartition
	expiry  time.Duration
	cleaner PartitionCleaner
	now     func() time.Time
	log     logrus.FieldLogger
}

func newRecycleBin(c *Catalog) *RecycleBin {
	return &RecycleBin{
		catalog: c,
		entries: make(map[PartitionID]*RecycledPartition),
		expiry:  DefaultRecycleExpiry,
		cleaner: EraseCleaner{},
		now:     time.Now,
		log:     logrus.StandardLogger(),
	}
}

// Configure sets the expiry, the cleaner, the clock and the logger. Nil or
// zero arguments keep the current setting.
func (b *RecycleBin) Configure(
	expiry time.Duration, cleaner PartitionCleaner, now func() time.Time, log logrus.FieldLogger,
) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if expiry > 0 {
		b.expiry = expiry
	}
	if cleaner != nil {
		b.cleaner = cleaner
	}
	if now != nil {
		b.now = now
	}
	if log != nil {
		b.log = log
	}
}

// Entries returns the recycled partitions ordered by partition ID.
func (b *RecycleBin) Entries() []RecycledPartition {
	b.mu.Lock()
	defer b.mu.Unlock()
	res := make([]RecycledPartition, 0, len(b.entries))
	for _, e := range b.entries {
		res = append(res, *e)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Partition.ID < res[j].Partition.ID })
	return res
}

func (b *RecycleBin) recycle(table TableName, p *Partition) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[p.ID] = &RecycledPartition{Table: table, Partition: p, RecycledAt: b.now()}
	b.log.WithFields(logrus.Fields{"table": table, "partition": p.Name}).Debug("recycled partition")
}

// recycleExpired adds a partition that failed to erase on a force drop.
func (b *RecycleBin) recycleExpired(table TableName, p *Partition) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[p.ID] = &RecycledPartition{
		Table:      table,
		Partition:  p,
		RecycledAt: b.now().Add(-b.expiry),
		Attempts:   1,
	}
}

// take removes the most recently recycled partition with the given name.
func (b *RecycleBin) take(table TableName, name string) (*RecycledPartition, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var found *RecycledPartition
	for _, e := range b.entries {
		if e.Table != table || e.Partition.Name != name {
			continue
		}
		if found == nil || e.RecycledAt.After(found.RecycledAt) ||
			(e.RecycledAt.Equal(found.RecycledAt) && e.Partition.ID > found.Partition.ID) {
			found = e
		}
	}
	if found == nil {
		return nil, errors.Newf("no recycled partition '%s' for table '%s'", name, table)
	}
	delete(b.entries, found.Partition.ID)
	return found, nil
}

func (b *RecycleBin) restore(e *RecycledPartition) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[e.Partition.ID] = e
}

func (b *RecycleBin) erase(ctx context.Context, table TableName, p *Partition) error {
	b.mu.Lock()
	cleaner := b.cleaner
	b.mu.Unlock()
	if err := cleaner.CleanPartition(ctx, table, p); err != nil {
		return errors.Wrapf(err, "erasing partition '%s' of '%s'", p.Name, table)
	}
	return nil
}

// EraseExpired permanently erases every entry older than the expiry. It
// returns the number of partitions erased. Expired entries leave the bin
// before they are erased, so they can no longer be recovered. Failed erasures
// are put back for another attempt if the cleaner supports retry; otherwise
// they are dropped and reported in the returned error.
func (b *RecycleBin) EraseExpired(ctx context.Context) (int, error) {
	b.mu.Lock()
	now := b.now()
	cleaner := b.cleaner
	var expired []*RecycledPartition
	for id, e := range b.entries {
		if now.Sub(e.RecycledAt) >= b.expiry {
			expired = append(expired, e)
			delete(b.entries, id)
		}
	}
	b.mu.Unlock()
	sort.Slice(expired, func(i, j int) bool { return expired[i].Partition.ID < expired[j].Partition.ID })

	var erased int
	var errs error
	for i, e := range expired {
		if err := ctx.Err(); err != nil {
			b.putBack(expired[i:])
			return erased, err
		}
		log := b.log.WithFields(logrus.Fields{"table": e.Table, "partition": e.Partition.Name})
		err := cleaner.CleanPartition(ctx, e.Table, e.Partition)
		switch {
		case err == nil:
			erased++
			log.Debug("erased partition")
		case cleaner.SupportRetry():
			e.Attempts++
			b.putBack(expired[i : i+1])
			log.WithError(err).Warnf("erasing partition failed, attempt %d", e.Attempts)
		default:
			log.WithError(err).Error("erasing partition failed")
			errs = errors.CombineErrors(errs, err)
		}
	}
	return erased, errs
}

// putBack returns entries taken by EraseExpired to the bin.
func (b *RecycleBin) putBack(entries []*RecycledPartition) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range entries {
		if _, ok := b.entries[e.Partition.ID]; !ok {
			b.entries[e.Partition.ID] = e
		}
	}
}

// RunCleaner erases expired partitions every interval until ctx is canceled.
func (b *RecycleBin) RunCleaner(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := b.EraseExpired(ctx); err != nil && ctx.Err() == nil {
				b.log.WithError(err).Warn("recycle bin cleaner pass failed")
			}
		}
	}
}
