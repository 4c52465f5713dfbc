package cat

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func ctxForTest() context.Context {
	return context.Background()
}

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func newPartitionedCatalog(t *testing.T, typ PartitionType) *Catalog {
	c := NewCatalog()
	tbl := newTestTable(t, "t", "k")
	tbl.PartitionType = typ
	tbl.Partitions = []*Partition{{Name: "p1", RowCount: 100}, {Name: "p2", RowCount: 50}}
	tbl.Stats = &TableStats{RowCount: 150}
	require.NoError(t, c.AddTable(tbl))
	return c
}

func TestDropRecoverRangePartition(t *testing.T) {
	c := newPartitionedCatalog(t, RangePartitioned)
	ctx := ctxForTest()

	require.NoError(t, c.DropPartition(ctx, "t", "p1", false /* force */, false))
	entries := c.RecycleBin().Entries()
	require.Len(t, entries, 1)
	require.Equal(t, "p1", entries[0].Partition.Name)

	tbl, err := c.Table("t")
	require.NoError(t, err)
	require.Nil(t, tbl.Partition("p1"))
	require.Equal(t, 50.0, tbl.Stats.RowCount)

	require.NoError(t, c.RecoverPartition("t", "p1"))
	require.NotNil(t, tbl.Partition("p1"))
	require.Equal(t, 150.0, tbl.Stats.RowCount)
	require.Empty(t, c.RecycleBin().Entries())

	require.Error(t, c.RecoverPartition("t", "p1"))
}

func TestRecoverConflict(t *testing.T) {
	c := newPartitionedCatalog(t, RangePartitioned)
	require.NoError(t, c.DropPartition(ctxForTest(), "t", "p1", false, false))

	tbl, err := c.Table("t")
	require.NoError(t, err)
	tbl.Partitions = append(tbl.Partitions, &Partition{ID: c.NewPartitionID(), Name: "p1"})

	require.Error(t, c.RecoverPartition("t", "p1"))
	// The recycled entry must survive the failed recovery.
	require.Len(t, c.RecycleBin().Entries(), 1)
}

func TestForceDrop(t *testing.T) {
	var erased []string
	cleaner := EraseCleaner{Erase: func(_ context.Context, _ TableName, p *Partition) error {
		erased = append(erased, p.Name)
		return nil
	}}

	c := newPartitionedCatalog(t, RangePartitioned)
	c.RecycleBin().Configure(0, cleaner, nil, nil)
	require.NoError(t, c.DropPartition(ctxForTest(), "t", "p1", true /* force */, false))
	require.Equal(t, []string{"p1"}, erased)
	require.Empty(t, c.RecycleBin().Entries())

	// Reserving tablets detaches the partition without erasing it.
	require.NoError(t, c.DropPartition(ctxForTest(), "t", "p2", true, true /* reserveTablets */))
	require.Equal(t, []string{"p1"}, erased)
}

func TestDropListPartition(t *testing.T) {
	c := newPartitionedCatalog(t, ListPartitioned)
	err := c.DropPartition(ctxForTest(), "t", "p1", false, false)
	require.True(t, errors.Is(err, ErrListPartitionNeedsForce), "%v", err)

	require.NoError(t, c.DropPartition(ctxForTest(), "t", "p1", true, false))
	require.Empty(t, c.RecycleBin().Entries())

	require.Error(t, c.DropPartition(ctxForTest(), "t", "missing", true, false))
}

func TestEraseExpired(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	fail := true
	var erased []string
	cleaner := EraseCleaner{
		Retry: true,
		Erase: func(_ context.Context, _ TableName, p *Partition) error {
			if fail {
				return errors.New("storage unavailable")
			}
			erased = append(erased, p.Name)
			return nil
		},
	}

	c := newPartitionedCatalog(t, RangePartitioned)
	c.RecycleBin().Configure(time.Hour, cleaner, clock.Now, nil)
	ctx := ctxForTest()
	require.NoError(t, c.DropPartition(ctx, "t", "p1", false, false))
	clock.now = clock.now.Add(30 * time.Minute)
	require.NoError(t, c.DropPartition(ctx, "t", "p2", false, false))

	// Nothing has expired yet.
	n, err := c.RecycleBin().EraseExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	// p1 expires, but erasing fails and is retried.
	clock.now = clock.now.Add(45 * time.Minute)
	n, err = c.RecycleBin().EraseExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, n)
	entries := c.RecycleBin().Entries()
	require.Len(t, entries, 2)
	require.Equal(t, 1, entries[0].Attempts)

	fail = false
	clock.now = clock.now.Add(time.Hour)
	n, err = c.RecycleBin().EraseExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, []string{"p1", "p2"}, erased)
	require.Empty(t, c.RecycleBin().Entries())
}

func TestEraseExpiredNoRetry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	cleaner := EraseCleaner{Erase: func(context.Context, TableName, *Partition) error {
		return errors.New("boom")
	}}
	c := newPartitionedCatalog(t, RangePartitioned)
	c.RecycleBin().Configure(time.Minute, cleaner, clock.Now, nil)
	require.NoError(t, c.DropPartition(ctxForTest(), "t", "p1", false, false))

	clock.now = clock.now.Add(time.Hour)
	n, err := c.RecycleBin().EraseExpired(ctxForTest())
	require.Error(t, err)
	require.Equal(t, 0, n)
	require.Empty(t, c.RecycleBin().Entries())
}

func TestRunCleanerStops(t *testing.T) {
	c := newPartitionedCatalog(t, RangePartitioned)
	ctx, cancel := context.WithCancel(ctxForTest())
	done := make(chan error, 1)
	go func() {
		done <- c.RecycleBin().RunCleaner(ctx, time.Millisecond)
	}()
	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(10 * time.Second):
		t.Fatal("cleaner did not stop")
	}
}

func TestRecoverDuringErase(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := newPartitionedCatalog(t, RangePartitioned)
	var recoverErr error
	var erased []string
	cleaner := EraseCleaner{Erase: func(_ context.Context, table TableName, p *Partition) error {
		// A partition being erased is no longer recoverable.
		recoverErr = c.RecoverPartition(table, p.Name)
		erased = append(erased, p.Name)
		return nil
	}}
	c.RecycleBin().Configure(time.Minute, cleaner, clock.Now, nil)
	require.NoError(t, c.DropPartition(ctxForTest(), "t", "p1", false, false))

	clock.now = clock.now.Add(time.Hour)
	n, err := c.RecycleBin().EraseExpired(ctxForTest())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, []string{"p1"}, erased)
	require.Error(t, recoverErr)

	tbl, err := c.Table("t")
	require.NoError(t, err)
	require.Nil(t, tbl.Partition("p1"))
	require.Empty(t, c.RecycleBin().Entries())
}

func TestEraseExpiredCanceled(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := newPartitionedCatalog(t, RangePartitioned)
	c.RecycleBin().Configure(time.Minute, nil, clock.Now, nil)
	require.NoError(t, c.DropPartition(ctxForTest(), "t", "p1", false, false))
	require.NoError(t, c.DropPartition(ctxForTest(), "t", "p2", false, false))

	clock.now = clock.now.Add(time.Hour)
	ctx, cancel := context.WithCancel(ctxForTest())
	cancel()
	n, err := c.RecycleBin().EraseExpired(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 0, n)
	require.Len(t, c.RecycleBin().Entries(), 2)
	require.NoError(t, c.RecoverPartition("t", "p1"))
}

func TestForceDropEraseFailure(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	fail := true
	var erased []string
	cleaner := EraseCleaner{
		Retry: true,
		Erase: func(_ context.Context, _ TableName, p *Partition) error {
			if fail {
				return errors.New("storage unavailable")
			}
			erased = append(erased, p.Name)
			return nil
		},
	}
	c := newPartitionedCatalog(t, ListPartitioned)
	c.RecycleBin().Configure(time.Hour, cleaner, clock.Now, nil)

	err := c.DropPartition(ctxForTest(), "t", "p1", true /* force */, false)
	require.Error(t, err)
	require.Contains(t, err.Error(), "storage unavailable")

	// The partition is detached and waits in the recycle bin, already expired.
	tbl, err := c.Table("t")
	require.NoError(t, err)
	require.Nil(t, tbl.Partition("p1"))
	entries := c.RecycleBin().Entries()
	require.Len(t, entries, 1)
	require.Equal(t, "p1", entries[0].Partition.Name)
	require.Equal(t, 1, entries[0].Attempts)

	fail = false
	n, err := c.RecycleBin().EraseExpired(ctxForTest())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, []string{"p1"}, erased)
	require.Empty(t, c.RecycleBin().Entries())
}
