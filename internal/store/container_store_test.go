package store

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/containerlog/internal/db"
	"github.com/vbonduro/containerlog/internal/docstore"
	"github.com/vbonduro/containerlog/internal/docstore/sqlite"
	"github.com/vbonduro/containerlog/internal/domain"
)

var epoch = time.Date(2025, 3, 4, 8, 0, 0, 0, time.UTC)

// newDocStore returns an in-memory document store whose clock advances one
// minute per server timestamp.
func newDocStore(t *testing.T) *sqlite.Store {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, d.Close()) })

	ds := sqlite.New(d, slog.Default())
	next := epoch
	ds.SetClock(func() time.Time {
		at := next
		next = next.Add(time.Minute)
		return at
	})
	return ds
}

func newTestContainerStore(t *testing.T) (*ContainerStore, *sqlite.Store) {
	t.Helper()
	ds := newDocStore(t)
	return NewContainerStore(ds, "logs"), ds
}

func TestContainerStoreCreate(t *testing.T) {
	s, _ := newTestContainerStore(t)
	ctx := context.Background()

	rec, err := s.Create(ctx, domain.NewContainer{
		ContainerNumber: "HLBU1",
		CaseNumber:      10,
		SkuNumber:       2,
		CrewAssigned:    []domain.CrewRef{{ID: "c1", FirstName: "Ana", LastName: "Silva"}},
	})
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "HLBU1", rec.ContainerNumber)
	assert.Equal(t, 10, rec.CaseNumber)
	assert.Equal(t, 2, rec.SkuNumber)
	assert.Equal(t, domain.StatusNotStarted, rec.Status)
	assert.Equal(t, []domain.CrewRef{{ID: "c1", FirstName: "Ana", LastName: "Silva"}}, rec.CrewAssigned)
	assert.True(t, rec.StartTime.IsZero())
	assert.True(t, rec.EndTime.IsZero())
	assert.True(t, rec.CreatedAt.Equal(epoch))
}

func TestContainerStoreWritesBoundaryFieldNames(t *testing.T) {
	s, ds := newTestContainerStore(t)
	ctx := context.Background()

	rec, err := s.Create(ctx, domain.NewContainer{
		ContainerNumber: "HLBU1",
		CaseNumber:      10,
		SkuNumber:       2,
		CrewAssigned:    []domain.CrewRef{{FirstName: "Ana", LastName: "Silva"}},
	})
	require.NoError(t, err)

	doc, err := ds.Get(ctx, "logs", rec.ID)
	require.NoError(t, err)
	require.NotNil(t, doc)

	assert.Equal(t, "HLBU1", doc.Fields["containerNumber"])
	assert.Equal(t, float64(10), doc.Fields["caseNumber"])
	assert.Equal(t, float64(2), doc.Fields["skuNumber"])
	assert.Equal(t, "Not Started", doc.Fields["status"])
	assert.Equal(t, []any{map[string]any{"firstName": "Ana", "lastName": "Silva"}}, doc.Fields["crewAssigned"])
	assert.Contains(t, doc.Fields, "createdAt")
	assert.NotContains(t, doc.Fields, "startTime")
	assert.NotContains(t, doc.Fields, "endTime")
}

func TestContainerStoreDecodesLegacyDocuments(t *testing.T) {
	s, ds := newTestContainerStore(t)
	ctx := context.Background()

	id, err := ds.Create(ctx, "logs", docstore.Fields{
		"containerNumber": "OLD1",
		"caseNumber":      "1,200",
		"skuNumber":       "",
		"status":          "In progress",
		"crewAssigned":    []any{map[string]any{"firstName": "Junior", "lastName": "Lee"}},
		"startTime":       "2025-03-04T08:00:00Z",
		"endTime":         nil,
		"createdAt":       docstore.ServerTimestamp,
	})
	require.NoError(t, err)

	rec, err := s.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, 1200, rec.CaseNumber)
	assert.Equal(t, 0, rec.SkuNumber)
	assert.Equal(t, domain.StatusInProgress, rec.Status)
	assert.Equal(t, []domain.CrewRef{{FirstName: "Junior", LastName: "Lee"}}, rec.CrewAssigned)
	assert.True(t, rec.StartTime.Equal(epoch))
	assert.True(t, rec.EndTime.IsZero())
}

func TestContainerStoreGetByIDMissing(t *testing.T) {
	s, _ := newTestContainerStore(t)

	rec, err := s.GetByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestContainerStoreFindByNumber(t *testing.T) {
	s, _ := newTestContainerStore(t)
	ctx := context.Background()

	first, err := s.Create(ctx, domain.NewContainer{ContainerNumber: "A"})
	require.NoError(t, err)
	_, err = s.Create(ctx, domain.NewContainer{ContainerNumber: "B"})
	require.NoError(t, err)
	second, err := s.Create(ctx, domain.NewContainer{ContainerNumber: "A"})
	require.NoError(t, err)

	recs, err := s.FindByNumber(ctx, "A")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, second.ID, recs[0].ID, "newest first")
	assert.Equal(t, first.ID, recs[1].ID)

	none, err := s.FindByNumber(ctx, "Z")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestContainerStoreListNewestFirst(t *testing.T) {
	s, _ := newTestContainerStore(t)
	ctx := context.Background()

	for _, n := range []string{"A", "B", "C"} {
		_, err := s.Create(ctx, domain.NewContainer{ContainerNumber: n})
		require.NoError(t, err)
	}

	recs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "C", recs[0].ContainerNumber)
	assert.Equal(t, "B", recs[1].ContainerNumber)
	assert.Equal(t, "A", recs[2].ContainerNumber)
}

func TestContainerStoreStartAndFinish(t *testing.T) {
	s, _ := newTestContainerStore(t)
	ctx := context.Background()

	rec, err := s.Create(ctx, domain.NewContainer{ContainerNumber: "HLBU1"})
	require.NoError(t, err)

	require.NoError(t, s.MarkStarted(ctx, rec.ID))
	started, err := s.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, started.Status)
	assert.True(t, started.StartTime.Equal(epoch.Add(time.Minute)))
	assert.True(t, started.EndTime.IsZero())

	require.NoError(t, s.MarkFinished(ctx, rec.ID))
	finished, err := s.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, finished.Status)
	assert.True(t, finished.StartTime.Equal(started.StartTime))
	assert.True(t, finished.EndTime.Equal(epoch.Add(2*time.Minute)))
}

func TestContainerStoreUpdate(t *testing.T) {
	s, _ := newTestContainerStore(t)
	ctx := context.Background()

	rec, err := s.Create(ctx, domain.NewContainer{ContainerNumber: "A", CaseNumber: 1})
	require.NoError(t, err)
	require.NoError(t, s.MarkStarted(ctx, rec.ID))

	start := time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC)
	err = s.Update(ctx, rec.ID, domain.ContainerUpdate{
		ContainerNumber: "B",
		CaseNumber:      1500,
		SkuNumber:       3,
		Status:          domain.StatusCompleted,
		CrewAssigned:    []domain.CrewRef{{ID: "c2", FirstName: "Rafael", LastName: "Costa"}},
		StartTime:       start,
	})
	require.NoError(t, err)

	got, err := s.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "B", got.ContainerNumber)
	assert.Equal(t, 1500, got.CaseNumber)
	assert.Equal(t, 3, got.SkuNumber)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, []domain.CrewRef{{ID: "c2", FirstName: "Rafael", LastName: "Costa"}}, got.CrewAssigned)
	assert.True(t, got.StartTime.Equal(start))
	assert.True(t, got.EndTime.IsZero(), "zero end time clears the field")
	assert.True(t, got.CreatedAt.Equal(rec.CreatedAt), "createdAt untouched")
}

func TestContainerStoreMissingRecord(t *testing.T) {
	s, _ := newTestContainerStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.MarkStarted(ctx, "missing"), domain.ErrNotFound)
	assert.ErrorIs(t, s.Update(ctx, "missing", domain.ContainerUpdate{}), domain.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "missing"), domain.ErrNotFound)
}

func TestContainerStoreDelete(t *testing.T) {
	s, _ := newTestContainerStore(t)
	ctx := context.Background()

	rec, err := s.Create(ctx, domain.NewContainer{ContainerNumber: "A"})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, rec.ID))

	got, err := s.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func nextRecords(t *testing.T, sub *RecordSubscription) domain.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")
		return snap
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return domain.Snapshot{}
}

func TestContainerStoreSubscribe(t *testing.T) {
	s, ds := newTestContainerStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, domain.NewContainer{ContainerNumber: "A"})
	require.NoError(t, err)

	sub, err := s.Subscribe(ctx)
	require.NoError(t, err)

	snap := nextRecords(t, sub)
	require.NoError(t, snap.Err)
	require.Len(t, snap.Records, 1)

	_, err = s.Create(ctx, domain.NewContainer{ContainerNumber: "B"})
	require.NoError(t, err)

	snap = nextRecords(t, sub)
	require.NoError(t, snap.Err)
	require.Len(t, snap.Records, 2)
	assert.Equal(t, "B", snap.Records[0].ContainerNumber)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	assert.Equal(t, 0, ds.Subscribers("logs"))

	_, open := <-sub.Events()
	assert.False(t, open)
}

func TestContainerStoreSubscribeSkipsUndecodable(t *testing.T) {
	s, ds := newTestContainerStore(t)
	ctx := context.Background()

	_, err := ds.Create(ctx, "logs", docstore.Fields{"containerNumber": "BAD", "status": "Lost"})
	require.NoError(t, err)
	_, err = s.Create(ctx, domain.NewContainer{ContainerNumber: "GOOD"})
	require.NoError(t, err)

	sub, err := s.Subscribe(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })

	snap := nextRecords(t, sub)
	require.NoError(t, snap.Err)
	require.Len(t, snap.Records, 1)
	assert.Equal(t, "GOOD", snap.Records[0].ContainerNumber)
}
