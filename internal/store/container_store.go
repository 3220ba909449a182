package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vbonduro/containerlog/internal/docstore"
	"github.com/vbonduro/containerlog/internal/domain"
)

// ContainerStore persists container records in one document collection.
type ContainerStore struct {
	ds         docstore.Store
	collection string
}

func NewContainerStore(ds docstore.Store, collection string) *ContainerStore {
	return &ContainerStore{ds: ds, collection: collection}
}

func (s *ContainerStore) Create(ctx context.Context, in domain.NewContainer) (*domain.ContainerRecord, error) {
	id, err := s.ds.Create(ctx, s.collection, encodeNewContainer(in))
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ContainerStore) GetByID(ctx context.Context, id string) (*domain.ContainerRecord, error) {
	doc, err := s.ds.Get(ctx, s.collection, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get container: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	return decodeContainer(*doc)
}

// FindByNumber returns every record with the given container number, newest
// first.
func (s *ContainerStore) FindByNumber(ctx context.Context, number string) ([]*domain.ContainerRecord, error) {
	docs, err := s.ds.Query(ctx, docstore.Query{
		Collection: s.collection,
		Where:      &docstore.Filter{Field: fieldContainerNumber, Value: number},
		OrderBy:    fieldCreatedAt,
		Direction:  docstore.Descending,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find container: %w", err)
	}
	return decodeContainers(docs), nil
}

// List returns all records, newest first.
func (s *ContainerStore) List(ctx context.Context) ([]*domain.ContainerRecord, error) {
	docs, err := s.ds.Query(ctx, s.listQuery())
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	return decodeContainers(docs), nil
}

func (s *ContainerStore) Update(ctx context.Context, id string, u domain.ContainerUpdate) error {
	return s.patch(ctx, id, encodeUpdate(u))
}

// MarkStarted moves a record to InProgress stamped with the store clock.
func (s *ContainerStore) MarkStarted(ctx context.Context, id string) error {
	return s.patch(ctx, id, docstore.Fields{
		fieldStatus:    string(domain.StatusInProgress),
		fieldStartTime: docstore.ServerTimestamp,
	})
}

// MarkFinished moves a record to Completed stamped with the store clock.
func (s *ContainerStore) MarkFinished(ctx context.Context, id string) error {
	return s.patch(ctx, id, docstore.Fields{
		fieldStatus:  string(domain.StatusCompleted),
		fieldEndTime: docstore.ServerTimestamp,
	})
}

func (s *ContainerStore) Delete(ctx context.Context, id string) error {
	if err := s.ds.Delete(ctx, s.collection, id); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return fmt.Errorf("container %s: %w", id, domain.ErrNotFound)
		}
		return fmt.Errorf("failed to delete container: %w", err)
	}
	return nil
}

func (s *ContainerStore) patch(ctx context.Context, id string, fields docstore.Fields) error {
	if err := s.ds.Update(ctx, s.collection, id, fields); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return fmt.Errorf("container %s: %w", id, domain.ErrNotFound)
		}
		return fmt.Errorf("failed to update container: %w", err)
	}
	return nil
}

func (s *ContainerStore) listQuery() docstore.Query {
	return docstore.Query{
		Collection: s.collection,
		OrderBy:    fieldCreatedAt,
		Direction:  docstore.Descending,
	}
}

// RecordSubscription decodes a document subscription into records.
type RecordSubscription struct {
	sub    *docstore.Subscription
	events chan domain.Snapshot
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

// Subscribe opens a live view of all records ordered by creation time,
// newest first. The caller must Close the returned subscription.
func (s *ContainerStore) Subscribe(ctx context.Context) (*RecordSubscription, error) {
	sub, err := s.ds.Subscribe(ctx, s.listQuery())
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to containers: %w", err)
	}

	r := &RecordSubscription{
		sub:    sub,
		events: make(chan domain.Snapshot, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go r.run()
	return r, nil
}

func (r *RecordSubscription) run() {
	defer close(r.done)
	defer close(r.events)
	for snap := range r.sub.Events() {
		var out domain.Snapshot
		if snap.Err != nil {
			out.Err = domain.NewSubscriptionError(snap.Err)
		} else {
			out.Records = decodeContainers(snap.Docs)
		}
		select {
		case r.events <- out:
		case <-r.stop:
			return
		}
	}
}

func (r *RecordSubscription) Events() <-chan domain.Snapshot {
	return r.events
}

// Close releases the underlying subscription. Safe to call more than once.
func (r *RecordSubscription) Close() error {
	r.once.Do(func() { close(r.stop) })
	err := r.sub.Close()
	<-r.done
	return err
}

// decodeContainers skips documents that cannot be decoded so one bad record
// does not blank the dashboard.
func decodeContainers(docs []docstore.Document) []*domain.ContainerRecord {
	out := make([]*domain.ContainerRecord, 0, len(docs))
	for _, doc := range docs {
		rec, err := decodeContainer(doc)
		if err != nil {
			slog.Warn("skipping container document", "id", doc.ID, "error", err)
			continue
		}
		out = append(out, rec)
	}
	return out
}
