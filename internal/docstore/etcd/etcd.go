// Package etcd stores documents as JSON values under
// <prefix>/<collection>/<id> and drives subscriptions from etcd watches.
package etcd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/vbonduro/containerlog/internal/docstore"
)

var _ docstore.Store = (*Store)(nil)

type etcdClient interface {
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
	Put(ctx context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error)
	Delete(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.DeleteResponse, error)
	Watch(ctx context.Context, key string, opts ...clientv3.OpOption) clientv3.WatchChan
	Close() error
}

var errWatchClosed = errors.New("etcd watch channel closed")

type Store struct {
	client etcdClient
	prefix string
	now    func() time.Time
	logger *slog.Logger
}

func New(client etcdClient, prefix string, logger *slog.Logger) *Store {
	return &Store{
		client: client,
		prefix: strings.TrimRight(prefix, "/"),
		now:    time.Now,
		logger: logger,
	}
}

// Dial connects to the given endpoints.
func Dial(endpoints []string, dialTimeout time.Duration) (*clientv3.Client, error) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}
	return client, nil
}

func (s *Store) collectionPrefix(collection string) string {
	return fmt.Sprintf("%s/%s/", s.prefix, collection)
}

func (s *Store) key(collection, id string) string {
	return s.collectionPrefix(collection) + id
}

func (s *Store) Create(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	id := uuid.NewString()
	data, err := docstore.Marshal(docstore.Resolve(fields, s.now()))
	if err != nil {
		return "", err
	}
	if _, err := s.client.Put(ctx, s.key(collection, id), string(data)); err != nil {
		return "", fmt.Errorf("failed to create document: %w", err)
	}
	return id, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	resp, err := s.client.Get(ctx, s.key(collection, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return nil, nil
	}
	fields, err := docstore.Unmarshal(resp.Kvs[0].Value)
	if err != nil {
		return nil, err
	}
	return &docstore.Document{ID: id, Fields: fields}, nil
}

func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	docs, _, err := s.load(ctx, q)
	return docs, err
}

// load reads the collection and returns the matching documents together with
// the revision they were read at.
func (s *Store) load(ctx context.Context, q docstore.Query) ([]docstore.Document, int64, error) {
	prefix := s.collectionPrefix(q.Collection)
	resp, err := s.client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query documents: %w", err)
	}

	docs := make([]docstore.Document, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		id := strings.TrimPrefix(string(kv.Key), prefix)
		fields, err := docstore.Unmarshal(kv.Value)
		if err != nil {
			s.logger.Error("skipping undecodable document", "key", string(kv.Key), "error", err)
			continue
		}
		docs = append(docs, docstore.Document{ID: id, Fields: fields})
	}

	var rev int64
	if resp.Header != nil {
		rev = resp.Header.Revision
	}
	return docstore.Apply(docs, q), rev, nil
}

// Update is a read-merge-write; concurrent writers to the same document
// resolve as last write wins.
func (s *Store) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	current, err := s.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	if current == nil {
		return docstore.ErrNotFound
	}
	data, err := docstore.Marshal(docstore.Merge(current.Fields, docstore.Resolve(fields, s.now())))
	if err != nil {
		return err
	}
	if _, err := s.client.Put(ctx, s.key(collection, id), string(data)); err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	resp, err := s.client.Delete(ctx, s.key(collection, id))
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if resp.Deleted == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

// Subscribe emits the current result set, then watches the collection prefix
// from the next revision and re-reads the collection on every watch response.
func (s *Store) Subscribe(ctx context.Context, q docstore.Query) (*docstore.Subscription, error) {
	if q.Collection == "" {
		return nil, errors.New("subscribe: collection required")
	}
	prefix := s.collectionPrefix(q.Collection)

	return docstore.NewSubscription(ctx, func(ctx context.Context, emit docstore.Emit) {
		docs, rev, err := s.load(ctx, q)
		if err != nil {
			s.logger.Warn("initial subscription read failed", "collection", q.Collection, "error", err)
			if !emit(docstore.Snapshot{Err: err}) {
				return
			}
		} else if !emit(docstore.Snapshot{Docs: docs}) {
			return
		}

		opts := []clientv3.OpOption{clientv3.WithPrefix()}
		if rev > 0 {
			opts = append(opts, clientv3.WithRev(rev+1))
		}
		watchCh := s.client.Watch(ctx, prefix, opts...)

		for {
			select {
			case <-ctx.Done():
				return
			case resp, ok := <-watchCh:
				if !ok {
					if ctx.Err() == nil {
						s.logger.Warn("etcd watch closed", "collection", q.Collection)
						emit(docstore.Snapshot{Err: errWatchClosed})
					}
					return
				}
				if err := resp.Err(); err != nil {
					s.logger.Warn("etcd watch error", "collection", q.Collection, "error", err)
					if !emit(docstore.Snapshot{Err: err}) {
						return
					}
					continue
				}
				docs, _, err := s.load(ctx, q)
				if ctx.Err() != nil {
					return
				}
				snap := docstore.Snapshot{Docs: docs}
				if err != nil {
					snap = docstore.Snapshot{Err: err}
				}
				if !emit(snap) {
					return
				}
			}
		}
	}), nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
