package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/vbonduro/containerlog/internal/docstore"
	"github.com/vbonduro/containerlog/internal/domain"
)

// CrewStore reads the crew directory. The dashboard never edits crew; Create
// exists for seeding from the command line.
type CrewStore struct {
	ds         docstore.Store
	collection string
}

func NewCrewStore(ds docstore.Store, collection string) *CrewStore {
	return &CrewStore{ds: ds, collection: collection}
}

type crewMemberWire struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// List returns the directory sorted by first name, then last name, ignoring
// case.
func (s *CrewStore) List(ctx context.Context) ([]domain.CrewMember, error) {
	docs, err := s.ds.Query(ctx, docstore.Query{Collection: s.collection})
	if err != nil {
		return nil, fmt.Errorf("failed to list crew: %w", err)
	}

	members := make([]domain.CrewMember, 0, len(docs))
	for _, doc := range docs {
		var wire crewMemberWire
		if err := docstore.Decode(doc.Fields, &wire); err != nil {
			slog.Warn("skipping crew document", "id", doc.ID, "error", err)
			continue
		}
		members = append(members, domain.CrewMember{
			ID:        doc.ID,
			FirstName: wire.FirstName,
			LastName:  wire.LastName,
		})
	}

	sort.SliceStable(members, func(i, j int) bool {
		a, b := strings.ToLower(members[i].FirstName), strings.ToLower(members[j].FirstName)
		if a != b {
			return a < b
		}
		return strings.ToLower(members[i].LastName) < strings.ToLower(members[j].LastName)
	})
	return members, nil
}

func (s *CrewStore) Create(ctx context.Context, firstName, lastName string) (*domain.CrewMember, error) {
	id, err := s.ds.Create(ctx, s.collection, docstore.Fields{
		fieldFirstName: firstName,
		fieldLastName:  lastName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create crew member: %w", err)
	}
	return &domain.CrewMember{ID: id, FirstName: firstName, LastName: lastName}, nil
}
