package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/vbonduro/containerlog/internal/core/container"
	"github.com/vbonduro/containerlog/internal/domain"
	"github.com/vbonduro/containerlog/internal/metrics"
	"github.com/vbonduro/containerlog/internal/store"
)

// containerRepository is the subset of store.ContainerStore that
// ContainerService requires.
type containerRepository interface {
	Create(ctx context.Context, in domain.NewContainer) (*domain.ContainerRecord, error)
	GetByID(ctx context.Context, id string) (*domain.ContainerRecord, error)
	FindByNumber(ctx context.Context, number string) ([]*domain.ContainerRecord, error)
	Update(ctx context.Context, id string, u domain.ContainerUpdate) error
	MarkStarted(ctx context.Context, id string) error
	MarkFinished(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Subscribe(ctx context.Context) (*store.RecordSubscription, error)
}

// crewRepository is the subset of store.CrewStore that ContainerService
// requires.
type crewRepository interface {
	List(ctx context.Context) ([]domain.CrewMember, error)
	Create(ctx context.Context, firstName, lastName string) (*domain.CrewMember, error)
}

type ContainerService struct {
	containers containerRepository
	crew       crewRepository
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

func NewContainerService(containers containerRepository, crew crewRepository, logger *slog.Logger) *ContainerService {
	return &ContainerService{
		containers: containers,
		crew:       crew,
		logger:     logger,
		metrics:    metrics.Get(),
	}
}

// CreateContainer validates and stores a new NotStarted record. The
// container number must not already be in use.
func (s *ContainerService) CreateContainer(ctx context.Context, in domain.NewContainer) (rec *domain.ContainerRecord, err error) {
	defer s.observe(metrics.OpCreate, time.Now(), &err)

	in.ContainerNumber = strings.TrimSpace(in.ContainerNumber)
	if err := validateNew(in); err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, in.ContainerNumber, ""); err != nil {
		return nil, err
	}

	rec, err = s.containers.Create(ctx, in)
	if err != nil {
		s.logger.Error("create container failed", "container_number", in.ContainerNumber, "error", err)
		return nil, domain.NewPersistenceError("create container", err)
	}
	s.logger.Info("container created", "id", rec.ID, "container_number", rec.ContainerNumber)
	return rec, nil
}

// GetContainer looks a record up by container number. When more than one
// record shares the number the newest wins.
func (s *ContainerService) GetContainer(ctx context.Context, number string) (rec *domain.ContainerRecord, err error) {
	defer s.observe(metrics.OpGet, time.Now(), &err)

	recs, err := s.containers.FindByNumber(ctx, number)
	if err != nil {
		s.logger.Error("find container failed", "container_number", number, "error", err)
		return nil, domain.NewPersistenceError("find container", err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("container %s: %w", number, domain.ErrNotFound)
	}
	if len(recs) > 1 {
		s.logger.Warn("container number is not unique", "container_number", number, "matches", len(recs), "using_id", recs[0].ID)
	}
	return recs[0], nil
}

func (s *ContainerService) GetContainerByID(ctx context.Context, id string) (rec *domain.ContainerRecord, err error) {
	defer s.observe(metrics.OpGet, time.Now(), &err)
	return s.load(ctx, id)
}

// StartContainer moves a NotStarted record to InProgress. Any other status
// is refused without touching the store.
func (s *ContainerService) StartContainer(ctx context.Context, id string) (rec *domain.ContainerRecord, err error) {
	defer s.observe(metrics.OpStart, time.Now(), &err)

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := container.CanStart(container.ForRecord(current)).Error(); err != nil {
		return nil, err
	}
	if err := s.containers.MarkStarted(ctx, id); err != nil {
		s.logger.Error("start container failed", "id", id, "error", err)
		return nil, persistenceError("start container", err)
	}
	s.logger.Info("container started", "id", id, "container_number", current.ContainerNumber)
	return s.load(ctx, id)
}

// FinishContainer moves an InProgress record to Completed. Any other status
// is refused without touching the store.
func (s *ContainerService) FinishContainer(ctx context.Context, id string) (rec *domain.ContainerRecord, err error) {
	defer s.observe(metrics.OpFinish, time.Now(), &err)

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := container.CanFinish(container.ForRecord(current)).Error(); err != nil {
		return nil, err
	}
	if err := s.containers.MarkFinished(ctx, id); err != nil {
		s.logger.Error("finish container failed", "id", id, "error", err)
		return nil, persistenceError("finish container", err)
	}
	s.logger.Info("container finished", "id", id, "container_number", current.ContainerNumber)
	return s.load(ctx, id)
}

// UpdateContainer writes every editable field of a record in one call.
// Status may be set directly; times are taken as given.
func (s *ContainerService) UpdateContainer(ctx context.Context, id string, u domain.ContainerUpdate) (rec *domain.ContainerRecord, err error) {
	defer s.observe(metrics.OpUpdate, time.Now(), &err)

	u.ContainerNumber = strings.TrimSpace(u.ContainerNumber)
	if st, ok := domain.ParseStatus(string(u.Status)); ok {
		u.Status = st
	}
	if err := validateUpdate(u); err != nil {
		return nil, err
	}

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.ContainerNumber != current.ContainerNumber {
		if err := s.ensureUnique(ctx, u.ContainerNumber, id); err != nil {
			return nil, err
		}
	}

	if err := s.containers.Update(ctx, id, u); err != nil {
		s.logger.Error("update container failed", "id", id, "error", err)
		return nil, persistenceError("update container", err)
	}
	s.logger.Info("container updated", "id", id, "container_number", u.ContainerNumber)
	return s.load(ctx, id)
}

func (s *ContainerService) DeleteContainer(ctx context.Context, id string) (err error) {
	defer s.observe(metrics.OpDelete, time.Now(), &err)

	if err := s.containers.Delete(ctx, id); err != nil {
		s.logger.Error("delete container failed", "id", id, "error", err)
		return persistenceError("delete container", err)
	}
	s.logger.Info("container deleted", "id", id)
	return nil
}

// ListCrew returns the crew directory sorted by first name.
func (s *ContainerService) ListCrew(ctx context.Context) (members []domain.CrewMember, err error) {
	defer s.observe(metrics.OpListCrew, time.Now(), &err)

	members, err = s.crew.List(ctx)
	if err != nil {
		s.logger.Error("list crew failed", "error", err)
		return nil, domain.NewPersistenceError("list crew", err)
	}
	return members, nil
}

func (s *ContainerService) AddCrewMember(ctx context.Context, firstName, lastName string) (m *domain.CrewMember, err error) {
	defer s.observe(metrics.OpCreateCrew, time.Now(), &err)

	firstName, lastName = strings.TrimSpace(firstName), strings.TrimSpace(lastName)
	var verr domain.ValidationError
	if firstName == "" {
		verr.Add("firstName", "is required")
	}
	if lastName == "" {
		verr.Add("lastName", "is required")
	}
	if err := verr.ErrorOrNil(); err != nil {
		return nil, err
	}

	m, err = s.crew.Create(ctx, firstName, lastName)
	if err != nil {
		s.logger.Error("create crew member failed", "error", err)
		return nil, domain.NewPersistenceError("create crew member", err)
	}
	s.logger.Info("crew member added", "id", m.ID, "first_name", firstName, "last_name", lastName)
	return m, nil
}

// Subscription is a live, newest-first view of every record.
type Subscription struct {
	*store.RecordSubscription
	once    sync.Once
	metrics *metrics.Metrics
}

// Close releases the subscription. Safe to call more than once.
func (s *Subscription) Close() error {
	s.once.Do(s.metrics.SubscriptionClosed)
	return s.RecordSubscription.Close()
}

// Subscribe opens a live view of all records. The caller owns the returned
// handle and must Close it.
func (s *ContainerService) Subscribe(ctx context.Context) (sub *Subscription, err error) {
	defer s.observe(metrics.OpSubscribe, time.Now(), &err)

	inner, err := s.containers.Subscribe(ctx)
	if err != nil {
		s.logger.Error("subscribe to containers failed", "error", err)
		return nil, domain.NewPersistenceError("subscribe to containers", err)
	}
	s.metrics.SubscriptionOpened()
	return &Subscription{RecordSubscription: inner, metrics: s.metrics}, nil
}

// ReportSubscriptionError logs and counts an error delivered by a live
// subscription.
func (s *ContainerService) ReportSubscriptionError(err error) {
	s.logger.Warn("live subscription error", "error", err)
	s.metrics.RecordSubscriptionError()
}

func (s *ContainerService) load(ctx context.Context, id string) (*domain.ContainerRecord, error) {
	rec, err := s.containers.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("get container failed", "id", id, "error", err)
		return nil, domain.NewPersistenceError("get container", err)
	}
	if rec == nil {
		return nil, fmt.Errorf("container %s: %w", id, domain.ErrNotFound)
	}
	return rec, nil
}

// ensureUnique fails if any record other than exceptID uses number.
func (s *ContainerService) ensureUnique(ctx context.Context, number, exceptID string) error {
	recs, err := s.containers.FindByNumber(ctx, number)
	if err != nil {
		s.logger.Error("find container failed", "container_number", number, "error", err)
		return domain.NewPersistenceError("find container", err)
	}
	for _, r := range recs {
		if r.ID != exceptID {
			return fmt.Errorf("container %s: %w", number, domain.ErrDuplicateContainerNumber)
		}
	}
	return nil
}

func (s *ContainerService) observe(op metrics.Operation, start time.Time, err *error) {
	if *err != nil && isRejection(*err) {
		s.metrics.RecordRejected(op)
		return
	}
	s.metrics.RecordOperation(op, *err, time.Since(start))
}

func isRejection(err error) bool {
	return errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrDuplicateContainerNumber) ||
		errors.Is(err, domain.ErrTransitionNotAllowed)
}

// persistenceError keeps not-found results distinguishable from store
// failures.
func persistenceError(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return domain.NewPersistenceError(op, err)
}
