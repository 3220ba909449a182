package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vbonduro/containerlog/internal/core/container"
	"github.com/vbonduro/containerlog/internal/domain"
	"github.com/vbonduro/containerlog/internal/format"
	"github.com/vbonduro/containerlog/internal/service"
)

type listService interface {
	Subscribe(ctx context.Context) (*service.Subscription, error)
	StartContainer(ctx context.Context, id string) (*domain.ContainerRecord, error)
	FinishContainer(ctx context.Context, id string) (*domain.ContainerRecord, error)
	ReportSubscriptionError(err error)
}

var errAlreadyMounted = errors.New("list view already mounted")

// Row is one rendered line of the live container list.
type Row struct {
	ID              string
	ContainerNumber string
	CaseCount       string
	SkuCount        string
	Status          domain.Status
	StatusClass     string
	Crew            []string
	StartTime       string
	EndTime         string
	TimeRange       string
	Duration        string
	CreatedDate     string
	CanStart        bool
	CanFinish       bool
}

// BuildRow derives the display values for r.
func BuildRow(r *domain.ContainerRecord, f format.Formatter) Row {
	guard := container.ForRecord(r)
	return Row{
		ID:              r.ID,
		ContainerNumber: r.ContainerNumber,
		CaseCount:       format.Count(r.CaseNumber),
		SkuCount:        format.Count(r.SkuNumber),
		Status:          r.Status,
		StatusClass:     r.Status.Slug(),
		Crew:            CrewNames(r.CrewAssigned),
		StartTime:       f.Time(r.StartTime),
		EndTime:         f.Time(r.EndTime),
		TimeRange:       f.TimeRange(r.StartTime, r.EndTime),
		Duration:        format.Duration(r.StartTime, r.EndTime),
		CreatedDate:     f.FullDate(r.CreatedAt),
		CanStart:        container.CanStart(guard).Allowed,
		CanFinish:       container.CanFinish(guard).Allowed,
	}
}

// ListView mirrors the live record collection. It owns at most one
// subscription, opened by Mount and released by Unmount.
type ListView struct {
	svc    listService
	format format.Formatter
	logger *slog.Logger

	mu      sync.Mutex
	sub     *service.Subscription
	done    chan struct{}
	rows    []Row
	loaded  bool
	err     error
	changed chan struct{}
}

func NewListView(svc listService, f format.Formatter, logger *slog.Logger) *ListView {
	return &ListView{
		svc:     svc,
		format:  f,
		logger:  logger,
		changed: make(chan struct{}, 1),
	}
}

// Mount opens the live subscription. Mounting twice without Unmount fails.
func (v *ListView) Mount(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.sub != nil {
		return errAlreadyMounted
	}

	sub, err := v.svc.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to mount list: %w", err)
	}
	v.sub = sub
	v.done = make(chan struct{})
	go v.consume(sub, v.done)
	return nil
}

// Unmount releases the subscription and waits for delivery to stop. It is
// a no-op when not mounted.
func (v *ListView) Unmount() error {
	v.mu.Lock()
	sub, done := v.sub, v.done
	v.sub, v.done = nil, nil
	v.mu.Unlock()

	if sub == nil {
		return nil
	}
	err := sub.Close()
	<-done
	return err
}

// Mounted reports whether a subscription is open.
func (v *ListView) Mounted() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sub != nil
}

func (v *ListView) consume(sub *service.Subscription, done chan struct{}) {
	defer close(done)
	for snap := range sub.Events() {
		v.mu.Lock()
		if snap.Err != nil {
			// Keep showing the last good rows.
			v.err = snap.Err
			v.mu.Unlock()
			v.svc.ReportSubscriptionError(snap.Err)
		} else {
			rows := make([]Row, 0, len(snap.Records))
			for _, r := range snap.Records {
				rows = append(rows, BuildRow(r, v.format))
			}
			v.rows = rows
			v.loaded = true
			v.err = nil
			v.mu.Unlock()
		}

		select {
		case v.changed <- struct{}{}:
		default:
		}
	}
}

// Changed signals after every delivered snapshot. Bursts coalesce.
func (v *ListView) Changed() <-chan struct{} {
	return v.changed
}

// Rows returns the rows of the last good snapshot, newest first.
func (v *ListView) Rows() []Row {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Row(nil), v.rows...)
}

// Loaded reports whether a snapshot has been delivered.
func (v *ListView) Loaded() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loaded
}

// Err returns the error of the latest delivery, nil once a good snapshot
// follows it.
func (v *ListView) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

func (v *ListView) row(id string) (Row, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, r := range v.rows {
		if r.ID == id {
			return r, true
		}
	}
	return Row{}, false
}

// Start starts work on the record. Rows are not changed locally; the next
// snapshot carries the new state.
func (v *ListView) Start(ctx context.Context, id string) error {
	if r, ok := v.row(id); ok && !r.CanStart {
		return fmt.Errorf("container %s: %w", r.ContainerNumber, domain.ErrTransitionNotAllowed)
	}
	_, err := v.svc.StartContainer(ctx, id)
	return err
}

// Finish finishes work on the record. Rows are not changed locally.
func (v *ListView) Finish(ctx context.Context, id string) error {
	if r, ok := v.row(id); ok && !r.CanFinish {
		return fmt.Errorf("container %s: %w", r.ContainerNumber, domain.ErrTransitionNotAllowed)
	}
	_, err := v.svc.FinishContainer(ctx, id)
	return err
}
