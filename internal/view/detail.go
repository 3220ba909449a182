package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/vbonduro/containerlog/internal/domain"
	"github.com/vbonduro/containerlog/internal/format"
)

type detailService interface {
	GetContainer(ctx context.Context, number string) (*domain.ContainerRecord, error)
	ListCrew(ctx context.Context) ([]domain.CrewMember, error)
	UpdateContainer(ctx context.Context, id string, u domain.ContainerUpdate) (*domain.ContainerRecord, error)
	DeleteContainer(ctx context.Context, id string) error
}

var errNotLoaded = errors.New("no container loaded")

// Draft is the unsaved copy of a record's fields while editing. Values are
// kept as typed into the form.
type Draft struct {
	ContainerNumber string
	CaseNumber      string
	SkuNumber       string
	Status          string
	StartTime       string // datetime-local in the viewer's zone
	EndTime         string
	Crew            CrewSelection
}

// NewDraft snapshots r for editing.
func NewDraft(r *domain.ContainerRecord, f format.Formatter) Draft {
	return Draft{
		ContainerNumber: r.ContainerNumber,
		CaseNumber:      fmt.Sprint(r.CaseNumber),
		SkuNumber:       fmt.Sprint(r.SkuNumber),
		Status:          string(r.Status),
		StartTime:       f.DateTimeLocal(r.StartTime),
		EndTime:         f.DateTimeLocal(r.EndTime),
		Crew:            SelectionFromRecord(r),
	}
}

// Update converts the draft into the fields written on save.
func (d Draft) Update(f format.Formatter, dir []domain.CrewMember) (domain.ContainerUpdate, error) {
	var verr domain.ValidationError
	u := domain.ContainerUpdate{
		ContainerNumber: strings.TrimSpace(d.ContainerNumber),
		CaseNumber:      parseCount(&verr, "caseNumber", d.CaseNumber),
		SkuNumber:       parseCount(&verr, "skuNumber", d.SkuNumber),
	}
	if u.ContainerNumber == "" {
		verr.Add("containerNumber", "is required")
	}

	status, ok := domain.ParseStatus(d.Status)
	if !ok {
		verr.Add("status", "is not a known status")
	}
	u.Status = status

	var err error
	if u.StartTime, err = f.ParseDateTimeLocal(d.StartTime); err != nil {
		verr.Add("startTime", err.Error())
	}
	if u.EndTime, err = f.ParseDateTimeLocal(d.EndTime); err != nil {
		verr.Add("endTime", err.Error())
	}
	if !u.StartTime.IsZero() && !u.EndTime.IsZero() && u.EndTime.Before(u.StartTime) {
		verr.Add("endTime", "must not be before start time")
	}

	if d.Crew.First != "" && d.Crew.First == d.Crew.Second {
		verr.Add("crewAssigned", "the same crew member cannot fill both slots")
	}
	if err := verr.ErrorOrNil(); err != nil {
		return domain.ContainerUpdate{}, err
	}
	u.CrewAssigned = d.Crew.Assigned(dir)
	return u, nil
}

// DetailView is the state of the single container page: the loaded record,
// the crew directory, an optional edit draft and the delete confirmation
// gate.
type DetailView struct {
	svc    detailService
	format format.Formatter
	logger *slog.Logger

	key        string
	record     *domain.ContainerRecord
	crew       []domain.CrewMember
	notFound   bool
	draft      *Draft
	confirming bool
	deleted    bool
	err        error
}

func NewDetailView(svc detailService, f format.Formatter, logger *slog.Logger) *DetailView {
	return &DetailView{svc: svc, format: f, logger: logger}
}

// Load fetches the record with the given container number and the crew
// directory in parallel. A missing record is a displayable state, not an
// error.
func (v *DetailView) Load(ctx context.Context, key string) error {
	*v = DetailView{svc: v.svc, format: v.format, logger: v.logger, key: key}

	var (
		rec  *domain.ContainerRecord
		crew []domain.CrewMember
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rec, err = v.svc.GetContainer(gctx, key)
		return err
	})
	g.Go(func() error {
		var err error
		crew, err = v.svc.ListCrew(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			v.notFound = true
			return nil
		}
		v.err = err
		v.logger.Error("load container failed", "container_number", key, "error", err)
		return err
	}
	v.record = rec
	v.crew = crew
	return nil
}

// Key is the container number the view currently addresses.
func (v *DetailView) Key() string { return v.key }

func (v *DetailView) NotFound() bool { return v.notFound }

func (v *DetailView) Deleted() bool { return v.deleted }

// Record returns a copy of the displayed record, nil if none is loaded.
func (v *DetailView) Record() *domain.ContainerRecord { return v.record.Clone() }

func (v *DetailView) Crew() []domain.CrewMember { return v.crew }

// Row derives the display values of the loaded record.
func (v *DetailView) Row() (Row, bool) {
	if v.record == nil {
		return Row{}, false
	}
	return BuildRow(v.record, v.format), true
}

func (v *DetailView) Err() error { return v.err }

func (v *DetailView) Editing() bool { return v.draft != nil }

// Draft returns the current draft; the zero Draft when not editing.
func (v *DetailView) Draft() Draft {
	if v.draft == nil {
		return Draft{}
	}
	return *v.draft
}

// Confirming reports whether the delete confirmation gate is open.
func (v *DetailView) Confirming() bool { return v.confirming }

// BeginEdit snapshots the record into a new draft. The displayed record is
// not touched until Save succeeds.
func (v *DetailView) BeginEdit() error {
	if v.record == nil {
		return errNotLoaded
	}
	d := NewDraft(v.record, v.format)
	v.draft = &d
	v.err = nil
	return nil
}

// CancelEdit drops the draft.
func (v *DetailView) CancelEdit() {
	v.draft = nil
	v.err = nil
}

// Save writes d as the record's new field values. On success the view
// leaves edit mode and addresses the saved container number. On failure it
// stays in edit mode with d as the draft.
func (v *DetailView) Save(ctx context.Context, d Draft) error {
	if v.record == nil {
		return errNotLoaded
	}
	v.draft = &d

	u, err := d.Update(v.format, v.crew)
	if err != nil {
		v.err = err
		return err
	}

	updated, err := v.svc.UpdateContainer(ctx, v.record.ID, u)
	if err != nil {
		v.err = err
		v.logger.Error("save container failed", "id", v.record.ID, "error", err)
		return err
	}

	v.record = updated
	v.key = updated.ContainerNumber
	v.draft = nil
	v.err = nil
	return nil
}

// RequestDelete opens the confirmation gate.
func (v *DetailView) RequestDelete() {
	v.confirming = true
}

// CancelDelete closes the confirmation gate.
func (v *DetailView) CancelDelete() {
	v.confirming = false
}

// ConfirmDelete deletes the record. Without an open confirmation gate it
// fails and the store is not called. A failed delete closes the gate.
func (v *DetailView) ConfirmDelete(ctx context.Context) error {
	if v.record == nil {
		return errNotLoaded
	}
	if !v.confirming {
		return domain.ErrDeleteNotConfirmed
	}

	if err := v.svc.DeleteContainer(ctx, v.record.ID); err != nil {
		v.confirming = false
		v.err = err
		v.logger.Error("delete container failed", "id", v.record.ID, "error", err)
		return err
	}
	v.confirming = false
	v.deleted = true
	return nil
}
