package view

import (
	"context"
	"strings"

	"github.com/vbonduro/containerlog/internal/domain"
)

type containerCreator interface {
	CreateContainer(ctx context.Context, in domain.NewContainer) (*domain.ContainerRecord, error)
}

// CreateForm holds the raw values of the new container form.
type CreateForm struct {
	ContainerNumber string
	CaseNumber      string
	SkuNumber       string
	Crew            CrewSelection
}

// Parse converts the form into a NewContainer, denormalizing the selected
// crew from dir.
func (f CreateForm) Parse(dir []domain.CrewMember) (domain.NewContainer, error) {
	var verr domain.ValidationError
	in := domain.NewContainer{
		ContainerNumber: strings.TrimSpace(f.ContainerNumber),
		CaseNumber:      parseCount(&verr, "caseNumber", f.CaseNumber),
		SkuNumber:       parseCount(&verr, "skuNumber", f.SkuNumber),
	}
	if in.ContainerNumber == "" {
		verr.Add("containerNumber", "is required")
	}
	if f.Crew.First != "" && f.Crew.First == f.Crew.Second {
		verr.Add("crewAssigned", "the same crew member cannot fill both slots")
	}
	if err := verr.ErrorOrNil(); err != nil {
		return domain.NewContainer{}, err
	}
	in.CrewAssigned = f.Crew.Assigned(dir)
	return in, nil
}

// Submit parses the form and creates the record.
func (f CreateForm) Submit(ctx context.Context, svc containerCreator, dir []domain.CrewMember) (*domain.ContainerRecord, error) {
	in, err := f.Parse(dir)
	if err != nil {
		return nil, err
	}
	return svc.CreateContainer(ctx, in)
}
