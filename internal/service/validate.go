package service

import (
	"github.com/vbonduro/containerlog/internal/domain"
)

func validateNew(in domain.NewContainer) error {
	var verr domain.ValidationError
	validateFields(&verr, in.ContainerNumber, in.CaseNumber, in.SkuNumber, in.CrewAssigned)
	return verr.ErrorOrNil()
}

func validateUpdate(u domain.ContainerUpdate) error {
	var verr domain.ValidationError
	validateFields(&verr, u.ContainerNumber, u.CaseNumber, u.SkuNumber, u.CrewAssigned)

	if _, ok := domain.ParseStatus(string(u.Status)); !ok {
		verr.Add("status", "is not a known status")
	}
	if !u.StartTime.IsZero() && !u.EndTime.IsZero() && u.EndTime.Before(u.StartTime) {
		verr.Add("endTime", "must not be before start time")
	}
	return verr.ErrorOrNil()
}

func validateFields(verr *domain.ValidationError, number string, caseNumber, skuNumber int, crew []domain.CrewRef) {
	if number == "" {
		verr.Add("containerNumber", "is required")
	}
	if caseNumber < 0 {
		verr.Add("caseNumber", "must not be negative")
	}
	if skuNumber < 0 {
		verr.Add("skuNumber", "must not be negative")
	}
	if len(crew) > domain.MaxCrewAssigned {
		verr.Add("crewAssigned", "holds at most two crew members")
	}
	seen := make(map[string]bool, len(crew))
	for _, c := range crew {
		if c.ID == "" {
			continue
		}
		if seen[c.ID] {
			verr.Add("crewAssigned", "lists the same crew member twice")
			break
		}
		seen[c.ID] = true
	}
}
