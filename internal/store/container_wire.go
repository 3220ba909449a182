package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vbonduro/containerlog/internal/docstore"
	"github.com/vbonduro/containerlog/internal/domain"
)

// Document field names. They match the records already held in the hosted
// store and must not change.
const (
	fieldContainerNumber = "containerNumber"
	fieldCaseNumber      = "caseNumber"
	fieldSkuNumber       = "skuNumber"
	fieldStatus          = "status"
	fieldCrewAssigned    = "crewAssigned"
	fieldStartTime       = "startTime"
	fieldEndTime         = "endTime"
	fieldCreatedAt       = "createdAt"
	fieldFirstName       = "firstName"
	fieldLastName        = "lastName"
	fieldID              = "id"
)

type crewWire struct {
	ID        string `json:"id,omitempty"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type containerWire struct {
	ContainerNumber string     `json:"containerNumber"`
	CaseNumber      flexInt    `json:"caseNumber"`
	SkuNumber       flexInt    `json:"skuNumber"`
	Status          string     `json:"status"`
	CrewAssigned    []crewWire `json:"crewAssigned"`
	StartTime       *time.Time `json:"startTime"`
	EndTime         *time.Time `json:"endTime"`
	CreatedAt       *time.Time `json:"createdAt"`
}

// flexInt accepts a JSON number or a numeric string. Older records were
// written straight from form inputs and hold counts like "1,200".
type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
		if s == "" {
			*n = 0
			return nil
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid count %q", s)
		}
		*n = flexInt(v)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = flexInt(f)
	return nil
}

func decodeContainer(doc docstore.Document) (*domain.ContainerRecord, error) {
	var wire containerWire
	if err := docstore.Decode(doc.Fields, &wire); err != nil {
		return nil, fmt.Errorf("decode container %s: %w", doc.ID, err)
	}

	status, ok := domain.ParseStatus(wire.Status)
	if !ok {
		return nil, fmt.Errorf("decode container %s: unknown status %q", doc.ID, wire.Status)
	}

	rec := &domain.ContainerRecord{
		ID:              doc.ID,
		ContainerNumber: wire.ContainerNumber,
		CaseNumber:      int(wire.CaseNumber),
		SkuNumber:       int(wire.SkuNumber),
		Status:          status,
		StartTime:       derefTime(wire.StartTime),
		EndTime:         derefTime(wire.EndTime),
		CreatedAt:       derefTime(wire.CreatedAt),
	}
	for _, c := range wire.CrewAssigned {
		if c.FirstName == "" && c.LastName == "" {
			continue
		}
		rec.CrewAssigned = append(rec.CrewAssigned, domain.CrewRef{
			ID:        c.ID,
			FirstName: c.FirstName,
			LastName:  c.LastName,
		})
	}
	return rec, nil
}

func encodeCrew(crew []domain.CrewRef) []any {
	out := make([]any, 0, len(crew))
	for _, c := range crew {
		entry := map[string]any{
			fieldFirstName: c.FirstName,
			fieldLastName:  c.LastName,
		}
		if c.ID != "" {
			entry[fieldID] = c.ID
		}
		out = append(out, entry)
	}
	return out
}

func encodeNewContainer(in domain.NewContainer) docstore.Fields {
	return docstore.Fields{
		fieldContainerNumber: in.ContainerNumber,
		fieldCaseNumber:      in.CaseNumber,
		fieldSkuNumber:       in.SkuNumber,
		fieldStatus:          string(domain.StatusNotStarted),
		fieldCrewAssigned:    encodeCrew(in.CrewAssigned),
		fieldCreatedAt:       docstore.ServerTimestamp,
	}
}

func encodeUpdate(u domain.ContainerUpdate) docstore.Fields {
	return docstore.Fields{
		fieldContainerNumber: u.ContainerNumber,
		fieldCaseNumber:      u.CaseNumber,
		fieldSkuNumber:       u.SkuNumber,
		fieldStatus:          string(u.Status),
		fieldCrewAssigned:    encodeCrew(u.CrewAssigned),
		fieldStartTime:       timeOrNil(u.StartTime),
		fieldEndTime:         timeOrNil(u.EndTime),
	}
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func timeOrNil(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
