package domain

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a container job.
type Status string

const (
	StatusNotStarted Status = "Not Started"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusNotStarted, StatusInProgress, StatusCompleted}

// ParseStatus maps a stored status string to a Status. Matching ignores case
// and surrounding whitespace so older records written as "In progress" decode
// correctly. An empty value is treated as NotStarted.
func ParseStatus(s string) (Status, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return StatusNotStarted, true
	}
	for _, st := range Statuses {
		if strings.EqualFold(s, string(st)) {
			return st, true
		}
	}
	return "", false
}

// Slug returns a lowercase, dash-separated form used for CSS classes.
func (s Status) Slug() string {
	return strings.ReplaceAll(strings.ToLower(string(s)), " ", "-")
}

// CrewRef is a crew member snapshot stored on a record at assignment time.
// Later changes to the directory never rewrite it.
type CrewRef struct {
	ID        string
	FirstName string
	LastName  string
}

// CrewMember is an entry of the read-only crew directory.
type CrewMember struct {
	ID        string
	FirstName string
	LastName  string
}

// Ref snapshots the member's current name.
func (m CrewMember) Ref() CrewRef {
	return CrewRef{ID: m.ID, FirstName: m.FirstName, LastName: m.LastName}
}

// MaxCrewAssigned is the number of crew slots on a record.
const MaxCrewAssigned = 2

// ContainerRecord is one container job.
type ContainerRecord struct {
	ID              string
	ContainerNumber string
	CaseNumber      int
	SkuNumber       int
	Status          Status
	CrewAssigned    []CrewRef
	StartTime       time.Time // zero until started
	EndTime         time.Time // zero until finished
	CreatedAt       time.Time
}

// Clone returns a deep copy so callers can hold a record without sharing the
// crew slice.
func (r *ContainerRecord) Clone() *ContainerRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.CrewAssigned != nil {
		c.CrewAssigned = append([]CrewRef(nil), r.CrewAssigned...)
	}
	return &c
}

// NewContainer holds the fields collected by the creation form.
type NewContainer struct {
	ContainerNumber string
	CaseNumber      int
	SkuNumber       int
	CrewAssigned    []CrewRef
}

// ContainerUpdate is the full set of editable fields written by a save from
// the detail view. Zero times clear the stored timestamp.
type ContainerUpdate struct {
	ContainerNumber string
	CaseNumber      int
	SkuNumber       int
	Status          Status
	CrewAssigned    []CrewRef
	StartTime       time.Time
	EndTime         time.Time
}

// Snapshot is one delivery of a live record subscription: the full ordered
// record set, or an error that leaves the previous delivery authoritative.
type Snapshot struct {
	Records []*ContainerRecord
	Err     error
}
