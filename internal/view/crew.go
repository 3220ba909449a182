// Package view holds the server-side state behind each dashboard page.
package view

import (
	"strings"

	"github.com/vbonduro/containerlog/internal/domain"
)

// Slot identifies one of the two crew dropdowns.
type Slot int

const (
	SlotFirst Slot = iota
	SlotSecond
)

// CrewSelection holds the crew ids chosen in the two dropdowns. Empty means
// nothing is selected. The two slots never hold the same id.
type CrewSelection struct {
	First  string
	Second string
}

// CrewOption is one entry of a crew dropdown.
type CrewOption struct {
	ID       string
	Name     string
	Selected bool
}

// ParseSelection builds a selection from two submitted dropdown values.
func ParseSelection(first, second string) (CrewSelection, error) {
	sel := CrewSelection{First: strings.TrimSpace(first)}
	return sel.Select(SlotSecond, second)
}

func (s CrewSelection) get(slot Slot) string {
	if slot == SlotSecond {
		return s.Second
	}
	return s.First
}

func (s CrewSelection) other(slot Slot) string {
	if slot == SlotSecond {
		return s.First
	}
	return s.Second
}

// Select returns the selection with id placed in slot. Choosing the member
// already held by the other slot is refused.
func (s CrewSelection) Select(slot Slot, id string) (CrewSelection, error) {
	id = strings.TrimSpace(id)
	if id != "" && id == s.other(slot) {
		var verr domain.ValidationError
		verr.Add("crewAssigned", "the same crew member cannot fill both slots")
		return s, verr.ErrorOrNil()
	}
	if slot == SlotSecond {
		s.Second = id
	} else {
		s.First = id
	}
	return s, nil
}

// Options lists the directory entries offered in slot: everyone except the
// member chosen in the other slot.
func (s CrewSelection) Options(dir []domain.CrewMember, slot Slot) []CrewOption {
	exclude := s.other(slot)
	current := s.get(slot)
	out := make([]CrewOption, 0, len(dir))
	for _, m := range dir {
		if exclude != "" && m.ID == exclude {
			continue
		}
		out = append(out, CrewOption{
			ID:       m.ID,
			Name:     fullName(m.FirstName, m.LastName),
			Selected: m.ID == current,
		})
	}
	return out
}

// Assigned snapshots the selected members, in slot order, for storage on a
// record. Empty slots and ids missing from the directory are left out.
func (s CrewSelection) Assigned(dir []domain.CrewMember) []domain.CrewRef {
	var out []domain.CrewRef
	for _, id := range []string{s.First, s.Second} {
		if id == "" {
			continue
		}
		for _, m := range dir {
			if m.ID == id {
				out = append(out, m.Ref())
				break
			}
		}
	}
	return out
}

// SelectionFromRecord recovers dropdown values from a record's crew
// snapshots. Entries stored without an id cannot be selected.
func SelectionFromRecord(r *domain.ContainerRecord) CrewSelection {
	var sel CrewSelection
	if r == nil {
		return sel
	}
	if len(r.CrewAssigned) > 0 {
		sel.First = r.CrewAssigned[0].ID
	}
	if len(r.CrewAssigned) > 1 && r.CrewAssigned[1].ID != sel.First {
		sel.Second = r.CrewAssigned[1].ID
	}
	return sel
}

func fullName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}

// CrewNames renders the names of a record's crew snapshots.
func CrewNames(crew []domain.CrewRef) []string {
	names := make([]string, 0, len(crew))
	for _, c := range crew {
		names = append(names, fullName(c.FirstName, c.LastName))
	}
	return names
}
