package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/containerlog/internal/domain"
)

var directory = []domain.CrewMember{
	{ID: "ana", FirstName: "Ana", LastName: "Silva"},
	{ID: "jun", FirstName: "Junior", LastName: "Lee"},
	{ID: "raf", FirstName: "Rafael", LastName: "Costa"},
}

func optionIDs(opts []CrewOption) []string {
	ids := make([]string, 0, len(opts))
	for _, o := range opts {
		ids = append(ids, o.ID)
	}
	return ids
}

func TestOptionsExcludeOtherSlot(t *testing.T) {
	for _, m := range directory {
		t.Run(m.ID, func(t *testing.T) {
			first, err := CrewSelection{}.Select(SlotFirst, m.ID)
			require.NoError(t, err)
			assert.NotContains(t, optionIDs(first.Options(directory, SlotSecond)), m.ID)
			assert.Contains(t, optionIDs(first.Options(directory, SlotFirst)), m.ID)

			second, err := CrewSelection{}.Select(SlotSecond, m.ID)
			require.NoError(t, err)
			assert.NotContains(t, optionIDs(second.Options(directory, SlotFirst)), m.ID)
			assert.Contains(t, optionIDs(second.Options(directory, SlotSecond)), m.ID)
		})
	}
}

func TestOptionsWithNothingSelected(t *testing.T) {
	opts := CrewSelection{}.Options(directory, SlotFirst)
	assert.Equal(t, []string{"ana", "jun", "raf"}, optionIDs(opts))
	assert.Equal(t, "Ana Silva", opts[0].Name)
	for _, o := range opts {
		assert.False(t, o.Selected)
	}
}

func TestOptionsMarkCurrentSelection(t *testing.T) {
	sel := CrewSelection{First: "jun", Second: "ana"}

	opts := sel.Options(directory, SlotFirst)
	assert.Equal(t, []string{"jun", "raf"}, optionIDs(opts))
	assert.True(t, opts[0].Selected)
	assert.False(t, opts[1].Selected)
}

func TestSelectRefusesOtherSlotMember(t *testing.T) {
	sel := CrewSelection{First: "ana"}

	got, err := sel.Select(SlotSecond, "ana")
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, sel, got)

	got, err = sel.Select(SlotSecond, "jun")
	require.NoError(t, err)
	assert.Equal(t, CrewSelection{First: "ana", Second: "jun"}, got)
	assert.Equal(t, CrewSelection{First: "ana"}, sel, "receiver left unchanged")

	cleared, err := got.Select(SlotFirst, "")
	require.NoError(t, err)
	assert.Equal(t, CrewSelection{Second: "jun"}, cleared)
}

func TestParseSelection(t *testing.T) {
	sel, err := ParseSelection(" ana ", "jun")
	require.NoError(t, err)
	assert.Equal(t, CrewSelection{First: "ana", Second: "jun"}, sel)

	_, err = ParseSelection("ana", "ana")
	assert.ErrorIs(t, err, domain.ErrValidation)

	sel, err = ParseSelection("", "")
	require.NoError(t, err)
	assert.Equal(t, CrewSelection{}, sel)
}

func TestAssignedSnapshotsInSlotOrder(t *testing.T) {
	sel := CrewSelection{First: "raf", Second: "ana"}

	assert.Equal(t, []domain.CrewRef{
		{ID: "raf", FirstName: "Rafael", LastName: "Costa"},
		{ID: "ana", FirstName: "Ana", LastName: "Silva"},
	}, sel.Assigned(directory))
}

func TestAssignedOmitsEmptyAndUnknown(t *testing.T) {
	assert.Empty(t, CrewSelection{}.Assigned(directory))
	assert.Equal(t,
		[]domain.CrewRef{{ID: "jun", FirstName: "Junior", LastName: "Lee"}},
		CrewSelection{First: "", Second: "jun"}.Assigned(directory))
	assert.Empty(t, CrewSelection{First: "gone"}.Assigned(directory))
}

func TestSelectionFromRecord(t *testing.T) {
	rec := &domain.ContainerRecord{CrewAssigned: []domain.CrewRef{
		{ID: "ana", FirstName: "Ana"},
		{ID: "raf", FirstName: "Rafael"},
	}}
	assert.Equal(t, CrewSelection{First: "ana", Second: "raf"}, SelectionFromRecord(rec))

	legacy := &domain.ContainerRecord{CrewAssigned: []domain.CrewRef{{FirstName: "Old"}}}
	assert.Equal(t, CrewSelection{}, SelectionFromRecord(legacy))

	assert.Equal(t, CrewSelection{}, SelectionFromRecord(nil))
}

func TestCrewNames(t *testing.T) {
	assert.Equal(t, []string{"Ana Silva", "Junior"}, CrewNames([]domain.CrewRef{
		{FirstName: "Ana", LastName: "Silva"},
		{FirstName: "Junior"},
	}))
}
