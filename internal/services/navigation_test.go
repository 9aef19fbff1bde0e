package services

import (
	"testing"

	"github.com/prepdesk/exam-service/internal/models"
)

func navSection(id uint, position int, sectionType models.SectionType, status models.AttemptSectionStatus) models.AttemptSection {
	return models.AttemptSection{
		ID:       id,
		Position: position,
		Status:   status,
		Section:  &models.Section{Type: sectionType},
	}
}

func TestOrderSectionsTypeGrouped(t *testing.T) {
	sections := []models.AttemptSection{
		navSection(1, 0, models.SectionWriting, models.SectionNotStarted),
		navSection(2, 1, models.SectionListening, models.SectionNotStarted),
		navSection(3, 2, models.SectionReading, models.SectionNotStarted),
		navSection(4, 3, models.SectionListening, models.SectionNotStarted),
	}

	ordered := OrderSections(models.NavigationTypeGrouped, sections)

	wantIDs := []uint{2, 4, 3, 1}
	for i, want := range wantIDs {
		if ordered[i].ID != want {
			t.Errorf("position %d: got section %d, want %d", i, ordered[i].ID, want)
		}
	}
}

func TestOrderSectionsByPosition(t *testing.T) {
	sections := []models.AttemptSection{
		navSection(1, 2, models.SectionReading, models.SectionNotStarted),
		navSection(2, 0, models.SectionReading, models.SectionNotStarted),
		navSection(3, 1, models.SectionWriting, models.SectionNotStarted),
	}

	ordered := OrderSections(models.NavigationLinear, sections)

	wantIDs := []uint{2, 3, 1}
	for i, want := range wantIDs {
		if ordered[i].ID != want {
			t.Errorf("position %d: got section %d, want %d", i, ordered[i].ID, want)
		}
	}
}

func TestSelectableSectionsLinear(t *testing.T) {
	tests := []struct {
		name          string
		statuses      []models.AttemptSectionStatus
		unlockedIndex int
		want          map[uint]bool
	}{
		{
			name:          "only pointer section open at start",
			statuses:      []models.AttemptSectionStatus{models.SectionNotStarted, models.SectionNotStarted, models.SectionNotStarted},
			unlockedIndex: 0,
			want:          map[uint]bool{1: true, 2: false, 3: false},
		},
		{
			name:          "skipping ahead is rejected mid-exam",
			statuses:      []models.AttemptSectionStatus{models.SectionSubmitted, models.SectionInProgress, models.SectionNotStarted},
			unlockedIndex: 1,
			want:          map[uint]bool{1: false, 2: true, 3: false},
		},
		{
			name:          "finalized pointer section opens nothing",
			statuses:      []models.AttemptSectionStatus{models.SectionSubmitted, models.SectionLocked, models.SectionNotStarted},
			unlockedIndex: 1,
			want:          map[uint]bool{1: false, 2: false, 3: false},
		},
		{
			name:          "pointer past the end",
			statuses:      []models.AttemptSectionStatus{models.SectionSubmitted, models.SectionSubmitted},
			unlockedIndex: 2,
			want:          map[uint]bool{1: false, 2: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sections := make([]models.AttemptSection, len(tt.statuses))
			for i, status := range tt.statuses {
				sections[i] = navSection(uint(i+1), i, models.SectionReading, status)
			}

			got := SelectableSections(models.NavigationLinear, sections, tt.unlockedIndex)
			for id, want := range tt.want {
				if got[id] != want {
					t.Errorf("section %d: selectable = %v, want %v", id, got[id], want)
				}
			}
		})
	}
}

func TestSelectableSectionsFree(t *testing.T) {
	sections := []models.AttemptSection{
		navSection(1, 0, models.SectionReading, models.SectionSubmitted),
		navSection(2, 1, models.SectionWriting, models.SectionInProgress),
		navSection(3, 2, models.SectionListening, models.SectionNotStarted),
	}

	got := SelectableSections(models.NavigationFree, sections, 0)

	if got[1] {
		t.Error("submitted section should not be selectable")
	}
	if !got[2] || !got[3] {
		t.Error("all non-final sections should be selectable in free mode")
	}
}

func TestSelectableSectionsTypeGrouped(t *testing.T) {
	// IELTS ordering: listening before reading before writing.
	sections := OrderSections(models.NavigationTypeGrouped, []models.AttemptSection{
		navSection(1, 0, models.SectionListening, models.SectionNotStarted),
		navSection(2, 1, models.SectionListening, models.SectionNotStarted),
		navSection(3, 2, models.SectionReading, models.SectionNotStarted),
		navSection(4, 3, models.SectionWriting, models.SectionNotStarted),
	})

	got := SelectableSections(models.NavigationTypeGrouped, sections, 0)
	if !got[1] || !got[2] {
		t.Error("both listening sections should be open in the active group")
	}
	if !got[3] {
		t.Error("the first reading section should be open as the jump-ahead target")
	}
	if got[4] {
		t.Error("writing must stay closed while listening is the active group")
	}

	// Finish listening; reading becomes the active group and writing the
	// jump-ahead target.
	sections[0].Status = models.SectionSubmitted
	sections[1].Status = models.SectionLocked

	got = SelectableSections(models.NavigationTypeGrouped, sections, 0)
	if got[1] || got[2] {
		t.Error("finalized listening sections must not reopen")
	}
	if !got[3] {
		t.Error("reading should open once listening is done")
	}
	if !got[4] {
		t.Error("writing should be open as the next-type target while reading is active")
	}
}

func TestSelectableSectionsTypeGroupedJumpAhead(t *testing.T) {
	// An in-progress listening section keeps its group active, yet the
	// first reading section must still be reachable across the boundary.
	sections := OrderSections(models.NavigationTypeGrouped, []models.AttemptSection{
		navSection(1, 0, models.SectionListening, models.SectionInProgress),
		navSection(2, 1, models.SectionReading, models.SectionNotStarted),
		navSection(3, 2, models.SectionReading, models.SectionNotStarted),
	})

	got := SelectableSections(models.NavigationTypeGrouped, sections, 0)
	if !got[1] {
		t.Error("the in-progress listening section should stay open")
	}
	if !got[2] {
		t.Error("the first section of the next type should be selectable")
	}
	if got[3] {
		t.Error("only the first section of the next type opens, not the whole group")
	}
}

func TestAdvanceUnlockedIndex(t *testing.T) {
	tests := []struct {
		name     string
		statuses []models.AttemptSectionStatus
		current  int
		want     int
	}{
		{
			name:     "advances past finalized run",
			statuses: []models.AttemptSectionStatus{models.SectionSubmitted, models.SectionLocked, models.SectionNotStarted},
			current:  0,
			want:     2,
		},
		{
			name:     "stays on open section",
			statuses: []models.AttemptSectionStatus{models.SectionSubmitted, models.SectionInProgress},
			current:  1,
			want:     1,
		},
		{
			name:     "all final lands past the end",
			statuses: []models.AttemptSectionStatus{models.SectionSubmitted, models.SectionSubmitted},
			current:  0,
			want:     2,
		},
		{
			name:     "negative pointer is clamped",
			statuses: []models.AttemptSectionStatus{models.SectionNotStarted},
			current:  -1,
			want:     0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sections := make([]models.AttemptSection, len(tt.statuses))
			for i, status := range tt.statuses {
				sections[i] = navSection(uint(i+1), i, models.SectionReading, status)
			}

			if got := AdvanceUnlockedIndex(sections, tt.current); got != tt.want {
				t.Errorf("AdvanceUnlockedIndex() = %d, want %d", got, tt.want)
			}
		})
	}
}
