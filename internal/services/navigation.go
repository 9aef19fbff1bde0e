package services

import (
	"sort"

	"github.com/prepdesk/exam-service/internal/models"
)

// ===== NAVIGATION ENGINE =====
//
// The engine decides which attempt sections a student may enter. It is pure:
// callers pass the exam's navigation mode and the attempt's sections and get
// back selectability, never touching storage. All decisions are made on the
// server; the client only renders what it is told.

// OrderSections returns the attempt sections in presentation order for the
// given mode. Linear and free modes order by section position snapshot;
// type-grouped mode orders by the canonical section-type sequence first, then
// position within the type.
func OrderSections(mode models.NavigationMode, sections []models.AttemptSection) []models.AttemptSection {
	ordered := make([]models.AttemptSection, len(sections))
	copy(ordered, sections)

	if mode == models.NavigationTypeGrouped {
		sort.SliceStable(ordered, func(i, j int) bool {
			ti := typeRank(ordered[i])
			tj := typeRank(ordered[j])
			if ti != tj {
				return ti < tj
			}
			return ordered[i].Position < ordered[j].Position
		})
		return ordered
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Position < ordered[j].Position
	})
	return ordered
}

// SelectableSections reports, per attempt-section ID, whether the student may
// enter that section right now. The input slice must already be in
// presentation order (see OrderSections).
//
//   - free: every non-final section is open.
//   - linear: only the section at the unlocked index is open; earlier
//     sections are finalized and later ones stay locked until the pointer
//     advances.
//   - type_grouped: the first type group containing a non-final section is
//     active; every non-final section in that group is open, and the first
//     non-final section of the next type is open too, so the student may
//     jump forward across the type boundary.
func SelectableSections(mode models.NavigationMode, ordered []models.AttemptSection, unlockedIndex int) map[uint]bool {
	selectable := make(map[uint]bool, len(ordered))
	for _, s := range ordered {
		selectable[s.ID] = false
	}

	switch mode {
	case models.NavigationLinear:
		if unlockedIndex >= 0 && unlockedIndex < len(ordered) {
			s := ordered[unlockedIndex]
			if !s.Status.IsFinal() {
				selectable[s.ID] = true
			}
		}

	case models.NavigationTypeGrouped:
		activeRank := -1
		for _, s := range ordered {
			if !s.Status.IsFinal() {
				activeRank = typeRank(s)
				break
			}
		}
		if activeRank >= 0 {
			for _, s := range ordered {
				if typeRank(s) == activeRank && !s.Status.IsFinal() {
					selectable[s.ID] = true
				}
			}
			// The first non-final section of the next type rank stays open
			// so the student can move on without finishing the group.
			for _, s := range ordered {
				if typeRank(s) > activeRank && !s.Status.IsFinal() {
					selectable[s.ID] = true
					break
				}
			}
		}

	default: // free
		for _, s := range ordered {
			if !s.Status.IsFinal() {
				selectable[s.ID] = true
			}
		}
	}

	return selectable
}

// AdvanceUnlockedIndex returns the new unlocked index after a section
// finalizes: the position of the first non-final section at or after the
// current pointer. When everything is final the pointer lands one past the
// end, which keeps later selectability checks uniformly false.
func AdvanceUnlockedIndex(ordered []models.AttemptSection, current int) int {
	if current < 0 {
		current = 0
	}
	for i := current; i < len(ordered); i++ {
		if !ordered[i].Status.IsFinal() {
			return i
		}
	}
	return len(ordered)
}

func typeRank(s models.AttemptSection) int {
	if s.Section != nil {
		if rank, ok := models.SectionTypeOrder[s.Section.Type]; ok {
			return rank
		}
	}
	return len(models.SectionTypeOrder)
}
