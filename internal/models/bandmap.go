package models

import "time"

// BandMap converts a raw correct-answer count into a normalized band score for
// one exam category and section type. A raw score maps to the row whose
// [MinRaw, MaxRaw] range contains it.
type BandMap struct {
	ID          uint         `json:"id" gorm:"primaryKey"`
	Category    ExamCategory `json:"category" gorm:"not null;size:30;index:idx_bandmap_lookup"`
	SectionType SectionType  `json:"section_type" gorm:"not null;size:20;index:idx_bandmap_lookup"`
	// Track narrows the mapping, e.g. IELTS ACADEMIC vs GENERAL reading
	// tables differ. NULL applies to all tracks.
	Track *string `json:"track,omitempty" gorm:"size:50"`

	MinRaw int     `json:"min_raw" gorm:"not null"`
	MaxRaw int     `json:"max_raw" gorm:"not null"`
	Band   float64 `json:"band" gorm:"not null"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (BandMap) TableName() string {
	return "band_maps"
}

// Contains reports whether the raw score falls inside this row's range.
func (b *BandMap) Contains(raw int) bool {
	return raw >= b.MinRaw && raw <= b.MaxRaw
}
