package models

import (
	"time"

	"gorm.io/gorm"
)

type ExamCategory string

const (
	CategoryIELTS          ExamCategory = "IELTS"
	CategorySAT            ExamCategory = "SAT"
	CategoryTOEFL          ExamCategory = "TOEFL"
	CategoryGeneralEnglish ExamCategory = "GENERAL_ENGLISH"
	CategoryKids           ExamCategory = "KIDS"
	CategoryMath           ExamCategory = "MATH"
)

func (c ExamCategory) IsValid() bool {
	switch c {
	case CategoryIELTS, CategorySAT, CategoryTOEFL, CategoryGeneralEnglish, CategoryKids, CategoryMath:
		return true
	}
	return false
}

// NavigationMode controls how a student may move between sections of an attempt.
//
//   - linear: sections must be completed strictly in order; submitting one
//     advances the unlock pointer and permanently locks the previous section.
//   - free: any section of the attempt may be visited and saved until the
//     overall submit.
//   - type_grouped: sections are ordered by type (LISTENING, READING, WRITING,
//     SPEAKING); the current section and the first section of the next type
//     are selectable, everything else is disabled.
type NavigationMode string

const (
	NavigationLinear      NavigationMode = "linear"
	NavigationFree        NavigationMode = "free"
	NavigationTypeGrouped NavigationMode = "type_grouped"
)

func (m NavigationMode) IsValid() bool {
	switch m {
	case NavigationLinear, NavigationFree, NavigationTypeGrouped:
		return true
	}
	return false
}

type SectionType string

const (
	SectionReading    SectionType = "READING"
	SectionListening  SectionType = "LISTENING"
	SectionWriting    SectionType = "WRITING"
	SectionSpeaking   SectionType = "SPEAKING"
	SectionGrammar    SectionType = "GRAMMAR"
	SectionVocabulary SectionType = "VOCABULARY"
)

func (t SectionType) IsValid() bool {
	switch t {
	case SectionReading, SectionListening, SectionWriting, SectionSpeaking, SectionGrammar, SectionVocabulary:
		return true
	}
	return false
}

// SectionTypeOrder defines the canonical progression used by type_grouped
// navigation. Types not listed sort after all listed types.
var SectionTypeOrder = map[SectionType]int{
	SectionListening:  0,
	SectionReading:    1,
	SectionWriting:    2,
	SectionSpeaking:   3,
	SectionGrammar:    4,
	SectionVocabulary: 5,
}

type Exam struct {
	ID          uint         `json:"id" gorm:"primaryKey"`
	Title       string       `json:"title" gorm:"not null;size:255"`
	Description *string      `json:"description,omitempty" gorm:"type:text"`
	Category    ExamCategory `json:"category" gorm:"not null;size:30;index"`
	// Track refines the category, e.g. ACADEMIC or GENERAL for IELTS, A2 for kids levels.
	Track          *string        `json:"track,omitempty" gorm:"size:50"`
	NavigationMode NavigationMode `json:"navigation_mode" gorm:"not null;size:20;default:free"`
	IsActive       bool           `json:"is_active" gorm:"default:true;index"`
	CreatedBy      string         `json:"created_by" gorm:"not null;size:255;index"`

	Sections []Section `json:"sections,omitempty" gorm:"foreignKey:ExamID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Exam) TableName() string {
	return "exams"
}

type Section struct {
	ID           uint        `json:"id" gorm:"primaryKey"`
	ExamID       uint        `json:"exam_id" gorm:"not null;index"`
	Type         SectionType `json:"type" gorm:"not null;size:20"`
	Title        string      `json:"title" gorm:"not null;size:255"`
	Instructions *string     `json:"instructions,omitempty" gorm:"type:text"`
	DurationMin  int         `json:"duration_min" gorm:"not null"`
	Position     int         `json:"position" gorm:"not null;default:0"`

	Questions []Question `json:"questions,omitempty" gorm:"foreignKey:SectionID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Section) TableName() string {
	return "sections"
}
