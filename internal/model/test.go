package model

import (
	"time"

	"gorm.io/gorm"
)

type TestStatus string

const (
	TestStatusDraft     TestStatus = "draft"
	TestStatusPublished TestStatus = "published"
)

// Test is immutable once published: the question set and correctness keys are
// frozen at publish time, so in-flight sessions never observe a mutation.
type Test struct {
	ID              uint           `gorm:"primarykey" json:"id"`
	Name            string         `json:"name" gorm:"not null"`
	Subject         string         `json:"subject"`
	DurationMinutes int            `json:"duration_minutes" gorm:"not null"`
	TotalMarks      float64        `json:"total_marks"`
	Status          TestStatus     `json:"status" gorm:"not null;default:'draft';index"`
	Questions       []Question     `json:"questions,omitempty" gorm:"foreignKey:TestID"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (t *Test) Published() bool { return t.Status == TestStatusPublished }

func (t *Test) Duration() time.Duration {
	return time.Duration(t.DurationMinutes) * time.Minute
}
