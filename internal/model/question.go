package model

import (
	"time"

	"gorm.io/gorm"
)

type QuestionType string

const (
	QuestionTypeSingleChoice QuestionType = "single_choice"
	QuestionTypeMultiChoice  QuestionType = "multiple_choice"
	QuestionTypeTrueFalse    QuestionType = "true_false"
	QuestionTypeNumerical    QuestionType = "numerical"
)

// AnswerKey is the correctness key for one question. Exactly one shape is
// populated depending on the question type: Index for single_choice/true_false,
// Indexes for multiple_choice, Value (with optional Tolerance) for numerical.
type AnswerKey struct {
	Index     *int     `json:"index,omitempty"`
	Indexes   []int    `json:"indexes,omitempty"`
	Value     string   `json:"value,omitempty"`
	Tolerance *float64 `json:"tolerance,omitempty"`
}

type Question struct {
	ID            uint           `gorm:"primarykey" json:"id"`
	TestID        uint           `json:"test_id" gorm:"not null;index"`
	Type          QuestionType   `json:"type" gorm:"not null"`
	Prompt        string         `json:"prompt" gorm:"type:text;not null"`
	Options       []string       `json:"options" gorm:"serializer:json"`
	Marks         float64        `json:"marks" gorm:"not null"`
	NegativeMarks float64        `json:"negative_marks" gorm:"not null;default:0"`
	CorrectKey    AnswerKey      `json:"-" gorm:"serializer:json"`
	Explanation   string         `json:"explanation,omitempty" gorm:"type:text"`
	OrderInTest   int            `json:"order_in_test" gorm:"not null"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}
