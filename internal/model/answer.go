package model

import (
	"time"
)

// Answer is one row of the answer ledger, keyed by (session, question).
// Writes are last-write-wins overwrites and are only accepted while the owning
// session is in_progress. IsCorrect and ScoreEarned are filled in by grading
// after the session completes.
type Answer struct {
	ID              uint        `gorm:"primarykey" json:"id"`
	SessionID       uint        `json:"session_id" gorm:"not null;uniqueIndex:idx_answers_session_question"`
	QuestionID      uint        `json:"question_id" gorm:"not null;uniqueIndex:idx_answers_session_question"`
	Value           AnswerValue `json:"value" gorm:"serializer:json"`
	MarkedForReview bool        `json:"marked_for_review"`
	IsCorrect       *bool       `json:"is_correct,omitempty"`
	ScoreEarned     *float64    `json:"score_earned,omitempty"`
	LastWrittenAt   time.Time   `json:"last_written_at" gorm:"not null"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}
