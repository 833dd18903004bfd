package dto

import (
	"encoding/json"
	"time"

	"github.com/prepboard/examengine/internal/model"
)

type StartSessionDTO struct {
	StudentID uint `json:"student_id" binding:"required"`
}

// SaveAnswerDTO carries one incremental ledger write. Value stays raw here;
// the session service parses it against the question's declared type.
type SaveAnswerDTO struct {
	QuestionID      uint            `json:"question_id" binding:"required"`
	Value           json.RawMessage `json:"value"`
	MarkedForReview bool            `json:"marked_for_review"`
}

type SubmitSessionDTO struct {
	StudentID uint `json:"student_id"`
}

type AnswerViewDTO struct {
	QuestionID      uint              `json:"question_id"`
	Value           model.AnswerValue `json:"value"`
	MarkedForReview bool              `json:"marked_for_review"`
	LastWrittenAt   time.Time         `json:"last_written_at"`
}

// SessionResponseDTO is the state snapshot handed to the client. The client
// renders its countdown from StartTime/DurationMinutes; TimeRemainingSeconds
// is a convenience computed from the server clock, which stays the sole
// authority for the deadline.
type SessionResponseDTO struct {
	ID                   uint            `json:"id"`
	Token                string          `json:"token"`
	TestID               uint            `json:"test_id"`
	StudentID            uint            `json:"student_id"`
	StartTime            time.Time       `json:"start_time"`
	DurationMinutes      int             `json:"duration_minutes"`
	TimeRemainingSeconds int64           `json:"time_remaining_seconds"`
	Status               string          `json:"status"`
	EndTime              *time.Time      `json:"end_time,omitempty"`
	Score                *float64        `json:"score,omitempty"`
	Answers              []AnswerViewDTO `json:"answers,omitempty"`
}

// QuestionResultDTO is the per-question review row of a completed session:
// full question, the key, the student's answer and the graded outcome.
type QuestionResultDTO struct {
	QuestionID     uint              `json:"question_id"`
	Type           string            `json:"type"`
	Prompt         string            `json:"prompt"`
	Options        []string          `json:"options"`
	Marks          float64           `json:"marks"`
	NegativeMarks  float64           `json:"negative_marks"`
	CorrectIndex   *int              `json:"correct_index,omitempty"`
	CorrectIndexes []int             `json:"correct_indexes,omitempty"`
	CorrectValue   string            `json:"correct_value,omitempty"`
	Explanation    string            `json:"explanation,omitempty"`
	YourAnswer     model.AnswerValue `json:"your_answer"`
	Attempted      bool              `json:"attempted"`
	IsCorrect      bool              `json:"is_correct"`
	ScoreEarned    float64           `json:"score_earned"`
}

type ResultResponseDTO struct {
	SessionID uint                 `json:"session_id"`
	TestID    uint                 `json:"test_id"`
	TestName  string               `json:"test_name"`
	StudentID uint                 `json:"student_id"`
	StartTime time.Time            `json:"start_time"`
	EndTime   *time.Time           `json:"end_time,omitempty"`
	Trigger   string               `json:"trigger,omitempty"`
	Breakdown model.ScoreBreakdown `json:"breakdown"`
	Questions []QuestionResultDTO  `json:"questions"`
}
