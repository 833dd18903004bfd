package dto

import "time"

// QuestionCreateDTO carries one question of an admin test-creation request.
// The correct-answer fields are shape-checked against Type by the catalog
// service before anything is persisted.
type QuestionCreateDTO struct {
	Type           string   `json:"type" binding:"required,oneof=single_choice multiple_choice true_false numerical"`
	Prompt         string   `json:"prompt" binding:"required"`
	Options        []string `json:"options"`
	Marks          float64  `json:"marks" binding:"required,gt=0"`
	NegativeMarks  float64  `json:"negative_marks" binding:"gte=0"`
	CorrectIndex   *int     `json:"correct_index,omitempty"`
	CorrectIndexes []int    `json:"correct_indexes,omitempty"`
	CorrectValue   string   `json:"correct_value,omitempty"`
	Tolerance      *float64 `json:"tolerance,omitempty"`
	Explanation    string   `json:"explanation,omitempty"`
	OrderInTest    int      `json:"order_in_test" binding:"required,min=1"`
}

type TestCreateDTO struct {
	Name            string              `json:"name" binding:"required"`
	Subject         string              `json:"subject"`
	DurationMinutes int                 `json:"duration_minutes" binding:"required,gt=0"`
	Questions       []QuestionCreateDTO `json:"questions" binding:"required,dive"`
}

// QuestionViewDTO is the student-facing question shape: no correct key, no
// explanation, so an in-progress client never sees the answer.
type QuestionViewDTO struct {
	ID            uint     `json:"id"`
	Type          string   `json:"type"`
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	Marks         float64  `json:"marks"`
	NegativeMarks float64  `json:"negative_marks"`
	OrderInTest   int      `json:"order_in_test"`
}

type TestResponseDTO struct {
	ID              uint              `json:"id"`
	Name            string            `json:"name"`
	Subject         string            `json:"subject,omitempty"`
	DurationMinutes int               `json:"duration_minutes"`
	TotalMarks      float64           `json:"total_marks"`
	Status          string            `json:"status"`
	Questions       []QuestionViewDTO `json:"questions,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

type TestSummaryDTO struct {
	ID              uint      `json:"id"`
	Name            string    `json:"name"`
	Subject         string    `json:"subject,omitempty"`
	DurationMinutes int       `json:"duration_minutes"`
	TotalMarks      float64   `json:"total_marks"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

type ErrorResponse struct {
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}
