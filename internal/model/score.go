package model

// QuestionScore is the graded outcome for one question of a session.
type QuestionScore struct {
	QuestionID  uint    `json:"question_id"`
	Attempted   bool    `json:"attempted"`
	IsCorrect   bool    `json:"is_correct"`
	ScoreEarned float64 `json:"score_earned"`
}

type ScoreSummary struct {
	Total       int `json:"total"`
	Attempted   int `json:"attempted"`
	Correct     int `json:"correct"`
	Incorrect   int `json:"incorrect"`
	Unattempted int `json:"unattempted"`
}

// ScoreBreakdown is computed exactly once per session and is a pure function
// of the frozen answer ledger and the immutable test, so recomputation always
// yields an identical value. RawScore keeps the unclamped sum; TotalScore is
// the policy-selected reported total (equal to RawScore unless floor-at-zero
// is enabled and the sum is negative).
type ScoreBreakdown struct {
	Questions  []QuestionScore `json:"questions"`
	Summary    ScoreSummary    `json:"summary"`
	RawScore   float64         `json:"raw_score"`
	TotalScore float64         `json:"total_score"`
	MaxScore   float64         `json:"max_score"`
	Percentage float64         `json:"percentage"`
}
