package model

import (
	"time"

	"gorm.io/gorm"
)

type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusCompleted  SessionStatus = "completed"
)

type SubmitTrigger string

const (
	SubmitTriggerManual  SubmitTrigger = "manual"
	SubmitTriggerTimeout SubmitTrigger = "timeout"
)

// ExamSession is one student's attempt at one test. StartTime is assigned by
// the server at creation and is the sole basis for deadline computation.
// DurationMinutes is copied from the test at creation so the scheduler and the
// recovery scan never depend on a join.
type ExamSession struct {
	ID              uint            `gorm:"primarykey" json:"id"`
	Token           string          `json:"token" gorm:"not null;uniqueIndex"`
	TestID          uint            `json:"test_id" gorm:"not null;index:idx_sessions_student_test"`
	Test            Test            `json:"test,omitempty" gorm:"foreignKey:TestID"`
	StudentID       uint            `json:"student_id" gorm:"not null;index:idx_sessions_student_test"`
	StartTime       time.Time       `json:"start_time" gorm:"not null"`
	DurationMinutes int             `json:"duration_minutes" gorm:"not null"`
	Status          SessionStatus   `json:"status" gorm:"not null;default:'in_progress';index"`
	EndTime         *time.Time      `json:"end_time,omitempty"`
	Trigger         *SubmitTrigger  `json:"trigger,omitempty"`
	Score           *float64        `json:"score,omitempty"`
	Breakdown       *ScoreBreakdown `json:"breakdown,omitempty" gorm:"serializer:json"`
	Answers         []Answer        `json:"answers,omitempty" gorm:"foreignKey:SessionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (s *ExamSession) Deadline() time.Time {
	return s.StartTime.Add(time.Duration(s.DurationMinutes) * time.Minute)
}

// TimeRemaining is never negative; a session past its deadline has zero left.
func (s *ExamSession) TimeRemaining(now time.Time) time.Duration {
	if s.Status != SessionStatusInProgress {
		return 0
	}
	remaining := s.Deadline().Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}
