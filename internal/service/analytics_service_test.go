package service

import (
	"testing"
	"time"

	"github.com/prepboard/examengine/internal/analytics"
	"github.com/prepboard/examengine/internal/errs"
	"github.com/prepboard/examengine/internal/model"
)

// completeSession runs a full session for one student and returns its score.
func completeSession(t *testing.T, env *sessionEnv, studentID uint, raws map[uint]string) float64 {
	t.Helper()
	session, err := env.svc.Start(env.test.ID, studentID)
	if err != nil {
		t.Fatalf("Start(student=%d): %v", studentID, err)
	}
	for questionID, raw := range raws {
		env.saveAnswer(t, session.ID, questionID, raw)
	}
	result, err := env.svc.Submit(session.ID, model.SubmitTriggerManual)
	if err != nil {
		t.Fatalf("Submit(student=%d): %v", studentID, err)
	}
	return result.Breakdown.TotalScore
}

func TestAnalyticsOverCompletedSessions(t *testing.T) {
	env := newSessionEnv(t)
	q := env.test.Questions
	svc := NewAnalyticsService(env.tests, env.sessions, analytics.Params{PassThresholdPercent: 40}, time.Minute)

	// Student 1 aces it, student 2 gets the single choice wrong and skips the
	// rest, student 3 submits an empty sheet.
	completeSession(t, env, 1, map[uint]string{q[0].ID: `1`, q[1].ID: `[0,2]`, q[2].ID: `"3.14"`})
	completeSession(t, env, 2, map[uint]string{q[0].ID: `0`})
	completeSession(t, env, 3, nil)

	snap, err := svc.GetAnalytics(env.test.ID)
	if err != nil {
		t.Fatalf("GetAnalytics: %v", err)
	}
	if snap.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", snap.Attempts)
	}
	if snap.UniqueStudents != 3 {
		t.Errorf("unique students = %d, want 3", snap.UniqueStudents)
	}
	// Scores are 10, -1, 0; only the first clears 40%.
	if snap.PassCount != 1 {
		t.Errorf("pass count = %d, want 1", snap.PassCount)
	}
	if snap.AverageScore != 3 {
		t.Errorf("average = %v, want 3", snap.AverageScore)
	}
	if snap.MaxScore != 10 || snap.MinScore != -1 {
		t.Errorf("max/min = %v/%v, want 10/-1", snap.MaxScore, snap.MinScore)
	}

	var singleChoice *analytics.QuestionStat
	for i := range snap.Questions {
		if snap.Questions[i].QuestionID == q[0].ID {
			singleChoice = &snap.Questions[i]
		}
	}
	if singleChoice == nil {
		t.Fatal("no per-question stats for the single choice question")
	}
	// Two students attempted it, one correctly; the skip does not dilute.
	if singleChoice.Correct != 1 || singleChoice.Incorrect != 1 || singleChoice.Unattempted != 1 {
		t.Errorf("single choice counts = %+v, want 1 correct, 1 incorrect, 1 unattempted", singleChoice)
	}
	if singleChoice.SuccessRate != 50 {
		t.Errorf("single choice success rate = %v, want 50", singleChoice.SuccessRate)
	}
}

func TestAnalyticsInsights(t *testing.T) {
	env := newSessionEnv(t)
	q := env.test.Questions
	svc := NewAnalyticsService(env.tests, env.sessions, analytics.Params{PassThresholdPercent: 40}, time.Minute)

	// The numerical question is missed by everyone who tries it.
	completeSession(t, env, 1, map[uint]string{q[0].ID: `1`, q[2].ID: `"2.71"`})
	completeSession(t, env, 2, map[uint]string{q[0].ID: `1`, q[2].ID: `"1.62"`})

	ins, err := svc.GetInsights(env.test.ID)
	if err != nil {
		t.Fatalf("GetInsights: %v", err)
	}
	if len(ins.MostMissed) == 0 {
		t.Fatal("expected most-missed questions")
	}
	if ins.MostMissed[0].QuestionID != q[2].ID {
		t.Errorf("most missed = question %d, want %d", ins.MostMissed[0].QuestionID, q[2].ID)
	}
}

func TestAnalyticsCache(t *testing.T) {
	env := newSessionEnv(t)
	q := env.test.Questions
	svc := NewAnalyticsService(env.tests, env.sessions, analytics.Params{PassThresholdPercent: 40}, time.Hour)

	completeSession(t, env, 1, map[uint]string{q[0].ID: `1`})
	first, err := svc.GetAnalytics(env.test.ID)
	if err != nil {
		t.Fatalf("GetAnalytics: %v", err)
	}

	// A session completed inside the TTL window is not visible yet.
	completeSession(t, env, 2, map[uint]string{q[0].ID: `0`})
	second, err := svc.GetAnalytics(env.test.ID)
	if err != nil {
		t.Fatalf("GetAnalytics cached: %v", err)
	}
	if second.Attempts != first.Attempts {
		t.Errorf("cached attempts = %d, want %d", second.Attempts, first.Attempts)
	}

	fresh := NewAnalyticsService(env.tests, env.sessions, analytics.Params{PassThresholdPercent: 40}, time.Hour)
	third, err := fresh.GetAnalytics(env.test.ID)
	if err != nil {
		t.Fatalf("GetAnalytics fresh: %v", err)
	}
	if third.Attempts != 2 {
		t.Errorf("fresh attempts = %d, want 2", third.Attempts)
	}
}

func TestAnalyticsUnknownTest(t *testing.T) {
	env := newSessionEnv(t)
	svc := NewAnalyticsService(env.tests, env.sessions, analytics.Params{PassThresholdPercent: 40}, time.Minute)

	if _, err := svc.GetAnalytics(999); !errs.IsKind(err, errs.KindNotFound) {
		t.Errorf("GetAnalytics error = %v, want not found", err)
	}
}
