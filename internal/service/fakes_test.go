package service

import (
	"sort"
	"sync"
	"time"

	"github.com/prepboard/examengine/internal/errs"
	"github.com/prepboard/examengine/internal/model"
	"gorm.io/gorm"
)

// In-memory repository fakes with the same contracts as the gorm-backed
// implementations: CAS on session status, conflict on duplicate ongoing
// sessions, and status re-check on answer writes.

type fakeTestRepo struct {
	mu     sync.Mutex
	nextID uint
	tests  map[uint]*model.Test
}

func newFakeTestRepo() *fakeTestRepo {
	return &fakeTestRepo{tests: map[uint]*model.Test{}}
}

func (r *fakeTestRepo) Create(test *model.Test) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	test.ID = r.nextID
	for i := range test.Questions {
		test.Questions[i].ID = test.ID*100 + uint(i)
		test.Questions[i].TestID = test.ID
	}
	stored := *test
	r.tests[test.ID] = &stored
	return nil
}

func (r *fakeTestRepo) FindByID(id uint) (*model.Test, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	test, ok := r.tests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *test
	copied.Questions = nil
	return &copied, nil
}

func (r *fakeTestRepo) FindByIDWithQuestions(id uint) (*model.Test, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	test, ok := r.tests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *test
	copied.Questions = append([]model.Question(nil), test.Questions...)
	return &copied, nil
}

func (r *fakeTestRepo) FindAllByStatus(status model.TestStatus) ([]model.Test, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Test
	for _, test := range r.tests {
		if test.Status == status {
			out = append(out, *test)
		}
	}
	return out, nil
}

func (r *fakeTestRepo) UpdateStatus(id uint, from, to model.TestStatus, totalMarks float64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	test, ok := r.tests[id]
	if !ok || test.Status != from {
		return false, nil
	}
	test.Status = to
	test.TotalMarks = totalMarks
	return true, nil
}

type fakeQuestionRepo struct {
	tests *fakeTestRepo
}

func (r *fakeQuestionRepo) FindByID(id uint) (*model.Question, error) {
	r.tests.mu.Lock()
	defer r.tests.mu.Unlock()
	for _, test := range r.tests.tests {
		for i := range test.Questions {
			if test.Questions[i].ID == id {
				q := test.Questions[i]
				return &q, nil
			}
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeQuestionRepo) FindByTestID(testID uint) ([]model.Question, error) {
	test, err := r.tests.FindByIDWithQuestions(testID)
	if err != nil {
		return nil, err
	}
	return test.Questions, nil
}

type fakeSessionRepo struct {
	mu          sync.Mutex
	nextID      uint
	sessions    map[uint]*model.ExamSession
	answers     *fakeAnswerRepo
	resultSaves int
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[uint]*model.ExamSession{}}
}

func (r *fakeSessionRepo) Create(session *model.ExamSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.sessions {
		if existing.StudentID == session.StudentID && existing.TestID == session.TestID &&
			existing.Status == model.SessionStatusInProgress {
			return errs.Conflict("an in_progress session already exists for this student and test")
		}
	}
	r.nextID++
	session.ID = r.nextID
	stored := *session
	r.sessions[session.ID] = &stored
	return nil
}

func (r *fakeSessionRepo) FindByID(id uint) (*model.ExamSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *session
	return &copied, nil
}

func (r *fakeSessionRepo) FindByIDWithAnswers(id uint) (*model.ExamSession, error) {
	session, err := r.FindByID(id)
	if err != nil {
		return nil, err
	}
	answers, err := r.answers.FindBySession(id)
	if err != nil {
		return nil, err
	}
	session.Answers = answers
	return session, nil
}

func (r *fakeSessionRepo) FindOngoing(studentID, testID uint) (*model.ExamSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, session := range r.sessions {
		if session.StudentID == studentID && session.TestID == testID &&
			session.Status == model.SessionStatusInProgress {
			copied := *session
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeSessionRepo) FindAllInProgress() ([]model.ExamSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ExamSession
	for _, session := range r.sessions {
		if session.Status == model.SessionStatusInProgress {
			out = append(out, *session)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeSessionRepo) FindCompletedByTest(testID uint) ([]model.ExamSession, error) {
	r.mu.Lock()
	var out []model.ExamSession
	for _, session := range r.sessions {
		if session.TestID == testID && session.Status == model.SessionStatusCompleted {
			out = append(out, *session)
		}
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	for i := range out {
		answers, err := r.answers.FindBySession(out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Answers = answers
	}
	return out, nil
}

func (r *fakeSessionRepo) FindUngraded() ([]model.ExamSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ExamSession
	for _, session := range r.sessions {
		if session.Status == model.SessionStatusCompleted && session.Score == nil {
			out = append(out, *session)
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) MarkCompleted(id uint, endTime time.Time, trigger model.SubmitTrigger) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok || session.Status != model.SessionStatusInProgress {
		return false, nil
	}
	session.Status = model.SessionStatusCompleted
	session.EndTime = &endTime
	session.Trigger = &trigger
	return true, nil
}

func (r *fakeSessionRepo) StoreResult(id uint, score float64, breakdown *model.ScoreBreakdown) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	r.resultSaves++
	session.Score = &score
	session.Breakdown = breakdown
	if r.answers != nil {
		r.answers.applyScores(id, breakdown)
	}
	return nil
}

type fakeAnswerRepo struct {
	mu       sync.Mutex
	sessions *fakeSessionRepo
	rows     map[uint]map[uint]*model.Answer
}

func newFakeAnswerRepo(sessions *fakeSessionRepo) *fakeAnswerRepo {
	repo := &fakeAnswerRepo{sessions: sessions, rows: map[uint]map[uint]*model.Answer{}}
	sessions.answers = repo
	return repo
}

func (r *fakeAnswerRepo) Save(answer *model.Answer) error {
	session, err := r.sessions.FindByID(answer.SessionID)
	if err != nil {
		return err
	}
	if session.Status != model.SessionStatusInProgress {
		return errs.SessionClosed("session %d is %s, answers are frozen", session.ID, session.Status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rows[answer.SessionID] == nil {
		r.rows[answer.SessionID] = map[uint]*model.Answer{}
	}
	stored := *answer
	r.rows[answer.SessionID][answer.QuestionID] = &stored
	return nil
}

func (r *fakeAnswerRepo) FindBySession(sessionID uint) ([]model.Answer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findBySessionLocked(sessionID)
}

func (r *fakeAnswerRepo) findBySessionLocked(sessionID uint) ([]model.Answer, error) {
	var out []model.Answer
	for _, answer := range r.rows[sessionID] {
		out = append(out, *answer)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

func (r *fakeAnswerRepo) applyScores(sessionID uint, breakdown *model.ScoreBreakdown) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, qs := range breakdown.Questions {
		if answer, ok := r.rows[sessionID][qs.QuestionID]; ok {
			isCorrect := qs.IsCorrect
			earned := qs.ScoreEarned
			answer.IsCorrect = &isCorrect
			answer.ScoreEarned = &earned
		}
	}
}
