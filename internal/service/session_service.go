package service

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/prepboard/examengine/internal/dto"
	"github.com/prepboard/examengine/internal/errs"
	"github.com/prepboard/examengine/internal/grading"
	"github.com/prepboard/examengine/internal/model"
	"github.com/prepboard/examengine/internal/repository"
	"github.com/prepboard/examengine/internal/scheduler"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// SessionService owns the exam session state machine: creation, incremental
// answer writes, the single in_progress -> completed transition, and result
// retrieval. It is also the scheduler's Submitter for timeout fires.
type SessionService interface {
	Start(testID, studentID uint) (*dto.SessionResponseDTO, error)
	GetOngoing(testID, studentID uint) (*dto.SessionResponseDTO, error)
	GetSession(sessionID uint) (*dto.SessionResponseDTO, error)
	SaveAnswer(sessionID uint, req dto.SaveAnswerDTO) error
	Submit(sessionID uint, trigger model.SubmitTrigger) (*dto.ResultResponseDTO, error)
	GetResult(sessionID uint) (*dto.ResultResponseDTO, error)
	SubmitTimeout(sessionID uint) error
	Recover() error
}

type sessionService struct {
	testRepo     repository.TestRepository
	questionRepo repository.QuestionRepository
	sessionRepo  repository.SessionRepository
	answerRepo   repository.AnswerRepository
	sched        *scheduler.Scheduler
	policy       grading.Policy
	now          func() time.Time
}

func NewSessionService(
	testRepo repository.TestRepository,
	questionRepo repository.QuestionRepository,
	sessionRepo repository.SessionRepository,
	answerRepo repository.AnswerRepository,
	sched *scheduler.Scheduler,
	policy grading.Policy,
) SessionService {
	return &sessionService{
		testRepo:     testRepo,
		questionRepo: questionRepo,
		sessionRepo:  sessionRepo,
		answerRepo:   answerRepo,
		sched:        sched,
		policy:       policy,
		now:          time.Now,
	}
}

// Start creates a session for (student, test). The server-assigned start time
// is authoritative; the deadline timer is armed before the caller sees the
// session, so an abandoned tab still gets submitted.
func (s *sessionService) Start(testID, studentID uint) (*dto.SessionResponseDTO, error) {
	test, err := s.testRepo.FindByID(testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("test %d not found", testID)
		}
		return nil, err
	}
	if !test.Published() {
		return nil, errs.Validation("test %d is not published", testID)
	}

	existing, err := s.sessionRepo.FindOngoing(studentID, testID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errs.Conflict("student %d already has session %d in progress for test %d, resume it instead", studentID, existing.ID, testID)
	}

	session := &model.ExamSession{
		Token:           uuid.NewString(),
		TestID:          testID,
		StudentID:       studentID,
		StartTime:       s.now(),
		DurationMinutes: test.DurationMinutes,
		Status:          model.SessionStatusInProgress,
	}
	if err := s.sessionRepo.Create(session); err != nil {
		// The partial unique index backs up the FindOngoing check, so a
		// racing second Start loses here instead of creating a duplicate.
		if errs.IsKind(err, errs.KindConflict) {
			return nil, err
		}
		log.Error().Err(err).Uint("testID", testID).Uint("studentID", studentID).Msg("Start: failed to create session")
		return nil, err
	}

	s.sched.Arm(session.ID, session.Deadline())
	log.Info().Uint("sessionID", session.ID).Uint("testID", testID).Uint("studentID", studentID).
		Time("deadline", session.Deadline()).Msg("Exam session started")

	return s.toSessionResponse(session, nil), nil
}

func (s *sessionService) GetOngoing(testID, studentID uint) (*dto.SessionResponseDTO, error) {
	session, err := s.sessionRepo.FindOngoing(studentID, testID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, errs.NotFound("no ongoing session for student %d on test %d", studentID, testID)
	}
	if s.pastDeadline(session) {
		if _, err := s.Submit(session.ID, model.SubmitTriggerTimeout); err != nil {
			return nil, err
		}
		return nil, errs.NotFound("no ongoing session for student %d on test %d", studentID, testID)
	}
	answers, err := s.answerRepo.FindBySession(session.ID)
	if err != nil {
		return nil, err
	}
	return s.toSessionResponse(session, answers), nil
}

func (s *sessionService) GetSession(sessionID uint) (*dto.SessionResponseDTO, error) {
	session, err := s.sessionRepo.FindByIDWithAnswers(sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("session %d not found", sessionID)
		}
		return nil, err
	}
	if s.pastDeadline(session) {
		if _, err := s.Submit(sessionID, model.SubmitTriggerTimeout); err != nil {
			return nil, err
		}
		session, err = s.sessionRepo.FindByIDWithAnswers(sessionID)
		if err != nil {
			return nil, err
		}
	}
	return s.toSessionResponse(session, session.Answers), nil
}

// pastDeadline reports a session whose deadline elapsed before its timer
// fired. Reads and writes settle such a session themselves instead of
// presenting it as live; the submit is idempotent, so racing the timer is
// harmless.
func (s *sessionService) pastDeadline(session *model.ExamSession) bool {
	return session.Status == model.SessionStatusInProgress && s.now().After(session.Deadline())
}

// SaveAnswer writes one ledger row, last-write-wins. The repository re-checks
// the session status inside the write transaction, so a timeout submit firing
// between this method's status read and the write still rejects cleanly.
func (s *sessionService) SaveAnswer(sessionID uint, req dto.SaveAnswerDTO) error {
	session, err := s.sessionRepo.FindByID(sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.NotFound("session %d not found", sessionID)
		}
		return err
	}
	if session.Status != model.SessionStatusInProgress {
		return errs.SessionClosed("session %d is %s, answers are frozen", sessionID, session.Status)
	}
	if s.pastDeadline(session) {
		if _, err := s.Submit(sessionID, model.SubmitTriggerTimeout); err != nil {
			return err
		}
		return errs.SessionClosed("session %d deadline has passed, answers are frozen", sessionID)
	}

	question, err := s.questionRepo.FindByID(req.QuestionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.NotFound("question %d not found", req.QuestionID)
		}
		return err
	}
	if question.TestID != session.TestID {
		return errs.Validation("question %d does not belong to test %d", req.QuestionID, session.TestID)
	}

	value, err := model.ParseAnswerValue(question, req.Value)
	if err != nil {
		return err
	}

	answer := &model.Answer{
		SessionID:       sessionID,
		QuestionID:      req.QuestionID,
		Value:           value,
		MarkedForReview: req.MarkedForReview,
		LastWrittenAt:   s.now(),
	}
	return s.answerRepo.Save(answer)
}

// Submit transitions the session to completed and grades it exactly once.
// The transition is a compare-and-swap on status; the loser of a race
// (manual submit vs. timeout fire, or duplicate retries) observes completed
// and returns the already-computed score instead of re-grading.
func (s *sessionService) Submit(sessionID uint, trigger model.SubmitTrigger) (*dto.ResultResponseDTO, error) {
	session, err := s.sessionRepo.FindByID(sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("session %d not found", sessionID)
		}
		return nil, err
	}

	endTime := s.now()
	if trigger == model.SubmitTriggerTimeout && endTime.After(session.Deadline()) {
		// Clamp so a late-firing timer or recovery scan never penalizes the
		// student with an end time past the allotted duration.
		endTime = session.Deadline()
	}

	won, err := s.sessionRepo.MarkCompleted(sessionID, endTime, trigger)
	if err != nil {
		return nil, err
	}

	if !won {
		log.Info().Uint("sessionID", sessionID).Str("trigger", string(trigger)).Msg("Submit: session already completed, returning stored result")
		return s.awaitStoredResult(sessionID)
	}

	// Manual submit cancels the outstanding timer as part of the transition;
	// a raced fire is harmless because the CAS already decided the winner.
	s.sched.Cancel(sessionID)

	breakdown, err := s.gradeAndStore(sessionID)
	if err != nil {
		return nil, err
	}
	log.Info().Uint("sessionID", sessionID).Str("trigger", string(trigger)).
		Float64("score", breakdown.TotalScore).Msg("Exam session submitted and graded")

	return s.buildResult(sessionID)
}

// SubmitTimeout implements scheduler.Submitter.
func (s *sessionService) SubmitTimeout(sessionID uint) error {
	_, err := s.Submit(sessionID, model.SubmitTriggerTimeout)
	return err
}

func (s *sessionService) GetResult(sessionID uint) (*dto.ResultResponseDTO, error) {
	return s.buildResult(sessionID)
}

// Recover is the restart contract: re-grade completed sessions whose score
// was never stored, then hand every in_progress session to the scheduler,
// which submits the overdue ones and re-arms timers for the rest.
func (s *sessionService) Recover() error {
	ungraded, err := s.sessionRepo.FindUngraded()
	if err != nil {
		return err
	}
	for _, session := range ungraded {
		if _, err := s.gradeAndStore(session.ID); err != nil {
			log.Error().Err(err).Uint("sessionID", session.ID).Msg("Recover: re-grading failed, continuing")
			continue
		}
		log.Info().Uint("sessionID", session.ID).Msg("Recover: orphaned session re-graded")
	}

	inProgress, err := s.sessionRepo.FindAllInProgress()
	if err != nil {
		return err
	}
	s.sched.Recover(inProgress)
	return nil
}

// gradeAndStore computes the breakdown from the frozen ledger and persists
// it. Grading is pure, so a crash between the status CAS and this write is
// healed by Recover re-running it with an identical outcome.
func (s *sessionService) gradeAndStore(sessionID uint) (*model.ScoreBreakdown, error) {
	session, err := s.sessionRepo.FindByID(sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != model.SessionStatusCompleted {
		return nil, errs.GradingInvariant("grade invoked on session %d in status %s", sessionID, session.Status)
	}

	test, err := s.testRepo.FindByIDWithQuestions(session.TestID)
	if err != nil {
		return nil, err
	}
	answers, err := s.answerRepo.FindBySession(sessionID)
	if err != nil {
		return nil, err
	}

	breakdown := grading.Grade(test, answers, s.policy)
	if err := s.sessionRepo.StoreResult(sessionID, breakdown.TotalScore, &breakdown); err != nil {
		return nil, err
	}
	return &breakdown, nil
}

// awaitStoredResult covers the narrow window where the CAS winner is still
// writing the breakdown. Grading is fast; a handful of short waits is plenty.
func (s *sessionService) awaitStoredResult(sessionID uint) (*dto.ResultResponseDTO, error) {
	const attempts = 10
	for i := 0; i < attempts; i++ {
		session, err := s.sessionRepo.FindByID(sessionID)
		if err != nil {
			return nil, err
		}
		if session.Breakdown != nil {
			return s.buildResult(sessionID)
		}
		time.Sleep(50 * time.Millisecond)
	}
	return nil, errs.GradingInvariant("session %d completed but no result was stored", sessionID)
}

func (s *sessionService) buildResult(sessionID uint) (*dto.ResultResponseDTO, error) {
	session, err := s.sessionRepo.FindByIDWithAnswers(sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("session %d not found", sessionID)
		}
		return nil, err
	}
	if session.Status != model.SessionStatusCompleted {
		return nil, errs.Conflict("session %d is still in progress", sessionID)
	}
	if session.Breakdown == nil {
		return nil, errs.GradingInvariant("session %d completed but no result was stored", sessionID)
	}

	test, err := s.testRepo.FindByIDWithQuestions(session.TestID)
	if err != nil {
		return nil, err
	}

	// Stored results must be reproducible from the immutable inputs; a
	// mismatch means the invariant broke somewhere and must not be hidden.
	recomputed := grading.Grade(test, session.Answers, s.policy)
	if !grading.Equal(*session.Breakdown, recomputed) {
		log.Error().Uint("sessionID", sessionID).Msg("Stored breakdown diverges from recomputation")
		return nil, errs.GradingInvariant("stored result for session %d diverges from recomputation", sessionID)
	}

	answersByQuestion := make(map[uint]model.Answer, len(session.Answers))
	for _, a := range session.Answers {
		answersByQuestion[a.QuestionID] = a
	}

	resp := &dto.ResultResponseDTO{
		SessionID: session.ID,
		TestID:    session.TestID,
		TestName:  test.Name,
		StudentID: session.StudentID,
		StartTime: session.StartTime,
		EndTime:   session.EndTime,
		Breakdown: *session.Breakdown,
	}
	if session.Trigger != nil {
		resp.Trigger = string(*session.Trigger)
	}

	scoreByQuestion := make(map[uint]model.QuestionScore, len(session.Breakdown.Questions))
	for _, qs := range session.Breakdown.Questions {
		scoreByQuestion[qs.QuestionID] = qs
	}

	resp.Questions = make([]dto.QuestionResultDTO, 0, len(test.Questions))
	for _, q := range test.Questions {
		qs := scoreByQuestion[q.ID]
		row := dto.QuestionResultDTO{
			QuestionID:     q.ID,
			Type:           string(q.Type),
			Prompt:         q.Prompt,
			Options:        q.Options,
			Marks:          q.Marks,
			NegativeMarks:  q.NegativeMarks,
			CorrectIndex:   q.CorrectKey.Index,
			CorrectIndexes: q.CorrectKey.Indexes,
			CorrectValue:   q.CorrectKey.Value,
			Explanation:    q.Explanation,
			Attempted:      qs.Attempted,
			IsCorrect:      qs.IsCorrect,
			ScoreEarned:    qs.ScoreEarned,
		}
		if answer, ok := answersByQuestion[q.ID]; ok {
			row.YourAnswer = answer.Value
		} else {
			row.YourAnswer = model.AnswerValue{Kind: model.AnswerKindNone}
		}
		resp.Questions = append(resp.Questions, row)
	}
	return resp, nil
}

func (s *sessionService) toSessionResponse(session *model.ExamSession, answers []model.Answer) *dto.SessionResponseDTO {
	resp := &dto.SessionResponseDTO{
		ID:                   session.ID,
		Token:                session.Token,
		TestID:               session.TestID,
		StudentID:            session.StudentID,
		StartTime:            session.StartTime,
		DurationMinutes:      session.DurationMinutes,
		TimeRemainingSeconds: int64(session.TimeRemaining(s.now()) / time.Second),
		Status:               string(session.Status),
		EndTime:              session.EndTime,
		Score:                session.Score,
	}
	for _, a := range answers {
		resp.Answers = append(resp.Answers, dto.AnswerViewDTO{
			QuestionID:      a.QuestionID,
			Value:           a.Value,
			MarkedForReview: a.MarkedForReview,
			LastWrittenAt:   a.LastWrittenAt,
		})
	}
	return resp
}
