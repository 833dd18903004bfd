package repository

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prepboard/examengine/internal/errs"
	"github.com/prepboard/examengine/internal/model"
	"gorm.io/gorm"
)

type SessionRepository interface {
	Create(session *model.ExamSession) error
	FindByID(id uint) (*model.ExamSession, error)
	FindByIDWithAnswers(id uint) (*model.ExamSession, error)
	FindOngoing(studentID, testID uint) (*model.ExamSession, error)
	FindAllInProgress() ([]model.ExamSession, error)
	FindCompletedByTest(testID uint) ([]model.ExamSession, error)
	FindUngraded() ([]model.ExamSession, error)
	MarkCompleted(id uint, endTime time.Time, trigger model.SubmitTrigger) (bool, error)
	StoreResult(id uint, score float64, breakdown *model.ScoreBreakdown) error
}

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(session *model.ExamSession) error {
	err := withRetry("session.create", func() error {
		return r.db.Create(session).Error
	})
	if err != nil && isUniqueViolation(err) {
		// The partial unique index on (student_id, test_id) for in_progress
		// rows makes the one-active-session rule hold under races.
		return errs.Wrap(errs.KindConflict, err,
			"an in_progress session already exists for this student and test")
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *sessionRepository) FindByID(id uint) (*model.ExamSession, error) {
	var session model.ExamSession
	if err := r.db.First(&session, id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) FindByIDWithAnswers(id uint) (*model.ExamSession, error) {
	var session model.ExamSession
	err := r.db.
		Preload("Answers").
		First(&session, id).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// FindOngoing returns the student's in_progress session for a test, or nil.
// The store guarantees at most one exists per (student, test) pair.
func (r *sessionRepository) FindOngoing(studentID, testID uint) (*model.ExamSession, error) {
	var session model.ExamSession
	err := r.db.
		Where("student_id = ? AND test_id = ? AND status = ?", studentID, testID, model.SessionStatusInProgress).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) FindAllInProgress() ([]model.ExamSession, error) {
	var sessions []model.ExamSession
	err := r.db.
		Where("status = ?", model.SessionStatusInProgress).
		Order("start_time ASC").
		Find(&sessions).Error
	return sessions, err
}

func (r *sessionRepository) FindCompletedByTest(testID uint) ([]model.ExamSession, error) {
	var sessions []model.ExamSession
	err := r.db.
		Preload("Answers").
		Where("test_id = ? AND status = ?", testID, model.SessionStatusCompleted).
		Order("end_time ASC").
		Find(&sessions).Error
	return sessions, err
}

// FindUngraded returns completed sessions whose score was never stored, i.e.
// the process died between the status transition and grading. The recovery
// scan re-grades them; grading is deterministic so this is safe.
func (r *sessionRepository) FindUngraded() ([]model.ExamSession, error) {
	var sessions []model.ExamSession
	err := r.db.
		Where("status = ? AND score IS NULL", model.SessionStatusCompleted).
		Find(&sessions).Error
	return sessions, err
}

// MarkCompleted is the single compare-and-swap on session status. Exactly one
// caller wins; the ledger is frozen from that moment because answer writes
// re-check status transactionally.
func (r *sessionRepository) MarkCompleted(id uint, endTime time.Time, trigger model.SubmitTrigger) (bool, error) {
	res := r.db.Model(&model.ExamSession{}).
		Where("id = ? AND status = ?", id, model.SessionStatusInProgress).
		Updates(map[string]interface{}{
			"status":   model.SessionStatusCompleted,
			"end_time": endTime,
			"trigger":  trigger,
		})
	return res.RowsAffected == 1, res.Error
}

// StoreResult persists the breakdown on the session and the per-question
// outcomes on the ledger rows in one transaction.
func (r *sessionRepository) StoreResult(id uint, score float64, breakdown *model.ScoreBreakdown) error {
	return withRetry("session.store_result", func() error {
		return r.db.Transaction(func(tx *gorm.DB) error {
			// Struct-based update so the json serializer applies to the
			// breakdown column.
			err := tx.Model(&model.ExamSession{}).
				Where("id = ? AND status = ?", id, model.SessionStatusCompleted).
				Select("score", "breakdown").
				Updates(&model.ExamSession{Score: &score, Breakdown: breakdown}).Error
			if err != nil {
				return err
			}
			for _, qs := range breakdown.Questions {
				err := tx.Model(&model.Answer{}).
					Where("session_id = ? AND question_id = ?", id, qs.QuestionID).
					Updates(map[string]interface{}{
						"is_correct":   qs.IsCorrect,
						"score_earned": qs.ScoreEarned,
					}).Error
				if err != nil {
					return err
				}
			}
			return nil
		})
	})
}
