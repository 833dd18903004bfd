package repository

import (
	"github.com/prepboard/examengine/internal/errs"
	"github.com/prepboard/examengine/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AnswerRepository interface {
	Save(answer *model.Answer) error
	FindBySession(sessionID uint) ([]model.Answer, error)
}

type answerRepository struct {
	db *gorm.DB
}

func NewAnswerRepository(db *gorm.DB) AnswerRepository {
	return &answerRepository{db: db}
}

// Save upserts one ledger row, last-write-wins on (session_id, question_id).
// The owning session row is locked and its status re-checked in the same
// transaction, closing the race where a timeout submit fires between the
// caller's status read and the write.
func (r *answerRepository) Save(answer *model.Answer) error {
	return withRetry("answer.save", func() error {
		return r.db.Transaction(func(tx *gorm.DB) error {
			var session model.ExamSession
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				First(&session, answer.SessionID).Error
			if err != nil {
				return err
			}
			if session.Status != model.SessionStatusInProgress {
				return errs.SessionClosed("session %d is %s, answers are frozen", session.ID, session.Status)
			}
			return tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "session_id"}, {Name: "question_id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"value", "marked_for_review", "last_written_at", "updated_at",
				}),
			}).Create(answer).Error
		})
	})
}

func (r *answerRepository) FindBySession(sessionID uint) ([]model.Answer, error) {
	var answers []model.Answer
	err := r.db.
		Where("session_id = ?", sessionID).
		Order("question_id ASC").
		Find(&answers).Error
	return answers, err
}
