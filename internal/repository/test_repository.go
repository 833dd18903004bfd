package repository

import (
	"github.com/prepboard/examengine/internal/model"
	"gorm.io/gorm"
)

type TestRepository interface {
	Create(test *model.Test) error
	FindByID(id uint) (*model.Test, error)
	FindByIDWithQuestions(id uint) (*model.Test, error)
	FindAllByStatus(status model.TestStatus) ([]model.Test, error)
	UpdateStatus(id uint, from, to model.TestStatus, totalMarks float64) (bool, error)
}

type testRepository struct {
	db *gorm.DB
}

func NewTestRepository(db *gorm.DB) TestRepository {
	return &testRepository{db: db}
}

func (r *testRepository) Create(test *model.Test) error {
	// GORM creates the associated questions alongside the test.
	return withRetry("test.create", func() error {
		return r.db.Create(test).Error
	})
}

func (r *testRepository) FindByID(id uint) (*model.Test, error) {
	var test model.Test
	if err := r.db.First(&test, id).Error; err != nil {
		return nil, err
	}
	return &test, nil
}

func (r *testRepository) FindByIDWithQuestions(id uint) (*model.Test, error) {
	var test model.Test
	err := r.db.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("questions.order_in_test ASC")
	}).First(&test, id).Error
	if err != nil {
		return nil, err
	}
	return &test, nil
}

func (r *testRepository) FindAllByStatus(status model.TestStatus) ([]model.Test, error) {
	var tests []model.Test
	err := r.db.
		Where("status = ?", status).
		Order("created_at DESC").
		Find(&tests).Error
	return tests, err
}

// UpdateStatus transitions a test between statuses with a guarded update, so
// publishing is race-free and a published test can never flip back silently.
func (r *testRepository) UpdateStatus(id uint, from, to model.TestStatus, totalMarks float64) (bool, error) {
	res := r.db.Model(&model.Test{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{"status": to, "total_marks": totalMarks})
	return res.RowsAffected == 1, res.Error
}
