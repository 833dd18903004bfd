package service

import (
	"errors"
	"strconv"
	"strings"

	"github.com/jinzhu/copier"
	"github.com/prepboard/examengine/internal/dto"
	"github.com/prepboard/examengine/internal/errs"
	"github.com/prepboard/examengine/internal/model"
	"github.com/prepboard/examengine/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// CatalogService manages the authoring side of the test catalog: drafts are
// created with their full question set, then published. Publishing freezes
// the test; sessions can only be started against published tests.
type CatalogService interface {
	CreateTest(req dto.TestCreateDTO) (*dto.TestResponseDTO, error)
	PublishTest(testID uint) (*dto.TestResponseDTO, error)
	GetTest(testID uint) (*dto.TestResponseDTO, error)
	ListTests(status model.TestStatus) ([]dto.TestSummaryDTO, error)
}

type catalogService struct {
	testRepo repository.TestRepository
}

func NewCatalogService(testRepo repository.TestRepository) CatalogService {
	return &catalogService{testRepo: testRepo}
}

func (s *catalogService) CreateTest(req dto.TestCreateDTO) (*dto.TestResponseDTO, error) {
	if len(req.Questions) == 0 {
		return nil, errs.Validation("a test needs at least one question")
	}

	orderSeen := make(map[int]bool, len(req.Questions))
	questions := make([]model.Question, 0, len(req.Questions))
	totalMarks := 0.0

	for _, qDto := range req.Questions {
		if orderSeen[qDto.OrderInTest] {
			return nil, errs.Validation("duplicate order_in_test %d", qDto.OrderInTest)
		}
		orderSeen[qDto.OrderInTest] = true

		question, err := buildQuestion(qDto)
		if err != nil {
			return nil, err
		}
		totalMarks += question.Marks
		questions = append(questions, *question)
	}

	test := model.Test{
		Name:            req.Name,
		Subject:         req.Subject,
		DurationMinutes: req.DurationMinutes,
		TotalMarks:      totalMarks,
		Status:          model.TestStatusDraft,
		Questions:       questions,
	}

	if err := s.testRepo.Create(&test); err != nil {
		log.Error().Err(err).Str("name", req.Name).Msg("CreateTest: failed to persist test")
		return nil, err
	}

	log.Info().Uint("testID", test.ID).Int("questions", len(test.Questions)).Msg("Test draft created")
	return toTestResponse(&test), nil
}

func (s *catalogService) PublishTest(testID uint) (*dto.TestResponseDTO, error) {
	test, err := s.testRepo.FindByIDWithQuestions(testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("test %d not found", testID)
		}
		return nil, err
	}
	if test.Published() {
		return nil, errs.Conflict("test %d is already published", testID)
	}
	if len(test.Questions) == 0 {
		return nil, errs.Validation("test %d has no questions, cannot publish", testID)
	}

	totalMarks := 0.0
	for _, q := range test.Questions {
		totalMarks += q.Marks
	}

	ok, err := s.testRepo.UpdateStatus(testID, model.TestStatusDraft, model.TestStatusPublished, totalMarks)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.Conflict("test %d was published concurrently", testID)
	}

	test.Status = model.TestStatusPublished
	test.TotalMarks = totalMarks
	log.Info().Uint("testID", testID).Float64("totalMarks", totalMarks).Msg("Test published")
	return toTestResponse(test), nil
}

func (s *catalogService) GetTest(testID uint) (*dto.TestResponseDTO, error) {
	test, err := s.testRepo.FindByIDWithQuestions(testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("test %d not found", testID)
		}
		return nil, err
	}
	return toTestResponse(test), nil
}

func (s *catalogService) ListTests(status model.TestStatus) ([]dto.TestSummaryDTO, error) {
	tests, err := s.testRepo.FindAllByStatus(status)
	if err != nil {
		log.Error().Err(err).Msg("ListTests: repository error")
		return nil, err
	}

	summaries := make([]dto.TestSummaryDTO, 0, len(tests))
	for _, test := range tests {
		var summary dto.TestSummaryDTO
		if err := copier.Copy(&summary, &test); err != nil {
			log.Error().Err(err).Uint("testID", test.ID).Msg("ListTests: copy failed")
			continue
		}
		summary.Status = string(test.Status)
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// buildQuestion validates the correct-answer shape against the declared type
// and assembles the model row.
func buildQuestion(qDto dto.QuestionCreateDTO) (*model.Question, error) {
	qType := model.QuestionType(qDto.Type)
	key := model.AnswerKey{}

	switch qType {
	case model.QuestionTypeSingleChoice:
		if len(qDto.Options) < 2 {
			return nil, errs.Validation("single_choice question %q needs at least two options", qDto.Prompt)
		}
		if qDto.CorrectIndex == nil || *qDto.CorrectIndex < 0 || *qDto.CorrectIndex >= len(qDto.Options) {
			return nil, errs.Validation("single_choice question %q needs a correct_index within its options", qDto.Prompt)
		}
		key.Index = qDto.CorrectIndex

	case model.QuestionTypeTrueFalse:
		if len(qDto.Options) == 0 {
			qDto.Options = []string{"True", "False"}
		}
		if len(qDto.Options) != 2 {
			return nil, errs.Validation("true_false question %q must have exactly two options", qDto.Prompt)
		}
		if qDto.CorrectIndex == nil || (*qDto.CorrectIndex != 0 && *qDto.CorrectIndex != 1) {
			return nil, errs.Validation("true_false question %q needs correct_index 0 or 1", qDto.Prompt)
		}
		key.Index = qDto.CorrectIndex

	case model.QuestionTypeMultiChoice:
		if len(qDto.Options) < 2 {
			return nil, errs.Validation("multiple_choice question %q needs at least two options", qDto.Prompt)
		}
		if len(qDto.CorrectIndexes) == 0 {
			return nil, errs.Validation("multiple_choice question %q needs a non-empty correct_indexes set", qDto.Prompt)
		}
		seen := make(map[int]bool, len(qDto.CorrectIndexes))
		for _, idx := range qDto.CorrectIndexes {
			if idx < 0 || idx >= len(qDto.Options) {
				return nil, errs.Validation("multiple_choice question %q has correct index %d out of range", qDto.Prompt, idx)
			}
			if seen[idx] {
				return nil, errs.Validation("multiple_choice question %q has duplicate correct index %d", qDto.Prompt, idx)
			}
			seen[idx] = true
		}
		key.Indexes = qDto.CorrectIndexes

	case model.QuestionTypeNumerical:
		if len(qDto.Options) != 0 {
			return nil, errs.Validation("numerical question %q must not carry options", qDto.Prompt)
		}
		value := strings.TrimSpace(qDto.CorrectValue)
		if value == "" {
			return nil, errs.Validation("numerical question %q needs a correct_value", qDto.Prompt)
		}
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return nil, errs.Validation("numerical question %q has non-numeric correct_value %q", qDto.Prompt, value)
		}
		if qDto.Tolerance != nil && *qDto.Tolerance < 0 {
			return nil, errs.Validation("numerical question %q has negative tolerance", qDto.Prompt)
		}
		key.Value = value
		key.Tolerance = qDto.Tolerance

	default:
		return nil, errs.Validation("unknown question type %q", qDto.Type)
	}

	return &model.Question{
		Type:          qType,
		Prompt:        qDto.Prompt,
		Options:       qDto.Options,
		Marks:         qDto.Marks,
		NegativeMarks: qDto.NegativeMarks,
		CorrectKey:    key,
		Explanation:   qDto.Explanation,
		OrderInTest:   qDto.OrderInTest,
	}, nil
}

func toTestResponse(test *model.Test) *dto.TestResponseDTO {
	resp := &dto.TestResponseDTO{}
	if err := copier.Copy(resp, test); err != nil {
		log.Error().Err(err).Uint("testID", test.ID).Msg("toTestResponse: copy failed")
	}
	resp.Status = string(test.Status)
	resp.Questions = make([]dto.QuestionViewDTO, 0, len(test.Questions))
	for _, q := range test.Questions {
		resp.Questions = append(resp.Questions, dto.QuestionViewDTO{
			ID:            q.ID,
			Type:          string(q.Type),
			Prompt:        q.Prompt,
			Options:       q.Options,
			Marks:         q.Marks,
			NegativeMarks: q.NegativeMarks,
			OrderInTest:   q.OrderInTest,
		})
	}
	return resp
}
