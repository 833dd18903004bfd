package service

import (
	"testing"

	"github.com/prepboard/examengine/internal/dto"
	"github.com/prepboard/examengine/internal/errs"
	"github.com/prepboard/examengine/internal/model"
)

func intPtr(i int) *int { return &i }

func floatPtr(f float64) *float64 { return &f }

func validTestRequest() dto.TestCreateDTO {
	return dto.TestCreateDTO{
		Name:            "Chemistry Quiz",
		Subject:         "chemistry",
		DurationMinutes: 45,
		Questions: []dto.QuestionCreateDTO{
			{
				Type:          "single_choice",
				Prompt:        "Symbol for sodium?",
				Options:       []string{"So", "Na", "Sd"},
				Marks:         4,
				NegativeMarks: 1,
				CorrectIndex:  intPtr(1),
				OrderInTest:   1,
			},
			{
				Type:           "multiple_choice",
				Prompt:         "Which are noble gases?",
				Options:        []string{"Helium", "Oxygen", "Neon", "Nitrogen"},
				Marks:          4,
				CorrectIndexes: []int{0, 2},
				OrderInTest:    2,
			},
			{
				Type:         "true_false",
				Prompt:       "Water boils at 100C at sea level.",
				Marks:        1,
				CorrectIndex: intPtr(0),
				OrderInTest:  3,
			},
			{
				Type:         "numerical",
				Prompt:       "Molar mass of water?",
				Marks:        2,
				CorrectValue: "18.015",
				Tolerance:    floatPtr(0.01),
				OrderInTest:  4,
			},
		},
	}
}

func TestCreateTest(t *testing.T) {
	svc := NewCatalogService(newFakeTestRepo())

	resp, err := svc.CreateTest(validTestRequest())
	if err != nil {
		t.Fatalf("CreateTest: %v", err)
	}
	if resp.Status != string(model.TestStatusDraft) {
		t.Errorf("status = %q, want draft", resp.Status)
	}
	if resp.TotalMarks != 11 {
		t.Errorf("total marks = %v, want 11", resp.TotalMarks)
	}
	if len(resp.Questions) != 4 {
		t.Fatalf("questions = %d, want 4", len(resp.Questions))
	}
	// True/false questions get canonical options.
	if got := resp.Questions[2].Options; len(got) != 2 || got[0] != "True" || got[1] != "False" {
		t.Errorf("true_false options = %v, want [True False]", got)
	}
}

func TestCreateTestValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*dto.TestCreateDTO)
	}{
		{"duplicate order", func(r *dto.TestCreateDTO) { r.Questions[1].OrderInTest = 1 }},
		{"single choice without key", func(r *dto.TestCreateDTO) { r.Questions[0].CorrectIndex = nil }},
		{"single choice index out of range", func(r *dto.TestCreateDTO) { r.Questions[0].CorrectIndex = intPtr(9) }},
		{"single choice with one option", func(r *dto.TestCreateDTO) { r.Questions[0].Options = []string{"Na"} }},
		{"multi choice empty key", func(r *dto.TestCreateDTO) { r.Questions[1].CorrectIndexes = nil }},
		{"multi choice duplicate indexes", func(r *dto.TestCreateDTO) { r.Questions[1].CorrectIndexes = []int{2, 2} }},
		{"true_false index out of range", func(r *dto.TestCreateDTO) { r.Questions[2].CorrectIndex = intPtr(2) }},
		{"numerical key not a number", func(r *dto.TestCreateDTO) { r.Questions[3].CorrectValue = "heavy" }},
		{"negative tolerance", func(r *dto.TestCreateDTO) { r.Questions[3].Tolerance = floatPtr(-0.5) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewCatalogService(newFakeTestRepo())
			req := validTestRequest()
			tc.mutate(&req)
			if _, err := svc.CreateTest(req); !errs.IsKind(err, errs.KindValidation) {
				t.Errorf("CreateTest error = %v, want validation", err)
			}
		})
	}
}

func TestPublishTest(t *testing.T) {
	repo := newFakeTestRepo()
	svc := NewCatalogService(repo)

	created, err := svc.CreateTest(validTestRequest())
	if err != nil {
		t.Fatalf("CreateTest: %v", err)
	}

	published, err := svc.PublishTest(created.ID)
	if err != nil {
		t.Fatalf("PublishTest: %v", err)
	}
	if published.Status != string(model.TestStatusPublished) {
		t.Errorf("status = %q, want published", published.Status)
	}
	if published.TotalMarks != 11 {
		t.Errorf("total marks = %v, want 11", published.TotalMarks)
	}

	if _, err := svc.PublishTest(created.ID); !errs.IsKind(err, errs.KindConflict) {
		t.Errorf("second publish error = %v, want conflict", err)
	}
	if _, err := svc.PublishTest(999); !errs.IsKind(err, errs.KindNotFound) {
		t.Errorf("publish missing test error = %v, want not found", err)
	}

	empty := &model.Test{Name: "Empty", DurationMinutes: 30, Status: model.TestStatusDraft}
	if err := repo.Create(empty); err != nil {
		t.Fatalf("seeding empty test: %v", err)
	}
	if _, err := svc.PublishTest(empty.ID); !errs.IsKind(err, errs.KindValidation) {
		t.Errorf("publish without questions error = %v, want validation", err)
	}
}

func TestListTests(t *testing.T) {
	repo := newFakeTestRepo()
	svc := NewCatalogService(repo)

	created, err := svc.CreateTest(validTestRequest())
	if err != nil {
		t.Fatalf("CreateTest: %v", err)
	}
	if _, err := svc.CreateTest(validTestRequest()); err != nil {
		t.Fatalf("CreateTest second: %v", err)
	}
	if _, err := svc.PublishTest(created.ID); err != nil {
		t.Fatalf("PublishTest: %v", err)
	}

	publishedList, err := svc.ListTests(model.TestStatusPublished)
	if err != nil {
		t.Fatalf("ListTests published: %v", err)
	}
	if len(publishedList) != 1 || publishedList[0].ID != created.ID {
		t.Errorf("published list = %+v, want only test %d", publishedList, created.ID)
	}

	draftList, err := svc.ListTests(model.TestStatusDraft)
	if err != nil {
		t.Fatalf("ListTests draft: %v", err)
	}
	if len(draftList) != 1 {
		t.Errorf("draft list has %d tests, want 1", len(draftList))
	}
}
