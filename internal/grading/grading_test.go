package grading

import (
	"testing"

	"github.com/prepboard/examengine/internal/model"
)

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func singleChoiceTest(marks, negative float64, correct int) *model.Test {
	return &model.Test{
		ID:              1,
		DurationMinutes: 60,
		Status:          model.TestStatusPublished,
		Questions: []model.Question{
			{
				ID:            10,
				TestID:        1,
				Type:          model.QuestionTypeSingleChoice,
				Options:       []string{"A", "B", "C", "D"},
				Marks:         marks,
				NegativeMarks: negative,
				CorrectKey:    model.AnswerKey{Index: intPtr(correct)},
				OrderInTest:   1,
			},
		},
	}
}

func TestGrade_WrongSingleChoiceAppliesNegativeMarking(t *testing.T) {
	test := singleChoiceTest(4, 1, 2)
	answers := []model.Answer{{
		SessionID:  1,
		QuestionID: 10,
		Value:      model.AnswerValue{Kind: model.AnswerKindSingle, Index: 1},
	}}

	got := Grade(test, answers, Policy{})

	if got.TotalScore != -1 {
		t.Fatalf("expected total -1, got %v", got.TotalScore)
	}
	if got.Summary.Correct != 0 || got.Summary.Incorrect != 1 || got.Summary.Unattempted != 0 {
		t.Fatalf("unexpected summary: %+v", got.Summary)
	}
}

func TestGrade_FloorPolicyClampsTotalNotRaw(t *testing.T) {
	test := singleChoiceTest(4, 2, 2)
	answers := []model.Answer{{
		QuestionID: 10,
		Value:      model.AnswerValue{Kind: model.AnswerKindSingle, Index: 0},
	}}

	floored := Grade(test, answers, Policy{FloorTotalAtZero: true})
	if floored.TotalScore != 0 {
		t.Fatalf("expected floored total 0, got %v", floored.TotalScore)
	}
	if floored.RawScore != -2 {
		t.Fatalf("expected raw -2, got %v", floored.RawScore)
	}

	raw := Grade(test, answers, Policy{})
	if raw.TotalScore != -2 {
		t.Fatalf("expected unfloored total -2, got %v", raw.TotalScore)
	}
}

func TestGrade_UnattemptedScoresZero(t *testing.T) {
	test := singleChoiceTest(4, 1, 2)

	for _, answers := range [][]model.Answer{
		nil,
		{{QuestionID: 10, Value: model.AnswerValue{Kind: model.AnswerKindNone}}},
	} {
		got := Grade(test, answers, Policy{})
		if got.TotalScore != 0 {
			t.Fatalf("expected total 0, got %v", got.TotalScore)
		}
		if got.Summary.Unattempted != 1 || got.Summary.Attempted != 0 {
			t.Fatalf("unexpected summary: %+v", got.Summary)
		}
	}
}

func TestGrade_MultiChoiceExactSetOnly(t *testing.T) {
	test := &model.Test{
		ID: 2,
		Questions: []model.Question{{
			ID:          20,
			Type:        model.QuestionTypeMultiChoice,
			Options:     []string{"A", "B", "C", "D"},
			Marks:       3,
			CorrectKey:  model.AnswerKey{Indexes: []int{0, 2}},
			OrderInTest: 1,
		}},
	}

	tests := []struct {
		name     string
		selected []int
		correct  bool
	}{
		{name: "exact match", selected: []int{0, 2}, correct: true},
		{name: "exact match unordered", selected: []int{2, 0}, correct: true},
		{name: "strict subset", selected: []int{0}, correct: false},
		{name: "strict superset", selected: []int{0, 2, 3}, correct: false},
		{name: "disjoint", selected: []int{1, 3}, correct: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			answers := []model.Answer{{
				QuestionID: 20,
				Value:      model.AnswerValue{Kind: model.AnswerKindMulti, Indexes: tc.selected},
			}}
			got := Grade(test, answers, Policy{})
			if got.Questions[0].IsCorrect != tc.correct {
				t.Fatalf("expected correct=%v, got %+v", tc.correct, got.Questions[0])
			}
			if !tc.correct && got.Questions[0].ScoreEarned > 0 {
				t.Fatalf("no partial credit allowed, got %v", got.Questions[0].ScoreEarned)
			}
		})
	}
}

func TestGrade_Numerical(t *testing.T) {
	makeTest := func(key model.AnswerKey) *model.Test {
		return &model.Test{
			Questions: []model.Question{{
				ID:          30,
				Type:        model.QuestionTypeNumerical,
				Marks:       2,
				CorrectKey:  key,
				OrderInTest: 1,
			}},
		}
	}

	tests := []struct {
		name    string
		key     model.AnswerKey
		given   string
		correct bool
	}{
		{name: "exact match", key: model.AnswerKey{Value: "3.14"}, given: "3.14", correct: true},
		{name: "equivalent representation", key: model.AnswerKey{Value: "3.5"}, given: "3.50", correct: true},
		{name: "no implicit tolerance", key: model.AnswerKey{Value: "3.14"}, given: "3.141", correct: false},
		{name: "key tolerance honored", key: model.AnswerKey{Value: "3.14", Tolerance: floatPtr(0.01)}, given: "3.145", correct: true},
		{name: "outside tolerance", key: model.AnswerKey{Value: "3.14", Tolerance: floatPtr(0.01)}, given: "3.16", correct: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			answers := []model.Answer{{
				QuestionID: 30,
				Value:      model.AnswerValue{Kind: model.AnswerKindNumeric, Numeric: tc.given},
			}}
			got := Grade(makeTest(tc.key), answers, Policy{})
			if got.Questions[0].IsCorrect != tc.correct {
				t.Fatalf("expected correct=%v for %q", tc.correct, tc.given)
			}
		})
	}
}

func TestGrade_Idempotent(t *testing.T) {
	test := &model.Test{
		TotalMarks: 7,
		Questions: []model.Question{
			{
				ID: 40, Type: model.QuestionTypeSingleChoice,
				Options: []string{"A", "B"}, Marks: 4, NegativeMarks: 1,
				CorrectKey: model.AnswerKey{Index: intPtr(0)}, OrderInTest: 1,
			},
			{
				ID: 41, Type: model.QuestionTypeMultiChoice,
				Options: []string{"A", "B", "C"}, Marks: 3,
				CorrectKey: model.AnswerKey{Indexes: []int{1, 2}}, OrderInTest: 2,
			},
		},
	}
	answers := []model.Answer{
		{QuestionID: 40, Value: model.AnswerValue{Kind: model.AnswerKindSingle, Index: 1}},
		{QuestionID: 41, Value: model.AnswerValue{Kind: model.AnswerKindMulti, Indexes: []int{1, 2}}},
	}

	first := Grade(test, answers, Policy{})
	second := Grade(test, answers, Policy{})
	if !Equal(first, second) {
		t.Fatalf("grading is not idempotent: %+v vs %+v", first, second)
	}
	if first.TotalScore != 2 {
		t.Fatalf("expected total 2, got %v", first.TotalScore)
	}
	if first.Percentage != round2(2.0/7.0*100) {
		t.Fatalf("unexpected percentage %v", first.Percentage)
	}
}

func TestGrade_QuestionOrderFollowsTest(t *testing.T) {
	test := &model.Test{
		Questions: []model.Question{
			{ID: 52, Type: model.QuestionTypeTrueFalse, Options: []string{"True", "False"}, Marks: 1, CorrectKey: model.AnswerKey{Index: intPtr(0)}, OrderInTest: 2},
			{ID: 51, Type: model.QuestionTypeTrueFalse, Options: []string{"True", "False"}, Marks: 1, CorrectKey: model.AnswerKey{Index: intPtr(1)}, OrderInTest: 1},
		},
	}

	got := Grade(test, nil, Policy{})
	if got.Questions[0].QuestionID != 51 || got.Questions[1].QuestionID != 52 {
		t.Fatalf("questions not ordered by position: %+v", got.Questions)
	}
}
