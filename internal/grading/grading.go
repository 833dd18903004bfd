package grading

import (
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/prepboard/examengine/internal/model"
)

// Policy holds the scoring choices that are deliberately parameters rather
// than hard-coded behavior.
type Policy struct {
	// FloorTotalAtZero clamps the reported total at zero when negative
	// marking drives the sum below it. The raw sum is kept either way.
	FloorTotalAtZero bool
}

// Grade maps a finalized session's answers against the test's answer keys.
// It is a pure function: same test, same answers, same policy always produce
// an identical breakdown. Question results are ordered by OrderInTest.
func Grade(test *model.Test, answers []model.Answer, policy Policy) model.ScoreBreakdown {
	byQuestion := make(map[uint]model.Answer, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}

	questions := append([]model.Question(nil), test.Questions...)
	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].OrderInTest < questions[j].OrderInTest
	})

	breakdown := model.ScoreBreakdown{
		Questions: make([]model.QuestionScore, 0, len(questions)),
		Summary:   model.ScoreSummary{Total: len(questions)},
	}

	maxScore := 0.0
	rawScore := 0.0
	for _, q := range questions {
		maxScore += q.Marks

		qs := model.QuestionScore{QuestionID: q.ID}
		answer, found := byQuestion[q.ID]
		if !found || !answer.Value.Attempted() {
			breakdown.Summary.Unattempted++
			breakdown.Questions = append(breakdown.Questions, qs)
			continue
		}

		qs.Attempted = true
		breakdown.Summary.Attempted++
		if isCorrect(&q, answer.Value) {
			qs.IsCorrect = true
			qs.ScoreEarned = q.Marks
			breakdown.Summary.Correct++
		} else {
			qs.ScoreEarned = -q.NegativeMarks
			breakdown.Summary.Incorrect++
		}
		rawScore += qs.ScoreEarned
		breakdown.Questions = append(breakdown.Questions, qs)
	}

	if test.TotalMarks > 0 {
		maxScore = test.TotalMarks
	}

	total := rawScore
	if policy.FloorTotalAtZero && total < 0 {
		total = 0
	}

	breakdown.RawScore = rawScore
	breakdown.TotalScore = total
	breakdown.MaxScore = maxScore
	if maxScore > 0 {
		breakdown.Percentage = round2(total / maxScore * 100)
	}
	return breakdown
}

// Equal reports whether two breakdowns are identical. Submitting twice must
// yield the same breakdown, so a mismatch indicates a grading invariant
// violation upstream.
func Equal(a, b model.ScoreBreakdown) bool {
	return reflect.DeepEqual(a, b)
}

func isCorrect(q *model.Question, v model.AnswerValue) bool {
	switch q.Type {
	case model.QuestionTypeSingleChoice, model.QuestionTypeTrueFalse:
		return v.Kind == model.AnswerKindSingle &&
			q.CorrectKey.Index != nil && v.Index == *q.CorrectKey.Index

	case model.QuestionTypeMultiChoice:
		// Exact set equality. Subsets and supersets score as wrong; partial
		// credit is never awarded.
		if v.Kind != model.AnswerKindMulti {
			return false
		}
		return equalIndexSets(v.Indexes, q.CorrectKey.Indexes)

	case model.QuestionTypeNumerical:
		if v.Kind != model.AnswerKindNumeric {
			return false
		}
		return numericMatch(q.CorrectKey, v.Numeric)

	default:
		return false
	}
}

func equalIndexSets(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]int(nil), a...)
	bs := append([]int(nil), b...)
	sort.Ints(as)
	sort.Ints(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

// numericMatch compares the student's value against the key. A tolerance only
// applies when the key itself encodes one; otherwise the match is exact on the
// parsed values, falling back to trimmed string equality when the key is not
// parseable as a number.
func numericMatch(key model.AnswerKey, given string) bool {
	want, errW := strconv.ParseFloat(strings.TrimSpace(key.Value), 64)
	got, errG := strconv.ParseFloat(strings.TrimSpace(given), 64)
	if errW != nil || errG != nil {
		return strings.TrimSpace(key.Value) == strings.TrimSpace(given)
	}
	if key.Tolerance != nil {
		return math.Abs(got-want) <= *key.Tolerance
	}
	return got == want
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
