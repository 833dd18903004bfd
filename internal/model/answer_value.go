package model

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/prepboard/examengine/internal/errs"
)

type AnswerKind string

const (
	AnswerKindNone    AnswerKind = "none"
	AnswerKindSingle  AnswerKind = "single"
	AnswerKindMulti   AnswerKind = "multi"
	AnswerKindNumeric AnswerKind = "numeric"
)

// AnswerValue is a tagged variant over the answer shapes a question can take:
// a single option index, an option index set, or a numeric string. Kind none
// means the student cleared or never gave an answer.
type AnswerValue struct {
	Kind    AnswerKind `json:"kind"`
	Index   int        `json:"index,omitempty"`
	Indexes []int      `json:"indexes,omitempty"`
	Numeric string     `json:"numeric,omitempty"`
}

func (v AnswerValue) Attempted() bool {
	switch v.Kind {
	case AnswerKindSingle:
		return true
	case AnswerKindMulti:
		return len(v.Indexes) > 0
	case AnswerKindNumeric:
		return strings.TrimSpace(v.Numeric) != ""
	default:
		return false
	}
}

// ParseAnswerValue validates a raw client value against the question's
// declared type. The accepted wire shapes are: null (clear), a number (option
// index for single_choice/true_false), an array of numbers (multiple_choice)
// and a string (numerical). Anything else is a validation error.
func ParseAnswerValue(q *Question, raw json.RawMessage) (AnswerValue, error) {
	trimmed := strings.TrimSpace(string(raw))
	if len(raw) == 0 || trimmed == "null" {
		return AnswerValue{Kind: AnswerKindNone}, nil
	}

	switch q.Type {
	case QuestionTypeSingleChoice, QuestionTypeTrueFalse:
		var idx int
		if err := json.Unmarshal(raw, &idx); err != nil {
			return AnswerValue{}, errs.Validation("question %d expects a single option index, got %s", q.ID, trimmed)
		}
		if idx < 0 || idx >= len(q.Options) {
			return AnswerValue{}, errs.Validation("option index %d out of range for question %d", idx, q.ID)
		}
		return AnswerValue{Kind: AnswerKindSingle, Index: idx}, nil

	case QuestionTypeMultiChoice:
		var idxs []int
		if err := json.Unmarshal(raw, &idxs); err != nil {
			return AnswerValue{}, errs.Validation("question %d expects an array of option indexes, got %s", q.ID, trimmed)
		}
		if len(idxs) == 0 {
			return AnswerValue{Kind: AnswerKindNone}, nil
		}
		seen := make(map[int]struct{}, len(idxs))
		for _, idx := range idxs {
			if idx < 0 || idx >= len(q.Options) {
				return AnswerValue{}, errs.Validation("option index %d out of range for question %d", idx, q.ID)
			}
			if _, dup := seen[idx]; dup {
				return AnswerValue{}, errs.Validation("duplicate option index %d for question %d", idx, q.ID)
			}
			seen[idx] = struct{}{}
		}
		sorted := append([]int(nil), idxs...)
		sort.Ints(sorted)
		return AnswerValue{Kind: AnswerKindMulti, Indexes: sorted}, nil

	case QuestionTypeNumerical:
		var num string
		if err := json.Unmarshal(raw, &num); err != nil {
			return AnswerValue{}, errs.Validation("question %d expects a numeric string, got %s", q.ID, trimmed)
		}
		num = strings.TrimSpace(num)
		if num == "" {
			return AnswerValue{Kind: AnswerKindNone}, nil
		}
		if _, err := strconv.ParseFloat(num, 64); err != nil {
			return AnswerValue{}, errs.Validation("value %q is not numeric for question %d", num, q.ID)
		}
		return AnswerValue{Kind: AnswerKindNumeric, Numeric: num}, nil

	default:
		return AnswerValue{}, errs.Validation("question %d has unknown type %q", q.ID, q.Type)
	}
}
