package analytics

import (
	"fmt"
	"sort"

	"github.com/montanaflynn/stats"
	"github.com/prepboard/examengine/internal/model"
)

// Params are the aggregation policy knobs supplied by configuration.
type Params struct {
	PassThresholdPercent float64
}

const histogramBuckets = 10

const (
	DifficultyEasy    = "easy"
	DifficultyMedium  = "medium"
	DifficultyHard    = "hard"
	DifficultyUnrated = "unrated"
)

type Bucket struct {
	Label string  `json:"label"`
	From  float64 `json:"from"`
	To    float64 `json:"to"`
	Count int     `json:"count"`
}

type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// QuestionStat aggregates one question across all completed sessions.
// Unattempted answers are excluded from the success-rate denominator: a
// question answered by few students but answered correctly by all of them
// still reads as easy.
type QuestionStat struct {
	QuestionID  uint    `json:"question_id"`
	OrderInTest int     `json:"order_in_test"`
	Correct     int     `json:"correct"`
	Incorrect   int     `json:"incorrect"`
	Unattempted int     `json:"unattempted"`
	SuccessRate float64 `json:"success_rate"`
	Difficulty  string  `json:"difficulty"`
}

type Snapshot struct {
	TestID          uint           `json:"test_id"`
	Attempts        int            `json:"attempts"`
	UniqueStudents  int            `json:"unique_students"`
	PassCount       int            `json:"pass_count"`
	PassRatePercent float64        `json:"pass_rate_percent"`
	AverageScore    float64        `json:"average_score"`
	MinScore        float64        `json:"min_score"`
	MaxScore        float64        `json:"max_score"`
	Histogram       []Bucket       `json:"histogram"`
	AttemptsByDate  []DailyCount   `json:"attempts_by_date"`
	Questions       []QuestionStat `json:"questions"`
}

type Insights struct {
	TestID                 uint           `json:"test_id"`
	DifficultyDistribution map[string]int `json:"difficulty_distribution"`
	MostMissed             []QuestionStat `json:"most_missed"`
}

// BuildSnapshot aggregates all completed sessions of a test. It only reads
// terminal sessions, so running it concurrently with new completions is safe:
// a session either made the input set or it didn't. Sessions without a stored
// breakdown (mid-grading orphans awaiting recovery) are skipped.
func BuildSnapshot(test *model.Test, sessions []model.ExamSession, params Params) Snapshot {
	snap := Snapshot{
		TestID:    test.ID,
		Histogram: emptyHistogram(),
	}

	students := make(map[uint]struct{})
	byDate := make(map[string]int)
	scores := make([]float64, 0, len(sessions))

	type questionAgg struct {
		correct, incorrect, unattempted int
	}
	perQuestion := make(map[uint]*questionAgg, len(test.Questions))
	for _, q := range test.Questions {
		perQuestion[q.ID] = &questionAgg{}
	}

	for i := range sessions {
		session := &sessions[i]
		if session.Status != model.SessionStatusCompleted || session.Breakdown == nil {
			continue
		}

		snap.Attempts++
		students[session.StudentID] = struct{}{}
		scores = append(scores, session.Breakdown.TotalScore)

		if session.Breakdown.Percentage >= params.PassThresholdPercent {
			snap.PassCount++
		}
		bucketFor(snap.Histogram, session.Breakdown.Percentage).Count++

		if session.EndTime != nil {
			byDate[session.EndTime.UTC().Format("2006-01-02")]++
		}

		for _, qs := range session.Breakdown.Questions {
			agg, ok := perQuestion[qs.QuestionID]
			if !ok {
				continue
			}
			switch {
			case !qs.Attempted:
				agg.unattempted++
			case qs.IsCorrect:
				agg.correct++
			default:
				agg.incorrect++
			}
		}
	}

	snap.UniqueStudents = len(students)
	if snap.Attempts > 0 {
		snap.PassRatePercent = round2(float64(snap.PassCount) / float64(snap.Attempts) * 100)
	}
	if len(scores) > 0 {
		// Inputs are finite, so the stats errors cannot trigger.
		snap.AverageScore, _ = stats.Round(mustStat(stats.Mean(scores)), 2)
		snap.MinScore = mustStat(stats.Min(scores))
		snap.MaxScore = mustStat(stats.Max(scores))
	}

	for date, count := range byDate {
		snap.AttemptsByDate = append(snap.AttemptsByDate, DailyCount{Date: date, Count: count})
	}
	sort.Slice(snap.AttemptsByDate, func(i, j int) bool {
		return snap.AttemptsByDate[i].Date < snap.AttemptsByDate[j].Date
	})

	questions := append([]model.Question(nil), test.Questions...)
	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].OrderInTest < questions[j].OrderInTest
	})
	for _, q := range questions {
		agg := perQuestion[q.ID]
		stat := QuestionStat{
			QuestionID:  q.ID,
			OrderInTest: q.OrderInTest,
			Correct:     agg.correct,
			Incorrect:   agg.incorrect,
			Unattempted: agg.unattempted,
			Difficulty:  DifficultyUnrated,
		}
		if answered := agg.correct + agg.incorrect; answered > 0 {
			stat.SuccessRate = round2(float64(agg.correct) / float64(answered) * 100)
			stat.Difficulty = difficultyLabel(stat.SuccessRate)
		}
		snap.Questions = append(snap.Questions, stat)
	}

	return snap
}

// BuildInsights derives the difficulty distribution and the most-missed
// questions (lowest success rate among questions answered at least once).
func BuildInsights(snap Snapshot, topN int) Insights {
	ins := Insights{
		TestID:                 snap.TestID,
		DifficultyDistribution: map[string]int{},
	}

	answered := make([]QuestionStat, 0, len(snap.Questions))
	for _, q := range snap.Questions {
		ins.DifficultyDistribution[q.Difficulty]++
		if q.Correct+q.Incorrect > 0 {
			answered = append(answered, q)
		}
	}

	sort.SliceStable(answered, func(i, j int) bool {
		if answered[i].SuccessRate != answered[j].SuccessRate {
			return answered[i].SuccessRate < answered[j].SuccessRate
		}
		return answered[i].OrderInTest < answered[j].OrderInTest
	})
	if topN > 0 && len(answered) > topN {
		answered = answered[:topN]
	}
	ins.MostMissed = answered
	return ins
}

func difficultyLabel(successRatePercent float64) string {
	switch {
	case successRatePercent >= 70:
		return DifficultyEasy
	case successRatePercent >= 40:
		return DifficultyMedium
	default:
		return DifficultyHard
	}
}

func emptyHistogram() []Bucket {
	buckets := make([]Bucket, histogramBuckets)
	for i := range buckets {
		from := float64(i * 100 / histogramBuckets)
		to := float64((i + 1) * 100 / histogramBuckets)
		buckets[i] = Bucket{
			Label: bucketLabel(int(from), int(to)),
			From:  from,
			To:    to,
		}
	}
	return buckets
}

// bucketFor maps a score percentage onto its histogram bucket. Percentages
// below zero (negative marking) land in the first bucket, 100 in the last.
func bucketFor(buckets []Bucket, percentage float64) *Bucket {
	idx := int(percentage / (100 / histogramBuckets))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(buckets) {
		idx = len(buckets) - 1
	}
	return &buckets[idx]
}

func bucketLabel(from, to int) string {
	return fmt.Sprintf("%d-%d%%", from, to)
}

func round2(v float64) float64 {
	r, _ := stats.Round(v, 2)
	return r
}

func mustStat(v float64, _ error) float64 { return v }
