package domain

import (
	"fmt"
	"math"
)

// ScoreTask reduces one task's criterion results to a weighted score.
// Returns (score, status, passedCount). An empty slice is a failed task.
func ScoreTask(results []CriterionResult) (float64, TaskStatus, int) {
	if len(results) == 0 {
		return 0, TaskFailed, 0
	}

	var totalWeight, passedWeight float64
	passedCount := 0
	for _, r := range results {
		totalWeight += r.Weight
		if r.Passed {
			passedWeight += r.Weight
			passedCount++
		}
	}

	score := 0.0
	if totalWeight > 0 {
		score = passedWeight / totalWeight
	}

	status := TaskFailed
	switch {
	case score >= 1.0:
		status = TaskPassed
	case score > 0.0:
		status = TaskPartial
	}

	return score, status, passedCount
}

// ScoreOverall aggregates task results into the final grade.
// Returns (overallScore, percentage, grade, summary). Task scores average
// with equal weight; task-level weighting is not supported.
func ScoreOverall(tasks []TaskGradeResult) (float64, int, string, string) {
	if len(tasks) == 0 {
		return 0, 0, "N/A", "No tasks to grade"
	}

	var sum float64
	passedTasks := 0
	passedCriteria := 0
	totalCriteria := 0
	for _, t := range tasks {
		sum += t.Score
		if t.Status == TaskPassed {
			passedTasks++
		}
		passedCriteria += t.PassedCount
		totalCriteria += t.TotalCount
	}

	overall := sum / float64(len(tasks))
	percentage := int(math.Round(overall * 100))
	grade := GradeLabel(percentage)

	summary := fmt.Sprintf(
		"전체 점수: %d점 (%s) - 과제 %d/%d 완료, 기준 %d/%d 충족",
		percentage, grade, passedTasks, len(tasks), passedCriteria, totalCriteria,
	)

	return overall, percentage, grade, summary
}

// GradeLabel maps a percentage to its Korean grade band.
func GradeLabel(percentage int) string {
	switch {
	case percentage >= 90:
		return "우수"
	case percentage >= 75:
		return "양호"
	case percentage >= 60:
		return "보통"
	case percentage >= 40:
		return "미흡"
	}
	return "불합격"
}
