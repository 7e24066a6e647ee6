package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GojoViv/ai.service.suvi.main/internal/domain"
)

func detail(assignee string, points float64) domain.TaskDetail {
	d := domain.TaskDetail{TaskName: "t", StoryPoints: points}
	if assignee != "" {
		d.Assignee = &domain.Person{Name: assignee}
	}
	return d
}

func entry(groups ...domain.StatusBreakdown) domain.DailyMetrics {
	return domain.DailyMetrics{TasksByStatus: groups}
}

func group(status string, tasks ...domain.TaskDetail) domain.StatusBreakdown {
	return domain.StatusBreakdown{Status: status, Count: len(tasks), Tasks: tasks}
}

func TestTopPerformers_StableTieBreak(t *testing.T) {
	entries := []domain.DailyMetrics{entry(
		group(domain.StatusDone, detail("A", 10), detail("B", 10), detail("C", 5)),
		group(domain.StatusQAReview, detail("D", 20)),
		group(domain.StatusInProgress, detail("C", 100)),
	)}
	got := TopPerformers(entries, 3)
	assert.Equal(t, []Ranked{{"D", 20}, {"A", 10}, {"B", 10}}, got)
}

func TestTopPerformers_AcrossSprints(t *testing.T) {
	entries := []domain.DailyMetrics{
		entry(group(domain.StatusDone, detail("A", 3))),
		entry(group(domain.StatusQAReview, detail("A", 2), detail("", 8))),
	}
	assert.Equal(t, []Ranked{{"Unassigned", 8}, {"A", 5}}, TopPerformers(entries, 3))
}

func TestPointsByAssigneeStatus(t *testing.T) {
	entries := []domain.DailyMetrics{
		entry(group(domain.StatusDone, detail("A", 3)), group(domain.StatusInProgress, detail("A", 2), detail("B", 1))),
		entry(group(domain.StatusDone, detail("A", 4))),
	}
	got := PointsByAssigneeStatus(entries)
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].Assignee)
	assert.Equal(t, []StatusPoints{{domain.StatusDone, 7}, {domain.StatusInProgress, 2}}, got[0].Statuses)
	assert.Equal(t, 9.0, got[0].Total)
	assert.Equal(t, "B", got[1].Assignee)
	assert.Equal(t, 1.0, got[1].Total)
}

func TestLatestEntries_NonDestructive(t *testing.T) {
	analyses := []domain.SprintAnalysis{
		{DailyMetrics: []domain.DailyMetrics{{TotalTasks: 1}, {TotalTasks: 2}}},
		{},
		{DailyMetrics: []domain.DailyMetrics{{TotalTasks: 9}}},
	}
	got := LatestEntries(analyses)
	assert.Equal(t, []int{2, 9}, []int{got[0].TotalTasks, got[1].TotalTasks})
	assert.Len(t, analyses[0].DailyMetrics, 2)

	again := LatestEntries(analyses)
	assert.Equal(t, got, again)
}

func TestBugCreators(t *testing.T) {
	perProject := [][]domain.Task{
		{task("1", "Open", "Bug", "1", "A"), task("2", "Open", "Bug", "1", "B"), task("3", "Open", "Task", "1", "C")},
		{task("4", "Open", "Bug", "1", "B"), task("5", "Open", "Bug", "1", ""), task("6", "Open", "Bug", "1", "D"), task("7", "Open", "Bug", "1", "E")},
	}
	got := BugCreators(perProject)
	assert.Equal(t, []Ranked{{"B", 2}, {"A", 1}, {"Unassigned", 1}, {"D", 1}, {"E", 1}}, got)
}

func TestFinancialHours(t *testing.T) {
	ph := FinancialHours("kp", []domain.Task{
		task("1", "Done", "Task", "3", "A"),
		task("2", "Open", "Task", "8", "B"),
		task("3", "Open", "Task", "n/a", "A"),
		task("4", "Open", "Task", "2", "A"),
	})
	assert.False(t, ph.Empty)
	assert.Equal(t, 13.0, ph.Total)
	assert.Equal(t, []AssigneeHours{{"B", 8}, {"A", 5}}, ph.Assignees)
}

func TestFinancialHours_NoTasks(t *testing.T) {
	ph := FinancialHours("empty", nil)
	assert.True(t, ph.Empty)
	assert.Zero(t, ph.Total)
	assert.Empty(t, ph.Assignees)
}
