/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/GojoViv/ai.service.suvi.main/internal/analytics"
	"github.com/GojoViv/ai.service.suvi.main/internal/domain"
)

const (
	shortDate = "Jan 2"
	longDate  = "Jan 2, 2006"
)

var medals = []string{"🥇", "🥈", "🥉"}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func nameOf(p *domain.Person) string {
	if n := p.DisplayName(); n != "" {
		return n
	}
	return "Unassigned"
}

// SprintTitle is the root message of the daily sprint thread.
func SprintTitle(sprintName string, m domain.DailyMetrics, now time.Time) string {
	return fmt.Sprintf("Sprint: %s - %.1f%% Complete (%s) - %s",
		sprintName, analytics.CompletionRate(m.CompletedTasks, m.TotalTasks), m.SprintHealth, now.Format(shortDate))
}

type progress struct {
	name                   string
	done, doing, qa        []domain.TaskDetail
	total, completedPoints float64
}

// ProgressReport renders the per-assignee body of the daily sprint thread.
func ProgressReport(m domain.DailyMetrics) string {
	var (
		order []string
		by    = map[string]*progress{}
	)
	for _, g := range m.TasksByStatus {
		for _, d := range g.Tasks {
			name := nameOf(d.Assignee)
			p, ok := by[name]
			if !ok {
				p = &progress{name: name}
				by[name] = p
				order = append(order, name)
			}
			switch g.Status {
			case domain.StatusDone:
				p.done = append(p.done, d)
				p.completedPoints += d.StoryPoints
			case domain.StatusInProgress:
				p.doing = append(p.doing, d)
			case domain.StatusQAReview:
				p.qa = append(p.qa, d)
			}
			p.total += d.StoryPoints
		}
	}

	var b strings.Builder
	b.WriteString("📊 Sprint Progress Report\n\n")
	for _, name := range order {
		p := by[name]
		fmt.Fprintf(&b, "👤 %s:\n", p.name)
		fmt.Fprintf(&b, "   ✅ Completed: %d tasks (%s story points)\n", len(p.done), num(p.completedPoints))
		if len(p.doing) > 0 {
			fmt.Fprintf(&b, "   🏃 In Progress: %d tasks\n", len(p.doing))
		}
		if len(p.qa) > 0 {
			fmt.Fprintf(&b, "   🔍 In QA Review: %d tasks\n", len(p.qa))
		}
		fmt.Fprintf(&b, "   📈 Total Story Points Assigned: %s\n", num(p.total))
		taskList(&b, "Completed Tasks", p.done)
		taskList(&b, "In Progress Tasks", p.doing)
		taskList(&b, "Tasks in QA Review", p.qa)
		b.WriteString("\n")
	}

	b.WriteString("\n📈 Overall Sprint Progress:\n")
	fmt.Fprintf(&b, "• Total Tasks: %d\n", m.TotalTasks)
	fmt.Fprintf(&b, "• Completed Tasks: %d\n", m.CompletedTasks)
	fmt.Fprintf(&b, "• Story Points Completed: %s\n", num(m.StoryPointsCompleted.Total))
	fmt.Fprintf(&b, "• Story Points Remaining: %s\n", num(m.StoryPointsRemaining.Total))
	fmt.Fprintf(&b, "• Completion Rate: %.1f%%\n", m.EstimatedCompletionRate)
	fmt.Fprintf(&b, "• Sprint Health: %s\n", m.SprintHealth)
	if len(m.Bottlenecks) > 0 {
		b.WriteString("• Bottlenecks:")
		for i, g := range m.Bottlenecks {
			sep := ","
			if i == 0 {
				sep = ""
			}
			fmt.Fprintf(&b, "%s %s (%d)", sep, g.Status, g.Count)
		}
		b.WriteString("\n")
	}
	if m.QARejections > 0 {
		fmt.Fprintf(&b, "• QA Rejections: %d\n", m.QARejections)
	}
	return b.String()
}

func taskList(b *strings.Builder, heading string, tasks []domain.TaskDetail) {
	if len(tasks) == 0 {
		return
	}
	fmt.Fprintf(b, "\n   %s:\n", heading)
	for _, t := range tasks {
		fmt.Fprintf(b, "   • %s (%s points)\n", t.TaskName, num(t.StoryPoints))
	}
}

func QATitle(project string, q analytics.QAReport, now time.Time) string {
	return fmt.Sprintf("🔍 QA Status - %s (%d tickets awaiting review) - %s", project, len(q.Review), now.Format(shortDate))
}

func QABody(q analytics.QAReport) string {
	var b strings.Builder
	if len(q.Review) > 0 {
		b.WriteString("*Tasks Pending QA Review:*\n")
		for _, t := range q.Review {
			points := t.StoryPoints.Name
			if points == "" {
				points = "0"
			}
			fmt.Fprintf(&b, "• *%s* (%s pts) - %s\n", t.Name, points, nameOf(t.Assignee))
		}
	}
	if len(q.Rejected) > 0 {
		b.WriteString("\n*Tasks Needing Fixes:*\n")
		for _, t := range q.Rejected {
			fmt.Fprintf(&b, "• *%s* - %s\n", t.Name, nameOf(t.Assignee))
		}
	}
	b.WriteString("\n*Action Items:*\n")
	b.WriteString("• QA team: Please review pending tasks\n")
	b.WriteString("• Developers: Address QA feedback promptly\n")
	return b.String()
}

// PointsByAssignee renders the cross-project status snapshot.
func PointsByAssignee(list []analytics.AssigneePoints) string {
	var b strings.Builder
	b.WriteString("🌟 *Sprint Progress Snapshot - Across All Projects* 🌟\n\n")
	b.WriteString("🔍 *Story Points by Assignee and Status:*\n")
	for _, a := range list {
		fmt.Fprintf(&b, "\n🙋 *%s*\n", a.Assignee)
		width := 0
		for _, s := range a.Statuses {
			if n := len([]rune(s.Status)); n > width {
				width = n
			}
		}
		for _, s := range a.Statuses {
			fmt.Fprintf(&b, "   - 📌 *%-*s*: %s pts\n", width+2, s.Status, num(s.Points))
		}
		fmt.Fprintf(&b, "   - 🏁 *Total*: %s pts\n", num(a.Total))
	}
	b.WriteString("\n🚀 *Keep up the great work! Let's aim higher next week!*\n")
	return b.String()
}

func TopPerformers(list []analytics.Ranked) string {
	var b strings.Builder
	b.WriteString("🌟 *Top 3 Performers - QA Review & Done Story Points* 🌟\n\n")
	b.WriteString("🔥 Here's the leaderboard based on their contributions this sprint:\n")
	for i, r := range list {
		if i >= len(medals) {
			break
		}
		fmt.Fprintf(&b, "\n%s *%s*: %s pts", medals[i], r.Name, num(r.Value))
	}
	b.WriteString("\n\n🚀 *Fantastic work, everyone! Let's keep pushing forward!* 🎉")
	return b.String()
}

func BugCreators(list []analytics.Ranked) string {
	var b strings.Builder
	b.WriteString("🐞 *Bug Creators for Current Sprints* 🐞\n\n")
	b.WriteString("👾 Here's the leaderboard for bug creation this sprint:\n")
	for i, r := range list {
		medal := "⭐"
		if i < len(medals) {
			medal = medals[i]
		}
		fmt.Fprintf(&b, "\n%s *%s*: %s bugs", medal, r.Name, num(r.Value))
	}
	b.WriteString("\n\n*Keep tackling these bugs to make our projects even better!*")
	return b.String()
}

// Financial renders one section per project, in the given order.
func Financial(projects []analytics.ProjectHours, now time.Time) string {
	var b strings.Builder
	b.WriteString("📊 *Financial Analysis Summary*\n\n")
	for _, p := range projects {
		if p.Empty {
			fmt.Fprintf(&b, "*%s*: No tasks found\n\n", p.ProjectTag)
			continue
		}
		fmt.Fprintf(&b, "*💰 %s (%sh)*\n", p.ProjectTag, num(p.Total))
		for _, a := range p.Assignees {
			fmt.Fprintf(&b, "• %s: %sh\n", a.Assignee, num(a.Hours))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "_Generated on %s_", now.Format(longDate))
	return b.String()
}

// ErrorMessage is posted to the error channel when a scheduled report fails.
func ErrorMessage(title string, err error) string {
	return fmt.Sprintf("❌ *%s Error*\n%v", title, err)
}
