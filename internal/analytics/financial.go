/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package analytics

import "github.com/GojoViv/ai.service.suvi.main/internal/domain"

type AssigneeHours struct {
	Assignee string
	Hours    float64
}

// ProjectHours is one project section of the financial report.
type ProjectHours struct {
	ProjectTag string
	Total      float64
	Assignees  []AssigneeHours
	// Empty marks a project without tasks; it is still reported.
	Empty bool
}

// FinancialHours sums story points, read as hours, per assignee over all tasks of a
// project, largest first.
func FinancialHours(projectTag string, tasks []domain.Task) ProjectHours {
	ph := ProjectHours{ProjectTag: projectTag, Empty: len(tasks) == 0}
	t := newTally()
	for _, task := range tasks {
		h := task.Points()
		t.add(assigneeName(task.Assignee), h)
		ph.Total += h
	}
	for _, r := range t.ranked() {
		ph.Assignees = append(ph.Assignees, AssigneeHours{Assignee: r.Name, Hours: r.Value})
	}
	return ph
}
