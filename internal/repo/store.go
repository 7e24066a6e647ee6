/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package repo

import (
	"errors"
	"time"

	"github.com/GojoViv/ai.service.suvi.main/internal/domain"
)

var ErrNotFound = errors.New("not found")

type TaskFilter struct {
	ProjectTag string
	SprintID   string
	IDs        []string
	Statuses   []string
	// StaleDescription selects tasks with an empty description or a non-Done status.
	StaleDescription bool
}

func (f TaskFilter) match(t domain.Task) bool {
	if f.ProjectTag != "" && t.ProjectTag != f.ProjectTag {
		return false
	}
	if f.SprintID != "" && t.SprintRef != f.SprintID {
		return false
	}
	if len(f.IDs) > 0 && !contains(f.IDs, t.TaskID) {
		return false
	}
	if len(f.Statuses) > 0 && !contains(f.Statuses, t.Status.Name) {
		return false
	}
	if f.StaleDescription && t.Description != "" && t.IsDone() {
		return false
	}
	return true
}

type SprintFilter struct {
	ProjectTag  string
	IDs         []string
	CurrentOnly bool
}

func (f SprintFilter) match(s domain.Sprint) bool {
	if f.ProjectTag != "" && s.ProjectTag != f.ProjectTag {
		return false
	}
	if len(f.IDs) > 0 && !contains(f.IDs, s.SprintID) {
		return false
	}
	if f.CurrentOnly && !s.IsCurrent() {
		return false
	}
	return true
}

type EpicFilter struct {
	ProjectTag string
	IDs        []string
}

func (f EpicFilter) match(e domain.Epic) bool {
	if f.ProjectTag != "" && e.ProjectTag != f.ProjectTag {
		return false
	}
	if len(f.IDs) > 0 && !contains(f.IDs, e.EpicID) {
		return false
	}
	return true
}

// DescriptionUpdate is one entry of the maintenance bulk write.
type DescriptionUpdate struct {
	TaskID      string
	Description string
	AISummary   string
	Meta        domain.DescriptionMeta
}

type LastRun struct {
	RunID      string     `json:"run_id"`
	Job        string     `json:"job"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	Success    bool       `json:"success"`
	Error      string     `json:"error"`
	Summary    string     `json:"summary"`
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
