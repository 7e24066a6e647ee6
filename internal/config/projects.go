/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Boards holds the board (database) ids of one project.
type Boards struct {
	Tasks   string `yaml:"tasks"`
	Sprints string `yaml:"sprints"`
	Epics   string `yaml:"epics"`
	PRD     string `yaml:"prd,omitempty"`
}

type Project struct {
	Tag     string `yaml:"tag"`
	Name    string `yaml:"name"`
	ID      string `yaml:"id,omitempty"`
	Active  bool   `yaml:"active"`
	Channel string `yaml:"channel,omitempty"`
	Boards  Boards `yaml:"boards"`
}

// DisplayName is the project name, or its tag.
func (p Project) DisplayName() string {
	if strings.TrimSpace(p.Name) != "" {
		return p.Name
	}
	return p.Tag
}

type projectsFile struct {
	Projects []Project `yaml:"projects"`
}

// ParseProjects decodes and validates a projects document.
func ParseProjects(data []byte) ([]Project, error) {
	var f projectsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("projects: %w", err)
	}
	seen := map[string]bool{}
	for i, p := range f.Projects {
		tag := strings.TrimSpace(p.Tag)
		if tag == "" {
			return nil, fmt.Errorf("projects: entry %d has no tag", i)
		}
		if seen[tag] {
			return nil, fmt.Errorf("projects: duplicate tag %q", tag)
		}
		seen[tag] = true
		f.Projects[i].Tag = tag
	}
	return f.Projects, nil
}

func LoadProjects(path string) ([]Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseProjects(data)
}

// ProjectRegistry serves the current project list and reloads it when the file changes.
type ProjectRegistry struct {
	path string
	log  zerolog.Logger

	mu       sync.RWMutex
	projects []Project
}

func NewProjectRegistry(path string, log zerolog.Logger) (*ProjectRegistry, error) {
	ps, err := LoadProjects(path)
	if err != nil {
		return nil, err
	}
	return &ProjectRegistry{path: path, log: log, projects: ps}, nil
}

// StaticRegistry wraps a fixed list; Watch is a no-op for it.
func StaticRegistry(ps []Project) *ProjectRegistry {
	return &ProjectRegistry{projects: ps, log: zerolog.Nop()}
}

func (r *ProjectRegistry) All() []Project {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Project, len(r.projects))
	copy(out, r.projects)
	return out
}

// Active returns active projects, optionally restricted to tags.
func (r *ProjectRegistry) Active(tags ...string) []Project {
	want := map[string]bool{}
	for _, t := range tags {
		want[t] = true
	}
	var out []Project
	for _, p := range r.All() {
		if !p.Active {
			continue
		}
		if len(want) > 0 && !want[p.Tag] {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (r *ProjectRegistry) Get(tag string) (Project, bool) {
	for _, p := range r.All() {
		if p.Tag == tag {
			return p, true
		}
	}
	return Project{}, false
}

func (r *ProjectRegistry) reload() {
	ps, err := LoadProjects(r.path)
	if err != nil {
		// keep serving the last good list
		r.log.Error().Err(err).Str("path", r.path).Msg("projects: reload failed")
		return
	}
	r.mu.Lock()
	r.projects = ps
	r.mu.Unlock()
	r.log.Info().Int("projects", len(ps)).Msg("projects: reloaded")
}

// Watch reloads the file on change until ctx is done. The directory is watched so that
// editors replacing the file by rename are picked up.
func (r *ProjectRegistry) Watch(ctx context.Context) error {
	if r.path == "" {
		<-ctx.Done()
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(r.path)); err != nil {
		return err
	}
	target := filepath.Clean(r.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return errors.New("projects: watcher closed")
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				r.reload()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return errors.New("projects: watcher closed")
			}
			r.log.Error().Err(err).Msg("projects: watcher error")
		}
	}
}
