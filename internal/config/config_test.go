package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoProjects = `
projects:
  - tag: alpha
    name: Alpha
    active: true
    channel: C1
    boards: {tasks: t1, sprints: s1, epics: e1}
  - tag: beta
    active: false
    boards: {tasks: t2, sprints: s2, epics: e2, prd: p2}
`

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_TZ", "UTC")
	t.Setenv("REPORT_CHANNEL", "C-default")
	t.Setenv("FINANCE_CHANNEL", "C-fin")
	t.Setenv("RECONCILE_BATCH_SIZE", "-3")
	cfg := Load()
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, "0 * * * *", cfg.CronReconcile)
	assert.Equal(t, "0 9 * * 1-5", cfg.CronDaily)
	assert.Equal(t, "C-default", cfg.LeaderboardChannel)
	assert.Equal(t, "C-fin", cfg.FinanceChannel)
	assert.Equal(t, "C-default", cfg.ErrorChannel)
	assert.False(t, cfg.MetricsOnePerDay)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_TZ", "UTC")
	t.Setenv("METRICS_ONE_PER_DAY", "true")
	t.Setenv("JOB_TIMEOUT", "2m")
	t.Setenv("DESCRIPTION_WORKERS", "4")
	t.Setenv("NOTIFIER", "Telegram")
	cfg := Load()
	assert.True(t, cfg.MetricsOnePerDay)
	assert.Equal(t, 2*time.Minute, cfg.JobTimeout)
	assert.Equal(t, 4, cfg.DescriptionWorkers)
	assert.Equal(t, "telegram", cfg.Notifier)
}

func TestParseProjects(t *testing.T) {
	ps, err := ParseProjects([]byte(twoProjects))
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, "alpha", ps[0].Tag)
	assert.Equal(t, "t1", ps[0].Boards.Tasks)
	assert.Equal(t, "p2", ps[1].Boards.PRD)
	assert.Equal(t, "beta", ps[1].DisplayName())

	_, err = ParseProjects([]byte("projects:\n  - name: x\n"))
	assert.Error(t, err)

	_, err = ParseProjects([]byte("projects:\n  - tag: a\n  - tag: a\n"))
	assert.ErrorContains(t, err, "duplicate")
}

func TestProjectRegistry_Active(t *testing.T) {
	ps, err := ParseProjects([]byte(twoProjects))
	require.NoError(t, err)
	r := StaticRegistry(ps)

	active := r.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "alpha", active[0].Tag)
	assert.Empty(t, r.Active("beta"))

	p, ok := r.Get("beta")
	assert.True(t, ok)
	assert.False(t, p.Active)
}

func TestProjectRegistry_WatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "projects.yaml")
	require.NoError(t, os.WriteFile(path, []byte(twoProjects), 0o644))

	r, err := NewProjectRegistry(path, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, r.Active(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Watch(ctx) }()
	// let the watcher register before writing
	time.Sleep(100 * time.Millisecond)

	updated := `
projects:
  - tag: alpha
    active: true
    boards: {tasks: t1, sprints: s1, epics: e1}
  - tag: beta
    active: true
    boards: {tasks: t2, sprints: s2, epics: e2}
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	require.Eventually(t, func() bool { return len(r.Active()) == 2 }, 3*time.Second, 20*time.Millisecond)

	// a broken file keeps the last good list
	require.NoError(t, os.WriteFile(path, []byte("projects: ["), 0o644))
	time.Sleep(200 * time.Millisecond)
	assert.Len(t, r.Active(), 2)

	cancel()
	require.NoError(t, <-done)
}

func TestLoad_ReviewStatuses(t *testing.T) {
	t.Setenv("APP_TZ", "UTC")
	assert.Equal(t, []string{"QA Review", "Code Review"}, Load().ReviewStatuses)
	t.Setenv("REVIEW_STATUSES", " Design Review , ,QA Review")
	assert.Equal(t, []string{"Design Review", "QA Review"}, Load().ReviewStatuses)
}
