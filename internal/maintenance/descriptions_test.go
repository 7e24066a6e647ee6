package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/GojoViv/ai.service.suvi.main/internal/domain"
	"github.com/GojoViv/ai.service.suvi.main/internal/repo"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakePages struct {
	content map[string]string
	panicOn string
	failOn  string
}

func (f *fakePages) PageContent(ctx context.Context, pageID string) (string, error) {
	if pageID == f.panicOn {
		panic("renderer crashed")
	}
	if pageID == f.failOn {
		return "", errors.New("404")
	}
	return f.content[pageID], nil
}

type fakeSummarizer struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeSummarizer) Enabled() bool { return true }

func (f *fakeSummarizer) SummarizeTask(ctx context.Context, title, description string, people []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, title)
	return "summary of " + title, nil
}

var fixed = time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)

func seed(t *testing.T, st *repo.Memory, ids []string, status string) {
	t.Helper()
	for _, id := range ids {
		task := domain.Task{TaskID: id, Name: "Task " + id, Status: domain.Option{Name: status}, ProjectTag: "kp"}
		_, err := st.UpsertTask(context.Background(), task, domain.ChangeLogEntry{Key: "k", At: fixed, Fields: task.Snapshot()})
		require.NoError(t, err)
	}
}

func TestRefresh_ShardFailureKeepsOthers(t *testing.T) {
	ctx := context.Background()
	st := repo.NewMemory()
	ids := []string{"t0", "t1", "t2", "t3"}
	seed(t, st, ids, domain.StatusInProgress)
	pages := &fakePages{content: map[string]string{}, panicOn: "t2"}
	for _, id := range ids {
		pages.content[id] = "body of " + id
	}

	n, err := NewDescriptionJob(st, pages, zerolog.Nop(), WithWorkers(4), WithClock(func() time.Time { return fixed })).
		RefreshStaleDescriptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	tasks, _ := st.FindTasks(ctx, repo.TaskFilter{})
	got := map[string]string{}
	for _, task := range tasks {
		got[task.TaskID] = task.Description
	}
	assert.Equal(t, map[string]string{"t0": "body of t0", "t1": "body of t1", "t2": "", "t3": "body of t3"}, got)
}

func TestRefresh_StampsMetadataAndSkipsUnchanged(t *testing.T) {
	ctx := context.Background()
	st := repo.NewMemory()
	seed(t, st, []string{"a", "b"}, domain.StatusInProgress)
	_, err := st.BulkUpdateDescriptions(ctx, []repo.DescriptionUpdate{{TaskID: "b", Description: "same", Meta: domain.DescriptionMeta{UpdatedAt: fixed}}})
	require.NoError(t, err)

	pages := &fakePages{content: map[string]string{"a": "héllo", "b": "same"}}
	n, err := NewDescriptionJob(st, pages, zerolog.Nop(), WithWorkers(2), WithClock(func() time.Time { return fixed })).
		RefreshStaleDescriptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	tasks, _ := st.FindTasks(ctx, repo.TaskFilter{IDs: []string{"a"}})
	require.Len(t, tasks, 1)
	require.NotNil(t, tasks[0].DescriptionMeta)
	assert.Equal(t, 5, tasks[0].DescriptionMeta.ContentLength)
	assert.Equal(t, "a", tasks[0].DescriptionMeta.PageID)
	assert.True(t, fixed.Equal(*tasks[0].LastDescriptionUpdate))
}

func TestRefresh_OnlyStaleCandidates(t *testing.T) {
	ctx := context.Background()
	st := repo.NewMemory()
	seed(t, st, []string{"open"}, domain.StatusInProgress)
	seed(t, st, []string{"done-empty", "done-full"}, domain.StatusDone)
	_, err := st.BulkUpdateDescriptions(ctx, []repo.DescriptionUpdate{{TaskID: "done-full", Description: "old"}})
	require.NoError(t, err)

	pages := &fakePages{content: map[string]string{"open": "x", "done-empty": "y", "done-full": "new"}}
	n, err := NewDescriptionJob(st, pages, zerolog.Nop()).RefreshStaleDescriptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	tasks, _ := st.FindTasks(ctx, repo.TaskFilter{IDs: []string{"done-full"}})
	assert.Equal(t, "old", tasks[0].Description)
}

func TestRefresh_PageErrorSkipsTaskOnly(t *testing.T) {
	ctx := context.Background()
	st := repo.NewMemory()
	seed(t, st, []string{"a", "b", "c"}, domain.StatusInProgress)
	pages := &fakePages{content: map[string]string{"a": "1", "b": "2", "c": "3"}, failOn: "b"}

	n, err := NewDescriptionJob(st, pages, zerolog.Nop(), WithWorkers(1)).RefreshStaleDescriptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRefresh_Summaries(t *testing.T) {
	ctx := context.Background()
	st := repo.NewMemory()
	seed(t, st, []string{"a"}, domain.StatusInProgress)
	sum := &fakeSummarizer{}
	pages := &fakePages{content: map[string]string{"a": "the body"}}

	_, err := NewDescriptionJob(st, pages, zerolog.Nop(), WithSummarizer(sum)).RefreshStaleDescriptions(ctx)
	require.NoError(t, err)
	tasks, _ := st.FindTasks(ctx, repo.TaskFilter{IDs: []string{"a"}})
	assert.Equal(t, "summary of Task a", tasks[0].AISummary)
	assert.Equal(t, []string{"Task a"}, sum.calls)
}

func TestRefresh_ManyTasksManyShards(t *testing.T) {
	ctx := context.Background()
	st := repo.NewMemory()
	var ids []string
	pages := &fakePages{content: map[string]string{}}
	for i := 0; i < 57; i++ {
		id := fmt.Sprintf("t%02d", i)
		ids = append(ids, id)
		pages.content[id] = "body " + id
	}
	seed(t, st, ids, domain.StatusInProgress)

	n, err := NewDescriptionJob(st, pages, zerolog.Nop(), WithWorkers(8)).RefreshStaleDescriptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 57, n)
}

func TestRefresh_NoCandidates(t *testing.T) {
	n, err := NewDescriptionJob(repo.NewMemory(), &fakePages{}, zerolog.Nop()).RefreshStaleDescriptions(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
