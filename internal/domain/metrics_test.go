package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSprintAnalysisLatest_DoesNotMutate(t *testing.T) {
	a := SprintAnalysis{DailyMetrics: []DailyMetrics{{TotalTasks: 1}, {TotalTasks: 2}}}
	for i := 0; i < 3; i++ {
		m, ok := a.Latest()
		require.True(t, ok)
		assert.Equal(t, 2, m.TotalTasks)
	}
	assert.Len(t, a.DailyMetrics, 2)

	_, ok := SprintAnalysis{}.Latest()
	assert.False(t, ok)
}

func TestSprintStart(t *testing.T) {
	s := Sprint{StartDate: DateRange{Start: "2024-05-06", TimeZone: "UTC"}}
	st, ok := s.Start(time.UTC)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), st)

	s = Sprint{Dates: DateRange{Start: "2024-05-06T10:00:00.000+02:00"}}
	st, ok = s.Start(time.UTC)
	require.True(t, ok)
	assert.Equal(t, 8, st.UTC().Hour())

	_, ok = Sprint{}.Start(time.UTC)
	assert.False(t, ok)
}

func TestPersonDisplayName(t *testing.T) {
	var p *Person
	assert.Equal(t, "", p.DisplayName())
	assert.Equal(t, "u1", (&Person{ID: "u1"}).DisplayName())
	assert.Equal(t, "Ada", (&Person{ID: "u1", Name: "Ada"}).DisplayName())
}
