package components

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrafficSeriesCountsPerSecond(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	m := NewTrafficModel(5 * time.Second)
	m.now = func() time.Time { return base.Add(4 * time.Second) }

	m.Record(base)
	m.Record(base.Add(2 * time.Second))
	m.Record(base.Add(2*time.Second + 300*time.Millisecond))
	m.Record(base.Add(4 * time.Second))

	series := m.Series()
	require.Len(t, series, 5)
	counts := make([]int, 0, len(series))
	for _, p := range series {
		counts = append(counts, p.Count)
	}
	assert.Equal(t, []int{1, 0, 2, 0, 1}, counts)
	assert.Equal(t, base, series[0].At)
	assert.Equal(t, 4, m.Total())
}

func TestTrafficForgetsOldSeconds(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	m := NewTrafficModel(2 * time.Second)
	m.Record(base)
	m.Record(base.Add(10 * time.Second))

	assert.Len(t, m.counts, 1)
	assert.Equal(t, 2, m.Total())
}

func TestTrafficToggleAndView(t *testing.T) {
	m := NewTrafficModel(0)
	assert.Equal(t, defaultTrafficSpan, m.span)
	assert.Empty(t, m.View())

	next, _ := m.Update(TrafficToggleMsg{})
	m = next.(TrafficModel)
	assert.True(t, m.IsVisible())
	assert.Empty(t, m.View(), "no size yet")

	next, _ = m.Update(tea.WindowSizeMsg{Width: 60, Height: 12})
	m = next.(TrafficModel)
	m.Record(time.Now())
	assert.Contains(t, m.View(), "messages/s")

	next, _ = m.Update(TrafficToggleMsg{})
	assert.False(t, next.(TrafficModel).IsVisible())
}
