package components

import (
	"fmt"
	"time"

	tslc "github.com/NimbleMarkets/ntcharts/linechart/timeserieslinechart"
	"github.com/billm/baaaht/webbridge/pkg/tui/styles"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	defaultTrafficSpan = time.Minute
	minChartWidth      = 20
	minChartHeight     = 4
)

// TrafficPoint is the number of messages relayed in one second
type TrafficPoint struct {
	At    time.Time
	Count int
}

// TrafficModel charts relayed messages per second over a sliding span
type TrafficModel struct {
	span    time.Duration
	counts  map[int64]int
	total   int
	visible bool
	width   int
	height  int
	now     func() time.Time
}

// NewTrafficModel creates a chart covering span. Non-positive spans use
// one minute.
func NewTrafficModel(span time.Duration) TrafficModel {
	if span <= 0 {
		span = defaultTrafficSpan
	}
	return TrafficModel{
		span:   span,
		counts: make(map[int64]int),
		now:    time.Now,
	}
}

func (m TrafficModel) Init() tea.Cmd {
	return nil
}

func (m TrafficModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case TrafficToggleMsg:
		m.visible = !m.visible
	}
	return m, nil
}

// Record counts one message at t and forgets seconds older than the span
func (m *TrafficModel) Record(t time.Time) {
	m.counts[t.Unix()]++
	m.total++
	cutoff := t.Add(-m.span).Unix()
	for sec := range m.counts {
		if sec < cutoff {
			delete(m.counts, sec)
		}
	}
}

// Series returns one point per second of the span ending now, oldest first
func (m TrafficModel) Series() []TrafficPoint {
	end := m.now().Unix()
	start := end - int64(m.span/time.Second) + 1
	out := make([]TrafficPoint, 0, end-start+1)
	for sec := start; sec <= end; sec++ {
		out = append(out, TrafficPoint{At: time.Unix(sec, 0), Count: m.counts[sec]})
	}
	return out
}

// Total returns every message recorded since the console started
func (m TrafficModel) Total() int {
	return m.total
}

// IsVisible reports whether the chart is shown
func (m TrafficModel) IsVisible() bool {
	return m.visible
}

func (m TrafficModel) View() string {
	if !m.visible || m.width < minChartWidth || m.height < minChartHeight {
		return ""
	}

	series := m.Series()
	peak := 1
	for _, p := range series {
		peak = max(peak, p.Count)
	}

	// room for the border and the caption
	chart := tslc.New(m.width-2, m.height-3)
	chart.SetStyle(styles.Styles.TrafficLine)
	chart.AxisStyle = styles.Styles.TrafficAxis
	chart.LabelStyle = styles.Styles.TrafficAxis
	chart.SetTimeRange(series[0].At, series[len(series)-1].At)
	chart.SetViewTimeRange(series[0].At, series[len(series)-1].At)
	chart.SetYRange(0, float64(peak))
	chart.SetViewYRange(0, float64(peak))
	for _, p := range series {
		chart.Push(tslc.TimePoint{Time: p.At, Value: float64(p.Count)})
	}
	chart.DrawBraille()

	caption := styles.Styles.Muted.Render(fmt.Sprintf("messages/s, last %s (peak %d, total %d)", m.span, peak, m.total))
	return styles.Styles.TrafficBorder.Width(m.width - 2).Render(caption + "\n" + chart.View())
}

// TrafficToggleMsg shows or hides the chart
type TrafficToggleMsg struct{}
