package window

import (
	"sync"
	"testing"

	"github.com/billm/baaaht/webbridge/internal/config"
	"github.com/billm/baaaht/webbridge/internal/logger"
	"github.com/billm/baaaht/webbridge/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPoster struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingPoster) Send(payload string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, payload)
}

func (r *recordingPoster) payloads() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

func newTestController() (*Controller, *recordingPoster) {
	p := &recordingPoster{}
	return NewController(p, config.DefaultWindowConfig(), logger.NewNop()), p
}

func TestControllerCommands(t *testing.T) {
	tests := []struct {
		name string
		call func(*Controller)
		want string
	}{
		{"create", func(c *Controller) { c.Create("https://x", "T") }, "window:https://x,T"},
		{"minimize", (*Controller).Minimize, "minimize"},
		{"maximize", (*Controller).Maximize, "maximize"},
		{"close", (*Controller).Close, "close"},
		{"send to script", func(c *Controller) { c.SendToScript("ping") }, "deno:ping"},
		{"fullscreen", (*Controller).Fullscreen, "fullscreen"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, p := newTestController()
			tt.call(c)
			assert.Equal(t, []string{tt.want}, p.payloads())
		})
	}
}

func TestFullscreenTogglesAndNotifies(t *testing.T) {
	c, p := newTestController()

	var notified []bool
	c.OnFullscreen(func(on bool) { notified = append(notified, on) })

	assert.False(t, c.IsFullscreen())
	for i := 1; i <= 4; i++ {
		c.Fullscreen()
		assert.Equal(t, i%2 == 1, c.IsFullscreen(), "after %d calls", i)
	}

	assert.Equal(t, []bool{true, false, true, false}, notified)
	assert.Equal(t, []string{"fullscreen", "fullscreen", "fullscreen", "fullscreen"}, p.payloads())
}

func TestOnMessageUnsubscribe(t *testing.T) {
	c, _ := newTestController()

	var got []string
	unsubL1 := c.OnMessage(func(m string) { got = append(got, "L1:"+m) })
	c.OnMessage(func(m string) { got = append(got, "L2:"+m) })

	c.TriggerMessage("hello")
	assert.Equal(t, []string{"L1:hello", "L2:hello"}, got)

	require.True(t, unsubL1())
	require.False(t, unsubL1())

	c.TriggerMessage("again")
	assert.Equal(t, []string{"L1:hello", "L2:hello", "L2:again"}, got)
}

func TestTriggerMessageSurvivesListenerPanic(t *testing.T) {
	c, _ := newTestController()

	var got []string
	c.OnMessage(func(string) { panic("page error") })
	c.OnMessage(func(m string) { got = append(got, m) })

	c.TriggerMessage("hello")
	assert.Equal(t, []string{"hello"}, got)
}

func TestPointerDownOnDragRegion(t *testing.T) {
	region := NewElement("title", "drag-region")

	tests := []struct {
		name  string
		event PointerEvent
		want  []string
		cmd   protocol.Command
	}{
		{"single press drags", PointerEvent{Buttons: 1, Detail: 1, Target: region}, []string{"drag_window"}, protocol.DragWindow{}},
		{"double click maximizes", PointerEvent{Buttons: 1, Detail: 2, Target: region}, []string{"maximize"}, protocol.Maximize{}},
		{"triple click drags", PointerEvent{Buttons: 1, Detail: 3, Target: region}, []string{"drag_window"}, protocol.DragWindow{}},
		{"secondary button ignored", PointerEvent{Buttons: 2, Detail: 1, Target: region}, nil, nil},
		{"chorded buttons ignored", PointerEvent{Buttons: 3, Detail: 2, Target: region}, nil, nil},
		{"outside region ignored", PointerEvent{Buttons: 1, Detail: 2, Target: NewElement("content")}, nil, nil},
		{"no target ignored", PointerEvent{Buttons: 1, Detail: 1}, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, p := newTestController()
			assert.Equal(t, tt.cmd, c.HandlePointerDown(tt.event))
			assert.Equal(t, tt.want, p.payloads())
		})
	}
}

func TestTouchStartOnDragRegion(t *testing.T) {
	region := NewElement("drag-region")

	c, p := newTestController()
	assert.Equal(t, protocol.DragWindow{}, c.HandleTouchStart(TouchEvent{Target: region}))
	assert.Equal(t, []string{"drag_window"}, p.payloads())

	assert.Nil(t, c.HandleTouchStart(TouchEvent{Target: NewElement("other")}))
	assert.Len(t, p.payloads(), 1)

	c.Fullscreen()
	assert.Nil(t, c.HandleTouchStart(TouchEvent{Target: region}))
	assert.Equal(t, []string{"drag_window", "fullscreen"}, p.payloads())
}

func TestCustomDragRegionClass(t *testing.T) {
	p := &recordingPoster{}
	cfg := config.DefaultWindowConfig()
	cfg.DragRegionClass = "titlebar"
	c := NewController(p, cfg, logger.NewNop())

	assert.Nil(t, c.HandlePointerDown(PointerEvent{Buttons: 1, Detail: 1, Target: NewElement("drag-region")}))
	assert.NotNil(t, c.HandlePointerDown(PointerEvent{Buttons: 1, Detail: 1, Target: NewElement("titlebar")}))
	assert.Equal(t, []string{"drag_window"}, p.payloads())
}

func TestElementClassList(t *testing.T) {
	e := &Element{ClassName: "  a   b\tc "}
	assert.Equal(t, []string{"a", "b", "c"}, e.ClassList())
	assert.True(t, e.HasClass("b"))
	assert.False(t, e.HasClass("d"))

	var missing *Element
	assert.False(t, missing.HasClass("a"))
}
