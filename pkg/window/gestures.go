package window

import (
	"slices"
	"strings"

	"github.com/billm/baaaht/webbridge/pkg/protocol"
)

// Element is the target of a DOM event
type Element struct {
	ClassName string
}

// NewElement returns an element carrying classes
func NewElement(classes ...string) *Element {
	return &Element{ClassName: strings.Join(classes, " ")}
}

// ClassList returns the element's classes
func (e *Element) ClassList() []string {
	if e == nil {
		return nil
	}
	return strings.Fields(e.ClassName)
}

// HasClass reports whether the element carries class name
func (e *Element) HasClass(name string) bool {
	return slices.Contains(e.ClassList(), name)
}

// PointerEvent is a mouse-down. Buttons is the pressed-button mask (1 is
// the primary button) and Detail the click count.
type PointerEvent struct {
	Buttons int
	Detail  int
	Target  *Element
}

// TouchEvent is a touch start
type TouchEvent struct {
	Target *Element
}

const primaryButton = 1

// HandlePointerDown applies the drag-region policy to a mouse-down and
// returns the command it posted, or nil. Only the target element itself is
// checked for the drag-region class.
func (c *Controller) HandlePointerDown(ev PointerEvent) protocol.Command {
	if !ev.Target.HasClass(c.dragClass) || ev.Buttons != primaryButton {
		return nil
	}
	if ev.Detail == 2 {
		c.Maximize()
		return protocol.Maximize{}
	}
	c.post(protocol.DragWindow{})
	return protocol.DragWindow{}
}

// HandleTouchStart starts a window drag from a drag region unless the
// window is fullscreen. It returns the command it posted, or nil.
func (c *Controller) HandleTouchStart(ev TouchEvent) protocol.Command {
	if !ev.Target.HasClass(c.dragClass) || c.IsFullscreen() {
		return nil
	}
	c.post(protocol.DragWindow{})
	return protocol.DragWindow{}
}
