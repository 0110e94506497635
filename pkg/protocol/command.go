// Package protocol encodes window-control commands to and from the plain
// strings the host understands, e.g. "fullscreen" or
// "window:https://example.com,Title".
package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// Wire keywords and prefixes
const (
	KeywordFullscreen = "fullscreen"
	KeywordMinimize   = "minimize"
	KeywordMaximize   = "maximize"
	KeywordClose      = "close"
	KeywordDragWindow = "drag_window"

	PrefixWindow = "window:"
	PrefixScript = "deno:"
)

// ErrUnknownCommand is returned by Decode for strings that are not commands
var ErrUnknownCommand = errors.New("unknown command")

// Kind identifies a command variant
type Kind int

const (
	KindCreateWindow Kind = iota + 1
	KindFullscreen
	KindMinimize
	KindMaximize
	KindClose
	KindDragWindow
	KindScriptMessage
)

func (k Kind) String() string {
	switch k {
	case KindCreateWindow:
		return "create_window"
	case KindFullscreen:
		return KeywordFullscreen
	case KindMinimize:
		return KeywordMinimize
	case KindMaximize:
		return KeywordMaximize
	case KindClose:
		return KeywordClose
	case KindDragWindow:
		return KeywordDragWindow
	case KindScriptMessage:
		return "script_message"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Command is a message posted on the webview channel
type Command interface {
	Kind() Kind
	encode() string
}

// CreateWindow asks the host to open a window. Empty fields fall back to
// the host's defaults.
type CreateWindow struct {
	URL   string
	Title string
}

// Fullscreen toggles fullscreen on the posting window
type Fullscreen struct{}

// Minimize minimizes the posting window
type Minimize struct{}

// Maximize toggles maximized state on the posting window
type Maximize struct{}

// Close closes the posting window
type Close struct{}

// DragWindow starts a native window drag
type DragWindow struct{}

// ScriptMessage is a user message from the page for the script runtime
type ScriptMessage struct {
	Payload string
}

func (CreateWindow) Kind() Kind  { return KindCreateWindow }
func (Fullscreen) Kind() Kind    { return KindFullscreen }
func (Minimize) Kind() Kind      { return KindMinimize }
func (Maximize) Kind() Kind      { return KindMaximize }
func (Close) Kind() Kind         { return KindClose }
func (DragWindow) Kind() Kind    { return KindDragWindow }
func (ScriptMessage) Kind() Kind { return KindScriptMessage }

func (c CreateWindow) encode() string  { return PrefixWindow + c.URL + "," + c.Title }
func (Fullscreen) encode() string      { return KeywordFullscreen }
func (Minimize) encode() string        { return KeywordMinimize }
func (Maximize) encode() string        { return KeywordMaximize }
func (Close) encode() string           { return KeywordClose }
func (DragWindow) encode() string      { return KeywordDragWindow }
func (c ScriptMessage) encode() string { return PrefixScript + c.Payload }

// Encode returns the wire string for cmd
func Encode(cmd Command) string {
	return cmd.encode()
}

// Decode parses a wire string.
//
// For "window:" the arguments are split on commas: no argument leaves URL
// and Title empty, one sets the URL, and two or more take the first two
// fields. A title containing a comma is therefore cut at the comma.
func Decode(s string) (Command, error) {
	switch s {
	case KeywordFullscreen:
		return Fullscreen{}, nil
	case KeywordMinimize:
		return Minimize{}, nil
	case KeywordMaximize:
		return Maximize{}, nil
	case KeywordClose:
		return Close{}, nil
	case KeywordDragWindow:
		return DragWindow{}, nil
	}

	if rest, ok := strings.CutPrefix(s, PrefixScript); ok {
		return ScriptMessage{Payload: rest}, nil
	}

	if rest, ok := strings.CutPrefix(s, PrefixWindow); ok {
		if rest == "" {
			return CreateWindow{}, nil
		}
		args := strings.Split(rest, ",")
		cmd := CreateWindow{URL: args[0]}
		if len(args) > 1 {
			cmd.Title = args[1]
		}
		return cmd, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, s)
}
