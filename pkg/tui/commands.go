package tui

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/billm/baaaht/webbridge/pkg/types"
)

// ActionKind is an operator command typed into the console.
type ActionKind string

const (
	ActionHelp        ActionKind = "help"
	ActionFullscreen  ActionKind = "fullscreen"
	ActionMinimize    ActionKind = "minimize"
	ActionMaximize    ActionKind = "maximize"
	ActionClose       ActionKind = "close"
	ActionDrag        ActionKind = "drag"
	ActionDoubleClick ActionKind = "dblclick"
	ActionTouch       ActionKind = "touch"
	ActionOpen        ActionKind = "open"
	ActionScript      ActionKind = "script"
	ActionBroadcast   ActionKind = "broadcast"
	ActionClear       ActionKind = "clear"
	ActionStats       ActionKind = "stats"
)

// Action is a parsed console command
type Action struct {
	Kind ActionKind
	Args []string
	Text string
}

var actionHelp = []struct {
	usage string
	desc  string
}{
	{"/fullscreen", "toggle fullscreen from the selected page"},
	{"/minimize", "minimize the selected window"},
	{"/maximize", "toggle maximize on the selected window"},
	{"/close", "close the selected window"},
	{"/drag", "press the primary button on the drag region"},
	{"/dblclick", "double-click the drag region"},
	{"/touch", "touch the drag region"},
	{"/open [url] [title]", "ask the host for a new window"},
	{"/script <text>", "send text to the script runtime"},
	{"/broadcast <text>", "deliver text to every page"},
	{"/stats", "show dispatcher statistics"},
	{"/clear", "clear the log"},
}

// HelpText lists the console commands
func HelpText() string {
	var sb strings.Builder
	sb.WriteString("commands (plain text goes to the script):")
	for _, h := range actionHelp {
		fmt.Fprintf(&sb, "\n  %-20s %s", h.usage, h.desc)
	}
	return sb.String()
}

// CommandNames returns every console command with its leading slash
func CommandNames() []string {
	names := []string{"/help"}
	for _, h := range actionHelp {
		name, _, _ := strings.Cut(h.usage, " ")
		names = append(names, name)
	}
	return names
}

// ParseAction parses a line typed into the console. Lines not starting
// with '/' are sent to the script runtime.
func ParseAction(line string) (Action, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Action{}, types.NewError(types.ErrCodeInvalidArgument, "empty command")
	}
	if !strings.HasPrefix(line, "/") {
		return Action{Kind: ActionScript, Text: line}, nil
	}

	name, rest, _ := strings.Cut(line[1:], " ")
	rest = strings.TrimSpace(rest)
	action := Action{Kind: ActionKind(strings.ToLower(name)), Text: rest}
	if rest != "" {
		action.Args = strings.Fields(rest)
	}

	switch action.Kind {
	case ActionHelp, ActionFullscreen, ActionMinimize, ActionMaximize, ActionClose,
		ActionDrag, ActionDoubleClick, ActionTouch, ActionClear, ActionStats:
		return action, nil
	case ActionOpen:
		if len(action.Args) > 2 {
			// titles may contain spaces
			action.Args = []string{action.Args[0], strings.TrimSpace(strings.TrimPrefix(rest, action.Args[0]))}
		}
		return action, nil
	case ActionScript, ActionBroadcast:
		if rest == "" {
			return Action{}, types.NewError(types.ErrCodeInvalidArgument, "/"+name+" needs a message")
		}
		return action, nil
	default:
		msg := "unknown command: /" + name
		if guess := closestCommand("/" + strings.ToLower(name)); guess != "" {
			msg += " (did you mean " + guess + "?)"
		}
		return Action{}, types.NewError(types.ErrCodeInvalidArgument, msg)
	}
}

// maxSuggestDistance is the largest edit distance still worth suggesting
const maxSuggestDistance = 2

// closestCommand returns the command nearest to name, or "" when none is
// within maxSuggestDistance edits
func closestCommand(name string) string {
	best, bestDist := "", maxSuggestDistance+1
	for _, c := range CommandNames() {
		if d := levenshtein.ComputeDistance(name, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
