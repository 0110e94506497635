package tui

import (
	"github.com/billm/baaaht/webbridge/pkg/tui/styles"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// KeyMap defines keyboard shortcuts for the console.
type KeyMap struct {
	Quit         string
	Submit       string
	NextWindow   string
	PrevWindow   string
	ListWindows  string
	Cancel       string
	ScrollUp     string
	ScrollDown   string
	ScrollTop    string
	ScrollBottom string
	ClearLog     string
	Traffic      string
}

// DefaultKeyMap returns the default keybindings for the console.
// These bindings follow common CLI conventions:
// - ctrl+c/ctrl+x for quit (ctrl+x is safer than 'q' which can be typed in text)
// - ctrl+n/ctrl+p for next/previous window (like Emacs/Vim)
// - ctrl+l for showing the window list, ctrl+g for the traffic graph
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit:         "ctrl+x",
		Submit:       "enter",
		NextWindow:   "ctrl+n",
		PrevWindow:   "ctrl+p",
		ListWindows:  "ctrl+l",
		Cancel:       "esc",
		ScrollUp:     "up",
		ScrollDown:   "down",
		ScrollTop:    "home",
		ScrollBottom: "end",
		ClearLog:     "ctrl+k",
		Traffic:      "ctrl+g",
	}
}

// HelpEntry represents a single keybinding help entry.
type HelpEntry struct {
	Key   string
	Desc  string
	Style lipgloss.Style
}

// ShortHelp returns essential help entries for the footer.
func (k KeyMap) ShortHelp() []HelpEntry {
	return []HelpEntry{
		{Key: k.Submit, Desc: "Send", Style: styles.Styles.HelpKey},
		{Key: k.NextWindow, Desc: "Next", Style: styles.Styles.HelpKey},
		{Key: k.ListWindows, Desc: "Windows", Style: styles.Styles.HelpKey},
		{Key: k.Quit, Desc: "Quit", Style: styles.Styles.HelpKey},
	}
}

// FullHelp returns all help entries including navigation shortcuts.
func (k KeyMap) FullHelp() []HelpEntry {
	return append(k.ShortHelp(),
		HelpEntry{Key: k.PrevWindow, Desc: "Prev", Style: styles.Styles.HelpKey},
		HelpEntry{Key: k.Cancel, Desc: "Hide list", Style: styles.Styles.HelpKey},
		HelpEntry{Key: k.ClearLog, Desc: "Clear log", Style: styles.Styles.HelpKey},
		HelpEntry{Key: k.Traffic, Desc: "Traffic", Style: styles.Styles.HelpKey},
		HelpEntry{Key: k.ScrollUp, Desc: "Scroll up", Style: styles.Styles.HelpKey},
		HelpEntry{Key: k.ScrollDown, Desc: "Scroll down", Style: styles.Styles.HelpKey},
		HelpEntry{Key: k.ScrollTop, Desc: "Top", Style: styles.Styles.HelpKey},
		HelpEntry{Key: k.ScrollBottom, Desc: "Bottom", Style: styles.Styles.HelpKey},
	)
}

// IsQuitKey checks if the given key matches any quit keybinding.
func (k KeyMap) IsQuitKey(msg tea.KeyMsg) bool {
	s := msg.String()
	return s == "ctrl+c" || s == k.Quit
}
