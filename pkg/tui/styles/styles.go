package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles contains all Lipgloss style definitions for the console.
var Styles = &styleDefs{
	// General styles
	Title:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
	Normal: lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
	Muted:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")),

	// Status indicator styles
	StatusRunning: lipgloss.NewStyle().Foreground(lipgloss.Color("86")),
	StatusStopped: lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
	StatusError:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	StatusInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")),

	// Log entry styles
	EntryPage:   lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true),
	EntryHost:   lipgloss.NewStyle().Foreground(lipgloss.Color("86")),
	EntryScript: lipgloss.NewStyle().Foreground(lipgloss.Color("117")),
	EntrySystem: lipgloss.NewStyle().Foreground(lipgloss.Color("242")).Italic(true),
	EntryError:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),

	// Input styles
	InputError: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),

	// Component border styles
	AppBorder: lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("238")),

	LogBorder: lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("241")),

	StatusBorder: lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("59")),

	WindowsBorder: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("96")),

	TrafficBorder: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("66")),

	TrafficLine: lipgloss.NewStyle().Foreground(lipgloss.Color("117")),
	TrafficAxis: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),

	WindowSelected: lipgloss.NewStyle().
		Foreground(lipgloss.Color("231")).
		Background(lipgloss.Color("62")).
		Bold(true),

	WindowNormal: lipgloss.NewStyle().
		Foreground(lipgloss.Color("244")),

	// Help/Key hint styles
	HelpKey: lipgloss.NewStyle().
		Foreground(lipgloss.Color("228")).
		Background(lipgloss.Color("236")).
		Padding(0, 1),

	HelpSeparator: lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")),

	// Footer styles
	FooterText: lipgloss.NewStyle().Faint(true),

	// Header styles
	HeaderText: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86")),

	HeaderVersion: lipgloss.NewStyle().
		Foreground(lipgloss.Color("243")),

	// Error styles
	ErrorTitle: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("196")),

	ErrorBorder: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("196")),

	ErrorText: lipgloss.NewStyle().
		Foreground(lipgloss.Color("203")),
}

// styleDefs defines all style variables used throughout the console.
type styleDefs struct {
	Title  lipgloss.Style
	Normal lipgloss.Style
	Muted  lipgloss.Style

	StatusRunning lipgloss.Style
	StatusStopped lipgloss.Style
	StatusError   lipgloss.Style
	StatusInfo    lipgloss.Style

	EntryPage   lipgloss.Style
	EntryHost   lipgloss.Style
	EntryScript lipgloss.Style
	EntrySystem lipgloss.Style
	EntryError  lipgloss.Style

	InputError lipgloss.Style

	AppBorder     lipgloss.Style
	LogBorder     lipgloss.Style
	StatusBorder  lipgloss.Style
	WindowsBorder lipgloss.Style

	TrafficBorder lipgloss.Style
	TrafficLine   lipgloss.Style
	TrafficAxis   lipgloss.Style

	WindowSelected lipgloss.Style
	WindowNormal   lipgloss.Style

	HelpKey       lipgloss.Style
	HelpSeparator lipgloss.Style

	FooterText lipgloss.Style

	HeaderText    lipgloss.Style
	HeaderVersion lipgloss.Style

	ErrorTitle  lipgloss.Style
	ErrorBorder lipgloss.Style
	ErrorText   lipgloss.Style
}

// StatusStyle returns the style for the host run state.
func StatusStyle(running bool, err error) lipgloss.Style {
	switch {
	case err != nil:
		return Styles.StatusError
	case running:
		return Styles.StatusRunning
	default:
		return Styles.StatusStopped
	}
}

// EntryStyle returns the style for a log entry kind.
func EntryStyle(kind string) lipgloss.Style {
	switch kind {
	case "page":
		return Styles.EntryPage
	case "host":
		return Styles.EntryHost
	case "script":
		return Styles.EntryScript
	case "system":
		return Styles.EntrySystem
	case "error":
		return Styles.EntryError
	default:
		return Styles.Normal
	}
}
