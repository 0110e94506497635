package tui

import (
	"fmt"

	"github.com/billm/baaaht/webbridge/pkg/tui/styles"
	"github.com/charmbracelet/lipgloss"
)

// View renders the console. Part of the tea.Model interface.
func (m Model) View() string {
	if m.err != nil {
		return m.errorView()
	}
	if m.quitting {
		return ""
	}

	body := m.log.View()
	switch {
	case m.windows.IsVisible():
		body = m.windows.View()
	case m.traffic.IsVisible():
		if chart := m.traffic.View(); chart != "" {
			body = chart
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		m.status.View(),
		body,
		m.input.View(),
		m.footerView(),
	)
}

func (m Model) headerView() string {
	parts := []string{
		styles.Styles.HeaderText.Render("webbridge console"),
		styles.Styles.HeaderVersion.Render(m.version),
	}
	if m.feed != nil {
		if n := m.feed.Dropped(); n > 0 {
			parts = append(parts, styles.Styles.ErrorText.Render(fmt.Sprintf("(%d events dropped)", n)))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, joinSpaced(parts)...)
}

func (m Model) footerView() string {
	help := m.keys.ShortHelp()
	parts := make([]string, 0, len(help))
	for _, entry := range help {
		parts = append(parts, entry.Style.Render(entry.Key+" "+entry.Desc))
	}
	return styles.Styles.FooterText.Width(m.width).Render(lipgloss.JoinHorizontal(lipgloss.Top, parts...))
}

func (m Model) errorView() string {
	content := lipgloss.JoinVertical(lipgloss.Left,
		styles.Styles.ErrorTitle.Render("Console unavailable"),
		"",
		styles.Styles.ErrorText.Render(m.err.Error()),
		"",
		styles.Styles.FooterText.Render("press any key to exit"),
	)
	return styles.Styles.ErrorBorder.Width(m.width).Render(content)
}

func joinSpaced(parts []string) []string {
	out := make([]string, 0, 2*len(parts))
	for i, p := range parts {
		if i > 0 {
			out = append(out, " ")
		}
		out = append(out, p)
	}
	return out
}
