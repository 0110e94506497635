package tui

import (
	"context"
	"errors"

	"github.com/billm/baaaht/webbridge/internal/config"
	"github.com/billm/baaaht/webbridge/internal/logger"
	tea "github.com/charmbracelet/bubbletea"
)

// Run shows the console until the operator quits, the last window closes
// or ctx is cancelled.
func Run(ctx context.Context, h Host, cfg config.Config, version string, log *logger.Logger) error {
	m := NewModel(h, cfg, version, log)
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return err
	}
	if fm, ok := final.(Model); ok && fm.err != nil {
		return fm.err
	}
	return nil
}
