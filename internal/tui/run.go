package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the local TUI
func Run(ctx context.Context, config ModelConfig) error {
	if config.Controller == nil {
		return errors.New("tui: controller is required")
	}
	config.Context = ctx

	p := tea.NewProgram(
		NewModel(config),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
