package ui

import "goldref/internal/domain"

// Viewer displays a stored run in an interactive TUI
type Viewer interface {
	View(run *domain.RunOutput) error
}
