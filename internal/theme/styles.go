package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/renato0307/sessiond/internal/domain"
)

// Main styles
var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorSubtle)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	NormalStyle = lipgloss.NewStyle().
			Foreground(ColorNormal)
)

// State icon styles
var (
	ErrorIconStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	IdleIconStyle = lipgloss.NewStyle().
			Foreground(ColorIdle)

	WorkingIconStyle = lipgloss.NewStyle().
				Foreground(ColorWorking)
)

// Role label styles
var (
	AssistantStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAssistant)

	SystemStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorSystem)

	UserStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorUser)
)

// StateStyle returns the icon style for a session state
func StateStyle(state domain.SessionState) lipgloss.Style {
	switch state {
	case domain.StateError:
		return ErrorIconStyle
	case domain.StateWorking:
		return WorkingIconStyle
	default:
		return IdleIconStyle
	}
}

// RenderState renders the state symbol followed by its name
func RenderState(state domain.SessionState) string {
	return StateStyle(state).Render(state.Symbol()) + " " + string(state)
}

// RoleStyle returns the label style for a message role
func RoleStyle(role string) lipgloss.Style {
	switch role {
	case domain.RoleAssistant:
		return AssistantStyle
	case domain.RoleSystem:
		return SystemStyle
	default:
		return UserStyle
	}
}
