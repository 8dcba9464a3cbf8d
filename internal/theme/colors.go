package theme

import "github.com/charmbracelet/lipgloss"

// Color is an alias for lipgloss.Color for convenience
type Color = lipgloss.Color

// Brand colors
const (
	ColorPrimary   Color = "99" // Purple - app name, titles
	ColorSecondary Color = "86" // Cyan - subtitles
)

// Session state colors
const (
	ColorError   Color = "1" // Red - last run failed
	ColorIdle    Color = "3" // Yellow - idle
	ColorWorking Color = "2" // Green - working
)

// Message role colors
const (
	ColorAssistant Color = "86"  // Cyan
	ColorSystem    Color = "196" // Bright red - synthetic error messages
	ColorUser      Color = "141" // Purple
)

// UI semantic colors
const (
	ColorHighlight Color = "255" // White - emphasis
	ColorMuted     Color = "241" // Gray - secondary text
	ColorNormal    Color = "250" // Default text
	ColorSubtle    Color = "245" // Light gray - labels
)
