package cli

import "github.com/charmbracelet/lipgloss"

// Groove colour palette 🎵
// Shared theme colours for consistent branding across CLI and TUI
var (
	// Core groove colours (cool to warm)
	GrooveTeal   = lipgloss.Color("#00CED1") // Bright teal
	GroovePurple = lipgloss.Color("#9370DB") // Medium purple
	GrooveAmber  = lipgloss.Color("#FFBF00") // Warm amber
	GrooveMauve  = lipgloss.Color("#C71585") // Deep mauve

	// Accent colours
	CoolGray = lipgloss.Color("#708090") // Slate gray for subtle text
)
