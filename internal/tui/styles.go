package tui

import "github.com/charmbracelet/lipgloss"

// Styles contains the style definitions for the gallery
type Styles struct {
	Title        lipgloss.Style
	Input        lipgloss.Style
	Card         lipgloss.Style
	CardSelected lipgloss.Style
	CardTitle    lipgloss.Style
	Stat         lipgloss.Style
	URL          lipgloss.Style
	Status       lipgloss.Style
	Dim          lipgloss.Style
	Help         lipgloss.Style
	LoadMore     lipgloss.Style
	ToastError   lipgloss.Style
	ToastWarn    lipgloss.Style
	ToastInfo    lipgloss.Style
	Spinner      lipgloss.Style
	EmptyScreen  lipgloss.Style
	Detail       lipgloss.Style
	DetailLabel  lipgloss.Style
}

// NewStyles creates a new Styles instance with default values
func NewStyles() *Styles {
	return &Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")),
		Input: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("241")).
			Padding(0, 1),
		Card: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("241")).
			Padding(0, 1),
		CardSelected: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("99")).
			Padding(0, 1),
		Detail: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("99")).
			Padding(0, 1),
		CardTitle:   lipgloss.NewStyle().Bold(true),
		Stat:        lipgloss.NewStyle().Foreground(lipgloss.Color("33")),
		URL:         lipgloss.NewStyle().Faint(true).Underline(true),
		Status:      lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Dim:         lipgloss.NewStyle().Faint(true),
		Help:        lipgloss.NewStyle().Faint(true),
		LoadMore:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true), // yellow
		ToastError:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true), // red
		ToastWarn:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),            // yellow
		ToastInfo:   lipgloss.NewStyle().Foreground(lipgloss.Color("39")),             // blue
		Spinner:     lipgloss.NewStyle().Foreground(lipgloss.Color("99")),
		EmptyScreen: lipgloss.NewStyle().Faint(true).Padding(1, 2),
		DetailLabel: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}
