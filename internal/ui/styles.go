package ui

import "github.com/charmbracelet/lipgloss"

var highlightColor = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}

type Styles struct {
	App          lipgloss.Style
	Box          lipgloss.Style
	Help         lipgloss.Style
	Title        lipgloss.Style
	StateName    lipgloss.Style
	Flag         lipgloss.Style
	FlagOff      lipgloss.Style
	EventLine    lipgloss.Style
	ErrorText    lipgloss.Style
	ListNormal   lipgloss.Style
	ListSelected lipgloss.Style
	ListPointer  lipgloss.Style
	Spinner      lipgloss.Style
}

func DefaultStyles() Styles {
	s := Styles{}
	s.App = lipgloss.NewStyle().Padding(0, 1)
	s.Box = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder(), true).
		BorderForeground(highlightColor)
	s.Help = lipgloss.NewStyle().Faint(true)
	s.Title = lipgloss.NewStyle().Bold(true).Foreground(highlightColor)
	s.StateName = lipgloss.NewStyle().Bold(true)
	s.Flag = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	s.FlagOff = lipgloss.NewStyle().Faint(true)
	s.EventLine = lipgloss.NewStyle()
	s.ErrorText = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	s.ListNormal = lipgloss.NewStyle()
	s.ListSelected = lipgloss.NewStyle().Foreground(highlightColor).Bold(true)
	s.ListPointer = lipgloss.NewStyle().Foreground(highlightColor).SetString("> ")
	s.Spinner = lipgloss.NewStyle().Foreground(highlightColor)
	return s
}
