package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gabrielcapilla/playerwrap/internal/domain"
)

// PlayerModel renders the mirrored player state.
type PlayerModel struct {
	width, height int
	state         domain.State
	ready         bool
	initialized   bool
	location      string
	busy          string
	err           error
	spinner       spinner.Model
	styles        Styles
}

func NewPlayerModel(styles Styles) PlayerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Spinner
	return PlayerModel{state: domain.StateUnknown, spinner: s, styles: styles}
}

func (m PlayerModel) Init() tea.Cmd { return nil }

func (m PlayerModel) Update(msg tea.Msg) (PlayerModel, tea.Cmd) {
	if m.busy == "" {
		return m, nil
	}
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m *PlayerModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

func (m *PlayerModel) SetState(state domain.State, ready, initialized bool) {
	m.state = state
	m.ready = ready
	m.initialized = initialized
}

func (m *PlayerModel) SetSource(location string) {
	m.location = location
}

func (m *PlayerModel) SetBusy(op string) tea.Cmd {
	m.busy = op
	if op == "" {
		return nil
	}
	return m.spinner.Tick
}

func (m *PlayerModel) SetError(err error) {
	m.err = err
}

func (m PlayerModel) flag(name string, on bool) string {
	if on {
		return m.styles.Flag.Render("● " + name)
	}
	return m.styles.FlagOff.Render("○ " + name)
}

func (m PlayerModel) View() string {
	var b strings.Builder

	b.WriteString(m.styles.StateName.Render(m.state.String()))
	b.WriteString("  ")
	b.WriteString(m.flag("initialized", m.initialized))
	b.WriteString("  ")
	b.WriteString(m.flag("ready", m.ready))
	if m.busy != "" {
		b.WriteString("  " + m.spinner.View() + " " + m.busy)
	}
	b.WriteString("\n")

	location := m.location
	if location == "" {
		location = "no source"
	}
	b.WriteString(truncate(location, max(m.width, 4)))

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(m.styles.ErrorText.Render(truncate(fmt.Sprintf("Error: %v", m.err), max(m.width, 4))))
	}

	return lipgloss.Place(m.width, m.height, lipgloss.Left, lipgloss.Top, b.String())
}
