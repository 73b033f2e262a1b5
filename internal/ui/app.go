package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gabrielcapilla/playerwrap/internal/domain"
	"github.com/gabrielcapilla/playerwrap/internal/logger"
	"github.com/gabrielcapilla/playerwrap/internal/player"
	"github.com/gabrielcapilla/playerwrap/internal/ports"
)

const (
	MIN_WIDTH  = 50
	MIN_HEIGHT = 15

	opTimeout = 15 * time.Second
)

type AppModel struct {
	width, height int
	player        *player.Player
	storage       ports.StorageService
	events        chan domain.Event
	initial       *domain.Source
	source        domain.Source
	status        PlayerModel
	log           EventLogModel
	history       HistoryModel
	styles        Styles
}

// InitialModel subscribes to p for the lifetime of the program. When
// initial is set it is loaded on start.
func InitialModel(p *player.Player, storage ports.StorageService, cfg domain.Config, initial *domain.Source) AppModel {
	styles := DefaultStyles()
	events := make(chan domain.Event, 64)

	p.Subscribe(player.ListenerFunc(func(ev domain.Event) bool {
		select {
		case events <- ev:
		default:
			logger.Log.Warn().Stringer("event", ev).Msg("UI event buffer full, dropping event")
		}
		return ev.Kind == domain.EventError
	}))

	m := AppModel{
		player:  p,
		storage: storage,
		events:  events,
		initial: initial,
		status:  NewPlayerModel(styles),
		log:     NewEventLogModel(styles),
		history: NewHistoryModel(storage, cfg.HistoryLimit, styles),
		styles:  styles,
	}
	m.refresh()
	return m
}

func waitForEvent(events <-chan domain.Event) tea.Cmd {
	return func() tea.Msg {
		return engineEventMsg{event: <-events}
	}
}

func (m AppModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.history.Load(), waitForEvent(m.events)}
	if m.initial != nil {
		src := *m.initial
		cmds = append(cmds, func() tea.Msg { return playSourceMsg{source: src} })
	}
	return tea.Batch(cmds...)
}

func (m *AppModel) refresh() {
	m.status.SetState(m.player.State(), player.IsReady(m.player), player.IsInitialized(m.player))
}

func (m AppModel) runOp(op string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return opDoneMsg{op: op, err: fn(ctx)}
	}
}

func (m AppModel) load(src domain.Source) tea.Cmd {
	p, storage := m.player, m.storage
	return m.runOp("load", func(ctx context.Context) error {
		if err := p.Reset(ctx); err != nil {
			return err
		}
		if err := p.SetDataSource(ctx, src); err != nil {
			return err
		}
		entry := domain.HistoryEntry{Location: src.Location(), Kind: src.Kind, LastState: p.State()}
		if err := storage.AddToHistory(entry); err != nil {
			logger.Log.Error().Err(err).Msg("Could not save source to history")
		}
		return p.PrepareAsync(ctx)
	})
}

func (m AppModel) recordState() tea.Cmd {
	location, state := m.source.Location(), m.player.State()
	if location == "" {
		return nil
	}
	storage, history := m.storage, m.history
	return func() tea.Msg {
		if err := storage.UpdateHistoryEntry(location, state, 0); err != nil {
			return historyErrorMsg{err}
		}
		return history.Load()()
	}
}

func (m AppModel) togglePlayback() tea.Cmd {
	p := m.player
	if m.player.State() == domain.StateStarted {
		return m.runOp("pause", p.Pause)
	}
	return m.runOp("start", p.Start)
}

func (m AppModel) quit() tea.Cmd {
	p := m.player
	return func() tea.Msg {
		if err := p.Release(); err != nil {
			logger.Log.Error().Err(err).Msg("Error releasing player")
		}
		return tea.Quit()
	}
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case engineEventMsg:
		m.refresh()
		m.log.Add(msg.event, m.player.State())
		cmds = append(cmds, waitForEvent(m.events))
		switch msg.event.Kind {
		case domain.EventPrepared:
			cmds = append(cmds, m.status.SetBusy("start"), m.runOp("start", m.player.Start))
		case domain.EventCompletion, domain.EventError:
			cmds = append(cmds, m.recordState())
		}
		return m, tea.Batch(cmds...)
	case opDoneMsg:
		m.status.SetBusy("")
		m.status.SetError(msg.err)
		m.refresh()
		m.log.AddOp(msg.op, msg.err, m.player.State())
		return m, m.recordState()
	case playSourceMsg:
		m.source = msg.source
		m.status.SetSource(msg.source.Location())
		m.status.SetError(nil)
		return m, tea.Batch(m.status.SetBusy("load"), m.load(msg.source))
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, m.quit()
		case " ":
			return m, tea.Batch(m.status.SetBusy("toggle"), m.togglePlayback())
		case "s":
			return m, tea.Batch(m.status.SetBusy("stop"), m.runOp("stop", m.player.Stop))
		case "p":
			return m, tea.Batch(m.status.SetBusy("prepare"), m.runOp("prepare", m.player.PrepareAsync))
		case "r":
			return m, tea.Batch(m.status.SetBusy("reset"), m.runOp("reset", m.player.Reset))
		case "0":
			p := m.player
			return m, m.runOp("seek", func(ctx context.Context) error { return p.SeekTo(ctx, 0) })
		}
	}

	m.status, cmd = m.status.Update(msg)
	cmds = append(cmds, cmd)
	m.history, cmd = m.history.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m AppModel) View() string {
	if m.width < MIN_WIDTH || m.height < MIN_HEIGHT {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, "Terminal too small")
	}

	availableWidth := m.width - m.styles.App.GetHorizontalFrameSize()
	innerWidth := availableWidth - 2

	statusHeight := 3
	helpHeight := 1
	titleHeight := 1
	remaining := m.height - titleHeight - statusHeight - helpHeight - 6 - m.styles.App.GetVerticalFrameSize()
	eventsHeight := remaining / 2
	historyHeight := remaining - eventsHeight

	m.status.SetSize(innerWidth, statusHeight)
	m.log.SetSize(innerWidth, eventsHeight)
	m.history.SetSize(innerWidth, historyHeight)

	statusPanel := m.styles.Box.Width(innerWidth).Height(statusHeight).Render(m.status.View())
	eventsPanel := m.styles.Box.Width(innerWidth).Height(eventsHeight).Render(m.log.View())
	historyPanel := m.styles.Box.Width(innerWidth).Height(historyHeight).Render(m.history.View(m.styles))

	helpView := m.styles.Help.Width(availableWidth).Render("[space] play/pause | [s] stop | [p] prepare | [r] reset | [0] rewind | [enter] replay | [x] forget | [q] quit")

	titleView := m.styles.Title.Render("playerwrap")

	return m.styles.App.Render(lipgloss.JoinVertical(lipgloss.Left,
		titleView,
		statusPanel,
		eventsPanel,
		historyPanel,
		helpView,
	))
}
