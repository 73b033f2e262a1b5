package ui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/gabrielcapilla/playerwrap/internal/domain"
	"github.com/gabrielcapilla/playerwrap/internal/ports"
)

type historyItem struct{ entry domain.HistoryEntry }

func (i historyItem) FilterValue() string { return i.entry.Location }

// replayable reports whether the entry can be opened again; descriptor and
// reader sources do not outlive the process that supplied them.
func (i historyItem) replayable() bool {
	return i.entry.Kind == domain.SourcePath || i.entry.Kind == domain.SourceURI
}

func (i historyItem) source() domain.Source {
	if i.entry.Kind == domain.SourceURI {
		return domain.URISource(i.entry.Location, nil, nil)
	}
	return domain.PathSource(i.entry.Location)
}

type itemDelegate struct{ styles Styles }

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	hi, ok := item.(historyItem)
	if !ok {
		return
	}

	itemStyle := d.styles.ListNormal
	pointer := "  "
	if index == m.Index() {
		itemStyle = d.styles.ListSelected
		pointer = d.styles.ListPointer.String()
	}
	if !hi.replayable() {
		itemStyle = itemStyle.Faint(true)
	}

	line := fmt.Sprintf("%s  [%s]", hi.entry.Location, hi.entry.LastState)
	if m.Width() > 0 {
		line = truncate(line, m.Width()-2)
	}
	fmt.Fprint(w, itemStyle.Render(pointer+line))
}

type HistoryModel struct {
	storage ports.StorageService
	limit   int
	list    list.Model
	err     error
}

func NewHistoryModel(storage ports.StorageService, limit int, styles Styles) HistoryModel {
	li := list.New([]list.Item{}, itemDelegate{styles: styles}, 0, 0)
	li.SetShowTitle(false)
	li.SetShowStatusBar(false)
	li.SetShowPagination(false)
	li.SetShowHelp(false)
	li.SetFilteringEnabled(false)
	return HistoryModel{storage: storage, limit: limit, list: li}
}

func (m HistoryModel) Load() tea.Cmd {
	return func() tea.Msg {
		entries, err := m.storage.GetHistory(m.limit)
		if err != nil {
			return historyErrorMsg{err}
		}
		return historyLoadedMsg{entries}
	}
}

func (m HistoryModel) remove(location string) tea.Cmd {
	return func() tea.Msg {
		if err := m.storage.DeleteFromHistory(location); err != nil {
			return historyErrorMsg{err}
		}
		return m.Load()()
	}
}

func (m *HistoryModel) SetSize(w, h int) {
	m.list.SetSize(w, h)
}

func (m HistoryModel) Update(msg tea.Msg) (HistoryModel, tea.Cmd) {
	switch msg := msg.(type) {
	case historyLoadedMsg:
		m.err = nil
		items := make([]list.Item, len(msg.entries))
		for i, entry := range msg.entries {
			items[i] = historyItem{entry: entry}
		}
		return m, m.list.SetItems(items)
	case historyErrorMsg:
		m.err = msg.err
		return m, nil
	case tea.KeyMsg:
		selected, ok := m.list.SelectedItem().(historyItem)
		switch msg.String() {
		case "enter":
			if ok && selected.replayable() {
				return m, func() tea.Msg { return playSourceMsg{source: selected.source()} }
			}
			return m, nil
		case "x":
			if ok {
				return m, m.remove(selected.entry.Location)
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m HistoryModel) View(styles Styles) string {
	if m.err != nil {
		return styles.ErrorText.Render(fmt.Sprintf("Error: %v", m.err))
	}
	if len(m.list.Items()) == 0 {
		return styles.Help.Render("history is empty")
	}
	return m.list.View()
}
