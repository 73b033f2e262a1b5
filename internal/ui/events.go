package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/gabrielcapilla/playerwrap/internal/domain"
)

const maxEventLines = 100

type EventLogModel struct {
	width, height int
	lines         []string
	styles        Styles
	now           func() time.Time
}

func NewEventLogModel(styles Styles) EventLogModel {
	return EventLogModel{styles: styles, now: time.Now}
}

func (m *EventLogModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

func (m *EventLogModel) Add(ev domain.Event, state domain.State) {
	m.append(fmt.Sprintf("%s → %s", ev, state))
}

func (m *EventLogModel) AddOp(op string, err error, state domain.State) {
	if err != nil {
		m.append(fmt.Sprintf("%s failed: %v", op, err))
		return
	}
	m.append(fmt.Sprintf("%s → %s", op, state))
}

func (m *EventLogModel) append(line string) {
	m.lines = append(m.lines, m.now().Format("15:04:05")+" "+line)
	if len(m.lines) > maxEventLines {
		m.lines = m.lines[len(m.lines)-maxEventLines:]
	}
}

func (m EventLogModel) View() string {
	lines := m.lines
	if m.height > 0 && len(lines) > m.height {
		lines = lines[len(lines)-m.height:]
	}
	rendered := make([]string, len(lines))
	for i, l := range lines {
		rendered[i] = m.styles.EventLine.Render(truncate(l, max(m.width, 4)))
	}
	return strings.Join(rendered, "\n")
}
