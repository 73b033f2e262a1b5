package ui

import (
	"github.com/gabrielcapilla/playerwrap/internal/domain"
)

type engineEventMsg struct{ event domain.Event }

type opDoneMsg struct {
	op  string
	err error
}

type historyLoadedMsg struct{ entries []domain.HistoryEntry }
type historyErrorMsg struct{ err error }

type playSourceMsg struct{ source domain.Source }
