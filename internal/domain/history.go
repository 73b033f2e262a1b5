package domain

import "time"

type HistoryEntry struct {
	Location  string
	Kind      SourceKind
	PlayedAt  time.Time
	LastState State
	ResumeAt  time.Duration
}
