package ports

import (
	"time"

	"github.com/gabrielcapilla/playerwrap/internal/domain"
)

type StorageService interface {
	AddToHistory(entry domain.HistoryEntry) error
	UpdateHistoryEntry(location string, state domain.State, resumeAt time.Duration) error
	DeleteFromHistory(locations ...string) error
	GetHistory(limit int) ([]domain.HistoryEntry, error)
	Close() error
}
