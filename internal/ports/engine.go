package ports

import (
	"context"
	"errors"
	"time"

	"github.com/gabrielcapilla/playerwrap/internal/domain"
)

var (
	// ErrIllegalState is returned when an operation is not valid in the
	// engine's current state.
	ErrIllegalState = errors.New("illegal engine state")
	// ErrReleased is returned once the engine has been released.
	ErrReleased = errors.New("engine not initialized or has been released")
	// ErrUnsupportedSource is returned for sources the engine cannot open.
	ErrUnsupportedSource = errors.New("unsupported data source")
)

// Engine is the playback component being wrapped. Implementations do their
// own state validation and report asynchronous outcomes through the
// registered EventHandler, on a goroutine of their choosing.
type Engine interface {
	SetDataSource(ctx context.Context, src domain.Source) error
	Prepare(ctx context.Context) error
	PrepareAsync(ctx context.Context) error
	Start(ctx context.Context) error
	Pause(ctx context.Context) error
	Stop(ctx context.Context) error
	SeekTo(ctx context.Context, pos time.Duration) error
	Reset(ctx context.Context) error
	Release() error
	IsPlaying(ctx context.Context) (bool, error)
	SetHandler(h EventHandler)
}

// EventHandler receives engine callbacks. The return value is only
// meaningful for error and info events: true means the event was handled.
type EventHandler interface {
	HandleEngineEvent(src Engine, ev domain.Event) bool
}
