// Package enginetest provides a scriptable in-memory ports.Engine.
package enginetest

import (
	"context"
	"sync"
	"time"

	"github.com/gabrielcapilla/playerwrap/internal/domain"
	"github.com/gabrielcapilla/playerwrap/internal/ports"
)

// Engine records every call it receives. Errors can be queued per
// operation name and a hook can observe each call while it is in flight.
type Engine struct {
	mu      sync.Mutex
	handler ports.EventHandler
	calls   []string
	errs    map[string]error
	playing bool

	// Source is the last source accepted by SetDataSource.
	Source domain.Source
	// Seek is the last position passed to SeekTo.
	Seek time.Duration
	// OnCall runs inside every operation before it returns.
	OnCall func(op string)
}

func New() *Engine {
	return &Engine{errs: make(map[string]error)}
}

// FailNext makes the next call to op return err.
func (e *Engine) FailNext(op string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errs[op] = err
}

func (e *Engine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

func (e *Engine) Handler() ports.EventHandler {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handler
}

// Fire delivers ev to the registered handler as if it came from this engine.
func (e *Engine) Fire(ev domain.Event) bool {
	return e.FireFrom(e, ev)
}

// FireFrom delivers ev to the registered handler with an arbitrary sender.
func (e *Engine) FireFrom(src ports.Engine, ev domain.Event) bool {
	h := e.Handler()
	if h == nil {
		return false
	}
	return h.HandleEngineEvent(src, ev)
}

func (e *Engine) call(op string) error {
	e.mu.Lock()
	e.calls = append(e.calls, op)
	err := e.errs[op]
	delete(e.errs, op)
	hook := e.OnCall
	e.mu.Unlock()

	if hook != nil {
		hook(op)
	}
	return err
}

func (e *Engine) SetDataSource(ctx context.Context, src domain.Source) error {
	if err := e.call("SetDataSource"); err != nil {
		return err
	}
	e.mu.Lock()
	e.Source = src
	e.mu.Unlock()
	return nil
}

func (e *Engine) Prepare(ctx context.Context) error      { return e.call("Prepare") }
func (e *Engine) PrepareAsync(ctx context.Context) error { return e.call("PrepareAsync") }
func (e *Engine) Reset(ctx context.Context) error        { return e.call("Reset") }
func (e *Engine) Release() error                         { return e.call("Release") }

func (e *Engine) Start(ctx context.Context) error {
	return e.setPlaying("Start", true)
}

func (e *Engine) Pause(ctx context.Context) error {
	return e.setPlaying("Pause", false)
}

func (e *Engine) Stop(ctx context.Context) error {
	return e.setPlaying("Stop", false)
}

func (e *Engine) setPlaying(op string, playing bool) error {
	if err := e.call(op); err != nil {
		return err
	}
	e.mu.Lock()
	e.playing = playing
	e.mu.Unlock()
	return nil
}

func (e *Engine) SeekTo(ctx context.Context, pos time.Duration) error {
	if err := e.call("SeekTo"); err != nil {
		return err
	}
	e.mu.Lock()
	e.Seek = pos
	e.mu.Unlock()
	return nil
}

func (e *Engine) IsPlaying(ctx context.Context) (bool, error) {
	if err := e.call("IsPlaying"); err != nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing, nil
}

func (e *Engine) SetHandler(h ports.EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handler = h
}
