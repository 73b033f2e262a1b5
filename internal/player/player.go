// Package player mirrors a playback engine's lifecycle into an explicit
// state and re-dispatches the engine's callbacks to a single subscriber.
//
// The Player performs no validation of its own: every operation is
// forwarded to the engine, and the mirrored state only moves after the
// engine accepted the call. Illegal sequences surface as whatever error
// the engine returns.
package player

import (
	"context"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gabrielcapilla/playerwrap/internal/domain"
	"github.com/gabrielcapilla/playerwrap/internal/logger"
	"github.com/gabrielcapilla/playerwrap/internal/ports"
)

// Listener receives the engine events re-dispatched by a Player. The
// return value is handed back to the engine for error and info events.
type Listener interface {
	OnPlayerEvent(ev domain.Event) bool
}

type ListenerFunc func(ev domain.Event) bool

func (f ListenerFunc) OnPlayerEvent(ev domain.Event) bool { return f(ev) }

// Player serializes operations on mu. The mirrored state, the listener
// and the engine reference are guarded by smu, so State and event delivery
// never wait behind a blocking engine call.
type Player struct {
	mu     sync.Mutex
	engine ports.Engine // written with both locks held

	smu      sync.RWMutex
	bound    bool
	state    domain.State
	changes  uint64
	listener Listener
	kinds    map[domain.EventKind]bool
}

// New wraps engine and registers the Player as its event handler.
func New(engine ports.Engine) *Player {
	p := &Player{engine: engine, bound: true, state: domain.StateIdle}
	engine.SetHandler(p)
	return p
}

// State returns the mirrored engine state. A Player that was not built
// with New reports StateUnknown.
func (p *Player) State() domain.State {
	if p == nil {
		return domain.StateUnknown
	}
	p.smu.RLock()
	defer p.smu.RUnlock()
	if !p.bound {
		return domain.StateUnknown
	}
	return p.state
}

// setStateLocked records a transition. Callers hold smu for writing.
func (p *Player) setStateLocked(op string, next domain.State) {
	prev := p.state
	p.state = next
	p.changes++
	logger.Log.Debug().
		Str("op", op).
		Stringer("from", prev).
		Stringer("to", next).
		Msg("Player state changed")
}

func (p *Player) setState(op string, next domain.State) {
	p.smu.Lock()
	defer p.smu.Unlock()
	p.setStateLocked(op, next)
}

func (p *Player) changeCount() uint64 {
	p.smu.RLock()
	defer p.smu.RUnlock()
	return p.changes
}

// forward runs call against the engine under the lock and moves to next
// once it succeeds. A state reported by an engine event while the call was
// in flight is newer than next and is kept. A released Player ignores the
// call.
func (p *Player) forward(op string, next domain.State, call func(ports.Engine) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.engine == nil {
		return nil
	}
	seen := p.changeCount()
	if err := call(p.engine); err != nil {
		logger.Log.Debug().Err(err).Str("op", op).Stringer("state", p.State()).Msg("Engine rejected call")
		return err
	}

	p.smu.Lock()
	defer p.smu.Unlock()
	if p.changes != seen {
		logger.Log.Debug().Str("op", op).Stringer("state", p.state).Msg("Engine event superseded transition")
		return nil
	}
	p.setStateLocked(op, next)
	return nil
}

func (p *Player) IsPlaying(ctx context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.engine == nil {
		return false, ports.ErrReleased
	}
	return p.engine.IsPlaying(ctx)
}

func (p *Player) SetDataSource(ctx context.Context, src domain.Source) error {
	return p.forward("set-data-source", domain.StateInitialized, func(e ports.Engine) error {
		return e.SetDataSource(ctx, src)
	})
}

func (p *Player) SetPath(ctx context.Context, path string) error {
	return p.SetDataSource(ctx, domain.PathSource(path))
}

func (p *Player) SetURI(ctx context.Context, uri string, headers map[string]string, cookies []*http.Cookie) error {
	return p.SetDataSource(ctx, domain.URISource(uri, headers, cookies))
}

// SetFD plays length bytes of f starting at offset. The caller may close f
// once the Player has been prepared.
func (p *Player) SetFD(ctx context.Context, f *os.File, offset, length int64) error {
	return p.SetDataSource(ctx, domain.FDSource(f, offset, length))
}

func (p *Player) SetReader(ctx context.Context, r io.ReaderAt, size int64) error {
	return p.SetDataSource(ctx, domain.ReaderSource(r, size))
}

// Prepare blocks until the engine is ready. The Preparing state is set
// before the engine call, so State reports it while the call is in flight
// and an EventPrepared delivered meanwhile is not overwritten.
func (p *Player) Prepare(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.engine == nil {
		return nil
	}
	p.setState("prepare", domain.StatePreparing)
	return p.engine.Prepare(ctx)
}

// PrepareAsync returns immediately; readiness is reported with an
// EventPrepared event.
func (p *Player) PrepareAsync(ctx context.Context) error {
	return p.forward("prepare-async", domain.StatePreparing, func(e ports.Engine) error {
		return e.PrepareAsync(ctx)
	})
}

func (p *Player) Start(ctx context.Context) error {
	return p.forward("start", domain.StateStarted, func(e ports.Engine) error {
		return e.Start(ctx)
	})
}

func (p *Player) Pause(ctx context.Context) error {
	return p.forward("pause", domain.StatePaused, func(e ports.Engine) error {
		return e.Pause(ctx)
	})
}

func (p *Player) Stop(ctx context.Context) error {
	return p.forward("stop", domain.StateStopped, func(e ports.Engine) error {
		return e.Stop(ctx)
	})
}

// SeekTo does not change the state. Completion is reported with an
// EventSeekComplete event.
func (p *Player) SeekTo(ctx context.Context, pos time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.engine == nil {
		return nil
	}
	return p.engine.SeekTo(ctx, pos)
}

func (p *Player) Reset(ctx context.Context) error {
	return p.forward("reset", domain.StateIdle, func(e ports.Engine) error {
		return e.Reset(ctx)
	})
}

// Release frees the engine. The Player is unusable afterwards and stays
// in StateEnded.
func (p *Player) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.engine == nil {
		return nil
	}
	if err := p.engine.Release(); err != nil {
		return err
	}
	p.engine.SetHandler(nil)

	p.smu.Lock()
	defer p.smu.Unlock()
	p.engine = nil
	p.setStateLocked("release", domain.StateEnded)
	return nil
}

// Subscribe installs l as the only listener, replacing any previous one.
// With no kinds, l receives every event. A nil l unsubscribes.
func (p *Player) Subscribe(l Listener, kinds ...domain.EventKind) {
	p.smu.Lock()
	defer p.smu.Unlock()

	p.listener = l
	p.kinds = nil
	if len(kinds) > 0 {
		p.kinds = make(map[domain.EventKind]bool, len(kinds))
		for _, k := range kinds {
			p.kinds[k] = true
		}
	}
}

func (p *Player) listenerFor(kind domain.EventKind) Listener {
	if p.listener == nil {
		return nil
	}
	if p.kinds != nil && !p.kinds[kind] {
		return nil
	}
	return p.listener
}

// HandleEngineEvent implements ports.EventHandler. Events from any engine
// other than the wrapped one are dropped, as is anything after release.
// The state is updated before the listener runs; the listener is called
// without any lock held, and delivery does not wait for an operation in
// flight.
func (p *Player) HandleEngineEvent(src ports.Engine, ev domain.Event) bool {
	p.smu.Lock()
	if p.engine == nil || src != p.engine || p.state.Terminal() {
		p.smu.Unlock()
		return false
	}

	switch ev.Kind {
	case domain.EventPrepared:
		p.setStateLocked("on-prepared", domain.StatePrepared)
	case domain.EventError:
		p.setStateLocked("on-error", domain.StateError)
	case domain.EventCompletion:
		p.setStateLocked("on-completion", domain.StateCompleted)
	}
	l := p.listenerFor(ev.Kind)
	p.smu.Unlock()

	if l == nil {
		return false
	}
	return l.OnPlayerEvent(ev)
}
