// Package engine implements ports.Engine on top of an mpv subprocess
// driven through its JSON IPC socket.
package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gabrielcapilla/playerwrap/internal/domain"
	"github.com/gabrielcapilla/playerwrap/internal/logger"
	"github.com/gabrielcapilla/playerwrap/internal/ports"
)

const (
	socketCheckRetries    = 20
	socketCheckInterval   = 100 * time.Millisecond
	socketReadDeadline    = 500 * time.Millisecond
	defaultPrepareTimeout = 10 * time.Second
)

var ErrPrepareTimeout = errors.New("timed out waiting for mpv to load the source")

var execCommand = exec.Command

type engineState int

const (
	engineIdle engineState = iota
	engineInitialized
	enginePreparing
	enginePrepared
	engineStarted
	enginePaused
	engineStopped
	engineCompleted
	engineError
	engineReleased
)

var engineStateNames = [...]string{
	"idle", "initialized", "preparing", "prepared", "started",
	"paused", "stopped", "completed", "error", "released",
}

func (s engineState) String() string {
	if s < 0 || int(s) >= len(engineStateNames) {
		return "invalid"
	}
	return engineStateNames[s]
}

type MpvEngine struct {
	cfg   domain.MpvConfig
	reqID atomic.Int64

	mu        sync.Mutex
	cmd       *exec.Cmd
	exited    chan struct{}
	events    net.Conn
	state     engineState
	location  string
	headers   []string
	published string
	loaded    chan error
	seeking   bool
	rendered  bool
	sources   *sourceServer

	hmu     sync.RWMutex
	handler ports.EventHandler
}

func NewMpvEngine(cfg domain.MpvConfig) *MpvEngine {
	if cfg.Path == "" {
		cfg.Path = "mpv"
	}
	if cfg.PrepareTimeout <= 0 {
		cfg.PrepareTimeout = defaultPrepareTimeout
	}
	os.Remove(cfg.SocketPath)
	return &MpvEngine{cfg: cfg, sources: newSourceServer()}
}

func (m *MpvEngine) SetHandler(h ports.EventHandler) {
	m.hmu.Lock()
	defer m.hmu.Unlock()
	m.handler = h
}

func (m *MpvEngine) dispatch(ev domain.Event) bool {
	m.hmu.RLock()
	h := m.handler
	m.hmu.RUnlock()
	if h == nil {
		return false
	}
	return h.HandleEngineEvent(m, ev)
}

// check returns an error unless the engine is in one of the allowed states.
func (m *MpvEngine) check(op string, allowed ...engineState) error {
	if m.state == engineReleased {
		return ports.ErrReleased
	}
	for _, s := range allowed {
		if m.state == s {
			return nil
		}
	}
	return fmt.Errorf("%s called in state %s: %w", op, m.state, ports.ErrIllegalState)
}

func (m *MpvEngine) isProcessRunning() bool {
	if m.cmd == nil || m.cmd.Process == nil {
		return false
	}
	select {
	case <-m.exited:
		return false
	default:
		return true
	}
}

func (m *MpvEngine) startMpvProcess() error {
	if m.isProcessRunning() {
		if m.events != nil {
			return nil
		}
		err := m.connectEvents()
		if err == nil {
			return nil
		}
		logger.Log.Warn().Err(err).Msg("mpv is running without an event stream. Restarting it.")
		m.stopProcess()
	}
	m.cmd = nil
	// A socket file left behind by a dead mpv would be found before the
	// new process binds it.
	os.Remove(m.cfg.SocketPath)

	logger.Log.Info().Str("binary", m.cfg.Path).Msg("Starting new mpv process...")
	args := []string{
		"--idle",
		"--input-ipc-server=" + m.cfg.SocketPath,
		"--no-config",
		"--no-terminal",
		"--keep-open=yes",
	}
	if !m.cfg.Video {
		args = append(args, "--no-video")
	}
	args = append(args, m.cfg.ExtraArgs...)

	out := logger.Log.With().Str("source", "mpv").Logger()
	m.cmd = execCommand(m.cfg.Path, args...)
	m.cmd.Stdout = out
	m.cmd.Stderr = out
	setProcessGroup(m.cmd)

	if err := m.cmd.Start(); err != nil {
		m.cmd = nil
		return fmt.Errorf("could not start mpv process: %w", err)
	}
	exited := make(chan struct{})
	m.exited = exited
	go func(cmd *exec.Cmd) {
		err := cmd.Wait()
		logger.Log.Info().AnErr("exit", err).Msg("mpv process exited")
		close(exited)
	}(m.cmd)

	var lastErr error
	for i := 0; i < socketCheckRetries; i++ {
		if _, err := os.Stat(m.cfg.SocketPath); err == nil {
			if lastErr = m.connectEvents(); lastErr == nil {
				logger.Log.Info().Msg("mpv socket detected. Process ready.")
				return nil
			}
		}
		time.Sleep(socketCheckInterval)
	}

	logger.Log.Error().Err(lastErr).Str("socket", m.cfg.SocketPath).Msg("Timed out waiting for mpv socket.")
	m.stopProcess()
	if lastErr != nil {
		return fmt.Errorf("mpv process started but its socket refused connections: %w", lastErr)
	}
	return fmt.Errorf("mpv process started but socket did not appear at %s", m.cfg.SocketPath)
}

// stopProcess kills mpv and forgets it. Callers hold m.mu.
func (m *MpvEngine) stopProcess() {
	if m.events != nil {
		m.events.Close()
		m.events = nil
	}
	if m.isProcessRunning() {
		if err := killProcess(m.cmd); err != nil {
			logger.Log.Error().Err(err).Msg("Error terminating mpv process")
		}
	}
	m.cmd = nil
}

func (m *MpvEngine) SetDataSource(ctx context.Context, src domain.Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check("SetDataSource", engineIdle); err != nil {
		return err
	}
	if err := src.Validate(); err != nil {
		return fmt.Errorf("invalid %s source: %w", src.Kind, err)
	}

	location, headers, err := m.resolve(src)
	if err != nil {
		return err
	}
	m.location = location
	m.headers = headers
	m.state = engineInitialized
	return nil
}

func (m *MpvEngine) resolve(src domain.Source) (string, []string, error) {
	switch src.Kind {
	case domain.SourcePath:
		if _, err := os.Stat(src.Path); err != nil {
			return "", nil, fmt.Errorf("could not open %s: %w", src.Path, err)
		}
		return src.Path, nil, nil
	case domain.SourceURI:
		return src.URI, headerFields(src.Headers, src.Cookies), nil
	case domain.SourceFD, domain.SourceReader:
		url, err := m.sources.publish(src)
		if err != nil {
			return "", nil, err
		}
		m.published = url
		return url, nil, nil
	default:
		return "", nil, fmt.Errorf("%s: %w", src.Kind, ports.ErrUnsupportedSource)
	}
}

// load asks mpv to open the current source paused. Callers hold m.mu.
func (m *MpvEngine) load(ctx context.Context) error {
	if err := m.startMpvProcess(); err != nil {
		return err
	}
	m.seeking = false
	m.rendered = false
	headers := m.headers
	if headers == nil {
		headers = []string{}
	}
	_, err := m.sendCommands(ctx,
		command("set_property", "pause", true),
		command("set_property", "http-header-fields", headers),
		command("loadfile", m.location, "replace"),
	)
	return err
}

func (m *MpvEngine) Prepare(ctx context.Context) error {
	m.mu.Lock()
	if err := m.check("Prepare", engineInitialized, engineStopped); err != nil {
		m.mu.Unlock()
		return err
	}
	loaded := make(chan error, 1)
	m.loaded = loaded
	m.state = enginePreparing
	if err := m.load(ctx); err != nil {
		m.loaded = nil
		m.state = engineError
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	timer := time.NewTimer(m.cfg.PrepareTimeout)
	defer timer.Stop()

	var err error
	select {
	case err = <-loaded:
	case <-ctx.Done():
		err = ctx.Err()
	case <-timer.C:
		err = ErrPrepareTimeout
	}
	if err == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded == loaded {
		m.loaded = nil
		m.state = engineError
	}
	return fmt.Errorf("prepare %s: %w", m.location, err)
}

func (m *MpvEngine) PrepareAsync(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check("PrepareAsync", engineInitialized, engineStopped); err != nil {
		return err
	}
	m.state = enginePreparing
	if err := m.load(ctx); err != nil {
		m.state = engineError
		return err
	}
	return nil
}

func (m *MpvEngine) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check("Start", enginePrepared, engineStarted, enginePaused, engineCompleted); err != nil {
		return err
	}
	cmds := []MpvCommand{command("set_property", "pause", false)}
	if m.state == engineCompleted {
		cmds = append([]MpvCommand{command("seek", 0, "absolute")}, cmds...)
	}
	if _, err := m.sendCommands(ctx, cmds...); err != nil {
		return err
	}
	m.state = engineStarted
	return nil
}

func (m *MpvEngine) Pause(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check("Pause", engineStarted, enginePaused); err != nil {
		return err
	}
	if _, err := m.sendCommands(ctx, command("set_property", "pause", true)); err != nil {
		return err
	}
	m.state = enginePaused
	return nil
}

func (m *MpvEngine) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check("Stop", enginePrepared, engineStarted, enginePaused, engineStopped, engineCompleted); err != nil {
		return err
	}
	if _, err := m.sendCommands(ctx, command("stop")); err != nil {
		return err
	}
	m.state = engineStopped
	return nil
}

func (m *MpvEngine) SeekTo(ctx context.Context, pos time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check("SeekTo", enginePrepared, engineStarted, enginePaused, engineCompleted); err != nil {
		return err
	}
	if _, err := m.sendCommands(ctx, command("seek", pos.Seconds(), "absolute")); err != nil {
		return err
	}
	m.seeking = true
	if m.state == engineCompleted {
		m.state = enginePaused
	}
	return nil
}

func (m *MpvEngine) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == engineReleased {
		return ports.ErrReleased
	}
	if m.isProcessRunning() && m.state != engineIdle && m.state != engineInitialized && m.state != engineStopped {
		if _, err := m.sendCommands(ctx, command("stop")); err != nil {
			return err
		}
	}
	m.clearSource()
	m.state = engineIdle
	return nil
}

func (m *MpvEngine) clearSource() {
	if m.published != "" {
		m.sources.unpublish(m.published)
		m.published = ""
	}
	m.location = ""
	m.headers = nil
	if m.loaded != nil {
		m.loaded <- ports.ErrIllegalState
		m.loaded = nil
	}
}

// Release terminates mpv. It does not wait for the event reader, which
// may be blocked inside a handler.
func (m *MpvEngine) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == engineReleased {
		return nil
	}
	m.clearSource()
	m.state = engineReleased

	m.stopProcess()
	os.Remove(m.cfg.SocketPath)
	return m.sources.close()
}

func (m *MpvEngine) IsPlaying(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == engineReleased {
		return false, ports.ErrReleased
	}
	return m.state == engineStarted, nil
}
