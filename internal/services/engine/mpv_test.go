package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gabrielcapilla/playerwrap/internal/domain"
	"github.com/gabrielcapilla/playerwrap/internal/player"
	"github.com/gabrielcapilla/playerwrap/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if os.Getenv("GO_TEST_MODE_MPV") == "1" {
		time.Sleep(time.Minute)
		os.Exit(0)
	}

	os.Exit(m.Run())
}

// mockExecCommand replaces mpv with a sleeping helper process. onSpawn
// runs each time the engine launches it.
func mockExecCommand(t *testing.T, onSpawn func()) {
	originalExecCommand := execCommand
	t.Cleanup(func() {
		execCommand = originalExecCommand
	})

	execCommand = func(command string, args ...string) *exec.Cmd {
		if onSpawn != nil {
			onSpawn()
		}
		cmd := exec.Command(os.Args[0], "-test.run=TestMain")
		cmd.Env = []string{"GO_TEST_MODE_MPV=1"}
		return cmd
	}
}

// fakeMpv speaks enough of mpv's JSON IPC protocol to drive the engine.
// It binds its socket when the engine spawns the mpv process.
type fakeMpv struct {
	socketPath string

	mu         sync.Mutex
	listener   net.Listener
	conns      []net.Conn
	commands   [][]any
	loadErr    string
	noLoad     bool
	skipSpawns int
	spawns     int
}

func newFakeMpv(t *testing.T, socketPath string) *fakeMpv {
	t.Helper()
	f := &fakeMpv{socketPath: socketPath}
	t.Cleanup(f.close)
	return f
}

// spawned binds the socket like a freshly started mpv would.
func (f *fakeMpv) spawned() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spawns++
	if f.skipSpawns > 0 {
		f.skipSpawns--
		return nil
	}
	if f.listener != nil {
		f.listener.Close()
	}
	l, err := net.Listen("unix", f.socketPath)
	if err != nil {
		return err
	}
	f.listener = l
	go f.acceptLoop(l)
	return nil
}

func (f *fakeMpv) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listener != nil {
		f.listener.Close()
	}
	f.dropLocked()
}

func (f *fakeMpv) dropLocked() {
	for _, c := range f.conns {
		c.Close()
	}
	f.conns = nil
}

// dropConnections closes every open connection while the socket keeps
// accepting new ones.
func (f *fakeMpv) dropConnections() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropLocked()
}

// neverBind makes the next n spawns leave the socket unbound.
func (f *fakeMpv) neverBind(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.skipSpawns = n
}

func (f *fakeMpv) Spawns() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.spawns
}

func (f *fakeMpv) acceptLoop(l net.Listener) {
	for {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		f.mu.Lock()
		f.conns = append(f.conns, conn)
		f.mu.Unlock()
		go f.serve(conn)
	}
}

func (f *fakeMpv) serve(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var cmd MpvCommand
		if err := json.Unmarshal(scanner.Bytes(), &cmd); err != nil {
			continue
		}

		f.mu.Lock()
		f.commands = append(f.commands, cmd.Command)
		loadErr, noLoad := f.loadErr, f.noLoad
		f.mu.Unlock()

		f.write(conn, fmt.Sprintf(`{"request_id":%d,"error":"success","data":null}`, cmd.RequestID))

		switch cmd.Command[0] {
		case "loadfile":
			switch {
			case loadErr != "":
				f.Emit(fmt.Sprintf(`{"event":"end-file","reason":"error","file_error":%q}`, loadErr))
			case !noLoad:
				f.Emit(`{"event":"start-file"}`)
				f.Emit(`{"event":"file-loaded"}`)
				f.Emit(`{"event":"playback-restart"}`)
			}
		case "seek":
			f.Emit(`{"event":"seek"}`)
			f.Emit(`{"event":"playback-restart"}`)
		}
	}
}

func (f *fakeMpv) failLoads(fileError string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadErr = fileError
}

func (f *fakeMpv) ignoreLoads() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.noLoad = true
}

func (f *fakeMpv) write(conn net.Conn, line string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conn.Write([]byte(line + "\n"))
}

// Emit broadcasts an event line to every open connection.
func (f *fakeMpv) Emit(line string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conns {
		c.Write([]byte(line + "\n"))
	}
}

func (f *fakeMpv) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for _, c := range f.commands {
		name := fmt.Sprint(c[0])
		switch name {
		case "observe_property":
			continue
		case "set_property":
			name += ":" + fmt.Sprint(c[1])
		}
		names = append(names, name)
	}
	return names
}

type eventRecorder struct {
	events  chan domain.Event
	handled bool
}

func newEventRecorder(handled bool) *eventRecorder {
	return &eventRecorder{events: make(chan domain.Event, 32), handled: handled}
}

func (r *eventRecorder) HandleEngineEvent(src ports.Engine, ev domain.Event) bool {
	r.events <- ev
	return r.handled
}

func (r *eventRecorder) next(t *testing.T) domain.Event {
	t.Helper()
	select {
	case ev := <-r.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for engine event")
		return domain.Event{}
	}
}

type fixture struct {
	engine *MpvEngine
	mpv    *fakeMpv
	events *eventRecorder
	media  string
}

func newFixture(t *testing.T, handled bool) *fixture {
	t.Helper()

	dir, err := os.MkdirTemp("", "pw")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	media := filepath.Join(dir, "clip.ogg")
	require.NoError(t, os.WriteFile(media, []byte("OggS"), 0644))

	socket := filepath.Join(dir, "mpv.sock")
	engine := NewMpvEngine(domain.MpvConfig{
		SocketPath:     socket,
		PrepareTimeout: 300 * time.Millisecond,
	})
	t.Cleanup(func() { engine.Release() })

	events := newEventRecorder(handled)
	engine.SetHandler(events)

	mpv := newFakeMpv(t, socket)
	mockExecCommand(t, func() {
		assert.NoError(t, mpv.spawned())
	})

	return &fixture{
		engine: engine,
		mpv:    mpv,
		events: events,
		media:  media,
	}
}

func TestMpvEngine_Lifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	require.NoError(t, f.engine.SetDataSource(ctx, domain.PathSource(f.media)))
	require.NoError(t, f.engine.Prepare(ctx))
	assert.Equal(t, domain.PreparedEvent(), f.events.next(t))

	require.NoError(t, f.engine.Start(ctx))
	playing, err := f.engine.IsPlaying(ctx)
	require.NoError(t, err)
	assert.True(t, playing)

	require.NoError(t, f.engine.Pause(ctx))
	require.NoError(t, f.engine.SeekTo(ctx, 30*time.Second))
	assert.Equal(t, domain.SeekCompleteEvent(), f.events.next(t))

	require.NoError(t, f.engine.Stop(ctx))
	require.NoError(t, f.engine.Reset(ctx))
	require.NoError(t, f.engine.Release())

	assert.Equal(t, []string{
		"set_property:pause",
		"set_property:http-header-fields",
		"loadfile",
		"set_property:pause",
		"set_property:pause",
		"seek",
		"stop",
	}, f.mpv.Commands())
}

func TestMpvEngine_PrepareAsync(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	require.NoError(t, f.engine.SetDataSource(ctx, domain.URISource("https://example.com/a.mp3", map[string]string{"X-Token": "t"}, nil)))
	require.NoError(t, f.engine.PrepareAsync(ctx))
	assert.Equal(t, domain.PreparedEvent(), f.events.next(t))
}

func TestMpvEngine_IllegalState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	require.ErrorIs(t, f.engine.Start(ctx), ports.ErrIllegalState)
	require.ErrorIs(t, f.engine.Prepare(ctx), ports.ErrIllegalState)

	require.NoError(t, f.engine.SetDataSource(ctx, domain.PathSource(f.media)))
	require.ErrorIs(t, f.engine.SetDataSource(ctx, domain.PathSource(f.media)), ports.ErrIllegalState)
	require.ErrorIs(t, f.engine.Pause(ctx), ports.ErrIllegalState)

	require.NoError(t, f.engine.Release())
	require.ErrorIs(t, f.engine.Start(ctx), ports.ErrReleased)
	_, err := f.engine.IsPlaying(ctx)
	require.ErrorIs(t, err, ports.ErrReleased)
	require.NoError(t, f.engine.Release(), "release is idempotent")
}

func TestMpvEngine_InvalidSource(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	require.Error(t, f.engine.SetDataSource(ctx, domain.PathSource("")))
	require.Error(t, f.engine.SetDataSource(ctx, domain.PathSource(filepath.Join(t.TempDir(), "missing.ogg"))))
	require.Error(t, f.engine.SetDataSource(ctx, domain.Source{Kind: domain.SourceKind(42)}))
}

func TestMpvEngine_LoadError(t *testing.T) {
	testCases := []struct {
		name          string
		handled       bool
		fileError     string
		expectedExtra int
		expectedNext  []domain.Event
	}{
		{
			name:          "Handled error",
			handled:       true,
			fileError:     "unrecognized file format",
			expectedExtra: domain.MediaErrorUnsupported,
		},
		{
			name:          "Unhandled error falls back to completion",
			handled:       false,
			fileError:     "loading failed",
			expectedExtra: domain.MediaErrorIO,
			expectedNext:  []domain.Event{domain.CompletionEvent()},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, tc.handled)
			f.mpv.failLoads(tc.fileError)

			require.NoError(t, f.engine.SetDataSource(ctx, domain.PathSource(f.media)))
			err := f.engine.Prepare(ctx)

			require.ErrorIs(t, err, errLoadFailed)
			assert.Equal(t, domain.ErrorEvent(domain.MediaErrorUnknown, tc.expectedExtra), f.events.next(t))
			for _, ev := range tc.expectedNext {
				assert.Equal(t, ev, f.events.next(t))
			}
			require.ErrorIs(t, f.engine.Start(ctx), ports.ErrIllegalState)
			require.NoError(t, f.engine.Reset(ctx), "reset recovers from the error state")
		})
	}
}

func TestMpvEngine_PrepareTimeout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.mpv.ignoreLoads()

	require.NoError(t, f.engine.SetDataSource(ctx, domain.PathSource(f.media)))
	require.ErrorIs(t, f.engine.Prepare(ctx), ErrPrepareTimeout)
}

func TestMpvEngine_PropertyEvents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	require.NoError(t, f.engine.SetDataSource(ctx, domain.PathSource(f.media)))
	require.NoError(t, f.engine.Prepare(ctx))
	f.events.next(t)
	require.NoError(t, f.engine.Start(ctx))

	f.mpv.Emit(fmt.Sprintf(`{"event":"property-change","id":%d,"name":"cache-buffering-state","data":40}`, observeBufferingID))
	assert.Equal(t, domain.BufferingEvent(40), f.events.next(t))

	f.mpv.Emit(fmt.Sprintf(`{"event":"property-change","id":%d,"name":"paused-for-cache","data":true}`, observeCacheWaitID))
	assert.Equal(t, domain.InfoEvent(domain.InfoBufferingStart, 0), f.events.next(t))

	f.mpv.Emit(fmt.Sprintf(`{"event":"property-change","id":%d,"name":"paused-for-cache","data":false}`, observeCacheWaitID))
	assert.Equal(t, domain.InfoEvent(domain.InfoBufferingEnd, 0), f.events.next(t))

	f.mpv.Emit(fmt.Sprintf(`{"event":"property-change","id":%d,"name":"eof-reached","data":true}`, observeEOFID))
	assert.Equal(t, domain.CompletionEvent(), f.events.next(t))

	playing, err := f.engine.IsPlaying(ctx)
	require.NoError(t, err)
	assert.False(t, playing)

	require.NoError(t, f.engine.Start(ctx), "start after completion replays from the beginning")
}

func TestMpvEngine_WithPlayer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	p := player.New(f.engine)

	prepared := make(chan struct{}, 1)
	p.Subscribe(player.ListenerFunc(func(ev domain.Event) bool {
		prepared <- struct{}{}
		return true
	}), domain.EventPrepared)

	require.NoError(t, p.SetPath(ctx, f.media))
	assert.True(t, player.IsInitialized(p))
	require.NoError(t, p.Prepare(ctx))

	select {
	case <-prepared:
	case <-time.After(2 * time.Second):
		t.Fatal("prepared event was not delivered")
	}
	assert.True(t, player.IsReady(p))

	require.NoError(t, p.Start(ctx))
	assert.Equal(t, domain.StateStarted, p.State())

	require.ErrorIs(t, p.SetPath(ctx, f.media), ports.ErrIllegalState)
	assert.Equal(t, domain.StateStarted, p.State())

	require.NoError(t, p.Release())
	assert.Equal(t, domain.StateEnded, p.State())
}

func TestMpvEngine_StaleSocketFile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	require.NoError(t, os.WriteFile(f.engine.cfg.SocketPath, nil, 0600))

	require.NoError(t, f.engine.SetDataSource(ctx, domain.PathSource(f.media)))
	require.NoError(t, f.engine.PrepareAsync(ctx))
	assert.Equal(t, domain.PreparedEvent(), f.events.next(t))
}

func TestMpvEngine_RestartsWhenSocketNeverAppears(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.mpv.neverBind(1)

	require.NoError(t, f.engine.SetDataSource(ctx, domain.PathSource(f.media)))
	require.Error(t, f.engine.PrepareAsync(ctx))
	f.engine.mu.Lock()
	assert.Nil(t, f.engine.cmd, "a process without a usable socket is not kept")
	f.engine.mu.Unlock()

	require.NoError(t, f.engine.Reset(ctx))
	require.NoError(t, f.engine.SetDataSource(ctx, domain.PathSource(f.media)))
	require.NoError(t, f.engine.Prepare(ctx))
	assert.Equal(t, domain.PreparedEvent(), f.events.next(t))
	assert.Equal(t, 2, f.mpv.Spawns())
}

func TestMpvEngine_ReconnectsEventStream(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	require.NoError(t, f.engine.SetDataSource(ctx, domain.PathSource(f.media)))
	require.NoError(t, f.engine.Prepare(ctx))
	assert.Equal(t, domain.PreparedEvent(), f.events.next(t))

	f.mpv.dropConnections()
	assert.Equal(t, domain.ErrorEvent(domain.MediaErrorServerDied, 0), f.events.next(t))

	require.NoError(t, f.engine.Reset(ctx))
	require.NoError(t, f.engine.SetDataSource(ctx, domain.PathSource(f.media)))
	require.NoError(t, f.engine.Prepare(ctx))
	assert.Equal(t, domain.PreparedEvent(), f.events.next(t))
	assert.Equal(t, 1, f.mpv.Spawns(), "the running process is reused")
}

func TestHeaderFields(t *testing.T) {
	fields := headerFields(
		map[string]string{"User-Agent": "playerwrap", "Accept": "*/*"},
		[]*http.Cookie{{Name: "a", Value: "1"}, {Name: "b", Value: "2"}},
	)

	assert.Equal(t, []string{
		"Accept: */*",
		"User-Agent: playerwrap",
		"Cookie: a=1; b=2",
	}, fields)
	assert.Empty(t, headerFields(nil, nil))
}
