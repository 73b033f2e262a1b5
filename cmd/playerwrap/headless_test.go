package main

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/gabrielcapilla/playerwrap/internal/domain"
	"github.com/gabrielcapilla/playerwrap/internal/player"
	"github.com/gabrielcapilla/playerwrap/internal/ports/enginetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// runHeadless plays a path source in the background and waits until the
// engine has been asked to prepare it.
func runHeadless(t *testing.T, ctx context.Context, engine *enginetest.Engine) (<-chan error, *syncBuffer) {
	t.Helper()
	out := &syncBuffer{}
	p := player.New(engine)
	result := make(chan error, 1)
	go func() {
		result <- playHeadless(ctx, p, domain.PathSource("/music/a.ogg"), out)
	}()

	require.Eventually(t, func() bool {
		return slices.Contains(engine.Calls(), "PrepareAsync")
	}, 2*time.Second, 10*time.Millisecond)
	return result, out
}

func waitResult(t *testing.T, result <-chan error) error {
	t.Helper()
	select {
	case err := <-result:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("headless playback did not return")
		return nil
	}
}

func TestPlayHeadless_Completes(t *testing.T) {
	engine := enginetest.New()
	result, out := runHeadless(t, context.Background(), engine)

	engine.Fire(domain.PreparedEvent())
	engine.Fire(domain.CompletionEvent())

	require.NoError(t, waitResult(t, result))
	assert.Equal(t, []string{"SetDataSource", "PrepareAsync", "Start"}, engine.Calls())
	assert.Contains(t, out.String(), "completion")
}

func TestPlayHeadless_StartFailure(t *testing.T) {
	engine := enginetest.New()
	startErr := errors.New("no audio device")
	engine.FailNext("Start", startErr)
	result, _ := runHeadless(t, context.Background(), engine)

	engine.Fire(domain.PreparedEvent())

	require.ErrorIs(t, waitResult(t, result), startErr)
}

func TestPlayHeadless_InterruptWhilePreparing(t *testing.T) {
	engine := enginetest.New()
	ctx, cancel := context.WithCancel(context.Background())
	result, out := runHeadless(t, ctx, engine)

	cancel()

	require.NoError(t, waitResult(t, result))
	assert.Equal(t, []string{"SetDataSource", "PrepareAsync", "Reset"}, engine.Calls())
	assert.Contains(t, out.String(), "interrupted")
}

func TestPlayHeadless_ErrorEvent(t *testing.T) {
	engine := enginetest.New()
	result, _ := runHeadless(t, context.Background(), engine)

	handled := engine.Fire(domain.ErrorEvent(domain.MediaErrorUnknown, domain.MediaErrorIO))

	assert.True(t, handled)
	require.ErrorContains(t, waitResult(t, result), "playback failed")
}
