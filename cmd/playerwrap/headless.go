package main

import (
	"context"
	"fmt"
	"io"

	"github.com/gabrielcapilla/playerwrap/internal/domain"
	"github.com/gabrielcapilla/playerwrap/internal/logger"
	"github.com/gabrielcapilla/playerwrap/internal/player"
)

// playHeadless prepares src, starts it once the engine reports it is
// prepared and prints every event to out until playback ends or ctx is
// cancelled.
func playHeadless(ctx context.Context, p *player.Player, src domain.Source, out io.Writer) error {
	done := make(chan error, 1)
	finish := func(err error) {
		select {
		case done <- err:
		default:
		}
	}

	p.Subscribe(player.ListenerFunc(func(ev domain.Event) bool {
		fmt.Fprintf(out, "%-14s %s\n", p.State(), ev)
		switch ev.Kind {
		case domain.EventPrepared:
			if err := p.Start(ctx); err != nil {
				finish(err)
			} else {
				logger.Log.Info().Str("source", src.Location()).Msg("Headless playback started")
			}
		case domain.EventCompletion:
			finish(nil)
		case domain.EventError:
			finish(fmt.Errorf("playback failed: %s", ev))
			return true
		}
		return false
	}), domain.EventPrepared, domain.EventError, domain.EventCompletion, domain.EventInfo, domain.EventSeekComplete)

	if err := p.SetDataSource(ctx, src); err != nil {
		return err
	}
	if err := p.PrepareAsync(ctx); err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		fmt.Fprintln(out, "interrupted")
		// Reset is accepted in every state, including while preparing.
		return p.Reset(context.Background())
	}
}
