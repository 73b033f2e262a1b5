package engine

import (
	"errors"

	"github.com/buger/jsonparser"

	"github.com/gabrielcapilla/playerwrap/internal/domain"
	"github.com/gabrielcapilla/playerwrap/internal/logger"
)

var errLoadFailed = errors.New("mpv failed to load the source")

func (m *MpvEngine) handleEvent(name string, line []byte) {
	switch name {
	case "file-loaded":
		m.onFileLoaded()
	case "end-file":
		reason, _ := jsonparser.GetString(line, "reason")
		if reason != "error" {
			return
		}
		fileErr, _ := jsonparser.GetString(line, "file_error")
		m.onLoadError(fileErr)
	case "playback-restart":
		m.mu.Lock()
		seeking := m.seeking
		m.seeking = false
		m.mu.Unlock()
		if seeking {
			m.dispatch(domain.SeekCompleteEvent())
		}
	case "video-reconfig":
		m.mu.Lock()
		first := !m.rendered && m.cfg.Video
		m.rendered = true
		m.mu.Unlock()
		if first {
			m.dispatch(domain.InfoEvent(domain.InfoVideoRenderingStart, 0))
		}
	case "property-change":
		m.onPropertyChange(line)
	default:
		logger.Log.Debug().Str("event", name).Msg("Ignoring mpv event")
	}
}

func (m *MpvEngine) onFileLoaded() {
	m.mu.Lock()
	if m.state != enginePreparing {
		m.mu.Unlock()
		return
	}
	m.state = enginePrepared
	if m.loaded != nil {
		m.loaded <- nil
		m.loaded = nil
	}
	m.mu.Unlock()

	m.dispatch(domain.PreparedEvent())
}

func (m *MpvEngine) onLoadError(fileErr string) {
	m.mu.Lock()
	if m.state == engineReleased {
		m.mu.Unlock()
		return
	}
	m.failLocked(errLoadFailed)
	m.mu.Unlock()

	logger.Log.Warn().Str("file_error", fileErr).Msg("mpv could not load source")
	m.reportError(domain.MediaErrorUnknown, extraForFileError(fileErr))
}

func (m *MpvEngine) onPropertyChange(line []byte) {
	id, err := jsonparser.GetInt(line, "id")
	if err != nil {
		return
	}

	switch id {
	case observeBufferingID:
		percent, err := jsonparser.GetInt(line, "data")
		if err != nil {
			return
		}
		m.dispatch(domain.BufferingEvent(int(percent)))
	case observeCacheWaitID:
		waiting, err := jsonparser.GetBoolean(line, "data")
		if err != nil {
			return
		}
		what := domain.InfoBufferingEnd
		if waiting {
			what = domain.InfoBufferingStart
		}
		m.dispatch(domain.InfoEvent(what, 0))
	case observeEOFID:
		eof, err := jsonparser.GetBoolean(line, "data")
		if err != nil || !eof {
			return
		}
		m.mu.Lock()
		playing := m.state == engineStarted || m.state == enginePaused
		if playing {
			m.state = engineCompleted
		}
		m.mu.Unlock()
		if playing {
			m.dispatch(domain.CompletionEvent())
		}
	}
}

// failLocked moves the engine to its error state and wakes a pending
// Prepare. Callers hold m.mu.
func (m *MpvEngine) failLocked(err error) {
	if m.state == engineReleased {
		return
	}
	m.state = engineError
	if m.loaded != nil {
		m.loaded <- err
		m.loaded = nil
	}
}

// reportError dispatches an error event. When nobody handles it the engine
// falls back to signalling completion.
func (m *MpvEngine) reportError(what, extra int) {
	if !m.dispatch(domain.ErrorEvent(what, extra)) {
		m.dispatch(domain.CompletionEvent())
	}
}

func extraForFileError(fileErr string) int {
	switch fileErr {
	case "unrecognized file format", "no audio or video data played":
		return domain.MediaErrorUnsupported
	case "loading failed", "network error":
		return domain.MediaErrorIO
	default:
		return domain.MediaErrorMalformed
	}
}
