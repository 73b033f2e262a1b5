package engine

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gabrielcapilla/playerwrap/internal/domain"
	"github.com/gabrielcapilla/playerwrap/internal/logger"
	"github.com/gabrielcapilla/playerwrap/internal/ports"
)

// sourceServer exposes file descriptor and reader sources to the mpv
// subprocess over a loopback HTTP listener. Range requests are served so
// mpv can seek.
type sourceServer struct {
	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
	sections map[string]*io.SectionReader
}

func newSourceServer() *sourceServer {
	return &sourceServer{sections: make(map[string]*io.SectionReader)}
}

func (s *sourceServer) start() error {
	if s.listener != nil {
		return nil
	}
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("could not start source server: %w", err)
	}
	s.listener = l
	s.server = &http.Server{Handler: s, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := s.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error().Err(err).Msg("Source server stopped")
		}
	}()
	logger.Log.Debug().Str("addr", l.Addr().String()).Msg("Source server listening")
	return nil
}

func sectionFor(src domain.Source) (*io.SectionReader, error) {
	switch src.Kind {
	case domain.SourceFD:
		length := src.Length
		if length < 0 {
			info, err := src.File.Stat()
			if err != nil {
				return nil, fmt.Errorf("could not stat %s: %w", src.File.Name(), err)
			}
			length = info.Size() - src.Offset
		}
		return io.NewSectionReader(src.File, src.Offset, length), nil
	case domain.SourceReader:
		return io.NewSectionReader(src.Reader, 0, src.Size), nil
	default:
		return nil, fmt.Errorf("%s: %w", src.Kind, ports.ErrUnsupportedSource)
	}
}

// publish registers src and returns the URL mpv should open.
func (s *sourceServer) publish(src domain.Source) (string, error) {
	section, err := sectionFor(src)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.start(); err != nil {
		return "", err
	}

	var raw [12]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("could not generate source token: %w", err)
	}
	token := hex.EncodeToString(raw[:])
	s.sections[token] = section
	return fmt.Sprintf("http://%s/%s", s.listener.Addr(), token), nil
}

func (s *sourceServer) unpublish(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sections, url[strings.LastIndex(url, "/")+1:])
}

func (s *sourceServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	section, ok := s.sections[strings.TrimPrefix(r.URL.Path, "/")]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	// Every request gets its own cursor over the shared ReaderAt.
	rs := io.NewSectionReader(section, 0, section.Size())
	http.ServeContent(w, r, "", time.Time{}, rs)
}

func (s *sourceServer) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.sections)
	if s.server == nil {
		return nil
	}
	err := s.server.Close()
	s.server = nil
	s.listener = nil
	return err
}
