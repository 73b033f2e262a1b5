package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/buger/jsonparser"

	"github.com/gabrielcapilla/playerwrap/internal/domain"
	"github.com/gabrielcapilla/playerwrap/internal/logger"
)

const (
	observeBufferingID = 1
	observeCacheWaitID = 2
	observeEOFID       = 3
)

type MpvCommand struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id,omitempty"`
}

type MpvResponse struct {
	RequestID int64
	Error     string
	Data      []byte
	DataType  jsonparser.ValueType
}

func command(args ...any) MpvCommand {
	return MpvCommand{Command: args}
}

// sendCommands writes cmds on a fresh connection and waits for one reply
// per command. Events interleaved with replies are skipped.
func (m *MpvEngine) sendCommands(ctx context.Context, cmds ...MpvCommand) ([]MpvResponse, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", m.cfg.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("could not connect to mpv socket: %w", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(socketReadDeadline)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	conn.SetDeadline(deadline)

	pending := make(map[int64]int, len(cmds))
	encoder := json.NewEncoder(conn)
	for i := range cmds {
		cmds[i].RequestID = m.reqID.Add(1)
		pending[cmds[i].RequestID] = i
		if err := encoder.Encode(cmds[i]); err != nil {
			return nil, fmt.Errorf("error sending mpv command: %w", err)
		}
	}

	responses := make([]MpvResponse, len(cmds))
	scanner := bufio.NewScanner(conn)
	for len(pending) > 0 {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return nil, fmt.Errorf("error reading from mpv socket: %w", err)
			}
			return nil, errors.New("mpv closed the connection before replying")
		}

		resp, ok := parseResponse(scanner.Bytes())
		if !ok {
			continue
		}
		idx, ok := pending[resp.RequestID]
		if !ok {
			continue
		}
		delete(pending, resp.RequestID)
		responses[idx] = resp
	}

	for i, resp := range responses {
		if resp.Error != "success" {
			return responses, fmt.Errorf("mpv rejected %v: %s", cmds[i].Command[0], resp.Error)
		}
	}
	return responses, nil
}

func parseResponse(line []byte) (MpvResponse, bool) {
	if _, err := jsonparser.GetString(line, "event"); err == nil {
		return MpvResponse{}, false
	}
	id, err := jsonparser.GetInt(line, "request_id")
	if err != nil || id == 0 {
		return MpvResponse{}, false
	}
	resp := MpvResponse{RequestID: id}
	resp.Error, _ = jsonparser.GetString(line, "error")
	resp.Data, resp.DataType, _, _ = jsonparser.Get(line, "data")
	return resp, true
}

// headerFields renders headers and cookies the way mpv's
// http-header-fields option expects them.
func headerFields(headers map[string]string, cookies []*http.Cookie) []string {
	fields := make([]string, 0, len(headers)+1)
	for k, v := range headers {
		fields = append(fields, k+": "+v)
	}
	sort.Strings(fields)
	if len(cookies) > 0 {
		parts := make([]string, 0, len(cookies))
		for _, c := range cookies {
			parts = append(parts, c.Name+"="+c.Value)
		}
		fields = append(fields, "Cookie: "+strings.Join(parts, "; "))
	}
	return fields
}

// connectEvents opens the long-lived connection that carries mpv events
// and property changes. Callers hold m.mu.
func (m *MpvEngine) connectEvents() error {
	if m.events != nil {
		m.events.Close()
		m.events = nil
	}

	conn, err := net.Dial("unix", m.cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("could not connect to mpv socket: %w", err)
	}

	encoder := json.NewEncoder(conn)
	observe := []MpvCommand{
		{Command: []any{"observe_property", observeBufferingID, "cache-buffering-state"}},
		{Command: []any{"observe_property", observeCacheWaitID, "paused-for-cache"}},
		{Command: []any{"observe_property", observeEOFID, "eof-reached"}},
	}
	for _, cmd := range observe {
		if err := encoder.Encode(cmd); err != nil {
			conn.Close()
			return fmt.Errorf("error subscribing to mpv properties: %w", err)
		}
	}

	m.events = conn
	go m.readEvents(conn)
	return nil
}

func (m *MpvEngine) readEvents(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Bytes()
		name, err := jsonparser.GetString(line, "event")
		if err != nil {
			continue
		}
		m.handleEvent(name, line)
	}

	m.mu.Lock()
	lost := m.events == conn
	if lost {
		m.events = nil
		m.failLocked(errors.New("mpv connection lost"))
	}
	m.mu.Unlock()

	if lost {
		logger.Log.Error().Err(scanner.Err()).Msg("mpv event stream ended unexpectedly")
		m.reportError(domain.MediaErrorServerDied, 0)
	}
}
