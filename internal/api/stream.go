package api

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
)

// maxEventSize bounds a single SSE line; progress messages are short but the
// default bufio limit is too small to trust blindly.
const maxEventSize = 256 * 1024

// ProgressEvent is one server-push message from the ingestion status stream.
type ProgressEvent struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp string    `json:"timestamp"`
	Data      EventData `json:"data"`
}

// EventData carries the optional structured part of a progress event.
type EventData struct {
	VideoID     string `json:"video_id"`
	VideoNumber int    `json:"video_number"`
	TotalVideos int    `json:"total_videos"`
	Error       string `json:"error"`
}

// StatusStream is an open server-push connection scoped to one ingestion
// session. Events arrive on Events in emission order; the channel closes when
// the server finishes or the transport fails. There is no automatic
// reconnection: a dropped stream is terminal and the user must restart
// ingestion.
type StatusStream struct {
	events chan ProgressEvent
	body   io.ReadCloser
	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once

	mu  sync.Mutex
	err error
}

// OpenStatus connects to the ingestion status stream for a session.
func (c *Client) OpenStatus(ctx context.Context, sessionID string) (*StatusStream, error) {
	ctx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/upload/status/"+sessionID, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.stream.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode >= 400 {
		err := errorFromResponse(resp)
		resp.Body.Close()
		cancel()
		return nil, err
	}

	s := &StatusStream{
		events: make(chan ProgressEvent, 16),
		body:   resp.Body,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.read()
	return s, nil
}

// Events returns the stream's event channel. It closes on completion or
// transport failure; check Err afterwards to tell the two apart.
func (s *StatusStream) Events() <-chan ProgressEvent {
	return s.events
}

// Err reports the transport error that ended the stream, if any.
func (s *StatusStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close tears the connection down. Safe to call more than once and
// concurrently with event delivery.
func (s *StatusStream) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.cancel()
		s.body.Close()
	})
}

func (s *StatusStream) read() {
	defer close(s.events)
	defer s.Close()

	scanner := bufio.NewScanner(s.body)
	scanner.Buffer(make([]byte, 0, 4096), maxEventSize)
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			// Blank line terminates an event.
			if data.Len() > 0 {
				s.dispatch(data.String())
				data.Reset()
			}
		case strings.HasPrefix(line, ":"):
			// Comment, e.g. the server's keepalive ticks.
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		default:
			// The backend only ever sends data lines; ignore other fields.
		}
	}
	if data.Len() > 0 {
		s.dispatch(data.String())
	}
	if err := scanner.Err(); err != nil && !isClosedErr(err) {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
	}
}

func (s *StatusStream) dispatch(payload string) {
	var event ProgressEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		// Tolerate malformed frames rather than killing the stream.
		return
	}
	select {
	case s.events <- event:
	case <-s.done:
	}
}

func isClosedErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "context canceled") ||
		strings.Contains(msg, "http: read on closed response body")
}
