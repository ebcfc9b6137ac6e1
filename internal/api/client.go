package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

const (
	defaultRequestTimeout = 45 * time.Second
	sessionHeader         = "X-Session-ID"
)

// Client talks to the AutoVoyce backend. All business logic (video discovery,
// transcript extraction, embeddings, retrieval, speech) lives server-side;
// this client only shapes requests and tolerates loosely-shaped responses.
type Client struct {
	base string
	http *http.Client
	// SSE connections must outlive the request timeout, so streaming uses a
	// dedicated client that shares the cookie jar but has no deadline.
	stream *http.Client
}

// New builds a client for the given base URL. A nil httpClient gets a default
// with a cookie jar so the backend's session cookie is mirrored automatically.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		jar, _ := cookiejar.New(nil)
		httpClient = &http.Client{Timeout: defaultRequestTimeout, Jar: jar}
	}
	streamClient := &http.Client{Jar: httpClient.Jar}
	return &Client{
		base:   strings.TrimRight(baseURL, "/"),
		http:   httpClient,
		stream: streamClient,
	}
}

// SeedSession plants a previously persisted session id into the cookie jar,
// so the first request after a restart carries the same cookie a Set-Cookie
// response would have left behind. A blank id or jarless client is a no-op.
func (c *Client) SeedSession(id string) {
	if id == "" || c.http.Jar == nil {
		return
	}
	base, err := url.Parse(c.base)
	if err != nil {
		return
	}
	c.http.Jar.SetCookies(base, []*http.Cookie{{Name: "session_id", Value: id, Path: "/"}})
}

// Video is one candidate surfaced by a research query, before processing.
type Video struct {
	ID            string
	Title         string
	Channel       string
	Duration      string
	Thumbnail     string
	HasTranscript bool
}

// SearchResult is the normalized response of a video search.
type SearchResult struct {
	SessionID string
	Message   string
	Videos    []Video
}

type videoPayload struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Name          string `json:"name"`
	Channel       string `json:"channel"`
	ChannelName   string `json:"channel_name"`
	Duration      string `json:"duration"`
	Thumbnail     string `json:"thumbnail"`
	ThumbnailURL  string `json:"thumbnail_url"`
	HasTranscript *bool  `json:"has_transcript"`
}

// Search submits a research topic and returns the candidate videos the
// backend surfaced, along with the session identifier minted for this run.
func (c *Client) Search(ctx context.Context, query string) (*SearchResult, error) {
	body, err := c.postJSON(ctx, "/upload", map[string]any{"user_query": query})
	if err != nil {
		return nil, err
	}
	var payload struct {
		SessionID string         `json:"session_id"`
		Message   string         `json:"message"`
		Videos    []videoPayload `json:"videos"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	result := &SearchResult{
		SessionID: payload.SessionID,
		Message:   payload.Message,
		Videos:    make([]Video, 0, len(payload.Videos)),
	}
	for i, v := range payload.Videos {
		result.Videos = append(result.Videos, normalizeVideo(v, i))
	}
	return result, nil
}

func normalizeVideo(v videoPayload, index int) Video {
	video := Video{
		ID:            v.ID,
		Title:         firstNonEmpty(v.Title, v.Name),
		Channel:       firstNonEmpty(v.Channel, v.ChannelName, "Unknown Channel"),
		Duration:      firstNonEmpty(v.Duration, "N/A"),
		Thumbnail:     firstNonEmpty(v.Thumbnail, v.ThumbnailURL),
		HasTranscript: v.HasTranscript == nil || *v.HasTranscript,
	}
	if video.ID == "" {
		video.ID = fmt.Sprintf("video-%d", index+1)
	}
	if video.Title == "" {
		video.Title = fmt.Sprintf("Video %d", index+1)
	}
	return video
}

// ProcessAck is the immediate acknowledgement of a processing request; actual
// progress arrives over the status stream.
type ProcessAck struct {
	SessionID string
	Message   string
}

// Process asks the backend to ingest the selected videos under the given
// session. The session id travels in the body; the cookie jar carries it too.
func (c *Client) Process(ctx context.Context, videoIDs []string, sessionID string) (*ProcessAck, error) {
	body, err := c.postJSON(ctx, "/upload/process", map[string]any{
		"video_ids":  videoIDs,
		"session_id": sessionID,
	})
	if err != nil {
		return nil, err
	}
	var payload struct {
		SessionID string `json:"session_id"`
		Message   string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode process response: %w", err)
	}
	return &ProcessAck{SessionID: payload.SessionID, Message: payload.Message}, nil
}

// Query sends one question against the ingested videos and returns the
// decoded answer. The session identifier is attached as a side-channel header.
func (c *Client) Query(ctx context.Context, question, sessionID string) (*Answer, error) {
	buf, err := json.Marshal(map[string]any{"user_query": question})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/query", bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(sessionHeader, sessionID)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, errorFromResponse(resp)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	answer, err := DecodeAnswer(body)
	if err != nil {
		return nil, err
	}
	return answer, nil
}

// ScribeToken fetches a single-use token for the realtime transcription
// service. The terminal client does not capture audio itself; the token is
// exposed for external tooling.
func (c *Client) ScribeToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/scribe-token", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", errorFromResponse(resp)
	}
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode scribe token: %w", err)
	}
	if payload.Token == "" {
		return "", fmt.Errorf("scribe token missing from response")
	}
	return payload.Token, nil
}

// Synthesize converts text to speech and returns the raw audio bytes (MP3).
// An empty voiceID lets the backend pick its default voice.
func (c *Client) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	payload := map[string]any{"text": text}
	if voiceID != "" {
		payload["voice_id"] = voiceID
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/tts", bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, errorFromResponse(resp)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, errorFromResponse(resp)
	}
	return io.ReadAll(resp.Body)
}

// errorFromResponse surfaces the backend's "detail" field when present,
// falling back to the HTTP status plus a clipped body.
func errorFromResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != "" {
		return fmt.Errorf("backend error: %s (%s)", payload.Detail, resp.Status)
	}
	return fmt.Errorf("backend error: %s (%s)", resp.Status, strings.TrimSpace(string(body)))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
