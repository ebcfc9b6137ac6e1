package api

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	defaultSourceTitle     = "Video"
	defaultSourceRelevance = "Relevant"
)

// Answer is the normalized result of a chat query.
type Answer struct {
	Text    string
	Sources []Source
	Context []string
}

// Source is a citation attached to an answer.
type Source struct {
	VideoID    string
	VideoTitle string
	Timestamp  string
	Relevance  string
}

type sourcePayload struct {
	VideoID    string `json:"video_id"`
	ID         string `json:"id"`
	VideoTitle string `json:"video_title"`
	Title      string `json:"title"`
	Timestamp  string `json:"timestamp"`
	Relevance  string `json:"relevance"`
}

// DecodeAnswer turns a query response body into an Answer. The backend schema
// has drifted over time, so decoding is deliberately best-effort: a bare JSON
// string is the answer verbatim; an object yields its "response" or "answer"
// field; anything else falls back to a dump of the whole payload. Only a body
// that is not JSON at all is a decode failure.
func DecodeAnswer(body []byte) (*Answer, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil, fmt.Errorf("empty query response")
	}

	var text string
	if err := json.Unmarshal([]byte(trimmed), &text); err == nil {
		return &Answer{Text: text}, nil
	}

	var payload struct {
		Response json.RawMessage `json:"response"`
		Answer   json.RawMessage `json:"answer"`
		Sources  []sourcePayload `json:"sources"`
		Context  json.RawMessage `json:"context"`
	}
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}

	answer := &Answer{
		Text:    answerText(payload.Response, payload.Answer, trimmed),
		Sources: normalizeSources(payload.Sources),
		Context: normalizeContext(payload.Context),
	}
	return answer, nil
}

func answerText(response, alt json.RawMessage, whole string) string {
	if s, ok := rawString(response); ok {
		return s
	}
	if s, ok := rawString(alt); ok {
		return s
	}
	return whole
}

func rawString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && strings.TrimSpace(s) != "" {
		return s, true
	}
	return "", false
}

func normalizeSources(entries []sourcePayload) []Source {
	if len(entries) == 0 {
		return nil
	}
	sources := make([]Source, 0, len(entries))
	for _, entry := range entries {
		source := Source{
			VideoID:    firstNonEmpty(entry.VideoID, entry.ID),
			VideoTitle: firstNonEmpty(entry.VideoTitle, entry.Title, defaultSourceTitle),
			Timestamp:  entry.Timestamp,
			Relevance:  firstNonEmpty(entry.Relevance, defaultSourceRelevance),
		}
		sources = append(sources, source)
	}
	return sources
}

// normalizeContext accepts either a single snippet or a list of snippets.
func normalizeContext(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		if strings.TrimSpace(one) == "" {
			return nil
		}
		return []string{one}
	}
	return nil
}
