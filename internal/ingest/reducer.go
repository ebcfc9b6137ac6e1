package ingest

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/autovoyce/voyce/internal/api"
)

// Step is the top-level position in the ingestion wizard.
type Step int

const (
	StepInput Step = iota
	StepPreview
	StepProcessing
	StepComplete
)

// VideoStatus tracks one candidate through the pipeline.
type VideoStatus string

const (
	StatusPending    VideoStatus = "pending"
	StatusFetching   VideoStatus = "fetching"
	StatusProcessing VideoStatus = "processing"
	StatusReady      VideoStatus = "ready"
	StatusError      VideoStatus = "error"
)

// Severity classifies a log entry for display.
type Severity string

const (
	SeveritySuccess  Severity = "success"
	SeverityProgress Severity = "progress"
	SeverityError    Severity = "error"
	SeverityInfo     Severity = "info"
)

// Candidate is a video surfaced by a search, pending user selection.
type Candidate struct {
	Video  api.Video
	Status VideoStatus
}

// LogEntry is one timestamped progress line. Entries are append-only and are
// cleared only when a new ingestion run starts.
type LogEntry struct {
	ID      string
	Message string
	At      time.Time
	Level   Severity
}

// State is the full client-observed ingestion lifecycle. Transitions are pure:
// every method and Apply return a new State, so the mapping from server-push
// events to state changes is testable without a live connection.
type State struct {
	Step       Step
	Candidates []Candidate
	Selected   map[string]bool
	Logs       []LogEntry
}

// NewState starts at the input step with nothing loaded.
func NewState() State {
	return State{Step: StepInput, Selected: map[string]bool{}}
}

func (s State) clone() State {
	next := State{
		Step:       s.Step,
		Candidates: append([]Candidate(nil), s.Candidates...),
		Selected:   make(map[string]bool, len(s.Selected)),
		Logs:       append([]LogEntry(nil), s.Logs...),
	}
	for id, on := range s.Selected {
		next.Selected[id] = on
	}
	return next
}

// BeginSearch discards the previous run's logs. Candidates stay visible until
// the new results land so the preview does not flicker empty on retry.
func (s State) BeginSearch() State {
	next := s.clone()
	next.Logs = nil
	return next
}

// WithSearchResults replaces the candidate set with exactly the new response's
// videos, all pending and all pre-selected, and moves to the preview step.
func (s State) WithSearchResults(videos []api.Video) State {
	next := s.clone()
	next.Step = StepPreview
	next.Candidates = make([]Candidate, 0, len(videos))
	next.Selected = make(map[string]bool, len(videos))
	for _, video := range videos {
		next.Candidates = append(next.Candidates, Candidate{Video: video, Status: StatusPending})
		next.Selected[video.ID] = true
	}
	return next
}

// ToggleSelected flips one candidate's selection.
func (s State) ToggleSelected(id string) State {
	next := s.clone()
	next.Selected[id] = !next.Selected[id]
	return next
}

// SelectedIDs returns the selected candidate ids in candidate order.
func (s State) SelectedIDs() []string {
	ids := make([]string, 0, len(s.Candidates))
	for _, candidate := range s.Candidates {
		if s.Selected[candidate.Video.ID] {
			ids = append(ids, candidate.Video.ID)
		}
	}
	return ids
}

// SelectedCount reports how many candidates are selected.
func (s State) SelectedCount() int {
	return len(s.SelectedIDs())
}

// MarkSubmitted optimistically moves every selected candidate to processing
// and advances to the processing step.
func (s State) MarkSubmitted() State {
	next := s.clone()
	next.Step = StepProcessing
	for i := range next.Candidates {
		if next.Selected[next.Candidates[i].Video.ID] {
			next.Candidates[i].Status = StatusProcessing
		}
	}
	return next
}

// MarkSubmitFailed marks every selected candidate errored. The step stays at
// processing with no stream attached, a degraded terminal condition the user
// escapes by restarting ingestion.
func (s State) MarkSubmitFailed() State {
	next := s.clone()
	next.Step = StepProcessing
	for i := range next.Candidates {
		if next.Selected[next.Candidates[i].Video.ID] {
			next.Candidates[i].Status = StatusError
		}
	}
	return next
}

// Reset returns to the input step, clearing candidates, selection, and logs.
// The persisted session identifier is intentionally left alone so a prior
// successful ingestion is not orphaned.
func (s State) Reset() State {
	return NewState()
}

// AppendLog records a progress line.
func (s State) AppendLog(message string, level Severity) State {
	next := s.clone()
	next.Logs = append(next.Logs, LogEntry{
		ID:      uuid.NewString(),
		Message: message,
		At:      time.Now(),
		Level:   level,
	})
	return next
}

// Apply folds one server-push event into the state. Every event appends a log
// entry; events naming a video update that candidate's status; only the
// distinguished processing_complete event changes the top-level step.
func Apply(s State, event api.ProgressEvent) State {
	next := s.clone()

	message := event.Message
	if message == "" {
		message = event.Type
	}
	next.Logs = append(next.Logs, LogEntry{
		ID:      uuid.NewString(),
		Message: message,
		At:      time.Now(),
		Level:   SeverityFor(event.Type),
	})

	if id := event.Data.VideoID; id != "" {
		if status, ok := statusForEvent(event.Type); ok {
			for i := range next.Candidates {
				if next.Candidates[i].Video.ID == id {
					next.Candidates[i].Status = status
					break
				}
			}
		}
	}

	if event.Type == "processing_complete" {
		next.Step = StepComplete
	}
	return next
}

// SeverityFor derives a log severity from an event kind.
func SeverityFor(eventType string) Severity {
	switch {
	case strings.HasSuffix(eventType, "_error"):
		return SeverityError
	case strings.HasSuffix(eventType, "_complete"),
		strings.HasSuffix(eventType, "_processed"),
		eventType == "chunks_uploaded":
		return SeveritySuccess
	case strings.HasSuffix(eventType, "_started"),
		strings.HasSuffix(eventType, "_uploading"):
		return SeverityProgress
	default:
		return SeverityInfo
	}
}

func statusForEvent(eventType string) (VideoStatus, bool) {
	switch {
	case strings.HasSuffix(eventType, "_error"):
		return StatusError, true
	case strings.HasSuffix(eventType, "_processed"):
		return StatusReady, true
	case strings.HasSuffix(eventType, "_processing"):
		return StatusProcessing, true
	default:
		return "", false
	}
}
