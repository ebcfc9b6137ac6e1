package tui

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/autovoyce/voyce/internal/api"
	"github.com/autovoyce/voyce/internal/chat"
	"github.com/autovoyce/voyce/internal/ingest"
	"github.com/autovoyce/voyce/internal/speech"
)

func newTestModel(t *testing.T) *model {
	t.Helper()
	m, ok := New(Config{API: api.New("http://127.0.0.1:1", nil)}).(*model)
	if !ok {
		t.Fatal("New should return *model")
	}
	return m
}

func previewModel(t *testing.T) *model {
	t.Helper()
	m := newTestModel(t)
	m.topic = "go concurrency"
	_, _ = m.handleSearchResult(searchResultMsg{result: &api.SearchResult{
		SessionID: "session-1",
		Videos: []api.Video{
			{ID: "v1", Title: "Goroutines", Channel: "GopherCon", Duration: "12:00", HasTranscript: true},
			{ID: "v2", Title: "Channels", Channel: "GopherCon", Duration: "9:30", HasTranscript: true},
		},
	}})
	return m
}

func TestTopicEnterRequiresText(t *testing.T) {
	t.Parallel()
	m := newTestModel(t)
	m.topicInput.SetValue("   ")

	_, _ = m.handleKey(tea.KeyMsg{Type: tea.KeyEnter})

	if m.stage != stageTopic {
		t.Fatalf("stage changed on blank topic, got %v", m.stage)
	}
	if m.errorMessage == "" {
		t.Fatal("blank topic should set an error message")
	}
}

func TestTopicEnterStartsSearch(t *testing.T) {
	t.Parallel()
	m := newTestModel(t)
	m.topicInput.SetValue("go concurrency")

	_, cmd := m.handleKey(tea.KeyMsg{Type: tea.KeyEnter})

	if m.stage != stageSearching {
		t.Fatalf("stage not searching, got %v", m.stage)
	}
	if m.topic != "go concurrency" {
		t.Fatalf("topic not captured, got %q", m.topic)
	}
	if cmd == nil {
		t.Fatal("enter should start the search job")
	}
}

func TestSearchResultMovesToPreview(t *testing.T) {
	t.Parallel()
	m := previewModel(t)

	if m.stage != stagePreview {
		t.Fatalf("stage not preview, got %v", m.stage)
	}
	if m.sessionID != "session-1" {
		t.Fatalf("session id not captured, got %q", m.sessionID)
	}
	if got := m.ingest.SelectedCount(); got != 2 {
		t.Fatalf("all results should start selected, got %d", got)
	}
}

func TestSearchFailureReturnsToTopic(t *testing.T) {
	t.Parallel()
	m := newTestModel(t)
	m.stage = stageSearching

	_, _ = m.handleSearchResult(searchResultMsg{err: errors.New("backend down")})

	if m.stage != stageTopic {
		t.Fatalf("stage should fall back to topic, got %v", m.stage)
	}
	if !strings.Contains(m.errorMessage, "backend down") {
		t.Fatalf("error message not surfaced, got %q", m.errorMessage)
	}
}

func TestEmptySearchReturnsToTopic(t *testing.T) {
	t.Parallel()
	m := newTestModel(t)
	m.stage = stageSearching
	m.topic = "obscure topic"

	_, _ = m.handleSearchResult(searchResultMsg{result: &api.SearchResult{SessionID: "s"}})

	if m.stage != stageTopic {
		t.Fatalf("no results should return to topic, got %v", m.stage)
	}
	if m.errorMessage != "" {
		t.Fatalf("no results is not an error, got %q", m.errorMessage)
	}
}

func TestPreviewSpaceTogglesCursorRow(t *testing.T) {
	t.Parallel()
	m := previewModel(t)

	_, _ = m.handlePreviewKey(tea.KeyMsg{Type: tea.KeySpace})
	if got := m.ingest.SelectedIDs(); len(got) != 1 || got[0] != "v2" {
		t.Fatalf("space should deselect the cursor row, got %v", got)
	}

	_, _ = m.handlePreviewKey(tea.KeyMsg{Type: tea.KeySpace})
	if got := m.ingest.SelectedCount(); got != 2 {
		t.Fatalf("space should reselect, got %d", got)
	}
}

func TestSubmitWithoutSelectionBlocks(t *testing.T) {
	t.Parallel()
	m := previewModel(t)
	m.ingest = m.ingest.ToggleSelected("v1")
	m.ingest = m.ingest.ToggleSelected("v2")

	_, cmd := m.submitSelection()

	if cmd != nil {
		t.Fatal("empty selection should not start processing")
	}
	if m.stage != stagePreview {
		t.Fatalf("stage changed, got %v", m.stage)
	}
}

func TestSubmitSelectionStartsProcessing(t *testing.T) {
	t.Parallel()
	m := previewModel(t)

	_, cmd := m.submitSelection()

	if cmd == nil {
		t.Fatal("submit should start the process and stream jobs")
	}
	if m.stage != stageProcessing {
		t.Fatalf("stage not processing, got %v", m.stage)
	}
	for _, candidate := range m.ingest.Candidates {
		if candidate.Status != ingest.StatusProcessing {
			t.Fatalf("candidate %s not marked processing, got %v", candidate.Video.ID, candidate.Status)
		}
	}
}

func TestProcessFailureMarksSelection(t *testing.T) {
	t.Parallel()
	m := previewModel(t)
	_, _ = m.submitSelection()

	_, _ = m.handleProcessResult(processResultMsg{err: errors.New("422 unprocessable")})

	for _, candidate := range m.ingest.Candidates {
		if candidate.Status != ingest.StatusError {
			t.Fatalf("candidate %s should be errored, got %v", candidate.Video.ID, candidate.Status)
		}
	}
	if len(m.ingest.Logs) == 0 {
		t.Fatal("failure should be logged")
	}
}

func TestStaleStreamEventIsDropped(t *testing.T) {
	t.Parallel()
	m := previewModel(t)
	_, _ = m.submitSelection()
	_, _ = m.resetToTopic("again")

	_, cmd := m.handleStreamEvent(streamEventMsg{event: api.ProgressEvent{Type: "video_processed"}, ok: true})

	if cmd != nil {
		t.Fatal("stale event should not re-arm the stream wait")
	}
	if m.stage != stageTopic {
		t.Fatalf("stale event changed the stage, got %v", m.stage)
	}
}

func TestProcessingCompleteEntersChatWithGreeting(t *testing.T) {
	t.Parallel()
	m := previewModel(t)
	_, _ = m.submitSelection()
	m.ingest = ingest.Apply(m.ingest, api.ProgressEvent{Type: "processing_complete"})

	_, _ = m.enterChat()

	if m.stage != stageChat {
		t.Fatalf("stage not chat, got %v", m.stage)
	}
	last, ok := m.transcript.Last()
	if !ok || last.Role != chat.RoleAssistant {
		t.Fatalf("greeting missing, got %+v", last)
	}
}

func TestChatEnterSendsQuestion(t *testing.T) {
	t.Parallel()
	m := previewModel(t)
	_, _ = m.enterChat()
	m.chatInput.SetValue("what is a goroutine?")

	_, cmd := m.handleChatKey(tea.KeyMsg{Type: tea.KeyEnter})

	if cmd == nil {
		t.Fatal("enter should start the query job")
	}
	if !m.sending {
		t.Fatal("sending guard not set")
	}
	last, _ := m.transcript.Last()
	if last.Role != chat.RoleUser || last.Content != "what is a goroutine?" {
		t.Fatalf("user message not appended, got %+v", last)
	}
	if m.chatInput.Value() != "" {
		t.Fatalf("input not cleared, got %q", m.chatInput.Value())
	}
}

func TestChatSecondSendWaitsForAnswer(t *testing.T) {
	t.Parallel()
	m := previewModel(t)
	_, _ = m.enterChat()
	m.chatInput.SetValue("first question")
	_, _ = m.handleChatKey(tea.KeyMsg{Type: tea.KeyEnter})
	before := m.transcript.Len()

	m.chatInput.SetValue("second question")
	_, _ = m.handleChatKey(tea.KeyMsg{Type: tea.KeyEnter})

	if m.transcript.Len() != before {
		t.Fatal("second send should be dropped while one is in flight")
	}
}

func TestChatWithoutSessionExplainsItself(t *testing.T) {
	t.Parallel()
	m := newTestModel(t)
	m.stage = stageChat
	m.sessionID = ""
	m.chatInput.SetValue("hello?")

	_, _ = m.handleChatKey(tea.KeyMsg{Type: tea.KeyEnter})

	if m.sending {
		t.Fatal("no request should be in flight without a session")
	}
	last, ok := m.transcript.Last()
	if !ok || last.Role != chat.RoleAssistant {
		t.Fatalf("synthetic assistant message missing, got %+v", last)
	}
	if !strings.Contains(last.Content, "session") {
		t.Fatalf("message should mention the missing session, got %q", last.Content)
	}
}

func TestAnswerResultAppendsReply(t *testing.T) {
	t.Parallel()
	m := previewModel(t)
	_, _ = m.enterChat()
	m.sending = true

	answer := &api.Answer{
		Text:    "A goroutine is a lightweight thread.",
		Sources: []api.Source{{VideoID: "v1", VideoTitle: "Goroutines", Timestamp: "3:14"}},
	}
	_, _ = m.handleAnswerResult(answerResultMsg{question: "what is a goroutine?", answer: answer})

	if m.sending {
		t.Fatal("sending guard not cleared")
	}
	last, _ := m.transcript.Last()
	if last.Content != answer.Text {
		t.Fatalf("answer text not appended, got %q", last.Content)
	}
	if len(last.Sources) != 1 || last.Sources[0].VideoTitle != "Goroutines" {
		t.Fatalf("sources not carried, got %+v", last.Sources)
	}
}

func TestAnswerFailureAppendsSyntheticReply(t *testing.T) {
	t.Parallel()
	m := previewModel(t)
	_, _ = m.enterChat()
	m.sending = true

	_, _ = m.handleAnswerResult(answerResultMsg{question: "q", err: errors.New("session expired")})

	if m.sending {
		t.Fatal("sending guard not cleared on failure")
	}
	last, _ := m.transcript.Last()
	if last.Role != chat.RoleAssistant || !strings.Contains(last.Content, "session expired") {
		t.Fatalf("failure should be voiced by the assistant, got %+v", last)
	}
}

func TestCtrlRResetsRunKeepsTranscript(t *testing.T) {
	t.Parallel()
	m := previewModel(t)
	_, _ = m.enterChat()
	m.transcript.Append(chat.NewMessage(chat.RoleUser, "earlier question"))

	_, _ = m.handleChatKey(tea.KeyMsg{Type: tea.KeyCtrlR})

	if m.stage != stageTopic {
		t.Fatalf("stage not reset, got %v", m.stage)
	}
	if m.ingest.Step != ingest.StepInput || len(m.ingest.Candidates) != 0 {
		t.Fatalf("ingest state not reset, got %+v", m.ingest)
	}
	if m.sessionID != "session-1" {
		t.Fatalf("session should survive a reset, got %q", m.sessionID)
	}
	if m.transcript.Len() == 0 {
		t.Fatal("transcript should survive a reset")
	}
}

// openTestStream dials a status stream against a server that stays silent
// until the client hangs up.
func openTestStream(t *testing.T) *api.StatusStream {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	}))
	t.Cleanup(server.Close)
	stream, err := api.New(server.URL, nil).OpenStatus(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	t.Cleanup(stream.Close)
	return stream
}

func TestNewAnswerPreemptsSpokenReply(t *testing.T) {
	t.Parallel()
	m := previewModel(t)
	_, _ = m.enterChat()
	m.config.Speaker = speech.NewSpeaker(nil, nil, "")
	m.sending = true
	m.speaking = true

	_, cmd := m.handleAnswerResult(answerResultMsg{answer: &api.Answer{Text: "the newest answer"}})

	if cmd == nil {
		t.Fatal("a new answer must be spoken even while the previous one still plays")
	}
}

func TestLateStreamAfterProcessFailureIsClosed(t *testing.T) {
	t.Parallel()
	m := previewModel(t)
	_, _ = m.submitSelection()
	_, _ = m.handleProcessResult(processResultMsg{err: errors.New("422 unprocessable")})

	stream := openTestStream(t)
	_, cmd := m.handleStreamOpened(streamOpenedMsg{stream: stream})

	if m.stream != nil {
		t.Fatal("a failed run must not adopt the stream")
	}
	if cmd != nil {
		t.Fatal("a failed run must not arm the stream wait")
	}
	select {
	case _, ok := <-stream.Events():
		if ok {
			t.Fatal("discarded stream should not deliver events")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("discarded stream was not shut down")
	}
}

func TestStreamOpenedAfterResetIsClosed(t *testing.T) {
	t.Parallel()
	m := previewModel(t)
	_, _ = m.submitSelection()
	_, _ = m.resetToTopic("changed my mind")

	stream := openTestStream(t)
	_, cmd := m.handleStreamOpened(streamOpenedMsg{stream: stream})

	if m.stream != nil || cmd != nil {
		t.Fatal("an abandoned run must not adopt the stream")
	}
}

func TestProcessingLogScrollsThroughViewport(t *testing.T) {
	t.Parallel()
	m := previewModel(t)
	_, _ = m.submitSelection()
	m.viewport.Width = 60
	m.viewport.Height = 6
	for i := 0; i < 30; i++ {
		m.ingest = m.ingest.AppendLog(fmt.Sprintf("event %d", i), ingest.SeverityInfo)
	}
	m.markViewportDirty()

	_ = m.View()

	if lines := m.viewport.TotalLineCount(); lines <= m.viewport.Height {
		t.Fatalf("viewport not fed the full log, lines=%d", lines)
	}
	if !m.viewport.AtBottom() {
		t.Fatal("viewport should follow the newest log line")
	}
	if !strings.Contains(m.viewport.View(), "event 29") {
		t.Fatalf("newest log line not visible:\n%s", m.viewport.View())
	}
}

func TestChatTranscriptScrollsThroughViewport(t *testing.T) {
	t.Parallel()
	m := previewModel(t)
	_, _ = m.enterChat()
	m.viewport.Width = 60
	m.viewport.Height = 5
	for i := 0; i < 12; i++ {
		m.transcript.ForceAppend(chat.NewMessage(chat.RoleUser, fmt.Sprintf("question %d", i)))
	}
	m.markViewportDirty()

	_ = m.View()

	if lines := m.viewport.TotalLineCount(); lines <= m.viewport.Height {
		t.Fatalf("viewport not fed the transcript, lines=%d", lines)
	}
	if !strings.Contains(m.viewport.View(), "question 11") {
		t.Fatalf("newest message not visible:\n%s", m.viewport.View())
	}
}

func TestSubmitWithoutSessionAbortsToTopic(t *testing.T) {
	t.Parallel()
	m := previewModel(t)
	m.sessionID = ""

	_, _ = m.submitSelection()

	if m.stage != stageTopic {
		t.Fatalf("missing session should abort to topic, got %v", m.stage)
	}
	if len(m.ingest.Logs) == 0 || m.ingest.Logs[len(m.ingest.Logs)-1].Level != ingest.SeverityError {
		t.Fatalf("missing session should leave an error log, got %+v", m.ingest.Logs)
	}
}

func TestCtrlNForgetsSession(t *testing.T) {
	t.Parallel()
	m := newTestModel(t)
	m.sessionID = "stale-session"

	_, _ = m.handleKey(tea.KeyMsg{Type: tea.KeyCtrlN})

	if m.sessionID != "" {
		t.Fatalf("session not forgotten, got %q", m.sessionID)
	}
}

func TestViewsRenderWithoutPanicking(t *testing.T) {
	t.Parallel()
	m := previewModel(t)
	stages := []stage{stageTopic, stageSearching, stagePreview, stageProcessing, stageChat}
	for _, s := range stages {
		m.stage = s
		if view := m.View(); strings.TrimSpace(view) == "" {
			t.Fatalf("stage %v rendered empty view", s)
		}
	}
}
