package tui

import (
	"fmt"
	"log"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/autovoyce/voyce/internal/api"
	"github.com/autovoyce/voyce/internal/chat"
	"github.com/autovoyce/voyce/internal/ingest"
	"github.com/autovoyce/voyce/internal/session"
	"github.com/autovoyce/voyce/internal/speech"
)

// Config wires runtime dependencies into the TUI program.
type Config struct {
	API      *api.Client
	Sessions *session.Store
	Speaker  *speech.Speaker
}

// New returns a tea.Model ready to be mounted into a Program.
func New(config Config) tea.Model {
	topicInput := textinput.New()
	topicInput.Placeholder = "machine learning basics"
	topicInput.Focus()
	topicInput.CharLimit = 200
	topicInput.Width = 60

	chatInput := textinput.New()
	chatInput.Placeholder = "Ask about your videos…"
	chatInput.CharLimit = 400
	chatInput.Width = 70

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	vp := viewport.New(80, 20)
	vp.MouseWheelEnabled = true

	sessionID := ""
	if config.Sessions != nil {
		sessionID = config.Sessions.Current()
	}

	return &model{
		config:      config,
		stage:       stageTopic,
		topicInput:  topicInput,
		chatInput:   chatInput,
		spinner:     spin,
		viewport:    vp,
		ingest:      ingest.NewState(),
		transcript:  chat.NewTranscript(),
		sessionID:   sessionID,
		jobs:        newJobBus(),
		cursor:      0,
		infoMessage: "Describe a topic to find YouTube videos worth talking to.",
	}
}

type stage int

const (
	stageTopic stage = iota
	stageSearching
	stagePreview
	stageProcessing
	stageChat
)

const heroTagline = "Talk to your YouTube videos with AutoVoyce."

const greetingText = "Your videos are ready. Ask me anything about what they cover."

var exampleQuestions = []string{
	"What are the main topics covered?",
	"Summarize the key points from these videos.",
	"What did the speakers disagree on?",
}

const (
	minViewportWidth          = 40
	viewportHorizontalPadding = 4
)

type model struct {
	config Config
	stage  stage

	topicInput textinput.Model
	chatInput  textinput.Model
	spinner    spinner.Model
	viewport   viewport.Model

	ingest     ingest.State
	transcript *chat.Transcript
	stream     *api.StatusStream
	jobs       *jobBus

	sessionID string
	topic     string
	cursor    int

	sending       bool
	speaking      bool
	runFailed     bool
	viewportDirty bool

	infoMessage  string
	errorMessage string
}

type searchResultMsg struct {
	result *api.SearchResult
	err    error
}

type processResultMsg struct {
	ack *api.ProcessAck
	err error
}

type streamOpenedMsg struct {
	stream *api.StatusStream
	err    error
}

type streamEventMsg struct {
	event api.ProgressEvent
	ok    bool
}

type answerResultMsg struct {
	question string
	answer   *api.Answer
	err      error
}

type speakResultMsg struct {
	err error
}

func (m *model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.stage == stageSearching || m.stage == stageProcessing || m.sending {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, m.quit()
		case tea.KeyEsc:
			if m.stage == stageChat || m.stage == stageTopic {
				return m, m.quit()
			}
			return m, nil
		}
		return m.handleKey(msg)
	case tea.MouseMsg:
		if m.stage == stageProcessing || m.stage == stageChat {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		return m, nil
	case jobDone:
		if msg.Payload == nil {
			return m, nil
		}
		return m.Update(msg.Payload)
	case searchResultMsg:
		return m.handleSearchResult(msg)
	case processResultMsg:
		return m.handleProcessResult(msg)
	case streamOpenedMsg:
		return m.handleStreamOpened(msg)
	case streamEventMsg:
		return m.handleStreamEvent(msg)
	case answerResultMsg:
		return m.handleAnswerResult(msg)
	case speakResultMsg:
		m.speaking = false
		if msg.err != nil {
			log.Printf("[speech] playback failed: %v", msg.err)
		}
		return m, nil
	case tea.WindowSizeMsg:
		newWidth := msg.Width - viewportHorizontalPadding
		if newWidth < minViewportWidth {
			newWidth = minViewportWidth
		}
		m.viewport.Width = newWidth
		height := msg.Height - 10
		if height < 5 {
			height = 5
		}
		m.viewport.Height = height
		m.markViewportDirty()
		return m, nil
	}
	return m, nil
}

func (m *model) quit() tea.Cmd {
	if m.stream != nil {
		m.stream.Close()
		m.stream = nil
	}
	if m.config.Speaker != nil {
		m.config.Speaker.Shutdown()
	}
	return tea.Quit
}

func (m *model) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.stage {
	case stageTopic:
		if key.Type == tea.KeyCtrlN {
			return m.forgetSession()
		}
		var cmd tea.Cmd
		m.topicInput, cmd = m.topicInput.Update(key)
		if key.Type == tea.KeyEnter {
			topic := strings.TrimSpace(m.topicInput.Value())
			if topic == "" {
				m.errorMessage = "Describe a topic first."
				return m, cmd
			}
			m.topic = topic
			m.stage = stageSearching
			m.errorMessage = ""
			m.infoMessage = fmt.Sprintf("Searching YouTube for %q…", topic)
			m.ingest = m.ingest.BeginSearch()
			return m, tea.Batch(cmd, m.spinner.Tick, m.jobs.Start(jobKindSearch, searchVideosJob(m.config.API, topic)))
		}
		return m, cmd
	case stageSearching:
		return m, nil
	case stagePreview:
		return m.handlePreviewKey(key)
	case stageProcessing:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(key)
		return m, cmd
	case stageChat:
		return m.handleChatKey(key)
	default:
		return m, nil
	}
}

func (m *model) handleSearchResult(msg searchResultMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.stage = stageTopic
		m.errorMessage = msg.err.Error()
		m.infoMessage = "Try a different topic."
		return m, nil
	}
	if msg.result.SessionID != "" {
		m.sessionID = msg.result.SessionID
		if m.config.Sessions != nil {
			if err := m.config.Sessions.Set(m.sessionID); err != nil {
				log.Printf("[session] persist failed: %v", err)
			}
		}
	} else {
		log.Printf("[session] search response carried no session id")
	}
	if len(msg.result.Videos) == 0 {
		m.stage = stageTopic
		m.errorMessage = ""
		m.infoMessage = fmt.Sprintf("No videos found for %q. Try another topic.", m.topic)
		return m, nil
	}
	m.ingest = m.ingest.WithSearchResults(msg.result.Videos)
	m.cursor = 0
	m.stage = stagePreview
	m.errorMessage = ""
	m.infoMessage = fmt.Sprintf("Found %d videos. All are selected; space toggles, Enter processes.", len(msg.result.Videos))
	return m, nil
}

func (m *model) handlePreviewKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.ingest.Candidates)-1 {
			m.cursor++
		}
	case " ":
		if m.cursor >= 0 && m.cursor < len(m.ingest.Candidates) {
			id := m.ingest.Candidates[m.cursor].Video.ID
			m.ingest = m.ingest.ToggleSelected(id)
		}
	case "r":
		return m.resetToTopic("Ready for another topic.")
	case "enter":
		return m.submitSelection()
	}
	return m, nil
}

func (m *model) submitSelection() (tea.Model, tea.Cmd) {
	ids := m.ingest.SelectedIDs()
	if len(ids) == 0 {
		m.infoMessage = "Select at least one video before processing."
		return m, nil
	}
	if m.sessionID == "" {
		m.ingest = m.ingest.AppendLog("No session available; search again.", ingest.SeverityError)
		m.stage = stageTopic
		m.topicInput.Focus()
		m.errorMessage = "No session available; search again."
		return m, textinput.Blink
	}
	m.ingest = m.ingest.MarkSubmitted()
	m.stage = stageProcessing
	m.runFailed = false
	m.errorMessage = ""
	m.infoMessage = fmt.Sprintf("Processing %d videos…", len(ids))
	m.markViewportDirty()
	return m, tea.Batch(
		m.spinner.Tick,
		m.jobs.Start(jobKindStream, openStatusJob(m.config.API, m.sessionID)),
		m.jobs.Start(jobKindProcess, processVideosJob(m.config.API, ids, m.sessionID)),
	)
}

func (m *model) handleProcessResult(msg processResultMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.runFailed = true
		m.ingest = m.ingest.MarkSubmitFailed()
		m.ingest = m.ingest.AppendLog(fmt.Sprintf("Processing request failed: %v", msg.err), ingest.SeverityError)
		m.errorMessage = msg.err.Error()
		m.markViewportDirty()
		if m.stream != nil {
			m.stream.Close()
			m.stream = nil
		}
		return m, nil
	}
	if msg.ack.SessionID != "" {
		m.sessionID = msg.ack.SessionID
	}
	if m.config.Sessions != nil {
		if err := m.config.Sessions.Set(m.sessionID); err != nil {
			log.Printf("[session] persist failed: %v", err)
		}
	}
	m.ingest = m.ingest.AppendLog("Processing requested.", ingest.SeverityInfo)
	m.markViewportDirty()
	return m, nil
}

func (m *model) handleStreamOpened(msg streamOpenedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.ingest = m.ingest.AppendLog(fmt.Sprintf("Progress stream unavailable: %v", msg.err), ingest.SeverityError)
		m.errorMessage = msg.err.Error()
		m.markViewportDirty()
		return m, nil
	}
	if m.runFailed || m.stage != stageProcessing {
		// The run already failed (or was abandoned) before the dial
		// resolved; a dead run gets no event stream.
		msg.stream.Close()
		return m, nil
	}
	m.stream = msg.stream
	return m, waitForStatusCmd(m.stream)
}

func (m *model) handleStreamEvent(msg streamEventMsg) (tea.Model, tea.Cmd) {
	if !msg.ok {
		// Channel closed. A close before processing_complete means the
		// stream died mid-run; there is no reconnect, so surface it.
		if m.stream != nil {
			if err := m.stream.Err(); err != nil {
				m.ingest = m.ingest.AppendLog(fmt.Sprintf("Progress stream failed: %v", err), ingest.SeverityError)
			} else if m.ingest.Step != ingest.StepComplete {
				m.ingest = m.ingest.AppendLog("Progress stream closed before processing finished.", ingest.SeverityError)
			}
			m.stream.Close()
			m.stream = nil
			m.markViewportDirty()
		}
		return m, nil
	}
	if m.stream == nil {
		// A reset already closed the stream; drop the stale event.
		return m, nil
	}
	m.ingest = ingest.Apply(m.ingest, msg.event)
	m.markViewportDirty()
	if m.ingest.Step == ingest.StepComplete {
		if m.stream != nil {
			m.stream.Close()
			m.stream = nil
		}
		return m.enterChat()
	}
	return m, waitForStatusCmd(m.stream)
}

func (m *model) enterChat() (tea.Model, tea.Cmd) {
	m.stage = stageChat
	m.chatInput.Focus()
	m.topicInput.Blur()
	m.transcript.ForceAppend(chat.NewMessage(chat.RoleAssistant, greetingText))
	m.infoMessage = "Type a question and press Enter. Ctrl+R starts a new topic."
	m.errorMessage = ""
	m.markViewportDirty()
	return m, textinput.Blink
}

func (m *model) handleChatKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Type == tea.KeyCtrlR {
		return m.resetToTopic("Ready for another topic. Your chat session is kept.")
	}
	var cmd tea.Cmd
	m.chatInput, cmd = m.chatInput.Update(key)
	if key.Type == tea.KeyEnter {
		question := strings.TrimSpace(m.chatInput.Value())
		if question == "" {
			return m, cmd
		}
		if m.sending {
			// One question in flight at a time; drop the repeat quietly.
			log.Printf("[chat] send ignored, question already in flight")
			return m, cmd
		}
		if m.sessionID == "" {
			m.transcript.ForceAppend(chat.NewMessage(chat.RoleAssistant,
				"No active session. Process some videos before asking questions."))
			m.chatInput.SetValue("")
			m.markViewportDirty()
			return m, cmd
		}
		if !m.transcript.Append(chat.NewMessage(chat.RoleUser, question)) {
			m.infoMessage = "You just asked that; give the answer a moment."
			m.chatInput.SetValue("")
			return m, cmd
		}
		m.chatInput.SetValue("")
		m.sending = true
		m.markViewportDirty()
		m.infoMessage = "Thinking…"
		m.errorMessage = ""
		return m, tea.Batch(cmd, m.spinner.Tick,
			m.jobs.Start(jobKindQuery, askQuestionJob(m.config.API, question, m.sessionID)))
	}
	return m, cmd
}

func (m *model) handleAnswerResult(msg answerResultMsg) (tea.Model, tea.Cmd) {
	m.sending = false
	m.markViewportDirty()
	if msg.err != nil {
		m.transcript.ForceAppend(chat.NewMessage(chat.RoleAssistant,
			fmt.Sprintf("Sorry, that question failed: %v", msg.err)))
		m.infoMessage = "Ask again or start a new topic with Ctrl+R."
		return m, nil
	}
	reply := chat.NewMessage(chat.RoleAssistant, msg.answer.Text)
	reply.Sources = msg.answer.Sources
	reply.Context = msg.answer.Context
	m.transcript.Append(reply)
	m.infoMessage = "Answer ready."
	if m.config.Speaker != nil {
		// Always hand the newest answer to the speaker; Say preempts any
		// utterance still in flight.
		m.speaking = true
		return m, m.jobs.Start(jobKindSpeak, speakAnswerJob(m.config.Speaker, msg.answer.Text))
	}
	return m, nil
}

func (m *model) markViewportDirty() {
	m.viewportDirty = true
}

// forgetSession drops the stored session id. This is the only path that
// clears it; resets and failures leave it alone.
func (m *model) forgetSession() (tea.Model, tea.Cmd) {
	m.sessionID = ""
	if m.config.Sessions != nil {
		if err := m.config.Sessions.Clear(); err != nil {
			log.Printf("[session] clear failed: %v", err)
		}
	}
	m.infoMessage = "Session forgotten. The next search starts fresh."
	m.errorMessage = ""
	return m, nil
}

func (m *model) resetToTopic(info string) (tea.Model, tea.Cmd) {
	if m.stream != nil {
		m.stream.Close()
		m.stream = nil
	}
	m.ingest = m.ingest.Reset()
	m.stage = stageTopic
	m.runFailed = false
	m.cursor = 0
	m.topic = ""
	m.topicInput.SetValue("")
	m.topicInput.Focus()
	m.chatInput.Blur()
	m.infoMessage = info
	m.errorMessage = ""
	return m, textinput.Blink
}

// waitForStatusCmd blocks on the next progress event. The Update loop
// re-issues it after each event until the channel closes.
func waitForStatusCmd(stream *api.StatusStream) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-stream.Events()
		return streamEventMsg{event: event, ok: ok}
	}
}
