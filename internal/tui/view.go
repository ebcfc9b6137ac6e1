package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/autovoyce/voyce/internal/chat"
	"github.com/autovoyce/voyce/internal/ingest"
)

func (m *model) View() string {
	switch m.stage {
	case stageTopic:
		return m.viewTopic()
	case stageSearching:
		return m.viewSearching()
	case stagePreview:
		return m.viewPreview()
	case stageProcessing:
		return m.viewProcessing()
	case stageChat:
		return m.viewChat()
	default:
		return ""
	}
}

func (m *model) viewTopic() string {
	form := strings.Builder{}
	form.WriteString(sectionHeaderStyle.Render("What do you want to learn about?"))
	form.WriteRune('\n')
	form.WriteString(m.topicInput.View())
	form.WriteRune('\n')
	form.WriteString(helperStyle.Render("Press Enter to search YouTube. Ctrl+N forgets the saved session."))
	form.WriteRune('\n')
	form.WriteString(helperStyle.Render(m.infoMessage))
	if m.errorMessage != "" {
		form.WriteRune('\n')
		form.WriteString(errorStyle.Render(m.errorMessage))
	}
	return joinNonEmpty([]string{m.heroView(), form.String()})
}

func (m *model) viewSearching() string {
	body := fmt.Sprintf("%s Searching YouTube for %q…", m.spinner.View(), m.topic)
	return joinNonEmpty([]string{m.heroView(), body})
}

func (m *model) viewPreview() string {
	b := strings.Builder{}
	b.WriteString(m.stepIndicatorView())
	b.WriteString("\n\n")
	b.WriteString(sectionHeaderStyle.Render(fmt.Sprintf("Videos for %q", m.topic)))
	b.WriteRune('\n')
	for i, candidate := range m.ingest.Candidates {
		cursor := " "
		if i == m.cursor {
			cursor = ">"
		}
		check := " "
		if m.ingest.Selected[candidate.Video.ID] {
			check = "x"
		}
		row := fmt.Sprintf(" %s [%s] %s", cursor, check, candidate.Video.Title)
		if i == m.cursor {
			row = currentLineStyle.Render(row)
		}
		b.WriteString(row)
		b.WriteRune('\n')
		meta := fmt.Sprintf("       %s · %s", candidate.Video.Channel, candidate.Video.Duration)
		if !candidate.Video.HasTranscript {
			meta += " · no transcript"
		}
		b.WriteString(helperStyle.Render(meta))
		b.WriteRune('\n')
	}
	b.WriteRune('\n')
	b.WriteString(statusBarStyle.Render(fmt.Sprintf("%d of %d selected", m.ingest.SelectedCount(), len(m.ingest.Candidates))))
	b.WriteRune('\n')
	b.WriteString(helperStyle.Render(m.infoMessage))
	if m.errorMessage != "" {
		b.WriteRune('\n')
		b.WriteString(errorStyle.Render(m.errorMessage))
	}
	return joinNonEmpty([]string{m.heroView(), b.String(), m.previewLegendView()})
}

func (m *model) viewProcessing() string {
	m.refreshViewportIfDirty()
	header := m.stepIndicatorView() + "\n\n" +
		sectionHeaderStyle.Render(fmt.Sprintf("%s Processing videos", m.spinner.View()))
	parts := []string{m.heroView(), header, m.viewport.View()}
	if m.errorMessage != "" {
		parts = append(parts, errorStyle.Render(m.errorMessage))
	}
	return joinNonEmpty(parts)
}

// processingContent is the scrollable body of the processing stage: selected
// candidates with their statuses, then the full event log.
func (m *model) processingContent() string {
	b := strings.Builder{}
	for _, candidate := range m.ingest.Candidates {
		if !m.ingest.Selected[candidate.Video.ID] && candidate.Status == ingest.StatusPending {
			continue
		}
		b.WriteString(fmt.Sprintf(" %s %s\n", videoStatusIcon(candidate.Status), candidate.Video.Title))
	}
	b.WriteRune('\n')
	b.WriteString(sectionHeaderStyle.Render("Progress"))
	b.WriteRune('\n')
	for _, entry := range m.ingest.Logs {
		line := fmt.Sprintf(" %s %s", severityIcon(entry.Level), entry.Message)
		b.WriteString(severityStyle(entry.Level).Render(line))
		b.WriteRune('\n')
	}
	return b.String()
}

func (m *model) viewChat() string {
	m.refreshViewportIfDirty()
	footer := strings.Builder{}
	if m.sending {
		footer.WriteString(fmt.Sprintf("%s Thinking…\n", m.spinner.View()))
	}
	footer.WriteString(m.chatInput.View())
	footer.WriteRune('\n')
	footer.WriteString(helperStyle.Render(m.infoMessage))
	if m.errorMessage != "" {
		footer.WriteRune('\n')
		footer.WriteString(errorStyle.Render(m.errorMessage))
	}
	return joinNonEmpty([]string{m.heroView(), m.viewport.View(), footer.String(), m.chatLegendView()})
}

// chatContent is the scrollable transcript: every exchange with its sources,
// plus starter questions while the conversation is still empty.
func (m *model) chatContent() string {
	b := strings.Builder{}
	wrap := m.wrapWidth(6)
	for _, message := range m.transcript.Messages() {
		switch message.Role {
		case chat.RoleUser:
			b.WriteString(userLabelStyle.Render("You"))
		default:
			b.WriteString(assistantLabelStyle.Render("AutoVoyce"))
		}
		b.WriteRune('\n')
		b.WriteString(indentMultiline(wordwrap.String(message.Content, wrap), "  "))
		b.WriteRune('\n')
		if len(message.Sources) > 0 {
			b.WriteString(helperStyle.Render("  Sources:"))
			b.WriteRune('\n')
			for _, source := range message.Sources {
				line := fmt.Sprintf("   · %s", source.VideoTitle)
				if source.Timestamp != "" {
					line += " @ " + source.Timestamp
				}
				b.WriteString(helperStyle.Render(line))
				b.WriteRune('\n')
			}
		}
		b.WriteRune('\n')
	}
	if m.transcript.Len() <= 1 {
		b.WriteString(helperStyle.Render("Try one of these:"))
		b.WriteRune('\n')
		for _, question := range exampleQuestions {
			b.WriteString(helperStyle.Render("  · " + question))
			b.WriteRune('\n')
		}
		b.WriteRune('\n')
	}
	return b.String()
}

func (m *model) refreshViewportIfDirty() {
	if m.viewportDirty {
		m.refreshViewport()
	}
}

// refreshViewport rebuilds the scrollable content for the current stage.
// When the user is parked at the bottom the view follows new lines; a
// scrolled-up position is left where it is.
func (m *model) refreshViewport() {
	m.viewportDirty = false
	var content string
	switch m.stage {
	case stageProcessing:
		content = m.processingContent()
	case stageChat:
		content = m.chatContent()
	default:
		return
	}
	followTail := m.viewport.AtBottom()
	m.viewport.SetContent(content)
	if followTail {
		m.viewport.GotoBottom()
	}
}

func (m *model) heroView() string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		renderLogo(),
		taglineStyle.Render(heroTagline),
	)
}

func (m *model) stepIndicatorView() string {
	labels := []struct {
		step ingest.Step
		name string
	}{
		{ingest.StepInput, "Topic"},
		{ingest.StepPreview, "Select"},
		{ingest.StepProcessing, "Process"},
		{ingest.StepComplete, "Chat"},
	}
	var cells []string
	for _, label := range labels {
		cell := label.name
		if label.step == m.ingest.Step {
			cell = stepActiveStyle.Render(cell)
		} else {
			cell = stepIdleStyle.Render(cell)
		}
		cells = append(cells, cell)
	}
	return strings.Join(cells, helperStyle.Render(" → "))
}

func (m *model) previewLegendView() string {
	hints := []keyHint{
		{"↑/↓", "Move"},
		{"space", "Toggle video"},
		{"enter", "Process selection"},
		{"r", "New topic"},
		{"ctrl+c", "Quit"},
	}
	return renderLegend(hints)
}

func (m *model) chatLegendView() string {
	hints := []keyHint{
		{"enter", "Ask"},
		{"ctrl+r", "New topic"},
		{"esc", "Quit"},
	}
	return renderLegend(hints)
}

type keyHint struct {
	Key         string
	Description string
}

func renderLegend(hints []keyHint) string {
	var cells []string
	for _, hint := range hints {
		key := keyStyle.Render(hint.Key)
		desc := keyDescStyle.Render(" " + hint.Description)
		cells = append(cells, lipgloss.JoinHorizontal(lipgloss.Top, key, desc, "  "))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

func joinNonEmpty(parts []string) string {
	filtered := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		filtered = append(filtered, part)
	}
	return strings.Join(filtered, "\n\n")
}

func indentMultiline(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

func videoStatusIcon(status ingest.VideoStatus) string {
	switch status {
	case ingest.StatusReady:
		return successStyle.Render("✓")
	case ingest.StatusError:
		return errorStyle.Render("✗")
	case ingest.StatusProcessing, ingest.StatusFetching:
		return progressStyle.Render("…")
	default:
		return helperStyle.Render("·")
	}
}

func severityIcon(level ingest.Severity) string {
	switch level {
	case ingest.SeveritySuccess:
		return "✓"
	case ingest.SeverityError:
		return "✗"
	case ingest.SeverityProgress:
		return "…"
	default:
		return "·"
	}
}

func severityStyle(level ingest.Severity) lipgloss.Style {
	switch level {
	case ingest.SeveritySuccess:
		return successStyle
	case ingest.SeverityError:
		return errorStyle
	case ingest.SeverityProgress:
		return progressStyle
	default:
		return helperStyle
	}
}

func (m *model) wrapWidth(padding int) int {
	width := m.viewport.Width
	if width <= 0 {
		width = 80
	}
	if padding < 0 {
		padding = 0
	}
	available := width - padding
	if available < 20 {
		available = 20
	}
	return available
}

func renderLogo() string {
	if len(logoArtLines) == 0 {
		return ""
	}
	var lines []string
	for _, line := range logoArtLines {
		lines = append(lines, logoFaceStyle.Render(line))
	}
	return logoContainerStyle.Render(strings.Join(lines, "\n"))
}

var (
	sectionHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	successStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	progressStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	helperStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))

	heroAccentColor = lipgloss.Color("#ff5d8f")
	heroTextColor   = lipgloss.Color("#ffeef5")

	taglineStyle        = lipgloss.NewStyle().Foreground(heroAccentColor).Italic(true)
	statusBarStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6")).Padding(0, 1)
	keyStyle            = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#ffd166")).Padding(0, 1)
	keyDescStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#e0def4"))
	currentLineStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6"))
	stepActiveStyle     = lipgloss.NewStyle().Bold(true).Foreground(heroAccentColor)
	stepIdleStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	userLabelStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8ecae6"))
	assistantLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(heroAccentColor)
	logoFaceStyle       = lipgloss.NewStyle().Bold(true).Foreground(heroTextColor)
	logoContainerStyle  = lipgloss.NewStyle().Padding(0, 1)
	logoArtLines        = []string{
		"██╗   ██╗  ██████╗   ██╗   ██╗   ██████╗  ███████╗",
		"██║   ██║ ██╔═══██╗  ╚██╗ ██╔╝  ██╔════╝  ██╔════╝",
		"██║   ██║ ██║   ██║   ╚████╔╝   ██║       █████╗  ",
		"╚██╗ ██╔╝ ██║   ██║    ╚██╔╝    ██║       ██╔══╝  ",
		" ╚████╔╝  ╚██████╔╝     ██║     ╚██████╗  ███████╗",
		"  ╚═══╝    ╚═════╝      ╚═╝      ╚═════╝  ╚══════╝",
	}
)
