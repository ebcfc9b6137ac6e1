package tuitest

import (
	"regexp"
	"strings"
)

// Screen is one normalized terminal paint.
type Screen struct {
	Seq    int
	Styled string
	Text   string
}

var (
	eraseSeq   = regexp.MustCompile(`\x1b\[[0-9;]*J`)
	csiSeq     = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]`)
	oscSeq     = regexp.MustCompile(`\x1b\][^\x07]*(\x07|\x1b\\)`)
	homeCursor = "\x1b[H"
)

// splitScreens cuts the raw stream on erase-display sequences, which mark the
// start of each repaint in bubbletea's renderer.
func splitScreens(raw []byte) []Screen {
	cleaned := strings.ReplaceAll(string(raw), "\r", "")
	segments := eraseSeq.Split(cleaned, -1)
	screens := make([]Screen, 0, len(segments))
	for _, segment := range segments {
		segment = strings.Trim(segment, "\x00")
		segment = strings.TrimPrefix(segment, homeCursor)
		if segment == "" {
			continue
		}
		text := dropControlSequences(segment)
		if strings.TrimSpace(text) == "" {
			continue
		}
		screens = append(screens, Screen{
			Seq:    len(screens),
			Styled: segment,
			Text:   tidyLines(text),
		})
	}
	if len(screens) == 0 && len(cleaned) > 0 {
		screens = append(screens, Screen{Styled: cleaned, Text: tidyLines(dropControlSequences(cleaned))})
	}
	return screens
}

// Final returns the last captured screen; ok is false when nothing rendered.
func (t *Transcript) Final() (Screen, bool) {
	if t == nil || len(t.Screens) == 0 {
		return Screen{}, false
	}
	return t.Screens[len(t.Screens)-1], true
}

// Contains reports whether any screen's plain text contains the substring.
func (t *Transcript) Contains(substr string) bool {
	if t == nil {
		return false
	}
	for _, screen := range t.Screens {
		if strings.Contains(screen.Text, substr) {
			return true
		}
	}
	return false
}

func dropControlSequences(s string) string {
	s = oscSeq.ReplaceAllString(s, "")
	s = csiSeq.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\x0f", "")
	s = strings.ReplaceAll(s, "\x0e", "")
	return s
}

func tidyLines(s string) string {
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
