package speech

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
)

// playerCandidates are tried in order; each entry is a binary plus the flags
// that make it play a single mp3 and exit without opening a window.
var playerCandidates = []struct {
	binary string
	args   []string
}{
	{"afplay", nil},
	{"mpg123", []string{"-q"}},
	{"ffplay", []string{"-nodisp", "-autoexit", "-loglevel", "quiet"}},
	{"mpv", []string{"--no-video", "--really-quiet"}},
}

// SystemPlayer shells out to whichever command-line audio player is
// installed. Playback runs in the calling goroutine; Stop kills the process
// from any other goroutine.
type SystemPlayer struct {
	binary string
	args   []string

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewSystemPlayer locates an audio player on PATH. Callers should treat an
// error as "voice unavailable" and keep running without spoken replies.
func NewSystemPlayer() (*SystemPlayer, error) {
	for _, candidate := range playerCandidates {
		if path, err := exec.LookPath(candidate.binary); err == nil {
			return &SystemPlayer{binary: path, args: candidate.args}, nil
		}
	}
	return nil, fmt.Errorf("no audio player found (tried afplay, mpg123, ffplay, mpv)")
}

// Play writes the audio to a temp file and blocks until the player exits or
// the context is canceled.
func (p *SystemPlayer) Play(ctx context.Context, audio []byte) error {
	f, err := os.CreateTemp("", "voyce-*.mp3")
	if err != nil {
		return fmt.Errorf("stage audio: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(audio); err != nil {
		f.Close()
		return fmt.Errorf("stage audio: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("stage audio: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()
	defer cancel()

	cmd := exec.CommandContext(ctx, p.binary, append(append([]string{}, p.args...), f.Name())...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w", p.binary, err)
	}
	return nil
}

// Stop interrupts the current playback, if any.
func (p *SystemPlayer) Stop() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.mu.Unlock()
}
