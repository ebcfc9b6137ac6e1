package speech

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Synthesizer turns text into audio bytes. The API client satisfies this.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
}

// Player plays one audio payload at a time. Stop must release any playback
// resources and is safe to call with nothing playing.
type Player interface {
	Play(ctx context.Context, audio []byte) error
	Stop()
}

// Speaker runs the spoken-reply round-trip: synthesize the answer text and
// play the returned audio. At most one synthesis/playback is in flight;
// starting a new one cancels the previous request and stops any playing
// audio first, so the newest utterance always wins.
type Speaker struct {
	synth   Synthesizer
	player  Player
	voiceID string

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewSpeaker wires a synthesizer and a player together. voiceID may be empty
// to accept the backend's default voice.
func NewSpeaker(synth Synthesizer, player Player, voiceID string) *Speaker {
	return &Speaker{synth: synth, player: player, voiceID: voiceID}
}

// Say speaks the given text, preempting any utterance already in flight.
func (s *Speaker) Say(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("nothing to say")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.mu.Unlock()
	s.player.Stop()
	defer cancel()

	audio, err := s.synth.Synthesize(ctx, text, s.voiceID)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.player.Play(ctx, audio)
}

// Shutdown cancels any in-flight synthesis and stops playback.
func (s *Speaker) Shutdown() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
	s.player.Stop()
}
