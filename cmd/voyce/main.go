package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/autovoyce/voyce/internal/api"
	"github.com/autovoyce/voyce/internal/session"
	"github.com/autovoyce/voyce/internal/speech"
	"github.com/autovoyce/voyce/internal/tui"
)

func main() {
	apiURL := flag.String("api", envOr("VOYCE_API_URL", "http://localhost:8000"), "base URL of the AutoVoyce backend")
	voiceID := flag.String("voice", os.Getenv("VOYCE_VOICE_ID"), "ElevenLabs voice id for spoken answers")
	noVoice := flag.Bool("no-voice", false, "disable spoken answers")
	noAltScreen := flag.Bool("no-alt-screen", false, "disable the alternate screen buffer")
	flag.Parse()

	sessions, err := session.Open("")
	if err != nil {
		fmt.Println("failed to open session store:", err)
		os.Exit(1)
	}

	client := api.New(*apiURL, nil)
	client.SeedSession(sessions.Current())

	var speaker *speech.Speaker
	if !*noVoice {
		player, err := speech.NewSystemPlayer()
		if err != nil {
			fmt.Println("voice disabled:", err)
		} else {
			speaker = speech.NewSpeaker(client, player, *voiceID)
		}
	}

	opts := []tea.ProgramOption{}
	if !*noAltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	program := tea.NewProgram(
		tui.New(tui.Config{
			API:      client,
			Sessions: sessions,
			Speaker:  speaker,
		}),
		opts...,
	)

	if _, err := program.Run(); err != nil {
		fmt.Println("program error:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
