package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/autovoyce/voyce/internal/api"
	"github.com/autovoyce/voyce/internal/speech"
)

func searchVideosJob(client *api.Client, topic string) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, 60*time.Second)
		defer cancel()
		result, err := client.Search(ctx, topic)
		if err != nil {
			return searchResultMsg{err: err}, err
		}
		return searchResultMsg{result: result}, nil
	}
}

func processVideosJob(client *api.Client, videoIDs []string, sessionID string) jobRunner {
	ids := append([]string(nil), videoIDs...)
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, 60*time.Second)
		defer cancel()
		ack, err := client.Process(ctx, ids, sessionID)
		if err != nil {
			return processResultMsg{err: err}, err
		}
		return processResultMsg{ack: ack}, nil
	}
}

// openStatusJob dials the progress stream. The stream itself has no timeout;
// only the connection attempt is bounded here, through the request context
// canceled by the stream's Close.
func openStatusJob(client *api.Client, sessionID string) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		stream, err := client.OpenStatus(context.Background(), sessionID)
		if err != nil {
			return streamOpenedMsg{err: err}, err
		}
		return streamOpenedMsg{stream: stream}, nil
	}
}

func askQuestionJob(client *api.Client, question, sessionID string) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, 2*time.Minute)
		defer cancel()
		answer, err := client.Query(ctx, question, sessionID)
		if err != nil {
			return answerResultMsg{question: question, err: err}, err
		}
		return answerResultMsg{question: question, answer: answer}, nil
	}
}

func speakAnswerJob(speaker *speech.Speaker, text string) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, 2*time.Minute)
		defer cancel()
		if err := speaker.Say(ctx, text); err != nil {
			return speakResultMsg{err: err}, err
		}
		return speakResultMsg{}, nil
	}
}
