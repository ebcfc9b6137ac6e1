package tui

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type jobKind string

const (
	jobKindSearch  jobKind = "search"
	jobKindProcess jobKind = "process"
	jobKindStream  jobKind = "stream"
	jobKindQuery   jobKind = "query"
	jobKindSpeak   jobKind = "speak"
)

// jobRunner does the blocking work of one background job and returns the
// message the Update loop should see.
type jobRunner func(context.Context) (tea.Msg, error)

// jobDone wraps a finished job's payload. The Update loop unwraps the
// payload; kind, sequence and timing exist for the log line only.
type jobDone struct {
	Kind    jobKind
	Seq     int64
	Took    time.Duration
	Err     string
	Payload tea.Msg
}

// jobBus numbers background jobs so their log lines can be correlated with
// what the user saw. All failures also travel inside the payload message;
// the bus only observes.
type jobBus struct {
	seq int64
}

func newJobBus() *jobBus {
	return &jobBus{}
}

func (b *jobBus) Start(kind jobKind, runner jobRunner) tea.Cmd {
	seq := atomic.AddInt64(&b.seq, 1)
	return func() tea.Msg {
		log.Printf("[job] %s#%d start", kind, seq)
		started := time.Now()
		payload, err := runner(context.Background())
		took := time.Since(started).Round(time.Millisecond)
		done := jobDone{Kind: kind, Seq: seq, Took: took, Payload: payload}
		if err != nil {
			done.Err = err.Error()
			log.Printf("[job] %s#%d failed after %s: %v", kind, seq, took, err)
		} else {
			log.Printf("[job] %s#%d done in %s", kind, seq, took)
		}
		return done
	}
}
