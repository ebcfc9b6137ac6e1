// Package tuitest drives the compiled voyce binary inside a pseudo terminal
// and captures what it paints, so integration tests can assert on rendered
// screens instead of internal state.
package tuitest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/creack/pty"
)

const (
	defaultCols     = 120
	defaultRows     = 32
	defaultDeadline = 10 * time.Second
)

// Keystroke is one scripted input. After is the pause before the bytes are
// written; zero writes immediately.
type Keystroke struct {
	After time.Duration
	Bytes []byte
}

// Scenario describes a scripted run of the binary.
type Scenario struct {
	Binary      []string
	Dir         string
	Env         []string
	Cols        int
	Rows        int
	Keys        []Keystroke
	Deadline    time.Duration
	OKExitCodes []int
	InterruptOK bool
}

// Transcript is everything the program wrote to the terminal during a run.
type Transcript struct {
	Bytes   []byte
	Screens []Screen
	Elapsed time.Duration
}

// Play runs the scenario to completion and returns the captured transcript.
func Play(ctx context.Context, scenario Scenario) (*Transcript, error) {
	if len(scenario.Binary) == 0 {
		return nil, errors.New("tuitest: binary is required")
	}
	cols := scenario.Cols
	if cols <= 0 {
		cols = defaultCols
	}
	rows := scenario.Rows
	if rows <= 0 {
		rows = defaultRows
	}
	deadline := scenario.Deadline
	if deadline <= 0 {
		deadline = defaultDeadline
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	cmd := exec.CommandContext(ctx, scenario.Binary[0], scenario.Binary[1:]...)
	cmd.Dir = scenario.Dir
	cmd.Env = runEnv(scenario.Env)

	okCodes := map[int]struct{}{0: {}}
	for _, code := range scenario.OKExitCodes {
		okCodes[code] = struct{}{}
	}

	size := &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)}
	ptmx, err := pty.StartWithSize(cmd, size)
	if err != nil {
		return nil, fmt.Errorf("tuitest: start binary: %w", err)
	}
	defer func() { _ = ptmx.Close() }()

	var captured bytes.Buffer
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		answers := newQueryAnswerer(ptmx)
		buf := make([]byte, 4096)
		for {
			n, readErr := ptmx.Read(buf)
			if n > 0 {
				chunk := buf[:n]
				answers.Feed(chunk)
				_, _ = captured.Write(chunk)
			}
			if readErr != nil {
				if errors.Is(readErr, io.EOF) || errors.Is(readErr, os.ErrClosed) {
					return
				}
				return
			}
		}
	}()

	start := time.Now()
	for _, key := range scenario.Keys {
		if key.After > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("tuitest: deadline hit before script finished: %w", ctx.Err())
			case <-time.After(key.After):
			}
		}
		if len(key.Bytes) > 0 {
			if _, err := ptmx.Write(key.Bytes); err != nil {
				return nil, fmt.Errorf("tuitest: write keystroke: %w", err)
			}
		}
	}

	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
	}()

	select {
	case err := <-exited:
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				if _, ok := okCodes[exitErr.ExitCode()]; ok {
					break
				}
			}
			if scenario.InterruptOK && strings.Contains(err.Error(), "signal: interrupt") {
				break
			}
			return nil, fmt.Errorf("tuitest: binary exited with error: %w", err)
		}
	case <-ctx.Done():
		return nil, fmt.Errorf("tuitest: deadline waiting for exit: %w", ctx.Err())
	}

	// Closing the PTY lets the reader goroutine finish draining.
	_ = ptmx.Close()
	<-drained

	raw := captured.Bytes()
	return &Transcript{
		Bytes:   raw,
		Screens: splitScreens(raw),
		Elapsed: time.Since(start),
	}, nil
}

func runEnv(extra []string) []string {
	env := os.Environ()
	env = append(env, extra...)
	for _, entry := range env {
		if strings.HasPrefix(entry, "TERM=") {
			return env
		}
	}
	return append(env, "TERM=xterm-256color")
}

var (
	// KeyEnter sends a carriage return to the PTY.
	KeyEnter = []byte{'\r'}
	// KeyCtrlC asks the program to terminate.
	KeyCtrlC = []byte{3}
	// KeySpace toggles selections in list views.
	KeySpace = []byte{' '}
	// KeyEsc quits from the topic and chat stages.
	KeyEsc = []byte{27}
)
