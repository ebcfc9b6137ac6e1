package tuitest

import (
	"bytes"
	"io"
)

// queryAnswerer watches the PTY output for terminal capability queries and
// answers them, since no real terminal sits on the other side. Without the
// answers lipgloss blocks waiting for background-color responses.
type queryAnswerer struct {
	w   io.Writer
	buf []byte
}

func newQueryAnswerer(w io.Writer) *queryAnswerer {
	return &queryAnswerer{w: w, buf: make([]byte, 0, 128)}
}

func (q *queryAnswerer) Feed(chunk []byte) {
	q.buf = append(q.buf, chunk...)
	q.answerAll()
	// Keep a small tail so sequences split across reads still match.
	if len(q.buf) > 256 {
		q.buf = q.buf[len(q.buf)-64:]
	}
}

func (q *queryAnswerer) answerAll() {
	for {
		answered := false
		if q.answer([]byte("\x1b[6n"), []byte("\x1b[1;1R")) {
			answered = true
		}
		if q.answer([]byte("\x1b]10;?\x07"), []byte("\x1b]10;rgb:cccc/cccc/cccc\x07")) {
			answered = true
		}
		if q.answer([]byte("\x1b]10;?\x1b\\"), []byte("\x1b]10;rgb:cccc/cccc/cccc\x1b\\")) {
			answered = true
		}
		if q.answer([]byte("\x1b]11;?\x07"), []byte("\x1b]11;rgb:0000/0000/0000\x07")) {
			answered = true
		}
		if q.answer([]byte("\x1b]11;?\x1b\\"), []byte("\x1b]11;rgb:0000/0000/0000\x1b\\")) {
			answered = true
		}
		if !answered {
			return
		}
	}
}

func (q *queryAnswerer) answer(query, response []byte) bool {
	idx := bytes.Index(q.buf, query)
	if idx < 0 {
		return false
	}
	q.buf = q.buf[idx+len(query):]
	_, _ = q.w.Write(response)
	return true
}
