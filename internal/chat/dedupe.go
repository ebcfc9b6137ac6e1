package chat

import (
	"crypto/sha256"
	"time"
)

const (
	recentWindowSize = 8
	recentWindowTTL  = 10 * time.Second
)

// recentWindow is a small bounded set of recently-seen message digests. It
// makes the dedupe window explicit: an entry suppresses duplicates until it
// ages past the TTL or is evicted by newer entries.
type recentWindow struct {
	limit int
	ttl   time.Duration
	now   func() time.Time

	seen  map[[sha256.Size]byte]time.Time
	order [][sha256.Size]byte
}

func newRecentWindow(limit int, ttl time.Duration, now func() time.Time) *recentWindow {
	return &recentWindow{
		limit: limit,
		ttl:   ttl,
		now:   now,
		seen:  make(map[[sha256.Size]byte]time.Time, limit),
	}
}

// observe records a (role, content) pair and reports whether it was fresh.
// A false return means an identical pair is still inside the window.
func (w *recentWindow) observe(role Role, content string) bool {
	key := digest(role, content)
	now := w.now()
	w.prune(now)

	if at, ok := w.seen[key]; ok && now.Sub(at) < w.ttl {
		return false
	}
	w.seen[key] = now
	w.order = append(w.order, key)
	if len(w.order) > w.limit {
		evicted := w.order[0]
		w.order = w.order[1:]
		delete(w.seen, evicted)
	}
	return true
}

func (w *recentWindow) prune(now time.Time) {
	kept := w.order[:0]
	for _, key := range w.order {
		at, ok := w.seen[key]
		if !ok {
			continue
		}
		if now.Sub(at) >= w.ttl {
			delete(w.seen, key)
			continue
		}
		kept = append(kept, key)
	}
	w.order = kept
}

func digest(role Role, content string) [sha256.Size]byte {
	h := sha256.New()
	h.Write([]byte(role))
	h.Write([]byte{0})
	h.Write([]byte(content))
	var key [sha256.Size]byte
	copy(key[:], h.Sum(nil))
	return key
}
