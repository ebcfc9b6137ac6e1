package session

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	stateDirEnvVar = "VOYCE_STATE_DIR"
	stateSubdir    = "voyce"
	stateFileName  = "session.json"
)

// Store holds the backend session identifier that correlates this client with
// server-side ingested video state. The identifier is written at the end of a
// successful search or processing call and read on every chat query; it is a
// single last-write-wins cell backed by a JSON file so it survives restarts.
type Store struct {
	path string

	mu      sync.Mutex
	current string
}

type stateFile struct {
	SessionID string    `json:"sessionId"`
	SavedAt   time.Time `json:"savedAt"`
}

// Open loads the persisted session identifier, if any. An empty dir selects
// the default state directory (VOYCE_STATE_DIR, falling back to the user
// config dir).
func Open(dir string) (*Store, error) {
	if dir == "" {
		dir = os.Getenv(stateDirEnvVar)
	}
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			base = filepath.Join(os.TempDir(), "voyce-state")
		}
		dir = filepath.Join(base, stateSubdir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	s := &Store{path: filepath.Join(dir, stateFileName)}
	id, err := s.load()
	if err != nil {
		return nil, err
	}
	s.current = id
	return s, nil
}

// Current returns the session identifier, or "" when none is known.
func (s *Store) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Set persists a new session identifier. Blank values are ignored so a
// response without a session id cannot clobber a previously stored one.
func (s *Store) Set(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.MarshalIndent(stateFile{SessionID: id, SavedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return err
	}
	s.current = id
	return nil
}

// Clear forgets the stored identifier. Only an explicit user action calls
// this; the ingestion back action intentionally does not.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	s.current = ""
	return nil
}

func (s *Store) load() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	var state stateFile
	if err := json.Unmarshal(data, &state); err != nil {
		// A mangled state file is not worth failing startup over; the user
		// can re-ingest to mint a fresh session.
		return "", nil
	}
	return strings.TrimSpace(state.SessionID), nil
}
