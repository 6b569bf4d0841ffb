// Package session holds per-user state: the most recently uploaded sheets
// and the log of prompts sent to the assistant.
package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"sheetsql/internal/sheets"
)

// ErrNotFound is returned for unknown or expired session ids.
var ErrNotFound = errors.New("session not found")

// Exchange is one prompt and the assistant's raw response. Answered is
// false when no response was available.
type Exchange struct {
	Prompt   string    `json:"prompt"`
	Response string    `json:"response"`
	Answered bool      `json:"answered"`
	Table    string    `json:"table,omitempty"`
	At       time.Time `json:"at"`
}

// State is the data kept for one session.
type State struct {
	ID string

	mu       sync.Mutex
	sheets   *sheets.Set
	history  []Exchange
	lastSeen time.Time
}

// New returns an empty State with a fresh id.
func New() *State {
	return &State{ID: uuid.NewString(), sheets: sheets.NewSet(), lastSeen: time.Now()}
}

// SetSheets replaces the loaded sheets wholesale.
func (s *State) SetSheets(set *sheets.Set) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set == nil {
		set = sheets.NewSet()
	}
	s.sheets = set
}

// Sheets returns the loaded sheets.
func (s *State) Sheets() *sheets.Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sheets
}

// Sheet returns one loaded sheet by name.
func (s *State) Sheet(name string) (*sheets.Sheet, bool) {
	return s.Sheets().Get(name)
}

// TableNames returns the loaded sheet names in upload order.
func (s *State) TableNames() []string {
	return s.Sheets().Names()
}

// Record appends an exchange to the history.
func (s *State) Record(e Exchange) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, e)
}

// History returns a copy of the exchange log, oldest first.
func (s *State) History() []Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Exchange, len(s.history))
	copy(out, s.history)
	return out
}

// Clear drops sheets and history.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sheets = sheets.NewSet()
	s.history = nil
}

func (s *State) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *State) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// Manager owns the states of all live sessions. Sessions idle for longer
// than the TTL are ended on the next lookup.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*State
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewManager returns a Manager. A ttl of zero keeps sessions until End.
func NewManager(ttl time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		sessions: make(map[string]*State),
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
	}
}

// Start creates a new session.
func (m *Manager) Start() *State {
	st := New()
	st.lastSeen = m.now()

	m.mu.Lock()
	m.sessions[st.ID] = st
	m.mu.Unlock()

	m.logger.Info("Session started", "session_id", st.ID)
	return st
}

// Get returns the live session with id.
func (m *Manager) Get(id string) (*State, error) {
	now := m.now()
	m.mu.Lock()
	m.evictLocked(now)
	st, ok := m.sessions[id]
	m.mu.Unlock()

	if !ok {
		return nil, ErrNotFound
	}
	st.touch(now)
	return st, nil
}

// GetOrStart returns the session with id, starting a new one when it is
// unknown or expired.
func (m *Manager) GetOrStart(id string) (*State, bool) {
	if id != "" {
		if st, err := m.Get(id); err == nil {
			return st, false
		}
	}
	return m.Start(), true
}

// End clears and forgets the session with id.
func (m *Manager) End(id string) error {
	m.mu.Lock()
	st, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	st.Clear()
	m.logger.Info("Session ended", "session_id", id)
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) evictLocked(now time.Time) {
	if m.ttl <= 0 {
		return
	}
	for id, st := range m.sessions {
		if st.idleSince(now) > m.ttl {
			delete(m.sessions, id)
			st.Clear()
			m.logger.Info("Session expired", "session_id", id)
		}
	}
}
