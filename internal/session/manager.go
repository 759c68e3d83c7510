// Package session holds per-client display state: the report loading flag
// and the paginated early-warning list. Aggregation itself is stateless.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Rosevil15/TPMSS-sub001/internal/location"
	"github.com/Rosevil15/TPMSS-sub001/internal/warning"
)

// PageSize is the number of warning cases shown per load.
const PageSize = 10

// Session is one client's display state
type Session struct {
	ID        string
	CreatedAt time.Time

	mu         sync.Mutex
	lastSeen   time.Time
	loading    bool
	reportKind string

	filter   location.Filter
	warnings []warning.Case
	stats    warning.Stats
	shown    int
}

// Page is a window onto the warning list.
type Page struct {
	Cases   []warning.Case  `json:"cases"`
	Stats   warning.Stats   `json:"stats"`
	Filter  location.Filter `json:"filter"`
	Shown   int             `json:"shown"`
	Total   int             `json:"total"`
	HasMore bool            `json:"hasMore"`
}

func (s *Session) touch() {
	s.lastSeen = time.Now()
}

// LastSeen returns the last activity timestamp
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// BeginReport sets the loading flag for kind. Only one report runs per
// session; the returned func clears the flag.
func (s *Session) BeginReport(kind string) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touch()
	if s.loading {
		return nil, &ReportInProgressError{Kind: s.reportKind}
	}
	s.loading = true
	s.reportKind = kind

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.loading = false
			s.reportKind = ""
			s.mu.Unlock()
		})
	}, nil
}

// Loading reports whether a report is running and which kind.
func (s *Session) Loading() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reportKind, s.loading
}

// SetWarnings replaces the warning list and returns its first page.
func (s *Session) SetWarnings(f location.Filter, res *warning.Result) Page {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touch()
	s.filter = f
	s.warnings = res.Cases
	s.stats = res.Stats
	s.shown = min(PageSize, len(s.warnings))
	return s.page(0)
}

// MoreWarnings reveals the next page. Once the list is exhausted it returns
// an empty page with HasMore false.
func (s *Session) MoreWarnings() Page {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touch()
	from := s.shown
	s.shown = min(s.shown+PageSize, len(s.warnings))
	return s.page(from)
}

func (s *Session) page(from int) Page {
	cases := make([]warning.Case, s.shown-from)
	copy(cases, s.warnings[from:s.shown])
	return Page{
		Cases:   cases,
		Stats:   s.stats,
		Filter:  s.filter,
		Shown:   s.shown,
		Total:   len(s.warnings),
		HasMore: s.shown < len(s.warnings),
	}
}

// Manager tracks all live sessions
type Manager struct {
	sessions    map[string]*Session
	mu          sync.RWMutex
	maxSessions int
}

// NewManager creates a new session manager
func NewManager(maxSessions int) *Manager {
	return &Manager{
		sessions:    make(map[string]*Session),
		maxSessions: maxSessions,
	}
}

// Create registers a new session under a fresh id.
func (m *Manager) Create() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		return nil, ErrMaxSessionsReached
	}

	now := time.Now()
	s := &Session{ID: uuid.NewString(), CreatedAt: now, lastSeen: now}
	m.sessions[s.ID] = s
	return s, nil
}

// Get retrieves a session by id
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	return s, ok
}

// Remove drops a session
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

// Inactive returns ids of sessions idle longer than timeout.
func (m *Manager) Inactive(timeout time.Duration) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	var ids []string
	for id, s := range m.sessions {
		if now.Sub(s.LastSeen()) > timeout {
			ids = append(ids, id)
		}
	}
	return ids
}

// Sweep removes idle sessions that are not generating a report and returns
// how many were removed.
func (m *Manager) Sweep(timeout time.Duration) int {
	removed := 0
	for _, id := range m.Inactive(timeout) {
		s, ok := m.Get(id)
		if !ok {
			continue
		}
		if _, loading := s.Loading(); loading {
			continue
		}
		if m.Remove(id) == nil {
			removed++
		}
	}
	return removed
}

// Count returns the number of live sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Stats returns statistics about the session manager
func (m *Manager) Stats() ManagerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := ManagerStats{TotalSessions: len(m.sessions), MaxSessions: m.maxSessions}
	for _, s := range m.sessions {
		if _, loading := s.Loading(); loading {
			stats.GeneratingReports++
		}
	}
	return stats
}

// ManagerStats contains statistics about the session manager
type ManagerStats struct {
	TotalSessions     int `json:"totalSessions"`
	GeneratingReports int `json:"generatingReports"`
	MaxSessions       int `json:"maxSessions"`
}

var (
	ErrMaxSessionsReached = &SessionError{"maximum sessions reached"}
	ErrSessionNotFound    = &SessionError{"session not found"}
	// ErrReportInProgress matches any *ReportInProgressError via errors.Is.
	ErrReportInProgress = &SessionError{"a report is already being generated"}
)

// SessionError represents a session error
type SessionError struct {
	msg string
}

func (e *SessionError) Error() string {
	return e.msg
}

// ReportInProgressError is returned while another report for the same
// session is running.
type ReportInProgressError struct {
	Kind string
}

func (e *ReportInProgressError) Error() string {
	return "a " + e.Kind + " report is already being generated"
}

func (e *ReportInProgressError) Is(target error) bool {
	return target == ErrReportInProgress
}
