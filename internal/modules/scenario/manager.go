package scenario

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/prisk/internal/domain"
	"github.com/aristath/prisk/internal/metrics"
	"github.com/aristath/prisk/internal/modules/payload"
	"github.com/aristath/prisk/internal/modules/risk"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrSessionNotFound is returned for unknown or expired session IDs.
var ErrSessionNotFound = errors.New("session not found")

// RiskService recomputes views for a snapshot.
type RiskService interface {
	CurrentSnapshot() (*payload.Snapshot, error)
	ViewOf(snap *payload.Snapshot, r domain.Regime, override []float64) (*risk.View, error)
}

// Session is one user's scenario state. Transitions and the recompute that
// follows them run under mu, so a session never has two recomputes in flight.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu         sync.Mutex
	state      State
	snapshotID string
	lastSeen   time.Time
	memoKey    string
	memo       *risk.View
}

// SessionInfo is a read-only description of a session.
type SessionInfo struct {
	ID             string        `json:"id"`
	Regime         domain.Regime `json:"regime"`
	OverrideActive bool          `json:"overrideActive"`
	Override       []float64     `json:"override,omitempty"`
	SnapshotID     string        `json:"snapshotId,omitempty"`
	Key            string        `json:"key"`
	CreatedAt      time.Time     `json:"createdAt"`
	LastSeen       time.Time     `json:"lastSeen"`
}

// Result is a session and the view derived from its state.
type Result struct {
	Session SessionInfo `json:"session"`
	View    *risk.View  `json:"view"`
}

func (s *Session) info() SessionInfo {
	return SessionInfo{
		ID:             s.ID,
		Regime:         s.state.Regime(),
		OverrideActive: s.state.HasOverride(),
		Override:       s.state.Override(),
		SnapshotID:     s.snapshotID,
		Key:            s.state.Key(),
		CreatedAt:      s.CreatedAt,
		LastSeen:       s.lastSeen,
	}
}

// Manager owns the live sessions.
type Manager struct {
	risk    RiskService
	metrics *metrics.Registry
	log     zerolog.Logger
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager
func NewManager(svc RiskService, m *metrics.Registry, log zerolog.Logger) *Manager {
	return &Manager{
		risk:     svc,
		metrics:  m,
		log:      log.With().Str("component", "scenario_manager").Logger(),
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create starts a session in the initial state.
func (m *Manager) Create() SessionInfo {
	now := m.now()
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		state:     NewState(),
		lastSeen:  now,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	n := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetActiveSessions(n)
	m.log.Debug().Str("session_id", s.ID).Msg("Scenario session created")

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info()
}

// Get describes a session.
func (m *Manager) Get(id string) (SessionInfo, error) {
	s, err := m.lookup(id)
	if err != nil {
		return SessionInfo{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info(), nil
}

// Delete ends a session.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	if _, ok := m.sessions[id]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetActiveSessions(n)
	return nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// View returns the session's current view, recomputing only when the
// (snapshot, regime, override) key changed.
func (m *Manager) View(id string) (*Result, error) {
	return m.run(id, nil)
}

// Apply runs t and recomputes the view. On any error the session state is
// left as it was.
func (m *Manager) Apply(id string, t Transition) (*Result, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return m.run(id, &t)
}

// Sweep removes sessions idle for longer than ttl and returns how many.
func (m *Manager) Sweep(ttl time.Duration) int {
	cutoff := m.now().Add(-ttl)

	m.mu.Lock()
	var expired []string
	for id, s := range m.sessions {
		s.mu.Lock()
		idle := s.lastSeen.Before(cutoff)
		s.mu.Unlock()
		if idle {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(m.sessions, id)
	}
	n := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetActiveSessions(n)
	if len(expired) > 0 {
		m.log.Info().Int("expired", len(expired)).Int("active", n).Msg("Swept idle scenario sessions")
	}
	return len(expired)
}

func (m *Manager) lookup(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

func (m *Manager) run(id string, t *Transition) (*Result, error) {
	s, err := m.lookup(id)
	if err != nil {
		return nil, err
	}

	snap, err := m.risk.CurrentSnapshot()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state
	next.override = s.state.Override()

	// A new snapshot may carry a different universe, so an override
	// computed against the old one is dropped.
	if s.snapshotID != "" && s.snapshotID != snap.ID && next.HasOverride() {
		m.log.Warn().
			Str("session_id", s.ID).
			Str("old_snapshot", s.snapshotID).
			Str("new_snapshot", snap.ID).
			Msg("Payload changed, clearing weight override")
		next.Reset()
	}

	if t != nil {
		if err := m.transition(&next, snap, *t); err != nil {
			return nil, err
		}
	}

	key := snap.ID + "#" + next.Key()
	view := s.memo
	if key != s.memoKey || view == nil {
		view, err = m.risk.ViewOf(snap, next.Regime(), next.override)
		if err != nil {
			return nil, err
		}
	}

	if t != nil && t.Kind == TransitionSetRegime && s.state.Regime() != next.Regime() {
		m.metrics.RecordRegimeSwitch(string(s.state.Regime()), string(next.Regime()))
	}

	s.state = next
	s.snapshotID = snap.ID
	s.memoKey = key
	s.memo = view
	s.lastSeen = m.now()

	return &Result{Session: s.info(), View: view}, nil
}

func (m *Manager) transition(st *State, snap *payload.Snapshot, t Transition) error {
	switch t.Kind {
	case TransitionSetRegime:
		r, err := domain.ParseRegime(t.Regime)
		if err != nil {
			return err
		}
		return st.SetRegime(r)

	case TransitionSetWeights:
		data, err := snap.Regime(st.Regime())
		if err != nil {
			return err
		}
		if err := risk.CheckOverride(data, t.Weights); err != nil {
			return err
		}
		st.SetWeightOverride(t.Weights)

	case TransitionPatchWeights:
		data, err := snap.Regime(st.Regime())
		if err != nil {
			return err
		}
		w, err := risk.ApplyPatch(data, st.Override(), t.WeightsBySymbol)
		if err != nil {
			return err
		}
		st.SetWeightOverride(w)

	case TransitionReset:
		st.Reset()
	}
	return nil
}
