// Package response tracks repeat offenders across requests and escalates
// consequences: attempt history per identifier, escalation levels 0-4,
// and advisory lockouts at the top level.
package response

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rampart-ai/rampart/internal/engine"
)

// attemptBufferCap bounds the per-identifier attempt history.
const attemptBufferCap = 100

// historyRetention is how long attempt timestamps are kept before
// cleanup discards them.
const historyRetention = 24 * time.Hour

// levelRule defines one escalation level: the attempt count within its
// window that activates it.
type levelRule struct {
	level    int
	attempts int
	window   time.Duration
}

// Checked from the highest level down; the first rule met wins.
var levelRules = []levelRule{
	{4, 15, 60 * time.Minute},
	{3, 10, 30 * time.Minute},
	{2, 5, 15 * time.Minute},
	{1, 3, 5 * time.Minute},
}

// lockoutDurations indexes lockout length by level. Only level 4
// actually triggers a lockout.
var lockoutDurations = [5]time.Duration{
	0,
	1 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	60 * time.Minute,
}

type identifierState struct {
	attempts     []time.Time
	level        int
	lockoutUntil time.Time
}

// Manager is the progressive response state machine. All state is
// in-memory and advisory: a lockout does not reject requests by itself,
// callers consult IsLockedOut at their enforcement point.
type Manager struct {
	mu     sync.Mutex
	states map[string]*identifierState
	now    func() time.Time
	logger *zap.Logger
}

// NewManager creates an empty manager.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		states: make(map[string]*identifierState),
		now:    time.Now,
		logger: logger,
	}
}

// RecordAttempt registers a detection against the identifier and returns
// the resulting escalation level. While a lockout is active the stored
// level is returned unchanged and no attempt is counted.
func (m *Manager) RecordAttempt(identifier string, severity engine.Severity) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	st := m.states[identifier]
	if st == nil {
		st = &identifierState{}
		m.states[identifier] = st
	}

	if m.settleLockout(st, now) {
		return st.level
	}

	weight := severity.Weight()
	for i := 0; i < weight; i++ {
		st.attempts = append(st.attempts, now)
	}
	if overflow := len(st.attempts) - attemptBufferCap; overflow > 0 {
		st.attempts = st.attempts[overflow:]
	}

	st.level = computeLevel(st.attempts, now)
	if st.level == 4 {
		st.lockoutUntil = now.Add(lockoutDurations[4])
		m.logger.Warn("identifier locked out",
			zap.String("identifier", identifier),
			zap.Time("until", st.lockoutUntil),
		)
	}
	return st.level
}

// Level returns the identifier's current escalation level.
func (m *Manager) Level(identifier string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.states[identifier]
	if st == nil {
		return 0
	}
	m.settleLockout(st, m.now())
	return st.level
}

// IsLockedOut reports whether the identifier is currently locked out and
// until when.
func (m *Manager) IsLockedOut(identifier string) (bool, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.states[identifier]
	if st == nil {
		return false, time.Time{}
	}
	now := m.now()
	if m.settleLockout(st, now) {
		return true, st.lockoutUntil
	}
	return false, time.Time{}
}

// Reset clears all state for the identifier.
func (m *Manager) Reset(identifier string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, identifier)
}

// LevelCounts returns how many identifiers currently sit at each level.
func (m *Manager) LevelCounts() map[int]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[int]int)
	now := m.now()
	for _, st := range m.states {
		m.settleLockout(st, now)
		counts[st.level]++
	}
	return counts
}

// Cleanup discards attempts older than the retention window and drops
// identifiers left with no history and no active lockout.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-historyRetention)
	for id, st := range m.states {
		kept := st.attempts[:0]
		for _, t := range st.attempts {
			if t.After(cutoff) {
				kept = append(kept, t)
			}
		}
		st.attempts = kept
		if len(st.attempts) == 0 && !now.Before(st.lockoutUntil) {
			delete(m.states, id)
		}
	}
}

// Run executes Cleanup on the given interval until ctx is cancelled.
// Single goroutine, so cleanup never overlaps itself.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Cleanup()
		}
	}
}

// settleLockout returns true while a lockout is active. On expiry it
// decrements the stored level once and removes the lockout marker.
// Caller must hold m.mu.
func (m *Manager) settleLockout(st *identifierState, now time.Time) bool {
	if st.lockoutUntil.IsZero() {
		return false
	}
	if now.Before(st.lockoutUntil) {
		return true
	}
	st.lockoutUntil = time.Time{}
	if st.level > 0 {
		st.level--
	}
	return false
}

// computeLevel checks each level's attempt-count window from the highest
// down; the first threshold met wins.
func computeLevel(attempts []time.Time, now time.Time) int {
	for _, r := range levelRules {
		cutoff := now.Add(-r.window)
		count := 0
		for _, t := range attempts {
			if t.After(cutoff) {
				count++
			}
		}
		if count >= r.attempts {
			return r.level
		}
	}
	return 0
}
