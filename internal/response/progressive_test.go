package response

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/rampart-ai/rampart/internal/engine"
)

// fakeClock lets tests move time forward deterministically.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager() (*Manager, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	m := NewManager(zap.NewNop())
	m.now = clock.now
	return m, clock
}

func TestRecordAttempt_LevelZeroForFirstAttempt(t *testing.T) {
	m, _ := newTestManager()
	if level := m.RecordAttempt("user-1", engine.SeverityLow); level != 0 {
		t.Errorf("one low-severity attempt should stay at level 0, got %d", level)
	}
}

func TestRecordAttempt_LowSeverityReachesLevelOne(t *testing.T) {
	m, clock := newTestManager()
	// Level 1 = 3 attempts in 5 minutes; LOW adds one attempt each.
	m.RecordAttempt("user-1", engine.SeverityLow)
	clock.advance(time.Second)
	m.RecordAttempt("user-1", engine.SeverityLow)
	clock.advance(time.Second)
	level := m.RecordAttempt("user-1", engine.SeverityLow)

	if level != 1 {
		t.Errorf("3 attempts within 5 minutes should reach level 1, got %d", level)
	}
}

func TestRecordAttempt_SeverityWeights(t *testing.T) {
	m, _ := newTestManager()
	// CRITICAL adds 5 attempts at once: meets level 2 (5/15min) but not
	// level 3 (10/30min).
	if level := m.RecordAttempt("user-1", engine.SeverityCritical); level != 2 {
		t.Errorf("one critical attempt should land at level 2, got %d", level)
	}
}

func TestRecordAttempt_EscalatesToLockout(t *testing.T) {
	m, clock := newTestManager()

	// Three criticals = 15 attempts within the hour: level 4.
	m.RecordAttempt("user-1", engine.SeverityCritical)
	clock.advance(time.Minute)
	m.RecordAttempt("user-1", engine.SeverityCritical)
	clock.advance(time.Minute)
	level := m.RecordAttempt("user-1", engine.SeverityCritical)

	if level != 4 {
		t.Fatalf("15 attempts within 60 minutes should reach level 4, got %d", level)
	}

	locked, until := m.IsLockedOut("user-1")
	if !locked {
		t.Fatal("level 4 must set a lockout")
	}
	if want := clock.t.Add(60 * time.Minute); !until.Equal(want) {
		t.Errorf("lockout until %v, want %v", until, want)
	}
}

func TestRecordAttempt_NoCountingWhileLockedOut(t *testing.T) {
	m, clock := newTestManager()
	for i := 0; i < 3; i++ {
		m.RecordAttempt("user-1", engine.SeverityCritical)
		clock.advance(time.Second)
	}
	if level := m.Level("user-1"); level != 4 {
		t.Fatalf("setup failed, level %d", level)
	}

	// Attempts during lockout return the stored level unchanged.
	if level := m.RecordAttempt("user-1", engine.SeverityCritical); level != 4 {
		t.Errorf("locked-out attempt should return stored level 4, got %d", level)
	}
}

func TestLockoutExpiryDecrementsLevel(t *testing.T) {
	m, clock := newTestManager()
	for i := 0; i < 3; i++ {
		m.RecordAttempt("user-1", engine.SeverityCritical)
		clock.advance(time.Second)
	}

	clock.advance(61 * time.Minute)

	locked, _ := m.IsLockedOut("user-1")
	if locked {
		t.Fatal("lockout should have expired")
	}
	if level := m.Level("user-1"); level != 3 {
		t.Errorf("expired lockout should decrement level to 3, got %d", level)
	}
}

func TestLevel_UnknownIdentifier(t *testing.T) {
	m, _ := newTestManager()
	if m.Level("nobody") != 0 {
		t.Error("unknown identifier should be level 0")
	}
	if locked, _ := m.IsLockedOut("nobody"); locked {
		t.Error("unknown identifier should not be locked out")
	}
}

func TestRecordAttempt_IdentifiersIndependent(t *testing.T) {
	m, _ := newTestManager()
	m.RecordAttempt("user-1", engine.SeverityCritical)

	if level := m.Level("user-2"); level != 0 {
		t.Errorf("user-2 should be unaffected by user-1, got level %d", level)
	}
}

func TestRecordAttempt_WindowExpiryLowersLevel(t *testing.T) {
	m, clock := newTestManager()
	for i := 0; i < 3; i++ {
		m.RecordAttempt("user-1", engine.SeverityLow)
	}
	if level := m.Level("user-1"); level != 1 {
		t.Fatalf("setup failed, level %d", level)
	}

	// After the 5-minute window passes, new single attempts no longer
	// meet any threshold.
	clock.advance(6 * time.Minute)
	if level := m.RecordAttempt("user-1", engine.SeverityLow); level != 0 {
		t.Errorf("stale attempts should not count toward level 1, got %d", level)
	}
}

func TestRecordAttempt_BufferBounded(t *testing.T) {
	m, _ := newTestManager()
	for i := 0; i < 50; i++ {
		m.RecordAttempt("user-1", engine.SeverityCritical)
	}
	st := m.states["user-1"]
	if len(st.attempts) > attemptBufferCap {
		t.Errorf("attempt buffer exceeded capacity: %d", len(st.attempts))
	}
}

func TestReset(t *testing.T) {
	m, _ := newTestManager()
	for i := 0; i < 3; i++ {
		m.RecordAttempt("user-1", engine.SeverityCritical)
	}

	m.Reset("user-1")
	if level := m.Level("user-1"); level != 0 {
		t.Errorf("reset identifier should be level 0, got %d", level)
	}
	if locked, _ := m.IsLockedOut("user-1"); locked {
		t.Error("reset identifier should not be locked out")
	}
}

func TestCleanup_DropsStaleIdentifiers(t *testing.T) {
	m, clock := newTestManager()
	m.RecordAttempt("old-user", engine.SeverityLow)

	clock.advance(25 * time.Hour)
	m.RecordAttempt("fresh-user", engine.SeverityLow)
	m.Cleanup()

	if _, ok := m.states["old-user"]; ok {
		t.Error("identifier with only stale attempts should be removed")
	}
	if _, ok := m.states["fresh-user"]; !ok {
		t.Error("identifier with recent attempts must survive cleanup")
	}
}

func TestLevelCounts(t *testing.T) {
	m, _ := newTestManager()
	m.RecordAttempt("a", engine.SeverityLow)      // level 0
	m.RecordAttempt("b", engine.SeverityCritical) // level 2

	counts := m.LevelCounts()
	if counts[0] != 1 || counts[2] != 1 {
		t.Errorf("unexpected level counts: %v", counts)
	}
}
