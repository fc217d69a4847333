package session

import (
	"testing"
	"time"
)

func testManagerConfig() ManagerConfig {
	return ManagerConfig{
		Session:     testConfig(),
		Backend:     "stub",
		MaxSessions: 4,
		Timeout:     time.Minute,
	}
}

func TestManagerCreateAndRemove(t *testing.T) {
	mgr, err := NewManager(nil, nil, testManagerConfig())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	defer mgr.Stop()

	sess, err := mgr.CreateSession(nil, nil)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if sess.ID == "" {
		t.Error("Expected non-empty session ID")
	}
	if mgr.GetActiveSessionCount() != 1 {
		t.Errorf("Expected 1 active session, got %d", mgr.GetActiveSessionCount())
	}

	got, exists := mgr.GetSession(sess.ID)
	if !exists || got != sess {
		t.Error("GetSession did not return the created session")
	}

	if !mgr.RemoveSession(sess.ID) {
		t.Error("Expected removal to succeed")
	}
	if mgr.RemoveSession(sess.ID) {
		t.Error("Expected second removal to fail")
	}
	if mgr.GetActiveSessionCount() != 0 {
		t.Errorf("Expected 0 active sessions, got %d", mgr.GetActiveSessionCount())
	}
}

func TestManagerSessionLimit(t *testing.T) {
	cfg := testManagerConfig()
	cfg.MaxSessions = 1

	mgr, err := NewManager(nil, nil, cfg)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	defer mgr.Stop()

	if _, err := mgr.CreateSession(nil, nil); err != nil {
		t.Fatalf("First session failed: %v", err)
	}
	if _, err := mgr.CreateSession(nil, nil); err == nil {
		t.Error("Expected error past session limit")
	}
}

func TestManagerGateEnabled(t *testing.T) {
	cfg := testManagerConfig()
	cfg.Gate = GateConfig{Enabled: true, Threshold: 0.5}

	mgr, err := NewManager(nil, nil, cfg)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	defer mgr.Stop()

	sess, err := mgr.CreateSession(nil, nil)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	// Silence is gated out, so the capture stays empty.
	sess.Feed(make([]float32, 1000))
	sess.Finish()
	waitDone(t, sess)

	if info := sess.GetInfo(); info.CapturedMs != 0 {
		t.Errorf("Expected empty capture for silence, got %d ms", info.CapturedMs)
	}
}

func TestManagerStopAbortsSessions(t *testing.T) {
	mgr, err := NewManager(nil, nil, testManagerConfig())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	col := &resultCollector{}
	sess, err := mgr.CreateSession(col.onPartial, col.onFinal)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	mgr.Stop()

	if mgr.GetActiveSessionCount() != 0 {
		t.Errorf("Expected 0 sessions after stop, got %d", mgr.GetActiveSessionCount())
	}
	if sess.State() != StateAborted {
		t.Errorf("Expected aborted state after stop, got %s", sess.State())
	}

	_, finals := col.snapshot()
	if len(finals) != 1 {
		t.Errorf("Expected exactly one final, got %d", len(finals))
	}
}

func TestManagerUnknownBackend(t *testing.T) {
	cfg := testManagerConfig()
	cfg.Backend = "nonexistent"

	if _, err := NewManager(nil, nil, cfg); err == nil {
		t.Error("Expected error for unknown backend")
	}
}
