package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skypro1111/stream-stt-service/internal/engine"
	"github.com/skypro1111/stream-stt-service/internal/metrics"
	"github.com/skypro1111/stream-stt-service/internal/vad"
)

// GateConfig holds speech gate configuration applied to new sessions.
type GateConfig struct {
	Enabled    bool
	Threshold  float32
	HighPassHz float32
}

// ManagerConfig contains configuration for the session manager.
type ManagerConfig struct {
	Session     Config
	Gate        GateConfig
	Backend     string
	MaxSessions int
	Timeout     time.Duration
}

// Manager tracks all live transcription sessions, enforces the
// concurrency limit, and expires sessions that stopped receiving audio.
type Manager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	logger   *slog.Logger
	metrics  *metrics.Metrics

	cfg         ManagerConfig
	transcriber engine.Transcriber

	ctx     context.Context
	cancel  context.CancelFunc
	cleanup chan struct{}
}

// NewManager creates a session manager and starts its cleanup routine.
func NewManager(logger *slog.Logger, m *metrics.Metrics, cfg ManagerConfig) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}

	transcriber, err := engine.New(cfg.Backend, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create transcription engine: %w", err)
	}

	if warmer, ok := transcriber.(engine.Warmer); ok {
		if err := warmer.Warm(); err != nil {
			logger.Warn("Engine warm-up failed", slog.String("error", err.Error()))
		}
	}

	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 64
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	mgr := &Manager{
		sessions:    make(map[string]*Session),
		logger:      logger,
		metrics:     m,
		cfg:         cfg,
		transcriber: transcriber,
		ctx:         ctx,
		cancel:      cancel,
		cleanup:     make(chan struct{}),
	}

	go mgr.startCleanupRoutine()

	return mgr, nil
}

// CreateSession creates and starts a new session. The callbacks receive
// partial and final transcripts; either may be nil.
func (m *Manager) CreateSession(onPartial, onFinal func(text string)) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= m.cfg.MaxSessions {
		return nil, fmt.Errorf("session limit reached (%d)", m.cfg.MaxSessions)
	}

	var gate *vad.Gate
	if m.cfg.Gate.Enabled {
		detector := vad.NewEnergyDetector(m.cfg.Gate.HighPassHz, m.cfg.Session.SampleRate)
		g, err := vad.NewGate(detector, m.cfg.Gate.Threshold)
		if err != nil {
			return nil, fmt.Errorf("failed to create speech gate: %w", err)
		}
		gate = g
	}

	id := uuid.NewString()
	invoker := engine.NewInvoker(m.transcriber, m.logger)
	sess := NewSession(id, m.cfg.Session, invoker, gate, m.metrics, m.logger, onPartial, onFinal)

	if err := sess.Start(); err != nil {
		return nil, err
	}

	m.sessions[id] = sess
	if m.metrics != nil {
		m.metrics.SessionsCreated.Inc()
		m.metrics.ActiveSessions.Set(float64(len(m.sessions)))
	}

	m.logger.Info("Created new session",
		slog.String("session_id", id),
		slog.Int("active_sessions", len(m.sessions)))

	return sess, nil
}

// GetSession retrieves an existing session.
func (m *Manager) GetSession(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, exists := m.sessions[id]
	return sess, exists
}

// GetActiveSessionCount returns the number of tracked sessions.
func (m *Manager) GetActiveSessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// GetAllSessions returns a snapshot of all tracked sessions.
func (m *Manager) GetAllSessions() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	return sessions
}

// RemoveSession aborts the session if it is still running and removes
// it from tracking.
func (m *Manager) RemoveSession(id string) bool {
	m.mu.Lock()
	sess, exists := m.sessions[id]
	if !exists {
		m.mu.Unlock()
		return false
	}
	delete(m.sessions, id)
	remaining := len(m.sessions)
	m.mu.Unlock()

	state := sess.State()
	if state == StateStreaming || state == StateDraining {
		sess.Abort()
	}
	sess.Wait()

	if m.metrics != nil {
		m.metrics.ActiveSessions.Set(float64(remaining))
		if sess.State() == StateAborted {
			m.metrics.SessionsAborted.Inc()
		} else {
			m.metrics.SessionsFinished.Inc()
		}
		m.metrics.SessionDuration.Observe(time.Since(sess.StartTime).Seconds())
	}

	m.logger.Info("Session removed",
		slog.String("session_id", id),
		slog.String("state", sess.State().String()),
		slog.Duration("duration", time.Since(sess.StartTime)),
		slog.Int("active_sessions", remaining))

	return true
}

// Stop gracefully stops the manager: all sessions are aborted, the
// engine is closed, and the cleanup routine is stopped.
func (m *Manager) Stop() {
	m.logger.Info("Stopping session manager...")

	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.RemoveSession(id)
	}

	if err := m.transcriber.Close(); err != nil {
		m.logger.Warn("Error closing transcription engine", slog.String("error", err.Error()))
	}

	m.cancel()
	<-m.cleanup

	m.logger.Info("Session manager stopped",
		slog.Int("remaining_sessions", m.GetActiveSessionCount()))
}

// startCleanupRoutine runs in a separate goroutine to clean up expired sessions
func (m *Manager) startCleanupRoutine() {
	defer close(m.cleanup)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	m.logger.Info("Session cleanup routine started",
		slog.Duration("timeout", m.cfg.Timeout),
		slog.Duration("check_interval", 30*time.Second))

	for {
		select {
		case <-m.ctx.Done():
			m.logger.Info("Session cleanup routine stopping")
			return

		case <-ticker.C:
			m.cleanupExpiredSessions()
		}
	}
}

// cleanupExpiredSessions removes terminal sessions and aborts sessions
// that have been inactive for longer than the configured timeout.
func (m *Manager) cleanupExpiredSessions() {
	now := time.Now()
	expired := make([]string, 0)

	m.mu.RLock()
	for id, sess := range m.sessions {
		state := sess.State()
		if state == StateFinished || state == StateAborted {
			expired = append(expired, id)
			continue
		}
		if now.Sub(sess.LastActivity()) > m.cfg.Timeout {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	if len(expired) > 0 {
		m.logger.Info("Cleaning up expired sessions",
			slog.Int("expired_count", len(expired)))

		for _, id := range expired {
			m.RemoveSession(id)
		}
	}
}
