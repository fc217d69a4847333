package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skypro1111/stream-stt-service/internal/audio"
	"github.com/skypro1111/stream-stt-service/internal/config"
	"github.com/skypro1111/stream-stt-service/internal/metrics"
	"github.com/skypro1111/stream-stt-service/internal/session"
)

// WSServer accepts audio streams over WebSocket. Binary frames carry
// PCM16 little-endian mono samples; an empty binary frame marks end of
// stream. Results are delivered as JSON text frames.
type WSServer struct {
	server     *http.Server
	listener   net.Listener
	config     *config.ServerConfig
	logger     *slog.Logger
	sessionMgr *session.Manager
	metrics    *metrics.Metrics
	upgrader   websocket.Upgrader
}

// NewWSServer creates a new WebSocket intake server instance
func NewWSServer(cfg *config.ServerConfig, logger *slog.Logger, sessionMgr *session.Manager, m *metrics.Metrics) *WSServer {
	s := &WSServer{
		config:     cfg,
		logger:     logger,
		sessionMgr: sessionMgr,
		metrics:    m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  32 * 1024,
			WriteBufferSize: 4 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWS)

	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.WSPort),
		Handler: mux,
	}

	return s
}

// Start begins serving WebSocket upgrades
func (s *WSServer) Start() error {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on WebSocket port: %w", err)
	}
	s.listener = listener

	s.logger.Info("WebSocket server started",
		slog.String("address", listener.Addr().String()))

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("WebSocket server failed", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Addr returns the bound listener address, nil before Start.
func (s *WSServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop gracefully shuts down the WebSocket server
func (s *WSServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping WebSocket server...")
	return s.server.Shutdown(ctx)
}

// handleWS upgrades the connection and drives one session over it.
func (s *WSServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	remoteAddr := conn.RemoteAddr().String()
	s.logger.Info("WebSocket client connected", slog.String("remote_addr", remoteAddr))
	if s.metrics != nil {
		s.metrics.ActiveConnections.Inc()
		defer s.metrics.ActiveConnections.Dec()
	}

	var writeMu sync.Mutex
	finalDone := make(chan struct{})

	writeResult := func(msgType, text string) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(resultMessage{Type: msgType, Text: text})
	}

	sess, err := s.sessionMgr.CreateSession(
		func(text string) {
			if err := writeResult("partial", text); err != nil {
				s.logger.Warn("Failed to write partial result",
					slog.String("remote_addr", remoteAddr),
					slog.String("error", err.Error()))
			}
		},
		func(text string) {
			if err := writeResult("final", text); err != nil {
				s.logger.Warn("Failed to write final result",
					slog.String("remote_addr", remoteAddr),
					slog.String("error", err.Error()))
			}
			close(finalDone)
		},
	)
	if err != nil {
		s.logger.Warn("Rejecting WebSocket connection",
			slog.String("remote_addr", remoteAddr),
			slog.String("error", err.Error()))
		writeMu.Lock()
		conn.WriteJSON(resultMessage{Type: "error", Text: err.Error()})
		writeMu.Unlock()
		return
	}

	if maxDur := s.config.GetMaxStreamDuration(); maxDur > 0 {
		timer := time.AfterFunc(maxDur, func() {
			s.logger.Warn("Stream duration cap reached, aborting session",
				slog.String("session_id", sess.ID),
				slog.Duration("max_duration", maxDur))
			sess.Abort()
		})
		defer timer.Stop()
	}

	s.readFrames(conn, sess, remoteAddr)

	select {
	case <-finalDone:
	case <-time.After(60 * time.Second):
		s.logger.Error("Timed out waiting for final result",
			slog.String("session_id", sess.ID))
		sess.Abort()
		<-finalDone
	}

	writeMu.Lock()
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	writeMu.Unlock()

	s.sessionMgr.RemoveSession(sess.ID)
	s.logger.Info("WebSocket client disconnected",
		slog.String("remote_addr", remoteAddr),
		slog.String("session_id", sess.ID))
}

// readFrames consumes binary audio frames until the end-of-stream
// marker, a close frame, or an error.
func (s *WSServer) readFrames(conn *websocket.Conn, sess *session.Session, remoteAddr string) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("WebSocket read failed, treating as end of stream",
					slog.String("remote_addr", remoteAddr),
					slog.String("error", err.Error()))
			}
			sess.Finish()
			return
		}

		if msgType != websocket.BinaryMessage {
			continue
		}

		// Empty binary frame is the end-of-stream marker.
		if len(data) == 0 {
			sess.Finish()
			return
		}

		if s.metrics != nil {
			s.metrics.BytesReceived.Add(float64(len(data)))
		}
		if len(data)%2 != 0 {
			data = data[:len(data)-1]
		}
		sess.Feed(audio.DecodePCM16(data))
	}
}
