package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/skypro1111/stream-stt-service/internal/audio"
	"github.com/skypro1111/stream-stt-service/internal/config"
	"github.com/skypro1111/stream-stt-service/internal/metrics"
	"github.com/skypro1111/stream-stt-service/internal/session"
)

// TCPServer accepts raw PCM16 audio streams over TCP. Each connection
// is one transcription session: the client streams little-endian 16-bit
// mono samples and half-closes when done; the server answers with
// newline-delimited JSON results on the same connection.
type TCPServer struct {
	listener   net.Listener
	config     *config.ServerConfig
	logger     *slog.Logger
	sessionMgr *session.Manager
	metrics    *metrics.Metrics

	// Concurrency management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTCPServer creates a new TCP intake server instance
func NewTCPServer(cfg *config.ServerConfig, logger *slog.Logger, sessionMgr *session.Manager, m *metrics.Metrics) *TCPServer {
	ctx, cancel := context.WithCancel(context.Background())

	return &TCPServer{
		config:     cfg,
		logger:     logger,
		sessionMgr: sessionMgr,
		metrics:    m,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start begins accepting TCP connections
func (s *TCPServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.BindAddress, s.config.TCPPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on TCP: %w", err)
	}
	s.listener = listener

	s.logger.Info("TCP server started",
		slog.String("address", addr),
		slog.Int("max_concurrent_sessions", s.config.MaxConcurrentSessions))

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Addr returns the bound listener address, nil before Start.
func (s *TCPServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop gracefully shuts down the TCP server
func (s *TCPServer) Stop() {
	s.logger.Info("Stopping TCP server...")
	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	s.logger.Info("TCP server stopped")
}

// acceptLoop accepts incoming connections until the server stops
func (s *TCPServer) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			s.logger.Warn("Accept failed", slog.String("error", err.Error()))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// handleConnection drives one transcription session over a connection.
func (s *TCPServer) handleConnection(conn net.Conn) {
	defer conn.Close()

	remoteAddr := conn.RemoteAddr().String()
	s.logger.Info("Client connected", slog.String("remote_addr", remoteAddr))
	if s.metrics != nil {
		s.metrics.ActiveConnections.Inc()
		defer s.metrics.ActiveConnections.Dec()
	}

	var writeMu sync.Mutex
	encoder := json.NewEncoder(conn)
	finalDone := make(chan struct{})

	writeResult := func(msgType, text string) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return encoder.Encode(resultMessage{Type: msgType, Text: text})
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
		s.logger.Warn("Rejecting connection",
			slog.String("remote_addr", remoteAddr),
			slog.String("error", err.Error()))
		writeMu.Lock()
		fmt.Fprintf(conn, "{\"type\":\"error\",\"text\":%q}\n", err.Error())
		writeMu.Unlock()
		return
	}

	// Stream duration guard: overlong streams are aborted, which still
	// yields a final result for the audio captured so far.
	if maxDur := s.config.GetMaxStreamDuration(); maxDur > 0 {
		timer := time.AfterFunc(maxDur, func() {
			s.logger.Warn("Stream duration cap reached, aborting session",
				slog.String("session_id", sess.ID),
				slog.Duration("max_duration", maxDur))
			sess.Abort()
		})
		defer timer.Stop()
	}

	s.readAudio(conn, sess, remoteAddr)

	// Wait for the final result before closing the connection.
	select {
	case <-finalDone:
	case <-time.After(60 * time.Second):
		s.logger.Error("Timed out waiting for final result",
			slog.String("session_id", sess.ID))
		sess.Abort()
		<-finalDone
	}

	s.sessionMgr.RemoveSession(sess.ID)
	s.logger.Info("Client disconnected",
		slog.String("remote_addr", remoteAddr),
		slog.String("session_id", sess.ID))
}

// readAudio copies audio from the connection into the session until the
// client half-closes or the server shuts down. Reads are PCM16 little
// endian; a trailing odd byte is carried into the next read.
func (s *TCPServer) readAudio(conn net.Conn, sess *session.Session, remoteAddr string) {
	buf := make([]byte, 32*1024)
	var pending []byte

	for {
		if err := conn.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
			sess.Abort()
			return
		}

		n, err := conn.Read(buf)
		if n > 0 {
			if s.metrics != nil {
				s.metrics.BytesReceived.Add(float64(n))
			}
			data := buf[:n]
			if len(pending) > 0 {
				data = append(pending, data...)
				pending = nil
			}
			if rem := len(data) % 2; rem != 0 {
				pending = append(pending, data[len(data)-rem:]...)
				data = data[:len(data)-rem]
			}
			sess.Feed(audio.DecodePCM16(data))
		}

		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				select {
				case <-s.ctx.Done():
					sess.Abort()
					return
				default:
					continue
				}
			}
			if !errors.Is(err, io.EOF) {
				s.logger.Warn("Read failed, treating as end of stream",
					slog.String("remote_addr", remoteAddr),
					slog.String("error", err.Error()))
			}
			// A producer error ends the input like an explicit EOF:
			// the captured audio still gets its final pass.
			sess.Finish()
			return
		}
	}
}
