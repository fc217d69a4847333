package server

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWSServerEndToEnd(t *testing.T) {
	mgr := testSessionManager(t)
	defer mgr.Stop()

	cfg := testServerConfig()
	cfg.WSPort = 0
	srv := NewWSServer(cfg, discardLogger(), mgr, nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("Failed to start WebSocket server: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Stop(ctx)
	}()

	url := fmt.Sprintf("ws://%s/", srv.Addr().String())
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	defer conn.Close()

	audio := encodePCM16Tone(1000, 100, 1000)
	if err := conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		t.Fatalf("Failed to send audio: %v", err)
	}
	// Empty binary frame marks end of stream.
	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{}); err != nil {
		t.Fatalf("Failed to send end-of-stream: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	var messages []resultMessage
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var msg resultMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("Invalid result frame %q: %v", string(data), err)
		}
		messages = append(messages, msg)
		if msg.Type == "final" {
			break
		}
	}

	if len(messages) == 0 {
		t.Fatal("Expected at least one result message")
	}
	last := messages[len(messages)-1]
	if last.Type != "final" {
		t.Errorf("Expected final message, got %q", last.Type)
	}
	if last.Text == "" {
		t.Error("Expected non-empty final transcript")
	}
	for _, msg := range messages[:len(messages)-1] {
		if msg.Type != "partial" {
			t.Errorf("Expected partial before final, got %q", msg.Type)
		}
	}
}
