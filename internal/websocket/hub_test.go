package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/loic-ops/medical-transcription/domain"
	"github.com/loic-ops/medical-transcription/internal/metrics"
)

// mockRecorder records what the hub asks it to store
type mockRecorder struct {
	mu       sync.Mutex
	started  []string
	filename string
	audio    []byte
	startErr error
}

func (m *mockRecorder) StartRecording(ctx context.Context, id, filename string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	m.started = append(m.started, id)
	return nil
}

func (m *mockRecorder) AttachAudio(ctx context.Context, id, filename string, audio []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filename = filename
	m.audio = audio
	return nil
}

func setupTestServer(t *testing.T, recorder Recorder) (*Hub, *httptest.Server, *metrics.Metrics) {
	t.Helper()
	m := metrics.NewMetrics(prometheus.NewRegistry())
	hub := NewHub(recorder, m, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	e := echo.New()
	e.GET("/ws", hub.HandleWebSocket)
	server := httptest.NewServer(e)

	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return hub, server, m
}

func dial(t *testing.T, server *httptest.Server, transcriptionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?transcription_id=" + transcriptionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	var msg map[string]interface{}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to decode %s: %v", data, err)
	}
	return msg
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub_RecordingFlow(t *testing.T) {
	recorder := &mockRecorder{}
	_, server, m := setupTestServer(t, recorder)
	conn := dial(t, server, "tx-1")

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"recording_start","filename":"live.webm"}`)); err != nil {
		t.Fatal(err)
	}
	if msg := readJSON(t, conn); msg["type"] != string(MessageTypeRecordingStarted) {
		t.Fatalf("Expected recording_started, got %v", msg)
	}

	conn.WriteMessage(websocket.BinaryMessage, []byte("abc"))
	conn.WriteMessage(websocket.BinaryMessage, []byte("def"))
	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"recording_end"}`))

	msg := readJSON(t, conn)
	if msg["type"] != string(MessageTypeRecordingSaved) {
		t.Fatalf("Expected recording_saved, got %v", msg)
	}
	if msg["bytes"] != float64(6) {
		t.Errorf("Expected 6 bytes, got %v", msg["bytes"])
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if string(recorder.audio) != "abcdef" {
		t.Errorf("Expected audio abcdef, got %q", recorder.audio)
	}
	if recorder.filename != "live.webm" {
		t.Errorf("Expected filename live.webm, got %s", recorder.filename)
	}
	if got := testutil.ToFloat64(m.RecordingBytes); got != 6 {
		t.Errorf("Expected 6 recorded bytes, got %v", got)
	}
}

func TestHub_ChunkWithoutRecording(t *testing.T) {
	_, server, _ := setupTestServer(t, &mockRecorder{})
	conn := dial(t, server, "tx-1")

	conn.WriteMessage(websocket.BinaryMessage, []byte("abc"))
	msg := readJSON(t, conn)
	if msg["type"] != string(MessageTypeError) || msg["error_code"] != "not_recording" {
		t.Errorf("Expected not_recording error, got %v", msg)
	}
}

func TestHub_RecordingStartRejected(t *testing.T) {
	recorder := &mockRecorder{startErr: domain.ValidationError("Cannot record a session in state review")}
	_, server, _ := setupTestServer(t, recorder)
	conn := dial(t, server, "tx-1")

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"recording_start"}`))
	msg := readJSON(t, conn)
	if msg["message"] != "Cannot record a session in state review" {
		t.Errorf("Unexpected error reply: %v", msg)
	}
}

func TestHub_PingPong(t *testing.T) {
	_, server, _ := setupTestServer(t, &mockRecorder{})
	conn := dial(t, server, "tx-1")

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping","data":"42"}`))
	msg := readJSON(t, conn)
	if msg["type"] != string(MessageTypePong) || msg["data"] != "42" {
		t.Errorf("Expected pong, got %v", msg)
	}

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus"}`))
	if msg := readJSON(t, conn); msg["error_code"] != "invalid_message" {
		t.Errorf("Expected invalid_message, got %v", msg)
	}
}

func TestHub_PublishReachesSubscribersOnly(t *testing.T) {
	hub, server, m := setupTestServer(t, &mockRecorder{})
	follower := dial(t, server, "tx-1")
	other := dial(t, server, "tx-2")
	waitFor(t, func() bool { return hub.ClientCount("tx-1") == 1 && hub.ClientCount("tx-2") == 1 })
	if got := testutil.ToFloat64(m.WSClients); got != 2 {
		t.Errorf("Expected 2 clients, got %v", got)
	}

	event := domain.NewSessionEvent(domain.EventStateChanged, "tx-1", "MT00001", "review")
	if err := hub.Publish(context.Background(), event); err != nil {
		t.Fatal(err)
	}

	msg := readJSON(t, follower)
	if msg["type"] != string(MessageTypeSessionEvent) {
		t.Fatalf("Expected session_event, got %v", msg)
	}
	if inner := msg["event"].(map[string]interface{}); inner["state"] != "review" {
		t.Errorf("Unexpected event: %v", inner)
	}

	other.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := other.ReadMessage(); err == nil {
		t.Error("Client of another session should not receive the event")
	}

	follower.Close()
	waitFor(t, func() bool { return hub.ClientCount("tx-1") == 0 })
}

func TestHub_MissingTranscriptionID(t *testing.T) {
	_, server, _ := setupTestServer(t, &mockRecorder{})

	resp, err := http.Get(server.URL + "/ws")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	hub := NewHub(&mockRecorder{}, m, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	e := echo.New()
	e.GET("/ws", hub.HandleWebSocket)
	server := httptest.NewServer(e)
	defer server.Close()

	conn := dial(t, server, "tx-1")
	waitFor(t, func() bool { return hub.ClientCount("tx-1") == 1 })

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("Expected connection to be closed")
	}
	if hub.ClientCount("tx-1") != 0 {
		t.Error("Expected no subscribers after shutdown")
	}
}
