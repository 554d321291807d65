package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/loic-ops/medical-transcription/domain"
	"github.com/loic-ops/medical-transcription/domain/entities"
	"github.com/loic-ops/medical-transcription/domain/repositories"
	"github.com/loic-ops/medical-transcription/internal/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks

	// Maximum size of one recording.
	maxRecordingSize = 100 * 1024 * 1024

	// Time allowed for the recorder to store a finished recording.
	storeTimeout = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	// the API is served to the recording frontend from another origin
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Recorder stores what clients record
type Recorder interface {
	StartRecording(ctx context.Context, id, filename string) error
	AttachAudio(ctx context.Context, id, filename string, audio []byte) error
}

// Hub maintains the set of active clients, grouped by the transcription
// session they follow, and pushes session events to them.
type Hub struct {
	// Registered clients by transcription ID.
	subscribers map[string]map[*Client]struct{}

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Closed when Run returns.
	done chan struct{}

	// Mutex for thread-safe access to subscribers map
	mu sync.RWMutex

	recorder  Recorder
	validator *MessageValidator
	metrics   *metrics.Metrics

	logger *zap.Logger
}

// Ensure Hub implements the EventPublisher interface
var _ repositories.EventPublisher = (*Hub)(nil)

// NewHub creates a new WebSocket hub
func NewHub(recorder Recorder, m *metrics.Metrics, logger *zap.Logger) *Hub {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Hub{
		subscribers: make(map[string]map[*Client]struct{}),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		done:        make(chan struct{}),
		recorder:    recorder,
		validator:   NewMessageValidator(entities.IsSupportedAudioFilename),
		metrics:     m,
		logger:      logger,
	}
}

// Run starts the hub's main loop. It returns when ctx is done, after
// closing every client connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.subscribers[client.transcriptionID] == nil {
				h.subscribers[client.transcriptionID] = make(map[*Client]struct{})
			}
			h.subscribers[client.transcriptionID][client] = struct{}{}
			h.mu.Unlock()
			h.metrics.WSClients.Inc()
			h.logger.Info("Client registered",
				zap.String("clientID", client.id),
				zap.String("transcriptionID", client.transcriptionID))

		case client := <-h.unregister:
			h.remove(client)

		case <-ctx.Done():
			h.mu.Lock()
			for id, clients := range h.subscribers {
				for client := range clients {
					client.conn.Close()
					h.metrics.WSClients.Dec()
				}
				delete(h.subscribers, id)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.subscribers[client.transcriptionID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.subscribers, client.transcriptionID)
	}
	close(client.send)
	h.metrics.WSClients.Dec()
	h.logger.Info("Client unregistered",
		zap.String("clientID", client.id),
		zap.String("transcriptionID", client.transcriptionID))
}

// ClientCount returns the number of clients following a session
func (h *Hub) ClientCount(transcriptionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[transcriptionID])
}

// Publish implements repositories.EventPublisher by pushing the event to
// every client following the session. Slow clients miss the event.
func (h *Hub) Publish(ctx context.Context, event domain.SessionEvent) error {
	payload, err := json.Marshal(CreateSessionEventMessage(event))
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.subscribers[event.TranscriptionID] {
		select {
		case client.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
		default:
			h.logger.Warn("Dropping session event for slow client",
				zap.String("clientID", client.id),
				zap.String("type", string(event.Type)))
		}
	}
	return nil
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	id              string
	transcriptionID string

	// Logger
	logger *zap.Logger

	// Recording in progress
	recording      bool
	filename       string
	audio          bytes.Buffer
	recordingStart time.Time

	mutex sync.Mutex
}

// HandleWebSocket upgrades a request for /ws?transcription_id=<id>
func (h *Hub) HandleWebSocket(c echo.Context) error {
	transcriptionID := c.QueryParam("transcription_id")
	if transcriptionID == "" {
		return c.JSON(http.StatusBadRequest, domain.Result{"success": false, "error": "Missing transcription_id"})
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:             h,
		conn:            conn,
		send:            make(chan WriteData, 256),
		id:              uuid.New().String(),
		transcriptionID: transcriptionID,
		logger:          h.logger.With(zap.String("transcriptionID", transcriptionID)),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return nil
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			c.processBinaryAudioChunk(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reply queues a JSON message for the peer; a full queue drops it
func (c *Client) reply(msg interface{}) {
	payload, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("Failed to encode reply", zap.Error(err))
		return
	}
	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
	default:
		c.logger.Warn("Outbound queue full, dropping reply")
	}
}

func (c *Client) replyError(code string, err error) {
	c.reply(CreateErrorMessage(code, domain.UserMessage(err), ""))
}

// processMessage processes incoming control messages
func (c *Client) processMessage(message []byte) {
	msg, err := c.hub.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Invalid message", zap.Error(err))
		c.reply(CreateErrorMessage("invalid_message", "Invalid message", err.Error()))
		return
	}

	switch m := msg.(type) {
	case *RecordingStartMessage:
		c.handleRecordingStart(m)
	case *RecordingEndMessage:
		c.handleRecordingEnd()
	case *PingMessage:
		c.reply(CreatePongMessage(m.Data))
	}
}

// processBinaryAudioChunk appends binary audio data to the open recording
func (c *Client) processBinaryAudioChunk(data []byte) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.recording {
		c.logger.Warn("Received binary audio chunk but no recording is open", zap.Int("size", len(data)))
		c.reply(CreateErrorMessage("not_recording", "No recording in progress", ""))
		return
	}
	if c.audio.Len()+len(data) > maxRecordingSize {
		c.logger.Warn("Recording too large, dropping chunk",
			zap.Int("bytes", c.audio.Len()),
			zap.Int("size", len(data)))
		c.reply(CreateErrorMessage("recording_too_large", "Recording too large", ""))
		return
	}

	c.audio.Write(data)
	c.hub.metrics.RecordingBytes.Add(float64(len(data)))
	c.logger.Debug("Received binary audio chunk",
		zap.Int("size", len(data)),
		zap.Int("totalBytes", c.audio.Len()))
}

// handleRecordingStart moves the session to recording and opens a buffer
func (c *Client) handleRecordingStart(msg *RecordingStartMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err := c.hub.recorder.StartRecording(ctx, c.transcriptionID, msg.Filename); err != nil {
		c.logger.Warn("Failed to start recording", zap.Error(err))
		c.replyError("recording_start_failed", err)
		return
	}

	c.recording = true
	c.filename = msg.Filename
	c.audio.Reset()
	c.recordingStart = time.Now()

	c.logger.Info("Recording started", zap.String("filename", msg.Filename))
	c.reply(CreateRecordingStatusMessage(MessageTypeRecordingStarted, c.transcriptionID, msg.Filename, 0))
}

// handleRecordingEnd stores the buffered audio on the session
func (c *Client) handleRecordingEnd() {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.recording {
		c.reply(CreateErrorMessage("not_recording", "No recording in progress", ""))
		return
	}

	audio := append([]byte(nil), c.audio.Bytes()...)
	if err := c.hub.recorder.AttachAudio(ctx, c.transcriptionID, c.filename, audio); err != nil {
		c.logger.Warn("Failed to store recording",
			zap.Int("bytes", len(audio)),
			zap.Error(err))
		c.replyError("recording_save_failed", err)
		return
	}

	c.recording = false
	c.audio.Reset()
	c.logger.Info("Recording stored",
		zap.Int("bytes", len(audio)),
		zap.Duration("duration", time.Since(c.recordingStart)))
	c.reply(CreateRecordingStatusMessage(MessageTypeRecordingSaved, c.transcriptionID, c.filename, len(audio)))
}
