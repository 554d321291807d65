package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/loic-ops/medical-transcription/internal/logging"
)

type options struct {
	server       string
	token        string
	templateType string
	chunkSize    int
	chunkDelay   time.Duration
	transcribe   bool
}

var opts options

var rootCmd = &cobra.Command{
	Use:          "recorder <audio-file>",
	Short:        "Stream an audio file to the transcription server as a live recording",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	Long: `recorder creates a session, streams the file over the recording websocket
in binary chunks the way the browser recorder does, and then asks the server
to transcribe it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := logging.New("info", "dev")
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return run(ctx, args[0], logger)
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&opts.server, "server", "http://localhost:8080", "server base URL")
	f.StringVar(&opts.token, "token", os.Getenv("MT_TOKEN"), "bearer token (defaults to MT_TOKEN)")
	f.StringVar(&opts.templateType, "template", "", "template type of the new session")
	f.IntVar(&opts.chunkSize, "chunk-size", 1024, "bytes per binary frame")
	f.DurationVar(&opts.chunkDelay, "chunk-delay", 20*time.Millisecond, "pause between frames")
	f.BoolVar(&opts.transcribe, "transcribe", true, "transcribe once the recording is stored")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, path string, logger *zap.Logger) error {
	audio, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	filename := filepath.Base(path)
	logger.Info("Read audio file", zap.String("file", path), zap.Int("bytes", len(audio)))

	created, err := postJSON(ctx, "/medical_transcription/sessions", map[string]interface{}{
		"template_type": opts.templateType,
	})
	if err != nil {
		return err
	}
	id, _ := created["id"].(string)
	if id == "" {
		return fmt.Errorf("session not created: %v", created["error"])
	}
	logger.Info("Session created", zap.String("id", id), zap.Any("reference", created["reference"]))

	if err := stream(ctx, id, filename, audio, logger); err != nil {
		return err
	}

	if !opts.transcribe {
		return nil
	}
	logger.Info("Transcribing", zap.String("id", id))
	result, err := postJSON(ctx, "/medical_transcription/transcribe", map[string]interface{}{
		"transcription_id": id,
		"audio_base64":     base64.StdEncoding.EncodeToString(audio),
		"audio_filename":   filename,
		"template_type":    opts.templateType,
	})
	if err != nil {
		return err
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
	if ok, _ := result["success"].(bool); !ok {
		return fmt.Errorf("transcription failed: %v", result["error"])
	}
	return nil
}

// stream sends the audio over the recording websocket and waits until the
// server confirms it stored the recording
func stream(ctx context.Context, id, filename string, audio []byte, logger *zap.Logger) error {
	u, err := url.Parse(opts.server)
	if err != nil {
		return err
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path = "/ws"
	u.RawQuery = url.Values{"transcription_id": {id}}.Encode()

	headers := http.Header{}
	if opts.token != "" {
		headers.Add("Authorization", "Bearer "+opts.token)
	}

	logger.Info("Connecting", zap.String("url", u.String()))
	c, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer c.Close()

	saved := make(chan error, 1)
	go readReplies(c, saved, logger)

	if err := sendJSON(c, map[string]interface{}{"type": "recording_start", "filename": filename}); err != nil {
		return err
	}

	started := time.Now()
	chunks := 0
	for start := 0; start < len(audio); start += opts.chunkSize {
		end := start + opts.chunkSize
		if end > len(audio) {
			end = len(audio)
		}
		if err := c.WriteMessage(websocket.BinaryMessage, audio[start:end]); err != nil {
			return fmt.Errorf("send chunk %d: %w", chunks, err)
		}
		chunks++

		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-saved:
			return fmt.Errorf("recording aborted: %w", err)
		case <-time.After(opts.chunkDelay):
		}
	}
	logger.Info("Finished sending audio chunks",
		zap.Int("chunks", chunks),
		zap.Duration("elapsed", time.Since(started)))

	if err := sendJSON(c, map[string]interface{}{"type": "recording_end"}); err != nil {
		return err
	}

	select {
	case err := <-saved:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(30 * time.Second):
		return fmt.Errorf("timed out waiting for recording_saved")
	}

	// Cleanly close the connection
	_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return nil
}

// readReplies logs server messages until the recording is saved or fails
func readReplies(c *websocket.Conn, saved chan<- error, logger *zap.Logger) {
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			saved <- fmt.Errorf("read: %w", err)
			return
		}

		var msg map[string]interface{}
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn("Unreadable server message", zap.ByteString("data", data))
			continue
		}
		switch msg["type"] {
		case "recording_saved":
			logger.Info("Recording stored", zap.Any("bytes", msg["bytes"]))
			saved <- nil
			return
		case "error":
			saved <- fmt.Errorf("%v (%v)", msg["message"], msg["error_code"])
			return
		case "session_event":
			event, _ := msg["event"].(map[string]interface{})
			logger.Info("Session event", zap.Any("type", event["type"]), zap.Any("state", event["state"]))
		default:
			logger.Info("Server message", zap.Any("type", msg["type"]))
		}
	}
}

func sendJSON(c *websocket.Conn, message map[string]interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, data)
}

func postJSON(ctx context.Context, path string, payload interface{}) (map[string]interface{}, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(opts.server, "/")+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if opts.token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: HTTP %d: %s", path, resp.StatusCode, data)
	}

	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
