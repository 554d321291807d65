package transcriptionapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/loic-ops/medical-transcription/domain"
	"github.com/loic-ops/medical-transcription/domain/repositories"
	"github.com/loic-ops/medical-transcription/internal/metrics"
)

const (
	defaultBaseURL           = "http://host.docker.internal:5001"
	defaultTranscribeTimeout = 300 * time.Second // speech processing is slow
	defaultLookupTimeout     = 30 * time.Second  // templates, lookup and artifact downloads
	defaultValidateTimeout   = 60 * time.Second
	defaultInputLanguage     = "fr"
	defaultOutputLanguage    = "fr"

	templatesPath     = "/api/medical/templates"
	transcriptionPath = "/api/medical/transcription/"
	transcribePath    = "/api/medical/transcribe"
	validatePath      = "/api/medical/validate"
)

// Config holds configuration for the transcription service client.
// Optional fields with defaults:
// - BaseURL: the service root (default: "http://host.docker.internal:5001")
// - TranscribeTimeout: per-call transcription timeout (default: 300s)
// - LookupTimeout: templates, lookup and download timeout (default: 30s)
// - ValidateTimeout: validation timeout (default: 60s)
// - InputLanguage / OutputLanguage: language codes sent when the caller leaves them empty (default: "fr")
type Config struct {
	BaseURL           string
	TranscribeTimeout time.Duration
	LookupTimeout     time.Duration
	ValidateTimeout   time.Duration
	InputLanguage     string
	OutputLanguage    string
	HTTPClient        *http.Client     // Optional: transport override, mostly for tests
	Metrics           *metrics.Metrics // Optional: defaults to metrics.DefaultMetrics
}

// Client implements repositories.TranscriptionAPI over HTTP
type Client struct {
	baseURL           string
	transcribeTimeout time.Duration
	lookupTimeout     time.Duration
	validateTimeout   time.Duration
	inputLanguage     string
	outputLanguage    string
	httpClient        *http.Client
	metrics           *metrics.Metrics
	logger            *zap.Logger
}

// Ensure Client implements the TranscriptionAPI interface
var _ repositories.TranscriptionAPI = (*Client)(nil)

// NewClient creates a client for the external transcription service
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
		logger.Info("Using default transcription API URL", zap.String("baseURL", baseURL))
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid transcription API URL %q: %w", baseURL, err)
	}

	if config.TranscribeTimeout < 0 || config.LookupTimeout < 0 || config.ValidateTimeout < 0 {
		return nil, fmt.Errorf("timeouts must be positive")
	}

	c := &Client{
		baseURL:           baseURL,
		transcribeTimeout: config.TranscribeTimeout,
		lookupTimeout:     config.LookupTimeout,
		validateTimeout:   config.ValidateTimeout,
		inputLanguage:     config.InputLanguage,
		outputLanguage:    config.OutputLanguage,
		httpClient:        config.HTTPClient,
		metrics:           config.Metrics,
		logger:            logger,
	}
	if c.transcribeTimeout == 0 {
		c.transcribeTimeout = defaultTranscribeTimeout
	}
	if c.lookupTimeout == 0 {
		c.lookupTimeout = defaultLookupTimeout
	}
	if c.validateTimeout == 0 {
		c.validateTimeout = defaultValidateTimeout
	}
	if c.inputLanguage == "" {
		c.inputLanguage = defaultInputLanguage
	}
	if c.outputLanguage == "" {
		c.outputLanguage = defaultOutputLanguage
	}
	if c.httpClient == nil {
		// timeouts are carried by the request context
		c.httpClient = &http.Client{}
	}
	if c.metrics == nil {
		c.metrics = metrics.DefaultMetrics
	}
	return c, nil
}

// BaseURL returns the service root the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// TranscribeTimeout returns the default transcription timeout
func (c *Client) TranscribeTimeout() time.Duration {
	return c.transcribeTimeout
}

// ListTemplates returns the service's template catalog verbatim
func (c *Client) ListTemplates(ctx context.Context) (domain.Result, error) {
	c.logger.Info("Fetching templates", zap.String("url", c.baseURL+templatesPath))

	body, err := c.do(ctx, "templates", c.lookupTimeout, http.MethodGet, templatesPath, nil, "")
	if err != nil {
		return nil, c.classify(err, c.lookupTimeout, genericMessages)
	}
	return decodeResult(body)
}

// Lookup fetches a transcription by its external identifier
func (c *Client) Lookup(ctx context.Context, apiTranscriptionID string) (domain.Result, error) {
	if strings.TrimSpace(apiTranscriptionID) == "" {
		return nil, domain.ValidationError("Missing transcription ID")
	}

	c.logger.Info("Looking up transcription",
		zap.String("apiTranscriptionID", apiTranscriptionID),
		zap.String("baseURL", c.baseURL))

	path := transcriptionPath + url.PathEscape(apiTranscriptionID)
	body, err := c.do(ctx, "lookup", c.lookupTimeout, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, c.classify(err, c.lookupTimeout, lookupMessages(apiTranscriptionID))
	}
	return decodeResult(body)
}

// Transcribe uploads one audio clip with the requested field specs.
// allow_additional is always requested.
func (c *Client) Transcribe(ctx context.Context, input repositories.TranscribeInput) (domain.Result, error) {
	timeout := input.Timeout
	if timeout <= 0 {
		timeout = c.transcribeTimeout
	}
	inputLanguage := input.InputLanguage
	if inputLanguage == "" {
		inputLanguage = c.inputLanguage
	}
	outputLanguage := input.OutputLanguage
	if outputLanguage == "" {
		outputLanguage = c.outputLanguage
	}

	fields := "[]"
	if len(input.Fields) > 0 {
		encoded, err := json.Marshal(input.Fields.Normalize())
		if err != nil {
			return nil, domain.NewError(domain.KindUnexpected, fmt.Sprintf("Unexpected error: %v", err), err)
		}
		fields = string(encoded)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("audio", input.Filename)
	if err == nil {
		_, err = part.Write(input.Audio)
	}
	for _, kv := range [][2]string{
		{"fields", fields},
		{"allow_additional", "true"},
		{"input_language", inputLanguage},
		{"output_language", outputLanguage},
	} {
		if err != nil {
			break
		}
		err = writer.WriteField(kv[0], kv[1])
	}
	if err == nil {
		err = writer.Close()
	}
	if err != nil {
		return nil, domain.NewError(domain.KindUnexpected, fmt.Sprintf("Unexpected error: %v", err), err)
	}

	c.logger.Info("Calling transcription API",
		zap.String("url", c.baseURL+transcribePath),
		zap.String("filename", input.Filename),
		zap.Int("audioBytes", len(input.Audio)),
		zap.String("fields", fields),
		zap.Duration("timeout", timeout))

	body, err := c.do(ctx, "transcribe", timeout, http.MethodPost, transcribePath, &buf, writer.FormDataContentType())
	if err != nil {
		return nil, c.classify(err, timeout, genericMessages)
	}
	return decodeResult(body)
}

type validateRequest struct {
	TranscriptionID string                 `json:"transcription_id"`
	ValidatedReport string                 `json:"validated_report"`
	ValidatedData   map[string]interface{} `json:"validated_data"`
}

// Validate forwards the user-approved report and data
func (c *Client) Validate(ctx context.Context, input repositories.ValidateInput) (domain.Result, error) {
	payload, err := json.Marshal(validateRequest{
		TranscriptionID: input.APITranscriptionID,
		ValidatedReport: input.Report,
		ValidatedData:   input.Data,
	})
	if err != nil {
		return nil, domain.NewError(domain.KindUnexpected, fmt.Sprintf("Unexpected error: %v", err), err)
	}

	c.logger.Info("Validating transcription", zap.String("apiTranscriptionID", input.APITranscriptionID))

	body, err := c.do(ctx, "validate", c.validateTimeout, http.MethodPost, validatePath, bytes.NewReader(payload), "application/json")
	if err != nil {
		return nil, c.classify(err, c.validateTimeout, genericMessages)
	}
	return decodeResult(body)
}

// Download fetches an artifact by the path fragment the service returned
func (c *Client) Download(ctx context.Context, path string) ([]byte, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	c.logger.Info("Downloading file", zap.String("url", c.baseURL+path))

	body, err := c.do(ctx, "download", c.lookupTimeout, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, c.classify(err, c.lookupTimeout, genericMessages)
	}
	return body, nil
}

// statusError is a non-2xx answer from the service
type statusError struct {
	StatusCode int
	Body       []byte
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, truncate(string(e.Body), 200))
}

// callerDeadlineError marks a timeout raised by the caller's own deadline,
// which was shorter than the client's per-call timeout
type callerDeadlineError struct {
	err error
}

func (e *callerDeadlineError) Error() string { return e.err.Error() }
func (e *callerDeadlineError) Unwrap() error { return e.err }

// do runs one request bounded by timeout and returns the response body of a 2xx answer
func (c *Client) do(ctx context.Context, operation string, timeout time.Duration, method, path string, body io.Reader, contentType string) ([]byte, error) {
	started := time.Now()
	deadline, bounded := ctx.Deadline()
	callerBound := bounded && time.Until(deadline) < timeout
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		c.metrics.ObserveAPICall(operation, "error", started)
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			if !errors.Is(err, context.DeadlineExceeded) {
				err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
			}
			if callerBound {
				err = &callerDeadlineError{err: err}
			}
		}
		c.metrics.ObserveAPICall(operation, outcomeOf(err), started)
		c.logger.Error("Transcription API request failed",
			zap.String("operation", operation),
			zap.String("url", c.baseURL+path),
			zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.ObserveAPICall(operation, outcomeOf(err), started)
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.logger.Debug("Transcription API response",
		zap.String("operation", operation),
		zap.Int("statusCode", resp.StatusCode),
		zap.Int("bytes", len(respBody)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &statusError{StatusCode: resp.StatusCode, Body: respBody}
		c.metrics.ObserveAPICall(operation, outcomeOf(statusErr), started)
		c.logger.Error("Transcription API returned error",
			zap.String("operation", operation),
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", truncate(string(respBody), 500)))
		return nil, statusErr
	}

	c.metrics.ObserveAPICall(operation, "success", started)
	return respBody, nil
}

// messages builds the user-facing text for each failure kind of one operation
type messages struct {
	notFound   func(err error) string
	connection func(baseURL string) string
}

var genericMessages = messages{
	notFound: func(err error) string {
		return fmt.Sprintf("API request error: %v", err)
	},
	connection: func(baseURL string) string {
		return fmt.Sprintf("Cannot connect to API at %s. Check if the transcription service is running and URL is correct.", baseURL)
	},
}

func lookupMessages(apiTranscriptionID string) messages {
	return messages{
		notFound: func(error) string {
			return fmt.Sprintf("Transcription \"%s\" non trouvee sur l'API.", apiTranscriptionID)
		},
		connection: func(baseURL string) string {
			return fmt.Sprintf("Impossible de se connecter a l'API (%s). Verifiez que le serveur de transcription est en cours d'execution.", baseURL)
		},
	}
}

// classify converts a transport or status failure into a domain error
func (c *Client) classify(err error, timeout time.Duration, msgs messages) error {
	switch kind := kindOf(err); kind {
	case domain.KindNotFound:
		return domain.NewError(kind, msgs.notFound(err), err)
	case domain.KindTimeout:
		var callerErr *callerDeadlineError
		if errors.As(err, &callerErr) {
			return domain.NewError(kind, "API timeout: request deadline exceeded", err)
		}
		return domain.NewError(kind, fmt.Sprintf("API timeout after %d seconds", int(timeout.Seconds())), err)
	case domain.KindConnection:
		return domain.NewError(kind, msgs.connection(c.baseURL), err)
	default:
		return domain.NewError(domain.KindRequest, fmt.Sprintf("API request error: %v", err), err)
	}
}

// kindOf tells timeouts, unreachable hosts, 404s and everything else apart
func kindOf(err error) domain.ErrorKind {
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusNotFound {
			return domain.KindNotFound
		}
		return domain.KindRequest
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return domain.KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.KindTimeout
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) || errors.Is(err, syscall.ECONNREFUSED) {
		return domain.KindConnection
	}
	return domain.KindRequest
}

func outcomeOf(err error) string {
	return kindOf(err).String()
}

// decodeResult parses a JSON object answer
func decodeResult(body []byte) (domain.Result, error) {
	var result domain.Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, domain.NewError(domain.KindRequest, fmt.Sprintf("API request error: invalid JSON response: %v", err), err)
	}
	if result == nil {
		result = domain.Result{}
	}
	return result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
