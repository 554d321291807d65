package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/loic-ops/medical-transcription/domain"
	"github.com/loic-ops/medical-transcription/domain/entities"
	"github.com/loic-ops/medical-transcription/domain/repositories"
	"github.com/loic-ops/medical-transcription/internal/metrics"
)

const (
	defaultListLimit = 50
	// error-state writes and artifact downloads outlive the request that triggered them
	sideEffectTimeout = 30 * time.Second
)

// Config holds workflow settings
type Config struct {
	// TranscribeTimeout bounds one transcription call; zero uses the API client default
	TranscribeTimeout time.Duration
	InputLanguage     string
	OutputLanguage    string
	ListLimit         int
}

// TranscriptionService orchestrates the transcription workflow: it decodes
// audio, calls the external service, writes results back to the record
// store and keeps the session state machine moving.
type TranscriptionService struct {
	repo     repositories.TranscriptionRepository
	api      repositories.TranscriptionAPI
	renderer repositories.ReportRenderer
	cache    repositories.TemplateCache
	config   Config
	validate *validator.Validate
	metrics  *metrics.Metrics
	logger   *zap.Logger

	mu         sync.RWMutex
	publishers []repositories.EventPublisher
}

// NewTranscriptionService creates a new transcription service. cache may be nil.
func NewTranscriptionService(
	repo repositories.TranscriptionRepository,
	api repositories.TranscriptionAPI,
	renderer repositories.ReportRenderer,
	cache repositories.TemplateCache,
	config Config,
	m *metrics.Metrics,
	logger *zap.Logger,
) *TranscriptionService {
	if config.InputLanguage == "" {
		config.InputLanguage = "fr"
	}
	if config.OutputLanguage == "" {
		config.OutputLanguage = "fr"
	}
	if config.ListLimit <= 0 {
		config.ListLimit = defaultListLimit
	}
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &TranscriptionService{
		repo:     repo,
		api:      api,
		renderer: renderer,
		cache:    cache,
		config:   config,
		validate: newValidator(),
		metrics:  m,
		logger:   logger,
	}
}

// AddPublisher registers a sink for session lifecycle events
func (s *TranscriptionService) AddPublisher(p repositories.EventPublisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishers = append(s.publishers, p)
}

// notify fans an event out to every publisher. Publishing never fails the
// action that produced the event.
func (s *TranscriptionService) notify(ctx context.Context, event domain.SessionEvent) {
	s.mu.RLock()
	publishers := s.publishers
	s.mu.RUnlock()

	for _, p := range publishers {
		if err := p.Publish(ctx, event); err != nil {
			s.logger.Warn("Failed to publish session event",
				zap.String("type", string(event.Type)),
				zap.String("transcriptionID", event.TranscriptionID),
				zap.Error(err))
		}
	}
}

// stateChanged records and announces a persisted state change
func (s *TranscriptionService) stateChanged(ctx context.Context, session *entities.TranscriptionSession, state entities.State, errMsg string) {
	s.metrics.RecordTransition(string(state))
	event := domain.NewSessionEvent(domain.EventStateChanged, session.ID, session.Reference, string(state))
	event.Error = errMsg
	s.notify(ctx, event)
}

// markFailed is the best-effort error-state write after a failed transcribe
// step. Its own failure is logged and swallowed so the original error is
// what reaches the user; the return value says whether the write landed.
func (s *TranscriptionService) markFailed(ctx context.Context, session *entities.TranscriptionSession, message string) bool {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	if err := s.repo.Update(ctx, session.ID, entities.ErrorPatch(message)); err != nil {
		s.logger.Error("Failed to record error state",
			zap.String("transcriptionID", session.ID),
			zap.String("errorMessage", message),
			zap.Error(err))
		return false
	}
	s.stateChanged(ctx, session, entities.StateError, message)
	return true
}

// loadSession maps record-store misses to a not-found error
func (s *TranscriptionService) loadSession(ctx context.Context, id string) (*entities.TranscriptionSession, error) {
	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) {
			return nil, domain.NewError(domain.KindNotFound, "Transcription \""+id+"\" not found", err)
		}
		return nil, domain.NewError(domain.KindUnexpected, "Unexpected error: "+err.Error(), err)
	}
	return session, nil
}

// fail logs a workflow failure in full and returns the user-facing shape
func (s *TranscriptionService) fail(operation string, err error, fields ...zap.Field) domain.Result {
	fields = append(fields,
		zap.String("operation", operation),
		zap.String("kind", domain.KindOf(err).String()),
		zap.Error(err))
	switch domain.KindOf(err) {
	case domain.KindValidation, domain.KindNotFound:
		s.logger.Warn("Transcription workflow rejected", fields...)
	default:
		s.logger.Error("Transcription workflow failed", fields...)
	}
	return domain.Failure(err)
}
