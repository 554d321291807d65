package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/loic-ops/medical-transcription/domain"
)

// ListTemplates returns the service's template catalog. With a cache
// configured, a successful catalog is served from it until it expires;
// failures are never cached.
func (s *TranscriptionService) ListTemplates(ctx context.Context) domain.Result {
	if s.cache != nil {
		catalog, ok, err := s.cache.Get(ctx)
		if err != nil {
			s.logger.Warn("Template cache unavailable", zap.Error(err))
		} else if ok {
			s.logger.Debug("Serving templates from cache")
			return catalog
		}
	}

	catalog, err := s.api.ListTemplates(ctx)
	if err != nil {
		return s.fail("templates", err)
	}

	if s.cache != nil && catalog.Succeeded() {
		if err := s.cache.Set(ctx, catalog); err != nil {
			s.logger.Warn("Failed to cache templates", zap.Error(err))
		}
	}
	return catalog
}

// Lookup fetches a transcription from the external service by its external ID
func (s *TranscriptionService) Lookup(ctx context.Context, req LookupRequest) domain.Result {
	if err := s.validate.Struct(req); err != nil {
		return s.fail("lookup", validationError(err))
	}

	result, err := s.api.Lookup(ctx, req.APITranscriptionID)
	if err != nil {
		return s.fail("lookup", err, zap.String("apiTranscriptionID", req.APITranscriptionID))
	}
	return result
}
