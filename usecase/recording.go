package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/loic-ops/medical-transcription/domain"
	"github.com/loic-ops/medical-transcription/domain/entities"
)

// StartRecording moves a draft session to recording
func (s *TranscriptionService) StartRecording(ctx context.Context, id, filename string) error {
	if filename != "" && !entities.IsSupportedAudioFilename(filename) {
		return domain.ValidationError(fmt.Sprintf("Unsupported audio format: %s", filename))
	}

	session, err := s.loadSession(ctx, id)
	if err != nil {
		return err
	}
	if session.State == entities.StateRecording {
		return nil
	}
	if !session.State.CanTransitionTo(entities.StateRecording) {
		return domain.ValidationError(fmt.Sprintf("Cannot record a session in state %s", session.State))
	}
	if session.Audio != nil {
		return domain.ValidationError("Audio already uploaded")
	}

	if err := s.repo.Update(ctx, session.ID, entities.SessionPatch{State: entities.StatePtr(entities.StateRecording)}); err != nil {
		return domain.NewError(domain.KindPersistence, fmt.Sprintf("Failed to update record: %v", err), err)
	}
	s.stateChanged(ctx, session, entities.StateRecording, "")
	return nil
}

// AttachAudio stores a finished recording on its session. Audio is stored
// only once per session.
func (s *TranscriptionService) AttachAudio(ctx context.Context, id, filename string, audio []byte) error {
	if filename == "" {
		filename = entities.RecordingFilename(time.Now())
	}
	if !entities.IsSupportedAudioFilename(filename) {
		return domain.ValidationError(fmt.Sprintf("Unsupported audio format: %s", filename))
	}
	if len(audio) == 0 {
		return domain.ValidationError("Missing audio data")
	}

	session, err := s.loadSession(ctx, id)
	if err != nil {
		return err
	}
	if session.Audio != nil {
		return domain.ValidationError("Audio already uploaded")
	}
	return s.storeAudio(ctx, session, filename, audio)
}

// attachAudio stores audio as a side effect of another operation; failures
// are logged only
func (s *TranscriptionService) attachAudio(ctx context.Context, session *entities.TranscriptionSession, filename string, audio []byte) {
	if err := s.storeAudio(ctx, session, filename, audio); err != nil {
		s.logger.Warn("Failed to store audio",
			zap.String("transcriptionID", session.ID),
			zap.String("filename", filename),
			zap.Error(err))
	}
}

func (s *TranscriptionService) storeAudio(ctx context.Context, session *entities.TranscriptionSession, filename string, audio []byte) error {
	err := s.repo.PutAttachment(ctx, session.ID, entities.Attachment{
		Kind:     entities.AttachmentAudio,
		Filename: filename,
		Data:     audio,
	})
	if err != nil {
		return domain.NewError(domain.KindPersistence, fmt.Sprintf("Failed to store audio: %v", err), err)
	}

	s.logger.Info("Audio stored",
		zap.String("transcriptionID", session.ID),
		zap.String("filename", filename),
		zap.Int("bytes", len(audio)))
	event := domain.NewSessionEvent(domain.EventAudioAttached, session.ID, session.Reference, string(session.State))
	event.Detail = filename
	s.notify(ctx, event)
	return nil
}
