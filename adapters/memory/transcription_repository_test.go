package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loic-ops/medical-transcription/domain/entities"
	"github.com/loic-ops/medical-transcription/domain/repositories"
)

func TestTranscriptionRepository_CreateAssignsReference(t *testing.T) {
	repo := NewTranscriptionRepository(entities.DefaultReferenceFormat())
	ctx := context.Background()

	first := entities.NewTranscriptionSession("consultation", "Consultation")
	second := entities.NewTranscriptionSession("", "")
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	assert.Equal(t, "MT00001", first.Reference)
	assert.Equal(t, "MT00002", second.Reference)

	// a session is never stored twice
	assert.Error(t, repo.Create(ctx, first))
}

func TestTranscriptionRepository_GetReturnsCopy(t *testing.T) {
	repo := NewTranscriptionRepository(entities.DefaultReferenceFormat())
	ctx := context.Background()

	session := entities.NewTranscriptionSession("", "")
	require.NoError(t, repo.Create(ctx, session))

	got, err := repo.GetByID(ctx, session.ID)
	require.NoError(t, err)
	got.State = entities.StateValidated

	again, err := repo.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.StateDraft, again.State)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, repositories.ErrSessionNotFound)
}

func TestTranscriptionRepository_Update(t *testing.T) {
	repo := NewTranscriptionRepository(entities.DefaultReferenceFormat())
	ctx := context.Background()

	session := entities.NewTranscriptionSession("", "")
	require.NoError(t, repo.Create(ctx, session))

	require.NoError(t, repo.Update(ctx, session.ID, entities.ErrorPatch("API timeout after 300 seconds")))
	got, _ := repo.GetByID(ctx, session.ID)
	assert.Equal(t, entities.StateError, got.State)
	assert.Equal(t, "API timeout after 300 seconds", got.ErrorMessage)

	require.NoError(t, repo.Update(ctx, session.ID, entities.SessionPatch{State: entities.StatePtr(entities.StateTranscribing)}))
	got, _ = repo.GetByID(ctx, session.ID)
	assert.Equal(t, entities.StateTranscribing, got.State)
	assert.Empty(t, got.ErrorMessage)

	assert.ErrorIs(t, repo.Update(ctx, "missing", entities.ErrorPatch("x")), repositories.ErrSessionNotFound)
}

func TestTranscriptionRepository_Attachments(t *testing.T) {
	repo := NewTranscriptionRepository(entities.DefaultReferenceFormat())
	ctx := context.Background()

	session := entities.NewTranscriptionSession("", "")
	require.NoError(t, repo.Create(ctx, session))

	_, err := repo.GetAttachment(ctx, session.ID, entities.AttachmentJSON)
	assert.ErrorIs(t, err, repositories.ErrAttachmentNotFound)

	require.NoError(t, repo.PutAttachment(ctx, session.ID, entities.Attachment{
		Kind:     entities.AttachmentJSON,
		Filename: "ext-1.json",
		Data:     []byte(`{"nom":"Dupont"}`),
	}))

	attachment, err := repo.GetAttachment(ctx, session.ID, entities.AttachmentJSON)
	require.NoError(t, err)
	assert.Equal(t, "ext-1.json", attachment.Filename)
	assert.Equal(t, `{"nom":"Dupont"}`, string(attachment.Data))

	got, _ := repo.GetByID(ctx, session.ID)
	require.NotNil(t, got.JSON)
	assert.Equal(t, int64(16), got.JSON.Size)

	err = repo.PutAttachment(ctx, "missing", entities.Attachment{Kind: entities.AttachmentPDF})
	assert.ErrorIs(t, err, repositories.ErrSessionNotFound)
}

func TestTranscriptionRepository_ListNewestFirst(t *testing.T) {
	repo := NewTranscriptionRepository(entities.DefaultReferenceFormat())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, entities.NewTranscriptionSession("", "")))
	}

	sessions, err := repo.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "MT00003", sessions[0].Reference)
	assert.Equal(t, "MT00002", sessions[1].Reference)

	all, err := repo.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
