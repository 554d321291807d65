package report

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/loic-ops/medical-transcription/domain/entities"
)

func TestPDFRenderer_Render(t *testing.T) {
	session := entities.NewTranscriptionSession("consultation", "Consultation générale")
	require.NoError(t, session.AssignReference("MT00042"))
	session.State = entities.StateValidated
	session.MedicalReport = "Patient vu en consultation.\nPas d'anomalie."
	session.ExtractedDataJSON = `{"nom":"Dupont"}`
	session.ValidatedDataJSON = `{"nom":"Dupont","age":"45","tension":{"sys":12,"dia":8},"hdm":""}`

	out, err := NewPDFRenderer(zaptest.NewLogger(t)).Render(context.Background(), session)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
	assert.Equal(t, "Rapport_Medical_MT00042.pdf", session.ReportFilename())
}

func TestPDFRenderer_EmptySession(t *testing.T) {
	session := entities.NewTranscriptionSession("", "")
	require.NoError(t, session.AssignReference("MT00001"))

	out, err := NewPDFRenderer(zaptest.NewLogger(t)).Render(context.Background(), session)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestPDFRenderer_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPDFRenderer(zaptest.NewLogger(t)).Render(ctx, entities.NewTranscriptionSession("", ""))
	assert.Error(t, err)
}

func TestDisplayValue(t *testing.T) {
	assert.Equal(t, "-", displayValue(nil))
	assert.Equal(t, "-", displayValue("  "))
	assert.Equal(t, "45", displayValue(float64(45)))
	assert.Equal(t, `{"dia":8}`, displayValue(map[string]interface{}{"dia": 8}))
	assert.Equal(t, `["a","b"]`, displayValue([]interface{}{"a", "b"}))
}
