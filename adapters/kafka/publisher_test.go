package kafka

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zaptest"

	"github.com/loic-ops/medical-transcription/domain"
	"github.com/loic-ops/medical-transcription/internal/metrics"
)

func TestNew_DisabledMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no brokers", Config{Brokers: []string{}}},
		{"nil brokers", Config{Brokers: nil, Topic: "custom"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg, metrics.NewMetrics(prometheus.NewRegistry()), zaptest.NewLogger(t))
			if p.enabled {
				t.Error("expected publisher to be disabled")
			}
			if p.writer != nil {
				t.Error("expected nil writer when disabled")
			}
			if err := p.Close(); err != nil {
				t.Errorf("expected no error closing disabled publisher, got %v", err)
			}
		})
	}
}

func TestNew_EnabledMode(t *testing.T) {
	p := New(Config{Brokers: []string{"localhost:9092"}}, metrics.NewMetrics(prometheus.NewRegistry()), zaptest.NewLogger(t))
	defer p.Close()

	if !p.enabled {
		t.Error("expected publisher to be enabled")
	}
	if p.topic != defaultTopic {
		t.Errorf("expected default topic %s, got %s", defaultTopic, p.topic)
	}
	if p.writer.Topic != defaultTopic {
		t.Errorf("expected writer topic %s, got %s", defaultTopic, p.writer.Topic)
	}
}

func TestPublisher_Publish_Disabled(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	p := New(Config{}, m, zaptest.NewLogger(t))

	event := domain.NewSessionEvent(domain.EventStateChanged, "session-1", "MT00001", "review")
	if err := p.Publish(context.Background(), event); err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}

	if got := testutil.ToFloat64(m.EventsPublished.WithLabelValues("success")); got != 1 {
		t.Errorf("expected 1 published event, got %v", got)
	}
}
