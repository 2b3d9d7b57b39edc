package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CredPulse/internal/domain/models"
)

type stubSink struct {
	mu       sync.Mutex
	events   []models.ScoreEvent
	failures int // fail this many calls before succeeding
}

func (s *stubSink) Publish(ctx context.Context, ev models.ScoreEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("broker unavailable")
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *stubSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type stubMetrics struct {
	mu        sync.Mutex
	errors    map[string]int
	published int
}

func newStubMetrics() *stubMetrics {
	return &stubMetrics{errors: make(map[string]int)}
}

func (m *stubMetrics) RecordCycle(string, float64)        {}
func (m *stubMetrics) RecordEntityScored(string, float64) {}
func (m *stubMetrics) RecordRetrain(string, float64)      {}
func (m *stubMetrics) RecordLatency(string, float64)      {}

func (m *stubMetrics) RecordEventPublished(topic string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published += count
}

func (m *stubMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *stubMetrics) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func validEvent(symbol string) models.ScoreEvent {
	return models.ScoreEvent{
		EventID:      "e-1",
		EntityID:     1,
		Symbol:       symbol,
		Timestamp:    time.Now().UTC(),
		Score:        687.5,
		Confidence:   88,
		ModelVersion: "v1.0.2",
	}
}

func TestProcessPublishes(t *testing.T) {
	sink := &stubSink{}
	metrics := newStubMetrics()
	p := NewScorePipeline(sink, metrics)

	require.NoError(t, p.Process(context.Background(), validEvent("ACME")))
	assert.Equal(t, 1, sink.count())
	assert.Equal(t, 1, metrics.published)
}

func TestProcessRejectsInvalidEvents(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*models.ScoreEvent)
	}{
		{"empty symbol", func(ev *models.ScoreEvent) { ev.Symbol = "" }},
		{"zero timestamp", func(ev *models.ScoreEvent) { ev.Timestamp = time.Time{} }},
		{"score below range", func(ev *models.ScoreEvent) { ev.Score = 120 }},
		{"score above range", func(ev *models.ScoreEvent) { ev.Score = 900 }},
		{"confidence out of range", func(ev *models.ScoreEvent) { ev.Confidence = 140 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sink := &stubSink{}
			metrics := newStubMetrics()
			p := NewScorePipeline(sink, metrics)

			ev := validEvent("ACME")
			tc.mutate(&ev)
			require.Error(t, p.Process(context.Background(), ev))
			assert.Zero(t, sink.count())
			assert.Equal(t, 1, metrics.errorCount("pipeline_validate"))
		})
	}
}

func TestProcessThrottlesPerSymbol(t *testing.T) {
	sink := &stubSink{}
	metrics := newStubMetrics()
	p := NewScorePipeline(sink, metrics, WithMaxRPS(1))

	require.NoError(t, p.Process(context.Background(), validEvent("ACME")))
	// second event inside the window is dropped silently
	require.NoError(t, p.Process(context.Background(), validEvent("ACME")))
	assert.Equal(t, 1, sink.count())
	assert.Equal(t, 1, metrics.errorCount("pipeline_throttle"))

	// other symbols are unaffected
	require.NoError(t, p.Process(context.Background(), validEvent("GLOB")))
	assert.Equal(t, 2, sink.count())
}

func TestProcessBuffersOnFailure(t *testing.T) {
	sink := &stubSink{failures: 1}
	metrics := newStubMetrics()
	p := NewScorePipeline(sink, metrics, WithBufferSize(4))

	err := p.Process(context.Background(), validEvent("ACME"))
	require.Error(t, err)
	assert.Equal(t, 1, len(p.bufCh))
	assert.Equal(t, 1, metrics.errorCount("pipeline_publish"))
}

func TestStartFlushesBufferedEvents(t *testing.T) {
	sink := &stubSink{failures: 2}
	metrics := newStubMetrics()
	p := NewScorePipeline(sink, metrics, WithBufferSize(4))

	require.Error(t, p.Process(context.Background(), validEvent("ACME")))
	require.Equal(t, 1, len(p.bufCh))

	p.Start(context.Background())
	defer p.Stop()

	assert.Eventually(t, func() bool { return sink.count() == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, len(p.bufCh))
}

func TestTransformApplied(t *testing.T) {
	sink := &stubSink{}
	p := NewScorePipeline(sink, newStubMetrics(), WithTransform(func(ev models.ScoreEvent) models.ScoreEvent {
		ev.Score = 700
		return ev
	}))

	require.NoError(t, p.Process(context.Background(), validEvent("ACME")))
	require.Equal(t, 1, sink.count())
	assert.Equal(t, 700.0, sink.events[0].Score)
}

func TestStopIsIdempotent(t *testing.T) {
	p := NewScorePipeline(&stubSink{}, newStubMetrics())
	p.Start(context.Background())
	p.Stop()
	p.Stop()
}
