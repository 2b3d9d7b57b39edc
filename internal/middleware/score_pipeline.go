package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"CredPulse/internal/domain/models"
	domrepo "CredPulse/internal/domain/repository"
)

// Sink is the minimal downstream the pipeline needs. domrepo.Publisher
// satisfies it.
type Sink interface {
	Publish(ctx context.Context, ev models.ScoreEvent) error
}

// ScorePipeline sits between the scoring cycle and the stream backend.
// It validates, throttles per symbol, optionally transforms, and buffers
// events when the backend is unavailable so a broker outage never stalls
// a scoring cycle.
type ScorePipeline struct {
	sink     Sink
	metrics  domrepo.Metrics
	stream   string
	maxRPS   int
	bufSize  int
	bufCh    chan models.ScoreEvent
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per-symbol last accepted time
	// optional event transform hook
	transform func(models.ScoreEvent) models.ScoreEvent
	// metrics
	bufDepthGauge func(int)
	throttleWarn  func(string)
}

type PipelineOption func(*ScorePipeline)

// WithMaxRPS sets the max events per second per symbol.
func WithMaxRPS(n int) PipelineOption {
	return func(p *ScorePipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the temporary buffer size when the backend is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *ScorePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithStreamLabel sets the stream name used in publish metrics.
func WithStreamLabel(name string) PipelineOption {
	return func(p *ScorePipeline) {
		if name != "" {
			p.stream = name
		}
	}
}

// WithTransform sets a transformation hook applied before publishing.
func WithTransform(fn func(models.ScoreEvent) models.ScoreEvent) PipelineOption {
	return func(p *ScorePipeline) { p.transform = fn }
}

// NewScorePipeline creates a new pipeline in front of sink.
func NewScorePipeline(sink Sink, metrics domrepo.Metrics, opts ...PipelineOption) *ScorePipeline {
	p := &ScorePipeline{
		sink:     sink,
		metrics:  metrics,
		stream:   "scores",
		maxRPS:   10,  // default throttle per symbol
		bufSize:  500, // default buffer
		bufCh:    make(chan models.ScoreEvent, 500),
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize != cap(p.bufCh) {
		p.bufCh = make(chan models.ScoreEvent, p.bufSize)
	}
	p.bufDepthGauge = func(n int) { p.metrics.RecordLatency("pipeline_buffer_depth", float64(n)) }
	p.throttleWarn = func(sym string) { p.metrics.RecordError("pipeline_throttle_" + sym) }
	return p
}

// Start launches background flushing of buffered events.
func (p *ScorePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case ev := <-p.bufCh:
				if err := p.sink.Publish(ctx, ev); err != nil {
					// exponential backoff with cap
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- ev:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					p.metrics.RecordEventPublished(p.stream, 1)
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *ScorePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates, throttles, and forwards an event to the backend,
// buffering on errors.
func (p *ScorePipeline) Process(ctx context.Context, ev models.ScoreEvent) error {
	start := time.Now()
	if err := validateScoreEvent(ev); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if p.transform != nil {
		ev = p.transform(ev)
		if err := validateScoreEvent(ev); err != nil {
			p.metrics.RecordError("pipeline_transform_invalid")
			return err
		}
	}
	if !p.allow(ev.Symbol, start) {
		// throttled; record and drop silently
		p.metrics.RecordError("pipeline_throttle")
		if p.throttleWarn != nil {
			p.throttleWarn(ev.Symbol)
		}
		return nil
	}

	if err := p.sink.Publish(ctx, ev); err != nil {
		p.metrics.RecordError("pipeline_publish")
		// buffer non-blocking
		select {
		case p.bufCh <- ev:
			if p.bufDepthGauge != nil {
				p.bufDepthGauge(len(p.bufCh))
			}
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline publish: %w", err)
	}
	p.metrics.RecordEventPublished(p.stream, 1)
	p.metrics.RecordLatency("pipeline_publish", time.Since(start).Seconds())
	return nil
}

func validateScoreEvent(ev models.ScoreEvent) error {
	if ev.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if ev.Timestamp.IsZero() {
		return fmt.Errorf("timestamp zero")
	}
	if ev.Score < 300 || ev.Score > 850 {
		return fmt.Errorf("score %v out of range", ev.Score)
	}
	if ev.Confidence < 0 || ev.Confidence > 100 {
		return fmt.Errorf("confidence %v out of range", ev.Confidence)
	}
	return nil
}

// allow enforces at most maxRPS events per second per symbol. Callers run
// from concurrent scoring workers, so the map is guarded.
func (p *ScorePipeline) allow(symbol string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastSeen[symbol]
	if last.IsZero() {
		p.lastSeen[symbol] = now
		return true
	}
	if now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[symbol] = now
	return true
}
