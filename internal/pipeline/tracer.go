package pipeline

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// Span is one named unit of work within a pipeline pass, identified the
// same way the teacher's hand-rolled tracer identifies spans: random hex
// IDs rather than a sequential counter, so IDs stay unique across pipeline
// instances without any shared state beyond the owning Tracer.
type Span struct {
	Name      string
	TraceID   string
	SpanID    string
	ParentID  string
	StartTime time.Time
	EndTime   time.Time
}

// End stamps the span's completion time. Calling it twice is harmless; the
// second call simply overwrites EndTime.
func (s *Span) End() {
	s.EndTime = time.Now()
}

// Duration reports elapsed time, using "now" if the span hasn't ended yet.
func (s *Span) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Tracer stamps one span per pipeline step, chaining each new span's parent
// to the previous one so a single pass reads back as a linear trace. It
// does not batch or export anywhere; a pass's spans live on its
// PipelineEvents for the caller to inspect or log.
type Tracer struct {
	mu         sync.Mutex
	traceID    string
	lastSpanID string
}

// NewTracer starts a fresh trace, one per pipeline pass.
func NewTracer() *Tracer {
	return &Tracer{traceID: generateID(16)}
}

// StartSpan begins a new span parented to whatever span was most recently
// started on this tracer.
func (t *Tracer) StartSpan(name string) *Span {
	t.mu.Lock()
	parent := t.lastSpanID
	spanID := generateID(8)
	t.lastSpanID = spanID
	t.mu.Unlock()

	return &Span{
		Name:      name,
		TraceID:   t.traceID,
		SpanID:    spanID,
		ParentID:  parent,
		StartTime: time.Now(),
	}
}

func generateID(n int) string {
	b := make([]byte, n)
	rand.Read(b)
	return hex.EncodeToString(b)
}
