package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects pipeline metrics.
type Metrics interface {
	RecordRequest(labels RequestLabels)
	RecordLatency(duration time.Duration, labels RequestLabels)
	RecordTokens(prompt, completion int, labels RequestLabels)
	RecordValidation(valid, regenerated bool)
	Snapshot() MetricsSnapshot
}

// RequestLabels contains metric dimensions.
type RequestLabels struct {
	Mode   string
	Model  string
	Status string
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	Requests         map[string]int64 `json:"requests"`
	AvgLatencyMs     float64          `json:"avg_latency_ms"`
	PromptTokens     int64            `json:"prompt_tokens"`
	CompletionTokens int64            `json:"completion_tokens"`
	Validations      int64            `json:"validations"`
	InvalidAnswers   int64            `json:"invalid_answers"`
	Regenerations    int64            `json:"regenerations"`
}

// InMemoryMetrics keeps counters in process memory.
type InMemoryMetrics struct {
	mu       sync.Mutex
	requests map[string]int64

	latencyCount int64
	latencyTotal int64 // milliseconds

	promptTokens     atomic.Int64
	completionTokens atomic.Int64
	validations      atomic.Int64
	invalid          atomic.Int64
	regenerations    atomic.Int64
}

// NewInMemoryMetrics creates an empty collector
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{requests: make(map[string]int64)}
}

func (m *InMemoryMetrics) RecordRequest(labels RequestLabels) {
	m.mu.Lock()
	m.requests[labels.Mode+":"+labels.Status]++
	m.mu.Unlock()
}

func (m *InMemoryMetrics) RecordLatency(duration time.Duration, _ RequestLabels) {
	m.mu.Lock()
	m.latencyCount++
	m.latencyTotal += duration.Milliseconds()
	m.mu.Unlock()
}

func (m *InMemoryMetrics) RecordTokens(prompt, completion int, _ RequestLabels) {
	m.promptTokens.Add(int64(prompt))
	m.completionTokens.Add(int64(completion))
}

func (m *InMemoryMetrics) RecordValidation(valid, regenerated bool) {
	m.validations.Add(1)
	if !valid {
		m.invalid.Add(1)
	}
	if regenerated {
		m.regenerations.Add(1)
	}
}

func (m *InMemoryMetrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	requests := make(map[string]int64, len(m.requests))
	for k, v := range m.requests {
		requests[k] = v
	}
	var avg float64
	if m.latencyCount > 0 {
		avg = float64(m.latencyTotal) / float64(m.latencyCount)
	}
	m.mu.Unlock()

	return MetricsSnapshot{
		Requests:         requests,
		AvgLatencyMs:     avg,
		PromptTokens:     m.promptTokens.Load(),
		CompletionTokens: m.completionTokens.Load(),
		Validations:      m.validations.Load(),
		InvalidAnswers:   m.invalid.Load(),
		Regenerations:    m.regenerations.Load(),
	}
}
