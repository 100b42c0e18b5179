package app

import (
	"sync/atomic"
	"time"
)

// Metrics tracks stream and screen throughput.
type Metrics struct {
	// Decoding
	chunkCount  atomic.Uint64
	bytesIn     atomic.Uint64
	feedTotalNs atomic.Int64
	feedMaxNs   atomic.Int64

	// Drawing
	frameCount   atomic.Uint64
	frameTotalNs atomic.Int64

	// Outgoing
	commandCount atomic.Uint64
	bytesOut     atomic.Uint64

	// Start time for uptime calculation
	startTime time.Time
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordFeed records one decoded chunk.
func (m *Metrics) RecordFeed(bytes int, duration time.Duration) {
	ns := duration.Nanoseconds()
	m.chunkCount.Add(1)
	m.bytesIn.Add(uint64(bytes))
	m.feedTotalNs.Add(ns)

	for {
		old := m.feedMaxNs.Load()
		if ns <= old {
			break
		}
		if m.feedMaxNs.CompareAndSwap(old, ns) {
			break
		}
	}
}

// RecordFrame records one screen draw.
func (m *Metrics) RecordFrame(duration time.Duration) {
	m.frameCount.Add(1)
	m.frameTotalNs.Add(duration.Nanoseconds())
}

// RecordCommand records one command line sent to the server.
func (m *Metrics) RecordCommand(bytes int) {
	m.commandCount.Add(1)
	m.bytesOut.Add(uint64(bytes))
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	chunks := m.chunkCount.Load()
	frames := m.frameCount.Load()

	var avgFeedNs int64
	if chunks > 0 {
		avgFeedNs = m.feedTotalNs.Load() / int64(chunks)
	}
	var avgFrameNs int64
	if frames > 0 {
		avgFrameNs = m.frameTotalNs.Load() / int64(frames)
	}

	return MetricsSnapshot{
		Uptime:       time.Since(m.startTime),
		ChunkCount:   chunks,
		BytesIn:      m.bytesIn.Load(),
		AvgFeedNs:    avgFeedNs,
		MaxFeedNs:    m.feedMaxNs.Load(),
		FrameCount:   frames,
		AvgFrameNs:   avgFrameNs,
		CommandCount: m.commandCount.Load(),
		BytesOut:     m.bytesOut.Load(),
	}
}

// MetricsSnapshot is a point-in-time view of metrics.
type MetricsSnapshot struct {
	Uptime       time.Duration
	ChunkCount   uint64
	BytesIn      uint64
	AvgFeedNs    int64
	MaxFeedNs    int64
	FrameCount   uint64
	AvgFrameNs   int64
	CommandCount uint64
	BytesOut     uint64
}

// KBIn returns received data in kilobytes.
func (s MetricsSnapshot) KBIn() float64 {
	return float64(s.BytesIn) / 1024
}

// Timer provides a simple way to measure elapsed time.
type Timer struct {
	start time.Time
}

// StartTimer creates a new timer.
func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Elapsed returns the elapsed time since the timer started.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}
