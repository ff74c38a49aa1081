// Package stats tracks output statistics for one tool run and formats the
// exit summary shown after a build or publish completes.
package stats

import (
	"sync"
	"time"

	"github.com/influxdata/tdigest"
)

// RunStats accumulates output statistics for a single tool run. Chunk
// sizes and inter-chunk gaps go into t-digests so the summary can report
// percentiles without holding every sample.
type RunStats struct {
	mu sync.Mutex

	startedAt  time.Time
	finishedAt time.Time

	chunkCount int64
	byteCount  int64

	lastChunkAt time.Time
	// gapDigest holds inter-chunk gaps in milliseconds. Long gaps mean
	// the tool went quiet, which is how stuck cooks look from outside.
	gapDigest *tdigest.TDigest
	// sizeDigest holds chunk sizes in bytes.
	sizeDigest *tdigest.TDigest
	maxGap     time.Duration
}

// NewRunStats starts tracking a run from now.
func NewRunStats() *RunStats {
	return &RunStats{
		startedAt:  time.Now(),
		gapDigest:  tdigest.NewWithCompression(100),
		sizeDigest: tdigest.NewWithCompression(100),
	}
}

// OnChunk records one output chunk of n bytes.
func (s *RunStats) OnChunk(n int) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.chunkCount++
	s.byteCount += int64(n)
	s.sizeDigest.Add(float64(n), 1)

	if !s.lastChunkAt.IsZero() {
		gap := now.Sub(s.lastChunkAt)
		s.gapDigest.Add(float64(gap.Milliseconds()), 1)
		if gap > s.maxGap {
			s.maxGap = gap
		}
	}
	s.lastChunkAt = now
}

// Finish stamps the run end time. Safe to call once.
func (s *RunStats) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishedAt = time.Now()
}

// Duration returns the run duration so far, or the final duration once
// Finish has been called.
func (s *RunStats) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finishedAt.IsZero() {
		return time.Since(s.startedAt)
	}
	return s.finishedAt.Sub(s.startedAt)
}

// Chunks returns the number of output chunks seen.
func (s *RunStats) Chunks() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunkCount
}

// Bytes returns the number of output bytes seen.
func (s *RunStats) Bytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byteCount
}

// GapQuantile returns the q quantile of inter-chunk gaps. Returns 0 when
// fewer than two chunks arrived.
func (s *RunStats) GapQuantile(q float64) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chunkCount < 2 {
		return 0
	}
	return time.Duration(s.gapDigest.Quantile(q)) * time.Millisecond
}

// SizeQuantile returns the q quantile of chunk sizes in bytes.
func (s *RunStats) SizeQuantile(q float64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chunkCount == 0 {
		return 0
	}
	return int64(s.sizeDigest.Quantile(q))
}

// MaxGap returns the longest observed silence between chunks.
func (s *RunStats) MaxGap() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxGap
}
