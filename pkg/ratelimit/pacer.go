// Package ratelimit paces successive requests toward the public APIs.
// The jobs are strictly sequential, so pacing reduces to an optional
// randomized pause between one request and the next.
package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for request pacing.
var (
	pacerWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "devdata_pacer_waits_total",
		Help: "Total number of pauses inserted between requests",
	})

	pacerWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "devdata_pacer_wait_seconds",
		Help:    "Pause duration inserted between requests",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	})
)

// Pacer inserts a pause of a random length in [MinDelay, MaxDelay] between
// successive requests. The first request is never delayed.
type Pacer struct {
	minDelay time.Duration
	maxDelay time.Duration
	logger   zerolog.Logger

	mu   sync.Mutex
	last time.Time
	rnd  func() float64
}

// NewPacer creates a pacer. A non-positive maxDelay disables pacing; a
// maxDelay below minDelay is raised to minDelay.
func NewPacer(minDelay, maxDelay time.Duration, logger zerolog.Logger) *Pacer {
	if minDelay < 0 {
		minDelay = 0
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &Pacer{
		minDelay: minDelay,
		maxDelay: maxDelay,
		logger:   logger,
		rnd:      rand.Float64,
	}
}

// Enabled reports whether the pacer ever pauses.
func (p *Pacer) Enabled() bool {
	return p != nil && p.maxDelay > 0
}

// Wait blocks until the next request may be sent or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.last.IsZero() {
		p.last = time.Now()
		return nil
	}

	delay := p.minDelay + time.Duration(p.rnd()*float64(p.maxDelay-p.minDelay))
	remaining := delay - time.Since(p.last)
	if remaining > 0 {
		pacerWaitsTotal.Inc()
		pacerWaitSeconds.Observe(remaining.Seconds())
		p.logger.Debug().Dur("pause", remaining).Msg("Pacing request")

		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	p.last = time.Now()
	return nil
}
