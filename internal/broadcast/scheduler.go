// Package broadcast runs the periodic rate fan-out: once per interval it
// snapshots the distinct subscribed pairs, fetches each pair's latest
// rate exactly once, and delivers the quote to every connection that was
// subscribed at snapshot time.
package broadcast

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/fxstream/internal/metrics"
	"github.com/seenimoa/fxstream/internal/provider"
	"github.com/seenimoa/fxstream/internal/registry"
	"github.com/seenimoa/fxstream/pkg/models"
)

// Sink delivers a broadcast quote to a single connection. Delivery to an
// unknown or closed connection must be a no-op, not an error.
type Sink interface {
	DeliverRate(conn models.ConnectionID, quote *models.RateQuote) bool
}

// Config holds the scheduler's timing knobs.
type Config struct {
	Interval      time.Duration // time between broadcast cycles
	FetchTimeout  time.Duration // bound on each per-pair upstream fetch
	MaxConcurrent int           // concurrent per-pair fetches within a cycle
}

// Scheduler periodically fans freshly fetched rates out to subscribers.
// Ticks never overlap: each cycle runs inline on the ticker goroutine
// and missed ticks are dropped.
type Scheduler struct {
	cfg    Config
	reg    *registry.Registry
	source provider.RateSource
	sink   Sink

	stop chan struct{}
	done chan struct{}
}

// New creates a scheduler. Zero config fields fall back to the reference
// behavior: 60s interval, 10s fetch timeout, 4 concurrent fetches.
func New(cfg Config, reg *registry.Registry, source provider.RateSource, sink Sink) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	return &Scheduler{
		cfg:    cfg,
		reg:    reg,
		source: source,
		sink:   sink,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Run drives broadcast cycles until Stop is called. Blocks; run it on
// its own goroutine.
func (s *Scheduler) Run() {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Tick(context.Background())
		}
	}
}

// Stop terminates the scheduler and waits for an in-progress cycle to finish.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

// Tick runs one broadcast cycle: one upstream fetch per distinct pair,
// fan-out to that pair's snapshot-time subscribers. A failed fetch for
// one pair is logged and skipped; it never blocks other pairs.
func (s *Scheduler) Tick(ctx context.Context) {
	started := time.Now()
	snapshot := s.reg.DistinctPairs()
	metrics.ActivePairs.Set(float64(len(snapshot)))
	if len(snapshot) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(s.cfg.MaxConcurrent)

	for pair, conns := range snapshot {
		g.Go(func() error {
			s.broadcastPair(ctx, pair, conns)
			return nil
		})
	}
	_ = g.Wait()

	metrics.BroadcastTicksTotal.Inc()
	metrics.BroadcastTickDuration.Observe(time.Since(started).Seconds())
}

func (s *Scheduler) broadcastPair(ctx context.Context, pair models.CurrencyPair, conns []models.ConnectionID) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	quote, err := s.source.Latest(fetchCtx, pair)
	metrics.RecordFetch("latest", err)
	if err != nil {
		log.Printf("broadcast: fetch %s failed: %v", pair, err)
		return
	}
	if !quote.Valid() {
		log.Printf("broadcast: discarding invalid quote for %s", pair)
		return
	}

	for _, conn := range conns {
		// A connection that disconnected between snapshot and delivery
		// is silently skipped.
		if s.sink.DeliverRate(conn, quote) {
			metrics.RateUpdatesDeliveredTotal.Inc()
		}
	}
}
