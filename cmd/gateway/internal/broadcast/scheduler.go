// Package broadcast runs the fixed-cadence tick that steps every price once
// and fans the resulting generation out to each active session.
package broadcast

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/pricing"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/protocol"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/session"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/subscription"
	"github.com/shubham-shewale/stock-ticker/pkg/models"
)

type Stepper interface {
	StepAll() pricing.Generation
}

type SessionSource interface {
	Active() []*session.Session
}

type SubscriptionSource interface {
	Get(sessionID string) subscription.Set
}

// Sink receives every generation after fan-out, e.g. a Kafka publisher.
type Sink interface {
	Publish(ctx context.Context, gen pricing.Generation) error
}

type Scheduler struct {
	logger   *zap.Logger
	prices   Stepper
	sessions SessionSource
	subs     SubscriptionSource
	sinks    []Sink

	interval time.Duration
	workers  int

	tickMu sync.Mutex
	stats  Stats
}

func NewScheduler(
	logger *zap.Logger,
	prices Stepper,
	sessions SessionSource,
	subs SubscriptionSource,
	interval time.Duration,
	workers int,
	sinks ...Sink,
) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	return &Scheduler{
		logger:   logger,
		prices:   prices,
		sessions: sessions,
		subs:     subs,
		sinks:    sinks,
		interval: interval,
		workers:  workers,
	}
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Broadcast scheduler started", zap.Duration("interval", s.interval), zap.Int("workers", s.workers))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Broadcast scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick produces one generation and delivers it. Concurrent calls are serialized.
func (s *Scheduler) Tick(ctx context.Context) pricing.Generation {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	gen := s.prices.StepAll()
	atomic.AddUint64(&s.stats.ticks, 1)
	atomic.StoreUint64(&s.stats.lastGeneration, gen.Seq)

	s.fanOut(gen)

	for _, sink := range s.sinks {
		if err := sink.Publish(ctx, gen); err != nil {
			atomic.AddUint64(&s.stats.sinkErrors, 1)
			s.logger.Error("Sink publish failed", zap.Uint64("generation", gen.Seq), zap.Error(err))
		}
	}

	return gen
}

func (s *Scheduler) Stats() StatsSnapshot { return s.stats.Snapshot() }

func (s *Scheduler) fanOut(gen pricing.Generation) {
	active := s.sessions.Active()
	if len(active) == 0 {
		return
	}

	if s.workers == 1 || len(active) == 1 {
		for _, sess := range active {
			s.deliver(sess, gen)
		}
		return
	}

	shards := make([][]*session.Session, s.workers)
	for _, sess := range active {
		id := getWorkerID(sess.ID(), s.workers)
		shards[id] = append(shards[id], sess)
	}

	var wg sync.WaitGroup
	for _, shard := range shards {
		if len(shard) == 0 {
			continue
		}
		wg.Add(1)
		go func(shard []*session.Session) {
			defer wg.Done()
			for _, sess := range shard {
				s.deliver(sess, gen)
			}
		}(shard)
	}
	wg.Wait()
}

func (s *Scheduler) deliver(sess *session.Session, gen pricing.Generation) {
	subs := s.subs.Get(sess.ID())

	filtered := make([]models.Quote, 0, subs.Len())
	for _, q := range gen.Quotes {
		if subs.Has(q.Symbol) {
			filtered = append(filtered, q)
		}
	}

	if len(filtered) == 0 {
		atomic.AddUint64(&s.stats.silent, 1)
		return
	}

	err := sess.Client().SendJSON(protocol.NewPeriodicUpdate(filtered))
	switch {
	case err == nil:
		atomic.AddUint64(&s.stats.delivered, 1)
	case errors.Is(err, session.ErrClientClosed):
		// disconnected mid fan-out
		atomic.AddUint64(&s.stats.skipped, 1)
		s.logger.Debug("Skipping closed client", zap.String("session", sess.ID()))
	default:
		atomic.AddUint64(&s.stats.skipped, 1)
		s.logger.Warn("Dropping update for slow client",
			zap.String("session", sess.ID()), zap.Uint64("generation", gen.Seq), zap.Error(err))
	}
}

// Same session always lands on the same worker, so its updates stay ordered.
func getWorkerID(key string, numWorkers int) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(numWorkers))
}
