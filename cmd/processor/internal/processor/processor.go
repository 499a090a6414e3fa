// Package processor mirrors the gateway's quote stream from Kafka into Redis
// so other services can read the latest price per instrument.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-ticker/pkg/config"
	"github.com/shubham-shewale/stock-ticker/pkg/models"
)

const (
	QuoteKeyPrefix = "quote:"
	LatestHashKey  = "quotes:latest"
	ChannelPrefix  = "prices."

	defaultTTL   = time.Hour
	workerBuffer = 100
)

type Processor struct {
	logger     Logger
	rdb        RedisClient
	reader     KafkaReader
	numWorkers int
	ttl        time.Duration
}

func NewProcessor(cfg *config.Config, logger Logger, rdb RedisClient, reader KafkaReader) *Processor {
	workers := cfg.Processor.NumWorkers
	if workers < 1 {
		workers = 1
	}
	ttl := cfg.Redis.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Processor{
		logger:     logger,
		rdb:        rdb,
		reader:     reader,
		numWorkers: workers,
		ttl:        ttl,
	}
}

// Run consumes until ctx is done, then drains the workers.
func (p *Processor) Run(ctx context.Context) error {
	workerChans := make([]chan []byte, p.numWorkers)
	var wg sync.WaitGroup

	for i := 0; i < p.numWorkers; i++ {
		workerChans[i] = make(chan []byte, workerBuffer)
		wg.Add(1)
		go p.worker(i, workerChans[i], &wg)
	}

	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		p.consume(ctx, workerChans)
	}()

	<-ctx.Done()
	p.logger.Info("Shutdown signal received, stopping processor...")

	// only the consumer sends, so wait for it before closing
	<-consumed
	for _, ch := range workerChans {
		close(ch)
	}
	p.logger.Info("Waiting for workers to drain...")
	wg.Wait()

	return nil
}

func (p *Processor) consume(ctx context.Context, workerChans []chan []byte) {
	p.logger.Info("Processor Started", zap.Int("workers", p.numWorkers))
	for {
		m, err := p.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return
			}
			p.logger.Error("Kafka Read Error", zap.Error(err))
			continue
		}

		// Same symbol always goes to the same worker
		workerID := getWorkerID(m.Key, p.numWorkers)

		select {
		case workerChans[workerID] <- m.Value:
		case <-ctx.Done():
			return
		default:
			// the next generation supersedes this one
			p.logger.Warn("Dropping slow packet", zap.String("key", string(m.Key)), zap.Int("worker_id", workerID))
		}
	}
}

type lastSeen struct {
	generation uint64
	timestamp  int64
}

// isStale reports a redelivery: neither the generation nor the timestamp moved forward.
// A restarted gateway starts its generations over but keeps moving in time.
func (l lastSeen) isStale(q models.Quote) bool {
	return q.Generation <= l.generation && q.Timestamp <= l.timestamp
}

func (p *Processor) worker(id int, msgs <-chan []byte, wg *sync.WaitGroup) {
	defer wg.Done()
	ctx := context.Background()

	// Local dedup state; valid because sharding is deterministic
	last := make(map[string]lastSeen)

	for payload := range msgs {
		var q models.Quote
		if err := json.Unmarshal(payload, &q); err != nil {
			p.logger.Error("JSON Unmarshal Error", zap.Error(err))
			continue
		}
		if q.Symbol == "" {
			p.logger.Warn("Quote without symbol", zap.ByteString("payload", payload))
			continue
		}

		if prev, ok := last[q.Symbol]; ok && prev.isStale(q) {
			p.logger.Debug("Skipping duplicate quote",
				zap.String("symbol", q.Symbol), zap.Uint64("generation", q.Generation))
			continue
		}

		pipe := p.rdb.Pipeline()
		pipe.Set(ctx, QuoteKeyPrefix+q.Symbol, payload, p.ttl)
		pipe.HSet(ctx, LatestHashKey, q.Symbol, FormatPrice(q.Price))
		pipe.Publish(ctx, ChannelPrefix+q.Symbol, payload)

		if _, err := pipe.Exec(ctx); err != nil {
			p.logger.Error("Redis Pipeline Error", zap.Error(err), zap.String("symbol", q.Symbol))
			continue
		}

		p.logger.Debug("Processed", zap.String("symbol", q.Symbol), zap.Int("worker_id", id))
		last[q.Symbol] = lastSeen{generation: q.Generation, timestamp: q.Timestamp}
	}
}

// FormatPrice renders a price with exactly two decimals.
func FormatPrice(price float64) string {
	return decimal.NewFromFloat(price).StringFixed(2)
}

func getWorkerID(key []byte, numWorkers int) int {
	h := fnv.New32a()
	h.Write(key)
	return int(h.Sum32() % uint32(numWorkers))
}
