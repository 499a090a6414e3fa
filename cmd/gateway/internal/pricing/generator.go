// Package pricing owns the synthetic price state and advances it by a bounded random walk.
package pricing

import (
	"sync"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/instrument"
	"github.com/shubham-shewale/stock-ticker/pkg/models"
)

const (
	DefaultWalkMagnitude = 0.01
	DefaultPriceFloor    = 1.0
)

type Options struct {
	WalkMagnitude float64 // max |delta| per step as a fraction, in (0, 1]
	PriceFloor    float64 // prices never go below this
}

// Generator is written by the scheduler tick and read by authentication handlers.
type Generator struct {
	logger  *zap.Logger
	catalog *instrument.Catalog
	rand    Rand
	clock   Clock
	opts    Options

	mu     sync.RWMutex
	prices map[string]models.Quote
	seq    uint64
}

func NewGenerator(logger *zap.Logger, catalog *instrument.Catalog, rnd Rand, clock Clock, opts Options) *Generator {
	if opts.WalkMagnitude <= 0 || opts.WalkMagnitude > 1 {
		opts.WalkMagnitude = DefaultWalkMagnitude
	}
	if opts.PriceFloor <= 0 {
		opts.PriceFloor = DefaultPriceFloor
	}
	return &Generator{
		logger:  logger,
		catalog: catalog,
		rand:    rnd,
		clock:   clock,
		opts:    opts,
		prices:  make(map[string]models.Quote, catalog.Len()),
	}
}

// Initialize draws a first price for symbol. A second call is a no-op.
func (g *Generator) Initialize(symbol string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initLocked(symbol)
}

func (g *Generator) initLocked(symbol string) models.Quote {
	if q, ok := g.prices[symbol]; ok {
		return q
	}

	r := g.catalog.Range(symbol)
	price := r.Min + g.rand.Float64()*(r.Max-r.Min)
	if price < g.opts.PriceFloor {
		price = g.opts.PriceFloor
	}

	q := models.Quote{
		Symbol:    symbol,
		Price:     price,
		Trend:     0,
		Timestamp: g.clock.Now().UnixMilli(),
	}
	g.prices[symbol] = q
	g.logger.Debug("Initialized price", zap.String("symbol", symbol), zap.Float64("price", price))
	return q
}

// Step advances one symbol outside of a generation.
func (g *Generator) Step(symbol string) models.Quote {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stepLocked(symbol, g.initLocked(symbol).Generation)
}

func (g *Generator) stepLocked(symbol string, generation uint64) models.Quote {
	prev := g.initLocked(symbol)

	delta := (g.rand.Float64()*2 - 1) * g.opts.WalkMagnitude
	if delta > g.opts.WalkMagnitude {
		delta = g.opts.WalkMagnitude
	} else if delta < -g.opts.WalkMagnitude {
		delta = -g.opts.WalkMagnitude
	}

	price := prev.Price * (1 + delta)
	if price < g.opts.PriceFloor {
		price = g.opts.PriceFloor
	}

	q := models.Quote{
		Symbol:     symbol,
		Price:      price,
		Trend:      delta,
		Timestamp:  g.clock.Now().UnixMilli(),
		Generation: generation,
	}
	g.prices[symbol] = q
	return q
}

// StepAll initializes missing instruments, then steps every supported
// instrument under one new generation number.
func (g *Generator) StepAll() Generation {
	g.mu.Lock()
	defer g.mu.Unlock()

	symbols := g.catalog.Symbols()
	for _, sym := range symbols {
		g.initLocked(sym)
	}

	g.seq++
	gen := Generation{Seq: g.seq, Quotes: make([]models.Quote, 0, len(symbols))}
	for _, sym := range symbols {
		gen.Quotes = append(gen.Quotes, g.stepLocked(sym, g.seq))
	}
	return gen
}

// Snapshot returns the current quote of every supported instrument in catalog order.
func (g *Generator) Snapshot() []models.Quote {
	symbols := g.catalog.Symbols()
	out := make([]models.Quote, 0, len(symbols))

	g.mu.RLock()
	missing := false
	for _, sym := range symbols {
		q, ok := g.prices[sym]
		if !ok {
			missing = true
			break
		}
		out = append(out, q)
	}
	g.mu.RUnlock()

	if !missing {
		return out
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	out = out[:0]
	for _, sym := range symbols {
		out = append(out, g.initLocked(sym))
	}
	return out
}
