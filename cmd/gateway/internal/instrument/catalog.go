// Package instrument holds the fixed, ordered set of symbols the gateway serves.
package instrument

import (
	"fmt"
	"strings"

	"github.com/shubham-shewale/stock-ticker/pkg/config"
)

// Range is the [Min, Max) interval a first price is drawn from.
type Range struct {
	Min float64
	Max float64
}

func (r Range) validate() error {
	if r.Min <= 0 || r.Max < r.Min {
		return fmt.Errorf("invalid price range [%v, %v)", r.Min, r.Max)
	}
	return nil
}

// Catalog is immutable after construction and safe for concurrent use.
type Catalog struct {
	symbols      []string
	index        map[string]struct{}
	ranges       map[string]Range
	defaultRange Range
}

func NewCatalog(symbols []string, ranges map[string]Range, defaultRange Range) (*Catalog, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("catalog needs at least one symbol")
	}
	if err := defaultRange.validate(); err != nil {
		return nil, fmt.Errorf("default range: %w", err)
	}

	c := &Catalog{
		symbols:      make([]string, 0, len(symbols)),
		index:        make(map[string]struct{}, len(symbols)),
		ranges:       make(map[string]Range, len(ranges)),
		defaultRange: defaultRange,
	}

	for _, raw := range symbols {
		sym := Normalize(raw)
		if sym == "" {
			return nil, fmt.Errorf("empty symbol in catalog")
		}
		if _, dup := c.index[sym]; dup {
			return nil, fmt.Errorf("duplicate symbol %s", sym)
		}
		c.symbols = append(c.symbols, sym)
		c.index[sym] = struct{}{}
	}

	for raw, r := range ranges {
		if err := r.validate(); err != nil {
			return nil, fmt.Errorf("range for %s: %w", raw, err)
		}
		c.ranges[Normalize(raw)] = r
	}

	return c, nil
}

// FromConfig builds the catalog out of the market section.
func FromConfig(cfg config.MarketConfig) (*Catalog, error) {
	ranges := make(map[string]Range, len(cfg.Ranges))
	for sym, r := range cfg.Ranges {
		ranges[sym] = Range{Min: r.Min, Max: r.Max}
	}
	return NewCatalog(cfg.Symbols, ranges, Range{Min: cfg.DefaultRange.Min, Max: cfg.DefaultRange.Max})
}

// Normalize upper-cases and trims a client supplied symbol.
func Normalize(sym string) string {
	return strings.ToUpper(strings.TrimSpace(sym))
}

// Symbols returns the supported symbols in configured order.
func (c *Catalog) Symbols() []string {
	out := make([]string, len(c.symbols))
	copy(out, c.symbols)
	return out
}

func (c *Catalog) Len() int { return len(c.symbols) }

func (c *Catalog) Supported(sym string) bool {
	_, ok := c.index[sym]
	return ok
}

// Range returns the configured range for sym, or the default range.
func (c *Catalog) Range(sym string) Range {
	if r, ok := c.ranges[sym]; ok {
		return r
	}
	return c.defaultRange
}
