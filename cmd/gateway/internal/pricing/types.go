package pricing

import (
	"math/rand"
	"time"

	"github.com/shubham-shewale/stock-ticker/pkg/models"
)

// for deterministic testing
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// for deterministic values; Float64 must return a value in [0, 1)
type Rand interface {
	Float64() float64
}

// Generation is one tick's worth of quotes, one per supported symbol in catalog order.
type Generation struct {
	Seq    uint64
	Quotes []models.Quote
}

type RealClock struct{}

func (RealClock) Now() time.Time        { return time.Now() }
func (RealClock) Sleep(d time.Duration) { time.Sleep(d) }

type RealRand struct{ *rand.Rand }

func NewRealRand(seed int64) RealRand { return RealRand{rand.New(rand.NewSource(seed))} }

func (r RealRand) Float64() float64 { return r.Rand.Float64() }
