package sensor

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"riverdash/internal/modules/indoor"
)

// Synthetic returns plausible indoor values for development machines.
type Synthetic struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewSynthetic uses rng, or a randomly seeded source when rng is nil.
func NewSynthetic(rng *rand.Rand) *Synthetic {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Synthetic{rng: rng, now: time.Now}
}

func (s *Synthetic) Name() string { return "synthetic" }

func (s *Synthetic) Close() error { return nil }

func (s *Synthetic) Read(ctx context.Context) (indoor.Reading, error) {
	if err := ctx.Err(); err != nil {
		return indoor.Reading{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	gas := round(s.uniform(50000, 200000), 0)
	return indoor.Reading{
		Timestamp:     s.now(),
		Temperature:   round(s.uniform(68, 74), 1),
		Humidity:      round(s.uniform(35, 45), 1),
		Pressure:      round(s.uniform(29.8, 30.2), 2),
		GasResistance: &gas,
		PM1:           round(s.uniform(3, 10), 1),
		PM25:          round(s.uniform(5, 15), 1),
		PM10:          round(s.uniform(8, 20), 1),
	}, nil
}

func (s *Synthetic) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}
