package sweeper

import (
	"auction-engine/utils"
	"context"
	"time"
)

// DefaultInterval is used when no positive interval is configured
const DefaultInterval = 30 * time.Second

// SweepFunc closes expired auctions and reports how many it closed
type SweepFunc func(ctx context.Context) (int, error)

// Sweeper periodically closes auctions whose close time has passed
type Sweeper struct {
	sweep    SweepFunc
	interval time.Duration
}

func New(sweep SweepFunc, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{sweep: sweep, interval: interval}
}

// Run sweeps once immediately, then on every tick until ctx is done.
// Sweep failures are logged and never stop the loop.
func (s *Sweeper) Run(ctx context.Context) error {
	utils.Info("Sweeper: started", map[string]any{"interval": s.interval.String()})

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-ctx.Done():
			utils.Info("Sweeper: stopped", nil)
			return nil
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	n, err := s.sweep(ctx)
	if err != nil {
		utils.Error("Sweeper: sweep failed", map[string]any{
			"closed": n,
			"error":  err.Error(),
		})
		return
	}
	if n > 0 {
		utils.Debug("Sweeper: closed expired auctions", map[string]any{"closed": n})
	}
}
