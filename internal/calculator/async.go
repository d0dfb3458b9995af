package calculator

import (
	"context"
	"log"
	"log/slog"
	"time"
)

// Start runs the periodic maintenance loop until ctx is cancelled: snapshots of
// matches that already started are removed and idle rate-limit buckets pruned.
func (c *ProbabilityCalculator) Start(ctx context.Context) error {
	if c.cfg.CleanupInterval <= 0 {
		log.Println("calculator: cleanup disabled, line history is kept until restart")
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(c.cfg.CleanupInterval)
	defer ticker.Stop()

	log.Printf("calculator: starting cleanup with interval %v", c.cfg.CleanupInterval)
	for {
		select {
		case <-ctx.Done():
			log.Println("calculator: stopping cleanup")
			return nil
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

// cleanup runs one maintenance pass.
func (c *ProbabilityCalculator) cleanup(ctx context.Context) {
	removed, err := c.lines.CleanStartedMatches(ctx, c.now())
	if err != nil {
		slog.Error("Failed to clean line snapshots of started matches", "error", err)
	} else if removed > 0 {
		slog.Info("Cleaned line snapshots of started matches", "removed", removed)
	}

	if c.limiter != nil {
		if pruned := c.limiter.Prune(); pruned > 0 {
			slog.Debug("Pruned idle rate limit buckets", "pruned", pruned, "clients", c.limiter.Clients())
		}
	}
}
