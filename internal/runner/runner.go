package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/elys-network/clvm/internal/logger"
	"github.com/elys-network/clvm/internal/state"
	"github.com/elys-network/clvm/internal/vault"
)

// Runner periodically records vault snapshots to the journal so the
// position history survives restarts and is queryable offline.
type Runner struct {
	logger zerolog.Logger
	vault  *vault.Vault

	cycleCount int
}

// Config holds the configuration for creating a new Runner instance
type Config struct {
	Vault *vault.Vault
}

// NewRunner creates a new Runner instance with dependency injection
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Vault == nil {
		return nil, fmt.Errorf("vault cannot be nil")
	}

	r := &Runner{
		logger: logger.GetForComponent("snapshot_runner"),
		vault:  cfg.Vault,
	}

	r.logger.Info().Msg("Runner instance created successfully with dependency injection")
	return r, nil
}

// RunLoop starts the snapshot loop with the specified interval
func (r *Runner) RunLoop(ctx context.Context, interval time.Duration) {
	r.logger.Info().
		Dur("interval", interval).
		Msg("Starting snapshot loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run first cycle immediately
	r.runCycle()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Snapshot loop stopped due to context cancellation")
			return
		case <-ticker.C:
			r.runCycle()
		}
	}
}

func (r *Runner) runCycle() {
	r.cycleCount++
	r.logger.Debug().Int("cycle", r.cycleCount).Msg("Recording vault snapshot")

	summary := r.vault.Summarize()

	var tickLower, tickUpper int32
	if summary.TickRange != nil {
		tickLower = summary.TickRange.Lower
		tickUpper = summary.TickRange.Upper
	}

	snapshotID, err := state.SaveVaultSnapshot(
		summary.TotalShares.String(),
		summary.InPosition,
		r.vault.PositionID(),
		tickLower, tickUpper,
		summary.IdleBalances,
	)
	if err != nil {
		r.logger.Error().Err(err).Int("cycle", r.cycleCount).Msg("Failed to save vault snapshot")
		return
	}

	r.logger.Info().
		Int("cycle", r.cycleCount).
		Int64("snapshotId", snapshotID).
		Msg("Vault snapshot recorded")
}
