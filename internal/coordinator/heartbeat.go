package coordinator

import (
	"context"
	"log/slog"
	"time"

	"pokerhall/internal/registry"
)

const heartbeatInterval = 25 * time.Second

// HeartbeatDriver pings every connected client on a fixed cadence,
// unregistering any connection that fails two consecutive sends (spec
// §4.5 "Heartbeat"). It runs alongside TimerDriver and Sweeper but only
// needs the Connection Registry, not a Coordinator.
type HeartbeatDriver struct {
	registry *registry.Registry
	logger   *slog.Logger
}

func NewHeartbeatDriver(reg *registry.Registry, logger *slog.Logger) *HeartbeatDriver {
	if logger == nil {
		logger = slog.Default()
	}
	if reg == nil {
		reg = registry.Get()
	}
	return &HeartbeatDriver{registry: reg, logger: logger}
}

// Run blocks, pinging every connection every ~25s until ctx is cancelled.
func (h *HeartbeatDriver) Run(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.logger.Debug("heartbeat tick")
			h.registry.Ping()
		}
	}
}
