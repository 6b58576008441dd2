package coordinator

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"pokerhall/internal/engine"
	"pokerhall/internal/metrics"
)

const timerTickInterval = time.Second

// TimerDriver is the single cooperative task that fires turn timeouts and
// auto-deal across every active, unpaused game (spec §4.4 "Timer
// driver"). One tick touches every game once; the work inside a tick is
// cheap (a read, and a lock only for games that actually need action).
type TimerDriver struct {
	coord  *Coordinator
	kv     kvStore
	logger *slog.Logger
}

func NewTimerDriver(coord *Coordinator, logger *slog.Logger) *TimerDriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &TimerDriver{coord: coord, kv: coord.kv, logger: logger}
}

// Run blocks, ticking once a second until ctx is cancelled.
func (d *TimerDriver) Run(ctx context.Context) {
	ticker := time.NewTicker(timerTickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

func (d *TimerDriver) tick(ctx context.Context) {
	keys, err := d.kv.KeysWithPrefix(ctx, "engine:")
	if err != nil {
		d.logger.Error("timer driver: list games", "error", err)
		return
	}
	now := time.Now()
	for _, key := range keys {
		d.tickGame(ctx, strings.TrimPrefix(key, "engine:"), now)
	}
}

// tickGame does an unlocked read to decide whether this game needs a
// locked mutation this tick. A game that needs nothing costs one KV read.
func (d *TimerDriver) tickGame(ctx context.Context, code string, now time.Time) {
	data, err := d.kv.Get(ctx, engineKey(code))
	if err != nil {
		return
	}
	g, derr := engine.FromJSON(data)
	if derr != nil {
		d.logger.Error("timer driver: corrupt engine state", "game_code", code, "error", derr)
		return
	}
	if g.GameOver || g.Paused {
		return
	}

	switch {
	case g.Settings.TurnTimeoutSeconds > 0 && g.ActionDeadline != nil && g.ActionDeadline.Before(now):
		d.fireTurnTimeout(ctx, code)
	case !g.HandActive() && g.Settings.AutoDealEnabled && g.AutoDealDeadline != nil && g.AutoDealDeadline.Before(now):
		d.fireAutoDeal(ctx, code)
	}
}

// fireTurnTimeout submits an auto-action (check if legal, else fold) on
// behalf of whoever holds action_on.
func (d *TimerDriver) fireTurnTimeout(ctx context.Context, code string) {
	g, err := d.coord.mutate(ctx, code, "turn_timeout", func(g *engine.GameEngine) *engine.Error {
		if g.ActionOn == "" {
			return nil
		}
		return g.AutoAction(g.ActionOn)
	})
	if err != nil {
		d.logger.Debug("turn timeout auto-action failed", "game_code", code, "error", err)
		return
	}
	metrics.TimerFiringsTotal.WithLabelValues("turn_timeout").Inc()
	d.coord.broadcast(code, g)
}

// fireAutoDeal starts the next hand. If start fails (not enough seats),
// the deadline is disarmed so the driver stops retrying every tick.
func (d *TimerDriver) fireAutoDeal(ctx context.Context, code string) {
	g, err := d.coord.mutate(ctx, code, "auto_deal", func(g *engine.GameEngine) *engine.Error {
		return g.StartHand()
	})
	if err != nil {
		d.disarmAutoDeal(ctx, code)
		return
	}
	metrics.TimerFiringsTotal.WithLabelValues("auto_deal").Inc()
	d.coord.broadcast(code, g)
}

func (d *TimerDriver) disarmAutoDeal(ctx context.Context, code string) {
	lock := getLockRegistry().get(code)
	if err := lock.Lock(ctx); err != nil {
		return
	}
	defer lock.Unlock()

	data, err := d.kv.Get(ctx, engineKey(code))
	if err != nil {
		return
	}
	g, derr := engine.FromJSON(data)
	if derr != nil {
		return
	}
	g.AutoDealDeadline = nil
	out, merr := g.ToJSON()
	if merr != nil {
		return
	}
	if err := d.kv.Put(ctx, engineKey(code), out); err != nil {
		d.logger.Error("timer driver: disarm auto-deal", "game_code", code, "error", err)
	}
}
