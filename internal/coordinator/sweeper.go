package coordinator

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"pokerhall/internal/metrics"
	"pokerhall/internal/registry"
)

const (
	sweepInterval    = 30 * time.Minute
	activeStaleAfter = 24 * time.Hour
	endedStaleAfter  = 72 * time.Hour
)

// Sweeper deletes games whose last_activity has aged past the retention
// window for their status (spec §3 Lifecycle, §4.4 "Stale-game sweeper").
type Sweeper struct {
	coord  *Coordinator
	kv     kvStore
	logger *slog.Logger
}

func NewSweeper(coord *Coordinator, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{coord: coord, kv: coord.kv, logger: logger}
}

// Run blocks, sweeping every 30 minutes until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	keys, err := s.kv.KeysWithPrefix(ctx, "game:")
	if err != nil {
		s.logger.Error("sweeper: list games", "error", err)
		return
	}
	now := time.Now()
	for _, key := range keys {
		s.sweepGame(ctx, strings.TrimPrefix(key, "game:"), now)
	}
}

func (s *Sweeper) sweepGame(ctx context.Context, code string, now time.Time) {
	lobby, lerr := s.coord.loadLobby(ctx, code)
	if lerr != nil {
		return
	}
	threshold := activeStaleAfter
	if lobby.Status == LobbyStatusEnded {
		threshold = endedStaleAfter
	}
	if now.Sub(lobby.LastActivity) < threshold {
		return
	}

	// Honor the game's own mutex for the deletion (spec §4.4): nothing
	// may be mid-mutation when the sweeper removes its state.
	lock := getLockRegistry().get(code)
	if err := lock.Lock(ctx); err != nil {
		return
	}
	defer lock.Unlock()

	if err := s.kv.Delete(ctx, engineKey(code)); err != nil {
		s.logger.Error("sweeper: delete engine", "game_code", code, "error", err)
		return
	}
	if err := s.kv.Delete(ctx, gameKey(code)); err != nil {
		s.logger.Error("sweeper: delete lobby", "game_code", code, "error", err)
		return
	}

	registry.Get().DropRoom(code)
	getLockRegistry().forget(code)
	if s.coord.metricsStore != nil {
		s.coord.metricsStore.Record(ctx, "cleaned", code, now)
	}
	metrics.GamesCleanedTotal.Inc()
	if lobby.Status != LobbyStatusEnded {
		metrics.ActiveGames.Dec()
	}
	s.logger.Info("swept stale game", "game_code", code, "status", lobby.Status)
}
