// Package coordinator owns the per-game load-modify-save protocol: it is
// the only component that mutates persisted engine state, and the only
// place engine mutations are fanned out to connected clients.
package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"pokerhall/internal/engine"
	"pokerhall/internal/events"
	"pokerhall/internal/metrics"
	"pokerhall/internal/registry"
	"pokerhall/internal/store/kv"
	metricsstore "pokerhall/internal/store/metrics"
	"pokerhall/pkg/rng"
)

// kvStore is the subset of *kv.Store the coordinator depends on, narrowed
// to an interface so tests can substitute an in-memory fake instead of a
// real Postgres connection.
type kvStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	KeysWithPrefix(ctx context.Context, prefix string) ([]string, error)
}

// metricsRecorder is the subset of *metricsstore.Store the coordinator
// depends on.
type metricsRecorder interface {
	Record(ctx context.Context, event, gameCode string, at time.Time)
}

// eventPublisher is the subset of *events.Publisher the coordinator
// depends on.
type eventPublisher interface {
	Publish(kind events.Kind, gameCode string, payload any) error
}

// Coordinator holds the collaborators of the load-modify-save protocol.
// publisher and metricsStore are optional: a nil publisher skips event
// emission, a nil metricsStore skips the 90-day sorted-set counters. Neither is allowed to fail a
// request (spec §7's "ambient failures never block the critical path").
type Coordinator struct {
	kv           kvStore
	publisher    eventPublisher
	metricsStore metricsRecorder
	registry     *registry.Registry
	logger       *slog.Logger
	rngSource    engine.RandIntn
}

// New constructs a production Coordinator that shuffles with a freshly
// built *rng.System. Tests that need a deterministic source use
// NewForTesting instead.
func New(store *kv.Store, publisher *events.Publisher, metricsStore *metricsstore.Store, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	source, err := rng.NewSystem(nil)
	if err != nil {
		// Only a hardware-entropy failure at process start can cause
		// this; there is no degraded mode to fall back to for shuffling.
		panic(fmt.Sprintf("coordinator: failed to initialize RNG: %v", err))
	}

	c := &Coordinator{
		kv:        withTimeoutRetry(store),
		registry:  registry.Get(),
		logger:    logger,
		rngSource: source,
	}
	// Guard against the interface-wrapping-a-nil-pointer trap: only
	// assign these fields when the caller actually passed a collaborator,
	// so `c.publisher != nil` / `c.metricsStore != nil` behave as expected.
	if publisher != nil {
		c.publisher = publisher
	}
	if metricsStore != nil {
		c.metricsStore = metricsStore
	}
	return c
}

// NewForTesting builds a Coordinator directly from already-constructed
// collaborators, for tests in other packages (e.g. internal/api's HTTP
// surface tests) that need a full Coordinator without a real
// Postgres/Redis/Kafka connection. publisher, metricsStore, and reg may
// be nil.
func NewForTesting(store kvStore, publisher eventPublisher, metricsStore metricsRecorder, reg *registry.Registry, logger *slog.Logger, rngSource engine.RandIntn) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if reg == nil {
		reg = registry.Get()
	}
	return &Coordinator{
		kv:           withTimeoutRetry(store),
		publisher:    publisher,
		metricsStore: metricsStore,
		registry:     reg,
		logger:       logger,
		rngSource:    rngSource,
	}
}

// CreateGame creates a new game in the lobby state and persists both
// projections. The creator is seated but no hand has started.
func (c *Coordinator) CreateGame(ctx context.Context, settings engine.Settings, creatorName, creatorPin, creatorIP string) (string, string, *Lobby, *Error) {
	code, err := newUniqueRoomCode(ctx, func(ctx context.Context, code string) (bool, error) {
		_, err := c.kv.Get(ctx, engineKey(code))
		if err == kv.ErrNotFound {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		if cerr, ok := err.(*Error); ok {
			return "", "", nil, cerr
		}
		return "", "", nil, transient(fmt.Sprintf("generate room code: %v", err))
	}

	creatorID := fmt.Sprintf("p-%s", code[:3]) + randomSuffix()
	pinHash := hashPin(creatorPin)

	g := engine.NewGame(code, settings, creatorID, creatorName, pinHash)
	now := g.CreatedAt
	lobby := &Lobby{
		Code:      code,
		Status:    LobbyStatusLobby,
		Settings:  settings,
		CreatorID: creatorID,
		CreatedAt: now,
		LastActivity: now,
		CreatorIP: creatorIP,
		Players: []LobbyPlayer{
			{PlayerID: creatorID, Name: creatorName, PinHash: pinHash, IsCreator: true, Connected: false},
		},
	}

	if err := c.persistNewGame(ctx, g, lobby); err != nil {
		return "", "", nil, err
	}

	if c.metricsStore != nil {
		c.metricsStore.Record(ctx, "created", code, now)
	}
	metrics.GamesCreatedTotal.Inc()
	metrics.ActiveGames.Inc()
	if c.publisher != nil {
		if perr := c.publisher.Publish(events.KindGameCreated, code, lobby); perr != nil {
			c.logger.Debug("publish game_created failed", "game_code", code, "error", perr)
		}
	}
	c.logger.Info("game created", "game_code", code, "creator_id", creatorID)

	return code, creatorID, lobby, nil
}

func (c *Coordinator) persistNewGame(ctx context.Context, g *engine.GameEngine, lobby *Lobby) *Error {
	engineData, merr := g.ToJSON()
	if merr != nil {
		panic(fmt.Sprintf("coordinator: serialize new engine for %s: %v", g.GameCode, merr))
	}
	lobbyData, lerr := lobby.ToJSON()
	if lerr != nil {
		panic(fmt.Sprintf("coordinator: serialize new lobby for %s: %v", g.GameCode, lerr))
	}
	if err := c.kv.Put(ctx, engineKey(g.GameCode), engineData); err != nil {
		return transient(fmt.Sprintf("persist engine: %v", err))
	}
	if err := c.kv.Put(ctx, gameKey(g.GameCode), lobbyData); err != nil {
		return transient(fmt.Sprintf("persist lobby: %v", err))
	}
	return nil
}

// randomSuffix gives created player ids enough entropy to avoid
// collisions within a single game without depending on wall time.
func randomSuffix() string {
	code, err := generateRoomCode()
	if err != nil {
		return "0000"
	}
	return "-" + code[:4]
}

// loadLobby fetches and decodes the game:{code} projection.
func (c *Coordinator) loadLobby(ctx context.Context, code string) (*Lobby, *Error) {
	data, err := c.kv.Get(ctx, gameKey(code))
	if err == kv.ErrNotFound {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, transient(fmt.Sprintf("load lobby: %v", err))
	}
	lobby, derr := lobbyFromJSON(data)
	if derr != nil {
		panic(fmt.Sprintf("coordinator: corrupt lobby state for %s: %v", code, derr))
	}
	return lobby, nil
}

func (c *Coordinator) saveLobby(ctx context.Context, lobby *Lobby) *Error {
	data, merr := lobby.ToJSON()
	if merr != nil {
		panic(fmt.Sprintf("coordinator: serialize lobby for %s: %v", lobby.Code, merr))
	}
	if err := c.kv.Put(ctx, gameKey(lobby.Code), data); err != nil {
		return transient(fmt.Sprintf("persist lobby: %v", err))
	}
	return nil
}

// JoinGame adds a new seat, or — if a seat with the same case-insensitive
// name already exists and the pin matches — treats this as a reconnect
// instead of adding a duplicate seat (spec §6).
func (c *Coordinator) JoinGame(ctx context.Context, code, name, pin string) (string, *Lobby, *Error) {
	lobby, lerr := c.loadLobby(ctx, code)
	if lerr != nil {
		return "", nil, lerr
	}

	if existing := lobby.findByNameLower(name); existing != nil {
		if !verifyPin(pin, existing.PinHash) {
			return "", nil, ErrWrongPin
		}
		existing.Connected = true
		lobby.LastActivity = time.Now()
		if err := c.saveLobby(ctx, lobby); err != nil {
			return "", nil, err
		}
		return existing.PlayerID, lobby, nil
	}

	playerID := fmt.Sprintf("p-%s", code[:3]) + randomSuffix()
	pinHash := hashPin(pin)

	g, gerr := c.mutate(ctx, code, "join", func(g *engine.GameEngine) *engine.Error {
		return g.Join(playerID, name, pinHash)
	})
	if gerr != nil {
		return "", nil, gerr
	}

	lobby.Players = append(lobby.Players, LobbyPlayer{PlayerID: playerID, Name: name, PinHash: pinHash, Connected: true})
	lobby.LastActivity = time.Now()
	if err := c.saveLobby(ctx, lobby); err != nil {
		return "", nil, err
	}

	c.broadcast(code, g)
	return playerID, lobby, nil
}

// Leave removes a seat from both projections; legal only in the lobby,
// before the first hand has started (engine.Leave enforces this).
func (c *Coordinator) Leave(ctx context.Context, code, playerID, pin string) *Error {
	lobby, lerr := c.loadLobby(ctx, code)
	if lerr != nil {
		return lerr
	}
	seat := lobby.findPlayer(playerID)
	if seat == nil {
		return ErrPlayerNotFound
	}
	if !verifyPin(pin, seat.PinHash) {
		return ErrWrongPin
	}

	g, gerr := c.mutate(ctx, code, "leave", func(g *engine.GameEngine) *engine.Error {
		return g.Leave(playerID)
	})
	if gerr != nil {
		return gerr
	}

	for i, p := range lobby.Players {
		if p.PlayerID == playerID {
			lobby.Players = append(lobby.Players[:i], lobby.Players[i+1:]...)
			break
		}
	}
	lobby.LastActivity = time.Now()
	if err := c.saveLobby(ctx, lobby); err != nil {
		return err
	}

	c.broadcast(code, g)
	return nil
}

// GetView returns the viewer-filtered engine snapshot. Reads never take
// the game's ticket lock: the KV store returns a whole, consistent blob
// per write, so a read racing a write simply sees the state from just
// before or just after — never a torn value.
func (c *Coordinator) GetView(ctx context.Context, code string, viewer engine.Viewer) (engine.EngineView, *Error) {
	data, err := c.kv.Get(ctx, engineKey(code))
	if err == kv.ErrNotFound {
		return engine.EngineView{}, ErrGameNotFound
	}
	if err != nil {
		return engine.EngineView{}, transient(fmt.Sprintf("load engine: %v", err))
	}
	g, derr := engine.FromJSON(data)
	if derr != nil {
		panic(fmt.Sprintf("coordinator: corrupt engine state for %s: %v", code, derr))
	}
	return g.View(viewer, time.Now()), nil
}

// verifySeatAuth loads the engine, finds playerID's seat, and checks pin
// against the authoritative engine-side hash.
func verifySeatAuth(g *engine.GameEngine, playerID, pin string) *Error {
	seat := g.SeatByID(playerID)
	if seat == nil {
		return ErrPlayerNotFound
	}
	if !verifyPin(pin, seat.PinHash) {
		return ErrWrongPin
	}
	return nil
}

// ProcessAction submits one betting action on behalf of playerID.
func (c *Coordinator) ProcessAction(ctx context.Context, code, playerID, pin string, action engine.Action) (engine.EngineView, *Error) {
	g, gerr := c.mutate(ctx, code, "action", func(g *engine.GameEngine) *engine.Error {
		if err := verifySeatAuth(g, playerID, pin); err != nil {
			return &engine.Error{Kind: engine.KindInvalidState, Message: err.Message}
		}
		return g.ProcessAction(playerID, action)
	})
	if gerr != nil {
		return engine.EngineView{}, reclassifyAuthError(gerr)
	}
	c.broadcast(code, g)
	return g.View(engine.Viewer{PlayerID: playerID}, time.Now()), nil
}

// StartHand deals a new hand. Any seated player may trigger it; the
// engine's own preconditions (≥2 active seats, ¬game_over) are the only
// gate, matching spec §6's request contract (deal is not creator-only).
func (c *Coordinator) StartHand(ctx context.Context, code, playerID, pin string) (engine.EngineView, *Error) {
	g, gerr := c.mutate(ctx, code, "deal", func(g *engine.GameEngine) *engine.Error {
		if err := verifySeatAuth(g, playerID, pin); err != nil {
			return &engine.Error{Kind: engine.KindInvalidState, Message: err.Message}
		}
		return g.StartHand()
	})
	if gerr != nil {
		return engine.EngineView{}, reclassifyAuthError(gerr)
	}
	c.broadcast(code, g)
	return g.View(engine.Viewer{PlayerID: playerID}, time.Now()), nil
}

// RequestRebuy queues (or immediately fulfills, if between hands) a rebuy
// for playerID, subject to the engine's rebuy predicate.
func (c *Coordinator) RequestRebuy(ctx context.Context, code, playerID, pin string) (engine.EngineView, *Error) {
	g, gerr := c.mutate(ctx, code, "rebuy", func(g *engine.GameEngine) *engine.Error {
		if err := verifySeatAuth(g, playerID, pin); err != nil {
			return &engine.Error{Kind: engine.KindInvalidState, Message: err.Message}
		}
		return g.RequestRebuy(playerID)
	})
	if gerr != nil {
		return engine.EngineView{}, reclassifyAuthError(gerr)
	}
	c.broadcast(code, g)
	return g.View(engine.Viewer{PlayerID: playerID}, time.Now()), nil
}

// CancelRebuy clears a previously queued rebuy.
func (c *Coordinator) CancelRebuy(ctx context.Context, code, playerID, pin string) (engine.EngineView, *Error) {
	g, gerr := c.mutate(ctx, code, "cancel_rebuy", func(g *engine.GameEngine) *engine.Error {
		if err := verifySeatAuth(g, playerID, pin); err != nil {
			return &engine.Error{Kind: engine.KindInvalidState, Message: err.Message}
		}
		return g.CancelRebuy(playerID)
	})
	if gerr != nil {
		return engine.EngineView{}, reclassifyAuthError(gerr)
	}
	c.broadcast(code, g)
	return g.View(engine.Viewer{PlayerID: playerID}, time.Now()), nil
}

// ShowCards voluntarily reveals a folded or still-live seat's hole cards.
func (c *Coordinator) ShowCards(ctx context.Context, code, playerID, pin string) (engine.EngineView, *Error) {
	g, gerr := c.mutate(ctx, code, "show_cards", func(g *engine.GameEngine) *engine.Error {
		if err := verifySeatAuth(g, playerID, pin); err != nil {
			return &engine.Error{Kind: engine.KindInvalidState, Message: err.Message}
		}
		return g.ShowCards(playerID)
	})
	if gerr != nil {
		return engine.EngineView{}, reclassifyAuthError(gerr)
	}
	c.broadcast(code, g)
	return g.View(engine.Viewer{PlayerID: playerID}, time.Now()), nil
}

// Pause is legal only between hands and only for the game's creator.
func (c *Coordinator) Pause(ctx context.Context, code, playerID, pin string) (engine.EngineView, *Error) {
	g, gerr := c.mutate(ctx, code, "pause", func(g *engine.GameEngine) *engine.Error {
		if err := verifyCreator(g, playerID, pin); err != nil {
			return &engine.Error{Kind: engine.KindInvalidState, Message: err.Message}
		}
		return g.Pause()
	})
	if gerr != nil {
		return engine.EngineView{}, reclassifyAuthError(gerr)
	}
	c.broadcast(code, g)
	return g.View(engine.Viewer{PlayerID: playerID}, time.Now()), nil
}

// Resume lifts a pause, restoring blind-clock and action-deadline
// progression. Symmetric with Pause: creator only.
func (c *Coordinator) Resume(ctx context.Context, code, playerID, pin string) (engine.EngineView, *Error) {
	g, gerr := c.mutate(ctx, code, "resume", func(g *engine.GameEngine) *engine.Error {
		if err := verifyCreator(g, playerID, pin); err != nil {
			return &engine.Error{Kind: engine.KindInvalidState, Message: err.Message}
		}
		return g.Resume()
	})
	if gerr != nil {
		return engine.EngineView{}, reclassifyAuthError(gerr)
	}
	c.broadcast(code, g)
	return g.View(engine.Viewer{PlayerID: playerID}, time.Now()), nil
}

func verifyCreator(g *engine.GameEngine, playerID, pin string) *Error {
	seat := g.SeatByID(playerID)
	if seat == nil {
		return ErrPlayerNotFound
	}
	if !verifyPin(pin, seat.PinHash) {
		return ErrWrongPin
	}
	if !seat.IsCreator {
		return ErrCreatorOnly
	}
	return nil
}

// reclassifyAuthError recovers the *Error stuffed into an engine.Error's
// Message by verifySeatAuth/verifyCreator above, instead of letting it
// surface as a generic invalid_state.
func reclassifyAuthError(e *Error) *Error {
	switch e.Message {
	case ErrPlayerNotFound.Message:
		return ErrPlayerNotFound
	case ErrWrongPin.Message:
		return ErrWrongPin
	case ErrCreatorOnly.Message:
		return ErrCreatorOnly
	default:
		return e
	}
}

// mutate runs the eight-step load-modify-save protocol (spec §4.4) for
// one engine operation. Steps 1-7 execute under the game's ticket lock;
// the caller is responsible for step 8 (fan-out), which must happen
// after mutate returns so it never holds the lock.
func (c *Coordinator) mutate(ctx context.Context, code, requestKind string, op func(g *engine.GameEngine) *engine.Error) (*engine.GameEngine, *Error) {
	lock := getLockRegistry().get(code)

	waitStart := time.Now()
	if err := lock.Lock(ctx); err != nil {
		return nil, transient(fmt.Sprintf("acquire game lock: %v", err))
	}
	metrics.LockWaitSeconds.Observe(time.Since(waitStart).Seconds())
	defer lock.Unlock()

	actionTimer := prometheus.NewTimer(metrics.ActionLatency.WithLabelValues(requestKind))
	defer actionTimer.ObserveDuration()

	data, err := c.kv.Get(ctx, engineKey(code))
	if err == kv.ErrNotFound {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, transient(fmt.Sprintf("load engine: %v", err))
	}

	g, derr := engine.FromJSON(data)
	if derr != nil {
		// A loss of fidelity rehydrating persisted state is a fatal bug,
		// never a recoverable request-level error (spec §4.4 step 3).
		panic(fmt.Sprintf("coordinator: corrupt engine state for %s: %v", code, derr))
	}
	g.SetRNG(c.rngSource)

	wasOver := g.GameOver
	if opErr := op(g); opErr != nil {
		return nil, fromEngineError(opErr)
	}

	now := time.Now()
	g.LastActivityAt = now

	if g.GameOver && !wasOver {
		if lerr := c.markLobbyEnded(ctx, code); lerr != nil {
			c.logger.Error("mark lobby ended", "game_code", code, "error", lerr)
		}
		if c.metricsStore != nil {
			c.metricsStore.Record(ctx, "completed", code, now)
		}
		metrics.GamesCompletedTotal.Inc()
		metrics.ActiveGames.Dec()
		if c.publisher != nil {
			if perr := c.publisher.Publish(events.KindGameOver, code, g.FinalStandings); perr != nil {
				c.logger.Debug("publish game_over event failed", "game_code", code, "error", perr)
			}
		}
	} else if g.LastHandResult != nil && c.publisher != nil {
		if perr := c.publisher.Publish(events.KindHandCompleted, code, g.LastHandResult); perr != nil {
			c.logger.Debug("publish hand_completed event failed", "game_code", code, "error", perr)
		}
	}

	kvTimer := prometheus.NewTimer(metrics.KVLatency.WithLabelValues("put"))
	engineData, merr := g.ToJSON()
	if merr != nil {
		panic(fmt.Sprintf("coordinator: serialize engine for %s: %v", code, merr))
	}
	perr := c.kv.Put(ctx, engineKey(code), engineData)
	kvTimer.ObserveDuration()
	if perr != nil {
		return nil, transient(fmt.Sprintf("persist engine: %v", perr))
	}

	return g, nil
}

// markLobbyEnded sets the lobby's status to ended, in the same critical
// section as the triggering mutation (spec §4.4 step 5 — the lobby write
// happens while the engine's ticket lock is still held by the caller).
func (c *Coordinator) markLobbyEnded(ctx context.Context, code string) *Error {
	lobby, lerr := c.loadLobby(ctx, code)
	if lerr != nil {
		return lerr
	}
	lobby.Status = LobbyStatusEnded
	lobby.LastActivity = time.Now()
	return c.saveLobby(ctx, lobby)
}

// broadcast serializes a viewer-filtered post-mutation view for each
// registered connection and fans it out via the Connection Registry. It runs outside the
// game's ticket lock (spec §4.4: "fan-out must never block the next
// operation").
func (c *Coordinator) broadcast(code string, g *engine.GameEngine) {
	now := time.Now()
	errs := c.registry.BroadcastEach(code, func(key string, spectator bool) []byte {
		viewer := engine.Viewer{Spectator: spectator, PlayerID: key}
		data, err := marshalGameState(g.View(viewer, now))
		if err != nil {
			c.logger.Debug("marshal game_state failed", "game_code", code, "key", key, "error", err)
			return nil
		}
		return data
	})
	for _, e := range errs {
		c.logger.Debug("broadcast send failed", "game_code", code, "error", e)
		metrics.BroadcastFailuresTotal.WithLabelValues("send_error").Inc()
	}
}

func marshalGameState(view engine.EngineView) ([]byte, error) {
	return json.Marshal(struct {
		Type string            `json:"type"`
		Data engine.EngineView `json:"data"`
	}{Type: "game_state", Data: view})
}
