package engine

import (
	"time"

	"pokerhall/pkg/card"
)

// RandIntn is the CSPRNG capability the engine needs for deck shuffling.
// pkg/rng.System satisfies this.
type RandIntn interface {
	RandomInt(max int) int
}

// NewGame constructs a fresh game with the creator seated and the blind
// schedule built from its target-game-time algorithm (§4.3). The blind
// schedule is decided once, at creation, and never rebuilt.
func NewGame(code string, settings Settings, creatorID, creatorName, creatorPinHash string) *GameEngine {
	now := time.Now()
	g := &GameEngine{
		GameCode:       code,
		Settings:       settings,
		Street:         StreetBetween,
		GameStartedAt:  now,
		LevelStartedAt: now,
		CreatedAt:      now,
		LastActivityAt: now,
		BlindSchedule:  BuildBlindSchedule(settings.StartingChips, settings.TargetGameMinutes, settings.BlindLevelDurationMinutes),
	}
	g.Seats = append(g.Seats, &PlayerState{
		PlayerID:  creatorID,
		Name:      creatorName,
		PinHash:   creatorPinHash,
		IsCreator: true,
		Chips:     settings.StartingChips,
	})
	if settings.AutoDealEnabled {
		deadline := now
		g.AutoDealDeadline = &deadline
	}
	return g
}

// Join adds a new seat (invariant 3: at most one creator; joins are never
// creators).
func (g *GameEngine) Join(playerID, name, pinHash string) *Error {
	if g.SeatByID(playerID) != nil {
		return invalidState("player already seated in this game")
	}
	g.Seats = append(g.Seats, &PlayerState{
		PlayerID: playerID,
		Name:     name,
		PinHash:  pinHash,
		Chips:    g.Settings.StartingChips,
	})
	return nil
}

// Leave removes a seat; legal only in the lobby (before the game has
// started its first hand).
func (g *GameEngine) Leave(playerID string) *Error {
	if g.HandNumber > 0 {
		return invalidState("cannot leave after the game has started")
	}
	for i, s := range g.Seats {
		if s.PlayerID == playerID {
			g.Seats = append(g.Seats[:i], g.Seats[i+1:]...)
			return nil
		}
	}
	return ErrPlayerNotFound
}

func (g *GameEngine) activeSeatIndices() []int {
	var idx []int
	for i, s := range g.Seats {
		if !s.IsSittingOut && s.Chips > 0 {
			idx = append(idx, i)
		}
	}
	return idx
}

// nextActiveFrom returns the next seat index after from (exclusive,
// wrapping) that is active for this hand (not sitting out, chips > 0).
func (g *GameEngine) nextActiveFrom(from int) int {
	n := len(g.Seats)
	for i := 1; i <= n; i++ {
		idx := (from + i) % n
		s := g.Seats[idx]
		if !s.IsSittingOut && s.Chips > 0 {
			return idx
		}
	}
	return from
}

// nextActingFrom returns the next seat index after from (wrapping) that
// is still owed a turn this betting round: not folded, not all-in, and
// not settled (bet matches current bet and has acted since last raise).
func (g *GameEngine) nextActingFrom(from int) (int, bool) {
	n := len(g.Seats)
	for i := 1; i <= n; i++ {
		idx := (from + i) % n
		s := g.Seats[idx]
		if s.Folded || s.AllIn {
			continue
		}
		settled := s.BetThisRound == g.CurrentBet && s.ActedSinceLastRaise
		if !settled {
			return idx, true
		}
	}
	return 0, false
}

func postBet(s *PlayerState, amount int64) int64 {
	paid := amount
	if paid > s.Chips {
		paid = s.Chips
	}
	s.Chips -= paid
	s.BetThisRound += paid
	s.BetThisHand += paid
	if s.Chips == 0 {
		s.AllIn = true
	}
	return paid
}

func (g *GameEngine) fulfillQueuedRebuys() {
	for _, s := range g.Seats {
		if s.RebuyQueued {
			s.Chips = g.Settings.StartingChips
			s.IsSittingOut = false
			s.RebuyQueued = false
			s.RebuyCount++
			g.removeFromEliminationOrder(s.PlayerID)
		}
	}
}

func (g *GameEngine) removeFromEliminationOrder(playerID string) {
	out := g.EliminationOrder[:0]
	for _, id := range g.EliminationOrder {
		if id != playerID {
			out = append(out, id)
		}
	}
	g.EliminationOrder = out
}

// StartHand implements §4.3 start_hand().
func (g *GameEngine) StartHand() *Error {
	if g.GameOver {
		return ErrGameOver
	}
	g.fulfillQueuedRebuys()
	active := g.activeSeatIndices()
	if len(active) < 2 {
		return ErrNotEnoughSeats
	}

	now := time.Now()
	g.RefreshBlindLevel(now)
	g.LevelStartedAt = g.GameStartedAt.Add(time.Duration(g.BlindLevel*g.Settings.BlindLevelDurationMinutes) * time.Minute)

	g.HandNumber++
	for _, s := range g.Seats {
		s.HoleCards = nil
		s.BetThisRound = 0
		s.BetThisHand = 0
		s.Folded = false
		s.AllIn = false
		s.HasShownCards = false
		s.LastAction = ActionNone
		s.ActedSinceLastRaise = false
	}
	g.CommunityCards = nil
	g.Pots = nil
	g.LastRaiserID = ""

	if len(active) > 1 {
		g.DealerIdx = g.nextActiveFrom(g.DealerIdx)
	}

	sb, bb := g.CurrentBlinds()

	deck := card.NewDeck()
	if g.rngSource != nil {
		deck.Shuffle(g.rngSource)
	}

	var sbIdx, bbIdx, firstToAct int
	if len(active) == 2 {
		sbIdx = g.DealerIdx
		bbIdx = g.nextActiveFrom(g.DealerIdx)
		firstToAct = sbIdx
	} else {
		sbIdx = g.nextActiveFrom(g.DealerIdx)
		bbIdx = g.nextActiveFrom(sbIdx)
		firstToAct = g.nextActiveFrom(bbIdx)
	}
	postBet(g.Seats[sbIdx], sb)
	postBet(g.Seats[bbIdx], bb)
	g.Seats[sbIdx].LastAction = ActionNone
	g.Seats[bbIdx].LastAction = ActionNone

	for _, idx := range active {
		hole, err := deck.Deal(2)
		if err != nil {
			break
		}
		g.Seats[idx].HoleCards = hole
	}
	g.Deck = deck.Cards()

	g.Street = StreetPreflop
	g.CurrentBet = bb
	g.MinRaise = bb
	g.ActionOn = g.Seats[firstToAct].PlayerID

	g.setActionDeadline(now)
	g.AutoDealDeadline = nil
	g.LastActivityAt = now
	return nil
}

func (g *GameEngine) setActionDeadline(now time.Time) {
	if g.Settings.TurnTimeoutSeconds > 0 {
		d := now.Add(time.Duration(g.Settings.TurnTimeoutSeconds) * time.Second)
		g.ActionDeadline = &d
	} else {
		g.ActionDeadline = nil
	}
}

// ProcessAction implements §4.3 process_action().
func (g *GameEngine) ProcessAction(playerID string, action Action) *Error {
	if !g.HandActive() {
		return ErrHandNotActive
	}
	if g.Paused {
		return ErrGamePaused
	}
	if g.ActionOn != playerID {
		return ErrNotYourTurn
	}
	seat := g.SeatByID(playerID)
	if seat == nil {
		return ErrPlayerNotFound
	}

	switch action.Kind {
	case KindFold:
		seat.Folded = true
		seat.LastAction = ActionFold
		seat.ActedSinceLastRaise = true

	case KindCheck:
		if seat.BetThisRound != g.CurrentBet {
			return ErrCannotCheck
		}
		seat.LastAction = ActionCheck
		seat.ActedSinceLastRaise = true

	case KindCall:
		postBet(seat, g.CurrentBet-seat.BetThisRound)
		seat.LastAction = ActionCall
		seat.ActedSinceLastRaise = true

	case KindRaise:
		if seat.ActedSinceLastRaise {
			return ErrRaiseTooSmall
		}
		n := action.Amount
		if n <= 0 || n > seat.Chips {
			return ErrRaiseExceedsStack
		}
		newBet := seat.BetThisRound + n
		if newBet < g.CurrentBet+g.MinRaise {
			return ErrRaiseTooSmall
		}
		prevCurrentBet := g.CurrentBet
		postBet(seat, n)
		g.CurrentBet = newBet
		g.MinRaise = newBet - prevCurrentBet
		g.LastRaiserID = playerID
		seat.LastAction = ActionRaise
		seat.ActedSinceLastRaise = true
		g.reopenAction(playerID)

	case KindAllIn:
		prevCurrentBet := g.CurrentBet
		n := seat.Chips
		newBet := seat.BetThisRound + n
		postBet(seat, n)
		seat.LastAction = ActionAllIn
		seat.ActedSinceLastRaise = true
		if newBet > g.CurrentBet {
			g.CurrentBet = newBet
		}
		if newBet >= prevCurrentBet+g.MinRaise {
			g.MinRaise = newBet - prevCurrentBet
			g.LastRaiserID = playerID
			g.reopenAction(playerID)
		}

	default:
		return ErrUnknownAction
	}

	g.LastActivityAt = time.Now()
	g.advanceAfterAction(playerID)
	return nil
}

// reopenAction resets ActedSinceLastRaise for every seat except the
// raiser, so they are owed another turn.
func (g *GameEngine) reopenAction(raiserID string) {
	for _, s := range g.Seats {
		if s.PlayerID == raiserID || s.Folded || s.AllIn {
			continue
		}
		s.ActedSinceLastRaise = false
	}
}

func (g *GameEngine) activeHandSeatIndices() []int {
	var idx []int
	for i, s := range g.Seats {
		if !s.Folded {
			idx = append(idx, i)
		}
	}
	return idx
}

func (g *GameEngine) advanceAfterAction(lastActor string) {
	remaining := g.activeHandSeatIndices()
	if len(remaining) == 1 {
		g.awardUncontested(g.Seats[remaining[0]].PlayerID)
		return
	}

	actorIdx := 0
	for i, s := range g.Seats {
		if s.PlayerID == lastActor {
			actorIdx = i
			break
		}
	}
	if nextIdx, ok := g.nextActingFrom(actorIdx); ok {
		g.ActionOn = g.Seats[nextIdx].PlayerID
		g.setActionDeadline(time.Now())
		return
	}
	g.endBettingRound()
}

// allRemainingAllIn reports whether every non-folded seat is all-in
// (fast-forward condition).
func (g *GameEngine) allRemainingAllIn() bool {
	active := 0
	for _, s := range g.Seats {
		if s.Folded {
			continue
		}
		active++
		if !s.AllIn {
			return false
		}
	}
	return active > 0
}

func (g *GameEngine) endBettingRound() {
	g.gatherBetsIntoPots()

	if g.allRemainingAllIn() {
		g.fastForwardToShowdown()
		return
	}

	switch g.Street {
	case StreetPreflop:
		g.dealStreet(StreetFlop, 3)
	case StreetFlop:
		g.dealStreet(StreetTurn, 1)
	case StreetTurn:
		g.dealStreet(StreetRiver, 1)
	case StreetRiver:
		g.runShowdown()
		return
	}
}

func (g *GameEngine) dealStreet(street Street, n int) {
	deck := card.FromCards(g.Deck)
	dealt, err := deck.Deal(n)
	if err == nil {
		g.CommunityCards = append(g.CommunityCards, dealt...)
		g.Deck = deck.Cards()
	}
	g.Street = street
	g.CurrentBet = 0
	g.MinRaise = g.currentBB()
	for _, s := range g.Seats {
		s.BetThisRound = 0
		s.ActedSinceLastRaise = false
	}
	g.LastRaiserID = ""

	firstIdx := g.nextActiveFrom(g.DealerIdx)
	if idx, ok := g.nextActingFromInclusive(firstIdx); ok {
		g.ActionOn = g.Seats[idx].PlayerID
		g.setActionDeadline(time.Now())
	} else {
		g.endBettingRound()
	}
}

// nextActingFromInclusive is like nextActingFrom but also considers the
// starting index itself, used when positioning the first actor of a new
// street.
func (g *GameEngine) nextActingFromInclusive(from int) (int, bool) {
	n := len(g.Seats)
	for i := 0; i < n; i++ {
		idx := (from + i) % n
		s := g.Seats[idx]
		if s.Folded || s.AllIn {
			continue
		}
		return idx, true
	}
	return 0, false
}

func (g *GameEngine) currentBB() int64 {
	_, bb := g.CurrentBlinds()
	return bb
}

func (g *GameEngine) fastForwardToShowdown() {
	deck := card.FromCards(g.Deck)
	for len(g.CommunityCards) < 5 {
		dealt, err := deck.Deal(1)
		if err != nil {
			break
		}
		g.CommunityCards = append(g.CommunityCards, dealt...)
	}
	g.Deck = deck.Cards()
	g.runShowdown()
}

func (g *GameEngine) awardUncontested(winnerID string) {
	g.gatherBetsIntoPots()
	total := int64(0)
	for _, s := range g.Seats {
		total += s.BetThisHand
	}
	winner := g.SeatByID(winnerID)
	if winner != nil {
		winner.Chips += total
	}
	g.LastHandResult = &HandResult{
		HandNumber:     g.HandNumber,
		Awards:         []Award{{PlayerIDs: []string{winnerID}, Amount: total}},
		CommunityCards: g.CommunityCards,
	}
	g.Street = StreetBetween
	g.ActionOn = ""
	g.Pots = nil
	g.finishHand()
}
