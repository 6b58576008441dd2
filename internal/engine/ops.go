package engine

import "time"

// Pause implements §4.3 pause/resume: legal only between hands.
func (g *GameEngine) Pause() *Error {
	if g.HandActive() {
		return ErrPauseMidHand
	}
	if g.Paused {
		return ErrAlreadyPaused
	}
	now := time.Now()
	g.Paused = true
	g.PauseStartedAt = &now
	return nil
}

// Resume adds the elapsed paused duration to total_paused_seconds and
// clears the pause.
func (g *GameEngine) Resume() *Error {
	if !g.Paused {
		return ErrResumeNotPaused
	}
	if g.PauseStartedAt != nil {
		elapsed := time.Since(*g.PauseStartedAt)
		g.TotalPausedSeconds += int64(elapsed.Seconds())
	}
	g.Paused = false
	g.PauseStartedAt = nil
	return nil
}

// RequestRebuy queues or immediately grants a rebuy depending on whether
// a hand is active (§4.3).
func (g *GameEngine) RequestRebuy(playerID string) *Error {
	seat := g.SeatByID(playerID)
	if seat == nil {
		return ErrPlayerNotFound
	}
	if !g.CanRebuy(seat, time.Now()) {
		return ErrRebuyNotEligible
	}
	if g.HandActive() {
		seat.RebuyQueued = true
		return nil
	}
	seat.Chips = g.Settings.StartingChips
	seat.IsSittingOut = false
	seat.RebuyCount++
	g.removeFromEliminationOrder(playerID)
	return nil
}

// CancelRebuy clears a queued rebuy request.
func (g *GameEngine) CancelRebuy(playerID string) *Error {
	seat := g.SeatByID(playerID)
	if seat == nil {
		return ErrPlayerNotFound
	}
	seat.RebuyQueued = false
	return nil
}

// ShowCards lets a seat voluntarily reveal its hole cards (e.g. a folder
// proving a bluff). It does not check the street, so a seat may show
// during a hand as well as between hands.
func (g *GameEngine) ShowCards(playerID string) *Error {
	seat := g.SeatByID(playerID)
	if seat == nil {
		return ErrPlayerNotFound
	}
	if len(seat.HoleCards) == 0 {
		return invalidState("no hole cards to show")
	}
	seat.HasShownCards = true
	return nil
}

// SitOut marks a seat as sitting out of future hands until it rejoins or
// rebuys.
func (g *GameEngine) SitOut(playerID string) *Error {
	seat := g.SeatByID(playerID)
	if seat == nil {
		return ErrPlayerNotFound
	}
	seat.IsSittingOut = true
	return nil
}

// AutoAction resolves a turn-timeout auto-action: check if legal, else
// fold (§4.4 timer driver).
func (g *GameEngine) AutoAction(playerID string) *Error {
	seat := g.SeatByID(playerID)
	if seat == nil {
		return ErrPlayerNotFound
	}
	if seat.BetThisRound == g.CurrentBet {
		return g.ProcessAction(playerID, Action{Kind: KindCheck})
	}
	return g.ProcessAction(playerID, Action{Kind: KindFold})
}
