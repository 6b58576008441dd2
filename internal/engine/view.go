package engine

import (
	"time"

	"pokerhall/pkg/card"
)

// ValidAction is one legal move offered to the seat holding action_on.
type ValidAction struct {
	Kind      ActionKind `json:"kind"`
	MinAmount int64      `json:"min_amount,omitempty"`
	MaxAmount int64      `json:"max_amount,omitempty"`
}

// PlayerView is one seat as rendered to a particular viewer: hole cards
// are present only under the visibility rules of §4.3 "State view
// filtering".
type PlayerView struct {
	PlayerID       string      `json:"player_id"`
	Name           string      `json:"name"`
	IsCreator      bool        `json:"is_creator"`
	Chips          int64       `json:"chips"`
	HoleCards      []card.Card `json:"hole_cards,omitempty"`
	BetThisRound   int64       `json:"bet_this_round"`
	BetThisHand    int64       `json:"bet_this_hand"`
	Folded         bool        `json:"folded"`
	AllIn          bool        `json:"all_in"`
	IsSittingOut   bool        `json:"is_sitting_out"`
	RebuyQueued    bool        `json:"rebuy_queued"`
	HasShownCards  bool        `json:"has_shown_cards"`
	LastAction     LastAction  `json:"last_action"`
	RebuyCount     int         `json:"rebuy_count"`
	EliminatedHand int         `json:"eliminated_hand,omitempty"`
}

// EngineView is the wire-serializable, viewer-filtered snapshot of a
// game, matching the required field list of spec §6.
type EngineView struct {
	GameCode       string       `json:"game_code"`
	HandNumber     int          `json:"hand_number"`
	Street         Street       `json:"street"`
	Pot            int64        `json:"pot"`
	CommunityCards []card.Card  `json:"community_cards"`
	DealerPlayerID string       `json:"dealer_player_id,omitempty"`
	ActionOn       string       `json:"action_on,omitempty"`
	CurrentBet     int64        `json:"current_bet"`
	MinRaise       int64        `json:"min_raise"`
	HandActive     bool         `json:"hand_active"`
	GameOver       bool         `json:"game_over"`
	Paused         bool         `json:"paused"`
	Message        string       `json:"message,omitempty"`
	LastHandResult *HandResult  `json:"last_hand_result,omitempty"`
	Players        []PlayerView `json:"players"`
	MyCards        []card.Card  `json:"my_cards,omitempty"`
	ValidActions   []ValidAction `json:"valid_actions,omitempty"`

	TurnTimeout        int        `json:"turn_timeout"`
	ActionDeadline     *time.Time `json:"action_deadline,omitempty"`
	AutoDealDeadline   *time.Time `json:"auto_deal_deadline,omitempty"`
	GameStartedAt      time.Time  `json:"game_started_at"`
	TotalPausedSeconds int64      `json:"total_paused_seconds"`

	SmallBlind            int64           `json:"small_blind"`
	BigBlind              int64           `json:"big_blind"`
	BlindLevel            int             `json:"blind_level"`
	BlindLevelDuration    int             `json:"blind_level_duration"`
	BlindSchedule         []BlindLevel    `json:"blind_schedule"`
	NextBlindChangeAt     *time.Time      `json:"next_blind_change_at,omitempty"`
	AllowRebuys           bool            `json:"allow_rebuys"`
	MaxRebuys             int             `json:"max_rebuys"`
	RebuyCutoffMinutes    int             `json:"rebuy_cutoff_minutes"`
	FinalStandings        []FinalStanding `json:"final_standings,omitempty"`
}

// Viewer identifies who a view is being built for: a seated player
// (spectator=false) or a spectator (spectator=true, PlayerID ignored).
type Viewer struct {
	PlayerID   string
	Spectator  bool
}

// View renders the engine's state for the given viewer, applying the
// hole-card visibility and valid-actions rules of §4.3.
func (g *GameEngine) View(viewer Viewer, now time.Time) EngineView {
	var dealerID string
	if g.DealerIdx >= 0 && g.DealerIdx < len(g.Seats) {
		dealerID = g.Seats[g.DealerIdx].PlayerID
	}

	potTotal := int64(0)
	for _, p := range g.Pots {
		potTotal += p.Amount
	}
	for _, s := range g.Seats {
		potTotal += s.BetThisRound
	}

	players := make([]PlayerView, 0, len(g.Seats))
	for _, s := range g.Seats {
		pv := PlayerView{
			PlayerID:       s.PlayerID,
			Name:           s.Name,
			IsCreator:      s.IsCreator,
			Chips:          s.Chips,
			BetThisRound:   s.BetThisRound,
			BetThisHand:    s.BetThisHand,
			Folded:         s.Folded,
			AllIn:          s.AllIn,
			IsSittingOut:   s.IsSittingOut,
			RebuyQueued:    s.RebuyQueued,
			HasShownCards:  s.HasShownCards,
			LastAction:     s.LastAction,
			RebuyCount:     s.RebuyCount,
			EliminatedHand: s.EliminatedHand,
		}
		// HasShownCards is set by runShowdown and by a voluntary ShowCards,
		// and StartHand clears it at the next deal. It gates the reveal of
		// a non-folded seat; a folded seat's cards are never revealed here.
		// Street is not checked: it never rests at StreetShowdown in
		// persisted state, runShowdown moves it straight to StreetBetween.
		showdownReveal := !s.Folded && s.HasShownCards
		isSelf := !viewer.Spectator && viewer.PlayerID == s.PlayerID
		if isSelf || showdownReveal {
			pv.HoleCards = s.HoleCards
		}
		players = append(players, pv)
	}

	sb, bb := g.CurrentBlinds()
	view := EngineView{
		GameCode:           g.GameCode,
		HandNumber:         g.HandNumber,
		Street:             g.Street,
		Pot:                potTotal,
		CommunityCards:     g.CommunityCards,
		DealerPlayerID:     dealerID,
		ActionOn:           g.ActionOn,
		CurrentBet:         g.CurrentBet,
		MinRaise:           g.MinRaise,
		HandActive:         g.HandActive(),
		GameOver:           g.GameOver,
		Paused:             g.Paused,
		LastHandResult:     g.LastHandResult,
		Players:            players,
		TurnTimeout:        g.Settings.TurnTimeoutSeconds,
		ActionDeadline:     g.ActionDeadline,
		AutoDealDeadline:   g.AutoDealDeadline,
		GameStartedAt:      g.GameStartedAt,
		TotalPausedSeconds: g.TotalPausedSeconds,
		SmallBlind:         sb,
		BigBlind:           bb,
		BlindLevel:         g.BlindLevel,
		BlindLevelDuration: g.Settings.BlindLevelDurationMinutes,
		BlindSchedule:      g.BlindSchedule,
		NextBlindChangeAt:  g.NextBlindChangeAt(now),
		AllowRebuys:        g.Settings.AllowRebuys,
		MaxRebuys:          g.Settings.MaxRebuys,
		RebuyCutoffMinutes: g.Settings.RebuyCutoffMinutes,
		FinalStandings:     g.FinalStandings,
	}

	if !viewer.Spectator {
		if seat := g.SeatByID(viewer.PlayerID); seat != nil {
			view.MyCards = seat.HoleCards
		}
		if g.ActionOn == viewer.PlayerID {
			view.ValidActions = g.ValidActions(viewer.PlayerID)
		}
	}
	return view
}

// ValidActions computes the legal moves for the seat holding action_on,
// per §4.3 "Valid actions".
func (g *GameEngine) ValidActions(playerID string) []ValidAction {
	if g.ActionOn != playerID {
		return nil
	}
	seat := g.SeatByID(playerID)
	if seat == nil {
		return nil
	}
	toCall := g.CurrentBet - seat.BetThisRound
	if toCall < 0 {
		toCall = 0
	}

	actions := []ValidAction{{Kind: KindFold}}
	if toCall == 0 {
		actions = append(actions, ValidAction{Kind: KindCheck})
	} else {
		callAmount := toCall
		if callAmount > seat.Chips {
			callAmount = seat.Chips
		}
		actions = append(actions, ValidAction{Kind: KindCall, MinAmount: callAmount, MaxAmount: callAmount})
	}

	// A seat that has already acted since the last full raise is not
	// owed another forward move until someone reopens the action —
	// this is what makes a short all-in (§4.3, glossary "Short all-in")
	// not reopen the action for players in that state.
	eligibleToRaise := !seat.ActedSinceLastRaise && seat.Chips > toCall
	if eligibleToRaise {
		if seat.Chips >= g.MinRaise+toCall {
			actions = append(actions, ValidAction{
				Kind:      KindRaise,
				MinAmount: g.CurrentBet + g.MinRaise,
				MaxAmount: seat.BetThisRound + seat.Chips,
			})
		} else {
			// Chips cover the call plus some but less than a legal
			// raise: offered as a single pinned raise, not a separate
			// all_in action (§4.3).
			actions = append(actions, ValidAction{
				Kind:      KindRaise,
				MinAmount: seat.BetThisRound + seat.Chips,
				MaxAmount: seat.BetThisRound + seat.Chips,
			})
		}
	}

	return actions
}
