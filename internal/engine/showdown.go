package engine

import (
	"fmt"
	"time"

	"pokerhall/pkg/card"
	"pokerhall/pkg/poker"
)

// gatherBetsIntoPots moves this round's bets into the running pot
// structure (resetting bet_this_round for the next street) and
// refreshes the side-pot breakdown from cumulative bet_this_hand, so
// mid-hand views show an accurate pot split even before showdown.
func (g *GameEngine) gatherBetsIntoPots() {
	for _, s := range g.Seats {
		s.BetThisRound = 0
	}
	pots, _ := computeSidePots(g.Seats)
	g.Pots = pots
}

// computeSidePots implements the §4.3 worked algorithm: repeatedly find
// the minimum positive contribution, fund a pot at that level from every
// remaining contributor, and record eligibility as the non-folded
// subset. A level with exactly one contributor is not a contested pot —
// it is uncalled excess, returned as a refund instead.
func computeSidePots(seats []*PlayerState) ([]Pot, []Refund) {
	remaining := make(map[string]int64)
	order := make([]string, 0, len(seats))
	foldedSet := make(map[string]bool)
	for _, s := range seats {
		if s.BetThisHand > 0 {
			remaining[s.PlayerID] = s.BetThisHand
			order = append(order, s.PlayerID)
		}
		if s.Folded {
			foldedSet[s.PlayerID] = true
		}
	}

	var pots []Pot
	var refunds []Refund
	for {
		var min int64 = -1
		for _, id := range order {
			v := remaining[id]
			if v <= 0 {
				continue
			}
			if min == -1 || v < min {
				min = v
			}
		}
		if min == -1 {
			break
		}
		var contributors []string
		for _, id := range order {
			if remaining[id] > 0 {
				contributors = append(contributors, id)
			}
		}
		amount := min * int64(len(contributors))
		if len(contributors) == 1 {
			refunds = append(refunds, Refund{PlayerID: contributors[0], Amount: amount})
		} else {
			var eligible []string
			for _, id := range contributors {
				if !foldedSet[id] {
					eligible = append(eligible, id)
				}
			}
			// A level whose extra contributors all folded has the same
			// eligible set as the previous pot; fold it into that pot.
			merge := false
			if n := len(pots); n > 0 && len(pots[n-1].EligiblePlayerIDs) == len(eligible) {
				merge = true
				for i, id := range eligible {
					if pots[n-1].EligiblePlayerIDs[i] != id {
						merge = false
						break
					}
				}
			}
			if merge {
				pots[len(pots)-1].Amount += amount
			} else {
				pots = append(pots, Pot{Amount: amount, EligiblePlayerIDs: eligible})
			}
		}
		for _, id := range contributors {
			remaining[id] -= min
		}
	}
	return pots, refunds
}

// firstToActSeatIdx is the canonical seat-order reference for split-pot
// remainder tie-breaks: the small blind / first position of the hand,
// stable regardless of who actually acted.
func (g *GameEngine) firstToActSeatIdx() int {
	return g.nextActiveFrom(g.DealerIdx)
}

// orderBySeatFrom returns ids sorted by table seat position starting
// from (and including) fromIdx, wrapping — "earliest winner in seat
// order from first-to-act" (§4.2, §9 open question).
func (g *GameEngine) orderBySeatFrom(ids []string, fromIdx int) []string {
	pos := make(map[string]int, len(g.Seats))
	for i, s := range g.Seats {
		pos[s.PlayerID] = i
	}
	n := len(g.Seats)
	rank := func(id string) int {
		idx := pos[id]
		return (idx - fromIdx + n) % n
	}
	out := make([]string, len(ids))
	copy(out, ids)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && rank(out[j]) < rank(out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// runShowdown implements §4.3 Showdown: side-pot computation, winner
// determination per pot, and excess refund bookkeeping.
func (g *GameEngine) runShowdown() {
	g.gatherBetsIntoPots()
	pots, refunds := computeSidePots(g.Seats)

	firstIdx := g.firstToActSeatIdx()
	var awards []Award
	var shown []ShownHand
	revealed := make(map[string]bool)

	for _, pot := range pots {
		handCards := make(map[string][]card.Card, len(pot.EligiblePlayerIDs))
		for _, id := range pot.EligiblePlayerIDs {
			seat := g.SeatByID(id)
			if seat == nil {
				continue
			}
			handCards[id] = append(append([]card.Card{}, seat.HoleCards...), g.CommunityCards...)
		}
		winners, best := poker.DetermineWinners(handCards)
		ordered := g.orderBySeatFrom(winners, firstIdx)
		if len(ordered) == 0 {
			continue
		}
		base := pot.Amount / int64(len(ordered))
		remainder := pot.Amount % int64(len(ordered))
		for i, id := range ordered {
			amt := base
			if i == 0 {
				amt += remainder
			}
			seat := g.SeatByID(id)
			if seat != nil {
				seat.Chips += amt
			}
			name := ""
			if best != nil {
				name = describeHand(best)
			}
			awards = append(awards, Award{PlayerIDs: []string{id}, Amount: amt, HandName: name})
			if !revealed[id] {
				revealed[id] = true
				seat := g.SeatByID(id)
				if seat != nil {
					seat.HasShownCards = true
					shown = append(shown, ShownHand{PlayerID: id, HoleCards: seat.HoleCards, HandName: name})
				}
			}
		}
	}
	for _, r := range refunds {
		seat := g.SeatByID(r.PlayerID)
		if seat != nil {
			seat.Chips += r.Amount
		}
	}

	// Every non-folded seat reaches showdown whether or not it won a
	// pot, and all of them are shown per §4.3's "player_hands: only for
	// non-folded seats and voluntarily-shown folders".
	for _, s := range g.Seats {
		if s.Folded || revealed[s.PlayerID] {
			continue
		}
		revealed[s.PlayerID] = true
		s.HasShownCards = true
		name := ""
		if best := poker.Evaluate7Card(append(append([]card.Card{}, s.HoleCards...), g.CommunityCards...)); best != nil {
			name = describeHand(best)
		}
		shown = append(shown, ShownHand{PlayerID: s.PlayerID, HoleCards: s.HoleCards, HandName: name})
	}
	for _, s := range g.Seats {
		if s.HasShownCards && !revealed[s.PlayerID] {
			shown = append(shown, ShownHand{PlayerID: s.PlayerID, HoleCards: s.HoleCards})
		}
	}

	g.LastHandResult = &HandResult{
		HandNumber:     g.HandNumber,
		Awards:         awards,
		Refunds:        refunds,
		CommunityCards: g.CommunityCards,
		PlayerHands:    shown,
	}
	g.Street = StreetBetween
	g.ActionOn = ""
	g.Pots = nil
	g.finishHand()
}

func describeHand(h *poker.EvaluatedHand) string {
	rankWord := func(r int) string {
		names := map[int]string{2: "Twos", 3: "Threes", 4: "Fours", 5: "Fives", 6: "Sixes",
			7: "Sevens", 8: "Eights", 9: "Nines", 10: "Tens", 11: "Jacks", 12: "Queens",
			13: "Kings", 14: "Aces", 1: "Aces"}
		return names[r]
	}
	switch h.Rank {
	case poker.HighCard:
		return fmt.Sprintf("High Card (%s)", rankWord(h.TieBreakers[0]))
	case poker.Pair:
		return fmt.Sprintf("One Pair (%s)", rankWord(h.TieBreakers[0]))
	case poker.TwoPair:
		return fmt.Sprintf("Two Pair (%s and %s)", rankWord(h.TieBreakers[0]), rankWord(h.TieBreakers[1]))
	case poker.ThreeOfAKind:
		return fmt.Sprintf("Three of a Kind (%s)", rankWord(h.TieBreakers[0]))
	case poker.Straight:
		return "Straight"
	case poker.Flush:
		return "Flush"
	case poker.FullHouse:
		return fmt.Sprintf("Full House (%s full of %s)", rankWord(h.TieBreakers[0]), rankWord(h.TieBreakers[1]))
	case poker.FourOfAKind:
		return fmt.Sprintf("Four of a Kind (%s)", rankWord(h.TieBreakers[0]))
	case poker.StraightFlush:
		return "Straight Flush"
	case poker.RoyalFlush:
		return "Royal Flush"
	default:
		return h.Rank.String()
	}
}

// CanRebuy implements the rebuy predicate of §4.3.
func (g *GameEngine) CanRebuy(seat *PlayerState, now time.Time) bool {
	if !g.Settings.AllowRebuys || seat.Chips != 0 {
		return false
	}
	if g.Settings.MaxRebuys > 0 && seat.RebuyCount >= g.Settings.MaxRebuys {
		return false
	}
	if g.Settings.RebuyCutoffMinutes > 0 {
		cutoff := time.Duration(g.Settings.RebuyCutoffMinutes) * time.Minute
		if g.EffectiveElapsed(now) >= cutoff {
			return false
		}
	}
	return true
}

// finishHand implements post-hand bookkeeping: elimination, sitting-out,
// and game-over detection (§4.3).
func (g *GameEngine) finishHand() {
	now := time.Now()
	for _, s := range g.Seats {
		if s.Chips == 0 && !s.IsSittingOut {
			s.IsSittingOut = true
			s.EliminatedHand = g.HandNumber
			already := false
			for _, id := range g.EliminationOrder {
				if id == s.PlayerID {
					already = true
					break
				}
			}
			if !already {
				g.EliminationOrder = append(g.EliminationOrder, s.PlayerID)
			}
		}
	}

	var withChips []*PlayerState
	for _, s := range g.Seats {
		if s.Chips > 0 {
			withChips = append(withChips, s)
		}
	}
	if len(withChips) != 1 {
		return
	}
	anyoneCanRebuy := false
	for _, s := range g.Seats {
		if s.Chips == 0 && g.CanRebuy(s, now) {
			anyoneCanRebuy = true
			break
		}
	}
	if anyoneCanRebuy {
		return
	}

	g.GameOver = true
	standings := []FinalStanding{{PlayerID: withChips[0].PlayerID, Rank: 1}}
	rank := 2
	for i := len(g.EliminationOrder) - 1; i >= 0; i-- {
		standings = append(standings, FinalStanding{PlayerID: g.EliminationOrder[i], Rank: rank})
		rank++
	}
	g.FinalStandings = standings
}
