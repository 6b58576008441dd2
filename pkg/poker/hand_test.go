package poker

import (
	"sort"
	"testing"

	"pokerhall/pkg/card"
)

func c(rank card.Rank, suit card.Suit) card.Card {
	return card.Card{Rank: rank, Suit: suit}
}

func TestEvaluate7Card(t *testing.T) {
	tests := []struct {
		name  string
		cards []card.Card
		want  HandRank
	}{
		{
			name: "high card",
			cards: []card.Card{
				c(card.Ace, card.Spades), c(card.King, card.Hearts), c(card.Nine, card.Clubs),
				c(card.Seven, card.Diamonds), c(card.Four, card.Spades), c(card.Two, card.Hearts),
				c(card.Three, card.Clubs),
			},
			want: HighCard,
		},
		{
			name: "one pair",
			cards: []card.Card{
				c(card.Ace, card.Spades), c(card.Ace, card.Hearts), c(card.Nine, card.Clubs),
				c(card.Seven, card.Diamonds), c(card.Four, card.Spades), c(card.Two, card.Hearts),
				c(card.Three, card.Clubs),
			},
			want: Pair,
		},
		{
			name: "two pair",
			cards: []card.Card{
				c(card.Ace, card.Spades), c(card.Ace, card.Hearts), c(card.Nine, card.Clubs),
				c(card.Nine, card.Diamonds), c(card.Four, card.Spades), c(card.Two, card.Hearts),
				c(card.Three, card.Clubs),
			},
			want: TwoPair,
		},
		{
			name: "three of a kind",
			cards: []card.Card{
				c(card.Ace, card.Spades), c(card.Ace, card.Hearts), c(card.Ace, card.Clubs),
				c(card.Nine, card.Diamonds), c(card.Four, card.Spades), c(card.Two, card.Hearts),
				c(card.Three, card.Clubs),
			},
			want: ThreeOfAKind,
		},
		{
			name: "straight",
			cards: []card.Card{
				c(card.Nine, card.Spades), c(card.Eight, card.Hearts), c(card.Seven, card.Clubs),
				c(card.Six, card.Diamonds), c(card.Five, card.Spades), c(card.Two, card.Hearts),
				c(card.King, card.Clubs),
			},
			want: Straight,
		},
		{
			name: "wheel straight (A-2-3-4-5)",
			cards: []card.Card{
				c(card.Ace, card.Spades), c(card.Two, card.Hearts), c(card.Three, card.Clubs),
				c(card.Four, card.Diamonds), c(card.Five, card.Spades), c(card.King, card.Hearts),
				c(card.Queen, card.Clubs),
			},
			want: Straight,
		},
		{
			name: "flush",
			cards: []card.Card{
				c(card.Ace, card.Spades), c(card.King, card.Spades), c(card.Nine, card.Spades),
				c(card.Seven, card.Spades), c(card.Four, card.Spades), c(card.Two, card.Hearts),
				c(card.Three, card.Clubs),
			},
			want: Flush,
		},
		{
			name: "full house",
			cards: []card.Card{
				c(card.Ace, card.Spades), c(card.Ace, card.Hearts), c(card.Ace, card.Clubs),
				c(card.Nine, card.Diamonds), c(card.Nine, card.Spades), c(card.Two, card.Hearts),
				c(card.Three, card.Clubs),
			},
			want: FullHouse,
		},
		{
			name: "four of a kind",
			cards: []card.Card{
				c(card.Ace, card.Spades), c(card.Ace, card.Hearts), c(card.Ace, card.Clubs),
				c(card.Ace, card.Diamonds), c(card.Nine, card.Spades), c(card.Two, card.Hearts),
				c(card.Three, card.Clubs),
			},
			want: FourOfAKind,
		},
		{
			name: "straight flush",
			cards: []card.Card{
				c(card.Nine, card.Spades), c(card.Eight, card.Spades), c(card.Seven, card.Spades),
				c(card.Six, card.Spades), c(card.Five, card.Spades), c(card.Two, card.Hearts),
				c(card.King, card.Clubs),
			},
			want: StraightFlush,
		},
		{
			name: "royal flush",
			cards: []card.Card{
				c(card.Ace, card.Spades), c(card.King, card.Spades), c(card.Queen, card.Spades),
				c(card.Jack, card.Spades), c(card.Ten, card.Spades), c(card.Two, card.Hearts),
				c(card.Three, card.Clubs),
			},
			want: RoyalFlush,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate7Card(tt.cards)
			if got.Rank != tt.want {
				t.Errorf("Evaluate7Card() rank = %v, want %v", got.Rank, tt.want)
			}
		})
	}
}

func TestWheelRanksBelowSixHighStraight(t *testing.T) {
	wheel := Evaluate7Card([]card.Card{
		c(card.Ace, card.Spades), c(card.Two, card.Hearts), c(card.Three, card.Clubs),
		c(card.Four, card.Diamonds), c(card.Five, card.Spades), c(card.King, card.Hearts),
		c(card.Queen, card.Clubs),
	})
	sixHigh := Evaluate7Card([]card.Card{
		c(card.Six, card.Spades), c(card.Five, card.Hearts), c(card.Four, card.Clubs),
		c(card.Three, card.Diamonds), c(card.Two, card.Spades), c(card.King, card.Hearts),
		c(card.Queen, card.Clubs),
	})
	if wheel.Rank != Straight || sixHigh.Rank != Straight {
		t.Fatalf("expected both hands to be straights, got %v and %v", wheel.Rank, sixHigh.Rank)
	}
	if Compare(wheel, sixHigh) != -1 {
		t.Errorf("wheel should rank below a 6-high straight")
	}
}

func TestCompareHigherRankWins(t *testing.T) {
	pair := Evaluate7Card([]card.Card{
		c(card.Ace, card.Spades), c(card.Ace, card.Hearts), c(card.Nine, card.Clubs),
		c(card.Seven, card.Diamonds), c(card.Four, card.Spades), c(card.Two, card.Hearts),
		c(card.Three, card.Clubs),
	})
	twoPair := Evaluate7Card([]card.Card{
		c(card.King, card.Spades), c(card.King, card.Hearts), c(card.Nine, card.Clubs),
		c(card.Nine, card.Diamonds), c(card.Four, card.Spades), c(card.Two, card.Hearts),
		c(card.Three, card.Clubs),
	})
	if Compare(twoPair, pair) != 1 {
		t.Error("two pair should beat one pair regardless of card rank")
	}
}

func TestDetermineWinnersSplitPot(t *testing.T) {
	board := []card.Card{
		c(card.Ace, card.Clubs), c(card.King, card.Diamonds), c(card.Queen, card.Hearts),
		c(card.Jack, card.Spades), c(card.Two, card.Clubs),
	}
	playerCards := map[string][]card.Card{
		"A": append(append([]card.Card{}, board...), c(card.Nine, card.Hearts), c(card.Eight, card.Diamonds)),
		"B": append(append([]card.Card{}, board...), c(card.Nine, card.Clubs), c(card.Eight, card.Spades)),
	}
	winners, best := DetermineWinners(playerCards)
	sort.Strings(winners)
	if len(winners) != 2 || winners[0] != "A" || winners[1] != "B" {
		t.Fatalf("expected split pot between A and B, got %v", winners)
	}
	if best.Rank != HighCard {
		t.Errorf("expected board-play high card, got %v", best.Rank)
	}
}

func TestDetermineWinnersSingleWinner(t *testing.T) {
	board := []card.Card{
		c(card.Two, card.Clubs), c(card.Seven, card.Diamonds), c(card.Nine, card.Hearts),
		c(card.Jack, card.Spades), c(card.King, card.Clubs),
	}
	playerCards := map[string][]card.Card{
		"A": append(append([]card.Card{}, board...), c(card.Ace, card.Hearts), c(card.Ace, card.Diamonds)),
		"B": append(append([]card.Card{}, board...), c(card.Four, card.Hearts), c(card.Three, card.Diamonds)),
	}
	winners, _ := DetermineWinners(playerCards)
	if len(winners) != 1 || winners[0] != "A" {
		t.Fatalf("expected A to win outright, got %v", winners)
	}
}
