package engine

import (
	"math"
	"time"
)

// standardBlindSteps is the canonical tournament-chip denomination table
// blind levels snap to.
var standardBlindSteps = []int64{
	1, 2, 3, 4, 5, 6, 8, 10, 15, 20, 25, 30, 40, 50, 60, 80, 100,
	150, 200, 250, 300, 400, 500, 600, 800, 1000,
	1500, 2000, 2500, 3000, 4000, 5000, 6000, 8000, 10000,
	15000, 20000, 25000, 30000, 40000, 50000, 60000, 80000, 100000,
}

// snap rounds v to the nearest value in the standard denomination table.
func snap(v float64) int64 {
	if v <= float64(standardBlindSteps[0]) {
		return standardBlindSteps[0]
	}
	best := standardBlindSteps[0]
	bestDiff := abs64(v - float64(best))
	for _, step := range standardBlindSteps[1:] {
		d := abs64(v - float64(step))
		if d < bestDiff {
			best = step
			bestDiff = d
		}
	}
	return best
}

func abs64(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// BuildBlindSchedule implements the target-game-time algorithm of §4.3:
// a linear phase for half the levels, then a geometric phase filling to
// the target game time. The built schedule holds no overtime levels;
// CurrentBlindLevel appends 1.5x levels via ExtendBlindSchedule once the
// clock runs past its end.
func BuildBlindSchedule(startingChips int64, targetGameMinutes, levelDurationMinutes int) []BlindLevel {
	bbInitial := snap(float64(startingChips) / 100)

	levelDuration := levelDurationMinutes
	if levelDuration <= 0 {
		levelDuration = 15
	}
	targetMinutes := targetGameMinutes
	if targetMinutes <= 0 {
		targetMinutes = 180
	}
	totalLevels := targetMinutes / levelDuration
	if totalLevels < 2 {
		totalLevels = 2
	}
	linearLevels := (totalLevels + 1) / 2 // ceil(N/2)

	bbs := make([]int64, 0, totalLevels)
	bbs = append(bbs, bbInitial)
	for i := 1; i < linearLevels; i++ {
		bbs = append(bbs, snap(float64(bbs[len(bbs)-1]+bbInitial)))
	}

	remaining := totalLevels - linearLevels
	if remaining > 0 {
		lastBB := bbs[len(bbs)-1]
		targetBB := float64(startingChips)
		ratio := 1.0
		if remaining-1 > 0 && float64(lastBB) > 0 {
			ratio = math.Pow(targetBB/float64(lastBB), 1.0/float64(remaining-1))
		}
		cur := float64(lastBB)
		for i := 0; i < remaining; i++ {
			cur *= ratio
			bbs = append(bbs, snap(cur))
		}
	}

	schedule := make([]BlindLevel, 0, len(bbs))
	for _, bb := range bbs {
		sb := bb / 2
		if sb < 1 {
			sb = 1
		}
		schedule = append(schedule, BlindLevel{SmallBlind: sb, BigBlind: bb})
	}
	return schedule
}

// ExtendBlindSchedule appends the overtime level snap(last_bb * 1.5)
// when the clock has run past the end of the built schedule (§4.3).
func ExtendBlindSchedule(schedule []BlindLevel) []BlindLevel {
	last := schedule[len(schedule)-1]
	nextBB := snap(float64(last.BigBlind) * 1.5)
	sb := nextBB / 2
	if sb < 1 {
		sb = 1
	}
	return append(schedule, BlindLevel{SmallBlind: sb, BigBlind: nextBB})
}

// CurrentBlindLevel resolves the schedule index for effective_elapsed,
// extending the schedule with overtime levels as needed until the
// overtime cap (bb >= 3 * startingChips) is reached.
func (g *GameEngine) CurrentBlindLevel(now time.Time) int {
	if g.Settings.BlindLevelDurationMinutes <= 0 {
		return g.BlindLevel
	}
	elapsed := g.EffectiveElapsed(now)
	levelDuration := time.Duration(g.Settings.BlindLevelDurationMinutes) * time.Minute
	idx := int(elapsed / levelDuration)
	for idx >= len(g.BlindSchedule) {
		last := g.BlindSchedule[len(g.BlindSchedule)-1]
		if last.BigBlind >= 3*g.Settings.StartingChips {
			return len(g.BlindSchedule) - 1
		}
		g.BlindSchedule = ExtendBlindSchedule(g.BlindSchedule)
	}
	return idx
}

// NextBlindChangeAt returns the wall time the next blind level begins,
// or nil if the game is over or the schedule is fixed.
func (g *GameEngine) NextBlindChangeAt(now time.Time) *time.Time {
	if g.GameOver || g.Settings.BlindLevelDurationMinutes <= 0 {
		return nil
	}
	levelDuration := time.Duration(g.Settings.BlindLevelDurationMinutes) * time.Minute
	nextLevelStart := g.GameStartedAt.Add(time.Duration(g.BlindLevel+1) * levelDuration).Add(time.Duration(g.TotalPausedSeconds) * time.Second)
	return &nextLevelStart
}

// RefreshBlindLevel advances g.BlindLevel (and the active small/big
// blind) to match CurrentBlindLevel, called once per hand start.
func (g *GameEngine) RefreshBlindLevel(now time.Time) {
	g.BlindLevel = g.CurrentBlindLevel(now)
}

// CurrentBlinds returns the small/big blind amounts for the active level.
func (g *GameEngine) CurrentBlinds() (sb, bb int64) {
	if g.BlindLevel < 0 || g.BlindLevel >= len(g.BlindSchedule) {
		return g.Settings.SmallBlindInitial, g.Settings.BigBlindInitial
	}
	level := g.BlindSchedule[g.BlindLevel]
	return level.SmallBlind, level.BigBlind
}
