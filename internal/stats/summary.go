// Package stats aggregates many battle results into balance statistics.
package stats

import (
	"github.com/lawnchairsociety/tunnelfight/internal/battlefield"
	"github.com/lawnchairsociety/tunnelfight/internal/combat"
	"github.com/lawnchairsociety/tunnelfight/internal/encounter"
)

// Summary holds the aggregated outcome of a batch. Rates are percentages.
type Summary struct {
	Iterations            int     `json:"iterations"`
	Side1WinRate          float64 `json:"side1_win_rate"`
	Side2WinRate          float64 `json:"side2_win_rate"`
	DrawRate              float64 `json:"draw_rate"`
	AvgRounds             float64 `json:"avg_rounds"`
	MinRounds             int     `json:"min_rounds"`
	MaxRounds             int     `json:"max_rounds"`
	AvgSide1Casualties    float64 `json:"avg_side1_casualties"`
	AvgSide2Casualties    float64 `json:"avg_side2_casualties"`
	Side1FlawlessRate     float64 `json:"side1_flawless_rate"`
	Side2FlawlessRate     float64 `json:"side2_flawless_rate"`
	AvgSide1HPLost        float64 `json:"avg_side1_hp_lost"`
	AvgSide2HPLost        float64 `json:"avg_side2_hp_lost"`
	AvgSide1HPLostPercent float64 `json:"avg_side1_hp_lost_percent"`
	AvgSide2HPLostPercent float64 `json:"avg_side2_hp_lost_percent"`
	Side1TPKRate          float64 `json:"side1_tpk_rate"`
	Side2TPKRate          float64 `json:"side2_tpk_rate"`
}

// sideTotals accumulates per-side counters.
type sideTotals struct {
	actors     int
	expectedHP int

	wins       int
	casualties int
	flawless   int
	hpLost     int
	tpk        int
}

// Collector accumulates results one battle at a time, keeping only the
// first few battles in full for sample logs.
type Collector struct {
	sides       [2]sideTotals
	battles     int
	draws       int
	totalRounds int
	minRounds   int
	maxRounds   int

	samples []*combat.Result
}

// NewCollector prepares a collector for an encounter. The first sampleCount
// battles (by index) are kept for CombatLogs.
func NewCollector(enc *encounter.Encounter, sampleCount int) *Collector {
	c := &Collector{samples: make([]*combat.Result, max(sampleCount, 0))}
	for i, side := range []battlefield.Side{battlefield.Side1, battlefield.Side2} {
		c.sides[i].actors = len(enc.Roster(side))
		c.sides[i].expectedHP = enc.ExpectedHP(side)
	}
	return c
}

// Add records the result of the battle with the given index. Indices only
// matter for choosing samples; totals do not depend on the order of calls.
func (c *Collector) Add(index int, r *combat.Result) {
	if c.battles == 0 || r.Rounds < c.minRounds {
		c.minRounds = r.Rounds
	}
	if r.Rounds > c.maxRounds {
		c.maxRounds = r.Rounds
	}
	c.battles++
	c.totalRounds += r.Rounds

	if r.Winner == battlefield.NoSide {
		c.draws++
	}

	for i, side := range []battlefield.Side{battlefield.Side1, battlefield.Side2} {
		s := &c.sides[i]
		dead := r.Casualties(side)
		s.casualties += dead
		s.hpLost += r.HPLost(side)
		if r.Winner == side {
			s.wins++
			if dead == 0 {
				s.flawless++
			}
		}
		if dead == s.actors {
			s.tpk++
		}
	}

	if index >= 0 && index < len(c.samples) {
		c.samples[index] = r
	}
}

// Battles returns how many results have been added.
func (c *Collector) Battles() int {
	return c.battles
}

// Summary computes the statistics for everything added so far.
func (c *Collector) Summary() Summary {
	if c.battles == 0 {
		return Summary{}
	}

	n := float64(c.battles)
	pct := func(count int) float64 { return float64(count) / n * 100 }
	avg := func(total int) float64 { return float64(total) / n }
	hpPct := func(s sideTotals) float64 {
		if s.expectedHP <= 0 {
			return 0
		}
		return avg(s.hpLost) / float64(s.expectedHP) * 100
	}

	s1, s2 := c.sides[0], c.sides[1]
	return Summary{
		Iterations:            c.battles,
		Side1WinRate:          pct(s1.wins),
		Side2WinRate:          pct(s2.wins),
		DrawRate:              pct(c.draws),
		AvgRounds:             avg(c.totalRounds),
		MinRounds:             c.minRounds,
		MaxRounds:             c.maxRounds,
		AvgSide1Casualties:    avg(s1.casualties),
		AvgSide2Casualties:    avg(s2.casualties),
		Side1FlawlessRate:     pct(s1.flawless),
		Side2FlawlessRate:     pct(s2.flawless),
		AvgSide1HPLost:        avg(s1.hpLost),
		AvgSide2HPLost:        avg(s2.hpLost),
		AvgSide1HPLostPercent: hpPct(s1),
		AvgSide2HPLostPercent: hpPct(s2),
		Side1TPKRate:          pct(s1.tpk),
		Side2TPKRate:          pct(s2.tpk),
	}
}

// Samples formats the kept battles in index order.
func (c *Collector) Samples() []CombatLog {
	logs := make([]CombatLog, 0, len(c.samples))
	for _, r := range c.samples {
		if r != nil {
			logs = append(logs, FormatCombatLog(r))
		}
	}
	return logs
}

// Assess grades side 1's win rate the way balance reports do.
func Assess(winRate float64) string {
	switch {
	case winRate < 30:
		return "TOO HARD"
	case winRate < 50:
		return "CHALLENGING"
	case winRate < 70:
		return "BALANCED"
	case winRate < 85:
		return "EASY"
	default:
		return "TOO EASY"
	}
}
