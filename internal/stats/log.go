package stats

import (
	"fmt"

	"github.com/lawnchairsociety/tunnelfight/internal/battlefield"
	"github.com/lawnchairsociety/tunnelfight/internal/combat"
)

// CombatLog is a human-readable rendering of one battle.
type CombatLog struct {
	Winner     *string         `json:"winner"`
	Rounds     int             `json:"rounds"`
	Events     []LogEntry      `json:"events"`
	FinalState []ActorFinalLog `json:"final_state"`
}

// LogEntry is one line of a combat log.
type LogEntry struct {
	Round       int    `json:"round"`
	Actor       string `json:"actor"`
	Description string `json:"description"`
}

// ActorFinalLog describes an actor after the battle.
type ActorFinalLog struct {
	Name  string `json:"name"`
	Side  string `json:"side"`
	HP    string `json:"hp"`
	Alive bool   `json:"alive"`
	Zone  string `json:"zone"`
}

// Describe renders a single event without its round or actor.
func Describe(ev *combat.Event) string {
	switch ev.Kind {
	case combat.EventAttack:
		a := ev.Attack
		if a.Hit {
			return fmt.Sprintf("attacks %s (rolled %d vs AC %d) - HIT for %d damage", a.TargetName, a.Roll, a.TargetAC, a.Damage)
		}
		return fmt.Sprintf("attacks %s (rolled %d vs AC %d) - MISS", a.TargetName, a.Roll, a.TargetAC)
	case combat.EventMove:
		return fmt.Sprintf("moves from %s to %s", ev.Move.From, ev.Move.To)
	case combat.EventDeath:
		return "dies!"
	}
	return string(ev.Kind)
}

// FormatCombatLog renders a battle result.
func FormatCombatLog(r *combat.Result) CombatLog {
	log := CombatLog{
		Rounds:     r.Rounds,
		Events:     make([]LogEntry, len(r.Events)),
		FinalState: make([]ActorFinalLog, len(r.Final)),
	}
	if r.Winner != battlefield.NoSide {
		winner := r.Winner.String()
		log.Winner = &winner
	}

	for i := range r.Events {
		ev := &r.Events[i]
		log.Events[i] = LogEntry{
			Round:       ev.Round,
			Actor:       ev.ActorName,
			Description: Describe(ev),
		}
	}

	for i, a := range r.Final {
		log.FinalState[i] = ActorFinalLog{
			Name:  a.Name,
			Side:  a.Side.String(),
			HP:    fmt.Sprintf("%d/%d", max(a.FinalHP, 0), a.MaxHP),
			Alive: a.Alive,
			Zone:  a.Zone.String(),
		}
	}

	return log
}
