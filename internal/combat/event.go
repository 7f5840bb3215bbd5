package combat

import (
	"github.com/lawnchairsociety/tunnelfight/internal/battlefield"
)

// EventKind tags a combat event.
type EventKind string

const (
	EventAttack EventKind = "attack"
	EventMove   EventKind = "move"
	EventDeath  EventKind = "death"
)

// AttackEvent records one attack roll.
type AttackEvent struct {
	TargetID   int    `json:"target_id"`
	TargetName string `json:"target_name"`
	Roll       int    `json:"roll"`
	TargetAC   int    `json:"target_ac"`
	Hit        bool   `json:"hit"`
	Damage     int    `json:"damage"`
}

// MoveEvent records a change of zone.
type MoveEvent struct {
	From battlefield.Zone `json:"from"`
	To   battlefield.Zone `json:"to"`
}

// DeathEvent is stamped with the actor that died. KillerID is nil when the
// death had no attacker.
type DeathEvent struct {
	KillerID *int `json:"killer_id"`
}

// Event is one entry of a battle's append-only log. Exactly one of Attack,
// Move or Death is set, matching Kind.
type Event struct {
	Round     int          `json:"round"`
	ActorID   int          `json:"actor_id"`
	ActorName string       `json:"actor_name"`
	Kind      EventKind    `json:"kind"`
	Attack    *AttackEvent `json:"attack,omitempty"`
	Move      *MoveEvent   `json:"move,omitempty"`
	Death     *DeathEvent  `json:"death,omitempty"`
}

// ActorState is an actor's condition when the battle ended.
type ActorState struct {
	ID      int              `json:"id"`
	Name    string           `json:"name"`
	Side    battlefield.Side `json:"side"`
	MaxHP   int              `json:"max_hp"`
	FinalHP int              `json:"final_hp"`
	Alive   bool             `json:"alive"`
	Zone    battlefield.Zone `json:"zone"`
}

// Result is the outcome of one battle. Winner is NoSide both for a mutual
// wipe and for hitting the round cap.
type Result struct {
	Winner battlefield.Side `json:"winner"`
	Rounds int              `json:"rounds"`
	Events []Event          `json:"events"`
	Final  []ActorState     `json:"final_state"`
}

// Casualties counts dead actors on side.
func (r *Result) Casualties(side battlefield.Side) int {
	n := 0
	for _, a := range r.Final {
		if a.Side == side && !a.Alive {
			n++
		}
	}
	return n
}

// HPLost sums max minus final hit points on side, counting overkill as zero.
func (r *Result) HPLost(side battlefield.Side) int {
	n := 0
	for _, a := range r.Final {
		if a.Side == side {
			n += a.MaxHP - max(a.FinalHP, 0)
		}
	}
	return n
}
