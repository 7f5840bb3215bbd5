package battlefield

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Side identifies one of the two rosters. The zero value is NoSide and is
// used for "no winner".
type Side int

const (
	NoSide Side = iota
	Side1
	Side2
)

// Opposite returns the other side. NoSide has no opposite.
func (s Side) Opposite() Side {
	switch s {
	case Side1:
		return Side2
	case Side2:
		return Side1
	default:
		return NoSide
	}
}

// String returns "Side1", "Side2" or "None".
func (s Side) String() string {
	switch s {
	case Side1:
		return "Side1"
	case Side2:
		return "Side2"
	default:
		return "None"
	}
}

// Key returns "side1" or "side2", or "" for NoSide.
func (s Side) Key() string {
	switch s {
	case Side1:
		return "side1"
	case Side2:
		return "side2"
	default:
		return ""
	}
}

// MarshalJSON encodes NoSide as null.
func (s Side) MarshalJSON() ([]byte, error) {
	if s == NoSide {
		return []byte("null"), nil
	}
	return json.Marshal(s.Key())
}

// UnmarshalJSON accepts "side1", "side2" or null.
func (s *Side) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = NoSide
		return nil
	}
	var key string
	if err := json.Unmarshal(data, &key); err != nil {
		return err
	}
	switch strings.ToLower(key) {
	case "side1":
		*s = Side1
	case "side2":
		*s = Side2
	default:
		return fmt.Errorf("unknown side %q", key)
	}
	return nil
}

// WeaponRange classifies how far an actor can strike.
type WeaponRange int

const (
	Melee WeaponRange = iota
	Reach
	Ranged
)

// MaxDistance is the largest zone distance the weapon can attack across.
func (r WeaponRange) MaxDistance() int {
	switch r {
	case Reach:
		return 2
	case Ranged:
		return 6
	default:
		return 1
	}
}

func (r WeaponRange) String() string {
	switch r {
	case Reach:
		return "reach"
	case Ranged:
		return "ranged"
	default:
		return "melee"
	}
}

// ParseWeaponRange parses "melee", "reach" or "ranged".
func ParseWeaponRange(s string) (WeaponRange, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "melee":
		return Melee, nil
	case "reach":
		return Reach, nil
	case "ranged":
		return Ranged, nil
	}
	return Melee, fmt.Errorf("unknown weapon range %q", s)
}

// StartingZone is where an actor begins, relative to its own side.
type StartingZone int

const (
	StartRanged StartingZone = iota
	StartReach
	StartMelee
)

// ParseStartingZone parses "ranged", "reach" or "melee".
func ParseStartingZone(s string) (StartingZone, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ranged":
		return StartRanged, nil
	case "reach":
		return StartReach, nil
	case "melee":
		return StartMelee, nil
	}
	return StartRanged, fmt.Errorf("unknown start zone %q", s)
}

func (s StartingZone) String() string {
	switch s {
	case StartReach:
		return "reach"
	case StartMelee:
		return "melee"
	default:
		return "ranged"
	}
}

// ZoneFor maps the starting zone onto the track for the given side.
func (s StartingZone) ZoneFor(side Side) Zone {
	if side == Side2 {
		switch s {
		case StartMelee:
			return Side2Melee
		case StartReach:
			return Side2Reach
		default:
			return Side2Ranged
		}
	}
	switch s {
	case StartMelee:
		return Side1Melee
	case StartReach:
		return Side1Reach
	default:
		return Side1Ranged
	}
}

// RangedZone returns the rearmost zone owned by side.
func RangedZone(side Side) Zone {
	if side == Side2 {
		return Side2Ranged
	}
	return Side1Ranged
}
