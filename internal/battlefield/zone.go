// Package battlefield models the six-zone track both sides fight across.
package battlefield

import (
	"fmt"
	"strings"
)

// Zone is one of the six positions on the track. The order of the
// constants is the order of the track and must not change.
type Zone int

const (
	Side1Ranged Zone = iota
	Side1Reach
	Side1Melee
	Side2Melee
	Side2Reach
	Side2Ranged
)

// Zones lists every zone in track order.
var Zones = [...]Zone{Side1Ranged, Side1Reach, Side1Melee, Side2Melee, Side2Reach, Side2Ranged}

var zoneNames = [...]string{"Side1Ranged", "Side1Reach", "Side1Melee", "Side2Melee", "Side2Reach", "Side2Ranged"}

var zoneKeys = [...]string{"side1_ranged", "side1_reach", "side1_melee", "side2_melee", "side2_reach", "side2_ranged"}

// Valid reports whether z is on the track.
func (z Zone) Valid() bool {
	return z >= Side1Ranged && z <= Side2Ranged
}

// Side returns the side that owns the zone.
func (z Zone) Side() Side {
	if z <= Side1Melee {
		return Side1
	}
	return Side2
}

// Distance returns the number of steps between two zones.
func (z Zone) Distance(other Zone) int {
	d := int(z) - int(other)
	if d < 0 {
		return -d
	}
	return d
}

// Toward returns the neighbouring zone one step closer to target.
// ok is false when z is already the target.
func (z Zone) Toward(target Zone) (next Zone, ok bool) {
	switch {
	case target > z:
		return z + 1, true
	case target < z:
		return z - 1, true
	default:
		return z, false
	}
}

// String returns the display name used in combat logs (e.g. "Side1Melee").
func (z Zone) String() string {
	if !z.Valid() {
		return fmt.Sprintf("Zone(%d)", int(z))
	}
	return zoneNames[z]
}

// Key returns the snake_case name used in configuration and JSON.
func (z Zone) Key() string {
	if !z.Valid() {
		return ""
	}
	return zoneKeys[z]
}

// ParseZone accepts either the snake_case key or the display name,
// case-insensitively.
func ParseZone(s string) (Zone, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, key := range zoneKeys {
		if s == key || s == strings.ToLower(zoneNames[i]) {
			return Zone(i), true
		}
	}
	return 0, false
}

// MarshalText implements encoding.TextMarshaler.
func (z Zone) MarshalText() ([]byte, error) {
	if !z.Valid() {
		return nil, fmt.Errorf("invalid zone %d", int(z))
	}
	return []byte(z.Key()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (z *Zone) UnmarshalText(text []byte) error {
	parsed, ok := ParseZone(string(text))
	if !ok {
		return fmt.Errorf("unknown zone %q", text)
	}
	*z = parsed
	return nil
}

// Capacities limits how many living actors may stand in a zone. The same
// limits apply to both sides' zones of the same kind.
type Capacities struct {
	// Ranged is the ranged-zone limit; Unlimited means no limit.
	Ranged int
	Reach  int
	Melee  int
}

// Unlimited marks a zone kind with no occupancy limit.
const Unlimited = -1

// DefaultCapacities returns unlimited ranged zones and three slots in each
// reach and melee zone.
func DefaultCapacities() Capacities {
	return Capacities{Ranged: Unlimited, Reach: 3, Melee: 3}
}

// For returns the capacity of zone, or Unlimited.
func (c Capacities) For(zone Zone) int {
	switch zone {
	case Side1Ranged, Side2Ranged:
		return c.Ranged
	case Side1Reach, Side2Reach:
		return c.Reach
	default:
		return c.Melee
	}
}

// Admits reports whether a zone that already holds occupants living actors
// (not counting the mover) has room for one more.
func (c Capacities) Admits(zone Zone, occupants int) bool {
	limit := c.For(zone)
	if limit < 0 {
		return true
	}
	return occupants < limit
}
