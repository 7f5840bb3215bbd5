package battlefield

import (
	"encoding/json"
	"testing"
)

func TestZoneOrder(t *testing.T) {
	for i := 1; i < len(Zones); i++ {
		if Zones[i-1] >= Zones[i] {
			t.Errorf("zone %v should come before %v", Zones[i-1], Zones[i])
		}
	}
	if Side1Ranged.Side() != Side1 || Side1Melee.Side() != Side1 {
		t.Error("first three zones should belong to side 1")
	}
	if Side2Melee.Side() != Side2 || Side2Ranged.Side() != Side2 {
		t.Error("last three zones should belong to side 2")
	}
}

func TestZoneDistance(t *testing.T) {
	for _, a := range Zones {
		if a.Distance(a) != 0 {
			t.Errorf("Distance(%v, %v) = %d, want 0", a, a, a.Distance(a))
		}
		for _, b := range Zones {
			if a.Distance(b) != b.Distance(a) {
				t.Errorf("Distance not symmetric for %v, %v", a, b)
			}
			if a != b && a.Distance(b) == 0 {
				t.Errorf("Distance(%v, %v) = 0 for distinct zones", a, b)
			}
			for _, c := range Zones {
				if a.Distance(c) > a.Distance(b)+b.Distance(c) {
					t.Errorf("triangle inequality broken for %v, %v, %v", a, b, c)
				}
			}
		}
	}

	if got := Side1Ranged.Distance(Side2Ranged); got != 5 {
		t.Errorf("Distance across the track = %d, want 5", got)
	}
	if got := Side1Melee.Distance(Side2Melee); got != 1 {
		t.Errorf("Distance between melee zones = %d, want 1", got)
	}
}

func TestZoneToward(t *testing.T) {
	for _, from := range Zones {
		for _, to := range Zones {
			next, ok := from.Toward(to)
			if from == to {
				if ok {
					t.Errorf("Toward(%v, %v) should report no step", from, to)
				}
				continue
			}
			if !ok {
				t.Errorf("Toward(%v, %v) returned no step", from, to)
				continue
			}
			if from.Distance(next) != 1 {
				t.Errorf("Toward(%v, %v) = %v, not adjacent", from, to, next)
			}
			if next.Distance(to) != from.Distance(to)-1 {
				t.Errorf("Toward(%v, %v) = %v, not closer", from, to, next)
			}
		}
	}
}

func TestParseZone(t *testing.T) {
	tests := []struct {
		input string
		want  Zone
		ok    bool
	}{
		{"side1_ranged", Side1Ranged, true},
		{"Side2Melee", Side2Melee, true},
		{"  SIDE2_REACH ", Side2Reach, true},
		{"middle", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseZone(tt.input)
			if ok != tt.ok || (ok && got != tt.want) {
				t.Errorf("ParseZone(%q) = %v, %v; want %v, %v", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestZoneJSON(t *testing.T) {
	data, err := json.Marshal(Side2Reach)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `"side2_reach"` {
		t.Errorf("Marshal = %s, want \"side2_reach\"", data)
	}

	var z Zone
	if err := json.Unmarshal([]byte(`"side1_melee"`), &z); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if z != Side1Melee {
		t.Errorf("Unmarshal = %v, want Side1Melee", z)
	}
}

func TestCapacities(t *testing.T) {
	caps := DefaultCapacities()

	if !caps.Admits(Side1Ranged, 1000) {
		t.Error("ranged zones should be unlimited by default")
	}
	if !caps.Admits(Side2Melee, 2) {
		t.Error("melee zone with 2 occupants should admit one more")
	}
	if caps.Admits(Side2Melee, 3) {
		t.Error("melee zone with 3 occupants should be full")
	}
	if caps.For(Side1Reach) != 3 {
		t.Errorf("reach capacity = %d, want 3", caps.For(Side1Reach))
	}

	caps.Ranged = 1
	if caps.Admits(Side2Ranged, 1) {
		t.Error("ranged zone limited to 1 should be full with 1 occupant")
	}
}

func TestSide(t *testing.T) {
	if Side1.Opposite() != Side2 || Side2.Opposite() != Side1 {
		t.Error("Opposite should swap sides")
	}

	data, _ := json.Marshal(NoSide)
	if string(data) != "null" {
		t.Errorf("NoSide marshals to %s, want null", data)
	}
	data, _ = json.Marshal(Side1)
	if string(data) != `"side1"` {
		t.Errorf("Side1 marshals to %s, want \"side1\"", data)
	}
}

func TestWeaponRange(t *testing.T) {
	tests := []struct {
		input string
		want  WeaponRange
		dist  int
	}{
		{"melee", Melee, 1},
		{"Reach", Reach, 2},
		{"RANGED", Ranged, 6},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseWeaponRange(tt.input)
			if err != nil {
				t.Fatalf("ParseWeaponRange(%q) error: %v", tt.input, err)
			}
			if got != tt.want || got.MaxDistance() != tt.dist {
				t.Errorf("ParseWeaponRange(%q) = %v (max %d), want %v (max %d)", tt.input, got, got.MaxDistance(), tt.want, tt.dist)
			}
		})
	}

	if _, err := ParseWeaponRange("spear"); err == nil {
		t.Error("expected error for unknown range")
	}
}

func TestStartingZone(t *testing.T) {
	tests := []struct {
		start StartingZone
		side  Side
		want  Zone
	}{
		{StartRanged, Side1, Side1Ranged},
		{StartReach, Side1, Side1Reach},
		{StartMelee, Side1, Side1Melee},
		{StartRanged, Side2, Side2Ranged},
		{StartReach, Side2, Side2Reach},
		{StartMelee, Side2, Side2Melee},
	}

	for _, tt := range tests {
		if got := tt.start.ZoneFor(tt.side); got != tt.want {
			t.Errorf("%v.ZoneFor(%v) = %v, want %v", tt.start, tt.side, got, tt.want)
		}
	}
}
