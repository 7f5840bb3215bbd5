// Package rules compiles and evaluates actor rule programs.
//
// A rule program is an ordered list of entries of the form
//
//	{action: attack|move, if: <condition>, target: <target>}
//
// Text is compiled once, when the encounter is loaded, into typed
// conditions and targets. Unrecognized text never fails compilation: it
// falls back to an always-true condition or the nearest-enemy target and is
// reported as a Diagnostic so the loader can log it.
package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lawnchairsociety/tunnelfight/internal/battlefield"
)

// Action is the kind of action a rule entry proposes.
type Action int

const (
	// ActionUnknown entries are kept but never fire.
	ActionUnknown Action = iota
	ActionAttack
	ActionMove
)

func (a Action) String() string {
	switch a {
	case ActionAttack:
		return "attack"
	case ActionMove:
		return "move"
	default:
		return "unknown"
	}
}

// ConditionKind is the closed set of condition forms.
type ConditionKind int

const (
	CondAlways ConditionKind = iota
	CondNever
	CondEnemyInRange
	CondNoEnemyInRange
	CondLess
	CondGreater
)

// Attribute is a numeric value a comparison condition can read.
type Attribute int

const (
	AttrHealthPercent Attribute = iota
	AttrHealth
	AttrEnemyCount
	AttrAllyCount
)

var attributeNames = map[string]Attribute{
	"self.health_percent": AttrHealthPercent,
	"self.hp_percent":     AttrHealthPercent,
	"self.hp":             AttrHealth,
	"self.health":         AttrHealth,
	"enemy.count":         AttrEnemyCount,
	"ally.count":          AttrAllyCount,
}

// Condition is a compiled condition expression.
type Condition struct {
	Kind      ConditionKind
	Attribute Attribute
	Value     float64
}

// Always is the condition used when none is given.
var Always = Condition{Kind: CondAlways}

// TargetKind is the closed set of target forms.
type TargetKind int

const (
	TargetNearest TargetKind = iota
	TargetLowestHP
	TargetRandom
	TargetForward
	TargetBackward
	TargetZone
)

// Target is a compiled target expression.
type Target struct {
	Kind TargetKind
	// Zone is set for TargetZone.
	Zone battlefield.Zone
}

// Entry is one compiled line of a rule program.
type Entry struct {
	Action    Action
	Condition Condition
	Target    Target
}

// Program is a compiled rule program, evaluated top to bottom.
type Program []Entry

// DefaultProgram is used by actors without a program of their own:
// attack the nearest enemy in range, otherwise move toward the nearest enemy.
var DefaultProgram = Program{
	{Action: ActionAttack, Condition: Condition{Kind: CondEnemyInRange}, Target: Target{Kind: TargetNearest}},
	{Action: ActionMove, Condition: Always, Target: Target{Kind: TargetNearest}},
}

// Text is the uncompiled form of an entry as it appears in encounter files.
type Text struct {
	Action string  `yaml:"action" json:"action"`
	If     *string `yaml:"if,omitempty" json:"if,omitempty"`
	Target *string `yaml:"target,omitempty" json:"target,omitempty"`
}

// Diagnostic describes rule text that was replaced by a default.
type Diagnostic struct {
	Entry int
	Field string
	Text  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("rule %d: unrecognized %s %q", d.Entry+1, d.Field, d.Text)
}

// Compile turns rule text into a Program. It never fails; text it does not
// understand compiles to the documented default and is reported.
func Compile(texts []Text) (Program, []Diagnostic) {
	prog := make(Program, 0, len(texts))
	var diags []Diagnostic

	for i, text := range texts {
		var e Entry
		switch strings.ToLower(strings.TrimSpace(text.Action)) {
		case "attack":
			e.Action = ActionAttack
		case "move":
			e.Action = ActionMove
		default:
			e.Action = ActionUnknown
			diags = append(diags, Diagnostic{Entry: i, Field: "action", Text: text.Action})
		}

		e.Condition = Always
		if text.If != nil {
			cond, ok := ParseCondition(*text.If)
			if !ok {
				diags = append(diags, Diagnostic{Entry: i, Field: "condition", Text: *text.If})
			}
			e.Condition = cond
		}

		e.Target = Target{Kind: TargetNearest}
		if text.Target != nil {
			tgt, ok := ParseTarget(e.Action, *text.Target)
			if !ok {
				diags = append(diags, Diagnostic{Entry: i, Field: "target", Text: *text.Target})
			}
			e.Target = tgt
		}

		prog = append(prog, e)
	}

	return prog, diags
}

// ParseCondition compiles a condition expression. ok is false when the
// text was not understood and the always-true fallback was used.
func ParseCondition(text string) (Condition, bool) {
	s := strings.ToLower(strings.TrimSpace(text))

	switch s {
	case "", "true":
		return Always, true
	case "false":
		return Condition{Kind: CondNever}, true
	case "enemy.in_range", "enemy_in_range":
		return Condition{Kind: CondEnemyInRange}, true
	case "!enemy.in_range", "!enemy_in_range", "not enemy.in_range":
		return Condition{Kind: CondNoEnemyInRange}, true
	}

	// Only the first comparison operator found is considered; "<" wins over ">".
	var op byte
	var kind ConditionKind
	switch {
	case strings.Contains(s, "<"):
		op, kind = '<', CondLess
	case strings.Contains(s, ">"):
		op, kind = '>', CondGreater
	default:
		return Always, false
	}

	parts := strings.Split(s, string(op))
	if len(parts) != 2 {
		return Always, false
	}
	attr, ok := attributeNames[strings.TrimSpace(parts[0])]
	if !ok {
		return Always, false
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		value = 0
	}
	return Condition{Kind: kind, Attribute: attr, Value: value}, true
}

// ParseTarget compiles a target expression for the given action. Forward,
// backward and zone names are only meaningful for move entries. ok is false
// when the nearest-enemy fallback was used.
func ParseTarget(action Action, text string) (Target, bool) {
	s := strings.ToLower(strings.TrimSpace(text))

	switch s {
	case "nearest_enemy", "nearest":
		return Target{Kind: TargetNearest}, true
	case "lowest_hp_enemy", "lowest_hp", "weakest":
		return Target{Kind: TargetLowestHP}, true
	case "random_enemy", "random":
		return Target{Kind: TargetRandom}, true
	}

	if action == ActionMove {
		switch s {
		case "forward":
			return Target{Kind: TargetForward}, true
		case "backward":
			return Target{Kind: TargetBackward}, true
		}
		if zone, ok := battlefield.ParseZone(s); ok {
			return Target{Kind: TargetZone, Zone: zone}, true
		}
	}

	return Target{Kind: TargetNearest}, false
}
