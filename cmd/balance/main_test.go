package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"net/http/httptest"
	"testing"

	"github.com/lawnchairsociety/tunnelfight/internal/config"
	"github.com/lawnchairsociety/tunnelfight/internal/server"
	"github.com/lawnchairsociety/tunnelfight/internal/stats"
)

const duel = `
name: Duel
iterations: 40
side1:
  - name: Fighter
    hp: 20
    ac: 15
    attack_bonus: 5
    damage: 1d8+3
    start_zone: melee
side2:
  - name: Orc
    hp: 15
    ac: 13
    attack_bonus: 4
    damage: 1d12+2
    start_zone: melee
`

func writeEncounter(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "encounter.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCmd(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Usage(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  string
		wantErr  string
	}{
		{"no command", nil, 2, "", "Usage: balance"},
		{"unknown command", []string{"fight"}, 2, "", "Unknown command: fight"},
		{"help", []string{"help"}, 0, "Commands:", ""},
		{"missing encounter", []string{"simulate"}, 2, "", "-encounter is required"},
		{"zero workers", []string{"simulate", "-encounter", "x.yaml", "-workers", "0"}, 2, "", "-workers"},
		{"server with db", []string{"simulate", "-encounter", "x.yaml", "-server", "http://localhost", "-db", "r.db"}, 2, "", "cannot be combined with -server"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out, errOut := runCmd(t, tt.args...)
			if code != tt.wantCode {
				t.Errorf("exit code = %d, want %d (stderr %q)", code, tt.wantCode, errOut)
			}
			if !strings.Contains(out, tt.wantOut) {
				t.Errorf("stdout %q missing %q", out, tt.wantOut)
			}
			if !strings.Contains(errOut, tt.wantErr) {
				t.Errorf("stderr %q missing %q", errOut, tt.wantErr)
			}
		})
	}
}

func TestSimulate_BadSeed(t *testing.T) {
	path := writeEncounter(t, duel)
	code, _, errOut := runCmd(t, "simulate", "-encounter", path, "-seed", "abc")
	if code != 2 || !strings.Contains(errOut, "invalid -seed") {
		t.Errorf("code %d, stderr %q", code, errOut)
	}
}

func TestSimulate_Text(t *testing.T) {
	path := writeEncounter(t, duel)

	code, out, errOut := runCmd(t, "simulate", "-encounter", path, "-seed", "42", "-samples", "1")
	if code != 0 {
		t.Fatalf("exit code %d: %s", code, errOut)
	}
	for _, want := range []string{
		"=== Encounter Simulation: Duel ===",
		"Side1:  Fighter (20 expected HP)",
		"Seed: 42, Workers: 1",
		"Results (40 simulations",
		"Assessment: ",
		"--- Sample combat 1:",
		"Final state:",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Sample combat 2") {
		t.Error("printed more samples than requested")
	}
}

func TestSimulate_PositionalEncounter(t *testing.T) {
	path := writeEncounter(t, duel)
	if code, _, errOut := runCmd(t, "simulate", "-seed", "1", "-samples", "0", path); code != 0 {
		t.Fatalf("exit code %d: %s", code, errOut)
	}
}

func TestSimulate_JSON(t *testing.T) {
	path := writeEncounter(t, duel)

	type output struct {
		Seed          uint64            `json:"seed"`
		Iterations    int               `json:"iterations"`
		Stats         stats.Summary     `json:"stats"`
		SampleCombats []stats.CombatLog `json:"sample_combats"`
	}
	decodeRun := func(args ...string) output {
		code, out, errOut := runCmd(t, args...)
		if code != 0 {
			t.Fatalf("exit code %d: %s", code, errOut)
		}
		var o output
		if err := json.Unmarshal([]byte(out), &o); err != nil {
			t.Fatalf("decode %q: %v", out, err)
		}
		return o
	}

	a := decodeRun("simulate", "-encounter", path, "-json", "-seed", "7", "-iterations", "25", "-samples", "2")
	if a.Seed != 7 || a.Iterations != 25 || a.Stats.Iterations != 25 || len(a.SampleCombats) != 2 {
		t.Errorf("output = %+v", a)
	}

	b := decodeRun("simulate", "-encounter", path, "-json", "-seed", "7", "-iterations", "25", "-samples", "2")
	if a.Stats != b.Stats {
		t.Error("same seed gave different stats")
	}

	p := decodeRun("simulate", "-encounter", path, "-json", "-seed", "7", "-iterations", "25", "-workers", "4")
	q := decodeRun("simulate", "-encounter", path, "-json", "-seed", "7", "-iterations", "25", "-workers", "2")
	if p.Stats != q.Stats {
		t.Error("parallel stats depend on worker count")
	}
}

func TestSimulate_Server(t *testing.T) {
	path := writeEncounter(t, duel)
	s := server.NewServer(config.DefaultConfig(), nil)
	ts := httptest.NewServer(s.Handler())
	defer s.Shutdown(context.Background())
	defer ts.Close()

	code, out, errOut := runCmd(t, "simulate", "-encounter", path, "-seed", "42", "-samples", "1", "-server", ts.URL)
	if code != 0 {
		t.Fatalf("exit code %d: %s", code, errOut)
	}
	for _, want := range []string{"=== Encounter Simulation: Duel ===", "Seed: 42, Workers: 1", "--- Sample combat 1:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	type output struct {
		Stats stats.Summary `json:"stats"`
	}
	decodeRun := func(args ...string) output {
		code, out, errOut := runCmd(t, args...)
		if code != 0 {
			t.Fatalf("exit code %d: %s", code, errOut)
		}
		var o output
		if err := json.Unmarshal([]byte(out), &o); err != nil {
			t.Fatalf("decode %q: %v", out, err)
		}
		return o
	}
	local := decodeRun("simulate", "-encounter", path, "-json", "-seed", "9", "-iterations", "30")
	remote := decodeRun("simulate", "-encounter", path, "-json", "-seed", "9", "-iterations", "30", "-server", ts.URL)
	if local.Stats != remote.Stats {
		t.Errorf("remote stats %+v differ from local %+v", remote.Stats, local.Stats)
	}
}

func TestSimulate_InvalidEncounter(t *testing.T) {
	path := writeEncounter(t, "side1: [")
	code, _, errOut := runCmd(t, "simulate", "-encounter", path)
	if code != 1 || !strings.Contains(errOut, "invalid encounter") {
		t.Errorf("code %d, stderr %q", code, errOut)
	}

	code, _, _ = runCmd(t, "simulate", "-encounter", filepath.Join(t.TempDir(), "missing.yaml"))
	if code != 1 {
		t.Errorf("missing file exit code = %d", code)
	}
}

func TestSimulateArchiveAndReports(t *testing.T) {
	path := writeEncounter(t, duel)
	db := filepath.Join(t.TempDir(), "reports.db")

	if code, _, _ := runCmd(t, "reports", "-db", db); code != 1 {
		t.Errorf("reports on a missing database exit code = %d", code)
	}

	code, out, errOut := runCmd(t, "simulate", "-encounter", path, "-seed", "3", "-samples", "0", "-db", db)
	if code != 0 {
		t.Fatalf("exit code %d: %s", code, errOut)
	}
	if !strings.Contains(out, "Archived as report ") {
		t.Errorf("output missing archive line:\n%s", out)
	}

	code, out, errOut = runCmd(t, "reports", "-db", db, "-limit", "5")
	if code != 0 {
		t.Fatalf("reports exit code %d: %s", code, errOut)
	}
	if !strings.Contains(out, "Duel") || !strings.Contains(out, "40") {
		t.Errorf("report listing:\n%s", out)
	}

	if _, out, _ := runCmd(t, "reports", "-db", db, "-encounter", "Nobody"); !strings.Contains(out, "No reports archived.") {
		t.Errorf("filtered listing:\n%s", out)
	}
}

func TestPrintAssessment(t *testing.T) {
	tests := []struct {
		winRate float64
		want    string
	}{
		{10, "Assessment: TOO HARD (side 1 wins 10.0%)"},
		{45, "Assessment: CHALLENGING (side 1 wins 45.0%)"},
		{60, "Assessment: BALANCED (side 1 wins 60.0%)"},
		{80, "Assessment: EASY (side 1 wins 80.0%)"},
		{95, "Assessment: TOO EASY (side 1 wins 95.0%)"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		printAssessment(&buf, tt.winRate, false)
		if got := strings.TrimSpace(buf.String()); got != tt.want {
			t.Errorf("printAssessment(%v) = %q, want %q", tt.winRate, got, tt.want)
		}
	}

	var buf bytes.Buffer
	printAssessment(&buf, 60, true)
	if !strings.Contains(buf.String(), "\033[32mBALANCED\033[0m") {
		t.Errorf("colored output = %q", buf.String())
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("Goblin ambush", 20); got != "Goblin ambush" {
		t.Errorf("short name changed: %q", got)
	}
	if got := truncate("The very long siege of the northern gate", 10); got != "The very …" {
		t.Errorf("truncate = %q", got)
	}
}
