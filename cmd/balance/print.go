package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/lawnchairsociety/tunnelfight/internal/battlefield"
	"github.com/lawnchairsociety/tunnelfight/internal/database"
	"github.com/lawnchairsociety/tunnelfight/internal/encounter"
	"github.com/lawnchairsociety/tunnelfight/internal/sim"
	"github.com/lawnchairsociety/tunnelfight/internal/stats"
)

func printBatch(w io.Writer, enc *encounter.Encounter, b *sim.Batch, color bool) {
	s := b.Stats

	fmt.Fprintf(w, "=== Encounter Simulation: %s ===\n\n", b.Encounter)
	for _, side := range []battlefield.Side{battlefield.Side1, battlefield.Side2} {
		fmt.Fprintf(w, "%-7s %s (%d expected HP)\n", side.String()+":", rosterNames(enc.Roster(side)), enc.ExpectedHP(side))
	}
	fmt.Fprintf(w, "Initiative: %s\n", enc.Initiative.Mode)
	fmt.Fprintf(w, "Seed: %d, Workers: %d\n\n", b.Seed, b.Workers)

	fmt.Fprintf(w, "Results (%s simulations in %s):\n", humanize.Comma(int64(s.Iterations)), b.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "  Side 1 Win Rate: %5.1f%%\n", s.Side1WinRate)
	fmt.Fprintf(w, "  Side 2 Win Rate: %5.1f%%\n", s.Side2WinRate)
	fmt.Fprintf(w, "  Draw Rate:       %5.1f%%\n", s.DrawRate)
	fmt.Fprintf(w, "  Avg Rounds:      %5.1f (min: %d, max: %d)\n", s.AvgRounds, s.MinRounds, s.MaxRounds)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Side   | Casualties | HP Lost        | Flawless | TPK")
	fmt.Fprintln(w, "-------+------------+----------------+----------+-------")
	fmt.Fprintf(w, "Side 1 | %10.2f | %6.1f (%4.1f%%) | %7.1f%% | %5.1f%%\n",
		s.AvgSide1Casualties, s.AvgSide1HPLost, s.AvgSide1HPLostPercent, s.Side1FlawlessRate, s.Side1TPKRate)
	fmt.Fprintf(w, "Side 2 | %10.2f | %6.1f (%4.1f%%) | %7.1f%% | %5.1f%%\n",
		s.AvgSide2Casualties, s.AvgSide2HPLost, s.AvgSide2HPLostPercent, s.Side2FlawlessRate, s.Side2TPKRate)
	fmt.Fprintln(w)

	printAssessment(w, s.Side1WinRate, color)

	for i, log := range b.Samples {
		fmt.Fprintln(w)
		printCombatLog(w, i+1, log)
	}
}

func rosterNames(roster []encounter.ActorTemplate) string {
	if len(roster) == 0 {
		return "(nobody)"
	}
	names := make([]string, len(roster))
	for i, t := range roster {
		names[i] = t.Name
	}
	return strings.Join(names, ", ")
}

// assessmentColors maps each assessment to an ANSI color.
var assessmentColors = map[string]string{
	"TOO HARD":    "\033[31m", // Red
	"CHALLENGING": "\033[33m", // Yellow
	"BALANCED":    "\033[32m", // Green
	"EASY":        "\033[33m", // Yellow
	"TOO EASY":    "\033[31m", // Red
}

func printAssessment(w io.Writer, winRate float64, color bool) {
	assessment := stats.Assess(winRate)
	if color {
		assessment = assessmentColors[assessment] + assessment + "\033[0m"
	}
	fmt.Fprintf(w, "Assessment: %s (side 1 wins %.1f%%)\n", assessment, winRate)
}

func printCombatLog(w io.Writer, n int, log stats.CombatLog) {
	outcome := "draw"
	if log.Winner != nil {
		outcome = *log.Winner + " wins"
	}
	fmt.Fprintf(w, "--- Sample combat %d: %s after %d rounds ---\n", n, outcome, log.Rounds)
	for _, e := range log.Events {
		fmt.Fprintf(w, "  [R%d] %s %s\n", e.Round, e.Actor, e.Description)
	}
	fmt.Fprintln(w, "  Final state:")
	for _, a := range log.FinalState {
		status := "alive"
		if !a.Alive {
			status = "dead"
		}
		fmt.Fprintf(w, "    %-20s %-6s %7s HP  %-5s %s\n", a.Name, a.Side, a.HP, status, a.Zone)
	}
}

func printReports(w io.Writer, reports []database.Report) {
	if len(reports) == 0 {
		fmt.Fprintln(w, "No reports archived.")
		return
	}

	fmt.Fprintln(w, "ID                                   | Encounter            | Battles | Side 1 Win | Created")
	fmt.Fprintln(w, "-------------------------------------+----------------------+---------+------------+----------------")
	for _, r := range reports {
		fmt.Fprintf(w, "%-36s | %-20s | %7s | %9.1f%% | %s\n",
			r.ID, truncate(r.EncounterName, 20), humanize.Comma(int64(r.Iterations)),
			r.Stats.Side1WinRate, humanize.Time(r.CreatedAt))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func isTerminal() bool {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}
