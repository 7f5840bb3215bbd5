// balance runs Tunnel Fight encounters from the command line.
//
// Usage:
//
//	balance [command] [options]
//
// Commands:
//
//	simulate  - Simulate an encounter file and print balance statistics
//	reports   - List archived simulation reports
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/lawnchairsociety/tunnelfight/internal/client"
	"github.com/lawnchairsociety/tunnelfight/internal/database"
	"github.com/lawnchairsociety/tunnelfight/internal/encounter"
	"github.com/lawnchairsociety/tunnelfight/internal/logger"
	"github.com/lawnchairsociety/tunnelfight/internal/rng"
	"github.com/lawnchairsociety/tunnelfight/internal/server"
	"github.com/lawnchairsociety/tunnelfight/internal/sim"
)

func main() {
	// Keep library logging off the report output.
	cfg := logger.DefaultConfig()
	cfg.Level = "warn"
	cfg.FileEnabled = false
	if err := logger.Initialize(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 2
	}

	var err error
	switch args[0] {
	case "simulate":
		err = runSimulate(ctx, args[1:], stdout, stderr)
	case "reports":
		err = runReports(ctx, args[1:], stdout)
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", args[0])
		printUsage(stderr)
		return 2
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}

var errUsage = errors.New("usage")

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `Tunnel Fight Balance Simulator

A Monte Carlo simulator for tabletop encounters.

Usage: balance <command> [options]

Commands:
  simulate  Simulate an encounter file and print balance statistics
  reports   List archived simulation reports

Examples:
  balance simulate -encounter=goblins.yaml
  balance simulate -encounter=goblins.yaml -seed=42 -iterations=5000 -samples=1
  balance simulate -encounter=goblins.yaml -workers=8 -db=data/reports.db
  balance simulate -encounter=goblins.yaml -server=http://localhost:8080
  balance reports -db=data/reports.db -limit=10

Use "balance <command> -h" for more information about a command.`)
}

func runSimulate(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	fs.SetOutput(stdout)

	encounterFile := fs.String("encounter", "", "Path to encounter YAML file (required)")
	seedFlag := fs.String("seed", "", "RNG seed (default: random)")
	iterations := fs.Int("iterations", 0, "Number of battles (default: the encounter's iterations)")
	samples := fs.Int("samples", sim.DefaultSamples, "Number of sample combat logs to print")
	workers := fs.Int("workers", 1, "Parallel workers; above 1 each battle gets its own RNG substream")
	maxRounds := fs.Int("max-rounds", 0, "Round cap per battle (default: 100)")
	asJSON := fs.Bool("json", false, "Print the full result as JSON")
	dbFile := fs.String("db", "", "Archive the result in this SQLite database")
	serverURL := fs.String("server", "", "Run on a Tunnel Fight server at this URL instead of locally")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *encounterFile == "" && fs.NArg() == 1 {
		*encounterFile = fs.Arg(0)
	}
	if *encounterFile == "" {
		return fmt.Errorf("%w: -encounter is required", errUsage)
	}
	if *samples < 0 || *iterations < 0 || *workers < 1 {
		return fmt.Errorf("%w: -samples and -iterations must not be negative, -workers must be at least 1", errUsage)
	}
	if *serverURL != "" && (*dbFile != "" || *maxRounds != 0) {
		return fmt.Errorf("%w: -db and -max-rounds cannot be combined with -server", errUsage)
	}

	data, err := os.ReadFile(*encounterFile)
	if err != nil {
		return fmt.Errorf("failed to read encounter file: %w", err)
	}
	enc, err := encounter.Parse(data)
	if err != nil {
		return err
	}

	seed, err := parseSeed(*seedFlag)
	if err != nil {
		return err
	}

	var (
		batch    *sim.Batch
		reportID string
	)
	if *serverURL != "" {
		batch, reportID, err = runRemote(ctx, *serverURL, stderr, data, server.SimulateRequest{
			Seed:        &seed,
			SampleCount: samples,
			Iterations:  *iterations,
			Workers:     *workers,
		})
	} else {
		batch, err = sim.Run(ctx, enc, sim.Options{
			Seed:       seed,
			Iterations: *iterations,
			MaxRounds:  *maxRounds,
			Samples:    *samples,
			Workers:    *workers,
		})
	}
	if err != nil {
		return err
	}

	if *dbFile != "" {
		reportID, err = archive(ctx, *dbFile, enc, data, batch)
		if err != nil {
			return err
		}
	}

	if *asJSON {
		out := struct {
			*sim.Batch
			Warnings []string `json:"warnings,omitempty"`
			ReportID string   `json:"report_id,omitempty"`
		}{batch, enc.Warnings, reportID}
		e := json.NewEncoder(stdout)
		e.SetIndent("", "  ")
		return e.Encode(out)
	}

	for _, w := range enc.Warnings {
		fmt.Fprintf(stdout, "Warning: %s\n", w)
	}
	printBatch(stdout, enc, batch, isTerminal())
	if reportID != "" {
		fmt.Fprintf(stdout, "\nArchived as report %s\n", reportID)
	}
	return nil
}

// parseSeed reads -seed, drawing a fresh seed when it is empty.
func parseSeed(s string) (uint64, error) {
	if s == "" {
		return rng.NewSeed()
	}
	seed, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid -seed %q", errUsage, s)
	}
	return seed, nil
}

// runRemote streams the simulation from a server, drawing a progress line
// on stderr when it is a terminal.
func runRemote(ctx context.Context, baseURL string, stderr io.Writer, yaml []byte, req server.SimulateRequest) (*sim.Batch, string, error) {
	req.EncounterYAML = string(yaml)

	var progress client.ProgressFunc
	if isTerminal() {
		progress = func(done, total int) {
			fmt.Fprintf(stderr, "\rSimulating... %d/%d", done, total)
		}
		defer fmt.Fprintln(stderr)
	}

	resp, err := client.New(baseURL).Stream(ctx, req, progress)
	if err != nil {
		return nil, "", err
	}
	return &sim.Batch{
		Encounter:  resp.Encounter,
		Seed:       resp.Seed,
		Iterations: resp.Stats.Iterations,
		Workers:    resp.Workers,
		Stats:      resp.Stats,
		Samples:    resp.SampleCombats,
		Elapsed:    time.Duration(resp.ElapsedMS) * time.Millisecond,
	}, resp.ReportID, nil
}

func archive(ctx context.Context, path string, enc *encounter.Encounter, yaml []byte, batch *sim.Batch) (string, error) {
	db, err := database.Open(path)
	if err != nil {
		return "", err
	}
	defer db.Close()

	report := &database.Report{
		EncounterName: batch.Encounter,
		Fingerprint:   rng.Fingerprint(yaml),
		Seed:          batch.Seed,
		Iterations:    batch.Iterations,
		Initiative:    enc.Initiative.Mode.String(),
		Stats:         batch.Stats,
		Samples:       batch.Samples,
	}
	if err := db.SaveReport(ctx, report); err != nil {
		return "", fmt.Errorf("failed to archive report: %w", err)
	}
	return report.ID, nil
}

func runReports(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("reports", flag.ContinueOnError)
	fs.SetOutput(stdout)

	dbFile := fs.String("db", "data/tunnelfight.db", "Path to SQLite report database")
	limit := fs.Int("limit", 20, "Maximum reports to list")
	name := fs.String("encounter", "", "Only list reports for this encounter name")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return fmt.Errorf("%w: -limit must be positive", errUsage)
	}
	if _, err := os.Stat(*dbFile); err != nil {
		return fmt.Errorf("report database: %w", err)
	}

	db, err := database.Open(*dbFile)
	if err != nil {
		return err
	}
	defer db.Close()

	reports, err := db.ListReports(ctx, database.ReportFilter{EncounterName: *name, Limit: *limit})
	if err != nil {
		return err
	}
	printReports(stdout, reports)
	return nil
}
