package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lawnchairsociety/tunnelfight/internal/database"
	"github.com/lawnchairsociety/tunnelfight/internal/encounter"
	"github.com/lawnchairsociety/tunnelfight/internal/logger"
	"github.com/lawnchairsociety/tunnelfight/internal/rng"
	"github.com/lawnchairsociety/tunnelfight/internal/sim"
	"github.com/lawnchairsociety/tunnelfight/internal/stats"
)

// SimulateRequest is the body of POST /simulate and the message a
// WebSocket client sends to start a stream.
type SimulateRequest struct {
	EncounterYAML string `json:"encounter_yaml"`

	// SampleCount defaults to the configured default_samples when absent.
	SampleCount *int `json:"sample_count,omitempty"`

	// Seed makes the batch reproducible. A fresh seed is drawn when absent
	// and echoed back in the response.
	Seed *uint64 `json:"seed,omitempty"`

	// Iterations overrides the encounter's own count.
	Iterations int `json:"iterations,omitempty"`

	Workers int `json:"workers,omitempty"`
}

// SimulateResponse is what a finished batch reports.
type SimulateResponse struct {
	Encounter     string            `json:"encounter"`
	Stats         stats.Summary     `json:"stats"`
	SampleCombats []stats.CombatLog `json:"sample_combats"`
	Seed          uint64            `json:"seed"`
	Workers       int               `json:"workers"`
	ElapsedMS     int64             `json:"elapsed_ms"`
	Warnings      []string          `json:"warnings,omitempty"`
	ReportID      string            `json:"report_id,omitempty"`
}

// requestError is a problem with the client's request, carried with the
// status to answer it with.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

// errorStatus maps a simulate error to an HTTP status and client message.
func errorStatus(err error) (int, string) {
	var re *requestError
	switch {
	case errors.As(err, &re):
		return re.status, re.msg
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "simulation cancelled"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// simulate validates req, runs the batch and archives it when a report
// store is configured. Client mistakes come back as *requestError.
func (s *Server) simulate(ctx context.Context, req *SimulateRequest, progress sim.Progress) (*SimulateResponse, error) {
	if strings.TrimSpace(req.EncounterYAML) == "" {
		return nil, badRequest("encounter_yaml is required")
	}
	enc, err := encounter.Parse([]byte(req.EncounterYAML))
	if err != nil {
		return nil, badRequest("invalid encounter: %v", err)
	}

	limits := s.cfg.Simulation
	samples := limits.DefaultSamples
	if req.SampleCount != nil {
		samples = *req.SampleCount
	}
	if samples < 0 || samples > limits.MaxSamples {
		return nil, badRequest("sample_count must be between 0 and %d", limits.MaxSamples)
	}
	if req.Iterations < 0 {
		return nil, badRequest("iterations must not be negative")
	}
	if req.Workers < 0 {
		return nil, badRequest("workers must not be negative")
	}
	workers := req.Workers
	if workers == 0 {
		workers = limits.Workers
	}
	if limits.MaxWorkers > 0 {
		workers = min(workers, limits.MaxWorkers)
	}

	var seed uint64
	if req.Seed != nil {
		seed = *req.Seed
	} else if seed, err = rng.NewSeed(); err != nil {
		return nil, err
	}

	batch, err := sim.Run(ctx, enc, sim.Options{
		Seed:          seed,
		Iterations:    req.Iterations,
		MaxIterations: limits.MaxIterations,
		MaxRounds:     limits.MaxRounds,
		Samples:       samples,
		Workers:       workers,
		Progress:      progress,
	})
	if errors.Is(err, sim.ErrTooManyIterations) {
		return nil, badRequest("%v", err)
	}
	if err != nil {
		return nil, err
	}

	resp := &SimulateResponse{
		Encounter:     batch.Encounter,
		Stats:         batch.Stats,
		SampleCombats: batch.Samples,
		Seed:          batch.Seed,
		Workers:       batch.Workers,
		ElapsedMS:     batch.Elapsed.Milliseconds(),
		Warnings:      enc.Warnings,
	}
	if resp.SampleCombats == nil {
		resp.SampleCombats = []stats.CombatLog{}
	}

	if s.reports != nil {
		report := &database.Report{
			EncounterName: batch.Encounter,
			Fingerprint:   rng.Fingerprint([]byte(req.EncounterYAML)),
			Seed:          batch.Seed,
			Iterations:    batch.Iterations,
			Initiative:    enc.Initiative.Mode.String(),
			Stats:         batch.Stats,
			Samples:       batch.Samples,
		}
		// A failed archive write loses the report, not the result.
		if err := s.reports.SaveReport(context.WithoutCancel(ctx), report); err != nil {
			logger.Error("Failed to archive report",
				"encounter", batch.Encounter,
				"error", err)
		} else {
			resp.ReportID = report.ID
		}
	}

	logger.Always("Simulation served",
		"encounter", batch.Encounter,
		"iterations", batch.Iterations,
		"seed", batch.Seed,
		"workers", batch.Workers,
		"report_id", resp.ReportID)
	return resp, nil
}
