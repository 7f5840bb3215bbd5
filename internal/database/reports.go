package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/lawnchairsociety/tunnelfight/internal/stats"
)

// Report is one archived simulation batch.
type Report struct {
	ID            string            `json:"id"`
	EncounterName string            `json:"encounter_name"`
	Fingerprint   string            `json:"fingerprint"`
	Seed          uint64            `json:"seed"`
	Iterations    int               `json:"iterations"`
	Initiative    string            `json:"initiative"`
	Stats         stats.Summary     `json:"stats"`
	Samples       []stats.CombatLog `json:"sample_combats,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// ReportFilter narrows ListReports. Zero fields match everything.
type ReportFilter struct {
	EncounterName string // case-insensitive exact match
	Fingerprint   string
	Limit         int
}

// DefaultListLimit caps ListReports when the filter sets no limit.
const DefaultListLimit = 50

const reportColumns = `id, encounter_name, fingerprint, seed, iterations, initiative, stats, created_at`

// SaveReport inserts r, assigning an id and creation time when missing.
func (d *Database) SaveReport(ctx context.Context, r *Report) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}

	statsJSON, err := json.Marshal(r.Stats)
	if err != nil {
		return fmt.Errorf("failed to encode report stats: %w", err)
	}
	samples := r.Samples
	if samples == nil {
		samples = []stats.CombatLog{}
	}
	samplesJSON, err := json.Marshal(samples)
	if err != nil {
		return fmt.Errorf("failed to encode report samples: %w", err)
	}

	query := d.qb.Build(`INSERT INTO simulation_reports
		(id, encounter_name, fingerprint, seed, iterations, initiative,
		 side1_win_rate, side2_win_rate, draw_rate, avg_rounds, stats, samples, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err = d.db.ExecContext(ctx, query,
		r.ID, r.EncounterName, r.Fingerprint, strconv.FormatUint(r.Seed, 10), r.Iterations, r.Initiative,
		r.Stats.Side1WinRate, r.Stats.Side2WinRate, r.Stats.DrawRate, r.Stats.AvgRounds,
		string(statsJSON), string(samplesJSON), r.CreatedAt,
	)
	if err != nil {
		if d.dialect.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", ErrDuplicate, r.ID)
		}
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// GetReport loads a report with its sample logs.
func (d *Database) GetReport(ctx context.Context, id string) (*Report, error) {
	query := d.qb.Build(`SELECT ` + reportColumns + `, samples FROM simulation_reports WHERE id = ?`)

	var r Report
	var samplesJSON []byte
	err := scanReport(d.db.QueryRowContext(ctx, query, id), &r, &samplesJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report: %w", err)
	}

	if err := json.Unmarshal(samplesJSON, &r.Samples); err != nil {
		return nil, fmt.Errorf("failed to decode report samples: %w", err)
	}
	return &r, nil
}

// ListReports returns reports newest first, without sample logs.
func (d *Database) ListReports(ctx context.Context, f ReportFilter) ([]Report, error) {
	query := `SELECT ` + reportColumns + ` FROM simulation_reports WHERE 1 = 1`
	var args []any
	if f.EncounterName != "" {
		query += ` AND encounter_name = ?`
		args = append(args, f.EncounterName)
	}
	if f.Fingerprint != "" {
		query += ` AND fingerprint = ?`
		args = append(args, f.Fingerprint)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := d.db.QueryContext(ctx, d.qb.Build(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	reports := []Report{}
	for rows.Next() {
		var r Report
		if err := scanReport(rows, &r); err != nil {
			return nil, fmt.Errorf("failed to read report: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// DeleteReport removes a report.
func (d *Database) DeleteReport(ctx context.Context, id string) error {
	res, err := d.db.ExecContext(ctx, d.qb.Build(`DELETE FROM simulation_reports WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountReports returns the number of archived reports.
func (d *Database) CountReports(ctx context.Context) (int, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM simulation_reports`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count reports: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(row scanner, r *Report, extra ...any) error {
	var seed string
	var statsJSON []byte
	dest := append([]any{
		&r.ID, &r.EncounterName, &r.Fingerprint, &seed, &r.Iterations, &r.Initiative, &statsJSON, &r.CreatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return err
	}

	var err error
	if r.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
		return fmt.Errorf("bad seed %q: %w", seed, err)
	}
	if err := json.Unmarshal(statsJSON, &r.Stats); err != nil {
		return fmt.Errorf("bad stats: %w", err)
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return nil
}
