package database

import (
	"context"
	"errors"
	"fmt"
)

// CopyResult counts what CopyReports did.
type CopyResult struct {
	Copied  int
	Skipped int // already present in the destination
}

// CopyReports copies every report from src into dst, keeping ids and
// timestamps. Reports already in dst are skipped, so the copy can be rerun.
// With dryRun set nothing is written and Copied counts what would be.
func CopyReports(ctx context.Context, src, dst *Database, dryRun bool) (CopyResult, error) {
	var result CopyResult

	rows, err := src.db.QueryContext(ctx, `SELECT id FROM simulation_reports ORDER BY created_at, id`)
	if err != nil {
		return result, fmt.Errorf("failed to list source reports: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return result, fmt.Errorf("failed to read source report id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("failed to list source reports: %w", err)
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if _, err := dst.GetReport(ctx, id); err == nil {
			result.Skipped++
			continue
		} else if !errors.Is(err, ErrNotFound) {
			return result, err
		}

		r, err := src.GetReport(ctx, id)
		if err != nil {
			return result, fmt.Errorf("report %s: %w", id, err)
		}
		if !dryRun {
			if err := dst.SaveReport(ctx, r); err != nil {
				if errors.Is(err, ErrDuplicate) {
					result.Skipped++
					continue
				}
				return result, fmt.Errorf("report %s: %w", id, err)
			}
		}
		result.Copied++
	}

	return result, nil
}
