// Package sim runs batches of independent battles for one encounter and
// aggregates them into balance statistics.
//
// With one worker every battle draws from a single stream seeded by the
// batch seed, one after another. With more workers each battle gets its own
// substream keyed by (seed, battle index), so the outcome depends only on
// the seed and not on how battles were scheduled across goroutines.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/lawnchairsociety/tunnelfight/internal/combat"
	"github.com/lawnchairsociety/tunnelfight/internal/encounter"
	"github.com/lawnchairsociety/tunnelfight/internal/logger"
	"github.com/lawnchairsociety/tunnelfight/internal/rng"
	"github.com/lawnchairsociety/tunnelfight/internal/stats"
	"github.com/lawnchairsociety/tunnelfight/internal/telemetry"
)

// ErrTooManyIterations is returned when a batch asks for more battles than
// Options.MaxIterations allows.
var ErrTooManyIterations = errors.New("too many iterations")

// DefaultSamples is how many full combat logs a batch keeps by default.
const DefaultSamples = 5

// Progress is called as battles finish, at most about once per percent.
// Calls are serialized and done never decreases.
type Progress func(done, total int)

// Options controls a batch.
type Options struct {
	Seed uint64

	// Iterations overrides the encounter's own count when positive.
	Iterations int

	// MaxIterations rejects larger batches when positive.
	MaxIterations int

	// MaxRounds caps each battle; non-positive means combat.DefaultMaxRounds.
	MaxRounds int

	// Samples is how many of the first battles to keep as combat logs.
	Samples int

	// Workers above 1 runs battles in parallel on per-battle substreams.
	Workers int

	Progress Progress
}

// Batch is the outcome of Run.
type Batch struct {
	Encounter  string            `json:"encounter"`
	Seed       uint64            `json:"seed"`
	Iterations int               `json:"iterations"`
	Workers    int               `json:"workers"`
	Stats      stats.Summary     `json:"stats"`
	Samples    []stats.CombatLog `json:"sample_combats"`
	Elapsed    time.Duration     `json:"elapsed_ns"`
}

// Iterations resolves how many battles opts asks for on enc.
func Iterations(enc *encounter.Encounter, opts Options) int {
	switch {
	case opts.Iterations > 0:
		return opts.Iterations
	case enc.Iterations > 0:
		return enc.Iterations
	default:
		return encounter.DefaultIterations
	}
}

// Run simulates the encounter. It stops early with ctx's error when ctx is
// cancelled.
func Run(ctx context.Context, enc *encounter.Encounter, opts Options) (*Batch, error) {
	n := Iterations(enc, opts)
	if opts.MaxIterations > 0 && n > opts.MaxIterations {
		return nil, fmt.Errorf("%w: %d requested, limit is %d", ErrTooManyIterations, n, opts.MaxIterations)
	}
	workers := max(opts.Workers, 1)

	ctx, span := telemetry.Tracer().Start(ctx, "simulate.batch", trace.WithAttributes(
		attribute.String("encounter.name", enc.DisplayName()),
		attribute.String("encounter.initiative", enc.Initiative.Mode.String()),
		attribute.Int("batch.iterations", n),
		attribute.Int("batch.workers", workers),
		attribute.String("batch.seed", fmt.Sprint(opts.Seed)),
	))
	defer span.End()

	logger.Debug("simulation started",
		"encounter", enc.DisplayName(),
		"iterations", n,
		"workers", workers,
		"seed", opts.Seed)

	start := time.Now()
	collector := stats.NewCollector(enc, opts.Samples)
	progress := newTracker(n, opts.Progress)

	var err error
	if workers == 1 {
		err = runSequential(ctx, enc, opts, n, collector, progress)
	} else {
		err = runParallel(ctx, enc, opts, n, workers, collector, progress)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warning("simulation stopped",
			"encounter", enc.DisplayName(),
			"completed", collector.Battles(),
			"iterations", n,
			"error", err)
		return nil, err
	}

	summary := collector.Summary()
	batch := &Batch{
		Encounter:  enc.DisplayName(),
		Seed:       opts.Seed,
		Iterations: n,
		Workers:    workers,
		Stats:      summary,
		Samples:    collector.Samples(),
		Elapsed:    time.Since(start),
	}

	span.SetAttributes(
		attribute.Float64("stats.side1_win_rate", summary.Side1WinRate),
		attribute.Float64("stats.side2_win_rate", summary.Side2WinRate),
		attribute.Float64("stats.draw_rate", summary.DrawRate),
		attribute.Float64("stats.avg_rounds", summary.AvgRounds),
	)
	logger.Info("simulation complete",
		"encounter", batch.Encounter,
		"iterations", n,
		"workers", workers,
		"side1_win_rate", summary.Side1WinRate,
		"elapsed", batch.Elapsed)

	return batch, nil
}

func runSequential(ctx context.Context, enc *encounter.Encounter, opts Options, n int, c *stats.Collector, p *tracker) error {
	r := rng.New(opts.Seed)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		result := combat.Simulate(enc, opts.MaxRounds, r)
		c.Add(i, &result)
		p.tick()
	}
	return nil
}

func runParallel(ctx context.Context, enc *encounter.Encounter, opts Options, n, workers int, c *stats.Collector, p *tracker) error {
	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan int, workers*4)
	var mu sync.Mutex

	g.Go(func() error {
		defer close(jobs)
		for i := 0; i < n; i++ {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := range jobs {
				if err := gctx.Err(); err != nil {
					return err
				}
				result := combat.Simulate(enc, opts.MaxRounds, rng.Substream(opts.Seed, i))

				mu.Lock()
				c.Add(i, &result)
				mu.Unlock()
				p.tick()
			}
			return nil
		})
	}

	return g.Wait()
}

// tracker throttles progress callbacks to roughly one per percent.
type tracker struct {
	mu    sync.Mutex
	fn    Progress
	done  int
	total int
	step  int
	next  int
}

func newTracker(total int, fn Progress) *tracker {
	step := max(total/100, 1)
	return &tracker{fn: fn, total: total, step: step, next: step}
}

func (t *tracker) tick() {
	if t.fn == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done++
	if t.done >= t.next || t.done == t.total {
		t.fn(t.done, t.total)
		for t.next <= t.done {
			t.next += t.step
		}
	}
}
