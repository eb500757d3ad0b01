package sdg

import (
	"context"
	"fmt"

	"github.com/Sternrassler/devdata-fetch/pkg/logging"
)

// RunOptions selects what a run loads.
type RunOptions struct {
	// Goals restricts data loading to these goals. Empty loads every goal.
	Goals []string

	// Countries are the M49 codes whose data slices are loaded.
	Countries []int

	// ForceList refetches the series catalog.
	ForceList bool
}

// RunSummary counts what a run did.
type RunSummary struct {
	Series   int
	Selected int
	Loaded   int
	Skipped  int
	Failed   int
	Variants int
}

// Run loads the catalog, the data of the selected series and writes the
// metadata of every series. A failing catalog is fatal; a failing series is
// logged and counted.
func (l *Loader) Run(ctx context.Context, opts RunOptions) (RunSummary, error) {
	var sum RunSummary

	series, err := l.LoadSeriesList(ctx, opts.ForceList)
	if err != nil {
		return sum, err
	}
	sum.Series = len(series)

	selected := FilterGoals(series, opts.Goals)
	sum.Selected = len(selected)

	for i, s := range selected {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		dims, _ := l.registry.Dims(s.Code)
		l.logger.Info().Str("series", s.Code).Strs("dims", dims).Msg("Loading series")

		status, err := l.LoadSeriesData(ctx, s.Code, opts.Countries, dims)
		switch {
		case err != nil && ctx.Err() != nil:
			return sum, ctx.Err()
		case err != nil:
			l.logger.Warn().Err(err).Str("series", s.Code).Msg("Series failed")
			sum.Failed++
		case status == StatusSkipped:
			sum.Skipped++
		default:
			sum.Loaded++
		}
		l.logger.Info().Str("status", status.String()).Msg(logging.ProgressBar(i+1, len(selected), 33))
	}

	entries, err := l.BuildMetadata(ctx, series)
	if err != nil {
		return sum, err
	}
	sum.Variants = len(entries)
	if err := WriteMetadata(ctx, l.store, entries); err != nil {
		return sum, fmt.Errorf("write metadata: %w", err)
	}

	l.logger.Info().
		Int("series", sum.Series).
		Int("selected", sum.Selected).
		Int("loaded", sum.Loaded).
		Int("skipped", sum.Skipped).
		Int("failed", sum.Failed).
		Int("variants", sum.Variants).
		Msg("SDG run finished")
	return sum, nil
}
