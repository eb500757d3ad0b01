package undp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/Sternrassler/devdata-fetch/pkg/logging"
	"github.com/Sternrassler/devdata-fetch/pkg/storage"
	"github.com/rs/zerolog"
)

// Artifacts written by the results job at the output root.
const (
	BigResultsKey = "big-results-file.json"
	IndicatorsKey = "indicators-list.json"
	RunLogKey     = "grab-project-results.log"
)

// ResultsSummary counts what a results run did.
type ResultsSummary struct {
	Projects            int
	ProjectsWithResults int
	Outputs             int
	OutputsWithResults  int
	Records             int
}

// resultsRun threads the accumulators through one walk.
type resultsRun struct {
	records    []json.RawMessage
	indicators []IndicatorEntry
	summary    ResultsSummary
	runLog     zerolog.Logger
}

// event writes a line to the process log and the run log.
func (w *Walker) event(run *resultsRun, format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	w.logger.Info().Msg(line)
	run.runLog.Info().Msg(line)
}

// CollectResults gathers the results of every project output. Each project
// with results gets "<unit>/results <project>.json"; all records and the
// derived indicator entries are written once at the end, also after an
// interrupted walk. Failing to get the index is fatal.
func (w *Walker) CollectResults(ctx context.Context, cursor *Cursor) (ResultsSummary, error) {
	// The run log outlives a cancelled walk.
	logFile, err := w.store.Create(context.WithoutCancel(ctx), RunLogKey)
	if err != nil {
		return ResultsSummary{}, fmt.Errorf("open run log: %w", err)
	}
	defer logFile.Close()

	run := &resultsRun{
		records:    []json.RawMessage{},
		indicators: []IndicatorEntry{},
		runLog:     logging.NewRunLog(logFile),
	}

	units, err := w.LoadIndex(ctx)
	if err != nil {
		run.runLog.Error().Err(err).Msg("Cannot get operating unit index")
		return run.summary, err
	}

	walkErr := w.walk(ctx, units, cursor, func(ctx context.Context, unit OperatingUnit, ref ProjectRef) error {
		return w.collectProject(ctx, unit.ID, ref, run)
	})

	writeCtx := context.WithoutCancel(ctx)
	var writeErr error
	if err := storage.WriteJSON(writeCtx, w.store, BigResultsKey, run.records); err != nil {
		writeErr = errors.Join(writeErr, err)
	}
	if err := storage.WriteJSON(writeCtx, w.store, IndicatorsKey, run.indicators); err != nil {
		writeErr = errors.Join(writeErr, err)
	}

	w.event(run, "Processed %d outputs, identified %d with results",
		run.summary.Outputs, run.summary.OutputsWithResults)
	if walkErr != nil {
		run.runLog.Error().Err(walkErr).Msg("Run ended early")
	}

	return run.summary, errors.Join(walkErr, writeErr)
}

func (w *Walker) collectProject(ctx context.Context, unitID string, ref ProjectRef, run *resultsRun) error {
	projectID := string(ref.ID)
	w.logger.Info().Str("unit", unitID).Str("project", projectID).Str("title", ref.Title).Msg("Project")

	project, err := w.loadProject(ctx, unitID, projectID)
	if err != nil {
		return err
	}
	run.summary.Projects++

	projectRecords := []json.RawMessage{}
	for _, out := range project.Outputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		run.summary.Outputs++

		records, reason := w.outputResults(ctx, out.OutputID)
		if reason != "" {
			w.event(run, "x %s - %s", out.OutputID, reason)
			countItem("output", "no_results")
			continue
		}
		if len(records) > 0 {
			run.summary.OutputsWithResults++
			countItem("output", "results")
		} else {
			countItem("output", "empty")
		}

		for _, record := range records {
			run.records = append(run.records, record)
			projectRecords = append(projectRecords, record)
			run.summary.Records++

			entry, err := indicatorEntry(unitID, record)
			if err != nil {
				w.logger.Warn().Err(err).Str("output", string(out.OutputID)).Msg("Skipping indicator entry")
				continue
			}
			run.indicators = append(run.indicators, entry)
		}
	}

	if len(projectRecords) == 0 {
		w.event(run, "x %s - Empty results", projectID)
		return nil
	}

	key := unitID + "/results " + projectID + ".json"
	if err := storage.WriteJSON(ctx, w.store, key, projectRecords); err != nil {
		return err
	}
	run.summary.ProjectsWithResults++
	w.event(run, "V %s - Got results", projectID)
	return nil
}

// outputResults fetches the result records of an output. A non-empty reason
// means the output has no usable results.
func (w *Walker) outputResults(ctx context.Context, outputID ID) ([]json.RawMessage, string) {
	rawURL := w.baseURL + "/v1/output/" + url.PathEscape(string(outputID)) + "/results"
	resp, err := w.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		w.logger.Debug().Err(err).Str("output", string(outputID)).Msg("Results request failed")
		return nil, "No results"
	}

	var body struct {
		Data *[]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil || body.Data == nil {
		return nil, "No successful results"
	}
	return *body.Data, ""
}
