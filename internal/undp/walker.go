package undp

import (
	"context"
	"fmt"
	"net/url"

	"github.com/Sternrassler/devdata-fetch/pkg/client"
	"github.com/Sternrassler/devdata-fetch/pkg/logging"
	"github.com/Sternrassler/devdata-fetch/pkg/storage"
	"github.com/rs/zerolog"
)

// IndexKey is where the operating-unit index is cached.
const IndexKey = "operating-unit-index.json"

// Fetcher is the subset of *client.Client the walkers need.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*client.Response, error)
}

// Walker traverses operating units and their projects, caching each JSON
// resource under "<unit>/".
type Walker struct {
	fetcher Fetcher
	store   storage.Store
	baseURL string
	logger  zerolog.Logger
}

// NewWalker creates a walker for the API rooted at baseURL
// (e.g. https://api.open.undp.org/api).
func NewWalker(fetcher Fetcher, store storage.Store, baseURL string) *Walker {
	return &Walker{
		fetcher: fetcher,
		store:   store,
		baseURL: baseURL,
		logger:  logging.NewLogger("undp"),
	}
}

func (w *Walker) fetchBody(rawURL string) storage.FetchFunc {
	return func(ctx context.Context) ([]byte, error) {
		resp, err := w.fetcher.Fetch(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		return resp.Body, nil
	}
}

// LoadIndex returns the operating-unit index, from the store when cached.
func (w *Walker) LoadIndex(ctx context.Context) ([]OperatingUnit, error) {
	var units []OperatingUnit
	cached, err := storage.LoadOrFetchJSON(ctx, w.store, IndexKey,
		w.fetchBody(w.baseURL+"/units/operating-unit-index.json"), &units)
	if err != nil {
		return nil, fmt.Errorf("operating unit index: %w", err)
	}
	w.logger.Info().Bool("cached", cached).Int("units", len(units)).Msg("Loaded operating unit index")
	return units, nil
}

func (w *Walker) loadUnit(ctx context.Context, unitID string) (*UnitProjects, error) {
	var unit UnitProjects
	key := unitID + "/" + unitID + ".json"
	if _, err := storage.LoadOrFetchJSON(ctx, w.store, key,
		w.fetchBody(w.baseURL+"/units/"+url.PathEscape(unitID)+".json"), &unit); err != nil {
		return nil, fmt.Errorf("operating unit %s: %w", unitID, err)
	}
	return &unit, nil
}

func (w *Walker) loadProject(ctx context.Context, unitID, projectID string) (*Project, error) {
	var project Project
	key := unitID + "/" + projectID + ".json"
	if _, err := storage.LoadOrFetchJSON(ctx, w.store, key,
		w.fetchBody(w.baseURL+"/projects/"+url.PathEscape(projectID)+".json"), &project); err != nil {
		return nil, fmt.Errorf("project %s: %w", projectID, err)
	}
	return &project, nil
}

type visitFunc func(ctx context.Context, unit OperatingUnit, ref ProjectRef) error

// walk visits every project of every unit the cursor lets through. Unit and
// project failures are logged and skipped; only cancellation stops the walk.
// It returns the cursor's error when a resume target was never reached.
func (w *Walker) walk(ctx context.Context, units []OperatingUnit, cursor *Cursor, visit visitFunc) error {
	if cursor == nil {
		cursor = NewCursor("", "")
	}

	for _, unit := range units {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !cursor.VisitUnit(unit.ID) {
			w.logger.Debug().Str("unit", unit.ID).Str("name", unit.Name).Msg("Skipping operating unit")
			countItem("unit", "skipped")
			continue
		}

		w.logger.Info().Str("unit", unit.ID).Str("name", unit.Name).Msg("Handling operating unit")
		storage.EnsureDir(ctx, w.store, unit.ID)

		projects, err := w.loadUnit(ctx, unit.ID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Warn().Err(err).Str("unit", unit.ID).Msg("Skipping operating unit")
			countItem("unit", "failed")
			continue
		}
		countItem("unit", "processed")

		for _, ref := range projects.Projects {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !cursor.VisitProject(string(ref.ID)) {
				w.logger.Debug().Str("unit", unit.ID).Str("project", string(ref.ID)).Msg("Skipping project")
				countItem("project", "skipped")
				continue
			}
			if err := visit(ctx, unit, ref); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.logger.Warn().Err(err).Str("unit", unit.ID).Str("project", string(ref.ID)).Msg("Project failed")
				countItem("project", "failed")
				continue
			}
			countItem("project", "processed")
		}
	}

	return cursor.Err()
}
