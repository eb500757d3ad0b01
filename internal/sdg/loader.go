package sdg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/Sternrassler/devdata-fetch/pkg/client"
	"github.com/Sternrassler/devdata-fetch/pkg/logging"
	"github.com/Sternrassler/devdata-fetch/pkg/storage"
	"github.com/rs/zerolog"
)

// Artifact keys relative to the output root.
const (
	SeriesListKey = "SDG_Series_List.json"
	DataDir       = "Data"
	AllDataKey    = DataDir + "/UNSTAT-ALL-DATA.tsv"
)

// ErrDimensionNotFound is returned when a registered dimension is missing
// from the dimensions the API reports for a series.
var ErrDimensionNotFound = errors.New("dimension not found")

// Status is the outcome of LoadSeriesData.
type Status int

const (
	// StatusLoaded means the series file was written.
	StatusLoaded Status = iota
	// StatusSkipped means the series file already existed.
	StatusSkipped
)

func (s Status) String() string {
	if s == StatusSkipped {
		return "skipped"
	}
	return "loaded"
}

// Fetcher is the subset of *client.Client the loader needs.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*client.Response, error)
}

// Options configures a Loader.
type Options struct {
	// BaseURL is the API root, e.g. https://unstats.un.org/SDGAPI/v1/sdg.
	BaseURL string

	// Registry lists the dimensions registered series are expanded by.
	// Nil uses DefaultRegistry.
	Registry Registry

	// Countries maps M49 codes to ISO codes. Nil maps only World.
	Countries Countries

	// IgnoreCodes are dimension codes left out of expansions.
	IgnoreCodes []string
}

// Loader talks to the SDG API and writes artifacts to a store.
type Loader struct {
	fetcher     Fetcher
	store       storage.Store
	baseURL     string
	registry    Registry
	countries   Countries
	ignoreCodes map[string]bool
	logger      zerolog.Logger
}

// NewLoader creates a loader.
func NewLoader(fetcher Fetcher, store storage.Store, opts Options) *Loader {
	if opts.Registry == nil {
		opts.Registry = DefaultRegistry()
	}
	if opts.Countries == nil {
		opts.Countries = fallbackCountries()
	}
	ignore := make(map[string]bool, len(opts.IgnoreCodes))
	for _, c := range opts.IgnoreCodes {
		ignore[c] = true
	}
	return &Loader{
		fetcher:     fetcher,
		store:       store,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		registry:    opts.Registry,
		countries:   opts.Countries,
		ignoreCodes: ignore,
		logger:      logging.NewLogger("sdg"),
	}
}

func (l *Loader) seriesURL(code string, parts ...string) string {
	u := l.baseURL + "/Series/" + url.PathEscape(code)
	for _, p := range parts {
		u += "/" + url.PathEscape(p)
	}
	return u
}

// LoadSeriesList returns the series catalog from the store, fetching and
// caching it when absent or when force is set.
func (l *Loader) LoadSeriesList(ctx context.Context, force bool) ([]Series, error) {
	fetch := func(ctx context.Context) ([]byte, error) {
		resp, err := l.fetcher.Fetch(ctx, l.baseURL+"/Series/List?allreleases=false")
		if err != nil {
			return nil, err
		}
		return resp.Body, nil
	}

	var series []Series
	if force {
		l.logger.Info().Msg("Getting series list from the API")
		if err := storage.RefreshJSON(ctx, l.store, SeriesListKey, fetch, &series); err != nil {
			return nil, fmt.Errorf("series list: %w", err)
		}
	} else {
		cached, err := storage.LoadOrFetchJSON(ctx, l.store, SeriesListKey, fetch, &series)
		if err != nil {
			return nil, fmt.Errorf("series list: %w", err)
		}
		l.logger.Info().Bool("cached", cached).Msg("Loaded series list")
	}
	l.logger.Info().Int("series", len(series)).Msg("Series catalog ready")
	return series, nil
}

// FilterGoals returns the series belonging to any of goals. An empty goal
// set selects every series.
func FilterGoals(series []Series, goals []string) []Series {
	if len(goals) == 0 {
		return series
	}
	var out []Series
	for _, s := range series {
		if slices.ContainsFunc(s.Goal, func(g string) bool { return slices.Contains(goals, g) }) {
			out = append(out, s)
		}
	}
	return out
}

// Dimensions fetches the dimensions of a series.
func (l *Loader) Dimensions(ctx context.Context, code string) ([]Dimension, error) {
	resp, err := l.fetcher.Fetch(ctx, l.seriesURL(code, "Dimensions"))
	if err != nil {
		return nil, err
	}
	var dims []Dimension
	if err := resp.DecodeJSON(&dims); err != nil {
		return nil, err
	}
	return dims, nil
}

// GetDims returns the dimension ids of a series, minus those in ignore.
func (l *Loader) GetDims(ctx context.Context, code string, ignore []string) ([]string, error) {
	dims, err := l.Dimensions(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("dimensions of %s: %w", code, err)
	}
	ids := []string{}
	for _, d := range dims {
		if !slices.Contains(ignore, d.ID) {
			ids = append(ids, d.ID)
		}
	}
	return ids, nil
}

// Expand returns the variants of a series. An unregistered series is its
// own single variant. A registered one yields one variant per combination
// of its registered dimensions' codes, the last dimension varying fastest.
// When the dimensions cannot be fetched or a registered one is missing, the
// series itself is returned together with the error.
func (l *Loader) Expand(ctx context.Context, s Series) ([]Variant, error) {
	base := []Variant{{Code: s.Code, Description: s.Description}}

	names, ok := l.registry.Dims(s.Code)
	if !ok {
		return base, nil
	}

	dims, err := l.Dimensions(ctx, s.Code)
	if err != nil {
		return base, fmt.Errorf("dimensions of %s: %w", s.Code, err)
	}

	codeLists := make([][]DimensionCode, 0, len(names))
	for _, name := range names {
		i := slices.IndexFunc(dims, func(d Dimension) bool { return d.ID == name })
		if i < 0 {
			return base, fmt.Errorf("%w: %s has no %q", ErrDimensionNotFound, s.Code, name)
		}
		var codes []DimensionCode
		for _, c := range dims[i].Codes {
			c.Code = rstrip(c.Code)
			c.Description = rstrip(c.Description)
			if l.ignoreCodes[c.Code] {
				continue
			}
			codes = append(codes, c)
		}
		codeLists = append(codeLists, codes)
	}

	combos := Cartesian(codeLists)
	variants := make([]Variant, 0, len(combos))
	for _, combo := range combos {
		codes := make([]string, len(combo))
		descs := make([]string, len(combo))
		for i, c := range combo {
			codes[i] = c.Code
			descs[i] = c.Description
		}
		variants = append(variants, Variant{
			Code:        s.Code + "_" + strings.Join(codes, "_"),
			Description: s.Description + ", " + strings.Join(descs, ", "),
		})
	}
	return variants, nil
}

// LoadSeriesData writes the observations of a series for every country to
// "Data/<code>.tsv" and appends them to "Data/UNSTAT-ALL-DATA.tsv". It
// returns StatusSkipped without fetching when the series file exists.
// Country slices that fail are logged and skipped. Nothing is written when
// ctx is cancelled part way.
func (l *Loader) LoadSeriesData(ctx context.Context, code string, countries []int, includeDims []string) (Status, error) {
	key := DataDir + "/" + code + ".tsv"
	exists, err := l.store.Exists(ctx, key)
	if err != nil {
		return StatusLoaded, fmt.Errorf("check %s: %w", key, err)
	}
	if exists {
		l.logger.Debug().Str("series", code).Msg("Series file exists")
		seriesTotal.WithLabelValues("skipped").Inc()
		return StatusSkipped, nil
	}

	var buf bytes.Buffer
	rows := 0
	for _, m49 := range countries {
		if err := ctx.Err(); err != nil {
			return StatusLoaded, err
		}
		n, err := l.loadSlice(ctx, &buf, code, m49, includeDims)
		if err != nil {
			if ctx.Err() != nil {
				return StatusLoaded, ctx.Err()
			}
			l.logger.Warn().Err(err).
				Str("series", code).
				Str("country", l.countries.ISO(m49)).
				Msg("Something went wrong getting data slice")
			sliceErrorsTotal.Inc()
			continue
		}
		rows += n
	}

	storage.EnsureDir(ctx, l.store, DataDir)
	if err := l.store.Write(ctx, key, buf.Bytes()); err != nil {
		seriesTotal.WithLabelValues("failed").Inc()
		return StatusLoaded, fmt.Errorf("write %s: %w", key, err)
	}
	if err := l.appendAll(ctx, buf.Bytes()); err != nil {
		seriesTotal.WithLabelValues("failed").Inc()
		return StatusLoaded, err
	}

	rowsTotal.Add(float64(rows))
	seriesTotal.WithLabelValues("loaded").Inc()
	l.logger.Info().Str("series", code).Int("rows", rows).Msg("Series loaded")
	return StatusLoaded, nil
}

func (l *Loader) loadSlice(ctx context.Context, buf *bytes.Buffer, code string, m49 int, includeDims []string) (int, error) {
	resp, err := l.fetcher.Fetch(ctx, l.seriesURL(code, "GeoArea", strconv.Itoa(m49), "DataSlice"))
	if err != nil {
		return 0, err
	}
	var slice dataSlice
	if err := resp.DecodeJSON(&slice); err != nil {
		return 0, err
	}

	iso := l.countries.ISO(m49)
	for _, obs := range slice.Dimensions {
		point, missing := dataPoint(iso, code, obs, includeDims)
		for _, dim := range missing {
			l.logger.Warn().Str("series", code).Str("dimension", dim).Msg("Observation lacks dimension")
		}
		buf.WriteString(point.Row())
	}
	return len(slice.Dimensions), nil
}

func (l *Loader) appendAll(ctx context.Context, data []byte) (err error) {
	w, err := l.store.Append(ctx, AllDataKey)
	if err != nil {
		return fmt.Errorf("open %s: %w", AllDataKey, err)
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", AllDataKey, cerr)
		}
	}()
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("append %s: %w", AllDataKey, err)
	}
	return nil
}

func rstrip(s string) string {
	return strings.TrimRightFunc(s, unicode.IsSpace)
}
