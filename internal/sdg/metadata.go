package sdg

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Sternrassler/devdata-fetch/pkg/logging"
	"github.com/Sternrassler/devdata-fetch/pkg/storage"
)

// Metadata artifacts written at the output root.
const (
	MetadataJSONKey = "UNSTAT_series_list.json"
	MetadataCSVKey  = "Series.Metadata.CSV"
)

const (
	metadataSource  = "UNSTAT Global SDG Indicators Database"
	metadataLinkFmt = "https://unstats.un.org/wiki/display/SDGeHandbook/Indicator+"
)

// BuildMetadata returns one entry per variant of every series. A series
// whose expansion fails is described by its base variant.
func (l *Loader) BuildMetadata(ctx context.Context, series []Series) ([]MetadataEntry, error) {
	entries := []MetadataEntry{}
	for i, s := range series {
		if err := ctx.Err(); err != nil {
			return entries, err
		}

		variants, err := l.Expand(ctx, s)
		if err != nil {
			if ctx.Err() != nil {
				return entries, ctx.Err()
			}
			l.logger.Warn().Err(err).Str("series", s.Code).Msg("Using series without disaggregation")
		}

		link := metadataLinkFmt
		if len(s.Indicator) > 0 {
			link += s.Indicator[0]
		}
		for _, v := range variants {
			entries = append(entries, MetadataEntry{
				Code:     v.Code,
				Name:     v.Description,
				Source:   metadataSource,
				Metadata: link,
			})
		}
		l.logger.Debug().Str("series", s.Code).Msg(logging.ProgressBar(i+1, len(series), 15))
	}
	return entries, nil
}

// WriteMetadata writes the entries as JSON and as a CSV with every field
// quoted.
func WriteMetadata(ctx context.Context, store storage.Store, entries []MetadataEntry) error {
	jsonErr := storage.WriteJSON(ctx, store, MetadataJSONKey, entries)

	var csv strings.Builder
	csv.WriteString(`"code","name","source","metadata"` + "\n")
	for _, e := range entries {
		fmt.Fprintf(&csv, "%s,%s,%s,%s\n",
			quoteCSV(e.Code), quoteCSV(e.Name), quoteCSV(e.Source), quoteCSV(e.Metadata))
	}
	var csvErr error
	if err := store.Write(ctx, MetadataCSVKey, []byte(csv.String())); err != nil {
		csvErr = fmt.Errorf("write %s: %w", MetadataCSVKey, err)
	}
	return errors.Join(jsonErr, csvErr)
}

// quoteCSV always quotes, doubling embedded quotes.
func quoteCSV(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
