// Package export loads the SDG artifacts into a SQL database: data rows
// into sdg_data_points and series metadata into sdg_series_metadata.
package export

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Sternrassler/devdata-fetch/internal/sdg"
	"github.com/Sternrassler/devdata-fetch/pkg/logging"
	"github.com/Sternrassler/devdata-fetch/pkg/storage"
	"github.com/rs/zerolog"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// Summary counts exported rows.
type Summary struct {
	DataPoints  int
	Metadata    int
	SkippedRows int
}

// Exporter writes SDG artifacts to a database.
type Exporter struct {
	db     *sql.DB
	driver string
	logger zerolog.Logger
}

// Open connects to the database and creates the tables when missing.
func Open(ctx context.Context, driver, dsn string) (*Exporter, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported export driver %q", driver)
	}
	if dsn == "" {
		return nil, fmt.Errorf("dsn is required")
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	e := &Exporter{db: db, driver: driver, logger: logging.NewLogger("export")}
	if err := e.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return e, nil
}

// DB exposes the underlying sql.DB.
func (e *Exporter) DB() *sql.DB { return e.db }

// Close closes the database.
func (e *Exporter) Close() error { return e.db.Close() }

func (e *Exporter) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sdg_data_points (
			country_iso TEXT NOT NULL,
			series_code TEXT NOT NULL,
			time_period TEXT NOT NULL,
			value TEXT NOT NULL,
			extra_dims TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sdg_series_metadata (
			code TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			source TEXT NOT NULL,
			metadata TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := e.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// placeholders returns n bind parameters in the driver's syntax.
func (e *Exporter) placeholders(n int) string {
	ph := make([]string, n)
	for i := range ph {
		if e.driver == DriverPostgres {
			ph[i] = fmt.Sprintf("$%d", i+1)
		} else {
			ph[i] = "?"
		}
	}
	return strings.Join(ph, ", ")
}

// ExportData replaces the table contents with the rows read from r. Rows
// that do not parse are logged and counted as skipped.
func (e *Exporter) ExportData(ctx context.Context, r io.Reader) (loaded, skipped int, retErr error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sdg_data_points`); err != nil {
		return 0, 0, fmt.Errorf("clear data points: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO sdg_data_points (country_iso, series_code, time_period, value, extra_dims) VALUES (`+e.placeholders(5)+`)`)
	if err != nil {
		return 0, 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4<<20)
	line := 0
	for sc.Scan() {
		line++
		if strings.TrimSpace(sc.Text()) == "" {
			continue
		}
		p, err := sdg.ParseRow(sc.Text())
		if err != nil {
			e.logger.Warn().Err(err).Int("line", line).Msg("Skipping data row")
			skipped++
			continue
		}
		if _, err := stmt.ExecContext(ctx, p.CountryISO, p.SeriesCode, p.TimePeriod, p.Value, p.ExtraDims); err != nil {
			return loaded, skipped, fmt.Errorf("insert line %d: %w", line, err)
		}
		loaded++
	}
	if err := sc.Err(); err != nil {
		return loaded, skipped, fmt.Errorf("read data rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return loaded, skipped, fmt.Errorf("commit: %w", err)
	}
	return loaded, skipped, nil
}

// ExportMetadata upserts the metadata entries by code.
func (e *Exporter) ExportMetadata(ctx context.Context, entries []sdg.MetadataEntry) (retErr error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO sdg_series_metadata (code, name, source, metadata) VALUES (`+e.placeholders(4)+`)
		ON CONFLICT (code) DO UPDATE SET name = excluded.name, source = excluded.source, metadata = excluded.metadata`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, m := range entries {
		if _, err := stmt.ExecContext(ctx, m.Code, m.Name, m.Source, m.Metadata); err != nil {
			return fmt.Errorf("upsert %s: %w", m.Code, err)
		}
	}
	return tx.Commit()
}

// Run exports the combined data file and the metadata list found in store.
// A missing artifact is skipped with a warning.
func (e *Exporter) Run(ctx context.Context, store storage.Store) (Summary, error) {
	var sum Summary

	data, err := store.Read(ctx, sdg.AllDataKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		e.logger.Warn().Str("file", sdg.AllDataKey).Msg("No data file to export")
	case err != nil:
		return sum, err
	default:
		loaded, skipped, err := e.ExportData(ctx, bytes.NewReader(data))
		if err != nil {
			return sum, err
		}
		sum.DataPoints, sum.SkippedRows = loaded, skipped
	}

	meta, err := store.Read(ctx, sdg.MetadataJSONKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		e.logger.Warn().Str("file", sdg.MetadataJSONKey).Msg("No metadata file to export")
	case err != nil:
		return sum, err
	default:
		var entries []sdg.MetadataEntry
		if err := json.Unmarshal(meta, &entries); err != nil {
			return sum, fmt.Errorf("decode %s: %w", sdg.MetadataJSONKey, err)
		}
		if err := e.ExportMetadata(ctx, entries); err != nil {
			return sum, err
		}
		sum.Metadata = len(entries)
	}

	e.logger.Info().
		Str("driver", e.driver).
		Int("data_points", sum.DataPoints).
		Int("metadata", sum.Metadata).
		Int("skipped_rows", sum.SkippedRows).
		Msg("Export finished")
	return sum, nil
}
