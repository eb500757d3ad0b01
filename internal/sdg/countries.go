package sdg

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// UnknownISO is reported for M49 codes missing from the table.
const UnknownISO = "UNKNOWN"

// Countries maps M49 area codes to ISO codes.
type Countries map[int]string

// fallbackCountries is used when no table file is present.
func fallbackCountries() Countries {
	return Countries{1: "World"}
}

// ISO returns the ISO code of an M49 code.
func (c Countries) ISO(m49 int) string {
	if iso, ok := c[m49]; ok {
		return iso
	}
	return UnknownISO
}

// LoadCountries reads the two-column tab-separated M49 to ISO table at
// path. A missing file yields {1: "World"}.
func LoadCountries(path string, logger zerolog.Logger) (Countries, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn().Str("file", path).Msg("No M49 table, only World is mapped")
		return fallbackCountries(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open M49 table: %w", err)
	}
	defer f.Close()

	countries, err := ParseCountries(f, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logger.Info().Str("file", path).Int("countries", len(countries)).Msg("Loaded M49 table")
	return countries, nil
}

// ParseCountries parses "<m49>\t<iso>" lines. Blank lines are ignored and
// malformed lines are logged and skipped.
func ParseCountries(r io.Reader, logger zerolog.Logger) (Countries, error) {
	countries := Countries{}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		cols := strings.Split(text, "\t")
		if len(cols) < 2 {
			logger.Warn().Int("line", line).Msg("M49 line has no ISO column")
			continue
		}
		code, err := strconv.Atoi(strings.TrimSpace(cols[0]))
		if err != nil {
			logger.Warn().Int("line", line).Str("code", cols[0]).Msg("M49 code is not a number")
			continue
		}
		countries[code] = strings.TrimSpace(cols[1])
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return countries, nil
}
