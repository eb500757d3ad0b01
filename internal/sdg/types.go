// Package sdg downloads series from the UN SDG statistical API. It caches
// the series catalog, loads per-country data slices into tab-separated
// files and expands disaggregated series into one variant per combination
// of dimension codes.
package sdg

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Series is one entry of the series catalog.
type Series struct {
	Code        string   `json:"code"`
	Description string   `json:"description"`
	Goal        []string `json:"goal"`
	Indicator   []string `json:"indicator"`
}

// Dimension is a disaggregation dimension of a series.
type Dimension struct {
	ID    string          `json:"id"`
	Codes []DimensionCode `json:"codes"`
}

// DimensionCode is one value of a dimension.
type DimensionCode struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Variant is a series narrowed to one combination of dimension codes.
type Variant struct {
	Code        string
	Description string
}

// MetadataEntry describes one variant in the metadata outputs.
type MetadataEntry struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Source   string `json:"source"`
	Metadata string `json:"metadata"`
}

// DataPoint is one row of a series data file.
type DataPoint struct {
	CountryISO string
	SeriesCode string
	TimePeriod string
	Value      string
	// ExtraDims lists the remaining observation fields as a tuple literal.
	ExtraDims string
}

// field is one key of an observation, in response order.
type field struct {
	Key   string
	Value json.RawMessage
}

// observation is a data slice entry decoded with its key order intact.
type observation []field

// UnmarshalJSON decodes a JSON object keeping the order of its keys.
func (o *observation) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("observation: expected object, got %v", tok)
	}

	var fields observation
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("observation: unexpected key %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("observation %q: %w", key, err)
		}
		fields = append(fields, field{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*o = fields
	return nil
}

// get returns the value of key.
func (o observation) get(key string) (json.RawMessage, bool) {
	for _, f := range o {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// dataSlice is the DataSlice response.
type dataSlice struct {
	Dimensions []observation `json:"dimensions"`
}
