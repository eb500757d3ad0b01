// Package undp walks the UNDP open project data API: operating units,
// their projects, project documents and output results. Every JSON
// resource is cached in a directory tree mirroring the hierarchy.
package undp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ID is an identifier the API sends either as a string or as a number.
type ID string

// UnmarshalJSON accepts strings, numbers and null.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*id = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("id: %w", err)
		}
		*id = ID(n.String())
	}
	return nil
}

// OperatingUnit is one entry of the operating-unit index.
type OperatingUnit struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProjectRef is a project as listed in an operating unit.
type ProjectRef struct {
	ID    ID     `json:"id"`
	Title string `json:"title"`
}

// UnitProjects is the operating-unit resource.
type UnitProjects struct {
	Projects []ProjectRef `json:"projects"`
}

// Output is a project output.
type Output struct {
	OutputID ID `json:"output_id"`
}

// Project is the part of the project resource the walkers use.
type Project struct {
	Outputs []Output `json:"outputs"`

	// DocumentName holds three parallel lists: titles, urls and formats.
	DocumentName []json.RawMessage `json:"document_name"`
}

// Document is one project document.
type Document struct {
	Title  string
	URL    string
	Format string
}

// Documents pairs the parallel document lists. When the lists differ in
// length only the common prefix is returned and truncated is true.
func (p *Project) Documents() (docs []Document, truncated bool) {
	if len(p.DocumentName) == 0 {
		return nil, false
	}
	lists := make([][]string, 3)
	for i := 0; i < len(lists) && i < len(p.DocumentName); i++ {
		lists[i] = stringList(p.DocumentName[i])
	}
	titles, urls, formats := lists[0], lists[1], lists[2]
	if len(titles) == 0 {
		return nil, false
	}

	n := min(len(titles), len(urls))
	if len(p.DocumentName) >= 3 {
		n = min(n, len(formats))
	}
	truncated = n != len(titles) || n != len(urls) || (len(p.DocumentName) >= 3 && n != len(formats))

	docs = make([]Document, 0, n)
	for i := 0; i < n; i++ {
		d := Document{Title: titles[i], URL: urls[i]}
		if i < len(formats) {
			d.Format = formats[i]
		}
		docs = append(docs, d)
	}
	return docs, truncated
}

// stringList decodes a JSON array leniently: non-string items are
// formatted, anything that is not an array yields nil.
func stringList(raw json.RawMessage) []string {
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]string, len(items))
	for i, item := range items {
		switch v := item.(type) {
		case nil:
			out[i] = ""
		case string:
			out[i] = v
		default:
			out[i] = fmt.Sprint(v)
		}
	}
	return out
}

// IndicatorEntry is derived from one result record.
type IndicatorEntry struct {
	OperatingUnitID string   `json:"operating_unit_id"`
	Project         ID       `json:"project"`
	Output          ID       `json:"output"`
	IndicatorTitle  string   `json:"indicator_title"`
	Indicators      []string `json:"indicators"`
}

// resultFields are the record fields an IndicatorEntry is built from.
type resultFields struct {
	IndicatorDescription *string `json:"indicator_description"`
	IndicatorTitle       *string `json:"indicator_title"`
	Project              ID      `json:"project"`
	Output               ID      `json:"output"`
}

// indicatorEntry derives the entry for a raw result record.
func indicatorEntry(unitID string, record json.RawMessage) (IndicatorEntry, error) {
	var f resultFields
	if err := json.Unmarshal(record, &f); err != nil {
		return IndicatorEntry{}, fmt.Errorf("decode result record: %w", err)
	}
	entry := IndicatorEntry{
		OperatingUnitID: unitID,
		Project:         f.Project,
		Output:          f.Output,
		Indicators:      []string{},
	}
	if f.IndicatorTitle != nil {
		entry.IndicatorTitle = *f.IndicatorTitle
	}
	if f.IndicatorDescription != nil && *f.IndicatorDescription != "" {
		entry.Indicators = strings.Split(*f.IndicatorDescription, "\n")
	}
	return entry, nil
}
