// Package normalize turns raw upstream CSV bytes into role-keyed rows,
// independent of the header names and text encoding a given year uses.
package normalize

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"taiwan-calendar/internal/model"
)

// Normalizer resolves source layouts against an injected Registry.
type Normalizer struct {
	registry *Registry
}

// New creates a Normalizer. A nil registry uses DefaultRegistry.
func New(registry *Registry) *Normalizer {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Normalizer{registry: registry}
}

// Table is a decoded source whose columns have been resolved to roles.
type Table struct {
	Schema    SourceSchema
	Encoding  string
	Header    []string
	Signature string

	text    string
	columns map[model.Role]int
}

// Normalize decodes data and resolves its header. yearHint selects a pinned
// schema when the registry has one for that year.
func (n *Normalizer) Normalize(data []byte, yearHint int) (*Table, error) {
	pinned, hasPin := n.registry.ForYear(yearHint)

	candidates := n.registry.Encodings
	if hasPin && len(pinned.Encodings) > 0 {
		candidates = pinned.Encodings
	}
	text, enc, err := Decode(data, candidates)
	if err != nil {
		return nil, err
	}

	header, err := newReader(text).Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &SchemaResolutionError{Missing: requiredRoles}
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}

	var (
		schema SourceSchema
		cols   map[model.Role]int
	)
	if hasPin {
		schema, cols = pinned, pinned.resolve(header)
		if missing := missingRoles(cols); len(missing) > 0 {
			return nil, &SchemaResolutionError{
				Signature: Signature(header),
				Header:    header,
				Missing:   missing,
				Schema:    pinned.Name,
			}
		}
	} else {
		schema, cols, err = n.registry.Match(header)
		if err != nil {
			return nil, err
		}
	}

	return &Table{
		Schema:    schema,
		Encoding:  enc,
		Header:    header,
		Signature: Signature(header),
		text:      text,
		columns:   cols,
	}, nil
}

// Rows yields one RawRow per data row in source order. Rows whose cells are
// all blank are skipped. Each call starts a fresh pass over the source.
func (t *Table) Rows() iter.Seq2[model.RawRow, error] {
	return func(yield func(model.RawRow, error) bool) {
		r := newReader(t.text)
		if _, err := r.Read(); err != nil {
			return
		}
		for {
			rec, err := r.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(model.RawRow{}, fmt.Errorf("reading row: %w", err))
				return
			}
			if blank(rec) {
				continue
			}
			line, _ := r.FieldPos(0)

			values := make(map[model.Role]string, len(t.columns))
			for role, i := range t.columns {
				if i < len(rec) {
					values[role] = rec[i]
				} else {
					values[role] = ""
				}
			}
			if !yield(model.RawRow{Line: line, Values: values}, nil) {
				return
			}
		}
	}
}

// Flags returns the schema's flag mapping, or fallback when the schema does
// not pin one.
func (t *Table) Flags(fallback model.FlagMapping) model.FlagMapping {
	if len(t.Schema.Flags) == 0 {
		return fallback
	}
	return t.Schema.Flags
}

// Collect drains Rows into a slice, stopping at the first error.
func (t *Table) Collect() ([]model.RawRow, error) {
	var rows []model.RawRow
	for row, err := range t.Rows() {
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func newReader(text string) *csv.Reader {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	return r
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
