// Package csv reads delimited source files into the engine's column frame.
// It streams through encoding/csv, soft-skips malformed rows with a counter
// instead of aborting multi-GB inputs, and infers a single type per column
// (int64, float64, or string) the way downstream annotation tooling expects.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"geonorm/internal/frame"
)

// Options configures the CSV parser behavior. All fields are optional; sensible
// defaults are applied when a field is zero.
type Options struct {
	// HasHeader indicates whether the first row contains column headers.
	HasHeader bool

	// Comma specifies the field delimiter. When zero, ',' is used.
	Comma rune

	// TrimSpace trims leading/trailing ASCII spaces from each field value.
	TrimSpace bool

	// HeaderMap maps source header names to canonical keys. Only applies
	// when HasHeader is true. Unmapped headers pass through unchanged, so
	// they keep matching the annotation schema's column names.
	HeaderMap map[string]string

	// RawStrings disables column type inference; every non-empty cell stays
	// a string.
	RawStrings bool
}

// Parser parses CSV input according to Options. It is safe to reuse across
// inputs, but Parser itself is not concurrency-safe.
type Parser struct{ opt Options }

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser { return &Parser{opt: opt} }

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// Parse consumes CSV records from r and returns the assembled frame along
// with the number of rows skipped due to parse errors or field-count
// mismatches. Empty cells become nil. Unless RawStrings is set, each column
// is then narrowed to int64 or float64 when every non-empty cell parses as
// such.
func (p *Parser) Parse(r io.Reader) (*frame.Frame, int, error) {
	cr := csv.NewReader(r)
	if p.opt.Comma != 0 {
		cr.Comma = p.opt.Comma
	}
	cr.FieldsPerRecord = -1

	var headers []string
	if p.opt.HasHeader {
		h, err := cr.Read()
		if err != nil {
			return nil, 0, fmt.Errorf("read csv header: %w", err)
		}
		headers = normalizeHeaders(h, p.opt)
	}

	var rows [][]string
	var skipped int
	const logLimit = 400
	for line := 1; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if skipped < logLimit {
				log.Printf("Skipping row %d: %v", line, err)
			}
			skipped++
			continue
		}
		if headers == nil {
			headers = make([]string, len(row))
			for i := range headers {
				headers[i] = fmt.Sprintf("col_%d", i)
			}
		}
		if len(row) != len(headers) {
			if skipped < logLimit {
				log.Printf("Skipping row %d: incorrect number of fields (expected %d, got %d)", line, len(headers), len(row))
			}
			skipped++
			continue
		}
		if p.opt.TrimSpace {
			for i := range row {
				row[i] = strings.TrimSpace(row[i])
			}
		}
		rows = append(rows, row)
	}

	f := frame.New(len(rows))
	for i, name := range headers {
		col := make([]any, len(rows))
		for j, row := range rows {
			if row[i] == "" {
				col[j] = nil
			} else {
				col[j] = row[i]
			}
		}
		if !p.opt.RawStrings {
			narrowColumn(col)
		}
		if err := f.Set(name, col); err != nil {
			return nil, 0, err
		}
	}
	return f, skipped, nil
}

// narrowColumn rewrites a column of strings to int64 or float64 in place
// when every non-nil cell parses cleanly. Mixed columns stay strings.
func narrowColumn(col []any) {
	allInt, allFloat := true, true
	empty := true
	for _, v := range col {
		s, ok := v.(string)
		if !ok {
			continue
		}
		empty = false
		if _, err := strconv.ParseInt(s, 10, 64); err != nil {
			allInt = false
		}
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			allFloat = false
			break
		}
	}
	if empty || (!allInt && !allFloat) {
		return
	}
	for i, v := range col {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if allInt {
			n, _ := strconv.ParseInt(s, 10, 64)
			col[i] = n
		} else {
			fv, _ := strconv.ParseFloat(s, 64)
			col[i] = fv
		}
	}
}

// normalizeHeaders produces canonical header keys using HeaderMap when
// provided. It also strips a UTF-8 BOM from the first cell if present.
func normalizeHeaders(h []string, opt Options) []string {
	res := make([]string, len(h))
	for i, col := range h {
		c := strings.TrimSpace(col)
		if i == 0 {
			c = strings.TrimPrefix(c, utf8BOM)
		}
		if opt.HeaderMap != nil {
			if m, ok := opt.HeaderMap[c]; ok {
				res[i] = m
				continue
			}
		}
		res[i] = c
	}
	return res
}
