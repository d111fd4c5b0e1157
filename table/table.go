// Package table loads trial-level data sets: one row per trial, one
// column per variable, delimited text with a header line.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("table")

// ErrInvalidSource is returned when a data source is neither a table,
// a file name nor the "example" token.
var ErrInvalidSource = errors.New("invalid data source")

// missing lists the cell values treated as missing data.
var missing = map[string]bool{
	"": true, "NA": true, "N/A": true, "n/a": true, "<NA>": true,
	"NaN": true, "nan": true, "-NaN": true, "-nan": true,
	"NULL": true, "null": true, "None": true, "#N/A": true,
}

// IsMissing returns true if a cell value denotes missing data.
func IsMissing(v string) bool {
	return missing[strings.TrimSpace(v)]
}

// Normalize returns a column label with underscores removed and
// lower-cased. This is how columns are addressed after loading.
func Normalize(label string) string {
	return strings.ToLower(strings.Replace(label, "_", "", -1))
}

// Table is a rectangular data set. Columns holds current labels and
// Original the labels as they were read.
type Table struct {
	Columns  []string
	Original []string
	Rows     [][]string

	index  map[string]int
	floats map[string][]float64
}

// New creates a table from labels and rows. Rows must have as many
// cells as there are labels.
func New(columns []string, rows [][]string) (*Table, error) {
	for i, r := range rows {
		if len(r) != len(columns) {
			return nil, fmt.Errorf("row %d has %d fields, header has %d", i+1, len(r), len(columns))
		}
	}
	t := &Table{
		Columns:  append([]string(nil), columns...),
		Original: append([]string(nil), columns...),
		Rows:     rows,
	}
	t.reindex()
	return t, nil
}

// Read reads a table from a file. Files ending in .csv are comma
// delimited, everything else is tab delimited.
func Read(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	comma := '\t'
	if strings.HasSuffix(strings.ToLower(path), ".csv") {
		comma = ','
	}
	t, err := Parse(f, comma)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse reads a delimited table with a header line.
func Parse(r io.Reader, comma rune) (*Table, error) {
	rd := csv.NewReader(r)
	rd.Comma = comma
	rd.LazyQuotes = comma == '\t'

	header, err := rd.Read()
	if err == io.EOF {
		return nil, errors.New("empty table")
	}
	if err != nil {
		return nil, err
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	rows, err := rd.ReadAll()
	if err != nil {
		return nil, err
	}
	return New(header, rows)
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	rows := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = append([]string(nil), r...)
	}
	c := &Table{
		Columns:  append([]string(nil), t.Columns...),
		Original: append([]string(nil), t.Original...),
		Rows:     rows,
	}
	c.reindex()
	return c
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		if _, ok := t.index[c]; !ok {
			t.index[c] = i
		}
	}
	t.floats = nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Col returns the position of a column or -1.
func (t *Table) Col(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// Has returns true if the table has a column.
func (t *Table) Has(name string) bool {
	return t.Col(name) >= 0
}

// Value returns a cell. It panics on unknown columns.
func (t *Table) Value(row int, name string) string {
	i := t.Col(name)
	if i < 0 {
		panic(fmt.Sprintf("unknown column %q", name))
	}
	return t.Rows[row][i]
}

// Floats returns the numeric values of a column. Values are parsed
// once and cached until the table changes.
func (t *Table) Floats(name string) ([]float64, error) {
	if v, ok := t.floats[name]; ok {
		return v, nil
	}
	c := t.Col(name)
	if c < 0 {
		return nil, fmt.Errorf("unknown column %q", name)
	}
	v := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		f, err := parseFloat(r[c])
		if err != nil {
			return nil, fmt.Errorf("column %s, row %d: %w", name, i+1, err)
		}
		v[i] = f
	}
	if t.floats == nil {
		t.floats = make(map[string][]float64)
	}
	t.floats[name] = v
	return v, nil
}

func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "TRUE", "True", "true":
		return 1, nil
	case "FALSE", "False", "false":
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// Normalize relabels the columns with their normalized names. The
// original labels are kept for Revert.
func (t *Table) Normalize() {
	for i, c := range t.Original {
		t.Columns[i] = Normalize(c)
	}
	t.reindex()
}

// Revert restores the original column labels.
func (t *Table) Revert() {
	copy(t.Columns, t.Original)
	t.reindex()
}

// MissingColumnsError is returned when required columns are absent.
type MissingColumnsError struct {
	Required []string
	Missing  []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("data must contain columns: %s (missing: %s)",
		strings.Join(e.Required, ", "), strings.Join(e.Missing, ", "))
}

// Require checks that every required column is present. Column names
// are compared in normalized form.
func (t *Table) Require(columns []string) error {
	var absent []string
	for _, c := range columns {
		if !t.Has(Normalize(c)) {
			absent = append(absent, c)
		}
	}
	if len(absent) > 0 {
		return &MissingColumnsError{Required: columns, Missing: absent}
	}
	return nil
}

// Dropped is a row removed for missing values. Index is the row
// position before removal.
type Dropped struct {
	Index int
	Row   []string
}

// DropMissing removes rows with missing values in any of the given
// columns and returns them.
func (t *Table) DropMissing(columns []string) []Dropped {
	cols := make([]int, 0, len(columns))
	for _, c := range columns {
		if i := t.Col(Normalize(c)); i >= 0 {
			cols = append(cols, i)
		}
	}

	var dropped []Dropped
	kept := t.Rows[:0]
	for i, r := range t.Rows {
		bad := false
		for _, c := range cols {
			if IsMissing(r[c]) {
				bad = true
				break
			}
		}
		if bad {
			dropped = append(dropped, Dropped{Index: i, Row: r})
			continue
		}
		kept = append(kept, r)
	}
	t.Rows = kept
	t.floats = nil

	if len(dropped) > 0 {
		log.Warningf("The following %d row(s) with missing values in required columns were removed:", len(dropped))
		log.Warning(strings.Join(t.Columns, "\t"))
		for _, d := range dropped {
			log.Warningf("%d\t%s", d.Index, strings.Join(d.Row, "\t"))
		}
	}
	return dropped
}

// Write writes the table with its current labels.
func (t *Table) Write(w io.Writer, comma rune) error {
	wr := csv.NewWriter(w)
	wr.Comma = comma
	if err := wr.Write(t.Columns); err != nil {
		return err
	}
	if err := wr.WriteAll(t.Rows); err != nil {
		return err
	}
	return wr.Error()
}
