package stan

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"bitbucket.org/ccslab/hbdm/sampler"
)

// ReadCSV reads a Stan output file: '#' comment lines, a header and
// one row of numbers per draw.
func ReadCSV(r io.Reader) (header []string, rows [][]float64, err error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	header, err = cr.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("empty output")
	}
	if err != nil {
		return nil, nil, err
	}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		if len(rec) != len(header) {
			return nil, nil, fmt.Errorf("row %d has %d values, header has %d", len(rows)+1, len(rec), len(header))
		}
		row := make([]float64, len(rec))
		for i, v := range rec {
			if row[i], err = strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil {
				return nil, nil, fmt.Errorf("row %d column %s: %w", len(rows)+1, header[i], err)
			}
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

// column is a flattened element of a quantity, e.g. y_pred.2.3.
type column struct {
	name string
	idx  []int
}

func parseColumn(h string) (column, error) {
	parts := strings.Split(h, ".")
	c := column{name: parts[0]}
	for _, p := range parts[1:] {
		i, err := strconv.Atoi(p)
		if err != nil || i < 1 {
			return c, fmt.Errorf("bad column name %q", h)
		}
		c.idx = append(c.idx, i-1)
	}
	return c, nil
}

// ToDraws converts output rows to draws. Sampler diagnostics (names
// ending in "__") are skipped; nil pars keeps all other quantities.
func ToDraws(header []string, rows [][]float64, pars []string) (sampler.Draws, error) {
	keep := make(map[string]bool, len(pars))
	for _, p := range pars {
		keep[p] = true
	}
	cols := make([]column, len(header))
	shapes := make(map[string][]int)
	for i, h := range header {
		c, err := parseColumn(h)
		if err != nil {
			return nil, err
		}
		cols[i] = c
		if strings.HasSuffix(c.name, "__") || (pars != nil && !keep[c.name]) {
			continue
		}
		dims, ok := shapes[c.name]
		if ok && len(dims) != len(c.idx) {
			return nil, fmt.Errorf("inconsistent dimensions of %s", c.name)
		}
		if !ok {
			dims = make([]int, len(c.idx))
		}
		for k, j := range c.idx {
			if j+1 > dims[k] {
				dims[k] = j + 1
			}
		}
		shapes[c.name] = dims
	}
	for _, p := range pars {
		if _, ok := shapes[p]; !ok {
			return nil, fmt.Errorf("no output for %s", p)
		}
	}

	d := make(sampler.Draws, len(shapes))
	for name, dims := range shapes {
		d[name] = sampler.NewArray(append([]int{len(rows)}, dims...)...)
	}
	for i, c := range cols {
		a, ok := d[c.name]
		if !ok {
			continue
		}
		for k, row := range rows {
			if err := a.Set(k, row[i], c.idx...); err != nil {
				return nil, err
			}
		}
	}
	return d, nil
}
