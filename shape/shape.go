// Package shape groups trial rows by subject (and block) and infers the
// dimensions preprocessors pad their arrays to.
package shape

import (
	"errors"
	"fmt"

	"github.com/op/go-logging"

	"bitbucket.org/ccslab/hbdm/modelspec"
	"bitbucket.org/ccslab/hbdm/table"
)

var log = logging.MustGetLogger("shape")

// Grouping columns, normalized.
const (
	SubjectColumn = "subjid"
	BlockColumn   = "block"
)

var (
	// ErrMultipleSubjects is returned when a single-subject model is
	// given data of more than one subject.
	ErrMultipleSubjects = errors.New("more than 1 unique subjects exist in data, while using 'single' type model")
	// ErrNoData is returned for tables without rows.
	ErrNoData = errors.New("no trials left in data")
)

// Info describes grouped data. Subjects are in order of first
// appearance, and so are the blocks of every subject. Rows of one
// subject keep their relative order even when interleaved with other
// subjects.
type Info struct {
	Subjects []string
	NSubj    int

	// Rows holds row indices per subject. For multi-block data
	// these are all the rows of the subject, blocks concatenated.
	Rows [][]int
	// TSubjs is the number of trials per subject.
	TSubjs []int

	// Multi-block data only.
	Blocks      [][]string
	BlockRows   [][][]int
	BSubjs      []int
	BMax        int
	TSubjsBlock [][]int

	TMax int
}

// MultiBlock is true if the data were grouped by block.
func (info *Info) MultiBlock() bool {
	return info.BlockRows != nil
}

// Infer groups a normalized table according to the model variant.
func Infer(t *table.Table, variant modelspec.Variant) (*Info, error) {
	if t.Len() == 0 {
		return nil, ErrNoData
	}
	subj := t.Col(SubjectColumn)
	if subj < 0 {
		return nil, &table.MissingColumnsError{Required: []string{"subjID"}, Missing: []string{"subjID"}}
	}

	info := &Info{}
	order := make(map[string]int)
	for i, r := range t.Rows {
		id := r[subj]
		s, ok := order[id]
		if !ok {
			s = len(info.Subjects)
			order[id] = s
			info.Subjects = append(info.Subjects, id)
			info.Rows = append(info.Rows, nil)
		}
		info.Rows[s] = append(info.Rows[s], i)
	}
	info.NSubj = len(info.Subjects)

	if variant == modelspec.Single && info.NSubj != 1 {
		return nil, ErrMultipleSubjects
	}

	if variant == modelspec.MultipleB {
		if err := info.groupBlocks(t); err != nil {
			return nil, err
		}
	}

	info.TSubjs = make([]int, info.NSubj)
	for s, rows := range info.Rows {
		info.TSubjs[s] = len(rows)
		if !info.MultiBlock() && len(rows) > info.TMax {
			info.TMax = len(rows)
		}
	}

	log.Infof("Number of subjects: %d", info.NSubj)
	if info.MultiBlock() {
		log.Infof("Maximum number of blocks: %d", info.BMax)
	}
	log.Infof("Maximum number of trials: %d", info.TMax)
	return info, nil
}

func (info *Info) groupBlocks(t *table.Table) error {
	block := t.Col(BlockColumn)
	if block < 0 {
		return &table.MissingColumnsError{Required: []string{"subjID", "block"}, Missing: []string{"block"}}
	}

	info.Blocks = make([][]string, info.NSubj)
	info.BlockRows = make([][][]int, info.NSubj)
	info.BSubjs = make([]int, info.NSubj)
	info.TSubjsBlock = make([][]int, info.NSubj)
	for s, rows := range info.Rows {
		order := make(map[string]int)
		for _, i := range rows {
			id := t.Rows[i][block]
			b, ok := order[id]
			if !ok {
				b = len(info.Blocks[s])
				order[id] = b
				info.Blocks[s] = append(info.Blocks[s], id)
				info.BlockRows[s] = append(info.BlockRows[s], nil)
			}
			info.BlockRows[s][b] = append(info.BlockRows[s][b], i)
		}

		info.BSubjs[s] = len(info.Blocks[s])
		if info.BSubjs[s] > info.BMax {
			info.BMax = info.BSubjs[s]
		}
		info.TSubjsBlock[s] = make([]int, info.BSubjs[s])
		for b, br := range info.BlockRows[s] {
			info.TSubjsBlock[s][b] = len(br)
			if len(br) > info.TMax {
				info.TMax = len(br)
			}
		}
	}
	if info.BMax == 0 || info.TMax == 0 {
		return fmt.Errorf("degenerate block grouping (blocks=%d, trials=%d)", info.BMax, info.TMax)
	}
	return nil
}

// PaddedTSubjsBlock returns trials per subject and block as an
// NSubj x BMax matrix, zero for blocks a subject does not have.
func (info *Info) PaddedTSubjsBlock() [][]int {
	m := make([][]int, info.NSubj)
	for s := range m {
		m[s] = make([]int, info.BMax)
		copy(m[s], info.TSubjsBlock[s])
	}
	return m
}
