package preprocess

import (
	"bytes"
	_ "embed"
	"fmt"
	"math"
	"sort"

	"bitbucket.org/ccslab/hbdm/shape"
	"bitbucket.org/ccslab/hbdm/table"
)

// Plugin adds derived entries to model data.
type Plugin func(t *table.Table, info *shape.Info, args Args, data Data) error

var transforms = map[string]func(float64) float64{
	"sign":   sign,
	"abs":    math.Abs,
	"negabs": func(v float64) float64 { return -math.Abs(v) },
	// composite two-digit codes, e.g. 34 -> 3 and 4
	"split-tens": func(v float64) float64 { return math.Floor(v / 10) },
	"split-ones": func(v float64) float64 { return v - 10*math.Floor(v/10) },
}

var plugins = map[string]Plugin{
	"boundary-split": boundarySplit,
	"min-rt":         minRT,
	"bet-menu":       betMenu,
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return v
}

// rtBound writes the RTbound argument (seconds).
func rtBound(args Args, data Data) error {
	b, err := args.Float("RTbound", 0.1)
	if err != nil {
		return err
	}
	data["RTbound"] = b
	return nil
}

// splitBoundaries returns reaction times of upper (choice 2) and lower
// (choice 1) boundary responses.
func splitBoundaries(t *table.Table, rows []int) (upper, lower []float64, err error) {
	choice, err := column(t, "choice", rows)
	if err != nil {
		return nil, nil, err
	}
	rt, err := column(t, "rt", rows)
	if err != nil {
		return nil, nil, err
	}
	for i, c := range choice {
		switch c {
		case 2:
			upper = append(upper, rt[i])
		case 1:
			lower = append(lower, rt[i])
		}
	}
	return upper, lower, nil
}

func minOf(v []float64) float64 {
	m := math.Inf(1)
	for _, x := range v {
		if x < m {
			m = x
		}
	}
	return m
}

// boundarySplit writes per-subject upper and lower boundary reaction
// times padded with -1 to the largest count.
func boundarySplit(t *table.Table, info *shape.Info, args Args, data Data) error {
	uppers := make([][]float64, info.NSubj)
	lowers := make([][]float64, info.NSubj)
	nu := make([]int, info.NSubj)
	nl := make([]int, info.NSubj)
	nuMax, nlMax := 0, 0
	for s, rows := range info.Rows {
		u, l, err := splitBoundaries(t, rows)
		if err != nil {
			return err
		}
		uppers[s], lowers[s] = u, l
		nu[s], nl[s] = len(u), len(l)
		if nu[s] > nuMax {
			nuMax = nu[s]
		}
		if nl[s] > nlMax {
			nlMax = nl[s]
		}
	}

	pad := func(v [][]float64, width int) [][]float64 {
		m := make([][]float64, len(v))
		for s := range v {
			m[s] = filled(width, -1)
			copy(m[s], v[s])
		}
		return m
	}
	data["Nu_max"] = nuMax
	data["Nl_max"] = nlMax
	data["Nu"] = nu
	data["Nl"] = nl
	data["RTu"] = pad(uppers, nuMax)
	data["RTl"] = pad(lowers, nlMax)
	if err := minRT(t, info, args, data); err != nil {
		return err
	}
	return nil
}

// minRT writes the smallest reaction time of every subject and the
// RTbound argument.
func minRT(t *table.Table, info *shape.Info, args Args, data Data) error {
	m := make([]float64, info.NSubj)
	for s, rows := range info.Rows {
		rt, err := column(t, "rt", rows)
		if err != nil {
			return err
		}
		m[s] = minOf(rt)
	}
	data["minRT"] = m
	return rtBound(args, data)
}

// betMenu derives the bet options of the gambling task from the
// distinct stakes present in the data.
func betMenu(t *table.Table, info *shape.Info, args Args, data Data) error {
	staked, err := t.Floats("percentagestaked")
	if err != nil {
		return err
	}
	gtype, err := t.Floats("gambletype")
	if err != nil {
		return err
	}
	points, err := t.Floats("trialinitialpoints")
	if err != nil {
		return err
	}

	seen := make(map[float64]bool)
	var asc []float64
	for _, v := range staked {
		if !seen[v] {
			seen[v] = true
			asc = append(asc, v/100)
		}
	}
	sort.Float64s(asc)
	n := len(asc)
	dsc := make([]float64, n)
	delay := make([]float64, n)
	rank := make(map[float64]int, n)
	for b := range asc {
		dsc[b] = asc[n-1-b]
		delay[b] = float64(b) / 4
		rank[asc[b]] = b + 1
	}

	betChosen := make([][]int, info.NSubj)
	gain := make([][][]float64, info.NSubj)
	loss := make([][][]float64, info.NSubj)
	for s, rows := range info.Rows {
		betChosen[s] = make([]int, info.TMax)
		gain[s] = make([][]float64, info.TMax)
		loss[s] = make([][]float64, info.TMax)
		for j := range gain[s] {
			gain[s][j] = make([]float64, n)
			loss[s][j] = make([]float64, n)
		}
		for j, i := range rows {
			bt := rank[staked[i]/100]
			if gtype[i] == 0 {
				bt = n + 1 - bt
			}
			betChosen[s][j] = bt

			menu := dsc
			if gtype[i] == 1 {
				menu = asc
			}
			p := points[i] / 100
			for b := 0; b < n; b++ {
				gain[s][j][b] = p + p*menu[b]
				loss[s][j][b] = p - p*menu[b]
			}
		}
	}

	data["B"] = n
	data["bet_delay"] = delay
	data["bet_chosen"] = betChosen
	data["gain"] = gain
	data["loss"] = loss
	return nil
}

// Card sorting rules in answer sheet order.
const (
	wcsRules  = 3
	wcsDecks  = 4
	wcsTrials = 128
)

//go:embed extdata/wcs_answersheet.txt
var wcsSheet []byte

// readAnswerSheet returns the matching deck (0-based) per rule and
// trial. The sheet has one row per rule and one column per trial
// after a leading label column.
func readAnswerSheet(path string) ([][]int, error) {
	var (
		t   *table.Table
		err error
	)
	if path == "" {
		t, err = table.Parse(bytes.NewReader(wcsSheet), '\t')
	} else {
		t, err = table.Read(path)
	}
	if err != nil {
		return nil, err
	}
	if t.Len() != wcsRules || len(t.Columns) != wcsTrials+1 {
		return nil, fmt.Errorf("answer sheet must be %d rules x %d trials, got %d x %d",
			wcsRules, wcsTrials, t.Len(), len(t.Columns)-1)
	}
	sheet := make([][]int, wcsRules)
	for r, row := range t.Rows {
		sheet[r] = make([]int, wcsTrials)
		for j, v := range row[1:] {
			var d int
			if _, err := fmt.Sscan(v, &d); err != nil || d < 1 || d > wcsDecks {
				return nil, fmt.Errorf("answer sheet rule %d trial %d: bad deck %q", r+1, j+1, v)
			}
			sheet[r][j] = d - 1
		}
	}
	return sheet, nil
}

// answerSheet writes, for every trial, which rules the chosen deck
// matched and which deck every rule prescribes.
func answerSheet(t *table.Table, info *shape.Info, args Args, data Data) error {
	sheet, err := readAnswerSheet(args.String("answersheet", ""))
	if err != nil {
		return err
	}

	att := make([][][][]int, info.NSubj)
	for s, rows := range info.Rows {
		choice, err := column(t, "choice", rows)
		if err != nil {
			return err
		}
		att[s] = make([][][]int, wcsTrials)
		for j := range att[s] {
			att[s][j] = [][]int{make([]int, wcsRules)}
		}
		for j, c := range choice {
			for r := 0; r < wcsRules; r++ {
				if int(c)-1 == sheet[r][j] {
					att[s][j][0][r] = 1
				}
			}
		}
	}

	rule := make([][][]float64, wcsTrials)
	for j := range rule {
		rule[j] = make([][]float64, wcsRules)
		for r := range rule[j] {
			rule[j][r] = make([]float64, wcsDecks)
			rule[j][r][sheet[r][j]] = 1
		}
	}

	data["choice_match_att"] = att
	data["deck_match_rule"] = rule
	return nil
}
