package preprocess

import (
	"fmt"
	"math"

	"bitbucket.org/ccslab/hbdm/shape"
	"bitbucket.org/ccslab/hbdm/table"
)

func init() {
	Register("alt", Layout{Fields: []Field{
		{Name: "choice", Column: "choice", Int: true, Fill: -1},
		{Name: "outcome", Column: "outcome"},
		{Name: "bluePunish", Column: "bluepunish"},
		{Name: "orangePunish", Column: "orangepunish"},
	}}.Func())

	bandit := Layout{Fields: []Field{
		{Name: "choice", Column: "choice", Int: true, Fill: -1},
		{Name: "outcome", Column: "outcome"},
	}}
	Register("bandit2arm", bandit.Func())
	Register("bandit4arm2", bandit.Func())

	Register("bandit4arm", Layout{Fields: []Field{
		{Name: "rew", Column: "gain"},
		{Name: "los", Column: "loss", Transform: "negabs"},
		{Name: "choice", Column: "choice", Int: true, Fill: -1},
	}}.Func())

	Register("bart", Layout{
		Fields: []Field{
			{Name: "pumps", Column: "pumps", Int: true},
			{Name: "explosion", Column: "explosion", Int: true},
		},
		Extra: func(t *table.Table, info *shape.Info, args Args, data Data) error {
			p := 0
			for _, row := range data["pumps"].([][]int) {
				for _, v := range row {
					if v > p {
						p = v
					}
				}
			}
			data["P"] = p + 1
			return nil
		},
	}.Func())

	Register("choiceRT", Layout{Header: HeaderN, Plugins: []string{"boundary-split"}}.Func())
	Register("choiceRT_single", choiceRTSingle)

	Register("cra", Layout{Fields: []Field{
		{Name: "choice", Column: "choice", Int: true},
		{Name: "prob", Column: "prob"},
		{Name: "ambig", Column: "ambig"},
		{Name: "reward_var", Column: "rewardvar"},
		{Name: "reward_fix", Column: "rewardfix"},
	}}.Func())

	Register("dbdm", Layout{Fields: []Field{
		{Name: "opt1hprob", Column: "opt1hprob"},
		{Name: "opt2hprob", Column: "opt2hprob"},
		{Name: "opt1hval", Column: "opt1hval"},
		{Name: "opt1lval", Column: "opt1lval"},
		{Name: "opt2hval", Column: "opt2hval"},
		{Name: "opt2lval", Column: "opt2lval"},
		{Name: "choice", Column: "choice", Int: true, Fill: -1},
	}}.Func())

	Register("dd", Layout{Fields: ddFields}.Func())
	Register("dd_single", ddSingle)

	Register("gng", Layout{Fields: []Field{
		{Name: "cue", Column: "cue", Int: true, Fill: 1},
		{Name: "pressed", Column: "keypressed", Int: true, Fill: -1},
		{Name: "outcome", Column: "outcome"},
	}}.Func())

	Register("igt", igt)

	Register("peer", Layout{Fields: []Field{
		{Name: "condition", Column: "condition", Int: true},
		{Name: "p_gamble", Column: "pgamble"},
		{Name: "safe_Hpayoff", Column: "safehpayoff"},
		{Name: "safe_Lpayoff", Column: "safelpayoff"},
		{Name: "risky_Hpayoff", Column: "riskyhpayoff"},
		{Name: "risky_Lpayoff", Column: "riskylpayoff"},
		{Name: "choice", Column: "choice", Int: true, Fill: -1},
	}}.Func())

	// multi-block data get N x B x T arrays from the same layout
	prl := Layout{Fields: []Field{
		{Name: "choice", Column: "choice", Int: true, Fill: -1},
		{Name: "outcome", Column: "outcome", Transform: "sign"},
	}}
	Register("prl", prl.Func())
	Register("prl_multipleB", prl.Func())

	Register("pst", Layout{Fields: []Field{
		{Name: "option1", Column: "type", Transform: "split-tens", Int: true, Fill: -1},
		{Name: "option2", Column: "type", Transform: "split-ones", Int: true, Fill: -1},
		{Name: "choice", Column: "choice", Int: true, Fill: -1},
		{Name: "reward", Column: "reward", Fill: -1},
	}}.Func())

	Register("pstRT", Layout{
		Fields: []Field{
			{Name: "iter", Column: "iter", Int: true, Fill: -1},
			{Name: "cond", Column: "cond", Int: true, Fill: -1},
			{Name: "prob", Column: "prob", Fill: -1},
			{Name: "choice", Column: "choice", Int: true, Fill: -1},
			{Name: "RT", Column: "rt", Fill: -1},
			{Name: "fd", Column: "feedback", Int: true, Fill: -1},
		},
		Plugins: []string{"min-rt"},
		Extra: func(t *table.Table, info *shape.Info, args Args, data Data) error {
			q, err := args.Float("initQ", 0.5)
			if err != nil {
				return err
			}
			data["initQ"] = q
			return nil
		},
	}.Func())

	Register("ra", Layout{Fields: []Field{
		{Name: "gain", Column: "gain"},
		{Name: "loss", Column: "loss", Transform: "abs"},
		{Name: "cert", Column: "cert"},
		{Name: "gamble", Column: "gamble", Int: true, Fill: -1},
	}}.Func())

	Register("rdt", Layout{Fields: []Field{
		{Name: "gain", Column: "gain"},
		{Name: "loss", Column: "loss", Transform: "abs"},
		{Name: "cert", Column: "cert"},
		{Name: "type", Column: "type", Int: true, Fill: -1},
		{Name: "gamble", Column: "gamble", Int: true, Fill: -1},
		{Name: "outcome", Column: "outcome"},
		{Name: "happy", Column: "happy"},
		{Name: "RT_happy", Column: "rthappy"},
	}}.Func())

	Register("task2AFC", task2AFC)

	Register("ts", Layout{
		Fields: []Field{
			{Name: "level1_choice", Column: "level1choice", Int: true, Fill: 1},
			{Name: "level2_choice", Column: "level2choice", Int: true, Fill: 1},
			{Name: "reward", Column: "reward", Int: true},
		},
		Extra: func(t *table.Table, info *shape.Info, args Args, data Data) error {
			p, err := args.Float("trans_prob", 0.7)
			if err != nil {
				return err
			}
			data["trans_prob"] = p
			return nil
		},
	}.Func())

	Register("ug", Layout{Fields: []Field{
		{Name: "offer", Column: "offer"},
		{Name: "accept", Column: "accept", Int: true, Fill: -1},
	}}.Func())

	Register("wcs", wcs)

	Register("cgt", Layout{
		Fields: []Field{
			{Name: "col_chosen", Int: true, Value: func(r Row) float64 {
				if r.Get("redchosen") == 1 {
					return 1
				}
				return 2
			}},
			{Name: "prop_red", Value: func(r Row) float64 {
				return r.Get("nredboxes") / 10
			}},
			{Name: "prop_chosen", Value: func(r Row) float64 {
				p := r.Get("nredboxes") / 10
				if r.Get("redchosen") == 1 {
					return p
				}
				return 1 - p
			}},
		},
		Plugins: []string{"bet-menu"},
	}.Func())
}

var ddFields = []Field{
	{Name: "delay_later", Column: "delaylater"},
	{Name: "amount_later", Column: "amountlater"},
	{Name: "delay_sooner", Column: "delaysooner"},
	{Name: "amount_sooner", Column: "amountsooner"},
	{Name: "choice", Column: "choice", Int: true, Fill: -1},
}

// ddSingle writes flat trial vectors of the only subject.
func ddSingle(t *table.Table, info *shape.Info, args Args) (Data, error) {
	data := Data{"Tsubj": info.TMax}
	rows := info.Rows[0]
	for i := range ddFields {
		f := &ddFields[i]
		v := make([]float64, len(rows))
		if err := fill(t, f, rows, v); err != nil {
			return nil, err
		}
		if f.Int {
			data[f.Name] = toInt1(v)
		} else {
			data[f.Name] = v
		}
	}
	return data, nil
}

func choiceRTSingle(t *table.Table, info *shape.Info, args Args) (Data, error) {
	upper, lower, err := splitBoundaries(t, info.Rows[0])
	if err != nil {
		return nil, err
	}
	rt, err := column(t, "rt", info.Rows[0])
	if err != nil {
		return nil, err
	}
	if upper == nil {
		upper = []float64{}
	}
	if lower == nil {
		lower = []float64{}
	}
	data := Data{
		"Nu":    len(upper),
		"Nl":    len(lower),
		"RTu":   upper,
		"RTl":   lower,
		"minRT": minOf(rt),
	}
	return data, rtBound(args, data)
}

// igt scales net outcomes by the payscale argument.
func igt(t *table.Table, info *shape.Info, args Args) (Data, error) {
	payscale, err := args.Float("payscale", 100)
	if err != nil {
		return nil, err
	}
	net := func(r Row) float64 {
		return r.Get("gain") - math.Abs(r.Get("loss"))
	}
	return Layout{Fields: []Field{
		{Name: "choice", Column: "choice", Int: true, Fill: -1},
		{Name: "outcome", Value: func(r Row) float64 { return net(r) / payscale }},
		{Name: "sign_out", Value: func(r Row) float64 { return sign(net(r)) }},
	}}.Build(t, info, args)
}

// task2AFC counts hits, false alarms, signal and noise trials per
// subject.
func task2AFC(t *table.Table, info *shape.Info, args Args) (Data, error) {
	h := make([]int, info.NSubj)
	f := make([]int, info.NSubj)
	signal := make([]int, info.NSubj)
	noise := make([]int, info.NSubj)
	for s, rows := range info.Rows {
		stim, err := column(t, "stimulus", rows)
		if err != nil {
			return nil, err
		}
		resp, err := column(t, "response", rows)
		if err != nil {
			return nil, err
		}
		for i := range stim {
			switch stim[i] {
			case 1:
				signal[s]++
				if resp[i] == 1 {
					h[s]++
				}
			case 0:
				noise[s]++
				if resp[i] == 1 {
					f[s]++
				}
			}
		}
	}
	return Data{"N": info.NSubj, "h": h, "f": f, "signal": signal, "noise": noise}, nil
}

// wcs writes one-hot deck choices over a fixed number of trials.
func wcs(t *table.Table, info *shape.Info, args Args) (Data, error) {
	choice := make([][][]int, info.NSubj)
	outcome := make([][]int, info.NSubj)
	for s, rows := range info.Rows {
		if len(rows) > wcsTrials {
			return nil, fmt.Errorf("subject %s has %d trials, at most %d are supported",
				info.Subjects[s], len(rows), wcsTrials)
		}
		c, err := column(t, "choice", rows)
		if err != nil {
			return nil, err
		}
		o, err := column(t, "outcome", rows)
		if err != nil {
			return nil, err
		}
		choice[s] = make([][]int, wcsDecks)
		for d := range choice[s] {
			choice[s][d] = make([]int, wcsTrials)
		}
		outcome[s] = toInt1(filled(wcsTrials, -1))
		for j := range rows {
			d := int(c[j]) - 1
			if d < 0 || d >= wcsDecks || c[j] != math.Trunc(c[j]) {
				return nil, fmt.Errorf("subject %s trial %d: choice must be 1-%d, got %v",
					info.Subjects[s], j+1, wcsDecks, c[j])
			}
			choice[s][d][j] = 1
			outcome[s][j] = int(o[j])
		}
	}
	data := Data{
		"N":       info.NSubj,
		"T":       wcsTrials,
		"Tsubj":   append([]int(nil), info.TSubjs...),
		"choice":  choice,
		"outcome": outcome,
	}
	if err := answerSheet(t, info, args, data); err != nil {
		return nil, err
	}
	return data, nil
}
