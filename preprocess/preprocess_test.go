package preprocess

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"bitbucket.org/ccslab/hbdm/modelspec"
	"bitbucket.org/ccslab/hbdm/shape"
	"bitbucket.org/ccslab/hbdm/table"
)

func prepare(tst *testing.T, variant modelspec.Variant, cols []string, rows [][]string) (*table.Table, *shape.Info) {
	t, err := table.New(cols, rows)
	require.NoError(tst, err)
	t.Normalize()
	info, err := shape.Infer(t, variant)
	require.NoError(tst, err)
	return t, info
}

func TestBandit2arm(tst *testing.T) {
	t, info := prepare(tst, modelspec.Hierarchical,
		[]string{"subjID", "choice", "outcome"},
		[][]string{
			{"1", "1", "1"}, {"1", "2", "-1"}, {"1", "1", "1"},
			{"2", "2", "-1"}, {"2", "1", "1"},
		})
	data, err := Run("bandit2arm", t, info, nil)
	require.NoError(tst, err)
	require.Equal(tst, 2, data["N"])
	require.Equal(tst, 3, data["T"])
	require.Equal(tst, []int{3, 2}, data["Tsubj"])
	require.Equal(tst, [][]int{{1, 2, 1}, {2, 1, -1}}, data["choice"])
	require.Equal(tst, [][]float64{{1, -1, 1}, {-1, 1, 0}}, data["outcome"])
}

func TestBandit4armLoss(tst *testing.T) {
	t, info := prepare(tst, modelspec.Hierarchical,
		[]string{"subjID", "choice", "gain", "loss"},
		[][]string{{"1", "1", "0", "-50"}, {"1", "2", "100", "50"}, {"1", "3", "0", "-10"}})
	data, err := Run("bandit4arm", t, info, nil)
	require.NoError(tst, err)
	require.Equal(tst, [][]float64{{-50, -50, -10}}, data["los"])
	require.Equal(tst, [][]float64{{0, 100, 0}}, data["rew"])
}

func TestPrlMultipleB(tst *testing.T) {
	t, info := prepare(tst, modelspec.MultipleB,
		[]string{"subjID", "block", "choice", "outcome"},
		[][]string{
			{"1", "1", "1", "10"}, {"1", "1", "2", "-3"},
			{"1", "2", "2", "0"},
			{"2", "1", "1", "5"},
		})
	data, err := Run("prl_multipleB", t, info, nil)
	require.NoError(tst, err)
	require.Equal(tst, 2, data["B"])
	require.Equal(tst, []int{2, 1}, data["Bsubj"])
	require.Equal(tst, [][]int{{2, 1}, {1, 0}}, data["Tsubj"])
	require.Equal(tst, [][][]int{
		{{1, 2}, {2, -1}},
		{{1, -1}, {-1, -1}},
	}, data["choice"])
	require.Equal(tst, [][][]float64{
		{{1, -1}, {0, 0}},
		{{1, 0}, {0, 0}},
	}, data["outcome"])
}

func TestPstSplit(tst *testing.T) {
	t, info := prepare(tst, modelspec.Hierarchical,
		[]string{"subjID", "type", "choice", "reward"},
		[][]string{{"a", "12", "1", "1"}, {"a", "56", "0", "0"}, {"b", "34", "1", "1"}})
	data, err := Run("pst", t, info, nil)
	require.NoError(tst, err)
	require.Equal(tst, [][]int{{1, 5}, {3, -1}}, data["option1"])
	require.Equal(tst, [][]int{{2, 6}, {4, -1}}, data["option2"])
	require.Equal(tst, [][]float64{{1, 0}, {1, -1}}, data["reward"])
}

func TestIgtPayscale(tst *testing.T) {
	t, info := prepare(tst, modelspec.Hierarchical,
		[]string{"subjID", "choice", "gain", "loss"},
		[][]string{{"1", "1", "100", "-250"}, {"1", "3", "50", "0"}})
	data, err := Run("igt", t, info, nil)
	require.NoError(tst, err)
	require.Equal(tst, [][]float64{{-1.5, 0.5}}, data["outcome"])
	require.Equal(tst, [][]float64{{-1, 1}}, data["sign_out"])

	data, err = Run("igt", t, info, Args{"payscale": "50"})
	require.NoError(tst, err)
	require.Equal(tst, [][]float64{{-3, 1}}, data["outcome"])
}

func TestChoiceRT(tst *testing.T) {
	cols := []string{"subjID", "choice", "RT"}
	t, info := prepare(tst, modelspec.Hierarchical, cols, [][]string{
		{"1", "2", "0.5"}, {"1", "1", "0.4"}, {"1", "2", "0.6"},
		{"2", "1", "0.3"},
	})
	data, err := Run("choiceRT", t, info, nil)
	require.NoError(tst, err)
	require.Equal(tst, []int{2, 0}, data["Nu"])
	require.Equal(tst, []int{1, 1}, data["Nl"])
	require.Equal(tst, 2, data["Nu_max"])
	require.Equal(tst, [][]float64{{0.5, 0.6}, {-1, -1}}, data["RTu"])
	require.Equal(tst, [][]float64{{0.4}, {0.3}}, data["RTl"])
	require.Equal(tst, []float64{0.4, 0.3}, data["minRT"])
	require.Equal(tst, 0.1, data["RTbound"])

	t, info = prepare(tst, modelspec.Single, cols, [][]string{
		{"1", "2", "0.5"}, {"1", "1", "0.4"},
	})
	data, err = Run("choiceRT_single", t, info, Args{"RTbound": 0.2})
	require.NoError(tst, err)
	require.Equal(tst, 1, data["Nu"])
	require.Equal(tst, []float64{0.4}, data["RTl"])
	require.Equal(tst, 0.4, data["minRT"])
	require.Equal(tst, 0.2, data["RTbound"])
}

func TestDDSingle(tst *testing.T) {
	t, info := prepare(tst, modelspec.Single,
		[]string{"subjID", "delay_later", "amount_later", "delay_sooner", "amount_sooner", "choice"},
		[][]string{{"1", "6", "13.4", "0", "10", "1"}, {"1", "28", "30.9", "0", "10", "0"}})
	data, err := Run("dd_single", t, info, nil)
	require.NoError(tst, err)
	require.Equal(tst, 2, data["Tsubj"])
	require.Equal(tst, []float64{6, 28}, data["delay_later"])
	require.Equal(tst, []int{1, 0}, data["choice"])
	_, ok := data["N"]
	require.False(tst, ok)
}

func TestTask2AFC(tst *testing.T) {
	t, info := prepare(tst, modelspec.Hierarchical,
		[]string{"subjID", "stimulus", "response"},
		[][]string{{"1", "1", "1"}, {"1", "0", "1"}, {"1", "0", "0"}, {"1", "1", "0"}})
	data, err := Run("task2AFC", t, info, nil)
	require.NoError(tst, err)
	require.Equal(tst, []int{1}, data["h"])
	require.Equal(tst, []int{1}, data["f"])
	require.Equal(tst, []int{2}, data["signal"])
	require.Equal(tst, []int{2}, data["noise"])
}

func TestBartAndGng(tst *testing.T) {
	t, info := prepare(tst, modelspec.Hierarchical,
		[]string{"subjID", "pumps", "explosion"},
		[][]string{{"1", "3", "0"}, {"1", "7", "1"}, {"2", "5", "0"}})
	data, err := Run("bart", t, info, nil)
	require.NoError(tst, err)
	require.Equal(tst, 8, data["P"])

	t, info = prepare(tst, modelspec.Hierarchical,
		[]string{"subjID", "cue", "keyPressed", "outcome"},
		[][]string{{"1", "3", "1", "1"}, {"2", "2", "0", "-1"}, {"2", "4", "1", "0"}})
	data, err = Run("gng", t, info, nil)
	require.NoError(tst, err)
	require.Equal(tst, [][]int{{3, 1}, {2, 4}}, data["cue"])
	require.Equal(tst, [][]int{{1, -1}, {0, 1}}, data["pressed"])
}

func TestCgtBetMenu(tst *testing.T) {
	t, info := prepare(tst, modelspec.Hierarchical,
		[]string{"subjID", "gamble_type", "percentage_staked", "trial_initial_points",
			"assessment_stage", "red_chosen", "n_red_boxes"},
		[][]string{
			{"1", "1", "25", "100", "1", "1", "7"},
			{"1", "0", "75", "200", "1", "0", "3"},
		})
	data, err := Run("cgt", t, info, nil)
	require.NoError(tst, err)
	require.Equal(tst, 2, data["B"])
	require.Equal(tst, []float64{0, 0.25}, data["bet_delay"])
	// ascending: 25 is the first bet; descending: 75 is the first bet
	require.Equal(tst, [][]int{{1, 1}}, data["bet_chosen"])
	require.Equal(tst, [][]int{{1, 2}}, data["col_chosen"])
	require.InDeltaSlice(tst, []float64{0.7, 0.7}, data["prop_chosen"].([][]float64)[0], 1e-12)
	gain := data["gain"].([][][]float64)
	require.InDeltaSlice(tst, []float64{1.25, 1.75}, gain[0][0], 1e-12)
	require.InDeltaSlice(tst, []float64{3.5, 2.5}, gain[0][1], 1e-12)
	loss := data["loss"].([][][]float64)
	require.InDeltaSlice(tst, []float64{0.5, 1.5}, loss[0][1], 1e-12)
}

func TestWcs(tst *testing.T) {
	t, info := prepare(tst, modelspec.Hierarchical,
		[]string{"subjID", "choice", "outcome"},
		[][]string{{"1", "2", "1"}, {"1", "4", "0"}})
	data, err := Run("wcs", t, info, nil)
	require.NoError(tst, err)
	require.Equal(tst, 128, data["T"])
	choice := data["choice"].([][][]int)
	require.Len(tst, choice[0], 4)
	require.Equal(tst, 1, choice[0][1][0])
	require.Equal(tst, 1, choice[0][3][1])
	require.Equal(tst, 0, choice[0][0][0])
	outcome := data["outcome"].([][]int)
	require.Equal(tst, []int{1, 0, -1}, outcome[0][:3])

	rule := data["deck_match_rule"].([][][]float64)
	require.Len(tst, rule, 128)
	for _, r := range rule[0] {
		sum := 0.0
		for _, v := range r {
			sum += v
		}
		require.Equal(tst, 1.0, sum)
	}
	att := data["choice_match_att"].([][][][]int)
	for r := 0; r < 3; r++ {
		require.Equal(tst, rule[0][r][1] == 1, att[0][0][0][r] == 1)
	}

	t, info = prepare(tst, modelspec.Hierarchical,
		[]string{"subjID", "choice", "outcome"}, [][]string{{"1", "5", "1"}})
	_, err = Run("wcs", t, info, nil)
	require.Error(tst, err)
}

func TestPadding(tst *testing.T) {
	t, info := prepare(tst, modelspec.Hierarchical,
		[]string{"subjID", "offer", "accept"},
		[][]string{{"1", "4", "1"}, {"2", "10", "0"}, {"2", "11", "1"}, {"2", "2", "0"}})
	data, err := Run("ug", t, info, nil)
	require.NoError(tst, err)
	accept := data["accept"].([][]int)
	offer := data["offer"].([][]float64)
	for s, n := range data["Tsubj"].([]int) {
		require.Len(tst, accept[s], 3)
		for j := n; j < 3; j++ {
			require.Equal(tst, -1, accept[s][j])
			require.Equal(tst, 0.0, offer[s][j])
		}
	}
}

func TestErrors(tst *testing.T) {
	_, err := Lookup("nosuch")
	require.Error(tst, err)

	t, info := prepare(tst, modelspec.Hierarchical,
		[]string{"subjID", "choice", "outcome"},
		[][]string{{"1", "1.5", "1"}})
	_, err = Run("bandit2arm", t, info, nil)
	require.Error(tst, err)

	t, info = prepare(tst, modelspec.Hierarchical,
		[]string{"subjID", "choice", "outcome"},
		[][]string{{"1", "1", "x"}})
	_, err = Run("bandit2arm", t, info, nil)
	require.Error(tst, err)

	info.TMax = 0
	_, err = Pad2D(t, info, &Field{Name: "choice", Column: "choice"})
	require.True(tst, errors.Is(err, ErrInternal))
}

func TestTransforms(tst *testing.T) {
	require.Equal(tst, -1.0, transforms["sign"](-3))
	require.Equal(tst, 0.0, transforms["sign"](0))
	require.Equal(tst, 5.0, transforms["split-ones"](45))
	require.Equal(tst, 4.0, transforms["split-tens"](45))
	require.True(tst, math.Signbit(transforms["negabs"](7)))
}

func TestPluginNames(tst *testing.T) {
	names := make([]string, 0, len(plugins))
	for n := range plugins {
		names = append(names, n)
	}
	require.ElementsMatch(tst, []string{"boundary-split", "min-rt", "bet-menu"}, names)
}

func TestRegisteredTasks(tst *testing.T) {
	specs, err := modelspec.Bundled()
	require.NoError(tst, err)
	for _, s := range specs {
		_, err := Lookup(s.PreprocessKey())
		require.NoError(tst, err, s.FullName())
	}
}
