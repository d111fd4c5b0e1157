package shape

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"bitbucket.org/ccslab/hbdm/modelspec"
	"bitbucket.org/ccslab/hbdm/table"
)

func newTable(tst *testing.T, cols []string, rows [][]string) *table.Table {
	t, err := table.New(cols, rows)
	require.NoError(tst, err)
	t.Normalize()
	return t
}

func TestInferInterleaved(tst *testing.T) {
	t := newTable(tst, []string{"subjID", "choice"}, [][]string{
		{"b", "1"}, {"a", "2"}, {"b", "1"}, {"b", "2"}, {"a", "1"},
	})
	info, err := Infer(t, modelspec.Hierarchical)
	require.NoError(tst, err)
	require.Equal(tst, []string{"b", "a"}, info.Subjects)
	require.Equal(tst, 2, info.NSubj)
	require.Equal(tst, [][]int{{0, 2, 3}, {1, 4}}, info.Rows)
	require.Equal(tst, []int{3, 2}, info.TSubjs)
	require.Equal(tst, 3, info.TMax)
	require.False(tst, info.MultiBlock())
}

func TestInferSingle(tst *testing.T) {
	t := newTable(tst, []string{"subjID", "choice"}, [][]string{
		{"1", "1"}, {"1", "2"},
	})
	info, err := Infer(t, modelspec.Single)
	require.NoError(tst, err)
	require.Equal(tst, 1, info.NSubj)
	require.Equal(tst, 2, info.TMax)

	t = newTable(tst, []string{"subjID", "choice"}, [][]string{
		{"1", "1"}, {"2", "2"},
	})
	_, err = Infer(t, modelspec.Single)
	require.True(tst, errors.Is(err, ErrMultipleSubjects))
}

func TestInferBlocks(tst *testing.T) {
	t := newTable(tst, []string{"subjID", "block", "choice"}, [][]string{
		{"1", "1", "1"}, {"1", "1", "2"}, {"2", "1", "1"},
		{"1", "2", "1"}, {"1", "2", "1"}, {"1", "2", "2"},
	})
	info, err := Infer(t, modelspec.MultipleB)
	require.NoError(tst, err)
	require.True(tst, info.MultiBlock())
	require.Equal(tst, []int{2, 1}, info.BSubjs)
	require.Equal(tst, 2, info.BMax)
	require.Equal(tst, [][]int{{2, 3}, {1}}, info.TSubjsBlock)
	require.Equal(tst, 3, info.TMax)
	require.Equal(tst, [][]int{{2, 3}, {1, 0}}, info.PaddedTSubjsBlock())
	require.Equal(tst, [][]int{{3, 4, 5}}, info.BlockRows[0][1:])
}

func TestInferErrors(tst *testing.T) {
	t := newTable(tst, []string{"subjID"}, nil)
	_, err := Infer(t, modelspec.Hierarchical)
	require.True(tst, errors.Is(err, ErrNoData))

	t = newTable(tst, []string{"subjID", "choice"}, [][]string{{"1", "1"}})
	_, err = Infer(t, modelspec.MultipleB)
	var mc *table.MissingColumnsError
	require.True(tst, errors.As(err, &mc))
}
