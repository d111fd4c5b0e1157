package table

import (
	"bytes"
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"bitbucket.org/ccslab/hbdm/modelspec"
)

const tsv = "subjID\tchoice\toutcome\tRT_happy\n" +
	"1\t1\t1\t0.5\n" +
	"1\t2\tNA\t0.6\n" +
	"2\t2\t-1\t\n" +
	"2\t1\t1\t0.7\n"

func parse(tst *testing.T) *Table {
	t, err := Parse(strings.NewReader(tsv), '\t')
	require.NoError(tst, err)
	return t
}

func TestNormalize(tst *testing.T) {
	require.Equal(tst, "rthappy", Normalize("RT_happy"))
	require.Equal(tst, "subjid", Normalize("subjID"))
	require.Equal(tst, "delaylater", Normalize("delay_later"))
}

func TestRevertIdempotent(tst *testing.T) {
	t := parse(tst)
	orig := append([]string(nil), t.Columns...)

	t.Normalize()
	require.Equal(tst, []string{"subjid", "choice", "outcome", "rthappy"}, t.Columns)
	require.True(tst, t.Has("rthappy"))
	require.False(tst, t.Has("RT_happy"))

	t.Revert()
	require.Equal(tst, orig, t.Columns)
	t.Revert()
	require.Equal(tst, orig, t.Columns)
	require.True(tst, t.Has("RT_happy"))
}

func TestRequire(tst *testing.T) {
	t := parse(tst)
	t.Normalize()
	require.NoError(tst, t.Require([]string{"subjID", "choice", "RT_happy"}))

	err := t.Require([]string{"subjID", "choice", "gain"})
	var mc *MissingColumnsError
	require.True(tst, errors.As(err, &mc))
	require.Equal(tst, []string{"gain"}, mc.Missing)
	require.Equal(tst, []string{"subjID", "choice", "gain"}, mc.Required)
}

func TestDropMissing(tst *testing.T) {
	t := parse(tst)
	t.Normalize()

	d := t.DropMissing([]string{"subjID", "choice", "outcome"})
	require.Len(tst, d, 1)
	require.Equal(tst, 1, d[0].Index)
	require.Equal(tst, 3, t.Len())

	// empty RT_happy is only dropped when required
	d = t.DropMissing([]string{"RT_happy"})
	require.Len(tst, d, 1)
	require.Equal(tst, 2, t.Len())

	v, err := t.Floats("outcome")
	require.NoError(tst, err)
	require.Equal(tst, []float64{1, 1}, v)
}

func TestFloats(tst *testing.T) {
	t := parse(tst)
	v, err := t.Floats("choice")
	require.NoError(tst, err)
	require.Equal(tst, []float64{1, 2, 2, 1}, v)

	_, err = t.Floats("outcome")
	require.Error(tst, err)
	_, err = t.Floats("nosuch")
	require.Error(tst, err)
}

func TestParseRagged(tst *testing.T) {
	_, err := Parse(strings.NewReader("a,b\n1,2\n3\n"), ',')
	require.Error(tst, err)
	_, err = Parse(strings.NewReader(""), ',')
	require.Error(tst, err)
}

func TestReadByExtension(tst *testing.T) {
	dir, err := ioutil.TempDir("", "table")
	require.NoError(tst, err)
	defer os.RemoveAll(dir)

	csvPath := filepath.Join(dir, "data.csv")
	require.NoError(tst, ioutil.WriteFile(csvPath, []byte("subjID,choice\n1,2\n"), 0644))
	t, err := Read(csvPath)
	require.NoError(tst, err)
	require.Equal(tst, []string{"subjID", "choice"}, t.Columns)

	txtPath := filepath.Join(dir, "data.txt")
	require.NoError(tst, ioutil.WriteFile(txtPath, []byte("subjID\tchoice\n1\t2\n"), 0644))
	t, err = Read(txtPath)
	require.NoError(tst, err)
	require.Equal(tst, [][]string{{"1", "2"}}, t.Rows)
}

func TestWriteRoundTrip(tst *testing.T) {
	t := parse(tst)
	var buf bytes.Buffer
	require.NoError(tst, t.Write(&buf, '\t'))
	u, err := Parse(&buf, '\t')
	require.NoError(tst, err)
	require.Equal(tst, t.Columns, u.Columns)
	require.Equal(tst, t.Rows, u.Rows)
}

func TestLoad(tst *testing.T) {
	spec, err := modelspec.Lookup("bandit2arm_delta")
	require.NoError(tst, err)

	t, err := Load("example", spec)
	require.NoError(tst, err)
	require.True(tst, t.Has("subjid"))
	require.Equal(tst, "subjID", t.Original[0])

	src := parse(tst)
	t, err = Load(src, spec)
	require.NoError(tst, err)
	require.True(tst, t.Has("rthappy"))
	// the caller's table is left alone
	require.Equal(tst, "RT_happy", src.Columns[3])

	_, err = Load(42, spec)
	require.True(tst, errors.Is(err, ErrInvalidSource))
}

func TestExample(tst *testing.T) {
	require.Equal(tst, "dd_single_exampleData.txt", ExampleName("dd", modelspec.Single))
	require.Equal(tst, "dd_exampleData.txt", ExampleName("dd", modelspec.Hierarchical))

	t, err := Example("prl", modelspec.MultipleB)
	require.NoError(tst, err)
	require.Equal(tst, "block", t.Columns[1])

	_, err = Example("nosuch", modelspec.Hierarchical)
	require.True(tst, errors.Is(err, ErrExampleNotFound))
}
