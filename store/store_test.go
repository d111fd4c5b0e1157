package store

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bitbucket.org/ccslab/hbdm/fit"
	"bitbucket.org/ccslab/hbdm/summary"
)

func result(id string, created time.Time) *fit.Result {
	settings := fit.DefaultOptions().Settings
	settings.Seed = 11
	return &fit.Result{
		RunID:    id,
		Model:    "bandit2arm_delta",
		Created:  created,
		Settings: settings,
		IndPars: &summary.Table{
			Subjects:   []string{"B", "A"},
			Parameters: []string{"tau", "A"},
			Values:     [][]float64{{1.5, 0.2}, {math.NaN(), 0.4}},
		},
		InitFallback: true,
	}
}

func TestSaveAndLoad(tst *testing.T) {
	s, err := Open(filepath.Join(tst.TempDir(), "runs.db"))
	require.NoError(tst, err)
	defer s.Close()

	now := time.Now()
	require.NoError(tst, s.Save(result("r1", now.Add(-time.Hour))))
	require.NoError(tst, s.Save(result("r2", now)))

	t, err := s.Estimates("r1")
	require.NoError(tst, err)
	require.Equal(tst, []string{"B", "A"}, t.Subjects)
	require.Equal(tst, []string{"tau", "A"}, t.Parameters)
	require.Equal(tst, 1.5, t.Values[0][0])
	require.True(tst, math.IsNaN(t.Values[1][0]))
	require.Equal(tst, 0.4, t.Values[1][1])

	runs, err := s.Runs()
	require.NoError(tst, err)
	require.Len(tst, runs, 2)
	require.Equal(tst, "r2", runs[0].ID)

	r, err := s.Get("r1")
	require.NoError(tst, err)
	require.Equal(tst, 2, r.NSubj)
	require.True(tst, r.InitFallback)
	require.Equal(tst, int64(11), r.Settings.Seed)
	require.Equal(tst, 4000, r.Settings.NIter)
}

func TestUnknownRun(tst *testing.T) {
	s, err := Open(filepath.Join(tst.TempDir(), "runs.db"))
	require.NoError(tst, err)
	defer s.Close()

	_, err = s.Estimates("nope")
	require.True(tst, errors.Is(err, ErrNoRun))
	_, err = s.Get("nope")
	require.True(tst, errors.Is(err, ErrNoRun))
}

func TestDuplicateRun(tst *testing.T) {
	s, err := Open(filepath.Join(tst.TempDir(), "runs.db"))
	require.NoError(tst, err)
	defer s.Close()

	require.NoError(tst, s.Save(result("r1", time.Now())))
	require.Error(tst, s.Save(result("r1", time.Now())))
	t, err := s.Estimates("r1")
	require.NoError(tst, err)
	require.Len(tst, t.Subjects, 2)
}
