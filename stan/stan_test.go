package stan

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"bitbucket.org/ccslab/hbdm/cache"
	"bitbucket.org/ccslab/hbdm/modelspec"
	"bitbucket.org/ccslab/hbdm/preprocess"
	"bitbucket.org/ccslab/hbdm/sampler"
)

const output = `# model = bandit2arm_delta_model
# method = sample (Default)
lp__,accept_stat__,mu_A,A.1,A.2,y_pred.1.1,y_pred.2.1,y_pred.1.2,y_pred.2.2
# Adaptation terminated
-10.5,0.9,0.5,0.1,0.2,1,2,2,-1
-11,0.8,0.6,0.3,0.4,2,1,1,-1
# Elapsed Time: 0.1 seconds
`

func TestReadCSV(tst *testing.T) {
	header, rows, err := ReadCSV(strings.NewReader(output))
	require.NoError(tst, err)
	require.Len(tst, header, 9)
	require.Equal(tst, [][]float64{
		{-10.5, 0.9, 0.5, 0.1, 0.2, 1, 2, 2, -1},
		{-11, 0.8, 0.6, 0.3, 0.4, 2, 1, 1, -1},
	}, rows)

	_, _, err = ReadCSV(strings.NewReader("# only comments\n"))
	require.Error(tst, err)
	_, _, err = ReadCSV(strings.NewReader("a,b\n1,x\n"))
	require.Error(tst, err)
}

func TestToDraws(tst *testing.T) {
	header, rows, err := ReadCSV(strings.NewReader(output))
	require.NoError(tst, err)

	d, err := ToDraws(header, rows, nil)
	require.NoError(tst, err)
	require.NotContains(tst, d, "lp__")
	require.Equal(tst, []int{2}, d["mu_A"].Shape)
	require.Equal(tst, []int{2, 2}, d["A"].Shape)
	require.Equal(tst, []int{2, 2, 2}, d["y_pred"].Shape)
	v, err := d["y_pred"].Trace(1, 0)
	require.NoError(tst, err)
	require.Equal(tst, []float64{2, 1}, v)
	v, err = d["A"].Trace(1)
	require.NoError(tst, err)
	require.Equal(tst, []float64{0.2, 0.4}, v)

	d, err = ToDraws(header, rows, []string{"A"})
	require.NoError(tst, err)
	require.Len(tst, d, 1)

	_, err = ToDraws(header, rows, []string{"log_lik"})
	require.Error(tst, err)
	_, err = ToDraws([]string{"a.x"}, nil, nil)
	require.Error(tst, err)
}

func TestSampleArgs(tst *testing.T) {
	req := &sampler.Request{NIter: 4000, NWarmup: 1000, NThin: 1, Seed: 7, Control: sampler.DefaultControl()}
	args := sampleArgs(req, &files{data: "d.json"}, 1, "out.csv")
	s := strings.Join(args, " ")
	require.Equal(tst, "sample num_samples=3000 num_warmup=1000 thin=1 adapt delta=0.95 algorithm=hmc engine=nuts "+
		"max_depth=10 stepsize=1 id=2 data file=d.json random seed=7 output file=out.csv", s)

	args = sampleArgs(req, &files{data: "d.json", init: "i.json"}, 0, "out.csv")
	require.Contains(tst, args, "init=i.json")

	req.Seed = 1<<40 + 5
	args = sampleArgs(req, &files{data: "d.json"}, 0, "out.csv")
	require.Contains(tst, args, "seed=5")
}

func TestVersion(tst *testing.T) {
	dir := tst.TempDir()
	require.Equal(tst, "unknown", Version(dir))
	os.WriteFile(filepath.Join(dir, "makefile"), []byte("# CmdStan\nCMDSTAN_VERSION := 2.33.1\n"), 0644)
	require.Equal(tst, "2.33.1", Version(dir))
}

// fakeMake "compiles" a model into a script writing a fixed output
// file and counts its invocations.
const fakeMake = `#!/bin/sh
echo x >> "$(dirname "$0")/calls"
cat > "$1" <<'EOF'
#!/bin/sh
out=""
for a in "$@"; do
  case "$a" in
    file=*) out="${a#file=}" ;;
  esac
done
cat > "$out" <<'CSV'
lp__,mu_A,A.1,A.2
0,0.5,0.1,0.2
-1,0.6,0.3,0.4
CSV
EOF
chmod +x "$1"
`

func TestSampleWithFakeCmdStan(tst *testing.T) {
	if runtime.GOOS == "windows" {
		tst.Skip("requires a POSIX shell")
	}
	home := tst.TempDir()
	stanDir := tst.TempDir()
	work := tst.TempDir()
	mk := filepath.Join(home, "fakemake")
	require.NoError(tst, os.WriteFile(mk, []byte(fakeMake), 0755))
	require.NoError(tst, os.WriteFile(filepath.Join(stanDir, "bandit2arm_delta.stan"), []byte("model {}"), 0644))

	c, err := cache.Open(filepath.Join(work, "cache.db"))
	require.NoError(tst, err)
	defer c.Close()

	s, err := New(home, stanDir, work, c)
	require.NoError(tst, err)
	s.Make = mk

	spec, err := modelspec.Lookup("bandit2arm_delta")
	require.NoError(tst, err)
	req := &sampler.Request{
		Model:   spec,
		Data:    preprocess.Data{"N": 2, "T": 1, "Tsubj": []int{1, 1}},
		Pars:    []string{"mu_A", "A"},
		Inits:   sampler.InitValues{"mu_pr": []float64{0, 0}},
		NChain:  3,
		NIter:   4,
		NWarmup: 2,
		NThin:   1,
		NCore:   2,
		Control: sampler.DefaultControl(),
	}
	d, err := s.Sample(req)
	require.NoError(tst, err)
	require.Equal(tst, []int{6, 2}, d["A"].Shape)
	require.Equal(tst, []float64{0.5, 0.6, 0.5, 0.6, 0.5, 0.6}, d["mu_A"].Data)

	req.Pars = nil
	a, err := s.Approximate(req)
	require.NoError(tst, err)
	require.Equal(tst, []int{1}, a["mu_A"].Shape)
	require.Equal(tst, 0.6, a["mu_A"].Data[0])

	calls, err := os.ReadFile(filepath.Join(home, "calls"))
	require.NoError(tst, err)
	require.Equal(tst, 1, strings.Count(string(calls), "x"), "compiled once")

	// changing the source invalidates the cached executable
	require.NoError(tst, os.WriteFile(filepath.Join(stanDir, "bandit2arm_delta.stan"), []byte("model { }"), 0644))
	_, err = s.Compile(spec)
	require.NoError(tst, err)
	calls, _ = os.ReadFile(filepath.Join(home, "calls"))
	require.Equal(tst, 2, strings.Count(string(calls), "x"))
}

func TestWriteJSON(tst *testing.T) {
	p := filepath.Join(tst.TempDir(), "data.json")
	require.NoError(tst, writeJSON(p, preprocess.Data{"N": 2, "choice": [][]int{{1, 2}, {2, -1}}}))
	b, err := os.ReadFile(p)
	require.NoError(tst, err)
	var m map[string]interface{}
	require.NoError(tst, json.Unmarshal(b, &m))
	require.Equal(tst, 2.0, m["N"])
}

func TestCompileMissingSource(tst *testing.T) {
	s, err := New(tst.TempDir(), tst.TempDir(), tst.TempDir(), nil)
	require.NoError(tst, err)
	spec, err := modelspec.Lookup("bandit2arm_delta")
	require.NoError(tst, err)
	_, err = s.Compile(spec)
	require.Error(tst, err)
}
