// Package stan is a sampler backend running CmdStan executables.
// Models are compiled once per model source and CmdStan version and
// the executables are indexed in a cache.
package stan

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/op/go-logging"
	"golang.org/x/sync/errgroup"

	"bitbucket.org/ccslab/hbdm/cache"
	"bitbucket.org/ccslab/hbdm/modelspec"
	"bitbucket.org/ccslab/hbdm/sampler"
)

var log = logging.MustGetLogger("stan")

// Sampler runs models with CmdStan.
type Sampler struct {
	// Home is the CmdStan installation directory.
	Home string
	// StanDir holds the model sources, <model>.stan.
	StanDir string
	// WorkDir receives executables and run files.
	WorkDir string
	// Make is the make command.
	Make    string
	Version string
	Cache   *cache.Cache
	// Context cancels running processes.
	Context context.Context
}

// New creates a CmdStan sampler. c may be nil to compile every time.
func New(home, stanDir, workDir string, c *cache.Cache) (*Sampler, error) {
	if workDir == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			return nil, err
		}
		workDir = filepath.Join(dir, "hbdm")
	}
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, err
	}
	s := &Sampler{
		Home:    home,
		StanDir: stanDir,
		WorkDir: workDir,
		Make:    "make",
		Version: Version(home),
		Cache:   c,
		Context: context.Background(),
	}
	log.Infof("CmdStan %s at %s", s.Version, home)
	return s, nil
}

// Version reads CMDSTAN_VERSION from the CmdStan makefile.
func Version(home string) string {
	f, err := os.Open(filepath.Join(home, "makefile"))
	if err != nil {
		return "unknown"
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		l := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(l, "CMDSTAN_VERSION") {
			continue
		}
		if i := strings.Index(l, "="); i >= 0 {
			return strings.TrimSpace(l[i+1:])
		}
	}
	return "unknown"
}

// Compile returns the executable of a model, building it if the cache
// has no valid entry.
func (s *Sampler) Compile(spec *modelspec.Spec) (string, error) {
	name := spec.FullName()
	src := filepath.Join(s.StanDir, name+".stan")
	hash, err := cache.HashFile(src)
	if err != nil {
		return "", fmt.Errorf("model source: %w", err)
	}
	key := cache.Key(name, s.Version)
	if s.Cache != nil {
		e, err := s.Cache.Lookup(key, hash)
		if err != nil {
			log.Warningf("Cache lookup failed: %v", err)
		} else if e != nil {
			return e.Executable, nil
		}
	}

	b, err := os.ReadFile(src)
	if err != nil {
		return "", err
	}
	target, err := filepath.Abs(filepath.Join(s.WorkDir, name))
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(target+".stan", b, 0644); err != nil {
		return "", err
	}
	log.Noticef("Compiling %s, this will take a while...", name)
	if err := s.run(s.Home, "", s.Make, target); err != nil {
		return "", fmt.Errorf("compiling %s: %w", name, err)
	}
	if s.Cache != nil {
		if err := s.Cache.Save(key, &cache.Entry{SourceHash: hash, Executable: target, Created: time.Now()}); err != nil {
			log.Warningf("Could not cache %s: %v", name, err)
		}
	}
	return target, nil
}

// run executes a command, sending its output to logFile (or the debug
// log if empty).
func (s *Sampler) run(dir, logFile string, name string, args ...string) error {
	ctx := s.Context
	if ctx == nil {
		ctx = context.Background()
	}
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	if logFile != "" {
		if werr := os.WriteFile(logFile, out.Bytes(), 0644); werr != nil {
			log.Warningf("Could not write %s: %v", logFile, werr)
		}
	} else {
		log.Debug(out.String())
	}
	if err != nil {
		msg := strings.TrimSpace(out.String())
		if len(msg) > 2000 {
			msg = msg[len(msg)-2000:]
		}
		return fmt.Errorf("%s: %w\n%s", filepath.Base(name), err, msg)
	}
	return nil
}

func writeJSON(path string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// files are the per-run input files.
type files struct {
	dir, data, init string
}

func (s *Sampler) prepare(req *sampler.Request) (*files, error) {
	dir, err := os.MkdirTemp(s.WorkDir, req.Model.FullName()+"-")
	if err != nil {
		return nil, err
	}
	f := &files{dir: dir, data: filepath.Join(dir, "data.json")}
	if err := writeJSON(f.data, req.Data); err != nil {
		return nil, err
	}
	if req.Inits != nil {
		f.init = filepath.Join(dir, "init.json")
		if err := writeJSON(f.init, req.Inits); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// seedArg folds a seed into the unsigned 31-bit range CmdStan accepts.
func seedArg(seed int64) string {
	return "seed=" + strconv.FormatInt(seed&0x7fffffff, 10)
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// sampleArgs returns the CmdStan arguments of chain c (0-based).
func sampleArgs(req *sampler.Request, f *files, c int, output string) []string {
	thin := req.NThin
	if thin < 1 {
		thin = 1
	}
	args := []string{
		"sample",
		"num_samples=" + strconv.Itoa(req.NIter-req.NWarmup),
		"num_warmup=" + strconv.Itoa(req.NWarmup),
		"thin=" + strconv.Itoa(thin),
		"adapt", "delta=" + ftoa(req.Control.AdaptDelta),
		"algorithm=hmc", "engine=nuts", "max_depth=" + strconv.Itoa(req.Control.MaxTreeDepth),
		"stepsize=" + ftoa(req.Control.StepSize),
		"id=" + strconv.Itoa(c+1),
		"data", "file=" + f.data,
	}
	if f.init != "" {
		args = append(args, "init="+f.init)
	}
	return append(args,
		"random", seedArg(req.Seed),
		"output", "file="+output)
}

func readDraws(path string, pars []string, skip int) (sampler.Draws, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	header, rows, err := ReadCSV(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if skip < len(rows) {
		rows = rows[skip:]
	}
	return ToDraws(header, rows, pars)
}

// Sample runs one CmdStan process per chain, at most req.NCore at a
// time, and concatenates the draws in chain order.
func (s *Sampler) Sample(req *sampler.Request) (sampler.Draws, error) {
	exe, err := s.Compile(req.Model)
	if err != nil {
		return nil, err
	}
	f, err := s.prepare(req)
	if err != nil {
		return nil, err
	}

	chains := make([]sampler.Draws, req.NChain)
	g := new(errgroup.Group)
	if req.NCore > 0 {
		g.SetLimit(req.NCore)
	}
	for c := range chains {
		c := c
		g.Go(func() error {
			out := filepath.Join(f.dir, fmt.Sprintf("output-%d.csv", c+1))
			logFile := filepath.Join(f.dir, fmt.Sprintf("output-%d.log", c+1))
			log.Infof("Starting chain %d", c+1)
			if err := s.run(f.dir, logFile, exe, sampleArgs(req, f, c, out)...); err != nil {
				return fmt.Errorf("chain %d: %w", c+1, err)
			}
			d, err := readDraws(out, req.Pars, 0)
			if err != nil {
				return err
			}
			chains[c] = d
			log.Infof("Chain %d finished", c+1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d := sampler.Draws{}
	for _, ch := range chains {
		if err := d.Append(ch); err != nil {
			return nil, err
		}
	}
	log.Debugf("Run files kept in %s", f.dir)
	return d, nil
}

// Approximate runs mean-field variational inference and returns the
// approximate posterior draws. The leading mean row is skipped.
func (s *Sampler) Approximate(req *sampler.Request) (sampler.Draws, error) {
	exe, err := s.Compile(req.Model)
	if err != nil {
		return nil, err
	}
	f, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	out := filepath.Join(f.dir, "variational.csv")
	args := []string{"variational", "data", "file=" + f.data}
	if f.init != "" {
		args = append(args, "init="+f.init)
	}
	args = append(args,
		"random", seedArg(req.Seed),
		"output", "file="+out)
	if err := s.run(f.dir, filepath.Join(f.dir, "variational.log"), exe, args...); err != nil {
		return nil, err
	}
	return readDraws(out, req.Pars, 1)
}
