// Package sample draws label subsets whose centers keep a minimum Manhattan
// distance from each other.
//
// Sampling is rejection based: draw, test every pair, retry. Termination is
// probabilistic, so the attempt cap and the failure are explicit: a Sampler
// is configured with MaxAttempts and reports SAMPLING_EXHAUSTED when no draw
// within the budget satisfies the constraint. Stats exposes the observed
// acceptance rate so the cap can be tuned.
//
// A Sampler owns a seeded PCG stream. Given the same seed, pools and call
// sequence it returns the same results. It is not safe for concurrent use.
package sample

import (
	"io"
	"math"
	"math/rand/v2"

	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/stat"

	"github.com/matzehuels/defectset/pkg/errors"
	"github.com/matzehuels/defectset/pkg/label"
)

const (
	// DefaultMinDistance is the minimum Manhattan distance between centers.
	DefaultMinDistance = 0.10

	// DefaultMaxAttempts bounds the draws per Sample call.
	DefaultMaxAttempts = 50000

	// DefaultSeed is the default random seed for reproducibility.
	DefaultSeed = uint64(42)
)

// Options configures a Sampler.
type Options struct {
	MinDistance float64
	MaxAttempts int
	Seed        uint64
	Logger      *log.Logger
}

func (o *Options) setDefaults() {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.Seed == 0 {
		o.Seed = DefaultSeed
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// Sampler performs constrained sampling.
type Sampler struct {
	opts Options
	rng  *rand.Rand

	// attempts used by each accepted call
	used       []float64
	draws      int
	exhausted  int
	impossible int
}

// New creates a Sampler. A zero MinDistance is allowed (every draw passes);
// MaxAttempts and Seed fall back to their defaults when unset.
func New(opts Options) *Sampler {
	opts.setDefaults()
	seed := opts.Seed
	return &Sampler{
		opts: opts,
		rng:  rand.New(rand.NewPCG(seed, seed^0xdeadbeef)),
	}
}

// Options returns the effective options.
func (s *Sampler) Options() Options { return s.opts }

// Sample draws kA records from poolA and kB from poolB, each without
// replacement, and returns the concatenation (poolA's draw first) as soon as
// every pair of centers is at least MinDistance apart.
//
// It fails immediately with SAMPLING_IMPOSSIBLE when a pool holds fewer
// records than requested, and with SAMPLING_EXHAUSTED after MaxAttempts
// rejected draws.
func (s *Sampler) Sample(poolA, poolB []label.Record, kA, kB int) ([]label.Record, error) {
	if kA < 0 || kB < 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "negative sample size (%d, %d)", kA, kB)
	}
	if len(poolA) < kA || len(poolB) < kB {
		s.impossible++
		return nil, errors.New(errors.ErrCodeSamplingImpossible,
			"pools too small: have %d/%d, need %d/%d", len(poolA), len(poolB), kA, kB)
	}

	idxA := identity(len(poolA))
	idxB := identity(len(poolB))
	out := make([]label.Record, kA+kB)

	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		s.draws++
		s.pick(idxA, kA)
		s.pick(idxB, kB)
		for i := 0; i < kA; i++ {
			out[i] = poolA[idxA[i]]
		}
		for i := 0; i < kB; i++ {
			out[kA+i] = poolB[idxB[i]]
		}
		if Satisfies(out, s.opts.MinDistance) {
			s.used = append(s.used, float64(attempt))
			return out, nil
		}
	}

	s.exhausted++
	s.opts.Logger.Debug("sampling exhausted", "attempts", s.opts.MaxAttempts, "min_distance", s.opts.MinDistance)
	return nil, errors.New(errors.ErrCodeSamplingExhausted,
		"no combination with min distance %.3f in %d attempts", s.opts.MinDistance, s.opts.MaxAttempts)
}

// pick moves a uniform random k-subset of idx into idx[:k] (partial
// Fisher-Yates). The order within the prefix is random too.
func (s *Sampler) pick(idx []int, k int) {
	n := len(idx)
	for i := 0; i < k; i++ {
		j := i + s.rng.IntN(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
}

func identity(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// Satisfies reports whether every pair of centers in records is at least
// minDist apart in Manhattan distance.
func Satisfies(records []label.Record, minDist float64) bool {
	for i := range records {
		for j := i + 1; j < len(records); j++ {
			if records[i].Center.Manhattan(records[j].Center) < minDist {
				return false
			}
		}
	}
	return true
}

// MinPairDistance returns the smallest pairwise Manhattan distance, or +Inf
// for fewer than two records.
func MinPairDistance(records []label.Record) float64 {
	best := math.Inf(1)
	for i := range records {
		for j := i + 1; j < len(records); j++ {
			best = min(best, records[i].Center.Manhattan(records[j].Center))
		}
	}
	return best
}

// Stats summarizes a Sampler's history.
type Stats struct {
	Accepted   int     // calls that returned a combination
	Exhausted  int     // calls that hit MaxAttempts
	Impossible int     // calls rejected because a pool was too small
	Draws      int     // total draws across all calls
	Rate       float64 // accepted calls per draw
	MeanTries  float64 // mean draws per accepted call
	StdTries   float64 // standard deviation of draws per accepted call
	MaxTries   float64 // worst accepted call
}

// Stats returns the acceptance statistics so far.
func (s *Sampler) Stats() Stats {
	return summarize(s.used, s.exhausted, s.impossible, s.draws)
}

// Combine returns the statistics of several samplers as if a single sampler
// had made all of their calls.
func Combine(samplers ...*Sampler) Stats {
	var used []float64
	var exhausted, impossible, draws int
	for _, s := range samplers {
		used = append(used, s.used...)
		exhausted += s.exhausted
		impossible += s.impossible
		draws += s.draws
	}
	return summarize(used, exhausted, impossible, draws)
}

func summarize(used []float64, exhausted, impossible, draws int) Stats {
	st := Stats{
		Accepted:   len(used),
		Exhausted:  exhausted,
		Impossible: impossible,
		Draws:      draws,
	}
	if draws > 0 {
		st.Rate = float64(st.Accepted) / float64(draws)
	}
	switch len(used) {
	case 0:
	case 1:
		st.MeanTries = used[0]
		st.MaxTries = used[0]
	default:
		st.MeanTries, st.StdTries = stat.MeanStdDev(used, nil)
		for _, u := range used {
			st.MaxTries = max(st.MaxTries, u)
		}
	}
	return st
}
