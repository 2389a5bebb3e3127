// Package crack drives candidate passwords through the decryption pipeline
// on a pool of workers and reports the first password that opens the entry.
package crack

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"odfbrute/internal/candidate"
	"odfbrute/internal/manifest"
	"odfbrute/internal/metrics"
	"odfbrute/internal/odfcrypt"
)

// Match is the winning candidate.
type Match struct {
	Password  string
	Mode      odfcrypt.Mode
	Plaintext []byte
	// Index is the 0-based position of Password in the source.
	Index int64
}

// Outcome is what a Run reports. When Found is set, Attempts is the 1-based
// position of the password in the source; otherwise it is the number of
// candidates evaluated.
type Outcome struct {
	Found    *Match
	Attempts int64
	Elapsed  time.Duration
}

// Stats is a progress snapshot.
type Stats struct {
	Candidates int64
	Trials     int64
	Elapsed    time.Duration
}

// Rate returns candidates per second.
func (s Stats) Rate() float64 {
	e := s.Elapsed.Seconds()
	if e < 1e-9 {
		return 0
	}
	return float64(s.Candidates) / e
}

// Observer receives progress from a running session. Calls come from a
// single goroutine.
type Observer interface {
	Progress(Stats)
	Finished(Outcome)
}

type nopObserver struct{}

func (nopObserver) Progress(Stats)   {}
func (nopObserver) Finished(Outcome) {}

// Options tunes a Session. Zero values get defaults.
type Options struct {
	Workers          int
	Logger           *logrus.Logger
	Metrics          *metrics.Registry
	Observer         Observer
	ProgressInterval time.Duration
}

// Session owns everything one cracking run needs: the parsed target, shared
// read-only by all workers, and the reporting plumbing.
type Session struct {
	target   *manifest.Target
	workers  int
	log      *logrus.Logger
	metrics  *metrics.Registry
	observer Observer
	interval time.Duration
}

func NewSession(target *manifest.Target, opts Options) *Session {
	s := &Session{
		target:   target,
		workers:  opts.Workers,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		observer: opts.Observer,
		interval: opts.ProgressInterval,
	}
	if s.workers < 1 {
		s.workers = runtime.NumCPU()
	}
	if s.log == nil {
		s.log = logrus.New()
	}
	if s.metrics == nil {
		s.metrics = metrics.NewRegistry()
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	if s.interval <= 0 {
		s.interval = time.Second
	}
	return s
}

func (s *Session) Metrics() *metrics.Registry {
	return s.metrics
}

type job struct {
	index    int64
	password string
}

// run is the mutable state of one Run call.
type run struct {
	s *Session

	found      atomic.Bool
	best       atomic.Int64
	candidates atomic.Int64
	trials     atomic.Int64

	mu    sync.Mutex
	match *Match
}

// Run evaluates src until a password is found, src is exhausted or ctx is
// done. Wrong candidates are never errors; only a key derivation failure or
// ctx cancellation is returned.
func (s *Session) Run(ctx context.Context, src candidate.Source) (Outcome, error) {
	r := &run{s: s}
	r.best.Store(math.MaxInt64)

	start := time.Now()
	s.log.WithFields(logrus.Fields{
		"entry":      s.target.Entry,
		"iterations": s.target.Params.Iterations,
		"pre_hash":   s.target.Params.PreHash,
		"workers":    s.workers,
	}).Info("search started")

	jobs := make(chan job, s.workers*4)
	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < s.workers; i++ {
		g.Go(func() error {
			return r.worker(gctx, jobs)
		})
	}
	g.Go(func() error {
		defer close(jobs)
		return r.feed(gctx, src, jobs)
	})

	stop := make(chan struct{})
	reporterDone := make(chan struct{})
	go func() {
		defer close(reporterDone)
		r.report(start, stop)
	}()

	err := g.Wait()
	close(stop)
	<-reporterDone

	out := Outcome{Elapsed: time.Since(start)}
	if r.match != nil {
		out.Found = r.match
		out.Attempts = r.match.Index + 1
		s.metrics.FoundTotal.Inc()
	} else {
		out.Attempts = r.candidates.Load()
	}
	s.observer.Finished(out)

	if err != nil {
		s.log.WithError(err).Error("search aborted")
		return out, err
	}
	if out.Found == nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			s.log.WithField("attempts", out.Attempts).Info("search stopped")
			return out, ctxErr
		}
		s.log.WithField("attempts", out.Attempts).Info("password not found")
		return out, nil
	}
	s.log.WithFields(logrus.Fields{
		"attempts": out.Attempts,
		"mode":     out.Found.Mode,
		"elapsed":  out.Elapsed.Round(time.Millisecond),
	}).Info("password found")
	return out, nil
}

// feed pulls candidates lazily and hands them out in source order.
func (r *run) feed(ctx context.Context, src candidate.Source, jobs chan<- job) error {
	var i int64
	for pwd := range src {
		if r.found.Load() {
			return nil
		}
		select {
		case jobs <- job{index: i, password: pwd}:
		case <-ctx.Done():
			return nil
		}
		i++
	}
	return nil
}

func (r *run) worker(ctx context.Context, jobs <-chan job) error {
	t := r.s.target
	pl := odfcrypt.NewPipeline(&t.Params, t.Ciphertext, t.Size)

	for j := range jobs {
		if ctx.Err() != nil {
			return nil
		}
		// keep draining so the feeder never blocks, but only candidates
		// ahead of the best match can still change the outcome
		if r.found.Load() && j.index > r.best.Load() {
			continue
		}

		pwd := []byte(j.password)
		for _, mode := range odfcrypt.Modes {
			res := pl.Try(pwd, mode)
			r.trials.Add(1)
			r.s.metrics.ObserveTrial(mode, res.Stage)
			if res.Stage == odfcrypt.StageKDF {
				return fmt.Errorf("candidate %d: %w", j.index, res.Err)
			}
			if res.OK() {
				r.commit(j, mode, res.Plaintext)
				break
			}
		}
		r.candidates.Add(1)
		r.s.metrics.CandidatesTotal.Inc()
	}
	return nil
}

// commit keeps the earliest successful candidate in source order.
func (r *run) commit(j job, mode odfcrypt.Mode, plaintext []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.match != nil && r.match.Index <= j.index {
		return
	}
	r.match = &Match{
		Password:  j.password,
		Mode:      mode,
		Plaintext: plaintext,
		Index:     j.index,
	}
	r.best.Store(j.index)
	r.found.Store(true)
}

func (r *run) report(start time.Time, stop <-chan struct{}) {
	ticker := time.NewTicker(r.s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			r.s.observer.Progress(r.stats(start))
			return
		case <-ticker.C:
			r.s.observer.Progress(r.stats(start))
		}
	}
}

func (r *run) stats(start time.Time) Stats {
	return Stats{
		Candidates: r.candidates.Load(),
		Trials:     r.trials.Load(),
		Elapsed:    time.Since(start),
	}
}

// Crack parses container and runs a session over src. A manifest error is
// returned before any candidate is pulled from src.
func Crack(ctx context.Context, container []byte, entry string, src candidate.Source, opts Options) (Outcome, error) {
	target, err := manifest.Parse(container, entry)
	if err != nil {
		return Outcome{}, err
	}
	return NewSession(target, opts).Run(ctx, src)
}

// ErrWrongPassword is returned by Verify when neither mode opens the entry.
var ErrWrongPassword = errors.New("wrong password")

// Verify checks a single known password under both modes.
func Verify(target *manifest.Target, password string) (*Match, error) {
	pl := odfcrypt.NewPipeline(&target.Params, target.Ciphertext, target.Size)
	mode, res := pl.Decrypt([]byte(password))
	if res.Stage == odfcrypt.StageKDF {
		return nil, res.Err
	}
	if !res.OK() {
		return nil, fmt.Errorf("%w (rejected at %s)", ErrWrongPassword, res.Stage)
	}
	return &Match{Password: password, Mode: mode, Plaintext: res.Plaintext}, nil
}
