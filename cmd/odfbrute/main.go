package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"odfbrute/internal/config"
	"odfbrute/internal/crack"
	"odfbrute/internal/manifest"
	"odfbrute/internal/metrics"
	"odfbrute/internal/rewrite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Default()

	configPath := flag.String("config", "", "YAML config file (flags override it)")
	workers := flag.Int("workers", cfg.Workers, "number of parallel workers")
	entry := flag.String("entry", cfg.Entry, "encrypted entry to attack")
	output := flag.String("o", "", "write the decrypted container here")
	words := flag.String("words", "", "comma-separated candidates tried first")
	wordlist := flag.String("wordlist", "", "dictionary file, one candidate per line")
	charset := flag.String("charset", cfg.Charset, "alphabet or presets (lower, upper, digits, symbol, alpha, alnum) joined with '+'")
	minLen := flag.Int("min", cfg.MinLength, "minimum candidate length for charset enumeration")
	maxLen := flag.Int("max", cfg.MaxLength, "maximum candidate length for charset enumeration")
	password := flag.String("password", "", "decrypt with a known password instead of searching (\"-\" prompts)")
	benchDur := flag.Duration("bench", 0, "benchmark mode: run for duration and exit (e.g. 5s, 1m)")
	timeout := flag.Duration("timeout", 0, "give up after this long")
	logLevel := flag.String("log-level", cfg.LogLevel, "trace, debug, info, warn or error")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <file.odt>\n\nFlags:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		return errors.New("no input file")
	}
	path := flag.Arg(0)

	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	applyFlags(&cfg, set, flagValues{
		workers: *workers, entry: *entry, output: *output, words: *words,
		wordlist: *wordlist, charset: *charset, minLen: *minLen, maxLen: *maxLen,
		timeout: *timeout, logLevel: *logLevel,
	})
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := cfg.Logger()
	if err != nil {
		return err
	}

	fileData, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	target, err := manifest.Parse(fileData, cfg.Entry)
	if err != nil {
		return err
	}

	fmt.Printf("File:       %s (%s)\n", path, humanize.Bytes(uint64(len(fileData))))
	fmt.Printf("Entry:      %s (%s encrypted)\n", target.Entry, humanize.Bytes(uint64(len(target.Ciphertext))))
	fmt.Printf("Cipher:     %s, PBKDF2-SHA1 x %d\n", target.Params.Algorithm, target.Params.Iterations)
	fmt.Printf("Pre-hash:   %v (both modes are tried)\n", target.Params.PreHash)

	if *password != "" || set["password"] {
		return decryptKnown(log, path, fileData, target, *password, cfg.Output)
	}

	src, wl, cs, err := cfg.Source(set["charset"] || set["min"] || set["max"])
	if err != nil {
		return err
	}
	total := int64(-1)
	if wl == nil && cs != nil && len(cfg.Words) == 0 {
		total = cs.Count()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	budget := cfg.Timeout
	if *benchDur > 0 {
		budget = *benchDur
	}
	if budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	fmt.Printf("Workers:    %d\n", cfg.Workers)
	if total > 0 {
		fmt.Printf("Search:     %s candidates\n", humanize.Comma(total))
	}

	reg := metrics.NewRegistry()
	session := crack.NewSession(target, crack.Options{
		Workers:          cfg.Workers,
		Logger:           log,
		Metrics:          reg,
		Observer:         newObserver(total, *benchDur > 0),
		ProgressInterval: cfg.ProgressInterval,
	})

	out, err := session.Run(ctx, src)
	fmt.Println()
	if wl != nil {
		if werr := wl.Err(); werr != nil {
			return werr
		}
	}
	return finish(log, reg, out, err, *benchDur, path, fileData, target.Entry, cfg.Output)
}

// finish reports a search. Running out of time is not an error, but any
// other failure is, in bench mode too; a password found within the bench
// window is still written out.
func finish(log *logrus.Logger, reg *metrics.Registry, out crack.Outcome, runErr error, bench time.Duration,
	path string, fileData []byte, entry, output string) error {
	if runErr != nil && !errors.Is(runErr, context.DeadlineExceeded) && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	if bench > 0 {
		fmt.Printf("\nBenchmark: %s | Checked: %d | Speed: %.1f/s\n",
			bench, out.Attempts, float64(out.Attempts)/out.Elapsed.Seconds())
	}
	printRejections(reg)
	if out.Found == nil {
		if bench == 0 {
			fmt.Printf("\nPassword not found. Checked: %d | Time: %s\n",
				out.Attempts, out.Elapsed.Round(time.Millisecond))
		}
		return nil
	}

	fmt.Printf("\n*** PASSWORD FOUND: %s ***\n", out.Found.Password)
	fmt.Printf("Mode: %s | Time: %s | Checked: %d\n",
		out.Found.Mode, out.Elapsed.Round(time.Millisecond), out.Attempts)
	return writeOutput(log, path, fileData, entry, out.Found.Plaintext, output)
}

type flagValues struct {
	workers                     int
	entry, output, words        string
	wordlist, charset, logLevel string
	minLen, maxLen              int
	timeout                     time.Duration
}

// applyFlags copies explicitly set flags over the loaded config, so a
// config file value survives unless the flag was passed.
func applyFlags(cfg *config.Config, set map[string]bool, v flagValues) {
	if set["workers"] {
		cfg.Workers = v.workers
	}
	if set["entry"] {
		cfg.Entry = v.entry
	}
	if set["o"] {
		cfg.Output = v.output
	}
	if set["words"] {
		cfg.Words = splitWords(v.words)
	}
	if set["wordlist"] {
		cfg.Wordlist = v.wordlist
	}
	if set["charset"] {
		cfg.Charset = v.charset
	}
	if set["min"] {
		cfg.MinLength = v.minLen
	}
	if set["max"] {
		cfg.MaxLength = v.maxLen
	}
	if set["timeout"] {
		cfg.Timeout = v.timeout
	}
	if set["log-level"] {
		cfg.LogLevel = v.logLevel
	}
}

func splitWords(s string) []string {
	var out []string
	for _, w := range strings.Split(s, ",") {
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

func decryptKnown(log *logrus.Logger, path string, fileData []byte, target *manifest.Target, password, output string) error {
	if password == "" || password == "-" {
		p, err := getPassword("Enter password: ")
		if err != nil {
			return fmt.Errorf("failed to get password: %w", err)
		}
		password = p
	}
	m, err := crack.Verify(target, password)
	if err != nil {
		return err
	}
	fmt.Printf("\nPassword OK (mode: %s)\n", m.Mode)
	return writeOutput(log, path, fileData, target.Entry, m.Plaintext, output)
}

func writeOutput(log *logrus.Logger, path string, fileData []byte, entry string, plaintext []byte, output string) error {
	if output == "" {
		ext := filepath.Ext(path)
		output = strings.TrimSuffix(path, ext) + ".decrypted" + ext
	}
	if err := rewrite.WriteFile(path, output, fileData, entry, plaintext); err != nil {
		log.WithError(err).Error("password recovered but the decrypted container was not written")
		return err
	}
	log.WithField("path", output).Info("decrypted container written")
	fmt.Printf("Saved: %s\n", output)
	return nil
}

func printRejections(reg *metrics.Registry) {
	rej, err := reg.Rejections()
	if err != nil || len(rej) == 0 {
		return
	}
	stages := make([]string, 0, len(rej))
	for s, n := range rej {
		if n > 0 {
			stages = append(stages, s)
		}
	}
	if len(stages) == 0 {
		return
	}
	sort.Strings(stages)
	parts := make([]string, 0, len(stages))
	for _, s := range stages {
		parts = append(parts, fmt.Sprintf("%s=%s", s, humanize.Comma(int64(rej[s]))))
	}
	fmt.Printf("Rejected:   %s\n", strings.Join(parts, " "))
}
