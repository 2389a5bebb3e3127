// Package candidate produces password candidates as lazy, restartable
// sequences. Ranging over a sequence twice yields the same candidates.
package candidate

import (
	"bufio"
	"fmt"
	"iter"
	"os"
	"strings"
	"sync"
)

// Source is a restartable candidate stream.
type Source = iter.Seq[string]

// List yields words in order.
func List(words ...string) Source {
	return func(yield func(string) bool) {
		for _, w := range words {
			if !yield(w) {
				return
			}
		}
	}
}

// Chain yields every source in turn.
func Chain(sources ...Source) Source {
	return func(yield func(string) bool) {
		for _, src := range sources {
			for w := range src {
				if !yield(w) {
					return
				}
			}
		}
	}
}

// Wordlist streams a dictionary file, one candidate per line. Blank lines
// are skipped and a trailing CR is stripped. The file is reopened on every
// iteration so the sequence can be restarted.
type Wordlist struct {
	path string

	mu  sync.Mutex
	err error
}

func NewWordlist(path string) *Wordlist {
	return &Wordlist{path: path}
}

// Err returns the I/O error that ended the last iteration early, if any.
func (w *Wordlist) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *Wordlist) setErr(err error) {
	w.mu.Lock()
	w.err = err
	w.mu.Unlock()
}

func (w *Wordlist) All() Source {
	return func(yield func(string) bool) {
		w.setErr(nil)
		f, err := os.Open(w.path)
		if err != nil {
			w.setErr(fmt.Errorf("open wordlist: %w", err))
			return
		}
		defer f.Close()

		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 64*1024), 1024*1024)
		for sc.Scan() {
			line := strings.TrimSuffix(sc.Text(), "\r")
			if line == "" {
				continue
			}
			if !yield(line) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			w.setErr(fmt.Errorf("read wordlist: %w", err))
		}
	}
}

// Count returns the number of candidates in the file.
func (w *Wordlist) Count() (int64, error) {
	var n int64
	for range w.All() {
		n++
	}
	return n, w.Err()
}
