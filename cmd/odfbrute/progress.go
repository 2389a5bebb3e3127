package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"odfbrute/internal/crack"
)

// newObserver picks a progress bar when the search space is known and
// stdout is a terminal, otherwise a single rewritten status line.
func newObserver(total int64, bench bool) crack.Observer {
	if total > 0 && !bench && term.IsTerminal(int(os.Stdout.Fd())) {
		return &barObserver{bar: progressbar.Default(total, "cracking")}
	}
	return lineObserver{}
}

type barObserver struct {
	bar *progressbar.ProgressBar
}

func (o *barObserver) Progress(s crack.Stats) {
	_ = o.bar.Set64(s.Candidates)
}

func (o *barObserver) Finished(crack.Outcome) {
	_ = o.bar.Finish()
}

type lineObserver struct{}

func (lineObserver) Progress(s crack.Stats) {
	fmt.Printf("\r  Checked: %s | Speed: %s/s | Elapsed: %.1fs        ",
		humanize.Comma(s.Candidates), humanize.CommafWithDigits(s.Rate(), 1), s.Elapsed.Seconds())
}

func (lineObserver) Finished(crack.Outcome) {}
