package metrics

import (
	"fmt"
	"io"
	"sync"

	"github.com/alvmarrod/site-weaver/internal/crawler"
)

var spinnerFrames = []string{"|", "/", "-", `\`}

// ProgressLine redraws a single console line with a spinner and the
// mapped/unmapped counters after every step
type ProgressLine struct {
	mu    sync.Mutex
	out   io.Writer
	frame int
}

// NewProgressLine creates a presenter writing to out
func NewProgressLine(out io.Writer) *ProgressLine {
	return &ProgressLine{out: out}
}

// Update draws the next spinner frame with the counters of p
func (l *ProgressLine) Update(p crawler.Progress) {
	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintf(l.out, "\r%s Mapped: %d  Unmapped: %d", spinnerFrames[l.frame], p.Mapped, p.Unmapped)
	l.frame = (l.frame + 1) % len(spinnerFrames)
}

// Done ends the progress line
func (l *ProgressLine) Done() {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out)
}
