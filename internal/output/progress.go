package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// writerIsTTY reports whether w is a terminal file. Plain writers such
// as *bytes.Buffer are not.
func writerIsTTY(w io.Writer) bool {
	type fder interface {
		Fd() uintptr
	}
	if f, ok := w.(fder); ok {
		return isatty.IsTerminal(f.Fd())
	}
	return false
}

// ProgressBar shows how many of a known number of items are done.
// Example: [=========>          ]  3/7 Importing dumps
//
// On a terminal the bar is redrawn in place. Elsewhere a single line is
// written when the bar finishes. Safe for concurrent use.
type ProgressBar struct {
	mu          sync.Mutex
	total       int
	current     int
	description string
	width       int
	writer      io.Writer
	done        bool
}

// NewProgress creates a progress bar writing to stderr.
func NewProgress(total int, description string) *ProgressBar {
	return &ProgressBar{
		total:       total,
		description: description,
		width:       30,
		writer:      os.Stderr,
	}
}

// SetWriter sets the output writer (useful for testing).
func (p *ProgressBar) SetWriter(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writer = w
}

// SetDescription changes the text after the bar, e.g. to the current item.
func (p *ProgressBar) SetDescription(description string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.description = description
	p.draw()
}

// Increment marks one more item done.
func (p *ProgressBar) Increment() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current < p.total {
		p.current++
	}
	p.draw()
}

// Finish fills the bar and ends the line. Further calls do nothing.
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return
	}
	p.current = p.total
	p.done = true

	tty := writerIsTTY(p.writer)
	if tty {
		p.draw()
		fmt.Fprintln(p.writer)
		return
	}
	fmt.Fprintln(p.writer, p.line())
}

// draw redraws the bar on a terminal. Must be called with the lock held.
func (p *ProgressBar) draw() {
	if p.done || !writerIsTTY(p.writer) {
		return
	}
	fmt.Fprintf(p.writer, "\r%s", p.line())
}

func (p *ProgressBar) line() string {
	filled := p.width
	if p.total > 0 {
		filled = p.current * p.width / p.total
	}

	var bar strings.Builder
	bar.WriteByte('[')
	for i := 0; i < p.width; i++ {
		switch {
		case i < filled-1:
			bar.WriteByte('=')
		case i == filled-1:
			bar.WriteByte('>')
		default:
			bar.WriteByte(' ')
		}
	}
	bar.WriteByte(']')

	digits := len(fmt.Sprint(p.total))
	return fmt.Sprintf("%s %*d/%d %s", bar.String(), digits, p.current, p.total, p.description)
}
