package progress

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/charmbracelet/bubbles/progress"
)

// Tracker renders a single inline progress bar for the bulk export loop.
type Tracker struct {
	bar   progress.Model
	total int
	done  int
	out   io.Writer
}

// NewTracker creates a tracker expecting total steps, writing to stdout.
func NewTracker(total int) *Tracker {
	return &Tracker{
		bar:   progress.New(progress.WithDefaultGradient()),
		total: total,
		out:   os.Stdout,
	}
}

// SetOutput redirects the rendered bar, mainly for tests.
func (t *Tracker) SetOutput(w io.Writer) {
	t.out = w
}

// Advance marks one step done and redraws the bar with the given label.
func (t *Tracker) Advance(label string) {
	if t.total <= 0 {
		return
	}
	t.done++
	frac := float64(t.done) / float64(t.total)
	fmt.Fprintf(t.out, "\r%s %d/%d %s", t.bar.ViewAs(frac), t.done, t.total, label)
}

// Finish terminates the inline bar with a newline.
func (t *Tracker) Finish() {
	if t.total <= 0 {
		return
	}
	fmt.Fprintln(t.out)
}

// NewStatus returns a spinner for one long-running step. The caller starts
// and stops it around the blocking call.
func NewStatus(message string) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[9], 100*time.Millisecond)
	s.Suffix = " " + message
	return s
}

// TruncateURL shortens a URL for inline display, keeping the host and the
// tail of the path.
func TruncateURL(urlStr string, maxLen int) string {
	if len(urlStr) <= maxLen {
		return urlStr
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return "..." + urlStr[len(urlStr)-maxLen:]
	}
	domain := u.Host
	path := u.Path
	if len(path) > maxLen-len(domain)-3 {
		path = "..." + path[len(path)-(maxLen-len(domain)-3):]
	}
	return domain + path
}
