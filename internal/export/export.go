package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/go-scripts/gsexport/internal/discover"
	"github.com/go-scripts/gsexport/internal/gradescope"
	"github.com/go-scripts/gsexport/internal/progress"
)

// ErrNotOutline means a user-supplied URL did not lead to an online
// assignment outline page. Fatal in single-target mode.
var ErrNotOutline = errors.New("not an online assignment outline page")

// PageDriver is the slice of the browser bridge the orchestrator needs.
// *browser.Bridge satisfies it.
type PageDriver interface {
	Navigate(url string) error
	HTML() (string, error)
	Evaluate(script string) error
	PrintToPDF() ([]byte, error)
}

// State tracks one target through the export loop.
type State int

const (
	StatePending State = iota
	StateValidating
	StateExporting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateValidating:
		return "validating"
	case StateExporting:
		return "exporting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result records the outcome for one assignment.
type Result struct {
	Assignment discover.Assignment
	State      State
	Err        error
}

// Summary aggregates the outcomes of one bulk run.
type Summary struct {
	Results []Result
}

func (s Summary) Succeeded() int {
	n := 0
	for _, r := range s.Results {
		if r.State == StateSucceeded {
			n++
		}
	}
	return n
}

func (s Summary) Failed() int {
	n := 0
	for _, r := range s.Results {
		if r.State == StateFailed {
			n++
		}
	}
	return n
}

// navAttempts bounds how often a page load is retried before the target is
// recorded as failed. The platform is slow and the occasional load stalls.
const navAttempts = 3

// Orchestrator drives the export of assignments through the single browser
// context, one target at a time.
type Orchestrator struct {
	driver PageDriver
	disc   *discover.Discoverer
	folder string
	log    *log.Logger

	// RetryDelay is the base backoff between navigation attempts; it grows
	// linearly with the attempt number. Tests set it to zero.
	RetryDelay time.Duration
}

func New(driver PageDriver, disc *discover.Discoverer, folder string, logger *log.Logger) *Orchestrator {
	return &Orchestrator{
		driver:     driver,
		disc:       disc,
		folder:     folder,
		log:        logger,
		RetryDelay: 2 * time.Second,
	}
}

// ExportOne validates and exports a single user-supplied outline URL. Any
// failure is fatal to the run: a bad URL in single mode is a user error,
// not a batch entry to skip.
func (o *Orchestrator) ExportOne(outlineURL, filename string) error {
	if err := o.navigate(outlineURL); err != nil {
		return err
	}
	html, err := o.driver.HTML()
	if err != nil {
		return err
	}
	if !gradescope.IsAssignmentOutline(html) {
		return fmt.Errorf("%s: %w", outlineURL, ErrNotOutline)
	}
	return o.exportCurrent(ensurePDFExt(filename))
}

// ExportAll discovers every online assignment of a course and exports each
// in discovery order. Per-target failures are recorded and the loop moves
// on; only discovery of the listing itself can fail the whole run.
func (o *Orchestrator) ExportAll(courseURL string) (Summary, error) {
	listing, err := o.disc.Discover(courseURL)
	if err != nil {
		return Summary{}, err
	}
	o.log.Info("scanning assignments", "listing", listing.URL, "rows", listing.Candidates)

	tracker := progress.NewTracker(listing.Candidates)
	defer tracker.Finish()

	var summary Summary
	for a := range listing.Assignments() {
		tracker.Advance(a.Name)

		res := Result{Assignment: a, State: StateValidating}
		res.State = StateExporting
		if err := o.exportTarget(a); err != nil {
			o.log.Error("export failed", "name", a.Name, "err", err)
			res.State = StateFailed
			res.Err = err
		} else {
			res.State = StateSucceeded
		}
		summary.Results = append(summary.Results, res)
	}
	return summary, nil
}

func (o *Orchestrator) exportTarget(a discover.Assignment) error {
	if err := o.navigate(a.OutlineURL); err != nil {
		return err
	}
	return o.exportCurrent(sanitizeName(a.Name) + ".pdf")
}

// exportCurrent prints the currently loaded page into the output folder.
// Re-running against the same target overwrites the file with identical
// content, so exports are safe to repeat.
func (o *Orchestrator) exportCurrent(filename string) error {
	if err := o.driver.Evaluate(gradescope.OutlineCleanupScript); err != nil {
		return err
	}
	pdf, err := o.driver.PrintToPDF()
	if err != nil {
		return err
	}

	path := filepath.Join(o.folder, filename)
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	o.log.Info("saved", "file", path)
	return nil
}

// navigate loads a URL, retrying with linear backoff on failed or stalled
// loads.
func (o *Orchestrator) navigate(url string) error {
	var err error
	for attempt := 1; attempt <= navAttempts; attempt++ {
		if err = o.driver.Navigate(url); err == nil {
			return nil
		}
		if attempt < navAttempts {
			o.log.Warn("page load failed, retrying",
				"url", progress.TruncateURL(url, 60), "attempt", attempt, "err", err)
			time.Sleep(o.RetryDelay * time.Duration(attempt))
		}
	}
	return err
}

// sanitizeName makes an assignment display name safe to use as a file name.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	unsafe := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}
	for _, ch := range unsafe {
		name = strings.ReplaceAll(name, ch, "_")
	}
	if name == "" {
		name = "assignment"
	}
	return name
}

func ensurePDFExt(name string) string {
	if filepath.Ext(name) != ".pdf" {
		return name + ".pdf"
	}
	return name
}
