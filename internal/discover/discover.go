package discover

import (
	"fmt"
	"iter"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"

	"github.com/go-scripts/gsexport/internal/gradescope"
)

// PageDriver is the slice of the browser bridge the discoverer needs.
type PageDriver interface {
	Navigate(url string) error
	HTML() (string, error)
}

// Assignment is one exportable online assignment found on a course's
// assignments listing.
type Assignment struct {
	Name       string
	OutlineURL string
}

// Listing is the outcome of scanning one course's assignments page.
// Candidates counts the rows found before validation; the assignment
// sequence validates lazily and is meant to be consumed once.
type Listing struct {
	URL        string
	Candidates int
	seq        iter.Seq[Assignment]
}

// Assignments returns the validated assignment sequence.
func (l *Listing) Assignments() iter.Seq[Assignment] {
	return l.seq
}

// Discoverer finds online assignments by rendering a course's assignments
// listing through the browser bridge.
type Discoverer struct {
	driver PageDriver
	base   *url.URL
	log    *log.Logger
}

func New(driver PageDriver, baseURL string, logger *log.Logger) (*Discoverer, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	return &Discoverer{driver: driver, base: base, log: logger}, nil
}

// Discover normalizes the course URL, renders the assignments listing once,
// and returns its rows as a lazily validated sequence. Each candidate is
// checked by loading its outline page; rows that fail to load or are not
// online assignments are dropped with a warning. Listing-level failures are
// returned eagerly.
func (d *Discoverer) Discover(courseURL string) (*Listing, error) {
	listingURL, err := gradescope.NormalizeCourseURL(d.base.String(), courseURL)
	if err != nil {
		return nil, err
	}

	if err := d.driver.Navigate(listingURL); err != nil {
		return nil, err
	}
	html, err := d.driver.HTML()
	if err != nil {
		return nil, err
	}

	candidates, err := parseListing(d.base, html)
	if err != nil {
		return nil, err
	}

	seq := func(yield func(Assignment) bool) {
		for _, a := range candidates {
			if err := d.driver.Navigate(a.OutlineURL); err != nil {
				d.log.Warn("skipping assignment, outline page failed to load",
					"name", a.Name, "url", a.OutlineURL, "err", err)
				continue
			}
			page, err := d.driver.HTML()
			if err != nil {
				d.log.Warn("skipping assignment, could not read outline page",
					"name", a.Name, "err", err)
				continue
			}
			if !gradescope.IsAssignmentOutline(page) {
				d.log.Warn("skipping assignment, not an online assignment",
					"name", a.Name, "url", a.OutlineURL)
				continue
			}
			if !yield(a) {
				return
			}
		}
	}

	return &Listing{URL: listingURL, Candidates: len(candidates), seq: seq}, nil
}

// parseListing extracts assignment name/link pairs from the rendered
// listing markup, in page order.
func parseListing(base *url.URL, html string) ([]Assignment, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse assignments listing: %w", err)
	}

	var out []Assignment
	doc.Find(gradescope.ListingLinkSelector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}
		name := strings.TrimSpace(s.Text())
		if name == "" {
			return
		}
		outline, err := gradescope.OutlineURL(base, href)
		if err != nil {
			return
		}
		out = append(out, Assignment{Name: name, OutlineURL: outline})
	})
	return out, nil
}
