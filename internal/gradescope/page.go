package gradescope

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ListingLinkSelector matches the per-assignment link in a course's
// assignments table.
const ListingLinkSelector = "div.table--primaryLink a"

// outlineSuffix is the page variant that shows an online assignment's full
// editable content, the only variant that prints faithfully.
const outlineSuffix = "outline/edit"

// OutlineCleanupScript strips everything but the assignment body before
// printing, and removes media constraints from stylesheets so print output
// matches the screen rendering.
const OutlineCleanupScript = `document.body.innerHTML = document.getElementsByClassName("onlineAssignment")[0].parentElement.innerHTML;
for (const link of document.head.getElementsByTagName("link")) {link.removeAttribute("media");}`

// IsAssignmentOutline reports whether the rendered page is an online
// assignment outline. Other assignment types have no onlineAssignment
// container and cannot be exported.
func IsAssignmentOutline(html string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	return doc.Find("div.onlineAssignment").Length() > 0
}

// IsAuthenticated reports whether the rendered page belongs to a logged-in
// session. Gradescope shows the login form on the root page whenever the
// session cookies are missing or expired.
func IsAuthenticated(html string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	return doc.Find(`form input[type=submit][value="Log In"]`).Length() == 0
}

var courseURLRegex = regexp.MustCompile(`/courses/(\d+)`)

// NormalizeCourseURL turns a bare course homepage URL into its assignments
// listing URL. URLs already pointing at the listing pass through unchanged.
func NormalizeCourseURL(base, raw string) (string, error) {
	if strings.Contains(raw, "assignments") {
		return raw, nil
	}
	m := courseURLRegex.FindStringSubmatch(raw)
	if m == nil {
		return "", fmt.Errorf("%q is not a course URL", raw)
	}
	return url.JoinPath(base, "courses", m[1], "assignments")
}

// OutlineURL resolves an assignment href from the listing page against the
// platform base and appends the outline suffix.
func OutlineURL(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSuffix(href, "/") + "/")
	if err != nil {
		return "", fmt.Errorf("bad assignment link %q: %w", href, err)
	}
	suffix, err := url.Parse(outlineSuffix)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).ResolveReference(suffix).String(), nil
}
