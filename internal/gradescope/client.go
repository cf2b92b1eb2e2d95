package gradescope

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/go-scripts/gsexport/internal/session"
)

// BaseURL is the Gradescope root. Tests point the client at a local server
// instead.
const BaseURL = "https://www.gradescope.com"

const (
	loginPath = "/login"
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

var (
	// ErrLoginFailed covers rejected credentials, including an HTTP 200
	// response that lands back on the login form.
	ErrLoginFailed = errors.New("failed to log in; invalid email/password combination")

	// ErrLoginShape means the login page no longer looks the way it should,
	// most likely because the platform changed its form.
	ErrLoginShape = errors.New("login page had no authenticity token")
)

// Client performs the login handshake over plain HTTP, without a rendering
// engine. The cookies it accumulates become the session identity handed to
// the browser.
type Client struct {
	baseURL *url.URL
	http    *resty.Client
	store   *session.Store
}

// NewClient builds a client rooted at baseURL. A non-nil store receives the
// session identity after every successful login.
func NewClient(baseURL string, store *session.Store) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetCookieJar(jar)
	client.SetHeader("User-Agent", userAgent)
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(u.Hostname()))
	client.SetTimeout(20 * time.Second)

	return &Client{baseURL: u, http: client, store: store}, nil
}

// Login authenticates with the given credentials and returns the resulting
// session identity. Credentials are only held for the duration of the call.
func (c *Client) Login(ctx context.Context, email, password string) (session.Identity, error) {
	res, err := c.http.R().SetContext(ctx).Get(loginPath)
	if err != nil {
		return session.Identity{}, fmt.Errorf("fetch login page: %w", err)
	}
	if res.IsError() {
		return session.Identity{}, fmt.Errorf("fetch login page: status %d", res.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return session.Identity{}, fmt.Errorf("parse login page: %w", err)
	}
	token := doc.Find("form input[name=authenticity_token]").AttrOr("value", "")
	if token == "" {
		return session.Identity{}, ErrLoginShape
	}

	res, err = c.http.R().
		SetContext(ctx).
		SetHeader("Origin", strings.TrimSuffix(c.baseURL.String(), "/")).
		SetHeader("Referer", c.baseURL.JoinPath(loginPath).String()).
		SetFormData(map[string]string{
			"utf8":                     "✓",
			"authenticity_token":       token,
			"session[email]":           email,
			"session[password]":        password,
			"session[remember_me]":     "1",
			"commit":                   "Log In",
			"session[remember_me_sso]": "0",
		}).
		Post(loginPath)
	if err != nil {
		return session.Identity{}, fmt.Errorf("submit login form: %w", err)
	}
	if res.IsError() {
		return session.Identity{}, fmt.Errorf("login returned status %d: %w", res.StatusCode(), ErrLoginFailed)
	}

	doc, err = goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return session.Identity{}, fmt.Errorf("parse login response: %w", err)
	}
	if hasCredentialsAlert(doc) || hasLoginForm(doc) {
		return session.Identity{}, ErrLoginFailed
	}

	id := c.identity()
	if id.Empty() {
		return session.Identity{}, fmt.Errorf("login response carried no session cookies: %w", ErrLoginFailed)
	}
	if c.store != nil {
		if err := c.store.Save(id); err != nil {
			return session.Identity{}, fmt.Errorf("persist session: %w", err)
		}
	}
	return id, nil
}

// identity drains the cookie jar into a session identity. The standard jar
// only exposes name/value pairs, so every token is scoped to the platform
// host with the root path.
func (c *Client) identity() session.Identity {
	jar := c.http.GetClient().Jar
	if jar == nil {
		return session.Identity{}
	}

	var id session.Identity
	for _, ck := range jar.Cookies(c.baseURL) {
		id.Tokens = append(id.Tokens, session.Token{
			Name:   ck.Name,
			Value:  ck.Value,
			Domain: c.baseURL.Hostname(),
			Path:   "/",
		})
	}
	return id
}

func hasCredentialsAlert(doc *goquery.Document) bool {
	found := false
	doc.Find(".alert-error span").Each(func(_ int, s *goquery.Selection) {
		if strings.Contains(s.Text(), "Invalid email/password combination") {
			found = true
		}
	})
	return found
}

func hasLoginForm(doc *goquery.Document) bool {
	return doc.Find(`form input[type=submit][value="Log In"]`).Length() > 0
}
