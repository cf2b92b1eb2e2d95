package browser

import (
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"

	"github.com/go-scripts/gsexport/internal/session"
)

// cookieParams converts session tokens into CDP cookie parameters. Tokens
// whose expiry has already passed are dropped, leading-dot domains are
// trimmed (the devtools protocol rejects them), and a missing path defaults
// to the root.
func cookieParams(id session.Identity, now time.Time) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(id.Tokens))
	for _, tok := range id.Tokens {
		p := &network.CookieParam{
			Name:     tok.Name,
			Value:    tok.Value,
			Domain:   strings.TrimPrefix(tok.Domain, "."),
			Path:     tok.Path,
			Secure:   tok.Secure,
			HTTPOnly: tok.HTTPOnly,
		}
		if p.Path == "" {
			p.Path = "/"
		}
		if tok.Expires > 0 {
			exp := time.Unix(tok.Expires, 0)
			if !exp.After(now) {
				continue
			}
			ts := cdp.TimeSinceEpoch(exp)
			p.Expires = &ts
		}
		params = append(params, p)
	}
	return params
}
