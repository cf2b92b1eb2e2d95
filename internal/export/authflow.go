package export

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/go-scripts/gsexport/internal/browser"
	"github.com/go-scripts/gsexport/internal/session"
)

// IdentityApplier is the slice of the browser bridge the auth flow needs.
type IdentityApplier interface {
	ApplyIdentity(session.Identity) error
}

// LoginFunc runs the interactive login handshake and returns a fresh
// identity. It is invoked at most once per EstablishSession call.
type LoginFunc func() (session.Identity, error)

type authState int

const (
	authLoading authState = iota
	authApplying
	authExpired
	authAuthenticated
	authFailed
)

// EstablishSession gets the browser into an authenticated state: it loads
// the saved identity and applies it, falling back to one fresh login when
// no identity exists or the platform rejects the saved one. A rejection of
// the freshly obtained identity is fatal.
func EstablishSession(bridge IdentityApplier, store *session.Store, login LoginFunc, logger *log.Logger) error {
	var (
		id       session.Identity
		err      error
		reauthed bool
	)

	state := authLoading
	for {
		switch state {
		case authLoading:
			id, err = store.Load()
			switch {
			case errors.Is(err, session.ErrNotFound):
				logger.Debug("no saved session", "path", store.Path)
				err = nil
				state = authExpired
			case err != nil:
				state = authFailed
			default:
				logger.Debug("restored session", "path", store.Path, "tokens", len(id.Tokens))
				state = authApplying
			}

		case authApplying:
			err = bridge.ApplyIdentity(id)
			switch {
			case err == nil:
				state = authAuthenticated
			case errors.Is(err, browser.ErrAuthExpired) && !reauthed:
				logger.Warn("saved session rejected, logging in again")
				state = authExpired
			case errors.Is(err, browser.ErrAuthExpired):
				err = fmt.Errorf("fresh login rejected: %w", err)
				state = authFailed
			default:
				state = authFailed
			}

		case authExpired:
			reauthed = true
			id, err = login()
			if err != nil {
				state = authFailed
				continue
			}
			state = authApplying

		case authAuthenticated:
			return nil

		case authFailed:
			return err
		}
	}
}
