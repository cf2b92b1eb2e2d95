package export

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-scripts/gsexport/internal/browser"
	"github.com/go-scripts/gsexport/internal/session"
)

type fakeApplier struct {
	errs  []error
	calls int
}

func (f *fakeApplier) ApplyIdentity(session.Identity) error {
	f.calls++
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func savedStore(t *testing.T) *session.Store {
	t.Helper()
	store := session.NewStore(filepath.Join(t.TempDir(), "cookies.json"))
	require.NoError(t, store.Save(session.Identity{Tokens: []session.Token{
		{Name: "_gradescope_session", Value: "old", Domain: "www.gradescope.com", Path: "/"},
	}}))
	return store
}

func emptyStore(t *testing.T) *session.Store {
	t.Helper()
	return session.NewStore(filepath.Join(t.TempDir(), "cookies.json"))
}

func countingLogin(calls *int, err error) LoginFunc {
	return func() (session.Identity, error) {
		*calls++
		if err != nil {
			return session.Identity{}, err
		}
		return session.Identity{Tokens: []session.Token{
			{Name: "_gradescope_session", Value: "fresh", Domain: "www.gradescope.com", Path: "/"},
		}}, nil
	}
}

func TestEstablishSessionAcceptsSavedIdentity(t *testing.T) {
	applier := &fakeApplier{}
	logins := 0

	err := EstablishSession(applier, savedStore(t), countingLogin(&logins, nil), testLogger())
	require.NoError(t, err)
	assert.Equal(t, 1, applier.calls)
	assert.Zero(t, logins, "an accepted identity must not trigger a login")
}

func TestEstablishSessionRetriesOnceOnExpiry(t *testing.T) {
	applier := &fakeApplier{errs: []error{browser.ErrAuthExpired}}
	logins := 0

	err := EstablishSession(applier, savedStore(t), countingLogin(&logins, nil), testLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, applier.calls)
	assert.Equal(t, 1, logins)
}

func TestEstablishSessionFailsOnSecondExpiry(t *testing.T) {
	applier := &fakeApplier{errs: []error{browser.ErrAuthExpired, browser.ErrAuthExpired}}
	logins := 0

	err := EstablishSession(applier, savedStore(t), countingLogin(&logins, nil), testLogger())
	assert.ErrorIs(t, err, browser.ErrAuthExpired)
	assert.Equal(t, 1, logins, "exactly one re-login attempt")
}

func TestEstablishSessionLogsInWhenNothingSaved(t *testing.T) {
	applier := &fakeApplier{}
	logins := 0

	err := EstablishSession(applier, emptyStore(t), countingLogin(&logins, nil), testLogger())
	require.NoError(t, err)
	assert.Equal(t, 1, logins)
	assert.Equal(t, 1, applier.calls)
}

func TestEstablishSessionPropagatesLoginError(t *testing.T) {
	applier := &fakeApplier{}
	logins := 0
	loginErr := errors.New("invalid email/password combination")

	err := EstablishSession(applier, emptyStore(t), countingLogin(&logins, loginErr), testLogger())
	assert.ErrorIs(t, err, loginErr)
	assert.Zero(t, applier.calls)
}

func TestEstablishSessionOtherApplyErrorsAreFatal(t *testing.T) {
	applier := &fakeApplier{errs: []error{errors.New("browser crashed")}}
	logins := 0

	err := EstablishSession(applier, savedStore(t), countingLogin(&logins, nil), testLogger())
	assert.Error(t, err)
	assert.Zero(t, logins)
}
