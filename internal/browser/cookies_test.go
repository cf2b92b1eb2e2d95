package browser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-scripts/gsexport/internal/session"
)

func TestCookieParams(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	id := session.Identity{Tokens: []session.Token{
		{Name: "plain", Value: "v1", Domain: "www.gradescope.com", Path: "/"},
		{Name: "dotted", Value: "v2", Domain: ".gradescope.com", Path: "/courses"},
		{Name: "nopath", Value: "v3", Domain: "www.gradescope.com"},
		{Name: "future", Value: "v4", Domain: "www.gradescope.com", Path: "/", Expires: now.Unix() + 3600, Secure: true, HTTPOnly: true},
		{Name: "expired", Value: "v5", Domain: "www.gradescope.com", Path: "/", Expires: now.Unix() - 1},
	}}

	params := cookieParams(id, now)
	require.Len(t, params, 4)

	byName := make(map[string]int)
	for i, p := range params {
		byName[p.Name] = i
	}

	_, hasExpired := byName["expired"]
	assert.False(t, hasExpired, "expired tokens must be dropped")

	assert.Equal(t, "gradescope.com", params[byName["dotted"]].Domain)
	assert.Equal(t, "/", params[byName["nopath"]].Path)

	future := params[byName["future"]]
	require.NotNil(t, future.Expires)
	assert.True(t, future.Secure)
	assert.True(t, future.HTTPOnly)

	assert.Nil(t, params[byName["plain"]].Expires)
}

func TestCookieParamsEmptyIdentity(t *testing.T) {
	assert.Empty(t, cookieParams(session.Identity{}, time.Now()))
}
