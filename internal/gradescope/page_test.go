package gradescope

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const outlineFixture = `<html><body>
<div class="actionBar"><button>Save</button></div>
<div>
  <div class="onlineAssignment">
    <h2>Question 1</h2>
    <p>Prove that the algorithm terminates.</p>
  </div>
</div>
</body></html>`

const courseHomeFixture = `<html><body>
<h1>CS 101</h1>
<div class="courseDescription">Intro to computing.</div>
<table class="table"><tr><td>Week 1</td></tr></table>
</body></html>`

const loginFormFixture = `<html><body>
<form action="/login"><input type="submit" value="Log In"></form>
</body></html>`

func TestIsAssignmentOutline(t *testing.T) {
	assert.True(t, IsAssignmentOutline(outlineFixture))
	assert.False(t, IsAssignmentOutline(courseHomeFixture))
	assert.False(t, IsAssignmentOutline(""))
}

func TestIsAuthenticated(t *testing.T) {
	assert.True(t, IsAuthenticated(courseHomeFixture))
	assert.False(t, IsAuthenticated(loginFormFixture))
}

func TestNormalizeCourseURL(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{
			name: "bare course homepage",
			in:   "https://www.gradescope.com/courses/12345",
			want: "https://www.gradescope.com/courses/12345/assignments",
		},
		{
			name: "already a listing",
			in:   "https://www.gradescope.com/courses/12345/assignments",
			want: "https://www.gradescope.com/courses/12345/assignments",
		},
		{
			name: "course homepage with trailing slash",
			in:   "https://www.gradescope.com/courses/777/",
			want: "https://www.gradescope.com/courses/777/assignments",
		},
		{
			name:    "not a course URL",
			in:      "https://www.gradescope.com/account",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeCourseURL("https://www.gradescope.com", tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOutlineURL(t *testing.T) {
	base, err := url.Parse("https://www.gradescope.com")
	require.NoError(t, err)

	tests := []struct {
		name string
		href string
		want string
	}{
		{
			name: "relative href",
			href: "/courses/123/assignments/456",
			want: "https://www.gradescope.com/courses/123/assignments/456/outline/edit",
		},
		{
			name: "trailing slash href",
			href: "/courses/123/assignments/456/",
			want: "https://www.gradescope.com/courses/123/assignments/456/outline/edit",
		},
		{
			name: "absolute href",
			href: "https://www.gradescope.com/courses/9/assignments/8",
			want: "https://www.gradescope.com/courses/9/assignments/8/outline/edit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := OutlineURL(base, tt.href)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
