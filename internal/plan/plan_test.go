package plan

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loginPlan = `# Add login page

Some preamble the model wrote that belongs to no section.

## Create route

- **Files to add to Aider:** routes.py
- **Goal:** Register the /login route.

## Add form

- **Files to add to Aider:** templates/login.html
- **Goal:** Render the login form.
`

func TestParse(t *testing.T) {
	p, err := Parse(loginPlan)
	require.NoError(t, err)

	assert.Equal(t, "Add login page", p.Title)
	assert.Equal(t, "add-login-page", p.Slug)
	require.Len(t, p.Sections, 2)

	assert.Equal(t, 0, p.Sections[0].Index)
	assert.Equal(t, "Create route", p.Sections[0].Title)
	assert.Contains(t, p.Sections[0].Body, "routes.py")
	// Preamble before the first section heading is dropped from bodies.
	assert.NotContains(t, p.Sections[0].Body, "preamble")

	assert.Equal(t, 1, p.Sections[1].Index)
	assert.Equal(t, "Add form", p.Sections[1].Title)
	assert.Contains(t, p.Sections[1].Body, "login.html")
}

func TestParseNoHeadings(t *testing.T) {
	raw := "Sorry, I cannot produce a plan for that."
	_, err := Parse(raw)

	var malformed *MalformedPlanError
	require.True(t, errors.As(err, &malformed))
	// Raw text must be preserved for debugging.
	assert.Equal(t, raw, malformed.Raw)
}

func TestParseMissingTitle(t *testing.T) {
	p, err := Parse("## Only step\n\nDo the thing.\n")
	require.NoError(t, err)
	assert.Equal(t, "untitled-plan", p.Title)
	assert.Equal(t, "untitled-plan", p.Slug)
}

func TestParseLastSectionRunsToEnd(t *testing.T) {
	p, err := Parse("# T\n\n## One\nfirst\n\n## Two\nsecond line a\nsecond line b")
	require.NoError(t, err)
	require.Len(t, p.Sections, 2)
	assert.Equal(t, "second line a\nsecond line b", p.Sections[1].Body)
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Add login page", "add-login-page"},
		{"  Spaces   everywhere  ", "spaces-everywhere"},
		{"Weird!@# Chars$%^", "weird-chars"},
		{"already-slugged", "already-slugged"},
		{"UPPER Case", "upper-case"},
		{"---", "default-plan-title"},
		{"", "default-plan-title"},
		{"a/b\\c", "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			got := Slugify(tt.title)
			assert.Equal(t, tt.want, got)
			// Deterministic and filesystem-safe.
			assert.Equal(t, got, Slugify(tt.title))
			assert.NotContains(t, got, "/")
			assert.NotContains(t, got, "\\")
			assert.NotEmpty(t, got)
		})
	}
}

func TestSectionAccessor(t *testing.T) {
	p, err := Parse(loginPlan)
	require.NoError(t, err)

	require.NotNil(t, p.Section(0))
	assert.Equal(t, "Create route", p.Section(0).Title)
	assert.Nil(t, p.Section(-1))
	assert.Nil(t, p.Section(2))
}

func TestParseRejectsDeepHeadingsAsSections(t *testing.T) {
	p, err := Parse("# T\n\n## Step\nbody\n\n### Sub-detail\nmore body\n")
	require.NoError(t, err)
	require.Len(t, p.Sections, 1)
	// H3 content stays inside the enclosing section body.
	assert.True(t, strings.Contains(p.Sections[0].Body, "Sub-detail"))
}
