package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazyaider/lazyaider/internal/plan"
)

func TestAdvanceClampsAtUpperBound(t *testing.T) {
	s := newTestStore(t)
	const sections = 4

	// N+5 calls from -1 must land exactly on N-1 and never error.
	var last int
	var err error
	for i := 0; i < sections+5; i++ {
		last, err = s.Advance("demo", "p", sections)
		require.NoError(t, err)
		assert.Less(t, last, sections)
	}
	assert.Equal(t, sections-1, last)
	assert.Equal(t, sections-1, s.LastStep("demo", "p"))
}

func TestAdvanceEmptyPlan(t *testing.T) {
	s := newTestStore(t)
	last, err := s.Advance("demo", "p", 0)
	require.NoError(t, err)
	assert.Equal(t, NotStarted, last)
}

func TestMarkStepBounds(t *testing.T) {
	s := newTestStore(t)
	const sections = 3

	assert.ErrorIs(t, s.MarkStep("demo", "p", sections, sections), ErrInvalidIndex)
	assert.ErrorIs(t, s.MarkStep("demo", "p", -2, sections), ErrInvalidIndex)

	require.NoError(t, s.MarkStep("demo", "p", sections-1, sections))
	assert.Equal(t, sections-1, s.LastStep("demo", "p"))

	require.NoError(t, s.MarkStep("demo", "p", NotStarted, sections))
	assert.Equal(t, NotStarted, s.LastStep("demo", "p"))
}

func TestMarkStepInvalidIndexLeavesFileUntouched(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.MarkStep("demo", "p", 0, 3))

	before := mustRead(t, s.Path())
	assert.ErrorIs(t, s.MarkStep("demo", "p", 99, 3), ErrInvalidIndex)
	assert.Equal(t, before, mustRead(t, s.Path()))
}

func TestProgressIsPerSessionPlanPair(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.MarkStep("one", "shared-plan", 2, 5))
	require.NoError(t, s.MarkStep("two", "shared-plan", 0, 5))

	assert.Equal(t, 2, s.LastStep("one", "shared-plan"))
	assert.Equal(t, 0, s.LastStep("two", "shared-plan"))
}

func TestCurrentSectionScenario(t *testing.T) {
	// Generation returned two sections; bind, advance twice, inspect.
	p, err := plan.Parse("# Add login page\n\n## Create route\nroute body\n\n## Add form\nform body\n")
	require.NoError(t, err)

	s := newTestStore(t)
	require.NoError(t, s.BindPlan("demo", p.Slug))

	assert.Nil(t, s.CurrentSection("demo", p))

	_, err = s.Advance("demo", p.Slug, len(p.Sections))
	require.NoError(t, err)
	last, err := s.Advance("demo", p.Slug, len(p.Sections))
	require.NoError(t, err)

	assert.Equal(t, 1, last)
	cur := s.CurrentSection("demo", p)
	require.NotNil(t, cur)
	assert.Equal(t, "Add form", cur.Title)
}

func TestSyncProgressResetsStalePointer(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.MarkStep("demo", "feature", 4, 6))

	// The plan was regenerated with only two sections.
	p, err := plan.Parse("# Feature\n\n## A\na\n\n## B\nb\n")
	require.NoError(t, err)
	require.Equal(t, "feature", p.Slug)

	step, err := s.SyncProgress("demo", p)
	require.NoError(t, err)
	assert.Equal(t, NotStarted, step)
	assert.Equal(t, NotStarted, s.LastStep("demo", "feature"))
}

func TestSyncProgressKeepsValidPointer(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.MarkStep("demo", "feature", 1, 6))

	p, err := plan.Parse("# Feature\n\n## A\na\n\n## B\nb\n\n## C\nc\n")
	require.NoError(t, err)

	step, err := s.SyncProgress("demo", p)
	require.NoError(t, err)
	assert.Equal(t, 1, step)
}

func mustRead(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
