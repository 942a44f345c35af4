package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectOrCreate(t *testing.T) {
	s := newTestStore(t)

	sess, err := s.SelectOrCreate("demo")
	require.NoError(t, err)
	assert.Equal(t, "demo", sess.Name)
	assert.Empty(t, sess.ActivePlan)

	// Second call returns the same entry, no duplicate.
	again, err := s.SelectOrCreate("demo")
	require.NoError(t, err)
	assert.Same(t, sess, again)
	assert.Len(t, s.ListSessions(), 1)
}

func TestRenameDuplicateFails(t *testing.T) {
	s := newTestStore(t)
	_, err := s.SelectOrCreate("a")
	require.NoError(t, err)
	_, err = s.SelectOrCreate("b")
	require.NoError(t, err)

	err = s.Rename("a", "b")
	assert.ErrorIs(t, err, ErrDuplicateSession)
	// Nothing moved.
	assert.NotNil(t, s.FindSession("a"))
	assert.NotNil(t, s.FindSession("b"))
}

func TestRenameToSelfIsNoop(t *testing.T) {
	s := newTestStore(t)
	_, err := s.SelectOrCreate("a")
	require.NoError(t, err)
	require.NoError(t, s.Rename("a", "a"))
	assert.NotNil(t, s.FindSession("a"))
}

func TestRenameCarriesProgress(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.BindPlan("a", "my-plan"))
	require.NoError(t, s.MarkStep("a", "my-plan", 2, 5))

	require.NoError(t, s.Rename("a", "c"))

	assert.Nil(t, s.FindSession("a"))
	moved := s.FindSession("c")
	require.NotNil(t, moved)
	assert.Equal(t, "my-plan", moved.ActivePlan)
	assert.Equal(t, 2, s.LastStep("c", "my-plan"))

	// And it survives a reload.
	reloaded, err := Load(s.Path())
	require.NoError(t, err)
	assert.Nil(t, reloaded.FindSession("a"))
	assert.Equal(t, 2, reloaded.LastStep("c", "my-plan"))
}

func TestRenameUnknownSession(t *testing.T) {
	s := newTestStore(t)
	err := s.Rename("ghost", "new")
	assert.Error(t, err)
}

func TestBindPlanResumesProgress(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.BindPlan("demo", "plan-a"))
	require.NoError(t, s.MarkStep("demo", "plan-a", 3, 5))

	// Switch away and back; progress on plan-a is untouched.
	require.NoError(t, s.BindPlan("demo", "plan-b"))
	require.NoError(t, s.BindPlan("demo", "plan-a"))
	assert.Equal(t, 3, s.LastStep("demo", "plan-a"))
}

func TestBindPlanClear(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.BindPlan("demo", "plan-a"))
	require.NoError(t, s.BindPlan("demo", ""))
	assert.Empty(t, s.FindSession("demo").ActivePlan)
}

func TestPromptOverrideResolution(t *testing.T) {
	s := newTestStore(t)
	_, err := s.SelectOrCreate("demo")
	require.NoError(t, err)

	// No overrides configured.
	assert.Empty(t, s.PromptOverridePath("demo"))

	// Global override applies to every session.
	s.Settings.PromptOverridePath = "/abs/global.md"
	assert.Equal(t, "/abs/global.md", s.PromptOverridePath("demo"))
	assert.Equal(t, "/abs/global.md", s.PromptOverridePath(""))

	// Session override wins over global.
	require.NoError(t, s.SetPromptOverride("demo", "/abs/session.md"))
	assert.Equal(t, "/abs/session.md", s.PromptOverridePath("demo"))

	// Other sessions still get the global one.
	assert.Equal(t, "/abs/global.md", s.PromptOverridePath("elsewhere"))
}

func TestPromptOverrideRelativeResolvedAgainstConfigDir(t *testing.T) {
	s := newTestStore(t)
	s.Settings.PromptOverridePath = "templates/prompt.md"

	got := s.PromptOverridePath("")
	assert.Equal(t, s.baseDir+"/templates/prompt.md", got)
}
