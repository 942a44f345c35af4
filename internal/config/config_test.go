package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return &Store{
		path:     filepath.Join(t.TempDir(), FileName),
		baseDir:  t.TempDir(),
		Settings: defaultSettings(),
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaultsWhenMissing(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)

	assert.Equal(t, DefaultLLMModel, s.Settings.LLMModel)
	assert.Equal(t, DefaultThemeName, s.Settings.ThemeName)
	assert.Equal(t, DefaultSidepanePercentWidth, s.Settings.SidepanePercentWidth)
	assert.Equal(t, DefaultDelaySendInput, s.Settings.DelaySendInput)
	assert.Empty(t, s.ListSessions())
}

func TestLoadTypedValues(t *testing.T) {
	path := writeConfig(t, `
llm_model: claude-sonnet-4
llm_api_key: sk-test
theme_name: dark
sidepane_percent_width: 30
delay_send_input: 1.5
label_color_completed: "#00ff00"
managed_sessions:
  demo:
    active_plan_name: add-login-page
    plan_progress:
      add-login-page:
        last_aider_step: 1
`)
	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "claude-sonnet-4", s.Settings.LLMModel)
	assert.Equal(t, "sk-test", s.Settings.LLMAPIKey)
	assert.Equal(t, "dark", s.Settings.ThemeName)
	assert.Equal(t, 30, s.Settings.SidepanePercentWidth)
	assert.Equal(t, 1.5, s.Settings.DelaySendInput)
	assert.Equal(t, "#00ff00", s.Settings.LabelColorCompleted)

	sess := s.FindSession("demo")
	require.NotNil(t, sess)
	assert.Equal(t, "add-login-page", sess.ActivePlan)
	assert.Equal(t, 1, s.LastStep("demo", "add-login-page"))
}

func TestLoadWrongTypesFallBack(t *testing.T) {
	path := writeConfig(t, `
sidepane_percent_width: "wide"
delay_send_input: [1, 2]
managed_sessions: "oops"
`)
	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultSidepanePercentWidth, s.Settings.SidepanePercentWidth)
	assert.Equal(t, DefaultDelaySendInput, s.Settings.DelaySendInput)
	assert.Empty(t, s.ListSessions())
}

func TestFlushRoundTripPreservesUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
llm_model: gpt-4o
some_future_key:
  nested: value
managed_sessions:
  demo: {}
`)
	s, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, s.Flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, yaml.Unmarshal(data, &raw))
	assert.Equal(t, "gpt-4o", raw["llm_model"])
	nested, ok := raw["some_future_key"].(map[string]any)
	require.True(t, ok, "unknown key dropped on round trip")
	assert.Equal(t, "value", nested["nested"])
}

func TestSessionOrderStableAcrossReload(t *testing.T) {
	s := newTestStore(t)
	for _, name := range []string{"charlie", "alpha", "bravo"} {
		_, err := s.SelectOrCreate(name)
		require.NoError(t, err)
	}

	reloaded, err := Load(s.Path())
	require.NoError(t, err)

	var names []string
	for _, sess := range reloaded.ListSessions() {
		names = append(names, sess.Name)
	}
	assert.Equal(t, []string{"charlie", "alpha", "bravo"}, names)
}

func TestFlushAtomicKeepsPriorFileOnFailure(t *testing.T) {
	s := newTestStore(t)
	_, err := s.SelectOrCreate("demo")
	require.NoError(t, err)

	before, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	// Point the store at an unwritable path; the original file is untouched.
	goodPath := s.path
	s.path = filepath.Join(goodPath, "impossible", FileName)
	_, err = s.SelectOrCreate("other")
	require.Error(t, err)
	s.path = goodPath

	after, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)
	// The failed creation rolled back in memory too.
	assert.Nil(t, s.FindSession("other"))
}

func TestNegativeStepClampedAtLoad(t *testing.T) {
	path := writeConfig(t, `
managed_sessions:
  demo:
    plan_progress:
      p:
        last_aider_step: -7
`)
	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, NotStarted, s.LastStep("demo", "p"))
}
