package ui

import (
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazyaider/lazyaider/internal/config"
)

func newSelectorStore(t *testing.T, names ...string) *config.Store {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), config.FileName))
	require.NoError(t, err)
	for _, name := range names {
		_, err := cfg.SelectOrCreate(name)
		require.NoError(t, err)
	}
	return cfg
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestSelectorListsSessionsInConfigOrder(t *testing.T) {
	s := NewSelector(newSelectorStore(t, "zulu", "alpha", "mike"))

	var got []string
	for _, idx := range s.filtered {
		got = append(got, s.names[idx])
	}
	assert.Equal(t, []string{"zulu", "alpha", "mike"}, got)
}

func TestSelectorFuzzyFilter(t *testing.T) {
	s := NewSelector(newSelectorStore(t, "backend", "frontend", "docs"))

	s.filter.SetValue("bcknd")
	s.applyFilter()

	require.Len(t, s.filtered, 1)
	assert.Equal(t, "backend", s.names[s.filtered[0]])

	s.filter.SetValue("")
	s.applyFilter()
	assert.Len(t, s.filtered, 3)
}

func TestSelectorChoose(t *testing.T) {
	s := NewSelector(newSelectorStore(t, "one", "two"))

	_, _ = s.Update(tea.KeyMsg{Type: tea.KeyDown})
	_, cmd := s.Update(tea.KeyMsg{Type: tea.KeyEnter})

	require.NotNil(t, cmd, "enter on a session should quit")
	require.NotNil(t, s.Result())
	assert.Equal(t, "two", s.Result().Name)
	assert.False(t, s.Result().Created)
}

func TestSelectorCreateValidation(t *testing.T) {
	s := NewSelector(newSelectorStore(t, "taken"))

	_, _ = s.Update(keyRune('n'))
	require.Equal(t, modeCreate, s.mode)

	// Duplicate name is rejected in place.
	s.nameInput.SetValue("taken")
	_, _ = s.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, s.Result())
	assert.NotEmpty(t, s.errMsg)

	// Names tmux cannot address are rejected too.
	s.nameInput.SetValue("has space")
	_, _ = s.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, s.Result())
	assert.NotEmpty(t, s.errMsg)

	s.nameInput.SetValue("fresh")
	_, cmd := s.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	require.NotNil(t, s.Result())
	assert.Equal(t, "fresh", s.Result().Name)
	assert.True(t, s.Result().Created)
}

func TestSelectorRenameUpdatesConfig(t *testing.T) {
	cfg := newSelectorStore(t, "old-name", "other")
	s := NewSelector(cfg)

	_, _ = s.Update(keyRune('r'))
	require.Equal(t, modeRename, s.mode)

	// Renaming onto an existing session is rejected.
	s.nameInput.SetValue("other")
	_, _ = s.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.NotEmpty(t, s.errMsg)
	assert.NotNil(t, cfg.FindSession("old-name"))

	s.nameInput.SetValue("new-name")
	_, _ = s.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, modeList, s.mode)
	assert.Nil(t, cfg.FindSession("old-name"))
	assert.NotNil(t, cfg.FindSession("new-name"))
}

func TestSelectorQuitWithoutChoice(t *testing.T) {
	s := NewSelector(newSelectorStore(t, "one"))

	_, cmd := s.Update(keyRune('q'))
	require.NotNil(t, cmd)
	assert.Nil(t, s.Result())
}
