package ui

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazyaider/lazyaider/internal/config"
	"github.com/lazyaider/lazyaider/internal/dispatch"
	"github.com/lazyaider/lazyaider/internal/plan"
	"github.com/lazyaider/lazyaider/internal/planner"
	"github.com/lazyaider/lazyaider/internal/tmux"
)

const sidebarPlan = `# Add login page

## 1: Create route
- routes.py

route body

## 2: Add form
- templates/login.html

form body

## 3: Wire backend
- backend.py

backend body
`

// recordingPane captures dispatched text for assertions.
type recordingPane struct {
	events []string
}

func (r *recordingPane) SendText(text string) error {
	r.events = append(r.events, "text:"+text)
	return nil
}

func (r *recordingPane) SendEnter() error {
	r.events = append(r.events, "enter")
	return nil
}

func newTestSidebar(t *testing.T) (*Sidebar, *config.Store, *recordingPane) {
	t.Helper()
	dir := t.TempDir()

	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	_, err = cfg.SelectOrCreate("demo")
	require.NoError(t, err)

	plans := plan.NewStore(filepath.Join(dir, "plans"))
	p, err := plan.Parse(sidebarPlan)
	require.NoError(t, err)
	_, err = plans.Save(p, plan.SaveOptions{})
	require.NoError(t, err)
	require.NoError(t, cfg.BindPlan("demo", p.Slug))

	pane := &recordingPane{}
	s := NewSidebar(SidebarDeps{
		Config:  cfg,
		Plans:   plans,
		Bridge:  dispatch.New(pane, 0),
		Session: tmux.NewSession("demo"),
	})
	return s, cfg, pane
}

func TestSidebarLoadsActivePlan(t *testing.T) {
	s, _, _ := newTestSidebar(t)

	require.NotNil(t, s.active)
	assert.Equal(t, "add-login-page", s.active.Slug)
	assert.Len(t, s.active.Sections, 3)
	assert.Equal(t, 0, s.cursor, "fresh plan starts at the first section")
}

func TestSidebarMarkDoneAndAdvance(t *testing.T) {
	s, cfg, _ := newTestSidebar(t)

	_, _ = s.Update(keyRune('d'))
	assert.Equal(t, 0, cfg.LastStep("demo", "add-login-page"))

	_, _ = s.Update(keyRune('a'))
	assert.Equal(t, 1, cfg.LastStep("demo", "add-login-page"))
	assert.Equal(t, 2, s.cursor, "advance moves the cursor to the next pending section")
}

func TestSidebarSendSection(t *testing.T) {
	s, _, pane := newTestSidebar(t)
	s.resetBefore = false

	_, cmd := s.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	msg := cmd()

	done, ok := msg.(sendDoneMsg)
	require.True(t, ok)
	require.NoError(t, done.err)
	assert.Equal(t, []string{"text:/code route body", "enter"}, pane.events)
}

func TestSidebarSendSectionWithReset(t *testing.T) {
	s, _, pane := newTestSidebar(t)
	s.resetBefore = true

	_, cmd := s.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	_ = cmd()

	assert.Equal(t, []string{"text:/reset", "enter", "text:/code route body", "enter"}, pane.events)
}

func TestSidebarActionCycle(t *testing.T) {
	s, _, pane := newTestSidebar(t)
	s.resetBefore = false

	assert.Equal(t, dispatch.ActionCode, s.action)
	_, _ = s.Update(keyRune('m'))
	assert.Equal(t, dispatch.ActionAsk, s.action)
	_, _ = s.Update(keyRune('m'))
	assert.Equal(t, dispatch.ActionArchitect, s.action)
	_, _ = s.Update(keyRune('m'))
	assert.Equal(t, dispatch.ActionCode, s.action)

	// The selected action prefixes the dispatched section.
	_, _ = s.Update(keyRune('m'))
	_, cmd := s.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	_ = cmd()
	assert.Equal(t, []string{"text:/ask route body", "enter"}, pane.events)
}

func TestSidebarSendDoesNotTouchProgress(t *testing.T) {
	s, cfg, _ := newTestSidebar(t)

	_, cmd := s.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	_ = cmd()

	assert.Equal(t, config.NotStarted, cfg.LastStep("demo", "add-login-page"))
}

func TestSidebarSectionMarks(t *testing.T) {
	s, cfg, _ := newTestSidebar(t)
	require.NoError(t, cfg.MarkStep("demo", "add-login-page", 0, 3))

	last := cfg.LastStep("demo", "add-login-page")
	assert.Equal(t, 0, last)

	completed := s.sectionLine(s.active.Sections[0], 0, last)
	current := s.sectionLine(s.active.Sections[1], 1, last)
	pending := s.sectionLine(s.active.Sections[2], 2, last)

	assert.Contains(t, completed, "✓")
	assert.Contains(t, current, "▶")
	assert.NotContains(t, pending, "✓")
	assert.NotContains(t, pending, "▶")
}

func TestSidebarPickerBindsPlan(t *testing.T) {
	s, cfg, _ := newTestSidebar(t)

	// Store a second plan and pick it.
	p, err := plan.Parse("# Other work\n\n## 1: Step\nbody\n")
	require.NoError(t, err)
	_, err = s.plans.Save(p, plan.SaveOptions{})
	require.NoError(t, err)

	_, _ = s.Update(keyRune('p'))
	require.Equal(t, sidebarPicker, s.mode)
	require.Equal(t, []string{"add-login-page", "other-work"}, s.slugs)

	_, _ = s.Update(tea.KeyMsg{Type: tea.KeyDown})
	_, _ = s.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, sidebarMain, s.mode)
	assert.Equal(t, "other-work", cfg.FindSession("demo").ActivePlan)
	assert.Equal(t, "other-work", s.active.Slug)
}

func TestSidebarConfirmDestroyCancel(t *testing.T) {
	s, cfg, _ := newTestSidebar(t)

	_, _ = s.Update(keyRune('x'))
	require.Equal(t, sidebarConfirmDestroy, s.mode)

	_, _ = s.Update(keyRune('n'))
	assert.Equal(t, sidebarMain, s.mode)
	assert.NotNil(t, cfg.FindSession("demo"))
}

func TestSidebarStalePlanPointerCleared(t *testing.T) {
	s, cfg, _ := newTestSidebar(t)

	// Progress beyond the plan's section count gets reset on reload.
	require.NoError(t, cfg.MarkStep("demo", "add-login-page", 2, 3))
	shrunk, err := plan.Parse("# Add login page\n\n## 1: Only step\nbody\n")
	require.NoError(t, err)
	shrunk.Slug = "add-login-page"
	_, err = s.plans.Save(shrunk, plan.SaveOptions{Regenerate: true})
	require.NoError(t, err)

	s.loadActivePlan()
	assert.Equal(t, config.NotStarted, cfg.LastStep("demo", "add-login-page"))
}

func TestSidebarSectionEditAppliesChanges(t *testing.T) {
	s, _, _ := newTestSidebar(t)

	edited := "## 1: Create route (edited)\n- routes.py\n\nnew route body\n\n"
	tmp := filepath.Join(t.TempDir(), "section.md")
	require.NoError(t, os.WriteFile(tmp, []byte(edited), 0o644))

	_, _ = s.Update(sectionEditedMsg{slug: "add-login-page", index: 0, path: tmp})

	require.NotNil(t, s.active)
	require.Len(t, s.active.Sections, 3)
	assert.Equal(t, "1: Create route (edited)", s.active.Sections[0].Title)
	assert.Contains(t, s.active.Sections[0].Body, "new route body")
	assert.Equal(t, "2: Add form", s.active.Sections[1].Title)
	assert.Contains(t, s.status, "saved")

	// The temp file is cleaned up after splicing.
	_, err := os.Stat(tmp)
	assert.True(t, os.IsNotExist(err))
}

func TestSidebarSectionEditUnknownPlan(t *testing.T) {
	s, _, _ := newTestSidebar(t)

	tmp := filepath.Join(t.TempDir(), "section.md")
	require.NoError(t, os.WriteFile(tmp, []byte("## X\nbody\n"), 0o644))

	_, _ = s.Update(sectionEditedMsg{slug: "no-such-plan", index: 0, path: tmp})
	assert.Contains(t, s.status, "plan not found")
}

func TestSidebarEditTemplateSeedsOverride(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	s, cfg, _ := newTestSidebar(t)

	_, cmd := s.Update(keyRune('t'))
	require.NotNil(t, cmd, "editor command should be issued")

	// The editable copy is seeded with the built-in template and bound as
	// the session override before the editor opens.
	copyPath, err := filepath.Abs(config.PromptTemplatePath())
	require.NoError(t, err)
	data, err := os.ReadFile(copyPath)
	require.NoError(t, err)
	assert.Equal(t, planner.DefaultTemplate, string(data))
	assert.Equal(t, copyPath, cfg.PromptOverridePath("demo"))
}

func TestAiderCommandPrefersWrapper(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("VIRTUAL_ENV", "")

	assert.Equal(t, "aider", aiderCommand())

	require.NoError(t, os.WriteFile("aider.sh", []byte("#!/bin/sh\naider\n"), 0o755))
	assert.Equal(t, "./aider.sh", aiderCommand())
}

func TestAiderCommandVenvPrefix(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("VIRTUAL_ENV", "")

	assert.Equal(t, "aider", aiderCommand())

	script := filepath.Join(".venv", "bin", "activate")
	require.NoError(t, os.MkdirAll(filepath.Dir(script), 0o755))
	require.NoError(t, os.WriteFile(script, []byte("# venv"), 0o644))
	assert.Equal(t, `. ".venv/bin/activate" && aider`, aiderCommand())

	// An explicit VIRTUAL_ENV wins over directory detection.
	explicit := filepath.Join(dir, "other-env")
	require.NoError(t, os.MkdirAll(filepath.Join(explicit, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(explicit, "bin", "activate"), []byte("# venv"), 0o644))
	t.Setenv("VIRTUAL_ENV", explicit)
	assert.Equal(t, `. "`+filepath.Join(explicit, "bin", "activate")+`" && aider`, aiderCommand())
}

func TestSidebarViewShowsPlan(t *testing.T) {
	s, _, _ := newTestSidebar(t)
	s.width = 80

	view := s.View()
	assert.True(t, strings.Contains(view, "Add login page"))
	assert.True(t, strings.Contains(view, "Create route"))
}
