package ui

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/lazyaider/lazyaider/internal/config"
	"github.com/lazyaider/lazyaider/internal/dispatch"
	"github.com/lazyaider/lazyaider/internal/plan"
	"github.com/lazyaider/lazyaider/internal/planner"
	"github.com/lazyaider/lazyaider/internal/tmux"
)

// sidebarMode is which screen the sidebar is showing.
type sidebarMode int

const (
	sidebarMain sidebarMode = iota
	sidebarPicker
	sidebarFeature
	sidebarConfirmDestroy
)

// planRefreshMsg fires when the plans directory changed on disk.
type planRefreshMsg struct{}

// themeChangedMsg fires when the OS switched between light and dark.
type themeChangedMsg struct {
	theme Theme
}

// sendDoneMsg is the outcome of a dispatch into the shell pane.
type sendDoneMsg struct {
	what string
	err  error
}

// editorDoneMsg fires when the external template editor exits.
type editorDoneMsg struct {
	err error
}

// sectionEditedMsg fires when the external section editor exits; path is the
// temp file holding the edited text.
type sectionEditedMsg struct {
	slug  string
	index int
	path  string
	err   error
}

// Sidebar is the model running inside the dedicated tmux pane. It renders
// the active plan with progress marks and drives every session action:
// dispatching sections, marking progress, generating plans, detaching, and
// destroying the session.
type Sidebar struct {
	cfg     *config.Store
	plans   *plan.Store
	watcher *plan.Watcher
	bridge  *dispatch.Bridge
	session *tmux.Session
	name    string

	// newProtocol builds a fresh generation protocol for the feature flow.
	newProtocol func(method planner.ContextMethod) *planner.Protocol

	themeWatcher *ThemeWatcher

	mode        sidebarMode
	active      *plan.Plan
	slugs       []string
	cursor      int
	pickerIdx   int
	resetBefore bool
	action      dispatch.Action
	status      string
	feature     *FeatureInput

	width  int
	height int
}

// SidebarDeps wires the sidebar's collaborators.
type SidebarDeps struct {
	Config      *config.Store
	Plans       *plan.Store
	Watcher     *plan.Watcher
	Bridge      *dispatch.Bridge
	Session     *tmux.Session
	NewProtocol func(method planner.ContextMethod) *planner.Protocol
	ThemeWatch  *ThemeWatcher
}

// NewSidebar builds the sidebar for the given managed session.
func NewSidebar(deps SidebarDeps) *Sidebar {
	s := &Sidebar{
		cfg:          deps.Config,
		plans:        deps.Plans,
		watcher:      deps.Watcher,
		bridge:       deps.Bridge,
		session:      deps.Session,
		name:         deps.Session.Name,
		newProtocol:  deps.NewProtocol,
		themeWatcher: deps.ThemeWatch,
		resetBefore:  true,
		action:       dispatch.ActionCode,
	}
	s.loadActivePlan()
	return s
}

// loadActivePlan loads the session's bound plan and reconciles its progress
// pointer with the current section count.
func (s *Sidebar) loadActivePlan() {
	s.active = nil
	sess := s.cfg.FindSession(s.name)
	if sess == nil || sess.ActivePlan == "" {
		return
	}
	p, err := s.plans.LoadBySlug(sess.ActivePlan)
	if err != nil {
		if !errors.Is(err, plan.ErrPlanNotFound) {
			uiLog.Warn("active_plan_load_failed", slog.Any("error", err))
			s.status = "failed to load plan: " + sess.ActivePlan
		}
		return
	}
	if _, err := s.cfg.SyncProgress(s.name, p); err != nil {
		uiLog.Warn("progress_sync_failed", slog.Any("error", err))
	}
	s.active = p
	s.cursor = s.currentIndex()
}

// currentIndex is the section the user would run next.
func (s *Sidebar) currentIndex() int {
	if s.active == nil {
		return 0
	}
	idx := s.cfg.LastStep(s.name, s.active.Slug) + 1
	if idx >= len(s.active.Sections) {
		idx = len(s.active.Sections) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

func (s *Sidebar) Init() tea.Cmd {
	cmds := []tea.Cmd{s.waitForRefresh()}
	if s.themeWatcher != nil {
		cmds = append(cmds, s.waitForTheme())
	}
	return tea.Batch(cmds...)
}

// waitForRefresh blocks on the plans-directory watcher.
func (s *Sidebar) waitForRefresh() tea.Cmd {
	if s.watcher == nil {
		return nil
	}
	ch := s.watcher.RefreshChannel()
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return planRefreshMsg{}
	}
}

func (s *Sidebar) waitForTheme() tea.Cmd {
	ch := s.themeWatcher.Changes()
	return func() tea.Msg {
		theme, ok := <-ch
		if !ok {
			return nil
		}
		return themeChangedMsg{theme: theme}
	}
}

func (s *Sidebar) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		if s.feature != nil {
			s.feature.SetSize(msg.Width, msg.Height)
		}
		return s, nil

	case planRefreshMsg:
		s.loadActivePlan()
		if s.mode == sidebarPicker {
			s.reloadSlugs()
		}
		return s, s.waitForRefresh()

	case themeChangedMsg:
		// Only sessions on theme_name=system track the OS.
		if s.cfg.Settings.ThemeName == "system" {
			InitTheme(msg.theme, s.cfg.Settings.LabelColorCompleted, s.cfg.Settings.LabelColorCurrent)
		}
		return s, s.waitForTheme()

	case editorDoneMsg:
		if msg.err != nil {
			s.status = msg.err.Error()
		} else {
			s.status = "prompt template saved"
		}
		return s, nil

	case sectionEditedMsg:
		edited, readErr := os.ReadFile(msg.path)
		_ = os.Remove(msg.path)
		switch {
		case msg.err != nil:
			s.status = msg.err.Error()
		case readErr != nil:
			s.status = readErr.Error()
		default:
			if _, err := s.plans.ReplaceSection(msg.slug, msg.index, string(edited)); err != nil {
				s.status = err.Error()
			} else {
				s.status = fmt.Sprintf("section %d saved", msg.index+1)
				s.loadActivePlan()
			}
		}
		return s, nil

	case sendDoneMsg:
		if msg.err != nil {
			s.status = msg.err.Error()
		} else {
			s.status = msg.what + " sent"
		}
		return s, nil

	case FeatureAcceptedMsg:
		if err := s.cfg.BindPlan(s.name, msg.Plan.Slug); err != nil {
			s.status = err.Error()
		}
		s.feature = nil
		s.mode = sidebarMain
		s.loadActivePlan()
		return s, nil

	case FeatureCancelledMsg:
		s.feature = nil
		s.mode = sidebarMain
		return s, nil
	}

	if s.mode == sidebarFeature && s.feature != nil {
		var cmd tea.Cmd
		s.feature, cmd = s.feature.Update(msg)
		return s, cmd
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		switch s.mode {
		case sidebarMain:
			return s.updateMain(key)
		case sidebarPicker:
			return s.updatePicker(key)
		case sidebarConfirmDestroy:
			return s.updateConfirm(key)
		}
	}
	return s, nil
}

func (s *Sidebar) updateMain(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s.status = ""
	switch msg.String() {
	case "ctrl+c", "q":
		return s, tea.Quit

	case "up", "k":
		if s.cursor > 0 {
			s.cursor--
		}
	case "down", "j":
		if s.active != nil && s.cursor < len(s.active.Sections)-1 {
			s.cursor++
		}

	case "enter":
		if s.active == nil {
			return s, nil
		}
		return s, s.sendSectionCmd(s.cursor)

	case "d":
		if s.active == nil {
			return s, nil
		}
		if err := s.cfg.MarkStep(s.name, s.active.Slug, s.cursor, len(s.active.Sections)); err != nil {
			s.status = err.Error()
		}
	case "a":
		if s.active == nil {
			return s, nil
		}
		step, err := s.cfg.Advance(s.name, s.active.Slug, len(s.active.Sections))
		if err != nil {
			s.status = err.Error()
		} else {
			s.cursor = s.clampCursor(step + 1)
		}

	case "c":
		s.resetBefore = !s.resetBefore

	case "m":
		switch s.action {
		case dispatch.ActionCode:
			s.action = dispatch.ActionAsk
		case dispatch.ActionAsk:
			s.action = dispatch.ActionArchitect
		default:
			s.action = dispatch.ActionCode
		}

	case "E":
		return s, s.editSectionCmd()

	case "s":
		return s, s.sendCommandCmd("aider", aiderCommand())

	case "g":
		if s.newProtocol == nil {
			return s, nil
		}
		s.feature = NewFeatureInput(s.newProtocol(planner.MethodAider))
		s.feature.SetSize(s.width, s.height)
		s.mode = sidebarFeature
		return s, s.feature.Init()

	case "p":
		s.reloadSlugs()
		s.mode = sidebarPicker

	case "t":
		return s, s.editTemplateCmd()

	case "e":
		if err := s.session.Detach(); err != nil {
			s.status = err.Error()
		}

	case "x":
		s.mode = sidebarConfirmDestroy
	}
	return s, nil
}

func (s *Sidebar) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		s.mode = sidebarMain
	case "up", "k":
		if s.pickerIdx > 0 {
			s.pickerIdx--
		}
	case "down", "j":
		if s.pickerIdx < len(s.slugs)-1 {
			s.pickerIdx++
		}
	case "enter":
		if s.pickerIdx < len(s.slugs) {
			slug := s.slugs[s.pickerIdx]
			if err := s.cfg.BindPlan(s.name, slug); err != nil {
				s.status = err.Error()
			} else {
				s.loadActivePlan()
			}
		}
		s.mode = sidebarMain
	}
	return s, nil
}

func (s *Sidebar) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y":
		if err := s.cfg.RemoveSession(s.name); err != nil {
			s.status = err.Error()
			s.mode = sidebarMain
			return s, nil
		}
		if err := s.session.Kill(); err != nil {
			uiLog.Warn("session_kill_failed", slog.Any("error", err))
		}
		return s, tea.Quit
	case "n", "esc":
		s.mode = sidebarMain
	}
	return s, nil
}

func (s *Sidebar) reloadSlugs() {
	slugs, err := s.plans.List()
	if err != nil {
		s.status = err.Error()
		return
	}
	s.slugs = slugs
	if s.pickerIdx >= len(s.slugs) {
		s.pickerIdx = 0
	}
}

func (s *Sidebar) clampCursor(idx int) int {
	if s.active == nil {
		return 0
	}
	if idx >= len(s.active.Sections) {
		idx = len(s.active.Sections) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

// sendSectionCmd dispatches a section in the background; the settle delay
// would otherwise freeze the UI.
func (s *Sidebar) sendSectionCmd(index int) tea.Cmd {
	p, action, reset := s.active, s.action, s.resetBefore
	return func() tea.Msg {
		err := s.bridge.SendSection(p, index, action, reset)
		return sendDoneMsg{what: fmt.Sprintf("section %d", index+1), err: err}
	}
}

func (s *Sidebar) sendCommandCmd(what, command string) tea.Cmd {
	return func() tea.Msg {
		return sendDoneMsg{what: what, err: s.bridge.SendCommand(command)}
	}
}

// editTemplateCmd opens the session's prompt template in the configured
// editor, seeding the editable copy and binding it as the session override
// on first use.
func (s *Sidebar) editTemplateCmd() tea.Cmd {
	path, err := planner.EnsureEditableCopy(s.cfg, s.name)
	if err != nil {
		s.status = err.Error()
		return nil
	}
	// Stored relative paths resolve against the config file's directory,
	// while the editable copy lives under the working directory.
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if s.cfg.PromptOverridePath(s.name) != path {
		if err := s.cfg.SetPromptOverride(s.name, path); err != nil {
			s.status = err.Error()
			return nil
		}
	}
	return tea.ExecProcess(exec.Command(s.editorCommand(), path), func(err error) tea.Msg {
		return editorDoneMsg{err: err}
	})
}

// editSectionCmd extracts the section under the cursor into a temp file and
// opens it in the configured editor; the edit is spliced back on exit.
func (s *Sidebar) editSectionCmd() tea.Cmd {
	if s.active == nil {
		return nil
	}
	text, _, _, err := plan.ExtractSection(s.active.Raw, s.cursor)
	if err != nil {
		s.status = err.Error()
		return nil
	}

	tmp, err := os.CreateTemp("", "lazyaider-section-*.md")
	if err != nil {
		s.status = err.Error()
		return nil
	}
	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		s.status = err.Error()
		return nil
	}
	tmp.Close()

	slug, index, path := s.active.Slug, s.cursor, tmp.Name()
	return tea.ExecProcess(exec.Command(s.editorCommand(), path), func(err error) tea.Msg {
		return sectionEditedMsg{slug: slug, index: index, path: path, err: err}
	})
}

// editorCommand resolves the external editor: the configured text_editor,
// then $EDITOR, then the default.
func (s *Sidebar) editorCommand() string {
	if s.cfg.Settings.TextEditor != "" {
		return s.cfg.Settings.TextEditor
	}
	if env := os.Getenv("EDITOR"); env != "" {
		return env
	}
	return config.DefaultTextEditor
}

// aiderCommand prefers a project-local wrapper script over the bare binary,
// prefixed with virtualenv activation when one is present.
func aiderCommand() string {
	base := "aider"
	if info, err := os.Stat("aider.sh"); err == nil && !info.IsDir() {
		base = "./aider.sh"
	}
	return venvActivationPrefix() + base
}

// venvActivationPrefix returns a shell prefix sourcing the local Python
// virtualenv's activate script, or "" when none is found. VIRTUAL_ENV wins
// over the conventional ./.venv and ./venv directories.
func venvActivationPrefix() string {
	var candidates []string
	if v := os.Getenv("VIRTUAL_ENV"); v != "" {
		candidates = append(candidates, filepath.Join(v, "bin", "activate"))
	}
	candidates = append(candidates,
		filepath.Join(".venv", "bin", "activate"),
		filepath.Join("venv", "bin", "activate"),
	)

	for _, script := range candidates {
		if info, err := os.Stat(script); err == nil && info.Mode().IsRegular() {
			return fmt.Sprintf(". %q && ", script)
		}
	}
	return ""
}

func (s *Sidebar) View() string {
	switch s.mode {
	case sidebarFeature:
		if s.feature != nil {
			return s.feature.View()
		}
	case sidebarPicker:
		return s.viewPicker()
	case sidebarConfirmDestroy:
		return s.viewConfirm()
	}
	return s.viewMain()
}

func (s *Sidebar) viewMain() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	dimStyle := lipgloss.NewStyle().Foreground(ColorTextDim)
	cursorStyle := lipgloss.NewStyle().Foreground(ColorBg).Background(ColorAccent)

	var b strings.Builder
	b.WriteString(titleStyle.Render(s.name))
	b.WriteString("\n")

	if s.active == nil {
		b.WriteString(dimStyle.Render("\nno plan selected\n"))
		b.WriteString(dimStyle.Render("g generate · p pick a plan\n"))
	} else {
		b.WriteString(dimStyle.Render(s.active.Title) + "\n\n")
		last := s.cfg.LastStep(s.name, s.active.Slug)
		for i, sec := range s.active.Sections {
			line := s.sectionLine(sec, i, last)
			if i == s.cursor {
				line = cursorStyle.Render(line)
			}
			b.WriteString(line + "\n")
		}
	}

	if s.status != "" {
		b.WriteString("\n" + lipgloss.NewStyle().Foreground(ColorYellow).Render(s.status) + "\n")
	}

	reset := "off"
	if s.resetBefore {
		reset = "on"
	}
	b.WriteString("\n" + dimStyle.Render(
		"enter send · m action:"+string(s.action)+" · c reset:"+reset+"\n"+
			"d done · a advance · E edit · s aider · g generate\n"+
			"p plans · t template · e detach · x destroy · q quit"))
	return b.String()
}

// sectionLine renders one section row with its progress mark, truncated to
// the pane width.
func (s *Sidebar) sectionLine(sec plan.Section, index, lastStep int) string {
	var mark string
	var style lipgloss.Style
	switch {
	case index <= lastStep:
		mark = "✓"
		style = StyleCompleted
	case index == lastStep+1:
		mark = "▶"
		style = StyleCurrent
	default:
		mark = " "
		style = lipgloss.NewStyle().Foreground(ColorText)
	}

	text := fmt.Sprintf("%s %d. %s", mark, index+1, sec.Title)
	if s.width > 2 {
		text = runewidth.Truncate(text, s.width-2, "…")
	}
	return style.Render(text)
}

func (s *Sidebar) viewPicker() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	dimStyle := lipgloss.NewStyle().Foreground(ColorTextDim)
	selectedStyle := lipgloss.NewStyle().Foreground(ColorBg).Background(ColorAccent)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Plans") + "\n\n")
	if len(s.slugs) == 0 {
		b.WriteString(dimStyle.Render("no plans yet (g to generate one)") + "\n")
	}
	for i, slug := range s.slugs {
		line := "  " + slug
		if i == s.pickerIdx {
			line = selectedStyle.Render("> " + slug)
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("enter select · esc back"))
	return b.String()
}

func (s *Sidebar) viewConfirm() string {
	warnStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorRed)
	dimStyle := lipgloss.NewStyle().Foreground(ColorTextDim)

	return warnStyle.Render("Destroy session "+s.name+"?") + "\n\n" +
		"The tmux session and everything running in it will be killed.\n" +
		"Plans on disk are kept.\n\n" +
		dimStyle.Render("y destroy · n cancel")
}
