package ui

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/lazyaider/lazyaider/internal/config"
	"github.com/lazyaider/lazyaider/internal/tmux"
)

// selectorMode is which part of the selector has focus.
type selectorMode int

const (
	modeList selectorMode = iota
	modeFilter
	modeCreate
	modeRename
)

// SelectorResult is the outcome of the session selector.
type SelectorResult struct {
	Name    string
	Created bool
}

// Selector picks or creates the managed session to attach to. Sessions are
// shown in config order; live tmux sessions get a marker. Renames are applied
// immediately to both the config and, when alive, the tmux session.
type Selector struct {
	cfg  *config.Store
	live map[string]bool

	names    []string // managed session names, insertion order
	filtered []int    // indices into names after fuzzy filtering

	mode      selectorMode
	cursor    int
	filter    textinput.Model
	nameInput textinput.Model
	renameOld string
	errMsg    string

	result *SelectorResult
	width  int
	height int
}

// NewSelector builds the selector over the managed sessions in cfg.
func NewSelector(cfg *config.Store) *Selector {
	filter := textinput.New()
	filter.Placeholder = "filter"
	filter.CharLimit = 64
	filter.Width = 30

	nameInput := textinput.New()
	nameInput.Placeholder = "session-name"
	nameInput.CharLimit = 64
	nameInput.Width = 30

	s := &Selector{
		cfg:       cfg,
		live:      map[string]bool{},
		filter:    filter,
		nameInput: nameInput,
	}
	s.reload()
	return s
}

// reload refreshes the managed list and live-session set.
func (s *Selector) reload() {
	s.names = s.names[:0]
	for _, sess := range s.cfg.ListSessions() {
		s.names = append(s.names, sess.Name)
	}

	s.live = map[string]bool{}
	if alive, err := tmux.ListSessions(); err == nil {
		for _, name := range alive {
			s.live[name] = true
		}
	} else {
		uiLog.Warn("list_sessions_failed", slog.Any("error", err))
	}
	s.applyFilter()
}

// applyFilter recomputes the visible indices from the filter query.
func (s *Selector) applyFilter() {
	query := strings.TrimSpace(s.filter.Value())
	s.filtered = s.filtered[:0]
	if query == "" {
		for i := range s.names {
			s.filtered = append(s.filtered, i)
		}
	} else {
		for _, m := range fuzzy.Find(query, s.names) {
			s.filtered = append(s.filtered, m.Index)
		}
	}
	if s.cursor >= len(s.filtered) {
		s.cursor = len(s.filtered) - 1
	}
	if s.cursor < 0 {
		s.cursor = 0
	}
}

// Result returns the chosen session, nil when the user quit.
func (s *Selector) Result() *SelectorResult {
	return s.result
}

func (s *Selector) Init() tea.Cmd {
	return nil
}

func (s *Selector) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		return s, nil
	case tea.KeyMsg:
		switch s.mode {
		case modeList:
			return s.updateList(msg)
		case modeFilter:
			return s.updateFilter(msg)
		case modeCreate, modeRename:
			return s.updateNameEntry(msg)
		}
	}
	return s, nil
}

func (s *Selector) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		return s, tea.Quit
	case "up", "k":
		if s.cursor > 0 {
			s.cursor--
		}
	case "down", "j":
		if s.cursor < len(s.filtered)-1 {
			s.cursor++
		}
	case "/":
		s.mode = modeFilter
		s.filter.Focus()
		return s, textinput.Blink
	case "n":
		s.mode = modeCreate
		s.errMsg = ""
		s.nameInput.SetValue("")
		s.nameInput.Focus()
		return s, textinput.Blink
	case "r":
		if name, ok := s.selectedName(); ok {
			s.mode = modeRename
			s.renameOld = name
			s.errMsg = ""
			s.nameInput.SetValue(name)
			s.nameInput.Focus()
			return s, textinput.Blink
		}
	case "enter":
		if name, ok := s.selectedName(); ok {
			s.result = &SelectorResult{Name: name}
			return s, tea.Quit
		}
	}
	return s, nil
}

func (s *Selector) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		s.mode = modeList
		s.filter.Blur()
		s.filter.SetValue("")
		s.applyFilter()
		return s, nil
	case "enter":
		s.mode = modeList
		s.filter.Blur()
		return s, nil
	}
	var cmd tea.Cmd
	s.filter, cmd = s.filter.Update(msg)
	s.applyFilter()
	return s, cmd
}

func (s *Selector) updateNameEntry(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		s.mode = modeList
		s.nameInput.Blur()
		s.errMsg = ""
		return s, nil
	case "enter":
		name := strings.TrimSpace(s.nameInput.Value())
		if err := s.commitName(name); err != nil {
			s.errMsg = err.Error()
			return s, nil
		}
		if s.mode == modeCreate {
			s.result = &SelectorResult{Name: name, Created: true}
			return s, tea.Quit
		}
		s.mode = modeList
		s.nameInput.Blur()
		s.reload()
		return s, nil
	}
	var cmd tea.Cmd
	s.nameInput, cmd = s.nameInput.Update(msg)
	return s, cmd
}

// commitName validates the entered name and, for renames, applies the change.
func (s *Selector) commitName(name string) error {
	if err := tmux.ValidateName(name); err != nil {
		return err
	}
	switch s.mode {
	case modeCreate:
		if s.cfg.FindSession(name) != nil {
			return fmt.Errorf("session %q already exists", name)
		}
		return nil
	case modeRename:
		if name == s.renameOld {
			return nil
		}
		if err := s.cfg.Rename(s.renameOld, name); err != nil {
			if errors.Is(err, config.ErrDuplicateSession) {
				return fmt.Errorf("session %q already exists", name)
			}
			return err
		}
		if s.live[s.renameOld] {
			if err := tmux.NewSession(s.renameOld).Rename(name); err != nil {
				uiLog.Warn("tmux_rename_failed", slog.Any("error", err))
			}
		}
		return nil
	}
	return nil
}

// selectedName returns the name under the cursor.
func (s *Selector) selectedName() (string, bool) {
	if s.cursor < 0 || s.cursor >= len(s.filtered) {
		return "", false
	}
	return s.names[s.filtered[s.cursor]], true
}

func (s *Selector) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	dimStyle := lipgloss.NewStyle().Foreground(ColorTextDim)
	selectedStyle := lipgloss.NewStyle().Foreground(ColorBg).Background(ColorAccent)

	var b strings.Builder
	b.WriteString(titleStyle.Render("lazyaider sessions"))
	b.WriteString("\n\n")

	if s.mode == modeFilter || s.filter.Value() != "" {
		b.WriteString("  " + s.filter.View() + "\n\n")
	}

	if len(s.filtered) == 0 {
		b.WriteString(dimStyle.Render("  no sessions (press n to create one)"))
		b.WriteString("\n")
	}
	for i, idx := range s.filtered {
		name := s.names[idx]
		marker := " "
		if s.live[name] {
			marker = "●"
		}
		line := fmt.Sprintf(" %s %s", marker, name)
		if i == s.cursor && s.mode != modeCreate && s.mode != modeRename {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}

	if s.mode == modeCreate || s.mode == modeRename {
		label := "new session:"
		if s.mode == modeRename {
			label = "rename to:"
		}
		b.WriteString("\n  " + label + " " + s.nameInput.View() + "\n")
		if s.errMsg != "" {
			b.WriteString("  " + lipgloss.NewStyle().Foreground(ColorRed).Render(s.errMsg) + "\n")
		}
	}

	b.WriteString("\n" + dimStyle.Render("enter attach · n new · r rename · / filter · q quit"))
	return b.String()
}
