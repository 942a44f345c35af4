// Package dispatch translates plan sections and free-form instructions into
// text sent to the session's shell pane. Sends are fire-and-forget: the
// bridge cannot observe downstream readiness, so the settle delay before a
// simulated Enter is a fixed, best-effort wait.
package dispatch

import (
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/lazyaider/lazyaider/internal/logging"
	"github.com/lazyaider/lazyaider/internal/plan"
	"github.com/lazyaider/lazyaider/internal/tmux"
)

var dispatchLog = logging.ForComponent(logging.CompDispatch)

// Pane is the write side of the shell capability.
type Pane interface {
	SendText(text string) error
	SendEnter() error
}

// tmuxPane adapts a tmux session pane target to the Pane interface.
type tmuxPane struct {
	session *tmux.Session
	target  string
}

// NewTmuxPane returns a Pane writing into the given tmux pane target.
func NewTmuxPane(session *tmux.Session, target string) Pane {
	return &tmuxPane{session: session, target: target}
}

func (p *tmuxPane) SendText(text string) error {
	return p.session.SendKeysChunked(p.target, text)
}

func (p *tmuxPane) SendEnter() error {
	return p.session.SendEnter(p.target)
}

// Action is the aider command a section is dispatched under.
type Action string

const (
	ActionAsk       Action = "ask"
	ActionCode      Action = "code"
	ActionArchitect Action = "architect"
)

// Command returns the aider slash command for the action.
func (a Action) Command() string {
	return "/" + string(a)
}

// newTagID produces the random 8-digit id for a multiline tag block. A var so
// tests can pin it.
var newTagID = func() string {
	return fmt.Sprintf("%08d", rand.Intn(90000000)+10000000)
}

// Bridge sends text into a pane with a configurable settle delay.
type Bridge struct {
	pane        Pane
	settleDelay time.Duration
}

// New creates a bridge. settleDelay is the wait between the text and a
// simulated Enter (config key delay_send_input).
func New(pane Pane, settleDelay time.Duration) *Bridge {
	return &Bridge{pane: pane, settleDelay: settleDelay}
}

// Send forwards text to the pane. With simulateEnter, it waits the settle
// delay and then sends an Enter keystroke.
func (b *Bridge) Send(text string, simulateEnter bool) error {
	if err := b.pane.SendText(text); err != nil {
		return fmt.Errorf("failed to send text: %w", err)
	}
	if !simulateEnter {
		return nil
	}
	if b.settleDelay > 0 {
		time.Sleep(b.settleDelay)
	}
	if err := b.pane.SendEnter(); err != nil {
		return fmt.Errorf("failed to send enter: %w", err)
	}
	return nil
}

// SendCommand sends a single shell/aider command followed by Enter.
func (b *Bridge) SendCommand(command string) error {
	return b.Send(command, true)
}

// SendMultiline submits text as one message. Single-line text goes straight
// through; text with embedded newlines is wrapped in a
// {tagNNNNNNNN ... tagNNNNNNNN} block so the receiving line editor treats the
// whole body as one input instead of submitting at every newline. The settle
// delay runs before the closing tag so the content has landed first.
func (b *Bridge) SendMultiline(text string) error {
	if !strings.Contains(text, "\n") {
		return b.Send(text, true)
	}

	id := newTagID()
	if err := b.pane.SendText("{tag" + id); err != nil {
		return fmt.Errorf("failed to send opening tag: %w", err)
	}
	if err := b.pane.SendEnter(); err != nil {
		return fmt.Errorf("failed to send opening tag: %w", err)
	}
	if err := b.pane.SendText(text); err != nil {
		return fmt.Errorf("failed to send text: %w", err)
	}
	if err := b.pane.SendEnter(); err != nil {
		return fmt.Errorf("failed to send text: %w", err)
	}
	if b.settleDelay > 0 {
		time.Sleep(b.settleDelay)
	}
	if err := b.pane.SendText("tag" + id + "}"); err != nil {
		return fmt.Errorf("failed to send closing tag: %w", err)
	}
	if err := b.pane.SendEnter(); err != nil {
		return fmt.Errorf("failed to send closing tag: %w", err)
	}
	return nil
}

// SendSection dispatches the section at index as an aider exchange: an
// optional "/reset", then "/add" for the files named in the section's leading
// bullet list that exist on disk, then the remaining body submitted under the
// chosen action command. Progress is not touched here; marking a step done is
// a separate action.
func (b *Bridge) SendSection(p *plan.Plan, index int, action Action, reset bool) error {
	section := p.Section(index)
	if section == nil {
		return fmt.Errorf("plan %s has no section %d", p.Slug, index)
	}

	if reset {
		if err := b.SendCommand("/reset"); err != nil {
			return err
		}
	}

	filesMD, prompt := SplitSectionChunks(section.Body)
	if files := existingFiles(ExtractFilePaths(filesMD)); len(files) > 0 {
		if err := b.SendCommand("/add " + strings.Join(files, " ")); err != nil {
			return fmt.Errorf("failed to add section files: %w", err)
		}
	}

	dispatchLog.Info("section_dispatched",
		slog.String("plan", p.Slug),
		slog.Int("section", index),
		slog.String("action", string(action)))

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		// Nothing past the files chunk: submit the bare command.
		return b.SendCommand(action.Command())
	}
	return b.SendMultiline(action.Command() + " " + prompt)
}
