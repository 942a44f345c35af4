package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lazyaider/lazyaider/internal/plan"
	"github.com/lazyaider/lazyaider/internal/planner"
)

// FeatureAcceptedMsg is emitted when the user accepts a generated plan.
type FeatureAcceptedMsg struct {
	Plan *plan.Plan
}

// FeatureCancelledMsg is emitted when the user leaves the flow without a plan.
type FeatureCancelledMsg struct{}

// generationDoneMsg carries the outcome of a background generation.
type generationDoneMsg struct {
	plan *plan.Plan
	err  error
}

// FeatureInput is the plan-generation flow: describe the feature, wait for
// the model, then accept or discard the result. It renders one screen per
// protocol state.
type FeatureInput struct {
	proto  *planner.Protocol
	input  textarea.Model
	spin   spinner.Model
	cancel context.CancelFunc

	method planner.ContextMethod
	result *plan.Plan
	errMsg string
	width  int
}

// NewFeatureInput builds the flow around a fresh protocol.
func NewFeatureInput(proto *planner.Protocol) *FeatureInput {
	input := textarea.New()
	input.Placeholder = "Describe the feature to plan..."
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(ColorAccent)

	return &FeatureInput{
		proto:  proto,
		input:  input,
		spin:   spin,
		method: planner.MethodAider,
	}
}

// Method returns the selected repository context method.
func (f *FeatureInput) Method() planner.ContextMethod {
	return f.method
}

// SetSize resizes the textarea.
func (f *FeatureInput) SetSize(width, height int) {
	f.width = width
	f.input.SetWidth(width - 4)
	if height > 12 {
		f.input.SetHeight(height - 10)
	}
}

func (f *FeatureInput) Init() tea.Cmd {
	return textarea.Blink
}

func (f *FeatureInput) Update(msg tea.Msg) (*FeatureInput, tea.Cmd) {
	switch msg := msg.(type) {
	case generationDoneMsg:
		f.cancel = nil
		if msg.err != nil {
			if f.proto.State() == planner.StateFailed {
				f.errMsg = msg.err.Error()
			}
			// Cancelled: protocol is back at awaiting input, keep the text.
			return f, nil
		}
		f.result = msg.plan
		return f, nil

	case spinner.TickMsg:
		if f.proto.State() == planner.StateGenerating {
			var cmd tea.Cmd
			f.spin, cmd = f.spin.Update(msg)
			return f, cmd
		}
		return f, nil

	case tea.KeyMsg:
		switch f.proto.State() {
		case planner.StateAwaitingInput:
			return f.updateInput(msg)
		case planner.StateGenerating:
			if msg.String() == "esc" && f.cancel != nil {
				f.cancel()
			}
			return f, nil
		case planner.StateReady:
			return f.updateReady(msg)
		case planner.StateFailed:
			return f.updateFailed(msg)
		}
	}
	return f, nil
}

func (f *FeatureInput) updateInput(msg tea.KeyMsg) (*FeatureInput, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return f, emit(FeatureCancelledMsg{})
	case "tab":
		if f.method == planner.MethodAider {
			f.method = planner.MethodRepomix
		} else {
			f.method = planner.MethodAider
		}
		return f, nil
	case "ctrl+s":
		f.proto.SetContextMethod(f.method)
		if err := f.proto.Submit(f.input.Value()); err != nil {
			f.errMsg = err.Error()
			return f, nil
		}
		f.errMsg = ""
		ctx, cancel := context.WithCancel(context.Background())
		f.cancel = cancel
		return f, tea.Batch(f.spin.Tick, f.generateCmd(ctx))
	}
	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	return f, cmd
}

func (f *FeatureInput) updateReady(msg tea.KeyMsg) (*FeatureInput, tea.Cmd) {
	switch msg.String() {
	case "enter":
		return f, emit(FeatureAcceptedMsg{Plan: f.result})
	case "esc":
		return f, emit(FeatureCancelledMsg{})
	}
	return f, nil
}

func (f *FeatureInput) updateFailed(msg tea.KeyMsg) (*FeatureInput, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return f, emit(FeatureCancelledMsg{})
	case "e", "enter":
		// Back to the editor with the description intact.
		f.proto.Retry()
		f.errMsg = ""
		return f, nil
	}
	return f, nil
}

// generateCmd runs the protocol in the background.
func (f *FeatureInput) generateCmd(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		p, err := f.proto.Generate(ctx)
		return generationDoneMsg{plan: p, err: err}
	}
}

func emit(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}

func (f *FeatureInput) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	dimStyle := lipgloss.NewStyle().Foreground(ColorTextDim)
	errStyle := lipgloss.NewStyle().Foreground(ColorRed)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Generate plan"))
	b.WriteString("\n\n")

	switch f.proto.State() {
	case planner.StateAwaitingInput:
		b.WriteString(f.input.View())
		b.WriteString("\n\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("repo map: %s (tab to switch)", f.method)))
		b.WriteString("\n")
		if f.errMsg != "" {
			b.WriteString(errStyle.Render(f.errMsg) + "\n")
		}
		b.WriteString(dimStyle.Render("ctrl+s generate · esc back"))

	case planner.StateGenerating:
		b.WriteString(f.spin.View() + " generating plan...")
		b.WriteString("\n\n")
		b.WriteString(dimStyle.Render("esc cancel"))

	case planner.StateReady:
		b.WriteString("Plan ready: " + f.result.Title + "\n\n")
		for _, sec := range f.result.Sections {
			b.WriteString(fmt.Sprintf("  %d. %s\n", sec.Index+1, sec.Title))
		}
		b.WriteString("\n" + dimStyle.Render("enter use this plan · esc back"))

	case planner.StateFailed:
		b.WriteString(errStyle.Render("Generation failed") + "\n\n")
		b.WriteString(f.errMsg + "\n\n")
		b.WriteString(dimStyle.Render("enter edit and retry · esc back"))
	}
	return b.String()
}
