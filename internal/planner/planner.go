// Package planner drives plan generation: it resolves the prompt template,
// gathers repository context, calls the model, parses the response, and
// persists the result. The protocol is a small state machine so the UI can
// render exactly one of awaiting-input, generating, ready, or failed.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lazyaider/lazyaider/internal/config"
	"github.com/lazyaider/lazyaider/internal/llm"
	"github.com/lazyaider/lazyaider/internal/logging"
	"github.com/lazyaider/lazyaider/internal/plan"
)

var plannerLog = logging.ForComponent(logging.CompPlanner)

// ErrEmptyDescription is returned by Submit for blank input. The protocol
// stays in AwaitingInput.
var ErrEmptyDescription = errors.New("feature description is empty")

// State is the generation protocol's current phase.
type State int

const (
	// StateAwaitingInput accepts a feature description.
	StateAwaitingInput State = iota
	// StateGenerating has a request in flight.
	StateGenerating
	// StateReady holds a parsed, persisted plan.
	StateReady
	// StateFailed holds the error from the last attempt.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAwaitingInput:
		return "awaiting_input"
	case StateGenerating:
		return "generating"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options configure a Protocol.
type Options struct {
	// Session scopes the prompt override lookup. Empty means global only.
	Session string

	// ContextMethod selects the repository map source. Defaults to aider.
	ContextMethod ContextMethod

	// DumpPromptPath, when set, writes the fully rendered prompt there
	// before calling the model.
	DumpPromptPath string

	// Regenerate overwrites an existing plan with the same slug instead of
	// allocating a suffixed one.
	Regenerate bool
}

// Protocol is one plan-generation attempt's state machine. It is not safe for
// concurrent use; the UI drives it from a single goroutine.
type Protocol struct {
	cfg    *config.Store
	client llm.Client
	plans  *plan.Store
	opts   Options

	state       State
	description string
	rawText     string
	result      *plan.Plan
	err         error

	// collectContext is swapped out in tests.
	collectContext func(ctx context.Context, method ContextMethod) (string, error)
}

// New returns a protocol in AwaitingInput.
func New(cfg *config.Store, client llm.Client, plans *plan.Store, opts Options) *Protocol {
	return &Protocol{
		cfg:            cfg,
		client:         client,
		plans:          plans,
		opts:           opts,
		state:          StateAwaitingInput,
		collectContext: CollectContext,
	}
}

// State returns the current phase.
func (p *Protocol) State() State { return p.state }

// Err returns the failure from the last attempt, nil unless Failed.
func (p *Protocol) Err() error { return p.err }

// Plan returns the generated plan, nil unless Ready.
func (p *Protocol) Plan() *plan.Plan { return p.result }

// RawText returns the model's verbatim response text. It is kept even when
// parsing fails so the user can inspect what came back.
func (p *Protocol) RawText() string { return p.rawText }

// Submit accepts the feature description and moves to Generating. A blank
// description is rejected and the state does not change.
func (p *Protocol) Submit(description string) error {
	if p.state != StateAwaitingInput && p.state != StateFailed {
		return fmt.Errorf("cannot submit in state %s", p.state)
	}
	if strings.TrimSpace(description) == "" {
		return ErrEmptyDescription
	}
	p.description = description
	p.err = nil
	p.result = nil
	p.rawText = ""
	p.state = StateGenerating
	return nil
}

// SetContextMethod switches the repository map source. Ignored while a
// request is in flight.
func (p *Protocol) SetContextMethod(method ContextMethod) {
	if p.state == StateAwaitingInput || p.state == StateFailed {
		p.opts.ContextMethod = method
	}
}

// Retry re-arms a failed protocol so the same description can be submitted
// again or edited first.
func (p *Protocol) Retry() {
	if p.state == StateFailed {
		p.state = StateAwaitingInput
	}
}

// Generate runs the full pipeline: template, repository context, model call,
// parse, persist. On success the protocol is Ready and the saved plan is
// returned. Cancelling the context abandons the attempt and returns the
// protocol to AwaitingInput; nothing is written unless Ready is reached.
func (p *Protocol) Generate(ctx context.Context) (*plan.Plan, error) {
	if p.state != StateGenerating {
		return nil, fmt.Errorf("cannot generate in state %s", p.state)
	}

	template, err := ResolveTemplate(p.cfg, p.opts.Session)
	if err != nil {
		return nil, p.fail(err)
	}

	repoMap, err := p.collectContext(ctx, p.opts.ContextMethod)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, p.cancel(err)
		}
		return nil, p.fail(fmt.Errorf("failed to collect repository context: %w", err))
	}

	prompt := RenderPrompt(template, p.description, repoMap)
	if p.opts.DumpPromptPath != "" {
		if werr := os.WriteFile(p.opts.DumpPromptPath, []byte(prompt), 0o644); werr != nil {
			plannerLog.Warn("prompt_dump_failed",
				slog.String("path", p.opts.DumpPromptPath),
				slog.Any("error", werr))
		}
	}

	started := time.Now()
	res, err := p.client.Generate(ctx, prompt)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, p.cancel(err)
		}
		return nil, p.fail(err)
	}
	p.rawText = res.Text

	parsed, err := plan.Parse(res.Text)
	if err != nil {
		p.dumpRaw(res.Text)
		return nil, p.fail(err)
	}

	_, err = p.plans.Save(parsed, plan.SaveOptions{
		Regenerate:         p.opts.Regenerate,
		FeatureDescription: p.description,
		Metadata: plan.Metadata{
			Model:            res.Model,
			PromptTokens:     res.PromptTokens,
			CompletionTokens: res.CompletionTokens,
			TotalTokens:      res.TotalTokens,
		},
	})
	if err != nil {
		return nil, p.fail(err)
	}

	plannerLog.Info("plan_generated",
		slog.String("slug", parsed.Slug),
		slog.Int("sections", len(parsed.Sections)),
		slog.Duration("elapsed", time.Since(started)))

	p.result = parsed
	p.state = StateReady
	return parsed, nil
}

func (p *Protocol) fail(err error) error {
	plannerLog.Error("generation_failed", slog.Any("error", err))
	p.err = err
	p.state = StateFailed
	return err
}

func (p *Protocol) cancel(err error) error {
	plannerLog.Info("generation_cancelled")
	p.err = nil
	p.state = StateAwaitingInput
	return err
}

// dumpRaw preserves an unparseable response on disk for inspection.
func (p *Protocol) dumpRaw(text string) {
	path := filepath.Join(p.plans.Dir(), fmt.Sprintf("failed-plan-%d.md", time.Now().Unix()))
	if err := os.MkdirAll(p.plans.Dir(), 0o755); err != nil {
		return
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		plannerLog.Warn("raw_dump_failed", slog.Any("error", err))
		return
	}
	plannerLog.Info("raw_response_saved", slog.String("path", path))
}
