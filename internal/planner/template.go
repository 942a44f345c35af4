package planner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lazyaider/lazyaider/internal/config"
)

// TemplateNotFoundError means a prompt override path is configured but the
// file is missing. Generation fails rather than silently falling back to the
// built-in template.
type TemplateNotFoundError struct {
	Path string
}

func (e *TemplateNotFoundError) Error() string {
	return fmt.Sprintf("prompt template override not found: %s", e.Path)
}

// Placeholders substituted when rendering the generation prompt.
const (
	placeholderRepoMap     = "{repository_map}"
	placeholderDescription = "{feature_description}"
)

// DefaultTemplate is the built-in plan-generation prompt. Overrides replace
// it wholesale; they should carry the same placeholders.
const DefaultTemplate = `You are an expert software development assistant. Your task is to take a user's feature description
and break it down into a detailed, step-by-step plan. This plan will be used with a coding assistant
like Aider. Each step in the plan should be actionable and largely independent. It is not necessary to
include code in the instructions.

**Important Guidelines for each step:**
- **Independence:** Each step should be as self-contained as possible. Assume the assistant's context is reset before each step, and only the specified files are added for that step.
- **Clarity:** Instructions must be unambiguous.
- **Aider-Friendly:** Phrase instructions as if you are talking to Aider.
- **File Specificity:** Be accurate about filenames and paths. Account for files created in previous steps.

The output MUST be a Markdown document with the following structure:

# [Short feature title from user description]


## 1: [Descriptive Title for Step 1]

- **Files to add to Aider:** List the specific file paths that should be added to Aider for this step. Use a Markdown bullet list.

- **Goal:** Briefly state the objective of this step.

- **Instructions:** Provide clear, concise instructions for the LLM coding assistant (Aider) to implement this step. Be specific about the changes, functions, classes, or logic to be added or modified.

## 2: [Descriptive Title for Step 2]

- **Files to add to Aider:** ...

- **Goal:** ...
- **Instructions:** ...

... (Repeat for as many steps as necessary) ...

User's Repository map:
---
{repository_map}
---

User's Feature Description:
---
{feature_description}
---

Now, generate the plan in Markdown format.
`

// ResolveTemplate returns the template content for a session: the session
// override when set, else the global override, else the built-in default.
// A configured override that does not exist is an error, not a fallback.
func ResolveTemplate(cfg *config.Store, sessionName string) (string, error) {
	path := cfg.PromptOverridePath(sessionName)
	if path == "" {
		return DefaultTemplate, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &TemplateNotFoundError{Path: path}
		}
		return "", fmt.Errorf("failed to read prompt template: %w", err)
	}
	return string(data), nil
}

// RenderPrompt substitutes the description and repository map into the
// template.
func RenderPrompt(template, description, repoMap string) string {
	out := strings.ReplaceAll(template, placeholderRepoMap, repoMap)
	out = strings.ReplaceAll(out, placeholderDescription, description)
	return out
}

// EnsureEditableCopy makes sure the TUI-editable template copy exists at
// .lazyaider/plan_prompt.md, seeding it from the resolved override (or the
// built-in default) on first use. Returns the copy's path.
func EnsureEditableCopy(cfg *config.Store, sessionName string) (string, error) {
	path := config.PromptTemplatePath()
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	content, err := ResolveTemplate(cfg, sessionName)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to seed template copy: %w", err)
	}
	return path, nil
}
