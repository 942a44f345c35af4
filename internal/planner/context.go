package planner

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ContextMethod selects how the repository map embedded in the prompt is
// produced.
type ContextMethod string

const (
	// MethodAider runs `aider --show-repo-map` and keeps everything after
	// aider's startup banner.
	MethodAider ContextMethod = "aider"

	// MethodRepomix runs `repomix --stdout` and uses its output verbatim.
	MethodRepomix ContextMethod = "repomix"
)

// CollectContext produces the repository map for the prompt. The output is an
// opaque string; no structure is assumed beyond the aider banner strip.
func CollectContext(ctx context.Context, method ContextMethod) (string, error) {
	switch method {
	case MethodAider, "":
		return aiderRepoMap(ctx)
	case MethodRepomix:
		return repomixOutput(ctx)
	default:
		return "", fmt.Errorf("unknown repository context method: %q", method)
	}
}

func aiderRepoMap(ctx context.Context) (string, error) {
	out, err := runTool(ctx, "aider", "--show-repo-map")
	if err != nil {
		return "", err
	}
	return stripBanner(out), nil
}

func repomixOutput(ctx context.Context) (string, error) {
	return runTool(ctx, "repomix", "--stdout")
}

func runTool(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("%s failed: %w", name, err)
		}
		return "", fmt.Errorf("%s failed: %s", name, msg)
	}
	return stdout.String(), nil
}

// stripBanner drops aider's startup banner: everything up to and including
// the first blank line. Output without a blank line is returned unchanged.
func stripBanner(out string) string {
	lines := strings.Split(out, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			return strings.Join(lines[i+1:], "\n")
		}
	}
	return out
}
