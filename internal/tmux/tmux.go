// Package tmux wraps the tmux CLI: session creation, the shell/sidebar pane
// split, literal key injection, and session listing. Every operation shells
// out to tmux; errors carry the captured stderr.
package tmux

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lazyaider/lazyaider/internal/logging"
)

var tmuxLog = logging.ForComponent(logging.CompTmux)

// ErrBadSessionName is returned for names tmux cannot address.
var ErrBadSessionName = errors.New("invalid session name")

// listCacheTTL is how long a list-sessions result is reused. Listing happens
// on every selector tick; one subprocess per TTL window is enough.
const listCacheTTL = 2 * time.Second

var (
	listGroup     singleflight.Group
	listCacheMu   sync.RWMutex
	listCacheData []string
	listCacheTime time.Time
)

// IsAvailable reports whether the tmux binary can be found.
func IsAvailable() error {
	if _, err := exec.LookPath("tmux"); err != nil {
		return fmt.Errorf("tmux not found in PATH: %w", err)
	}
	return nil
}

// ValidateName rejects session names tmux target syntax cannot express.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty", ErrBadSessionName)
	}
	if strings.ContainsAny(name, ":. \t\n") {
		return fmt.Errorf("%w: %q (no colons, dots, or whitespace)", ErrBadSessionName, name)
	}
	return nil
}

// Session addresses one tmux session by name.
type Session struct {
	Name string
}

// NewSession wraps a session name. The session may or may not exist yet.
func NewSession(name string) *Session {
	return &Session{Name: name}
}

// ShellPane is the target of the left (shell/aider) pane in window 0.
func (s *Session) ShellPane() string {
	return s.Name + ":0.0"
}

// SidebarPane is the target of the right (sidebar app) pane in window 0.
func (s *Session) SidebarPane() string {
	return s.Name + ":0.1"
}

// run executes a tmux command, returning stderr in the error.
func run(args ...string) error {
	cmd := exec.Command("tmux", args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return fmt.Errorf("tmux %s: %w", args[0], err)
		}
		return fmt.Errorf("tmux %s: %s", args[0], msg)
	}
	return nil
}

// Exists reports whether the session is alive.
func (s *Session) Exists() bool {
	return exec.Command("tmux", "has-session", "-t", s.Name).Run() == nil
}

// Create makes a detached session with a "main" window. Creating a session
// that already exists is a no-op, not an error. Width and height, when
// positive, size the session to the caller's terminal.
func (s *Session) Create(width, height int) error {
	if err := ValidateName(s.Name); err != nil {
		return err
	}
	if s.Exists() {
		return nil
	}
	args := []string{"new-session", "-d", "-s", s.Name, "-n", "main"}
	if width > 0 && height > 0 {
		args = append(args, "-x", fmt.Sprint(width), "-y", fmt.Sprint(height))
	}
	if err := run(args...); err != nil {
		return err
	}
	invalidateListCache()
	tmuxLog.Info("session_created", slog.String("session", s.Name))
	return nil
}

// SplitSidebar splits the shell pane horizontally, giving the new right-hand
// pane the given percentage of the width.
func (s *Session) SplitSidebar(percent int) error {
	return run("split-window", "-h", "-l", fmt.Sprintf("%d%%", percent), "-t", s.ShellPane())
}

// PaneExists reports whether the pane target resolves in the session.
func (s *Session) PaneExists(target string) bool {
	out, err := exec.Command("tmux", "list-panes", "-t", s.Name+":0", "-F", "#{session_name}:#{window_index}.#{pane_index}").Output()
	if err != nil {
		return false
	}
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line == target {
			return true
		}
	}
	return false
}

// SendKeys sends literal text to a pane. The -l flag keeps tmux from
// interpreting the text as key names.
func (s *Session) SendKeys(target, text string) error {
	return run("send-keys", "-l", "-t", target, "--", text)
}

// SendEnter sends an Enter keystroke to a pane.
func (s *Session) SendEnter(target string) error {
	return run("send-keys", "-t", target, "Enter")
}

// SendKeysChunked sends large content in newline-aligned chunks to stay
// under tmux buffer limits. Content at or below 4KB goes in one call.
func (s *Session) SendKeysChunked(target, content string) error {
	const chunkSize = 4096
	const chunkDelay = 50 * time.Millisecond

	if len(content) <= chunkSize {
		return s.SendKeys(target, content)
	}

	chunks := splitIntoChunks(content, chunkSize)
	for i, chunk := range chunks {
		if err := s.SendKeys(target, chunk); err != nil {
			return fmt.Errorf("failed to send chunk %d/%d: %w", i+1, len(chunks), err)
		}
		if i < len(chunks)-1 {
			time.Sleep(chunkDelay)
		}
	}
	return nil
}

// splitIntoChunks splits content into chunks of at most maxSize bytes,
// preferring newline boundaries, falling back to a hard split for long lines.
func splitIntoChunks(content string, maxSize int) []string {
	if content == "" {
		return nil
	}
	if len(content) <= maxSize {
		return []string{content}
	}

	var chunks []string
	remaining := content
	for len(remaining) > 0 {
		if len(remaining) <= maxSize {
			chunks = append(chunks, remaining)
			break
		}
		cut := strings.LastIndex(remaining[:maxSize], "\n")
		if cut > 0 {
			chunks = append(chunks, remaining[:cut+1])
			remaining = remaining[cut+1:]
		} else {
			chunks = append(chunks, remaining[:maxSize])
			remaining = remaining[maxSize:]
		}
	}
	return chunks
}

// Rename renames the tmux session.
func (s *Session) Rename(newName string) error {
	if err := ValidateName(newName); err != nil {
		return err
	}
	if err := run("rename-session", "-t", s.Name, newName); err != nil {
		return err
	}
	s.Name = newName
	invalidateListCache()
	return nil
}

// Kill destroys the session.
func (s *Session) Kill() error {
	err := run("kill-session", "-t", s.Name)
	invalidateListCache()
	return err
}

// Detach detaches the client attached to this session.
func (s *Session) Detach() error {
	return run("detach-client", "-s", s.Name)
}

// Attach replaces the current process with tmux attach-session.
func (s *Session) Attach() error {
	tmuxPath, err := exec.LookPath("tmux")
	if err != nil {
		return fmt.Errorf("tmux not found in PATH: %w", err)
	}
	return syscall.Exec(tmuxPath, []string{"tmux", "attach-session", "-t", s.Name}, os.Environ())
}

// SelectPane gives a pane focus.
func (s *Session) SelectPane(target string) error {
	return run("select-pane", "-t", target)
}

// SetGlobalOption sets a global tmux option (mouse mode, pane borders).
func SetGlobalOption(option, value string) error {
	return run("set-option", "-g", option, value)
}

// ListSessions returns the names of all live tmux sessions. Concurrent
// callers share one subprocess via singleflight, and results are cached
// briefly so selector redraws stay cheap.
func ListSessions() ([]string, error) {
	listCacheMu.RLock()
	if listCacheData != nil && time.Since(listCacheTime) < listCacheTTL {
		cached := listCacheData
		listCacheMu.RUnlock()
		return cached, nil
	}
	listCacheMu.RUnlock()

	v, err, _ := listGroup.Do("list-sessions", func() (any, error) {
		out, err := exec.Command("tmux", "list-sessions", "-F", "#{session_name}").Output()
		if err != nil {
			// No server running means no sessions, not a failure.
			if ee, ok := err.(*exec.ExitError); ok && len(ee.Stderr) > 0 &&
				strings.Contains(string(ee.Stderr), "no server running") {
				return []string{}, nil
			}
			return nil, fmt.Errorf("tmux list-sessions: %w", err)
		}
		var names []string
		for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
			if line != "" {
				names = append(names, line)
			}
		}
		listCacheMu.Lock()
		listCacheData = names
		listCacheTime = time.Now()
		listCacheMu.Unlock()
		return names, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

func invalidateListCache() {
	listCacheMu.Lock()
	listCacheData = nil
	listCacheMu.Unlock()
}
