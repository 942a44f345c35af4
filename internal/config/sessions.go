package config

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrDuplicateSession is returned when renaming a session to a name that is
// already registered.
var ErrDuplicateSession = errors.New("session name already exists")

// Session registry operations. Each mutator rewrites the persisted document
// before returning; on a failed flush the in-memory change is rolled back so
// memory never diverges from what was last flushed.

// FindSession returns the session with the given name, or nil.
func (s *Store) FindSession(name string) *Session {
	for _, sess := range s.sessions {
		if sess.Name == name {
			return sess
		}
	}
	return nil
}

// SelectOrCreate looks a session up by name, creating it (with no active
// plan) when absent. Creation appends to the registry so insertion order is
// preserved for listing.
func (s *Store) SelectOrCreate(name string) (*Session, error) {
	if sess := s.FindSession(name); sess != nil {
		return sess, nil
	}

	sess := &Session{Name: name, progress: make(map[string]int)}
	s.sessions = append(s.sessions, sess)
	if err := s.Flush(); err != nil {
		s.sessions = s.sessions[:len(s.sessions)-1]
		return nil, fmt.Errorf("failed to persist new session: %w", err)
	}
	configLog.Info("session_created", slog.String("session", name))
	return sess, nil
}

// RemoveSession deletes a session entry and its progress records.
// Removing an unknown name is a no-op.
func (s *Store) RemoveSession(name string) error {
	for i, sess := range s.sessions {
		if sess.Name != name {
			continue
		}
		s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
		if err := s.Flush(); err != nil {
			s.sessions = append(s.sessions[:i], append([]*Session{sess}, s.sessions[i:]...)...)
			return fmt.Errorf("failed to persist session removal: %w", err)
		}
		configLog.Info("session_removed", slog.String("session", name))
		return nil
	}
	return nil
}

// Rename moves the registry entry from oldName to newName, carrying the
// active plan and all nested progress records. The entry keeps its position
// in the listing order.
func (s *Store) Rename(oldName, newName string) error {
	if oldName == newName {
		return nil
	}
	if s.FindSession(newName) != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateSession, newName)
	}
	sess := s.FindSession(oldName)
	if sess == nil {
		return fmt.Errorf("unknown session: %s", oldName)
	}

	sess.Name = newName
	if err := s.Flush(); err != nil {
		sess.Name = oldName
		return fmt.Errorf("failed to persist session rename: %w", err)
	}
	configLog.Info("session_renamed",
		slog.String("from", oldName),
		slog.String("to", newName))
	return nil
}

// BindPlan sets the session's active plan. An empty slug clears the binding.
// Progress is untouched: rebinding a previously active plan resumes at its
// prior step.
func (s *Store) BindPlan(name, planSlug string) error {
	sess, err := s.SelectOrCreate(name)
	if err != nil {
		return err
	}
	if sess.ActivePlan == planSlug {
		return nil
	}

	prev := sess.ActivePlan
	sess.ActivePlan = planSlug
	if err := s.Flush(); err != nil {
		sess.ActivePlan = prev
		return fmt.Errorf("failed to persist plan binding: %w", err)
	}
	configLog.Info("plan_bound",
		slog.String("session", name),
		slog.String("plan", planSlug))
	return nil
}

// SetPromptOverride sets the per-session template override path. An empty
// path clears it.
func (s *Store) SetPromptOverride(name, path string) error {
	sess, err := s.SelectOrCreate(name)
	if err != nil {
		return err
	}
	if sess.PromptOverridePath == path {
		return nil
	}

	prev := sess.PromptOverridePath
	sess.PromptOverridePath = path
	if err := s.Flush(); err != nil {
		sess.PromptOverridePath = prev
		return fmt.Errorf("failed to persist prompt override: %w", err)
	}
	return nil
}

// ListSessions returns the managed sessions in insertion order, which is the
// document order of the persisted mapping and therefore stable across reloads.
func (s *Store) ListSessions() []*Session {
	out := make([]*Session, len(s.sessions))
	copy(out, s.sessions)
	return out
}

// PromptOverridePath resolves the plan-generation template override for a
// session: the session-level path when set, else the global one, else "".
// Relative paths are resolved against the config file's directory; ~ is
// expanded.
func (s *Store) PromptOverridePath(sessionName string) string {
	if sessionName != "" {
		if sess := s.FindSession(sessionName); sess != nil && sess.PromptOverridePath != "" {
			return resolvePath(sess.PromptOverridePath, s.baseDir)
		}
	}
	if s.Settings.PromptOverridePath != "" {
		return resolvePath(s.Settings.PromptOverridePath, s.baseDir)
	}
	return ""
}
