package config

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/lazyaider/lazyaider/internal/plan"
)

// NotStarted is the progress value for a plan no step of which has been sent.
const NotStarted = -1

// ErrInvalidIndex is returned when a step index is outside [-1, len-1].
var ErrInvalidIndex = errors.New("step index out of range")

// Progress tracking. A record is keyed by (session, plan slug); the same plan
// bound in two sessions tracks independently. Every mutation flushes the
// whole document before returning.

// LastStep returns the persisted last step for (session, slug), NotStarted
// when no record exists.
func (s *Store) LastStep(sessionName, planSlug string) int {
	sess := s.FindSession(sessionName)
	if sess == nil {
		return NotStarted
	}
	step, ok := sess.progress[planSlug]
	if !ok {
		return NotStarted
	}
	return step
}

// Advance increments the last step for (session, slug) by one, clamped to
// sectionCount-1. Advancing at the upper bound is an idempotent no-op, never
// an error. Returns the new last step.
func (s *Store) Advance(sessionName, planSlug string, sectionCount int) (int, error) {
	sess, err := s.SelectOrCreate(sessionName)
	if err != nil {
		return NotStarted, err
	}

	cur, ok := sess.progress[planSlug]
	if !ok {
		cur = NotStarted
	}
	next := cur + 1
	if max := sectionCount - 1; next > max {
		next = max
	}
	if next < NotStarted {
		next = NotStarted
	}
	if next == cur {
		return cur, nil
	}

	if err := s.setStep(sess, planSlug, next); err != nil {
		return cur, err
	}
	return next, nil
}

// MarkStep sets the last step for (session, slug) directly. index must lie
// in [-1, sectionCount-1]; anything else fails with ErrInvalidIndex before
// any persisted mutation.
func (s *Store) MarkStep(sessionName, planSlug string, index, sectionCount int) error {
	if index < NotStarted || index > sectionCount-1 {
		return fmt.Errorf("%w: %d (plan has %d sections)", ErrInvalidIndex, index, sectionCount)
	}
	sess, err := s.SelectOrCreate(sessionName)
	if err != nil {
		return err
	}
	if cur, ok := sess.progress[planSlug]; ok && cur == index {
		return nil
	}
	return s.setStep(sess, planSlug, index)
}

// setStep applies the new value and flushes, rolling back on failure.
func (s *Store) setStep(sess *Session, planSlug string, step int) error {
	prev, had := sess.progress[planSlug]
	sess.progress[planSlug] = step
	if err := s.Flush(); err != nil {
		if had {
			sess.progress[planSlug] = prev
		} else {
			delete(sess.progress, planSlug)
		}
		return fmt.Errorf("failed to persist progress: %w", err)
	}
	configLog.Debug("progress_updated",
		slog.String("session", sess.Name),
		slog.String("plan", planSlug),
		slog.Int("last_step", step))
	return nil
}

// CurrentSection returns the section at the last step for (session, plan),
// or nil when the plan has not been started.
func (s *Store) CurrentSection(sessionName string, p *plan.Plan) *plan.Section {
	step := s.LastStep(sessionName, p.Slug)
	if step == NotStarted {
		return nil
	}
	return p.Section(step)
}

// SyncProgress reconciles a persisted progress pointer with a loaded plan.
// When the stored step no longer fits the plan's section count (the plan was
// regenerated with fewer sections), progress resets to NotStarted rather than
// silently pointing at a different step. Returns the effective last step.
func (s *Store) SyncProgress(sessionName string, p *plan.Plan) (int, error) {
	step := s.LastStep(sessionName, p.Slug)
	if step < len(p.Sections) {
		return step, nil
	}

	configLog.Warn("progress_reset_stale",
		slog.String("session", sessionName),
		slog.String("plan", p.Slug),
		slog.Int("stored_step", step),
		slog.Int("sections", len(p.Sections)))
	if err := s.MarkStep(sessionName, p.Slug, NotStarted, len(p.Sections)); err != nil {
		return step, err
	}
	return NotStarted, nil
}
