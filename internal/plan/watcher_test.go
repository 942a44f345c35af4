package plan

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcherSignalsOnPlanWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plans")

	w, err := NewWatcher(dir)
	require.NoError(t, err)
	defer w.Stop()
	go w.Start()

	// Give the watch a moment to be established before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new-plan.md"), []byte("# T\n"), 0o644))

	select {
	case <-w.RefreshChannel():
	case <-time.After(3 * time.Second):
		t.Fatal("no refresh signal after plan write")
	}
}

func TestWatcherCoalescesBursts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plans")

	w, err := NewWatcher(dir)
	require.NoError(t, err)
	defer w.Stop()
	go w.Start()

	time.Sleep(100 * time.Millisecond)
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "p.md"), []byte("# T\n"), 0o644))
	}

	select {
	case <-w.RefreshChannel():
	case <-time.After(3 * time.Second):
		t.Fatal("no refresh signal after burst")
	}

	// The burst collapses into at most one pending signal.
	select {
	case <-w.RefreshChannel():
		// A second signal can legitimately arrive if a write landed after
		// the first debounce fired; drain it.
	case <-time.After(debounceWindow * 2):
	}
	select {
	case <-w.RefreshChannel():
		t.Fatal("burst produced more than two signals")
	case <-time.After(debounceWindow * 2):
	}
}
