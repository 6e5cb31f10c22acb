package common

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestSafeGo_RecoversPanic(t *testing.T) {
	done := make(chan struct{})
	SafeGo(arbor.NewLogger(), "panicky", func() {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("goroutine did not run")
	}

	assert.Eventually(t, func() bool { return BackgroundTasks() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestSafeGoWithContext_SkipsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := make(chan struct{}, 1)
	SafeGoWithContext(ctx, arbor.NewLogger(), "skipped", func() { ran <- struct{}{} })

	assert.Eventually(t, func() bool { return BackgroundTasks() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, ran)
}

func TestWriteCrashFile(t *testing.T) {
	InstallCrashHandler(t.TempDir())

	path := WriteCrashFile("kaboom", "main.go:1")
	require.NotEmpty(t, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	report := string(data)
	assert.True(t, strings.HasPrefix(report, "=== DRIFT CRASH REPORT ==="))
	assert.Contains(t, report, "kaboom")
	assert.Contains(t, report, "main.go:1")
}
