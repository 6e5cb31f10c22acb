package common

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"
)

// crashLogDir receives crash reports written by RecoverWithCrashFile
var crashLogDir = "./logs"

var backgroundTasks int64

// InstallCrashHandler sets the crash report directory. Call it early in main
// together with a deferred RecoverWithCrashFile.
func InstallCrashHandler(logDir string) {
	if logDir != "" {
		crashLogDir = logDir
	}
	if err := os.MkdirAll(crashLogDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: Failed to create log directory: %v\n", err)
	}
}

// RecoverWithCrashFile writes a crash report for a panic on the calling
// goroutine and exits.
// Usage: defer common.RecoverWithCrashFile()
func RecoverWithCrashFile() {
	if r := recover(); r != nil {
		WriteCrashFile(r, stackTrace(false))
		os.Exit(1)
	}
}

// WriteCrashFile writes a crash report and returns its path, or "" when the
// report could only go to stderr.
func WriteCrashFile(panicVal interface{}, trace string) string {
	now := time.Now()
	path := filepath.Join(crashLogDir, fmt.Sprintf("crash-%s.log", now.Format("2006-01-02T15-04-05")))

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	var report strings.Builder
	report.WriteString("=== DRIFT CRASH REPORT ===\n")
	fmt.Fprintf(&report, "Time: %s\n", now.Format(time.RFC3339))
	fmt.Fprintf(&report, "Version: %s\n\n", GetFullVersion())
	fmt.Fprintf(&report, "=== PANIC VALUE ===\n%v\n\n", panicVal)
	fmt.Fprintf(&report, "=== STACK TRACE ===\n%s\n", trace)
	fmt.Fprintf(&report, "=== RUNTIME ===\nNumGoroutine: %d\nBackgroundTasks: %d\nAlloc: %d MB\nNumGC: %d\n\n",
		runtime.NumGoroutine(), BackgroundTasks(), memStats.Alloc/1024/1024, memStats.NumGC)
	fmt.Fprintf(&report, "=== ALL GOROUTINES ===\n%s\n", stackTrace(true))

	if err := os.WriteFile(path, []byte(report.String()), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: Failed to write crash file: %v\n%s", err, report.String())
		return ""
	}

	fmt.Fprintf(os.Stderr, "\n!!! FATAL CRASH - Report saved to: %s !!!\nPanic: %v\n", path, panicVal)
	return path
}

// SafeGo runs fn on a new goroutine. A panic is logged with its stack and
// swallowed; callers that wait on fn must signal completion from a defer.
func SafeGo(logger arbor.ILogger, name string, fn func()) {
	atomic.AddInt64(&backgroundTasks, 1)

	go func() {
		defer atomic.AddInt64(&backgroundTasks, -1)
		defer func() {
			if r := recover(); r != nil {
				logPanic(logger, name, r)
			}
		}()
		fn()
	}()
}

// SafeGoWithContext is SafeGo that skips fn when ctx is already done
func SafeGoWithContext(ctx context.Context, logger arbor.ILogger, name string, fn func()) {
	SafeGo(logger, name, func() {
		if ctx.Err() != nil {
			if logger != nil {
				logger.Debug().Str("goroutine", name).Msg("Goroutine cancelled before start")
			}
			return
		}
		fn()
	})
}

// BackgroundTasks returns the number of SafeGo goroutines still running
func BackgroundTasks() int64 {
	return atomic.LoadInt64(&backgroundTasks)
}

func logPanic(logger arbor.ILogger, name string, r interface{}) {
	trace := stackTrace(false)
	if logger == nil {
		fmt.Fprintf(os.Stderr, "PANIC in goroutine %s: %v\n%s\n", name, r, trace)
		return
	}
	logger.Error().
		Str("goroutine", name).
		Str("panic", fmt.Sprintf("%v", r)).
		Str("stack", trace).
		Msg("Recovered from panic in goroutine")
}

func stackTrace(all bool) string {
	buf := make([]byte, 16*1024)
	for {
		n := runtime.Stack(buf, all)
		if n < len(buf) || len(buf) >= 16*1024*1024 {
			return string(buf[:n])
		}
		buf = make([]byte, len(buf)*2)
	}
}
