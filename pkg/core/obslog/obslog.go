// Package obslog centralizes the emoji-prefixed status printing the rest of
// the repo uses, so components don't each hand-roll their own prefixes.
package obslog

import (
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	mu  sync.Mutex
	out io.Writer = os.Stdout
)

// SetOutput redirects log output, used by tests to keep output quiet or to
// capture it for assertions.
func SetOutput(w io.Writer) {
	mu.Lock()
	out = w
	mu.Unlock()
}

func emit(prefix, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(out, prefix+format+"\n", args...)
}

// Infof prints a plain status line.
func Infof(format string, args ...any) { emit("", format, args...) }

// Okf prints a success line.
func Okf(format string, args ...any) { emit("✅ ", format, args...) }

// Warnf prints a recoverable-problem line.
func Warnf(format string, args ...any) { emit("⚠️ ", format, args...) }

// Errorf prints a failure line.
func Errorf(format string, args ...any) { emit("❌ ", format, args...) }
