// Package crashlog writes post-mortem reports for failures that end a chat turn.
package crashlog

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	separator    = "--------------------------------------------------"
	suffixLength = 6
	suffixChars  = "0123456789abcdefghijklmnopqrstuvwxyz"
)

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// Write records err under dir and returns the report path. The stack is the one carried by
// a github.com/pkg/errors value when present, otherwise the caller's.
func Write(dir string, err error, context string) (string, error) {
	if err == nil {
		return "", fmt.Errorf("crashlog: nil error")
	}
	return write(dir, context, typeName(err), err.Error(), stackOf(err))
}

// WritePanic records a value recovered from a panic. Call it from the deferred function that
// recovered, so the stack still shows the panicking frames.
func WritePanic(dir string, recovered interface{}, context string) (string, error) {
	if err, ok := recovered.(error); ok {
		return write(dir, context, "panic "+typeName(err), err.Error(), debug.Stack())
	}
	return write(dir, context, fmt.Sprintf("panic %T", recovered), fmt.Sprint(recovered), debug.Stack())
}

func write(dir, context, kind, message string, stack []byte) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create crash log directory: %w", err)
	}

	suffix, err := gonanoid.Generate(suffixChars, suffixLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate crash log name: %w", err)
	}

	now := time.Now()
	path := filepath.Join(dir, fmt.Sprintf("crash_%s_%s.log", now.Format("20060102_150405"), suffix))

	if context == "" {
		context = "General"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Timestamp: %s\n", now.Format(time.RFC3339Nano))
	fmt.Fprintf(&b, "Context: %s\n", context)
	fmt.Fprintf(&b, "Exception: %s: %s\n", kind, message)
	b.WriteString(separator + "\n")
	b.Write(stack)
	if len(stack) > 0 && stack[len(stack)-1] != '\n' {
		b.WriteByte('\n')
	}
	b.WriteString(separator + "\n")

	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return "", fmt.Errorf("failed to write crash log: %w", err)
	}

	log.Error().Str("path", path).Str("context", context).Msg("Crash log written")
	return path, nil
}

// typeName names the innermost error, skipping the pkg/errors and fmt wrappers.
func typeName(err error) string {
	root := errors.Cause(err)
	for {
		next := stderrors.Unwrap(root)
		if next == nil {
			break
		}
		root = errors.Cause(next)
	}
	return strings.TrimPrefix(fmt.Sprintf("%T", root), "*")
}

func stackOf(err error) []byte {
	var tracer stackTracer
	if stderrors.As(err, &tracer) {
		return []byte(strings.TrimPrefix(fmt.Sprintf("%+v", tracer.StackTrace()), "\n"))
	}
	return debug.Stack()
}
