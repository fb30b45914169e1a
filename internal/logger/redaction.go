package logger

import (
	"io"
	"regexp"
)

const redacted = "[REDACTED]"

// Redactor redacts sensitive information from logs
type Redactor struct {
	patterns []*regexp.Regexp
}

// NewRedactor creates a redactor for provider keys, bearer tokens and common secrets.
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []*regexp.Regexp{
			// Anthropic and OpenAI keys
			regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]{16,}`),
			regexp.MustCompile(`sk-[a-zA-Z0-9_-]{16,}`),

			regexp.MustCompile(`Bearer\s+[a-zA-Z0-9._~+/=-]+`),
			regexp.MustCompile(`(?i)x-api-key["\s:=]+[^\s",]+`),

			// GitHub tokens used by git remotes
			regexp.MustCompile(`gh[pousr]_[a-zA-Z0-9]{30,}`),

			regexp.MustCompile(`(?i)password["\s:=]+[^\s",]+`),
			regexp.MustCompile(`(?i)secret["\s:=]+[^\s",]+`),
			regexp.MustCompile(`(?i)token["\s:=]+[a-zA-Z0-9._-]{20,}`),

			regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
		},
	}
}

// AddPattern adds a custom redaction pattern
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.patterns = append(r.patterns, re)
	return nil
}

// Redact redacts sensitive information from a string
func (r *Redactor) Redact(s string) string {
	for _, pattern := range r.patterns {
		s = pattern.ReplaceAllString(s, redacted)
	}
	return s
}

// Wrap wraps an io.Writer so every write is redacted first.
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return &redactingWriter{
		writer:   w,
		redactor: r,
	}
}

type redactingWriter struct {
	writer   io.Writer
	redactor *Redactor
}

// Write reports len(p) on success since callers account for the bytes they handed in.
func (w *redactingWriter) Write(p []byte) (int, error) {
	if _, err := w.writer.Write([]byte(w.redactor.Redact(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}
