// Package sandbox implements the per-agent capability policy: command,
// URL, filesystem, environment-variable, and network allow/deny rules,
// with a bounded audit log of every decision.
package sandbox

import "fmt"

// DeniedError is returned whenever a sandbox check rejects an operation.
// It is never retried and always logged at WARN by the caller.
type DeniedError struct {
	Op      string // "command", "url", "path", "env", "network"
	Subject string // the argv0 / host / path / var name that was rejected
	Reason  string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("sandbox: %s denied for %q: %s", e.Op, e.Subject, e.Reason)
}

func denied(op, subject, reason string) *DeniedError {
	return &DeniedError{Op: op, Subject: subject, Reason: reason}
}
