package sandbox

import (
	"log/slog"
	"sync"
	"time"
)

// AuditEntry is one recorded sandbox decision.
type AuditEntry struct {
	Time    time.Time
	Op      string
	Subject string
	Allowed bool
	Reason  string
}

// auditLog is a fixed-capacity ring buffer of decisions: when full, the
// oldest half is dropped to make room, rather than growing unbounded or
// blocking the caller.
type auditLog struct {
	mu       sync.Mutex
	cap      int
	entries  []AuditEntry
}

func newAuditLog(capacity int) *auditLog {
	return &auditLog{cap: capacity, entries: make([]AuditEntry, 0, capacity)}
}

func (a *auditLog) record(e AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.entries) >= a.cap {
		half := len(a.entries) / 2
		copy(a.entries, a.entries[half:])
		a.entries = a.entries[:len(a.entries)-half]
	}
	a.entries = append(a.entries, e)

	if e.Allowed {
		slog.Debug("sandbox.allowed", "op", e.Op, "subject", e.Subject)
	} else {
		slog.Warn("sandbox.denied", "op", e.Op, "subject", e.Subject, "reason", e.Reason)
	}
}

func (a *auditLog) snapshot() []AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]AuditEntry, len(a.entries))
	copy(out, a.entries)
	return out
}

func (p *Policy) allow(op, subject string) {
	p.audit.record(AuditEntry{Time: time.Now(), Op: op, Subject: subject, Allowed: true})
}

func (p *Policy) deny(op, subject, reason string) *DeniedError {
	p.audit.record(AuditEntry{Time: time.Now(), Op: op, Subject: subject, Allowed: false, Reason: reason})
	return denied(op, subject, reason)
}
