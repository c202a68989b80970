package clustermgr

import (
	"sync"
	"time"
)

// LogEntry is one append-only reconciliation log line, the operator-facing
// record of what a tick did and why, independent of the structured zerolog
// output pkg/log produces for the same events.
type LogEntry struct {
	Timestamp time.Time
	Message   string
}

type logBuffer struct {
	mu      sync.Mutex
	entries []LogEntry
	limit   int
}

func newLogBuffer(limit int) *logBuffer {
	return &logBuffer{limit: limit}
}

func (b *logBuffer) append(message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, LogEntry{Timestamp: time.Now(), Message: message})
	if b.limit > 0 && len(b.entries) > b.limit {
		b.entries = b.entries[len(b.entries)-b.limit:]
	}
}

func (b *logBuffer) snapshot() []LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]LogEntry, len(b.entries))
	copy(out, b.entries)
	return out
}
