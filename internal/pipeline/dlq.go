package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hoangpro267200/omen/internal/domain"
	"github.com/hoangpro267200/omen/internal/errkind"
)

// DLQEntry is one event that failed validation or enrichment, queued for
// later inspection or reprocessing (spec.md §4.7).
type DLQEntry struct {
	Event      domain.RawEvent
	ErrKind    string
	Reason     string
	RetryCount int
	FirstSeen  time.Time
}

// DLQ is a bounded FIFO dead-letter queue. When full, the oldest entry is
// dropped to make room — spec.md names it "bounded" without specifying an
// overflow policy, so oldest-drop was chosen to keep the newest failures
// (the ones most likely still actionable) visible.
type DLQ struct {
	mu       sync.Mutex
	capacity int
	entries  []DLQEntry
}

// NewDLQ builds a dead-letter queue bounded to capacity entries.
func NewDLQ(capacity int) *DLQ {
	if capacity <= 0 {
		capacity = 1000
	}
	return &DLQ{capacity: capacity}
}

// Enqueue adds a failed event, tagging it with the error kind and reason.
func (d *DLQ) Enqueue(event domain.RawEvent, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry := DLQEntry{
		Event:     event,
		ErrKind:   errKindName(err),
		Reason:    err.Error(),
		FirstSeen: time.Now().UTC(),
	}
	d.entries = append(d.entries, entry)
	if len(d.entries) > d.capacity {
		d.entries = d.entries[len(d.entries)-d.capacity:]
	}
}

// requeue appends entry with retry_count+1, used by ReprocessDLQ for
// entries that fail again.
func (d *DLQ) requeue(entry DLQEntry) {
	entry.RetryCount++
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = append(d.entries, entry)
	if len(d.entries) > d.capacity {
		d.entries = d.entries[len(d.entries)-d.capacity:]
	}
}

// Len returns the current queue depth.
func (d *DLQ) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// Entries returns a snapshot copy of the queue, oldest first.
func (d *DLQ) Entries() []DLQEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]DLQEntry, len(d.entries))
	copy(out, d.entries)
	return out
}

func (d *DLQ) dequeue(n int) []DLQEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n > len(d.entries) {
		n = len(d.entries)
	}
	out := make([]DLQEntry, n)
	copy(out, d.entries[:n])
	d.entries = d.entries[n:]
	return out
}

// ReprocessDLQ dequeues up to maxItems entries and re-runs them through the
// pipeline; successes are dropped, failures are re-enqueued at the tail
// with retry_count+1 (spec.md §4.7).
func (p *Pipeline) ReprocessDLQ(ctx context.Context, maxItems int) (succeeded, failed int) {
	entries := p.dlq.dequeue(maxItems)
	for _, entry := range entries {
		result := p.Process(ctx, entry.Event)
		if result.OK {
			succeeded++
			continue
		}
		failed++
		// Process has just enqueued this event afresh; replace that entry
		// with the original one carrying the incremented retry count.
		p.dlq.mu.Lock()
		if n := len(p.dlq.entries); n > 0 && p.dlq.entries[n-1].Event.EventID == entry.Event.EventID {
			p.dlq.entries = p.dlq.entries[:n-1]
		}
		p.dlq.mu.Unlock()
		p.dlq.requeue(entry)
	}
	return succeeded, failed
}

// errKindName classifies a pipeline failure into the error-kind tag the
// DLQ entry carries (spec.md §4.7, §7).
func errKindName(err error) string {
	var ruleErr *errkind.RuleError
	switch {
	case errors.As(err, &ruleErr):
		return "ValidationRuleError:" + ruleErr.RuleName
	case errors.Is(err, errkind.ErrTranslationRule):
		return "TranslationRuleError"
	case errors.Is(err, errkind.ErrPersistence):
		return "PersistenceError"
	case errors.Is(err, errkind.ErrPublish):
		return "PublishError"
	case errors.Is(err, errkind.ErrAdapterUnavailable):
		return "AdapterUnavailable"
	default:
		return "UnknownError"
	}
}
