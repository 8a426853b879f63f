// Package report accumulates per-dispatch outcomes and renders the final
// summary for a replay pass.
package report

import (
	"fmt"
	"strings"
	"time"
)

// Outcome classifies a single dispatch attempt.
type Outcome string

const (
	// Succeeded means the target processed the payload.
	Succeeded Outcome = "succeeded"
	// Skipped means dry-run mode suppressed the invocation.
	Skipped Outcome = "skipped"
	// TransportFailure means the target could not be reached, was throttled,
	// or timed out. Safe to retry manually.
	TransportFailure Outcome = "transport-failure"
	// Rejected means the target was invoked but reported a business error.
	Rejected Outcome = "rejected"
	// NotFound means the entity did not resolve in the orchestration service.
	NotFound Outcome = "not-found"
)

// Record is the outcome of dispatching one entity to one target.
type Record struct {
	EntityID string
	Target   string
	Outcome  Outcome
	Detail   string
	Elapsed  time.Duration
}

// Failed reports whether the record needs a manual re-run.
func (r Record) Failed() bool {
	return r.Outcome == TransportFailure || r.Outcome == Rejected || r.Outcome == NotFound
}

// Report is an ordered collection of dispatch records for one pass.
// RetryHint controls whether the summary suggests a --run-ids re-run; only
// passes with an explicit-id path set it.
type Report struct {
	RetryHint bool

	records []Record
}

// Add appends a record.
func (r *Report) Add(rec Record) {
	r.records = append(r.records, rec)
}

// Records returns the accumulated records in dispatch order.
func (r *Report) Records() []Record {
	return r.records
}

// Counts returns the number of records per outcome.
func (r *Report) Counts() map[Outcome]int {
	counts := make(map[Outcome]int)
	for _, rec := range r.records {
		counts[rec.Outcome]++
	}
	return counts
}

// Failures returns the records that need manual attention, in order.
func (r *Report) Failures() []Record {
	var failed []Record
	for _, rec := range r.records {
		if rec.Failed() {
			failed = append(failed, rec)
		}
	}
	return failed
}

// Summary renders the final pass report: counts by outcome, one line per
// failure, and a retry hint listing the failed entity ids.
func (r *Report) Summary() string {

	var b strings.Builder
	counts := r.Counts()

	fmt.Fprintf(&b, "Replay pass complete: %d dispatches\n", len(r.records))
	for _, o := range []Outcome{Succeeded, Skipped, TransportFailure, Rejected, NotFound} {
		if counts[o] > 0 {
			fmt.Fprintf(&b, "  %s: %d\n", o, counts[o])
		}
	}

	failed := r.Failures()
	if len(failed) == 0 {
		return b.String()
	}

	b.WriteString("Failures:\n")
	seen := make(map[string]bool)
	var ids []string
	for _, rec := range failed {
		fmt.Fprintf(&b, "  %s -> %s: %s (%s)\n", rec.EntityID, rec.Target, rec.Outcome, rec.Detail)
		if !seen[rec.EntityID] {
			seen[rec.EntityID] = true
			ids = append(ids, rec.EntityID)
		}
	}
	if r.RetryHint {
		fmt.Fprintf(&b, "Retry failed entities with: --run-ids %s\n", strings.Join(ids, ","))
	}

	return b.String()
}
