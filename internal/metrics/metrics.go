// Package metrics provides planning-cycle metric recording and summary
// reporting for the trajectory planner CLI.
package metrics

import (
	"fmt"
	"time"
)

// Outcome classifies a single planning cycle.
type Outcome string

const (
	// OutcomeSeed marks the first cycle, which publishes the seed
	// trajectory without replanning.
	OutcomeSeed Outcome = "SEED"
	// OutcomeReplanned marks a cycle that successfully regenerated.
	OutcomeReplanned Outcome = "REPLANNED"
	// OutcomeRejected marks a cycle whose replanning was rejected; the
	// previous output stays in effect.
	OutcomeRejected Outcome = "REJECTED"
)

// CycleRecord holds the outcome of one planning cycle.
type CycleRecord struct {
	Cycle    int
	Outcome  Outcome
	Duration time.Duration
	Samples  int
}

// Recorder accumulates per-cycle records. The zero value is ready to use.
//
// Metric recording is non-fatal by design: a full recorder never rejects
// new records and callers never need to check an error.
type Recorder struct {
	records []CycleRecord
}

// Record appends one cycle record.
func (r *Recorder) Record(outcome Outcome, duration time.Duration, samples int) {
	r.records = append(r.records, CycleRecord{
		Cycle:    len(r.records) + 1,
		Outcome:  outcome,
		Duration: duration,
		Samples:  samples,
	})
}

// Records returns all recorded cycles in order.
func (r *Recorder) Records() []CycleRecord {
	return r.records
}

// Totals returns the cycle count, the rejected-cycle count, and the total
// planning time.
func (r *Recorder) Totals() (cycles, rejected int, total time.Duration) {
	for _, rec := range r.records {
		total += rec.Duration
		if rec.Outcome == OutcomeRejected {
			rejected++
		}
	}
	return len(r.records), rejected, total
}

// PrintSummary prints a box-draw table to stdout summarizing the run:
// cycle count, rejections, total and average planning time.
func (r *Recorder) PrintSummary() {
	cycles, rejected, total := r.Totals()

	var avg time.Duration
	if cycles > 0 {
		avg = total / time.Duration(cycles)
	}

	const line = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"
	fmt.Printf("\n%s\n", line)
	fmt.Println("PLANNING SUMMARY")
	fmt.Printf("%s\n", line)
	fmt.Printf("  %-22s %d\n", "Cycles:", cycles)
	fmt.Printf("  %-22s %d\n", "Rejected:", rejected)
	fmt.Printf("  %-22s %s\n", "Total Planning Time:", total.Round(time.Microsecond))
	fmt.Printf("  %-22s %s\n", "Average per Cycle:", avg.Round(time.Microsecond))
	fmt.Printf("%s\n\n", line)
}
