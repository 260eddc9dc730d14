package metrics

import (
	"sync/atomic"
	"time"
)

// Collector keeps process-wide counters for HTTP traffic and sweeps.
type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	rateLimited     uint64
	totalDurationMs uint64

	sweeps        uint64
	sweepFailures uint64
	reminded      uint64
	reassigned    uint64
	escalated     uint64
	autoApproved  uint64
	held          uint64
}

func New() *Collector {
	return &Collector{}
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	}
	if status == 429 {
		atomic.AddUint64(&c.rateLimited, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

// SweepCounts is the per-sweep tally reported by the escalation sweeper.
type SweepCounts struct {
	Reminded     int
	Reassigned   int
	Escalated    int
	AutoApproved int
	Held         int
	Failed       int
}

func (c *Collector) RecordSweep(counts SweepCounts) {
	atomic.AddUint64(&c.sweeps, 1)
	atomic.AddUint64(&c.reminded, uint64(counts.Reminded))
	atomic.AddUint64(&c.reassigned, uint64(counts.Reassigned))
	atomic.AddUint64(&c.escalated, uint64(counts.Escalated))
	atomic.AddUint64(&c.autoApproved, uint64(counts.AutoApproved))
	atomic.AddUint64(&c.held, uint64(counts.Held))
	atomic.AddUint64(&c.sweepFailures, uint64(counts.Failed))
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}
	return map[string]any{
		"requestsTotal":         total,
		"errorsTotal":           atomic.LoadUint64(&c.errorRequests),
		"rateLimitedTotal":      atomic.LoadUint64(&c.rateLimited),
		"avgDurationMs":         avg,
		"totalDurationMs":       totalMs,
		"sweepsTotal":           atomic.LoadUint64(&c.sweeps),
		"sweepFailuresTotal":    atomic.LoadUint64(&c.sweepFailures),
		"approvalsReminded":     atomic.LoadUint64(&c.reminded),
		"approvalsReassigned":   atomic.LoadUint64(&c.reassigned),
		"approvalsEscalated":    atomic.LoadUint64(&c.escalated),
		"approvalsAutoApproved": atomic.LoadUint64(&c.autoApproved),
		"approvalsHeld":         atomic.LoadUint64(&c.held),
	}
}
