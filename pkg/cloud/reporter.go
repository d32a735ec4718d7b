// Package cloud sends periodic crossing summaries to the reporting service.
package cloud

import (
	"context"
	"sync"
	"time"

	"github.com/itohio/goxing/pkg/config"
	"github.com/itohio/goxing/pkg/crossing"
	"github.com/itohio/goxing/pkg/debuglog"
)

// DefaultPollInterval is how often Run checks whether a report is due.
const DefaultPollInterval = time.Second

// Report is one summary sent to the reporting service.
type Report struct {
	Device string    `json:"device"`
	Since  time.Time `json:"since"` // Start of the counting window
	Time   time.Time `json:"time"`  // Time of the send attempt
	Left   int       `json:"left"`
	Right  int       `json:"right"`
	Total  int       `json:"total"`
}

// Sender delivers a report.
type Sender interface {
	Send(ctx context.Context, r Report) error
}

// Reporter accumulates crossings and sends them through a Sender no more
// often than the configured update interval.
//
// The interval is measured between send attempts. A failed attempt still
// counts, and its crossings are carried over into the next report.
type Reporter struct {
	sender   Sender
	interval time.Duration
	poll     time.Duration
	device   string
	loc      *time.Location
	log      *debuglog.Logger
	now      func() time.Time

	mu          sync.Mutex
	pending     crossing.Counts
	since       time.Time
	lastAttempt time.Time
	sent        int
	failed      int
}

// NewReporter creates a reporter. The first report is due one interval after
// creation.
func NewReporter(cfg *config.Config, sender Sender, log *debuglog.Logger) *Reporter {
	return newReporter(cfg, sender, log, time.Now)
}

func newReporter(cfg *config.Config, sender Sender, log *debuglog.Logger, now func() time.Time) *Reporter {
	start := now()
	return &Reporter{
		sender:      sender,
		interval:    cfg.Cloud.UpdateInterval,
		poll:        DefaultPollInterval,
		device:      cfg.Cloud.DeviceID,
		loc:         cfg.Location(),
		log:         log,
		now:         now,
		since:       start,
		lastAttempt: start,
	}
}

// Add counts a completed crossing towards the next report.
func (r *Reporter) Add(ev crossing.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending.Add(ev.Direction)
}

// Pending returns the crossings not yet reported.
func (r *Reporter) Pending() crossing.Counts {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending
}

// Stats returns the number of successful and failed send attempts.
func (r *Reporter) Stats() (sent, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent, r.failed
}

// Due reports whether a send attempt is allowed now.
func (r *Reporter) Due() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dueLocked(r.now())
}

func (r *Reporter) dueLocked(now time.Time) bool {
	return now.Sub(r.lastAttempt) >= r.interval
}

// Flush sends a report if one is due. It returns whether an attempt was made
// and the error of that attempt.
func (r *Reporter) Flush(ctx context.Context) (bool, error) {
	r.mu.Lock()
	now := r.now()
	if !r.dueLocked(now) {
		r.mu.Unlock()
		return false, nil
	}
	r.lastAttempt = now
	counts := r.pending
	report := Report{
		Device: r.device,
		Since:  r.since.In(r.loc),
		Time:   now.In(r.loc),
		Left:   counts.Left,
		Right:  counts.Right,
		Total:  counts.Total(),
	}
	r.mu.Unlock()

	err := r.sender.Send(ctx, report)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.failed++
		r.log.System("report failed, %d crossings carried over: %v", counts.Total(), err)
		return true, err
	}

	// Crossings added while sending stay pending.
	r.pending.Left -= counts.Left
	r.pending.Right -= counts.Right
	r.since = now
	r.sent++
	r.log.Human("reported %d crossings (left %d, right %d)", report.Total, report.Left, report.Right)
	return true, nil
}

// Run checks for due reports until ctx is cancelled.
func (r *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.System("reporter stopped")
			return nil
		case <-ticker.C:
			// Errors are logged by Flush and retried after the next interval.
			_, _ = r.Flush(ctx)
		}
	}
}
