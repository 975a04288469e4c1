// Package progress emits throttled rate reports for long running loops.
package progress

import (
	"fmt"
	"log/slog"
	"time"
)

// DefaultInterval is the minimum time between two reports.
const DefaultInterval = 5 * time.Second

// Reporter logs how many items were processed and at what rate. It is not
// safe for concurrent use.
type Reporter struct {
	logger   *slog.Logger
	verb     string
	noun     string
	interval time.Duration
	start    time.Time
	due      time.Duration
	now      func() time.Time
}

// New starts a reporter for items called noun. A non-positive interval
// falls back to DefaultInterval.
func New(logger *slog.Logger, noun string, interval time.Duration) *Reporter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	r := &Reporter{logger: logger, verb: "inserted", noun: noun, interval: interval, now: time.Now}
	r.start = r.now()
	r.due = interval
	return r
}

// WithVerb replaces the verb of the report, "inserted" by default.
func (r *Reporter) WithVerb(verb string) *Reporter {
	r.verb = verb
	return r
}

// Tick reports n processed items if the interval since the last report has
// passed. It reports whether a report was emitted.
func (r *Reporter) Tick(n int) bool {
	elapsed := r.now().Sub(r.start)
	if n == 0 || elapsed < r.due {
		return false
	}
	r.log(n, elapsed)
	for r.due <= elapsed {
		r.due += r.interval
	}
	return true
}

// Done emits the final report for n items.
func (r *Reporter) Done(n int) {
	if n == 0 {
		return
	}
	r.log(n, r.now().Sub(r.start))
}

// Elapsed returns the time since the reporter was started.
func (r *Reporter) Elapsed() time.Duration { return r.now().Sub(r.start) }

func (r *Reporter) log(n int, elapsed time.Duration) {
	r.logger.Info(Message(r.verb, r.noun, n, elapsed),
		"count", n,
		"elapsed", elapsed,
	)
}

// Message formats a rate report such as
// "inserted 10 elements over 2s, averaging 200ms/element ↔ 5 elements/s".
func Message(verb, noun string, n int, elapsed time.Duration) string {
	if n == 0 {
		return fmt.Sprintf("%s 0 %ss over %s", verb, noun, elapsed)
	}
	per := elapsed / time.Duration(n)
	rate := 0.0
	if elapsed > 0 {
		rate = float64(n) / elapsed.Seconds()
	}
	return fmt.Sprintf("%s %d %ss over %s, averaging %s/%s ↔ %.0f %ss/s",
		verb, n, noun, elapsed, per, noun, rate, noun)
}
