package scans

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	domain "github.com/bryanwahyu/threatlens/internal/domain/scans"
)

// PollState is a step of the poll state machine.
type PollState int

const (
	StateSubmitted PollState = iota
	StatePolling
	StateCompleted
	StatePartialFallback
	StateTimedOut
	StateFailed
)

func (s PollState) String() string {
	switch s {
	case StateSubmitted:
		return "submitted"
	case StatePolling:
		return "polling"
	case StateCompleted:
		return "completed"
	case StatePartialFallback:
		return "partial_fallback"
	case StateTimedOut:
		return "timed_out"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Policy is one configuration of the poll state machine.
type Policy struct {
	Mode        domain.Mode
	SettleDelay time.Duration // wait before the first status check
	Interval    time.Duration // wait between status checks
	MaxAttempts int
	// PartialFallback: when attempts run out, try the report anyway and
	// degrade to a pending report instead of timing out.
	PartialFallback bool
}

// PollConfig holds the timing knobs for both modes.
type PollConfig struct {
	ExpressSettle             time.Duration
	ExpressInterval           time.Duration
	ExpressFileAttempts       int
	ExpressURLAttempts        int
	ComprehensiveInterval     time.Duration
	ComprehensiveFileAttempts int
	ComprehensiveURLAttempts  int
}

// DefaultPollConfig mirrors the provider's typical latency.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		ExpressSettle:             2 * time.Second,
		ExpressInterval:           time.Second,
		ExpressFileAttempts:       10,
		ExpressURLAttempts:        5,
		ComprehensiveInterval:     2 * time.Second,
		ComprehensiveFileAttempts: 30,
		ComprehensiveURLAttempts:  15,
	}
}

// Policy picks the policy for a mode and target kind.
func (c PollConfig) Policy(mode domain.Mode, kind domain.TargetType) Policy {
	if mode == domain.ModeComprehensive {
		p := Policy{Mode: mode, Interval: c.ComprehensiveInterval, MaxAttempts: c.ComprehensiveFileAttempts}
		if kind == domain.TargetURL {
			p.MaxAttempts = c.ComprehensiveURLAttempts
		}
		return p
	}
	p := Policy{
		Mode:            domain.ModeExpress,
		SettleDelay:     c.ExpressSettle,
		Interval:        c.ExpressInterval,
		MaxAttempts:     c.ExpressFileAttempts,
		PartialFallback: true,
	}
	if kind == domain.TargetURL {
		p.MaxAttempts = c.ExpressURLAttempts
	}
	return p
}

// Sleeper waits d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// PollOutcome is what the poller hands to the mapper.
type PollOutcome struct {
	Report   domain.RawDetectionReport
	State    PollState
	Attempts int
}

// Degraded reports whether the report was synthesized.
func (o PollOutcome) Degraded() bool { return o.Report.Pending }

// Poller drives one handle to a report. Polls for one handle are strictly
// sequential; a Poller may be shared by concurrent scans.
type Poller struct {
	Status  domain.StatusChecker
	Reports domain.ReportFetcher
	Sleep   Sleeper
	Logger  *slog.Logger
}

func (p *Poller) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return SleepContext(ctx, d)
}

func (p *Poller) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// Poll runs the state machine Submitted -> Polling -> {Completed,
// PartialFallback, TimedOut, Failed}. Cancellation is honoured between steps.
func (p *Poller) Poll(ctx context.Context, h domain.AnalysisHandle, pol Policy) (PollOutcome, error) {
	log := p.logger().With("handle", h, "mode", pol.Mode)
	state := StateSubmitted
	attempts := 0
	resourceID := ""

	for {
		if err := ctx.Err(); err != nil {
			log.Info("poll abandoned", "state", state, "attempts", attempts)
			return PollOutcome{State: state, Attempts: attempts}, err
		}

		switch state {
		case StateSubmitted:
			if err := p.sleep(ctx, pol.SettleDelay); err != nil {
				return PollOutcome{State: state}, err
			}
			state = StatePolling

		case StatePolling:
			attempts++
			st, err := p.Status.AnalysisStatus(ctx, h)
			switch {
			case err != nil && ctx.Err() != nil:
				return PollOutcome{State: state, Attempts: attempts}, ctx.Err()
			case err != nil:
				// treated as not ready yet
				log.Warn("status check failed", "attempt", attempts, "err", err)
			default:
				log.Debug("status", "attempt", attempts, "status", st.Status)
				if st.ResourceID != "" {
					resourceID = st.ResourceID
				}
				if st.Completed() {
					state = StateCompleted
					continue
				}
			}

			if attempts >= pol.MaxAttempts {
				if pol.PartialFallback {
					state = StatePartialFallback
				} else {
					state = StateTimedOut
				}
				log.Info("poll budget exhausted", "attempts", attempts, "next", state)
				continue
			}
			if err := p.sleep(ctx, pol.Interval); err != nil {
				return PollOutcome{State: state, Attempts: attempts}, err
			}

		case StateCompleted, StatePartialFallback:
			id := resourceID
			if id == "" {
				id = string(h)
			}
			rep, err := p.Reports.FetchReport(ctx, id)
			if err == nil {
				return PollOutcome{Report: rep, State: state, Attempts: attempts}, nil
			}
			if ctx.Err() != nil {
				return PollOutcome{State: state, Attempts: attempts}, ctx.Err()
			}
			if pol.PartialFallback {
				log.Warn("report unavailable, returning pending result", "from", state, "err", err)
				return PollOutcome{Report: domain.PendingReport(id), State: state, Attempts: attempts}, nil
			}
			log.Error("report fetch failed", "err", err)
			return PollOutcome{State: StateFailed, Attempts: attempts}, err

		case StateTimedOut:
			return PollOutcome{State: state, Attempts: attempts}, &domain.TimeoutError{Handle: h, Mode: pol.Mode, Attempts: attempts}

		default:
			return PollOutcome{State: state, Attempts: attempts}, fmt.Errorf("poller reached unknown state %d", state)
		}
	}
}
