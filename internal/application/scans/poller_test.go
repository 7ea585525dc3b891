package scans_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/threatlens/internal/application/scans"
	domain "github.com/bryanwahyu/threatlens/internal/domain/scans"
)

func newPoller(status *scriptedStatus, reports *fakeReports) (*scans.Poller, *sleepRecorder) {
	sl := &sleepRecorder{}
	return &scans.Poller{Status: status, Reports: reports, Sleep: sl.Sleep}, sl
}

func TestPolicyPerModeAndKind(t *testing.T) {
	cfg := scans.DefaultPollConfig()

	p := cfg.Policy(domain.ModeExpress, domain.TargetFile)
	require.Equal(t, 10, p.MaxAttempts)
	require.Equal(t, 2*time.Second, p.SettleDelay)
	require.True(t, p.PartialFallback)
	require.Equal(t, 5, cfg.Policy(domain.ModeExpress, domain.TargetURL).MaxAttempts)

	p = cfg.Policy(domain.ModeComprehensive, domain.TargetFile)
	require.Equal(t, 30, p.MaxAttempts)
	require.Equal(t, 2*time.Second, p.Interval)
	require.Zero(t, p.SettleDelay)
	require.False(t, p.PartialFallback)
	require.Equal(t, 15, cfg.Policy(domain.ModeComprehensive, domain.TargetURL).MaxAttempts)
}

func TestPollCompletesAfterPendingStatuses(t *testing.T) {
	status := &scriptedStatus{script: []statusStep{pending(), pending(), pending(), done("sha-1")}}
	reports := &fakeReports{report: sampleReport("sha-1")}
	p, sl := newPoller(status, reports)

	pol := scans.DefaultPollConfig().Policy(domain.ModeComprehensive, domain.TargetFile)
	out, err := p.Poll(context.Background(), "h-1", pol)
	require.NoError(t, err)
	require.Equal(t, scans.StateCompleted, out.State)
	require.Equal(t, 4, out.Attempts)
	require.False(t, out.Degraded())
	require.Equal(t, []string{"sha-1"}, reports.asked)
	require.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second, 2 * time.Second}, sl.waits)
}

func TestExpressSettlesBeforeFirstPoll(t *testing.T) {
	status := &scriptedStatus{script: []statusStep{done("")}}
	reports := &fakeReports{report: sampleReport("x")}
	p, sl := newPoller(status, reports)

	out, err := p.Poll(context.Background(), "handle-7", scans.DefaultPollConfig().Policy(domain.ModeExpress, domain.TargetURL))
	require.NoError(t, err)
	require.Equal(t, 1, out.Attempts)
	require.Equal(t, []time.Duration{2 * time.Second}, sl.waits)
	// no resource id in the status: fall back to the handle
	require.Equal(t, []string{"handle-7"}, reports.asked)
}

func TestExpressNeverCompletedReturnsPending(t *testing.T) {
	status := &scriptedStatus{script: []statusStep{pending()}}
	reports := &fakeReports{err: &domain.ReportUnavailableError{ResourceID: "h"}}
	p, _ := newPoller(status, reports)

	out, err := p.Poll(context.Background(), "h", scans.DefaultPollConfig().Policy(domain.ModeExpress, domain.TargetFile))
	require.NoError(t, err)
	require.Equal(t, scans.StatePartialFallback, out.State)
	require.Equal(t, 10, out.Attempts)
	require.Equal(t, 10, status.Calls())
	require.True(t, out.Degraded())
}

func TestExpressFallbackUsesAvailableReport(t *testing.T) {
	status := &scriptedStatus{script: []statusStep{pending()}}
	reports := &fakeReports{report: sampleReport("partial")}
	p, _ := newPoller(status, reports)

	out, err := p.Poll(context.Background(), "h", scans.DefaultPollConfig().Policy(domain.ModeExpress, domain.TargetURL))
	require.NoError(t, err)
	require.Equal(t, scans.StatePartialFallback, out.State)
	require.Equal(t, 5, out.Attempts)
	require.False(t, out.Degraded())
	require.Equal(t, "partial", out.Report.ID)
}

func TestComprehensiveTimesOut(t *testing.T) {
	status := &scriptedStatus{script: []statusStep{pending()}}
	reports := &fakeReports{report: sampleReport("never")}
	p, _ := newPoller(status, reports)

	out, err := p.Poll(context.Background(), "h-slow", scans.DefaultPollConfig().Policy(domain.ModeComprehensive, domain.TargetURL))
	var terr *domain.TimeoutError
	require.ErrorAs(t, err, &terr)
	require.Equal(t, 15, terr.Attempts)
	require.Equal(t, domain.AnalysisHandle("h-slow"), terr.Handle)
	require.Equal(t, scans.StateTimedOut, out.State)
	require.Empty(t, reports.asked)
}

func TestComprehensiveReportUnavailableFails(t *testing.T) {
	status := &scriptedStatus{script: []statusStep{done("r")}}
	reports := &fakeReports{err: &domain.ReportUnavailableError{ResourceID: "r"}}
	p, _ := newPoller(status, reports)

	out, err := p.Poll(context.Background(), "h", scans.DefaultPollConfig().Policy(domain.ModeComprehensive, domain.TargetFile))
	var rerr *domain.ReportUnavailableError
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, scans.StateFailed, out.State)
}

func TestStatusErrorsCountAsNotReady(t *testing.T) {
	status := &scriptedStatus{script: []statusStep{{err: errBoom}, {err: errBoom}, done("ok")}}
	reports := &fakeReports{report: sampleReport("ok")}
	p, _ := newPoller(status, reports)

	out, err := p.Poll(context.Background(), "h", scans.DefaultPollConfig().Policy(domain.ModeComprehensive, domain.TargetFile))
	require.NoError(t, err)
	require.Equal(t, 3, out.Attempts)
	require.Equal(t, scans.StateCompleted, out.State)
}

func TestPollStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	status := &scriptedStatus{script: []statusStep{pending()}, onCall: func(n int) {
		if n == 2 {
			cancel()
		}
	}}
	reports := &fakeReports{report: sampleReport("x")}
	p, _ := newPoller(status, reports)

	_, err := p.Poll(ctx, "h", scans.DefaultPollConfig().Policy(domain.ModeExpress, domain.TargetFile))
	require.True(t, errors.Is(err, context.Canceled))
	require.Equal(t, 2, status.Calls())
	require.Empty(t, reports.asked)
}

func TestPollStateNames(t *testing.T) {
	require.Equal(t, "partial_fallback", scans.StatePartialFallback.String())
	require.Equal(t, "timed_out", scans.StateTimedOut.String())
}
