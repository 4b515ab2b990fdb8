package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/soulmechanik/forems-portal/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

var (
	// Session lifecycle counters
	SignInsTotal      *telemetry.Counter
	RefreshesTotal    *telemetry.Counter
	RoleSwitchesTotal *telemetry.Counter
	SignOutsTotal     *telemetry.Counter

	// Redirect decisions by destination
	RedirectDecisionsTotal *telemetry.Counter

	// Backend call latency
	BackendCallDuration *telemetry.Histogram

	initOnce sync.Once
	initErr  error
)

// Init initializes all portal metrics
func Init() error {
	initOnce.Do(func() {
		initErr = initMetrics()
	})
	return initErr
}

func initMetrics() error {
	var err error

	SignInsTotal, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "portal_sign_ins_total",
		Description: "Google sign-in attempts by outcome",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	RefreshesTotal, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "portal_session_refreshes_total",
		Description: "Session token refreshes by outcome",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	RoleSwitchesTotal, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "portal_role_switches_total",
		Description: "Role switch requests by outcome",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	SignOutsTotal, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "portal_sign_outs_total",
		Description: "Session teardowns by reason",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	RedirectDecisionsTotal, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "portal_redirect_decisions_total",
		Description: "Post-auth redirect decisions by target",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	BackendCallDuration, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "portal_backend_call_duration_seconds",
		Description: "Rental backend call latency",
		Unit:        "s",
	}, []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}) // 10ms to 10s
	if err != nil {
		return err
	}

	return nil
}

// RecordSignIn records a sign-in outcome
func RecordSignIn(ctx context.Context, outcome string) {
	SignInsTotal.Inc(ctx, attribute.String("outcome", outcome))
}

// RecordRefresh records a refresh outcome (ok, revoked, transient)
func RecordRefresh(ctx context.Context, trigger, outcome string) {
	RefreshesTotal.Inc(ctx,
		attribute.String("trigger", trigger),
		attribute.String("outcome", outcome),
	)
}

// RecordRoleSwitch records a role switch outcome
func RecordRoleSwitch(ctx context.Context, role, outcome string) {
	RoleSwitchesTotal.Inc(ctx,
		attribute.String("role", role),
		attribute.String("outcome", outcome),
	)
}

// RecordSignOut records a session teardown
func RecordSignOut(ctx context.Context, reason string) {
	SignOutsTotal.Inc(ctx, attribute.String("reason", reason))
}

// RecordRedirect records a redirect decision
func RecordRedirect(ctx context.Context, target string, navigate bool) {
	RedirectDecisionsTotal.Inc(ctx,
		attribute.String("target", target),
		attribute.Bool("navigate", navigate),
	)
}

// RecordBackendCall records the latency of one backend call
func RecordBackendCall(ctx context.Context, op string, status int, d time.Duration) {
	BackendCallDuration.Record(ctx, d.Seconds(),
		attribute.String("op", op),
		attribute.Int("status", status),
	)
}
