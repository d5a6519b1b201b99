// Package otel bridges engine counters into an OpenTelemetry meter via
// observable instruments. The engine stays unaware of OTel; the exporter
// reads MetricsSnapshot on each collection cycle.
package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	"github.com/tradepost/authcore"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() authcore.MetricsSnapshot
	AuditDropped() uint64
}

type counterDef struct {
	id   authcore.MetricID
	name string
	help string
}

var counterDefs = []counterDef{
	{authcore.MetricLoginSuccess, "authcore_login_success_total", "Successful logins."},
	{authcore.MetricLoginFailure, "authcore_login_failure_total", "Failed logins."},
	{authcore.MetricRefreshSuccess, "authcore_refresh_success_total", "Successful access token refreshes."},
	{authcore.MetricRefreshFailure, "authcore_refresh_failure_total", "Failed access token refreshes."},
	{authcore.MetricLogout, "authcore_logout_total", "Single-session logouts."},
	{authcore.MetricLogoutAll, "authcore_logout_all_total", "All-session logout operations."},
	{authcore.MetricSessionCreated, "authcore_session_created_total", "Sessions created."},
	{authcore.MetricSessionInvalidated, "authcore_session_invalidated_total", "Sessions revoked."},
	{authcore.MetricPasswordResetRequest, "authcore_password_reset_request_total", "Password reset tokens issued."},
	{authcore.MetricPasswordResetConfirmSuccess, "authcore_password_reset_confirm_success_total", "Password resets redeemed."},
	{authcore.MetricPasswordResetConfirmFailure, "authcore_password_reset_confirm_failure_total", "Password reset redemptions rejected."},
	{authcore.MetricEmailVerificationRequest, "authcore_email_verification_request_total", "Email verification tokens issued."},
	{authcore.MetricEmailVerificationSuccess, "authcore_email_verification_success_total", "Email verifications redeemed."},
	{authcore.MetricEmailVerificationFailure, "authcore_email_verification_failure_total", "Email verification redemptions rejected."},
	{authcore.MetricPasswordChangeSuccess, "authcore_password_change_success_total", "Password changes."},
	{authcore.MetricPasswordChangeFailure, "authcore_password_change_failure_total", "Rejected password changes."},
	{authcore.MetricSweepDeleted, "authcore_sweep_deleted_total", "Expired sessions removed by the sweeper."},
}

type observedCounter struct {
	id         authcore.MetricID
	instrument metric.Int64ObservableCounter
}

// Exporter registers engine counters on a meter and feeds them from
// snapshots. Close unregisters the callback.
type Exporter struct {
	source       metricsSource
	registration metric.Registration
	counters     []observedCounter
	auditDropped metric.Int64ObservableCounter
}

// NewExporter wires an engine's counters to meter.
func NewExporter(meter metric.Meter, engine *authcore.Engine) (*Exporter, error) {
	return NewExporterFromSource(meter, engine)
}

// NewExporterFromSource is NewExporter for any snapshot source, which lets
// tests substitute a fake engine.
func NewExporterFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exporter := &Exporter{
		source:   source,
		counters: make([]observedCounter, 0, len(counterDefs)),
	}

	observables := make([]metric.Observable, 0, len(counterDefs)+1)
	for _, def := range counterDefs {
		ins, err := meter.Int64ObservableCounter(def.name, metric.WithDescription(def.help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.name, err)
		}
		exporter.counters = append(exporter.counters, observedCounter{id: def.id, instrument: ins})
		observables = append(observables, ins)
	}

	auditDropped, err := meter.Int64ObservableCounter(
		"authcore_audit_dropped_total",
		metric.WithDescription("Audit events dropped under dispatcher backpressure."),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	exporter.auditDropped = auditDropped
	observables = append(observables, auditDropped)

	registration, err := meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		snapshot := exporter.source.MetricsSnapshot()
		for _, c := range exporter.counters {
			observer.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
		}
		observer.ObserveInt64(exporter.auditDropped, int64(exporter.source.AuditDropped()))
		return nil
	}, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	exporter.registration = registration
	return exporter, nil
}

func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
