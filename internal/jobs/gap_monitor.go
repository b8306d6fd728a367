package jobs

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/ticketassist/internal/domain"
	"github.com/cloo-solutions/ticketassist/internal/telemetry"
	"github.com/rs/zerolog"
)

// GapReporter computes the current gap report.
type GapReporter interface {
	GapReport(ctx context.Context) (*domain.GapReport, error)
}

// Alerter receives gap alerts.
type Alerter interface {
	Alert(ctx context.Context, message string, extras map[string]interface{})
}

// SentryAlerter sends alerts to Sentry as warnings.
type SentryAlerter struct{}

func (SentryAlerter) Alert(ctx context.Context, message string, extras map[string]interface{}) {
	telemetry.CaptureWarning(ctx, message, extras)
}

// GapMonitorConfig holds the alert thresholds.
type GapMonitorConfig struct {
	// AlertRate is the gap rate at or above which an alert is raised.
	AlertRate float64
	// MinEvents is the number of feedback events needed before alerting.
	MinEvents int
}

// GapMonitor periodically logs gap metrics and raises an alert when the
// share of rejected suggestions crosses the threshold. It alerts once per
// crossing and re-arms when the rate falls back below the threshold.
type GapMonitor struct {
	reporter GapReporter
	alerter  Alerter
	cfg      GapMonitorConfig
	logger   zerolog.Logger
	alerting bool
}

func NewGapMonitor(reporter GapReporter, alerter Alerter, cfg GapMonitorConfig, logger zerolog.Logger) *GapMonitor {
	return &GapMonitor{
		reporter: reporter,
		alerter:  alerter,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run computes one report and raises an alert if needed.
func (m *GapMonitor) Run(ctx context.Context) error {
	report, err := m.reporter.GapReport(ctx)
	if err != nil {
		return fmt.Errorf("failed to compute gap report: %w", err)
	}

	m.logger.Info().
		Int("total", report.Total).
		Int("rejected", report.Rejected).
		Float64("gap_rate", report.GapRate).
		Msg("knowledge gap report")

	over := report.Total >= m.cfg.MinEvents && report.GapRate >= m.cfg.AlertRate
	if !over {
		m.alerting = false
		return nil
	}
	if m.alerting {
		return nil
	}
	m.alerting = true

	extras := map[string]interface{}{
		"total":    report.Total,
		"rejected": report.Rejected,
		"gap_rate": report.GapRate,
	}
	if len(report.Gaps) > 0 {
		extras["latest_gap"] = report.Gaps[0].Query
	}

	m.logger.Warn().Float64("gap_rate", report.GapRate).Float64("threshold", m.cfg.AlertRate).Msg("knowledge gap rate above threshold")
	if m.alerter != nil {
		m.alerter.Alert(ctx, fmt.Sprintf("knowledge gap rate %.2f reached threshold %.2f", report.GapRate, m.cfg.AlertRate), extras)
	}
	return nil
}
