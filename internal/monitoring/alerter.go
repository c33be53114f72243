package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/talent-sync/internal/config"
	"github.com/sells-group/talent-sync/internal/model"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertRunFailed         AlertType = "run_failed"
	AlertEnrichFailureRate AlertType = "enrich_failure_rate"
	AlertReconcileFailures AlertType = "reconcile_failures"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	RunID     string         `json:"run_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates run outcomes against configured thresholds and sends
// alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
	now    func() time.Time
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// EvaluateRun checks a single finished run.
func (a *Alerter) EvaluateRun(s *model.RunSummary) []Alert {
	if s == nil {
		return nil
	}
	var alerts []Alert
	now := a.now()

	if s.Status == model.RunStatusFailed {
		alerts = append(alerts, Alert{
			Type:     AlertRunFailed,
			Severity: "high",
			RunID:    s.RunID,
			Message:  fmt.Sprintf("Run %s failed: %s", s.RunID, s.Error),
			Details: map[string]any{
				"error": s.Error,
			},
			Timestamp: now,
		})
	}

	if s.Enrich != nil {
		ratio := s.Enrich.FailureRatio()
		if s.Enrich.Failed > 0 && ratio > a.cfg.EnrichFailureThreshold {
			alerts = append(alerts, Alert{
				Type:     AlertEnrichFailureRate,
				Severity: "medium",
				RunID:    s.RunID,
				Message: fmt.Sprintf(
					"Enrichment failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d processed)",
					ratio*100, a.cfg.EnrichFailureThreshold*100, s.Enrich.Failed, s.Enrich.Processed,
				),
				Details: map[string]any{
					"failure_rate": ratio,
					"threshold":    a.cfg.EnrichFailureThreshold,
					"failed_ids":   s.Enrich.FailedIDs,
				},
				Timestamp: now,
			})
		}
	}

	if s.Reconcile != nil && s.Reconcile.Failed > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertReconcileFailures,
			Severity: "high",
			RunID:    s.RunID,
			Message:  fmt.Sprintf("%d row(s) could not be written to the destination", s.Reconcile.Failed),
			Details: map[string]any{
				"failed":   s.Reconcile.Failed,
				"failures": s.Reconcile.Failures,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// Evaluate checks a windowed snapshot against thresholds.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := a.now()

	if snap.RunsFailed > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertRunFailed,
			Severity: "high",
			Message: fmt.Sprintf("%d run(s) failed in last %dh (%d total)",
				snap.RunsFailed, snap.LookbackHours, snap.RunsTotal),
			Details: map[string]any{
				"failed": snap.RunsFailed,
				"total":  snap.RunsTotal,
			},
			Timestamp: now,
		})
	}

	if snap.EnrichFailed > 0 && snap.EnrichFailRate > a.cfg.EnrichFailureThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertEnrichFailureRate,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Enrichment failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d processed in last %dh)",
				snap.EnrichFailRate*100, a.cfg.EnrichFailureThreshold*100,
				snap.EnrichFailed, snap.EnrichProcessed, snap.LookbackHours,
			),
			Details: map[string]any{
				"failure_rate": snap.EnrichFailRate,
				"threshold":    a.cfg.EnrichFailureThreshold,
			},
			Timestamp: now,
		})
	}

	if snap.ReconcileFailed > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertReconcileFailures,
			Severity: "high",
			Message: fmt.Sprintf("%d row write failure(s) in last %dh",
				snap.ReconcileFailed, snap.LookbackHours),
			Details: map[string]any{
				"failed": snap.ReconcileFailed,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
