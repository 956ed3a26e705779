// Package alerting posts refresh-run failures to a chat or generic webhook.
package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bher20/utilityrates/internal/metrics"
)

// Config holds webhook settings. Alerts are disabled when WebhookURL is empty.
type Config struct {
	WebhookURL string `mapstructure:"webhook_url"`
	// WebhookType is "slack", "discord" or "generic"; empty picks one from
	// the URL host.
	WebhookType string `mapstructure:"webhook_type"`
	// MinFailures is the number of failed submissions needed to alert.
	MinFailures int           `mapstructure:"min_failures"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

func (c Config) webhookType() string {
	if c.WebhookType != "" {
		return c.WebhookType
	}
	switch {
	case strings.Contains(c.WebhookURL, "hooks.slack.com"):
		return "slack"
	case strings.Contains(c.WebhookURL, "discord.com"):
		return "discord"
	}
	return "generic"
}

// RunReport summarizes one refresh run.
type RunReport struct {
	JobName   string
	Total     int
	Succeeded int
	Failures  []Failure
	Duration  time.Duration
	Timestamp time.Time
}

// Failure is one submission that could not be refreshed.
type Failure struct {
	SubmissionID string `json:"submission_id"`
	Address      string `json:"address"`
	Error        string `json:"error"`
}

type Alerter struct {
	cfg    Config
	client *http.Client
	log    logrus.FieldLogger
}

func New(cfg Config, log logrus.FieldLogger) *Alerter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MinFailures <= 0 {
		cfg.MinFailures = 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Alerter{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}, log: log}
}

func (a *Alerter) Enabled() bool { return a.cfg.WebhookURL != "" }

// Notify posts r when alerts are enabled and the failure threshold is met.
func (a *Alerter) Notify(ctx context.Context, r RunReport) error {
	if !a.Enabled() {
		return nil
	}
	if len(r.Failures) < a.cfg.MinFailures {
		a.log.WithFields(logrus.Fields{
			"failures":  len(r.Failures),
			"threshold": a.cfg.MinFailures,
		}).Debug("alerting: below threshold, skipping")
		return nil
	}

	var body any
	switch a.cfg.webhookType() {
	case "slack":
		body = slackPayload(r)
	case "discord":
		body = discordPayload(r)
	default:
		body = genericPayload(r)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("build payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		metrics.AlertsSentTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("send alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		metrics.AlertsSentTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	metrics.AlertsSentTotal.WithLabelValues("ok").Inc()

	a.log.WithField("failures", len(r.Failures)).Info("alerting: sent refresh alert")
	return nil
}

func failureLines(r RunReport, bold string) string {
	var b strings.Builder
	for _, f := range r.Failures {
		fmt.Fprintf(&b, "• %s%s%s (%s): %s\n", bold, f.Address, bold, f.SubmissionID, f.Error)
	}
	return b.String()
}

func summary(r RunReport) string {
	return fmt.Sprintf("%d/%d submissions failed to refresh", len(r.Failures), r.Total)
}

func slackPayload(r RunReport) map[string]any {
	return map[string]any{
		"text": fmt.Sprintf("Rates refresh %s: %s", r.JobName, summary(r)),
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]string{
					"type": "mrkdwn",
					"text": fmt.Sprintf("*%s*\n%s in %s", r.JobName, summary(r), r.Duration.Round(time.Millisecond)),
				},
			},
			{
				"type": "section",
				"text": map[string]string{"type": "mrkdwn", "text": failureLines(r, "*")},
			},
		},
	}
}

func discordPayload(r RunReport) map[string]any {
	color := 16776960 // yellow
	if len(r.Failures) == r.Total {
		color = 16711680 // red
	}
	return map[string]any{
		"embeds": []map[string]any{{
			"title":       "Rates refresh: " + r.JobName,
			"description": summary(r) + "\n" + failureLines(r, "**"),
			"color":       color,
			"timestamp":   r.Timestamp.Format(time.RFC3339),
		}},
	}
}

func genericPayload(r RunReport) map[string]any {
	return map[string]any{
		"alert_type":  "refresh_failure",
		"job_name":    r.JobName,
		"total":       r.Total,
		"succeeded":   r.Succeeded,
		"failed":      len(r.Failures),
		"duration_ms": r.Duration.Milliseconds(),
		"timestamp":   r.Timestamp.Format(time.RFC3339),
		"failures":    r.Failures,
	}
}
