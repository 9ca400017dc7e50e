package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/multierr"

	"github.com/bher20/fuelkl/internal/config"
	"github.com/bher20/fuelkl/internal/logger"
)

// AlertConfig holds alerting configuration.
type AlertConfig struct {
	// WebhookURL is a generic webhook endpoint (Slack, Discord, or custom)
	WebhookURL string
	// WebhookType determines the payload format: "slack", "discord", or "generic"
	WebhookType string
	// SendgridAPIKey enables email alerts together with EmailTo.
	SendgridAPIKey string
	EmailTo        string
	EmailFrom      string
	// MinFailuresBeforeAlert is the number of consecutive failures before alerting.
	MinFailuresBeforeAlert int
	// Timeout for HTTP requests
	Timeout time.Duration
}

// FromConfig builds an AlertConfig from the loaded application config.
func FromConfig(c config.AlertConfig) AlertConfig {
	cfg := AlertConfig{
		WebhookURL:             c.WebhookURL,
		WebhookType:            c.WebhookType,
		SendgridAPIKey:         c.SendgridAPIKey,
		EmailTo:                c.EmailTo,
		EmailFrom:              c.EmailFrom,
		MinFailuresBeforeAlert: 1,
		Timeout:                10 * time.Second,
	}
	if cfg.WebhookType == "" {
		cfg.WebhookType = detectWebhookType(cfg.WebhookURL)
	}
	if cfg.EmailFrom == "" {
		cfg.EmailFrom = "alerts@fuelkl.local"
	}
	return cfg
}

func detectWebhookType(url string) string {
	switch {
	case strings.Contains(url, "slack.com"):
		return "slack"
	case strings.Contains(url, "discord.com"):
		return "discord"
	default:
		return "generic"
	}
}

func (c AlertConfig) webhookEnabled() bool { return c.WebhookURL != "" }

func (c AlertConfig) emailEnabled() bool { return c.SendgridAPIKey != "" && c.EmailTo != "" }

// Enabled reports whether any alert channel is configured.
func (c AlertConfig) Enabled() bool { return c.webhookEnabled() || c.emailEnabled() }

// emailSender delivers one message. The default implementation uses SendGrid.
type emailSender func(ctx context.Context, msg *mail.SGMailV3) error

// Alerter sends alerts to configured webhooks and email.
type Alerter struct {
	cfg       AlertConfig
	client    *http.Client
	sendEmail emailSender
}

// NewAlerter creates a new alerter instance.
func NewAlerter(cfg AlertConfig) *Alerter {
	a := &Alerter{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
	a.sendEmail = a.sendSendgrid
	return a
}

// FetchAlert describes a failed price refresh.
type FetchAlert struct {
	JobName             string
	SourceURL           string
	Error               string
	ExitCode            int
	ConsecutiveFailures int
	Duration            time.Duration
	Timestamp           time.Time
}

func (f FetchAlert) title() string {
	return fmt.Sprintf("Fuel price refresh failed: %s", f.JobName)
}

// SendFetchAlert notifies every configured channel. Errors from the
// individual channels are combined.
func (a *Alerter) SendFetchAlert(ctx context.Context, alert FetchAlert) error {
	log := logger.WithModule("alerting")
	if !a.cfg.Enabled() {
		log.Debug("alerts disabled, skipping")
		return nil
	}
	if alert.ConsecutiveFailures < a.cfg.MinFailuresBeforeAlert {
		log.Debugf("%d failures below threshold (%d), skipping",
			alert.ConsecutiveFailures, a.cfg.MinFailuresBeforeAlert)
		return nil
	}

	var err error
	if a.cfg.webhookEnabled() {
		err = multierr.Append(err, a.postWebhook(ctx, alert))
	}
	if a.cfg.emailEnabled() {
		err = multierr.Append(err, a.sendEmail(ctx, a.buildEmail(alert)))
	}
	if err != nil {
		return err
	}
	log.Infof("sent alert for job %s", alert.JobName)
	return nil
}

func (a *Alerter) postWebhook(ctx context.Context, alert FetchAlert) error {
	var payload []byte
	var err error

	switch a.cfg.WebhookType {
	case "slack":
		payload, err = buildSlackPayload(alert)
	case "discord":
		payload, err = buildDiscordPayload(alert)
	default:
		payload, err = buildGenericPayload(alert)
	}
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
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (a *Alerter) buildEmail(alert FetchAlert) *mail.SGMailV3 {
	from := mail.NewEmail("fuelkl", a.cfg.EmailFrom)
	to := mail.NewEmail("", a.cfg.EmailTo)
	text := fmt.Sprintf("Job: %s\nSource: %s\nError: %s\nExit code: %d\nConsecutive failures: %d\nDuration: %s\nTime: %s\n",
		alert.JobName, alert.SourceURL, alert.Error, alert.ExitCode, alert.ConsecutiveFailures,
		alert.Duration.Round(time.Millisecond), alert.Timestamp.Format(time.RFC3339))
	html := "<pre>" + text + "</pre>"
	return mail.NewSingleEmail(from, alert.title(), to, text, html)
}

func (a *Alerter) sendSendgrid(ctx context.Context, msg *mail.SGMailV3) error {
	client := sendgrid.NewSendClient(a.cfg.SendgridAPIKey)
	resp, err := client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: %d %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func buildSlackPayload(alert FetchAlert) ([]byte, error) {
	payload := map[string]interface{}{
		"blocks": []map[string]interface{}{
			{
				"type": "header",
				"text": map[string]string{
					"type": "plain_text",
					"text": ":x: " + alert.title(),
				},
			},
			{
				"type": "section",
				"fields": []map[string]string{
					{"type": "mrkdwn", "text": fmt.Sprintf("*Exit code:*\n%d", alert.ExitCode)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Failures in a row:*\n%d", alert.ConsecutiveFailures)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Duration:*\n%s", alert.Duration.Round(time.Millisecond))},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Timestamp:*\n%s", alert.Timestamp.Format(time.RFC3339))},
				},
			},
			{
				"type": "section",
				"text": map[string]string{
					"type": "mrkdwn",
					"text": fmt.Sprintf("*Error:*\n```%s```", alert.Error),
				},
			},
		},
	}

	return json.Marshal(payload)
}

func buildDiscordPayload(alert FetchAlert) ([]byte, error) {
	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{
			{
				"title":       alert.title(),
				"description": alert.Error,
				"color":       16711680, // Red
				"fields": []map[string]interface{}{
					{"name": "Exit code", "value": fmt.Sprintf("%d", alert.ExitCode), "inline": true},
					{"name": "Failures in a row", "value": fmt.Sprintf("%d", alert.ConsecutiveFailures), "inline": true},
					{"name": "Duration", "value": alert.Duration.Round(time.Millisecond).String(), "inline": true},
					{"name": "Source", "value": alert.SourceURL, "inline": false},
				},
				"timestamp": alert.Timestamp.Format(time.RFC3339),
			},
		},
	}

	return json.Marshal(payload)
}

func buildGenericPayload(alert FetchAlert) ([]byte, error) {
	payload := map[string]interface{}{
		"alert_type":           "price_fetch_failure",
		"job_name":             alert.JobName,
		"source_url":           alert.SourceURL,
		"error":                alert.Error,
		"exit_code":            alert.ExitCode,
		"consecutive_failures": alert.ConsecutiveFailures,
		"duration_ms":          alert.Duration.Milliseconds(),
		"timestamp":            alert.Timestamp.Format(time.RFC3339),
	}

	return json.Marshal(payload)
}
