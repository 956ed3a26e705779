package alerting

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func report(failed int) RunReport {
	r := RunReport{JobName: "refresh_submissions", Total: 3, Succeeded: 3 - failed, Duration: time.Second, Timestamp: time.Unix(0, 0)}
	for i := 0; i < failed; i++ {
		r.Failures = append(r.Failures, Failure{SubmissionID: "s", Address: "1 Main St", Error: "boom"})
	}
	return r
}

func TestNotify_GenericWebhook(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	a := New(Config{WebhookURL: srv.URL}, quietLogger())
	require.NoError(t, a.Notify(context.Background(), report(2)))

	assert.Equal(t, "refresh_failure", got["alert_type"])
	assert.Equal(t, float64(2), got["failed"])
}

func TestNotify_ThresholdAndDisabled(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ }))
	defer srv.Close()

	a := New(Config{WebhookURL: srv.URL, MinFailures: 2}, quietLogger())
	require.NoError(t, a.Notify(context.Background(), report(1)))
	assert.Equal(t, 0, calls)

	disabled := New(Config{}, quietLogger())
	assert.False(t, disabled.Enabled())
	require.NoError(t, disabled.Notify(context.Background(), report(3)))
}

func TestNotify_WebhookError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := New(Config{WebhookURL: srv.URL}, quietLogger()).Notify(context.Background(), report(1))
	assert.Error(t, err)
}

func TestWebhookType(t *testing.T) {
	assert.Equal(t, "slack", Config{WebhookURL: "https://hooks.slack.com/services/x"}.webhookType())
	assert.Equal(t, "discord", Config{WebhookURL: "https://discord.com/api/webhooks/x"}.webhookType())
	assert.Equal(t, "generic", Config{WebhookURL: "https://example.org/hook"}.webhookType())
	assert.Equal(t, "slack", Config{WebhookURL: "https://example.org", WebhookType: "slack"}.webhookType())
}

func TestPayloads(t *testing.T) {
	r := report(3)
	assert.Contains(t, slackPayload(r)["text"], "3/3 submissions failed")
	embeds := discordPayload(r)["embeds"].([]map[string]any)
	assert.Equal(t, 16711680, embeds[0]["color"])
}
