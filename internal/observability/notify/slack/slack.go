// Package slack posts job failure notices to an incoming Slack webhook.
package slack

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/imgforge/imgforge-api/internal/observability/notify"
)

const defaultUsername = "imgforge"

// Config describes one webhook destination.
type Config struct {
	WebhookURL string
	Channel    string
	Username   string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
	// JobURLPrefix, when it is an absolute URL, turns the job id into a link.
	JobURLPrefix string
}

// Client delivers job failure notifications to a Slack webhook.
type Client struct {
	hook     notify.Webhook
	channel  string
	username string
	jobLinks *url.URL
}

// message is the incoming-webhook document.
type message struct {
	Text     string `json:"text"`
	Username string `json:"username,omitempty"`
	Channel  string `json:"channel,omitempty"`
}

// NewClient validates cfg and returns a ready client.
func NewClient(cfg Config) (*Client, error) {
	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL == "" {
		return nil, errors.New("slack webhook url is required")
	}

	username := strings.TrimSpace(cfg.Username)
	if username == "" {
		username = defaultUsername
	}

	return &Client{
		hook:     notify.NewWebhook("slack webhook", webhookURL, cfg.Timeout, cfg.RetryLimit, cfg.Client),
		channel:  strings.TrimSpace(cfg.Channel),
		username: username,
		jobLinks: absoluteURL(cfg.JobURLPrefix),
	}, nil
}

// SendJobFailure posts a formatted message to Slack.
func (c *Client) SendJobFailure(ctx context.Context, payload notify.JobFailurePayload) error {
	return c.hook.PostJSON(ctx, c.formatMessage(payload))
}

func (c *Client) formatMessage(payload notify.JobFailurePayload) message {
	lines := []string{c.headline(payload)}

	severity := payload.Severity
	if severity == "" {
		severity = notify.SeverityCritical
	}
	lines = appendField(lines, "Severity", severity)
	if payload.Duration > 0 {
		lines = appendField(lines, "Ran for", payload.Duration.Round(time.Second).String())
	}
	lines = appendField(lines, "Error class", payload.ErrorClass)
	lines = appendField(lines, "Error", escape(payload.Error))

	if len(payload.Metadata) > 0 {
		lines = append(lines, "• Metadata:")
		for _, k := range slices.Sorted(maps.Keys(payload.Metadata)) {
			lines = append(lines, fmt.Sprintf("    • %s: %s", k, payload.Metadata[k]))
		}
	}

	at := payload.OccurredAt
	if at.IsZero() {
		at = time.Now()
	}
	lines = appendField(lines, "Timestamp", at.UTC().Format(time.RFC3339))

	return message{
		Text:     strings.Join(lines, "\n"),
		Username: c.username,
		Channel:  c.channel,
	}
}

func (c *Client) headline(payload notify.JobFailurePayload) string {
	var b strings.Builder
	b.WriteString("*imgforge job failed*")

	if id := strings.TrimSpace(payload.JobID); id != "" {
		if link := c.jobLink(id); link != "" {
			fmt.Fprintf(&b, " <%s|%s>", link, escape(id))
		} else {
			fmt.Fprintf(&b, " `%s`", escape(id))
		}
	}
	if payload.Kind != "" {
		fmt.Fprintf(&b, " (%s)", payload.Kind)
	}
	return b.String()
}

func (c *Client) jobLink(id string) string {
	if c.jobLinks == nil {
		return ""
	}
	return c.jobLinks.JoinPath(id).String()
}

func absoluteURL(raw string) *url.URL {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil
	}
	return u
}

func appendField(lines []string, label, value string) []string {
	if strings.TrimSpace(value) == "" {
		return lines
	}
	return append(lines, "• "+label+": "+value)
}

var slackEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// escape applies the three control-character escapes Slack requires in text.
func escape(value string) string {
	return slackEscaper.Replace(value)
}
