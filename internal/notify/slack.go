package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/slack-go/slack"
)

// SlackSink posts a one-line cycle summary to a Slack incoming webhook.
type SlackSink struct {
	WebhookURL string
}

// NewSlackSink builds a SlackSink targeting a Slack incoming webhook URL.
func NewSlackSink(webhookURL string) *SlackSink {
	return &SlackSink{WebhookURL: webhookURL}
}

func (s *SlackSink) Notify(ctx context.Context, summary Summary) error {
	text := fmt.Sprintf(
		"cycle %s: %d sources, %d discovered, %d downloaded, %d failed (%s)",
		summary.CycleID,
		summary.SourcesProcessed,
		summary.VideosDiscovered,
		summary.VideosDownloaded,
		summary.VideosFailed,
		summary.Finished.Sub(summary.Started).Round(time.Second),
	)
	if len(summary.Errors) > 0 {
		text += fmt.Sprintf(" — %d error(s), first: %s", len(summary.Errors), summary.Errors[0])
	}

	msg := &slack.WebhookMessage{Text: text}
	return slack.PostWebhookContext(ctx, s.WebhookURL, msg)
}
