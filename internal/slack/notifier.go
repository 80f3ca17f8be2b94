package slack

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/slack-go/slack"

	"github.com/blockwatch/blockwatch/internal/database"
	"github.com/blockwatch/blockwatch/internal/rules"
)

const postTimeout = 10 * time.Second

// Sink receives alerts created by a committed rules pass
type Sink interface {
	AlertsCreated(ctx context.Context, obs *database.Observation, alerts []database.Alert)
}

type slackAPI interface {
	conversationLister
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Notifier posts High-severity alerts to a Slack channel. Posting happens in
// the background and failures are only logged.
type Notifier struct {
	client   slackAPI
	resolver *ChannelResolver
	channel  string
	wg       sync.WaitGroup
}

// NewNotifier creates a notifier for the given bot token and channel name or ID
func NewNotifier(botToken, channel string) *Notifier {
	return newNotifier(slack.New(botToken, slack.OptionDebug(false)), channel)
}

func newNotifier(client slackAPI, channel string) *Notifier {
	return &Notifier{
		client:   client,
		resolver: NewChannelResolver(client),
		channel:  channel,
	}
}

// FromConfig returns a Slack notifier when both settings are present and a
// no-op sink otherwise.
func FromConfig(botToken, channel string) Sink {
	if botToken == "" || channel == "" {
		log.Printf("Notifier: Slack is disabled (SLACK_BOT_TOKEN or SLACK_ALERTS_CHANNEL not set)")
		return Noop{}
	}
	log.Printf("Notifier: Posting high-severity alerts to %s", channel)
	return NewNotifier(botToken, channel)
}

// AlertsCreated implements Sink
func (n *Notifier) AlertsCreated(ctx context.Context, obs *database.Observation, alerts []database.Alert) {
	high := make([]database.Alert, 0, len(alerts))
	for _, a := range alerts {
		if a.Severity == string(rules.SeverityHigh) {
			high = append(high, a)
		}
	}
	if len(high) == 0 {
		return
	}

	text := FormatAlerts(obs, high)
	ctx = context.WithoutCancel(ctx)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, postTimeout)
		defer cancel()
		if err := n.post(ctx, text); err != nil {
			log.Printf("Warning: Notifier: failed to post %d alert(s) for observation %s: %v", len(high), obs.ID, err)
		}
	}()
}

func (n *Notifier) post(ctx context.Context, text string) error {
	channelID, err := n.resolver.ResolveChannel(ctx, n.channel)
	if err != nil {
		return err
	}
	_, _, err = n.client.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false))
	return err
}

// Wait blocks until every pending post has finished
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// Noop discards alerts
type Noop struct{}

// AlertsCreated implements Sink
func (Noop) AlertsCreated(context.Context, *database.Observation, []database.Alert) {}
