package slack

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"

	"github.com/slack-go/slack"
)

// Channel IDs are 'C' followed by 8 to 14 uppercase alphanumerics.
var channelIDPattern = regexp.MustCompile(`^C[A-Z0-9]{8,14}$`)

var conversationKinds = []string{"public_channel", "private_channel"}

type conversationLister interface {
	GetConversationsContext(ctx context.Context, params *slack.GetConversationsParameters) ([]slack.Channel, string, error)
}

// ChannelResolver turns the configured alert channel into a channel ID.
// Names found once are remembered for the life of the process.
type ChannelResolver struct {
	client conversationLister

	mu    sync.Mutex
	known map[string]string
}

func NewChannelResolver(client conversationLister) *ChannelResolver {
	return &ChannelResolver{client: client, known: map[string]string{}}
}

// ResolveChannel returns channel unchanged when it is already an ID; otherwise
// it looks the name up, with or without a leading '#'.
func (r *ChannelResolver) ResolveChannel(ctx context.Context, channel string) (string, error) {
	channel = strings.TrimSpace(channel)
	switch {
	case channel == "":
		return "", errors.New("alert channel is empty")
	case isChannelID(channel):
		return channel, nil
	}
	name := strings.TrimPrefix(channel, "#")

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.known[name]; ok {
		return id, nil
	}
	id, err := r.find(ctx, name)
	if err != nil {
		return "", err
	}
	r.known[name] = id
	log.Printf("Notifier: Alert channel #%s is %s", name, id)
	return id, nil
}

// find pages through public channels, then private ones. A bot without
// groups:read cannot list private channels; that is logged and not fatal.
func (r *ChannelResolver) find(ctx context.Context, name string) (string, error) {
	for _, kind := range conversationKinds {
		params := &slack.GetConversationsParameters{Types: []string{kind}, ExcludeArchived: true, Limit: 1000}
		for page := 0; ; page++ {
			chans, cursor, err := r.client.GetConversationsContext(ctx, params)
			if err != nil && kind == "private_channel" {
				log.Printf("Warning: Listing private channels failed at page %d: %v", page, err)
				break
			}
			if err != nil {
				return "", fmt.Errorf("list %s: %w", kind, err)
			}
			if i := indexByName(chans, name); i >= 0 {
				return chans[i].ID, nil
			}
			if cursor == "" {
				break
			}
			params.Cursor = cursor
		}
	}
	return "", fmt.Errorf("no channel named #%s is visible to the bot", name)
}

func indexByName(chans []slack.Channel, name string) int {
	for i := range chans {
		if chans[i].Name == name {
			return i
		}
	}
	return -1
}

func isChannelID(s string) bool {
	return channelIDPattern.MatchString(s)
}
