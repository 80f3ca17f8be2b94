package slack

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/slack-go/slack"

	"github.com/blockwatch/blockwatch/internal/database"
)

type fakeSlack struct {
	mu       sync.Mutex
	channels map[string][]slack.Channel // type -> channels
	listErr  error
	postErr  error
	lists    int
	posts    []string // channel IDs
}

func (f *fakeSlack) GetConversationsContext(_ context.Context, params *slack.GetConversationsParameters) ([]slack.Channel, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, "", f.listErr
	}
	return f.channels[params.Types[0]], "", nil
}

func (f *fakeSlack) PostMessageContext(_ context.Context, channelID string, _ ...slack.MsgOption) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return "", "", f.postErr
	}
	f.posts = append(f.posts, channelID)
	return channelID, "1700000000.000100", nil
}

func channel(id, name string) slack.Channel {
	var ch slack.Channel
	ch.ID = id
	ch.Name = name
	return ch
}

func testObservation() *database.Observation {
	return &database.Observation{
		ID:          "obs-1",
		BlockID:     "A",
		GridNumber:  "30",
		RowNumber:   "17",
		PlantNumber: "032",
		SubmittedBy: "ana",
		SubmittedOn: time.Date(2024, 7, 3, 10, 0, 0, 0, time.UTC),
	}
}

func TestIsChannelID(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"C01234567890", true},
		{"C01234567", true},
		{"C0ABC123DEF", true},
		{"C012345678901234", false},
		{"C1234567", false},
		{"D01234567890", false},
		{"C01234abcdef", false},
		{"#alerts", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := isChannelID(tt.input); got != tt.want {
				t.Errorf("isChannelID(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestChannelResolver_LooksUpAndCaches(t *testing.T) {
	api := &fakeSlack{channels: map[string][]slack.Channel{
		"public_channel":  {channel("C0GENERAL01", "general")},
		"private_channel": {channel("C0FARMOPS01", "farm-alerts")},
	}}
	r := NewChannelResolver(api)

	for _, name := range []string{"#farm-alerts", "farm-alerts"} {
		id, err := r.ResolveChannel(context.Background(), name)
		if err != nil {
			t.Fatalf("ResolveChannel(%q): %v", name, err)
		}
		if id != "C0FARMOPS01" {
			t.Errorf("ResolveChannel(%q) = %q", name, id)
		}
	}
	if api.lists != 2 {
		t.Errorf("expected one public and one private listing, got %d calls", api.lists)
	}

	if _, err := r.ResolveChannel(context.Background(), "missing"); err == nil {
		t.Error("expected error for unknown channel")
	}
	if _, err := r.ResolveChannel(context.Background(), " "); err == nil {
		t.Error("expected error for empty channel")
	}
}

func TestChannelResolver_IDNeedsNoLookup(t *testing.T) {
	api := &fakeSlack{listErr: errors.New("should not be called")}
	id, err := NewChannelResolver(api).ResolveChannel(context.Background(), "C01234567890")
	if err != nil || id != "C01234567890" {
		t.Fatalf("got %q, %v", id, err)
	}
}

func TestNotifier_PostsOnlyHighSeverity(t *testing.T) {
	api := &fakeSlack{}
	n := newNotifier(api, "C01234567890")

	n.AlertsCreated(context.Background(), testObservation(), []database.Alert{
		{AlertType: "Salinity Risk", Severity: "Medium", Message: "warning"},
	})
	n.Wait()
	if len(api.posts) != 0 {
		t.Fatalf("medium alerts should not be posted, got %d posts", len(api.posts))
	}

	n.AlertsCreated(context.Background(), testObservation(), []database.Alert{
		{AlertType: "Fire Risk", Severity: "High", Message: "CRITICAL FIRE RISK!"},
		{AlertType: "Salinity Risk", Severity: "Medium", Message: "warning"},
	})
	n.Wait()
	if len(api.posts) != 1 || api.posts[0] != "C01234567890" {
		t.Fatalf("expected one post to C01234567890, got %v", api.posts)
	}
}

func TestNotifier_FailureIsSwallowed(t *testing.T) {
	api := &fakeSlack{postErr: errors.New("channel_not_found")}
	n := newNotifier(api, "C01234567890")

	ctx, cancel := context.WithCancel(context.Background())
	n.AlertsCreated(ctx, testObservation(), []database.Alert{{AlertType: "Fire Risk", Severity: "High"}})
	cancel()
	n.Wait()
}

func TestFromConfig(t *testing.T) {
	if _, ok := FromConfig("", "#alerts").(Noop); !ok {
		t.Error("missing token should give a no-op sink")
	}
	if _, ok := FromConfig("xoxb-test", "").(Noop); !ok {
		t.Error("missing channel should give a no-op sink")
	}
	if _, ok := FromConfig("xoxb-test", "#alerts").(*Notifier); !ok {
		t.Error("expected a Slack notifier")
	}
}

func TestFormatAlerts(t *testing.T) {
	msg := FormatAlerts(testObservation(), []database.Alert{
		{AlertType: "Fire Risk", Severity: "High", Message: "CRITICAL FIRE RISK!"},
	})

	for _, want := range []string{
		":rotating_light: *1 new alert* in block *A*",
		"• :rotating_light: *Fire Risk* (High): CRITICAL FIRE RISK!",
		"Grid 30, row 17, plant 032, reported by ana on 2024-07-03 10:00 UTC",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestFormatAlerts_EscapesSubmitter(t *testing.T) {
	obs := testObservation()
	obs.SubmittedBy = "<!channel> & friends"

	msg := FormatAlerts(obs, []database.Alert{{AlertType: "Drought Risk", Severity: "Medium", Message: "Drought Warning."}})
	if !strings.Contains(msg, "reported by &lt;!channel&gt; &amp; friends") {
		t.Errorf("submitter not escaped:\n%s", msg)
	}
	if !strings.HasPrefix(msg, ":warning: *1 new alert*") {
		t.Errorf("expected a warning header:\n%s", msg)
	}
}
