package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dghubble/go-twitter/twitter" //nolint:staticcheck // Using stable v1.1 API
	"github.com/dghubble/oauth1"

	"github.com/pfrederiksen/talkwatch/internal/event"
)

const (
	maxTweetLength = 280
	// t.co wraps every link to this length
	tweetURLLength = 23
	postGap        = 2 * time.Second
)

// ErrMissingTwitterCredentials is returned when any OAuth value is empty
var ErrMissingTwitterCredentials = errors.New("missing required Twitter credentials")

// TwitterCredentials are the app and user OAuth 1.0a keys
type TwitterCredentials struct {
	APIKey       string
	APISecret    string
	AccessToken  string
	AccessSecret string
}

// TwitterNotifier posts one tweet per change
type TwitterNotifier struct {
	client *twitter.Client
	gap    time.Duration
}

// NewTwitterNotifier creates a new Twitter notifier.
func NewTwitterNotifier(creds TwitterCredentials) (*TwitterNotifier, error) {
	return newTwitterNotifier(creds, nil)
}

// newTwitterNotifier signs requests on top of base's transport when base is set.
func newTwitterNotifier(creds TwitterCredentials, base *http.Client) (*TwitterNotifier, error) {
	if creds.APIKey == "" || creds.APISecret == "" || creds.AccessToken == "" || creds.AccessSecret == "" {
		return nil, ErrMissingTwitterCredentials
	}

	ctx := oauth1.NoContext
	if base != nil {
		ctx = context.WithValue(ctx, oauth1.HTTPClient, base)
	}

	config := oauth1.NewConfig(creds.APIKey, creds.APISecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessSecret)
	httpClient := config.Client(ctx, token)

	return &TwitterNotifier{client: twitter.NewClient(httpClient), gap: postGap}, nil
}

// Notify posts tweets for each change, pausing between posts
func (n *TwitterNotifier) Notify(ctx context.Context, changes []Change) error {
	for i, change := range changes {
		if err := ctx.Err(); err != nil {
			return err
		}

		_, _, err := n.client.Statuses.Update(formatTweet(change), nil)
		if err != nil {
			return fmt.Errorf("failed to post tweet for meeting %d: %w", change.Meeting.ID, err)
		}

		if i < len(changes)-1 && n.gap > 0 {
			timer := time.NewTimer(n.gap)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	return nil
}

// formatTweet formats a change as a tweet. The body is shortened so the
// source link always fits.
func formatTweet(change Change) string {
	m := change.Meeting

	var body strings.Builder
	if change.Created {
		body.WriteString("🎓 New talk: ")
	} else {
		body.WriteString("✏️ Talk updated: ")
	}
	body.WriteString(tweetHeadline(m))
	body.WriteString("\n")

	if speaker := event.Deref(m.Speaker); speaker != "" {
		body.WriteString(fmt.Sprintf("\n👤 %s", speaker))
	}
	if text := event.Deref(m.StartTime); text != "" {
		body.WriteString(fmt.Sprintf("\n📅 %s", text))
	} else if m.StartDate != nil {
		body.WriteString(fmt.Sprintf("\n📅 %s", m.StartDate))
	}
	if location := event.Deref(m.Location); location != "" {
		body.WriteString(fmt.Sprintf("\n📍 %s", location))
	}

	suffix := "\n\n" + m.SourceURL
	budget := maxTweetLength - 2 - tweetURLLength

	text := body.String()
	if tweetLength(text) > budget {
		text = truncateTweet(text, budget-3) + "..."
	}
	return text + suffix
}

func tweetHeadline(m *event.Meeting) string {
	if title := event.Deref(m.Title); title != "" {
		return title
	}
	if topic := event.Deref(m.Topic); topic != "" {
		return topic
	}
	return "Talk"
}

// tweetLength approximates Twitter's weighted count: Latin script counts
// one, CJK and emoji count two.
func tweetLength(s string) int {
	n := 0
	for _, r := range s {
		n += runeWeight(r)
	}
	return n
}

// postLength is the weighted length of a tweet whose link is counted as
// shortened by t.co
func postLength(post, link string) int {
	return tweetLength(post) - tweetLength(link) + tweetURLLength
}

func runeWeight(r rune) int {
	if r < 0x1100 {
		return 1
	}
	return 2
}

// truncateTweet keeps the longest prefix of s whose weight is at most limit
func truncateTweet(s string, limit int) string {
	n := 0
	for i, r := range s {
		w := runeWeight(r)
		if n+w > limit {
			return s[:i]
		}
		n += w
	}
	return s
}
