package slackbot

import (
	"context"
	"fmt"

	"github.com/kiranshivaraju/crashbot/internal/identity"
	"github.com/slack-go/slack"
)

// Directory looks up user profiles. It needs a client built with a user token
// that has the users.profile:read scope.
type Directory struct {
	client *slack.Client
}

// NewDirectory creates a Directory backed by client.
func NewDirectory(client *slack.Client) *Directory {
	return &Directory{client: client}
}

// Profile fetches the profile of userID.
func (d *Directory) Profile(ctx context.Context, userID string) (*identity.Profile, error) {
	p, err := d.client.GetUserProfileContext(ctx, &slack.GetUserProfileParameters{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("users.profile.get %s: %w", userID, err)
	}
	return &identity.Profile{RealName: p.RealName}, nil
}

// TopicSink sets channel topics with the bot token.
type TopicSink struct {
	client *slack.Client
}

// NewTopicSink creates a TopicSink backed by client.
func NewTopicSink(client *slack.Client) *TopicSink {
	return &TopicSink{client: client}
}

// SetTopic replaces the topic of channel.
func (t *TopicSink) SetTopic(ctx context.Context, channel, topic string) error {
	if _, err := t.client.SetTopicOfConversationContext(ctx, channel, topic); err != nil {
		return fmt.Errorf("conversations.setTopic %s: %w", channel, err)
	}
	return nil
}
