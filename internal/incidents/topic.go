package incidents

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kiranshivaraju/crashbot/pkg/models"
)

// AllClearTopic is the channel topic when no incident is open.
const AllClearTopic = ":white_check_mark: All systems operational. Please use one thread per incident"

const (
	// topicMaxLength is the channel-topic cap enforced by the chat platform, in characters.
	topicMaxLength = 250
	// topicLineSlack is reserved per line for the newline and a safety margin.
	topicLineSlack = 2
	ellipsis       = " ..."
)

// BuildTopic renders one line per incident, in the given order:
//
//	<severity emoji> DCL-<id> <title> ~ <description>
//
// Each line is cut independently to floor(250/N)-2 characters, ending in " ..."
// when shortened. An empty slice renders AllClearTopic.
func BuildTopic(open []models.IncidentView) string {
	if len(open) == 0 {
		return AllClearTopic
	}

	budget := max(topicMaxLength/len(open)-topicLineSlack, 0)

	var b strings.Builder
	for _, inc := range open {
		line := fmt.Sprintf("%s DCL-%d %s ~ %s", inc.Severity.Emoji(), inc.ID, inc.Title, inc.Description)
		b.WriteString(truncateRunes(line, budget))
		b.WriteByte('\n')
	}
	return b.String()
}

// truncateRunes shortens s to at most limit runes, replacing the tail with
// the ellipsis when there is room for it.
func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	keep := limit - utf8.RuneCountInString(ellipsis)
	if keep < 0 {
		return string(runes[:limit])
	}
	return string(runes[:keep]) + ellipsis
}

// OpenIncidentLister is the store query backing the channel topic.
type OpenIncidentLister interface {
	ListOpenIncidents(ctx context.Context) ([]*models.Revision, error)
}

// TopicSink sets a channel topic on the chat platform.
type TopicSink interface {
	SetTopic(ctx context.Context, channel, topic string) error
}

// TopicPublisher recomputes the channel topic from the open incidents and pushes it.
type TopicPublisher struct {
	store   OpenIncidentLister
	sink    TopicSink
	channel string
}

// NewTopicPublisher creates a TopicPublisher for channel.
func NewTopicPublisher(s OpenIncidentLister, sink TopicSink, channel string) *TopicPublisher {
	return &TopicPublisher{store: s, sink: sink, channel: channel}
}

// Refresh reads the open incidents, orders a copy of them with SortOpen and
// sets the rendered topic on the configured channel.
func (p *TopicPublisher) Refresh(ctx context.Context) error {
	revs, err := p.store.ListOpenIncidents(ctx)
	if err != nil {
		return fmt.Errorf("list open incidents: %w", err)
	}

	open := make([]models.IncidentView, 0, len(revs))
	for _, r := range LatestPerID(revs, false) {
		open = append(open, models.NewIncidentView(r))
	}
	SortOpen(open)

	if err := p.sink.SetTopic(ctx, p.channel, BuildTopic(open)); err != nil {
		return fmt.Errorf("set topic of %s: %w", p.channel, err)
	}
	return nil
}
