package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slack-go/slack"
)

const maxSlackChannelName = 80

// SlackTransport maps each country topic to a Slack channel. Subscribing an
// email invites the matching workspace member to the channel.
type SlackTransport struct {
	client *slack.Client
	logger *slog.Logger
}

func NewSlackTransport(token string, logger *slog.Logger, opts ...slack.Option) *SlackTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlackTransport{
		client: slack.New(token, opts...),
		logger: logger.With("transport", "slack"),
	}
}

func (s *SlackTransport) Name() string { return "slack" }

func (s *SlackTransport) CreateTopic(ctx context.Context, name string) (string, error) {
	name = slackChannelName(name)
	ch, err := s.client.CreateConversationContext(ctx, slack.CreateConversationParams{ChannelName: name})
	if err == nil {
		s.logger.Info("slack channel created", "channel", name, "id", ch.ID)
		return ch.ID, nil
	}
	if !isSlackError(err, "name_taken") {
		return "", fmt.Errorf("create slack channel %s: %w", name, err)
	}

	id, err := s.findChannel(ctx, name)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *SlackTransport) findChannel(ctx context.Context, name string) (string, error) {
	params := &slack.GetConversationsParameters{
		ExcludeArchived: true,
		Limit:           1000,
		Types:           []string{"public_channel"},
	}
	for {
		channels, cursor, err := s.client.GetConversationsContext(ctx, params)
		if err != nil {
			return "", fmt.Errorf("failed to list channels: %w", err)
		}
		for _, ch := range channels {
			if ch.Name == name {
				return ch.ID, nil
			}
		}
		if cursor == "" {
			return "", fmt.Errorf("channel '%s' not found", name)
		}
		params.Cursor = cursor
	}
}

func (s *SlackTransport) DeleteTopic(ctx context.Context, handle string) error {
	if err := s.client.ArchiveConversationContext(ctx, handle); err != nil && !isSlackError(err, "already_archived") {
		return fmt.Errorf("archive slack channel %s: %w", handle, err)
	}
	return nil
}

func (s *SlackTransport) Publish(ctx context.Context, handle string, msg Message) (string, error) {
	text := fmt.Sprintf("*%s*\n\n%s", msg.Subject, msg.Body)
	channel, ts, err := s.client.PostMessageContext(ctx, handle, slack.MsgOptionText(text, false))
	if err != nil {
		return "", fmt.Errorf("post to slack channel %s: %w", handle, err)
	}
	return channel + ":" + ts, nil
}

// Subscribe returns "<channel>:<user>" as the subscription handle.
func (s *SlackTransport) Subscribe(ctx context.Context, handle, email string) (string, error) {
	user, err := s.client.GetUserByEmailContext(ctx, email)
	if err != nil {
		return "", fmt.Errorf("look up slack user %s: %w", email, err)
	}
	_, err = s.client.InviteUsersToConversationContext(ctx, handle, user.ID)
	if err != nil && !isSlackError(err, "already_in_channel") {
		return "", fmt.Errorf("invite %s to %s: %w", email, handle, err)
	}
	return handle + ":" + user.ID, nil
}

func (s *SlackTransport) Unsubscribe(ctx context.Context, subscriptionHandle string) error {
	channel, user, ok := strings.Cut(subscriptionHandle, ":")
	if !ok || channel == "" || user == "" {
		return fmt.Errorf("malformed slack subscription handle %q", subscriptionHandle)
	}
	if err := s.client.KickUserFromConversationContext(ctx, channel, user); err != nil && !isSlackError(err, "not_in_channel") {
		return fmt.Errorf("remove %s from %s: %w", user, channel, err)
	}
	return nil
}

func slackChannelName(name string) string {
	name = strings.ToLower(name)
	if len(name) > maxSlackChannelName {
		name = strings.TrimRight(name[:maxSlackChannelName], "-")
	}
	return name
}

func isSlackError(err error, code string) bool {
	var se slack.SlackErrorResponse
	if errors.As(err, &se) {
		return se.Err == code
	}
	return strings.Contains(err.Error(), code)
}
