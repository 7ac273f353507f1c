package notifier

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// DiscordSink posts alerts to a Discord channel
type DiscordSink struct {
	session   *discordgo.Session
	channelID string
}

// NewDiscordSink creates a Discord sink posting to channelID. The session is
// REST-only; no gateway connection is opened.
func NewDiscordSink(token, channelID string) (*DiscordSink, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	return &DiscordSink{
		session:   session,
		channelID: channelID,
	}, nil
}

func (s *DiscordSink) Name() string {
	return "discord"
}

func (s *DiscordSink) Send(ctx context.Context, message string) error {
	_, err := s.session.ChannelMessageSend(s.channelID, message, discordgo.WithContext(ctx))
	return err
}
