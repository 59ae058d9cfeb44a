package slack

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/mempirate/electionjobs/log"
)

// Notifier posts run reports to a Slack channel.
type Notifier struct {
	log     zerolog.Logger
	client  *slack.Client
	channel string
}

func NewNotifier(botToken, channel string, options ...slack.Option) *Notifier {
	return &Notifier{
		log:     log.NewLogger("slack"),
		client:  slack.New(botToken, options...),
		channel: channel,
	}
}

func (n *Notifier) Notify(ctx context.Context, text string) error {
	channel, ts, err := n.client.PostMessageContext(ctx, n.channel, slack.MsgOptionText(text, false))
	if err != nil {
		return errors.Wrap(err, "failed to post message")
	}

	n.log.Debug().Str("channel", channel).Str("ts", ts).Msg("Report posted")

	return nil
}
