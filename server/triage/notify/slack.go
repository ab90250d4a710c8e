package notify

import (
	"context"

	"github.com/slack-go/slack"
)

type SlackChat struct {
	client *slack.Client
}

func NewSlackChat(token string) *SlackChat {
	return &SlackChat{client: slack.New(token)}
}

func (s *SlackChat) PostAlert(ctx context.Context, channel string, alert Alert) error {
	_, _, err := s.client.PostMessageContext(ctx, channel,
		slack.MsgOptionText(alert.Body, false),
		slack.MsgOptionBlocks(alertBlocks(alert)...),
	)
	return err
}

func alertBlocks(alert Alert) []slack.Block {
	header := slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, alert.Header, true, false))
	section := slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, alert.Body, false, false), nil, nil)
	button := slack.NewButtonBlockElement(
		"view_emergency",
		alert.EmergencyID,
		slack.NewTextBlockObject(slack.PlainTextType, alert.LinkLabel, true, false),
	).WithURL(alert.LinkURL).WithStyle(slack.Style(alert.Style))
	actions := slack.NewActionBlock("emergency_actions", button)
	return []slack.Block{header, section, actions}
}
