package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type TwilioSMS struct {
	client *twilio.RestClient
	from   string
}

func NewTwilioSMS(accountSID, authToken, from string) *TwilioSMS {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSMS{client: client, from: from}
}

func (t *TwilioSMS) SendSMS(ctx context.Context, to, body string) (string, error) {
	// The REST client has no context support; honour cancellation before dialing.
	if err := ctx.Err(); err != nil {
		return "", err
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(t.from)
	params.SetBody(body)

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		return "", err
	}
	if resp.ErrorMessage != nil && *resp.ErrorMessage != "" {
		return "", fmt.Errorf("twilio: %s", *resp.ErrorMessage)
	}
	if resp.Sid == nil {
		return "", errors.New("twilio: response carried no message sid")
	}
	return *resp.Sid, nil
}
