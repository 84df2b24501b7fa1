// Package twilio adapts the Twilio REST API to the Notifier port.
package twilio

import (
	"context"
	"fmt"
	"time"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// messageCreator is the slice of the Twilio SDK the notifier uses; tests
// substitute a fake.
type messageCreator interface {
	CreateMessage(params *twilioapi.CreateMessageParams) (*twilioapi.ApiV2010Message, error)
}

// Notifier sends SMS messages through Twilio.
type Notifier struct {
	api  messageCreator
	from string
}

// Config carries Twilio credentials and the sender number.
type Config struct {
	AccountSID string
	AuthToken  string
	FromPhone  string
	Timeout    time.Duration
}

// New builds a Notifier backed by the real Twilio client. The timeout bounds
// the underlying HTTP call; the SDK does not accept a per-request context.
func New(cfg Config) *Notifier {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	if cfg.Timeout > 0 {
		client.Client.SetTimeout(cfg.Timeout)
	}
	return &Notifier{api: client.Api, from: cfg.FromPhone}
}

// Send delivers body to the given phone number and returns the Twilio
// message SID.
func (n *Notifier) Send(ctx context.Context, to, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(n.from)
	params.SetBody(body)

	msg, err := n.api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("twilio create message: %w", err)
	}
	if msg.Sid == nil {
		return "", fmt.Errorf("twilio response missing message sid")
	}
	return *msg.Sid, nil
}
