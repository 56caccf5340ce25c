package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/twilio/twilio-go"
	"github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

const (
	// Twilio error codes that change how a failure is reported
	twilioCodeNotJoinedSandbox = 63015
	twilioCodeInvalidTo        = 21211
	twilioCodeUnreachable      = 21614
)

// TwilioTransport implements SMSTransport and ChatTransport over the Twilio
// messages API
type TwilioTransport struct {
	client       *twilio.RestClient
	smsFrom      string
	whatsAppFrom string
}

// NewTwilioTransport creates a Twilio transport. Without credentials the
// transport stays disabled and every send fails with ErrTransportNotConfigured.
func NewTwilioTransport(accountSID, authToken, smsFrom, whatsAppFrom string, timeout time.Duration) *TwilioTransport {
	t := &TwilioTransport{
		smsFrom:      smsFrom,
		whatsAppFrom: whatsAppFrom,
	}
	if accountSID == "" || authToken == "" {
		return t
	}

	t.client = twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	if timeout > 0 {
		t.client.SetTimeout(timeout)
	}
	return t
}

// Enabled reports whether the transport has credentials
func (t *TwilioTransport) Enabled() bool {
	return t.client != nil
}

// SendSMS sends a text message and returns the message SID
func (t *TwilioTransport) SendSMS(ctx context.Context, to, body string) (string, error) {
	return t.send(ctx, to, t.smsFrom, body)
}

// SendWhatsApp sends a WhatsApp message and returns the message SID
func (t *TwilioTransport) SendWhatsApp(ctx context.Context, to, body string) (string, error) {
	return t.send(ctx, "whatsapp:"+to, "whatsapp:"+t.whatsAppFrom, body)
}

func (t *TwilioTransport) send(ctx context.Context, to, from, body string) (string, error) {
	if t.client == nil {
		return "", ErrTransportNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetBody(body)

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		return "", mapTwilioError(err)
	}
	if resp.Sid == nil {
		return "", errors.New("twilio returned no message sid")
	}
	return *resp.Sid, nil
}

// mapTwilioError turns Twilio API errors into the package sentinels where
// the caller needs to tell them apart
func mapTwilioError(err error) error {
	var restErr *client.TwilioRestError
	if !errors.As(err, &restErr) {
		return fmt.Errorf("twilio request failed: %w", err)
	}

	switch restErr.Code {
	case twilioCodeNotJoinedSandbox:
		return fmt.Errorf("%w: twilio %d: %s", ErrNeedsOptIn, restErr.Code, restErr.Message)
	case twilioCodeInvalidTo, twilioCodeUnreachable:
		return fmt.Errorf("%w: twilio %d: %s", ErrInvalidRecipient, restErr.Code, restErr.Message)
	default:
		return fmt.Errorf("twilio %d: %s", restErr.Code, restErr.Message)
	}
}
