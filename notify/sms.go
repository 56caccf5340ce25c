package notify

import (
	"context"
	"errors"

	"github.com/apex/log"
)

// SMSAdapter sends plain text messages through an SMS transport
type SMSAdapter struct {
	transport   SMSTransport
	countryCode string
}

// NewSMSAdapter creates an SMS adapter. Numbers without a country prefix
// are read in defaultCountryCode.
func NewSMSAdapter(transport SMSTransport, defaultCountryCode string) *SMSAdapter {
	return &SMSAdapter{
		transport:   transport,
		countryCode: defaultCountryCode,
	}
}

// Channel returns ChannelSMS
func (a *SMSAdapter) Channel() Channel {
	return ChannelSMS
}

// Send delivers one message. The transport error is reported verbatim and
// never retried here.
func (a *SMSAdapter) Send(ctx context.Context, recipient, message string, kind MessageKind) SendResult {
	to, err := NormalizePhone(recipient, a.countryCode)
	if err != nil {
		return failure(ChannelSMS, recipient, FailureInvalidRecipient, err)
	}

	sid, err := a.transport.SendSMS(ctx, to, message)
	if err != nil {
		if errors.Is(err, ErrInvalidRecipient) {
			return failure(ChannelSMS, to, FailureInvalidRecipient, err)
		}
		return failure(ChannelSMS, to, FailureTransport, err)
	}

	log.WithFields(log.Fields{
		"channel":      ChannelSMS,
		"recipient":    to,
		"kind":         kind,
		"transport_id": sid,
	}).Debug("sms sent")

	return SendResult{
		Channel:     ChannelSMS,
		Recipient:   to,
		Success:     true,
		TransportID: sid,
	}
}
