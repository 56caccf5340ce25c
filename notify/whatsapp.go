package notify

import (
	"context"
	"errors"
	"time"

	"matatu-feedback/models"

	"github.com/apex/log"
)

const directionOutbound = "outbound"

// WhatsAppAdapter sends chat messages and keeps an audit row for each
// successful send
type WhatsAppAdapter struct {
	transport   ChatTransport
	recorder    MessageRecorder
	countryCode string
}

// NewWhatsAppAdapter creates a WhatsApp adapter. recorder may be nil.
func NewWhatsAppAdapter(transport ChatTransport, recorder MessageRecorder, defaultCountryCode string) *WhatsAppAdapter {
	return &WhatsAppAdapter{
		transport:   transport,
		recorder:    recorder,
		countryCode: defaultCountryCode,
	}
}

// Channel returns ChannelWhatsApp
func (a *WhatsAppAdapter) Channel() Channel {
	return ChannelWhatsApp
}

// Send delivers one message. A recipient that has not joined the service is
// reported as FailureNeedsOptIn so the caller can fall back to another channel.
func (a *WhatsAppAdapter) Send(ctx context.Context, recipient, message string, kind MessageKind) SendResult {
	to, err := NormalizePhone(recipient, a.countryCode)
	if err != nil {
		return failure(ChannelWhatsApp, recipient, FailureInvalidRecipient, err)
	}

	sid, err := a.transport.SendWhatsApp(ctx, to, message)
	if err != nil {
		switch {
		case errors.Is(err, ErrNeedsOptIn):
			return failure(ChannelWhatsApp, to, FailureNeedsOptIn, err)
		case errors.Is(err, ErrInvalidRecipient):
			return failure(ChannelWhatsApp, to, FailureInvalidRecipient, err)
		default:
			return failure(ChannelWhatsApp, to, FailureTransport, err)
		}
	}

	// The audit row is best effort: the message is already out.
	if a.recorder != nil {
		msg := models.ChannelMessage{
			Channel:     string(ChannelWhatsApp),
			Direction:   directionOutbound,
			Recipient:   to,
			Body:        message,
			TransportID: sid,
			Read:        false,
			CreatedAt:   time.Now().UTC(),
		}
		if err := a.recorder.RecordMessage(ctx, msg); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"recipient":    to,
				"transport_id": sid,
				"kind":         kind,
			}).Warn("failed to record outgoing whatsapp message")
		}
	}

	return SendResult{
		Channel:     ChannelWhatsApp,
		Recipient:   to,
		Success:     true,
		TransportID: sid,
	}
}
