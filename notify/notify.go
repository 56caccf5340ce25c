package notify

import (
	"context"
	"errors"

	"matatu-feedback/models"
)

// Channel identifies a communication channel
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelSMS      Channel = "sms"
)

// FailureKind classifies a failed send
type FailureKind string

const (
	FailureTransport        FailureKind = "TRANSPORT_ERROR"
	FailureNeedsOptIn       FailureKind = "NEEDS_OPT_IN"
	FailureInvalidRecipient FailureKind = "INVALID_RECIPIENT"
)

// MessageKind describes why a message is sent
type MessageKind string

const (
	KindUrgentAlert    MessageKind = "urgent_alert"
	KindRoutine        MessageKind = "routine"
	KindAcknowledgment MessageKind = "acknowledgment"
	KindOptInReminder  MessageKind = "opt_in_instructions"
)

var (
	// ErrNeedsOptIn is returned by chat transports when the recipient has not joined the service
	ErrNeedsOptIn = errors.New("recipient has not opted in")

	// ErrTransportNotConfigured is returned by transports built without credentials
	ErrTransportNotConfigured = errors.New("transport not configured")

	// ErrInvalidRecipient is returned when a phone number cannot be normalized
	ErrInvalidRecipient = errors.New("invalid recipient")
)

// SendResult is the observable outcome of one send attempt
type SendResult struct {
	Channel     Channel     `json:"channel"`
	Recipient   string      `json:"recipient"`
	Success     bool        `json:"success"`
	TransportID string      `json:"transportId,omitempty"`
	FailureKind FailureKind `json:"failureKind,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// Adapter sends a message over one channel. Failures are reported in the
// result, never as a panic or error.
type Adapter interface {
	Channel() Channel
	Send(ctx context.Context, recipient, message string, kind MessageKind) SendResult
}

// SMSTransport is the external messaging API behind the SMS adapter
type SMSTransport interface {
	SendSMS(ctx context.Context, to, body string) (string, error)
}

// ChatTransport is the external chat API behind the WhatsApp adapter
type ChatTransport interface {
	SendWhatsApp(ctx context.Context, to, body string) (string, error)
}

// MessageRecorder stores an audit row for outgoing chat messages
type MessageRecorder interface {
	RecordMessage(ctx context.Context, msg models.ChannelMessage) error
}

func failure(channel Channel, recipient string, kind FailureKind, err error) SendResult {
	return SendResult{
		Channel:     channel,
		Recipient:   recipient,
		Success:     false,
		FailureKind: kind,
		Error:       err.Error(),
	}
}
