package external

import "context"

// SmsSendInput carries one pre-resolved SMS delivery. Either Content or
// TemplateCode+Params is set; the gateway renders templated sends itself.
type SmsSendInput struct {
	Phones       []string
	Content      string
	TemplateCode string
	Params       map[string]string
	ReferenceID  string
}

// SmsProvider abstracts the SMS gateway. Implementations transmit
// pre-resolved recipient lists and return the gateway's message ID.
type SmsProvider interface {
	Send(ctx context.Context, input SmsSendInput) (providerMsgID string, err error)
}

// EmailSendInput carries one pre-rendered outbound email.
type EmailSendInput struct {
	To          []string
	Subject     string
	Body        string
	HTML        bool
	FromAddress string
	FromName    string
	ReferenceID string
}

// EmailProvider abstracts the email delivery service (SendGrid).
type EmailProvider interface {
	// Send transmits an email with pre-rendered content.
	// Returns the provider's message ID for tracking and correlation.
	Send(ctx context.Context, input EmailSendInput) (providerMsgID string, err error)
}
