package channels

import (
	"context"
	"fmt"

	"backoffice/internal/external"
	"backoffice/internal/notify/core"
	"backoffice/internal/notify/dispatch"
	"backoffice/internal/types"
)

// SmsChannel delivers requests synchronously through the SMS gateway.
// Recipient lists above the cap are sent in chunks; a chunk failure fails
// the whole request so retries re-send it as one unit.
type SmsChannel struct {
	provider  external.SmsProvider
	directory Directory
	logger    types.Logger
}

// NewSmsChannel creates a new SmsChannel.
func NewSmsChannel(provider external.SmsProvider, directory Directory, logger types.Logger) *SmsChannel {
	return &SmsChannel{
		provider:  provider,
		directory: directory,
		logger:    logger,
	}
}

// Type returns the channel type identifier for SMS.
func (c *SmsChannel) Type() types.NoticeType {
	return types.NoticeSms
}

// Send resolves the receiver set to phone numbers and transmits through
// the gateway.
func (c *SmsChannel) Send(ctx context.Context, req dispatch.Request) core.Outcome {
	phones, err := c.directory.PhonesFor(ctx, req.TenantID, req.Receivers)
	if err != nil {
		return core.OutcomeFromError(err)
	}
	if len(phones) == 0 {
		return core.Skipped("no sms recipients resolved")
	}

	for start := 0; start < len(phones); start += types.MaxRecipients {
		end := start + types.MaxRecipients
		if end > len(phones) {
			end = len(phones)
		}
		chunk := phones[start:end]

		msgID, err := c.provider.Send(ctx, external.SmsSendInput{
			Phones:       chunk,
			Content:      req.Content,
			TemplateCode: req.TemplateCode,
			Params:       req.Params,
			ReferenceID:  fmt.Sprintf("event_%d", req.EventID),
		})
		if err != nil {
			return core.OutcomeFromError(err)
		}

		c.logger.Info("sms batch sent",
			"event_id", req.EventID,
			"tenant_id", req.TenantID,
			"trace_id", req.TraceID,
			"recipients", len(chunk),
			"provider_msg_id", msgID,
		)
	}

	return core.Delivered()
}

// Compile-time assertion that SmsChannel implements dispatch.Channel.
var _ dispatch.Channel = (*SmsChannel)(nil)
