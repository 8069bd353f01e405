package external

import (
	"context"
	"fmt"

	"backoffice/internal/types"
)

// Stub implementations let the worker boot in local mode without real
// provider credentials. They log every send and return predictable
// message IDs.

// StubSmsProvider implements SmsProvider by logging calls. Used when
// APP_ENV=local or by the job-runner tool.
type StubSmsProvider struct {
	logger types.Logger
}

// NewStubSmsProvider creates a new StubSmsProvider.
func NewStubSmsProvider(logger types.Logger) *StubSmsProvider {
	return &StubSmsProvider{logger: logger}
}

func (s *StubSmsProvider) Send(_ context.Context, input SmsSendInput) (string, error) {
	s.logger.Info("stub: Send sms called",
		"phones", len(input.Phones),
		"template_code", input.TemplateCode,
		"reference_id", input.ReferenceID,
	)
	return fmt.Sprintf("sms_stub_%s", input.ReferenceID), nil
}

// StubEmailProvider implements EmailProvider by logging calls and returning
// a fake message ID.
type StubEmailProvider struct {
	logger types.Logger
}

// NewStubEmailProvider creates a new StubEmailProvider.
func NewStubEmailProvider(logger types.Logger) *StubEmailProvider {
	return &StubEmailProvider{logger: logger}
}

func (s *StubEmailProvider) Send(_ context.Context, input EmailSendInput) (string, error) {
	s.logger.Info("stub: Send email called",
		"to", len(input.To),
		"subject", input.Subject,
		"reference_id", input.ReferenceID,
	)
	return fmt.Sprintf("msg_stub_%s", input.ReferenceID), nil
}

var _ SmsProvider = (*StubSmsProvider)(nil)
var _ EmailProvider = (*StubEmailProvider)(nil)
