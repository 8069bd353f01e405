package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/notify/core"
	"backoffice/internal/notify/dispatch"
	"backoffice/internal/types"
)

type noopLogger struct{}

func (noopLogger) Info(string, ...any)      {}
func (noopLogger) Error(string, ...any)     {}
func (noopLogger) Warn(string, ...any)      {}
func (noopLogger) With(...any) types.Logger { return noopLogger{} }

// captureDispatcher records every dispatch call and returns canned
// outcomes per notice type.
type captureDispatcher struct {
	requests map[types.NoticeType]dispatch.Request
	outcomes map[types.NoticeType]core.Outcome
}

func newCaptureDispatcher() *captureDispatcher {
	return &captureDispatcher{
		requests: make(map[types.NoticeType]dispatch.Request),
		outcomes: make(map[types.NoticeType]core.Outcome),
	}
}

func (d *captureDispatcher) Dispatch(_ context.Context, noticeTypes []types.NoticeType, req dispatch.Request) map[types.NoticeType]core.Outcome {
	result := make(map[types.NoticeType]core.Outcome, len(noticeTypes))
	for _, nt := range noticeTypes {
		d.requests[nt] = req
		out, ok := d.outcomes[nt]
		if !ok {
			out = core.Delivered()
		}
		result[nt] = out
	}
	return result
}

func validNotice(t *testing.T) types.SendNoticeDto {
	t.Helper()
	sms, err := types.NewSmsParam("order.shipped").
		Mobiles("+15550100").
		Param("order_id", "42").
		Build()
	require.NoError(t, err)

	email, err := types.NewEmailParam("order.shipped", "Order shipped", "<p>On the way</p>").
		To("ops@example.com").
		Build()
	require.NoError(t, err)

	insite, err := types.NewInsiteParam("order.shipped", "Order shipped", "Order 42 is on the way").
		Receivers(7, 8).
		Urgent().
		Build()
	require.NoError(t, err)
	// the email body above is HTML
	email.HTML = true

	return types.SendNoticeDto{
		TenantID:    3,
		NoticeTypes: []types.NoticeType{types.NoticeSms, types.NoticeEmail, types.NoticeInsite},
		Sms:         sms,
		Email:       email,
		Insite:      insite,
	}
}

func TestSender_FansOutPerChannelPayloads(t *testing.T) {
	d := newCaptureDispatcher()
	s := NewSender(d, noopLogger{})

	err := s.Send(context.Background(), validNotice(t))
	require.NoError(t, err)
	require.Len(t, d.requests, 3)

	sms := d.requests[types.NoticeSms]
	assert.Equal(t, int64(3), sms.TenantID)
	assert.Equal(t, "order.shipped", sms.TemplateCode)
	assert.Equal(t, []string{"+15550100"}, sms.Receivers.Addresses)
	assert.Equal(t, "42", sms.Params["order_id"])
	assert.NotEmpty(t, sms.TraceID)

	email := d.requests[types.NoticeEmail]
	assert.Equal(t, "Order shipped", email.Subject)
	assert.Equal(t, "<p>On the way</p>", email.Content)
	assert.True(t, email.HTML)
	assert.Equal(t, []string{"ops@example.com"}, email.Receivers.Addresses)

	insite := d.requests[types.NoticeInsite]
	assert.Equal(t, "Order shipped", insite.Subject)
	assert.True(t, insite.Urgent)
	assert.Equal(t, []string{"7", "8"}, insite.Receivers.Addresses)

	// all three carry the same trace id
	assert.Equal(t, sms.TraceID, email.TraceID)
	assert.Equal(t, sms.TraceID, insite.TraceID)
}

func TestSender_PreservesCallerTraceID(t *testing.T) {
	d := newCaptureDispatcher()
	s := NewSender(d, noopLogger{})

	dto := validNotice(t)
	dto.TraceID = "trace-123"

	require.NoError(t, s.Send(context.Background(), dto))
	assert.Equal(t, "trace-123", d.requests[types.NoticeSms].TraceID)
}

func TestSender_RejectsInvalidNotice(t *testing.T) {
	d := newCaptureDispatcher()
	s := NewSender(d, noopLogger{})

	dto := validNotice(t)
	dto.Email = nil // email selected but payload missing

	err := s.Send(context.Background(), dto)
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeValidationNotice, types.CodeOf(err))
	assert.Empty(t, d.requests, "nothing should be dispatched")
}

func TestSender_ChannelFailureSurfacesError(t *testing.T) {
	d := newCaptureDispatcher()
	sendErr := errors.New("gateway down")
	d.outcomes[types.NoticeSms] = core.Retryable(sendErr)
	s := NewSender(d, noopLogger{})

	err := s.Send(context.Background(), validNotice(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, sendErr)
	// the other channels were still attempted
	assert.Len(t, d.requests, 3)
}

func TestSender_SkipsAreNotErrors(t *testing.T) {
	d := newCaptureDispatcher()
	d.outcomes[types.NoticeEmail] = core.Skipped("no email recipients resolved")
	s := NewSender(d, noopLogger{})

	assert.NoError(t, s.Send(context.Background(), validNotice(t)))
}
