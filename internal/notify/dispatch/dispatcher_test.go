package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/notify/core"
	"backoffice/internal/types"
)

type noopLogger struct{}

func (noopLogger) Info(string, ...any)      {}
func (noopLogger) Warn(string, ...any)      {}
func (noopLogger) Error(string, ...any)     {}
func (noopLogger) With(...any) types.Logger { return noopLogger{} }

type stubChannel struct {
	typ     types.NoticeType
	outcome core.Outcome
	panics  bool
	calls   int
}

func (s *stubChannel) Type() types.NoticeType { return s.typ }

func (s *stubChannel) Send(_ context.Context, _ Request) core.Outcome {
	s.calls++
	if s.panics {
		panic("channel blew up")
	}
	return s.outcome
}

func TestDispatcher_RoutesToRequestedChannels(t *testing.T) {
	email := &stubChannel{typ: types.NoticeEmail, outcome: core.Delivered()}
	sms := &stubChannel{typ: types.NoticeSms, outcome: core.Delivered()}
	d := NewDispatcher(core.NopMetrics{}, noopLogger{}, email, sms)

	outcomes := d.Dispatch(context.Background(), []types.NoticeType{types.NoticeEmail}, Request{})

	require.Len(t, outcomes, 1)
	assert.Equal(t, core.OutcomeDelivered, outcomes[types.NoticeEmail].Kind)
	assert.Equal(t, 1, email.calls)
	assert.Equal(t, 0, sms.calls)
}

func TestDispatcher_UnregisteredTypeSkips(t *testing.T) {
	d := NewDispatcher(core.NopMetrics{}, noopLogger{})

	outcomes := d.Dispatch(context.Background(), []types.NoticeType{types.NoticeInsite}, Request{})

	require.Len(t, outcomes, 1)
	assert.Equal(t, core.OutcomeSkipped, outcomes[types.NoticeInsite].Kind)
}

func TestDispatcher_ChannelFailureIsolated(t *testing.T) {
	email := &stubChannel{typ: types.NoticeEmail, outcome: core.Retryable(errors.New("smtp timeout"))}
	insite := &stubChannel{typ: types.NoticeInsite, outcome: core.Delivered()}
	d := NewDispatcher(core.NopMetrics{}, noopLogger{}, email, insite)

	outcomes := d.Dispatch(context.Background(),
		[]types.NoticeType{types.NoticeEmail, types.NoticeInsite}, Request{})

	assert.Equal(t, core.OutcomeRetryable, outcomes[types.NoticeEmail].Kind)
	assert.Equal(t, core.OutcomeDelivered, outcomes[types.NoticeInsite].Kind)
	assert.Equal(t, 1, insite.calls)
}

func TestDispatcher_ChannelPanicBecomesTerminal(t *testing.T) {
	sms := &stubChannel{typ: types.NoticeSms, panics: true}
	email := &stubChannel{typ: types.NoticeEmail, outcome: core.Delivered()}
	d := NewDispatcher(core.NopMetrics{}, noopLogger{}, sms, email)

	outcomes := d.Dispatch(context.Background(),
		[]types.NoticeType{types.NoticeSms, types.NoticeEmail}, Request{})

	require.Equal(t, core.OutcomeTerminal, outcomes[types.NoticeSms].Kind)
	assert.ErrorContains(t, outcomes[types.NoticeSms].Err, "channel blew up")
	assert.Equal(t, core.OutcomeDelivered, outcomes[types.NoticeEmail].Kind)
}

func TestDispatcher_DuplicateNoticeTypeSentOnce(t *testing.T) {
	email := &stubChannel{typ: types.NoticeEmail, outcome: core.Delivered()}
	d := NewDispatcher(core.NopMetrics{}, noopLogger{}, email)

	d.Dispatch(context.Background(),
		[]types.NoticeType{types.NoticeEmail, types.NoticeEmail}, Request{})

	assert.Equal(t, 1, email.calls)
}

func TestDispatcher_DuplicateChannelRegistrationPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewDispatcher(core.NopMetrics{}, noopLogger{},
			&stubChannel{typ: types.NoticeSms},
			&stubChannel{typ: types.NoticeSms},
		)
	})
}

func TestAggregate(t *testing.T) {
	retryErr := errors.New("gateway 503")
	termErr := errors.New("address blocked")

	tests := []struct {
		name     string
		outcomes map[types.NoticeType]core.Outcome
		want     core.OutcomeKind
	}{
		{
			name:     "all delivered",
			outcomes: map[types.NoticeType]core.Outcome{types.NoticeEmail: core.Delivered(), types.NoticeSms: core.Delivered()},
			want:     core.OutcomeDelivered,
		},
		{
			name:     "retryable wins over terminal",
			outcomes: map[types.NoticeType]core.Outcome{types.NoticeEmail: core.Retryable(retryErr), types.NoticeSms: core.Terminal(termErr)},
			want:     core.OutcomeRetryable,
		},
		{
			name:     "terminal without retryable",
			outcomes: map[types.NoticeType]core.Outcome{types.NoticeEmail: core.Terminal(termErr), types.NoticeSms: core.Delivered()},
			want:     core.OutcomeTerminal,
		},
		{
			name:     "all skipped",
			outcomes: map[types.NoticeType]core.Outcome{types.NoticeInsite: core.Skipped("not registered")},
			want:     core.OutcomeSkipped,
		},
		{
			name:     "skip plus delivered is delivered",
			outcomes: map[types.NoticeType]core.Outcome{types.NoticeInsite: core.Skipped("not registered"), types.NoticeEmail: core.Delivered()},
			want:     core.OutcomeDelivered,
		},
		{
			name:     "empty is skipped",
			outcomes: map[types.NoticeType]core.Outcome{},
			want:     core.OutcomeSkipped,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Aggregate(tc.outcomes)
			assert.Equal(t, tc.want, got.Kind)
		})
	}
}

func TestAggregate_JoinsChannelErrors(t *testing.T) {
	out := Aggregate(map[types.NoticeType]core.Outcome{
		types.NoticeEmail: core.Retryable(errors.New("smtp timeout")),
		types.NoticeSms:   core.Retryable(errors.New("gateway 503")),
	})

	require.Equal(t, core.OutcomeRetryable, out.Kind)
	assert.ErrorContains(t, out.Err, "smtp timeout")
	assert.ErrorContains(t, out.Err, "gateway 503")
}
