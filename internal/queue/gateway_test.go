package queue

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/types"
)

type noopLogger struct{}

func (noopLogger) Info(string, ...any)      {}
func (noopLogger) Warn(string, ...any)      {}
func (noopLogger) Error(string, ...any)     {}
func (noopLogger) With(...any) types.Logger { return noopLogger{} }

type mockSQSSender struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (m *mockSQSSender) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.inputs = append(m.inputs, params)
	if m.err != nil {
		return nil, m.err
	}
	return &sqs.SendMessageOutput{}, nil
}

func testMessage() GatewayMessage {
	return GatewayMessage{
		MessageID:   7,
		TenantID:    10,
		TraceID:     "trace-1",
		Title:       "PO approved",
		Content:     "PO-1042 was approved",
		ReceiverIDs: []int64{1, 2, 3},
		Urgent:      true,
		SentAt:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestPublish_SendsJSONBody(t *testing.T) {
	sender := &mockSQSSender{}
	g := NewInsiteGateway(sender, "https://sqs.test/gateway", noopLogger{})

	err := g.Publish(context.Background(), testMessage())
	require.NoError(t, err)
	require.Len(t, sender.inputs, 1)

	input := sender.inputs[0]
	assert.Equal(t, "https://sqs.test/gateway", *input.QueueUrl)

	var got GatewayMessage
	require.NoError(t, json.Unmarshal([]byte(*input.MessageBody), &got))
	assert.Equal(t, testMessage(), got)

	assert.Equal(t, "trace-1", *input.MessageAttributes["trace_id"].StringValue)
	assert.Equal(t, "10", *input.MessageAttributes["tenant_id"].StringValue)
	assert.Equal(t, "true", *input.MessageAttributes["urgent"].StringValue)
	_, compressed := input.MessageAttributes["content_encoding"]
	assert.False(t, compressed)
}

func TestPublish_CompressesOversizedPayload(t *testing.T) {
	sender := &mockSQSSender{}
	g := NewInsiteGateway(sender, "https://sqs.test/gateway", noopLogger{})

	msg := testMessage()
	msg.Content = strings.Repeat("back office ", 25_000) // ~300 KiB

	err := g.Publish(context.Background(), msg)
	require.NoError(t, err)
	require.Len(t, sender.inputs, 1)

	input := sender.inputs[0]
	enc, ok := input.MessageAttributes["content_encoding"]
	require.True(t, ok)
	assert.Equal(t, "gzip", *enc.StringValue)

	raw, err := base64.StdEncoding.DecodeString(*input.MessageBody)
	require.NoError(t, err)
	assert.Less(t, len(*input.MessageBody), maxInlinePayload)

	zr, err := gzip.NewReader(bytes.NewReader(raw))
	require.NoError(t, err)
	inflated, err := io.ReadAll(zr)
	require.NoError(t, err)

	var got GatewayMessage
	require.NoError(t, json.Unmarshal(inflated, &got))
	assert.Equal(t, msg.Content, got.Content)
}

func TestPublish_SendFailureMapsToGatewayPublish(t *testing.T) {
	sender := &mockSQSSender{err: errors.New("sqs unavailable")}
	g := NewInsiteGateway(sender, "https://sqs.test/gateway", noopLogger{})

	err := g.Publish(context.Background(), testMessage())
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeGatewayPublish, types.CodeOf(err))
	assert.True(t, types.IsRetryableUpstream(err))
}
