// Package queue provides the SQS producer that hands in-site messages to
// the websocket gateway for display inside the back-office UI.
package queue

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/klauspost/compress/gzip"

	"backoffice/internal/types"
)

// maxInlinePayload is the body size above which the payload is gzip
// compressed before sending. SQS caps messages at 256 KiB; base64 of the
// compressed body plus attributes must stay under that.
const maxInlinePayload = 200 * 1024

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// GatewayMessage is the wire format consumed by the websocket gateway.
type GatewayMessage struct {
	MessageID   int64     `json:"message_id"`
	TenantID    int64     `json:"tenant_id"`
	TraceID     string    `json:"trace_id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	ReceiverIDs []int64   `json:"receiver_ids"`
	Urgent      bool      `json:"urgent"`
	SentAt      time.Time `json:"sent_at"`
}

// GatewayPublisher publishes in-site messages to the gateway queue.
type GatewayPublisher interface {
	Publish(ctx context.Context, msg GatewayMessage) error
}

// InsiteGateway implements GatewayPublisher on SQS. Oversized payloads are
// gzip compressed and base64 encoded, flagged through the content_encoding
// message attribute so the gateway knows to inflate them.
type InsiteGateway struct {
	client   SQSSender
	queueURL string
	logger   types.Logger
}

// NewInsiteGateway creates an InsiteGateway sending to queueURL.
func NewInsiteGateway(client SQSSender, queueURL string, logger types.Logger) *InsiteGateway {
	return &InsiteGateway{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
	}
}

// Compile-time assertion that InsiteGateway implements GatewayPublisher.
var _ GatewayPublisher = (*InsiteGateway)(nil)

// Publish serializes msg and sends it to the gateway queue. Failures are
// wrapped as gateway publish errors, which the delivery pipeline treats as
// retryable.
func (g *InsiteGateway) Publish(ctx context.Context, msg GatewayMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"queue: failed to marshal gateway message",
			err,
		)
	}

	attributes := map[string]sqsTypes.MessageAttributeValue{
		"trace_id": {
			DataType:    aws.String("String"),
			StringValue: aws.String(msg.TraceID),
		},
		"tenant_id": {
			DataType:    aws.String("Number"),
			StringValue: aws.String(strconv.FormatInt(msg.TenantID, 10)),
		},
		"urgent": {
			DataType:    aws.String("String"),
			StringValue: aws.String(strconv.FormatBool(msg.Urgent)),
		},
	}

	payload := string(body)
	if len(body) > maxInlinePayload {
		compressed, err := compress(body)
		if err != nil {
			return types.NewAppError(
				types.ErrCodeInternalUnexpected,
				"queue: failed to compress gateway message",
				err,
			)
		}
		payload = base64.StdEncoding.EncodeToString(compressed)
		attributes["content_encoding"] = sqsTypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String("gzip"),
		}
	}

	input := &sqs.SendMessageInput{
		QueueUrl:          aws.String(g.queueURL),
		MessageBody:       aws.String(payload),
		MessageAttributes: attributes,
	}

	if _, err := g.client.SendMessage(ctx, input); err != nil {
		return types.NewAppError(
			types.ErrCodeGatewayPublish,
			fmt.Sprintf("queue: failed to publish gateway message to %s", g.queueURL),
			err,
		)
	}

	g.logger.Info("gateway message published",
		"queue_url", g.queueURL,
		"message_id", msg.MessageID,
		"tenant_id", msg.TenantID,
		"trace_id", msg.TraceID,
		"receivers", len(msg.ReceiverIDs),
		"urgent", msg.Urgent,
	)

	return nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
