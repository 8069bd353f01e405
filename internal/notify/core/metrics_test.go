package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/types"
)

// captureCW records PutMetricData inputs.
type captureCW struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (c *captureCW) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	c.inputs = append(c.inputs, params)
	if c.err != nil {
		return nil, c.err
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestCloudWatchDeliveryMetrics_RecordDelivery(t *testing.T) {
	cw := &captureCW{}
	m := NewCloudWatchDeliveryMetrics(cw, "", testLogger())

	m.RecordDelivery(context.Background(), types.NoticeSms, MetricSuccess)

	require.Len(t, cw.inputs, 1)
	input := cw.inputs[0]
	assert.Equal(t, types.MetricNamespace, *input.Namespace)
	require.Len(t, input.MetricData, 1)
	datum := input.MetricData[0]
	assert.Equal(t, types.MetricDeliveryAttempt, *datum.MetricName)
	require.Len(t, datum.Dimensions, 2)
	assert.Equal(t, "sms", *datum.Dimensions[0].Value)
	assert.Equal(t, "success", *datum.Dimensions[1].Value)
}

func TestCloudWatchDeliveryMetrics_NamespaceOverride(t *testing.T) {
	cw := &captureCW{}
	m := NewCloudWatchDeliveryMetrics(cw, "Custom/NS", testLogger())

	m.RecordQueueLag(context.Background(), types.JobEmailSend, 30*time.Second)

	require.Len(t, cw.inputs, 1)
	assert.Equal(t, "Custom/NS", *cw.inputs[0].Namespace)
	assert.Equal(t, float64(30), *cw.inputs[0].MetricData[0].Value)
}

func TestCloudWatchDeliveryMetrics_ErrorsSwallowed(t *testing.T) {
	cw := &captureCW{err: errors.New("throttled")}
	m := NewCloudWatchDeliveryMetrics(cw, "", testLogger())

	// Must not panic or propagate.
	m.RecordDelivery(context.Background(), types.NoticeEmail, MetricFailed)
	m.RecordLatency(context.Background(), types.NoticeEmail, time.Second)
	assert.Len(t, cw.inputs, 2)
}
