package types

// CloudWatch metric names and dimensions emitted by the delivery pipeline.
const (
	MetricNamespace = "BackOffice/Notify"

	MetricDeliveryAttempt = "DeliveryAttempt"
	MetricDeliveryLatency = "DeliveryLatency"
	MetricQueueLag        = "QueueLag"
	MetricDrainBatch      = "DrainBatchSize"

	DimChannel = "Channel"
	DimResult  = "Result"
	DimJob     = "Job"
)
