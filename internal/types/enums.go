package types

// WorkStatus represents the delivery lifecycle state of a queued work item
// (event, email, or in-site message).
type WorkStatus string

const (
	// WorkPending means the item is awaiting delivery (or awaiting retry).
	WorkPending WorkStatus = "pending"
	// WorkDelivered is the terminal success state.
	WorkDelivered WorkStatus = "delivered"
	// WorkFailed is the terminal failure state. Items in this state are never
	// picked up by the drain loops again; recovery requires operator action.
	WorkFailed WorkStatus = "failed"
	// WorkSkipped is the terminal state for items consumed without delivery,
	// e.g. no channel binding configured or no recipients resolved. Kept
	// distinct from delivered so operators can tell the two apart.
	WorkSkipped WorkStatus = "skipped"
)

// NoticeType identifies a delivery channel.
type NoticeType string

const (
	NoticeSms    NoticeType = "sms"
	NoticeEmail  NoticeType = "email"
	NoticeInsite NoticeType = "insite"
)

// Valid reports whether the notice type is one of the known channels.
func (n NoticeType) Valid() bool {
	switch n {
	case NoticeSms, NoticeEmail, NoticeInsite:
		return true
	}
	return false
}

// ReceiverObjectType identifies the kind of directory object a receiver
// reference points at when recipients are resolved indirectly.
type ReceiverObjectType string

const (
	ReceiverUser       ReceiverObjectType = "user"
	ReceiverDepartment ReceiverObjectType = "department"
	ReceiverRole       ReceiverObjectType = "role"
)

// JobName is the typed identity of a scheduled pipeline job. It doubles as
// the distributed lock key suffix, so values must be unique per job.
type JobName string

const (
	JobEventSend   JobName = "event-send"
	JobEventRetry  JobName = "event-retry"
	JobEmailSend   JobName = "email-send"
	JobEmailRetry  JobName = "email-retry"
	JobInsiteSend  JobName = "insite-send"
	JobInsiteRetry JobName = "insite-retry"
)
