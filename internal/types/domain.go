package types

import (
	"time"
	"unicode/utf8"
)

// MaxLastErrorLen caps the persisted length of a work item's last error
// message so repeated failures cannot grow storage unboundedly.
const MaxLastErrorLen = 500

// Event is a queued unit of outbound communication produced by an audited
// domain action. The event-send drain loop resolves its channel binding by
// event code and fans it out to the bound channels.
type Event struct {
	ID        int64
	TenantID  int64
	Code      string            // event code, resolver key
	Subject   string            // short human-readable summary
	Content   string            // body used when a channel has no template
	Params    map[string]string // template parameters
	Status    WorkStatus
	Attempts  int
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EventPush is the per-channel delivery record created when an event fans
// out. One row per (event, channel) pair, so channel outcomes are tracked
// independently of the parent event's aggregate status.
type EventPush struct {
	ID         int64
	EventID    int64
	TenantID   int64
	NoticeType NoticeType
	Status     WorkStatus
	Attempts   int
	LastError  string
	CreatedAt  time.Time
}

// Email is a queued outbound email. Rows are created either by the event
// fan-out or directly by a notification request, always in pending status.
type Email struct {
	ID        int64
	TenantID  int64
	EventID   *int64 // originating event, when fan-out created the row
	Subject   string
	Body      string
	HTML      bool
	To        []string
	Status    WorkStatus
	Attempts  int
	LastError string
	CreatedAt time.Time
}

// InsiteMessage is a queued in-site message delivered to the websocket
// gateway for display inside the back-office UI.
type InsiteMessage struct {
	ID          int64
	TenantID    int64
	EventID     *int64
	Title       string
	Content     string
	ReceiverIDs []int64
	Urgent      bool
	Status      WorkStatus
	Attempts    int
	LastError   string
	CreatedAt   time.Time
}

// ReceiverSet describes who a channel binding targets. Exactly one of the
// three strategies is expected to be populated; at send time the first
// non-empty one wins (addresses, then object refs, then policy codes).
type ReceiverSet struct {
	Addresses   []string           // explicit mobile numbers, email addresses or user IDs
	ObjectType  ReceiverObjectType // paired with ObjectIDs
	ObjectIDs   []int64
	PolicyCodes []string // audience selected by policy code
}

// Empty reports whether no resolution strategy is populated.
func (r ReceiverSet) Empty() bool {
	return len(r.Addresses) == 0 && len(r.ObjectIDs) == 0 && len(r.PolicyCodes) == 0
}

// ChannelBinding associates a template or event code with one-to-many
// delivery channels and a receiver set. Read-mostly: written by
// administrative commands, read and cached by the resolver.
type ChannelBinding struct {
	ID          int64
	TenantID    int64
	TemplateID  int64  // zero when the binding is keyed by event code
	EventCode   string // empty when the binding is keyed by template
	NoticeTypes []NoticeType
	Receivers   ReceiverSet
	Enabled     bool
	UpdatedAt   time.Time
}

// CapError truncates an error message to at most MaxLastErrorLen bytes
// before persistence. Truncation backs up to a rune boundary so a split
// multi-byte character never produces invalid UTF-8, which Postgres would
// reject when the message is written to last_error.
func CapError(msg string) string {
	if len(msg) <= MaxLastErrorLen {
		return msg
	}
	n := MaxLastErrorLen
	for n > 0 && !utf8.RuneStart(msg[n]) {
		n--
	}
	return msg[:n]
}
