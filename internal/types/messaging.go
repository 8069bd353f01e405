package types

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Field-level caps for delivery requests. Deployment tuning knobs, not
// protocol requirements.
const (
	MaxRecipients     = 500
	MaxTemplateParams = 50
)

var dtoValidate = validator.New(validator.WithRequiredStructEnabled())

// SendSmsParam describes one outbound SMS request. Immutable after Build.
type SendSmsParam struct {
	BusinessKey string   `validate:"required"`
	Language    string   // BCP 47 tag, empty means tenant default
	Mobiles     []string `validate:"max=500"`
	ObjectType  ReceiverObjectType
	ObjectIDs   []int64           `validate:"max=500"`
	PolicyCodes []string          `validate:"max=500"`
	Params      map[string]string `validate:"max=50"`
	Urgent      bool
	Batch       bool
}

// SendEmailParam describes one outbound email request. Immutable after Build.
type SendEmailParam struct {
	BusinessKey string `validate:"required"`
	Language    string
	Subject     string `validate:"required"`
	Body        string `validate:"required"`
	HTML        bool
	To          []string `validate:"max=500"`
	ObjectType  ReceiverObjectType
	ObjectIDs   []int64           `validate:"max=500"`
	PolicyCodes []string          `validate:"max=500"`
	Params      map[string]string `validate:"max=50"`
}

// SendInsiteParam describes one outbound in-site message request.
// Immutable after Build.
type SendInsiteParam struct {
	BusinessKey string `validate:"required"`
	Language    string
	Title       string  `validate:"required"`
	Content     string  `validate:"required"`
	ReceiverIDs []int64 `validate:"max=500"`
	ObjectType  ReceiverObjectType
	ObjectIDs   []int64           `validate:"max=500"`
	PolicyCodes []string          `validate:"max=500"`
	Params      map[string]string `validate:"max=50"`
	Urgent      bool
}

// SendNoticeDto is the fan-out request handed to the dispatcher: one logical
// notification targeting one to three channels. Each selected channel must
// carry its channel-specific sub-payload.
type SendNoticeDto struct {
	TenantID    int64 `validate:"required"`
	TraceID     string
	NoticeTypes []NoticeType `validate:"required,min=1,max=3"`
	Sms         *SendSmsParam
	Email       *SendEmailParam
	Insite      *SendInsiteParam
}

// Validate checks cross-field consistency: every selected notice type must
// have its sub-payload, and no notice type may repeat.
func (d SendNoticeDto) Validate() error {
	if err := dtoValidate.Struct(d); err != nil {
		return NewAppError(ErrCodeValidationNotice, "invalid notice request", err)
	}
	seen := make(map[NoticeType]bool, len(d.NoticeTypes))
	for _, nt := range d.NoticeTypes {
		if !nt.Valid() {
			return NewAppError(ErrCodeValidationNotice, fmt.Sprintf("unknown notice type %q", nt), nil)
		}
		if seen[nt] {
			return NewAppError(ErrCodeValidationNotice, fmt.Sprintf("duplicate notice type %q", nt), nil)
		}
		seen[nt] = true
		switch nt {
		case NoticeSms:
			if d.Sms == nil {
				return NewAppError(ErrCodeValidationNotice, "sms selected but smsParam missing", nil)
			}
		case NoticeEmail:
			if d.Email == nil {
				return NewAppError(ErrCodeValidationNotice, "email selected but emailParam missing", nil)
			}
		case NoticeInsite:
			if d.Insite == nil {
				return NewAppError(ErrCodeValidationNotice, "insite selected but insiteParam missing", nil)
			}
		}
	}
	return nil
}

// requireRecipients enforces that at least one resolution strategy is
// populated. First-non-empty-wins selection happens at send time.
func requireRecipients(explicit int, objectIDs int, policyCodes int) error {
	if explicit == 0 && objectIDs == 0 && policyCodes == 0 {
		return NewAppError(ErrCodeValidationRecipients, "no recipient resolution strategy populated", nil)
	}
	return nil
}

// SmsParamBuilder assembles a SendSmsParam. Zero value is ready to use.
type SmsParamBuilder struct {
	p SendSmsParam
}

func NewSmsParam(businessKey string) *SmsParamBuilder {
	return &SmsParamBuilder{p: SendSmsParam{BusinessKey: businessKey}}
}

func (b *SmsParamBuilder) Language(tag string) *SmsParamBuilder { b.p.Language = tag; return b }
func (b *SmsParamBuilder) Mobiles(nums ...string) *SmsParamBuilder {
	b.p.Mobiles = append(b.p.Mobiles, nums...)
	return b
}
func (b *SmsParamBuilder) Objects(t ReceiverObjectType, ids ...int64) *SmsParamBuilder {
	b.p.ObjectType = t
	b.p.ObjectIDs = append(b.p.ObjectIDs, ids...)
	return b
}
func (b *SmsParamBuilder) PolicyCodes(codes ...string) *SmsParamBuilder {
	b.p.PolicyCodes = append(b.p.PolicyCodes, codes...)
	return b
}
func (b *SmsParamBuilder) Param(key, value string) *SmsParamBuilder {
	if b.p.Params == nil {
		b.p.Params = make(map[string]string)
	}
	b.p.Params[key] = value
	return b
}
func (b *SmsParamBuilder) Urgent() *SmsParamBuilder { b.p.Urgent = true; return b }
func (b *SmsParamBuilder) Batch() *SmsParamBuilder  { b.p.Batch = true; return b }

// Build validates and returns the immutable param. The builder must not be
// reused after Build.
func (b *SmsParamBuilder) Build() (*SendSmsParam, error) {
	if err := dtoValidate.Struct(b.p); err != nil {
		return nil, NewAppError(ErrCodeValidationNotice, "invalid sms param", err)
	}
	if err := requireRecipients(len(b.p.Mobiles), len(b.p.ObjectIDs), len(b.p.PolicyCodes)); err != nil {
		return nil, err
	}
	p := b.p
	return &p, nil
}

// EmailParamBuilder assembles a SendEmailParam.
type EmailParamBuilder struct {
	p SendEmailParam
}

func NewEmailParam(businessKey, subject, body string) *EmailParamBuilder {
	return &EmailParamBuilder{p: SendEmailParam{BusinessKey: businessKey, Subject: subject, Body: body}}
}

func (b *EmailParamBuilder) Language(tag string) *EmailParamBuilder { b.p.Language = tag; return b }
func (b *EmailParamBuilder) HTML() *EmailParamBuilder               { b.p.HTML = true; return b }
func (b *EmailParamBuilder) To(addrs ...string) *EmailParamBuilder {
	b.p.To = append(b.p.To, addrs...)
	return b
}
func (b *EmailParamBuilder) Objects(t ReceiverObjectType, ids ...int64) *EmailParamBuilder {
	b.p.ObjectType = t
	b.p.ObjectIDs = append(b.p.ObjectIDs, ids...)
	return b
}
func (b *EmailParamBuilder) PolicyCodes(codes ...string) *EmailParamBuilder {
	b.p.PolicyCodes = append(b.p.PolicyCodes, codes...)
	return b
}
func (b *EmailParamBuilder) Param(key, value string) *EmailParamBuilder {
	if b.p.Params == nil {
		b.p.Params = make(map[string]string)
	}
	b.p.Params[key] = value
	return b
}

func (b *EmailParamBuilder) Build() (*SendEmailParam, error) {
	if err := dtoValidate.Struct(b.p); err != nil {
		return nil, NewAppError(ErrCodeValidationNotice, "invalid email param", err)
	}
	if err := requireRecipients(len(b.p.To), len(b.p.ObjectIDs), len(b.p.PolicyCodes)); err != nil {
		return nil, err
	}
	p := b.p
	return &p, nil
}

// InsiteParamBuilder assembles a SendInsiteParam.
type InsiteParamBuilder struct {
	p SendInsiteParam
}

func NewInsiteParam(businessKey, title, content string) *InsiteParamBuilder {
	return &InsiteParamBuilder{p: SendInsiteParam{BusinessKey: businessKey, Title: title, Content: content}}
}

func (b *InsiteParamBuilder) Language(tag string) *InsiteParamBuilder { b.p.Language = tag; return b }
func (b *InsiteParamBuilder) Urgent() *InsiteParamBuilder             { b.p.Urgent = true; return b }
func (b *InsiteParamBuilder) Receivers(ids ...int64) *InsiteParamBuilder {
	b.p.ReceiverIDs = append(b.p.ReceiverIDs, ids...)
	return b
}
func (b *InsiteParamBuilder) Objects(t ReceiverObjectType, ids ...int64) *InsiteParamBuilder {
	b.p.ObjectType = t
	b.p.ObjectIDs = append(b.p.ObjectIDs, ids...)
	return b
}
func (b *InsiteParamBuilder) PolicyCodes(codes ...string) *InsiteParamBuilder {
	b.p.PolicyCodes = append(b.p.PolicyCodes, codes...)
	return b
}
func (b *InsiteParamBuilder) Param(key, value string) *InsiteParamBuilder {
	if b.p.Params == nil {
		b.p.Params = make(map[string]string)
	}
	b.p.Params[key] = value
	return b
}

func (b *InsiteParamBuilder) Build() (*SendInsiteParam, error) {
	if err := dtoValidate.Struct(b.p); err != nil {
		return nil, NewAppError(ErrCodeValidationNotice, "invalid insite param", err)
	}
	if err := requireRecipients(len(b.p.ReceiverIDs), len(b.p.ObjectIDs), len(b.p.PolicyCodes)); err != nil {
		return nil, err
	}
	p := b.p
	return &p, nil
}
