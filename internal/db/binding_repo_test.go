package db

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"backoffice/internal/types"
)

func bindingScanFn(b types.ChannelBinding, noticeTypes []string, receivers []byte) func(dest ...any) error {
	return func(dest ...any) error {
		*dest[0].(*int64) = b.ID
		*dest[1].(*int64) = b.TenantID
		*dest[2].(*int64) = b.TemplateID
		*dest[3].(*string) = b.EventCode
		*dest[4].(*[]string) = noticeTypes
		*dest[5].(*[]byte) = receivers
		*dest[6].(*bool) = b.Enabled
		*dest[7].(*time.Time) = b.UpdatedAt
		return nil
	}
}

func TestChannelBindingRepository_FindByEventCode(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewChannelBindingRepository(dbx)

	row := &mockRow{scanFn: bindingScanFn(
		types.ChannelBinding{ID: 3, TenantID: 10, EventCode: "order.created", Enabled: true, UpdatedAt: time.Now()},
		[]string{"sms", "email"},
		[]byte(`{"Addresses":["+15550100"],"PolicyCodes":["ops"]}`),
	)}

	dbx.On("QueryRow", mock.Anything, mock.Anything, []any{"order.created"}).Return(row)

	b, err := repo.FindByEventCode(context.Background(), "order.created")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, []types.NoticeType{types.NoticeSms, types.NoticeEmail}, b.NoticeTypes)
	assert.Equal(t, []string{"+15550100"}, b.Receivers.Addresses)
	assert.Equal(t, []string{"ops"}, b.Receivers.PolicyCodes)
}

func TestChannelBindingRepository_FindByEventCode_NotConfigured(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewChannelBindingRepository(dbx)

	dbx.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	b, err := repo.FindByEventCode(context.Background(), "unknown.code")
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestChannelBindingRepository_FindByTemplate(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewChannelBindingRepository(dbx)

	row := &mockRow{scanFn: bindingScanFn(
		types.ChannelBinding{ID: 9, TenantID: 10, TemplateID: 44, Enabled: true, UpdatedAt: time.Now()},
		[]string{"insite"},
		nil,
	)}

	dbx.On("QueryRow", mock.Anything, mock.Anything, []any{int64(10), int64(44)}).Return(row)

	b, err := repo.FindByTemplate(context.Background(), 10, 44)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, int64(44), b.TemplateID)
	assert.True(t, b.Receivers.Empty())
}
