package db

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"backoffice/internal/types"
)

// stringMockRows implements pgx.Rows for single-column receiver lookups.
type stringMockRows struct {
	data   []string
	idx    int
	errVal error
}

func (r *stringMockRows) Next() bool {
	r.idx++
	return r.idx <= len(r.data)
}

func (r *stringMockRows) Scan(dest ...any) error {
	*dest[0].(*string) = r.data[r.idx-1]
	return nil
}

func (r *stringMockRows) Close()                                       {}
func (r *stringMockRows) Err() error                                   { return r.errVal }
func (r *stringMockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *stringMockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stringMockRows) RawValues() [][]byte                          { return nil }
func (r *stringMockRows) Values() ([]any, error)                       { return nil, nil }
func (r *stringMockRows) Conn() *pgx.Conn                              { return nil }

func TestReceiverRepository_ExplicitAddressesSkipLookup(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewReceiverRepository(dbx)

	set := types.ReceiverSet{Addresses: []string{"+15550100", "+15550101"}}
	phones, err := repo.PhonesFor(context.Background(), 10, set)

	require.NoError(t, err)
	assert.Equal(t, []string{"+15550100", "+15550101"}, phones)
	dbx.AssertNotCalled(t, "Query")
}

func TestReceiverRepository_DepartmentLookup(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewReceiverRepository(dbx)

	rows := &stringMockRows{data: []string{"a@example.com", "b@example.com"}}
	dbx.On("Query", mock.Anything,
		mock.MatchedBy(func(sql string) bool { return strings.Contains(sql, "department_id = ANY($2)") }),
		[]any{int64(10), []int64{4, 5}},
	).Return(rows, nil)

	set := types.ReceiverSet{ObjectType: types.ReceiverDepartment, ObjectIDs: []int64{4, 5}}
	emails, err := repo.EmailsFor(context.Background(), 10, set)

	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, emails)
	dbx.AssertExpectations(t)
}

func TestReceiverRepository_RoleLookupJoinsUserRoles(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewReceiverRepository(dbx)

	rows := &stringMockRows{data: []string{"+15550100"}}
	dbx.On("Query", mock.Anything,
		mock.MatchedBy(func(sql string) bool { return strings.Contains(sql, "JOIN user_roles") }),
		mock.Anything,
	).Return(rows, nil)

	set := types.ReceiverSet{ObjectType: types.ReceiverRole, ObjectIDs: []int64{2}}
	phones, err := repo.PhonesFor(context.Background(), 10, set)

	require.NoError(t, err)
	assert.Equal(t, []string{"+15550100"}, phones)
}

func TestReceiverRepository_PolicyCodesLookup(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewReceiverRepository(dbx)

	rows := &stringMockRows{data: []string{"41", "42"}}
	dbx.On("Query", mock.Anything,
		mock.MatchedBy(func(sql string) bool { return strings.Contains(sql, "notify_policies") }),
		[]any{int64(10), []string{"oncall"}},
	).Return(rows, nil)

	set := types.ReceiverSet{PolicyCodes: []string{"oncall"}}
	ids, err := repo.UserIDsFor(context.Background(), 10, set)

	require.NoError(t, err)
	assert.Equal(t, []int64{41, 42}, ids)
}

func TestReceiverRepository_UserIDsFromExplicitAddresses(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewReceiverRepository(dbx)

	ids, err := repo.UserIDsFor(context.Background(), 10, types.ReceiverSet{Addresses: []string{"7", "9"}})
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 9}, ids)

	_, err = repo.UserIDsFor(context.Background(), 10, types.ReceiverSet{Addresses: []string{"not-a-number"}})
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeValidationRecipients, types.CodeOf(err))
}

func TestReceiverRepository_EmptySetResolvesToNothing(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewReceiverRepository(dbx)

	phones, err := repo.PhonesFor(context.Background(), 10, types.ReceiverSet{})
	require.NoError(t, err)
	assert.Empty(t, phones)
	dbx.AssertNotCalled(t, "Query")
}

func TestReceiverRepository_UnknownObjectType(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewReceiverRepository(dbx)

	set := types.ReceiverSet{ObjectType: "team", ObjectIDs: []int64{1}}
	_, err := repo.EmailsFor(context.Background(), 10, set)

	require.Error(t, err)
	assert.Equal(t, types.ErrCodeValidationRecipients, types.CodeOf(err))
}

func TestReceiverRepository_BlankValuesDropped(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewReceiverRepository(dbx)

	rows := &stringMockRows{data: []string{"a@example.com", ""}}
	dbx.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(rows, nil)

	set := types.ReceiverSet{ObjectType: types.ReceiverUser, ObjectIDs: []int64{1, 2}}
	emails, err := repo.EmailsFor(context.Background(), 10, set)

	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com"}, emails)
}
