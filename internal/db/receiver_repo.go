package db

import (
	"context"
	"fmt"
	"strconv"

	"backoffice/internal/types"
)

// ReceiverRepository resolves a binding's receiver set into concrete
// delivery targets. Resolution follows first-non-empty-wins: explicit
// addresses, then object refs, then policy codes.
type ReceiverRepository struct {
	db DBTX
}

// NewReceiverRepository creates a new ReceiverRepository backed by the
// given database connection (pool or transaction).
func NewReceiverRepository(db DBTX) *ReceiverRepository {
	return &ReceiverRepository{db: db}
}

// PhonesFor resolves the receiver set to mobile numbers.
func (r *ReceiverRepository) PhonesFor(ctx context.Context, tenantID int64, set types.ReceiverSet) ([]string, error) {
	if len(set.Addresses) > 0 {
		return set.Addresses, nil
	}
	return r.lookupColumn(ctx, "phone", tenantID, set)
}

// EmailsFor resolves the receiver set to email addresses.
func (r *ReceiverRepository) EmailsFor(ctx context.Context, tenantID int64, set types.ReceiverSet) ([]string, error) {
	if len(set.Addresses) > 0 {
		return set.Addresses, nil
	}
	return r.lookupColumn(ctx, "email", tenantID, set)
}

// UserIDsFor resolves the receiver set to user IDs for in-site delivery.
// Explicit addresses are interpreted as numeric user IDs.
func (r *ReceiverRepository) UserIDsFor(ctx context.Context, tenantID int64, set types.ReceiverSet) ([]int64, error) {
	if len(set.Addresses) > 0 {
		ids := make([]int64, 0, len(set.Addresses))
		for _, addr := range set.Addresses {
			id, err := strconv.ParseInt(addr, 10, 64)
			if err != nil {
				return nil, types.NewAppError(
					types.ErrCodeValidationRecipients,
					fmt.Sprintf("receiver address %q is not a user id", addr),
					err,
				)
			}
			ids = append(ids, id)
		}
		return ids, nil
	}

	raw, err := r.lookupColumn(ctx, "id::text", tenantID, set)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(raw))
	for _, s := range raw {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "unexpected non-numeric user id", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// lookupColumn selects one users column for the receiver set's object refs
// or policy codes. Inactive users are always excluded.
func (r *ReceiverRepository) lookupColumn(ctx context.Context, column string, tenantID int64, set types.ReceiverSet) ([]string, error) {
	var (
		query string
		args  []any
	)

	switch {
	case len(set.ObjectIDs) > 0:
		switch set.ObjectType {
		case types.ReceiverUser:
			query = `SELECT ` + column + ` FROM users
			 WHERE tenant_id = $1 AND active AND id = ANY($2)`
		case types.ReceiverDepartment:
			query = `SELECT ` + column + ` FROM users
			 WHERE tenant_id = $1 AND active AND department_id = ANY($2)`
		case types.ReceiverRole:
			query = `SELECT u.` + column + ` FROM users u
			 JOIN user_roles ur ON ur.user_id = u.id
			 WHERE u.tenant_id = $1 AND u.active AND ur.role_id = ANY($2)`
		default:
			return nil, types.NewAppError(
				types.ErrCodeValidationRecipients,
				fmt.Sprintf("unknown receiver object type %q", set.ObjectType),
				nil,
			)
		}
		args = []any{tenantID, set.ObjectIDs}

	case len(set.PolicyCodes) > 0:
		query = `SELECT u.` + column + ` FROM users u
		 JOIN notify_policy_members pm ON pm.user_id = u.id
		 JOIN notify_policies p ON p.id = pm.policy_id
		 WHERE u.tenant_id = $1 AND u.active AND p.code = ANY($2)`
		args = []any{tenantID, set.PolicyCodes}

	default:
		return nil, nil
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to resolve receivers", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan receiver row", err)
		}
		if v != "" {
			out = append(out, v)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "receiver rows iteration failed", err)
	}
	return out, nil
}
