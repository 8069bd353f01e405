package db

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"backoffice/internal/types"
)

// ChannelBindingRepository provides read access to the channel_bindings
// table: the configuration mapping templates and event codes to delivery
// channels and receiver sets. Written by administrative commands elsewhere;
// the pipeline only reads it, through the resolver cache.
type ChannelBindingRepository struct {
	db DBTX
}

// NewChannelBindingRepository creates a new ChannelBindingRepository backed
// by the given database connection (pool or transaction).
func NewChannelBindingRepository(db DBTX) *ChannelBindingRepository {
	return &ChannelBindingRepository{db: db}
}

const bindingColumns = `id, tenant_id, template_id, event_code, notice_types, receivers, enabled, updated_at`

// FindByEventCode returns the enabled binding for a bare event code, or
// (nil, nil) when no binding is configured. Absence is not an error: the
// caller records the item as skipped, distinct from a delivery failure.
func (r *ChannelBindingRepository) FindByEventCode(ctx context.Context, code string) (*types.ChannelBinding, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+bindingColumns+`
		 FROM channel_bindings
		 WHERE event_code = $1 AND enabled`,
		code,
	)
	return scanBinding(row)
}

// FindByTemplate returns the enabled binding for a tenant+template pair, or
// (nil, nil) when none is configured.
func (r *ChannelBindingRepository) FindByTemplate(ctx context.Context, tenantID int64, templateID int64) (*types.ChannelBinding, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+bindingColumns+`
		 FROM channel_bindings
		 WHERE tenant_id = $1 AND template_id = $2 AND enabled`,
		tenantID,
		templateID,
	)
	return scanBinding(row)
}

func scanBinding(row pgx.Row) (*types.ChannelBinding, error) {
	var (
		b            types.ChannelBinding
		noticeTypes  []string
		receiversRaw []byte
	)
	err := row.Scan(
		&b.ID, &b.TenantID, &b.TemplateID, &b.EventCode,
		&noticeTypes, &receiversRaw, &b.Enabled, &b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan channel binding", err)
	}

	for _, nt := range noticeTypes {
		b.NoticeTypes = append(b.NoticeTypes, types.NoticeType(nt))
	}
	if len(receiversRaw) > 0 {
		if err := json.Unmarshal(receiversRaw, &b.Receivers); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to decode binding receivers", err)
		}
	}
	return &b, nil
}
