// Package mailstore persists an audit trail of the attachment mutations this
// service performs against Exchange. The mailbox data itself lives on the
// Exchange server; only the operation history is local.
package mailstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

// Repository defines the interface for attachment record data access.
type Repository interface {
	Migrate(ctx context.Context) error

	Create(ctx context.Context, rec *AttachmentRecord) error
	GetByPublicID(ctx context.Context, publicID string) (*AttachmentRecord, error)
	GetByAttachmentID(ctx context.Context, attachmentID string) (*AttachmentRecord, error)
	ListByItem(ctx context.Context, itemID string, includeDetached bool) ([]AttachmentRecord, error)
	MarkDetached(ctx context.Context, attachmentID, newChangeKey string) error
}

type repository struct {
	db *sql.DB
}

// NewRepository creates a new attachment record repository.
func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// Migrate creates the backing table when it does not exist yet. The service
// owns this table alone, so a statement at boot replaces a migration tool.
func (r *repository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS attachment_records (
			id              BIGSERIAL PRIMARY KEY,
			public_id       UUID NOT NULL UNIQUE,
			mailbox         TEXT NOT NULL,
			item_id         TEXT NOT NULL,
			attachment_id   TEXT NOT NULL UNIQUE,
			name            TEXT NOT NULL,
			content_type    TEXT NOT NULL,
			size            BIGINT NOT NULL DEFAULT 0,
			prev_change_key TEXT NOT NULL,
			new_change_key  TEXT NOT NULL,
			detached        BOOLEAN NOT NULL DEFAULT FALSE,
			detached_at     TIMESTAMPTZ,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`)
	return err
}

func (r *repository) Create(ctx context.Context, rec *AttachmentRecord) error {
	if rec.PublicID == "" {
		rec.PublicID = uuid.New().String()
	}
	query := `
		INSERT INTO attachment_records (
			public_id, mailbox, item_id, attachment_id, name, content_type,
			size, prev_change_key, new_change_key
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	return r.db.QueryRowContext(ctx, query,
		rec.PublicID,
		rec.Mailbox,
		rec.ItemID,
		rec.AttachmentID,
		rec.Name,
		rec.ContentType,
		rec.Size,
		rec.PrevChangeKey,
		rec.NewChangeKey,
	).Scan(&rec.ID, &rec.CreatedAt)
}

const selectColumns = `
	id, public_id, mailbox, item_id, attachment_id, name, content_type,
	size, prev_change_key, new_change_key, detached, detached_at, created_at`

func (r *repository) scanRecord(row *sql.Row) (*AttachmentRecord, error) {
	rec := &AttachmentRecord{}
	err := row.Scan(
		&rec.ID,
		&rec.PublicID,
		&rec.Mailbox,
		&rec.ItemID,
		&rec.AttachmentID,
		&rec.Name,
		&rec.ContentType,
		&rec.Size,
		&rec.PrevChangeKey,
		&rec.NewChangeKey,
		&rec.Detached,
		&rec.DetachedAt,
		&rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *repository) GetByPublicID(ctx context.Context, publicID string) (*AttachmentRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM attachment_records WHERE public_id = $1`
	return r.scanRecord(r.db.QueryRowContext(ctx, query, publicID))
}

func (r *repository) GetByAttachmentID(ctx context.Context, attachmentID string) (*AttachmentRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM attachment_records WHERE attachment_id = $1`
	return r.scanRecord(r.db.QueryRowContext(ctx, query, attachmentID))
}

func (r *repository) ListByItem(ctx context.Context, itemID string, includeDetached bool) ([]AttachmentRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM attachment_records WHERE item_id = $1`
	if !includeDetached {
		query += ` AND detached = FALSE`
	}
	query += ` ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []AttachmentRecord
	for rows.Next() {
		var rec AttachmentRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.PublicID,
			&rec.Mailbox,
			&rec.ItemID,
			&rec.AttachmentID,
			&rec.Name,
			&rec.ContentType,
			&rec.Size,
			&rec.PrevChangeKey,
			&rec.NewChangeKey,
			&rec.Detached,
			&rec.DetachedAt,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *repository) MarkDetached(ctx context.Context, attachmentID, newChangeKey string) error {
	query := `
		UPDATE attachment_records
		SET detached = TRUE,
		    detached_at = CURRENT_TIMESTAMP,
		    new_change_key = $1
		WHERE attachment_id = $2 AND detached = FALSE`

	result, err := r.db.ExecContext(ctx, query, newChangeKey, attachmentID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := r.GetByAttachmentID(ctx, attachmentID); err == nil {
			return ErrAlreadyDetached
		}
		return ErrRecordNotFound
	}
	return nil
}
