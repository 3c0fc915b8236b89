package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const attachmentColumns = `"id", "kind", "record_id", "original_name", "stored_name", "mime_type", "size", "created_at"`

const (
	createAttachmentsSQL = `CREATE TABLE IF NOT EXISTS "attachments" (
	"id" TEXT PRIMARY KEY,
	"kind" TEXT NOT NULL,
	"record_id" TEXT NOT NULL,
	"original_name" TEXT NOT NULL,
	"stored_name" TEXT NOT NULL,
	"mime_type" TEXT NOT NULL DEFAULT '',
	"size" BIGINT NOT NULL DEFAULT 0,
	"created_at" TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	createAttachmentsIndexSQL = `CREATE INDEX IF NOT EXISTS "idx_attachments_kind_record" ON "attachments" ("kind", "record_id")`

	insertAttachmentSQL = `INSERT INTO "attachments" (` + attachmentColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + attachmentColumns

	listAttachmentsSQL = `SELECT ` + attachmentColumns + ` FROM "attachments"
WHERE "kind" = $1 AND "record_id" = $2
ORDER BY "created_at" DESC, "id" DESC`

	getAttachmentSQL          = `SELECT ` + attachmentColumns + ` FROM "attachments" WHERE "id" = $1`
	deleteAttachmentSQL       = `DELETE FROM "attachments" WHERE "id" = $1`
	deleteRecordAttachmentSQL = `DELETE FROM "attachments" WHERE "kind" = $1 AND "record_id" = $2`
	deleteKindAttachmentSQL   = `DELETE FROM "attachments" WHERE "kind" = $1`
	deleteAllAttachmentSQL    = `DELETE FROM "attachments"`
)

// attachmentStore is the metadata table shared by every kind that takes
// attachments.
type attachmentStore struct {
	db  DBTX
	now func() time.Time
}

func (s *attachmentStore) ensureTable(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createAttachmentsSQL); err != nil {
		return fmt.Errorf("create table attachments: %w", err)
	}
	if _, err := s.db.Exec(ctx, createAttachmentsIndexSQL); err != nil {
		return fmt.Errorf("create index attachments: %w", err)
	}
	return nil
}

func (s *attachmentStore) insert(ctx context.Context, a Attachment) (Attachment, error) {
	rows, err := s.db.Query(ctx, insertAttachmentSQL,
		a.ID, a.Kind, a.RecordID, a.Name, a.StoredName, a.Mime, a.Size, s.now().UTC())
	if err != nil {
		return Attachment{}, fmt.Errorf("insert attachment: %w", err)
	}
	stored, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[Attachment])
	if err != nil {
		return Attachment{}, fmt.Errorf("insert attachment: %w", err)
	}
	return stored.withURL(), nil
}

func (s *attachmentStore) list(ctx context.Context, kind, recordID string) ([]Attachment, error) {
	rows, err := s.db.Query(ctx, listAttachmentsSQL, kind, recordID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	atts, err := pgx.CollectRows(rows, pgx.RowToStructByName[Attachment])
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	out := make([]Attachment, len(atts))
	for i, a := range atts {
		out[i] = a.withURL()
	}
	return out, nil
}

func (s *attachmentStore) get(ctx context.Context, id string) (Attachment, error) {
	rows, err := s.db.Query(ctx, getAttachmentSQL, id)
	if err != nil {
		return Attachment{}, fmt.Errorf("get attachment %q: %w", id, err)
	}
	a, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[Attachment])
	if errors.Is(err, pgx.ErrNoRows) {
		return Attachment{}, fmt.Errorf("get attachment %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return Attachment{}, fmt.Errorf("get attachment %q: %w", id, err)
	}
	return a.withURL(), nil
}

func (s *attachmentStore) delete(ctx context.Context, id string) (bool, error) {
	tag, err := s.db.Exec(ctx, deleteAttachmentSQL, id)
	if err != nil {
		return false, fmt.Errorf("delete attachment %q: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *attachmentStore) deleteRecord(ctx context.Context, kind, recordID string) error {
	if _, err := s.db.Exec(ctx, deleteRecordAttachmentSQL, kind, recordID); err != nil {
		return fmt.Errorf("delete attachments of %s %q: %w", kind, recordID, err)
	}
	return nil
}

func (s *attachmentStore) deleteKind(ctx context.Context, kind string) error {
	if _, err := s.db.Exec(ctx, deleteKindAttachmentSQL, kind); err != nil {
		return fmt.Errorf("delete attachments of %s: %w", kind, err)
	}
	return nil
}

func (s *attachmentStore) deleteAll(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, deleteAllAttachmentSQL); err != nil {
		return fmt.Errorf("delete attachments: %w", err)
	}
	return nil
}
