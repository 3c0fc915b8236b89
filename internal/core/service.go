package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// ResetTimeout is the maximum duration for a reset operation.
var ResetTimeout = 30 * time.Second

// Service binds the registered record kinds to one database.
type Service struct {
	db          DBTX
	files       FileStore
	attachments *attachmentStore
}

// NewService creates a new Service instance.
// db is usually a *pgxpool.Pool. files holds attachment bytes; with a nil
// FileStore, uploads are refused and deletes only touch the database.
func NewService(db DBTX, files FileStore) *Service {
	return &Service{
		db:          db,
		files:       files,
		attachments: &attachmentStore{db: db, now: time.Now},
	}
}

// ListKinds returns display information about every registered kind.
func (s *Service) ListKinds() []TableInfo {
	defs := All()
	infos := make([]TableInfo, len(defs))
	for i, def := range defs {
		infos[i] = def.Info
	}
	return infos
}

// Collection returns the store for a kind.
// Returns ErrUnknownKind if the kind is not registered. For kinds that take
// attachments, Remove and Clear also delete the affected attachments.
func (s *Service) Collection(kind string) (Collection, error) {
	def, err := Lookup(kind)
	if err != nil {
		return nil, err
	}
	coll := def.Open(s.db)
	if def.Info.Attachments {
		return attachedCollection{Collection: coll, svc: s}, nil
	}
	return coll, nil
}

// attachedCollection cascades record deletes to their attachments.
type attachedCollection struct {
	Collection
	svc *Service
}

func (c attachedCollection) Remove(ctx context.Context, id string) (bool, error) {
	deleted, err := c.Collection.Remove(ctx, id)
	if err != nil || !deleted {
		return deleted, err
	}
	return true, c.svc.purgeRecord(ctx, c.Info().Key, id)
}

func (c attachedCollection) Clear(ctx context.Context) error {
	if err := c.Collection.Clear(ctx); err != nil {
		return err
	}
	return c.svc.purgeKind(ctx, c.Info().Key)
}

func (s *Service) purgeRecord(ctx context.Context, kind, recordID string) error {
	if err := s.attachments.deleteRecord(ctx, kind, recordID); err != nil {
		return err
	}
	if s.files != nil {
		if err := s.files.RemoveRecord(kind, recordID); err != nil {
			slog.Warn("remove attachment files", "kind", kind, "record", recordID, "error", err)
		}
	}
	return nil
}

func (s *Service) purgeKind(ctx context.Context, kind string) error {
	if err := s.attachments.deleteKind(ctx, kind); err != nil {
		return err
	}
	if s.files != nil {
		if err := s.files.RemoveKind(kind); err != nil {
			slog.Warn("remove attachment files", "kind", kind, "error", err)
		}
	}
	return nil
}

// Counts returns the number of records per kind.
func (s *Service) Counts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, TableCount())
	for _, def := range All() {
		n, err := def.Open(s.db).Count(ctx)
		if err != nil {
			return nil, err
		}
		counts[def.Info.Key] = n
	}
	return counts, nil
}

// EnsureSchema creates any missing record tables and the attachments table.
func (s *Service) EnsureSchema(ctx context.Context) error {
	for _, def := range All() {
		if err := def.Open(s.db).EnsureTable(ctx); err != nil {
			return err
		}
	}
	return s.attachments.ensureTable(ctx)
}

// Reset deletes every record of one kind.
func (s *Service) Reset(ctx context.Context, kind string) error {
	coll, err := s.Collection(kind)
	if err != nil {
		return err
	}

	resetCtx, cancel := context.WithTimeout(ctx, ResetTimeout)
	defer cancel()

	if err := coll.Clear(resetCtx); err != nil {
		return err
	}

	slog.Info("record kind reset", "kind", kind)
	return nil
}

// ResetAll deletes every record of every kind, then every attachment,
// including any left behind by kinds that no longer take them.
func (s *Service) ResetAll(ctx context.Context) error {
	for _, kind := range Kinds() {
		if err := s.Reset(ctx, kind); err != nil {
			return fmt.Errorf("reset %s: %w", kind, err)
		}
	}
	return s.PurgeAttachments(ctx)
}

// PurgeAttachments deletes every attachment row and file.
func (s *Service) PurgeAttachments(ctx context.Context) error {
	if err := s.attachments.deleteAll(ctx); err != nil {
		return err
	}
	if s.files != nil {
		if err := s.files.RemoveAll(); err != nil {
			return fmt.Errorf("purge attachment files: %w", err)
		}
	}
	slog.Info("attachments purged")
	return nil
}

// attachmentParent checks that kind takes attachments and that the record
// exists.
func (s *Service) attachmentParent(ctx context.Context, kind, recordID string) error {
	def, err := Lookup(kind)
	if err != nil {
		return err
	}
	if !def.Info.Attachments {
		return fmt.Errorf("%w: %s", ErrAttachmentsUnsupported, kind)
	}
	if _, err := def.Open(s.db).Get(ctx, recordID); err != nil {
		return err
	}
	return nil
}

// ListAttachments returns a record's attachments, newest first.
func (s *Service) ListAttachments(ctx context.Context, kind, recordID string) ([]Attachment, error) {
	if err := s.attachmentParent(ctx, kind, recordID); err != nil {
		return nil, err
	}
	return s.attachments.list(ctx, kind, recordID)
}

// AddAttachments stores uploads against a record. Uploads without a name
// are skipped.
func (s *Service) AddAttachments(ctx context.Context, kind, recordID string, uploads []Upload) ([]Attachment, error) {
	if err := s.attachmentParent(ctx, kind, recordID); err != nil {
		return nil, err
	}
	if len(uploads) == 0 {
		return nil, fmt.Errorf("%w: no files uploaded", ErrInvalidPayload)
	}
	if s.files == nil {
		return nil, fmt.Errorf("%w: no file store configured", ErrAttachmentsUnsupported)
	}

	saved := make([]Attachment, 0, len(uploads))
	for _, up := range uploads {
		if up.Name == "" {
			continue
		}
		stored := storedName(up.Name)
		size, err := s.files.Save(kind, recordID, stored, up.Body)
		if err != nil {
			return saved, err
		}

		att, err := s.attachments.insert(ctx, Attachment{
			ID:         NewID(),
			Kind:       kind,
			RecordID:   recordID,
			Name:       up.Name,
			StoredName: stored,
			Mime:       up.Mime,
			Size:       size,
		})
		if err != nil {
			_ = s.files.Remove(kind, recordID, stored)
			return saved, err
		}
		slog.Info("attachment stored", "kind", kind, "record", recordID, "attachment", att.ID, "size", size)
		saved = append(saved, att)
	}
	return saved, nil
}

// Attachment returns the metadata of one attachment, or ErrNotFound.
func (s *Service) Attachment(ctx context.Context, id string) (Attachment, error) {
	return s.attachments.get(ctx, id)
}

// OpenAttachment returns an attachment with a reader over its bytes.
// The caller closes the reader.
func (s *Service) OpenAttachment(ctx context.Context, id string) (Attachment, io.ReadSeekCloser, error) {
	att, err := s.attachments.get(ctx, id)
	if err != nil {
		return Attachment{}, nil, err
	}
	if s.files == nil {
		return Attachment{}, nil, fmt.Errorf("open attachment %q: %w", id, ErrNotFound)
	}
	body, err := s.files.Open(att.Kind, att.RecordID, att.StoredName)
	if err != nil {
		return Attachment{}, nil, err
	}
	return att, body, nil
}

// DeleteAttachment removes one attachment and its file.
// Returns false without error when no such attachment exists.
func (s *Service) DeleteAttachment(ctx context.Context, id string) (bool, error) {
	att, err := s.attachments.get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if s.files != nil {
		if err := s.files.Remove(att.Kind, att.RecordID, att.StoredName); err != nil {
			slog.Warn("remove attachment file", "attachment", id, "error", err)
		}
	}
	return s.attachments.delete(ctx, id)
}
