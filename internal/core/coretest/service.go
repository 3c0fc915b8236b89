// Package coretest provides an in-memory record service for tests of the
// HTTP layer and its clients. Records go through each kind's canonical
// form and CSV projection, so responses match the database-backed service.
package coretest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/FireMarshmellow/Mellow-labs-dashboard/internal/core"
)

// Service is an in-memory stand-in for *core.Service and the admin resetter.
type Service struct {
	mu    sync.Mutex
	colls map[string]*Collection
	files map[string]*storedFile

	// CountErr, when set, is returned by Counts.
	CountErr error

	// Resets counts completed factory resets.
	Resets int

	// Now stamps record and attachment times.
	Now func() time.Time
}

type storedFile struct {
	att  core.Attachment
	data []byte
}

// NewService returns an empty service over every registered kind.
func NewService() *Service {
	s := &Service{
		colls: make(map[string]*Collection),
		files: make(map[string]*storedFile),
		Now:   time.Now,
	}
	for _, def := range core.All() {
		s.colls[def.Info.Key] = &Collection{svc: s, def: def, docs: make(map[string]entry)}
	}
	return s
}

func (s *Service) now() time.Time { return s.Now().UTC() }

// Collection returns the in-memory collection of a kind.
func (s *Service) Collection(kind string) (core.Collection, error) {
	return s.collection(kind)
}

func (s *Service) collection(kind string) (*Collection, error) {
	if _, err := core.Lookup(kind); err != nil {
		return nil, err
	}
	return s.colls[kind], nil
}

func (s *Service) Counts(ctx context.Context) (map[string]int64, error) {
	if s.CountErr != nil {
		return nil, s.CountErr
	}
	counts := make(map[string]int64, len(s.colls))
	for k, c := range s.colls {
		counts[k], _ = c.Count(ctx)
	}
	return counts, nil
}

func (s *Service) ListKinds() []core.TableInfo {
	defs := core.All()
	infos := make([]core.TableInfo, len(defs))
	for i, def := range defs {
		infos[i] = def.Info
	}
	return infos
}

// FactoryReset clears every kind and drops every attachment.
func (s *Service) FactoryReset(ctx context.Context) error {
	for _, c := range s.colls {
		if err := c.Clear(ctx); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.files = make(map[string]*storedFile)
	s.Resets++
	s.mu.Unlock()
	return nil
}

// Len reports how many records a kind holds.
func (s *Service) Len(kind string) int {
	n, _ := s.colls[kind].Count(context.Background())
	return int(n)
}

func (s *Service) attachmentParent(kind, recordID string) error {
	c, err := s.collection(kind)
	if err != nil {
		return err
	}
	if !c.def.Info.Attachments {
		return fmt.Errorf("%w: %s", core.ErrAttachmentsUnsupported, kind)
	}
	if !c.has(recordID) {
		return fmt.Errorf("get %s %q: %w", kind, recordID, core.ErrNotFound)
	}
	return nil
}

func (s *Service) ListAttachments(_ context.Context, kind, recordID string) ([]core.Attachment, error) {
	if err := s.attachmentParent(kind, recordID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []core.Attachment{}
	for _, f := range s.files {
		if f.att.Kind == kind && f.att.RecordID == recordID {
			out = append(out, f.att)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Service) AddAttachments(_ context.Context, kind, recordID string, uploads []core.Upload) ([]core.Attachment, error) {
	if err := s.attachmentParent(kind, recordID); err != nil {
		return nil, err
	}
	if len(uploads) == 0 {
		return nil, fmt.Errorf("%w: no files uploaded", core.ErrInvalidPayload)
	}

	saved := make([]core.Attachment, 0, len(uploads))
	for _, up := range uploads {
		if up.Name == "" {
			continue
		}
		data, err := io.ReadAll(up.Body)
		if err != nil {
			return saved, err
		}
		att := core.Attachment{
			ID:         core.NewID(),
			Kind:       kind,
			RecordID:   recordID,
			Name:       up.Name,
			StoredName: up.Name,
			Mime:       up.Mime,
			Size:       int64(len(data)),
			CreatedAt:  s.now(),
		}
		att.URL = att.DownloadURL()

		s.mu.Lock()
		s.files[att.ID] = &storedFile{att: att, data: data}
		s.mu.Unlock()
		saved = append(saved, att)
	}
	return saved, nil
}

func (s *Service) Attachment(_ context.Context, id string) (core.Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	if !ok {
		return core.Attachment{}, fmt.Errorf("get attachment %q: %w", id, core.ErrNotFound)
	}
	return f.att, nil
}

func (s *Service) OpenAttachment(ctx context.Context, id string) (core.Attachment, io.ReadSeekCloser, error) {
	att, err := s.Attachment(ctx, id)
	if err != nil {
		return core.Attachment{}, nil, err
	}
	s.mu.Lock()
	data := s.files[id].data
	s.mu.Unlock()
	return att, nopCloser{bytes.NewReader(data)}, nil
}

func (s *Service) DeleteAttachment(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[id]; !ok {
		return false, nil
	}
	delete(s.files, id)
	return true, nil
}

// AttachmentCount reports how many attachments are stored in total.
func (s *Service) AttachmentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

func (s *Service) purge(match func(core.Attachment) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, f := range s.files {
		if match(f.att) {
			delete(s.files, id)
		}
	}
}

type nopCloser struct{ *bytes.Reader }

func (nopCloser) Close() error { return nil }

type entry struct {
	date      string
	updatedAt time.Time
	doc       core.Document
}

// Collection is an in-memory core.Collection for one kind.
type Collection struct {
	svc  *Service
	mu   sync.Mutex
	def  core.TableDefinition
	docs map[string]entry
}

func (c *Collection) Info() core.TableInfo { return c.def.Info }

func (c *Collection) has(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.docs[id]
	return ok
}

func (c *Collection) Upsert(_ context.Context, p core.Payload) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.svc.now()
	meta := core.Meta{ID: p.ID(), CreatedAt: now, UpdatedAt: now}
	if meta.ID == "" {
		meta.ID = core.NewID()
	} else if old, ok := c.docs[meta.ID]; ok {
		meta.CreatedAt = gjson.GetBytes(old.doc, "createdAt").Time()
	}

	doc, err := c.def.Canonical(p, meta)
	if err != nil {
		return nil, err
	}
	c.docs[meta.ID] = entry{date: gjson.GetBytes(doc, "date").String(), updatedAt: now, doc: doc}
	return doc, nil
}

// sorted returns documents newest date first, then latest update, then id.
func (c *Collection) sorted() []core.Document {
	ids := make([]string, 0, len(c.docs))
	for id := range c.docs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := c.docs[ids[i]], c.docs[ids[j]]
		if a.date != b.date {
			return a.date > b.date
		}
		if !a.updatedAt.Equal(b.updatedAt) {
			return a.updatedAt.After(b.updatedAt)
		}
		return ids[i] > ids[j]
	})
	out := make([]core.Document, len(ids))
	for i, id := range ids {
		out[i] = c.docs[id].doc
	}
	return out
}

func (c *Collection) List(context.Context) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sorted(), nil
}

func (c *Collection) Get(_ context.Context, id string) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.docs[id]
	if !ok {
		return nil, fmt.Errorf("get %s %q: %w", c.def.Info.Key, id, core.ErrNotFound)
	}
	return e.doc, nil
}

func (c *Collection) Remove(_ context.Context, id string) (bool, error) {
	c.mu.Lock()
	_, ok := c.docs[id]
	delete(c.docs, id)
	c.mu.Unlock()

	if ok && c.def.Info.Attachments {
		kind := c.def.Info.Key
		c.svc.purge(func(a core.Attachment) bool { return a.Kind == kind && a.RecordID == id })
	}
	return ok, nil
}

func (c *Collection) Clear(context.Context) error {
	c.mu.Lock()
	c.docs = make(map[string]entry)
	c.mu.Unlock()

	if c.def.Info.Attachments {
		kind := c.def.Info.Key
		c.svc.purge(func(a core.Attachment) bool { return a.Kind == kind })
	}
	return nil
}

func (c *Collection) Count(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(len(c.docs)), nil
}

func (c *Collection) Export(context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.def.Project(c.sorted())
}

func (c *Collection) EnsureTable(context.Context) error { return nil }
