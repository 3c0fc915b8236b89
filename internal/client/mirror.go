package client

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/btree"
	"github.com/tidwall/gjson"

	"github.com/FireMarshmellow/Mellow-labs-dashboard/internal/core"
)

// mirrorEntry is one record held by the in-memory mirror.
type mirrorEntry struct {
	id        string
	date      string
	createdAt time.Time
	updatedAt time.Time
	doc       core.Document
}

func newMirrorEntry(doc core.Document) *mirrorEntry {
	r := gjson.ParseBytes(doc)
	return &mirrorEntry{
		id:        r.Get("id").String(),
		date:      r.Get("date").String(),
		createdAt: parseTime(r.Get("createdAt").String()),
		updatedAt: parseTime(r.Get("updatedAt").String()),
		doc:       doc,
	}
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// byNewest orders entries like the server's list: date, then last update,
// then id, all descending.
func byNewest(a, b interface{}) bool {
	x, y := a.(*mirrorEntry), b.(*mirrorEntry)
	if x.date != y.date {
		return x.date > y.date
	}
	if !x.updatedAt.Equal(y.updatedAt) {
		return x.updatedAt.After(y.updatedAt)
	}
	return x.id > y.id
}

// kindMirror holds the records of one kind.
type kindMirror struct {
	tree    *btree.BTree
	byID    map[string]*mirrorEntry
	bundled map[string]bool // ids shipped in the bundled dataset
	removed map[string]bool // ids deleted locally, in any tier
}

func newKindMirror() *kindMirror {
	return &kindMirror{
		tree:    btree.NewNonConcurrent(byNewest),
		byID:    make(map[string]*mirrorEntry),
		bundled: make(map[string]bool),
		removed: make(map[string]bool),
	}
}

func (k *kindMirror) put(e *mirrorEntry) {
	if old, ok := k.byID[e.id]; ok {
		k.tree.Delete(old)
	}
	k.byID[e.id] = e
	k.tree.Set(e)
}

func (k *kindMirror) delete(id string) bool {
	old, ok := k.byID[id]
	if !ok {
		return false
	}
	k.tree.Delete(old)
	delete(k.byID, id)
	return true
}

func (k *kindMirror) docs() []core.Document {
	docs := make([]core.Document, 0, k.tree.Len())
	k.tree.Ascend(nil, func(i interface{}) bool {
		docs = append(docs, i.(*mirrorEntry).doc)
		return true
	})
	return docs
}

// mirrorBackend serves the bundled and local tiers from memory and writes
// every mutation back to Storage.
type mirrorBackend struct {
	mu      sync.Mutex
	storage Storage
	prefix  string
	kinds   map[string]*kindMirror
	now     func() time.Time
}

func newMirrorBackend(storage Storage, prefix string, now func() time.Time) *mirrorBackend {
	return &mirrorBackend{
		storage: storage,
		prefix:  prefix,
		kinds:   make(map[string]*kindMirror),
		now:     now,
	}
}

func (m *mirrorBackend) recordsKey(kind string) string { return m.prefix + kind }
func (m *mirrorBackend) removedKey(kind string) string { return m.prefix + kind + ".removed" }

// load builds the mirror for every registered kind: bundled records first,
// minus locally removed ids, then local records on top.
func (m *mirrorBackend) load(ds core.Dataset) error {
	for _, kind := range core.Kinds() {
		km := newKindMirror()

		for _, doc := range ds[kind] {
			e := newMirrorEntry(doc)
			if e.id == "" {
				continue
			}
			km.bundled[e.id] = true
			km.put(e)
		}

		var removed []string
		if err := m.read(m.removedKey(kind), &removed); err != nil {
			return err
		}
		for _, id := range removed {
			km.removed[id] = true
			km.delete(id)
		}

		var local []core.Document
		if err := m.read(m.recordsKey(kind), &local); err != nil {
			return err
		}
		for _, doc := range local {
			e := newMirrorEntry(doc)
			if e.id == "" {
				continue
			}
			delete(km.removed, e.id)
			km.put(e)
		}

		m.kinds[kind] = km
	}
	return nil
}

// hasLocalRecords reports whether storage holds at least one record.
func (m *mirrorBackend) hasLocalRecords() bool {
	for _, km := range m.kinds {
		if km.tree.Len() > 0 {
			return true
		}
	}
	return false
}

func (m *mirrorBackend) read(key string, v interface{}) error {
	data, ok, err := m.storage.Get(key)
	if err != nil {
		return errors.Wrapf(err, "local storage %s", key)
	}
	if !ok || len(data) == 0 {
		return nil
	}
	return errors.Wrapf(json.Unmarshal(data, v), "local storage %s", key)
}

func (m *mirrorBackend) write(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "local storage %s", key)
	}
	return errors.Wrapf(m.storage.Set(key, data), "local storage %s", key)
}

// persist writes the full view of a kind plus the ids deleted from it.
// Tombstones are kept even when no bundle is loaded, so a record removed
// in the local tier stays removed in a later bundled session.
func (m *mirrorBackend) persist(kind string, km *kindMirror) error {
	if err := m.write(m.recordsKey(kind), km.docs()); err != nil {
		return err
	}
	removed := make([]string, 0, len(km.removed))
	for id := range km.removed {
		removed = append(removed, id)
	}
	sort.Strings(removed)
	return m.write(m.removedKey(kind), removed)
}

func (m *mirrorBackend) kind(kind string) (*kindMirror, core.TableDefinition, error) {
	def, err := core.Lookup(kind)
	if err != nil {
		return nil, def, err
	}
	km, ok := m.kinds[kind]
	if !ok {
		km = newKindMirror()
		m.kinds[kind] = km
	}
	return km, def, nil
}

func (m *mirrorBackend) List(_ context.Context, kind string) ([]core.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	km, _, err := m.kind(kind)
	if err != nil {
		return nil, err
	}
	return km.docs(), nil
}

// Upsert normalizes doc with the kind's schema, exactly as the server would.
// New records get an id that is unused in this kind.
func (m *mirrorBackend) Upsert(_ context.Context, kind string, doc core.Document) (core.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	km, def, err := m.kind(kind)
	if err != nil {
		return nil, err
	}
	p, err := core.ParsePayload(doc)
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	meta := core.Meta{ID: p.ID(), CreatedAt: now, UpdatedAt: now}
	if meta.ID == "" {
		meta.ID = km.freshID()
	} else if existing, ok := km.byID[meta.ID]; ok && !existing.createdAt.IsZero() {
		meta.CreatedAt = existing.createdAt
	}

	out, err := def.Canonical(p, meta)
	if err != nil {
		return nil, err
	}

	km.put(newMirrorEntry(out))
	delete(km.removed, meta.ID)
	if err := m.persist(kind, km); err != nil {
		return nil, err
	}
	return out, nil
}

func (k *kindMirror) freshID() string {
	for {
		id := core.NewID()
		if _, taken := k.byID[id]; !taken && !k.removed[id] {
			return id
		}
	}
}

func (m *mirrorBackend) Remove(_ context.Context, kind, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	km, _, err := m.kind(kind)
	if err != nil {
		return false, err
	}
	if !km.delete(id) {
		return false, nil
	}
	km.removed[id] = true
	return true, m.persist(kind, km)
}

func (m *mirrorBackend) Clear(_ context.Context, kind string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	km, _, err := m.kind(kind)
	if err != nil {
		return err
	}
	for id := range km.byID {
		km.removed[id] = true
		km.delete(id)
	}
	return m.persist(kind, km)
}

func (m *mirrorBackend) Export(ctx context.Context, kind string) ([]byte, error) {
	docs, err := m.List(ctx, kind)
	if err != nil {
		return nil, err
	}
	def, err := core.Lookup(kind)
	if err != nil {
		return nil, err
	}
	return def.Project(docs)
}
