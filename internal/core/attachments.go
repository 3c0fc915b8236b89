package core

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Attachment is a file stored against one income or expense record.
type Attachment struct {
	ID         string    `json:"id" db:"id"`
	Kind       string    `json:"kind" db:"kind"`
	RecordID   string    `json:"recordId" db:"record_id"`
	Name       string    `json:"name" db:"original_name"`
	StoredName string    `json:"-" db:"stored_name"`
	Mime       string    `json:"mime" db:"mime_type"`
	Size       int64     `json:"size" db:"size"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
	URL        string    `json:"url" db:"-"`
}

// DownloadURL is the API path that serves the attachment's bytes.
func (a Attachment) DownloadURL() string {
	return "/api/attachments/" + a.ID + "/download"
}

func (a Attachment) withURL() Attachment {
	a.URL = a.DownloadURL()
	return a
}

// Upload is one file received for a record.
type Upload struct {
	Name string
	Mime string
	Body io.Reader
}

// FileStore keeps attachment bytes, addressed by kind, record id and
// stored name.
type FileStore interface {
	Save(kind, recordID, name string, body io.Reader) (int64, error)
	Open(kind, recordID, name string) (io.ReadSeekCloser, error)
	Remove(kind, recordID, name string) error
	RemoveRecord(kind, recordID string) error
	RemoveKind(kind string) error
	RemoveAll() error
}

// DirFileStore stores attachments under Root as <kind>/<recordID>/<name>.
type DirFileStore struct {
	Root string
}

// NewDirFileStore returns a store rooted at dir, creating it if needed.
func NewDirFileStore(dir string) (*DirFileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return &DirFileStore{Root: dir}, nil
}

// path joins segments under Root. Every segment must be a single,
// non-relative path element.
func (d *DirFileStore) path(segments ...string) (string, error) {
	for _, s := range segments {
		if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
			return "", fmt.Errorf("%w: bad path segment %q", ErrInvalidPayload, s)
		}
	}
	return filepath.Join(append([]string{d.Root}, segments...)...), nil
}

func (d *DirFileStore) Save(kind, recordID, name string, body io.Reader) (int64, error) {
	dst, err := d.path(kind, recordID, name)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("save attachment: %w", err)
	}

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("save attachment: %w", err)
	}
	n, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return 0, fmt.Errorf("save attachment: %w", err)
	}
	return n, nil
}

func (d *DirFileStore) Open(kind, recordID, name string) (io.ReadSeekCloser, error) {
	src, err := d.path(kind, recordID, name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(src)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("open attachment %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open attachment %s: %w", name, err)
	}
	return f, nil
}

func (d *DirFileStore) Remove(kind, recordID, name string) error {
	p, err := d.path(kind, recordID, name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove attachment %s: %w", name, err)
	}
	return nil
}

func (d *DirFileStore) RemoveRecord(kind, recordID string) error {
	p, err := d.path(kind, recordID)
	if err != nil {
		return err
	}
	return os.RemoveAll(p)
}

func (d *DirFileStore) RemoveKind(kind string) error {
	p, err := d.path(kind)
	if err != nil {
		return err
	}
	return os.RemoveAll(p)
}

// RemoveAll empties Root but keeps the directory itself.
func (d *DirFileStore) RemoveAll() error {
	entries, err := os.ReadDir(d.Root)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("clear upload dir: %w", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(d.Root, e.Name())); err != nil {
			return fmt.Errorf("clear upload dir: %w", err)
		}
	}
	return nil
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// safeFileName reduces an uploaded file name to ASCII letters, digits,
// '_', '.' and '-'. Path separators become underscores and leading dots
// are dropped, so the result never escapes its directory.
func safeFileName(name string) string {
	name = strings.NewReplacer("/", " ", `\`, " ").Replace(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFileChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")
	if name == "" {
		return "file"
	}
	return name
}

// storedName is the on-disk name of an upload: unique prefix, safe suffix.
func storedName(original string) string {
	return NewID() + "_" + safeFileName(original)
}
