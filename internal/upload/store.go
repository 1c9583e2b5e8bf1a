// Package upload stores uploaded images on the local filesystem and serves
// them back under a URL prefix.
package upload

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"blocknotes/internal/domain"
)

// DefaultMaxBytes caps a single upload.
const DefaultMaxBytes = 10 << 20

// Object describes a stored upload.
type Object struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

// Store is a directory of uploaded images, one subdirectory per owner key.
// Files are named by a fresh id plus the extension of their decoded format,
// so names never collide and never come from the client.
type Store struct {
	dir      string
	prefix   string
	MaxBytes int64
}

// NewStore opens dir, creating it if needed. prefix is the URL path the
// files are served under, e.g. "/files/".
func NewStore(dir, prefix string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Store{dir: dir, prefix: prefix, MaxBytes: DefaultMaxBytes}, nil
}

// OwnerKey is the directory an owner's uploads are stored under. It is a
// digest, so URLs do not reveal owner ids.
func OwnerKey(ownerID string) string {
	sum := sha256.Sum256([]byte(ownerID))
	return hex.EncodeToString(sum[:8])
}

// Save stores an image read from r for ownerID. Anything that does not
// decode as PNG, JPEG or GIF is rejected.
func (s *Store) Save(ctx context.Context, ownerID string, r io.Reader) (*Object, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.MaxBytes {
		return nil, fmt.Errorf("%w: upload exceeds %d bytes", domain.ErrValidation, s.MaxBytes)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: unsupported image: %v", domain.ErrValidation, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ext := "." + format
	if format == "jpeg" {
		ext = ".jpg"
	}
	key := OwnerKey(ownerID)
	if err := os.MkdirAll(filepath.Join(s.dir, key), 0755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	name := key + "/" + domain.NewID() + ext
	if err := os.WriteFile(filepath.Join(s.dir, filepath.FromSlash(name)), data, 0644); err != nil {
		return nil, fmt.Errorf("write upload: %w", err)
	}

	return &Object{
		URL:    s.prefix + name,
		Width:  cfg.Width,
		Height: cfg.Height,
		Format: format,
	}, nil
}

// Remove deletes the object served under url if ownerID uploaded it. URLs
// outside the prefix, objects of other owners and objects that are already
// gone are ignored.
func (s *Store) Remove(_ context.Context, ownerID, url string) error {
	key, name, ok := s.split(url)
	if !ok || key != OwnerKey(ownerID) {
		return nil
	}
	return s.remove(key, name)
}

// Purge deletes the object served under url whoever uploaded it. It is
// meant for maintenance jobs that have checked nothing refers to it.
func (s *Store) Purge(_ context.Context, url string) error {
	key, name, ok := s.split(url)
	if !ok {
		return nil
	}
	return s.remove(key, name)
}

func (s *Store) remove(key, name string) error {
	err := os.Remove(filepath.Join(s.dir, key, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove upload: %w", err)
	}
	return nil
}

// ListObjects returns the URLs of stored objects last modified before
// cutoff.
func (s *Store) ListObjects(ctx context.Context, cutoff time.Time) ([]string, error) {
	owners, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	var urls []string
	for _, owner := range owners {
		if !owner.IsDir() || !validSegment(owner.Name()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entries, err := os.ReadDir(filepath.Join(s.dir, owner.Name()))
		if err != nil {
			return nil, fmt.Errorf("list uploads: %w", err)
		}
		for _, e := range entries {
			if !e.Type().IsRegular() || !validSegment(e.Name()) {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			if info.ModTime().Before(cutoff) {
				urls = append(urls, s.prefix+owner.Name()+"/"+e.Name())
			}
		}
	}
	return urls, nil
}

// split parses prefix + "<owner key>/<name>".
func (s *Store) split(url string) (key, name string, ok bool) {
	rest, ok := strings.CutPrefix(url, s.prefix)
	if !ok {
		return "", "", false
	}
	key, name, ok = strings.Cut(rest, "/")
	if !ok || !validSegment(key) || !validSegment(name) {
		return "", "", false
	}
	return key, name, true
}

func validSegment(seg string) bool {
	return seg != "" && !strings.HasPrefix(seg, ".") && !strings.ContainsAny(seg, `/\`)
}

// Handler serves stored objects. It expects the full request path,
// including the prefix. Directory listings are not served.
func (s *Store) Handler() http.Handler {
	files := http.StripPrefix(s.prefix, http.FileServer(http.Dir(s.dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, _, ok := s.split(r.URL.Path); !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		files.ServeHTTP(w, r)
	})
}
