// Package upload implements the image upload pipeline: it turns a photo
// reference supplied by a client into an image stored at a remote asset host.
//
// Photos that are already remote URLs pass through without any network call.
// Everything else is read into memory and sent to the configured Backend in
// exactly one request. The pipeline never retries and never deletes assets.
package upload

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkordes/triptales/internal/domain"
)

// ErrUnsupportedSource is the cause of an UploadError for photo references
// the pipeline cannot read (blob: handles, content:// URIs, empty input, and
// file locators outside the configured file root).
var ErrUnsupportedSource = errors.New("unsupported photo source")

// ErrNotImage is the cause of an UploadError when the bytes are not an image.
var ErrNotImage = errors.New("photo is not an image")

// Object is a photo ready to be sent to an asset host.
type Object struct {
	Name        string
	ContentType string
	Data        []byte
}

// Backend stores one object at the asset host and returns where it lives.
type Backend interface {
	Put(ctx context.Context, obj Object) (domain.Asset, error)
}

// Pipeline resolves photos through a Backend.
type Pipeline struct {
	backend  Backend
	log      *slog.Logger
	fileRoot string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFileRoot enables file:// and absolute path locators for files under
// dir. Locators resolving outside dir, symlinks included, are rejected.
// Without this option every file locator is ErrUnsupportedSource.
func WithFileRoot(dir string) Option {
	return func(p *Pipeline) {
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
		p.fileRoot = dir
	}
}

// NewPipeline constructs a Pipeline that uploads through b.
func NewPipeline(b Backend, log *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{backend: b, log: log}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Upload returns the remote asset for photo. A remote URL is returned as is
// with an empty asset id. All failures are *domain.UploadError.
func (p *Pipeline) Upload(ctx context.Context, photo domain.Photo) (domain.Asset, error) {
	if photo.IsRemote() {
		p.log.DebugContext(ctx, "photo already remote, skipping upload", "url", photo.URL)
		return domain.Asset{URL: photo.URL}, nil
	}

	obj, err := p.resolve(photo)
	if err != nil {
		return domain.Asset{}, &domain.UploadError{Cause: err}
	}

	asset, err := p.backend.Put(ctx, obj)
	if err != nil {
		p.log.ErrorContext(ctx, "image upload failed", "name", obj.Name, "error", err)
		return domain.Asset{}, &domain.UploadError{Cause: err}
	}

	p.log.InfoContext(ctx, "image uploaded",
		"name", obj.Name,
		"bytes", len(obj.Data),
		"asset_id", asset.ID,
	)
	return asset, nil
}

// resolve reads the photo bytes from whichever shape the reference has.
func (p *Pipeline) resolve(photo domain.Photo) (Object, error) {
	var (
		data []byte
		name = photo.Filename
		err  error
	)

	switch src := photo.URL; {
	case len(photo.Data) > 0:
		data = photo.Data
	case strings.HasPrefix(src, "data:"):
		data, err = decodeDataURI(src)
	case strings.HasPrefix(src, "file://"):
		u, perr := url.Parse(src)
		if perr != nil {
			return Object{}, fmt.Errorf("parse %q: %w", src, perr)
		}
		data, err = p.readLocal(u.Path)
		if name == "" {
			name = filepath.Base(u.Path)
		}
	case filepath.IsAbs(src):
		data, err = p.readLocal(src)
		if name == "" {
			name = filepath.Base(src)
		}
	default:
		return Object{}, fmt.Errorf("%w: %q", ErrUnsupportedSource, truncate(src, 64))
	}
	if err != nil {
		return Object{}, err
	}
	if len(data) == 0 {
		return Object{}, fmt.Errorf("%w: empty photo", ErrUnsupportedSource)
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return Object{}, fmt.Errorf("%w: detected %s", ErrNotImage, contentType)
	}
	if name == "" {
		name = "photo" + Extension(contentType)
	}
	return Object{Name: name, ContentType: contentType, Data: data}, nil
}

// readLocal reads an absolute path through an os.Root opened on the file
// root, so ".." and symlinks cannot leave it.
func (p *Pipeline) readLocal(abs string) ([]byte, error) {
	if p.fileRoot == "" {
		return nil, fmt.Errorf("%w: file locators are disabled", ErrUnsupportedSource)
	}
	rel, err := filepath.Rel(p.fileRoot, filepath.Clean(abs))
	if err != nil || !filepath.IsLocal(rel) {
		return nil, fmt.Errorf("%w: %q is outside the file root", ErrUnsupportedSource, truncate(abs, 64))
	}
	root, err := os.OpenRoot(p.fileRoot)
	if err != nil {
		return nil, fmt.Errorf("open file root: %w", err)
	}
	defer root.Close()
	return root.ReadFile(rel)
}

// decodeDataURI decodes a data:[<mediatype>][;base64],<payload> URI.
func decodeDataURI(s string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("%w: malformed data URI", ErrUnsupportedSource)
	}
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("decode data URI: %w", err)
		}
		return data, nil
	}
	text, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data URI: %w", err)
	}
	return []byte(text), nil
}

var extensions = map[string]string{
	"image/jpeg":   ".jpg",
	"image/png":    ".png",
	"image/gif":    ".gif",
	"image/webp":   ".webp",
	"image/bmp":    ".bmp",
	"image/x-icon": ".ico",
}

// Extension returns the file extension for an image content type, or "".
func Extension(contentType string) string {
	return extensions[contentType]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
