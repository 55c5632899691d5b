// Package assets downloads the media and fonts a design references into a
// job's working directory.
package assets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"montage/internal/pkg/errors"
	"montage/internal/ports"
)

// StorageScheme prefixes sources that live in the configured object store.
const StorageScheme = "asset://"

const hashPrefixLen = 16

type Option func(*Resolver)

func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) {
		if c != nil {
			r.client = c
		}
	}
}

// WithStorage enables asset:// sources.
func WithStorage(sp ports.StorageProvider) Option {
	return func(r *Resolver) { r.storage = sp }
}

// WithTimeout bounds each download.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

type Resolver struct {
	client  *http.Client
	storage ports.StorageProvider
	timeout time.Duration
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{client: http.DefaultClient, timeout: 2 * time.Minute}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fetch downloads src into destDir and returns the local path. The file is
// named <first 16 hex of sha256>-<name> so identical content gets a stable
// name and distinct content never collides.
func (r *Resolver) Fetch(ctx context.Context, src, destDir string) (string, error) {
	const op = "assets.fetch"

	src = strings.TrimSpace(src)
	if src == "" {
		return "", errors.Transport(op, nil, "empty source")
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", errors.Wrap(err, op, "create asset directory")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	body, contentType, err := r.open(ctx, src)
	if err != nil {
		return "", err
	}
	defer body.Close()

	tmpPath := uniquePath(destDir, withExt(nameFromSource(src), contentType))
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", errors.Wrap(err, op, "create asset file")
	}

	h := sha256.New()
	_, copyErr := io.Copy(io.MultiWriter(f, h), body)
	closeErr := f.Close()
	if copyErr != nil {
		_ = os.Remove(tmpPath)
		return "", errors.Transport(op, copyErr, "download %s", src)
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return "", errors.Wrap(closeErr, op, "write asset file")
	}

	sum := hex.EncodeToString(h.Sum(nil))
	finalPath := filepath.Join(destDir, sum[:hashPrefixLen]+"-"+filepath.Base(tmpPath))
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", errors.Wrap(err, op, "rename asset file")
	}
	return finalPath, nil
}

func (r *Resolver) open(ctx context.Context, src string) (io.ReadCloser, string, error) {
	const op = "assets.fetch"

	if key, ok := strings.CutPrefix(src, StorageScheme); ok {
		if r.storage == nil {
			return nil, "", errors.Transport(op, nil, "no storage provider configured for %s", src)
		}
		rc, contentType, _, err := r.storage.GetObject(ctx, key)
		if err != nil {
			return nil, "", errors.Transport(op, err, "read %s from %s", key, r.storage.Provider())
		}
		return rc, contentType, nil
	}

	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		return nil, "", errors.Transport(op, nil, "unsupported source %q", src)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, "", errors.Transport(op, err, "build request for %s", src)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, "", errors.Transport(op, err, "download %s", src)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, "", errors.Transport(op, nil, "bad status %d for %s", resp.StatusCode, src).
			WithField("status", resp.StatusCode)
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

// uniquePath returns dir/name, or dir/<n>-name for the first n that is free.
func uniquePath(dir, name string) string {
	p := filepath.Join(dir, name)
	for n := 1; ; n++ {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return p
		}
		p = filepath.Join(dir, strconv.Itoa(n)+"-"+name)
	}
}
