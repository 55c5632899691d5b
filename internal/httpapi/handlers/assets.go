package handlers

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"montage/internal/assets"
	"montage/internal/httpkit"
	"montage/internal/pkg/errors"
	"montage/internal/ports"
)

const maxUploadBytes = 512 << 20

// PostAsset stores an uploaded file so designs can reference it as
// asset://<object_key>.
func (h *Handler) PostAsset(w http.ResponseWriter, r *http.Request) error {
	if h.sp == nil {
		return errors.Unavailable("storage")
	}
	ctx := r.Context()

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return errors.Validation("invalid multipart form")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return errors.ValidationField("file", "file is required")
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	name := assets.SanitizeFilename(header.Filename)
	ext := filepath.Ext(name)
	if ext == "" {
		ext = guessExt(contentType)
		name += ext
	}
	if contentType == "" {
		contentType = mime.TypeByExtension(ext)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	objectKey := fmt.Sprintf("assets/%s/%s", uuid.NewString(), name)
	out, err := h.sp.PutObject(ctx, ports.PutObjectInput{
		ObjectKey:   objectKey,
		ContentType: contentType,
		Reader:      file,
		Size:        header.Size,
	})
	if err != nil {
		return err
	}

	h.log.FromContext(ctx).Info("asset stored",
		"object_key", out.ObjectKey,
		"provider", h.sp.Provider(),
		"size", out.Size,
	)
	httpkit.WriteJSON(w, http.StatusCreated, map[string]any{
		"asset": map[string]any{
			"object_key": out.ObjectKey,
			"src":        assets.StorageScheme + out.ObjectKey,
			"provider":   h.sp.Provider(),
			"mime":       contentType,
			"size_bytes": out.Size,
		},
	})
	return nil
}

// StreamAsset serves a stored object.
func (h *Handler) StreamAsset(w http.ResponseWriter, r *http.Request) error {
	if h.sp == nil {
		return errors.Unavailable("storage")
	}
	key, err := assetKey(r)
	if err != nil {
		return err
	}

	rc, ct, size, err := h.sp.GetObject(r.Context(), key)
	if err != nil {
		return err
	}
	defer rc.Close()

	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	_, _ = io.Copy(w, rc)
	return nil
}

func (h *Handler) DeleteAsset(w http.ResponseWriter, r *http.Request) error {
	if h.sp == nil {
		return errors.Unavailable("storage")
	}
	key, err := assetKey(r)
	if err != nil {
		return err
	}
	if err := h.sp.DeleteObject(r.Context(), key); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func assetKey(r *http.Request) (string, error) {
	key := strings.Trim(chi.URLParam(r, "*"), "/")
	if key == "" {
		return "", errors.ValidationField("key", "object key is required")
	}
	return key, nil
}

func guessExt(contentType string) string {
	if ext := assets.ExtFromMime(contentType); ext != "" {
		return ext
	}
	if contentType == "" {
		return ".bin"
	}
	exts, err := mime.ExtensionsByType(contentType)
	if err != nil || len(exts) == 0 {
		return ".bin"
	}
	return exts[0]
}
