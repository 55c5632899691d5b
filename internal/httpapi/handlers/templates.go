package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"montage/internal/httpkit"
	"montage/internal/models"
	"montage/internal/pkg/errors"
	"montage/internal/timeline"
)

type CreateTemplateRequest struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Design      *timeline.Design `json:"design"`
}

func (h *Handler) PostTemplate(w http.ResponseWriter, r *http.Request) error {
	if h.templates == nil {
		return errors.Unavailable("templates")
	}

	var req CreateTemplateRequest
	if err := httpkit.DecodeJSONLoose(r, &req); err != nil {
		return errors.Validation("invalid json body: " + err.Error())
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return errors.ValidationField("name", "name is required")
	}
	if req.Design == nil {
		return errors.ValidationField("design", "design is required")
	}

	tpl := &models.Template{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		Design:      *req.Design,
	}
	if err := h.templates.Create(r.Context(), tpl); err != nil {
		return err
	}

	httpkit.WriteJSON(w, http.StatusCreated, map[string]any{"template": tpl})
	return nil
}

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) error {
	if h.templates == nil {
		return errors.Unavailable("templates")
	}

	list, err := h.templates.List(r.Context())
	if err != nil {
		return err
	}
	httpkit.WriteJSON(w, http.StatusOK, map[string]any{"templates": list})
	return nil
}

func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) error {
	tpl, err := h.template(r, chi.URLParam(r, "templateId"))
	if err != nil {
		return err
	}
	httpkit.WriteJSON(w, http.StatusOK, map[string]any{"template": tpl})
	return nil
}

func (h *Handler) DeleteTemplate(w http.ResponseWriter, r *http.Request) error {
	if h.templates == nil {
		return errors.Unavailable("templates")
	}

	id := chi.URLParam(r, "templateId")
	if _, err := uuid.Parse(id); err != nil {
		return errors.ValidationField("templateId", "invalid template id")
	}
	if err := h.templates.Delete(r.Context(), id); err != nil {
		return err
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

// template loads a live template by id for rendering or display.
func (h *Handler) template(r *http.Request, id string) (*models.Template, error) {
	if h.templates == nil {
		return nil, errors.Unavailable("templates")
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.ValidationField("template_id", "invalid template id")
	}
	return h.templates.Get(r.Context(), id)
}
