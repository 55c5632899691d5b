package handlers

import (
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	api "montage/internal/contracts/render/v1"
	"montage/internal/httpkit"
	"montage/internal/jobs"
	"montage/internal/pkg/errors"
	"montage/internal/timeline"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// PostRender accepts a design (or a template reference) and starts a job.
func (h *Handler) PostRender(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	var env timeline.Envelope
	if err := httpkit.DecodeJSONLoose(r, &env); err != nil {
		return errors.Validation("invalid json body: " + err.Error())
	}
	if err := env.Validate(); err != nil {
		return err
	}

	var design timeline.Design
	if env.Design != nil {
		design = *env.Design
	} else {
		tpl, err := h.template(r, strings.TrimSpace(env.TemplateID))
		if err != nil {
			return err
		}
		design = tpl.Design
	}
	design = env.Options.Apply(design)

	job, err := h.exec.Submit(ctx, design)
	if err != nil {
		return err
	}

	h.log.FromContext(ctx).Info("render submitted",
		"job_id", job.ID,
		"from_template", env.TemplateID != "",
	)
	httpkit.WriteJSON(w, http.StatusOK, api.SubmitResponse{JobID: job.ID})
	return nil
}

// ListRenders returns job snapshots, newest first.
func (h *Handler) ListRenders(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()

	filter := jobs.ListFilter{Limit: defaultListLimit}
	if s := strings.ToUpper(strings.TrimSpace(q.Get("status"))); s != "" {
		st := jobs.Status(s)
		if !st.Valid() {
			return errors.ValidationField("status", "unknown status "+s)
		}
		filter.Status = st
	}
	if limitStr := strings.TrimSpace(q.Get("limit")); limitStr != "" {
		if v, err := strconv.Atoi(limitStr); err == nil && v > 0 && v <= maxListLimit {
			filter.Limit = v
		}
	}

	list := h.jobs.List(filter)
	out := make([]api.Status, 0, len(list))
	for _, j := range list {
		out = append(out, h.status(j))
	}
	httpkit.WriteJSON(w, http.StatusOK, api.StatusList{Jobs: out})
	return nil
}

// GetRender reports a job's status and progress.
func (h *Handler) GetRender(w http.ResponseWriter, r *http.Request) error {
	job, err := h.lookupJob(r)
	if err != nil {
		return err
	}
	httpkit.WriteJSON(w, http.StatusOK, h.status(job))
	return nil
}

// GetRenderOutput streams the finished artifact.
func (h *Handler) GetRenderOutput(w http.ResponseWriter, r *http.Request) error {
	job, err := h.lookupJob(r)
	if err != nil {
		return err
	}
	if job.Status != jobs.StatusCompleted || job.OutputPath == "" {
		return errors.NotReady("render", job.ID).WithField("status", string(job.Status))
	}
	if _, err := os.Stat(job.OutputPath); err != nil {
		return errors.NotFound("render output", job.ID)
	}

	w.Header().Set("Content-Type", "video/mp4")
	http.ServeFile(w, r, job.OutputPath)
	return nil
}

func (h *Handler) lookupJob(r *http.Request) (jobs.Job, error) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		return jobs.Job{}, errors.ValidationField("id", "invalid job id")
	}
	job, ok := h.jobs.Get(id)
	if !ok {
		return jobs.Job{}, errors.NotFound("job", id)
	}
	return job, nil
}

func (h *Handler) status(j jobs.Job) api.Status {
	resp := api.Status{
		ID:        j.ID,
		Status:    string(j.Status),
		Progress:  j.Progress,
		ObjectKey: j.ObjectKey,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
	if j.Status == jobs.StatusCompleted && j.OutputPath != "" {
		u := h.baseURL + "/render/" + j.ID + "/output"
		resp.URL = &u
	}
	if j.Status == jobs.StatusFailed {
		msg := j.Error
		resp.Error = &msg
	}
	return resp
}
