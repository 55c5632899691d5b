package timeline

import (
	"strings"

	"montage/internal/pkg/errors"
)

// Options are per-request overrides merged into a design before compiling.
type Options struct {
	FPS    *int   `json:"fps,omitempty"`
	Size   *Size  `json:"size,omitempty"`
	Format string `json:"format,omitempty"`
}

// Envelope is the submit document. Exactly one of Design or TemplateID is set.
type Envelope struct {
	Design     *Design  `json:"design,omitempty"`
	TemplateID string   `json:"template_id,omitempty"`
	Options    *Options `json:"options,omitempty"`
}

func (e Envelope) Validate() error {
	hasDesign := e.Design != nil
	hasTemplate := strings.TrimSpace(e.TemplateID) != ""
	switch {
	case hasDesign && hasTemplate:
		return errors.Validation("design and template_id are mutually exclusive")
	case !hasDesign && !hasTemplate:
		return errors.ValidationField("design", "design or template_id is required")
	}
	if e.Options != nil {
		return e.Options.Validate()
	}
	return nil
}

func (o Options) Validate() error {
	if f := strings.ToLower(strings.TrimSpace(o.Format)); f != "" && f != "mp4" {
		return errors.ValidationField("options.format", "unsupported output format "+o.Format)
	}
	if o.FPS != nil && *o.FPS <= 0 {
		return errors.ValidationField("options.fps", "fps must be positive")
	}
	if o.Size != nil && (o.Size.Width <= 0 || o.Size.Height <= 0) {
		return errors.ValidationField("options.size", "width and height must be positive")
	}
	return nil
}

// Apply returns a copy of d with the overrides merged in. d is not modified.
func (o *Options) Apply(d Design) Design {
	if o == nil {
		return d
	}
	if o.FPS != nil {
		fps := *o.FPS
		d.FPS = &fps
	}
	if o.Size != nil {
		size := *o.Size
		d.Size = &size
	}
	return d
}
