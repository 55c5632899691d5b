package processor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"montage/internal/assets"
	"montage/internal/pkg/errors"
	"montage/internal/timeline"
)

const (
	mediaDir = "media"
	fontsDir = "fonts"
)

// Materialized maps item IDs to local files.
type Materialized struct {
	Sources map[string]string
	Fonts   map[string]string
}

type InputHandler struct {
	resolver *assets.Resolver
}

func NewInputHandler(resolver *assets.Resolver) *InputHandler {
	return &InputHandler{resolver: resolver}
}

// Materialize downloads every item source and text font into workDir,
// sequentially and in item order. A URL referenced twice is fetched once.
func (ih *InputHandler) Materialize(ctx context.Context, workDir string, items []timeline.TrackItem) (Materialized, error) {
	out := Materialized{
		Sources: make(map[string]string),
		Fonts:   make(map[string]string),
	}
	fetched := make(map[string]string)

	fetch := func(itemID, src, sub string) (string, error) {
		if p, ok := fetched[src]; ok {
			return p, nil
		}
		p, err := ih.resolver.Fetch(ctx, src, filepath.Join(workDir, sub))
		if err != nil {
			return "", errors.Wrap(err, "processor.inputs", fmt.Sprintf("item %s", itemID))
		}
		fetched[src] = p
		return p, nil
	}

	for _, it := range items {
		d := it.D()
		if it.Kind == timeline.KindText {
			src := strings.TrimSpace(d.FontURL)
			if src == "" {
				continue
			}
			p, err := fetch(it.ID, src, fontsDir)
			if err != nil {
				return Materialized{}, err
			}
			out.Fonts[it.ID] = p
			continue
		}

		src := strings.TrimSpace(d.Src)
		if src == "" {
			continue
		}
		p, err := fetch(it.ID, src, mediaDir)
		if err != nil {
			return Materialized{}, err
		}
		out.Sources[it.ID] = p
	}

	return out, nil
}
