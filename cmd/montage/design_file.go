package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"montage/internal/timeline"
)

// readEnvelope loads path as a submit envelope. A bare design (no "design"
// or "template_id" key) is wrapped into one.
func readEnvelope(path string) (timeline.Envelope, []byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return timeline.Envelope{}, nil, err
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return timeline.Envelope{}, nil, fmt.Errorf("%s: %w", path, err)
	}
	_, hasDesign := probe["design"]
	_, hasTemplate := probe["template_id"]
	if !hasDesign && !hasTemplate {
		raw = append(append([]byte(`{"design":`), raw...), '}')
	}

	var env timeline.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return timeline.Envelope{}, nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := env.Validate(); err != nil {
		return timeline.Envelope{}, nil, err
	}
	return env, raw, nil
}

// localInputs treats every src and fontUrl as an already local path.
func localInputs(d timeline.Design) (sources, fonts map[string]string) {
	sources = make(map[string]string)
	fonts = make(map[string]string)
	for _, it := range d.Items() {
		det := it.D()
		if it.Kind == timeline.KindText {
			if f := strings.TrimSpace(det.FontURL); f != "" {
				fonts[it.ID] = f
			}
			continue
		}
		if s := strings.TrimSpace(det.Src); s != "" {
			sources[it.ID] = s
		}
	}
	return sources, fonts
}
