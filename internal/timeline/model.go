// Package timeline holds the design document a client submits: the canvas,
// the frame rate and the track items laid out on it.
package timeline

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	DefaultWidth      = 1080
	DefaultHeight     = 1920
	DefaultFPS        = 30
	DefaultDurationMs = int64(10000)
)

// Kind is the closed set of track item types.
type Kind string

const (
	KindVideo Kind = "video"
	KindImage Kind = "image"
	KindAudio Kind = "audio"
	KindText  Kind = "text"
)

func (k *Kind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("track item type must be a string: %w", err)
	}
	switch v := Kind(strings.ToLower(strings.TrimSpace(s))); v {
	case KindVideo, KindImage, KindAudio, KindText:
		*k = v
		return nil
	default:
		return fmt.Errorf("unknown track item type %q", s)
	}
}

// Visual reports whether items of this kind are composited as video layers.
func (k Kind) Visual() bool {
	return k == KindVideo || k == KindImage
}

// FlexString accepts either a JSON string or a JSON number. Editors are not
// consistent about "120px" versus 120.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", string(b))
	}
	*f = FlexString(n.String())
	return nil
}

type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Window is a pair of optional millisecond offsets. Trim uses it for the
// source in/out point, Display for the placement on the timeline.
type Window struct {
	From *float64 `json:"from,omitempty"`
	To   *float64 `json:"to,omitempty"`
}

// FromMs returns the start offset, 0 when absent.
func (w Window) FromMs() (int64, bool) {
	return millis(w.From)
}

// ToMs returns the end offset, 0 when absent.
func (w Window) ToMs() (int64, bool) {
	return millis(w.To)
}

func millis(v *float64) (int64, bool) {
	if v == nil {
		return 0, false
	}
	if *v <= 0 {
		return 0, true
	}
	return int64(*v + 0.5), true
}

type Details struct {
	Src         string     `json:"src,omitempty"`
	Width       *int       `json:"width,omitempty"`
	Height      *int       `json:"height,omitempty"`
	Opacity     *float64   `json:"opacity,omitempty"`
	Volume      *float64   `json:"volume,omitempty"`
	Left        FlexString `json:"left,omitempty"`
	Top         FlexString `json:"top,omitempty"`
	Transform   FlexString `json:"transform,omitempty"`
	Brightness  *float64   `json:"brightness,omitempty"`
	FlipX       bool       `json:"flipX,omitempty"`
	FlipY       bool       `json:"flipY,omitempty"`
	Rotate      FlexString `json:"rotate,omitempty"`
	Text        string     `json:"text,omitempty"`
	FontFamily  string     `json:"fontFamily,omitempty"`
	FontURL     string     `json:"fontUrl,omitempty"`
	FontSize    *int       `json:"fontSize,omitempty"`
	Color       string     `json:"color,omitempty"`
	BorderColor string     `json:"borderColor,omitempty"`
	BorderWidth *int       `json:"borderWidth,omitempty"`
}

type TrackItem struct {
	ID      string   `json:"id,omitempty"`
	Kind    Kind     `json:"type"`
	Details *Details `json:"details,omitempty"`
	Trim    Window   `json:"trim"`
	Display Window   `json:"display"`
}

// D returns the item's details, never nil.
func (t TrackItem) D() Details {
	if t.Details == nil {
		return Details{}
	}
	return *t.Details
}

// StartMs is where the item begins on the shared timeline.
func (t TrackItem) StartMs() int64 {
	if v, ok := t.Display.FromMs(); ok {
		return v
	}
	v, _ := t.Trim.FromMs()
	return v
}

// EndMs is where the item stops on the shared timeline, falling back to the
// overall output duration.
func (t TrackItem) EndMs(durationMs int64) int64 {
	if v, ok := t.Display.ToMs(); ok {
		return v
	}
	if v, ok := t.Trim.ToMs(); ok {
		return v
	}
	return durationMs
}

type Design struct {
	ID            string               `json:"id,omitempty"`
	TrackItems    []TrackItem          `json:"trackItems,omitempty"`
	TrackItemsMap map[string]TrackItem `json:"trackItemsMap,omitempty"`
	TrackItemIDs  []string             `json:"trackItemIds,omitempty"`
	Size          *Size                `json:"size,omitempty"`
	FPS           *int                 `json:"fps,omitempty"`
}

// Items returns the design's track items in canonical order. The ordered
// list wins when non-empty. Otherwise the map is walked in trackItemIds
// order, then by key. Every returned item carries a non-empty ID that is
// unique within the result; a repeated ID gets a "#<index>" suffix.
func (d Design) Items() []TrackItem {
	if len(d.TrackItems) > 0 {
		out := make([]TrackItem, len(d.TrackItems))
		for i, it := range d.TrackItems {
			if it.ID == "" {
				it.ID = "item-" + strconv.Itoa(i)
			}
			out[i] = it
		}
		return uniqueIDs(out)
	}
	if len(d.TrackItemsMap) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(d.TrackItemsMap))
	keys := make([]string, 0, len(d.TrackItemsMap))
	for _, id := range d.TrackItemIDs {
		if _, ok := d.TrackItemsMap[id]; ok && !seen[id] {
			seen[id] = true
			keys = append(keys, id)
		}
	}
	rest := make([]string, 0, len(d.TrackItemsMap)-len(keys))
	for k := range d.TrackItemsMap {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	keys = append(keys, rest...)

	out := make([]TrackItem, 0, len(keys))
	for _, k := range keys {
		it := d.TrackItemsMap[k]
		if it.ID == "" {
			it.ID = k
		}
		out = append(out, it)
	}
	return uniqueIDs(out)
}

func uniqueIDs(items []TrackItem) []TrackItem {
	used := make(map[string]bool, len(items))
	for _, it := range items {
		used[it.ID] = false
	}
	for i := range items {
		id := items[i].ID
		if !used[id] {
			used[id] = true
			continue
		}
		for n := i; ; n++ {
			candidate := id + "#" + strconv.Itoa(n)
			if _, taken := used[candidate]; !taken {
				items[i].ID = candidate
				used[candidate] = true
				break
			}
		}
	}
	return items
}

// Canvas returns the output frame size.
func (d Design) Canvas() Size {
	c := Size{Width: DefaultWidth, Height: DefaultHeight}
	if d.Size != nil {
		if d.Size.Width > 0 {
			c.Width = d.Size.Width
		}
		if d.Size.Height > 0 {
			c.Height = d.Size.Height
		}
	}
	return c
}

// FrameRate returns the output frame rate.
func (d Design) FrameRate() int {
	if d.FPS != nil && *d.FPS > 0 {
		return *d.FPS
	}
	return DefaultFPS
}

// DurationMs is the furthest trim or display end across items, or the
// 10 second default when no item declares one.
func DurationMs(items []TrackItem) int64 {
	var maxEnd int64
	for _, it := range items {
		if v, ok := it.Trim.ToMs(); ok && v > maxEnd {
			maxEnd = v
		}
		if v, ok := it.Display.ToMs(); ok && v > maxEnd {
			maxEnd = v
		}
	}
	if maxEnd == 0 {
		return DefaultDurationMs
	}
	return maxEnd
}
