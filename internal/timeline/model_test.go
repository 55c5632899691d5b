package timeline

import (
	"encoding/json"
	"testing"
)

func ms(v float64) *float64 { return &v }

func TestItemsOrderedListWins(t *testing.T) {
	d := Design{
		TrackItems: []TrackItem{{Kind: KindImage}, {ID: "b", Kind: KindAudio}},
		TrackItemsMap: map[string]TrackItem{
			"z": {Kind: KindVideo},
		},
	}

	items := d.Items()
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].ID != "item-0" || items[1].ID != "b" {
		t.Errorf("unexpected ids: %q %q", items[0].ID, items[1].ID)
	}
	if d.TrackItems[0].ID != "" {
		t.Error("Items must not modify the design")
	}
}

func TestItemsMapOrderIsDeterministic(t *testing.T) {
	d := Design{
		TrackItemsMap: map[string]TrackItem{
			"c": {Kind: KindVideo},
			"a": {Kind: KindImage},
			"b": {Kind: KindAudio},
			"d": {ID: "custom", Kind: KindText},
		},
		TrackItemIDs: []string{"c", "missing", "c"},
	}

	want := []string{"c", "a", "b", "custom"}
	for round := 0; round < 5; round++ {
		items := d.Items()
		if len(items) != len(want) {
			t.Fatalf("expected %d items, got %d", len(want), len(items))
		}
		for i, id := range want {
			if items[i].ID != id {
				t.Fatalf("round %d position %d: expected %s, got %s", round, i, id, items[i].ID)
			}
		}
	}
}

func TestItemsMakesIDsUnique(t *testing.T) {
	d := Design{TrackItems: []TrackItem{
		{ID: "clip", Kind: KindImage},
		{ID: "clip", Kind: KindImage},
		{ID: "clip#1", Kind: KindVideo},
		{Kind: KindAudio},
		{ID: "clip", Kind: KindImage},
	}}

	var got []string
	for _, it := range d.Items() {
		got = append(got, it.ID)
	}
	want := []string{"clip", "clip#2", "clip#1", "item-3", "clip#4"}
	if len(got) != len(want) {
		t.Fatalf("expected %d items, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	if d.TrackItems[1].ID != "clip" {
		t.Error("Items must not modify the design")
	}
}

func TestDurationMs(t *testing.T) {
	tests := []struct {
		name  string
		items []TrackItem
		want  int64
	}{
		{"empty defaults", nil, 10000},
		{"no windows defaults", []TrackItem{{Kind: KindImage}}, 10000},
		{"trim end", []TrackItem{{Trim: Window{To: ms(4000)}}}, 4000},
		{"display end wins when larger", []TrackItem{{Trim: Window{To: ms(4000)}, Display: Window{To: ms(6500)}}}, 6500},
		{"max across items", []TrackItem{{Display: Window{To: ms(2000)}}, {Trim: Window{To: ms(12000)}}}, 12000},
		{"from alone does not count", []TrackItem{{Display: Window{From: ms(3000)}}}, 10000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DurationMs(tt.items); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestItemStartEnd(t *testing.T) {
	it := TrackItem{Trim: Window{From: ms(500), To: ms(1500)}}
	if it.StartMs() != 500 || it.EndMs(9000) != 1500 {
		t.Errorf("trim fallback: got start=%d end=%d", it.StartMs(), it.EndMs(9000))
	}

	it.Display = Window{From: ms(2000), To: ms(4000)}
	if it.StartMs() != 2000 || it.EndMs(9000) != 4000 {
		t.Errorf("display wins: got start=%d end=%d", it.StartMs(), it.EndMs(9000))
	}

	if got := (TrackItem{}).EndMs(9000); got != 9000 {
		t.Errorf("expected duration default, got %d", got)
	}
}

func TestCanvasAndFrameRateDefaults(t *testing.T) {
	var d Design
	if c := d.Canvas(); c.Width != 1080 || c.Height != 1920 {
		t.Errorf("unexpected default canvas %+v", c)
	}
	if d.FrameRate() != 30 {
		t.Errorf("unexpected default fps %d", d.FrameRate())
	}

	fps := 24
	d = Design{Size: &Size{Width: 1920}, FPS: &fps}
	if c := d.Canvas(); c.Width != 1920 || c.Height != 1920 {
		t.Errorf("partial size should keep default height, got %+v", c)
	}
	if d.FrameRate() != 24 {
		t.Errorf("expected 24 fps, got %d", d.FrameRate())
	}
}

func TestDecodeDesign(t *testing.T) {
	raw := `{
		"trackItems": [
			{"id":"bg","type":"IMAGE","details":{"src":"https://cdn/x.png","left":"50px","top":100,"opacity":50},"trim":{},"display":{"from":0,"to":3000}}
		],
		"size": {"width": 720, "height": 1280},
		"fps": 25
	}`

	var d Design
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		t.Fatalf("decode: %v", err)
	}
	it := d.Items()[0]
	if it.Kind != KindImage {
		t.Errorf("expected kind normalized to image, got %q", it.Kind)
	}
	if it.D().Left != "50px" || it.D().Top != "100" {
		t.Errorf("unexpected offsets left=%q top=%q", it.D().Left, it.D().Top)
	}
	if end, ok := it.Display.ToMs(); !ok || end != 3000 {
		t.Errorf("expected display end 3000, got %d", end)
	}
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	var it TrackItem
	if err := json.Unmarshal([]byte(`{"type":"shape"}`), &it); err == nil {
		t.Error("expected unknown kind to be rejected")
	}
}
