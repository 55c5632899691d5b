// Package compiler turns a design into the argument list of a single ffmpeg
// invocation. The canvas is input 0 and every resolved media item is layered
// on top of it through one filter graph.
//
// Compile is pure: it never touches the filesystem or the network, so every
// source must already be a local path.
package compiler

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"montage/internal/pkg/errors"
	"montage/internal/timeline"
)

const (
	OutputFilename = "output.mp4"

	audioCodec   = "aac"
	audioBitrate = "192k"
	pixelFormat  = "yuv420p"
)

// Input is everything Compile needs. Sources and Fonts are keyed by item ID
// as returned by timeline.Design.Items.
type Input struct {
	Design        timeline.Design
	Sources       map[string]string
	Fonts         map[string]string
	HardwareAccel bool
	WorkDir       string
}

// InputRef describes one -i argument after the canvas.
type InputRef struct {
	Index  int
	ItemID string
	Kind   timeline.Kind
	Path   string
}

// BuiltCommand is the compiled invocation. Args excludes the binary name.
type BuiltCommand struct {
	Args        []string
	OutputPath  string
	DurationMs  int64
	FilterGraph string
	Inputs      []InputRef
}

type mediaInput struct {
	InputRef
	item timeline.TrackItem
}

// Compile builds the engine command for in.
func Compile(in Input) (BuiltCommand, error) {
	items := in.Design.Items()
	durationMs := timeline.DurationMs(items)
	canvas := in.Design.Canvas()
	fps := in.Design.FrameRate()
	seconds := fmtSeconds(durationMs)

	var media []mediaInput
	visuals := 0
	for _, it := range items {
		if it.Kind == timeline.KindText {
			continue
		}
		path := in.Sources[it.ID]
		if path == "" {
			continue
		}
		media = append(media, mediaInput{
			InputRef: InputRef{Index: len(media) + 1, ItemID: it.ID, Kind: it.Kind, Path: path},
			item:     it,
		})
		if it.Kind.Visual() {
			visuals++
		}
	}
	if visuals == 0 {
		return BuiltCommand{}, errors.Compile("no visual tracks")
	}

	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	if in.HardwareAccel {
		args = append(args, "-hwaccel", "cuda")
	}
	args = append(args,
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=black:s=%dx%d:r=%d:d=%s", canvas.Width, canvas.Height, fps, seconds),
	)
	for _, m := range media {
		if m.Kind == timeline.KindImage {
			args = append(args, "-loop", "1", "-t", seconds)
		}
		args = append(args, "-i", m.Path)
	}

	g := &graph{}
	base := "0:v"
	for _, m := range media {
		if !m.Kind.Visual() {
			continue
		}
		layer := fmt.Sprintf("v%d", m.Index)
		g.add(fmt.Sprintf("[%d:v]%s[%s]", m.Index, visualChain(m.item, canvas), layer))

		d := m.item.D()
		out := fmt.Sprintf("ov%d", m.Index)
		g.add(fmt.Sprintf("[%s][%s]overlay=x=%d:y=%d:enable='%s'[%s]",
			base, layer,
			timeline.PixelOffset(d.Left), timeline.PixelOffset(d.Top),
			between(m.item.StartMs(), m.item.EndMs(durationMs)),
			out,
		))
		base = out
	}

	for i, it := range items {
		if it.Kind != timeline.KindText {
			continue
		}
		font := in.Fonts[it.ID]
		if font == "" || it.D().Text == "" {
			continue
		}
		out := fmt.Sprintf("t%d", i)
		g.add(fmt.Sprintf("[%s]%s[%s]", base, drawText(it, font, durationMs), out))
		base = out
	}

	var audio []string
	for _, m := range media {
		if m.Kind != timeline.KindAudio {
			continue
		}
		label := fmt.Sprintf("a%d", m.Index)
		g.add(fmt.Sprintf("[%d:a]%s[%s]", m.Index, audioChain(m.item, durationMs), label))
		audio = append(audio, label)
	}
	switch len(audio) {
	case 0:
	case 1:
		g.add(fmt.Sprintf("[%s]anull[aout]", audio[0]))
	default:
		var ins strings.Builder
		for _, l := range audio {
			ins.WriteString("[" + l + "]")
		}
		g.add(fmt.Sprintf("%samix=inputs=%d:normalize=0[aout]", ins.String(), len(audio)))
	}

	filter := g.String()
	args = append(args, "-filter_complex", filter, "-map", "["+base+"]")
	if in.HardwareAccel {
		args = append(args, "-c:v", "h264_nvenc", "-preset", "p4")
	} else {
		args = append(args, "-c:v", "libx264", "-preset", "veryfast")
	}
	args = append(args, "-pix_fmt", pixelFormat, "-r", strconv.Itoa(fps))

	if len(audio) > 0 {
		args = append(args, "-map", "[aout]")
	} else {
		args = append(args, "-map", "0:a?")
	}
	args = append(args, "-c:a", audioCodec, "-b:a", audioBitrate)

	outputPath := filepath.Join(in.WorkDir, OutputFilename)
	args = append(args, "-progress", "pipe:1", outputPath)

	refs := make([]InputRef, len(media))
	for i, m := range media {
		refs[i] = m.InputRef
	}

	return BuiltCommand{
		Args:        args,
		OutputPath:  outputPath,
		DurationMs:  durationMs,
		FilterGraph: filter,
		Inputs:      refs,
	}, nil
}

type graph struct {
	parts []string
}

func (g *graph) add(p string) { g.parts = append(g.parts, p) }

func (g *graph) String() string { return strings.Join(g.parts, ";") }

func visualChain(it timeline.TrackItem, canvas timeline.Size) string {
	d := it.D()
	w, h := canvas.Width, canvas.Height
	if d.Width != nil && *d.Width > 0 {
		w = *d.Width
	}
	if d.Height != nil && *d.Height > 0 {
		h = *d.Height
	}
	scale := timeline.ScaleFactor(d.Transform)
	sw := max(int(float64(w)*scale), 1)
	sh := max(int(float64(h)*scale), 1)

	steps := []string{"format=rgba", fmt.Sprintf("scale=%d:%d", sw, sh)}
	if d.FlipX {
		steps = append(steps, "hflip")
	}
	if d.FlipY {
		steps = append(steps, "vflip")
	}
	if deg := timeline.Degrees(d.Rotate); math.Abs(deg) > 0.01 {
		rad := fmtFloat(deg * math.Pi / 180)
		steps = append(steps, fmt.Sprintf("rotate=%s:c=none:ow=rotw(%s):oh=roth(%s)", rad, rad, rad))
	}
	if b := timeline.BrightnessOffset(d.Brightness); math.Abs(b) > 0.001 {
		steps = append(steps, "eq=brightness="+fmtFloat(b))
	}
	if a := timeline.Alpha(d.Opacity); a < 0.999 {
		steps = append(steps, "colorchannelmixer=aa="+fmtFloat(a))
	}
	return strings.Join(steps, ",")
}

func audioChain(it timeline.TrackItem, durationMs int64) string {
	d := it.D()
	steps := []string{"volume=" + fmtFloat(timeline.Gain(d.Volume))}
	if from, ok := it.Trim.FromMs(); ok {
		steps = append(steps, "atrim=start="+fmtSeconds(from), "asetpts=PTS-STARTPTS")
	}
	if start := it.StartMs(); start > 0 {
		steps = append(steps, fmt.Sprintf("adelay=%d:all=1", start))
	}
	steps = append(steps, "apad", "atrim=end="+fmtSeconds(durationMs), "asetpts=PTS-STARTPTS")
	return strings.Join(steps, ",")
}

func drawText(it timeline.TrackItem, font string, durationMs int64) string {
	d := it.D()
	opts := []string{
		"fontfile=" + quoteValue(font),
		"text=" + quoteValue(textEscaper.Replace(d.Text)),
		"fontsize=" + strconv.Itoa(timeline.FontSize(d.FontSize)),
		"fontcolor=" + engineColor(d.Color, "white", timeline.Alpha(d.Opacity)),
		fmt.Sprintf("x=%d", timeline.PixelOffset(d.Left)),
		fmt.Sprintf("y=%d", timeline.PixelOffset(d.Top)),
	}
	if d.BorderWidth != nil && *d.BorderWidth > 0 {
		opts = append(opts,
			"borderw="+strconv.Itoa(*d.BorderWidth),
			"bordercolor="+engineColor(d.BorderColor, "black", 1),
		)
	}
	opts = append(opts, fmt.Sprintf("enable='%s'", between(it.StartMs(), it.EndMs(durationMs))))
	return "drawtext=" + strings.Join(opts, ":")
}

var (
	// drawtext expands %{...} sequences and honours backslashes in text.
	textEscaper   = strings.NewReplacer(`\`, `\\`, `%`, `\%`)
	optionEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`)
	graphEscaper  = strings.NewReplacer(`'`, `'\''`)
)

// quoteValue encodes s as a filter option value. The engine unescapes twice:
// once when splitting the graph into filters and once when splitting a filter
// into options. The option-level escapes are applied first, then the result
// is single-quoted for the graph level, with each quote written as '\''.
func quoteValue(s string) string {
	return "'" + graphEscaper.Replace(optionEscaper.Replace(s)) + "'"
}

// engineColor converts "#RRGGBB", "#RGB" or a named color to ffmpeg syntax
// with an optional @alpha suffix.
func engineColor(c, fallback string, alpha float64) string {
	c = strings.TrimSpace(c)
	if c == "" {
		c = fallback
	}
	if strings.HasPrefix(c, "#") {
		hex := c[1:]
		if len(hex) == 3 {
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		}
		if len(hex) == 6 && isHex(hex) {
			c = "0x" + strings.ToUpper(hex)
		} else {
			c = fallback
		}
	}
	if alpha < 0.999 {
		c += "@" + fmtFloat(alpha)
	}
	return c
}

func isHex(s string) bool {
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}

func between(startMs, endMs int64) string {
	return fmt.Sprintf("between(t,%.3f,%.3f)", float64(startMs)/1000, float64(endMs)/1000)
}

func fmtSeconds(ms int64) string {
	return fmtFloat(float64(ms) / 1000)
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
