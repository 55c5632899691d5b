package renderer

import (
	"strconv"
	"strings"
)

// Event is one progress observation from the engine.
type Event struct {
	ElapsedMs int64
	Percent   int
	Done      bool
}

// ProgressParser reads the key=value lines ffmpeg writes with -progress.
//
// ffmpeg reports elapsed time three ways. out_time_us is microseconds and
// out_time is HH:MM:SS.micro. out_time_ms is microseconds too on most builds
// despite its name, so it is only trusted when it fits the expected total,
// and ignored once out_time_us has been seen.
type ProgressParser struct {
	totalMs   int64
	sawMicros bool
	lastMs    int64
}

func NewProgressParser(totalMs int64) *ProgressParser {
	return &ProgressParser{totalMs: totalMs}
}

// Feed parses one line. It returns false for lines that carry no progress.
func (p *ProgressParser) Feed(line string) (Event, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return Event{}, false
	}
	value = strings.TrimSpace(value)

	switch key {
	case "out_time_us":
		us, ok := parseNonNegative(value)
		if !ok {
			return Event{}, false
		}
		p.sawMicros = true
		return p.observe(us / 1000), true

	case "out_time_ms":
		if p.sawMicros {
			return Event{}, false
		}
		raw, ok := parseNonNegative(value)
		if !ok {
			return Event{}, false
		}
		if p.totalMs > 0 && float64(raw) > 1.5*float64(p.totalMs) {
			raw /= 1000
		}
		return p.observe(raw), true

	case "out_time":
		ms, ok := parseClock(value)
		if !ok {
			return Event{}, false
		}
		return p.observe(ms), true

	case "progress":
		if value == "end" {
			ev := p.observe(p.lastMs)
			ev.Done = true
			return ev, true
		}
	}
	return Event{}, false
}

func (p *ProgressParser) observe(ms int64) Event {
	p.lastMs = ms
	return Event{ElapsedMs: ms, Percent: Percent(ms, p.totalMs)}
}

// Percent is elapsed/total as a whole percentage clamped to [0,100].
func Percent(elapsedMs, totalMs int64) int {
	if totalMs <= 0 || elapsedMs <= 0 {
		return 0
	}
	pct := elapsedMs * 100 / totalMs
	if pct > 100 {
		return 100
	}
	return int(pct)
}

func parseNonNegative(s string) (int64, bool) {
	if s == "" || s == "N/A" {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// parseClock parses HH:MM:SS.ffffff into milliseconds.
func parseClock(s string) (int64, bool) {
	if s == "" || s == "N/A" || strings.HasPrefix(s, "-") {
		return 0, false
	}
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, false
	}
	h, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, false
	}
	m, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, false
	}
	sec, err := strconv.ParseFloat(parts[2], 64)
	if err != nil || sec < 0 {
		return 0, false
	}
	return (h*3600+m*60)*1000 + int64(sec*1000), true
}
