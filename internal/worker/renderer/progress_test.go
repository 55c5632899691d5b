package renderer

import "testing"

func TestProgressParser(t *testing.T) {
	tests := []struct {
		name    string
		totalMs int64
		lines   []string
		want    []Event
	}{
		{
			name:    "microseconds",
			totalMs: 10000,
			lines:   []string{"frame=10", "out_time_us=2500000", "speed=1.2x"},
			want:    []Event{{ElapsedMs: 2500, Percent: 25}},
		},
		{
			name:    "out_time_ms in microseconds is scaled down",
			totalMs: 10000,
			lines:   []string{"out_time_ms=5000000"},
			want:    []Event{{ElapsedMs: 5000, Percent: 50}},
		},
		{
			name:    "out_time_ms in milliseconds is kept",
			totalMs: 10000,
			lines:   []string{"out_time_ms=7500"},
			want:    []Event{{ElapsedMs: 7500, Percent: 75}},
		},
		{
			name:    "out_time_ms ignored after out_time_us",
			totalMs: 10000,
			lines:   []string{"out_time_us=1000000", "out_time_ms=9000"},
			want:    []Event{{ElapsedMs: 1000, Percent: 10}},
		},
		{
			name:    "clock format",
			totalMs: 120000,
			lines:   []string{"out_time=00:01:00.500000"},
			want:    []Event{{ElapsedMs: 60500, Percent: 50}},
		},
		{
			name:    "unknown and negative values skipped",
			totalMs: 10000,
			lines:   []string{"out_time_us=N/A", "out_time=-00:00:00.023220", "out_time_ms=-23220", "garbage", ""},
			want:    nil,
		},
		{
			name:    "overshoot clamps",
			totalMs: 1000,
			lines:   []string{"out_time_us=3000000"},
			want:    []Event{{ElapsedMs: 3000, Percent: 100}},
		},
		{
			name:    "end event carries last value",
			totalMs: 10000,
			lines:   []string{"out_time_us=9900000", "progress=continue", "progress=end"},
			want:    []Event{{ElapsedMs: 9900, Percent: 99}, {ElapsedMs: 9900, Percent: 99, Done: true}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProgressParser(tt.totalMs)
			var got []Event
			for _, line := range tt.lines {
				if ev, ok := p.Feed(line); ok {
					got = append(got, ev)
				}
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d events, got %+v", len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("event %d: got %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		elapsed, total int64
		want           int
	}{
		{0, 1000, 0},
		{500, 1000, 50},
		{999, 1000, 99},
		{2000, 1000, 100},
		{500, 0, 0},
		{-5, 1000, 0},
	}
	for _, tt := range tests {
		if got := Percent(tt.elapsed, tt.total); got != tt.want {
			t.Errorf("Percent(%d, %d) = %d, want %d", tt.elapsed, tt.total, got, tt.want)
		}
	}
}

func TestSampler(t *testing.T) {
	s := NewSampler(10)
	var logged []int
	for _, p := range []int{0, 3, 9, 10, 15, 35, 34, 100, 100} {
		if s.ShouldLog(p) {
			logged = append(logged, p)
		}
	}
	want := []int{0, 10, 35, 100}
	if len(logged) != len(want) {
		t.Fatalf("expected %v, got %v", want, logged)
	}
	for i := range want {
		if logged[i] != want[i] {
			t.Errorf("expected %v, got %v", want, logged)
		}
	}
}
