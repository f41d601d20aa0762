package minuteclock

import (
	"testing"
	"time"
)

func at(h, m, s, ms int) time.Time {
	return time.Date(2026, 10, 18, h, m, s, ms*int(time.Millisecond), time.UTC)
}

func TestMillisecondsUntilNextMinute(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		now  time.Time
		want int64
	}{
		{name: "mid minute", now: at(12, 0, 30, 500), want: 29500},
		{name: "exact boundary waits a full minute", now: at(12, 0, 0, 0), want: 60000},
		{name: "one ms after boundary", now: at(12, 0, 0, 1), want: 59999},
		{name: "last ms of minute", now: at(12, 0, 59, 999), want: 1},
		{name: "second 59", now: at(23, 59, 59, 0), want: 1000},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := MillisecondsUntilNextMinute(tt.now)
			if got != tt.want {
				t.Fatalf("MillisecondsUntilNextMinute(%s) = %d, want %d", tt.now.Format(time.RFC3339Nano), got, tt.want)
			}
			if d := UntilNextMinute(tt.now); d != time.Duration(tt.want)*time.Millisecond {
				t.Fatalf("UntilNextMinute = %v, want %dms", d, tt.want)
			}
		})
	}
}

func TestMillisecondsUntilNextMinuteRange(t *testing.T) {
	t.Parallel()
	base := at(7, 13, 0, 0)
	for ms := 0; ms < 60000; ms += 7 {
		now := base.Add(time.Duration(ms) * time.Millisecond)
		got := MillisecondsUntilNextMinute(now)
		if got <= 0 || got > 60000 {
			t.Fatalf("MillisecondsUntilNextMinute(%s) = %d, out of (0, 60000]", now.Format(time.RFC3339Nano), got)
		}
		want := int64((60-now.Second())*1000 - now.Nanosecond()/int(time.Millisecond))
		if got != want {
			t.Fatalf("MillisecondsUntilNextMinute(%s) = %d, want %d", now.Format(time.RFC3339Nano), got, want)
		}
	}
}

func TestMillisecondsUntilNextMinuteIgnoresSubMillisecond(t *testing.T) {
	t.Parallel()
	now := at(12, 0, 30, 500).Add(700 * time.Microsecond)
	if got := MillisecondsUntilNextMinute(now); got != 29500 {
		t.Fatalf("got %d, want 29500", got)
	}
	if got := NextBoundary(now); !got.Equal(at(12, 1, 0, 0)) {
		t.Fatalf("NextBoundary = %s, want 12:01:00", got.Format(time.RFC3339Nano))
	}
}

func TestNextBoundaryOnBoundary(t *testing.T) {
	t.Parallel()
	if got := NextBoundary(at(12, 0, 0, 0)); !got.Equal(at(12, 1, 0, 0)) {
		t.Fatalf("NextBoundary = %s, want 12:01:00", got.Format(time.RFC3339Nano))
	}
}

func TestSelfCorrectingNext(t *testing.T) {
	t.Parallel()
	due := at(12, 1, 0, 0)

	cases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"on time", due, at(12, 2, 0, 0)},
		{"late", at(12, 1, 0, 250), at(12, 2, 0, 0)},
		{"late sub-millisecond", at(12, 1, 0, 250).Add(359 * time.Microsecond), at(12, 2, 0, 0)},
		// an early fire must not tick the same boundary twice
		{"early", at(12, 0, 59, 998), at(12, 2, 0, 0)},
		// clock stepped far back: recompute from the live clock
		{"stepped back", at(11, 30, 10, 0), at(11, 31, 0, 0)},
	}
	for _, tc := range cases {
		if got := selfCorrectingNext(tc.now, due); !got.Equal(tc.want) {
			t.Fatalf("%s: next = %s, want %s", tc.name, got.Format(time.RFC3339Nano), tc.want.Format(time.RFC3339Nano))
		}
	}
}

func TestFixedPeriodNext(t *testing.T) {
	t.Parallel()
	anchor := at(12, 1, 0, 250)
	if got := fixedPeriodNext(at(12, 1, 0, 260), anchor); !got.Equal(at(12, 2, 0, 250)) {
		t.Fatalf("next = %s, want 12:02:00.250", got.Format(time.RFC3339Nano))
	}
	// overrun skips missed periods
	if got := fixedPeriodNext(at(12, 3, 10, 0), anchor); !got.Equal(at(12, 4, 0, 250)) {
		t.Fatalf("next after overrun = %s, want 12:04:00.250", got.Format(time.RFC3339Nano))
	}
}

func TestParseDriftPolicy(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want DriftPolicy
	}{
		{"", PolicySelfCorrecting},
		{"self_correcting", PolicySelfCorrecting},
		{"Self-Correcting", PolicySelfCorrecting},
		{"fixed_period", PolicyFixedPeriod},
		{"fixed", PolicyFixedPeriod},
	}
	for _, tt := range tests {
		got, err := ParseDriftPolicy(tt.raw)
		if err != nil {
			t.Fatalf("ParseDriftPolicy(%q) error: %v", tt.raw, err)
		}
		if got != tt.want {
			t.Fatalf("ParseDriftPolicy(%q) = %v, want %v", tt.raw, got, tt.want)
		}
		if got.String() == "" {
			t.Fatal("empty String()")
		}
	}
	if _, err := ParseDriftPolicy("hourly"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}
