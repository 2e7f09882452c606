package metrics

import (
	"testing"
	"time"
)

func TestRateWindow(t *testing.T) {
	t.Run("fewer than two samples is zero", func(t *testing.T) {
		w := NewRateWindow()
		if got := w.Rate(); got != 0 {
			t.Errorf("Rate() = %v, want 0", got)
		}
		w.Mark(time.Unix(0, 0))
		if got := w.Rate(); got != 0 {
			t.Errorf("Rate() = %v, want 0", got)
		}
	})

	t.Run("rate over a span", func(t *testing.T) {
		w := NewRateWindow()
		base := time.Unix(100, 0)
		for i := 0; i < 10; i++ {
			w.Mark(base.Add(time.Duration(i) * time.Second))
		}
		// 10 samples spanning 9 seconds => 10/9 Hz
		got := w.Rate()
		want := 10.0 / 9.0
		if diff := got - want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("Rate() = %v, want %v", got, want)
		}
	})

	t.Run("caps at 30 samples", func(t *testing.T) {
		w := NewRateWindow()
		base := time.Unix(0, 0)
		for i := 0; i < 40; i++ {
			w.Mark(base.Add(time.Duration(i) * time.Second))
		}
		if len(w.ts) != 30 {
			t.Fatalf("len(ts) = %d, want 30", len(w.ts))
		}
		if !w.ts[0].Equal(base.Add(10 * time.Second)) {
			t.Errorf("oldest retained sample = %v, want t+10s", w.ts[0])
		}
	})
}

func TestTickWindow(t *testing.T) {
	w := NewTickWindow(10)

	if got := w.SpeedHz(); got != 0 {
		t.Errorf("SpeedHz() on empty window = %v, want 0", got)
	}
	if got := w.AverageDuration(); got != 0 {
		t.Errorf("AverageDuration() on empty window = %v, want 0", got)
	}

	base := time.Unix(1000, 0)
	w.Record(base, 100*time.Millisecond)
	w.Record(base.Add(time.Second), 200*time.Millisecond)
	w.Record(base.Add(2*time.Second), 300*time.Millisecond)

	if got := w.AverageDuration(); got != 200*time.Millisecond {
		t.Errorf("AverageDuration() = %v, want 200ms", got)
	}

	got := w.SpeedHz()
	want := 3.0 / 2.0
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("SpeedHz() = %v, want %v", got, want)
	}
}

func TestTickWindowCapsSamples(t *testing.T) {
	w := NewTickWindow(10)
	base := time.Unix(0, 0)
	for i := 0; i < 25; i++ {
		w.Record(base.Add(time.Duration(i)*time.Second), time.Duration(i)*time.Millisecond)
	}
	if len(w.durations) != 10 {
		t.Fatalf("len(durations) = %d, want 10", len(w.durations))
	}
}
