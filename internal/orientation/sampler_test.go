package orientation

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestReading_Sample(t *testing.T) {
	beta, gamma := 12.5, -80.0
	nan := math.NaN()

	tests := []struct {
		name    string
		reading Reading
		wantOK  bool
	}{
		{name: "both angles present", reading: Reading{Beta: &beta, Gamma: &gamma, TimestampMs: 5}, wantOK: true},
		{name: "beta missing", reading: Reading{Gamma: &gamma}, wantOK: false},
		{name: "gamma missing", reading: Reading{Beta: &beta}, wantOK: false},
		{name: "both missing", reading: Reading{}, wantOK: false},
		{name: "beta NaN", reading: Reading{Beta: &nan, Gamma: &gamma}, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := tt.reading.Sample()
			if ok != tt.wantOK {
				t.Fatalf("Sample() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && (s.Beta != beta || s.Gamma != gamma || s.TimestampMs != 5) {
				t.Errorf("Sample() = %+v, want beta=%v gamma=%v ts=5", s, beta, gamma)
			}
		})
	}
}

func TestSampler_StartIsIdempotent(t *testing.T) {
	src := NewMockSource()
	s := NewSampler(src)

	var got int
	handler := func(Sample) { got++ }

	if err := s.Start(handler); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Start(handler); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}

	if n := src.TotalSubscriptions(); n != 1 {
		t.Fatalf("subscriptions = %d, want 1", n)
	}

	src.EmitAngles(0, 10, 100)
	if got != 1 {
		t.Errorf("handler calls = %d, want 1", got)
	}
}

func TestSampler_StopIsIdempotent(t *testing.T) {
	src := NewMockSource()
	s := NewSampler(src)

	// Stop before Start must not panic.
	s.Stop()

	var got int
	if err := s.Start(func(Sample) { got++ }); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	s.Stop()
	s.Stop()

	if s.Running() {
		t.Error("sampler should not be running after Stop")
	}
	if n := src.Subscribers(); n != 0 {
		t.Errorf("subscribers = %d, want 0", n)
	}

	src.EmitAngles(0, 10, 100)
	if got != 0 {
		t.Errorf("handler calls after Stop = %d, want 0", got)
	}
}

func TestSampler_DropsIncompleteReadings(t *testing.T) {
	src := NewMockSource()
	s := NewSampler(src)

	var samples []Sample
	if err := s.Start(func(sm Sample) { samples = append(samples, sm) }); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	gamma := 40.0
	src.Emit(Reading{Gamma: &gamma, TimestampMs: 1})
	src.Emit(Reading{TimestampMs: 2})
	src.EmitAngles(3, 4, 3)

	if len(samples) != 1 {
		t.Fatalf("delivered %d samples, want 1", len(samples))
	}
	if samples[0].TimestampMs != 3 {
		t.Errorf("delivered sample ts = %d, want 3", samples[0].TimestampMs)
	}
}

func TestSampler_StampsMissingTimestamp(t *testing.T) {
	src := NewMockSource()
	s := NewSampler(src)
	fixed := time.UnixMilli(1_700_000_000_000)
	s.now = func() time.Time { return fixed }

	var got Sample
	if err := s.Start(func(sm Sample) { got = sm }); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	src.EmitAngles(1, 2, 0)

	if got.TimestampMs != fixed.UnixMilli() {
		t.Errorf("TimestampMs = %d, want %d", got.TimestampMs, fixed.UnixMilli())
	}
}

func TestSampler_MixedTimestamps(t *testing.T) {
	tests := []struct {
		name   string
		emit   []int64 // reading timestamps, 0 = unstamped
		stepMs int64   // wall clock advance between readings
		want   []int64
	}{
		{
			name:   "source clock first",
			emit:   []int64{5000, 0, 0, 6000, 0},
			stepMs: 300,
			want:   []int64{5000, 5300, 5600, 6000, 6300},
		},
		{
			name:   "wall clock first",
			emit:   []int64{0, 5000, 0},
			stepMs: 300,
			want:   []int64{1_700_000_000_000, 1_700_000_000_300, 1_700_000_000_600},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewMockSource()
			s := NewSampler(src)
			wall := time.UnixMilli(1_700_000_000_000)
			s.now = func() time.Time { return wall }

			var got []int64
			if err := s.Start(func(sm Sample) { got = append(got, sm.TimestampMs) }); err != nil {
				t.Fatalf("Start() error = %v", err)
			}
			defer s.Stop()

			for _, ts := range tt.emit {
				src.EmitAngles(1, 2, ts)
				wall = wall.Add(time.Duration(tt.stepMs) * time.Millisecond)
			}

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("timestamps mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSampler_ClockIsPerSubscription(t *testing.T) {
	src := NewMockSource()
	s := NewSampler(src)
	wall := time.UnixMilli(1_700_000_000_000)
	s.now = func() time.Time { return wall }

	var got []int64
	record := func(sm Sample) { got = append(got, sm.TimestampMs) }

	if err := s.Start(record); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	src.EmitAngles(1, 2, 0)
	s.Stop()

	if err := s.Start(record); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()
	src.EmitAngles(1, 2, 42)

	if diff := cmp.Diff([]int64{1_700_000_000_000, 42}, got); diff != "" {
		t.Errorf("timestamps mismatch (-want +got):\n%s", diff)
	}
}

func TestSampler_Unsupported(t *testing.T) {
	src := NewMockSource()
	src.SetSupported(false)
	s := NewSampler(src)

	if s.IsSupported() {
		t.Fatal("IsSupported() = true, want false")
	}

	err := s.Start(func(Sample) {})
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("Start() error = %v, want ErrUnsupported", err)
	}
	if src.TotalSubscriptions() != 0 {
		t.Error("unsupported source should not be subscribed")
	}

	nilSampler := NewSampler(nil)
	if nilSampler.IsSupported() {
		t.Error("sampler without source should not be supported")
	}
}

func TestSampler_RequestPermission(t *testing.T) {
	t.Run("starts unknown", func(t *testing.T) {
		s := NewSampler(NewMockSource())
		if p := s.Permission(); p != PermissionUnknown {
			t.Errorf("Permission() = %v, want unknown", p)
		}
	})

	t.Run("granted", func(t *testing.T) {
		src := NewMockSource()
		src.RequireConsent(true, nil)
		s := NewSampler(src)

		p, err := s.RequestPermission(context.Background())
		if err != nil {
			t.Fatalf("RequestPermission() error = %v", err)
		}
		if p != PermissionGranted || s.Permission() != PermissionGranted {
			t.Errorf("permission = %v, want granted", p)
		}
	})

	t.Run("denied", func(t *testing.T) {
		src := NewMockSource()
		src.RequireConsent(false, nil)
		s := NewSampler(src)

		p, err := s.RequestPermission(context.Background())
		if err != nil {
			t.Fatalf("RequestPermission() error = %v", err)
		}
		if p != PermissionDenied {
			t.Errorf("permission = %v, want denied", p)
		}
		if b := p.Bool(); b == nil || *b {
			t.Errorf("Bool() = %v, want false", b)
		}
	})

	t.Run("error counts as denied", func(t *testing.T) {
		src := NewMockSource()
		src.RequireConsent(true, errors.New("prompt dismissed"))
		s := NewSampler(src)

		p, err := s.RequestPermission(context.Background())
		if err == nil {
			t.Fatal("expected error")
		}
		if p != PermissionDenied || s.Permission() != PermissionDenied {
			t.Errorf("permission = %v, want denied", p)
		}
	})

	t.Run("unsupported is denied", func(t *testing.T) {
		src := NewMockSource()
		src.SetSupported(false)
		s := NewSampler(src)

		p, err := s.RequestPermission(context.Background())
		if err != nil {
			t.Fatalf("RequestPermission() error = %v", err)
		}
		if p != PermissionDenied {
			t.Errorf("permission = %v, want denied", p)
		}
	})

	t.Run("concurrent request is rejected", func(t *testing.T) {
		src := NewMockSource()
		src.RequireConsent(true, nil)
		release := src.HoldPermission()
		s := NewSampler(src)

		first := make(chan Permission, 1)
		go func() {
			p, _ := s.RequestPermission(context.Background())
			first <- p
		}()

		// Wait for the first request to register as pending.
		deadline := time.Now().Add(2 * time.Second)
		for {
			s.mu.Lock()
			pending := s.requesting
			s.mu.Unlock()
			if pending {
				break
			}
			if time.Now().After(deadline) {
				t.Fatal("first request never became pending")
			}
			time.Sleep(time.Millisecond)
		}

		if _, err := s.RequestPermission(context.Background()); !errors.Is(err, ErrPermissionPending) {
			t.Errorf("second RequestPermission() error = %v, want ErrPermissionPending", err)
		}

		release()
		if p := <-first; p != PermissionGranted {
			t.Errorf("first request = %v, want granted", p)
		}
	})
}

func TestPermission_String(t *testing.T) {
	tests := map[Permission]string{
		PermissionUnknown: "unknown",
		PermissionGranted: "granted",
		PermissionDenied:  "denied",
	}
	for p, want := range tests {
		if got := p.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", p, got, want)
		}
	}
	if PermissionUnknown.Bool() != nil {
		t.Error("unknown permission should map to nil")
	}
}
