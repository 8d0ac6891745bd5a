package scheduler

import (
	"context"
	"testing"

	"cheerbot/internal/broadcast"
	logx "cheerbot/pkg/logx"
)

func TestParseHHMM(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		hour    int
		minute  int
		wantErr bool
	}{
		{raw: "18:00", hour: 18},
		{raw: "09:30", hour: 9, minute: 30},
		{raw: "23:59", hour: 23, minute: 59},
		{raw: "24:00", wantErr: true},
		{raw: "12:60", wantErr: true},
		{raw: "noon", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			h, m, err := ParseHHMM(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseHHMM(%q): expected error", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseHHMM(%q): %v", tt.raw, err)
			}
			if h != tt.hour || m != tt.minute {
				t.Fatalf("ParseHHMM(%q) = %d:%d", tt.raw, h, m)
			}
		})
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	t.Parallel()
	run := func(context.Context, string) (broadcast.Report, error) { return broadcast.Report{}, nil }

	if _, err := New(Config{Timezone: "Mars/Olympus"}, run, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
	if _, err := New(Config{Times: []string{"25:00"}}, run, logx.Nop()); err == nil {
		t.Fatal("expected error for invalid trigger time")
	}
}

func TestTriggerNowUsesRunPath(t *testing.T) {
	t.Parallel()
	var gotKind string
	run := func(_ context.Context, kind string) (broadcast.Report, error) {
		gotKind = kind
		return broadcast.Report{Attempted: 3, Delivered: 3}, nil
	}
	s, err := New(Config{Times: []string{"18:00"}, Timezone: "UTC"}, run, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rep, err := s.TriggerNow(context.Background())
	if err != nil {
		t.Fatalf("TriggerNow: %v", err)
	}
	if gotKind != "manual" {
		t.Fatalf("kind = %q, want manual", gotKind)
	}
	if rep.Attempted != 3 || rep.Delivered != 3 {
		t.Fatalf("report = %+v", rep)
	}
}

func TestStartStopIdempotent(t *testing.T) {
	t.Parallel()
	run := func(context.Context, string) (broadcast.Report, error) { return broadcast.Report{}, nil }
	s, err := New(Config{Times: []string{"06:00", "18:00"}, Timezone: "UTC"}, run, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(ctx); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	s.Stop(ctx)
	s.Stop(ctx)
}
