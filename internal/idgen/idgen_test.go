package idgen

import (
	"context"
	"testing"
	"time"
)

var base = time.Date(2024, 1, 2, 3, 4, 5, 600, time.UTC)

func TestGenerator_New(t *testing.T) {
	g := New(WithClock(NewFakeClock(base)), WithLocation(time.UTC))

	if got := g.New(); got != "20240102030405" {
		t.Errorf("New() = %q, want %q", got, "20240102030405")
	}
	// Same second, same identifier.
	if got := g.New(); got != "20240102030405" {
		t.Errorf("second New() = %q", got)
	}
}

func TestGenerator_NewUsesLocation(t *testing.T) {
	loc := time.FixedZone("plus2", 2*60*60)
	g := New(WithClock(NewFakeClock(base)), WithLocation(loc))

	if got := g.New(); got != "20240102050405" {
		t.Errorf("New() = %q, want %q", got, "20240102050405")
	}
}

func TestGenerator_NewPanicsOnZeroClock(t *testing.T) {
	g := New(WithClock(NewFakeClock(time.Time{})))

	defer func() {
		if recover() == nil {
			t.Error("expected panic for zero clock")
		}
	}()
	_ = g.New()
}

func TestGenerator_NextSecond(t *testing.T) {
	clock := NewFakeClock(base)
	g := New(WithClock(clock), WithLocation(time.UTC))

	id, err := g.NextSecond(context.Background(), "20240102030405")
	if err != nil {
		t.Fatalf("NextSecond: %v", err)
	}
	if id != "20240102030406" {
		t.Errorf("NextSecond() = %q, want %q", id, "20240102030406")
	}
	if got := clock.Now(); !got.Equal(base.Truncate(time.Second).Add(time.Second)) {
		t.Errorf("clock = %v, want next whole second", got)
	}
}

func TestGenerator_NextSecondCancelled(t *testing.T) {
	g := New(WithClock(NewFakeClock(base)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := g.NextSecond(ctx, ""); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestGenerator_Candidates(t *testing.T) {
	ctx := context.Background()

	t.Run("suffix", func(t *testing.T) {
		g := New(WithClock(NewFakeClock(base)), WithLocation(time.UTC))
		next := g.Candidates(PolicySuffix)

		want := []string{"20240102030405", "20240102030405-1", "20240102030405-2"}
		for i, w := range want {
			got, err := next(ctx)
			if err != nil {
				t.Fatalf("candidate %d: %v", i, err)
			}
			if got != w {
				t.Errorf("candidate %d = %q, want %q", i, got, w)
			}
		}
	})

	t.Run("retry", func(t *testing.T) {
		g := New(WithClock(NewFakeClock(base)), WithLocation(time.UTC))
		next := g.Candidates(PolicyRetry)

		want := []string{"20240102030405", "20240102030406", "20240102030407"}
		for i, w := range want {
			got, err := next(ctx)
			if err != nil {
				t.Fatalf("candidate %d: %v", i, err)
			}
			if got != w {
				t.Errorf("candidate %d = %q, want %q", i, got, w)
			}
		}
	})
}

func TestValid(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"20240102030405", true},
		{"20240102030405-1", true},
		{"", false},
		{"a_b", false},
		{"a/b", false},
		{`a\b`, false},
		{"..", false},
	}
	for _, tt := range tests {
		if got := Valid(tt.id); got != tt.want {
			t.Errorf("Valid(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestSystemClock_Sleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (SystemClock{}).Sleep(ctx, time.Hour); err == nil {
		t.Error("Sleep should return when context is cancelled")
	}
	if err := (SystemClock{}).Sleep(context.Background(), time.Millisecond); err != nil {
		t.Errorf("Sleep: %v", err)
	}
}
