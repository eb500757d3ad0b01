package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewPacer_Normalization(t *testing.T) {
	tests := []struct {
		name        string
		min, max    time.Duration
		wantMin     time.Duration
		wantMax     time.Duration
		wantEnabled bool
	}{
		{"disabled", 0, 0, 0, 0, false},
		{"negative min", -time.Second, 2 * time.Second, 0, 2 * time.Second, true},
		{"max below min", 3 * time.Second, time.Second, 3 * time.Second, 3 * time.Second, true},
		{"fixed", time.Second, time.Second, time.Second, time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPacer(tt.min, tt.max, zerolog.Nop())
			if p.minDelay != tt.wantMin || p.maxDelay != tt.wantMax {
				t.Errorf("delays = [%v, %v], want [%v, %v]", p.minDelay, p.maxDelay, tt.wantMin, tt.wantMax)
			}
			if p.Enabled() != tt.wantEnabled {
				t.Errorf("Enabled() = %v, want %v", p.Enabled(), tt.wantEnabled)
			}
		})
	}
}

func TestPacer_NilIsDisabled(t *testing.T) {
	var p *Pacer
	if p.Enabled() {
		t.Error("nil pacer should be disabled")
	}
	if err := p.Wait(context.Background()); err != nil {
		t.Errorf("Wait() on nil pacer = %v, want nil", err)
	}
}

func TestPacer_FirstRequestNotDelayed(t *testing.T) {
	p := NewPacer(time.Second, time.Second, zerolog.Nop())

	start := time.Now()
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if d := time.Since(start); d > 100*time.Millisecond {
		t.Errorf("first Wait() took %v, want immediate", d)
	}
}

func TestPacer_DelaysSuccessiveRequests(t *testing.T) {
	p := NewPacer(50*time.Millisecond, 50*time.Millisecond, zerolog.Nop())
	ctx := context.Background()

	_ = p.Wait(ctx)
	start := time.Now()
	if err := p.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if d := time.Since(start); d < 40*time.Millisecond {
		t.Errorf("second Wait() took %v, want about 50ms", d)
	}
}

func TestPacer_RandomDelayWithinBounds(t *testing.T) {
	p := NewPacer(20*time.Millisecond, 60*time.Millisecond, zerolog.Nop())
	p.rnd = func() float64 { return 0.5 }
	ctx := context.Background()

	_ = p.Wait(ctx)
	start := time.Now()
	_ = p.Wait(ctx)
	d := time.Since(start)

	if d < 30*time.Millisecond || d > 500*time.Millisecond {
		t.Errorf("Wait() took %v, want about 40ms", d)
	}
}

func TestPacer_ContextCancelled(t *testing.T) {
	p := NewPacer(time.Minute, time.Minute, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	_ = p.Wait(ctx)
	cancel()

	err := p.Wait(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
}
