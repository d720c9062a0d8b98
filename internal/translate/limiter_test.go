package translate

import (
	"context"
	"testing"
	"time"
)

func TestPacerFirstCallImmediate(t *testing.T) {
	p := newPacer(1.0)
	start := time.Now()
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("first call should not wait, took %v", elapsed)
	}
}

func TestPacerSpacesCalls(t *testing.T) {
	p := newPacer(50.0) // 20ms interval
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := p.Wait(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// First call is free, the next two each wait one interval.
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("three calls at 50 rps finished in %v, expected >= 40ms", elapsed)
	}
}

func TestPacerCancelledContext(t *testing.T) {
	p := newPacer(0.5) // 2s interval
	ctx := context.Background()
	if err := p.Wait(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := p.Wait(cancelled); err == nil {
		t.Fatal("expected context error while waiting for the next slot")
	}
}

func TestPacerDisabled(t *testing.T) {
	var p *pacer
	if p = newPacer(0); p != nil {
		t.Fatal("non-positive rps should disable pacing")
	}
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("nil pacer must never block or fail: %v", err)
	}
}
