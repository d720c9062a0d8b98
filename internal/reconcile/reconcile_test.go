package reconcile

import (
	"context"
	"fmt"
	"testing"

	"go.uber.org/zap"
)

type fakeTranscoder struct {
	padErr    error
	concatErr error
	padCalls  int
	concatCalls int
	lastTarget float64
	lastPad    float64
}

func (f *fakeTranscoder) PadWithSilence(ctx context.Context, in, out string, target float64) error {
	f.padCalls++
	f.lastTarget = target
	return f.padErr
}

func (f *fakeTranscoder) PadBySilenceConcat(ctx context.Context, in, out string, pad float64) error {
	f.concatCalls++
	f.lastPad = pad
	return f.concatErr
}

func TestPadding(t *testing.T) {
	cases := []struct {
		produced, target, want float64
	}{
		{8.2, 12.0, 3.8},
		{12.0, 12.0, 0},
		{15.0, 12.0, 0},
		{0, 5.0, 5.0},
	}
	for _, c := range cases {
		got := Padding(c.produced, c.target)
		if diff := got - c.want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("Padding(%v, %v) = %v, want %v", c.produced, c.target, got, c.want)
		}
	}
}

func TestEnsureDurationNoActionWhenLongEnough(t *testing.T) {
	tc := &fakeTranscoder{}
	r := New(tc, zap.NewNop())

	res := r.EnsureDuration(context.Background(), "/tmp/a.wav", 12.5, 12.0)
	if res.Path != "/tmp/a.wav" || res.PaddingSeconds != 0 || res.Degraded {
		t.Fatalf("unexpected result: %+v", res)
	}
	if tc.padCalls != 0 || tc.concatCalls != 0 {
		t.Fatal("no padding call expected")
	}
}

func TestEnsureDurationPadsToTarget(t *testing.T) {
	tc := &fakeTranscoder{}
	r := New(tc, zap.NewNop())

	res := r.EnsureDuration(context.Background(), "/work/a.wav", 8.2, 12.0)
	if res.Degraded {
		t.Fatal("unexpected degradation")
	}
	if res.Path != "/work/padded.wav" {
		t.Fatalf("unexpected path: %s", res.Path)
	}
	if tc.lastTarget != 12.0 {
		t.Fatalf("pad target = %v, want 12.0", tc.lastTarget)
	}
	if diff := res.PaddingSeconds - 3.8; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("padding = %v, want 3.8", res.PaddingSeconds)
	}
}

func TestEnsureDurationFallsBackToConcat(t *testing.T) {
	tc := &fakeTranscoder{padErr: fmt.Errorf("apad unsupported")}
	r := New(tc, zap.NewNop())

	res := r.EnsureDuration(context.Background(), "/work/a.wav", 10.0, 12.0)
	if res.Degraded {
		t.Fatal("concat fallback should have succeeded")
	}
	if tc.concatCalls != 1 {
		t.Fatal("expected concat fallback call")
	}
	if diff := tc.lastPad - 2.0; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("concat pad = %v, want 2.0", tc.lastPad)
	}
}

func TestEnsureDurationDegradesToUnpadded(t *testing.T) {
	tc := &fakeTranscoder{
		padErr:    fmt.Errorf("apad unsupported"),
		concatErr: fmt.Errorf("disk full"),
	}
	r := New(tc, zap.NewNop())

	res := r.EnsureDuration(context.Background(), "/work/a.wav", 10.0, 12.0)
	if !res.Degraded {
		t.Fatal("expected degraded result")
	}
	if res.Path != "/work/a.wav" {
		t.Fatalf("degraded result must keep the unpadded audio, got %s", res.Path)
	}
}
