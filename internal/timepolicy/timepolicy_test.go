package timepolicy

import (
	"testing"
	"time"
)

func TestExact(t *testing.T) {
	p := Exact()
	if got := p.Delay(2.5); got != 2500*time.Millisecond {
		t.Errorf("got %v, want 2.5s", got)
	}
}

func TestFast_CapsAtOneSecond(t *testing.T) {
	p := Fast()
	if got := p.Delay(1000); got != time.Second {
		t.Errorf("got %v, want 1s cap", got)
	}
	if got := p.Delay(0.5); got != 5*time.Millisecond {
		t.Errorf("got %v, want 5ms", got)
	}
}

func TestFast_SkipsBelowFloor(t *testing.T) {
	p := Fast()
	if got := p.Delay(0.00005); got != 0 {
		t.Errorf("got %v, want 0 (below 1ms floor)", got)
	}
}

func TestDev_FloorYieldsInsteadOfSkipping(t *testing.T) {
	p := Dev()
	if got := p.Delay(0.0000001); got != time.Millisecond {
		t.Errorf("got %v, want 1ms burst floor", got)
	}
}

func TestDev_CapsAtPoint1Second(t *testing.T) {
	p := Dev()
	if got := p.Delay(1000); got != 100*time.Millisecond {
		t.Errorf("got %v, want 100ms cap", got)
	}
}

func TestBurst_AlwaysOneMillisecond(t *testing.T) {
	p := Burst()
	for _, gap := range []float64{0, 0.001, 5000} {
		if got := p.Delay(gap); got != time.Millisecond {
			t.Errorf("Delay(%v) = %v, want 1ms", gap, got)
		}
	}
}

func TestCustom(t *testing.T) {
	p := Custom(10, 2*time.Second)
	if got := p.Delay(100); got != 2*time.Second {
		t.Errorf("got %v, want 2s cap", got)
	}
	if got := p.Delay(5); got != 500*time.Millisecond {
		t.Errorf("got %v, want 500ms", got)
	}
}

func TestDelay_NonPositiveGapIsZero(t *testing.T) {
	p := Fast()
	if got := p.Delay(0); got != 0 {
		t.Errorf("got %v, want 0", got)
	}
	if got := p.Delay(-1); got != 0 {
		t.Errorf("got %v, want 0", got)
	}
}
