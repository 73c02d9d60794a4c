package logic

import (
	"testing"
	"time"
)

// holdFor samples a pressed button every step from t0 until end and returns
// the offsets at which the detector fired.
func holdFor(o *Override, t0 time.Time, end, step time.Duration) []time.Duration {
	var fired []time.Duration
	for d := time.Duration(0); d <= end; d += step {
		if o.Update(true, t0.Add(d)) {
			fired = append(fired, d)
		}
	}
	return fired
}

func TestOverrideFiresOnceAfterThreshold(t *testing.T) {
	o := NewOverride(10 * time.Second)
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	fired := holdFor(o, t0, 10050*time.Millisecond, 50*time.Millisecond)
	if len(fired) != 1 {
		t.Fatalf("expected 1 firing, got %d", len(fired))
	}
	if fired[0] != 10*time.Second {
		t.Errorf("expected firing at 10s, got %v", fired[0])
	}
	if o.State() != OverrideFired {
		t.Errorf("expected FIRED, got %s", o.State())
	}
}

func TestOverrideShortHoldNeverFires(t *testing.T) {
	o := NewOverride(10 * time.Second)
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	fired := holdFor(o, t0, 9*time.Second, 100*time.Millisecond)
	if len(fired) != 0 {
		t.Fatalf("expected no firing for 9s hold, got %v", fired)
	}

	// Release discards the session.
	if o.Update(false, t0.Add(9100*time.Millisecond)) {
		t.Error("release must not fire")
	}
	if o.State() != OverrideIdle {
		t.Errorf("expected IDLE after release, got %s", o.State())
	}
}

func TestOverrideDoesNotRefireWhileHeld(t *testing.T) {
	o := NewOverride(10 * time.Second)
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	fired := holdFor(o, t0, 60*time.Second, 200*time.Millisecond)
	if len(fired) != 1 {
		t.Errorf("expected exactly 1 firing over a 60s hold, got %d", len(fired))
	}
}

func TestOverrideRearmsAfterRelease(t *testing.T) {
	o := NewOverride(10 * time.Second)
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	if len(holdFor(o, t0, 11*time.Second, time.Second)) != 1 {
		t.Fatal("expected first hold to fire")
	}
	o.Update(false, t0.Add(12*time.Second))

	t1 := t0.Add(13 * time.Second)
	if len(holdFor(o, t1, 11*time.Second, time.Second)) != 1 {
		t.Error("expected second hold to fire after release")
	}
}

func TestOverrideReleaseRestartsTiming(t *testing.T) {
	o := NewOverride(10 * time.Second)
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	holdFor(o, t0, 6*time.Second, time.Second)
	o.Update(false, t0.Add(6500*time.Millisecond))

	// Six more seconds of holding: 12s since the first press but only 6s continuous.
	fired := holdFor(o, t0.Add(7*time.Second), 6*time.Second, time.Second)
	if len(fired) != 0 {
		t.Errorf("interrupted hold must not fire, got %v", fired)
	}
}

func TestOverrideHeldFor(t *testing.T) {
	o := NewOverride(10 * time.Second)
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	if o.HeldFor(t0) != 0 {
		t.Error("expected zero when idle")
	}
	o.Update(true, t0)
	if got := o.HeldFor(t0.Add(3 * time.Second)); got != 3*time.Second {
		t.Errorf("expected 3s, got %v", got)
	}
}
