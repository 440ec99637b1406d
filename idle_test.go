package wsengine

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTimerIdleDetector_FiresAfterInterval(t *testing.T) {
	var fired int32
	d := newTimerIdleDetector(10 * time.Millisecond)
	d.Start(func() { atomic.AddInt32(&fired, 1) })
	defer d.Stop()

	time.Sleep(50 * time.Millisecond)
	if atomic.LoadInt32(&fired) == 0 {
		t.Fatal("expected the idle callback to fire at least once")
	}
}

func TestTimerIdleDetector_ResetPostponesFire(t *testing.T) {
	var fired int32
	d := newTimerIdleDetector(30 * time.Millisecond)
	d.Start(func() { atomic.AddInt32(&fired, 1) })
	defer d.Stop()

	time.Sleep(15 * time.Millisecond)
	d.Reset()
	time.Sleep(15 * time.Millisecond)

	if atomic.LoadInt32(&fired) != 0 {
		t.Fatal("expected Reset to postpone the fire past the original deadline")
	}
}

func TestTimerIdleDetector_StopPreventsFire(t *testing.T) {
	var fired int32
	d := newTimerIdleDetector(10 * time.Millisecond)
	d.Start(func() { atomic.AddInt32(&fired, 1) })
	d.Stop()

	time.Sleep(30 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 0 {
		t.Fatal("expected Stop to prevent the callback from ever firing")
	}
}
