package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	before := time.Now()
	got := RealClock{}.Now()
	if got.Before(before) {
		t.Errorf("RealClock.Now() = %v, want >= %v", got, before)
	}
}

func TestMockClock_TickerFiresOnAdvance(t *testing.T) {
	start := time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)
	c := NewMockClock(start)
	tk := c.NewTicker(16 * time.Millisecond)
	defer tk.Stop()

	c.Advance(10 * time.Millisecond)
	select {
	case <-tk.C():
		t.Fatal("ticker fired before its interval elapsed")
	default:
	}

	c.Advance(6 * time.Millisecond)
	select {
	case got := <-tk.C():
		if want := start.Add(16 * time.Millisecond); !got.Equal(want) {
			t.Errorf("tick time = %v, want %v", got, want)
		}
	default:
		t.Fatal("ticker did not fire after its interval")
	}
}

func TestMockClock_StoppedTickerIsSilent(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))
	tk := c.NewTicker(time.Millisecond)
	tk.Stop()

	c.Advance(time.Second)
	select {
	case <-tk.C():
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestMockClock_SlowReaderDropsTicks(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))
	tk := c.NewTicker(time.Millisecond)

	for i := 0; i < 5; i++ {
		c.Advance(time.Millisecond)
	}

	<-tk.C()
	select {
	case <-tk.C():
		t.Fatal("expected only one buffered tick")
	default:
	}
	if got := c.Now(); !got.Equal(time.Unix(0, 0).Add(5 * time.Millisecond)) {
		t.Errorf("Now() = %v after five advances", got)
	}
}
