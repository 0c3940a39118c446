package input

import "testing"

func drain(t *testing.T, p *Processor) []Event {
	t.Helper()
	return p.Drain()
}

func TestQuickTapEmitsShortPressThenRelease(t *testing.T) {
	p := New(nil)
	p.RawPress(Ok, 0)
	p.Tick(0)
	p.RawRelease(Ok, 100)

	got := drain(t, p)
	want := []Event{{Ok, Press}, {Ok, ShortPress}, {Ok, Release}}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestHoldPastThresholdEmitsLongPressNotShortPress(t *testing.T) {
	p := New(nil)
	p.RawPress(Up, 0)
	p.Tick(LongPressMs)
	p.RawRelease(Up, LongPressMs+10)

	got := drain(t, p)
	for _, ev := range got {
		if ev.Kind == ShortPress {
			t.Fatalf("unexpected ShortPress in %v after a long hold", got)
		}
	}
	if got[1].Kind != LongPress {
		t.Fatalf("event 1 = %+v, want LongPress", got[1])
	}
}

func TestSustainedHoldRepeatsAtFixedInterval(t *testing.T) {
	p := New(nil)
	p.RawPress(Down, 0)
	p.Drain()

	p.Tick(LongPressMs)
	longEvents := drain(t, p)
	if len(longEvents) != 1 || longEvents[0].Kind != LongPress {
		t.Fatalf("events at LongPressMs = %v, want exactly one LongPress", longEvents)
	}

	p.Tick(LongPressMs + RepeatIntervalMs)
	repeat1 := drain(t, p)
	if len(repeat1) != 1 || repeat1[0].Kind != Repeat {
		t.Fatalf("events one interval later = %v, want exactly one Repeat", repeat1)
	}

	p.Tick(LongPressMs + 2*RepeatIntervalMs)
	repeat2 := drain(t, p)
	if len(repeat2) != 1 || repeat2[0].Kind != Repeat {
		t.Fatalf("events two intervals later = %v, want exactly one Repeat", repeat2)
	}
}

func TestTickSkippingMultipleIntervalsCatchesUpAllRepeats(t *testing.T) {
	p := New(nil)
	p.RawPress(Down, 0)
	p.Drain()

	// LongPress resets the repeat clock to the tick that fired it, so the
	// repeats are counted from LongPressMs.
	p.Tick(LongPressMs)
	if long := drain(t, p); len(long) != 1 || long[0].Kind != LongPress {
		t.Fatalf("events at LongPressMs = %v, want exactly one LongPress", long)
	}

	// One tick that skips three whole repeat intervals.
	p.Tick(LongPressMs + 3*RepeatIntervalMs)
	got := drain(t, p)
	if len(got) != 3 {
		t.Fatalf("got %d events, want 3 Repeat", len(got))
	}
	for i := 0; i < 3; i++ {
		if got[i].Kind != Repeat {
			t.Fatalf("event %d = %+v, want Repeat", i, got[i])
		}
	}
}

func TestReleaseBeforeLongPressThresholdSuppressesLongPress(t *testing.T) {
	p := New(nil)
	p.RawPress(Ok, 0)
	p.Tick(LongPressMs - 1)
	p.RawRelease(Ok, LongPressMs-1)

	for _, ev := range drain(t, p) {
		if ev.Kind == LongPress {
			t.Fatal("LongPress fired one tick before threshold")
		}
	}
}

func TestDuplicatePressAndReleaseEdgesAreIgnored(t *testing.T) {
	p := New(nil)
	p.RawPress(Ok, 0)
	p.RawPress(Ok, 5) // duplicate: key already down
	p.Drain()

	p.RawRelease(Ok, 10)
	p.RawRelease(Ok, 15) // duplicate: key already up
	got := drain(t, p)
	if len(got) != 2 {
		t.Fatalf("got %d events from duplicate release, want 2 (ShortPress, Release)", len(got))
	}
}

func TestQueueDropsNewestPastCapacity(t *testing.T) {
	p := New(nil)
	for i := 0; i < QueueCap+5; i++ {
		p.push(Event{Key: Ok, Kind: Press})
	}
	got := drain(t, p)
	if len(got) != QueueCap {
		t.Fatalf("queue held %d events, want capped at %d", len(got), QueueCap)
	}
}

func TestResetComboFiresOnceAfterHoldWindow(t *testing.T) {
	fired := 0
	p := New(func() { fired++ })

	p.RawPress(Left, 0)
	p.RawPress(Back, 0)
	p.Tick(ResetComboMs - 1)
	if fired != 0 {
		t.Fatalf("reset fired early: fired=%d", fired)
	}

	p.Tick(ResetComboMs)
	if fired != 1 {
		t.Fatalf("fired = %d after hold window, want 1", fired)
	}

	// Holding further must not re-fire.
	p.Tick(ResetComboMs + 200)
	if fired != 1 {
		t.Fatalf("fired = %d after continued hold, want still 1", fired)
	}
}

func TestResetComboDisarmsWhenEitherKeyReleases(t *testing.T) {
	fired := 0
	p := New(func() { fired++ })

	p.RawPress(Left, 0)
	p.RawPress(Back, 0)
	p.Tick(ResetComboMs / 2)
	p.RawRelease(Back, ResetComboMs/2)
	p.Drain()

	p.RawPress(Back, ResetComboMs/2+1)
	p.Tick(ResetComboMs/2 + 1 + ResetComboMs - 1)
	if fired != 0 {
		t.Fatalf("fired = %d, want 0 (combo window should have restarted on re-press)", fired)
	}
}

func TestPressedReportsCurrentHoldState(t *testing.T) {
	p := New(nil)
	if p.Pressed(Ok) {
		t.Fatal("Ok reported pressed before any edge")
	}
	p.RawPress(Ok, 0)
	if !p.Pressed(Ok) {
		t.Fatal("Ok reported released after RawPress")
	}
	p.RawRelease(Ok, 10)
	if p.Pressed(Ok) {
		t.Fatal("Ok reported pressed after RawRelease")
	}
}

func TestOutOfRangeKeyIsIgnoredNotPanicking(t *testing.T) {
	p := New(nil)
	p.RawPress(Key(99), 0)
	p.RawRelease(Key(99), 10)
	p.Tick(10)
	if p.Pressed(Key(99)) {
		t.Fatal("out-of-range key reported pressed")
	}
}
