package mattress

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func newTestTracker(t *testing.T) (*Tracker, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 15, 9, 30, 0, 0, time.Local))
	return NewTracker(Names{Mattress: "Guest Bed", Side1: "Firm", Side2: "Soft"}, clock), clock
}

func TestNewTrackerInitialState(t *testing.T) {
	tr, _ := newTestTracker(t)
	s := tr.Snapshot()

	if s.Side != Side1 {
		t.Errorf("Side: got %q, want %q", s.Side, Side1)
	}
	if s.Rotation != RotationNormal {
		t.Errorf("Rotation: got %q, want %q", s.Rotation, RotationNormal)
	}
	if s.LastFlip.Valid {
		t.Errorf("LastFlip: expected null, got %v", s.LastFlip.Date)
	}
	if s.LastRotate.Valid {
		t.Errorf("LastRotate: expected null, got %v", s.LastRotate.Date)
	}
	if s.SideName() != "Firm" {
		t.Errorf("SideName: got %q, want Firm", s.SideName())
	}
	if _, ok := tr.DaysSinceFlip(); ok {
		t.Error("DaysSinceFlip: expected absent before first flip")
	}
	if _, ok := tr.DaysSinceRotate(); ok {
		t.Error("DaysSinceRotate: expected absent before first rotation")
	}
}

func TestNewTrackerDefaultNames(t *testing.T) {
	tr := NewTracker(Names{}, clockwork.NewFakeClock())
	s := tr.Snapshot()
	if s.Names.Mattress != DefaultMattressName || s.Names.Side1 != DefaultSide1Name || s.Names.Side2 != DefaultSide2Name {
		t.Errorf("default names: got %+v", s.Names)
	}
}

func TestToggleSideParity(t *testing.T) {
	for n := 0; n <= 7; n++ {
		tr, _ := newTestTracker(t)
		for i := 0; i < n; i++ {
			tr.ToggleSide()
		}
		want := Side1
		if n%2 == 1 {
			want = Side2
		}
		if got := tr.Snapshot().Side; got != want {
			t.Errorf("after %d toggles: got %q, want %q", n, got, want)
		}
	}
}

func TestToggleRotationParity(t *testing.T) {
	tr, _ := newTestTracker(t)
	tr.ToggleRotation()
	if got := tr.Snapshot().Rotation; got != RotationRotated {
		t.Errorf("after 1 toggle: got %q, want rotated", got)
	}
	tr.ToggleRotation()
	if got := tr.Snapshot().Rotation; got != RotationNormal {
		t.Errorf("after 2 toggles: got %q, want normal", got)
	}
}

func TestSetFlipDateOverwrites(t *testing.T) {
	tr, _ := newTestTracker(t)
	dates := []Date{
		MustParseDate("2024-01-01"),
		MustParseDate("2030-12-31"), // future dates are accepted
		MustParseDate("1999-06-15"),
	}
	for _, d := range dates {
		tr.SetFlipDate(d)
		got := tr.Snapshot().LastFlip
		if !got.Valid || got.Date != d {
			t.Errorf("SetFlipDate(%v): read back %+v", d, got)
		}
	}
}

func TestSetRotateDateOverwrites(t *testing.T) {
	tr, _ := newTestTracker(t)
	d := MustParseDate("2025-07-04")
	tr.SetRotateDate(d)
	got := tr.Snapshot().LastRotate
	if !got.Valid || got.Date != d {
		t.Errorf("SetRotateDate: read back %+v", got)
	}
}

func TestRotationIndependentOfSide(t *testing.T) {
	tr, _ := newTestTracker(t)
	tr.Flip(MustParseDate("2026-01-10"))
	before := tr.Snapshot()

	tr.ToggleRotation()
	tr.SetRotateDate(MustParseDate("2026-02-01"))
	tr.Rotate(MustParseDate("2026-02-02"))

	after := tr.Snapshot()
	if after.Side != before.Side {
		t.Errorf("rotation changed Side: %q -> %q", before.Side, after.Side)
	}
	if after.LastFlip != before.LastFlip {
		t.Errorf("rotation changed LastFlip: %+v -> %+v", before.LastFlip, after.LastFlip)
	}
}

func TestSideIndependentOfRotation(t *testing.T) {
	tr, _ := newTestTracker(t)
	tr.Rotate(MustParseDate("2026-01-10"))
	before := tr.Snapshot()

	tr.ToggleSide()
	tr.SetFlipDate(MustParseDate("2026-02-01"))
	tr.Flip(MustParseDate("2026-02-02"))

	after := tr.Snapshot()
	if after.Rotation != before.Rotation {
		t.Errorf("flip changed Rotation: %q -> %q", before.Rotation, after.Rotation)
	}
	if after.LastRotate != before.LastRotate {
		t.Errorf("flip changed LastRotate: %+v -> %+v", before.LastRotate, after.LastRotate)
	}
}

func TestDaysSinceFlip(t *testing.T) {
	tr, clock := newTestTracker(t)
	today := tr.Today()

	tr.SetFlipDate(today)
	if days, ok := tr.DaysSinceFlip(); !ok || days != 0 {
		t.Errorf("flipped today: got (%d, %v), want (0, true)", days, ok)
	}

	tr.SetFlipDate(today.AddDays(-10))
	if days, ok := tr.DaysSinceFlip(); !ok || days != 10 {
		t.Errorf("flipped 10 days ago: got (%d, %v), want (10, true)", days, ok)
	}

	clock.Advance(48 * time.Hour)
	if days, _ := tr.DaysSinceFlip(); days != 12 {
		t.Errorf("after two days: got %d, want 12", days)
	}
}

func TestDaysSinceRotateFutureDate(t *testing.T) {
	tr, _ := newTestTracker(t)
	tr.SetRotateDate(tr.Today().AddDays(3))
	if days, ok := tr.DaysSinceRotate(); !ok || days != -3 {
		t.Errorf("future rotation: got (%d, %v), want (-3, true)", days, ok)
	}
}

func TestObserverNotified(t *testing.T) {
	tr, _ := newTestTracker(t)
	var got []State
	tr.OnChange(func(s State) { got = append(got, s) })

	tr.Flip(MustParseDate("2026-03-01"))
	tr.ToggleRotation()

	if len(got) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(got))
	}
	if got[0].Side != Side2 || got[0].LastFlip.Date != MustParseDate("2026-03-01") {
		t.Errorf("first notification: got %+v", got[0])
	}
	if got[1].Rotation != RotationRotated {
		t.Errorf("second notification: got %+v", got[1])
	}
}

func TestObserverMaySnapshot(t *testing.T) {
	tr, _ := newTestTracker(t)
	var seen Side
	tr.OnChange(func(State) { seen = tr.Snapshot().Side })
	tr.ToggleSide()
	if seen != Side2 {
		t.Errorf("observer snapshot: got %q, want side_2", seen)
	}
}

func TestRestore(t *testing.T) {
	tr, _ := newTestTracker(t)
	notified := false
	tr.OnChange(func(State) { notified = true })

	tr.Restore(State{
		Names:      Names{Mattress: "ignored"},
		Side:       Side2,
		Rotation:   RotationRotated,
		LastFlip:   Some(MustParseDate("2025-11-02")),
		LastRotate: Some(MustParseDate("2025-10-01")),
	})

	s := tr.Snapshot()
	if s.Names.Mattress != "Guest Bed" {
		t.Errorf("Restore changed names: %+v", s.Names)
	}
	if s.Side != Side2 || s.Rotation != RotationRotated {
		t.Errorf("Restore flags: got %q/%q", s.Side, s.Rotation)
	}
	if s.LastFlip.String() != "2025-11-02" || s.LastRotate.String() != "2025-10-01" {
		t.Errorf("Restore dates: got %s/%s", s.LastFlip, s.LastRotate)
	}
	if notified {
		t.Error("Restore should not notify observers")
	}
}

func TestRestoreIgnoresUnknownFlags(t *testing.T) {
	tr, _ := newTestTracker(t)
	tr.Restore(State{Side: "upside_down", Rotation: "sideways"})
	s := tr.Snapshot()
	if s.Side != Side1 || s.Rotation != RotationNormal {
		t.Errorf("unknown flags should keep defaults, got %q/%q", s.Side, s.Rotation)
	}
}

func TestConcurrentFlipsKeepPairsTogether(t *testing.T) {
	tr, _ := newTestTracker(t)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Flip(tr.Today())
		}()
	}
	wg.Wait()

	if got := tr.Snapshot().Side; got != Side1 {
		t.Errorf("after 100 concurrent flips: got %q, want side_1", got)
	}
}

func TestObserversSeeMutationsInOrder(t *testing.T) {
	tr, _ := newTestTracker(t)
	entered := make(chan struct{})
	release := make(chan struct{})

	var mu sync.Mutex
	var last State
	calls := 0
	tr.OnChange(func(s State) {
		mu.Lock()
		calls++
		slow := calls == 1
		mu.Unlock()
		if slow {
			close(entered)
			<-release
		}
		mu.Lock()
		last = s
		mu.Unlock()
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		tr.Flip(MustParseDate("2024-01-01"))
	}()
	<-entered
	go func() {
		defer wg.Done()
		tr.Flip(MustParseDate("2024-01-02"))
	}()
	// Give the second flip time to contend with the slow observer.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	want := tr.Snapshot()
	if want.Side != Side1 || want.LastFlip.String() != "2024-01-02" {
		t.Fatalf("tracker: got %s/%s, want side_1/2024-01-02", want.Side, want.LastFlip)
	}
	if last != want {
		t.Errorf("last notification: got %s/%s, want %s/%s", last.Side, last.LastFlip, want.Side, want.LastFlip)
	}
}
