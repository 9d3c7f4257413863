package gpio

import (
	"testing"
	"time"
)

var (
	_ Buttons = (*RealButtons)(nil)
	_ Buttons = (*FakeButtons)(nil)
)

func TestDebouncerWindow(t *testing.T) {
	d := NewDebouncer(250 * time.Millisecond)

	tests := []struct {
		name string
		ts   time.Duration
		want bool
	}{
		{"button.master_flip_now", 1 * time.Second, true},
		{"button.master_flip_now", 1*time.Second + 10*time.Millisecond, false}, // bounce
		{"button.master_flip_now", 1*time.Second + 249*time.Millisecond, false},
		{"button.master_rotate_now", 1*time.Second + 100*time.Millisecond, true}, // other button
		{"button.master_flip_now", 1*time.Second + 250*time.Millisecond, true},
		{"button.master_flip_now", 1*time.Second + 400*time.Millisecond, false},
	}
	for i, tt := range tests {
		if got := d.Accept(tt.name, tt.ts); got != tt.want {
			t.Errorf("press %d (%s at %v): got %v, want %v", i, tt.name, tt.ts, got, tt.want)
		}
	}
}

func TestDebouncerDisabled(t *testing.T) {
	d := NewDebouncer(0)
	for i := 0; i < 3; i++ {
		if !d.Accept("button.a", time.Second) {
			t.Errorf("press %d rejected with debounce disabled", i)
		}
	}
}

func TestFakeButtonsPress(t *testing.T) {
	var pressed []string
	f := NewFakeButtons(
		[]Button{{Name: "button.master_flip_now", Pin: 17}, {Name: "button.master_rotate_now", Pin: 27}},
		NewDebouncer(DefaultDebounce),
		func(name string) { pressed = append(pressed, name) },
	)

	if ok, err := f.Press("button.master_flip_now", time.Second); err != nil || !ok {
		t.Fatalf("first press: ok=%v err=%v", ok, err)
	}
	if ok, _ := f.Press("button.master_flip_now", time.Second+50*time.Millisecond); ok {
		t.Error("bounce should be dropped")
	}
	if ok, _ := f.Press("button.master_rotate_now", 2*time.Second); !ok {
		t.Error("rotate press should be delivered")
	}

	if len(pressed) != 2 || pressed[0] != "button.master_flip_now" || pressed[1] != "button.master_rotate_now" {
		t.Errorf("pressed: got %v", pressed)
	}
}

func TestFakeButtonsUnknownAndClosed(t *testing.T) {
	f := NewFakeButtons([]Button{{Name: "button.a", Pin: 5}}, NewDebouncer(0), func(string) {})

	if _, err := f.Press("button.b", 0); err == nil {
		t.Error("expected error for unknown button")
	}
	f.Close()
	if !f.Closed {
		t.Error("Close should mark closed")
	}
	if _, err := f.Press("button.a", 0); err == nil {
		t.Error("expected error after Close")
	}
}
