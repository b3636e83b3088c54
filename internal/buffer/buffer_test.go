package buffer

import "testing"

func TestDataAndSize(t *testing.T) {
	b := New([]byte("hello"))
	if b.Size() != 5 {
		t.Errorf("expected size 5, got %d", b.Size())
	}
	if string(b.Data()) != "hello" {
		t.Errorf("unexpected data: %q", b.Data())
	}
}

func TestRemaining(t *testing.T) {
	b := New([]byte("0123456789"))

	if got := string(b.Remaining(4)); got != "456789" {
		t.Errorf("expected %q, got %q", "456789", got)
	}

	// Offset past the end clamps to empty rather than panicking.
	if got := b.Remaining(100); len(got) != 0 {
		t.Errorf("expected empty slice for out-of-range offset, got %q", got)
	}

	if got := b.Remaining(-1); string(got) != "0123456789" {
		t.Errorf("expected full slice for negative offset, got %q", got)
	}
}

func TestRemainingCapacity(t *testing.T) {
	b := New(make([]byte, 10))

	if b.RemainingCapacity(4) != 6 {
		t.Errorf("expected 6, got %d", b.RemainingCapacity(4))
	}
	if b.RemainingCapacity(20) != 0 {
		t.Errorf("expected 0 for out-of-range offset, got %d", b.RemainingCapacity(20))
	}
}

func TestShrink(t *testing.T) {
	b := New([]byte("0123456789"))

	s := b.Shrink(4)
	if s.Size() != 4 {
		t.Errorf("expected shrunk size 4, got %d", s.Size())
	}
	if string(s.Data()) != "0123" {
		t.Errorf("unexpected shrunk data: %q", s.Data())
	}

	// Shrink beyond capacity clamps rather than panicking.
	s2 := b.Shrink(100)
	if s2.Size() != 10 {
		t.Errorf("expected clamp to 10, got %d", s2.Size())
	}
}
