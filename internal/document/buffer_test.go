package document

import (
	"testing"
)

func TestBufferText(t *testing.T) {
	b := NewBuffer("/tmp/a.md", "alpha\nbeta\ngamma")

	if b.LineCount() != 3 {
		t.Errorf("expected 3 lines, got %d", b.LineCount())
	}
	if b.Text() != "alpha\nbeta\ngamma" {
		t.Errorf("unexpected text round trip: %q", b.Text())
	}

	line, ok := b.Line(1)
	if !ok || line != "beta" {
		t.Errorf("expected line 1 %q, got %q ok=%v", "beta", line, ok)
	}
	if _, ok := b.Line(3); ok {
		t.Error("expected line 3 to be out of range")
	}
	if _, ok := b.Line(-1); ok {
		t.Error("expected line -1 to be out of range")
	}
}

func TestBufferEmptyTextIsOneLine(t *testing.T) {
	b := NewBuffer("/tmp/a.md", "")
	if b.LineCount() != 1 {
		t.Errorf("expected 1 line for empty text, got %d", b.LineCount())
	}
}

func TestBufferInsertAt(t *testing.T) {
	b := NewBuffer("/tmp/a.md", "hello world")

	if err := b.InsertAt(Position{Line: 0, Column: 5}, ","); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if b.Text() != "hello, world" {
		t.Errorf("expected %q, got %q", "hello, world", b.Text())
	}
}

func TestBufferInsertAtMultiline(t *testing.T) {
	b := NewBuffer("/tmp/a.md", "ab")

	if err := b.InsertAt(Position{Line: 0, Column: 1}, "x\ny"); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if b.Text() != "ax\nyb" {
		t.Errorf("expected %q, got %q", "ax\nyb", b.Text())
	}
	if b.LineCount() != 2 {
		t.Errorf("expected 2 lines, got %d", b.LineCount())
	}
}

func TestBufferInsertAtClampsColumn(t *testing.T) {
	b := NewBuffer("/tmp/a.md", "ab")

	if err := b.InsertAt(Position{Line: 0, Column: 99}, "!"); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if b.Text() != "ab!" {
		t.Errorf("expected %q, got %q", "ab!", b.Text())
	}
}

func TestBufferInsertAtBadLine(t *testing.T) {
	b := NewBuffer("/tmp/a.md", "ab")
	if err := b.InsertAt(Position{Line: 5}, "!"); err != ErrLineOutOfRange {
		t.Errorf("expected ErrLineOutOfRange, got %v", err)
	}
}

func TestBufferReplaceLineRange(t *testing.T) {
	b := NewBuffer("/tmp/a.md", "one\ntwo\nthree")

	if err := b.ReplaceLineRange(1, 2, "TWO"); err != nil {
		t.Fatalf("replace failed: %v", err)
	}
	if b.Text() != "one\nTWO\nthree" {
		t.Errorf("expected %q, got %q", "one\nTWO\nthree", b.Text())
	}

	// Replacement may change the line count.
	if err := b.ReplaceLineRange(0, 2, "a\nb\nc"); err != nil {
		t.Fatalf("replace failed: %v", err)
	}
	if b.Text() != "a\nb\nc\nthree" {
		t.Errorf("expected %q, got %q", "a\nb\nc\nthree", b.Text())
	}
}

func TestBufferReplaceLineRangeBadRange(t *testing.T) {
	b := NewBuffer("/tmp/a.md", "one\ntwo")

	if err := b.ReplaceLineRange(1, 0, "x"); err != ErrLineOutOfRange {
		t.Errorf("expected ErrLineOutOfRange for inverted range, got %v", err)
	}
	if err := b.ReplaceLineRange(0, 5, "x"); err != ErrLineOutOfRange {
		t.Errorf("expected ErrLineOutOfRange past end, got %v", err)
	}
}

func TestBufferClosedRejectsMutation(t *testing.T) {
	b := NewBuffer("/tmp/a.md", "one")
	b.Close()

	if err := b.InsertAt(Position{}, "x"); err != ErrClosed {
		t.Errorf("expected ErrClosed from InsertAt, got %v", err)
	}
	if err := b.ReplaceLineRange(0, 1, "x"); err != ErrClosed {
		t.Errorf("expected ErrClosed from ReplaceLineRange, got %v", err)
	}
	if b.Text() != "one" {
		t.Errorf("expected closed buffer untouched, got %q", b.Text())
	}
}

func TestBufferEvents(t *testing.T) {
	b := NewBuffer("/tmp/a.md", "one")

	var got []EventKind
	b.Events().Subscribe(func(ev Event) {
		got = append(got, ev.Kind)
		if ev.Doc != "/tmp/a.md" {
			t.Errorf("expected doc identity /tmp/a.md, got %q", ev.Doc)
		}
	})

	b.SetText("two")
	b.SetCursor(Position{Line: 0, Column: 1})
	b.Save()
	b.Close()
	b.Close() // second close is a no-op

	want := []EventKind{EventChange, EventCursor, EventSave, EventClose}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d (%v)", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestBufferSetScrollOffset(t *testing.T) {
	b := NewBuffer("/tmp/a.md", "a\nb\nc\nd\ne\nf\ng\nh")
	b.SetViewport(Viewport{FirstLine: 0, LastLine: 3, LineHeight: 10, Height: 40})

	b.SetScrollOffset(20)

	vp := b.Viewport()
	if vp.ScrollOffset != 20 {
		t.Errorf("expected offset 20, got %v", vp.ScrollOffset)
	}
	if vp.FirstLine != 2 {
		t.Errorf("expected first visible line 2, got %d", vp.FirstLine)
	}
	if vp.LastLine != 5 {
		t.Errorf("expected last visible line 5, got %d", vp.LastLine)
	}

	// Negative offsets clamp to zero.
	b.SetScrollOffset(-5)
	if vp := b.Viewport(); vp.ScrollOffset != 0 || vp.FirstLine != 0 {
		t.Errorf("expected clamp to top, got offset=%v first=%d", vp.ScrollOffset, vp.FirstLine)
	}
}

func TestFeedUnsubscribe(t *testing.T) {
	f := NewFeed()

	calls := 0
	sub := f.Subscribe(func(Event) { calls++ })
	if f.Count() != 1 {
		t.Errorf("expected 1 subscription, got %d", f.Count())
	}

	f.Publish(Event{Kind: EventChange})
	sub.Unsubscribe()
	f.Publish(Event{Kind: EventChange})

	if calls != 1 {
		t.Errorf("expected 1 call after unsubscribe, got %d", calls)
	}
	if f.Count() != 0 {
		t.Errorf("expected 0 subscriptions, got %d", f.Count())
	}
}
