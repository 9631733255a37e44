package neom8

import (
	"bytes"
	"testing"
)

func TestWindowPreservesOrder(t *testing.T) {
	w := newWindow(8)
	w.feed([]byte("abc"))
	w.feed([]byte("de"))
	if got := w.bytes(); !bytes.Equal(got, []byte("abcde")) {
		t.Fatalf("window = %q, want %q", got, "abcde")
	}
}

func TestWindowSlidesOutOldest(t *testing.T) {
	w := newWindow(4)
	w.feed([]byte("abcd"))
	w.feed([]byte("ef"))
	if got := w.bytes(); !bytes.Equal(got, []byte("cdef")) {
		t.Fatalf("window = %q, want %q", got, "cdef")
	}
}

func TestWindowOversizedFeedKeepsNewest(t *testing.T) {
	w := newWindow(4)
	w.feed([]byte("old"))
	w.feed([]byte("0123456789"))
	if got := w.bytes(); !bytes.Equal(got, []byte("6789")) {
		t.Fatalf("window = %q, want %q", got, "6789")
	}
}

func TestWindowConsume(t *testing.T) {
	w := newWindow(8)
	w.feed([]byte("abcdef"))
	w.consume(2)
	if got := w.bytes(); !bytes.Equal(got, []byte("cdef")) {
		t.Fatalf("after consume(2) window = %q, want %q", got, "cdef")
	}
	w.consume(100)
	if w.len() != 0 {
		t.Fatalf("after over-consume len = %d, want 0", w.len())
	}
}
