package config

import (
	"testing"
	"time"
)

func TestPort(t *testing.T) {
	t.Setenv("TEST_PORT", "8090")
	p, err := Port("TEST_PORT", "8083")
	if err != nil || p != "8090" {
		t.Fatalf("expected 8090, got %q (%v)", p, err)
	}

	t.Setenv("TEST_PORT", "99999")
	if _, err := Port("TEST_PORT", "8083"); err == nil {
		t.Fatal("expected error for out of range port")
	}
}

func TestTypedHelpers(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "x")
	t.Setenv("TEST_DURATION", "250ms")
	t.Setenv("TEST_BOOL", "off")
	t.Setenv("TEST_LIST", " a, ,b ,c")

	if got := Int("TEST_INT", 1); got != 42 {
		t.Fatalf("Int: got %d", got)
	}
	if got := Int("TEST_BAD_INT", 7); got != 7 {
		t.Fatalf("Int fallback: got %d", got)
	}
	if got := Duration("TEST_DURATION", time.Second); got != 250*time.Millisecond {
		t.Fatalf("Duration: got %s", got)
	}
	if got := Duration("TEST_MISSING_DURATION", 3*time.Second); got != 3*time.Second {
		t.Fatalf("Duration fallback: got %s", got)
	}
	if Bool("TEST_BOOL", true) {
		t.Fatal("Bool: expected false")
	}
	list := List("TEST_LIST", "")
	if len(list) != 3 || list[0] != "a" || list[1] != "b" || list[2] != "c" {
		t.Fatalf("List: got %#v", list)
	}
}
