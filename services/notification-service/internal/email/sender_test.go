package email

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestBuildMessage(t *testing.T) {
	now := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	msg, err := buildMessage("no-reply@slotbook.local", "alice@example.com", "Appointment confirmed", "line one\nline two", now)
	if err != nil {
		t.Fatalf("buildMessage: %v", err)
	}
	for _, want := range []string{
		"From: no-reply@slotbook.local\r\n",
		"To: alice@example.com\r\n",
		"Subject: Appointment confirmed\r\n",
		"Date: Wed, 28 Jan 2026 10:00:00 +0000\r\n",
		"\r\n\r\nline one\r\nline two\r\n",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestBuildMessageRejectsHeaderInjection(t *testing.T) {
	_, err := buildMessage("a@b.c", "victim@example.com\r\nBcc: all@example.com", "hi", "body", time.Now())
	if !errors.Is(err, ErrInvalidHeader) {
		t.Fatalf("expected ErrInvalidHeader, got %v", err)
	}
}
