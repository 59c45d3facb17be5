package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/slotbook/slotbook/libs/kafkax"
)

type memInbox struct {
	seen      map[string]bool
	forgotten []string
	recordErr error
}

func (m *memInbox) Record(_ context.Context, eventID, _ string) (bool, error) {
	if m.recordErr != nil {
		return false, m.recordErr
	}
	if m.seen[eventID] {
		return false, nil
	}
	m.seen[eventID] = true
	return true, nil
}

func (m *memInbox) Forget(_ context.Context, eventID string) error {
	delete(m.seen, eventID)
	m.forgotten = append(m.forgotten, eventID)
	return nil
}

func message(id string) kafka.Message {
	return kafka.Message{
		Topic:   "scheduling.appointment.reserved.v1",
		Headers: kafkax.EventHeaders(id, "scheduling.appointment.reserved.v1"),
	}
}

func newConsumer(inbox Inbox, handler Handler) *Consumer {
	return &Consumer{
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		inbox:       inbox,
		handler:     handler,
		maxAttempts: 3,
		backoff:     time.Millisecond,
	}
}

func TestProcessDeduplicates(t *testing.T) {
	calls := 0
	c := newConsumer(&memInbox{seen: map[string]bool{}}, func(context.Context, kafka.Message) error {
		calls++
		return nil
	})

	for _, id := range []string{"e1", "e1", "e2"} {
		if err := c.process(context.Background(), message(id)); err != nil {
			t.Fatalf("process(%s) failed: %v", id, err)
		}
	}
	if calls != 2 {
		t.Fatalf("expected 2 handler calls, got %d", calls)
	}
}

func TestProcessReleasesClaimOnFailure(t *testing.T) {
	inbox := &memInbox{seen: map[string]bool{}}
	fail := true
	calls := 0
	c := newConsumer(inbox, func(context.Context, kafka.Message) error {
		calls++
		if fail {
			return errors.New("db down")
		}
		return nil
	})

	if err := c.process(context.Background(), message("e1")); err == nil {
		t.Fatal("expected handler error to surface")
	}
	if len(inbox.forgotten) != 1 || inbox.forgotten[0] != "e1" {
		t.Fatalf("expected e1 to be released, got %v", inbox.forgotten)
	}
	fail = false
	if err := c.process(context.Background(), message("e1")); err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected redelivery to be handled, got %d calls", calls)
	}
}

func TestDeliverRetriesUntilSuccess(t *testing.T) {
	calls := 0
	c := newConsumer(&memInbox{seen: map[string]bool{}}, func(context.Context, kafka.Message) error {
		calls++
		if calls < 3 {
			return errors.New("smtp down")
		}
		return nil
	})

	c.deliver(context.Background(), message("e1"))
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestDeliverGivesUp(t *testing.T) {
	inbox := &memInbox{recordErr: errors.New("db down")}
	c := newConsumer(inbox, func(context.Context, kafka.Message) error {
		t.Fatal("handler must not run without an inbox claim")
		return nil
	})

	c.deliver(context.Background(), message("e1"))
}

func TestProcessIgnoresEventsWithoutID(t *testing.T) {
	c := newConsumer(&memInbox{seen: map[string]bool{}}, func(context.Context, kafka.Message) error {
		t.Fatal("handler must not run for an event without id")
		return nil
	})
	if err := c.process(context.Background(), kafka.Message{Topic: "t"}); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
