package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestWeekdayConversion(t *testing.T) {
	// 2026-01-26 is a Monday.
	base := time.Date(2026, 1, 26, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		day := base.AddDate(0, 0, i)
		w := WeekdayOf(day)
		if int(w) != i {
			t.Fatalf("%s: expected weekday %d, got %d", day.Weekday(), i, w)
		}
		if w.TimeWeekday() != day.Weekday() {
			t.Fatalf("round trip mismatch for %s", day.Weekday())
		}
	}
	if Sunday.String() != "Sunday" || Weekday(9).Valid() {
		t.Fatalf("unexpected weekday formatting")
	}
}

func TestParseTimeOfDay(t *testing.T) {
	cases := []struct {
		in   string
		want TimeOfDay
		ok   bool
	}{
		{"09:00", 540, true},
		{"9:30", 570, true},
		{"00:00", 0, true},
		{"24:00", 1440, true},
		{"24:30", 0, false},
		{"10:60", 0, false},
		{"1000", 0, false},
		{"10:5", 0, false},
		{"ab:cd", 0, false},
		{"+9:30", 0, false},
		{"-1:00", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseTimeOfDay(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("%q: expected %d, got %d (%v)", tc.in, tc.want, got, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%q: expected error", tc.in)
		}
	}
}

func TestTimeOfDayJSON(t *testing.T) {
	b, err := json.Marshal(WeeklySlot{ID: "s1", Start: 600, End: 630})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if raw["startTime"] != "10:00" || raw["endTime"] != "10:30" {
		t.Fatalf("unexpected json %s", b)
	}
}

func TestValidateRange(t *testing.T) {
	var verr *ValidationError
	if err := ValidateRange(Wednesday, 600, 600); !errors.As(err, &verr) || verr.Field != "endTime" {
		t.Fatalf("expected endTime validation error, got %v", err)
	}
	if err := ValidateRange(Weekday(7), 600, 630); !errors.As(err, &verr) || verr.Field != "weekday" {
		t.Fatalf("expected weekday validation error, got %v", err)
	}
	if err := ValidateRange(Sunday, 1410, 1440); err != nil {
		t.Fatalf("expected slot ending at midnight to be valid, got %v", err)
	}
}

func TestOverlaps(t *testing.T) {
	s := WeeklySlot{Weekday: Wednesday, Start: 600, End: 630}
	if !s.Overlaps(Wednesday, 615, 645) {
		t.Fatal("expected overlap")
	}
	if s.Overlaps(Wednesday, 630, 660) {
		t.Fatal("touching slots must not overlap")
	}
	if s.Overlaps(Thursday, 615, 645) {
		t.Fatal("different weekday must not overlap")
	}
}

func TestOverlapErrorMessage(t *testing.T) {
	err := &OverlapError{Conflicting: WeeklySlot{ID: "x", Weekday: Wednesday, Start: 600, End: 630}}
	if err.Error() != "overlaps existing slot Wednesday 10:00-10:30" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if !Retryable(ErrLockTimeout) || Retryable(ErrAlreadyReserved) {
		t.Fatal("unexpected retryable classification")
	}
}

func TestWrap(t *testing.T) {
	if err := Wrap("reserve", ErrAlreadyReserved); err != ErrAlreadyReserved {
		t.Fatalf("classified errors must pass through, got %v", err)
	}
	base := errors.New("connection reset")
	err := Wrap("reserve", base)
	if err.Error() != "reserve: connection reset" || !errors.Is(err, base) {
		t.Fatalf("unexpected wrap %v", err)
	}
	if Wrap("x", nil) != nil {
		t.Fatal("nil must stay nil")
	}
}
