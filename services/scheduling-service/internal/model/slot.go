package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Weekday numbers days Monday-first: 0 = Monday ... 6 = Sunday.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// WeekdayOf converts the Sunday-first time.Weekday of t.
func WeekdayOf(t time.Time) Weekday {
	return Weekday((int(t.Weekday()) + 6) % 7)
}

func (w Weekday) TimeWeekday() time.Weekday {
	return time.Weekday((int(w) + 1) % 7)
}

func (w Weekday) Valid() bool { return w >= Monday && w <= Sunday }

func (w Weekday) String() string {
	if !w.Valid() {
		return "Weekday(" + strconv.Itoa(int(w)) + ")"
	}
	return w.TimeWeekday().String()
}

const MinutesPerDay = 24 * 60

// TimeOfDay is minutes since midnight. 1440 is allowed as an end bound.
type TimeOfDay int

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	if !digits(h) || len(h) > 2 || !digits(m) || len(m) != 2 {
		return 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	hh, _ := strconv.Atoi(h)
	mm, _ := strconv.Atoi(m)
	if mm > 59 || hh > 24 || (hh == 24 && mm != 0) {
		return 0, fmt.Errorf("time %q out of range", s)
	}
	return TimeOfDay(hh*60 + mm), nil
}

func digits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func (t TimeOfDay) Clock() (hour, minute int) { return int(t) / 60, int(t) % 60 }

func (t TimeOfDay) String() string {
	h, m := t.Clock()
	return fmt.Sprintf("%02d:%02d", h, m)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// WeeklySlot is a recurring availability block. Reserved is only changed
// while the row lock is held.
type WeeklySlot struct {
	ID             string    `json:"id"`
	PractitionerID int64     `json:"practitionerId"`
	Weekday        Weekday   `json:"weekday"`
	Start          TimeOfDay `json:"startTime"`
	End            TimeOfDay `json:"endTime"`
	Reserved       bool      `json:"reserved"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (s WeeklySlot) Duration() time.Duration {
	return time.Duration(s.End-s.Start) * time.Minute
}

// Overlaps uses half-open intervals: touching slots do not overlap.
func (s WeeklySlot) Overlaps(weekday Weekday, start, end TimeOfDay) bool {
	return s.Weekday == weekday && s.Start < end && s.End > start
}

// ValidateRange checks a weekday and time range before anything is persisted.
func ValidateRange(weekday Weekday, start, end TimeOfDay) error {
	if !weekday.Valid() {
		return &ValidationError{Field: "weekday", Message: "must be between 0 (Monday) and 6 (Sunday)"}
	}
	if start < 0 || start >= MinutesPerDay {
		return &ValidationError{Field: "startTime", Message: "must be between 00:00 and 23:59"}
	}
	if end <= start {
		return &ValidationError{Field: "endTime", Message: "must be after startTime"}
	}
	if end > MinutesPerDay {
		return &ValidationError{Field: "endTime", Message: "must not be after 24:00"}
	}
	return nil
}

// AvailableSlot is an unreserved slot annotated for the public view.
type AvailableSlot struct {
	WeeklySlot
	PractitionerName string
}

type Practitioner struct {
	ID          int64
	UserID      string
	DisplayName string
	Active      bool
}

// CalendarEvent is a slot projected onto a concrete date. It is never stored.
type CalendarEvent struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	ColorTag         string    `json:"color"`
	IsReserved       bool      `json:"isReserved"`
	PractitionerID   int64     `json:"practitionerId,omitempty"`
	PractitionerName string    `json:"practitionerName,omitempty"`
}
