package calendar

import (
	"reflect"
	"testing"
	"time"

	"github.com/slotbook/slotbook/services/scheduling-service/internal/model"
)

func sampleSlots() []model.WeeklySlot {
	return []model.WeeklySlot{
		{ID: "c", PractitionerID: 1, Weekday: model.Friday, Start: 9 * 60, End: 9*60 + 30},
		{ID: "a", PractitionerID: 1, Weekday: model.Monday, Start: 10 * 60, End: 10*60 + 30},
		{ID: "b", PractitionerID: 1, Weekday: model.Monday, Start: 10 * 60, End: 11 * 60, Reserved: true},
		{ID: "d", PractitionerID: 1, Weekday: model.Sunday, Start: 23*60 + 30, End: 24 * 60},
	}
}

func TestProjectWeek_MondayWeek(t *testing.T) {
	// Wednesday 2026-01-28; the Monday-first week is 01-26 .. 02-01.
	ref := time.Date(2026, 1, 28, 15, 0, 0, 0, time.UTC)
	events := ProjectWeek(sampleSlots(), ref, Options{})
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}

	wantIDs := []string{"a", "b", "c", "d"}
	for i, ev := range events {
		if ev.ID != wantIDs[i] {
			t.Fatalf("event %d: expected id %s, got %s", i, wantIDs[i], ev.ID)
		}
	}
	if !events[0].Start.Equal(time.Date(2026, 1, 26, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected monday start %s", events[0].Start)
	}
	if !events[2].Start.Equal(time.Date(2026, 1, 30, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected friday start %s", events[2].Start)
	}
	if !events[3].End.Equal(time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected sunday slot to end at midnight, got %s", events[3].End)
	}
	if events[1].Title != TitleReserved || events[1].ColorTag != ColorReserved || !events[1].IsReserved {
		t.Fatalf("reserved slot rendered as %+v", events[1])
	}
	if events[0].Title != TitleAvailable || events[0].ColorTag != ColorAvailable {
		t.Fatalf("available slot rendered as %+v", events[0])
	}
}

func TestProjectWeek_SundayWeekStart(t *testing.T) {
	// With a Sunday-first week, Sunday 2026-02-01 starts a new week, so the
	// Monday slot lands on 02-02 and the Sunday slot on 02-01.
	ref := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	events := ProjectWeek(sampleSlots(), ref, Options{WeekStart: model.Sunday})
	byID := map[string]model.CalendarEvent{}
	for _, ev := range events {
		byID[ev.ID] = ev
	}
	if got := byID["d"].Start; !got.Equal(time.Date(2026, 2, 1, 23, 30, 0, 0, time.UTC)) {
		t.Fatalf("sunday slot projected to %s", got)
	}
	if got := byID["a"].Start; !got.Equal(time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("monday slot projected to %s", got)
	}
	if events[0].ID != "d" {
		t.Fatalf("expected sunday event first, got %s", events[0].ID)
	}
}

func TestProjectWeek_Deterministic(t *testing.T) {
	ref := time.Date(2026, 1, 28, 15, 0, 0, 0, time.UTC)
	slots := sampleSlots()
	first := ProjectWeek(slots, ref, Options{})
	second := ProjectWeek(slots, ref, Options{})
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("projection not deterministic")
	}

	flipped := sampleSlots()
	for i := range flipped {
		flipped[i].Reserved = !flipped[i].Reserved
	}
	third := ProjectWeek(flipped, ref, Options{})
	for i := range first {
		if !first[i].Start.Equal(third[i].Start) || !first[i].End.Equal(third[i].End) {
			t.Fatalf("reserved flag moved event %s", first[i].ID)
		}
		if first[i].IsReserved == third[i].IsReserved || first[i].ColorTag == third[i].ColorTag {
			t.Fatalf("reserved flag did not change presentation for %s", first[i].ID)
		}
	}
}

func TestProjectWeek_DSTKeepsWallClock(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// Clocks spring forward on Sunday 2026-03-08.
	ref := time.Date(2026, 3, 4, 12, 0, 0, 0, loc)
	slots := []model.WeeklySlot{
		{ID: "sun", Weekday: model.Sunday, Start: 10 * 60, End: 11 * 60},
		{ID: "sat", Weekday: model.Saturday, Start: 10 * 60, End: 11 * 60},
	}
	events := ProjectWeek(slots, ref, Options{Location: loc})
	for _, ev := range events {
		if h, m, _ := ev.Start.Clock(); h != 10 || m != 0 {
			t.Fatalf("%s: expected 10:00 local, got %s", ev.ID, ev.Start)
		}
	}
	if events[1].Start.Day() != 8 || events[0].Start.Day() != 7 {
		t.Fatalf("unexpected dates: %s %s", events[0].Start, events[1].Start)
	}
}

func TestProjectPublic(t *testing.T) {
	ref := time.Date(2026, 1, 28, 15, 0, 0, 0, time.UTC)
	available := []model.AvailableSlot{
		{WeeklySlot: model.WeeklySlot{ID: "x", PractitionerID: 3, Weekday: model.Tuesday, Start: 600, End: 630}, PractitionerName: "Dr. Ruiz"},
		{WeeklySlot: model.WeeklySlot{ID: "y", PractitionerID: 4, Weekday: model.Tuesday, Start: 600, End: 630, Reserved: true}},
	}
	events := ProjectPublic(available, ref, Options{})
	if len(events) != 1 {
		t.Fatalf("expected reserved slots to be filtered, got %d events", len(events))
	}
	ev := events[0]
	if ev.ColorTag != ColorFor(3) || ev.PractitionerID != 3 || ev.Title != "Dr. Ruiz" {
		t.Fatalf("unexpected public event %+v", ev)
	}
}

func TestColorFor(t *testing.T) {
	p := Palette()
	if ColorFor(0) != p[0] || ColorFor(int64(len(p))+1) != p[1] {
		t.Fatal("expected palette index by id modulo size")
	}
	if ColorFor(-1) != p[len(p)-1] {
		t.Fatalf("negative ids must map into the palette, got %q", ColorFor(-1))
	}
	p[0] = "mutated"
	if ColorFor(0) == "mutated" {
		t.Fatal("Palette must return a copy")
	}
}

func TestNextOccurrence(t *testing.T) {
	slot := model.WeeklySlot{Weekday: model.Wednesday, Start: 10 * 60, End: 10*60 + 30}

	cases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"earlier in week", time.Date(2026, 1, 26, 9, 0, 0, 0, time.UTC), time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)},
		{"same day before start", time.Date(2026, 1, 28, 9, 59, 0, 0, time.UTC), time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)},
		{"at start", time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC), time.Date(2026, 2, 4, 10, 0, 0, 0, time.UTC)},
		{"later in week", time.Date(2026, 1, 31, 9, 0, 0, 0, time.UTC), time.Date(2026, 2, 4, 10, 0, 0, 0, time.UTC)},
		{"sunday night", time.Date(2026, 2, 1, 23, 0, 0, 0, time.UTC), time.Date(2026, 2, 4, 10, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		start, end := NextOccurrence(slot, tc.now, time.UTC)
		if !start.Equal(tc.want) {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, start)
		}
		if end.Sub(start) != 30*time.Minute {
			t.Fatalf("%s: unexpected duration %s", tc.name, end.Sub(start))
		}
	}
}

func TestWeekBounds(t *testing.T) {
	ref := time.Date(2026, 1, 28, 15, 0, 0, 0, time.UTC)
	from, to := WeekBounds(ref, model.Monday, time.UTC)
	if !from.Equal(time.Date(2026, 1, 26, 0, 0, 0, 0, time.UTC)) || !to.Equal(time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected bounds %s - %s", from, to)
	}
	from, _ = WeekBounds(ref, model.Sunday, time.UTC)
	if !from.Equal(time.Date(2026, 1, 25, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected sunday-first start %s", from)
	}
}
