// Package calendar projects weekly-recurring slots onto concrete dates.
// Everything here is pure: no I/O and no shared mutable state.
package calendar

import (
	"cmp"
	"slices"
	"time"

	"github.com/slotbook/slotbook/services/scheduling-service/internal/model"
)

const (
	TitleAvailable = "Available"
	TitleReserved  = "Reserved"

	ColorAvailable = "#2e7d32"
	ColorReserved  = "#c62828"
)

var palette = [...]string{
	"#1e88e5", "#8e24aa", "#f4511e", "#00897b",
	"#fdd835", "#6d4c41", "#3949ab", "#d81b60",
}

// Palette returns a copy of the per-practitioner colors.
func Palette() []string {
	out := make([]string, len(palette))
	copy(out, palette[:])
	return out
}

// ColorFor is stable for a practitioner id, negative ids included.
func ColorFor(practitionerID int64) string {
	n := int64(len(palette))
	i := practitionerID % n
	if i < 0 {
		i += n
	}
	return palette[i]
}

// Options controls which seven days form "the week" and where dates live.
// The zero value is a Monday-first week in UTC.
type Options struct {
	WeekStart model.Weekday
	Location  *time.Location
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

// WeekBounds returns local midnight of the first day of the week containing
// reference and midnight seven calendar days later.
func WeekBounds(reference time.Time, weekStart model.Weekday, loc *time.Location) (from, to time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	ref := reference.In(loc)
	back := (int(model.WeekdayOf(ref)) - int(weekStart) + 7) % 7
	y, m, d := ref.Date()
	from = time.Date(y, m, d-back, 0, 0, 0, 0, loc)
	to = time.Date(y, m, d-back+7, 0, 0, 0, 0, loc)
	return from, to
}

// instance places [start,end) on the day offset calendar days after weekFrom.
// time.Date is used instead of Add(24h) so DST changes keep the wall clock.
func instance(weekFrom time.Time, offset int, start, end model.TimeOfDay) (time.Time, time.Time) {
	y, m, d := weekFrom.Date()
	loc := weekFrom.Location()
	sh, sm := start.Clock()
	eh, em := end.Clock()
	return time.Date(y, m, d+offset, sh, sm, 0, 0, loc), time.Date(y, m, d+offset, eh, em, 0, 0, loc)
}

func dayOffset(slotDay, weekStart model.Weekday) int {
	return (int(slotDay) - int(weekStart) + 7) % 7
}

func project(slot model.WeeklySlot, weekFrom time.Time, weekStart model.Weekday) model.CalendarEvent {
	start, end := instance(weekFrom, dayOffset(slot.Weekday, weekStart), slot.Start, slot.End)
	ev := model.CalendarEvent{
		ID:         slot.ID,
		Title:      TitleAvailable,
		Start:      start,
		End:        end,
		ColorTag:   ColorAvailable,
		IsReserved: slot.Reserved,
	}
	if slot.Reserved {
		ev.Title = TitleReserved
		ev.ColorTag = ColorReserved
	}
	return ev
}

// ProjectWeek maps slots onto the week containing reference. Output is
// sorted by start, then id, so identical input gives identical output.
func ProjectWeek(slots []model.WeeklySlot, reference time.Time, opts Options) []model.CalendarEvent {
	from, _ := WeekBounds(reference, opts.WeekStart, opts.location())
	events := make([]model.CalendarEvent, 0, len(slots))
	for _, s := range slots {
		if !s.Weekday.Valid() {
			continue
		}
		events = append(events, project(s, from, opts.WeekStart))
	}
	sortEvents(events)
	return events
}

// ProjectPublic is the cross-practitioner view: reserved slots are dropped
// and each event carries its practitioner's color.
func ProjectPublic(slots []model.AvailableSlot, reference time.Time, opts Options) []model.CalendarEvent {
	from, _ := WeekBounds(reference, opts.WeekStart, opts.location())
	events := make([]model.CalendarEvent, 0, len(slots))
	for _, s := range slots {
		if s.Reserved || !s.Weekday.Valid() {
			continue
		}
		ev := project(s.WeeklySlot, from, opts.WeekStart)
		ev.ColorTag = ColorFor(s.PractitionerID)
		ev.PractitionerID = s.PractitionerID
		ev.PractitionerName = s.PractitionerName
		if s.PractitionerName != "" {
			ev.Title = s.PractitionerName
		}
		events = append(events, ev)
	}
	sortEvents(events)
	return events
}

// NextOccurrence returns the slot's instance in the week of now if it has
// not started yet, otherwise the same weekday one week later.
func NextOccurrence(slot model.WeeklySlot, now time.Time, loc *time.Location) (start, end time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	from, _ := WeekBounds(now, model.Monday, loc)
	start, end = instance(from, int(slot.Weekday), slot.Start, slot.End)
	if !now.Before(start) {
		start, end = instance(from, int(slot.Weekday)+7, slot.Start, slot.End)
	}
	return start, end
}

func sortEvents(events []model.CalendarEvent) {
	slices.SortFunc(events, func(a, b model.CalendarEvent) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
