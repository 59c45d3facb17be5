package handlers

import (
	"io"
	"net/http"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/slotbook/slotbook/libs/httpx"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/calendar"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/model"
)

type createSlotsRequest struct {
	Weekday      *int   `json:"weekday" validate:"required,min=0,max=6"`
	StartTime    string `json:"startTime" validate:"required,hhmm"`
	EndTime      string `json:"endTime" validate:"omitempty,hhmm"`
	Blocks       int    `json:"blocks"`
	BlockMinutes int    `json:"blockMinutes"`
}

type deleteSlotRequest struct {
	SlotID string `json:"slotId" validate:"required"`
}

// week reads ?date=YYYY-MM-DD and ?weekStart=monday|sunday. The date
// defaults to today in the service time zone.
func (h *Handler) week(r *http.Request) (time.Time, calendar.Options, error) {
	q := r.URL.Query()
	opts := calendar.Options{Location: h.loc}
	ref := h.now().In(h.loc)
	if raw := strings.TrimSpace(q.Get("date")); raw != "" {
		d, err := time.ParseInLocation(time.DateOnly, raw, h.loc)
		if err != nil {
			return time.Time{}, opts, &model.ValidationError{Field: "date", Message: "must be YYYY-MM-DD"}
		}
		ref = d
	}
	switch strings.ToLower(strings.TrimSpace(q.Get("weekStart"))) {
	case "", "monday":
		opts.WeekStart = model.Monday
	case "sunday":
		opts.WeekStart = model.Sunday
	default:
		return time.Time{}, opts, &model.ValidationError{Field: "weekStart", Message: "must be monday or sunday"}
	}
	return ref, opts, nil
}

func (h *Handler) practitionerWeek(w http.ResponseWriter, r *http.Request) ([]model.CalendarEvent, bool) {
	practitionerID, ok := h.practitioner(w, r)
	if !ok {
		return nil, false
	}
	ref, opts, err := h.week(r)
	if err != nil {
		writeError(w, r, h.logger, "calendar", err)
		return nil, false
	}
	slots, err := h.slots.ListSlots(r.Context(), practitionerID)
	if err != nil {
		writeError(w, r, h.logger, "calendar", err)
		return nil, false
	}
	return calendar.ProjectWeek(slots, ref, opts), true
}

func (h *Handler) Calendar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	events, ok := h.practitionerWeek(w, r)
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, events)
}

// CalendarICS renders the same week as an iCalendar feed.
func (h *Handler) CalendarICS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	events, ok := h.practitionerWeek(w, r)
	if !ok {
		return
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//slotbook//scheduling-service//EN")
	stamp := h.now().UTC()
	for _, e := range events {
		ev := cal.AddEvent(e.ID + "-" + e.Start.UTC().Format("20060102") + "@slotbook")
		ev.SetDtStampTime(stamp)
		ev.SetStartAt(e.Start)
		ev.SetEndAt(e.End)
		ev.SetSummary(e.Title)
		ev.SetProperty(ics.ComponentProperty("COLOR"), e.ColorTag)
		if e.IsReserved {
			ev.SetProperty(ics.ComponentPropertyStatus, "CONFIRMED")
		} else {
			ev.SetProperty(ics.ComponentPropertyStatus, "TENTATIVE")
		}
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, cal.Serialize())
}

// Slots lists the caller's slots on GET and creates one slot or a batch of
// blocks on POST.
func (h *Handler) Slots(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listSlots(w, r)
	case http.MethodPost:
		h.createSlots(w, r)
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

func (h *Handler) listSlots(w http.ResponseWriter, r *http.Request) {
	practitionerID, ok := h.practitioner(w, r)
	if !ok {
		return
	}
	slots, err := h.slots.ListSlots(r.Context(), practitionerID)
	if err != nil {
		writeError(w, r, h.logger, "list slots", err)
		return
	}
	if slots == nil {
		slots = []model.WeeklySlot{}
	}
	httpx.WriteJSON(w, http.StatusOK, slots)
}

func (h *Handler) createSlots(w http.ResponseWriter, r *http.Request) {
	practitionerID, ok := h.practitioner(w, r)
	if !ok {
		return
	}

	var req createSlotsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, r, h.logger, "create slots", err)
		return
	}
	switch {
	case req.EndTime == "" && req.Blocks == 0:
		writeError(w, r, h.logger, "create slots", &model.ValidationError{Field: "endTime", Message: "endTime or blocks is required"})
		return
	case req.EndTime != "" && req.Blocks != 0:
		writeError(w, r, h.logger, "create slots", &model.ValidationError{Field: "blocks", Message: "cannot be combined with endTime"})
		return
	case req.EndTime != "" && req.BlockMinutes != 0:
		writeError(w, r, h.logger, "create slots", &model.ValidationError{Field: "blockMinutes", Message: "cannot be combined with endTime"})
		return
	}

	weekday := model.Weekday(*req.Weekday)
	start, _ := model.ParseTimeOfDay(req.StartTime)

	var created []model.WeeklySlot
	if req.Blocks != 0 {
		batch, err := h.slots.CreateSlotsBatch(r.Context(), practitionerID, weekday, start, req.Blocks, req.BlockMinutes)
		if err != nil {
			writeError(w, r, h.logger, "create slots", err)
			return
		}
		created = batch
	} else {
		end, _ := model.ParseTimeOfDay(req.EndTime)
		slot, err := h.slots.CreateSlot(r.Context(), practitionerID, weekday, start, end)
		if err != nil {
			writeError(w, r, h.logger, "create slots", err)
			return
		}
		created = []model.WeeklySlot{slot}
	}

	ids := make([]string, 0, len(created))
	for _, s := range created {
		ids = append(ids, s.ID)
	}
	httpx.WriteJSON(w, http.StatusCreated, slotsCreated{Success: true, EventIDs: ids})
}

func (h *Handler) DeleteSlot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	practitionerID, ok := h.practitioner(w, r)
	if !ok {
		return
	}

	var req deleteSlotRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, r, h.logger, "delete slot", err)
		return
	}
	if err := h.slots.DeleteSlot(r.Context(), req.SlotID, practitionerID); err != nil {
		writeError(w, r, h.logger, "delete slot", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, done{Success: true})
}

// PublicAvailability is the unauthenticated cross-practitioner view of
// open slots.
func (h *Handler) PublicAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	ref, opts, err := h.week(r)
	if err != nil {
		writeError(w, r, h.logger, "public availability", err)
		return
	}
	available, err := h.slots.ListAvailable(r.Context())
	if err != nil {
		writeError(w, r, h.logger, "public availability", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, calendar.ProjectPublic(available, ref, opts))
}
