package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sportclub/internal/export"
	"sportclub/internal/models"
	"sportclub/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *HTTPServer) routes(mux *http.ServeMux) {
	s.handle(mux, "POST /api/v1/availability", permReadAvailability, s.handleCheckAvailability)
	s.handle(mux, "POST /api/v1/availability/bulk", permReadAvailability, s.handleCheckAvailabilityBulk)

	s.handle(mux, "GET /api/v1/clubs", permReadClubs, s.handleListClubs)
	s.handle(mux, "GET /api/v1/clubs/{clubID}", permReadClubs, s.handleGetClub)

	s.handle(mux, "GET /api/v1/clubs/{clubID}/facilities", permReadFacilities, s.handleListFacilities)
	s.handle(mux, "POST /api/v1/clubs/{clubID}/facilities", permWriteFacilities, s.handleCreateFacility)
	s.handle(mux, "GET /api/v1/facilities/{id}", permReadFacilities, s.handleGetFacility)
	s.handle(mux, "PUT /api/v1/facilities/{id}", permWriteFacilities, s.handleUpdateFacility)

	s.handle(mux, "GET /api/v1/clubs/{clubID}/bookings", permReadBookings, s.handleListBookings)
	s.handle(mux, "POST /api/v1/clubs/{clubID}/bookings", permWriteBookings, s.handleCreateBooking)
	s.handle(mux, "GET /api/v1/bookings/{id}", permReadBookings, s.handleGetBooking)
	s.handle(mux, "PATCH /api/v1/bookings/{id}", permWriteBookings, s.handleUpdateBooking)
	s.handle(mux, "DELETE /api/v1/bookings/{id}", permWriteBookings, s.handleDeleteBooking)
	s.handle(mux, "POST /api/v1/bookings/{id}/status", permWriteBookings, s.handleToggleStatus)
	s.handle(mux, "POST /api/v1/bookings/{id}/reschedule", permWriteBookings, s.handleReschedule)

	s.handle(mux, "GET /api/v1/clubs/{clubID}/calendar", permReadCalendar, s.handleDayLayout)

	s.handle(mux, "GET /api/v1/clubs/{clubID}/teams", permReadClubs, s.handleListTeams)
	s.handle(mux, "POST /api/v1/clubs/{clubID}/teams", permWriteClubs, s.handleCreateTeam)
	s.handle(mux, "GET /api/v1/clubs/{clubID}/members", permReadClubs, s.handleListMembers)
	s.handle(mux, "POST /api/v1/clubs/{clubID}/members", permWriteClubs, s.handleCreateMember)
	s.handle(mux, "GET /api/v1/members/{id}", permReadClubs, s.handleGetMember)

	s.handle(mux, "GET /api/v1/clubs/{clubID}/exports/schedule", permExportSchedule, s.handleExportSchedule)
}

func (s *HTTPServer) handleCheckAvailability(w http.ResponseWriter, r *http.Request) {
	var q models.AvailabilityQuery
	if err := decodeBody(r, &q); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.svc.Availability.Check(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleCheckAvailabilityBulk(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Queries []models.AvailabilityQuery `json:"queries"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if len(body.Queries) == 0 {
		writeError(w, r, fmt.Errorf("%w: queries is required", service.ErrValidation))
		return
	}
	results, err := s.svc.Availability.CheckBulk(r.Context(), body.Queries)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *HTTPServer) handleListClubs(w http.ResponseWriter, r *http.Request) {
	clubs, err := s.svc.Clubs.ListClubs(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"clubs": clubs})
}

func (s *HTTPServer) handleGetClub(w http.ResponseWriter, r *http.Request) {
	clubID, err := pathID(r, "clubID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	club, err := s.svc.Clubs.GetClub(r.Context(), clubID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, club)
}

func (s *HTTPServer) handleListFacilities(w http.ResponseWriter, r *http.Request) {
	clubID, err := pathID(r, "clubID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.svc.Clubs.GetClub(r.Context(), clubID); err != nil {
		writeError(w, r, err)
		return
	}
	facilities, err := s.svc.Facilities.List(r.Context(), clubID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"facilities": facilities})
}

func (s *HTTPServer) handleCreateFacility(w http.ResponseWriter, r *http.Request) {
	clubID, err := pathID(r, "clubID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var f models.Facility
	if err := decodeBody(r, &f); err != nil {
		writeError(w, r, err)
		return
	}
	f.ClubID = clubID
	if err := s.svc.Facilities.Create(r.Context(), &f); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, &f)
}

func (s *HTTPServer) handleGetFacility(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := s.svc.Facilities.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *HTTPServer) handleUpdateFacility(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var f models.Facility
	if err := decodeBody(r, &f); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := s.svc.Facilities.Update(r.Context(), id, &f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	clubID, err := pathID(r, "clubID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	club, err := s.svc.Clubs.GetClub(r.Context(), clubID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	query := r.URL.Query()
	filter := models.BookingFilter{ClubID: clubID}
	if filter.FacilityID, err = queryID(r, "facilityId"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.From, err = queryTime(query.Get("from"), "from", club.Location()); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.To, err = queryTime(query.Get("to"), "to", club.Location()); err != nil {
		writeError(w, r, err)
		return
	}

	bookings, err := s.svc.Bookings.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	clubID, err := pathID(r, "clubID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var b models.Booking
	if err := decodeBody(r, &b); err != nil {
		writeError(w, r, err)
		return
	}
	b.ID = 0
	b.ClubID = clubID
	if err := s.svc.Bookings.Create(r.Context(), &b); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, &b)
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.svc.Bookings.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *HTTPServer) handleUpdateBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var patch models.BookingPatch
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.svc.Bookings.Update(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *HTTPServer) handleDeleteBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Bookings.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleToggleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.svc.Bookings.ToggleStatus(r.Context(), id, body.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *HTTPServer) handleReschedule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body struct {
		Date string   `json:"date"`
		Hour *float64 `json:"hour,omitempty"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	// the drop date is a calendar day of the booking's club
	current, err := s.svc.Bookings.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	club, err := s.svc.Clubs.GetClub(r.Context(), current.ClubID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	day, err := parseDay(body.Date, club.Location())
	if err != nil {
		writeError(w, r, err)
		return
	}

	b, err := s.svc.Calendar.Reschedule(r.Context(), id, service.DropTarget{Date: day, Hour: body.Hour})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *HTTPServer) handleDayLayout(w http.ResponseWriter, r *http.Request) {
	clubID, err := pathID(r, "clubID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	club, err := s.svc.Clubs.GetClub(r.Context(), clubID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	day, err := parseDay(r.URL.Query().Get("date"), club.Location())
	if err != nil {
		writeError(w, r, err)
		return
	}
	facilityID, err := queryID(r, "facilityId")
	if err != nil {
		writeError(w, r, err)
		return
	}

	layout, err := s.svc.Calendar.DayLayout(r.Context(), clubID, day, facilityID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, layout)
}

func (s *HTTPServer) handleListTeams(w http.ResponseWriter, r *http.Request) {
	clubID, err := pathID(r, "clubID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	teams, err := s.svc.Clubs.ListTeams(r.Context(), clubID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"teams": teams})
}

func (s *HTTPServer) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	clubID, err := pathID(r, "clubID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var team models.Team
	if err := decodeBody(r, &team); err != nil {
		writeError(w, r, err)
		return
	}
	team.ClubID = clubID
	if err := s.svc.Clubs.CreateTeam(r.Context(), &team); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, &team)
}

func (s *HTTPServer) handleListMembers(w http.ResponseWriter, r *http.Request) {
	clubID, err := pathID(r, "clubID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	members, err := s.svc.Clubs.ListMembers(r.Context(), clubID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": members})
}

func (s *HTTPServer) handleCreateMember(w http.ResponseWriter, r *http.Request) {
	clubID, err := pathID(r, "clubID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var m models.Member
	if err := decodeBody(r, &m); err != nil {
		writeError(w, r, err)
		return
	}
	m.ClubID = clubID
	if err := s.svc.Clubs.CreateMember(r.Context(), &m); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, &m)
}

func (s *HTTPServer) handleGetMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := s.svc.Clubs.GetMember(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *HTTPServer) handleExportSchedule(w http.ResponseWriter, r *http.Request) {
	clubID, err := pathID(r, "clubID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	club, err := s.svc.Clubs.GetClub(r.Context(), clubID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	query := r.URL.Query()
	from, err := parseDay(query.Get("from"), club.Location())
	if err != nil {
		writeError(w, r, err)
		return
	}
	to := from
	if raw := query.Get("to"); raw != "" {
		if to, err = parseDay(raw, club.Location()); err != nil {
			writeError(w, r, err)
			return
		}
	}

	// rendered in full first so a failure still gets a JSON error
	var buf bytes.Buffer
	if err := s.svc.Exporter.Write(r.Context(), &buf, clubID, from, to); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(clubID, from, to)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func decodeBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", service.ErrValidation, err)
	}
	return nil
}

func invalidParam(name, value string) error {
	return fmt.Errorf("%w: invalid %s %q", service.ErrValidation, name, value)
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, invalidParam(name, raw)
	}
	return id, nil
}

func queryID(r *http.Request, name string) (*int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, invalidParam(name, raw)
	}
	return &id, nil
}

// queryTime accepts the same forms as parseDay; an empty value means unbounded.
func queryTime(raw, name string, loc *time.Location) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := parseDay(raw, loc)
	if err != nil {
		return nil, invalidParam(name, raw)
	}
	return &t, nil
}
