package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"sportclub/internal/config"
	"sportclub/internal/database"
	"sportclub/internal/export"
	"sportclub/internal/models"
	"sportclub/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var nopLogger = zerolog.Nop()

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.NewDB(":memory:", &nopLogger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, db.UpsertClub(ctx, &models.Club{ID: 1, Name: "TSV Nord", Timezone: "Europe/Berlin"}))
	require.NoError(t, db.UpsertClub(ctx, &models.Club{ID: 2, Name: "Harbour FC", Timezone: "UTC"}))
	return db
}

func newTestServices(t *testing.T, db *database.DB, enforce bool) *Services {
	t.Helper()
	facilities := service.NewFacilityService(db, nil, &nopLogger)
	bookings := service.NewBookingService(db, facilities, nil, nil, enforce, &nopLogger)
	return &Services{
		Availability: service.NewAvailabilityService(db, facilities, &nopLogger),
		Facilities:   facilities,
		Bookings:     bookings,
		Calendar:     service.NewCalendarService(db, bookings, &nopLogger),
		Clubs:        service.NewClubService(db, &nopLogger),
		Exporter:     export.NewScheduleExporter(db, t.TempDir(), &nopLogger),
	}
}

func openConfig() config.APIConfig {
	return config.APIConfig{Enabled: true, HTTP: config.APIHTTPConfig{Enabled: true}}
}

type testAPI struct {
	db  *database.DB
	url string
}

func newTestAPI(t *testing.T, cfg config.APIConfig, enforce bool) *testAPI {
	t.Helper()
	db := newTestDB(t)
	srv := NewHTTPServer(&cfg, newTestServices(t, db, enforce), db, &nopLogger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testAPI{db: db, url: ts.URL}
}

// do sends body as JSON and decodes a JSON answer into out when out is non-nil.
func (a *testAPI) do(t *testing.T, method, path string, body, out any, headers ...string) *http.Response {
	t.Helper()
	var rd io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.url+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func (a *testAPI) createFacility(t *testing.T, clubID int64, name string, max int) models.Facility {
	t.Helper()
	var f models.Facility
	resp := a.do(t, http.MethodPost, "/api/v1/clubs/"+itoa(clubID)+"/facilities",
		map[string]any{"name": name, "maxConcurrentBookings": max}, &f)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return f
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }
