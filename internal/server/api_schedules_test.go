package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"chanplan/internal/models"
)

func TestCreateScheduleAPI(t *testing.T) {
	srv, st := newTestServer(t)
	p := seedProfile(t, st)
	ch := seedChannel(t, st, p.ID)

	body := fmt.Sprintf(`{"name":"nightly","channelId":%d,"timeOfDay":"03:30","daysOfWeek":[1,3,5],"request":{"profileId":%d},"enabled":true}`, ch.ID, p.ID)
	req := httptest.NewRequest(http.MethodPost, "/api/schedules", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var sched models.RunSchedule
	if err := json.NewDecoder(w.Body).Decode(&sched); err != nil {
		t.Fatal(err)
	}
	if sched.ID == 0 {
		t.Fatal("expected ID")
	}
	if sched.Request.Iterations != models.DefaultIterations {
		t.Fatalf("expected default iterations applied, got %d", sched.Request.Iterations)
	}
}

func TestCreateScheduleValidationAPI(t *testing.T) {
	srv, st := newTestServer(t)
	p := seedProfile(t, st)
	ch := seedChannel(t, st, p.ID)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"empty name", fmt.Sprintf(`{"name":"","channelId":%d,"timeOfDay":"03:30","request":{"profileId":%d}}`, ch.ID, p.ID), http.StatusBadRequest},
		{"bad clock", fmt.Sprintf(`{"name":"x","channelId":%d,"timeOfDay":"25:00","request":{"profileId":%d}}`, ch.ID, p.ID), http.StatusBadRequest},
		{"bad day", fmt.Sprintf(`{"name":"x","channelId":%d,"timeOfDay":"03:30","daysOfWeek":[9],"request":{"profileId":%d}}`, ch.ID, p.ID), http.StatusBadRequest},
		{"no request profile", fmt.Sprintf(`{"name":"x","channelId":%d,"timeOfDay":"03:30","request":{}}`, ch.ID), http.StatusBadRequest},
		{"unknown channel", fmt.Sprintf(`{"name":"x","channelId":777,"timeOfDay":"03:30","request":{"profileId":%d}}`, p.ID), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/schedules", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			srv.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestListSchedulesAPI(t *testing.T) {
	srv, st := newTestServer(t)
	p := seedProfile(t, st)
	ch := seedChannel(t, st, p.ID)
	sched := &models.RunSchedule{
		Name:      "weekly",
		ChannelID: ch.ID,
		TimeOfDay: "04:00",
		Request:   models.ProgrammingRequest{ProfileID: p.ID},
		Enabled:   true,
	}
	if err := st.CreateSchedule(sched); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/schedules", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var schedules []models.RunSchedule
	if err := json.NewDecoder(w.Body).Decode(&schedules); err != nil {
		t.Fatal(err)
	}
	if len(schedules) != 1 || schedules[0].Name != "weekly" {
		t.Fatalf("unexpected schedules: %+v", schedules)
	}
}

func TestUpdateScheduleAPI(t *testing.T) {
	srv, st := newTestServer(t)
	p := seedProfile(t, st)
	ch := seedChannel(t, st, p.ID)
	sched := &models.RunSchedule{
		Name:      "weekly",
		ChannelID: ch.ID,
		TimeOfDay: "04:00",
		Request:   models.ProgrammingRequest{ProfileID: p.ID},
		Enabled:   true,
	}
	if err := st.CreateSchedule(sched); err != nil {
		t.Fatal(err)
	}

	body := fmt.Sprintf(`{"name":"weekly","channelId":%d,"timeOfDay":"05:15","request":{"profileId":%d},"enabled":false}`, ch.ID, p.ID)
	req := httptest.NewRequest(http.MethodPut, fmt.Sprintf("/api/schedules/%d", sched.ID), strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	got, err := st.GetSchedule(sched.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TimeOfDay != "05:15" || got.Enabled {
		t.Fatalf("update not applied: %+v", got)
	}
}

func TestDeleteScheduleAPI(t *testing.T) {
	srv, st := newTestServer(t)
	p := seedProfile(t, st)
	ch := seedChannel(t, st, p.ID)
	sched := &models.RunSchedule{
		Name:      "weekly",
		ChannelID: ch.ID,
		TimeOfDay: "04:00",
		Request:   models.ProgrammingRequest{ProfileID: p.ID},
	}
	if err := st.CreateSchedule(sched); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/schedules/%d", sched.ID), nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
}
