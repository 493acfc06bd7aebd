package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chorebank/internal/model"
)

func testInstance() *model.ChoreInstance {
	return &model.ChoreInstance{
		ID:   1,
		Date: time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestPublishInstance(t *testing.T) {
	var got eventRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/events" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(eventResponse{ID: "evt-123"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	id, err := c.PublishInstance(context.Background(), testInstance(), "Make bed", "Theo", model.TimeMorning)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if id != "evt-123" {
		t.Errorf("event id = %q, want evt-123", id)
	}
	if got.Title != "Make bed" || got.ChildName != "Theo" {
		t.Errorf("request = %+v", got)
	}
	if got.Date != "2026-03-02" {
		t.Errorf("date = %q, want 2026-03-02", got.Date)
	}
}

func TestPublishRetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(eventResponse{ID: "evt-retry"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	id, err := c.PublishInstance(context.Background(), testInstance(), "Make bed", "Theo", model.TimeAnytime)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if id != "evt-retry" {
		t.Errorf("event id = %q", id)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestPublishDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.PublishInstance(context.Background(), testInstance(), "Make bed", "Theo", model.TimeAnytime); err == nil {
		t.Fatal("expected error for 400 response")
	}
	if calls != 1 {
		t.Errorf("calls = %d, client errors must not be retried", calls)
	}
}

func TestDisabledClientIsNoop(t *testing.T) {
	c := NewClient("")
	if c.Enabled() {
		t.Error("client with no URL should be disabled")
	}
	id, err := c.PublishInstance(context.Background(), testInstance(), "Make bed", "Theo", model.TimeAnytime)
	if err != nil {
		t.Fatalf("publish on disabled client: %v", err)
	}
	if id != "" {
		t.Errorf("event id = %q, want empty", id)
	}
	if err := c.DeleteEvent(context.Background(), "evt-1"); err != nil {
		t.Fatalf("delete on disabled client: %v", err)
	}
}

func TestDeleteEventMissingIsOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if err := c.DeleteEvent(context.Background(), "evt-gone"); err != nil {
		t.Fatalf("delete missing event: %v", err)
	}
}
