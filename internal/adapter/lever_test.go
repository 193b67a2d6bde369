package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const leverFixture = `[
  {
    "id": "abc",
    "text": "Graduate Software Engineer",
    "descriptionPlain": "Build things with us.",
    "categories": {"department": "Engineering", "location": "Berlin", "allLocations": ["Berlin", "Munich"]},
    "createdAt": 1760601600000,
    "workplaceType": "hybrid",
    "hostedUrl": "https://jobs.lever.co/acme/abc"
  },
  {
    "id": "def",
    "text": "Sales Associate",
    "description": "<p>Talk to <em>customers</em></p>",
    "categories": {"location": "Anywhere"},
    "workplaceType": "remote",
    "applyUrl": "https://jobs.lever.co/acme/def/apply"
  }
]`

func TestLeverAdapter_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v0/postings/acme" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("mode") != "json" {
			t.Errorf("expected mode=json, got %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(leverFixture))
	}))
	defer srv.Close()

	a := NewLeverAdapter(Board{Name: "acme-lever", Company: "Acme", Token: "acme"}, newTestClient(t, srv))
	if a.ATS() != "lever" {
		t.Fatalf("ATS = %q", a.ATS())
	}

	records, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	first := records[0]
	if first.Location != "Berlin, Munich" {
		t.Errorf("Location = %q, want allLocations joined", first.Location)
	}
	if first.Description != "Build things with us." {
		t.Errorf("Description = %q", first.Description)
	}
	if first.Department != "Engineering" {
		t.Errorf("Department = %q", first.Department)
	}
	if first.JobURL != "https://jobs.lever.co/acme/abc" {
		t.Errorf("JobURL = %q", first.JobURL)
	}
	if first.Remote {
		t.Error("hybrid posting should not be remote")
	}
	if first.PostedAt == nil || !first.PostedAt.Equal(time.UnixMilli(1760601600000)) {
		t.Errorf("PostedAt = %v", first.PostedAt)
	}

	second := records[1]
	if !second.Remote {
		t.Error("workplaceType remote should set Remote")
	}
	if second.Description != "Talk to customers" {
		t.Errorf("Description = %q, want HTML stripped", second.Description)
	}
	if second.JobURL != "https://jobs.lever.co/acme/def/apply" {
		t.Errorf("JobURL = %q, want applyUrl fallback", second.JobURL)
	}
	if second.PostedAt != nil {
		t.Errorf("PostedAt = %v, want nil", second.PostedAt)
	}
}

func TestLeverAdapter_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := NewLeverAdapter(Board{Name: "acme", Token: "acme"}, newTestClient(t, srv))
	if _, err := a.Fetch(context.Background()); err == nil {
		t.Fatal("expected error for 500")
	}
}
