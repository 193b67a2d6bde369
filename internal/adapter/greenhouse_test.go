package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const greenhouseFixture = `{
  "jobs": [
    {
      "id": 101,
      "title": "Marketing Intern",
      "location": {"name": "Madrid, Spain"},
      "absolute_url": "https://boards.greenhouse.io/acme/jobs/101",
      "updated_at": "2026-10-17T09:00:00-04:00",
      "first_published": "2026-10-16T09:00:00-04:00",
      "content": "&lt;p&gt;Join our &lt;strong&gt;growth&lt;/strong&gt; team.&lt;/p&gt;",
      "departments": [{"name": "Marketing"}]
    },
    {
      "id": 102,
      "title": "Junior Data Analyst",
      "location": {"name": "Remote - EU"},
      "absolute_url": "https://boards.greenhouse.io/acme/jobs/102",
      "updated_at": "2026-10-01T12:00:00Z",
      "content": "",
      "departments": []
    }
  ]
}`

func TestGreenhouseAdapter_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/boards/acme/jobs" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("content") != "true" {
			t.Errorf("expected content=true, got %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(greenhouseFixture))
	}))
	defer srv.Close()

	a := NewGreenhouseAdapter(Board{Name: "acme", Company: "Acme", Token: "acme", CareersURL: "https://acme.example/careers"}, newTestClient(t, srv))

	if a.Name() != "acme" || a.ATS() != "greenhouse" {
		t.Fatalf("Name/ATS = %q/%q", a.Name(), a.ATS())
	}

	records, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	first := records[0]
	if first.Title != "Marketing Intern" || first.Company != "Acme" {
		t.Errorf("unexpected title/company: %q / %q", first.Title, first.Company)
	}
	if first.Location != "Madrid, Spain" {
		t.Errorf("Location = %q", first.Location)
	}
	if first.Department != "Marketing" {
		t.Errorf("Department = %q", first.Department)
	}
	if first.Description != "Join our growth team." {
		t.Errorf("Description = %q", first.Description)
	}
	if first.Source != "acme" || first.ATS != "greenhouse" {
		t.Errorf("Source/ATS = %q/%q", first.Source, first.ATS)
	}
	if first.CompanyURL != "https://acme.example/careers" {
		t.Errorf("CompanyURL = %q", first.CompanyURL)
	}
	if first.Remote {
		t.Error("first record should not be remote")
	}
	wantPosted := time.Date(2026, 10, 16, 13, 0, 0, 0, time.UTC)
	if first.PostedAt == nil || !first.PostedAt.Equal(wantPosted) {
		t.Errorf("PostedAt = %v, want first_published %v", first.PostedAt, wantPosted)
	}

	second := records[1]
	if !second.Remote {
		t.Error("second record should be remote")
	}
	if second.Department != "" {
		t.Errorf("Department = %q, want empty", second.Department)
	}
	if second.PostedAt == nil || second.PostedAt.Day() != 1 {
		t.Errorf("PostedAt = %v, want updated_at fallback", second.PostedAt)
	}
}

func TestGreenhouseAdapter_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	a := NewGreenhouseAdapter(Board{Name: "missing", Token: "missing"}, newTestClient(t, srv))
	_, err := a.Fetch(context.Background())
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if !strings.Contains(err.Error(), "greenhouse fetch for missing") {
		t.Errorf("error should name the board: %v", err)
	}
}

func TestGreenhouseAdapter_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	a := NewGreenhouseAdapter(Board{Name: "acme", Token: "acme"}, newTestClient(t, srv))
	if _, err := a.Fetch(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestGreenhouseAdapter_CompanyFallsBackToName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jobs":[{"id":1,"title":"Intern","location":{"name":"Berlin"}}]}`))
	}))
	defer srv.Close()

	a := NewGreenhouseAdapter(Board{Name: "globex", Token: "globex"}, newTestClient(t, srv))
	records, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if records[0].Company != "globex" {
		t.Errorf("Company = %q, want board name", records[0].Company)
	}
	if records[0].PostedAt != nil {
		t.Errorf("PostedAt = %v, want nil", records[0].PostedAt)
	}
}
