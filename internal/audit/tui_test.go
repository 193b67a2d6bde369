package audit

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"

	"github.com/amishk599/firstrung/internal/model"
)

func posting(hash, title string, seen time.Time, tags ...string) model.Posting {
	return model.Posting{
		IdentityHash:  hash,
		Title:         title,
		Location:      "Madrid, Spain",
		Source:        "acme",
		Tags:          tags,
		FirstSeenAt:   seen,
		LastSeenAt:    seen,
		IsActive:      true,
		FreshnessTier: model.TierFresh,
		Description:   "Join our marketing team as an intern.",
	}
}

func TestNeedsReview(t *testing.T) {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		p    model.Posting
		want bool
	}{
		{"settled", posting("a", "Intern", base, "early-career", "loc:spain"), false},
		{"unknown location", posting("b", "Intern", base, "early-career", "loc:unknown"), true},
		{"uncertain eligibility", posting("c", "Analyst", base, "early-career", "loc:spain", "eligibility:uncertain"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NeedsReview(tt.p); got != tt.want {
				t.Errorf("NeedsReview() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewAuditModel_SortsAndSplits(t *testing.T) {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	m := newAuditModel([]model.Posting{
		posting("old", "Old Intern", base, "early-career", "loc:spain"),
		posting("new", "New Analyst", base.Add(48*time.Hour), "early-career", "loc:unknown"),
		posting("mid", "Mid Intern", base.Add(24*time.Hour), "early-career", "loc:spain", "eligibility:uncertain"),
	})

	var all, review []string
	for _, p := range m.all {
		all = append(all, p.IdentityHash)
	}
	for _, p := range m.review {
		review = append(review, p.IdentityHash)
	}
	if diff := cmp.Diff([]string{"new", "mid", "old"}, all); diff != "" {
		t.Errorf("all order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"new", "mid"}, review); diff != "" {
		t.Errorf("review mismatch (-want +got):\n%s", diff)
	}
}

func TestAuditModel_NavigateAndOpenDetail(t *testing.T) {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	var tm tea.Model = newAuditModel([]model.Posting{
		posting("a", "Marketing Intern", base.Add(time.Hour), "early-career", "loc:spain", "dept:marketing"),
		posting("b", "Data Analyst", base, "early-career", "loc:unknown"),
	})

	tm, _ = tm.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	tm, _ = tm.Update(tea.KeyMsg{Type: tea.KeyDown})
	tm, _ = tm.Update(tea.KeyMsg{Type: tea.KeyEnter})

	m := tm.(auditModel)
	if m.view != viewDetail {
		t.Fatalf("view = %v, want detail", m.view)
	}
	if m.detail.IdentityHash != "b" {
		t.Errorf("detail = %q, want b", m.detail.IdentityHash)
	}
	out := m.renderDetail()
	for _, want := range []string{"Data Analyst", "loc:unknown", "fresh"} {
		if !strings.Contains(out, want) {
			t.Errorf("detail missing %q", want)
		}
	}

	tm, _ = tm.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if tm.(auditModel).view != viewList {
		t.Error("esc should return to the list")
	}
}

func TestAuditModel_QuitVersusBack(t *testing.T) {
	m := newAuditModel(nil)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if !next.(auditModel).wantQuit || cmd == nil {
		t.Error("q should quit the audit")
	}
	next, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if next.(auditModel).wantQuit || cmd == nil {
		t.Error("esc should return to the picker")
	}
}

func TestMergeSources(t *testing.T) {
	got := MergeSources(
		[]SourceChoice{{Name: "acme", ATS: "greenhouse"}, {Name: "globex", ATS: "lever"}},
		[]string{"globex", "initech"},
	)
	want := []SourceChoice{
		{Name: "acme", ATS: "greenhouse"},
		{Name: "globex", ATS: "lever"},
		{Name: "initech"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MergeSources mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderTags_Wraps(t *testing.T) {
	out := renderTags([]string{"early-career", "loc:spain", "dept:marketing"}, 20)
	if strings.Count(out, "\n") < 1 {
		t.Errorf("expected wrapped tags, got %q", out)
	}
	if got := renderTags(nil, 20); !strings.Contains(got, "no tags") {
		t.Errorf("renderTags(nil) = %q", got)
	}
}
