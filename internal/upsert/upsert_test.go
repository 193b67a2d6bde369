package upsert

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amishk599/firstrung/internal/model"
	"github.com/amishk599/firstrung/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore is an in-memory keyed store that can reject chosen hashes.
type fakeStore struct {
	mu     sync.Mutex
	rows   map[string]model.Posting
	reject map[string]bool
	calls  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]model.Posting), reject: make(map[string]bool)}
}

func (f *fakeStore) UpsertPosting(_ context.Context, p model.Posting) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.reject[p.IdentityHash] {
		return false, errors.New("constraint violation")
	}
	_, exists := f.rows[p.IdentityHash]
	f.rows[p.IdentityHash] = p
	return !exists, nil
}

func posting(hash string, seen time.Time) model.Posting {
	return model.Posting{
		IdentityHash:  hash,
		Title:         "Graduate Engineer " + hash,
		Company:       "Acme",
		Source:        "acme",
		Tags:          []string{"career:software-engineering", "loc:berlin-germany", "early-career"},
		PostedAt:      seen,
		FirstSeenAt:   seen,
		LastSeenAt:    seen,
		IsActive:      true,
		FreshnessTier: model.TierUltraFresh,
	}
}

func TestUpsert_CountsInsertsAndUpdates(t *testing.T) {
	fs := newFakeStore()
	c := NewCoordinator(fs, discardLogger())
	now := time.Now()

	res := c.Upsert(context.Background(), []model.Posting{posting("a", now), posting("b", now)})
	if res.Inserted != 2 || res.Updated != 0 || len(res.Errors) != 0 {
		t.Fatalf("first batch = %+v, want 2 inserted", res)
	}

	res = c.Upsert(context.Background(), []model.Posting{posting("a", now), posting("c", now)})
	if res.Inserted != 1 || res.Updated != 1 {
		t.Errorf("second batch = %+v, want 1 inserted 1 updated", res)
	}
}

func TestUpsert_PartialFailureDoesNotAbortBatch(t *testing.T) {
	fs := newFakeStore()
	fs.reject["b"] = true
	c := NewCoordinator(fs, discardLogger())
	now := time.Now()

	res := c.Upsert(context.Background(), []model.Posting{posting("a", now), posting("b", now), posting("c", now)})

	if res.Inserted != 2 {
		t.Errorf("Inserted = %d, want 2", res.Inserted)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("Errors = %v, want exactly one", res.Errors)
	}
	if !strings.Contains(res.Errors[0], "b") || !strings.Contains(res.Errors[0], "constraint violation") {
		t.Errorf("error message should name the hash and cause: %q", res.Errors[0])
	}
	if fs.calls != 3 {
		t.Errorf("store calls = %d, want 3", fs.calls)
	}
}

func TestUpsert_DuplicateHashInBatchWrittenOnce(t *testing.T) {
	fs := newFakeStore()
	c := NewCoordinator(fs, discardLogger())
	now := time.Now()

	second := posting("a", now.Add(time.Minute))
	second.Title = "updated"
	res := c.Upsert(context.Background(), []model.Posting{posting("a", now), second})

	if res.Inserted != 1 || res.Updated != 0 {
		t.Errorf("result = %+v, want a single insert", res)
	}
	if fs.rows["a"].Title != "updated" {
		t.Errorf("Title = %q, last posting in batch should win", fs.rows["a"].Title)
	}
}

func TestUpsert_CancelledContextRecordsErrors(t *testing.T) {
	fs := newFakeStore()
	c := NewCoordinator(fs, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := c.Upsert(ctx, []model.Posting{posting("a", time.Now())})
	if len(res.Errors) != 1 || fs.calls != 0 {
		t.Errorf("result = %+v calls = %d, want one error and no writes", res, fs.calls)
	}
}

func TestUpsert_IdempotentAgainstSQLite(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "upsert.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()
	c := NewCoordinator(s, discardLogger())

	t0 := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	c.Upsert(ctx, []model.Posting{posting("h", t0)})

	t1 := t0.Add(6 * time.Hour)
	res := c.Upsert(ctx, []model.Posting{posting("h", t1)})
	if res.Inserted != 0 || res.Updated != 1 {
		t.Fatalf("second upsert = %+v, want inserted=0 updated=1", res)
	}

	got, ok, err := s.GetPosting(ctx, "h")
	if err != nil || !ok {
		t.Fatalf("GetPosting: ok=%v err=%v", ok, err)
	}
	if !got.FirstSeenAt.Equal(t0) {
		t.Errorf("FirstSeenAt = %v, want unchanged %v", got.FirstSeenAt, t0)
	}
	if !got.LastSeenAt.Equal(t1) {
		t.Errorf("LastSeenAt = %v, want advanced to %v", got.LastSeenAt, t1)
	}
}
