package store

import (
	"context"

	"github.com/amishk599/firstrung/internal/model"
)

// NopStore is a no-op store used in dry-run mode. Nothing is persisted, so
// every posting is reported as inserted on every run.
type NopStore struct{}

func NewNopStore() *NopStore { return &NopStore{} }

func (s *NopStore) UpsertPosting(ctx context.Context, p model.Posting) (bool, error) { return true, nil }
func (s *NopStore) MarkInactive(ctx context.Context, source, runID string) (int64, error) {
	return 0, nil
}
