// Package upsert writes batches of postings to a store keyed by identity hash.
package upsert

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/amishk599/firstrung/internal/model"
)

// Result summarizes one batch. Errors holds one message per rejected posting.
type Result struct {
	Inserted int
	Updated  int
	Errors   []string
}

// Coordinator is the only path from the pipeline to the store.
type Coordinator struct {
	store  model.PostingStore
	logger *slog.Logger
}

// NewCoordinator creates a coordinator over store.
func NewCoordinator(store model.PostingStore, logger *slog.Logger) *Coordinator {
	return &Coordinator{store: store, logger: logger}
}

// Upsert writes every posting in order. A rejected posting is recorded in the
// result and the remaining postings are still written. Postings sharing a hash
// within the batch are written once, last one wins.
func (c *Coordinator) Upsert(ctx context.Context, postings []model.Posting) Result {
	var res Result

	for _, p := range dedupe(postings) {
		if err := ctx.Err(); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", p.IdentityHash, err))
			continue
		}

		inserted, err := c.store.UpsertPosting(ctx, p)
		if err != nil {
			c.logger.Error("upsert failed",
				"source", p.Source,
				"hash", p.IdentityHash,
				"title", p.Title,
				"error", err,
			)
			res.Errors = append(res.Errors, fmt.Sprintf("%s (%s): %v", p.IdentityHash, p.Title, err))
			continue
		}
		if inserted {
			res.Inserted++
		} else {
			res.Updated++
		}
	}

	return res
}

func dedupe(postings []model.Posting) []model.Posting {
	index := make(map[string]int, len(postings))
	out := make([]model.Posting, 0, len(postings))
	for _, p := range postings {
		if i, ok := index[p.IdentityHash]; ok {
			out[i] = p
			continue
		}
		index[p.IdentityHash] = len(out)
		out = append(out, p)
	}
	return out
}
