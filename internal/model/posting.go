package model

import (
	"context"
	"strings"
	"time"
)

// CandidateRecord is a raw job listing handed over by a source adapter.
// It has no identity until the pipeline accepts it.
type CandidateRecord struct {
	Title       string
	Company     string
	Location    string // raw location string as shown by the source
	Description string // plain text, markup already stripped
	Department  string // optional, e.g. "Engineering"
	Source      string // source name (company board) that produced the record
	ATS         string // upstream backend the source talks to
	JobURL      string // direct posting link, may be empty
	CompanyURL  string // company or careers page
	PostedAt    *time.Time
	Remote      bool
}

// FreshnessTier buckets the age of a posting at ingestion time.
type FreshnessTier string

const (
	TierUltraFresh FreshnessTier = "ultra_fresh"
	TierFresh      FreshnessTier = "fresh"
	TierRecent     FreshnessTier = "recent"
	TierStale      FreshnessTier = "stale"
	TierOld        FreshnessTier = "old"
)

// Posting is the persisted, deduplicated representation of a job listing.
type Posting struct {
	IdentityHash string
	Title        string
	Company      string
	Location     string
	Source       string

	// Tags is ordered: the career tag is always first and the location tag second.
	Tags []string

	CanonicalURL       string
	CompanyURL         string
	Description        string
	ExperienceRequired string // "entry_level" or "uncertain"
	WorkEnvironment    string // "remote", "hybrid" or "on_site"

	PostedAt    time.Time
	FirstSeenAt time.Time
	LastSeenAt  time.Time
	IsActive    bool

	FreshnessTier FreshnessTier
	SourceRunID   string
}

// CategoriesSeparator joins tags in the persisted categories column.
const CategoriesSeparator = "|"

// Categories returns the serialized tag set.
func (p Posting) Categories() string {
	return strings.Join(p.Tags, CategoriesSeparator)
}

// ParseCategories splits a persisted categories string back into tags.
func ParseCategories(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, CategoriesSeparator)
}

// CareerTag returns the career tag, which is positionally first.
func (p Posting) CareerTag() string {
	if len(p.Tags) == 0 {
		return ""
	}
	return p.Tags[0]
}

// LocationTag returns the location tag, which is positionally second.
func (p Posting) LocationTag() string {
	if len(p.Tags) < 2 {
		return ""
	}
	return p.Tags[1]
}

// HasTag reports whether the posting carries the exact tag.
func (p Posting) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Source adapters produce candidate records for one upstream board.
type Source interface {
	Name() string
	ATS() string
	Fetch(ctx context.Context) ([]CandidateRecord, error)
}

// PostingStore is the keyed upsert surface. Writes are keyed by IdentityHash.
type PostingStore interface {
	UpsertPosting(ctx context.Context, p Posting) (inserted bool, err error)
}

// PostingLister reads stored postings back for operator tooling.
type PostingLister interface {
	ListPostings(ctx context.Context, source string, limit int) ([]Posting, error)
	ListSources(ctx context.Context) ([]string, error)
}
