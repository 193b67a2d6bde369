// Package pipeline turns candidate records from one source into stored
// postings: gate, tag, hash, classify, compose, then upsert.
package pipeline

import (
	"strings"
	"time"

	"github.com/amishk599/firstrung/internal/category"
	"github.com/amishk599/firstrung/internal/eligibility"
	"github.com/amishk599/firstrung/internal/freshness"
	"github.com/amishk599/firstrung/internal/identity"
	"github.com/amishk599/firstrung/internal/location"
	"github.com/amishk599/firstrung/internal/locator"
	"github.com/amishk599/firstrung/internal/model"
	"github.com/amishk599/firstrung/internal/telemetry"
	"github.com/amishk599/firstrung/internal/textutil"
)

// DefaultDescriptionMaxLen bounds stored descriptions when no limit is configured.
const DefaultDescriptionMaxLen = 2000

// Outcome is what happened to one candidate record.
type Outcome int

const (
	// Accepted records produce a posting.
	Accepted Outcome = iota
	// Invalid records lack a title or company and are discarded.
	Invalid
	// Rejected records failed the eligibility gate.
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Invalid:
		return "invalid"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Processor applies the stateless ingestion rules to a single record.
type Processor struct {
	descriptionMaxLen int
}

// NewProcessor creates a processor. descriptionMaxLen <= 0 selects the default.
func NewProcessor(descriptionMaxLen int) *Processor {
	if descriptionMaxLen <= 0 {
		descriptionMaxLen = DefaultDescriptionMaxLen
	}
	return &Processor{descriptionMaxLen: descriptionMaxLen}
}

// Process gates and tags rec and records each funnel stage it reaches. The
// posting is only meaningful when the outcome is Accepted.
func (p *Processor) Process(rec model.CandidateRecord, runID string, now time.Time, funnel *telemetry.Funnel) (model.Posting, Outcome) {
	funnel.RecordRaw()

	title := textutil.CleanText(rec.Title)
	company := textutil.CleanText(rec.Company)
	if title == "" || company == "" {
		return model.Posting{}, Invalid
	}

	decision := eligibility.Classify(title, rec.Description)
	if !decision.Eligible {
		return model.Posting{}, Rejected
	}
	funnel.RecordEligible(title)

	locTags := location.Tag(rec.Location, rec.Remote)
	loc := locTags[0]
	resolved := locator.Resolve(rec.JobURL, rec.CompanyURL, title)

	postedAt, known := freshness.Resolve(rec.PostedAt, now)
	career := category.CareerTag(category.CareerPath(title, rec.Description))

	tags := category.Compose(category.Parts{
		Career:      career,
		Location:    loc,
		Eligibility: decision.Tag(),
		Locator:     resolved.Tags,
		Freshness:   freshness.Tag(known),
		Department:  category.DepartmentTag(rec.Department),
	})

	if !category.IsGeneral(career) {
		funnel.RecordCareerTagged()
	}
	if !location.IsUnknown(loc) {
		funnel.RecordLocationTagged()
	}

	return model.Posting{
		IdentityHash:       identity.Hash(title, company, resolved.URL),
		Title:              title,
		Company:            company,
		Location:           textutil.CleanText(rec.Location),
		Source:             rec.Source,
		Tags:               tags,
		CanonicalURL:       resolved.URL,
		CompanyURL:         locator.Canonicalize(rec.CompanyURL),
		Description:        textutil.Truncate(textutil.CleanText(rec.Description), p.descriptionMaxLen),
		ExperienceRequired: decision.ExperienceRequired(),
		WorkEnvironment:    workEnvironment(rec),
		PostedAt:           postedAt,
		FirstSeenAt:        now,
		LastSeenAt:         now,
		IsActive:           true,
		FreshnessTier:      freshness.Classify(postedAt, now),
		SourceRunID:        runID,
	}, Accepted
}

func workEnvironment(rec model.CandidateRecord) string {
	if rec.Remote {
		return "remote"
	}
	if strings.Contains(strings.ToLower(rec.Location), "hybrid") {
		return "hybrid"
	}
	return "on_site"
}
