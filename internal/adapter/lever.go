package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/amishk599/firstrung/internal/fetch"
	"github.com/amishk599/firstrung/internal/model"
)

const (
	leverBaseURL = "https://api.lever.co/v0/postings"
	atsLever     = "lever"
)

// leverCategories represents the categories object in a Lever job.
type leverCategories struct {
	Team         string   `json:"team"`
	Department   string   `json:"department"`
	Location     string   `json:"location"`
	Commitment   string   `json:"commitment"`
	AllLocations []string `json:"allLocations"`
}

// leverJob represents a single job in the Lever API response.
type leverJob struct {
	ID               string          `json:"id"`
	Text             string          `json:"text"`
	Description      string          `json:"description"`
	DescriptionPlain string          `json:"descriptionPlain"`
	Categories       leverCategories `json:"categories"`
	CreatedAt        int64           `json:"createdAt"`
	WorkplaceType    string          `json:"workplaceType"`
	HostedURL        string          `json:"hostedUrl"`
	ApplyURL         string          `json:"applyUrl"`
}

// LeverAdapter fetches postings from the Lever public postings API.
type LeverAdapter struct {
	board  Board
	client *fetch.Client
}

// NewLeverAdapter creates a new adapter for a Lever board.
func NewLeverAdapter(board Board, client *fetch.Client) *LeverAdapter {
	return &LeverAdapter{board: board, client: client}
}

func (a *LeverAdapter) Name() string { return a.board.Name }
func (a *LeverAdapter) ATS() string  { return atsLever }

// Fetch retrieves every posting on the board.
func (a *LeverAdapter) Fetch(ctx context.Context) ([]model.CandidateRecord, error) {
	url := fmt.Sprintf("%s/%s?mode=json", leverBaseURL, a.board.Token)

	body, err := a.client.Get(ctx, atsLever, url)
	if err != nil {
		return nil, fmt.Errorf("lever fetch for %s: %w", a.board.Token, err)
	}

	var leverJobs []leverJob
	if err := json.Unmarshal(body, &leverJobs); err != nil {
		return nil, fmt.Errorf("lever decode for %s: %w", a.board.Token, err)
	}

	records := make([]model.CandidateRecord, 0, len(leverJobs))
	for _, lj := range leverJobs {
		// Prefer allLocations if available, fall back to location.
		location := lj.Categories.Location
		if len(lj.Categories.AllLocations) > 0 {
			location = strings.Join(lj.Categories.AllLocations, ", ")
		}

		description := lj.DescriptionPlain
		if description == "" {
			description = extractText(lj.Description)
		}

		jobURL := lj.HostedURL
		if jobURL == "" {
			jobURL = lj.ApplyURL
		}

		rec := model.CandidateRecord{
			Title:       lj.Text,
			Company:     a.board.company(),
			Location:    location,
			Description: description,
			Department:  lj.Categories.Department,
			Source:      a.board.Name,
			ATS:         atsLever,
			JobURL:      jobURL,
			CompanyURL:  a.board.CareersURL,
			Remote:      strings.EqualFold(lj.WorkplaceType, "remote") || looksRemote(location),
		}

		// createdAt is Unix milliseconds.
		if lj.CreatedAt > 0 {
			t := time.UnixMilli(lj.CreatedAt)
			rec.PostedAt = &t
		}

		records = append(records, rec)
	}

	return records, nil
}
