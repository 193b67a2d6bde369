package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amishk599/firstrung/internal/fetch"
	"github.com/amishk599/firstrung/internal/model"
)

const (
	ashbyBaseURL = "https://api.ashbyhq.com/posting-api/job-board"
	atsAshby     = "ashby"
)

// ashbyJob represents a single job in the Ashby API response.
type ashbyJob struct {
	Title            string `json:"title"`
	Location         string `json:"location"`
	Department       string `json:"department"`
	JobUrl           string `json:"jobUrl"`
	PublishedAt      string `json:"publishedAt"`
	IsListed         bool   `json:"isListed"`
	IsRemote         bool   `json:"isRemote"`
	DescriptionPlain string `json:"descriptionPlain"`
	DescriptionHTML  string `json:"descriptionHtml"`
}

// ashbyResponse is the top-level Ashby job board API response.
type ashbyResponse struct {
	Jobs []ashbyJob `json:"jobs"`
}

// AshbyAdapter fetches postings from the Ashby public job board API.
type AshbyAdapter struct {
	board  Board
	client *fetch.Client
}

// NewAshbyAdapter creates a new adapter for an Ashby job board.
func NewAshbyAdapter(board Board, client *fetch.Client) *AshbyAdapter {
	return &AshbyAdapter{board: board, client: client}
}

func (a *AshbyAdapter) Name() string { return a.board.Name }
func (a *AshbyAdapter) ATS() string  { return atsAshby }

// Fetch retrieves every listed posting on the board.
func (a *AshbyAdapter) Fetch(ctx context.Context) ([]model.CandidateRecord, error) {
	url := fmt.Sprintf("%s/%s", ashbyBaseURL, a.board.Token)

	body, err := a.client.Get(ctx, atsAshby, url)
	if err != nil {
		return nil, fmt.Errorf("ashby fetch for %s: %w", a.board.Token, err)
	}

	var ashbyResp ashbyResponse
	if err := json.Unmarshal(body, &ashbyResp); err != nil {
		return nil, fmt.Errorf("ashby decode for %s: %w", a.board.Token, err)
	}

	records := make([]model.CandidateRecord, 0, len(ashbyResp.Jobs))
	for _, aj := range ashbyResp.Jobs {
		if !aj.IsListed {
			continue
		}

		description := aj.DescriptionPlain
		if description == "" {
			description = extractText(aj.DescriptionHTML)
		}

		rec := model.CandidateRecord{
			Title:       aj.Title,
			Company:     a.board.company(),
			Location:    aj.Location,
			Description: description,
			Department:  aj.Department,
			Source:      a.board.Name,
			ATS:         atsAshby,
			JobURL:      aj.JobUrl,
			CompanyURL:  a.board.CareersURL,
			Remote:      aj.IsRemote || looksRemote(aj.Location),
		}

		if aj.PublishedAt != "" {
			if t, err := time.Parse(time.RFC3339, aj.PublishedAt); err == nil {
				rec.PostedAt = &t
			}
		}

		records = append(records, rec)
	}

	return records, nil
}
