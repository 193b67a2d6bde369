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
	greenhouseBaseURL = "https://boards-api.greenhouse.io/v1/boards"
	atsGreenhouse     = "greenhouse"
)

// greenhouseJob represents a single job in the Greenhouse API response.
type greenhouseJob struct {
	ID             int64                `json:"id"`
	Title          string               `json:"title"`
	Location       greenhouseLocation   `json:"location"`
	AbsoluteURL    string               `json:"absolute_url"`
	UpdatedAt      string               `json:"updated_at"`
	FirstPublished string               `json:"first_published"`
	Content        string               `json:"content"`
	Departments    []greenhouseNamedRef `json:"departments"`
}

type greenhouseLocation struct {
	Name string `json:"name"`
}

type greenhouseNamedRef struct {
	Name string `json:"name"`
}

// greenhouseResponse is the top-level Greenhouse jobs API response.
type greenhouseResponse struct {
	Jobs []greenhouseJob `json:"jobs"`
}

// GreenhouseAdapter fetches postings from the Greenhouse public boards API.
type GreenhouseAdapter struct {
	board  Board
	client *fetch.Client
}

// NewGreenhouseAdapter creates a new adapter for a Greenhouse board.
func NewGreenhouseAdapter(board Board, client *fetch.Client) *GreenhouseAdapter {
	return &GreenhouseAdapter{board: board, client: client}
}

func (a *GreenhouseAdapter) Name() string { return a.board.Name }
func (a *GreenhouseAdapter) ATS() string  { return atsGreenhouse }

// Fetch retrieves every posting on the board, descriptions included.
func (a *GreenhouseAdapter) Fetch(ctx context.Context) ([]model.CandidateRecord, error) {
	url := fmt.Sprintf("%s/%s/jobs?content=true", greenhouseBaseURL, a.board.Token)

	body, err := a.client.Get(ctx, atsGreenhouse, url)
	if err != nil {
		return nil, fmt.Errorf("greenhouse fetch for %s: %w", a.board.Token, err)
	}

	var ghResp greenhouseResponse
	if err := json.Unmarshal(body, &ghResp); err != nil {
		return nil, fmt.Errorf("greenhouse decode for %s: %w", a.board.Token, err)
	}

	records := make([]model.CandidateRecord, 0, len(ghResp.Jobs))
	for _, gj := range ghResp.Jobs {
		rec := model.CandidateRecord{
			Title:       gj.Title,
			Company:     a.board.company(),
			Location:    gj.Location.Name,
			Description: extractText(gj.Content),
			Source:      a.board.Name,
			ATS:         atsGreenhouse,
			JobURL:      gj.AbsoluteURL,
			CompanyURL:  a.board.CareersURL,
			Remote:      looksRemote(gj.Location.Name),
		}
		if len(gj.Departments) > 0 {
			rec.Department = gj.Departments[0].Name
		}

		// first_published is the origination time; updated_at moves on edits.
		for _, raw := range []string{gj.FirstPublished, gj.UpdatedAt} {
			if raw == "" {
				continue
			}
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				rec.PostedAt = &t
				break
			}
		}

		records = append(records, rec)
	}

	return records, nil
}
