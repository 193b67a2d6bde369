package adapter

import (
	"strings"

	"github.com/amishk599/firstrung/internal/fetch"
)

// Board identifies one company job board on an ATS.
type Board struct {
	Name       string // source name, unique per configured board
	Company    string // display company name
	Token      string // board token or slug on the ATS
	CareersURL string // company careers page, used when a posting has no link
}

func (b Board) company() string {
	if b.Company != "" {
		return b.Company
	}
	return b.Name
}

// looksRemote reports whether any of the given strings mention remote work.
func looksRemote(values ...string) bool {
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), "remote") {
			return true
		}
	}
	return false
}

// extractText converts HTML descriptions to plain text.
func extractText(content string) string {
	return fetch.PlainText(content)
}
