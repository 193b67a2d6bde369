// Package locator decides which URL a reader should open to find a posting.
package locator

import (
	"net/url"
	"strings"

	"github.com/amishk599/firstrung/internal/textutil"
)

const (
	TagManual  = "locator:manual"
	HintPrefix = "hint:"
)

// Paths that only lead to a generic listing page, never to a single posting.
var genericPaths = map[string]bool{
	"":              true,
	"careers":       true,
	"career":        true,
	"jobs":          true,
	"join-us":       true,
	"joinus":        true,
	"vacancies":     true,
	"opportunities": true,
	"work-with-us":  true,
	"en/careers":    true,
	"about/careers": true,
}

// Result is the resolved locator.
type Result struct {
	URL  string
	Tags []string
}

// Manual reports whether the locator fell back to a generic page.
func (r Result) Manual() bool {
	for _, t := range r.Tags {
		if t == TagManual {
			return true
		}
	}
	return false
}

// Canonicalize lower-cases the URL and strips query, fragment and trailing
// slash. Unparseable input is only trimmed and lower-cased.
func Canonicalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return strings.TrimRight(strings.ToLower(raw), "/")
	}
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return strings.TrimRight(strings.ToLower(u.String()), "/")
}

// Resolve picks the canonical job URL when it is usable, otherwise falls back
// to the company or careers page and marks the posting for manual lookup with
// a hint built from the title.
func Resolve(jobURL, companyURL, title string) Result {
	job := Canonicalize(jobURL)
	company := Canonicalize(companyURL)

	if usable(job) && job != company {
		return Result{URL: job}
	}

	tags := []string{TagManual}
	if hint := textutil.Slugify(strings.Join(textutil.FirstWords(title, 3), " ")); hint != "" {
		tags = append(tags, HintPrefix+hint)
	}
	return Result{URL: company, Tags: tags}
}

// usable reports whether a canonical URL points at something more specific
// than a generic careers page.
func usable(canonical string) bool {
	if canonical == "" {
		return false
	}
	u, err := url.Parse(canonical)
	if err != nil || u.Host == "" {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if strings.Contains(u.Host+u.Path, "linkedin.com/comm/jobs/alerts") {
		return false
	}
	return !genericPaths[strings.Trim(u.Path, "/")]
}
