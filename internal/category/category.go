// Package category infers the career path of a posting and assembles the
// final ordered tag set.
package category

import (
	"strings"
	"unicode"

	"github.com/amishk599/firstrung/internal/textutil"
)

const (
	CareerPrefix  = "career:"
	DeptPrefix    = "dept:"
	GeneralCareer = "general"
)

type careerPath struct {
	slug     string
	keywords []string
}

// Checked in order against the title first, then the description. Earlier
// paths win, so narrower paths come before broad ones.
var careerPaths = []careerPath{
	{"data", []string{"data scientist", "data science", "data analyst", "data engineer", "machine learning", "analytics", "bi analyst", "business intelligence"}},
	{"software-engineering", []string{"software", "developer", "engineer", "engineering", "devops", "frontend", "front-end", "backend", "back-end", "full stack", "fullstack", "qa", "sre", "programmer"}},
	{"product", []string{"product manager", "product owner", "product management", "product analyst"}},
	{"design", []string{"designer", "design", "ux", "ui", "user research"}},
	{"marketing", []string{"marketing", "brand", "seo", "content", "social media", "communications", "pr"}},
	{"sales", []string{"sales", "business development", "account executive", "account manager", "customer success", "partnerships"}},
	{"finance", []string{"finance", "financial", "accounting", "accountant", "audit", "tax", "treasury", "investment", "banking"}},
	{"consulting", []string{"consulting", "consultant", "advisory", "strategy"}},
	{"research", []string{"research", "researcher", "scientist", "phd", "laboratory"}},
	{"legal", []string{"legal", "lawyer", "paralegal", "compliance", "counsel"}},
	{"people", []string{"hr", "human resources", "people", "recruiter", "recruiting", "talent"}},
	{"operations", []string{"operations", "supply chain", "logistics", "procurement", "project manager", "office"}},
}

// CareerPath returns the slug of the first matching career path, or
// "general" when nothing matches.
func CareerPath(title, description string) string {
	for _, text := range []string{title, description} {
		padded := padded(text)
		if padded == "" {
			continue
		}
		for _, p := range careerPaths {
			for _, kw := range p.keywords {
				if strings.Contains(padded, " "+kw+" ") {
					return p.slug
				}
			}
		}
	}
	return GeneralCareer
}

// CareerTag returns the career tag for a path slug.
func CareerTag(path string) string {
	return CareerPrefix + path
}

// IsGeneral reports whether a career tag carries the fallback path.
func IsGeneral(tag string) bool {
	return tag == CareerPrefix+GeneralCareer
}

// DepartmentTag returns the dept tag, or "" when the department is empty.
func DepartmentTag(department string) string {
	slug := textutil.Slugify(department)
	if slug == "" {
		return ""
	}
	return DeptPrefix + slug
}

// Parts are the already-decided tag fragments of one posting.
type Parts struct {
	Career      string   // career:<path>
	Location    string   // loc:<slug>
	Eligibility string   // early-career or eligibility:uncertain
	Locator     []string // locator:manual and hint:<words>, may be empty
	Freshness   string   // freshness:known or freshness:unknown
	Department  string   // dept:<slug>, may be empty
}

// Compose returns the ordered tag set. The career tag is always first and
// the location tag second; readers look them up by position. Empty and
// duplicate tags are dropped.
func Compose(p Parts) []string {
	tags := make([]string, 0, 6+len(p.Locator))
	seen := make(map[string]bool)
	add := func(t string) {
		if t == "" || seen[t] {
			return
		}
		seen[t] = true
		tags = append(tags, t)
	}

	career := p.Career
	if career == "" {
		career = CareerTag(GeneralCareer)
	}
	loc := p.Location
	if loc == "" {
		loc = "loc:unknown"
	}

	add(career)
	add(loc)
	add(p.Eligibility)
	for _, t := range p.Locator {
		add(t)
	}
	add(p.Freshness)
	add(p.Department)
	return tags
}

func padded(text string) string {
	f := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	if len(f) == 0 {
		return ""
	}
	return " " + strings.Join(f, " ") + " "
}
