// Package eligibility decides whether a posting is an early-career role.
//
// Gate is the single policy point: every signal list and every decision rule
// lives in this file. The policy is recall-biased. A posting with no clear
// signal either way is kept and marked uncertain.
package eligibility

import (
	"regexp"
	"strings"
)

const (
	TagEarlyCareer = "early-career"
	TagUncertain   = "eligibility:uncertain"
)

// Decision is the outcome of classifying one posting.
type Decision struct {
	Eligible  bool
	Uncertain bool
	Reason    string
}

// Tag returns the eligibility tag for an eligible decision.
func (d Decision) Tag() string {
	if d.Uncertain {
		return TagUncertain
	}
	return TagEarlyCareer
}

// ExperienceRequired returns the persisted experience_required value.
func (d Decision) ExperienceRequired() string {
	if d.Uncertain {
		return "uncertain"
	}
	return "entry_level"
}

var positiveSignals = []string{
	"intern", "interns", "internship", "internships",
	"graduate", "graduates", "grad", "new grad", "graduate program", "graduate programme",
	"trainee", "traineeship", "apprentice", "apprenticeship",
	"junior", "jr", "entry level", "entry-level", "early career", "early-career",
	"working student", "werkstudent", "student", "students", "placement", "co-op",
	"associate", "assistant", "coordinator", "fellowship", "rotational program",
	"0-1 years", "0-2 years", "1-2 years", "0 to 2 years", "no experience required",
}

var seniorSignals = []string{
	"senior", "sr", "principal", "staff", "lead", "director", "architect",
	"vp", "vice president", "head of", "chief", "cto", "cfo", "ceo", "coo",
	"executive", "distinguished",
}

// Inherently ambiguous phrasings: kept, never trusted.
var ambiguousPhrases = []string{
	"manager trainee", "trainee manager", "management trainee",
	"graduate specialist", "associate director", "assistant director",
	"assistant manager", "associate manager", "junior partner",
	"associate principal", "lead trainee",
}

// Five or more required years reads as senior. Both patterns run on
// normalized text, so spacing is already single.
var seniorYears = []*regexp.Regexp{
	regexp.MustCompile(`(?:^| )(?:[5-9]|[1-9][0-9])\+ years?(?: |$)`),
	regexp.MustCompile(`(?:^| )(?:[5-9]|[1-9][0-9]) years? (?:of )?(?:[a-z]+ )?experience(?: |$)`),
}

// signals is what one piece of text says, computed once and fed to the rules.
type signals struct {
	positive  string // first positive signal matched, if any
	senior    string // first senior signal matched, if any
	ambiguous string // first ambiguous phrase matched, if any
}

// rule is one (predicate, outcome) pair. Rules are evaluated in order and the
// first match decides.
type rule struct {
	name    string
	matches func(s signals) bool
	outcome func(s signals) Decision
}

var rules = []rule{
	{
		name:    "positive-only",
		matches: func(s signals) bool { return s.positive != "" && s.senior == "" },
		outcome: func(s signals) Decision {
			return Decision{Eligible: true, Reason: "early-career signal: " + s.positive}
		},
	},
	{
		name:    "ambiguous-phrase",
		matches: func(s signals) bool { return s.ambiguous != "" },
		outcome: func(s signals) Decision {
			return Decision{Eligible: true, Uncertain: true, Reason: "ambiguous phrasing: " + s.ambiguous}
		},
	},
	{
		name:    "senior-only",
		matches: func(s signals) bool { return s.senior != "" && s.positive == "" },
		outcome: func(s signals) Decision {
			return Decision{Eligible: false, Reason: "senior signal: " + s.senior}
		},
	},
	{
		name:    "mixed-signals",
		matches: func(s signals) bool { return s.senior != "" && s.positive != "" },
		outcome: func(s signals) Decision {
			return Decision{Eligible: true, Uncertain: true, Reason: "mixed signals: " + s.positive + " / " + s.senior}
		},
	},
}

// Classify evaluates the title and description. It never fails: text with no
// clear signal is eligible and uncertain.
func Classify(title, description string) Decision {
	s := detect(words(title + " " + description))
	for _, r := range rules {
		if r.matches(s) {
			return r.outcome(s)
		}
	}
	return Decision{Eligible: true, Uncertain: true, Reason: "no clear signal"}
}

func detect(text string) signals {
	var s signals
	s.positive = firstPhrase(text, positiveSignals)
	s.senior = firstPhrase(text, seniorSignals)
	if s.senior == "" {
		for _, re := range seniorYears {
			if m := re.FindString(text); m != "" {
				s.senior = strings.TrimSpace(m)
				break
			}
		}
	}
	s.ambiguous = firstPhrase(text, ambiguousPhrases)
	return s
}

func firstPhrase(padded string, phrases []string) string {
	for _, p := range phrases {
		if strings.Contains(padded, " "+p+" ") {
			return p
		}
	}
	return ""
}

var separators = regexp.MustCompile(`[^\p{L}\p{N}+\-]+`)

// words lower-cases text and normalizes separators to single spaces, padded at
// both ends so phrases only match on word boundaries. Hyphens and plus signs
// survive for "entry-level", "co-op", "0-2 years" and "10+ years".
func words(text string) string {
	t := separators.ReplaceAllString(strings.ToLower(text), " ")
	return " " + strings.Join(strings.Fields(t), " ") + " "
}
