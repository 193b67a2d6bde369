// Package location tags a posting with a best-effort, Europe-focused
// geography slug.
package location

import (
	"strings"
	"unicode"
)

const (
	TagPrefix   = "loc:"
	TagUnknown  = "loc:unknown"
	TagEURemote = "loc:eu-remote"
)

// countries maps every accepted spelling to the canonical country name.
var countries = map[string]string{
	"austria": "austria", "österreich": "austria",
	"belgium": "belgium", "belgië": "belgium", "belgique": "belgium",
	"bulgaria": "bulgaria",
	"croatia": "croatia",
	"cyprus": "cyprus",
	"czech republic": "czech-republic", "czechia": "czech-republic",
	"denmark": "denmark", "danmark": "denmark",
	"estonia": "estonia",
	"finland": "finland", "suomi": "finland",
	"france": "france",
	"germany": "germany", "deutschland": "germany",
	"greece": "greece",
	"hungary": "hungary",
	"iceland": "iceland",
	"ireland": "ireland",
	"italy": "italy", "italia": "italy",
	"latvia": "latvia",
	"lithuania": "lithuania",
	"luxembourg": "luxembourg",
	"malta": "malta",
	"netherlands": "netherlands", "the netherlands": "netherlands", "nederland": "netherlands", "holland": "netherlands",
	"norway": "norway", "norge": "norway",
	"poland": "poland", "polska": "poland",
	"portugal": "portugal",
	"romania": "romania",
	"serbia": "serbia",
	"slovakia": "slovakia",
	"slovenia": "slovenia",
	"spain": "spain", "españa": "spain",
	"sweden": "sweden", "sverige": "sweden",
	"switzerland": "switzerland", "schweiz": "switzerland", "suisse": "switzerland",
	"ukraine": "ukraine",
	"united kingdom": "united-kingdom", "uk": "united-kingdom", "england": "united-kingdom",
	"scotland": "united-kingdom", "wales": "united-kingdom", "great britain": "united-kingdom",
}

type city struct {
	name    string
	country string
}

// cities maps accepted spellings to the canonical city and its country.
var cities = map[string]city{
	"amsterdam": {"amsterdam", "netherlands"},
	"rotterdam": {"rotterdam", "netherlands"},
	"the hague": {"the-hague", "netherlands"},
	"eindhoven": {"eindhoven", "netherlands"},
	"utrecht":   {"utrecht", "netherlands"},
	"berlin":    {"berlin", "germany"},
	"munich":    {"munich", "germany"}, "münchen": {"munich", "germany"},
	"hamburg":   {"hamburg", "germany"},
	"frankfurt": {"frankfurt", "germany"},
	"cologne":   {"cologne", "germany"}, "köln": {"cologne", "germany"},
	"stuttgart": {"stuttgart", "germany"},
	"düsseldorf": {"dusseldorf", "germany"}, "dusseldorf": {"dusseldorf", "germany"},
	"paris":     {"paris", "france"},
	"lyon":      {"lyon", "france"},
	"toulouse":  {"toulouse", "france"},
	"madrid":    {"madrid", "spain"},
	"barcelona": {"barcelona", "spain"},
	"valencia":  {"valencia", "spain"},
	"seville":   {"seville", "spain"}, "sevilla": {"seville", "spain"},
	"lisbon":    {"lisbon", "portugal"}, "lisboa": {"lisbon", "portugal"},
	"porto":     {"porto", "portugal"},
	"milan":     {"milan", "italy"}, "milano": {"milan", "italy"},
	"rome":      {"rome", "italy"}, "roma": {"rome", "italy"},
	"turin":     {"turin", "italy"}, "torino": {"turin", "italy"},
	"london":    {"london", "united-kingdom"},
	"manchester": {"manchester", "united-kingdom"},
	"edinburgh": {"edinburgh", "united-kingdom"},
	"cambridge": {"cambridge", "united-kingdom"},
	"bristol":   {"bristol", "united-kingdom"},
	"dublin":    {"dublin", "ireland"},
	"cork":      {"cork", "ireland"},
	"brussels":  {"brussels", "belgium"}, "bruxelles": {"brussels", "belgium"},
	"antwerp":   {"antwerp", "belgium"},
	"zurich":    {"zurich", "switzerland"}, "zürich": {"zurich", "switzerland"},
	"geneva":    {"geneva", "switzerland"}, "genève": {"geneva", "switzerland"},
	"vienna":    {"vienna", "austria"}, "wien": {"vienna", "austria"},
	"stockholm": {"stockholm", "sweden"},
	"gothenburg": {"gothenburg", "sweden"},
	"copenhagen": {"copenhagen", "denmark"},
	"oslo":      {"oslo", "norway"},
	"helsinki":  {"helsinki", "finland"},
	"warsaw":    {"warsaw", "poland"}, "warszawa": {"warsaw", "poland"},
	"krakow":    {"krakow", "poland"}, "kraków": {"krakow", "poland"},
	"wroclaw":   {"wroclaw", "poland"}, "wrocław": {"wroclaw", "poland"},
	"prague":    {"prague", "czech-republic"}, "praha": {"prague", "czech-republic"},
	"budapest":  {"budapest", "hungary"},
	"bucharest": {"bucharest", "romania"},
	"sofia":     {"sofia", "bulgaria"},
	"athens":    {"athens", "greece"},
	"tallinn":   {"tallinn", "estonia"},
	"riga":      {"riga", "latvia"},
	"vilnius":   {"vilnius", "lithuania"},
	"luxembourg city": {"luxembourg", "luxembourg"},
}

var regionalQualifiers = []string{"eu", "europe", "emea", "european union", "european"}

// Tag returns exactly one location tag for the raw location text.
func Tag(locationText string, isRemote bool) []string {
	return []string{tagFor(locationText, isRemote)}
}

func tagFor(locationText string, isRemote bool) string {
	text := words(locationText)
	if text == "" {
		return TagUnknown
	}

	var cityName, countryName string
	cityAt, cityLen := -1, 0
	for alias, c := range cities {
		at := phraseIndex(text, alias)
		if at < 0 {
			continue
		}
		if cityAt < 0 || at < cityAt || (at == cityAt && len(alias) > cityLen) {
			cityAt, cityLen = at, len(alias)
			cityName, countryName = c.name, c.country
		}
	}
	if cityName == "" {
		countryAt, countryLen := -1, 0
		for alias, c := range countries {
			at := phraseIndex(text, alias)
			if at < 0 {
				continue
			}
			if countryAt < 0 || at < countryAt || (at == countryAt && len(alias) > countryLen) {
				countryAt, countryLen = at, len(alias)
				countryName = c
			}
		}
	}

	switch {
	case cityName != "" && cityName != countryName:
		return TagPrefix + cityName + "-" + countryName
	case countryName != "":
		return TagPrefix + countryName
	}

	if isRemote {
		for _, q := range regionalQualifiers {
			if containsPhrase(text, q) {
				return TagEURemote
			}
		}
	}
	return TagUnknown
}

// words lower-cases s and reduces it to single-space separated letter/digit
// runs, padded with a space on each side for whole-phrase matching.
func words(s string) string {
	f := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(f) == 0 {
		return ""
	}
	return " " + strings.Join(f, " ") + " "
}

func containsPhrase(padded, phrase string) bool {
	return phraseIndex(padded, phrase) >= 0
}

// phraseIndex returns the byte offset of the whole phrase in padded, or -1.
func phraseIndex(padded, phrase string) int {
	return strings.Index(padded, " "+phrase+" ")
}

// IsUnknown reports whether tag is the unknown-location tag.
func IsUnknown(tag string) bool {
	return tag == TagUnknown
}
