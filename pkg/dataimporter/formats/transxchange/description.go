package transxchange

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// serviceCodeFilenameRegex matches traveline dataset filenames like
// "ea_21-45A-_-y08-1", whose first four dash separated parts form a stable
// service code across releases.
var serviceCodeFilenameRegex = regexp.MustCompile(`^[a-z]{1,3}_`)

// ServiceCodeFromFilename derives a source local service code from a
// traveline archive filename, or returns empty when the filename does not
// follow the convention.
func ServiceCodeFromFilename(filename string) string {
	filename = strings.TrimSuffix(filename, ".xml")

	parts := strings.Split(filename, "-")
	if len(parts) != 5 {
		return ""
	}

	net := strings.SplitN(parts[0], "_", 2)[0]
	if len(net) > 3 || !serviceCodeFilenameRegex.MatchString(parts[0]) || strings.ToLower(net) != net {
		return ""
	}

	return strings.Join(parts[:4], "-")
}

var titleCaser = cases.Title(language.BritishEnglish)

// words kept exactly as written even inside an all-caps description
var initialisms = map[string]bool{
	"YMCA": true,
	"RAF":  true,
	"HMP":  true,
	"QE":   true,
	"DLR":  true,
	"II":   true,
}

var smallWords = map[string]bool{
	"and": true,
	"of":  true,
	"the": true,
	"to":  true,
	"via": true,
	"at":  true,
}

// NormaliseDescription tidies a source supplied description. Shouted
// descriptions are title cased, keeping initialisms and joining words, and
// the placeholder text some publishing tools emit is dropped entirely.
func NormaliseDescription(description string) string {
	description = strings.TrimSpace(description)

	if description == "Origin - Destination" {
		return ""
	}

	if description != "" && description == strings.ToUpper(description) && description != strings.ToLower(description) {
		words := strings.Fields(description)
		for i, word := range words {
			if initialisms[word] {
				continue
			}

			lower := strings.ToLower(word)
			if i > 0 && smallWords[lower] {
				words[i] = lower
				continue
			}
			words[i] = titleCaser.String(lower)
		}
		description = strings.Join(words, " ")
	}

	return description
}

// JoinDescription combines origin, destination and vias in the usual
// "Origin - Via - Destination" display form.
func JoinDescription(origin string, vias []string, destination string) string {
	var parts []string
	if origin != "" {
		parts = append(parts, origin)
	}
	for _, via := range vias {
		if via != "" {
			parts = append(parts, via)
		}
	}
	if destination != "" {
		parts = append(parts, destination)
	}
	return strings.Join(parts, " - ")
}
