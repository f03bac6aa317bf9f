package util

import (
	"regexp"
	"strings"
)

func RemoveDuplicateStrings(strings []string, ignoreList []string) []string {
	presentStrings := make(map[string]bool)
	var list []string

	for _, ignoreString := range ignoreList {
		presentStrings[ignoreString] = true
	}

	for _, item := range strings {
		if _, value := presentStrings[item]; !value && item != "" {
			presentStrings[item] = true
			list = append(list, item)
		}
	}
	return list
}

func ContainsString(s []string, str string) bool {
	for _, v := range s {
		if v == str {
			return true
		}
	}

	return false
}

var slugInvalidRegex = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns free text into a lowercase hyphenated identifier.
func Slugify(s string) string {
	s = strings.ToLower(s)
	s = slugInvalidRegex.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
