package services

import (
	"sort"
	"strings"
	"unicode"
)

// stateAbbreviations are the whole-word 2-letter codes scanned for when no
// structured states-served element exists on a profile page.
var stateAbbreviations = []string{
	"MA", "NH", "VT", "CT", "RI", "ME", "NY", "NJ", "PA",
}

// Normalize collapses every run of whitespace (spaces, tabs, newlines) into
// a single space and trims leading/trailing space. It is idempotent.
func Normalize(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}

// CompanyNameFromTitle extracts a company name from a profile page title.
// Known title patterns:
//
//	"Company Name - Profile & Reviews - 2025 | EnergySage"
//	"Company Name: Reviews & Solar Installer Information | EnergySage"
func CompanyNameFromTitle(title string) string {
	title = Normalize(title)
	if title == "" {
		return "Unknown Company"
	}

	if idx := strings.Index(title, " - Profile & Reviews"); idx >= 0 {
		return strings.TrimSpace(title[:idx])
	}
	if idx := strings.Index(title, ": Reviews & Solar"); idx >= 0 {
		return strings.TrimSpace(title[:idx])
	}
	if idx := strings.Index(title, "|"); idx >= 0 {
		return strings.TrimSpace(title[:idx])
	}
	return title
}

// StateAbbreviationScan returns the known state codes that appear as whole
// words in the page text, in scan order. Last-resort fallback when no
// states-served element is found.
func StateAbbreviationScan(pageText string) []string {
	var found []string
	for _, state := range stateAbbreviations {
		if strings.Contains(pageText, " "+state+" ") || strings.Contains(pageText, state+",") {
			found = append(found, state)
		}
	}
	return found
}

// SortedUniqueStates dedupes and sorts a list of state names or codes.
func SortedUniqueStates(states []string) []string {
	seen := make(map[string]struct{}, len(states))
	var out []string
	for _, s := range states {
		s = Normalize(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
