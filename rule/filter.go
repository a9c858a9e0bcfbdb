package rules

import "strings"

// Filter keeps the rules whose payload contains text, ignoring case.
// An empty text returns rules itself, not a copy.
func Filter(rules []Rule, text string) []Rule {
	if text == "" {
		return rules
	}

	f := strings.ToLower(text)
	filtered := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if strings.Contains(strings.ToLower(r.Payload), f) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
