// Package flags formats and validates enumerated command-line flag values.
package flags

import (
	"errors"
	"fmt"
	"strings"
)

const (
	choicePlaceholderPrefix      = "<"
	choicePlaceholderSuffix      = ">"
	choiceSeparatorLiteral       = "|"
	choiceUsageEmptyTemplate     = "`%s`"
	choiceUsageFullTemplate      = "`%s` %s"
	unsupportedChoiceTemplate    = "%w %q (expected one of %s)"
	supportedChoicesJoinConstant = ", "
)

// ErrUnsupportedChoice indicates a value outside the accepted set.
var ErrUnsupportedChoice = errors.New("unsupported value")

// FormatChoiceUsage renders "`<a|B|c>` description" with the default option capitalized.
func FormatChoiceUsage(defaultChoice string, choices []string, description string) string {
	placeholder := choicePlaceholderPrefix + strings.Join(highlightDefaultChoice(defaultChoice, choices), choiceSeparatorLiteral) + choicePlaceholderSuffix
	if len(strings.TrimSpace(description)) == 0 {
		return fmt.Sprintf(choiceUsageEmptyTemplate, placeholder)
	}
	return fmt.Sprintf(choiceUsageFullTemplate, placeholder, description)
}

// MatchChoice returns the accepted choice equal to candidate ignoring case and surrounding space.
// A blank candidate resolves to defaultChoice.
func MatchChoice(candidate string, defaultChoice string, choices []string) (string, error) {
	normalizedCandidate := normalizeChoice(candidate)
	if len(normalizedCandidate) == 0 {
		normalizedCandidate = normalizeChoice(defaultChoice)
	}
	for _, choice := range choices {
		if normalizeChoice(choice) == normalizedCandidate && len(normalizedCandidate) > 0 {
			return strings.TrimSpace(choice), nil
		}
	}
	return "", fmt.Errorf(unsupportedChoiceTemplate, ErrUnsupportedChoice, candidate, strings.Join(choices, supportedChoicesJoinConstant))
}

func normalizeChoice(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func highlightDefaultChoice(defaultChoice string, choices []string) []string {
	normalizedDefault := normalizeChoice(defaultChoice)
	highlighted := make([]string, 0, len(choices))
	seen := make(map[string]struct{}, len(choices))

	for _, choice := range choices {
		normalizedChoice := normalizeChoice(choice)
		if len(normalizedChoice) == 0 {
			continue
		}
		if _, exists := seen[normalizedChoice]; exists {
			continue
		}
		seen[normalizedChoice] = struct{}{}

		displayValue := strings.TrimSpace(choice)
		if normalizedChoice == normalizedDefault {
			displayValue = strings.ToUpper(displayValue)
		}
		highlighted = append(highlighted, displayValue)
	}

	return highlighted
}
