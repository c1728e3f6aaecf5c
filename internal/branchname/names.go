package branchname

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	caseInsensitiveFlagConstant    = "(?i)"
	domainSeparatorConstant        = "-"
	prefixSeparatorConstant        = "/"
	urlTemplateConstant            = "%s.%s"
	defaultBranchNameConstant      = "master"
	invalidPatternTemplateConstant = "invalid domain pattern %q: %w"
)

var (
	invalidDomainCharactersExpression = regexp.MustCompile(`[^a-z0-9\-]`)
	repeatedSeparatorsExpression      = regexp.MustCompile(`-{2,}`)
	backreferenceExpression           = regexp.MustCompile(`\\(\d+)`)
)

// Pattern extracts a domain from a branch name with a case-insensitive regular expression.
type Pattern struct {
	expression  *regexp.Regexp
	replacement string
}

// NewPattern compiles expression. A non-empty replacement may use \1 or ${1} group references;
// without it the first capture group becomes the domain.
func NewPattern(expression string, replacement string) (*Pattern, error) {
	compiledExpression, compileError := regexp.Compile(caseInsensitiveFlagConstant + expression)
	if compileError != nil {
		return nil, fmt.Errorf(invalidPatternTemplateConstant, expression, compileError)
	}
	return &Pattern{
		expression:  compiledExpression,
		replacement: backreferenceExpression.ReplaceAllString(replacement, "$${$1}"),
	}, nil
}

func (pattern *Pattern) apply(name string) (string, bool) {
	if pattern == nil || pattern.expression == nil {
		return "", false
	}
	submatches := pattern.expression.FindStringSubmatch(name)
	if submatches == nil {
		return "", false
	}
	if len(pattern.replacement) > 0 {
		return pattern.expression.ReplaceAllString(name, pattern.replacement), true
	}
	if len(submatches) > 1 {
		return submatches[1], true
	}
	return submatches[0], true
}

// ToDomain converts a branch name into a domain label.
// A matching pattern decides the result. Otherwise the name is lower-cased,
// every character outside [a-z0-9-] becomes a hyphen, and hyphen runs collapse.
func ToDomain(name string, pattern *Pattern) string {
	if patternDomain, matched := pattern.apply(name); matched {
		return patternDomain
	}
	domain := invalidDomainCharactersExpression.ReplaceAllString(strings.ToLower(name), domainSeparatorConstant)
	return repeatedSeparatorsExpression.ReplaceAllString(domain, domainSeparatorConstant)
}

// ToSlug converts a branch name without its prefix (feature/, bugfix/) into a domain label.
func ToSlug(name string, pattern *Pattern) string {
	if _, withoutPrefix, found := strings.Cut(name, prefixSeparatorConstant); found {
		name = withoutPrefix
	}
	return ToDomain(name, pattern)
}

// ToDatabase converts a branch name into an identifier without hyphens.
func ToDatabase(name string, pattern *Pattern) string {
	return strings.ReplaceAll(ToDomain(name, pattern), domainSeparatorConstant, "")
}

// ToURL places the branch domain under baseDomain. The master branch maps to baseDomain itself.
func ToURL(baseDomain string, name string, pattern *Pattern) string {
	if name == defaultBranchNameConstant {
		return baseDomain
	}
	return fmt.Sprintf(urlTemplateConstant, ToDomain(name, pattern), baseDomain)
}
