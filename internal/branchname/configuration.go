package branchname

import "strings"

// Configuration describes how branch names map to environment identifiers.
type Configuration struct {
	BaseDomain  string `mapstructure:"base_domain"`
	Pattern     string `mapstructure:"domain_pattern"`
	Replacement string `mapstructure:"domain_replacement"`
}

// CompilePattern returns the configured domain pattern or nil when none is set.
func (configuration Configuration) CompilePattern() (*Pattern, error) {
	if len(strings.TrimSpace(configuration.Pattern)) == 0 {
		return nil, nil
	}
	return NewPattern(configuration.Pattern, configuration.Replacement)
}
