package remote

import (
	"fmt"
	"strings"
)

const (
	defaultParallelismConstant    = 10
	unknownRoleErrorTemplate      = "unknown role %q"
	emptyRoleErrorTemplate        = "role %q has no hosts"
	sshUserConfigurationKeySuffix = ".ssh_user"
	sshPortConfigurationKeySuffix = ".ssh_port"
	parallelismConfigurationKey   = ".parallelism"
)

// Configuration describes how hosts are addressed and grouped into roles.
type Configuration struct {
	Roles       map[string][]string `mapstructure:"roles"`
	SSHUser     string              `mapstructure:"ssh_user"`
	SSHPort     int                 `mapstructure:"ssh_port"`
	SSHOptions  []string            `mapstructure:"ssh_options"`
	Parallelism int                 `mapstructure:"parallelism"`
}

// DefaultConfigurationValues returns viper defaults rooted at the provided key.
func DefaultConfigurationValues(rootKey string) map[string]any {
	return map[string]any{
		rootKey + sshUserConfigurationKeySuffix: "",
		rootKey + sshPortConfigurationKeySuffix: 0,
		rootKey + parallelismConfigurationKey:   defaultParallelismConstant,
	}
}

// UnknownRoleError reports a role name missing from the configuration.
type UnknownRoleError struct {
	Role string
}

// Error describes the missing role.
func (roleError UnknownRoleError) Error() string {
	return fmt.Sprintf(unknownRoleErrorTemplate, roleError.Role)
}

// ResolveHosts returns the explicit hosts when provided, otherwise the hosts of the named role.
func (configuration Configuration) ResolveHosts(role string, explicitHosts []string) ([]string, error) {
	sanitizedHosts := SanitizeHosts(explicitHosts)
	if len(sanitizedHosts) > 0 {
		return sanitizedHosts, nil
	}

	trimmedRole := strings.TrimSpace(role)
	if len(trimmedRole) == 0 {
		return nil, ErrNoHosts
	}

	roleHosts, roleExists := configuration.Roles[trimmedRole]
	if !roleExists {
		return nil, UnknownRoleError{Role: trimmedRole}
	}

	sanitizedRoleHosts := SanitizeHosts(roleHosts)
	if len(sanitizedRoleHosts) == 0 {
		return nil, fmt.Errorf(emptyRoleErrorTemplate+": %w", trimmedRole, ErrNoHosts)
	}
	return sanitizedRoleHosts, nil
}

// SanitizeHosts trims host names, drops blanks, and removes duplicates while preserving order.
func SanitizeHosts(rawHosts []string) []string {
	seenHosts := make(map[string]struct{}, len(rawHosts))
	sanitizedHosts := make([]string, 0, len(rawHosts))
	for _, rawHost := range rawHosts {
		trimmedHost := strings.TrimSpace(rawHost)
		if len(trimmedHost) == 0 {
			continue
		}
		if _, alreadySeen := seenHosts[trimmedHost]; alreadySeen {
			continue
		}
		seenHosts[trimmedHost] = struct{}{}
		sanitizedHosts = append(sanitizedHosts, trimmedHost)
	}
	return sanitizedHosts
}

func (configuration Configuration) parallelism() int {
	if configuration.Parallelism <= 0 {
		return defaultParallelismConstant
	}
	return configuration.Parallelism
}
