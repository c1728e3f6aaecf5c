// Package pathutils resolves user supplied file paths such as --config and --env-file.
package pathutils

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	tildeSymbolConstant = "~"
)

// HomeDirectoryProvider resolves the current user's home directory path.
type HomeDirectoryProvider func() (string, error)

// EnvironmentLookup resolves environment variables referenced in paths.
type EnvironmentLookup func(name string) (string, bool)

// HomeExpander expands a leading tilde and $VARIABLE references.
type HomeExpander struct {
	homeDirectoryProvider HomeDirectoryProvider
	lookupEnvironment     EnvironmentLookup
	homeDirectory         string
	homeDirectoryError    error
	initializationGuard   sync.Once
}

// NewHomeExpander constructs a HomeExpander backed by the operating system.
func NewHomeExpander() *HomeExpander {
	return NewHomeExpanderWithProvider(os.UserHomeDir, os.LookupEnv)
}

// NewHomeExpanderWithProvider constructs a HomeExpander with custom lookups. Nil lookups fall back to the operating system.
func NewHomeExpanderWithProvider(provider HomeDirectoryProvider, lookupEnvironment EnvironmentLookup) *HomeExpander {
	if provider == nil {
		provider = os.UserHomeDir
	}
	if lookupEnvironment == nil {
		lookupEnvironment = os.LookupEnv
	}
	return &HomeExpander{homeDirectoryProvider: provider, lookupEnvironment: lookupEnvironment}
}

// Expand resolves environment references, then a leading "~" or "~/" prefix.
// Unset variables expand to an empty string. Paths like "~user" are returned unchanged.
func (expander *HomeExpander) Expand(candidatePath string) string {
	if expander == nil || len(candidatePath) == 0 {
		return candidatePath
	}

	expandedPath := os.Expand(candidatePath, func(name string) string {
		value, _ := expander.lookupEnvironment(name)
		return value
	})
	if !strings.HasPrefix(expandedPath, tildeSymbolConstant) {
		return expandedPath
	}

	relativePath := strings.TrimPrefix(expandedPath, tildeSymbolConstant)
	if len(relativePath) > 0 && relativePath[0] != '/' && relativePath[0] != os.PathSeparator {
		return expandedPath
	}

	homeDirectory := expander.resolveHomeDirectory()
	if len(homeDirectory) == 0 {
		return expandedPath
	}
	return filepath.Join(homeDirectory, relativePath)
}

func (expander *HomeExpander) resolveHomeDirectory() string {
	expander.initializationGuard.Do(func() {
		expander.homeDirectory, expander.homeDirectoryError = expander.homeDirectoryProvider()
	})
	if expander.homeDirectoryError != nil {
		return ""
	}
	return expander.homeDirectory
}
