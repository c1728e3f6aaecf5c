package remote

import (
	"go.uber.org/zap"

	"github.com/temirov/deployutils/internal/execshell"
)

// ConfigurationProvider returns the current remote configuration.
type ConfigurationProvider func() Configuration

// ResolveConfiguration returns the provided configuration or the zero configuration.
func ResolveConfiguration(provider ConfigurationProvider) Configuration {
	if provider == nil {
		return Configuration{}
	}
	return provider()
}

// ResolveCommandRunner returns the provided runner or constructs an OS-backed executor.
func ResolveCommandRunner(existing CommandRunner, logger *zap.Logger, configuration Configuration, observer execshell.CommandEventObserver) (CommandRunner, error) {
	if existing != nil {
		return existing, nil
	}

	shellExecutor, creationError := execshell.NewShellExecutor(logger, execshell.NewOSCommandRunner())
	if creationError != nil {
		return nil, creationError
	}
	if observer != nil {
		shellExecutor = shellExecutor.WithEventObserver(observer)
	}
	return NewExecutor(logger, shellExecutor, configuration)
}
