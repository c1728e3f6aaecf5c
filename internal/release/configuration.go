package release

const (
	defaultTargetConstant = "origin/master"

	targetConfigurationKeySuffix = ".target"
)

// CommandConfiguration captures defaults for the release command.
type CommandConfiguration struct {
	Target         string `mapstructure:"target"`
	Host           string `mapstructure:"host"`
	Role           string `mapstructure:"role"`
	User           string `mapstructure:"user"`
	RepositoryPath string `mapstructure:"repository_path"`
}

// DefaultCommandConfiguration returns the baseline release configuration.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{Target: defaultTargetConstant}
}

// DefaultConfigurationValues returns viper defaults rooted at the provided key.
func DefaultConfigurationValues(rootKey string) map[string]any {
	return map[string]any{
		rootKey + targetConfigurationKeySuffix: defaultTargetConstant,
	}
}
