package swarm

const (
	defaultManagerRoleConstant = "swarm_managers"

	roleConfigurationKeySuffix  = ".role"
	stackConfigurationKeySuffix = ".stack"
	labelConfigurationKeySuffix = ".label"
)

// CommandConfiguration captures defaults for the swarm commands.
type CommandConfiguration struct {
	Role     string   `mapstructure:"role"`
	Hosts    []string `mapstructure:"hosts"`
	Stack    string   `mapstructure:"stack"`
	Label    string   `mapstructure:"label"`
	NoSerial bool     `mapstructure:"no_serial"`
	NoWait   bool     `mapstructure:"no_wait"`
}

// DefaultCommandConfiguration returns the baseline swarm configuration.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{Role: defaultManagerRoleConstant}
}

// DefaultConfigurationValues returns viper defaults rooted at the provided key.
func DefaultConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		rootKey + roleConfigurationKeySuffix:  defaults.Role,
		rootKey + stackConfigurationKeySuffix: defaults.Stack,
		rootKey + labelConfigurationKeySuffix: defaults.Label,
	}
}
