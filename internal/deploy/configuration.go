package deploy

const (
	lockConfigurationKeySuffix     = ".lock"
	waitConfigurationKeySuffix     = ".wait"
	teamCityConfigurationKeySuffix = ".teamcity"
	swarmConfigurationKeySuffix    = ".swarm"
)

// CommandConfiguration captures defaults for the deploy command.
type CommandConfiguration struct {
	Role  string   `mapstructure:"role"`
	Hosts []string `mapstructure:"hosts"`
	// Command runs on every host with {branch}, {slug}, and {node} substituted.
	Command string `mapstructure:"command"`
	User    string `mapstructure:"user"`
	// RequiredBranches limits deployments to these branches unless Force is set.
	RequiredBranches []string `mapstructure:"required_branches"`
	Force            bool     `mapstructure:"force"`
	Repository       string   `mapstructure:"repository"`
	TeamCity         bool     `mapstructure:"teamcity"`
	Lock             bool     `mapstructure:"lock"`
	Wait             bool     `mapstructure:"wait"`
	// Swarm runs the command once on a healthy swarm manager instead of every host.
	Swarm bool `mapstructure:"swarm"`
}

// DefaultCommandConfiguration returns the baseline deploy configuration.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{Lock: true, Wait: true}
}

// DefaultConfigurationValues returns viper defaults rooted at the provided key.
func DefaultConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		rootKey + lockConfigurationKeySuffix:     defaults.Lock,
		rootKey + waitConfigurationKeySuffix:     defaults.Wait,
		rootKey + teamCityConfigurationKeySuffix: defaults.TeamCity,
		rootKey + swarmConfigurationKeySuffix:    defaults.Swarm,
	}
}
