package health

import "time"

const (
	defaultPollIntervalConstant = 3 * time.Second
	defaultMaxWaitConstant      = 20 * time.Second

	pollIntervalConfigurationKeySuffix   = ".poll_interval"
	maxWaitConfigurationKeySuffix        = ".max_wait"
	quorumConfigurationKeySuffix         = ".quorum"
	expectedStatusConfigurationKeySuffix = ".status"
	warnOnlyConfigurationKeySuffix       = ".warn_only"
)

// CommandConfiguration captures defaults for the wait command.
type CommandConfiguration struct {
	Role           string        `mapstructure:"role"`
	Hosts          []string      `mapstructure:"hosts"`
	URL            string        `mapstructure:"url"`
	ExpectedStatus string        `mapstructure:"status"`
	UWSGIPort      int           `mapstructure:"uwsgi_port"`
	UWSGISocket    string        `mapstructure:"uwsgi_socket"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	MaxWait        time.Duration `mapstructure:"max_wait"`
	Quorum         string        `mapstructure:"quorum"`
	WarnOnly       bool          `mapstructure:"warn_only"`
}

// DefaultCommandConfiguration returns the baseline wait configuration.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		ExpectedStatus: DefaultExpectedStatusConstant,
		PollInterval:   defaultPollIntervalConstant,
		MaxWait:        defaultMaxWaitConstant,
		Quorum:         QuorumNameAll,
	}
}

// DefaultConfigurationValues returns viper defaults rooted at the provided key.
func DefaultConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		rootKey + pollIntervalConfigurationKeySuffix:   defaults.PollInterval.String(),
		rootKey + maxWaitConfigurationKeySuffix:        defaults.MaxWait.String(),
		rootKey + quorumConfigurationKeySuffix:         defaults.Quorum,
		rootKey + expectedStatusConfigurationKeySuffix: defaults.ExpectedStatus,
		rootKey + warnOnlyConfigurationKeySuffix:       defaults.WarnOnly,
	}
}
