package cleanup

const (
	defaultDaysConstant = 7

	daysConfigurationKeySuffix         = ".days"
	protectedConfigurationKeySuffix    = ".protected"
	projectLabelConfigurationKeySuffix = ".project_label"
	branchLabelConfigurationKeySuffix  = ".branch_label"
)

// CommandConfiguration captures defaults for the prune command.
type CommandConfiguration struct {
	Days           int      `mapstructure:"days"`
	DryRun         bool     `mapstructure:"dry_run"`
	Protected      []string `mapstructure:"protected"`
	Role           string   `mapstructure:"role"`
	Hosts          []string `mapstructure:"hosts"`
	ProjectLabel   string   `mapstructure:"project_label"`
	ProjectName    string   `mapstructure:"project_name"`
	BranchLabel    string   `mapstructure:"branch_label"`
	DestroyCommand string   `mapstructure:"destroy_command"`
	DestroyUser    string   `mapstructure:"destroy_user"`
	TeamCity       bool     `mapstructure:"teamcity"`
	RespectLock    bool     `mapstructure:"respect_lock"`
}

// DefaultCommandConfiguration returns the baseline prune configuration.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		Days:         defaultDaysConstant,
		Protected:    []string{"master", "demo"},
		ProjectLabel: DefaultProjectLabelConstant,
		BranchLabel:  DefaultBranchLabelConstant,
	}
}

// DefaultConfigurationValues returns viper defaults rooted at the provided key.
func DefaultConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		rootKey + daysConfigurationKeySuffix:         defaults.Days,
		rootKey + protectedConfigurationKeySuffix:    defaults.Protected,
		rootKey + projectLabelConfigurationKeySuffix: defaults.ProjectLabel,
		rootKey + branchLabelConfigurationKeySuffix:  defaults.BranchLabel,
	}
}
