package psql

const (
	defaultRoleConstant     = "db"
	defaultDatabaseConstant = "postgres"

	roleConfigurationKeySuffix     = ".role"
	databaseConfigurationKeySuffix = ".database"
	userConfigurationKeySuffix     = ".user"
)

// CommandConfiguration captures defaults for the psql commands.
type CommandConfiguration struct {
	Host     string `mapstructure:"host"`
	Role     string `mapstructure:"role"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
}

// DefaultCommandConfiguration returns the baseline psql configuration.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{Role: defaultRoleConstant, Database: defaultDatabaseConstant, User: DefaultUserConstant}
}

// DefaultConfigurationValues returns viper defaults rooted at the provided key.
func DefaultConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		rootKey + roleConfigurationKeySuffix:     defaults.Role,
		rootKey + databaseConfigurationKeySuffix: defaults.Database,
		rootKey + userConfigurationKeySuffix:     defaults.User,
	}
}
