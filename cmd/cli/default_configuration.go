package cli

import _ "embed"

// defaultConfigurationContent documents every key the commands read. Viper merges it
// beneath user configuration files and DEPLOYUTILS_* environment variables.
//
//go:embed default_config.yaml
var defaultConfigurationContent string

// EmbeddedDefaultConfiguration returns a copy of the bundled defaults and their format.
func EmbeddedDefaultConfiguration() ([]byte, string) {
	return []byte(defaultConfigurationContent), configurationTypeConstant
}
