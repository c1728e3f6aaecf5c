package branchname

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/temirov/deployutils/internal/execshell"
)

const (
	commandUseConstant              = "slug [branch]"
	commandShortDescriptionConstant = "Print environment identifiers derived from a branch"
	commandLongDescriptionConstant  = "slug resolves the branch (argument, BUILD_BRANCH, or the checked out git branch) and prints its domain, slug, database, and URL forms."
	tooManyArgumentsMessage         = "slug accepts at most one branch"
	baseDomainFlagNameConstant      = "base-domain"
	baseDomainFlagDescription       = "Domain under which branch URLs are built"
	patternFlagNameConstant         = "pattern"
	patternFlagDescription          = "Case-insensitive regular expression extracting the domain"
	replacementFlagNameConstant     = "replacement"
	replacementFlagDescription      = "Replacement applied when the pattern matches"
	repositoryFlagNameConstant      = "repository"
	repositoryFlagDescription       = "Git repository used to detect the branch"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current branch name configuration.
type ConfigurationProvider func() Configuration

// Identifiers holds every form derived from a branch.
type Identifiers struct {
	Branch   string `yaml:"branch"`
	Domain   string `yaml:"domain"`
	Slug     string `yaml:"slug"`
	Database string `yaml:"database"`
	URL      string `yaml:"url,omitempty"`
}

// Describe derives all identifiers for branch.
func Describe(branch string, configuration Configuration, pattern *Pattern) Identifiers {
	identifiers := Identifiers{
		Branch:   branch,
		Domain:   ToDomain(branch, pattern),
		Slug:     ToSlug(branch, pattern),
		Database: ToDatabase(branch, pattern),
	}
	if len(configuration.BaseDomain) > 0 {
		identifiers.URL = ToURL(configuration.BaseDomain, branch, pattern)
	}
	return identifiers
}

// CommandBuilder assembles the slug command.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	GitExecutor           GitExecutor
	LookupEnvironment     EnvironmentLookup
	CommandEventsObserver execshell.CommandEventObserver
}

// Build constructs the cobra command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		RunE:  builder.run,
	}
	command.Flags().String(baseDomainFlagNameConstant, "", baseDomainFlagDescription)
	command.Flags().String(patternFlagNameConstant, "", patternFlagDescription)
	command.Flags().String(replacementFlagNameConstant, "", replacementFlagDescription)
	command.Flags().String(repositoryFlagNameConstant, "", repositoryFlagDescription)
	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	if len(arguments) > 1 {
		return errors.New(tooManyArgumentsMessage)
	}
	explicitBranch := ""
	if len(arguments) == 1 {
		explicitBranch = arguments[0]
	}

	configuration := builder.resolveConfiguration()
	flags := command.Flags()
	if flags.Changed(baseDomainFlagNameConstant) {
		configuration.BaseDomain, _ = flags.GetString(baseDomainFlagNameConstant)
	}
	if flags.Changed(patternFlagNameConstant) {
		configuration.Pattern, _ = flags.GetString(patternFlagNameConstant)
	}
	if flags.Changed(replacementFlagNameConstant) {
		configuration.Replacement, _ = flags.GetString(replacementFlagNameConstant)
	}
	repositoryPath, _ := flags.GetString(repositoryFlagNameConstant)

	pattern, patternError := configuration.CompilePattern()
	if patternError != nil {
		return patternError
	}

	gitExecutor, executorError := builder.resolveGitExecutor()
	if executorError != nil {
		return executorError
	}
	resolver := Resolver{Git: gitExecutor, WorkingDirectory: repositoryPath, LookupEnvironment: builder.LookupEnvironment}
	branch, resolveError := resolver.Resolve(command.Context(), explicitBranch)
	if resolveError != nil {
		return resolveError
	}

	encoder := yaml.NewEncoder(command.OutOrStdout())
	defer encoder.Close()
	return encoder.Encode(Describe(branch, configuration, pattern))
}

func (builder *CommandBuilder) resolveGitExecutor() (GitExecutor, error) {
	if builder.GitExecutor != nil {
		return builder.GitExecutor, nil
	}
	return ResolveGitExecutor(builder.resolveLogger(), builder.CommandEventsObserver)
}

// ResolveGitExecutor constructs an OS-backed git executor.
func ResolveGitExecutor(logger *zap.Logger, observer execshell.CommandEventObserver) (GitExecutor, error) {
	shellExecutor, creationError := execshell.NewShellExecutor(logger, execshell.NewOSCommandRunner())
	if creationError != nil {
		return nil, creationError
	}
	if observer != nil {
		shellExecutor = shellExecutor.WithEventObserver(observer)
	}
	return shellExecutor, nil
}

func (builder *CommandBuilder) resolveConfiguration() Configuration {
	if builder.ConfigurationProvider == nil {
		return Configuration{}
	}
	return builder.ConfigurationProvider()
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
