package branchname_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/deployutils/internal/branchname"
)

func TestSlugCommandOutput(testInstance *testing.T) {
	builder := branchname.CommandBuilder{
		ConfigurationProvider: func() branchname.Configuration {
			return branchname.Configuration{BaseDomain: "example.com"}
		},
		GitExecutor:       &fakeGitExecutor{output: "feature/some-stuff-MYB-3456\n"},
		LookupEnvironment: environmentWith(nil),
	}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	outputBuffer := &bytes.Buffer{}
	command.SetOut(outputBuffer)
	command.SetArgs([]string{})
	require.NoError(testInstance, command.ExecuteContext(context.Background()))

	expectedOutput := "branch: feature/some-stuff-MYB-3456\n" +
		"domain: feature-some-stuff-myb-3456\n" +
		"slug: some-stuff-myb-3456\n" +
		"database: featuresomestuffmyb3456\n" +
		"url: feature-some-stuff-myb-3456.example.com\n"
	require.Equal(testInstance, expectedOutput, outputBuffer.String())
}

func TestSlugCommandAppliesPatternFlags(testInstance *testing.T) {
	builder := branchname.CommandBuilder{LookupEnvironment: environmentWith(nil)}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	outputBuffer := &bytes.Buffer{}
	command.SetOut(outputBuffer)
	command.SetArgs([]string{"feature/some-stuff-MYB-3456", "--pattern", `^.*myb-?(\d+)$`, "--replacement", `myb\1`})
	require.NoError(testInstance, command.ExecuteContext(context.Background()))
	require.Contains(testInstance, outputBuffer.String(), "slug: myb3456\n")
	require.NotContains(testInstance, outputBuffer.String(), "url:")
}
