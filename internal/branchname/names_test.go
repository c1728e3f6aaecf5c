package branchname_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/deployutils/internal/branchname"
)

func TestToDomainWithReplacement(testInstance *testing.T) {
	pattern, patternError := branchname.NewPattern(`^.*myb-?(\d+)$`, `myb\1`)
	require.NoError(testInstance, patternError)

	testCases := []struct {
		branch         string
		expectedDomain string
	}{
		{branch: "demo", expectedDomain: "demo"},
		{branch: "feature/some-stuff-MYB-3456", expectedDomain: "myb3456"},
		{branch: "feature/soMR3ALLy些些些些12238__feature-1", expectedDomain: "feature-somr3ally-12238-feature-1"},
		{branch: "master", expectedDomain: "master"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.branch, func(subTest *testing.T) {
			require.Equal(subTest, testCase.expectedDomain, branchname.ToDomain(testCase.branch, pattern))
		})
	}
}

func TestToDomainWithCaptureGroup(testInstance *testing.T) {
	pattern, patternError := branchname.NewPattern(`^.*(myb-?\d+)$`, "")
	require.NoError(testInstance, patternError)
	require.Equal(testInstance, "MYB-3456", branchname.ToDomain("feature/some-stuff-MYB-3456", pattern))
}

func TestToDomainWithGoStyleReplacement(testInstance *testing.T) {
	pattern, patternError := branchname.NewPattern(`^.*myb-?(\d+)$`, `ticket-${1}`)
	require.NoError(testInstance, patternError)
	require.Equal(testInstance, "ticket-3456", branchname.ToDomain("feature/MYB3456", pattern))
}

func TestNewPatternRejectsInvalidExpression(testInstance *testing.T) {
	_, patternError := branchname.NewPattern(`(unclosed`, "")
	require.Error(testInstance, patternError)
}

func TestDerivedNames(testInstance *testing.T) {
	testCases := []struct {
		branch           string
		expectedSlug     string
		expectedDatabase string
		expectedURL      string
	}{
		{
			branch:           "feature/some-stuff-MYB-3456",
			expectedSlug:     "some-stuff-myb-3456",
			expectedDatabase: "featuresomestuffmyb3456",
			expectedURL:      "feature-some-stuff-myb-3456.example.com",
		},
		{
			branch:           "master",
			expectedSlug:     "master",
			expectedDatabase: "master",
			expectedURL:      "example.com",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.branch, func(subTest *testing.T) {
			require.Equal(subTest, testCase.expectedSlug, branchname.ToSlug(testCase.branch, nil))
			require.Equal(subTest, testCase.expectedDatabase, branchname.ToDatabase(testCase.branch, nil))
			require.Equal(subTest, testCase.expectedURL, branchname.ToURL("example.com", testCase.branch, nil))
		})
	}
}
