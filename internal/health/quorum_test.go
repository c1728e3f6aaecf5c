package health_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/deployutils/internal/health"
)

func TestQuorumFunctions(testInstance *testing.T) {
	testCases := []struct {
		name             string
		hostHealth       map[string]bool
		expectedAll      bool
		expectedAny      bool
		expectedMajority bool
	}{
		{name: "empty", hostHealth: map[string]bool{}},
		{name: "all_healthy", hostHealth: map[string]bool{"a": true, "b": true}, expectedAll: true, expectedAny: true, expectedMajority: true},
		{name: "half_healthy", hostHealth: map[string]bool{"a": true, "b": false}, expectedAny: true},
		{name: "two_of_three", hostHealth: map[string]bool{"a": true, "b": true, "c": false}, expectedAny: true, expectedMajority: true},
		{name: "none_healthy", hostHealth: map[string]bool{"a": false}},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			require.Equal(subTest, testCase.expectedAll, health.AllHealthy(testCase.hostHealth))
			require.Equal(subTest, testCase.expectedAny, health.AnyHealthy(testCase.hostHealth))
			require.Equal(subTest, testCase.expectedMajority, health.MajorityHealthy(testCase.hostHealth))
		})
	}
}

func TestParseQuorum(testInstance *testing.T) {
	for _, name := range []string{"", "all", "ANY", " majority "} {
		quorum, parseError := health.ParseQuorum(name)
		require.NoError(testInstance, parseError)
		require.NotNil(testInstance, quorum)
	}

	_, parseError := health.ParseQuorum("most")
	require.Error(testInstance, parseError)
}
