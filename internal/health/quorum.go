package health

import (
	"fmt"
	"sort"
	"strings"
)

const (
	QuorumNameAll      = "all"
	QuorumNameAny      = "any"
	QuorumNameMajority = "majority"

	unsupportedQuorumTemplateConstant = "unsupported quorum %q (expected all, any, or majority)"
)

// Quorum decides whether enough hosts are healthy.
// Implementations receive a non-empty map.
type Quorum func(hostHealth map[string]bool) bool

// AllHealthy requires every host to be healthy.
func AllHealthy(hostHealth map[string]bool) bool {
	if len(hostHealth) == 0 {
		return false
	}
	for _, healthy := range hostHealth {
		if !healthy {
			return false
		}
	}
	return true
}

// AnyHealthy requires at least one healthy host.
func AnyHealthy(hostHealth map[string]bool) bool {
	for _, healthy := range hostHealth {
		if healthy {
			return true
		}
	}
	return false
}

// MajorityHealthy requires strictly more than half of the hosts to be healthy.
func MajorityHealthy(hostHealth map[string]bool) bool {
	healthyCount := 0
	for _, healthy := range hostHealth {
		if healthy {
			healthyCount++
		}
	}
	return len(hostHealth) > 0 && healthyCount*2 > len(hostHealth)
}

// ParseQuorum resolves a quorum by name. Blank names select AllHealthy.
func ParseQuorum(name string) (Quorum, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", QuorumNameAll:
		return AllHealthy, nil
	case QuorumNameAny:
		return AnyHealthy, nil
	case QuorumNameMajority:
		return MajorityHealthy, nil
	default:
		return nil, fmt.Errorf(unsupportedQuorumTemplateConstant, name)
	}
}

func unhealthyHosts(hostHealth map[string]bool) []string {
	failedHosts := make([]string, 0, len(hostHealth))
	for host, healthy := range hostHealth {
		if !healthy {
			failedHosts = append(failedHosts, host)
		}
	}
	sort.Strings(failedHosts)
	return failedHosts
}
