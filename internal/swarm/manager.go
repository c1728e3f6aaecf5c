package swarm

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/deployutils/internal/remote"
	"github.com/temirov/deployutils/internal/task"
)

const (
	pingCommandConstant              = "docker node ls"
	noHealthyManagerMessageConstant  = "swarm is not healthy, all managers failed"
	noHealthyManagerTemplateConstant = "%w: %s"
	missingRunnerMessageConstant     = "swarm manager selection requires a command runner"
	hostsSeparatorConstant           = ", "
	swarmHealthyLogMessageConstant   = "swarm is healthy"
	logFieldAvailableConstant        = "available_managers"
	logFieldCheckedConstant          = "checked_managers"
	logFieldSelectedConstant         = "selected_manager"
)

// ErrNoHealthyManager indicates that no manager answered docker node ls.
var ErrNoHealthyManager = errors.New(noHealthyManagerMessageConstant)

// ErrRunnerNotConfigured indicates a Manager without a command runner.
var ErrRunnerNotConfigured = errors.New(missingRunnerMessageConstant)

// Chooser picks one host from a non-empty list.
type Chooser func(candidates []string) string

// RandomChooser picks a uniformly random host.
func RandomChooser(candidates []string) string {
	return candidates[rand.Intn(len(candidates))]
}

// ManagerSelector picks a swarm manager among hosts.
type ManagerSelector interface {
	SelectManager(executionContext context.Context, hosts []string) (string, error)
}

// Manager operates a swarm through its manager nodes.
type Manager struct {
	Runner remote.CommandRunner
	// Choose defaults to RandomChooser.
	Choose Chooser
	Logger *zap.Logger
}

// SelectManager pings every host and returns one that answered.
// Individual failures are tolerated; a node may be under maintenance.
func (manager Manager) SelectManager(executionContext context.Context, hosts []string) (string, error) {
	if manager.Runner == nil {
		return "", ErrRunnerNotConfigured
	}
	results, runError := manager.Runner.Run(executionContext, hosts, pingCommandConstant, remote.RunOptions{})
	if runError != nil {
		return "", runError
	}

	healthyHosts := results.SucceededHosts()
	if len(healthyHosts) == 0 {
		return "", fmt.Errorf(noHealthyManagerTemplateConstant, ErrNoHealthyManager, strings.Join(results.FailedHosts(), hostsSeparatorConstant))
	}

	choose := manager.Choose
	if choose == nil {
		choose = RandomChooser
	}
	selectedHost := choose(healthyHosts)
	manager.logger().Info(
		swarmHealthyLogMessageConstant,
		zap.Strings(logFieldAvailableConstant, healthyHosts),
		zap.Int(logFieldCheckedConstant, len(results)),
		zap.String(logFieldSelectedConstant, selectedHost),
	)
	return selectedHost, nil
}

func (manager Manager) logger() *zap.Logger {
	if manager.Logger == nil {
		return zap.NewNop()
	}
	return manager.Logger
}

// WithManager returns middleware that fills Request.SwarmNode with a healthy manager.
// Hosts default to Request.Hosts when none are given.
func WithManager(selector ManagerSelector, hosts []string) task.Middleware {
	return func(next task.Operation) task.Operation {
		return func(executionContext context.Context, request task.Request) error {
			candidateHosts := hosts
			if len(candidateHosts) == 0 {
				candidateHosts = request.Hosts
			}
			swarmNode, selectError := selector.SelectManager(executionContext, candidateHosts)
			if selectError != nil {
				return selectError
			}
			request.SwarmNode = swarmNode
			return next(executionContext, request)
		}
	}
}
