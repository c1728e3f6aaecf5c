// Package task defines deployment operations and the middleware that wraps them.
//
// Cross-cutting behavior such as branch resolution, deploy locking, and CI
// reporting is expressed as Middleware values composed with Chain. Values that
// middleware supplies to the operation travel as named fields on Request.
package task

import "context"

// Request carries values resolved by middleware down to the wrapped operation.
type Request struct {
	// Branch is the resolved git branch name.
	Branch string
	// Slug is the branch identifier used for environment names.
	Slug string
	// SwarmNode is the swarm manager selected for the operation.
	SwarmNode string
	// Hosts are the hosts the operation targets.
	Hosts []string
	// DryRun requests that mutating commands are skipped.
	DryRun bool
}

// Operation is a unit of deployment work.
type Operation func(executionContext context.Context, request Request) error

// Middleware wraps an Operation with additional behavior.
type Middleware func(next Operation) Operation

// Chain applies middlewares so that the first one listed runs outermost.
func Chain(operation Operation, middlewares ...Middleware) Operation {
	wrapped := operation
	for middlewareIndex := len(middlewares) - 1; middlewareIndex >= 0; middlewareIndex-- {
		if middlewares[middlewareIndex] == nil {
			continue
		}
		wrapped = middlewares[middlewareIndex](wrapped)
	}
	return wrapped
}
