// Package deploy runs a branch deployment on a set of hosts.
//
// The deploy command resolves the branch, reports to TeamCity, holds the deploy
// lock while the configured command runs, and then waits for the hosts to come
// up. Every step is a task.Middleware around the Workflow operation.
package deploy
