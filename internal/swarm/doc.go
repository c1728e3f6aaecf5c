// Package swarm picks a healthy Docker swarm manager and restarts stack services through it.
package swarm
