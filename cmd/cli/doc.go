// Package cli constructs the deployutils command-line interface, wiring the
// Cobra command hierarchy, dotenv and configuration loading, and structured
// logging. It exposes helpers to build application instances and to execute
// the default command set.
package cli
