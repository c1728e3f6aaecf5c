// Package utils hosts the configuration loader, dotenv handling, logger factory,
// and output helpers shared by every deployutils command.
package utils
