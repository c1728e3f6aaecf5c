// Package release determines which commits a deployment ships.
//
// Extractor reads the one-line git log between the deployed revision and the
// release target on a remote checkout, drops shell noise that precedes the
// log, and lets an operator pick the commit being released when the target
// is not the tip of the branch.
package release
