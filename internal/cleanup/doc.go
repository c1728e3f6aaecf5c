// Package cleanup destroys stale per-branch deployments.
//
// Reaper walks the stale identifiers produced by a Lister and destroys each
// one through a Destroyer, skipping protected identifiers and isolating
// failures so that one broken branch never stops the rest of the run.
package cleanup
