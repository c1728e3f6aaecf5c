// Package branchname derives environment identifiers from git branch names.
//
// A branch such as feature/some-stuff-MYB-3456 becomes a DNS-safe domain
// label, a slug without the branch prefix, a database name, and a URL under a
// base domain. Resolver finds the branch to deploy and Require injects it into
// deployment operations.
package branchname
