// Package persist stores and restores session snapshots. The file store is
// the default; the Postgres store serves deployments that already run a
// database.
package persist
