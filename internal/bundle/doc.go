// Package bundle manages the on-disk release bundles of the managed node.
//
// A bundle is the immutable, locally unpacked materialization of one release
// version: created once by extraction, mutated afterwards only by config
// migration into it, and retained indefinitely for rollback. The Store also
// owns the current pointer naming the live bundle, the only durable success
// mutation the upgrade pipeline performs. The Migrator carries identity and
// auth state from the old bundle into the new one and patches the new
// environment file for its release.
package bundle
