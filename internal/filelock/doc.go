// Package filelock provides cross-process advisory locking with flock(2).
//
// Entry points are independent processes that share one directory tree.
// The registry record is the only file more than one of them mutates, so
// its read-modify-write runs while holding an exclusive [Lock] on a sibling
// lock file:
//
//	err := filelock.WithLock(ctx, "/data/experiment_ids.json.lock", func() error {
//	    // load, append, persist
//	})
//
// Locks are advisory: they only exclude processes that also take them.
package filelock
