// Package watcher imports device telemetry dumps as they land in a spool
// directory.
//
// A device-side collector (or anything else) drops .json or .yaml dumps
// into the spool. The Watcher reacts to fsnotify create and write events
// and also rescans the whole directory on a ticker, so a dump that was
// only half written when its event fired is picked up on a later pass.
// Dumps already applied are recognised by checksum and skipped.
//
// Only one watcher may serve a spool directory at a time; a file lock
// inside the directory enforces this across processes. Daemon runs the
// same loop as a detached background process tracked by a PID file.
//
// Example usage:
//
//	st, err := store.Open(dbPath)
//	if err != nil {
//		return err
//	}
//	defer st.Close()
//
//	w, err := watcher.New(ingest.New(afero.NewOsFs(), st, logger), spoolDir, logger)
//	if err != nil {
//		return err
//	}
//
//	// Blocks until ctx is cancelled
//	return w.Run(ctx)
package watcher
